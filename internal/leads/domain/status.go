// Package domain holds the lead lifecycle rules: statuses, transition plans,
// assignment plans and the rule matcher. Nothing here performs I/O.
package domain

import "errors"

// Status is a lead lifecycle state.
type Status string

const (
	StatusNew                  Status = "new"
	StatusAssigned             Status = "assigned"
	StatusContacted            Status = "contacted"
	StatusFollowed             Status = "followed"
	StatusInterested           Status = "interested"
	StatusReserved             Status = "reserved"
	StatusLiquidated           Status = "liquidated"
	StatusEffectiveReservation Status = "effective_reservation"
	StatusArchived             Status = "archived"
)

// ErrInvalidStatus is returned for values outside the lifecycle.
var ErrInvalidStatus = errors.New("invalid lead status")

var allStatuses = []Status{
	StatusNew,
	StatusAssigned,
	StatusContacted,
	StatusFollowed,
	StatusInterested,
	StatusReserved,
	StatusLiquidated,
	StatusEffectiveReservation,
	StatusArchived,
}

// Entering one of these with an assignee present creates the companion contact.
var contactQualifying = map[Status]bool{
	StatusContacted:            true,
	StatusFollowed:             true,
	StatusInterested:           true,
	StatusReserved:             true,
	StatusLiquidated:           true,
	StatusEffectiveReservation: true,
}

// ParseStatus validates a raw status string.
func ParseStatus(raw string) (Status, error) {
	for _, s := range allStatuses {
		if string(s) == raw {
			return s, nil
		}
	}
	return "", ErrInvalidStatus
}

// Statuses returns every lifecycle state in pipeline order.
func Statuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// IsContactQualifying reports whether entering s triggers contact conversion.
func (s Status) IsContactQualifying() bool {
	return contactQualifying[s]
}

// String implements fmt.Stringer.
func (s Status) String() string { return string(s) }
