// Package domain holds the budget rules that do not touch storage: status
// values, public slugs and the margin configuration embedded in descriptions.
package domain

import "errors"

type Status string

const (
	StatusNotSent  Status = "not_sent"
	StatusSent     Status = "sent"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

var ErrInvalidStatus = errors.New("invalid budget status")

func ParseStatus(raw string) (Status, error) {
	switch s := Status(raw); s {
	case StatusNotSent, StatusSent, StatusApproved, StatusRejected:
		return s, nil
	}
	return "", ErrInvalidStatus
}

// Change kinds stored on budget_versions.
const (
	ChangeCreated       = "created"
	ChangeUpdated       = "updated"
	ChangeStatusChanged = "status_changed"
)
