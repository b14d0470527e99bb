package domain

import "github.com/google/uuid"

// AssignmentKind is the transition an assignee change represents.
type AssignmentKind int

const (
	AssignmentNoChange AssignmentKind = iota
	// AssignmentUnassign clears the assignee; the lead returns to new.
	AssignmentUnassign
	// AssignmentFirstAssign sets an assignee on an unassigned lead; the lead
	// moves to assigned and gets its contact.
	AssignmentFirstAssign
	// AssignmentReassign swaps one assignee for another; status is untouched.
	AssignmentReassign
)

// String returns the metric label for the kind.
func (k AssignmentKind) String() string {
	switch k {
	case AssignmentUnassign:
		return "unassign"
	case AssignmentFirstAssign:
		return "first_assign"
	case AssignmentReassign:
		return "reassign"
	default:
		return "no_change"
	}
}

// AssignmentPlan describes the writes that accompany an assignee change.
type AssignmentPlan struct {
	Kind AssignmentKind
	// NewStatus is the forced status, nil when status is untouched.
	NewStatus *Status
	// CreateContact asks the converter for a contact tagged ContactTag.
	CreateContact bool
	ContactTag    Status
}

// PlanAssignment maps (old assignee, new assignee) to its transition.
func PlanAssignment(previous, next *uuid.UUID) AssignmentPlan {
	switch {
	case previous == nil && next == nil:
		return AssignmentPlan{Kind: AssignmentNoChange}
	case previous != nil && next == nil:
		s := StatusNew
		return AssignmentPlan{Kind: AssignmentUnassign, NewStatus: &s}
	case previous == nil:
		s := StatusAssigned
		return AssignmentPlan{Kind: AssignmentFirstAssign, NewStatus: &s, CreateContact: true, ContactTag: StatusAssigned}
	case *previous == *next:
		return AssignmentPlan{Kind: AssignmentNoChange}
	default:
		return AssignmentPlan{Kind: AssignmentReassign}
	}
}
