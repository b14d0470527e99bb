package domain

import "fmt"

// TransitionKind is the branch of the state machine a status change takes.
type TransitionKind int

const (
	// TransitionArchive moves the lead to archived. No contact side effect.
	TransitionArchive TransitionKind = iota + 1
	// TransitionConvert enters a qualifying status with an assignee present.
	TransitionConvert
	// TransitionStatusOnly enters a qualifying status without an assignee.
	TransitionStatusOnly
	// TransitionRevert enters a non-qualifying status.
	TransitionRevert
)

// NoticeNoAssignee is returned with TransitionStatusOnly plans.
const NoticeNoAssignee = "lead has no assignee; contact not created"

// TransitionPlan describes every write a status change must perform.
type TransitionPlan struct {
	Kind TransitionKind
	From Status
	To   Status
	// ConvertedToContact is the flag value to store; nil leaves it untouched.
	ConvertedToContact *bool
	// ClearArchive is set when the lead leaves archived.
	ClearArchive bool
	// CreateContact asks the converter for a contact tagged with To.
	CreateContact bool
	HistoryAction string
	Notice        string
}

// Plan decides how a lead in status current moves to target. assigned tells
// whether the lead currently has an assignee.
func Plan(current, target Status, assigned bool) (TransitionPlan, error) {
	if _, err := ParseStatus(string(target)); err != nil {
		return TransitionPlan{}, fmt.Errorf("%w: %q", err, target)
	}

	plan := TransitionPlan{
		From:         current,
		To:           target,
		ClearArchive: current == StatusArchived && target != StatusArchived,
	}

	switch {
	case target == StatusArchived:
		plan.Kind = TransitionArchive
		plan.HistoryAction = ActionArchived
	case target.IsContactQualifying() && assigned:
		plan.Kind = TransitionConvert
		plan.CreateContact = true
		plan.ConvertedToContact = boolPtr(true)
		plan.HistoryAction = ActionConvertedToContact
	case target.IsContactQualifying():
		plan.Kind = TransitionStatusOnly
		plan.HistoryAction = ActionStatusChange
		plan.Notice = NoticeNoAssignee
	default:
		plan.Kind = TransitionRevert
		plan.ConvertedToContact = boolPtr(false)
		plan.HistoryAction = ActionStatusChange
	}
	return plan, nil
}

func boolPtr(v bool) *bool { return &v }
