package domain

// History action tags written for leads.
const (
	ActionCreated            = "created"
	ActionImported           = "imported"
	ActionAutoAssigned       = "auto_assigned"
	ActionStatusChange       = "status_change"
	ActionAssignmentChange   = "assignment_change"
	ActionConvertedToContact = "converted_to_contact"
	ActionArchived           = "archived"
	ActionDeleted            = "deleted"
)
