// Package events defines the CRM's domain events. The bus itself lives in
// platform/events and is aliased here so modules need a single import.
package events

import (
	"time"

	"travel_crm_backend/platform/events"
	"travel_crm_backend/platform/logger"

	"github.com/google/uuid"
)

type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
	InMemoryBus = events.InMemoryBus
)

var NewBaseEvent = events.NewBaseEvent

// NewInMemoryBus returns the process-local bus used by every command.
func NewInMemoryBus(log *logger.Logger) *InMemoryBus {
	return events.NewInMemoryBus(log)
}

// =============================================================================
// Leads Domain Events
// =============================================================================

// LeadCreated is published when a new lead is stored.
type LeadCreated struct {
	BaseEvent
	LeadID         uuid.UUID  `json:"leadId"`
	OrganizationID uuid.UUID  `json:"organizationId"`
	InquiryNumber  string     `json:"inquiryNumber"`
	FullName       string     `json:"fullName"`
	Source         string     `json:"source"`
	AssignedTo     *uuid.UUID `json:"assignedTo,omitempty"`
	AutoAssigned   bool       `json:"autoAssigned"`
}

func (e LeadCreated) EventName() string { return "leads.lead.created" }

// LeadStatusChanged is published after a status transition.
type LeadStatusChanged struct {
	BaseEvent
	LeadID         uuid.UUID  `json:"leadId"`
	OrganizationID uuid.UUID  `json:"organizationId"`
	OldStatus      string     `json:"oldStatus"`
	NewStatus      string     `json:"newStatus"`
	AssignedTo     *uuid.UUID `json:"assignedTo,omitempty"`
	ActorID        *uuid.UUID `json:"actorId,omitempty"`
}

func (e LeadStatusChanged) EventName() string { return "leads.lead.status_changed" }

// LeadAssigned is published when a lead's assignee changes.
type LeadAssigned struct {
	BaseEvent
	LeadID         uuid.UUID  `json:"leadId"`
	OrganizationID uuid.UUID  `json:"organizationId"`
	InquiryNumber  string     `json:"inquiryNumber"`
	PreviousAgent  *uuid.UUID `json:"previousAgent,omitempty"`
	NewAgent       *uuid.UUID `json:"newAgent,omitempty"`
	ActorID        *uuid.UUID `json:"actorId,omitempty"`
}

func (e LeadAssigned) EventName() string { return "leads.lead.assigned" }

// LeadConvertedToContact is published when a contact is created from a lead.
type LeadConvertedToContact struct {
	BaseEvent
	LeadID         uuid.UUID  `json:"leadId"`
	ContactID      uuid.UUID  `json:"contactId"`
	OrganizationID uuid.UUID  `json:"organizationId"`
	Tag            string     `json:"tag"`
	AssignedTo     *uuid.UUID `json:"assignedTo,omitempty"`
}

func (e LeadConvertedToContact) EventName() string { return "leads.lead.converted_to_contact" }

// LeadArchived is published when a lead is archived.
type LeadArchived struct {
	BaseEvent
	LeadID         uuid.UUID `json:"leadId"`
	OrganizationID uuid.UUID `json:"organizationId"`
	Reason         *string   `json:"reason,omitempty"`
	ArchivedAt     time.Time `json:"archivedAt"`
}

func (e LeadArchived) EventName() string { return "leads.lead.archived" }

// =============================================================================
// Budgets Domain Events
// =============================================================================

// BudgetStatusChanged is published after a budget status update.
type BudgetStatusChanged struct {
	BaseEvent
	BudgetID       uuid.UUID `json:"budgetId"`
	OrganizationID uuid.UUID `json:"organizationId"`
	Slug           string    `json:"slug"`
	Title          string    `json:"title"`
	OldStatus      string    `json:"oldStatus"`
	NewStatus      string    `json:"newStatus"`
	RecipientName  string    `json:"recipientName,omitempty"`
	RecipientEmail string    `json:"recipientEmail,omitempty"`
	PublicURL      string    `json:"publicUrl"`
}

func (e BudgetStatusChanged) EventName() string { return "budgets.budget.status_changed" }

// =============================================================================
// Inbox & Task Domain Events
// =============================================================================

// InboxMessageCreated is published for every stored inbox message.
type InboxMessageCreated struct {
	BaseEvent
	MessageID      uuid.UUID  `json:"messageId"`
	OrganizationID uuid.UUID  `json:"organizationId"`
	ContactID      uuid.UUID  `json:"contactId"`
	ContactName    string     `json:"contactName"`
	AssignedTo     *uuid.UUID `json:"assignedTo,omitempty"`
	Direction      string     `json:"direction"`
	Channel        string     `json:"channel"`
	Preview        string     `json:"preview"`
}

func (e InboxMessageCreated) EventName() string { return "inbox.message.created" }

// TaskReminderDue is published once per task and hour bucket by the reminder scan.
type TaskReminderDue struct {
	BaseEvent
	TaskID         uuid.UUID `json:"taskId"`
	OrganizationID uuid.UUID `json:"organizationId"`
	AssignedTo     uuid.UUID `json:"assignedTo"`
	AssigneeName   string    `json:"assigneeName"`
	AssigneeEmail  string    `json:"assigneeEmail"`
	Title          string    `json:"title"`
	DueAt          time.Time `json:"dueAt"`
}

func (e TaskReminderDue) EventName() string { return "tasks.task.reminder_due" }
