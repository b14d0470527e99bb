// Package ports declares what the leads module needs from other modules.
// Implementations live in internal/adapters.
package ports

import (
	"context"
	"time"

	"travel_crm_backend/internal/leads/domain"

	"github.com/google/uuid"
)

// RuleSource supplies an organization's active rules in evaluation order.
type RuleSource interface {
	ActiveRules(ctx context.Context, organizationID uuid.UUID) ([]domain.AssignmentRule, error)
}

// ContactFromLead is the snapshot copied onto a converted contact.
type ContactFromLead struct {
	OrganizationID uuid.UUID
	BranchID       *uuid.UUID
	LeadID         uuid.UUID
	InquiryNumber  string
	LeadStatus     string
	Tag            string
	FullName       string
	Phone          string
	Email          *string
	Origin         *string
	Province       *string
	City           *string
	Passengers     *int
	TravelDate     *time.Time
	AssignedTo     *uuid.UUID
}

// ContactRef identifies the contact bound to a lead.
type ContactRef struct {
	ID      uuid.UUID
	Created bool
}

// ContactConverter creates the contact for a lead. Calling it again for the
// same lead returns the existing contact with Created=false.
type ContactConverter interface {
	CreateFromLead(ctx context.Context, in ContactFromLead) (ContactRef, error)
}

// HistoryEntry is one audit row about a lead.
type HistoryEntry struct {
	OrganizationID uuid.UUID
	LeadID         *uuid.UUID
	ContactID      *uuid.UUID
	Action         string
	Description    string
	UserID         *uuid.UUID
}

// HistoryRecord is a stored audit row.
type HistoryRecord struct {
	ID          uuid.UUID
	Action      string
	Description string
	UserID      *uuid.UUID
	UserName    string
	CreatedAt   time.Time
}

// HistoryRecorder writes audit rows. Failures are logged, never returned.
type HistoryRecorder interface {
	Record(ctx context.Context, entry HistoryEntry)
}

// HistoryReader lists the audit trail of a lead, newest first.
type HistoryReader interface {
	ListForLead(ctx context.Context, leadID uuid.UUID) ([]HistoryRecord, error)
}

// UserDirectory validates assignees and resolves display names.
type UserDirectory interface {
	IsActiveMember(ctx context.Context, organizationID, userID uuid.UUID) (bool, error)
	DisplayName(ctx context.Context, userID uuid.UUID) string
}
