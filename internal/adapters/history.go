package adapters

import (
	"context"

	contactsvc "travel_crm_backend/internal/contacts/service"
	historyrepo "travel_crm_backend/internal/history/repository"
	historysvc "travel_crm_backend/internal/history/service"
	"travel_crm_backend/internal/leads/ports"

	"github.com/google/uuid"
)

// HistoryLog is the History Recorder as seen by leads and contacts.
type HistoryLog interface {
	Record(ctx context.Context, e historysvc.Entry)
	ListForLead(ctx context.Context, leadID uuid.UUID) ([]historyrepo.Entry, error)
	ListForContact(ctx context.Context, contactID uuid.UUID) ([]historyrepo.Entry, error)
}

// LeadHistory adapts the recorder to the leads ports.
type LeadHistory struct {
	log HistoryLog
}

func NewLeadHistory(log HistoryLog) *LeadHistory {
	return &LeadHistory{log: log}
}

func (a *LeadHistory) Record(ctx context.Context, e ports.HistoryEntry) {
	a.log.Record(ctx, historysvc.Entry{
		OrganizationID: e.OrganizationID,
		LeadID:         e.LeadID,
		ContactID:      e.ContactID,
		Action:         e.Action,
		Description:    e.Description,
		UserID:         e.UserID,
	})
}

func (a *LeadHistory) ListForLead(ctx context.Context, leadID uuid.UUID) ([]ports.HistoryRecord, error) {
	entries, err := a.log.ListForLead(ctx, leadID)
	if err != nil {
		return nil, err
	}
	out := make([]ports.HistoryRecord, 0, len(entries))
	for _, e := range entries {
		out = append(out, ports.HistoryRecord{
			ID:          e.ID,
			Action:      e.Action,
			Description: e.Description,
			UserID:      e.UserID,
			UserName:    deref(e.UserName),
			CreatedAt:   e.CreatedAt,
		})
	}
	return out, nil
}

// ContactHistory adapts the recorder to the contacts service.
type ContactHistory struct {
	log HistoryLog
}

func NewContactHistory(log HistoryLog) *ContactHistory {
	return &ContactHistory{log: log}
}

func (a *ContactHistory) RecordContact(ctx context.Context, e contactsvc.HistoryEntry) {
	contactID := e.ContactID
	a.log.Record(ctx, historysvc.Entry{
		OrganizationID: e.OrganizationID,
		ContactID:      &contactID,
		Action:         e.Action,
		Description:    e.Description,
		UserID:         e.UserID,
	})
}

func (a *ContactHistory) ListForContact(ctx context.Context, contactID uuid.UUID) ([]contactsvc.HistoryRecord, error) {
	entries, err := a.log.ListForContact(ctx, contactID)
	if err != nil {
		return nil, err
	}
	out := make([]contactsvc.HistoryRecord, 0, len(entries))
	for _, e := range entries {
		out = append(out, contactsvc.HistoryRecord{
			ID:          e.ID,
			Action:      e.Action,
			Description: e.Description,
			UserID:      e.UserID,
			UserName:    deref(e.UserName),
			CreatedAt:   e.CreatedAt,
		})
	}
	return out, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

var (
	_ ports.HistoryRecorder      = (*LeadHistory)(nil)
	_ ports.HistoryReader        = (*LeadHistory)(nil)
	_ contactsvc.HistoryRecorder = (*ContactHistory)(nil)
	_ contactsvc.HistoryReader   = (*ContactHistory)(nil)
)
