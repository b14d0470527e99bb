// Package service is the History Recorder. Writes are best effort: a failed
// insert is logged and counted but never returned to the caller.
package service

import (
	"context"
	"time"

	"travel_crm_backend/internal/history/repository"
	"travel_crm_backend/platform/logger"
	"travel_crm_backend/platform/metrics"

	"github.com/google/uuid"
)

// Action tags stored in lead_history.
const (
	ActionCreated            = "created"
	ActionImported           = "imported"
	ActionAutoAssigned       = "auto_assigned"
	ActionStatusChange       = "status_change"
	ActionAssignmentChange   = "assignment_change"
	ActionConvertedToContact = "converted_to_contact"
	ActionArchived           = "archived"
	ActionDeleted            = "deleted"
	ActionContactCreated     = "contact_created"
	ActionContactUpdated     = "contact_updated"
)

const writeTimeout = 5 * time.Second

type Repository interface {
	Insert(ctx context.Context, e repository.Entry) error
	ListByLead(ctx context.Context, leadID uuid.UUID) ([]repository.Entry, error)
	ListByContact(ctx context.Context, contactID uuid.UUID) ([]repository.Entry, error)
}

type Service struct {
	repo    Repository
	log     *logger.Logger
	metrics *metrics.Metrics
}

func New(repo Repository, log *logger.Logger, m *metrics.Metrics) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{repo: repo, log: log, metrics: m}
}

// Entry is one audit row to append.
type Entry struct {
	OrganizationID uuid.UUID
	LeadID         *uuid.UUID
	ContactID      *uuid.UUID
	Action         string
	Description    string
	UserID         *uuid.UUID
}

// Record appends an entry. It runs outside any caller transaction and
// survives caller cancellation.
func (s *Service) Record(ctx context.Context, e Entry) {
	if e.LeadID == nil && e.ContactID == nil {
		s.log.Warn("history entry without subject dropped", "action", e.Action)
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()

	err := s.repo.Insert(ctx, repository.Entry{
		OrganizationID: e.OrganizationID,
		LeadID:         e.LeadID,
		ContactID:      e.ContactID,
		Action:         e.Action,
		Description:    e.Description,
		UserID:         e.UserID,
	})
	if err == nil {
		return
	}

	entity, id := "lead", ""
	if e.LeadID != nil {
		id = e.LeadID.String()
	} else {
		entity, id = "contact", e.ContactID.String()
	}
	s.log.WithContext(ctx).HistoryWriteFailed(entity, id, e.Action, err)
	s.metrics.RecordHistoryWriteFailure()
}

func (s *Service) ListForLead(ctx context.Context, leadID uuid.UUID) ([]repository.Entry, error) {
	return s.repo.ListByLead(ctx, leadID)
}

func (s *Service) ListForContact(ctx context.Context, contactID uuid.UUID) ([]repository.Entry, error) {
	return s.repo.ListByContact(ctx, contactID)
}
