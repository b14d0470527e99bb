package adapters

import (
	"context"
	"errors"

	contactsrepo "travel_crm_backend/internal/contacts/repository"
	leadsrepo "travel_crm_backend/internal/leads/repository"
	tasksvc "travel_crm_backend/internal/tasks/service"

	"github.com/google/uuid"
)

// TaskLinks resolves the organization of the lead or contact a task follows up.
type TaskLinks struct {
	contacts ContactGetter
	leads    LeadGetter
}

func NewTaskLinks(contacts ContactGetter, leads LeadGetter) *TaskLinks {
	return &TaskLinks{contacts: contacts, leads: leads}
}

func (a *TaskLinks) LeadOrganization(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	l, err := a.leads.GetByID(ctx, id)
	if errors.Is(err, leadsrepo.ErrNotFound) {
		return uuid.UUID{}, tasksvc.ErrLinkNotFound
	}
	if err != nil {
		return uuid.UUID{}, err
	}
	return l.OrganizationID, nil
}

func (a *TaskLinks) ContactOrganization(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	c, err := a.contacts.GetByID(ctx, id)
	if errors.Is(err, contactsrepo.ErrNotFound) {
		return uuid.UUID{}, tasksvc.ErrLinkNotFound
	}
	if err != nil {
		return uuid.UUID{}, err
	}
	return c.OrganizationID, nil
}

var _ tasksvc.Links = (*TaskLinks)(nil)
