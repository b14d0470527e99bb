package adapters

import (
	"context"
	"errors"

	budgetsvc "travel_crm_backend/internal/budgets/service"
	contactsrepo "travel_crm_backend/internal/contacts/repository"
	leadsrepo "travel_crm_backend/internal/leads/repository"

	"github.com/google/uuid"
)

type ContactGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (contactsrepo.Contact, error)
}

type LeadGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (leadsrepo.Lead, error)
}

// BudgetPeople resolves budget recipients from the contacts and leads stores
// without scope checks. The budgets service enforces organization linkage.
type BudgetPeople struct {
	contacts ContactGetter
	leads    LeadGetter
}

func NewBudgetPeople(contacts ContactGetter, leads LeadGetter) *BudgetPeople {
	return &BudgetPeople{contacts: contacts, leads: leads}
}

func (a *BudgetPeople) Contact(ctx context.Context, id uuid.UUID) (budgetsvc.Person, error) {
	c, err := a.contacts.GetByID(ctx, id)
	if errors.Is(err, contactsrepo.ErrNotFound) {
		return budgetsvc.Person{}, budgetsvc.ErrPersonNotFound
	}
	if err != nil {
		return budgetsvc.Person{}, err
	}
	return budgetsvc.Person{OrganizationID: c.OrganizationID, BranchID: c.BranchID, Name: c.FullName, Email: c.Email}, nil
}

func (a *BudgetPeople) Lead(ctx context.Context, id uuid.UUID) (budgetsvc.Person, error) {
	l, err := a.leads.GetByID(ctx, id)
	if errors.Is(err, leadsrepo.ErrNotFound) {
		return budgetsvc.Person{}, budgetsvc.ErrPersonNotFound
	}
	if err != nil {
		return budgetsvc.Person{}, err
	}
	return budgetsvc.Person{OrganizationID: l.OrganizationID, BranchID: l.BranchID, Name: l.FullName, Email: l.Email}, nil
}

var _ budgetsvc.People = (*BudgetPeople)(nil)
