package adapters

import (
	"context"
	"errors"

	contactsrepo "travel_crm_backend/internal/contacts/repository"
	inboxsvc "travel_crm_backend/internal/inbox/service"

	"github.com/google/uuid"
)

// InboxContacts exposes contact ownership to the inbox.
type InboxContacts struct {
	contacts ContactGetter
}

func NewInboxContacts(contacts ContactGetter) *InboxContacts {
	return &InboxContacts{contacts: contacts}
}

func (a *InboxContacts) Contact(ctx context.Context, id uuid.UUID) (inboxsvc.Contact, error) {
	c, err := a.contacts.GetByID(ctx, id)
	if errors.Is(err, contactsrepo.ErrNotFound) {
		return inboxsvc.Contact{}, inboxsvc.ErrContactNotFound
	}
	if err != nil {
		return inboxsvc.Contact{}, err
	}
	return inboxsvc.Contact{
		ID:             c.ID,
		OrganizationID: c.OrganizationID,
		BranchID:       c.BranchID,
		AssignedTo:     c.AssignedTo,
		FullName:       c.FullName,
	}, nil
}

var _ inboxsvc.Contacts = (*InboxContacts)(nil)
