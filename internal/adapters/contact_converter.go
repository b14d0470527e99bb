package adapters

import (
	"context"

	contactsrepo "travel_crm_backend/internal/contacts/repository"
	contactsvc "travel_crm_backend/internal/contacts/service"
	"travel_crm_backend/internal/leads/ports"
)

// ContactCreator is the idempotent insert exposed by the contacts service.
type ContactCreator interface {
	CreateFromLead(ctx context.Context, in contactsvc.FromLeadInput) (contactsrepo.Contact, bool, error)
}

// ContactConverter turns a qualified lead into a contact. It runs inside the
// lead transaction carried by ctx.
type ContactConverter struct {
	contacts ContactCreator
}

func NewContactConverter(contacts ContactCreator) *ContactConverter {
	return &ContactConverter{contacts: contacts}
}

func (a *ContactConverter) CreateFromLead(ctx context.Context, in ports.ContactFromLead) (ports.ContactRef, error) {
	c, created, err := a.contacts.CreateFromLead(ctx, contactsvc.FromLeadInput{
		OrganizationID: in.OrganizationID,
		BranchID:       in.BranchID,
		LeadID:         in.LeadID,
		InquiryNumber:  in.InquiryNumber,
		LeadStatus:     in.LeadStatus,
		Tag:            in.Tag,
		FullName:       in.FullName,
		Phone:          in.Phone,
		Email:          in.Email,
		Origin:         in.Origin,
		Province:       in.Province,
		City:           in.City,
		Passengers:     in.Passengers,
		TravelDate:     in.TravelDate,
		AssignedTo:     in.AssignedTo,
	})
	if err != nil {
		return ports.ContactRef{}, err
	}
	return ports.ContactRef{ID: c.ID, Created: created}, nil
}

var _ ports.ContactConverter = (*ContactConverter)(nil)
