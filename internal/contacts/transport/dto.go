package transport

import (
	"time"

	"github.com/google/uuid"
)

type CreateContactRequest struct {
	OrganizationID *uuid.UUID `json:"organizationId"`
	BranchID       *uuid.UUID `json:"branchId"`
	FullName       string     `json:"fullName" validate:"required,notblank,max=200"`
	Phone          string     `json:"phone" validate:"required,notblank,max=40"`
	Email          *string    `json:"email" validate:"omitempty,email,max=200"`
	City           *string    `json:"city" validate:"omitempty,max=120"`
	Province       *string    `json:"province" validate:"omitempty,max=120"`
	Origin         *string    `json:"origin" validate:"omitempty,max=200"`
	Passengers     *int       `json:"passengers" validate:"omitempty,min=1,max=500"`
	TravelDate     *string    `json:"travelDate" validate:"omitempty,datetime=2006-01-02"`
	Tag            *string    `json:"tag" validate:"omitempty,oneof=assigned contacted followed interested reserved liquidated effective_reservation"`
	AssignedTo     *uuid.UUID `json:"assignedTo"`
	Notes          *string    `json:"notes" validate:"omitempty,max=4000"`
}

type UpdateContactRequest struct {
	FullName   *string    `json:"fullName" validate:"omitempty,notblank,max=200"`
	Phone      *string    `json:"phone" validate:"omitempty,notblank,max=40"`
	Email      *string    `json:"email" validate:"omitempty,email,max=200"`
	City       *string    `json:"city" validate:"omitempty,max=120"`
	Province   *string    `json:"province" validate:"omitempty,max=120"`
	Origin     *string    `json:"origin" validate:"omitempty,max=200"`
	Passengers *int       `json:"passengers" validate:"omitempty,min=1,max=500"`
	TravelDate *string    `json:"travelDate" validate:"omitempty,datetime=2006-01-02"`
	Tag        *string    `json:"tag" validate:"omitempty,oneof=assigned contacted followed interested reserved liquidated effective_reservation"`
	AssignedTo *uuid.UUID `json:"assignedTo"`
	Notes      *string    `json:"notes" validate:"omitempty,max=4000"`
}

type ListContactsRequest struct {
	OrganizationID string `form:"organizationId"`
	Search         string `form:"search" validate:"max=100"`
	Tag            string `form:"tag" validate:"omitempty,oneof=assigned contacted followed interested reserved liquidated effective_reservation"`
	AssignedTo     string `form:"assignedTo"`
	Page           int    `form:"page" validate:"min=0"`
	PageSize       int    `form:"pageSize" validate:"min=0,max=100"`
}

type ContactResponse struct {
	ID                        uuid.UUID  `json:"id"`
	OrganizationID            uuid.UUID  `json:"organizationId"`
	BranchID                  *uuid.UUID `json:"branchId,omitempty"`
	FullName                  string     `json:"fullName"`
	Phone                     string     `json:"phone"`
	Email                     *string    `json:"email,omitempty"`
	City                      *string    `json:"city,omitempty"`
	Province                  *string    `json:"province,omitempty"`
	Origin                    *string    `json:"origin,omitempty"`
	Passengers                *int       `json:"passengers,omitempty"`
	TravelDate                *string    `json:"travelDate,omitempty"`
	Tag                       *string    `json:"tag,omitempty"`
	AssignedTo                *uuid.UUID `json:"assignedTo,omitempty"`
	Notes                     *string    `json:"notes,omitempty"`
	OriginalLeadID            *uuid.UUID `json:"originalLeadId,omitempty"`
	OriginalLeadStatus        *string    `json:"originalLeadStatus,omitempty"`
	OriginalLeadInquiryNumber *string    `json:"originalLeadInquiryNumber,omitempty"`
	CreatedAt                 time.Time  `json:"createdAt"`
	UpdatedAt                 time.Time  `json:"updatedAt"`
}

type ContactListResponse struct {
	Items      []ContactResponse `json:"items"`
	Total      int               `json:"total"`
	Page       int               `json:"page"`
	PageSize   int               `json:"pageSize"`
	TotalPages int               `json:"totalPages"`
}

type HistoryEntryResponse struct {
	ID          uuid.UUID  `json:"id"`
	Action      string     `json:"action"`
	Description string     `json:"description"`
	UserID      *uuid.UUID `json:"userId,omitempty"`
	UserName    string     `json:"userName,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}
