package transport

import (
	"time"

	"github.com/google/uuid"
)

type CreateLeadRequest struct {
	OrganizationID *uuid.UUID `json:"organizationId"`
	BranchID       *uuid.UUID `json:"branchId"`
	FullName       string     `json:"fullName" validate:"required,notblank,max=200"`
	Phone          string     `json:"phone" validate:"required,notblank,max=40"`
	Email          *string    `json:"email" validate:"omitempty,email,max=200"`
	Origin         *string    `json:"origin" validate:"omitempty,max=200"`
	Province       *string    `json:"province" validate:"omitempty,max=100"`
	City           *string    `json:"city" validate:"omitempty,max=100"`
	Passengers     *int       `json:"passengers" validate:"omitempty,min=0,max=500"`
	TravelDate     *string    `json:"travelDate" validate:"omitempty,datetime=2006-01-02"`
	Notes          *string    `json:"notes" validate:"omitempty,max=4000"`
	AssignedTo     *uuid.UUID `json:"assignedTo"`
	Source         string     `json:"source" validate:"omitempty,oneof=manual import form"`
}

type UpdateLeadRequest struct {
	FullName   *string    `json:"fullName" validate:"omitempty,notblank,max=200"`
	Phone      *string    `json:"phone" validate:"omitempty,notblank,max=40"`
	Email      *string    `json:"email" validate:"omitempty,email,max=200"`
	Origin     *string    `json:"origin" validate:"omitempty,max=200"`
	Province   *string    `json:"province" validate:"omitempty,max=100"`
	City       *string    `json:"city" validate:"omitempty,max=100"`
	Passengers *int       `json:"passengers" validate:"omitempty,min=0,max=500"`
	TravelDate *string    `json:"travelDate" validate:"omitempty,datetime=2006-01-02"`
	Notes      *string    `json:"notes" validate:"omitempty,max=4000"`
	BranchID   *uuid.UUID `json:"branchId"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type AssignRequest struct {
	AssigneeID OptionalUUID `json:"assigneeId"`
}

type ArchiveRequest struct {
	Reason *string `json:"reason" validate:"omitempty,max=1000"`
}

type BulkAssignRequest struct {
	LeadIDs     []uuid.UUID  `json:"leadIds" validate:"max=5000"`
	AllFiltered bool         `json:"allFiltered"`
	Filter      ListRequest  `json:"filter"`
	AssigneeID  OptionalUUID `json:"assigneeId"`
}

// ListRequest is bound from the query string of GET /leads and reused as the
// filter of bulk assignment.
type ListRequest struct {
	OrganizationID  string `form:"organizationId" json:"organizationId"`
	BranchID        string `form:"branchId" json:"branchId"`
	Search          string `form:"search" json:"search"`
	Origin          string `form:"origin" json:"origin"`
	Province        string `form:"province" json:"province"`
	Status          string `form:"status" json:"status"`
	AssignedTo      string `form:"assignedTo" json:"assignedTo"`
	Unassigned      bool   `form:"unassigned" json:"unassigned"`
	Source          string `form:"source" json:"source" validate:"omitempty,oneof=manual import form"`
	CreatedFrom     string `form:"createdFrom" json:"createdFrom" validate:"omitempty,datetime=2006-01-02"`
	CreatedTo       string `form:"createdTo" json:"createdTo" validate:"omitempty,datetime=2006-01-02"`
	IncludeArchived bool   `form:"includeArchived" json:"includeArchived"`
	SortBy          string `form:"sortBy" json:"sortBy" validate:"omitempty,oneof=createdAt updatedAt fullName inquiryNumber status travelDate"`
	SortOrder       string `form:"sortOrder" json:"sortOrder" validate:"omitempty,oneof=asc desc"`
	Page            int    `form:"page" json:"page" validate:"omitempty,min=1"`
	PageSize        int    `form:"pageSize" json:"pageSize" validate:"omitempty,min=1,max=100"`
}

type LeadResponse struct {
	ID                 uuid.UUID  `json:"id"`
	OrganizationID     uuid.UUID  `json:"organizationId"`
	BranchID           *uuid.UUID `json:"branchId,omitempty"`
	InquiryNumber      string     `json:"inquiryNumber"`
	FullName           string     `json:"fullName"`
	Phone              string     `json:"phone"`
	Email              *string    `json:"email,omitempty"`
	Origin             *string    `json:"origin,omitempty"`
	Province           *string    `json:"province,omitempty"`
	City               *string    `json:"city,omitempty"`
	Passengers         *int       `json:"passengers,omitempty"`
	TravelDate         *string    `json:"travelDate,omitempty"`
	Status             string     `json:"status"`
	AssignedTo         *uuid.UUID `json:"assignedTo,omitempty"`
	ConvertedToContact *bool      `json:"convertedToContact"`
	ArchivedReason     *string    `json:"archivedReason,omitempty"`
	ArchivedAt         *time.Time `json:"archivedAt,omitempty"`
	Notes              *string    `json:"notes,omitempty"`
	Source             string     `json:"source"`
	CreatedBy          *uuid.UUID `json:"createdBy,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

type LeadListResponse struct {
	Items      []LeadResponse `json:"items"`
	Total      int            `json:"total"`
	Page       int            `json:"page"`
	PageSize   int            `json:"pageSize"`
	TotalPages int            `json:"totalPages"`
}

type StatusResponse struct {
	Lead           LeadResponse `json:"lead"`
	ContactID      *uuid.UUID   `json:"contactId,omitempty"`
	ContactCreated bool         `json:"contactCreated"`
	Notice         string       `json:"notice,omitempty"`
}

type AssignResponse struct {
	Lead           LeadResponse `json:"lead"`
	Transition     string       `json:"transition"`
	ContactID      *uuid.UUID   `json:"contactId,omitempty"`
	ContactCreated bool         `json:"contactCreated"`
}

type BulkAssignResponse struct {
	Succeeded int         `json:"succeeded"`
	Failed    int         `json:"failed"`
	FailedIDs []uuid.UUID `json:"failedIds"`
}

type DuplicateCheckResponse struct {
	IsDuplicate  bool          `json:"isDuplicate"`
	ExistingLead *LeadResponse `json:"existingLead,omitempty"`
}

type HistoryEntryResponse struct {
	ID          uuid.UUID  `json:"id"`
	Action      string     `json:"action"`
	Description string     `json:"description"`
	UserID      *uuid.UUID `json:"userId,omitempty"`
	UserName    string     `json:"userName,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

type ImportErrorResponse struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

type ImportResponse struct {
	Imported int                   `json:"imported"`
	Failed   int                   `json:"failed"`
	Errors   []ImportErrorResponse `json:"errors"`
}
