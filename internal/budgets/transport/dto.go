package transport

import (
	"time"

	"github.com/google/uuid"
)

type MarginConfig struct {
	BaseCost      float64 `json:"baseCost" validate:"min=0"`
	MarginPercent float64 `json:"marginPercent" validate:"min=0,max=1000"`
	Currency      string  `json:"currency" validate:"omitempty,len=3,alpha"`
}

type CreateBudgetRequest struct {
	OrganizationID *uuid.UUID    `json:"organizationId"`
	Title          string        `json:"title" validate:"required,notblank,max=200"`
	ContactID      *uuid.UUID    `json:"contactId"`
	LeadID         *uuid.UUID    `json:"leadId" validate:"excluded_with=ContactID"`
	Description    string        `json:"description" validate:"max=200000"`
	TemplateID     *uuid.UUID    `json:"templateId"`
	MarginConfig   *MarginConfig `json:"marginConfig"`
}

type UpdateBudgetRequest struct {
	Title         *string       `json:"title" validate:"omitempty,notblank,max=200"`
	Description   *string       `json:"description" validate:"omitempty,max=200000"`
	TemplateID    *uuid.UUID    `json:"templateId"`
	ClearTemplate bool          `json:"clearTemplate"`
	MarginConfig  *MarginConfig `json:"marginConfig"`
}

type UpdateBudgetStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=not_sent sent approved rejected"`
}

type ListBudgetsRequest struct {
	OrganizationID string `form:"organizationId"`
	Status         string `form:"status" validate:"omitempty,oneof=not_sent sent approved rejected"`
	ContactID      string `form:"contactId"`
	LeadID         string `form:"leadId"`
	Search         string `form:"search" validate:"max=100"`
	Page           int    `form:"page" validate:"min=0"`
	PageSize       int    `form:"pageSize" validate:"min=0,max=100"`
}

type BudgetResponse struct {
	ID             uuid.UUID     `json:"id"`
	OrganizationID uuid.UUID     `json:"organizationId"`
	BranchID       *uuid.UUID    `json:"branchId,omitempty"`
	Title          string        `json:"title"`
	ContactID      *uuid.UUID    `json:"contactId,omitempty"`
	LeadID         *uuid.UUID    `json:"leadId,omitempty"`
	Status         string        `json:"status"`
	Description    string        `json:"description"`
	TemplateID     *uuid.UUID    `json:"templateId,omitempty"`
	Slug           string        `json:"slug"`
	PublicURL      string        `json:"publicUrl"`
	Version        int           `json:"version"`
	HasPDF         bool          `json:"hasPdf"`
	MarginConfig   *MarginConfig `json:"marginConfig,omitempty"`
	FinalPrice     *float64      `json:"finalPrice,omitempty"`
	CreatedBy      *uuid.UUID    `json:"createdBy,omitempty"`
	CreatedAt      time.Time     `json:"createdAt"`
	UpdatedAt      time.Time     `json:"updatedAt"`
}

type BudgetListResponse struct {
	Items      []BudgetResponse `json:"items"`
	Total      int              `json:"total"`
	Page       int              `json:"page"`
	PageSize   int              `json:"pageSize"`
	TotalPages int              `json:"totalPages"`
}

type VersionResponse struct {
	Version     int        `json:"version"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	ChangeKind  string     `json:"changeKind"`
	ChangedBy   *uuid.UUID `json:"changedBy,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

type PDFLinkResponse struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type CreateTemplateRequest struct {
	OrganizationID *uuid.UUID `json:"organizationId"`
	Name           string     `json:"name" validate:"required,notblank,max=120"`
	Body           string     `json:"body" validate:"max=200000"`
}

type UpdateTemplateRequest struct {
	Name *string `json:"name" validate:"omitempty,notblank,max=120"`
	Body *string `json:"body" validate:"omitempty,max=200000"`
}

type TemplateResponse struct {
	ID             uuid.UUID `json:"id"`
	OrganizationID uuid.UUID `json:"organizationId"`
	Name           string    `json:"name"`
	Body           string    `json:"body"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}
