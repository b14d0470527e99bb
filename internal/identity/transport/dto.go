package transport

import (
	"time"

	"github.com/google/uuid"
)

type CreateOrganizationRequest struct {
	Name string `json:"name" validate:"required,notblank,max=200"`
}

type OrganizationResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

type CreateBranchRequest struct {
	OrganizationID *uuid.UUID `json:"organizationId"`
	Name           string     `json:"name" validate:"required,notblank,max=200"`
	Province       *string    `json:"province" validate:"omitempty,max=100"`
}

type BranchResponse struct {
	ID             uuid.UUID `json:"id"`
	OrganizationID uuid.UUID `json:"organizationId"`
	Name           string    `json:"name"`
	Province       *string   `json:"province,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

type RegisterUserRequest struct {
	ID             uuid.UUID  `json:"id" validate:"required"`
	OrganizationID *uuid.UUID `json:"organizationId"`
	BranchID       *uuid.UUID `json:"branchId"`
	FullName       string     `json:"fullName" validate:"required,notblank,max=200"`
	Email          string     `json:"email" validate:"required,email"`
	Role           string     `json:"role" validate:"required,oneof=super_admin admin manager agent"`
}

type UpdateUserRequest struct {
	Role        *string    `json:"role" validate:"omitempty,oneof=super_admin admin manager agent"`
	BranchID    *uuid.UUID `json:"branchId"`
	ClearBranch bool       `json:"clearBranch"`
	Active      *bool      `json:"active"`
	FullName    *string    `json:"fullName" validate:"omitempty,notblank,max=200"`
}

type UserResponse struct {
	ID             uuid.UUID  `json:"id"`
	OrganizationID uuid.UUID  `json:"organizationId"`
	BranchID       *uuid.UUID `json:"branchId,omitempty"`
	FullName       string     `json:"fullName"`
	Email          string     `json:"email"`
	Role           string     `json:"role"`
	Active         bool       `json:"active"`
	CreatedAt      time.Time  `json:"createdAt"`
}

type UserListResponse struct {
	Items []UserResponse `json:"items"`
}
