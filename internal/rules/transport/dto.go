package transport

import (
	"time"

	"github.com/google/uuid"
)

type CreateRuleRequest struct {
	OrganizationID *uuid.UUID  `json:"organizationId"`
	Type           string      `json:"type" validate:"required,oneof=campaign province"`
	Condition      string      `json:"condition" validate:"required,notblank,max=200"`
	AssignedUsers  []uuid.UUID `json:"assignedUsers" validate:"max=100"`
	Active         *bool       `json:"active"`
	Priority       int         `json:"priority"`
}

type UpdateRuleRequest struct {
	OrganizationID *uuid.UUID   `json:"organizationId"`
	Type           *string      `json:"type" validate:"omitempty,oneof=campaign province"`
	Condition      *string      `json:"condition" validate:"omitempty,notblank,max=200"`
	AssignedUsers  *[]uuid.UUID `json:"assignedUsers"`
	Active         *bool        `json:"active"`
	Priority       *int         `json:"priority"`
}

type ToggleRuleRequest struct {
	Active bool `json:"active"`
}

type RuleResponse struct {
	ID             uuid.UUID   `json:"id"`
	OrganizationID uuid.UUID   `json:"organizationId"`
	Type           string      `json:"type"`
	Condition      string      `json:"condition"`
	AssignedUsers  []uuid.UUID `json:"assignedUsers"`
	Active         bool        `json:"active"`
	Priority       int         `json:"priority"`
	CreatedAt      time.Time   `json:"createdAt"`
	UpdatedAt      time.Time   `json:"updatedAt"`
}
