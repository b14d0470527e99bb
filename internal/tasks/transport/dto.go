package transport

import (
	"time"

	"github.com/google/uuid"
)

type CreateTaskRequest struct {
	OrganizationID *uuid.UUID `json:"organizationId"`
	Title          string     `json:"title" validate:"required,notblank,max=200"`
	DueAt          time.Time  `json:"dueAt" validate:"required"`
	AssignedTo     *uuid.UUID `json:"assignedTo"`
	LeadID         *uuid.UUID `json:"leadId"`
	ContactID      *uuid.UUID `json:"contactId"`
}

type ListTasksRequest struct {
	OrganizationID string `form:"organizationId"`
	Mine           bool   `form:"mine"`
	AssignedTo     string `form:"assignedTo"`
	LeadID         string `form:"leadId"`
	ContactID      string `form:"contactId"`
	OpenOnly       bool   `form:"open"`
	DueBefore      string `form:"dueBefore"`
	Page           int    `form:"page" validate:"min=0"`
	PageSize       int    `form:"pageSize" validate:"min=0,max=200"`
}

type TaskResponse struct {
	ID             uuid.UUID  `json:"id"`
	OrganizationID uuid.UUID  `json:"organizationId"`
	LeadID         *uuid.UUID `json:"leadId,omitempty"`
	ContactID      *uuid.UUID `json:"contactId,omitempty"`
	AssignedTo     uuid.UUID  `json:"assignedTo"`
	Title          string     `json:"title"`
	DueAt          time.Time  `json:"dueAt"`
	DoneAt         *time.Time `json:"doneAt,omitempty"`
	CreatedBy      *uuid.UUID `json:"createdBy,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
}

type TaskListResponse struct {
	Items    []TaskResponse `json:"items"`
	Total    int            `json:"total"`
	Page     int            `json:"page"`
	PageSize int            `json:"pageSize"`
}
