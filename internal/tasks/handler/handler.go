package handler

import (
	"context"
	"net/http"
	"time"

	"travel_crm_backend/internal/access"
	"travel_crm_backend/internal/tasks/repository"
	"travel_crm_backend/internal/tasks/service"
	"travel_crm_backend/internal/tasks/transport"
	"travel_crm_backend/platform/httpkit"
	"travel_crm_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ReminderTrigger enqueues an out-of-band reminder scan.
type ReminderTrigger interface {
	TriggerReminderScan(ctx context.Context, requestedBy string) error
}

type Handler struct {
	svc   *service.Service
	val   *validator.Validator
	scans ReminderTrigger
}

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

func New(svc *service.Service, val *validator.Validator, scans ReminderTrigger) *Handler {
	return &Handler{svc: svc, val: val, scans: scans}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Create)
	rg.POST("/:id/complete", h.Complete)
	rg.DELETE("/:id", h.Delete)
}

// RegisterAdminRoutes mounts maintenance endpoints. Nothing is mounted
// without a reminder queue.
func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	if h.scans == nil {
		return
	}
	rg.POST("/reminders/scan", h.TriggerScan)
}

func (h *Handler) TriggerScan(c *gin.Context) {
	scope, ok := access.MustScope(c)
	if !ok {
		return
	}
	if err := h.scans.TriggerReminderScan(c.Request.Context(), scope.UserID.String()); err != nil {
		httpkit.HandleError(c, err)
		return
	}
	httpkit.JSON(c, http.StatusAccepted, gin.H{"status": "queued"})
}

func (h *Handler) List(c *gin.Context) {
	scope, ok := access.MustScope(c)
	if !ok {
		return
	}
	var req transport.ListTasksRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return
	}

	filter := service.ListFilter{Mine: req.Mine, OpenOnly: req.OpenOnly, Page: req.Page, PageSize: req.PageSize}
	for _, p := range []struct {
		name string
		raw  string
		dst  **uuid.UUID
	}{
		{"organizationId", req.OrganizationID, &filter.OrganizationID},
		{"assignedTo", req.AssignedTo, &filter.AssignedTo},
		{"leadId", req.LeadID, &filter.LeadID},
		{"contactId", req.ContactID, &filter.ContactID},
	} {
		if p.raw == "" {
			continue
		}
		id, err := uuid.Parse(p.raw)
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, "invalid "+p.name, nil)
			return
		}
		*p.dst = &id
	}
	if req.DueBefore != "" {
		t, err := time.Parse(time.RFC3339, req.DueBefore)
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, "invalid dueBefore", nil)
			return
		}
		filter.DueBefore = &t
	}

	result, err := h.svc.List(c.Request.Context(), scope, filter)
	if httpkit.HandleError(c, err) {
		return
	}
	items := make([]transport.TaskResponse, 0, len(result.Items))
	for _, t := range result.Items {
		items = append(items, toResponse(t))
	}
	httpkit.OK(c, transport.TaskListResponse{Items: items, Total: result.Total, Page: result.Page, PageSize: result.PageSize})
}

func (h *Handler) Create(c *gin.Context) {
	scope, ok := access.MustScope(c)
	if !ok {
		return
	}
	var req transport.CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return
	}
	task, err := h.svc.Create(c.Request.Context(), scope, service.CreateInput{
		OrganizationID: req.OrganizationID,
		Title:          req.Title,
		DueAt:          req.DueAt,
		AssignedTo:     req.AssignedTo,
		LeadID:         req.LeadID,
		ContactID:      req.ContactID,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, toResponse(task))
}

func (h *Handler) Complete(c *gin.Context) {
	scope, ok := access.MustScope(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid id", nil)
		return
	}
	task, err := h.svc.Complete(c.Request.Context(), scope, id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toResponse(task))
}

func (h *Handler) Delete(c *gin.Context) {
	scope, ok := access.MustScope(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid id", nil)
		return
	}
	if httpkit.HandleError(c, h.svc.Delete(c.Request.Context(), scope, id)) {
		return
	}
	c.Status(http.StatusNoContent)
}

func toResponse(t repository.Task) transport.TaskResponse {
	return transport.TaskResponse{
		ID:             t.ID,
		OrganizationID: t.OrganizationID,
		LeadID:         t.LeadID,
		ContactID:      t.ContactID,
		AssignedTo:     t.AssignedTo,
		Title:          t.Title,
		DueAt:          t.DueAt,
		DoneAt:         t.DoneAt,
		CreatedBy:      t.CreatedBy,
		CreatedAt:      t.CreatedAt,
	}
}
