package handler

import (
	"net/http"

	"travel_crm_backend/internal/access"
	"travel_crm_backend/internal/rules/repository"
	"travel_crm_backend/internal/rules/service"
	"travel_crm_backend/internal/rules/transport"
	"travel_crm_backend/platform/httpkit"
	"travel_crm_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Handler struct {
	svc *service.Service
	val *validator.Validator
}

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidRuleID    = "invalid rule id"
)

func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Create)
	rg.PUT("/:id", h.Update)
	rg.PATCH("/:id/active", h.Toggle)
	rg.DELETE("/:id", h.Delete)
}

func (h *Handler) List(c *gin.Context) {
	scope, ok := access.MustScope(c)
	if !ok {
		return
	}
	orgID, ok := queryOrganization(c)
	if !ok {
		return
	}
	rules, err := h.svc.List(c.Request.Context(), scope, orgID)
	if httpkit.HandleError(c, err) {
		return
	}
	items := make([]transport.RuleResponse, 0, len(rules))
	for _, r := range rules {
		items = append(items, toResponse(r))
	}
	httpkit.OK(c, gin.H{"items": items})
}

func (h *Handler) Create(c *gin.Context) {
	scope, ok := access.MustScope(c)
	if !ok {
		return
	}
	var req transport.CreateRuleRequest
	if !h.bind(c, &req) {
		return
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	rule, err := h.svc.Create(c.Request.Context(), scope, req.OrganizationID, service.RuleInput{
		Type:          req.Type,
		Condition:     req.Condition,
		AssignedUsers: req.AssignedUsers,
		Active:        active,
		Priority:      req.Priority,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, toResponse(rule))
}

func (h *Handler) Update(c *gin.Context) {
	scope, ok := access.MustScope(c)
	if !ok {
		return
	}
	id, ok := ruleID(c)
	if !ok {
		return
	}
	var req transport.UpdateRuleRequest
	if !h.bind(c, &req) {
		return
	}
	rule, err := h.svc.Update(c.Request.Context(), scope, req.OrganizationID, id, service.RuleUpdateInput{
		Type:          req.Type,
		Condition:     req.Condition,
		AssignedUsers: req.AssignedUsers,
		Active:        req.Active,
		Priority:      req.Priority,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toResponse(rule))
}

func (h *Handler) Toggle(c *gin.Context) {
	scope, ok := access.MustScope(c)
	if !ok {
		return
	}
	id, ok := ruleID(c)
	if !ok {
		return
	}
	orgID, ok := queryOrganization(c)
	if !ok {
		return
	}
	var req transport.ToggleRuleRequest
	if !h.bind(c, &req) {
		return
	}
	rule, err := h.svc.SetActive(c.Request.Context(), scope, orgID, id, req.Active)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toResponse(rule))
}

func (h *Handler) Delete(c *gin.Context) {
	scope, ok := access.MustScope(c)
	if !ok {
		return
	}
	id, ok := ruleID(c)
	if !ok {
		return
	}
	orgID, ok := queryOrganization(c)
	if !ok {
		return
	}
	if httpkit.HandleError(c, h.svc.Delete(c.Request.Context(), scope, orgID, id)) {
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return false
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return false
	}
	return true
}

func ruleID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRuleID, nil)
		return uuid.UUID{}, false
	}
	return id, true
}

func queryOrganization(c *gin.Context) (*uuid.UUID, bool) {
	raw := c.Query("organizationId")
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid organizationId", nil)
		return nil, false
	}
	return &id, true
}

func toResponse(r repository.Rule) transport.RuleResponse {
	return transport.RuleResponse{
		ID:             r.ID,
		OrganizationID: r.OrganizationID,
		Type:           r.Type,
		Condition:      r.Condition,
		AssignedUsers:  r.AssignedUsers,
		Active:         r.Active,
		Priority:       r.Priority,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}
