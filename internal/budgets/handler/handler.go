package handler

import (
	"net/http"
	"strings"

	"travel_crm_backend/internal/access"
	"travel_crm_backend/internal/budgets/domain"
	"travel_crm_backend/internal/budgets/repository"
	"travel_crm_backend/internal/budgets/service"
	"travel_crm_backend/internal/budgets/transport"
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
	msgInvalidID        = "invalid id"
	htmlContentType     = "text/html; charset=utf-8"
)

func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Create)
	rg.GET("/:id", h.Get)
	rg.PUT("/:id", h.Update)
	rg.DELETE("/:id", h.Delete)
	rg.PATCH("/:id/status", h.UpdateStatus)
	rg.GET("/:id/versions", h.Versions)
	rg.GET("/:id/render", h.Render)
	rg.POST("/:id/pdf", h.GeneratePDF)
	rg.GET("/:id/pdf", h.DownloadPDF)
}

func (h *Handler) RegisterTemplateRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.ListTemplates)
	rg.POST("", h.CreateTemplate)
	rg.PUT("/:id", h.UpdateTemplate)
	rg.DELETE("/:id", h.DeleteTemplate)
}

func (h *Handler) RegisterPublicRoutes(rg *gin.RouterGroup) {
	rg.GET("/:slug", h.PublicView)
}

func (h *Handler) List(c *gin.Context) {
	scope, ok := access.MustScope(c)
	if !ok {
		return
	}
	var req transport.ListBudgetsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return
	}
	orgID, ok := parseOptionalUUID(c, "organizationId", req.OrganizationID)
	if !ok {
		return
	}
	contactID, ok := parseOptionalUUID(c, "contactId", req.ContactID)
	if !ok {
		return
	}
	leadID, ok := parseOptionalUUID(c, "leadId", req.LeadID)
	if !ok {
		return
	}
	var status *string
	if req.Status != "" {
		status = &req.Status
	}

	result, err := h.svc.List(c.Request.Context(), scope, service.ListFilter{
		OrganizationID: orgID,
		Status:         status,
		ContactID:      contactID,
		LeadID:         leadID,
		Search:         strings.TrimSpace(req.Search),
		Page:           req.Page,
		PageSize:       req.PageSize,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	items := make([]transport.BudgetResponse, 0, len(result.Items))
	for _, v := range result.Items {
		items = append(items, toResponse(v))
	}
	httpkit.OK(c, transport.BudgetListResponse{
		Items:      items,
		Total:      result.Total,
		Page:       result.Page,
		PageSize:   result.PageSize,
		TotalPages: result.TotalPages,
	})
}

func (h *Handler) Create(c *gin.Context) {
	scope, ok := access.MustScope(c)
	if !ok {
		return
	}
	var req transport.CreateBudgetRequest
	if !h.bind(c, &req) {
		return
	}
	v, err := h.svc.Create(c.Request.Context(), scope, service.CreateInput{
		OrganizationID: req.OrganizationID,
		Title:          req.Title,
		ContactID:      req.ContactID,
		LeadID:         req.LeadID,
		Description:    req.Description,
		TemplateID:     req.TemplateID,
		Margin:         toMargin(req.MarginConfig),
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, toResponse(v))
}

func (h *Handler) Get(c *gin.Context) {
	scope, ok := access.MustScope(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	v, err := h.svc.Get(c.Request.Context(), scope, id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toResponse(v))
}

func (h *Handler) Update(c *gin.Context) {
	scope, ok := access.MustScope(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req transport.UpdateBudgetRequest
	if !h.bind(c, &req) {
		return
	}
	v, err := h.svc.Update(c.Request.Context(), scope, id, service.UpdateInput{
		Title:         req.Title,
		Description:   req.Description,
		TemplateID:    req.TemplateID,
		ClearTemplate: req.ClearTemplate,
		Margin:        toMargin(req.MarginConfig),
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toResponse(v))
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	scope, ok := access.MustScope(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req transport.UpdateBudgetStatusRequest
	if !h.bind(c, &req) {
		return
	}
	v, err := h.svc.UpdateStatus(c.Request.Context(), scope, id, req.Status)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toResponse(v))
}

func (h *Handler) Delete(c *gin.Context) {
	scope, ok := access.MustScope(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	if httpkit.HandleError(c, h.svc.Delete(c.Request.Context(), scope, id)) {
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) Versions(c *gin.Context) {
	scope, ok := access.MustScope(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	versions, err := h.svc.Versions(c.Request.Context(), scope, id)
	if httpkit.HandleError(c, err) {
		return
	}
	items := make([]transport.VersionResponse, 0, len(versions))
	for _, v := range versions {
		items = append(items, transport.VersionResponse{
			Version:     v.Version,
			Title:       v.Title,
			Description: v.Description,
			Status:      v.Status,
			ChangeKind:  v.ChangeKind,
			ChangedBy:   v.ChangedBy,
			CreatedAt:   v.CreatedAt,
		})
	}
	httpkit.OK(c, gin.H{"items": items})
}

func (h *Handler) Render(c *gin.Context) {
	scope, ok := access.MustScope(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	doc, err := h.svc.Render(c.Request.Context(), scope, id)
	if httpkit.HandleError(c, err) {
		return
	}
	c.Data(http.StatusOK, htmlContentType, doc)
}

func (h *Handler) GeneratePDF(c *gin.Context) {
	scope, ok := access.MustScope(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	link, err := h.svc.GeneratePDF(c.Request.Context(), scope, id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, transport.PDFLinkResponse{URL: link.URL, ExpiresAt: link.ExpiresAt})
}

func (h *Handler) DownloadPDF(c *gin.Context) {
	scope, ok := access.MustScope(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	link, err := h.svc.PDFDownloadURL(c.Request.Context(), scope, id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.PDFLinkResponse{URL: link.URL, ExpiresAt: link.ExpiresAt})
}

func (h *Handler) PublicView(c *gin.Context) {
	slug := strings.TrimSpace(c.Param("slug"))
	if slug == "" || len(slug) > 120 {
		httpkit.Error(c, http.StatusNotFound, "budget not found", nil)
		return
	}
	doc, err := h.svc.RenderPublic(c.Request.Context(), slug)
	if httpkit.HandleError(c, err) {
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, htmlContentType, doc)
}

func (h *Handler) ListTemplates(c *gin.Context) {
	scope, ok := access.MustScope(c)
	if !ok {
		return
	}
	orgID, ok := parseOptionalUUID(c, "organizationId", c.Query("organizationId"))
	if !ok {
		return
	}
	templates, err := h.svc.ListTemplates(c.Request.Context(), scope, orgID)
	if httpkit.HandleError(c, err) {
		return
	}
	items := make([]transport.TemplateResponse, 0, len(templates))
	for _, t := range templates {
		items = append(items, toTemplateResponse(t))
	}
	httpkit.OK(c, gin.H{"items": items})
}

func (h *Handler) CreateTemplate(c *gin.Context) {
	scope, ok := access.MustScope(c)
	if !ok {
		return
	}
	var req transport.CreateTemplateRequest
	if !h.bind(c, &req) {
		return
	}
	t, err := h.svc.CreateTemplate(c.Request.Context(), scope, service.TemplateInput{
		OrganizationID: req.OrganizationID,
		Name:           req.Name,
		Body:           req.Body,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, toTemplateResponse(t))
}

func (h *Handler) UpdateTemplate(c *gin.Context) {
	scope, ok := access.MustScope(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	orgID, ok := parseOptionalUUID(c, "organizationId", c.Query("organizationId"))
	if !ok {
		return
	}
	var req transport.UpdateTemplateRequest
	if !h.bind(c, &req) {
		return
	}
	t, err := h.svc.UpdateTemplate(c.Request.Context(), scope, orgID, id, service.TemplateUpdateInput{
		Name: req.Name,
		Body: req.Body,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toTemplateResponse(t))
}

func (h *Handler) DeleteTemplate(c *gin.Context) {
	scope, ok := access.MustScope(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	orgID, ok := parseOptionalUUID(c, "organizationId", c.Query("organizationId"))
	if !ok {
		return
	}
	if httpkit.HandleError(c, h.svc.DeleteTemplate(c.Request.Context(), scope, orgID, id)) {
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

func pathID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return uuid.UUID{}, false
	}
	return id, true
}

func parseOptionalUUID(c *gin.Context, name, raw string) (*uuid.UUID, bool) {
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid "+name, nil)
		return nil, false
	}
	return &id, true
}

func toMargin(m *transport.MarginConfig) *domain.MarginConfig {
	if m == nil {
		return nil
	}
	return &domain.MarginConfig{BaseCost: m.BaseCost, MarginPercent: m.MarginPercent, Currency: strings.ToUpper(m.Currency)}
}

func toResponse(v service.View) transport.BudgetResponse {
	b := v.Budget
	resp := transport.BudgetResponse{
		ID:             b.ID,
		OrganizationID: b.OrganizationID,
		BranchID:       b.BranchID,
		Title:          b.Title,
		ContactID:      b.ContactID,
		LeadID:         b.LeadID,
		Status:         b.Status,
		Description:    b.Description,
		TemplateID:     b.TemplateID,
		Slug:           b.Slug,
		PublicURL:      v.PublicURL,
		Version:        b.Version,
		HasPDF:         b.PDFFileKey != nil,
		FinalPrice:     v.FinalPrice,
		CreatedBy:      b.CreatedBy,
		CreatedAt:      b.CreatedAt,
		UpdatedAt:      b.UpdatedAt,
	}
	if v.Margin != nil {
		resp.MarginConfig = &transport.MarginConfig{
			BaseCost:      v.Margin.BaseCost,
			MarginPercent: v.Margin.MarginPercent,
			Currency:      v.Margin.Currency,
		}
	}
	return resp
}

func toTemplateResponse(t repository.Template) transport.TemplateResponse {
	return transport.TemplateResponse{
		ID:             t.ID,
		OrganizationID: t.OrganizationID,
		Name:           t.Name,
		Body:           t.Body,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
	}
}
