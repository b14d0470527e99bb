package handler

import (
	"net/http"
	"strings"
	"time"

	"travel_crm_backend/internal/access"
	"travel_crm_backend/internal/contacts/repository"
	"travel_crm_backend/internal/contacts/service"
	"travel_crm_backend/internal/contacts/transport"
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
	msgInvalidContactID = "invalid contact id"
	dateLayout          = "2006-01-02"
)

func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Create)
	rg.GET("/:id", h.Get)
	rg.PUT("/:id", h.Update)
	rg.GET("/:id/history", h.History)
}

func (h *Handler) List(c *gin.Context) {
	scope, ok := access.MustScope(c)
	if !ok {
		return
	}
	var req transport.ListContactsRequest
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
	assignee, ok := parseOptionalUUID(c, "assignedTo", req.AssignedTo)
	if !ok {
		return
	}
	var tag *string
	if req.Tag != "" {
		tag = &req.Tag
	}

	result, err := h.svc.List(c.Request.Context(), scope, service.ListFilter{
		OrganizationID: orgID,
		Search:         strings.TrimSpace(req.Search),
		Tag:            tag,
		AssignedTo:     assignee,
		Page:           req.Page,
		PageSize:       req.PageSize,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	items := make([]transport.ContactResponse, 0, len(result.Items))
	for _, ct := range result.Items {
		items = append(items, toResponse(ct))
	}
	httpkit.OK(c, transport.ContactListResponse{
		Items:      items,
		Total:      result.Total,
		Page:       result.Page,
		PageSize:   result.PageSize,
		TotalPages: result.TotalPages,
	})
}

func (h *Handler) Get(c *gin.Context) {
	scope, ok := access.MustScope(c)
	if !ok {
		return
	}
	id, ok := contactID(c)
	if !ok {
		return
	}
	ct, err := h.svc.Get(c.Request.Context(), scope, id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toResponse(ct))
}

func (h *Handler) Create(c *gin.Context) {
	scope, ok := access.MustScope(c)
	if !ok {
		return
	}
	var req transport.CreateContactRequest
	if !h.bind(c, &req) {
		return
	}
	ct, err := h.svc.Create(c.Request.Context(), scope, service.CreateInput{
		OrganizationID: req.OrganizationID,
		BranchID:       req.BranchID,
		FullName:       req.FullName,
		Phone:          req.Phone,
		Email:          req.Email,
		City:           req.City,
		Province:       req.Province,
		Origin:         req.Origin,
		Passengers:     req.Passengers,
		TravelDate:     parseDate(req.TravelDate),
		Tag:            req.Tag,
		AssignedTo:     req.AssignedTo,
		Notes:          req.Notes,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, toResponse(ct))
}

func (h *Handler) Update(c *gin.Context) {
	scope, ok := access.MustScope(c)
	if !ok {
		return
	}
	id, ok := contactID(c)
	if !ok {
		return
	}
	var req transport.UpdateContactRequest
	if !h.bind(c, &req) {
		return
	}
	ct, err := h.svc.Update(c.Request.Context(), scope, id, service.UpdateInput{
		FullName:   req.FullName,
		Phone:      req.Phone,
		Email:      req.Email,
		City:       req.City,
		Province:   req.Province,
		Origin:     req.Origin,
		Passengers: req.Passengers,
		TravelDate: parseDate(req.TravelDate),
		Tag:        req.Tag,
		AssignedTo: req.AssignedTo,
		Notes:      req.Notes,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toResponse(ct))
}

func (h *Handler) History(c *gin.Context) {
	scope, ok := access.MustScope(c)
	if !ok {
		return
	}
	id, ok := contactID(c)
	if !ok {
		return
	}
	records, err := h.svc.History(c.Request.Context(), scope, id)
	if httpkit.HandleError(c, err) {
		return
	}
	items := make([]transport.HistoryEntryResponse, 0, len(records))
	for _, r := range records {
		items = append(items, transport.HistoryEntryResponse{
			ID:          r.ID,
			Action:      r.Action,
			Description: r.Description,
			UserID:      r.UserID,
			UserName:    r.UserName,
			CreatedAt:   r.CreatedAt,
		})
	}
	httpkit.OK(c, gin.H{"items": items})
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

func contactID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidContactID, nil)
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

func parseDate(s *string) *time.Time {
	if s == nil || *s == "" {
		return nil
	}
	t, err := time.Parse(dateLayout, *s)
	if err != nil {
		return nil
	}
	return &t
}

func toResponse(ct repository.Contact) transport.ContactResponse {
	var travel *string
	if ct.TravelDate != nil {
		s := ct.TravelDate.Format(dateLayout)
		travel = &s
	}
	return transport.ContactResponse{
		ID:                        ct.ID,
		OrganizationID:            ct.OrganizationID,
		BranchID:                  ct.BranchID,
		FullName:                  ct.FullName,
		Phone:                     ct.Phone,
		Email:                     ct.Email,
		City:                      ct.City,
		Province:                  ct.Province,
		Origin:                    ct.Origin,
		Passengers:                ct.Passengers,
		TravelDate:                travel,
		Tag:                       ct.Tag,
		AssignedTo:                ct.AssignedTo,
		Notes:                     ct.Notes,
		OriginalLeadID:            ct.OriginalLeadID,
		OriginalLeadStatus:        ct.OriginalLeadStatus,
		OriginalLeadInquiryNumber: ct.OriginalLeadInquiryNumber,
		CreatedAt:                 ct.CreatedAt,
		UpdatedAt:                 ct.UpdatedAt,
	}
}
