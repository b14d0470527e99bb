package handler

import (
	"context"
	"net/http"
	"time"

	"travel_crm_backend/internal/access"
	"travel_crm_backend/internal/inbox/repository"
	"travel_crm_backend/internal/inbox/service"
	"travel_crm_backend/internal/inbox/transport"
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
)

func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/conversations", h.Conversations)
	rg.GET("/contacts/:id/messages", h.Messages)
	rg.POST("/contacts/:id/messages", h.Send)
	rg.POST("/contacts/:id/messages/inbound", h.Receive)
	rg.POST("/contacts/:id/read", h.MarkRead)
}

func (h *Handler) Conversations(c *gin.Context) {
	scope, ok := access.MustScope(c)
	if !ok {
		return
	}
	var req transport.ListConversationsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return
	}
	var orgID *uuid.UUID
	if req.OrganizationID != "" {
		id, err := uuid.Parse(req.OrganizationID)
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, "invalid organizationId", nil)
			return
		}
		orgID = &id
	}

	result, err := h.svc.Conversations(c.Request.Context(), scope, service.ConversationFilter{
		OrganizationID: orgID,
		UnreadOnly:     req.UnreadOnly,
		Page:           req.Page,
		PageSize:       req.PageSize,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	items := make([]transport.ConversationResponse, 0, len(result.Items))
	for _, cv := range result.Items {
		items = append(items, transport.ConversationResponse{
			ContactID:      cv.ContactID,
			OrganizationID: cv.OrganizationID,
			ContactName:    cv.ContactName,
			AssignedTo:     cv.AssignedTo,
			LastMessage:    toMessage(cv.LastMessage),
			UnreadCount:    cv.Unread,
		})
	}
	httpkit.OK(c, transport.ConversationListResponse{Items: items, Total: result.Total, Page: result.Page, PageSize: result.PageSize})
}

func (h *Handler) Messages(c *gin.Context) {
	scope, ok := access.MustScope(c)
	if !ok {
		return
	}
	contactID, ok := contactID(c)
	if !ok {
		return
	}
	var req transport.ListMessagesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return
	}
	var before *time.Time
	if req.Before != "" {
		t, err := time.Parse(time.RFC3339Nano, req.Before)
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, "invalid before", nil)
			return
		}
		before = &t
	}

	msgs, err := h.svc.Messages(c.Request.Context(), scope, contactID, before, req.Limit)
	if httpkit.HandleError(c, err) {
		return
	}
	items := make([]transport.MessageResponse, 0, len(msgs))
	for _, m := range msgs {
		items = append(items, toMessage(m))
	}
	httpkit.OK(c, gin.H{"items": items})
}

func (h *Handler) Send(c *gin.Context) {
	h.store(c, h.svc.Send)
}

func (h *Handler) Receive(c *gin.Context) {
	h.store(c, h.svc.Receive)
}

type storeFunc func(ctx context.Context, scope access.Scope, contactID uuid.UUID, in service.MessageInput) (repository.Message, error)

func (h *Handler) store(c *gin.Context, fn storeFunc) {
	scope, ok := access.MustScope(c)
	if !ok {
		return
	}
	contactID, ok := contactID(c)
	if !ok {
		return
	}
	var req transport.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return
	}
	msg, err := fn(c.Request.Context(), scope, contactID, service.MessageInput{Channel: req.Channel, Body: req.Body})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, toMessage(msg))
}

func (h *Handler) MarkRead(c *gin.Context) {
	scope, ok := access.MustScope(c)
	if !ok {
		return
	}
	contactID, ok := contactID(c)
	if !ok {
		return
	}
	n, err := h.svc.MarkRead(c.Request.Context(), scope, contactID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.MarkReadResponse{Updated: n})
}

func contactID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid contact id", nil)
		return uuid.UUID{}, false
	}
	return id, true
}

func toMessage(m repository.Message) transport.MessageResponse {
	return transport.MessageResponse{
		ID:           m.ID,
		ContactID:    m.ContactID,
		Direction:    m.Direction,
		Channel:      m.Channel,
		Body:         m.Body,
		SenderUserID: m.SenderUserID,
		ReadAt:       m.ReadAt,
		CreatedAt:    m.CreatedAt,
	}
}
