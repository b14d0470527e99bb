package transport

import (
	"time"

	"github.com/google/uuid"
)

type SendMessageRequest struct {
	Channel string `json:"channel" validate:"omitempty,oneof=whatsapp email internal"`
	Body    string `json:"body" validate:"required,notblank,max=4000"`
}

type ListConversationsRequest struct {
	OrganizationID string `form:"organizationId"`
	UnreadOnly     bool   `form:"unreadOnly"`
	Page           int    `form:"page" validate:"min=0"`
	PageSize       int    `form:"pageSize" validate:"min=0,max=200"`
}

type ListMessagesRequest struct {
	Before string `form:"before"`
	Limit  int    `form:"limit" validate:"min=0,max=200"`
}

type MessageResponse struct {
	ID           uuid.UUID  `json:"id"`
	ContactID    uuid.UUID  `json:"contactId"`
	Direction    string     `json:"direction"`
	Channel      string     `json:"channel"`
	Body         string     `json:"body"`
	SenderUserID *uuid.UUID `json:"senderUserId,omitempty"`
	ReadAt       *time.Time `json:"readAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
}

type ConversationResponse struct {
	ContactID      uuid.UUID       `json:"contactId"`
	OrganizationID uuid.UUID       `json:"organizationId"`
	ContactName    string          `json:"contactName"`
	AssignedTo     *uuid.UUID      `json:"assignedTo,omitempty"`
	LastMessage    MessageResponse `json:"lastMessage"`
	UnreadCount    int             `json:"unreadCount"`
}

type ConversationListResponse struct {
	Items    []ConversationResponse `json:"items"`
	Total    int                    `json:"total"`
	Page     int                    `json:"page"`
	PageSize int                    `json:"pageSize"`
}

type MarkReadResponse struct {
	Updated int64 `json:"updated"`
}
