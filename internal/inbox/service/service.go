// Package service implements the per-contact messaging inbox.
package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"travel_crm_backend/internal/access"
	"travel_crm_backend/internal/events"
	"travel_crm_backend/internal/inbox/repository"
	"travel_crm_backend/platform/apperr"
	"travel_crm_backend/platform/logger"
	"travel_crm_backend/platform/sanitize"

	"github.com/google/uuid"
)

const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"

	ChannelWhatsApp = "whatsapp"
	ChannelEmail    = "email"
	ChannelInternal = "internal"

	contactNotFoundMsg = "contact not found"
	defaultPageSize    = 50
	maxPageSize        = 200
	maxBodyLength      = 4000
	previewLength      = 140
)

var ErrContactNotFound = errors.New("contact not found")

type Repository interface {
	Create(ctx context.Context, m repository.Message) (repository.Message, error)
	ListForContact(ctx context.Context, contactID uuid.UUID, before *time.Time, limit int) ([]repository.Message, error)
	MarkRead(ctx context.Context, contactID uuid.UUID) (int64, error)
	Conversations(ctx context.Context, params repository.ConversationParams) ([]repository.Conversation, int, error)
}

// Contact is the ownership of a conversation.
type Contact struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	BranchID       *uuid.UUID
	AssignedTo     *uuid.UUID
	FullName       string
}

// Contacts resolves contacts without scope checks; it returns
// ErrContactNotFound for unknown ids.
type Contacts interface {
	Contact(ctx context.Context, id uuid.UUID) (Contact, error)
}

type Service struct {
	repo     Repository
	contacts Contacts
	bus      events.Bus
	log      *logger.Logger
}

func New(repo Repository, contacts Contacts, bus events.Bus, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{repo: repo, contacts: contacts, bus: bus, log: log}
}

type ConversationFilter struct {
	OrganizationID *uuid.UUID
	UnreadOnly     bool
	Page           int
	PageSize       int
}

type ConversationResult struct {
	Items    []repository.Conversation
	Total    int
	Page     int
	PageSize int
}

type MessageInput struct {
	Channel string
	Body    string
}

func (s *Service) Conversations(ctx context.Context, scope access.Scope, f ConversationFilter) (ConversationResult, error) {
	page, size := f.Page, f.PageSize
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	items, total, err := s.repo.Conversations(ctx, repository.ConversationParams{
		Scope:          scope,
		OrganizationID: f.OrganizationID,
		UnreadOnly:     f.UnreadOnly,
		Offset:         (page - 1) * size,
		Limit:          size,
	})
	if err != nil {
		return ConversationResult{}, err
	}
	return ConversationResult{Items: items, Total: total, Page: page, PageSize: size}, nil
}

// Messages returns the newest messages of a visible contact.
func (s *Service) Messages(ctx context.Context, scope access.Scope, contactID uuid.UUID, before *time.Time, limit int) ([]repository.Message, error) {
	if _, err := s.visibleContact(ctx, scope, contactID); err != nil {
		return nil, err
	}
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return s.repo.ListForContact(ctx, contactID, before, limit)
}

// Send stores a message written by the caller to the contact.
func (s *Service) Send(ctx context.Context, scope access.Scope, contactID uuid.UUID, in MessageInput) (repository.Message, error) {
	sender := scope.UserID
	return s.store(ctx, scope, contactID, DirectionOutbound, &sender, in)
}

// Receive records a message the contact sent through an external channel.
func (s *Service) Receive(ctx context.Context, scope access.Scope, contactID uuid.UUID, in MessageInput) (repository.Message, error) {
	return s.store(ctx, scope, contactID, DirectionInbound, nil, in)
}

// MarkRead marks every inbound message of the contact read.
func (s *Service) MarkRead(ctx context.Context, scope access.Scope, contactID uuid.UUID) (int64, error) {
	if _, err := s.visibleContact(ctx, scope, contactID); err != nil {
		return 0, err
	}
	return s.repo.MarkRead(ctx, contactID)
}

func (s *Service) store(ctx context.Context, scope access.Scope, contactID uuid.UUID, direction string, sender *uuid.UUID, in MessageInput) (repository.Message, error) {
	contact, err := s.visibleContact(ctx, scope, contactID)
	if err != nil {
		return repository.Message{}, err
	}

	body := cleanBody(in.Body)
	if body == "" {
		return repository.Message{}, apperr.Validation("message body is required")
	}
	if utf8.RuneCountInString(body) > maxBodyLength {
		return repository.Message{}, apperr.Validation("message body is too long")
	}
	channel := strings.ToLower(strings.TrimSpace(in.Channel))
	if channel == "" {
		channel = ChannelInternal
	}
	if !validChannel(channel) {
		return repository.Message{}, apperr.Validation("invalid channel")
	}

	msg := repository.Message{
		OrganizationID: contact.OrganizationID,
		ContactID:      contact.ID,
		Direction:      direction,
		Channel:        channel,
		Body:           body,
		SenderUserID:   sender,
	}
	if direction == DirectionOutbound {
		now := time.Now()
		msg.ReadAt = &now
	}

	created, err := s.repo.Create(ctx, msg)
	if err != nil {
		return repository.Message{}, err
	}

	if s.bus != nil {
		s.bus.Publish(ctx, events.InboxMessageCreated{
			BaseEvent:      events.NewBaseEvent(),
			MessageID:      created.ID,
			OrganizationID: created.OrganizationID,
			ContactID:      contact.ID,
			ContactName:    contact.FullName,
			AssignedTo:     contact.AssignedTo,
			Direction:      created.Direction,
			Channel:        created.Channel,
			Preview:        Preview(created.Body),
		})
	}
	return created, nil
}

func (s *Service) visibleContact(ctx context.Context, scope access.Scope, id uuid.UUID) (Contact, error) {
	c, err := s.contacts.Contact(ctx, id)
	if errors.Is(err, ErrContactNotFound) {
		return Contact{}, apperr.NotFound(contactNotFoundMsg)
	}
	if err != nil {
		return Contact{}, err
	}
	if !scope.Allows(c.OrganizationID, c.BranchID, c.AssignedTo) {
		return Contact{}, apperr.NotFound(contactNotFoundMsg)
	}
	return c, nil
}

// cleanBody strips markup line by line and keeps paragraph breaks.
func cleanBody(raw string) string {
	lines := strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")
	for i, l := range lines {
		lines[i] = sanitize.Text(l)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func validChannel(ch string) bool {
	switch ch {
	case ChannelWhatsApp, ChannelEmail, ChannelInternal:
		return true
	}
	return false
}

// Preview shortens a message body for notifications.
func Preview(body string) string {
	body = strings.Join(strings.Fields(body), " ")
	if utf8.RuneCountInString(body) <= previewLength {
		return body
	}
	runes := []rune(body)
	return string(runes[:previewLength-1]) + "…"
}
