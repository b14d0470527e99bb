// Package sse provides Server-Sent Events support for real-time notifications.
package sse

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"travel_crm_backend/internal/access"
	"travel_crm_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// EventType represents different types of SSE events
type EventType string

const (
	EventInboxMessage EventType = "inbox_message"
	EventLeadAssigned EventType = "lead_assigned"
	EventTaskReminder EventType = "task_reminder"
	EventBudgetStatus EventType = "budget_status"
	eventConnected    EventType = "connected"
)

const clientBufferLength = 32

// Event represents an SSE event payload
type Event struct {
	Type    EventType `json:"type"`
	Message string    `json:"message,omitempty"`
	Data    any       `json:"data,omitempty"`
}

// Envelope addresses an event. A nil UserID with AdminsOnly reaches every
// connected admin and manager of the organization.
type Envelope struct {
	OrganizationID uuid.UUID  `json:"organizationId"`
	UserID         *uuid.UUID `json:"userId,omitempty"`
	AdminsOnly     bool       `json:"adminsOnly,omitempty"`
	Event          Event      `json:"event"`
}

// Pusher delivers envelopes, locally or through a relay.
type Pusher interface {
	Push(ctx context.Context, env Envelope) error
}

// client represents a connected SSE client
type client struct {
	userID uuid.UUID
	orgID  uuid.UUID
	admin  bool
	events chan Event
}

// Service manages SSE connections and event broadcasting
type Service struct {
	mu      sync.RWMutex
	clients map[uuid.UUID][]*client // userID -> clients
	orgs    map[uuid.UUID][]*client // orgID -> clients
	log     *logger.Logger
}

// New creates a new SSE service
func New(log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		clients: make(map[uuid.UUID][]*client),
		orgs:    make(map[uuid.UUID][]*client),
		log:     log,
	}
}

func (s *Service) addClient(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.clients[c.userID] = append(s.clients[c.userID], c)
	if c.orgID != uuid.Nil {
		s.orgs[c.orgID] = append(s.orgs[c.orgID], c)
	}
}

func (s *Service) removeClient(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.clients[c.userID] = without(s.clients[c.userID], c)
	if len(s.clients[c.userID]) == 0 {
		delete(s.clients, c.userID)
	}
	s.orgs[c.orgID] = without(s.orgs[c.orgID], c)
	if len(s.orgs[c.orgID]) == 0 {
		delete(s.orgs, c.orgID)
	}
}

func without(list []*client, c *client) []*client {
	for i, cl := range list {
		if cl == c {
			return append(list[:i:i], list[i+1:]...)
		}
	}
	return list
}

// Publish sends an event to every connection of a user.
func (s *Service) Publish(userID uuid.UUID, event Event) {
	s.mu.RLock()
	clients := append([]*client(nil), s.clients[userID]...)
	s.mu.RUnlock()

	s.send(clients, event)
}

// PublishToAdmins sends an event to connected admins and managers of orgID,
// skipping the excluded user.
func (s *Service) PublishToAdmins(orgID uuid.UUID, exclude *uuid.UUID, event Event) {
	s.mu.RLock()
	clients := make([]*client, 0, len(s.orgs[orgID]))
	for _, c := range s.orgs[orgID] {
		if c.admin && (exclude == nil || c.userID != *exclude) {
			clients = append(clients, c)
		}
	}
	s.mu.RUnlock()

	s.send(clients, event)
}

// Push implements Pusher for in-process delivery.
func (s *Service) Push(_ context.Context, env Envelope) error {
	s.Deliver(env)
	return nil
}

// Deliver routes an envelope to its recipients.
func (s *Service) Deliver(env Envelope) {
	if env.UserID != nil {
		s.Publish(*env.UserID, env.Event)
	}
	if env.AdminsOnly {
		s.PublishToAdmins(env.OrganizationID, env.UserID, env.Event)
	}
}

func (s *Service) send(clients []*client, event Event) {
	for _, c := range clients {
		select {
		case c.events <- event:
		default:
			s.log.Warn("sse buffer full", "user_id", c.userID.String(), "event", string(event.Type))
		}
	}
}

// ConnectedClients returns the number of open streams.
func (s *Service) ConnectedClients() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, list := range s.clients {
		n += len(list)
	}
	return n
}

// Handler streams events to the authenticated caller.
func (s *Service) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		scope, ok := access.MustScope(c)
		if !ok {
			return
		}
		var orgID uuid.UUID
		if scope.OrganizationID != nil {
			orgID = *scope.OrganizationID
		}

		c.Writer.Header().Set("Content-Type", "text/event-stream")
		c.Writer.Header().Set("Cache-Control", "no-cache")
		c.Writer.Header().Set("Connection", "keep-alive")
		c.Writer.Header().Set("X-Accel-Buffering", "no")

		cl := &client{
			userID: scope.UserID,
			orgID:  orgID,
			admin:  scope.Level != access.LevelOwn,
			events: make(chan Event, clientBufferLength),
		}
		s.addClient(cl)
		defer s.removeClient(cl)

		c.SSEvent(string(eventConnected), gin.H{"userId": scope.UserID, "organizationId": orgID})
		c.Writer.Flush()
		s.log.Debug("sse client connected", "user_id", scope.UserID.String())

		clientGone := c.Request.Context().Done()
		for {
			select {
			case <-clientGone:
				s.log.Debug("sse client disconnected", "user_id", scope.UserID.String())
				return
			case event := <-cl.events:
				data, err := json.Marshal(event)
				if err != nil {
					c.Status(http.StatusInternalServerError)
					return
				}
				c.SSEvent(string(event.Type), string(data))
				c.Writer.Flush()
			}
		}
	}
}
