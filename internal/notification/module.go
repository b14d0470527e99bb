// Package notification provides event handlers for sending notifications
// (SSE pushes and emails) in response to domain events.
// Domain modules only publish events; they never know about streams,
// SMTP or templates.
package notification

import (
	"context"
	"strings"

	"travel_crm_backend/internal/budgets/domain"
	"travel_crm_backend/internal/email"
	"travel_crm_backend/internal/events"
	apphttp "travel_crm_backend/internal/http"
	"travel_crm_backend/internal/notification/sse"
	"travel_crm_backend/platform/logger"
	"travel_crm_backend/platform/metrics"

	"github.com/google/uuid"
)

// OrganizationNamer resolves the display name used in outgoing mail.
type OrganizationNamer interface {
	OrganizationName(ctx context.Context, orgID uuid.UUID) string
}

type Config interface {
	GetAppBaseURL() string
}

// Module handles all notification-related event subscriptions.
type Module struct {
	pusher  sse.Pusher
	hub     *sse.Service
	sender  email.Sender
	orgs    OrganizationNamer
	cfg     Config
	metrics *metrics.Metrics
	log     *logger.Logger
}

type Dependencies struct {
	// Pusher delivers SSE envelopes. The API passes its hub (optionally fanned
	// out to the relay); the scheduler passes the relay publisher.
	Pusher sse.Pusher
	// Hub is set only in the process that serves the stream endpoint.
	Hub     *sse.Service
	Sender  email.Sender
	Orgs    OrganizationNamer
	Config  Config
	Metrics *metrics.Metrics
	Log     *logger.Logger
}

func New(d Dependencies) *Module {
	m := &Module{
		pusher:  d.Pusher,
		hub:     d.Hub,
		sender:  d.Sender,
		orgs:    d.Orgs,
		cfg:     d.Config,
		metrics: d.Metrics,
		log:     d.Log,
	}
	if m.sender == nil {
		m.sender = email.NoopSender{}
	}
	if m.log == nil {
		m.log = logger.Nop()
	}
	if m.pusher == nil && m.hub != nil {
		m.pusher = m.hub
	}
	return m
}

func (m *Module) Name() string { return "notification" }

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	if m.hub == nil {
		return
	}
	ctx.Protected.GET("/notifications/stream", m.hub.Handler())
}

// RegisterHandlers subscribes the module to the events it turns into
// notifications.
func (m *Module) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.InboxMessageCreated{}.EventName(), m)
	bus.Subscribe(events.LeadAssigned{}.EventName(), m)
	bus.Subscribe(events.TaskReminderDue{}.EventName(), m)
	bus.Subscribe(events.BudgetStatusChanged{}.EventName(), m)

	m.log.Info("notification module registered event handlers")
}

// Handle routes events to the appropriate handler method.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.InboxMessageCreated:
		return m.handleInboxMessageCreated(ctx, e)
	case events.LeadAssigned:
		return m.handleLeadAssigned(ctx, e)
	case events.TaskReminderDue:
		return m.handleTaskReminderDue(ctx, e)
	case events.BudgetStatusChanged:
		return m.handleBudgetStatusChanged(ctx, e)
	default:
		m.log.Warn("unhandled event type", "event", event.EventName())
		return nil
	}
}

func (m *Module) handleInboxMessageCreated(ctx context.Context, e events.InboxMessageCreated) error {
	if e.Direction != "inbound" {
		return nil
	}
	return m.push(ctx, sse.Envelope{
		OrganizationID: e.OrganizationID,
		UserID:         e.AssignedTo,
		AdminsOnly:     true,
		Event: sse.Event{
			Type:    sse.EventInboxMessage,
			Message: e.ContactName + ": " + e.Preview,
			Data: map[string]any{
				"messageId": e.MessageID,
				"contactId": e.ContactID,
				"channel":   e.Channel,
			},
		},
	})
}

func (m *Module) handleLeadAssigned(ctx context.Context, e events.LeadAssigned) error {
	if e.NewAgent == nil || (e.ActorID != nil && *e.ActorID == *e.NewAgent) {
		return nil
	}
	return m.push(ctx, sse.Envelope{
		OrganizationID: e.OrganizationID,
		UserID:         e.NewAgent,
		Event: sse.Event{
			Type:    sse.EventLeadAssigned,
			Message: "Se te asignó la consulta " + e.InquiryNumber,
			Data:    map[string]any{"leadId": e.LeadID, "inquiryNumber": e.InquiryNumber},
		},
	})
}

func (m *Module) handleTaskReminderDue(ctx context.Context, e events.TaskReminderDue) error {
	assignee := e.AssignedTo
	err := m.push(ctx, sse.Envelope{
		OrganizationID: e.OrganizationID,
		UserID:         &assignee,
		Event: sse.Event{
			Type:    sse.EventTaskReminder,
			Message: e.Title,
			Data:    map[string]any{"taskId": e.TaskID, "dueAt": e.DueAt},
		},
	})
	if err == nil {
		m.metrics.RecordReminderSent("sse")
	}

	if strings.TrimSpace(e.AssigneeEmail) == "" {
		return err
	}
	mailErr := m.sender.SendTaskReminder(ctx, e.AssigneeEmail, email.TaskReminder{
		AssigneeName: e.AssigneeName,
		Title:        e.Title,
		DueAt:        e.DueAt,
		TaskURL:      m.appURL("/tasks"),
	})
	if mailErr != nil {
		m.log.Error("failed to send task reminder email", "task_id", e.TaskID.String(), "error", mailErr)
		if err == nil {
			err = mailErr
		}
	} else {
		m.metrics.RecordReminderSent("email")
	}
	return err
}

func (m *Module) handleBudgetStatusChanged(ctx context.Context, e events.BudgetStatusChanged) error {
	pushErr := m.push(ctx, sse.Envelope{
		OrganizationID: e.OrganizationID,
		AdminsOnly:     true,
		Event: sse.Event{
			Type:    sse.EventBudgetStatus,
			Message: e.Title,
			Data:    map[string]any{"budgetId": e.BudgetID, "oldStatus": e.OldStatus, "newStatus": e.NewStatus},
		},
	})

	if e.NewStatus != string(domain.StatusSent) || strings.TrimSpace(e.RecipientEmail) == "" {
		return pushErr
	}
	orgName := ""
	if m.orgs != nil {
		orgName = m.orgs.OrganizationName(ctx, e.OrganizationID)
	}
	if err := m.sender.SendBudgetLink(ctx, e.RecipientEmail, email.BudgetLink{
		RecipientName:    e.RecipientName,
		OrganizationName: orgName,
		BudgetTitle:      e.Title,
		PublicURL:        e.PublicURL,
	}); err != nil {
		m.log.Error("failed to send budget email", "budget_id", e.BudgetID.String(), "error", err)
		return err
	}
	return pushErr
}

func (m *Module) push(ctx context.Context, env sse.Envelope) error {
	if m.pusher == nil {
		return nil
	}
	if err := m.pusher.Push(ctx, env); err != nil {
		m.log.Warn("failed to push notification", "event", string(env.Event.Type), "error", err)
		return err
	}
	return nil
}

func (m *Module) appURL(path string) string {
	if m.cfg == nil {
		return path
	}
	return strings.TrimRight(m.cfg.GetAppBaseURL(), "/") + path
}

var _ apphttp.Module = (*Module)(nil)
