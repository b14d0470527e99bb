// Package inbox keeps the message thread of every contact and announces new
// messages on the event bus.
package inbox

import (
	"travel_crm_backend/internal/events"
	apphttp "travel_crm_backend/internal/http"
	"travel_crm_backend/internal/inbox/handler"
	"travel_crm_backend/internal/inbox/repository"
	"travel_crm_backend/internal/inbox/service"
	"travel_crm_backend/platform/logger"
	"travel_crm_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Dependencies struct {
	Pool      *pgxpool.Pool
	Contacts  service.Contacts
	Bus       events.Bus
	Log       *logger.Logger
	Validator *validator.Validator
}

type Module struct {
	handler *handler.Handler
	service *service.Service
}

func NewModule(d Dependencies) *Module {
	svc := service.New(repository.New(d.Pool), d.Contacts, d.Bus, d.Log)
	return &Module{handler: handler.New(svc, d.Validator), service: svc}
}

func (m *Module) Name() string { return "inbox" }

func (m *Module) Service() *service.Service { return m.service }

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/inbox"))
}

var _ apphttp.Module = (*Module)(nil)
