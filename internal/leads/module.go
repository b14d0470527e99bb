// Package leads is the lead lifecycle engine: rule-based auto-assignment,
// the status state machine, lead-to-contact conversion and assignment.
package leads

import (
	"travel_crm_backend/internal/events"
	apphttp "travel_crm_backend/internal/http"
	"travel_crm_backend/internal/leads/handler"
	"travel_crm_backend/internal/leads/management"
	"travel_crm_backend/internal/leads/ports"
	"travel_crm_backend/internal/leads/repository"
	"travel_crm_backend/platform/db"
	"travel_crm_backend/platform/logger"
	"travel_crm_backend/platform/metrics"
	"travel_crm_backend/platform/phone"
	"travel_crm_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Dependencies are the collaborators the module needs from the rest of the app.
type Dependencies struct {
	Pool            *pgxpool.Pool
	Rules           ports.RuleSource
	Contacts        ports.ContactConverter
	History         ports.HistoryRecorder
	HistoryReader   ports.HistoryReader
	Users           ports.UserDirectory
	Bus             events.Bus
	Metrics         *metrics.Metrics
	Log             *logger.Logger
	Validator       *validator.Validator
	PhoneRegion     string
	BulkConcurrency int
}

type Module struct {
	handler *handler.Handler
	service *management.Service
}

func NewModule(d Dependencies) *Module {
	svc := management.New(management.Deps{
		Repo:            repository.New(d.Pool),
		Tx:              db.NewTransactor(d.Pool),
		Rules:           d.Rules,
		Contacts:        d.Contacts,
		History:         d.History,
		HistoryReader:   d.HistoryReader,
		Users:           d.Users,
		Bus:             d.Bus,
		Phone:           phone.NewNormalizer(d.PhoneRegion),
		Metrics:         d.Metrics,
		Log:             d.Log,
		BulkConcurrency: d.BulkConcurrency,
	})
	return &Module{handler: handler.New(svc, d.Validator), service: svc}
}

func (m *Module) Name() string { return "leads" }

// Service exposes the lifecycle service to CLIs.
func (m *Module) Service() *management.Service { return m.service }

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/leads"))
}

var _ apphttp.Module = (*Module)(nil)
