// Package contacts serves qualified persons converted from leads or entered
// by hand.
package contacts

import (
	"travel_crm_backend/internal/contacts/handler"
	"travel_crm_backend/internal/contacts/repository"
	"travel_crm_backend/internal/contacts/service"
	apphttp "travel_crm_backend/internal/http"
	"travel_crm_backend/platform/phone"
	"travel_crm_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Dependencies struct {
	Pool        *pgxpool.Pool
	History     service.HistoryRecorder
	Reader      service.HistoryReader
	Members     service.MemberChecker
	Validator   *validator.Validator
	PhoneRegion string
}

type Module struct {
	handler *handler.Handler
	service *service.Service
}

func NewModule(d Dependencies) *Module {
	svc := service.New(repository.New(d.Pool), d.History, d.Reader, d.Members, phone.NewNormalizer(d.PhoneRegion))
	return &Module{handler: handler.New(svc, d.Validator), service: svc}
}

func (m *Module) Name() string { return "contacts" }

func (m *Module) Service() *service.Service { return m.service }

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/contacts"))
}

var _ apphttp.Module = (*Module)(nil)
