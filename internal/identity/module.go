// Package identity provides the organizations, branches and users module.
package identity

import (
	apphttp "travel_crm_backend/internal/http"
	"travel_crm_backend/internal/identity/handler"
	"travel_crm_backend/internal/identity/repository"
	"travel_crm_backend/internal/identity/service"
	"travel_crm_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Module struct {
	handler *handler.Handler
	service *service.Service
}

func NewModule(pool *pgxpool.Pool, val *validator.Validator) *Module {
	repo := repository.New(pool)
	svc := service.New(repo)
	h := handler.New(svc, val)

	return &Module{handler: h, service: svc}
}

func (m *Module) Name() string {
	return "identity"
}

func (m *Module) Service() *service.Service {
	return m.service
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected)
	m.handler.RegisterAdminRoutes(ctx.Admin)
}

var _ apphttp.Module = (*Module)(nil)
