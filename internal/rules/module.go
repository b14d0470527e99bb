// Package rules provides the Rule Store: organization-scoped assignment rules.
package rules

import (
	apphttp "travel_crm_backend/internal/http"
	"travel_crm_backend/internal/rules/handler"
	"travel_crm_backend/internal/rules/repository"
	"travel_crm_backend/internal/rules/service"
	"travel_crm_backend/platform/db"
	"travel_crm_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Module struct {
	handler *handler.Handler
	service *service.Service
}

func NewModule(pool *pgxpool.Pool, members service.MemberChecker, val *validator.Validator) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, members, db.NewTransactor(pool))
	return &Module{handler: handler.New(svc, val), service: svc}
}

func (m *Module) Name() string { return "rules" }

func (m *Module) Service() *service.Service { return m.service }

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/rules"))
}

var _ apphttp.Module = (*Module)(nil)
