// Package tasks serves follow-up tasks with due dates. Open tasks close to
// their due date are picked up by the reminder scan.
package tasks

import (
	apphttp "travel_crm_backend/internal/http"
	"travel_crm_backend/internal/tasks/handler"
	"travel_crm_backend/internal/tasks/repository"
	"travel_crm_backend/internal/tasks/service"
	"travel_crm_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Dependencies struct {
	Pool      *pgxpool.Pool
	Members   service.MemberChecker
	Links     service.Links
	Validator *validator.Validator
	// Scans is optional; without it the admin scan endpoint is not mounted.
	Scans handler.ReminderTrigger
}

type Module struct {
	handler *handler.Handler
	service *service.Service
}

func NewModule(d Dependencies) *Module {
	svc := service.New(repository.New(d.Pool), d.Members, d.Links)
	return &Module{handler: handler.New(svc, d.Validator, d.Scans), service: svc}
}

func (m *Module) Name() string { return "tasks" }

func (m *Module) Service() *service.Service { return m.service }

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/tasks"))
	m.handler.RegisterAdminRoutes(ctx.Admin)
}

var _ apphttp.Module = (*Module)(nil)
