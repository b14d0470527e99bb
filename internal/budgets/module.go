// Package budgets serves travel budgets: versioned documents addressed to a
// contact or lead, shared through public slugs and exported to PDF.
package budgets

import (
	"context"

	"travel_crm_backend/internal/adapters/storage"
	"travel_crm_backend/internal/budgets/handler"
	"travel_crm_backend/internal/budgets/repository"
	"travel_crm_backend/internal/budgets/service"
	"travel_crm_backend/internal/events"
	apphttp "travel_crm_backend/internal/http"
	"travel_crm_backend/internal/pdf"
	"travel_crm_backend/platform/db"
	"travel_crm_backend/platform/logger"
	"travel_crm_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Dependencies struct {
	Pool          *pgxpool.Pool
	People        service.People
	Organizations service.Organizations
	Bus           events.Bus
	Log           *logger.Logger
	Validator     *validator.Validator
	// Gotenberg and Storage are optional. Without them PDF export reports
	// the feature as unavailable.
	Gotenberg     *pdf.GotenbergClient
	Storage       storage.StorageService
	PDFBucket     string
	PublicBaseURL string
}

type Module struct {
	handler *handler.Handler
	service *service.Service
}

func NewModule(d Dependencies) *Module {
	var converter service.PDFConverter
	if d.Gotenberg != nil {
		converter = gotenbergConverter{client: d.Gotenberg}
	}
	svc := service.New(service.Deps{
		Repo:          repository.New(d.Pool),
		Tx:            db.NewTransactor(d.Pool),
		People:        d.People,
		Organizations: d.Organizations,
		Bus:           d.Bus,
		Log:           d.Log,
		PDF:           converter,
		Storage:       d.Storage,
		PDFBucket:     d.PDFBucket,
		PublicBaseURL: d.PublicBaseURL,
	})
	return &Module{handler: handler.New(svc, d.Validator), service: svc}
}

func (m *Module) Name() string { return "budgets" }

func (m *Module) Service() *service.Service { return m.service }

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/budgets"))
	m.handler.RegisterTemplateRoutes(ctx.Protected.Group("/budget-templates"))
	m.handler.RegisterPublicRoutes(ctx.Public.Group("/budgets"))
}

type gotenbergConverter struct {
	client *pdf.GotenbergClient
}

func (g gotenbergConverter) ConvertHTML(ctx context.Context, html []byte) ([]byte, error) {
	return g.client.ConvertHTML(ctx, html, pdf.BudgetOpts())
}

var _ apphttp.Module = (*Module)(nil)
