// Package companies provides the company pipeline bounded context module.
package companies

import (
	"context"

	"outreach_backend/internal/companies/handler"
	"outreach_backend/internal/companies/repository"
	"outreach_backend/internal/companies/service"
	"outreach_backend/internal/events"
	apphttp "outreach_backend/internal/http"
	"outreach_backend/platform/logger"
	"outreach_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the companies bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates and initializes the companies module.
func NewModule(pool *pgxpool.Pool, bus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, bus, log)
	return &Module{
		handler: handler.New(svc, val),
		service: svc,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "companies"
}

// Service returns the companies service for cross-module use
// (scrape job ingestion, lead extraction).
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts company routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Protected.Group("/companies")
	m.handler.RegisterRoutes(group)
}

// RegisterHandlers subscribes to the domain events the pipeline reacts to.
func (m *Module) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.EmailSent{}.EventName(), m)
}

// Handle dispatches bus events to the service layer. The first delivered
// outreach email moves the company toward contacted.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.EmailSent:
		return m.service.MarkContacted(ctx, e.CompanyID)
	default:
		return nil
	}
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
