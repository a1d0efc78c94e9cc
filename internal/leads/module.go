// Package leads provides the lead pipeline bounded context module.
package leads

import (
	"context"

	"outreach_backend/internal/events"
	apphttp "outreach_backend/internal/http"
	"outreach_backend/internal/leads/handler"
	"outreach_backend/internal/leads/repository"
	"outreach_backend/internal/leads/service"
	"outreach_backend/platform/logger"
	"outreach_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the leads bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates and initializes the leads module.
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
	return "leads"
}

// Service returns the leads service for cross-module use (email sequencing).
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts lead routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Protected.Group("/leads")
	m.handler.RegisterRoutes(group)
}

// RegisterHandlers subscribes to the domain events the pipeline reacts to.
func (m *Module) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.EmailEngaged{}.EventName(), m)
}

// Handle dispatches bus events to the service layer. A recorded reply on any
// of the lead's emails moves the lead to replied.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.EmailEngaged:
		if e.EventType == "reply" {
			return m.service.MarkReplied(ctx, e.LeadID)
		}
		return nil
	default:
		return nil
	}
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
