// Package tracking provides the engagement tracking bounded context module:
// the append-only event log, the public pixel/redirect/webhook endpoints,
// and the aggregated statistics reads.
package tracking

import (
	"outreach_backend/internal/events"
	apphttp "outreach_backend/internal/http"
	"outreach_backend/internal/tracking/handler"
	"outreach_backend/internal/tracking/repository"
	"outreach_backend/internal/tracking/service"
	"outreach_backend/platform/logger"
	"outreach_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the tracking bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates and initializes the tracking module.
func NewModule(pool *pgxpool.Pool, bus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, bus, log)
	return &Module{
		handler: handler.New(svc, val, log),
		service: svc,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "tracking"
}

// Service returns the tracking service for cross-module use.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts both the public tracking endpoints on the engine and
// the analytics routes on the protected group.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterPublicRoutes(ctx.Engine)
	group := ctx.Protected.Group("/tracking")
	m.handler.RegisterRoutes(group)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
