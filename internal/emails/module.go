// Package emails provides the outreach email bounded context module.
package emails

import (
	"context"

	"outreach_backend/internal/emails/handler"
	"outreach_backend/internal/emails/repository"
	"outreach_backend/internal/emails/service"
	"outreach_backend/internal/events"
	apphttp "outreach_backend/internal/http"
	leadsservice "outreach_backend/internal/leads/service"
	"outreach_backend/internal/mailer"
	"outreach_backend/platform/apperr"
	"outreach_backend/platform/config"
	"outreach_backend/platform/logger"
	"outreach_backend/platform/validator"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the emails bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates and initializes the emails module.
func NewModule(
	pool *pgxpool.Pool,
	bus events.Bus,
	val *validator.Validator,
	log *logger.Logger,
	sender mailer.Sender,
	enqueuer service.TaskEnqueuer,
	cfg config.TrackingConfig,
	leads *leadsservice.Service,
) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, leadGateway{svc: leads}, sender, enqueuer, bus, log, cfg.GetTrackingBaseURL())
	return &Module{
		handler: handler.New(svc, val),
		service: svc,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "emails"
}

// Service returns the emails service for cross-module use.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts email routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Protected.Group("/emails")
	m.handler.RegisterRoutes(group)
}

// leadGateway adapts the leads service to the port the emails service needs.
type leadGateway struct {
	svc *leadsservice.Service
}

func (g leadGateway) ContactFor(ctx context.Context, leadID uuid.UUID) (service.Contact, error) {
	l, err := g.svc.GetByID(ctx, leadID)
	if err != nil {
		return service.Contact{}, err
	}
	if l.Email == nil || *l.Email == "" {
		return service.Contact{}, apperr.Validation("lead has no email address")
	}
	return service.Contact{Email: *l.Email, Name: l.FullName, CompanyID: l.CompanyID}, nil
}

func (g leadGateway) MarkSequenced(ctx context.Context, leadID uuid.UUID) error {
	return g.svc.MarkSequenced(ctx, leadID)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
