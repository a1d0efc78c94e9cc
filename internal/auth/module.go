// Package auth provides the operator account bounded context module.
package auth

import (
	"outreach_backend/internal/auth/handler"
	"outreach_backend/internal/auth/repository"
	"outreach_backend/internal/auth/service"
	apphttp "outreach_backend/internal/http"
	"outreach_backend/platform/config"
	"outreach_backend/platform/logger"
	"outreach_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the auth bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
}

// NewModule creates and initializes the auth module.
func NewModule(pool *pgxpool.Pool, cfg config.AuthServiceConfig, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, cfg, log)
	return &Module{handler: handler.New(svc, val)}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "auth"
}

// RegisterRoutes mounts the credential endpoints behind the stricter auth
// rate limiter and the account endpoints behind authentication.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	public := ctx.V1.Group("/auth")
	public.Use(ctx.AuthRateLimiter.RateLimit())
	m.handler.RegisterPublicRoutes(public)

	protected := ctx.Protected.Group("/auth")
	m.handler.RegisterProtectedRoutes(protected)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
