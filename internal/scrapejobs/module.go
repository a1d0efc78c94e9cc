// Package scrapejobs provides the company discovery bounded context module.
package scrapejobs

import (
	"context"

	companydomain "outreach_backend/internal/companies/domain"
	companiesservice "outreach_backend/internal/companies/service"
	companiestransport "outreach_backend/internal/companies/transport"
	"outreach_backend/internal/events"
	apphttp "outreach_backend/internal/http"
	"outreach_backend/internal/scrapejobs/handler"
	"outreach_backend/internal/scrapejobs/ports"
	"outreach_backend/internal/scrapejobs/repository"
	"outreach_backend/internal/scrapejobs/service"
	"outreach_backend/platform/logger"
	"outreach_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the scrape jobs bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates and initializes the scrape jobs module.
func NewModule(
	pool *pgxpool.Pool,
	bus events.Bus,
	val *validator.Validator,
	log *logger.Logger,
	enqueuer service.TaskEnqueuer,
	scraper ports.Scraper,
	companies *companiesservice.Service,
) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, enqueuer, scraper, companyIngester{svc: companies}, bus, log)
	return &Module{
		handler: handler.New(svc, val),
		service: svc,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "scrapejobs"
}

// Service returns the scrape jobs service for the background worker.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts scrape job routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Protected.Group("/scrape-jobs")
	m.handler.RegisterRoutes(group)
}

// companyIngester adapts the companies service to the ingestion port.
type companyIngester struct {
	svc *companiesservice.Service
}

func (i companyIngester) Ingest(ctx context.Context, company ports.DiscoveredCompany, source companydomain.Source) (bool, error) {
	result, err := i.svc.GetOrCreateByDomain(ctx, companiestransport.CreateCompanyRequest{
		Name:     company.Name,
		Domain:   company.Domain,
		Source:   string(source),
		Industry: company.Industry,
	})
	if err != nil {
		return false, err
	}
	return result.Created, nil
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
