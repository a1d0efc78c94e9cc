// Package scraper holds Scraper implementations. The real source connectors
// live outside this repository; Noop keeps the job pipeline runnable without
// them.
package scraper

import (
	"context"

	companydomain "outreach_backend/internal/companies/domain"
	"outreach_backend/internal/scrapejobs/ports"
	"outreach_backend/platform/logger"
)

// Noop is a Scraper that discovers nothing. Jobs run through the full
// lifecycle and complete with zero results.
type Noop struct {
	log *logger.Logger
}

// NewNoop creates the no-result scraper.
func NewNoop(log *logger.Logger) *Noop {
	return &Noop{log: log}
}

// Scrape returns no results.
func (s *Noop) Scrape(_ context.Context, source companydomain.Source, keywords []string, _ map[string]any) ([]ports.DiscoveredCompany, error) {
	s.log.Info("noop scraper invoked", "source", source, "keywords", keywords)
	return nil, nil
}

var _ ports.Scraper = (*Noop)(nil)
