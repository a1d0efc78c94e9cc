// Package ports declares the boundaries the scrape job runner depends on:
// the external source being scraped and the company ingestion sink.
package ports

import (
	"context"

	companydomain "outreach_backend/internal/companies/domain"
)

// DiscoveredCompany is one raw result from a scrape source.
type DiscoveredCompany struct {
	Name     string
	Domain   *string
	Industry *string
}

// Scraper executes a discovery run against an external source.
type Scraper interface {
	Scrape(ctx context.Context, source companydomain.Source, keywords []string, filters map[string]any) ([]DiscoveredCompany, error)
}

// CompanyIngester deduplicates discovered companies into the pipeline.
// created reports whether the company was new.
type CompanyIngester interface {
	Ingest(ctx context.Context, company DiscoveredCompany, source companydomain.Source) (created bool, err error)
}
