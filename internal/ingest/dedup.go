package ingest

import (
	"context"
	"fmt"

	"skillscope/ingest-service/internal/model"
)

// JobChecker is the part of the Gateway the Deduplicator needs.
type JobChecker interface {
	JobExists(ctx context.Context, title string, company model.CompanyRef) (bool, error)
}

// Deduplicator decides whether a normalized job is already stored. The key
// is the exact (title, company) pair; no fuzzy matching.
type Deduplicator struct {
	jobs JobChecker
}

// NewDeduplicator returns a Deduplicator backed by jobs.
func NewDeduplicator(jobs JobChecker) *Deduplicator {
	return &Deduplicator{jobs: jobs}
}

// Exists reports whether a Job titled title already belongs to company.
func (d *Deduplicator) Exists(ctx context.Context, title string, company model.CompanyRef) (bool, error) {
	ok, err := d.jobs.JobExists(ctx, title, company)
	if err != nil {
		return false, fmt.Errorf("dedup %q at %q: %w", title, company.Name, err)
	}
	return ok, nil
}
