// Package ingest orchestrates scraping runs: fetch, parse, normalize, dedup
// and persist, one source at a time or all of them.
package ingest

import (
	"context"
	"errors"
	"time"

	"skillscope/ingest-service/internal/model"
	"skillscope/ingest-service/internal/normalize"
)

// Gateway is the storage surface the coordinator writes through. Every
// get-or-create must be atomic under concurrent callers: two creations of
// the same natural key never both succeed.
type Gateway interface {
	// GetOrCreateSource also writes the source's registry attributes
	// (base URL, active flag, scrape frequency) onto an existing row.
	GetOrCreateSource(ctx context.Context, src model.Source) (model.SourceRef, error)
	GetOrCreateCompany(ctx context.Context, name string) (model.CompanyRef, error)
	GetOrCreateLocation(ctx context.Context, key model.LocationKey) (model.LocationRef, error)
	GetOrCreateSkill(ctx context.Context, name, category string) (model.SkillRef, error)
	JobExists(ctx context.Context, title string, company model.CompanyRef) (bool, error)
	// CreateJob returns model.ErrDuplicate when the title+company pair is
	// already taken and model.ErrContractViolation for invalid fields.
	CreateJob(ctx context.Context, f model.JobFields) (model.JobRef, error)
	AttachSkill(ctx context.Context, job model.JobRef, skill model.SkillRef) error
	UpdateSourceLastScraped(ctx context.Context, src model.SourceRef, at time.Time) error
	// RefreshJob overwrites description, salary and tags of the Job matching
	// f's title and company. Reports whether a row was updated.
	RefreshJob(ctx context.Context, f model.JobFields) (bool, error)
}

// ─── Error taxonomy ──────────────────────────────────────────────────────────

var (
	// ErrUnknownSource is returned when a run names a source that is not
	// configured.
	ErrUnknownSource = errors.New("unknown source")

	// ErrRejected marks a listing dropped by the normalizer.
	ErrRejected = normalize.ErrRejected

	// ErrContractViolation marks a Job that was about to be persisted
	// without its required fields.
	ErrContractViolation = model.ErrContractViolation
)
