// Package db provides database connection helpers and the storage gateways
// the ingestion pipeline writes through.
package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"skillscope/ingest-service/internal/model"
	"skillscope/ingest-service/internal/normalize"
)

// NewPostgresPool creates and verifies a pgxpool connection pool.
func NewPostgresPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}

	return pool, nil
}

// ─── Sentinel errors ─────────────────────────────────────────────────────────

var (
	// ErrNotFound is returned when an update targets a row that does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a get-or-create lost its race twice.
	ErrConflict = errors.New("storage conflict")
)

const uniqueViolation = "23505"

// defaultFrequencyHours matches the sources.scrape_frequency_hours default.
const defaultFrequencyHours = 24

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// Querier is the subset of *pgxpool.Pool the gateway uses.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ─── Gateway ─────────────────────────────────────────────────────────────────

// PostgresGateway persists the pipeline's entities. Uniqueness of natural
// keys is enforced by the schema; get-or-create relies on
// INSERT ... ON CONFLICT DO NOTHING RETURNING and reads the row back when the
// insert lost a race.
type PostgresGateway struct {
	q      Querier
	policy string
}

// NewPostgresGateway returns a gateway over q. policy is the Company and
// Skill name policy: "exact" or "fold".
func NewPostgresGateway(q Querier, policy string) *PostgresGateway {
	return &PostgresGateway{q: q, policy: policy}
}

// getOrCreate runs insertSQL, which must return the new id or no row on
// conflict, then selectSQL to read the existing id. The pair is tried twice
// before giving up with ErrConflict.
func (g *PostgresGateway) getOrCreate(ctx context.Context, what, insertSQL string, insertArgs []any, selectSQL string, selectArgs []any) (int64, error) {
	for attempt := 0; attempt < 2; attempt++ {
		var id int64
		err := g.q.QueryRow(ctx, insertSQL, insertArgs...).Scan(&id)
		switch {
		case err == nil:
			return id, nil
		case errors.Is(err, pgx.ErrNoRows), isUniqueViolation(err):
		default:
			return 0, fmt.Errorf("insert %s: %w", what, err)
		}

		err = g.q.QueryRow(ctx, selectSQL, selectArgs...).Scan(&id)
		switch {
		case err == nil:
			return id, nil
		case errors.Is(err, pgx.ErrNoRows):
			// deleted between the two statements
		default:
			return 0, fmt.Errorf("select %s: %w", what, err)
		}
	}
	return 0, fmt.Errorf("%s: %w", what, ErrConflict)
}

// GetOrCreateSource upserts the source row, so the registry columns follow
// the configured sources.
func (g *PostgresGateway) GetOrCreateSource(ctx context.Context, src model.Source) (model.SourceRef, error) {
	var id int64
	err := g.q.QueryRow(ctx,
		`INSERT INTO sources (name, base_url, is_active, scrape_frequency_hours)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (name) DO UPDATE SET
		     base_url               = EXCLUDED.base_url,
		     is_active              = EXCLUDED.is_active,
		     scrape_frequency_hours = EXCLUDED.scrape_frequency_hours
		 RETURNING id`,
		src.Name, src.BaseURL, src.Active, frequencyHours(src.ScrapeFrequency),
	).Scan(&id)
	if err != nil {
		return model.SourceRef{}, fmt.Errorf("upsert source %q: %w", src.Name, err)
	}
	return model.SourceRef{ID: id, Name: src.Name}, nil
}

// frequencyHours rounds d up to whole hours; zero keeps the column default.
func frequencyHours(d time.Duration) int {
	if d <= 0 {
		return defaultFrequencyHours
	}
	return int((d + time.Hour - 1) / time.Hour)
}

func (g *PostgresGateway) GetOrCreateCompany(ctx context.Context, name string) (model.CompanyRef, error) {
	key := normalize.NameKey(g.policy, name)
	id, err := g.getOrCreate(ctx, "company",
		`INSERT INTO companies (name, name_key) VALUES ($1, $2)
		 ON CONFLICT (name_key) DO NOTHING
		 RETURNING id`,
		[]any{name, key},
		`SELECT id FROM companies WHERE name_key = $1`,
		[]any{key},
	)
	if err != nil {
		return model.CompanyRef{}, err
	}
	return model.CompanyRef{ID: id, Name: name}, nil
}

func (g *PostgresGateway) GetOrCreateLocation(ctx context.Context, key model.LocationKey) (model.LocationRef, error) {
	id, err := g.getOrCreate(ctx, "location",
		`INSERT INTO locations (city, country, is_remote) VALUES ($1, $2, $3)
		 ON CONFLICT (city, country, is_remote) DO NOTHING
		 RETURNING id`,
		[]any{key.City, key.Country, key.IsRemote},
		`SELECT id FROM locations WHERE city = $1 AND country = $2 AND is_remote = $3`,
		[]any{key.City, key.Country, key.IsRemote},
	)
	if err != nil {
		return model.LocationRef{}, err
	}
	return model.LocationRef{ID: id}, nil
}

func (g *PostgresGateway) GetOrCreateSkill(ctx context.Context, name, category string) (model.SkillRef, error) {
	key := normalize.NameKey(g.policy, name)
	id, err := g.getOrCreate(ctx, "skill",
		`INSERT INTO skills (name, name_key, category) VALUES ($1, $2, NULLIF($3, ''))
		 ON CONFLICT (name_key) DO NOTHING
		 RETURNING id`,
		[]any{name, key, category},
		`SELECT id FROM skills WHERE name_key = $1`,
		[]any{key},
	)
	if err != nil {
		return model.SkillRef{}, err
	}
	return model.SkillRef{ID: id, Name: name}, nil
}

func (g *PostgresGateway) JobExists(ctx context.Context, title string, company model.CompanyRef) (bool, error) {
	var exists bool
	err := g.q.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM jobs WHERE title = $1 AND company_id = $2)`,
		title, company.ID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("jobExists query: %w", err)
	}
	return exists, nil
}

func (g *PostgresGateway) CreateJob(ctx context.Context, f model.JobFields) (model.JobRef, error) {
	if err := f.Validate(); err != nil {
		return model.JobRef{}, err
	}

	var locationID *int64
	if f.Location != nil {
		locationID = &f.Location.ID
	}

	var id int64
	err := g.q.QueryRow(ctx,
		`INSERT INTO jobs (title, company_id, location_id, description, job_type,
		                   experience_level, salary_min, salary_max, currency,
		                   source_id, external_url, status, posted_date, tags)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		 ON CONFLICT (title, company_id) DO NOTHING
		 RETURNING id`,
		f.Title, f.Company.ID, locationID, f.Description, string(f.JobType),
		string(f.ExperienceLevel), f.SalaryMin, f.SalaryMax, f.Currency,
		f.Source.ID, f.ExternalURL, string(f.Status), f.PostedDate, f.Tags,
	).Scan(&id)
	switch {
	case errors.Is(err, pgx.ErrNoRows), isUniqueViolation(err):
		return model.JobRef{}, model.ErrDuplicate
	case err != nil:
		return model.JobRef{}, fmt.Errorf("createJob: %w", err)
	}
	return model.JobRef{ID: id}, nil
}

func (g *PostgresGateway) AttachSkill(ctx context.Context, job model.JobRef, skill model.SkillRef) error {
	_, err := g.q.Exec(ctx,
		`INSERT INTO job_skills (job_id, skill_id) VALUES ($1, $2)
		 ON CONFLICT DO NOTHING`,
		job.ID, skill.ID,
	)
	if err != nil {
		return fmt.Errorf("attachSkill: %w", err)
	}
	return nil
}

func (g *PostgresGateway) UpdateSourceLastScraped(ctx context.Context, src model.SourceRef, at time.Time) error {
	tag, err := g.q.Exec(ctx,
		`UPDATE sources SET last_scraped = $1 WHERE id = $2`,
		at.UTC(), src.ID,
	)
	if err != nil {
		return fmt.Errorf("updateSourceLastScraped: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("updateSourceLastScraped: source %d: %w", src.ID, ErrNotFound)
	}
	return nil
}

func (g *PostgresGateway) RefreshJob(ctx context.Context, f model.JobFields) (bool, error) {
	tag, err := g.q.Exec(ctx,
		`UPDATE jobs
		 SET description = $1,
		     salary_min  = $2,
		     salary_max  = $3,
		     currency    = $4,
		     tags        = $5,
		     updated_at  = NOW()
		 WHERE title = $6 AND company_id = $7`,
		f.Description, f.SalaryMin, f.SalaryMax, f.Currency, f.Tags,
		f.Title, f.Company.ID,
	)
	if err != nil {
		return false, fmt.Errorf("refreshJob: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// SourceLastScraped returns when the named source was last scraped. The
// zero time means never, or an unknown source.
func (g *PostgresGateway) SourceLastScraped(ctx context.Context, name string) (time.Time, error) {
	var at *time.Time
	err := g.q.QueryRow(ctx,
		`SELECT last_scraped FROM sources WHERE name = $1`,
		name,
	).Scan(&at)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return time.Time{}, nil
	case err != nil:
		return time.Time{}, fmt.Errorf("sourceLastScraped: %w", err)
	}
	if at == nil {
		return time.Time{}, nil
	}
	return *at, nil
}
