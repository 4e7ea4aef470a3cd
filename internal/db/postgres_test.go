package db_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skillscope/ingest-service/internal/db"
	"skillscope/ingest-service/internal/ingest"
	"skillscope/ingest-service/internal/model"
	"skillscope/ingest-service/internal/moderation"
)

var (
	_ ingest.Gateway = (*db.PostgresGateway)(nil)
	_ db.Querier     = (*fakeQuerier)(nil)
)

// ── fake querier ─────────────────────────────────────────────────────────────

type call struct {
	sql  string
	args []any
}

type rowFunc func(dest ...any) error

func (f rowFunc) Scan(dest ...any) error { return f(dest...) }

// fakeQuerier answers QueryRow calls from rows and Exec calls from tags,
// in order, and records every statement.
type fakeQuerier struct {
	rows  []rowFunc
	tags  []pgconn.CommandTag
	calls []call
}

func (f *fakeQuerier) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	f.calls = append(f.calls, call{sql, args})
	if len(f.rows) == 0 {
		return rowFunc(func(...any) error { return errors.New("unexpected QueryRow") })
	}
	r := f.rows[0]
	f.rows = f.rows[1:]
	return r
}

func (f *fakeQuerier) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.calls = append(f.calls, call{sql, args})
	if len(f.tags) == 0 {
		return pgconn.CommandTag{}, errors.New("unexpected Exec")
	}
	t := f.tags[0]
	f.tags = f.tags[1:]
	return t, nil
}

func id(v int64) rowFunc {
	return func(dest ...any) error {
		*dest[0].(*int64) = v
		return nil
	}
}

func fail(err error) rowFunc {
	return func(...any) error { return err }
}

// ── get-or-create ────────────────────────────────────────────────────────────

func TestGetOrCreateCompany_Inserted(t *testing.T) {
	q := &fakeQuerier{rows: []rowFunc{id(7)}}
	g := db.NewPostgresGateway(q, "exact")

	ref, err := g.GetOrCreateCompany(context.Background(), "Acme")
	require.NoError(t, err)
	assert.Equal(t, model.CompanyRef{ID: 7, Name: "Acme"}, ref)
	require.Len(t, q.calls, 1)
	assert.Contains(t, q.calls[0].sql, "ON CONFLICT (name_key) DO NOTHING")
	assert.Equal(t, []any{"Acme", "Acme"}, q.calls[0].args)
}

func TestGetOrCreateCompany_FoldPolicyKey(t *testing.T) {
	q := &fakeQuerier{rows: []rowFunc{id(1)}}
	g := db.NewPostgresGateway(q, "fold")

	_, err := g.GetOrCreateCompany(context.Background(), "  ACME  Corp")
	require.NoError(t, err)
	assert.Equal(t, "acme corp", q.calls[0].args[1])
}

func TestGetOrCreate_ConflictReadsExisting(t *testing.T) {
	q := &fakeQuerier{rows: []rowFunc{fail(pgx.ErrNoRows), id(42)}}
	g := db.NewPostgresGateway(q, "exact")

	ref, err := g.GetOrCreateLocation(context.Background(), model.LocationKey{City: "Remote", Country: "Germany", IsRemote: true})
	require.NoError(t, err)
	assert.Equal(t, int64(42), ref.ID)
	require.Len(t, q.calls, 2)
	assert.True(t, strings.HasPrefix(strings.TrimSpace(q.calls[1].sql), "SELECT id FROM locations"))
}

func TestGetOrCreate_UniqueViolationRetried(t *testing.T) {
	q := &fakeQuerier{rows: []rowFunc{
		fail(&pgconn.PgError{Code: "23505"}),
		id(9),
	}}
	g := db.NewPostgresGateway(q, "exact")

	ref, err := g.GetOrCreateSkill(context.Background(), "Go", "Programming")
	require.NoError(t, err)
	assert.Equal(t, model.SkillRef{ID: 9, Name: "Go"}, ref)
}

func TestGetOrCreate_RetriesOnceThenConflict(t *testing.T) {
	q := &fakeQuerier{rows: []rowFunc{
		fail(pgx.ErrNoRows), fail(pgx.ErrNoRows),
		fail(pgx.ErrNoRows), fail(pgx.ErrNoRows),
	}}
	g := db.NewPostgresGateway(q, "exact")

	_, err := g.GetOrCreateCompany(context.Background(), "Acme")
	assert.ErrorIs(t, err, db.ErrConflict)
	assert.Len(t, q.calls, 4)
}

func TestGetOrCreateSource_UpsertsRegistryColumns(t *testing.T) {
	cases := []struct {
		every time.Duration
		hours int
	}{
		{12 * time.Hour, 12},
		{90 * time.Minute, 2},
		{0, 24},
	}
	for _, c := range cases {
		q := &fakeQuerier{rows: []rowFunc{id(3)}}
		g := db.NewPostgresGateway(q, "exact")

		ref, err := g.GetOrCreateSource(context.Background(), model.Source{
			Name: "RemoteOK", BaseURL: "https://remoteok.com", Active: false, ScrapeFrequency: c.every,
		})
		require.NoError(t, err)
		assert.Equal(t, model.SourceRef{ID: 3, Name: "RemoteOK"}, ref)
		require.Len(t, q.calls, 1)
		assert.Contains(t, q.calls[0].sql, "ON CONFLICT (name) DO UPDATE SET")
		assert.Equal(t, []any{"RemoteOK", "https://remoteok.com", false, c.hours}, q.calls[0].args)
	}
}

func TestGetOrCreateSource_Error(t *testing.T) {
	q := &fakeQuerier{rows: []rowFunc{fail(errors.New("connection reset"))}}
	g := db.NewPostgresGateway(q, "exact")

	_, err := g.GetOrCreateSource(context.Background(), model.Source{Name: "RemoteOK"})
	assert.ErrorContains(t, err, `upsert source "RemoteOK"`)
}

func TestGetOrCreate_DatabaseErrorIsNotRetried(t *testing.T) {
	boom := errors.New("connection reset")
	q := &fakeQuerier{rows: []rowFunc{fail(boom)}}
	g := db.NewPostgresGateway(q, "exact")

	_, err := g.GetOrCreateCompany(context.Background(), "Acme")
	assert.ErrorIs(t, err, boom)
	assert.Len(t, q.calls, 1)
}

// ── jobs ─────────────────────────────────────────────────────────────────────

func validFields() model.JobFields {
	return model.JobFields{
		Title:           "Go Engineer",
		Company:         model.CompanyRef{ID: 3, Name: "Acme"},
		Location:        &model.LocationRef{ID: 5},
		JobType:         model.JobTypeFullTime,
		ExperienceLevel: model.ExperienceMid,
		Source:          model.SourceRef{ID: 1, Name: "RemoteOK"},
		ExternalURL:     "https://remoteok.com/remote-jobs/1",
		Status:          moderation.StatusPending,
		PostedDate:      time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC),
	}
}

func TestCreateJob(t *testing.T) {
	q := &fakeQuerier{rows: []rowFunc{id(100)}}
	g := db.NewPostgresGateway(q, "exact")

	ref, err := g.CreateJob(context.Background(), validFields())
	require.NoError(t, err)
	assert.Equal(t, int64(100), ref.ID)
	args := q.calls[0].args
	require.Len(t, args, 14)
	assert.Equal(t, "pending", args[11])
	loc, ok := args[2].(*int64)
	require.True(t, ok)
	assert.Equal(t, int64(5), *loc)
}

func TestCreateJob_ConflictIsDuplicate(t *testing.T) {
	q := &fakeQuerier{rows: []rowFunc{fail(pgx.ErrNoRows)}}
	g := db.NewPostgresGateway(q, "exact")

	_, err := g.CreateJob(context.Background(), validFields())
	assert.ErrorIs(t, err, model.ErrDuplicate)
}

func TestCreateJob_ContractViolationNeverReachesDatabase(t *testing.T) {
	q := &fakeQuerier{}
	g := db.NewPostgresGateway(q, "exact")

	f := validFields()
	f.ExternalURL = ""
	_, err := g.CreateJob(context.Background(), f)
	assert.ErrorIs(t, err, model.ErrContractViolation)

	f = validFields()
	f.Status = moderation.StatusApproved
	_, err = g.CreateJob(context.Background(), f)
	assert.ErrorIs(t, err, model.ErrContractViolation)
	assert.Empty(t, q.calls)
}

func TestJobExists(t *testing.T) {
	q := &fakeQuerier{rows: []rowFunc{func(dest ...any) error {
		*dest[0].(*bool) = true
		return nil
	}}}
	g := db.NewPostgresGateway(q, "exact")

	ok, err := g.JobExists(context.Background(), "Go Engineer", model.CompanyRef{ID: 3})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []any{"Go Engineer", int64(3)}, q.calls[0].args)
}

func TestUpdateSourceLastScraped(t *testing.T) {
	q := &fakeQuerier{tags: []pgconn.CommandTag{pgconn.NewCommandTag("UPDATE 1"), pgconn.NewCommandTag("UPDATE 0")}}
	g := db.NewPostgresGateway(q, "exact")
	at := time.Date(2026, 5, 1, 12, 0, 0, 0, time.FixedZone("X", 7200))

	require.NoError(t, g.UpdateSourceLastScraped(context.Background(), model.SourceRef{ID: 1}, at))
	assert.Equal(t, at.UTC(), q.calls[0].args[0])

	err := g.UpdateSourceLastScraped(context.Background(), model.SourceRef{ID: 2}, at)
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestRefreshJob(t *testing.T) {
	q := &fakeQuerier{tags: []pgconn.CommandTag{pgconn.NewCommandTag("UPDATE 1"), pgconn.NewCommandTag("UPDATE 0")}}
	g := db.NewPostgresGateway(q, "exact")

	ok, err := g.RefreshJob(context.Background(), validFields())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = g.RefreshJob(context.Background(), validFields())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSourceLastScraped(t *testing.T) {
	want := time.Date(2026, 4, 4, 8, 0, 0, 0, time.UTC)
	q := &fakeQuerier{rows: []rowFunc{
		func(dest ...any) error {
			*dest[0].(**time.Time) = &want
			return nil
		},
		fail(pgx.ErrNoRows),
	}}
	g := db.NewPostgresGateway(q, "exact")

	got, err := g.SourceLastScraped(context.Background(), "RemoteOK")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	got, err = g.SourceLastScraped(context.Background(), "Nope")
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}

func TestMigrateURL(t *testing.T) {
	assert.Equal(t, "pgx5://u:p@localhost:5432/jobs", db.MigrateURL("postgres://u:p@localhost:5432/jobs"))
	assert.Equal(t, "pgx5://localhost/jobs", db.MigrateURL("postgresql://localhost/jobs"))
	assert.Equal(t, "pgx5://already", db.MigrateURL("pgx5://already"))
}
