package db_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skillscope/ingest-service/internal/db"
	"skillscope/ingest-service/internal/ingest"
	"skillscope/ingest-service/internal/model"
)

var _ ingest.Gateway = (*db.MemoryGateway)(nil)

func TestMemoryGateway_GetOrCreateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	g := db.NewMemoryGateway("exact")

	a, _ := g.GetOrCreateCompany(ctx, "Acme")
	b, _ := g.GetOrCreateCompany(ctx, "Acme")
	c, _ := g.GetOrCreateCompany(ctx, "acme")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a.ID, c.ID, "exact policy is case-sensitive")

	key := model.LocationKey{City: "Remote", Country: "Germany", IsRemote: true}
	l1, _ := g.GetOrCreateLocation(ctx, key)
	l2, _ := g.GetOrCreateLocation(ctx, key)
	l3, _ := g.GetOrCreateLocation(ctx, model.LocationKey{City: "Remote", Country: "Germany"})
	assert.Equal(t, l1, l2)
	assert.NotEqual(t, l1, l3)

	s1, _ := g.GetOrCreateSkill(ctx, "Go", "Programming")
	s2, _ := g.GetOrCreateSkill(ctx, "Go", "")
	assert.Equal(t, s1, s2)

	companies, locations, skills := g.Counts()
	assert.Equal(t, 2, companies)
	assert.Equal(t, 2, locations)
	assert.Equal(t, 1, skills)
}

func TestMemoryGateway_FoldPolicy(t *testing.T) {
	ctx := context.Background()
	g := db.NewMemoryGateway("fold")

	a, _ := g.GetOrCreateCompany(ctx, "Acme Corp")
	b, _ := g.GetOrCreateCompany(ctx, " ACME   corp ")
	assert.Equal(t, a.ID, b.ID)
	assert.Equal(t, "Acme Corp", b.Name)
}

func TestMemoryGateway_ConcurrentGetOrCreate(t *testing.T) {
	ctx := context.Background()
	g := db.NewMemoryGateway("exact")

	const n = 32
	ids := make([]int64, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ref, err := g.GetOrCreateCompany(ctx, "Racy Inc")
			assert.NoError(t, err)
			ids[i] = ref.ID
		}()
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	companies, _, _ := g.Counts()
	assert.Equal(t, 1, companies)
}

func TestMemoryGateway_Jobs(t *testing.T) {
	ctx := context.Background()
	g := db.NewMemoryGateway("exact")

	src, _ := g.GetOrCreateSource(ctx, remoteOK())
	co, _ := g.GetOrCreateCompany(ctx, "Acme")
	f := validFields()
	f.Company, f.Source, f.Location = co, src, nil

	exists, err := g.JobExists(ctx, f.Title, co)
	require.NoError(t, err)
	assert.False(t, exists)

	job, err := g.CreateJob(ctx, f)
	require.NoError(t, err)

	exists, _ = g.JobExists(ctx, f.Title, co)
	assert.True(t, exists)
	exists, _ = g.JobExists(ctx, "go engineer", co)
	assert.False(t, exists, "dedup is case-sensitive")

	_, err = g.CreateJob(ctx, f)
	assert.ErrorIs(t, err, model.ErrDuplicate)

	skill, _ := g.GetOrCreateSkill(ctx, "Go", "Programming")
	require.NoError(t, g.AttachSkill(ctx, job, skill))
	require.NoError(t, g.AttachSkill(ctx, job, skill))
	assert.ErrorIs(t, g.AttachSkill(ctx, model.JobRef{ID: 999}, skill), db.ErrNotFound)

	jobs := g.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, []string{"Go"}, g.SkillNames(jobs[0].SkillIDs))
	assert.Equal(t, "pending", string(jobs[0].Status))
}

func TestMemoryGateway_RejectsContractViolation(t *testing.T) {
	g := db.NewMemoryGateway("exact")
	f := validFields()
	f.PostedDate = time.Time{}

	_, err := g.CreateJob(context.Background(), f)
	assert.ErrorIs(t, err, model.ErrContractViolation)
	assert.Empty(t, g.Jobs())
}

func TestMemoryGateway_RefreshJob(t *testing.T) {
	ctx := context.Background()
	g := db.NewMemoryGateway("exact")
	f := validFields()
	_, err := g.CreateJob(ctx, f)
	require.NoError(t, err)

	lo := 90000.0
	f.Description, f.SalaryMin, f.Tags = "new text", &lo, "Go, Remote"
	ok, err := g.RefreshJob(ctx, f)
	require.NoError(t, err)
	assert.True(t, ok)

	got := g.Jobs()[0]
	assert.Equal(t, "new text", got.Description)
	assert.Equal(t, 90000.0, *got.SalaryMin)
	assert.Equal(t, "Go, Remote", got.Tags)

	f.Title = "Other"
	ok, err = g.RefreshJob(ctx, f)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryGateway_LastScraped(t *testing.T) {
	ctx := context.Background()
	g := db.NewMemoryGateway("exact")

	at, err := g.SourceLastScraped(ctx, "RemoteOK")
	require.NoError(t, err)
	assert.True(t, at.IsZero())

	ref, _ := g.GetOrCreateSource(ctx, remoteOK())
	now := time.Date(2026, 2, 2, 2, 2, 2, 0, time.UTC)
	require.NoError(t, g.UpdateSourceLastScraped(ctx, ref, now))

	at, _ = g.SourceLastScraped(ctx, "RemoteOK")
	assert.Equal(t, now, at)

	err = g.UpdateSourceLastScraped(ctx, model.SourceRef{ID: 77, Name: "Ghost"}, now)
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func remoteOK() model.Source {
	return model.Source{Name: "RemoteOK", BaseURL: "https://remoteok.com", Active: true, ScrapeFrequency: 24 * time.Hour}
}

func TestMemoryGateway_SourceAttributesFollowConfig(t *testing.T) {
	ctx := context.Background()
	g := db.NewMemoryGateway("exact")

	first, err := g.GetOrCreateSource(ctx, remoteOK())
	require.NoError(t, err)

	paused := remoteOK()
	paused.Active = false
	paused.ScrapeFrequency = 6 * time.Hour
	again, err := g.GetOrCreateSource(ctx, paused)
	require.NoError(t, err)
	assert.Equal(t, first, again)

	stored, ok := g.StoredSource("RemoteOK")
	require.True(t, ok)
	assert.False(t, stored.Active)
	assert.Equal(t, 6*time.Hour, stored.ScrapeFrequency)

	_, ok = g.StoredSource("Ghost")
	assert.False(t, ok)
}
