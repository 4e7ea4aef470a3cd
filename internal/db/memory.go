package db

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"skillscope/ingest-service/internal/model"
	"skillscope/ingest-service/internal/normalize"
)

// StoredJob is a Job held by the MemoryGateway.
type StoredJob struct {
	ID int64
	model.JobFields
	SkillIDs []int64
}

type jobKey struct {
	title     string
	companyID int64
}

type memSource struct {
	ref         model.SourceRef
	attrs       model.Source
	lastScraped time.Time
}

// MemoryGateway is an in-process Gateway with the same natural-key
// uniqueness as the Postgres schema. Used by `scrape --store memory` and by
// tests.
type MemoryGateway struct {
	mu     sync.Mutex
	policy string
	nextID int64

	sources   map[string]*memSource
	companies map[string]model.CompanyRef
	locations map[model.LocationKey]model.LocationRef
	skills    map[string]model.SkillRef
	jobs      map[int64]*StoredJob
	jobIndex  map[jobKey]int64
}

// NewMemoryGateway returns an empty MemoryGateway. policy is the Company and
// Skill name policy: "exact" or "fold".
func NewMemoryGateway(policy string) *MemoryGateway {
	return &MemoryGateway{
		policy:    policy,
		sources:   make(map[string]*memSource),
		companies: make(map[string]model.CompanyRef),
		locations: make(map[model.LocationKey]model.LocationRef),
		skills:    make(map[string]model.SkillRef),
		jobs:      make(map[int64]*StoredJob),
		jobIndex:  make(map[jobKey]int64),
	}
}

func (g *MemoryGateway) id() int64 {
	g.nextID++
	return g.nextID
}

func (g *MemoryGateway) GetOrCreateSource(_ context.Context, src model.Source) (model.SourceRef, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	attrs := model.Source{Name: src.Name, BaseURL: src.BaseURL, Active: src.Active, ScrapeFrequency: src.ScrapeFrequency}
	if s, ok := g.sources[src.Name]; ok {
		s.attrs = attrs
		return s.ref, nil
	}
	s := &memSource{ref: model.SourceRef{ID: g.id(), Name: src.Name}, attrs: attrs}
	g.sources[src.Name] = s
	return s.ref, nil
}

func (g *MemoryGateway) GetOrCreateCompany(_ context.Context, name string) (model.CompanyRef, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	key := normalize.NameKey(g.policy, name)
	if c, ok := g.companies[key]; ok {
		return c, nil
	}
	c := model.CompanyRef{ID: g.id(), Name: name}
	g.companies[key] = c
	return c, nil
}

func (g *MemoryGateway) GetOrCreateLocation(_ context.Context, key model.LocationKey) (model.LocationRef, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if l, ok := g.locations[key]; ok {
		return l, nil
	}
	l := model.LocationRef{ID: g.id()}
	g.locations[key] = l
	return l, nil
}

func (g *MemoryGateway) GetOrCreateSkill(_ context.Context, name, _ string) (model.SkillRef, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	key := normalize.NameKey(g.policy, name)
	if s, ok := g.skills[key]; ok {
		return s, nil
	}
	s := model.SkillRef{ID: g.id(), Name: name}
	g.skills[key] = s
	return s, nil
}

func (g *MemoryGateway) JobExists(_ context.Context, title string, company model.CompanyRef) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.jobIndex[jobKey{title, company.ID}]
	return ok, nil
}

func (g *MemoryGateway) CreateJob(_ context.Context, f model.JobFields) (model.JobRef, error) {
	if err := f.Validate(); err != nil {
		return model.JobRef{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	k := jobKey{f.Title, f.Company.ID}
	if _, ok := g.jobIndex[k]; ok {
		return model.JobRef{}, model.ErrDuplicate
	}
	j := &StoredJob{ID: g.id(), JobFields: f}
	g.jobs[j.ID] = j
	g.jobIndex[k] = j.ID
	return model.JobRef{ID: j.ID}, nil
}

func (g *MemoryGateway) AttachSkill(_ context.Context, job model.JobRef, skill model.SkillRef) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	j, ok := g.jobs[job.ID]
	if !ok {
		return fmt.Errorf("attach skill: job %d: %w", job.ID, ErrNotFound)
	}
	for _, id := range j.SkillIDs {
		if id == skill.ID {
			return nil
		}
	}
	j.SkillIDs = append(j.SkillIDs, skill.ID)
	return nil
}

func (g *MemoryGateway) UpdateSourceLastScraped(_ context.Context, src model.SourceRef, at time.Time) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	s, ok := g.sources[src.Name]
	if !ok || s.ref.ID != src.ID {
		return fmt.Errorf("update last scraped: source %q: %w", src.Name, ErrNotFound)
	}
	s.lastScraped = at
	return nil
}

func (g *MemoryGateway) RefreshJob(_ context.Context, f model.JobFields) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id, ok := g.jobIndex[jobKey{f.Title, f.Company.ID}]
	if !ok {
		return false, nil
	}
	j := g.jobs[id]
	j.Description = f.Description
	j.SalaryMin, j.SalaryMax, j.Currency = f.SalaryMin, f.SalaryMax, f.Currency
	j.Tags = f.Tags
	return true, nil
}

// SourceLastScraped returns when the named source was last scraped. The
// zero time means never.
func (g *MemoryGateway) SourceLastScraped(_ context.Context, name string) (time.Time, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if s, ok := g.sources[name]; ok {
		return s.lastScraped, nil
	}
	return time.Time{}, nil
}

// ── Inspection ───────────────────────────────────────────────────────────────

// StoredSource returns the registry attributes last written for name.
func (g *MemoryGateway) StoredSource(name string) (model.Source, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	s, ok := g.sources[name]
	if !ok {
		return model.Source{}, false
	}
	return s.attrs, true
}

// Jobs returns a copy of every stored Job, oldest first.
func (g *MemoryGateway) Jobs() []StoredJob {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]StoredJob, 0, len(g.jobs))
	for _, j := range g.jobs {
		cp := *j
		cp.SkillIDs = append([]int64(nil), j.SkillIDs...)
		out = append(out, cp)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	return out
}

// Counts reports how many companies, locations and skills exist.
func (g *MemoryGateway) Counts() (companies, locations, skills int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.companies), len(g.locations), len(g.skills)
}

// SkillNames resolves skill IDs to names.
func (g *MemoryGateway) SkillNames(ids []int64) []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	byID := make(map[int64]string, len(g.skills))
	for _, s := range g.skills {
		byID[s.ID] = s.Name
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, byID[id])
	}
	return out
}
