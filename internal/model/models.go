// Package model defines shared data structures for the ingestion service.
package model

import (
	"errors"
	"fmt"
	"time"

	"skillscope/ingest-service/internal/moderation"
)

// JobType mirrors the job_type column values.
type JobType string

const (
	JobTypeFullTime   JobType = "full_time"
	JobTypePartTime   JobType = "part_time"
	JobTypeContract   JobType = "contract"
	JobTypeInternship JobType = "internship"
	JobTypeFreelance  JobType = "freelance"
)

// ExperienceLevel mirrors the experience_level column values.
type ExperienceLevel string

const (
	ExperienceEntry  ExperienceLevel = "entry"
	ExperienceMid    ExperienceLevel = "mid"
	ExperienceSenior ExperienceLevel = "senior"
	ExperienceLead   ExperienceLevel = "lead"
)

// Source is an external job board the pipeline scrapes. Only LastScraped is
// ever written back by a run.
type Source struct {
	Name            string
	Kind            string // parser identifier, e.g. "weworkremotely"
	BaseURL         string
	CategoryURLs    []string
	SearchURL       string // contains "{query}" for keyword-search sources
	RemoteOnly      bool
	Active          bool
	ScrapeFrequency time.Duration
	DefaultCurrency string
}

// Salary is a parsed salary hint. Max is nil when only one figure was given.
type Salary struct {
	Min      float64
	Max      *float64
	Currency string
}

// RawListing is one job posting as extracted by a parser. All fields are
// best-effort; Title and URL are required downstream.
type RawListing struct {
	Title       string
	Company     string
	Location    string
	Description string
	Tags        []string
	Salary      *Salary
	URL         string
}

// LocationKey is the natural key of a Location.
type LocationKey struct {
	City     string
	Country  string
	IsRemote bool
}

// SkillTerm is one canonical vocabulary entry.
type SkillTerm struct {
	Name     string `yaml:"name"`
	Category string `yaml:"category"`
}

// NormalizedJob is a RawListing mapped onto canonical entities, ready for
// dedup and persistence.
type NormalizedJob struct {
	Title       string
	Company     string
	Location    LocationKey
	Description string
	JobType     JobType
	Experience  ExperienceLevel
	Salary      *Salary
	Skills      []SkillTerm
	Tags        string
	ExternalURL string
	PostedDate  time.Time
}

// ── Storage references ─────────────────────────────────────────────────────

type SourceRef struct {
	ID   int64
	Name string
}

type CompanyRef struct {
	ID   int64
	Name string
}

type LocationRef struct {
	ID int64
}

type SkillRef struct {
	ID   int64
	Name string
}

type JobRef struct {
	ID int64
}

// JobFields is everything CreateJob needs. Build it with NewJobFields.
type JobFields struct {
	Title           string
	Company         CompanyRef
	Location        *LocationRef
	Description     string
	JobType         JobType
	ExperienceLevel ExperienceLevel
	SalaryMin       *float64
	SalaryMax       *float64
	Currency        *string
	Source          SourceRef
	ExternalURL     string
	Status          moderation.Status
	PostedDate      time.Time
	Tags            string
}

// ErrContractViolation marks a Job that must never reach storage: one
// without an external URL or posted date.
var ErrContractViolation = errors.New("job contract violation")

// ErrDuplicate is returned by CreateJob when a Job with the same title and
// company already exists.
var ErrDuplicate = errors.New("job already exists")

// NewJobFields assembles the creation fields for a normalized job. The
// status is always moderation.Initial.
func NewJobFields(nj NormalizedJob, company CompanyRef, location *LocationRef, source SourceRef) (JobFields, error) {
	f := JobFields{
		Title:           nj.Title,
		Company:         company,
		Location:        location,
		Description:     nj.Description,
		JobType:         nj.JobType,
		ExperienceLevel: nj.Experience,
		Source:          source,
		ExternalURL:     nj.ExternalURL,
		Status:          moderation.Initial,
		PostedDate:      nj.PostedDate,
		Tags:            nj.Tags,
	}
	if s := nj.Salary; s != nil {
		lo := s.Min
		f.SalaryMin = &lo
		if s.Max != nil {
			hi := *s.Max
			f.SalaryMax = &hi
		}
		if s.Currency != "" {
			cur := s.Currency
			f.Currency = &cur
		}
	}
	if err := f.Validate(); err != nil {
		return JobFields{}, err
	}
	return f, nil
}

// Validate checks the invariants every persisted Job must satisfy.
func (f JobFields) Validate() error {
	if _, err := moderation.ParseStatus(string(f.Status)); err != nil {
		return fmt.Errorf("%w: %q: %v", ErrContractViolation, f.Title, err)
	}
	switch {
	case f.ExternalURL == "":
		return fmt.Errorf("%w: %q has no external url", ErrContractViolation, f.Title)
	case f.PostedDate.IsZero():
		return fmt.Errorf("%w: %q has no posted date", ErrContractViolation, f.Title)
	case f.Status != moderation.StatusPending:
		return fmt.Errorf("%w: %q created with status %q", ErrContractViolation, f.Title, f.Status)
	}
	return nil
}

// Summary is the outcome of one scraping run.
type Summary struct {
	RunID       string `json:"runId"`
	Source      string `json:"source,omitempty"`
	Created     int    `json:"created"`
	Skipped     int    `json:"skipped"`
	Refreshed   int    `json:"refreshed"`
	Violations  int    `json:"violations"`
	FailedPages int    `json:"failedPages"`
}

// Add folds o into s. RunID and Source are left untouched.
func (s *Summary) Add(o Summary) {
	s.Created += o.Created
	s.Skipped += o.Skipped
	s.Refreshed += o.Refreshed
	s.Violations += o.Violations
	s.FailedPages += o.FailedPages
}
