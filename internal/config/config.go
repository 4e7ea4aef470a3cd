// Package config loads and validates configuration at startup.
// Fail-fast: an invalid value stops the process before any scraping starts.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"skillscope/ingest-service/internal/model"
)

// Name policies for Company and Skill get-or-create.
const (
	NamePolicyExact = "exact"
	NamePolicyFold  = "fold"
)

const defaultUserAgent = "Mozilla/5.0 (compatible; SkillScopeBot/1.0)"

// Config holds all runtime configuration for the ingestion service.
type Config struct {
	Port            string
	DatabaseURL     string
	RedisURL        string // optional: events and run locks are off when empty
	LogLevel        string
	UserAgent       string
	RequestTimeout  time.Duration
	PolitenessDelay time.Duration
	RunTimeout      time.Duration // zero means no overall deadline
	SchedulerSpec   string
	ParallelSources bool
	NamePolicy      string
	RefreshExisting bool
	DefaultQuery    string

	Sources []model.Source
	Skills  []model.SkillTerm
}

// ErrDatabaseURL is returned by RequireDatabase when DATABASE_URL is unset.
var ErrDatabaseURL = errors.New("DATABASE_URL is required")

// Load reads an optional .env file, then environment variables, then the
// optional SOURCES_FILE, and returns a validated Config.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:          getenv("INGEST_PORT", "8081"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		RedisURL:      os.Getenv("REDIS_URL"),
		LogLevel:      getenv("LOG_LEVEL", "info"),
		UserAgent:     getenv("USER_AGENT", defaultUserAgent),
		SchedulerSpec: getenv("SCHEDULER_SPEC", "@every 1h"),
		NamePolicy:    getenv("NAME_POLICY", NamePolicyExact),
		DefaultQuery:  getenv("DEFAULT_QUERY", "software developer"),
	}

	var err error
	if cfg.RequestTimeout, err = durationEnv("REQUEST_TIMEOUT", 20*time.Second); err != nil {
		return nil, err
	}
	if cfg.PolitenessDelay, err = durationEnv("POLITENESS_DELAY", 200*time.Millisecond); err != nil {
		return nil, err
	}
	if cfg.RunTimeout, err = durationEnv("RUN_TIMEOUT", 0); err != nil {
		return nil, err
	}
	if cfg.ParallelSources, err = boolEnv("PARALLEL_SOURCES", false); err != nil {
		return nil, err
	}
	if cfg.RefreshExisting, err = boolEnv("REFRESH_EXISTING", false); err != nil {
		return nil, err
	}
	if cfg.NamePolicy != NamePolicyExact && cfg.NamePolicy != NamePolicyFold {
		return nil, fmt.Errorf("NAME_POLICY must be %q or %q, got %q", NamePolicyExact, NamePolicyFold, cfg.NamePolicy)
	}

	cfg.Sources, cfg.Skills = DefaultSources(), DefaultSkills()
	if path := os.Getenv("SOURCES_FILE"); path != "" {
		f, err := LoadSourcesFile(path)
		if err != nil {
			return nil, err
		}
		if len(f.Sources) > 0 {
			cfg.Sources = f.Sources
		}
		if len(f.Skills) > 0 {
			cfg.Skills = f.Skills
		}
	}

	return cfg, nil
}

// RequireDatabase fails when the Postgres store is selected without a DSN.
func (c *Config) RequireDatabase() error {
	if c.DatabaseURL == "" {
		return ErrDatabaseURL
	}
	return nil
}

// Source returns the configured source with the given name.
func (c *Config) Source(name string) (model.Source, bool) {
	for _, s := range c.Sources {
		if s.Name == name {
			return s, true
		}
	}
	return model.Source{}, false
}

// ─── Sources file ─────────────────────────────────────────────────────────────

// SourcesFile is the parsed content of SOURCES_FILE.
type SourcesFile struct {
	Sources []model.Source
	Skills  []model.SkillTerm
}

type sourceEntry struct {
	Name                 string   `yaml:"name" validate:"required"`
	Kind                 string   `yaml:"kind" validate:"required"`
	BaseURL              string   `yaml:"base_url" validate:"required,url"`
	CategoryURLs         []string `yaml:"category_urls" validate:"dive,url"`
	SearchURL            string   `yaml:"search_url" validate:"omitempty,url"`
	RemoteOnly           bool     `yaml:"remote_only"`
	Active               *bool    `yaml:"active"`
	ScrapeFrequencyHours int      `yaml:"scrape_frequency_hours" validate:"gte=0"`
	DefaultCurrency      string   `yaml:"default_currency" validate:"omitempty,len=3"`
}

type skillEntry struct {
	Name     string `yaml:"name" validate:"required"`
	Category string `yaml:"category"`
}

type fileLayout struct {
	Sources []sourceEntry `yaml:"sources" validate:"dive"`
	Skills  []skillEntry  `yaml:"skills" validate:"dive"`
}

// LoadSourcesFile parses and validates a YAML sources file.
func LoadSourcesFile(path string) (*SourcesFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sources file: %w", err)
	}
	return ParseSources(raw)
}

// ParseSources parses and validates YAML sources content.
func ParseSources(raw []byte) (*SourcesFile, error) {
	var layout fileLayout
	if err := yaml.Unmarshal(raw, &layout); err != nil {
		return nil, fmt.Errorf("parse sources file: %w", err)
	}
	if err := validator.New().Struct(layout); err != nil {
		return nil, fmt.Errorf("invalid sources file: %w", err)
	}

	out := &SourcesFile{}
	seen := make(map[string]bool, len(layout.Sources))
	for _, e := range layout.Sources {
		if seen[e.Name] {
			return nil, fmt.Errorf("invalid sources file: duplicate source %q", e.Name)
		}
		seen[e.Name] = true
		if e.SearchURL != "" && !strings.Contains(e.SearchURL, "{query}") {
			return nil, fmt.Errorf("invalid sources file: search_url of %q lacks {query}", e.Name)
		}
		if len(e.CategoryURLs) == 0 && e.SearchURL == "" {
			return nil, fmt.Errorf("invalid sources file: source %q has neither category_urls nor search_url", e.Name)
		}

		freq := e.ScrapeFrequencyHours
		if freq == 0 {
			freq = 24
		}
		out.Sources = append(out.Sources, model.Source{
			Name:            e.Name,
			Kind:            e.Kind,
			BaseURL:         e.BaseURL,
			CategoryURLs:    e.CategoryURLs,
			SearchURL:       e.SearchURL,
			RemoteOnly:      e.RemoteOnly,
			Active:          e.Active == nil || *e.Active,
			ScrapeFrequency: time.Duration(freq) * time.Hour,
			DefaultCurrency: e.DefaultCurrency,
		})
	}
	for _, s := range layout.Skills {
		out.Skills = append(out.Skills, model.SkillTerm{Name: s.Name, Category: s.Category})
	}
	return out, nil
}

// ─── env helpers ──────────────────────────────────────────────────────────────

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("%s must be a non-negative duration, got %q", key, s)
	}
	return d, nil
}

func boolEnv(key string, fallback bool) (bool, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean, got %q", key, s)
	}
	return v, nil
}
