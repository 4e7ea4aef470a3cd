// Package scheduler wires up the cron job that periodically scrapes every
// active source whose scrape frequency has elapsed.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"skillscope/ingest-service/internal/logger"
	"skillscope/ingest-service/internal/model"
)

// Runner executes a scraping run over a set of sources.
type Runner interface {
	RunAll(ctx context.Context, sources []model.Source, query string) (model.Summary, []model.Summary, error)
}

// LastScraped reports when a source last finished a run. The zero time
// means never.
type LastScraped interface {
	SourceLastScraped(ctx context.Context, name string) (time.Time, error)
}

// Scheduler wraps robfig/cron and manages the scrape loop.
type Scheduler struct {
	cron    *cron.Cron
	runner  Runner
	state   LastScraped
	sources []model.Source
	query   string
	spec    string // cron spec, e.g. "@every 1h"
	timeout time.Duration
	log     logger.Logger
	now     func() time.Time

	busy sync.Mutex
}

// Config carries the scheduler settings.
type Config struct {
	Spec       string
	Query      string
	RunTimeout time.Duration // zero disables the per-cycle deadline
}

// New creates a Scheduler. Each tick runs the due subset of sources.
func New(runner Runner, state LastScraped, sources []model.Source, cfg Config, log logger.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithLogger(cronLogger{log})),
		runner:  runner,
		state:   state,
		sources: sources,
		query:   cfg.Query,
		spec:    cfg.Spec,
		timeout: cfg.RunTimeout,
		log:     log,
		now:     time.Now,
	}
}

// Start registers the job and starts the scheduler. Also runs one cycle
// immediately so due sources are scraped without waiting for the first tick.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.spec, func() {
		s.RunCycle(ctx)
	})
	if err != nil {
		return fmt.Errorf("cron.AddFunc(%q): %w", s.spec, err)
	}

	s.cron.Start()
	s.log.Info("scheduler started", logger.String("spec", s.spec), logger.Int("sources", len(s.sources)))

	go s.RunCycle(ctx)

	return nil
}

// Stop stops the cron and waits for a running cycle to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.busy.Lock()
	defer s.busy.Unlock()
	s.log.Info("scheduler stopped")
}

// RunCycle scrapes every due source once. A cycle that starts while another
// is still running is skipped. Returns the names of the sources it ran.
func (s *Scheduler) RunCycle(ctx context.Context) []string {
	if !s.busy.TryLock() {
		s.log.Warn("previous scrape cycle still running, skipping tick")
		return nil
	}
	defer s.busy.Unlock()

	due := s.dueSources(ctx)
	if len(due) == 0 {
		s.log.Debug("no sources due")
		return nil
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	names := make([]string, 0, len(due))
	for _, src := range due {
		names = append(names, src.Name)
	}
	s.log.Info("scrape cycle started", logger.Strings("sources", names))

	total, _, err := s.runner.RunAll(ctx, due, s.query)
	if err != nil {
		s.log.Error("scrape cycle finished with errors", logger.Error(err))
	}
	s.log.Info("scrape cycle complete",
		logger.String("run_id", total.RunID),
		logger.Int("created", total.Created),
		logger.Int("skipped", total.Skipped),
	)
	return names
}

func (s *Scheduler) dueSources(ctx context.Context) []model.Source {
	now := s.now()
	var due []model.Source
	for _, src := range s.sources {
		if !src.Active {
			continue
		}
		last, err := s.state.SourceLastScraped(ctx, src.Name)
		if err != nil {
			s.log.Warn("read last scraped failed, treating source as due",
				logger.String("source", src.Name), logger.Error(err))
		}
		if Due(src, last, now) {
			due = append(due, src)
		}
	}
	return due
}

// Due reports whether src should run at now given its last run. A source
// that never ran is always due.
func Due(src model.Source, last, now time.Time) bool {
	if last.IsZero() || src.ScrapeFrequency <= 0 {
		return true
	}
	return now.Sub(last) >= src.ScrapeFrequency
}

// cronLogger adapts Logger to cron.Logger.
type cronLogger struct {
	log logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug("cron: "+msg, kv(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error("cron: "+msg, append(kv(keysAndValues), logger.Error(err))...)
}

func kv(pairs []any) []logger.Field {
	fields := make([]logger.Field, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		fields = append(fields, logger.Any(fmt.Sprint(pairs[i]), pairs[i+1]))
	}
	return fields
}
