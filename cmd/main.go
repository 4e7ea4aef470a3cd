// ingest-service: scrapes job boards into the jobs database.
//
//	scrape   one run over a named source or all active sources
//	serve    cron scheduler plus /health and /metrics
//	migrate  applies the embedded schema
//	sources  lists the configured sources
//
// Every new Job lands in moderation status "pending".
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"skillscope/ingest-service/internal/config"
	"skillscope/ingest-service/internal/db"
	"skillscope/ingest-service/internal/events"
	"skillscope/ingest-service/internal/ingest"
	"skillscope/ingest-service/internal/logger"
	"skillscope/ingest-service/internal/metrics"
	"skillscope/ingest-service/internal/normalize"
	"skillscope/ingest-service/internal/scheduler"
	"skillscope/ingest-service/internal/scraper"
)

const version = "1.0.0"

// Storage backends selectable with --store.
const (
	storePostgres = "postgres"
	storeMemory   = "memory"
)

// defaultLockTTL bounds a source run lock when RUN_TIMEOUT is unset.
const defaultLockTTL = 30 * time.Minute

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "ingest",
		Short:         "Job board ingestion service",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(newScrapeCmd(), newServeCmd(), newMigrateCmd(), newSourcesCmd())
	return root
}

// ─── Wiring ──────────────────────────────────────────────────────────────────

// store is the gateway plus the last-scraped reader the scheduler needs.
type store interface {
	ingest.Gateway
	scheduler.LastScraped
}

type app struct {
	cfg     *config.Config
	log     logger.Logger
	store   store
	rdb     *redis.Client
	metrics *metrics.Metrics
	closers []func()
}

func newApp(ctx context.Context, backend string) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	log, err := logger.New(logger.Config{Level: cfg.LogLevel})
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, log: log, metrics: metrics.New()}

	switch backend {
	case storeMemory:
		a.store = db.NewMemoryGateway(cfg.NamePolicy)
	case storePostgres:
		if err := cfg.RequireDatabase(); err != nil {
			return nil, err
		}
		pool, err := db.NewPostgresPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, pool.Close)
		a.store = db.NewPostgresGateway(pool, cfg.NamePolicy)
		log.Info("postgres connected")
	default:
		return nil, fmt.Errorf("unknown store %q (want %s or %s)", backend, storePostgres, storeMemory)
	}

	if cfg.RedisURL != "" {
		rdb, err := db.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			log.Warn("redis unavailable, events and run locks disabled", logger.Error(err))
		} else {
			a.rdb = rdb
			a.closers = append(a.closers, func() { _ = rdb.Close() })
			log.Info("redis connected")
		}
	}
	return a, nil
}

func (a *app) coordinator() *ingest.Coordinator {
	n := normalize.New(a.cfg.Skills)
	f := scraper.NewHTTPFetcher(a.cfg.UserAgent, a.cfg.RequestTimeout)
	opts := []ingest.Option{
		ingest.WithPolitenessDelay(a.cfg.PolitenessDelay),
		ingest.WithParallelSources(a.cfg.ParallelSources),
		ingest.WithRefreshExisting(a.cfg.RefreshExisting),
		ingest.WithRecorder(a.metrics),
	}
	if a.rdb != nil {
		ttl := a.cfg.RunTimeout
		if ttl <= 0 {
			ttl = defaultLockTTL
		}
		opts = append(opts,
			ingest.WithLocker(events.NewLocker(a.rdb, ttl)),
			ingest.WithPublisher(events.NewPublisher(a.rdb)),
		)
	}
	return ingest.NewCoordinator(a.store, f, n, a.log, opts...)
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	_ = a.log.Sync()
}
