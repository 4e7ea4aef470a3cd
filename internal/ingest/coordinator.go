package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"skillscope/ingest-service/internal/logger"
	"skillscope/ingest-service/internal/model"
	"skillscope/ingest-service/internal/normalize"
	"skillscope/ingest-service/internal/scraper"
)

// SourceAll selects every active source.
const SourceAll = "all"

// Listing outcomes reported to the Recorder.
const (
	OutcomeCreated   = "created"
	OutcomeDuplicate = "duplicate"
	OutcomeRejected  = "rejected"
	OutcomeViolation = "violation"
	OutcomeFailed    = "failed"
)

// lastScrapedTimeout bounds the timestamp write that follows every run, which
// happens even when the run context is already done.
const lastScrapedTimeout = 5 * time.Second

// Locker guards a source against concurrent runs across instances.
type Locker interface {
	// TryLock returns acquired=false when another holder has the lock.
	TryLock(ctx context.Context, source string) (unlock func(), acquired bool, err error)
}

// Publisher announces finished source runs.
type Publisher interface {
	PublishSourceScraped(ctx context.Context, s model.Summary, finishedAt time.Time) error
}

// Recorder receives pipeline counters.
type Recorder interface {
	ListingProcessed(source, outcome string)
	PageFailed(source string)
	RunFinished(source string, elapsed time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) ListingProcessed(string, string) {}
func (nopRecorder) PageFailed(string) {}
func (nopRecorder) RunFinished(string, time.Duration) {}

// Coordinator drives scraping runs.
type Coordinator struct {
	gw         Gateway
	dedup      *Deduplicator
	fetcher    scraper.Fetcher
	normalizer *normalize.Normalizer
	log        logger.Logger

	delay     time.Duration
	parallel  bool
	refresh   bool
	locker    Locker
	publisher Publisher
	rec       Recorder
	now       func() time.Time
	newRunID  func() string
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithPolitenessDelay sets the fixed delay between requests to one source.
func WithPolitenessDelay(d time.Duration) Option { return func(c *Coordinator) { c.delay = d } }

// WithParallelSources runs sources concurrently in RunAll.
func WithParallelSources(on bool) Option { return func(c *Coordinator) { c.parallel = on } }

// WithRefreshExisting refreshes description, salary and tags of Jobs that
// already exist instead of ignoring them.
func WithRefreshExisting(on bool) Option { return func(c *Coordinator) { c.refresh = on } }

// WithLocker enables per-source run locks.
func WithLocker(l Locker) Option { return func(c *Coordinator) { c.locker = l } }

// WithPublisher enables run summary events.
func WithPublisher(p Publisher) Option { return func(c *Coordinator) { c.publisher = p } }

// WithRecorder sets the metrics sink.
func WithRecorder(r Recorder) Option { return func(c *Coordinator) { c.rec = r } }

// WithClock overrides the clock used for last-scraped timestamps.
func WithClock(now func() time.Time) Option { return func(c *Coordinator) { c.now = now } }

// NewCoordinator wires a Coordinator.
func NewCoordinator(gw Gateway, fetcher scraper.Fetcher, n *normalize.Normalizer, log logger.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		gw:         gw,
		dedup:      NewDeduplicator(gw),
		fetcher:    fetcher,
		normalizer: n,
		log:        log,
		rec:        nopRecorder{},
		now:        time.Now,
		newRunID:   uuid.NewString,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Run scrapes the source called name, or every active source when name is
// SourceAll. An unconfigured name yields ErrUnknownSource.
func (c *Coordinator) Run(ctx context.Context, sources []model.Source, name, query string) (model.Summary, error) {
	if name == "" || strings.EqualFold(name, SourceAll) {
		total, _, err := c.RunAll(ctx, sources, query)
		return total, err
	}
	for _, src := range sources {
		if strings.EqualFold(src.Name, name) {
			return c.runSource(ctx, c.newRunID(), src, query)
		}
	}
	return model.Summary{}, fmt.Errorf("%w: %s", ErrUnknownSource, name)
}

// RunSource runs one source regardless of its active flag.
func (c *Coordinator) RunSource(ctx context.Context, src model.Source, query string) (model.Summary, error) {
	return c.runSource(ctx, c.newRunID(), src, query)
}

// RunAll runs every active source and sums their summaries. Per-source
// errors are logged and joined; they never stop the other sources.
func (c *Coordinator) RunAll(ctx context.Context, sources []model.Source, query string) (model.Summary, []model.Summary, error) {
	runID := c.newRunID()
	var active []model.Source
	for _, s := range sources {
		if !s.Active {
			c.log.Info("skipping inactive source", logger.String("source", s.Name))
			continue
		}
		active = append(active, s)
	}

	per := make([]model.Summary, len(active))
	errs := make([]error, len(active))
	if c.parallel {
		var wg sync.WaitGroup
		for i, src := range active {
			wg.Add(1)
			go func() {
				defer wg.Done()
				per[i], errs[i] = c.runSource(ctx, runID, src, query)
			}()
		}
		wg.Wait()
	} else {
		for i, src := range active {
			per[i], errs[i] = c.runSource(ctx, runID, src, query)
		}
	}

	total := model.Summary{RunID: runID}
	for _, s := range per {
		total.Add(s)
	}
	return total, per, errors.Join(errs...)
}

func (c *Coordinator) runSource(ctx context.Context, runID string, src model.Source, query string) (model.Summary, error) {
	sum := model.Summary{RunID: runID, Source: src.Name}
	log := c.log.With(logger.String("source", src.Name), logger.String("run_id", runID))
	started := c.now()

	parser, err := scraper.NewParser(src.Kind)
	if err != nil {
		return sum, fmt.Errorf("source %s: %w", src.Name, err)
	}

	if c.locker != nil {
		unlock, ok, err := c.locker.TryLock(ctx, src.Name)
		switch {
		case err != nil:
			log.Warn("run lock unavailable, continuing unlocked", logger.Error(err))
		case !ok:
			log.Warn("source is being scraped elsewhere, skipping")
			return sum, nil
		default:
			defer unlock()
		}
	}

	ref, err := c.gw.GetOrCreateSource(ctx, src)
	if err != nil {
		return sum, fmt.Errorf("source %s: %w", src.Name, err)
	}

	log.Info("source run started")
	throttle := scraper.NewThrottle(c.delay)
	var runErr error

pages:
	for _, pageURL := range scraper.PageURLs(src, query) {
		if err := throttle.Wait(ctx); err != nil {
			runErr = err
			break
		}
		page, err := c.fetcher.Fetch(ctx, pageURL, nil)
		if err != nil {
			if ctx.Err() != nil {
				runErr = ctx.Err()
				break
			}
			sum.FailedPages++
			c.rec.PageFailed(src.Name)
			log.Warn("page fetch failed, skipping page", logger.String("page", pageURL), logger.Error(err))
			continue
		}

		listings, err := parser.Parse(page)
		if err != nil {
			sum.FailedPages++
			c.rec.PageFailed(src.Name)
			log.Warn("page parse failed, skipping page", logger.String("page", pageURL), logger.Error(err))
			continue
		}
		log.Debug("page parsed", logger.String("page", pageURL), logger.Int("listings", len(listings)))

		for _, raw := range listings {
			outcome := c.ingestListing(ctx, log, src, ref, raw, &sum)
			c.rec.ListingProcessed(src.Name, outcome)
			if err := throttle.Wait(ctx); err != nil {
				runErr = err
				break pages
			}
		}
	}

	// The timestamp moves even when pages failed or nothing was created.
	finished := c.now()
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lastScrapedTimeout)
	defer cancel()
	if err := c.gw.UpdateSourceLastScraped(wctx, ref, finished); err != nil {
		log.Error("update last scraped failed", logger.Error(err))
		runErr = errors.Join(runErr, fmt.Errorf("update last scraped: %w", err))
	}

	if c.publisher != nil {
		if err := c.publisher.PublishSourceScraped(wctx, sum, finished); err != nil {
			log.Warn("publish run summary failed", logger.Error(err))
		}
	}
	c.rec.RunFinished(src.Name, finished.Sub(started))

	log.Info("source run finished",
		logger.Int("created", sum.Created),
		logger.Int("skipped", sum.Skipped),
		logger.Int("refreshed", sum.Refreshed),
		logger.Int("violations", sum.Violations),
		logger.Int("failed_pages", sum.FailedPages),
	)
	if runErr != nil {
		return sum, fmt.Errorf("source %s: %w", src.Name, runErr)
	}
	return sum, nil
}

// ingestListing takes one raw listing to a terminal state and counts it.
// Nothing it does, a panic included, escapes to the page loop.
func (c *Coordinator) ingestListing(ctx context.Context, log logger.Logger, src model.Source, ref model.SourceRef, raw model.RawListing, sum *model.Summary) (outcome string) {
	log = log.With(logger.String("title", raw.Title), logger.String("url", raw.URL))
	var created bool // set once CreateJob has stored the job
	defer func() {
		if r := recover(); r != nil {
			log.Error("listing step panicked", logger.Any("panic", r), logger.Bool("job_stored", created))
			if created {
				sum.Created++
				outcome = OutcomeCreated
				return
			}
			sum.Skipped++
			sum.Violations++
			outcome = OutcomeViolation
		}
	}()

	skip := func(o string) string {
		sum.Skipped++
		return o
	}

	nj, err := c.normalizer.Normalize(raw, src)
	if err != nil {
		log.Warn("listing dropped", logger.Error(err))
		return skip(OutcomeRejected)
	}

	company, err := c.gw.GetOrCreateCompany(ctx, nj.Company)
	if err != nil {
		log.Warn("company lookup failed", logger.Error(err))
		return skip(OutcomeFailed)
	}

	exists, err := c.dedup.Exists(ctx, nj.Title, company)
	if err != nil {
		log.Warn("dedup check failed", logger.Error(err))
		return skip(OutcomeFailed)
	}
	if exists {
		c.refreshExisting(ctx, log, nj, company, ref, sum)
		return skip(OutcomeDuplicate)
	}

	loc, err := c.gw.GetOrCreateLocation(ctx, nj.Location)
	if err != nil {
		log.Warn("location lookup failed", logger.Error(err))
		return skip(OutcomeFailed)
	}

	fields, err := model.NewJobFields(nj, company, &loc, ref)
	if err != nil {
		log.Error("refusing to persist job", logger.Error(err))
		sum.Violations++
		return skip(OutcomeViolation)
	}

	job, err := c.gw.CreateJob(ctx, fields)
	switch {
	case errors.Is(err, model.ErrDuplicate):
		log.Debug("job created concurrently, treating as duplicate")
		return skip(OutcomeDuplicate)
	case errors.Is(err, model.ErrContractViolation):
		log.Error("storage refused job", logger.Error(err))
		sum.Violations++
		return skip(OutcomeViolation)
	case err != nil:
		log.Warn("create job failed", logger.Error(err))
		return skip(OutcomeFailed)
	}
	created = true

	for _, term := range nj.Skills {
		skill, err := c.gw.GetOrCreateSkill(ctx, term.Name, term.Category)
		if err != nil {
			log.Warn("skill lookup failed", logger.String("skill", term.Name), logger.Error(err))
			continue
		}
		if err := c.gw.AttachSkill(ctx, job, skill); err != nil {
			log.Warn("attach skill failed", logger.String("skill", term.Name), logger.Error(err))
		}
	}

	sum.Created++
	return OutcomeCreated
}

func (c *Coordinator) refreshExisting(ctx context.Context, log logger.Logger, nj model.NormalizedJob, company model.CompanyRef, ref model.SourceRef, sum *model.Summary) {
	if !c.refresh {
		return
	}
	fields, err := model.NewJobFields(nj, company, nil, ref)
	if err != nil {
		log.Error("refusing to refresh job", logger.Error(err))
		sum.Violations++
		return
	}
	ok, err := c.gw.RefreshJob(ctx, fields)
	if err != nil {
		log.Warn("refresh job failed", logger.Error(err))
		return
	}
	if ok {
		sum.Refreshed++
	}
}
