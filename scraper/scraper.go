// Package scraper drains the work queue: it walks every pending work item's
// paginated table through a fetch session, normalizes the rows, and persists
// them before marking the item done.
package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/courtsift/statscrape/config"
	"github.com/courtsift/statscrape/fetch"
	"github.com/courtsift/statscrape/models"
	"github.com/courtsift/statscrape/normalize"
	"github.com/courtsift/statscrape/store"
)

// seenKeyCap bounds the per-run duplicate-key cache.
const seenKeyCap = 1 << 16

// Scraper coordinates fetch sessions, normalization and the store for one
// category run.
type Scraper struct {
	cfg     *config.Config
	store   *store.Store
	fetcher fetch.Fetcher
	log     *slog.Logger
	Metrics *Metrics
}

// New builds a scraper over an open store and a fetcher. A nil metrics
// argument gets a fresh registry; passing one in lets the caller share it
// with the fetcher's retry hook.
func New(cfg *config.Config, st *store.Store, fetcher fetch.Fetcher, metrics *Metrics, log *slog.Logger) (*Scraper, error) {
	if cfg == nil {
		return nil, fmt.Errorf("scraper: nil config")
	}
	if st == nil {
		return nil, fmt.Errorf("scraper: nil store")
	}
	if fetcher == nil {
		return nil, fmt.Errorf("scraper: nil fetcher")
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Scraper{
		cfg:     cfg,
		store:   st,
		fetcher: fetcher,
		log:     log,
		Metrics: metrics,
	}, nil
}

// runState guards the aggregate counters shared by the workers.
type runState struct {
	mu    sync.Mutex
	stats models.RunStats
}

func (rs *runState) update(fn func(*models.RunStats)) {
	rs.mu.Lock()
	fn(&rs.stats)
	rs.mu.Unlock()
}

// Run processes every pending work item of a category and returns the
// aggregate outcome. Individual item failures are recorded and do not stop
// the run; only a broken category descriptor or an unusable store aborts it.
// Cancelling ctx stops new work from being picked up while items already in
// flight finish their current step.
func (s *Scraper) Run(ctx context.Context, category string) (*models.RunStats, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	desc, err := models.LookupCategory(category)
	if err != nil {
		return nil, &FatalError{Err: err}
	}
	if err := desc.Validate(); err != nil {
		return nil, &FatalError{Err: fmt.Errorf("category %q: %w", category, err)}
	}

	// Every item is listed, not just pending ones: already-scraped items get
	// a logged skip attempt so reruns stay visible in the attempt history.
	items, err := s.store.ListItems(ctx, category)
	if err != nil {
		return nil, fmt.Errorf("list work items: %w", err)
	}

	if err := s.store.MarkRunning(ctx, category); err != nil {
		return nil, fmt.Errorf("mark category running: %w", err)
	}
	defer func() {
		if err := s.store.MarkStopped(context.WithoutCancel(ctx), category); err != nil {
			s.log.Error("mark category stopped", slog.String("category", category), slog.Any("error", err))
		}
	}()

	seen, err := lru.New[string, struct{}](seenKeyCap)
	if err != nil {
		return nil, fmt.Errorf("build duplicate cache: %w", err)
	}

	state := &runState{stats: models.RunStats{
		Category:  category,
		Total:     len(items),
		StartTime: time.Now(),
	}}

	s.log.Info("run started",
		slog.String("category", category),
		slog.Int("items", len(items)),
		slog.Int("workers", s.cfg.Workers),
		slog.String("fetcher", s.cfg.Fetcher))

	work := make(chan models.WorkItem)
	go func() {
		defer close(work)
		for _, item := range items {
			select {
			case <-ctx.Done():
				return
			case work <- item:
			}
		}
	}()

	normalizer := normalize.New(desc)

	var wg sync.WaitGroup
	workers := s.cfg.Workers
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			s.runWorker(ctx, worker, desc, normalizer, work, state, seen)
		}(i)
	}
	wg.Wait()

	state.stats.EndTime = time.Now()
	stats := state.stats

	if ctx.Err() != nil {
		s.log.Warn("run cancelled",
			slog.String("category", category),
			slog.Int("processed", stats.Processed),
			slog.Int("total", stats.Total))
	}
	s.log.Info("run finished",
		slog.String("category", category),
		slog.Int("total", stats.Total),
		slog.Int("success", stats.Success),
		slog.Int("failed", stats.Failed),
		slog.Int("skipped", stats.Skipped),
		slog.Int("saved", stats.Saved),
		slog.Int("excluded", stats.Excluded),
		slog.Int("duplicates", stats.Duplicates),
		slog.Int("pages", stats.Pages),
		slog.Duration("duration", stats.Duration()))
	return &stats, nil
}

// runWorker owns one fetch session for its lifetime and processes items off
// the shared channel with a polite pause in between.
func (s *Scraper) runWorker(ctx context.Context, worker int, desc *models.CategoryDescriptor, normalizer *normalize.Normalizer, work <-chan models.WorkItem, state *runState, seen *lru.Cache[string, struct{}]) {
	session, err := s.fetcher.Open(ctx, desc.TableSelector)
	if err != nil {
		s.log.Error("open fetch session",
			slog.Int("worker", worker),
			slog.Any("error", err))
		s.Metrics.IncError(errorTypeLabel(err))
		// The worker cannot serve items, but they must not vanish from the
		// run: drain its share of the queue as failed attempts so the stats
		// and the attempt log report them.
		openErr := fmt.Errorf("open fetch session: %w", err)
		for item := range work {
			attempt, berr := s.store.BeginAttempt(ctx, item)
			if berr != nil {
				s.log.Error("begin attempt", slog.Any("error", berr))
				state.update(func(st *models.RunStats) {
					st.Processed++
					st.Failed++
				})
				s.Metrics.IncItem("failed")
				continue
			}
			s.failItem(ctx, attempt, openErr, state)
		}
		return
	}
	defer func() {
		if err := session.Close(); err != nil {
			s.log.Debug("close fetch session", slog.Int("worker", worker), slog.Any("error", err))
		}
	}()

	first := true
	for item := range work {
		if !first {
			if err := sleepCtx(ctx, s.cfg.Delay); err != nil {
				return
			}
		}
		first = false
		s.processItem(ctx, session, desc, normalizer, item, state, seen)
	}
}

func (s *Scraper) processItem(ctx context.Context, session fetch.PageSession, desc *models.CategoryDescriptor, normalizer *normalize.Normalizer, item models.WorkItem, state *runState, seen *lru.Cache[string, struct{}]) {
	log := s.log.With(
		slog.String("category", item.Category),
		slog.String("season", item.Season),
		slog.String("season_type", item.SeasonType))
	start := time.Now()

	if item.Scraped {
		log.Info("work item already scraped, skipping")
		s.recordSkip(ctx, item, state)
		s.Metrics.IncItem("skipped")
		return
	}

	attempt, err := s.store.BeginAttempt(ctx, item)
	if err != nil {
		log.Error("begin attempt", slog.Any("error", err))
		state.update(func(st *models.RunStats) {
			st.Processed++
			st.Failed++
		})
		s.Metrics.IncItem("failed")
		s.Metrics.IncError(errorTypeLabel(err))
		return
	}

	pag := &paginator{
		session:  session,
		desc:     desc,
		maxPages: s.cfg.MaxPages,
		log:      log,
		metrics:  s.Metrics,
	}
	rows, pages, pagErr := pag.collect(ctx, item.URL)
	if pagErr != nil && len(rows) == 0 {
		log.Error("fetch failed", slog.String("url", item.URL), slog.Any("error", pagErr))
		s.failItem(ctx, attempt, pagErr, state)
		return
	}
	if pagErr != nil {
		log.Warn("pagination broke mid-run, keeping rows gathered so far",
			slog.Int("rows", len(rows)),
			slog.Int("pages", pages),
			slog.Any("error", pagErr))
	}

	result := normalizer.Batch(rows, item, time.Now())
	if result.Excluded > 0 {
		log.Warn("rows excluded during normalization",
			slog.Int("excluded", result.Excluded),
			slog.Int("parsed", len(rows)))
	}
	for _, nerr := range result.Errors {
		log.Debug("row excluded", slog.Any("error", nerr))
		s.Metrics.IncError(errorTypeLabel(nerr))
	}
	s.Metrics.IncRowsExcluded(result.Excluded)

	duplicates := 0
	for _, rec := range result.Records {
		if _, ok := seen.Get(rec.Key); ok {
			duplicates++
			continue
		}
		seen.Add(rec.Key, struct{}{})
	}
	if duplicates > 0 {
		log.Debug("duplicate natural keys within run", slog.Int("duplicates", duplicates))
	}

	if len(result.Records) == 0 {
		if pagErr != nil {
			state.update(func(st *models.RunStats) {
				st.Pages += pages
				st.Excluded += result.Excluded
				st.Duplicates += duplicates
			})
			s.failItem(ctx, attempt, pagErr, state)
			return
		}
		// Nothing to persist: the attempt succeeded, but the item stays
		// pending so a later run can try again once the source has data.
		log.Info("no records for work item", slog.Int("pages", pages))
		s.succeedItem(ctx, attempt, item, state, func(st *models.RunStats) {
			st.Pages += pages
			st.Excluded += result.Excluded
			st.Duplicates += duplicates
		}, false)
		s.Metrics.IncItem("success")
		s.Metrics.ObserveItemDuration(time.Since(start))
		return
	}

	saved, err := s.store.Upsert(ctx, desc.Name, result.Records, s.cfg.ChunkSize)
	s.Metrics.IncRecordsSaved(saved.Saved)
	if err != nil {
		log.Error("persist records",
			slog.Int("saved", saved.Saved),
			slog.Int("records", len(result.Records)),
			slog.Any("error", err))
		state.update(func(st *models.RunStats) {
			st.Saved += saved.Saved
			st.Inserted += saved.Inserted
			st.Updated += saved.Updated
			st.Pages += pages
			st.Excluded += result.Excluded
			st.Duplicates += duplicates
		})
		s.failItem(ctx, attempt, err, state)
		return
	}

	if pagErr != nil {
		// The gathered rows are durable, but the tail pages were never
		// fetched. The attempt records the error and the item stays pending,
		// so the next run refetches the full set; the upsert is idempotent.
		state.update(func(st *models.RunStats) {
			st.Saved += saved.Saved
			st.Inserted += saved.Inserted
			st.Updated += saved.Updated
			st.Pages += pages
			st.Excluded += result.Excluded
			st.Duplicates += duplicates
		})
		s.failItem(ctx, attempt, pagErr, state)
		return
	}

	// Records are durable; only now does the item leave the pending queue.
	if err := s.store.MarkScraped(ctx, item.Category, item.Season, item.SeasonType); err != nil {
		log.Error("mark item scraped", slog.Any("error", err))
		state.update(func(st *models.RunStats) {
			st.Saved += saved.Saved
			st.Inserted += saved.Inserted
			st.Updated += saved.Updated
			st.Pages += pages
			st.Excluded += result.Excluded
			st.Duplicates += duplicates
		})
		s.failItem(ctx, attempt, err, state)
		return
	}

	s.succeedItem(ctx, attempt, item, state, func(st *models.RunStats) {
		st.Saved += saved.Saved
		st.Inserted += saved.Inserted
		st.Updated += saved.Updated
		st.Pages += pages
		st.Excluded += result.Excluded
		st.Duplicates += duplicates
	}, true)
	s.Metrics.IncItem("success")
	s.Metrics.ObserveItemDuration(time.Since(start))
	log.Info("work item done",
		slog.Int("pages", pages),
		slog.Int("saved", saved.Saved),
		slog.Int("inserted", saved.Inserted),
		slog.Int("updated", saved.Updated))
}

// recordSkip writes a skipped attempt without touching the fetcher.
func (s *Scraper) recordSkip(ctx context.Context, item models.WorkItem, state *runState) {
	attempt, err := s.store.BeginAttempt(ctx, item)
	if err == nil {
		err = s.store.CompleteAttempt(ctx, attempt, models.StatusSkipped, nil)
	}
	if err != nil {
		s.log.Error("record skipped attempt", slog.Any("error", err))
	}
	state.update(func(st *models.RunStats) {
		st.Processed++
		st.Skipped++
	})
}

func (s *Scraper) failItem(ctx context.Context, attempt *models.RunAttempt, cause error, state *runState) {
	if err := s.store.CompleteAttempt(ctx, attempt, models.StatusFailed, cause); err != nil {
		s.log.Error("complete attempt", slog.Any("error", err))
	}
	state.update(func(st *models.RunStats) {
		st.Processed++
		st.Failed++
	})
	s.Metrics.IncItem("failed")
	s.Metrics.IncError(errorTypeLabel(cause))
}

func (s *Scraper) succeedItem(ctx context.Context, attempt *models.RunAttempt, item models.WorkItem, state *runState, apply func(*models.RunStats), progressed bool) {
	if err := s.store.CompleteAttempt(ctx, attempt, models.StatusSuccess, nil); err != nil {
		s.log.Error("complete attempt", slog.Any("error", err))
	}
	if progressed {
		if err := s.store.RecordProgress(ctx, item.Category, item.URL); err != nil {
			s.log.Error("record progress", slog.Any("error", err))
		}
	}
	state.update(func(st *models.RunStats) {
		st.Processed++
		st.Success++
		apply(st)
	})
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
