// Package service orchestrates scraping, reconciliation, querying, and
// export behind one API used by the HTTP handlers and the scheduler.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/sellerhub/ranking-crawler/internal/export"
	"github.com/sellerhub/ranking-crawler/internal/metrics"
	"github.com/sellerhub/ranking-crawler/internal/ranking"
)

// Scraper runs one headless scrape of a category page.
type Scraper interface {
	Run(ctx context.Context, category, url string) ([]ranking.ScrapedItem, error)
}

// Reconciler persists one scrape run.
type Reconciler interface {
	Reconcile(ctx context.Context, category string, items []ranking.ScrapedItem) (ranking.RankingSnapshot, error)
}

// SnapshotStore is the read/delete surface of the persistence layer.
type SnapshotStore interface {
	ListRankingSnapshots(ctx context.Context, opts ranking.ListOptions) ([]ranking.RankingSnapshot, error)
	GetRankingSnapshot(ctx context.Context, id int64) (ranking.RankingSnapshot, error)
	RankingSnapshotsInWindow(ctx context.Context, category string, start, end time.Time, skip, limit int) ([]ranking.RankingSnapshot, error)
	DeleteRankingSnapshot(ctx context.Context, id int64) error
}

// Exporter renders a resolved snapshot into a workbook.
type Exporter interface {
	Workbook(ctx context.Context, snap ranking.RankingSnapshot) (*excelize.File, error)
}

// Config carries the service-level knobs.
type Config struct {
	// Categories maps category identifiers to source URLs; anything else
	// is rejected before browser work starts.
	Categories map[string]string

	// ScrapeTimeout bounds one whole scrape-and-reconcile invocation.
	ScrapeTimeout time.Duration
}

// Rankings coordinates the pipeline. A per-category mutex serializes
// scrapes of the same category so racing triggers cannot produce duplicate
// snapshots; different categories scrape concurrently.
type Rankings struct {
	cfg        Config
	scraper    Scraper
	reconciler Reconciler
	store      SnapshotStore
	exporter   Exporter
	clock      ranking.Clock
	logger     *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New constructs the ranking service.
func New(
	cfg Config,
	scraper Scraper,
	reconciler Reconciler,
	store SnapshotStore,
	exporter Exporter,
	clock ranking.Clock,
	logger *zap.Logger,
) *Rankings {
	return &Rankings{
		cfg:        cfg,
		scraper:    scraper,
		reconciler: reconciler,
		store:      store,
		exporter:   exporter,
		clock:      clock,
		logger:     logger,
		locks:      make(map[string]*sync.Mutex),
	}
}

// categoryURL validates the category against the configured map.
func (r *Rankings) categoryURL(category string) (string, error) {
	url, ok := r.cfg.Categories[category]
	if !ok {
		return "", fmt.Errorf("%w: %q", ranking.ErrUnknownCategory, category)
	}
	return url, nil
}

// Categories returns the configured category identifiers.
func (r *Rankings) Categories() []string {
	names := make([]string, 0, len(r.cfg.Categories))
	for name := range r.cfg.Categories {
		names = append(names, name)
	}
	return names
}

func (r *Rankings) lockFor(category string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	lock, ok := r.locks[category]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[category] = lock
	}
	return lock
}

// Scrape runs the full pipeline for one category: headless scrape,
// catalog reconciliation, and the post-save retention prune. The run is
// bounded by the configured scrape timeout.
func (r *Rankings) Scrape(ctx context.Context, category string) (ranking.RankingSnapshot, error) {
	url, err := r.categoryURL(category)
	if err != nil {
		return ranking.RankingSnapshot{}, err
	}

	lock := r.lockFor(category)
	lock.Lock()
	defer lock.Unlock()

	if r.cfg.ScrapeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.ScrapeTimeout)
		defer cancel()
	}

	start := r.clock.Now()
	items, err := r.scraper.Run(ctx, category, url)
	if err != nil {
		metrics.ObserveScrape(category, "failed", r.clock.Now().Sub(start), 0)
		return ranking.RankingSnapshot{}, fmt.Errorf("scrape %s: %w", category, err)
	}

	snap, err := r.reconciler.Reconcile(ctx, category, items)
	if err != nil {
		metrics.ObserveScrape(category, "failed", r.clock.Now().Sub(start), len(items))
		return ranking.RankingSnapshot{}, fmt.Errorf("reconcile %s: %w", category, err)
	}

	metrics.ObserveScrape(category, "succeeded", r.clock.Now().Sub(start), len(items))
	r.logger.Info("scrape pipeline complete",
		zap.String("category", category),
		zap.Int64("snapshot_id", snap.ID),
		zap.Int("items", snap.ItemCount),
	)
	return snap, nil
}

// ScrapeCategory is the error-only variant used by the cron scheduler.
func (r *Rankings) ScrapeCategory(ctx context.Context, category string) error {
	_, err := r.Scrape(ctx, category)
	return err
}

// List returns snapshots matching the options; an empty category matches
// all categories, a set one must be configured.
func (r *Rankings) List(ctx context.Context, opts ranking.ListOptions) ([]ranking.RankingSnapshot, error) {
	if opts.Category != "" {
		if _, err := r.categoryURL(opts.Category); err != nil {
			return nil, err
		}
	}
	return r.store.ListRankingSnapshots(ctx, opts)
}

// Get fetches one snapshot with resolved items.
func (r *Rankings) Get(ctx context.Context, id int64) (ranking.RankingSnapshot, error) {
	return r.store.GetRankingSnapshot(ctx, id)
}

// Today returns the category's snapshots within the current UTC day. When
// none exist it triggers exactly one synchronous scrape and retries the
// same query once; an empty result after that surfaces ErrNoDataToday,
// which is distinct from ErrNotFound: the scrape ran and yielded nothing.
func (r *Rankings) Today(ctx context.Context, category string, skip, limit int) ([]ranking.RankingSnapshot, error) {
	if _, err := r.categoryURL(category); err != nil {
		return nil, err
	}

	start, end := ranking.DayWindow(r.clock.Now())
	snaps, err := r.store.RankingSnapshotsInWindow(ctx, category, start, end, skip, limit)
	if err != nil {
		return nil, err
	}
	if len(snaps) > 0 {
		return snaps, nil
	}

	r.logger.Info("no snapshots for today, scraping", zap.String("category", category))
	if _, err := r.Scrape(ctx, category); err != nil {
		return nil, err
	}

	snaps, err = r.store.RankingSnapshotsInWindow(ctx, category, start, end, skip, limit)
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, fmt.Errorf("%w: category %s", ranking.ErrNoDataToday, category)
	}
	return snaps, nil
}

// Delete removes one snapshot. Item snapshots and catalog items are kept.
func (r *Rankings) Delete(ctx context.Context, id int64) error {
	return r.store.DeleteRankingSnapshot(ctx, id)
}

// Export renders one snapshot as a workbook and returns it with the
// generated filename.
func (r *Rankings) Export(ctx context.Context, id int64) (*excelize.File, string, error) {
	snap, err := r.store.GetRankingSnapshot(ctx, id)
	if err != nil {
		metrics.IncExport("failed")
		return nil, "", err
	}
	f, err := r.exporter.Workbook(ctx, snap)
	if err != nil {
		metrics.IncExport("failed")
		return nil, "", fmt.Errorf("export snapshot %d: %w", id, err)
	}
	metrics.IncExport("succeeded")
	return f, export.Filename(snap.Category, r.clock.Now()), nil
}
