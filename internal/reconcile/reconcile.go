// Package reconcile merges freshly scraped records into the persisted
// catalog and snapshot history, and prunes snapshots past the retention
// horizon.
package reconcile

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sellerhub/ranking-crawler/internal/metrics"
	"github.com/sellerhub/ranking-crawler/internal/ranking"
)

// Store is the persistence surface the reconciler drives.
type Store interface {
	InsertRankingSnapshot(ctx context.Context, category string, ts time.Time) (ranking.RankingSnapshot, error)
	UpsertItem(ctx context.Context, rec ranking.ScrapedItem, now time.Time) (ranking.Item, error)
	InsertItemSnapshot(ctx context.Context, snap ranking.ItemSnapshot) (int64, error)
	FinalizeRankingSnapshot(ctx context.Context, id int64, itemCount int, now time.Time) error
	PruneRankingSnapshots(ctx context.Context, category string, olderThan time.Time) (int64, error)
}

// Reconciler turns an ordered scrape result into Item upserts plus one
// RankingSnapshot with linked ItemSnapshots.
type Reconciler struct {
	store   Store
	clock   ranking.Clock
	horizon time.Duration
	logger  *zap.Logger
}

// New constructs a Reconciler. horizon is the retention window used by the
// post-save prune.
func New(store Store, clock ranking.Clock, horizon time.Duration, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		store:   store,
		clock:   clock,
		horizon: horizon,
		logger:  logger,
	}
}

// Reconcile persists the run. The empty snapshot row is created before any
// record is processed; records are handled strictly sequentially; the
// snapshot is finalized once with its item count. No transaction spans the
// loop: a crash mid-run leaves a shorter-than-scraped snapshot whose item
// snapshots remain valid history (accepted limitation, not atomicity).
//
// The retention prune fires once, after the finalize, so a snapshot still
// being populated can never be pruned.
func (r *Reconciler) Reconcile(ctx context.Context, category string, items []ranking.ScrapedItem) (ranking.RankingSnapshot, error) {
	now := r.clock.Now()

	snap, err := r.store.InsertRankingSnapshot(ctx, category, now)
	if err != nil {
		return ranking.RankingSnapshot{}, fmt.Errorf("create snapshot: %w", err)
	}

	for position, rec := range items {
		item, err := r.store.UpsertItem(ctx, rec, now)
		if err != nil {
			return ranking.RankingSnapshot{}, fmt.Errorf("upsert item %s: %w", rec.ItemID, err)
		}

		obs := ranking.ItemSnapshot{
			ItemRef:          item.ID,
			RankingRef:       snap.ID,
			Position:         position,
			Category:         category,
			Rank:             rec.Rank,
			Sold:             rec.Sold,
			OriginalPrice:    rec.OriginalPrice,
			SalePrice:        rec.SalePrice,
			DiscountRate:     rec.DiscountRate,
			MegaPrice:        rec.MegaPrice,
			MegaDiscountRate: rec.MegaDiscountRate,
			ReviewCount:      rec.ReviewCount,
			Timestamp:        snap.Timestamp,
		}
		obs.ID, err = r.store.InsertItemSnapshot(ctx, obs)
		if err != nil {
			return ranking.RankingSnapshot{}, fmt.Errorf("insert item snapshot for %s: %w", rec.ItemID, err)
		}
		snap.Items = append(snap.Items, obs)
	}

	snap.ItemCount = len(snap.Items)
	if err := r.store.FinalizeRankingSnapshot(ctx, snap.ID, snap.ItemCount, r.clock.Now()); err != nil {
		return ranking.RankingSnapshot{}, fmt.Errorf("finalize snapshot: %w", err)
	}

	r.prune(ctx, category)

	return snap, nil
}

// prune deletes same-category snapshots older than the retention horizon.
// A prune failure is logged but never fails the run that triggered it.
func (r *Reconciler) prune(ctx context.Context, category string) {
	cutoff := r.clock.Now().Add(-r.horizon)
	deleted, err := r.store.PruneRankingSnapshots(ctx, category, cutoff)
	if err != nil {
		r.logger.Warn("retention prune failed",
			zap.String("category", category),
			zap.Error(err),
		)
		return
	}
	if deleted > 0 {
		metrics.AddPrunedSnapshots(category, deleted)
		r.logger.Info("stale snapshots pruned",
			zap.String("category", category),
			zap.Int64("deleted", deleted),
			zap.Time("cutoff", cutoff),
		)
	}
}
