// Package postgres provides Postgres-backed persistence for the item
// catalog and ranking snapshots.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sellerhub/ranking-crawler/internal/ranking"
)

// DB is the subset of pgxpool.Pool the store uses; pgxmock satisfies it in
// tests.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// Store persists items, item snapshots, and ranking snapshots.
type Store struct {
	db DB
}

// New creates a Postgres-backed Store using the provided config.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{db: pool}, nil
}

// NewWithDB constructs a store from an existing pool (primarily for testing).
func NewWithDB(db DB) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	return &Store{db: db}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.db == nil {
		return
	}
	s.db.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS items (
	id           BIGSERIAL PRIMARY KEY,
	item_id      TEXT NOT NULL UNIQUE,
	item_name    TEXT NOT NULL,
	link         TEXT NOT NULL,
	brand_name   TEXT NOT NULL DEFAULT '',
	brand_link   TEXT NOT NULL DEFAULT '',
	thumbnail    TEXT NOT NULL DEFAULT '',
	ship_info    TEXT NOT NULL DEFAULT '',
	is_official  BOOLEAN NOT NULL DEFAULT FALSE,
	created_at   TIMESTAMPTZ NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS ranking_snapshots (
	id         BIGSERIAL PRIMARY KEY,
	category   TEXT NOT NULL,
	ts         TIMESTAMPTZ NOT NULL,
	item_count INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_ranking_snapshots_category_ts
	ON ranking_snapshots (category, ts DESC);

-- ranking_id is a plain reference, not an enforced foreign key: deleting a
-- ranking snapshot must not cascade to (or be blocked by) its item
-- snapshots, which stay behind as historical observations.
CREATE TABLE IF NOT EXISTS item_snapshots (
	id                 BIGSERIAL PRIMARY KEY,
	item_ref           BIGINT NOT NULL REFERENCES items (id),
	ranking_ref        BIGINT NOT NULL,
	position           INTEGER NOT NULL,
	category           TEXT NOT NULL,
	rank               INTEGER NOT NULL,
	sold               INTEGER,
	original_price     INTEGER,
	sale_price         INTEGER,
	discount_rate      DOUBLE PRECISION,
	mega_price         INTEGER,
	mega_discount_rate DOUBLE PRECISION,
	review_count       INTEGER,
	ts                 TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_item_snapshots_ranking_ref
	ON item_snapshots (ranking_ref, position);
`

// EnsureSchema creates the tables and indexes if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// UpsertItem inserts a new catalog Item for an unseen external id, or
// overwrites the mutable display fields of the existing row in place. The
// external id is immutable and items are never deleted here.
func (s *Store) UpsertItem(ctx context.Context, rec ranking.ScrapedItem, now time.Time) (ranking.Item, error) {
	const query = `
INSERT INTO items (item_id, item_name, link, brand_name, brand_link, thumbnail, ship_info, is_official, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$9)
ON CONFLICT (item_id) DO UPDATE SET
	item_name   = EXCLUDED.item_name,
	link        = EXCLUDED.link,
	brand_name  = EXCLUDED.brand_name,
	brand_link  = EXCLUDED.brand_link,
	thumbnail   = EXCLUDED.thumbnail,
	ship_info   = EXCLUDED.ship_info,
	is_official = EXCLUDED.is_official,
	updated_at  = EXCLUDED.updated_at
RETURNING id, created_at, updated_at`

	item := ranking.Item{
		ItemID:     rec.ItemID,
		Name:       rec.Name,
		Link:       rec.Link,
		BrandName:  rec.BrandName,
		BrandLink:  rec.BrandLink,
		Thumbnail:  rec.Thumbnail,
		ShipInfo:   rec.ShipInfo,
		IsOfficial: rec.IsOfficial,
	}
	row := s.db.QueryRow(ctx, query,
		rec.ItemID, rec.Name, rec.Link, rec.BrandName, rec.BrandLink,
		rec.Thumbnail, rec.ShipInfo, rec.IsOfficial, now,
	)
	if err := row.Scan(&item.ID, &item.CreatedAt, &item.UpdatedAt); err != nil {
		return ranking.Item{}, fmt.Errorf("upsert item %s: %w", rec.ItemID, err)
	}
	return item, nil
}

// InsertRankingSnapshot creates an empty snapshot row stamped with the
// category and timestamp, before any record is processed.
func (s *Store) InsertRankingSnapshot(ctx context.Context, category string, ts time.Time) (ranking.RankingSnapshot, error) {
	const query = `
INSERT INTO ranking_snapshots (category, ts, item_count, created_at, updated_at)
VALUES ($1,$2,0,$3,$3)
RETURNING id`

	snap := ranking.RankingSnapshot{
		Category:  category,
		Timestamp: ts,
		CreatedAt: ts,
		UpdatedAt: ts,
	}
	if err := s.db.QueryRow(ctx, query, category, ts, ts).Scan(&snap.ID); err != nil {
		return ranking.RankingSnapshot{}, fmt.Errorf("insert ranking snapshot: %w", err)
	}
	return snap, nil
}

// InsertItemSnapshot persists one point-in-time observation.
func (s *Store) InsertItemSnapshot(ctx context.Context, snap ranking.ItemSnapshot) (int64, error) {
	const query = `
INSERT INTO item_snapshots (item_ref, ranking_ref, position, category, rank, sold,
	original_price, sale_price, discount_rate, mega_price, mega_discount_rate, review_count, ts)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
RETURNING id`

	var id int64
	err := s.db.QueryRow(ctx, query,
		snap.ItemRef, snap.RankingRef, snap.Position, snap.Category, snap.Rank,
		snap.Sold, snap.OriginalPrice, snap.SalePrice, snap.DiscountRate,
		snap.MegaPrice, snap.MegaDiscountRate, snap.ReviewCount, snap.Timestamp,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert item snapshot: %w", err)
	}
	return id, nil
}

// FinalizeRankingSnapshot records the final item count once all records of
// a run have been processed.
func (s *Store) FinalizeRankingSnapshot(ctx context.Context, id int64, itemCount int, now time.Time) error {
	const query = `UPDATE ranking_snapshots SET item_count = $2, updated_at = $3 WHERE id = $1`
	tag, err := s.db.Exec(ctx, query, id, itemCount, now)
	if err != nil {
		return fmt.Errorf("finalize ranking snapshot %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("finalize ranking snapshot %d: %w", id, ranking.ErrNotFound)
	}
	return nil
}

// PruneRankingSnapshots deletes snapshots of exactly the given category
// whose timestamp is older than the cutoff. Running it with nothing to
// prune is a no-op.
func (s *Store) PruneRankingSnapshots(ctx context.Context, category string, olderThan time.Time) (int64, error) {
	const query = `DELETE FROM ranking_snapshots WHERE category = $1 AND ts < $2`
	tag, err := s.db.Exec(ctx, query, category, olderThan)
	if err != nil {
		return 0, fmt.Errorf("prune ranking snapshots: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ListRankingSnapshots returns snapshots without resolved items, filtered
// and ordered per opts.
func (s *Store) ListRankingSnapshots(ctx context.Context, opts ranking.ListOptions) ([]ranking.RankingSnapshot, error) {
	sortBy := "created_at"
	if opts.SortBy == ranking.SortByUpdated {
		sortBy = "updated_at"
	}
	direction := "DESC"
	if opts.Ascending {
		direction = "ASC"
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}

	query := fmt.Sprintf(`
SELECT id, category, ts, item_count, created_at, updated_at
FROM ranking_snapshots
WHERE ($1 = '' OR category = $1)
ORDER BY %s %s
OFFSET $2 LIMIT $3`, sortBy, direction)

	rows, err := s.db.Query(ctx, query, opts.Category, opts.Skip, limit)
	if err != nil {
		return nil, fmt.Errorf("list ranking snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []ranking.RankingSnapshot
	for rows.Next() {
		var snap ranking.RankingSnapshot
		if err := rows.Scan(&snap.ID, &snap.Category, &snap.Timestamp, &snap.ItemCount, &snap.CreatedAt, &snap.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan ranking snapshot: %w", err)
		}
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list ranking snapshots: %w", err)
	}
	return snaps, nil
}

// GetRankingSnapshot fetches one snapshot with all item references resolved
// through a single join query, in stored (extraction) order.
func (s *Store) GetRankingSnapshot(ctx context.Context, id int64) (ranking.RankingSnapshot, error) {
	const query = `
SELECT id, category, ts, item_count, created_at, updated_at
FROM ranking_snapshots
WHERE id = $1`

	var snap ranking.RankingSnapshot
	err := s.db.QueryRow(ctx, query, id).Scan(
		&snap.ID, &snap.Category, &snap.Timestamp, &snap.ItemCount, &snap.CreatedAt, &snap.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return ranking.RankingSnapshot{}, ranking.ErrNotFound
	}
	if err != nil {
		return ranking.RankingSnapshot{}, fmt.Errorf("get ranking snapshot %d: %w", id, err)
	}

	snap.Items, err = s.resolveItems(ctx, id)
	if err != nil {
		return ranking.RankingSnapshot{}, err
	}
	return snap, nil
}

// resolveItems bulk-fetches a snapshot's item observations joined with
// their catalog entries in one query.
func (s *Store) resolveItems(ctx context.Context, rankingID int64) ([]ranking.ItemSnapshot, error) {
	const query = `
SELECT
	snap.id, snap.item_ref, snap.ranking_ref, snap.position, snap.category, snap.rank,
	snap.sold, snap.original_price, snap.sale_price, snap.discount_rate,
	snap.mega_price, snap.mega_discount_rate, snap.review_count, snap.ts,
	item.id, item.item_id, item.item_name, item.link, item.brand_name, item.brand_link,
	item.thumbnail, item.ship_info, item.is_official, item.created_at, item.updated_at
FROM item_snapshots snap
JOIN items item ON item.id = snap.item_ref
WHERE snap.ranking_ref = $1
ORDER BY snap.position`

	rows, err := s.db.Query(ctx, query, rankingID)
	if err != nil {
		return nil, fmt.Errorf("resolve snapshot items: %w", err)
	}
	defer rows.Close()

	var snaps []ranking.ItemSnapshot
	for rows.Next() {
		var snap ranking.ItemSnapshot
		var item ranking.Item
		err := rows.Scan(
			&snap.ID, &snap.ItemRef, &snap.RankingRef, &snap.Position, &snap.Category, &snap.Rank,
			&snap.Sold, &snap.OriginalPrice, &snap.SalePrice, &snap.DiscountRate,
			&snap.MegaPrice, &snap.MegaDiscountRate, &snap.ReviewCount, &snap.Timestamp,
			&item.ID, &item.ItemID, &item.Name, &item.Link, &item.BrandName, &item.BrandLink,
			&item.Thumbnail, &item.ShipInfo, &item.IsOfficial, &item.CreatedAt, &item.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan item snapshot: %w", err)
		}
		snap.Item = &item
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("resolve snapshot items: %w", err)
	}
	return snaps, nil
}

// RankingSnapshotsInWindow returns snapshots of a category whose timestamp
// falls inside [start, end), each with its items resolved.
func (s *Store) RankingSnapshotsInWindow(ctx context.Context, category string, start, end time.Time, skip, limit int) ([]ranking.RankingSnapshot, error) {
	if limit <= 0 {
		limit = 100
	}
	const query = `
SELECT id, category, ts, item_count, created_at, updated_at
FROM ranking_snapshots
WHERE category = $1 AND ts >= $2 AND ts < $3
ORDER BY ts
OFFSET $4 LIMIT $5`

	rows, err := s.db.Query(ctx, query, category, start, end, skip, limit)
	if err != nil {
		return nil, fmt.Errorf("window ranking snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []ranking.RankingSnapshot
	for rows.Next() {
		var snap ranking.RankingSnapshot
		if err := rows.Scan(&snap.ID, &snap.Category, &snap.Timestamp, &snap.ItemCount, &snap.CreatedAt, &snap.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan ranking snapshot: %w", err)
		}
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("window ranking snapshots: %w", err)
	}
	rows.Close()

	for i := range snaps {
		snaps[i].Items, err = s.resolveItems(ctx, snaps[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return snaps, nil
}

// DeleteRankingSnapshot hard-deletes one snapshot. Item snapshots and
// catalog items are not cascaded.
func (s *Store) DeleteRankingSnapshot(ctx context.Context, id int64) error {
	const query = `DELETE FROM ranking_snapshots WHERE id = $1`
	tag, err := s.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete ranking snapshot %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ranking.ErrNotFound
	}
	return nil
}
