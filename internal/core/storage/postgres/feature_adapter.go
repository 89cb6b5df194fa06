package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"
	"github.com/retailpulse-lab/retailpulse/internal/core/feature"
	"github.com/retailpulse-lab/retailpulse/internal/core/storage"
	"github.com/shopspring/decimal"
)

// FeatureAdapter implements storage.FeatureStore using PostgreSQL.
// Snapshot merges, buffer appends, dedup-window writes and the cursor
// advance all happen in one transaction so at-least-once replay of a
// cycle cannot double-count.
type FeatureAdapter struct {
	db             *sql.DB
	bufferCapacity int
	dedupRetention time.Duration
}

// NewFeatureAdapter creates a FeatureAdapter sharing the given connection.
// bufferCapacity caps the training buffer (FIFO eviction);
// dedupRetention bounds the trailing seen-event window.
func NewFeatureAdapter(db *sql.DB, bufferCapacity int, dedupRetention time.Duration) *FeatureAdapter {
	return &FeatureAdapter{
		db:             db,
		bufferCapacity: bufferCapacity,
		dedupRetention: dedupRetention,
	}
}

// Get returns the current snapshot for a bucket.
// Reads never block writes; a stale snapshot is acceptable.
func (a *FeatureAdapter) Get(ctx context.Context, kind feature.BucketKind, bucketKey string) (feature.Snapshot, bool, error) {
	var (
		snap          feature.Snapshot
		totalSalesStr string
		totalUnitsStr string
	)

	err := a.db.QueryRowContext(ctx, queryGetSnapshot, string(kind), bucketKey).Scan(
		&totalSalesStr,
		&totalUnitsStr,
		&snap.TransactionCount,
		&snap.LastUpdated,
	)
	if err == sql.ErrNoRows {
		return feature.Snapshot{}, false, nil
	}
	if err != nil {
		return feature.Snapshot{}, false, fmt.Errorf("get snapshot %s/%s: %w", kind, bucketKey, err)
	}

	totalSales, err := decimal.NewFromString(totalSalesStr)
	if err != nil {
		return feature.Snapshot{}, false, fmt.Errorf("parse total_sales %q: %w", totalSalesStr, err)
	}
	totalUnits, err := decimal.NewFromString(totalUnitsStr)
	if err != nil {
		return feature.Snapshot{}, false, fmt.Errorf("parse total_units %q: %w", totalUnitsStr, err)
	}

	snap.TotalSales = totalSales
	snap.TotalUnits = totalUnits
	return snap, true, nil
}

// ReadCursor returns the consumer-group cursor.
// Returns 0 if no cursor exists yet (meaning "replay from beginning").
func (a *FeatureAdapter) ReadCursor(ctx context.Context, group string) (int64, error) {
	var cursor int64
	err := a.db.QueryRowContext(ctx, queryReadCursor, group).Scan(&cursor)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read cursor for group %q: %w", group, err)
	}
	return cursor, nil
}

// FilterSeen returns the subset of ids already in the dedup window.
func (a *FeatureAdapter) FilterSeen(ctx context.Context, ids []string) (map[string]bool, error) {
	seen := make(map[string]bool, len(ids))
	if len(ids) == 0 {
		return seen, nil
	}

	rows, err := a.db.QueryContext(ctx, queryFilterSeen, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("filter seen events: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("filter seen events: scan: %w", err)
		}
		seen[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("filter seen events: iterate: %w", err)
	}
	return seen, nil
}

// Commit applies a flush atomically: snapshot merges, buffer appends
// with FIFO eviction, dedup-window maintenance and the cursor advance.
// A flush whose cursor is not ahead of the durable cursor is skipped,
// which makes reapplying an already-advanced cycle a no-op.
func (a *FeatureAdapter) Commit(ctx context.Context, group string, flush storage.Flush) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("feature commit: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()

	// Lock the cursor row first and enforce monotonic advances. This
	// prevents a stale, out-of-order flush from overwriting newer state.
	var durableCursor int64
	err = tx.QueryRowContext(ctx, querySelectCursorForUpdate, group).Scan(&durableCursor)
	if err == sql.ErrNoRows {
		if _, err = tx.ExecContext(ctx, queryInitCursorRow, group, now); err != nil {
			return fmt.Errorf("feature commit: init cursor row: %w", err)
		}
		err = tx.QueryRowContext(ctx, querySelectCursorForUpdate, group).Scan(&durableCursor)
		if err != nil {
			return fmt.Errorf("feature commit: read initialized cursor for update: %w", err)
		}
	}
	if err != nil {
		return fmt.Errorf("feature commit: read cursor for update: %w", err)
	}

	if flush.Cursor <= durableCursor {
		slog.Warn("[FeatureAdapter] Skipping stale/no-op flush",
			"group", group,
			"cursor", flush.Cursor,
			"durable_cursor", durableCursor,
			"deltas", len(flush.Deltas))
		return nil
	}

	mergeStmt, err := tx.PrepareContext(ctx, queryMergeSnapshot)
	if err != nil {
		return fmt.Errorf("feature commit: prepare merge: %w", err)
	}
	defer mergeStmt.Close()

	for key, delta := range flush.Deltas {
		if !feature.ValidKind(key.Kind) {
			return fmt.Errorf("feature commit: invalid bucket kind %q for key %q", key.Kind, key.BucketKey)
		}
		if _, err := mergeStmt.ExecContext(ctx,
			string(key.Kind),
			key.BucketKey,
			delta.TotalSales,
			delta.TotalUnits,
			delta.TransactionCount,
			now,
		); err != nil {
			return fmt.Errorf("feature commit: merge %s/%s: %w", key.Kind, key.BucketKey, err)
		}
	}

	if len(flush.BufferRows) > 0 {
		appendStmt, err := tx.PrepareContext(ctx, queryAppendBufferRow)
		if err != nil {
			return fmt.Errorf("feature commit: prepare buffer append: %w", err)
		}
		defer appendStmt.Close()

		for _, row := range flush.BufferRows {
			if _, err := appendStmt.ExecContext(ctx,
				row.EventID,
				row.StoreID,
				row.ProductFamily,
				row.Date,
				row.Quantity,
				row.UnitPrice,
				row.OnPromotion,
				row.OilPrice,
				row.IsHoliday,
				now,
			); err != nil {
				return fmt.Errorf("feature commit: append buffer row %s: %w", row.EventID, err)
			}
		}

		if _, err := tx.ExecContext(ctx, queryEvictBufferOverflow, a.bufferCapacity); err != nil {
			return fmt.Errorf("feature commit: evict buffer overflow: %w", err)
		}
	}

	if len(flush.SeenEventIDs) > 0 {
		seenStmt, err := tx.PrepareContext(ctx, queryInsertSeen)
		if err != nil {
			return fmt.Errorf("feature commit: prepare seen insert: %w", err)
		}
		defer seenStmt.Close()

		for _, id := range flush.SeenEventIDs {
			if _, err := seenStmt.ExecContext(ctx, id, now); err != nil {
				return fmt.Errorf("feature commit: insert seen %s: %w", id, err)
			}
		}
	}

	if _, err := tx.ExecContext(ctx, queryPurgeSeen, now.Add(-a.dedupRetention)); err != nil {
		return fmt.Errorf("feature commit: purge seen window: %w", err)
	}

	result, err := tx.ExecContext(ctx, queryUpdateCursor, flush.Cursor, now, group)
	if err != nil {
		return fmt.Errorf("feature commit: write cursor: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("feature commit: check cursor write: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("feature commit: cursor row missing (group=%s)", group)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("feature commit: commit: %w", err)
	}

	slog.Info("[FeatureAdapter] Committed flush",
		"group", group,
		"deltas", len(flush.Deltas),
		"buffer_rows", len(flush.BufferRows),
		"cursor", flush.Cursor,
	)
	return nil
}
