package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/retailpulse-lab/retailpulse/internal/core/training"
)

// TrainingAdapter implements storage.TrainingBuffer and
// storage.HistoryStore on PostgreSQL. The buffer is the capped staging
// area filled by aggregation cycles; the history table is the canonical
// cumulative dataset the trainer consumes.
type TrainingAdapter struct {
	db *sql.DB
}

func NewTrainingAdapter(db *sql.DB) *TrainingAdapter {
	return &TrainingAdapter{db: db}
}

// Snapshot reads the full buffer in insertion order and returns the
// highest seq observed. Clear(maxSeq) after a successful training run
// removes exactly the rows this snapshot saw, leaving anything appended
// concurrently untouched.
func (a *TrainingAdapter) Snapshot(ctx context.Context) ([]training.Row, int64, error) {
	rows, err := a.db.QueryContext(ctx, querySnapshotBuffer)
	if err != nil {
		return nil, 0, fmt.Errorf("snapshot training buffer: %w", err)
	}
	defer rows.Close()

	var (
		out    []training.Row
		maxSeq int64
	)
	for rows.Next() {
		row, err := scanTrainingRow(rows, true)
		if err != nil {
			return nil, 0, err
		}
		if row.Seq > maxSeq {
			maxSeq = row.Seq
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("snapshot training buffer: iterate: %w", err)
	}
	return out, maxSeq, nil
}

// Clear removes buffer rows with seq <= upToSeq.
func (a *TrainingAdapter) Clear(ctx context.Context, upToSeq int64) error {
	result, err := a.db.ExecContext(ctx, queryClearBuffer, upToSeq)
	if err != nil {
		return fmt.Errorf("clear training buffer: %w", err)
	}
	cleared, _ := result.RowsAffected()
	slog.Info("[TrainingAdapter] Cleared training buffer",
		"up_to_seq", upToSeq,
		"rows_cleared", cleared)
	return nil
}

// Load returns the full cumulative history in chronological order.
func (a *TrainingAdapter) Load(ctx context.Context) ([]training.Row, error) {
	rows, err := a.db.QueryContext(ctx, queryLoadHistory)
	if err != nil {
		return nil, fmt.Errorf("load training history: %w", err)
	}
	defer rows.Close()

	var out []training.Row
	for rows.Next() {
		row, err := scanTrainingRow(rows, false)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load training history: iterate: %w", err)
	}
	return out, nil
}

// MergeAndClearBuffer folds fresh rows into the history table and
// clears the buffer up to upToSeq in a single transaction. Either both
// sides land or neither does; a crash between them cannot lose rows or
// replay them into history twice (event_id dedups on conflict).
func (a *TrainingAdapter) MergeAndClearBuffer(ctx context.Context, rows []training.Row, upToSeq int64) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("merge history: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()

	mergeStmt, err := tx.PrepareContext(ctx, queryMergeHistoryRow)
	if err != nil {
		return fmt.Errorf("merge history: prepare: %w", err)
	}
	defer mergeStmt.Close()

	merged := 0
	for _, row := range rows {
		result, err := mergeStmt.ExecContext(ctx,
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
		)
		if err != nil {
			return fmt.Errorf("merge history: insert %s: %w", row.EventID, err)
		}
		if n, _ := result.RowsAffected(); n > 0 {
			merged++
		}
	}

	if _, err := tx.ExecContext(ctx, queryClearBuffer, upToSeq); err != nil {
		return fmt.Errorf("merge history: clear buffer: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("merge history: commit: %w", err)
	}

	slog.Info("[TrainingAdapter] Merged buffer into history",
		"rows_offered", len(rows),
		"rows_merged", merged,
		"buffer_cleared_up_to", upToSeq)
	return nil
}
