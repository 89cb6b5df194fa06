package storage

import (
	"context"
	"errors"

	v1 "github.com/retailpulse-lab/retailpulse/internal/api/v1"
	"github.com/retailpulse-lab/retailpulse/internal/core/feature"
	"github.com/retailpulse-lab/retailpulse/internal/core/training"
)

// ErrDuplicate is returned when an event with the same event_id already
// exists in the stream.
var ErrDuplicate = errors.New("event already exists")

// EventStream is an append-only, totally ordered log of sale events.
type EventStream interface {
	// Append persists an event and populates its IngestSeq.
	// Returns ErrDuplicate if an event with the same event_id exists.
	Append(ctx context.Context, event *v1.SaleEvent) error

	// ReadRange fetches events with ingest_seq strictly after cursor,
	// in strict total order. cursor=0 means "from the beginning".
	ReadRange(ctx context.Context, cursor int64, limit int) ([]*v1.SaleEvent, error)
}

// Flush is everything one aggregation cycle commits atomically:
// snapshot deltas, training-buffer appends, the dedup-window inserts
// and the consumer cursor advance. Either all of it lands or none.
type Flush struct {
	// Deltas are additive per-bucket contributions. Applied as single
	// atomic increments, never read-modify-write.
	Deltas map[feature.Key]feature.Delta

	// BufferRows are appended to the capped training buffer. When the
	// buffer is at capacity, the oldest rows are evicted first.
	BufferRows []training.Row

	// SeenEventIDs enter the trailing dedup window.
	SeenEventIDs []string

	// Cursor is the last ingest_seq included in this flush.
	Cursor int64
}

// FeatureStore is the durable key-value store for bucket snapshots,
// plus the consumer cursor and dedup window that gate aggregation.
//
// Contract: Commit writes snapshots, buffer rows and the cursor in a
// single database transaction. This prevents the crash scenario where
// snapshots land but the cursor does not, which would double-count on
// replay beyond the dedup window.
type FeatureStore interface {
	// Get returns the current snapshot for a bucket. The second return
	// is false when no event has touched the bucket yet. Reads are
	// never blocked by writes; a stale snapshot is acceptable.
	Get(ctx context.Context, kind feature.BucketKind, bucketKey string) (feature.Snapshot, bool, error)

	// ReadCursor returns the consumer-group cursor.
	// Returns 0 if no cursor exists yet ("replay from beginning").
	ReadCursor(ctx context.Context, group string) (int64, error)

	// FilterSeen returns the subset of ids already present in the
	// trailing dedup window.
	FilterSeen(ctx context.Context, ids []string) (map[string]bool, error)

	// Commit applies a flush atomically for the given consumer group.
	// A flush whose cursor is not ahead of the durable cursor is a no-op.
	Commit(ctx context.Context, group string, flush Flush) error
}

// TrainingBuffer exposes the drain side of the capped FIFO buffer.
// Appends happen inside FeatureStore.Commit; the flywheel only ever
// snapshots and clears.
type TrainingBuffer interface {
	// Snapshot returns all buffered rows plus the highest sequence
	// number included, without mutating the buffer.
	Snapshot(ctx context.Context) ([]training.Row, int64, error)

	// Clear removes rows with sequence <= upToSeq. Rows appended after
	// the snapshot survive into the next cycle, never silently dropped.
	Clear(ctx context.Context, upToSeq int64) error
}

// HistoryStore holds the canonical training dataset the flywheel
// retrains on, and folds freshly buffered rows into it.
type HistoryStore interface {
	// Load returns the full historical dataset.
	Load(ctx context.Context) ([]training.Row, error)

	// MergeAndClearBuffer appends deduplicated rows to history and
	// clears the training buffer up to upToSeq in one transaction, so
	// a crash can never fold rows into history without draining them,
	// or vice versa.
	MergeAndClearBuffer(ctx context.Context, rows []training.Row, upToSeq int64) error
}
