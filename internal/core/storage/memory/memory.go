// Package memory holds in-memory implementations of the storage
// interfaces, used by tests and local development without Postgres.
package memory

import (
	"context"
	"log/slog"
	"sync"
	"time"

	v1 "github.com/retailpulse-lab/retailpulse/internal/api/v1"
	"github.com/retailpulse-lab/retailpulse/internal/core/feature"
	"github.com/retailpulse-lab/retailpulse/internal/core/storage"
	"github.com/retailpulse-lab/retailpulse/internal/core/training"
)

// EventStream is an in-memory append-only event log.
type EventStream struct {
	mu     sync.RWMutex
	events []*v1.SaleEvent
	byID   map[string]bool
	seq    int64
}

func NewEventStream() *EventStream {
	return &EventStream{byID: make(map[string]bool)}
}

func (s *EventStream) Append(_ context.Context, event *v1.SaleEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.byID[event.EventID] {
		return storage.ErrDuplicate
	}
	s.seq++
	event.IngestSeq = s.seq
	s.byID[event.EventID] = true

	stored := *event
	s.events = append(s.events, &stored)
	return nil
}

func (s *EventStream) ReadRange(_ context.Context, cursor int64, limit int) ([]*v1.SaleEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*v1.SaleEvent
	for _, evt := range s.events {
		if evt.IngestSeq <= cursor {
			continue
		}
		copied := *evt
		out = append(out, &copied)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// Store is an in-memory FeatureStore, TrainingBuffer and HistoryStore
// sharing one mutex, mirroring the single-database deployment where a
// flush commits or rolls back as a unit.
type Store struct {
	mu             sync.RWMutex
	snapshots      map[feature.Key]feature.Snapshot
	cursors        map[string]int64
	seen           map[string]time.Time
	buffer         []training.Row
	bufferSeq      int64
	bufferCapacity int
	history        map[string]training.Row
	dedupRetention time.Duration
}

func NewStore(bufferCapacity int, dedupRetention time.Duration) *Store {
	return &Store{
		snapshots:      make(map[feature.Key]feature.Snapshot),
		cursors:        make(map[string]int64),
		seen:           make(map[string]time.Time),
		history:        make(map[string]training.Row),
		bufferCapacity: bufferCapacity,
		dedupRetention: dedupRetention,
	}
}

func (s *Store) Get(_ context.Context, kind feature.BucketKind, bucketKey string) (feature.Snapshot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.snapshots[feature.Key{Kind: kind, BucketKey: bucketKey}]
	return snap, ok, nil
}

func (s *Store) ReadCursor(_ context.Context, group string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cursors[group], nil
}

func (s *Store) FilterSeen(_ context.Context, ids []string) (map[string]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if _, ok := s.seen[id]; ok {
			seen[id] = true
		}
	}
	return seen, nil
}

func (s *Store) Commit(_ context.Context, group string, flush storage.Flush) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if flush.Cursor <= s.cursors[group] {
		slog.Warn("[MemoryStore] Skipping stale/no-op flush",
			"group", group,
			"cursor", flush.Cursor,
			"durable_cursor", s.cursors[group])
		return nil
	}

	now := time.Now().UTC()
	for key, delta := range flush.Deltas {
		snap := s.snapshots[key]
		s.snapshots[key] = snap.Apply(delta, now)
	}

	for _, row := range flush.BufferRows {
		s.bufferSeq++
		row.Seq = s.bufferSeq
		s.buffer = append(s.buffer, row)
	}
	if overflow := len(s.buffer) - s.bufferCapacity; overflow > 0 {
		s.buffer = append([]training.Row(nil), s.buffer[overflow:]...)
	}

	for _, id := range flush.SeenEventIDs {
		s.seen[id] = now
	}
	cutoff := now.Add(-s.dedupRetention)
	for id, seenAt := range s.seen {
		if seenAt.Before(cutoff) {
			delete(s.seen, id)
		}
	}

	s.cursors[group] = flush.Cursor
	return nil
}

func (s *Store) Snapshot(_ context.Context) ([]training.Row, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := append([]training.Row(nil), s.buffer...)
	var maxSeq int64
	for _, row := range rows {
		if row.Seq > maxSeq {
			maxSeq = row.Seq
		}
	}
	return rows, maxSeq, nil
}

func (s *Store) Clear(_ context.Context, upToSeq int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked(upToSeq)
	return nil
}

func (s *Store) clearLocked(upToSeq int64) {
	kept := s.buffer[:0]
	for _, row := range s.buffer {
		if row.Seq > upToSeq {
			kept = append(kept, row)
		}
	}
	s.buffer = kept
}

func (s *Store) Load(_ context.Context) ([]training.Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := make([]training.Row, 0, len(s.history))
	for _, row := range s.history {
		rows = append(rows, row)
	}
	training.SortChronological(rows)
	return rows, nil
}

func (s *Store) MergeAndClearBuffer(_ context.Context, rows []training.Row, upToSeq int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, row := range rows {
		if _, ok := s.history[row.EventID]; ok {
			continue
		}
		s.history[row.EventID] = row
	}
	s.clearLocked(upToSeq)
	return nil
}
