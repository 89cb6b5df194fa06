package flywheel

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/retailpulse-lab/retailpulse/internal/core/storage"
	"github.com/retailpulse-lab/retailpulse/internal/core/storage/memory"
	"github.com/retailpulse-lab/retailpulse/internal/core/training"
	"github.com/retailpulse-lab/retailpulse/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// stubTrainer returns canned metrics, one per call.
type stubTrainer struct {
	rmses []float64
	calls int
	err   error
}

func (s *stubTrainer) Train(_ context.Context, rows []training.Row) (model.Candidate, error) {
	if s.err != nil {
		return model.Candidate{}, s.err
	}
	rmse := s.rmses[s.calls]
	s.calls++
	return model.Candidate{
		Metrics:     model.Metrics{MAE: rmse * 0.8, RMSE: rmse},
		RowsTrained: len(rows),
		Payload:     []byte(`{}`),
	}, nil
}

func trainingRow(id string, day int) training.Row {
	return training.Row{
		EventID:       id,
		StoreID:       1,
		ProductFamily: "GROCERY",
		Date:          time.Date(2026, 8, day, 0, 0, 0, 0, time.UTC),
		Quantity:      decimal.NewFromInt(2),
		UnitPrice:     decimal.NewFromInt(3),
		Sales:         decimal.NewFromInt(6),
	}
}

func fillBuffer(t *testing.T, store *memory.Store, cursor int64, ids ...string) {
	t.Helper()
	rows := make([]training.Row, 0, len(ids))
	for i, id := range ids {
		rows = append(rows, trainingRow(id, 1+i%27))
	}
	require.NoError(t, store.Commit(context.Background(), "seed", storage.Flush{
		BufferRows: rows,
		Cursor:     cursor,
	}))
}

func newTestFlywheel(t *testing.T, trainer Trainer) (*Flywheel, *memory.Store, *model.Registry) {
	t.Helper()
	store := memory.NewStore(1000, time.Hour)
	registry, err := model.NewRegistry(t.TempDir())
	require.NoError(t, err)
	return New(store, store, registry, trainer, 1), store, registry
}

func TestFlywheel_EmptyBufferIsNoChange(t *testing.T) {
	fw, _, _ := newTestFlywheel(t, &stubTrainer{})

	_, err := fw.Run(context.Background())
	require.ErrorIs(t, err, ErrNoChange)
}

func TestFlywheel_FirstRunPromotesAndDrainsBuffer(t *testing.T) {
	trainer := &stubTrainer{rmses: []float64{500}}
	fw, store, registry := newTestFlywheel(t, trainer)
	ctx := context.Background()

	fillBuffer(t, store, 1, "a", "b", "c")

	artifact, err := fw.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 500.0, artifact.Metrics.RMSE)

	active, err := registry.Active(ctx)
	require.NoError(t, err)
	require.Equal(t, artifact.Version, active.Version)

	rows, _, err := store.Snapshot(ctx)
	require.NoError(t, err)
	require.Empty(t, rows)

	history, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, history, 3)
}

func TestFlywheel_StrictlyBetterCandidatePromotes(t *testing.T) {
	trainer := &stubTrainer{rmses: []float64{500, 480}}
	fw, store, registry := newTestFlywheel(t, trainer)
	ctx := context.Background()

	fillBuffer(t, store, 1, "a", "b")
	first, err := fw.Run(ctx)
	require.NoError(t, err)

	fillBuffer(t, store, 2, "c", "d")
	second, err := fw.Run(ctx)
	require.NoError(t, err)
	require.NotEqual(t, first.Version, second.Version)

	active, err := registry.Active(ctx)
	require.NoError(t, err)
	require.Equal(t, second.Version, active.Version)
	require.Equal(t, 480.0, active.Metrics.RMSE)
}

func TestFlywheel_WorseCandidateKeepsIncumbent(t *testing.T) {
	trainer := &stubTrainer{rmses: []float64{500, 510}}
	fw, store, registry := newTestFlywheel(t, trainer)
	ctx := context.Background()

	fillBuffer(t, store, 1, "a", "b")
	first, err := fw.Run(ctx)
	require.NoError(t, err)

	fillBuffer(t, store, 2, "c", "d")
	_, err = fw.Run(ctx)
	require.ErrorIs(t, err, ErrNoChange)

	active, err := registry.Active(ctx)
	require.NoError(t, err)
	require.Equal(t, first.Version, active.Version)
	require.Equal(t, 500.0, active.Metrics.RMSE)

	// Gate rejection still consumes the data: buffer drained, history grown.
	rows, _, err := store.Snapshot(ctx)
	require.NoError(t, err)
	require.Empty(t, rows)
	history, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, history, 4)
}

func TestFlywheel_EqualRMSEKeepsIncumbent(t *testing.T) {
	trainer := &stubTrainer{rmses: []float64{500, 500}}
	fw, store, registry := newTestFlywheel(t, trainer)
	ctx := context.Background()

	fillBuffer(t, store, 1, "a")
	first, err := fw.Run(ctx)
	require.NoError(t, err)

	fillBuffer(t, store, 2, "b")
	_, err = fw.Run(ctx)
	require.ErrorIs(t, err, ErrNoChange)

	active, err := registry.Active(ctx)
	require.NoError(t, err)
	require.Equal(t, first.Version, active.Version)
}

func TestFlywheel_TrainerFailureLeavesBufferIntact(t *testing.T) {
	trainer := &stubTrainer{err: fmt.Errorf("solver diverged")}
	fw, store, _ := newTestFlywheel(t, trainer)
	ctx := context.Background()

	fillBuffer(t, store, 1, "a", "b")

	_, err := fw.Run(ctx)
	require.Error(t, err)
	require.False(t, errors.Is(err, ErrNoChange))

	rows, _, err := store.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
}

func TestFlywheel_AlreadyTrainedRowsAreDrainedWithoutTraining(t *testing.T) {
	trainer := &stubTrainer{rmses: []float64{500}}
	fw, store, _ := newTestFlywheel(t, trainer)
	ctx := context.Background()

	require.NoError(t, store.MergeAndClearBuffer(ctx, []training.Row{trainingRow("a", 1)}, 0))
	fillBuffer(t, store, 1, "a")

	_, err := fw.Run(ctx)
	require.ErrorIs(t, err, ErrNoChange)
	require.Equal(t, 0, trainer.calls)

	rows, _, err := store.Snapshot(ctx)
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestFlywheel_BelowMinRowsKeepsBuffer(t *testing.T) {
	trainer := &stubTrainer{rmses: []float64{500}}
	store := memory.NewStore(1000, time.Hour)
	registry, err := model.NewRegistry(t.TempDir())
	require.NoError(t, err)
	fw := New(store, store, registry, trainer, 10)
	ctx := context.Background()

	fillBuffer(t, store, 1, "a", "b")

	_, err = fw.Run(ctx)
	require.ErrorIs(t, err, ErrNoChange)
	require.Equal(t, 0, trainer.calls)

	// Rows stay buffered until enough data accumulates.
	rows, _, err := store.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
}
