// Package flywheel implements the continuous-training loop: drain the
// training buffer into the historical dataset, retrain, and promote the
// candidate model only when it strictly beats the active one.
package flywheel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/retailpulse-lab/retailpulse/internal/core/storage"
	"github.com/retailpulse-lab/retailpulse/internal/core/training"
	"github.com/retailpulse-lab/retailpulse/internal/metrics"
	"github.com/retailpulse-lab/retailpulse/internal/model"
)

// ErrNoChange is returned when a run finishes without promoting a new
// model: empty buffer, not enough data, or the candidate failed the
// promotion gate.
var ErrNoChange = errors.New("no model change")

// Flywheel owns one retraining cycle end to end.
type Flywheel struct {
	buffer   storage.TrainingBuffer
	history  storage.HistoryStore
	registry *model.Registry
	trainer  Trainer
	minRows  int
}

func New(
	buffer storage.TrainingBuffer,
	history storage.HistoryStore,
	registry *model.Registry,
	trainer Trainer,
	minRows int,
) *Flywheel {
	if minRows <= 0 {
		minRows = 50
	}
	return &Flywheel{
		buffer:   buffer,
		history:  history,
		registry: registry,
		trainer:  trainer,
		minRows:  minRows,
	}
}

// Run executes one training cycle. Returns the promoted artifact, or
// ErrNoChange when the active model stays in place. Any failure leaves
// the buffer and the active model untouched, so the run can simply be
// retried.
func (f *Flywheel) Run(ctx context.Context) (*model.Artifact, error) {
	buffered, maxSeq, err := f.buffer.Snapshot(ctx)
	if err != nil {
		metrics.TrainingRuns.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("snapshot buffer: %w", err)
	}
	if len(buffered) == 0 {
		slog.Info("[Flywheel] Training buffer empty, nothing to do")
		metrics.TrainingRuns.WithLabelValues("no_change").Inc()
		return nil, ErrNoChange
	}

	history, err := f.history.Load(ctx)
	if err != nil {
		metrics.TrainingRuns.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("load history: %w", err)
	}

	fresh := training.Dedup(buffered, training.IDSet(history))
	if len(fresh) == 0 {
		// Everything in the buffer was already trained on. Drain it so
		// the same rows are not re-surfaced every night.
		if err := f.history.MergeAndClearBuffer(ctx, nil, maxSeq); err != nil {
			metrics.TrainingRuns.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("clear stale buffer: %w", err)
		}
		slog.Info("[Flywheel] Buffer contained only already-trained rows", "rows", len(buffered))
		metrics.TrainingRuns.WithLabelValues("no_change").Inc()
		return nil, ErrNoChange
	}

	dataset := make([]training.Row, 0, len(history)+len(fresh))
	dataset = append(dataset, history...)
	dataset = append(dataset, fresh...)

	if len(dataset) < f.minRows {
		slog.Info("[Flywheel] Not enough data to train yet",
			"rows", len(dataset),
			"min_rows", f.minRows,
		)
		metrics.TrainingRuns.WithLabelValues("no_change").Inc()
		return nil, ErrNoChange
	}

	slog.Info("[Flywheel] Starting training run",
		"history_rows", len(history),
		"fresh_rows", len(fresh),
		"dataset_rows", len(dataset),
	)

	candidate, err := f.trainer.Train(ctx, dataset)
	if err != nil {
		metrics.TrainingRuns.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("train candidate: %w", err)
	}

	artifact, err := f.registry.Put(ctx, candidate)
	if err != nil {
		metrics.TrainingRuns.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("register candidate: %w", err)
	}

	promoted, err := f.applyGate(ctx, artifact)
	if err != nil {
		metrics.TrainingRuns.WithLabelValues("error").Inc()
		return nil, err
	}

	// Training succeeded: fold the fresh rows into history and drain the
	// buffer, whether or not the candidate was promoted.
	if err := f.history.MergeAndClearBuffer(ctx, fresh, maxSeq); err != nil {
		metrics.TrainingRuns.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("merge history: %w", err)
	}

	if !promoted {
		metrics.TrainingRuns.WithLabelValues("no_change").Inc()
		return nil, ErrNoChange
	}

	metrics.TrainingRuns.WithLabelValues("ok").Inc()
	metrics.ModelPromotions.Inc()
	return &artifact, nil
}

// applyGate promotes the candidate only when its holdout RMSE is
// strictly lower than the active model's. Ties keep the incumbent.
func (f *Flywheel) applyGate(ctx context.Context, candidate model.Artifact) (bool, error) {
	active, err := f.registry.Active(ctx)
	if errors.Is(err, model.ErrNoActive) {
		if err := f.registry.Promote(candidate.Version); err != nil {
			return false, fmt.Errorf("promote first model: %w", err)
		}
		slog.Info("[Flywheel] Promoted first model",
			"version", candidate.Version,
			"rmse", candidate.Metrics.RMSE,
		)
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("read active model: %w", err)
	}

	if candidate.Metrics.RMSE >= active.Metrics.RMSE {
		slog.Info("[Flywheel] Candidate failed promotion gate, keeping incumbent",
			"candidate_version", candidate.Version,
			"candidate_rmse", candidate.Metrics.RMSE,
			"active_version", active.Version,
			"active_rmse", active.Metrics.RMSE,
		)
		return false, nil
	}

	if err := f.registry.Promote(candidate.Version); err != nil {
		return false, fmt.Errorf("promote candidate: %w", err)
	}
	slog.Info("[Flywheel] Promoted candidate model",
		"version", candidate.Version,
		"rmse", candidate.Metrics.RMSE,
		"previous_version", active.Version,
		"previous_rmse", active.Metrics.RMSE,
	)
	return true, nil
}
