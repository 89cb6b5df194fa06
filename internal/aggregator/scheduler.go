package aggregator

import (
	"context"
	"log/slog"
	"time"
)

// Scheduler runs consume cycles on a periodic interval.
// It is stateless: each tick independently fetches events since the
// durable cursor.
type Scheduler struct {
	interval time.Duration
	consumer *Consumer
}

func NewScheduler(interval time.Duration, consumer *Consumer) *Scheduler {
	return &Scheduler{interval: interval, consumer: consumer}
}

// Start begins periodic aggregation. Runs until context is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	slog.Info("[Scheduler] Starting aggregation scheduler",
		"interval", s.interval,
		"group", s.consumer.group,
		"batch_size", s.consumer.opts.BatchSize,
		"workers", s.consumer.opts.WorkerCount,
	)

	// Run initial drain to catch up with any backlog
	s.drainBacklog(ctx)

	for {
		select {
		case <-ticker.C:
			// Drain all pending events, not just one batch
			s.drainBacklog(ctx)
		case <-ctx.Done():
			slog.Info("[Scheduler] Stopping (context cancelled)", "group", s.consumer.group)

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			slog.Info("[Scheduler] Running final drain before shutdown...", "group", s.consumer.group)
			s.drainBacklog(shutdownCtx)
			slog.Info("[Scheduler] Final drain complete", "group", s.consumer.group)

			return nil
		}
	}
}

// drainBacklog processes all pending events in batches until the backlog
// is empty. This prevents unbounded staleness during burst ingestion.
func (s *Scheduler) drainBacklog(ctx context.Context) {
	batchCount := 0
	maxConsecutiveBatches := 100 // Safety limit to prevent infinite loop

	for batchCount < maxConsecutiveBatches {
		select {
		case <-ctx.Done():
			slog.Info("[Scheduler] Drain interrupted by context cancellation",
				"group", s.consumer.group,
				"batches_processed", batchCount,
			)
			return
		default:
		}

		eventsProcessed, err := s.consumer.ConsumeBatch(ctx)
		if err != nil {
			slog.Error("[Scheduler] Consume cycle failed",
				"error", err,
				"group", s.consumer.group,
				"batch_number", batchCount+1,
			)
			return
		}

		batchCount++

		// If batch processed fewer events than batch size, backlog is drained
		if eventsProcessed < s.consumer.opts.BatchSize {
			if batchCount > 1 {
				slog.Info("[Scheduler] Backlog drained",
					"group", s.consumer.group,
					"total_batches", batchCount,
				)
			}
			return
		}

		slog.Info("[Scheduler] Backlog detected, continuing to drain",
			"group", s.consumer.group,
			"batches_so_far", batchCount,
		)
	}

	slog.Warn("[Scheduler] Max consecutive batches reached, pausing drain",
		"group", s.consumer.group,
		"max_batches", maxConsecutiveBatches,
		"note", "Will resume on next tick",
	)
}
