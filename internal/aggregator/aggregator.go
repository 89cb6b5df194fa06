package aggregator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	v1 "github.com/retailpulse-lab/retailpulse/internal/api/v1"
	"github.com/retailpulse-lab/retailpulse/internal/core/feature"
	"github.com/retailpulse-lab/retailpulse/internal/core/storage"
	"github.com/retailpulse-lab/retailpulse/internal/core/training"
	"github.com/retailpulse-lab/retailpulse/internal/metrics"
	"github.com/shopspring/decimal"
)

const (
	defaultBatchSize         = 5000
	defaultWorkerCount       = 4
	defaultChannelBufferSize = 256
)

// Enricher supplies the exogenous features attached to buffer rows.
type Enricher interface {
	OilPrice(date time.Time) (decimal.Decimal, bool)
	IsHoliday(date time.Time) bool
}

// BatchJobParameter controls throughput for one consume cycle.
type BatchJobParameter struct {
	BatchSize   int
	WorkerCount int

	// ChannelBufferSize caps the fan-out job channel. Sends beyond it
	// block until a worker drains a group.
	ChannelBufferSize int
}

// DefaultBatchJobOptions returns safe defaults for cron-based processing.
func DefaultBatchJobOptions() BatchJobParameter {
	return BatchJobParameter{
		BatchSize:         defaultBatchSize,
		WorkerCount:       defaultWorkerCount,
		ChannelBufferSize: defaultChannelBufferSize,
	}
}

func (o BatchJobParameter) normalized() BatchJobParameter {
	n := o
	if n.BatchSize <= 0 {
		n.BatchSize = defaultBatchSize
	}
	if n.WorkerCount <= 0 {
		n.WorkerCount = defaultWorkerCount
	}
	if n.ChannelBufferSize <= 0 {
		n.ChannelBufferSize = defaultChannelBufferSize
	}
	return n
}

// Consumer folds stream events into feature-snapshot deltas and training
// buffer rows, one batch per cycle. Delivery is at-least-once; the
// trailing seen-event window plus the cursor-gated commit keep replays
// from double-counting.
type Consumer struct {
	group    string
	stream   storage.EventStream
	features storage.FeatureStore
	enricher Enricher
	opts     BatchJobParameter
}

func NewConsumer(
	group string,
	stream storage.EventStream,
	features storage.FeatureStore,
	enricher Enricher,
	opts BatchJobParameter,
) *Consumer {
	return &Consumer{
		group:    group,
		stream:   stream,
		features: features,
		enricher: enricher,
		opts:     opts.normalized(),
	}
}

// ConsumeBatch runs one cycle and returns the number of stream events it
// advanced past (including duplicates and malformed events).
func (c *Consumer) ConsumeBatch(ctx context.Context) (int, error) {
	started := time.Now()

	cursor, err := c.features.ReadCursor(ctx, c.group)
	if err != nil {
		return 0, fmt.Errorf("read cursor: %w", err)
	}

	events, err := c.stream.ReadRange(ctx, cursor, c.opts.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("read stream: %w", err)
	}

	if len(events) == 0 {
		slog.Debug("[Aggregator] No new events to process", "group", c.group)
		return 0, nil
	}

	fresh, skipped, duplicates, err := c.partitionBatch(ctx, events)
	if err != nil {
		return 0, err
	}

	deltas := buildDeltasConcurrently(fresh, c.opts.WorkerCount, c.opts.ChannelBufferSize)
	bufferRows := c.buildBufferRows(fresh)

	flush := storage.Flush{
		Deltas:       deltas,
		BufferRows:   bufferRows,
		SeenEventIDs: eventIDs(fresh),
		Cursor:       events[len(events)-1].IngestSeq,
	}

	if err := c.features.Commit(ctx, c.group, flush); err != nil {
		metrics.AggregationCycles.WithLabelValues("error").Inc()
		return 0, fmt.Errorf("commit flush: %w", err)
	}

	metrics.EventsAggregated.Add(float64(len(fresh)))
	metrics.EventsDeduplicated.Add(float64(duplicates))
	metrics.EventsSkipped.Add(float64(skipped))
	metrics.AggregationCycles.WithLabelValues("ok").Inc()
	metrics.AggregationCycleDuration.Observe(float64(time.Since(started).Milliseconds()))

	slog.Info("[Aggregator] Batch complete",
		"group", c.group,
		"events_read", len(events),
		"events_aggregated", len(fresh),
		"duplicates", duplicates,
		"skipped", skipped,
		"deltas", len(deltas),
		"cursor_advanced", fmt.Sprintf("%d -> %d", cursor, flush.Cursor),
	)
	return len(events), nil
}

// partitionBatch splits a read batch into fresh events, a skipped count
// (malformed) and a duplicate count (seen in the dedup window or earlier
// in the same batch).
func (c *Consumer) partitionBatch(ctx context.Context, events []*v1.SaleEvent) ([]*v1.SaleEvent, int, int, error) {
	valid := make([]*v1.SaleEvent, 0, len(events))
	skipped := 0
	for _, evt := range events {
		if err := evt.Validate(); err != nil {
			slog.Warn("[Aggregator] Skipping malformed event",
				"event_id", evt.EventID,
				"ingest_seq", evt.IngestSeq,
				"error", err,
			)
			skipped++
			continue
		}
		valid = append(valid, evt)
	}

	seen, err := c.features.FilterSeen(ctx, eventIDs(valid))
	if err != nil {
		return nil, 0, 0, fmt.Errorf("filter seen events: %w", err)
	}

	fresh := make([]*v1.SaleEvent, 0, len(valid))
	duplicates := 0
	inBatch := make(map[string]bool, len(valid))
	for _, evt := range valid {
		if seen[evt.EventID] || inBatch[evt.EventID] {
			duplicates++
			continue
		}
		inBatch[evt.EventID] = true
		fresh = append(fresh, evt)
	}
	return fresh, skipped, duplicates, nil
}

type eventGroupKey struct {
	StoreID int
}

// buildDeltasConcurrently folds events into per-bucket deltas using a
// worker pool. Events are grouped by store so each group lands on one
// worker; deltas are additive and commutative, so the merge order of
// worker-local maps does not matter.
func buildDeltasConcurrently(events []*v1.SaleEvent, workerCount, channelBufferSize int) map[feature.Key]feature.Delta {
	groups := make(map[eventGroupKey][]*v1.SaleEvent)
	for _, evt := range events {
		key := eventGroupKey{StoreID: evt.StoreID}
		groups[key] = append(groups[key], evt)
	}

	workerCount = minInt(workerCount, len(groups))
	if workerCount <= 0 {
		return map[feature.Key]feature.Delta{}
	}

	// Workers are running before any send, so a buffer smaller than the
	// group count just applies backpressure instead of deadlocking.
	jobs := make(chan []*v1.SaleEvent, minInt(channelBufferSize, len(groups)))
	results := make(chan map[feature.Key]feature.Delta, workerCount)

	var wg sync.WaitGroup
	wg.Add(workerCount)
	for i := 0; i < workerCount; i++ {
		go func() {
			defer wg.Done()
			local := make(map[feature.Key]feature.Delta)
			for groupEvents := range jobs {
				foldGroupDeltas(local, groupEvents)
			}
			results <- local
		}()
	}

	for _, groupedEvents := range groups {
		jobs <- groupedEvents
	}
	close(jobs)

	wg.Wait()
	close(results)

	merged := make(map[feature.Key]feature.Delta)
	for local := range results {
		for key, delta := range local {
			if existing, ok := merged[key]; ok {
				merged[key] = existing.Add(delta)
				continue
			}
			merged[key] = delta
		}
	}
	return merged
}

// foldGroupDeltas adds each event to its daily, weekly and monthly bucket.
func foldGroupDeltas(target map[feature.Key]feature.Delta, events []*v1.SaleEvent) {
	for _, evt := range events {
		delta := feature.Delta{
			TotalSales:       evt.Sales(),
			TotalUnits:       evt.Quantity,
			TransactionCount: 1,
		}
		for _, kind := range feature.Kinds {
			key := feature.Key{Kind: kind, BucketKey: feature.BucketKeyFor(kind, evt.OccurredAt)}
			if existing, ok := target[key]; ok {
				target[key] = existing.Add(delta)
				continue
			}
			target[key] = delta
		}
	}
}

func (c *Consumer) buildBufferRows(events []*v1.SaleEvent) []training.Row {
	rows := make([]training.Row, 0, len(events))
	for _, evt := range events {
		date := evt.OccurredAt.UTC().Truncate(24 * time.Hour)
		row := training.Row{
			EventID:       evt.EventID,
			StoreID:       evt.StoreID,
			ProductFamily: evt.ProductFamily,
			Date:          date,
			Quantity:      evt.Quantity,
			UnitPrice:     evt.UnitPrice,
			Sales:         evt.Sales(),
			OnPromotion:   evt.OnPromotion,
		}
		if c.enricher != nil {
			if price, ok := c.enricher.OilPrice(date); ok {
				row.OilPrice = price
			}
			row.IsHoliday = c.enricher.IsHoliday(date)
		}
		rows = append(rows, row)
	}
	return rows
}

func eventIDs(events []*v1.SaleEvent) []string {
	ids := make([]string, 0, len(events))
	for _, evt := range events {
		ids = append(ids, evt.EventID)
	}
	return ids
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
