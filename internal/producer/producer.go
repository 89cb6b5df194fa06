// Package producer emits synthetic retail sale events into the stream,
// standing in for the point-of-sale feed during development and load
// testing.
package producer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/google/uuid"
	v1 "github.com/retailpulse-lab/retailpulse/internal/api/v1"
	"github.com/retailpulse-lab/retailpulse/internal/core/storage"
	"github.com/retailpulse-lab/retailpulse/internal/metrics"
	"github.com/shopspring/decimal"
)

// Catalog bounds the synthetic vocabulary: store numbers and product
// families events are drawn from, mirroring the Favorita dataset shape.
type Catalog struct {
	StoreIDs        []int
	ProductFamilies []string
}

// DefaultCatalog returns the store and family vocabulary used when no
// catalog is configured.
func DefaultCatalog() Catalog {
	storeIDs := make([]int, 0, 54)
	for i := 1; i <= 54; i++ {
		storeIDs = append(storeIDs, i)
	}
	return Catalog{
		StoreIDs: storeIDs,
		ProductFamilies: []string{
			"GROCERY", "BEVERAGES", "PRODUCE", "CLEANING", "DAIRY",
			"BREAD/BAKERY", "POULTRY", "MEATS", "PERSONAL CARE", "DELI",
			"HOME CARE", "EGGS", "FROZEN FOODS", "SEAFOOD", "LIQUOR",
		},
	}
}

// Options controls cadence and batch shape.
type Options struct {
	Interval  time.Duration
	BatchSize int

	// BackfillDays emits one batch per historical day before switching
	// to live cadence. Zero skips backfill.
	BackfillDays int
}

// Producer generates batches of sale events and appends them to the
// stream. Promoted items sell in larger quantities, so downstream
// aggregates show a visible promotion uplift.
type Producer struct {
	stream  storage.EventStream
	catalog Catalog
	opts    Options
	rng     *rand.Rand
}

func New(stream storage.EventStream, catalog Catalog, opts Options) *Producer {
	if len(catalog.StoreIDs) == 0 || len(catalog.ProductFamilies) == 0 {
		catalog = DefaultCatalog()
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 25
	}
	if opts.Interval <= 0 {
		opts.Interval = 2 * time.Second
	}
	return &Producer{
		stream:  stream,
		catalog: catalog,
		opts:    opts,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Run emits the backfill (if configured) and then one batch per
// interval until the context is cancelled.
func (p *Producer) Run(ctx context.Context) error {
	if p.opts.BackfillDays > 0 {
		if err := p.backfill(ctx); err != nil {
			return err
		}
	}

	ticker := time.NewTicker(p.opts.Interval)
	defer ticker.Stop()

	slog.Info("[Producer] Starting live event generation",
		"interval", p.opts.Interval,
		"batch_size", p.opts.BatchSize,
	)

	for {
		select {
		case <-ticker.C:
			if err := p.emitBatch(ctx, time.Now().UTC()); err != nil {
				slog.Error("[Producer] Batch emission failed", "error", err)
			}
		case <-ctx.Done():
			slog.Info("[Producer] Stopping (context cancelled)")
			return nil
		}
	}
}

// backfill emits one batch per day, oldest first, so the feature store
// and training history have realistic depth on a fresh deployment.
func (p *Producer) backfill(ctx context.Context) error {
	slog.Info("[Producer] Starting historical backfill", "days", p.opts.BackfillDays)

	start := time.Now().UTC().AddDate(0, 0, -p.opts.BackfillDays)
	for day := 0; day < p.opts.BackfillDays; day++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		at := start.AddDate(0, 0, day)
		if err := p.emitBatch(ctx, at); err != nil {
			return fmt.Errorf("backfill day %s: %w", at.Format("2006-01-02"), err)
		}
	}

	slog.Info("[Producer] Backfill complete", "days", p.opts.BackfillDays)
	return nil
}

// emitBatch appends one batch of synthetic events occurring around at.
// Occurrence times advance by an accumulated jitter so they are
// non-decreasing within the batch.
func (p *Producer) emitBatch(ctx context.Context, at time.Time) error {
	appended := 0
	occurredAt := at
	for i := 0; i < p.opts.BatchSize; i++ {
		occurredAt = occurredAt.Add(time.Duration(p.rng.Intn(1000)) * time.Millisecond)
		event := p.nextEvent(occurredAt)
		err := p.stream.Append(ctx, event)
		if errors.Is(err, storage.ErrDuplicate) {
			metrics.EventsDuplicate.Inc()
			continue
		}
		if err != nil {
			return fmt.Errorf("append event: %w", err)
		}
		appended++
	}

	metrics.EventsIngested.Add(float64(appended))
	slog.Debug("[Producer] Batch emitted",
		"appended", appended,
		"occurred_around", at.Format(time.RFC3339),
	)
	return nil
}

// nextEvent draws one synthetic sale occurring at the given time.
func (p *Producer) nextEvent(at time.Time) *v1.SaleEvent {
	storeID := p.catalog.StoreIDs[p.rng.Intn(len(p.catalog.StoreIDs))]
	family := p.catalog.ProductFamilies[p.rng.Intn(len(p.catalog.ProductFamilies))]
	onPromotion := p.rng.Float64() < 0.2

	// Promotion uplift: promoted items move roughly twice the volume.
	quantity := 1 + p.rng.Intn(10)
	if onPromotion {
		quantity *= 2
	}

	unitPrice := decimal.NewFromFloat(0.5 + p.rng.Float64()*19.5).Round(2)

	return &v1.SaleEvent{
		EventID:       uuid.NewString(),
		StoreID:       storeID,
		ProductFamily: family,
		OccurredAt:    at,
		Quantity:      decimal.NewFromInt(int64(quantity)),
		UnitPrice:     unitPrice,
		OnPromotion:   onPromotion,
		IngestedAt:    time.Now().UTC(),
	}
}
