package analyst

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/retailpulse-lab/retailpulse/internal/analyst/embed"
	"github.com/retailpulse-lab/retailpulse/internal/analyst/index"
	"github.com/retailpulse-lab/retailpulse/internal/core/storage"
	"github.com/retailpulse-lab/retailpulse/internal/core/training"
	"github.com/retailpulse-lab/retailpulse/internal/metrics"
)

// RecordText renders a training row into the sentence that gets
// embedded and shown to the generator.
func RecordText(row training.Row) string {
	text := fmt.Sprintf("On %s, Store %d sold %s with sales of $%s",
		row.Date.UTC().Format("2006-01-02"),
		row.StoreID,
		row.ProductFamily,
		row.Sales.StringFixed(2),
	)
	if row.OnPromotion {
		text += " (on promotion)"
	}
	if row.IsHoliday {
		text += " during a holiday"
	}
	return text
}

// RecordMetadata builds the filterable metadata stored with a record.
func RecordMetadata(row training.Row) index.Metadata {
	return index.Metadata{
		"store_id":       strconv.Itoa(row.StoreID),
		"product_family": row.ProductFamily,
		"date":           row.Date.UTC().Format("2006-01-02"),
		"sales":          row.Sales.StringFixed(2),
		"text":           RecordText(row),
	}
}

// Indexer keeps the semantic index fed: an initial pass over the
// historical dataset, then periodic passes over the training buffer so
// fresh sales become searchable before the nightly drain.
type Indexer struct {
	history  storage.HistoryStore
	buffer   storage.TrainingBuffer
	embedder embed.Embedder
	index    index.SemanticIndex

	mu      sync.Mutex
	indexed map[string]bool
}

func NewIndexer(
	history storage.HistoryStore,
	buffer storage.TrainingBuffer,
	embedder embed.Embedder,
	idx index.SemanticIndex,
) *Indexer {
	return &Indexer{
		history:  history,
		buffer:   buffer,
		embedder: embedder,
		index:    idx,
		indexed:  make(map[string]bool),
	}
}

// Start seeds the index from history, then re-indexes buffered rows on
// the given interval until the context is cancelled.
func (ix *Indexer) Start(ctx context.Context, interval time.Duration) error {
	if err := ix.indexHistory(ctx); err != nil {
		slog.Error("[Indexer] Initial history indexing failed", "error", err)
	}
	if err := ix.IndexBuffered(ctx); err != nil {
		slog.Error("[Indexer] Initial buffer indexing failed", "error", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := ix.IndexBuffered(ctx); err != nil {
				slog.Error("[Indexer] Buffer indexing failed", "error", err)
			}
		case <-ctx.Done():
			slog.Info("[Indexer] Stopping (context cancelled)")
			return nil
		}
	}
}

func (ix *Indexer) indexHistory(ctx context.Context) error {
	rows, err := ix.history.Load(ctx)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	return ix.indexRows(ctx, rows)
}

// IndexBuffered embeds and upserts buffered rows not yet in the index.
func (ix *Indexer) IndexBuffered(ctx context.Context) error {
	rows, _, err := ix.buffer.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("snapshot buffer: %w", err)
	}
	return ix.indexRows(ctx, rows)
}

func (ix *Indexer) indexRows(ctx context.Context, rows []training.Row) error {
	added := 0
	for _, row := range rows {
		ix.mu.Lock()
		done := ix.indexed[row.EventID]
		ix.mu.Unlock()
		if done {
			continue
		}

		vector, err := ix.embedder.EmbedDocument(ctx, RecordText(row))
		if err != nil {
			return fmt.Errorf("embed record %s: %w", row.EventID, err)
		}
		if err := ix.index.Upsert(ctx, row.EventID, vector, RecordMetadata(row)); err != nil {
			return fmt.Errorf("upsert record %s: %w", row.EventID, err)
		}

		ix.mu.Lock()
		ix.indexed[row.EventID] = true
		ix.mu.Unlock()
		added++
	}

	if added > 0 {
		metrics.RecordsIndexed.Add(float64(added))
		slog.Info("[Indexer] Indexed records", "added", added, "total", ix.index.Count())
	}
	return nil
}
