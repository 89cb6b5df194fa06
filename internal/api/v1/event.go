package v1

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// SaleEvent is the atomic unit of the system: one retail transaction
// observed at a store for one product family.
type SaleEvent struct {
	// EventID is the unique immutable identifier assigned by the producer.
	// It MUST be globally unique to enforce idempotency on append and
	// deduplication during aggregation replay.
	EventID string `json:"event_id"`

	// StoreID identifies the store where the transaction happened.
	StoreID int `json:"store_id"`

	// ProductFamily is the product category (e.g. "GROCERY I", "DAIRY").
	ProductFamily string `json:"product_family"`

	// OccurredAt is when the transaction happened (producer clock).
	// Monotonically non-decreasing within a single producer batch;
	// batches may arrive out of strict global order across cycles.
	OccurredAt time.Time `json:"occurred_at"`

	// Quantity is the number of units sold.
	Quantity decimal.Decimal `json:"quantity"`

	// UnitPrice is the price per unit at sale time.
	UnitPrice decimal.Decimal `json:"unit_price"`

	// OnPromotion reports whether the item was on promotion.
	OnPromotion bool `json:"on_promotion"`

	// IngestedAt is when the stream accepted the event (server clock).
	IngestedAt time.Time `json:"ingested_at"`

	// IngestSeq is a monotonic sequence number assigned on append.
	// This provides strict total ordering for consumer cursors.
	// Set by the database (BIGSERIAL), not exposed in the public API.
	IngestSeq int64 `json:"-"`
}

// Sales returns the revenue of the transaction (quantity * unit price).
func (e *SaleEvent) Sales() decimal.Decimal {
	return e.Quantity.Mul(e.UnitPrice)
}

// Validate ensures the event has all required fields.
// A failing event is skipped and logged during aggregation, never
// aborting the batch it arrived in.
func (e *SaleEvent) Validate() error {
	if e.EventID == "" {
		return fmt.Errorf("event_id is required")
	}

	if e.StoreID <= 0 {
		return fmt.Errorf("store_id must be positive")
	}

	if e.ProductFamily == "" {
		return fmt.Errorf("product_family is required")
	}

	if e.OccurredAt.IsZero() {
		return fmt.Errorf("occurred_at is required")
	}

	if e.Quantity.IsNegative() {
		return fmt.Errorf("quantity must not be negative")
	}

	if e.UnitPrice.IsNegative() {
		return fmt.Errorf("unit_price must not be negative")
	}

	return nil
}
