package training

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Row is a denormalized copy of a sale event plus join-time context,
// queued for the next retraining run. Rows live in the capped training
// buffer until the flywheel folds them into the historical dataset.
type Row struct {
	EventID       string          `json:"event_id"`
	StoreID       int             `json:"store_id"`
	ProductFamily string          `json:"product_family"`
	Date          time.Time       `json:"date"`
	Quantity      decimal.Decimal `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	Sales         decimal.Decimal `json:"sales"`
	OnPromotion   bool            `json:"on_promotion"`

	// Join-time context stamped by the aggregator.
	OilPrice  decimal.Decimal `json:"oil_price"`
	IsHoliday bool            `json:"is_holiday"`

	// Seq is the buffer sequence number (BIGSERIAL). Zero for rows
	// loaded from the historical dataset.
	Seq int64 `json:"-"`
}

// Dedup returns rows whose EventID is not in known, preserving order.
// Used by the flywheel to avoid double-training on rows the buffer
// re-surfaced after they were already folded into history.
func Dedup(rows []Row, known map[string]struct{}) []Row {
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		if _, ok := known[r.EventID]; ok {
			continue
		}
		out = append(out, r)
	}
	return out
}

// SortChronological orders rows by date, then event_id for stability.
func SortChronological(rows []Row) {
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].Date.Equal(rows[j].Date) {
			return rows[i].Date.Before(rows[j].Date)
		}
		return rows[i].EventID < rows[j].EventID
	})
}

// IDSet builds an event_id set from rows.
func IDSet(rows []Row) map[string]struct{} {
	set := make(map[string]struct{}, len(rows))
	for _, r := range rows {
		set[r.EventID] = struct{}{}
	}
	return set
}
