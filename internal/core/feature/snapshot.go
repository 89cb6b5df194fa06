package feature

import (
	"time"

	"github.com/shopspring/decimal"
)

// Key uniquely identifies one feature-store bucket.
type Key struct {
	Kind      BucketKind
	BucketKey string // truncated calendar key, e.g. "2017-12-25"
}

// Snapshot holds the current materialized aggregate for one bucket.
// Mutated only by additive merge; never overwritten wholesale.
type Snapshot struct {
	TotalSales       decimal.Decimal `json:"total_sales"`
	TotalUnits       decimal.Decimal `json:"total_units"`
	TransactionCount int64           `json:"transaction_count"`
	LastUpdated      time.Time       `json:"last_updated"`
}

// Delta is the additive contribution of one batch to one bucket.
// Merge over deltas is commutative and associative, so retried or
// out-of-order application cannot corrupt totals as long as each
// event's delta is applied at most once.
type Delta struct {
	TotalSales       decimal.Decimal
	TotalUnits       decimal.Decimal
	TransactionCount int64
}

// Add folds another delta into d.
func (d Delta) Add(other Delta) Delta {
	return Delta{
		TotalSales:       d.TotalSales.Add(other.TotalSales),
		TotalUnits:       d.TotalUnits.Add(other.TotalUnits),
		TransactionCount: d.TransactionCount + other.TransactionCount,
	}
}

// Apply merges a delta into a snapshot, stamping the update time.
func (s Snapshot) Apply(d Delta, now time.Time) Snapshot {
	return Snapshot{
		TotalSales:       s.TotalSales.Add(d.TotalSales),
		TotalUnits:       s.TotalUnits.Add(d.TotalUnits),
		TransactionCount: s.TransactionCount + d.TransactionCount,
		LastUpdated:      now,
	}
}
