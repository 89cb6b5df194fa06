package feature

import (
	"fmt"
	"time"
)

// BucketKind is a fixed calendar granularity used as an aggregation key.
type BucketKind string

const (
	BucketDaily   BucketKind = "daily"
	BucketWeekly  BucketKind = "weekly"
	BucketMonthly BucketKind = "monthly"
)

// Kinds lists every granularity the aggregator maintains.
// Each event contributes one delta per kind.
var Kinds = []BucketKind{BucketDaily, BucketWeekly, BucketMonthly}

// ValidKind reports whether k is a supported bucket granularity.
func ValidKind(k BucketKind) bool {
	switch k {
	case BucketDaily, BucketWeekly, BucketMonthly:
		return true
	}
	return false
}

// BucketKeyFor truncates a timestamp to the calendar boundary of the
// given kind and renders the canonical bucket key. All keys are UTC.
// Unknown kinds render the empty key; gate on ValidKind first.
//
//	daily   → 2017-12-25
//	weekly  → 2017-W52 (ISO 8601 week)
//	monthly → 2017-12
func BucketKeyFor(kind BucketKind, t time.Time) string {
	t = t.UTC()
	switch kind {
	case BucketDaily:
		return t.Format("2006-01-02")
	case BucketWeekly:
		year, week := t.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", year, week)
	case BucketMonthly:
		return t.Format("2006-01")
	}
	return ""
}

// StoreKey renders the external feature-store key for a bucket.
// Example: feature:sales_daily:2017-12-25
func StoreKey(kind BucketKind, bucketKey string) string {
	return fmt.Sprintf("feature:sales_%s:%s", kind, bucketKey)
}
