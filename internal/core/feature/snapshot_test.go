package feature

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func delta(sales, units string, count int64) Delta {
	return Delta{
		TotalSales:       decimal.RequireFromString(sales),
		TotalUnits:       decimal.RequireFromString(units),
		TransactionCount: count,
	}
}

func requireDeltaEqual(t *testing.T, want, got Delta) {
	t.Helper()
	require.True(t, want.TotalSales.Equal(got.TotalSales), "total_sales %s != %s", got.TotalSales, want.TotalSales)
	require.True(t, want.TotalUnits.Equal(got.TotalUnits), "total_units %s != %s", got.TotalUnits, want.TotalUnits)
	require.Equal(t, want.TransactionCount, got.TransactionCount)
}

func TestDeltaAdd_Commutative(t *testing.T) {
	a := delta("20.00", "10", 1)
	b := delta("5.50", "2", 3)

	requireDeltaEqual(t, a.Add(b), b.Add(a))
}

func TestDeltaAdd_Associative(t *testing.T) {
	a := delta("20.00", "10", 1)
	b := delta("5.50", "2", 3)
	c := delta("0.25", "1", 1)

	requireDeltaEqual(t, a.Add(b).Add(c), a.Add(b.Add(c)))
	requireDeltaEqual(t, a.Add(b).Add(c), c.Add(a).Add(b))
}

func TestSnapshotApply_OrderIndependent(t *testing.T) {
	now := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)
	a := delta("20.00", "10", 1)
	b := delta("5.50", "2", 3)

	forward := Snapshot{}.Apply(a, now).Apply(b, now)
	reverse := Snapshot{}.Apply(b, now).Apply(a, now)
	folded := Snapshot{}.Apply(a.Add(b), now)

	for _, got := range []Snapshot{forward, reverse} {
		require.True(t, folded.TotalSales.Equal(got.TotalSales))
		require.True(t, folded.TotalUnits.Equal(got.TotalUnits))
		require.Equal(t, folded.TransactionCount, got.TransactionCount)
	}
	assert.True(t, forward.TotalSales.Equal(decimal.RequireFromString("25.50")))
	assert.Equal(t, int64(4), forward.TransactionCount)
}

func TestSnapshotApply_StampsUpdateTime(t *testing.T) {
	first := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)
	second := first.Add(time.Hour)

	snap := Snapshot{}.Apply(delta("1.00", "1", 1), first)
	require.Equal(t, first, snap.LastUpdated)

	snap = snap.Apply(delta("1.00", "1", 1), second)
	assert.Equal(t, second, snap.LastUpdated)
	assert.True(t, snap.TotalSales.Equal(decimal.RequireFromString("2.00")))
}
