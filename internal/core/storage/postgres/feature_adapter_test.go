package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/retailpulse-lab/retailpulse/internal/core/feature"
	"github.com/retailpulse-lab/retailpulse/internal/core/storage"
	"github.com/retailpulse-lab/retailpulse/internal/core/training"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestFeatureAdapter_GetReturnsSnapshot(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	adapter := NewFeatureAdapter(db, 100, time.Hour)
	updated := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(queryGetSnapshot)).
		WithArgs("daily", "2026-08-15").
		WillReturnRows(sqlmock.NewRows([]string{
			"total_sales", "total_units", "transaction_count", "last_updated",
		}).AddRow("123.450000", "10.000000", int64(4), updated))

	snap, found, err := adapter.Get(context.Background(), feature.BucketDaily, "2026-08-15")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "123.45", snap.TotalSales.String())
	require.Equal(t, "10", snap.TotalUnits.String())
	require.Equal(t, int64(4), snap.TransactionCount)
	require.Equal(t, updated, snap.LastUpdated)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFeatureAdapter_GetMissingBucket(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	adapter := NewFeatureAdapter(db, 100, time.Hour)

	mock.ExpectQuery(regexp.QuoteMeta(queryGetSnapshot)).
		WithArgs("monthly", "2026-08").
		WillReturnRows(sqlmock.NewRows([]string{
			"total_sales", "total_units", "transaction_count", "last_updated",
		}))

	snap, found, err := adapter.Get(context.Background(), feature.BucketMonthly, "2026-08")
	require.NoError(t, err)
	require.False(t, found)
	require.True(t, snap.TotalSales.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFeatureAdapter_FilterSeen(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	adapter := NewFeatureAdapter(db, 100, time.Hour)

	ids := []string{"evt-1", "evt-2", "evt-3"}
	mock.ExpectQuery(regexp.QuoteMeta(queryFilterSeen)).
		WithArgs(pq.Array(ids)).
		WillReturnRows(sqlmock.NewRows([]string{"event_id"}).
			AddRow("evt-1").
			AddRow("evt-3"))

	seen, err := adapter.FilterSeen(context.Background(), ids)
	require.NoError(t, err)
	require.True(t, seen["evt-1"])
	require.False(t, seen["evt-2"])
	require.True(t, seen["evt-3"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFeatureAdapter_FilterSeenEmptyInput(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	adapter := NewFeatureAdapter(db, 100, time.Hour)

	seen, err := adapter.FilterSeen(context.Background(), nil)
	require.NoError(t, err)
	require.Empty(t, seen)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFeatureAdapter_CommitSkipsStaleCursor(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	adapter := NewFeatureAdapter(db, 100, time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(querySelectCursorForUpdate)).
		WithArgs("aggregator").
		WillReturnRows(sqlmock.NewRows([]string{"cursor"}).AddRow(int64(100)))
	mock.ExpectRollback()

	err = adapter.Commit(context.Background(), "aggregator", storage.Flush{Cursor: 100})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFeatureAdapter_CommitAppliesFlushAtomically(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	adapter := NewFeatureAdapter(db, 50, time.Hour)

	key := feature.Key{Kind: feature.BucketDaily, BucketKey: "2026-08-15"}
	delta := feature.Delta{
		TotalSales:       decimal.RequireFromString("20.00"),
		TotalUnits:       decimal.NewFromInt(10),
		TransactionCount: 1,
	}
	row := training.Row{
		EventID:       "evt-1",
		StoreID:       25,
		ProductFamily: "GROCERY",
		Date:          time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC),
		Quantity:      decimal.NewFromInt(10),
		UnitPrice:     decimal.RequireFromString("2.00"),
		OnPromotion:   true,
		OilPrice:      decimal.RequireFromString("71.30"),
		IsHoliday:     false,
	}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(querySelectCursorForUpdate)).
		WithArgs("aggregator").
		WillReturnRows(sqlmock.NewRows([]string{"cursor"}).AddRow(int64(10)))

	mock.ExpectPrepare(regexp.QuoteMeta(queryMergeSnapshot)).
		ExpectExec().
		WithArgs("daily", "2026-08-15", delta.TotalSales, delta.TotalUnits, int64(1), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	mock.ExpectPrepare(regexp.QuoteMeta(queryAppendBufferRow)).
		ExpectExec().
		WithArgs(
			row.EventID, row.StoreID, row.ProductFamily, row.Date,
			row.Quantity, row.UnitPrice, row.OnPromotion,
			row.OilPrice, row.IsHoliday, sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta(queryEvictBufferOverflow)).
		WithArgs(50).
		WillReturnResult(sqlmock.NewResult(0, 0))

	mock.ExpectPrepare(regexp.QuoteMeta(queryInsertSeen)).
		ExpectExec().
		WithArgs("evt-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta(queryPurgeSeen)).
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	mock.ExpectExec(regexp.QuoteMeta(queryUpdateCursor)).
		WithArgs(int64(11), sqlmock.AnyArg(), "aggregator").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err = adapter.Commit(context.Background(), "aggregator", storage.Flush{
		Deltas:       map[feature.Key]feature.Delta{key: delta},
		BufferRows:   []training.Row{row},
		SeenEventIDs: []string{"evt-1"},
		Cursor:       11,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFeatureAdapter_CommitInitializesMissingCursorRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	adapter := NewFeatureAdapter(db, 50, time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(querySelectCursorForUpdate)).
		WithArgs("aggregator").
		WillReturnRows(sqlmock.NewRows([]string{"cursor"}))
	mock.ExpectExec(regexp.QuoteMeta(queryInitCursorRow)).
		WithArgs("aggregator", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(querySelectCursorForUpdate)).
		WithArgs("aggregator").
		WillReturnRows(sqlmock.NewRows([]string{"cursor"}).AddRow(int64(0)))

	mock.ExpectPrepare(regexp.QuoteMeta(queryMergeSnapshot))
	mock.ExpectExec(regexp.QuoteMeta(queryPurgeSeen)).
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(queryUpdateCursor)).
		WithArgs(int64(5), sqlmock.AnyArg(), "aggregator").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err = adapter.Commit(context.Background(), "aggregator", storage.Flush{Cursor: 5})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
