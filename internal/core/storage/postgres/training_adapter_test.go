package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/retailpulse-lab/retailpulse/internal/core/training"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func trainingBufferColumns() []string {
	return []string{
		"seq", "event_id", "store_id", "product_family", "occurred_at",
		"quantity", "unit_price", "on_promotion", "oil_price", "is_holiday",
	}
}

func TestTrainingAdapter_SnapshotReturnsRowsAndMaxSeq(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	adapter := NewTrainingAdapter(db)
	date := time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(querySnapshotBuffer)).
		WillReturnRows(sqlmock.NewRows(trainingBufferColumns()).
			AddRow(int64(7), "evt-1", 25, "GROCERY", date, "10.000000", "2.000000", true, "71.300000", false).
			AddRow(int64(9), "evt-2", 3, "BEVERAGES", date, "1.000000", "5.500000", false, "71.300000", true))

	rows, maxSeq, err := adapter.Snapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, int64(9), maxSeq)
	require.Equal(t, "evt-1", rows[0].EventID)
	require.Equal(t, "20", rows[0].Sales.String())
	require.Equal(t, "5.5", rows[1].Sales.String())
	require.True(t, rows[1].IsHoliday)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTrainingAdapter_SnapshotEmptyBuffer(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	adapter := NewTrainingAdapter(db)

	mock.ExpectQuery(regexp.QuoteMeta(querySnapshotBuffer)).
		WillReturnRows(sqlmock.NewRows(trainingBufferColumns()))

	rows, maxSeq, err := adapter.Snapshot(context.Background())
	require.NoError(t, err)
	require.Empty(t, rows)
	require.Equal(t, int64(0), maxSeq)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTrainingAdapter_ClearBoundsBySeq(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	adapter := NewTrainingAdapter(db)

	mock.ExpectExec(regexp.QuoteMeta(queryClearBuffer)).
		WithArgs(int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 2))

	require.NoError(t, adapter.Clear(context.Background(), 9))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTrainingAdapter_MergeAndClearBufferIsOneTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	adapter := NewTrainingAdapter(db)
	date := time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)

	row := training.Row{
		EventID:       "evt-1",
		StoreID:       25,
		ProductFamily: "GROCERY",
		Date:          date,
		Quantity:      decimal.NewFromInt(10),
		UnitPrice:     decimal.RequireFromString("2.00"),
		OnPromotion:   true,
		OilPrice:      decimal.RequireFromString("71.30"),
		IsHoliday:     false,
	}

	mock.ExpectBegin()
	mock.ExpectPrepare(regexp.QuoteMeta(queryMergeHistoryRow)).
		ExpectExec().
		WithArgs(
			row.EventID, row.StoreID, row.ProductFamily, row.Date,
			row.Quantity, row.UnitPrice, row.OnPromotion,
			row.OilPrice, row.IsHoliday, sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta(queryClearBuffer)).
		WithArgs(int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err = adapter.MergeAndClearBuffer(context.Background(), []training.Row{row}, 9)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTrainingAdapter_MergeIgnoresDuplicateHistoryRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	adapter := NewTrainingAdapter(db)
	date := time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)

	row := training.Row{
		EventID:       "evt-dup",
		StoreID:       1,
		ProductFamily: "DAIRY",
		Date:          date,
		Quantity:      decimal.NewFromInt(1),
		UnitPrice:     decimal.NewFromInt(3),
		OilPrice:      decimal.RequireFromString("70.00"),
	}

	mock.ExpectBegin()
	mock.ExpectPrepare(regexp.QuoteMeta(queryMergeHistoryRow)).
		ExpectExec().
		WithArgs(
			row.EventID, row.StoreID, row.ProductFamily, row.Date,
			row.Quantity, row.UnitPrice, row.OnPromotion,
			row.OilPrice, row.IsHoliday, sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(queryClearBuffer)).
		WithArgs(int64(4)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err = adapter.MergeAndClearBuffer(context.Background(), []training.Row{row}, 4)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTrainingAdapter_LoadHistoryChronological(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	adapter := NewTrainingAdapter(db)
	d1 := time.Date(2026, 8, 14, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)

	columns := []string{
		"event_id", "store_id", "product_family", "occurred_at",
		"quantity", "unit_price", "on_promotion", "oil_price", "is_holiday",
	}
	mock.ExpectQuery(regexp.QuoteMeta(queryLoadHistory)).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("evt-1", 25, "GROCERY", d1, "2.000000", "4.000000", false, "70.000000", false).
			AddRow("evt-2", 25, "GROCERY", d2, "3.000000", "4.000000", true, "71.000000", false))

	rows, err := adapter.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "8", rows[0].Sales.String())
	require.Equal(t, "12", rows[1].Sales.String())
	require.True(t, rows[0].Date.Before(rows[1].Date))
	require.NoError(t, mock.ExpectationsWereMet())
}
