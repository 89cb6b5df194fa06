package postgres

import (
	"database/sql"
	"fmt"

	v1 "github.com/retailpulse-lab/retailpulse/internal/api/v1"
	"github.com/retailpulse-lab/retailpulse/internal/core/training"
	"github.com/shopspring/decimal"
)

// scanEventRow scans one sale_events row in queryReadRange column order.
func scanEventRow(rows *sql.Rows) (*v1.SaleEvent, error) {
	var (
		event        v1.SaleEvent
		quantityStr  string
		unitPriceStr string
	)

	if err := rows.Scan(
		&event.IngestSeq,
		&event.EventID,
		&event.StoreID,
		&event.ProductFamily,
		&event.OccurredAt,
		&quantityStr,
		&unitPriceStr,
		&event.OnPromotion,
		&event.IngestedAt,
	); err != nil {
		return nil, fmt.Errorf("failed to scan event row: %w", err)
	}

	quantity, err := decimal.NewFromString(quantityStr)
	if err != nil {
		return nil, fmt.Errorf("parse quantity %q: %w", quantityStr, err)
	}
	unitPrice, err := decimal.NewFromString(unitPriceStr)
	if err != nil {
		return nil, fmt.Errorf("parse unit_price %q: %w", unitPriceStr, err)
	}

	event.Quantity = quantity
	event.UnitPrice = unitPrice
	return &event, nil
}

// scanTrainingRow scans one training row. withSeq selects the
// training_buffer column order (leading seq) versus training_history.
func scanTrainingRow(rows *sql.Rows, withSeq bool) (training.Row, error) {
	var (
		row          training.Row
		quantityStr  string
		unitPriceStr string
		oilPriceStr  string
	)

	dest := []interface{}{
		&row.EventID,
		&row.StoreID,
		&row.ProductFamily,
		&row.Date,
		&quantityStr,
		&unitPriceStr,
		&row.OnPromotion,
		&oilPriceStr,
		&row.IsHoliday,
	}
	if withSeq {
		dest = append([]interface{}{&row.Seq}, dest...)
	}

	if err := rows.Scan(dest...); err != nil {
		return training.Row{}, fmt.Errorf("failed to scan training row: %w", err)
	}

	quantity, err := decimal.NewFromString(quantityStr)
	if err != nil {
		return training.Row{}, fmt.Errorf("parse quantity %q: %w", quantityStr, err)
	}
	unitPrice, err := decimal.NewFromString(unitPriceStr)
	if err != nil {
		return training.Row{}, fmt.Errorf("parse unit_price %q: %w", unitPriceStr, err)
	}
	oilPrice, err := decimal.NewFromString(oilPriceStr)
	if err != nil {
		return training.Row{}, fmt.Errorf("parse oil_price %q: %w", oilPriceStr, err)
	}

	row.Quantity = quantity
	row.UnitPrice = unitPrice
	row.Sales = quantity.Mul(unitPrice)
	row.OilPrice = oilPrice
	return row, nil
}
