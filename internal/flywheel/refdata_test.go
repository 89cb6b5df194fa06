package flywheel

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const oilCSV = `date,dcoilwtico
2026-08-10,70.50
2026-08-11,
2026-08-12,71.30
2026-08-15,69.80
`

func TestOilSeries_ForwardFillsGaps(t *testing.T) {
	series, err := LoadOilSeries(writeTempFile(t, "oil.csv", oilCSV))
	require.NoError(t, err)

	// Exact match.
	price, ok := series.OilPrice(time.Date(2026, 8, 12, 0, 0, 0, 0, time.UTC))
	require.True(t, ok)
	require.Equal(t, "71.3", price.String())

	// Missing cell on the 11th: carries the 10th forward.
	price, ok = series.OilPrice(time.Date(2026, 8, 11, 0, 0, 0, 0, time.UTC))
	require.True(t, ok)
	require.Equal(t, "70.5", price.String())

	// Weekend gap: the 13th/14th carry the 12th.
	price, ok = series.OilPrice(time.Date(2026, 8, 14, 0, 0, 0, 0, time.UTC))
	require.True(t, ok)
	require.Equal(t, "71.3", price.String())
}

func TestOilSeries_HeadBackfill(t *testing.T) {
	series, err := LoadOilSeries(writeTempFile(t, "oil.csv", oilCSV))
	require.NoError(t, err)

	price, ok := series.OilPrice(time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC))
	require.True(t, ok)
	require.Equal(t, "70.5", price.String())
}

const holidayYAML = `
- date: "2026-12-25"
  name: "Navidad"
- date: "2026-01-01"
  name: "Primer dia del ano"
- date: "2026-08-10"
  name: "Primer Grito de Independencia"
  transferred: true
`

func TestHolidayCalendar_ExcludesTransferred(t *testing.T) {
	cal, err := LoadHolidayCalendar(writeTempFile(t, "holidays.yaml", holidayYAML))
	require.NoError(t, err)

	require.True(t, cal.IsHoliday(time.Date(2026, 12, 25, 10, 0, 0, 0, time.UTC)))
	require.True(t, cal.IsHoliday(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)))
	// Transferred holidays were celebrated another day.
	require.False(t, cal.IsHoliday(time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)))
	require.False(t, cal.IsHoliday(time.Date(2026, 7, 4, 0, 0, 0, 0, time.UTC)))
}

func TestLoadRefData_LoadsBothSeries(t *testing.T) {
	oilPath := writeTempFile(t, "oil.csv", oilCSV)
	holidayPath := writeTempFile(t, "holidays.yaml", holidayYAML)

	ref, err := LoadRefData(context.Background(), oilPath, holidayPath)
	require.NoError(t, err)

	price, ok := ref.OilPrice(time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC))
	require.True(t, ok)
	require.Equal(t, "69.8", price.String())
	require.True(t, ref.IsHoliday(time.Date(2026, 12, 25, 0, 0, 0, 0, time.UTC)))
}

func TestLoadRefData_MissingFileFails(t *testing.T) {
	holidayPath := writeTempFile(t, "holidays.yaml", holidayYAML)

	_, err := LoadRefData(context.Background(), "/nonexistent/oil.csv", holidayPath)
	require.Error(t, err)
}
