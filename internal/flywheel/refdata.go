package flywheel

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

const dateLayout = "2006-01-02"

// OilSeries is the daily oil price series joined onto training rows.
// Lookups forward-fill gaps; dates before the first observation take
// the head value.
type OilSeries struct {
	dates  []time.Time
	prices []decimal.Decimal
}

// LoadOilSeries parses a CSV with a "date,dcoilwtico" header. Rows with
// an empty price cell are skipped; the forward-fill happens at lookup.
func LoadOilSeries(path string) (*OilSeries, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open oil series: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	if _, err := reader.Read(); err != nil {
		return nil, fmt.Errorf("read oil series header: %w", err)
	}

	type point struct {
		date  time.Time
		price decimal.Decimal
	}
	var points []point
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read oil series row: %w", err)
		}
		if len(record) < 2 || record[1] == "" {
			continue
		}
		date, err := time.Parse(dateLayout, record[0])
		if err != nil {
			return nil, fmt.Errorf("parse oil series date %q: %w", record[0], err)
		}
		price, err := decimal.NewFromString(record[1])
		if err != nil {
			return nil, fmt.Errorf("parse oil price %q: %w", record[1], err)
		}
		points = append(points, point{date: date, price: price})
	}

	sort.Slice(points, func(i, j int) bool { return points[i].date.Before(points[j].date) })

	series := &OilSeries{
		dates:  make([]time.Time, len(points)),
		prices: make([]decimal.Decimal, len(points)),
	}
	for i, p := range points {
		series.dates[i] = p.date
		series.prices[i] = p.price
	}

	slog.Info("[RefData] Loaded oil price series", "path", path, "observations", len(points))
	return series, nil
}

// OilPrice returns the forward-filled price for a date. ok is false only
// when the series is empty.
func (s *OilSeries) OilPrice(date time.Time) (decimal.Decimal, bool) {
	if len(s.dates) == 0 {
		return decimal.Decimal{}, false
	}

	day := date.UTC().Truncate(24 * time.Hour)
	// Last observation at or before day; head value for earlier dates.
	idx := sort.Search(len(s.dates), func(i int) bool { return s.dates[i].After(day) })
	if idx == 0 {
		return s.prices[0], true
	}
	return s.prices[idx-1], true
}

// holidayEntry is one row of the holiday calendar file.
type holidayEntry struct {
	Date        string `yaml:"date"`
	Name        string `yaml:"name"`
	Transferred bool   `yaml:"transferred"`
}

// HolidayCalendar flags dates that count as holidays. Transferred
// holidays were celebrated on another day and do not count.
type HolidayCalendar struct {
	days map[string]string
}

// LoadHolidayCalendar parses a YAML list of {date, name, transferred}.
func LoadHolidayCalendar(path string) (*HolidayCalendar, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open holiday calendar: %w", err)
	}

	var entries []holidayEntry
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse holiday calendar: %w", err)
	}

	cal := &HolidayCalendar{days: make(map[string]string, len(entries))}
	for _, entry := range entries {
		if entry.Transferred {
			continue
		}
		if _, err := time.Parse(dateLayout, entry.Date); err != nil {
			return nil, fmt.Errorf("parse holiday date %q: %w", entry.Date, err)
		}
		cal.days[entry.Date] = entry.Name
	}

	slog.Info("[RefData] Loaded holiday calendar", "path", path, "holidays", len(cal.days))
	return cal, nil
}

func (c *HolidayCalendar) IsHoliday(date time.Time) bool {
	_, ok := c.days[date.UTC().Format(dateLayout)]
	return ok
}

// RefData bundles the exogenous reference series. It satisfies the
// aggregator's Enricher interface.
type RefData struct {
	Oil      *OilSeries
	Holidays *HolidayCalendar
}

// LoadRefData loads both series concurrently.
func LoadRefData(ctx context.Context, oilPath, holidayPath string) (*RefData, error) {
	ref := &RefData{}

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		oil, err := LoadOilSeries(oilPath)
		if err != nil {
			return err
		}
		ref.Oil = oil
		return nil
	})
	g.Go(func() error {
		holidays, err := LoadHolidayCalendar(holidayPath)
		if err != nil {
			return err
		}
		ref.Holidays = holidays
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return ref, nil
}

func (r *RefData) OilPrice(date time.Time) (decimal.Decimal, bool) {
	return r.Oil.OilPrice(date)
}

func (r *RefData) IsHoliday(date time.Time) bool {
	return r.Holidays.IsHoliday(date)
}
