package flywheel

import (
	"math"
	"sort"

	"github.com/retailpulse-lab/retailpulse/internal/core/training"
)

// BuildFamilyEncoding assigns stable integer labels to product families,
// alphabetical so retraining on the same vocabulary yields the same
// encoding. The encoding is persisted with the model artifact.
func BuildFamilyEncoding(rows []training.Row) map[string]int {
	families := make(map[string]bool)
	for _, row := range rows {
		families[row.ProductFamily] = true
	}

	names := make([]string, 0, len(families))
	for name := range families {
		names = append(names, name)
	}
	sort.Strings(names)

	encoding := make(map[string]int, len(names))
	for i, name := range names {
		encoding[name] = i
	}
	return encoding
}

// FeatureVector turns one training row into the model input. Calendar
// fields are sin/cos encoded so Sunday sits next to Monday and December
// next to January.
func FeatureVector(row training.Row, familyEncoding map[string]int) []float64 {
	dow := float64(row.Date.Weekday())
	month := float64(row.Date.Month())

	promo := 0.0
	if row.OnPromotion {
		promo = 1.0
	}
	holiday := 0.0
	if row.IsHoliday {
		holiday = 1.0
	}
	oil, _ := row.OilPrice.Float64()

	return []float64{
		float64(row.StoreID),
		float64(familyEncoding[row.ProductFamily]),
		promo,
		oil,
		holiday,
		math.Sin(2 * math.Pi * dow / 7),
		math.Cos(2 * math.Pi * dow / 7),
		math.Sin(2 * math.Pi * month / 12),
		math.Cos(2 * math.Pi * month / 12),
	}
}

// BuildMatrix converts rows into feature vectors and sales targets.
func BuildMatrix(rows []training.Row, familyEncoding map[string]int) ([][]float64, []float64) {
	features := make([][]float64, len(rows))
	targets := make([]float64, len(rows))
	for i, row := range rows {
		features[i] = FeatureVector(row, familyEncoding)
		targets[i], _ = row.Sales.Float64()
	}
	return features, targets
}

// splitHoldout splits chronologically ordered data into train and
// holdout, the most recent fraction held out.
func splitHoldout(features [][]float64, targets []float64, fraction float64) (trainX, holdX [][]float64, trainY, holdY []float64) {
	n := len(features)
	holdSize := int(math.Round(float64(n) * fraction))
	if holdSize < 1 {
		holdSize = 1
	}
	if holdSize >= n {
		holdSize = n - 1
	}
	cut := n - holdSize
	return features[:cut], features[cut:], targets[:cut], targets[cut:]
}
