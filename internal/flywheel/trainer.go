package flywheel

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/retailpulse-lab/retailpulse/internal/core/training"
	"github.com/retailpulse-lab/retailpulse/internal/model"
)

// Trainer fits a model on the full dataset and reports holdout metrics.
type Trainer interface {
	Train(ctx context.Context, rows []training.Row) (model.Candidate, error)
}

// LinearTrainer is the built-in baseline: linear regression on the
// engineered features, fit by gradient descent on standardized inputs,
// evaluated on a chronological holdout split.
type LinearTrainer struct {
	HoldoutFraction float64
	Epochs          int
	LearningRate    float64
}

func NewLinearTrainer(holdoutFraction float64) *LinearTrainer {
	return &LinearTrainer{
		HoldoutFraction: holdoutFraction,
		Epochs:          200,
		LearningRate:    0.05,
	}
}

// linearModel is the artifact payload: weights over standardized
// features plus the scaling parameters needed at inference time.
type linearModel struct {
	Weights []float64 `json:"weights"`
	Bias    float64   `json:"bias"`
	Means   []float64 `json:"means"`
	Stddevs []float64 `json:"stddevs"`
}

func (m linearModel) predict(x []float64) float64 {
	out := m.Bias
	for i, w := range m.Weights {
		out += w * (x[i] - m.Means[i]) / m.Stddevs[i]
	}
	return out
}

func (t *LinearTrainer) Train(ctx context.Context, rows []training.Row) (model.Candidate, error) {
	if len(rows) < 2 {
		return model.Candidate{}, fmt.Errorf("need at least 2 rows to train, got %d", len(rows))
	}

	training.SortChronological(rows)
	encoding := BuildFamilyEncoding(rows)
	features, targets := BuildMatrix(rows, encoding)
	trainX, holdX, trainY, holdY := splitHoldout(features, targets, t.HoldoutFraction)

	fitted, err := t.fit(ctx, trainX, trainY)
	if err != nil {
		return model.Candidate{}, err
	}

	mae, rmse := evaluate(fitted, holdX, holdY)
	payload, err := json.Marshal(fitted)
	if err != nil {
		return model.Candidate{}, fmt.Errorf("marshal model payload: %w", err)
	}

	return model.Candidate{
		Metrics:        model.Metrics{MAE: mae, RMSE: rmse},
		RowsTrained:    len(trainX),
		FamilyEncoding: encoding,
		Payload:        payload,
	}, nil
}

func (t *LinearTrainer) fit(ctx context.Context, features [][]float64, targets []float64) (linearModel, error) {
	dims := len(features[0])
	means, stddevs := standardization(features)

	m := linearModel{
		Weights: make([]float64, dims),
		Means:   means,
		Stddevs: stddevs,
	}

	n := float64(len(features))
	for epoch := 0; epoch < t.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return linearModel{}, err
		}

		gradW := make([]float64, dims)
		gradB := 0.0
		for i, x := range features {
			residual := m.predict(x) - targets[i]
			gradB += residual
			for d := 0; d < dims; d++ {
				gradW[d] += residual * (x[d] - means[d]) / stddevs[d]
			}
		}

		m.Bias -= t.LearningRate * gradB / n
		for d := 0; d < dims; d++ {
			m.Weights[d] -= t.LearningRate * gradW[d] / n
		}
	}
	return m, nil
}

func standardization(features [][]float64) (means, stddevs []float64) {
	dims := len(features[0])
	means = make([]float64, dims)
	stddevs = make([]float64, dims)
	n := float64(len(features))

	for _, x := range features {
		for d := 0; d < dims; d++ {
			means[d] += x[d]
		}
	}
	for d := 0; d < dims; d++ {
		means[d] /= n
	}

	for _, x := range features {
		for d := 0; d < dims; d++ {
			diff := x[d] - means[d]
			stddevs[d] += diff * diff
		}
	}
	for d := 0; d < dims; d++ {
		stddevs[d] = math.Sqrt(stddevs[d] / n)
		if stddevs[d] == 0 {
			stddevs[d] = 1
		}
	}
	return means, stddevs
}

func evaluate(m linearModel, features [][]float64, targets []float64) (mae, rmse float64) {
	if len(features) == 0 {
		return 0, 0
	}
	var absSum, sqSum float64
	for i, x := range features {
		err := m.predict(x) - targets[i]
		absSum += math.Abs(err)
		sqSum += err * err
	}
	n := float64(len(features))
	return absSum / n, math.Sqrt(sqSum / n)
}
