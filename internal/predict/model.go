// Package predict applies fitted regression models to processed measurement
// datasets and persists them through a model store.
package predict

import (
	"errors"
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"
)

// FittedModel is the contract a regression estimator must satisfy: one
// prediction per feature row. The adapter owns schema validation; the model
// only sees dense feature matrices in its training column order.
type FittedModel interface {
	Predict(rows [][]float64) ([]float64, error)
}

// LinearModel is an ordinary least-squares regression estimator. The JSON
// shape is what the model store persists.
type LinearModel struct {
	Weights   []float64 `json:"weights"`
	Intercept float64   `json:"intercept"`
}

// Predict returns intercept + weights·row for each row.
func (m *LinearModel) Predict(rows [][]float64) ([]float64, error) {
	out := make([]float64, len(rows))
	for i, row := range rows {
		if len(row) != len(m.Weights) {
			return nil, fmt.Errorf("predict: row %d has %d features, model expects %d", i, len(row), len(m.Weights))
		}
		y := m.Intercept
		for j, w := range m.Weights {
			y += w * row[j]
		}
		out[i] = y
	}
	return out, nil
}

// FitLinear solves the least-squares problem for the given feature rows and
// targets, with an implicit intercept column. The heavier estimators of the
// upstream modeling stack stay out of scope; a refit here is only for
// bootstrapping a model into the store.
func FitLinear(rows [][]float64, targets []float64) (*LinearModel, error) {
	n := len(rows)
	if n == 0 {
		return nil, errors.New("fit: no training rows")
	}
	if len(targets) != n {
		return nil, fmt.Errorf("fit: %d rows but %d targets", n, len(targets))
	}
	p := len(rows[0])
	if p == 0 {
		return nil, errors.New("fit: no feature columns")
	}
	if n < p+1 {
		return nil, fmt.Errorf("fit: %d rows cannot determine %d coefficients", n, p+1)
	}

	// Design matrix with a leading ones column for the intercept.
	a := mat.NewDense(n, p+1, nil)
	for i, row := range rows {
		if len(row) != p {
			return nil, fmt.Errorf("fit: row %d has %d features, expected %d", i, len(row), p)
		}
		a.Set(i, 0, 1)
		for j, v := range row {
			a.Set(i, j+1, v)
		}
	}
	b := mat.NewVecDense(n, targets)

	var qr mat.QR
	qr.Factorize(a)

	var coef mat.VecDense
	if err := qr.SolveVecTo(&coef, false, b); err != nil {
		return nil, fmt.Errorf("fit: solve least squares: %w", err)
	}

	weights := make([]float64, p)
	for j := 0; j < p; j++ {
		weights[j] = coef.AtVec(j + 1)
	}
	return &LinearModel{Weights: weights, Intercept: coef.AtVec(0)}, nil
}

// StoredModel is the persisted pairing of an estimator with the ordered
// feature columns it was trained on.
type StoredModel struct {
	Model     *LinearModel `json:"model"`
	Features  []string     `json:"features"`
	Target    string       `json:"target"`
	TrainedAt time.Time    `json:"trained_at"`
}
