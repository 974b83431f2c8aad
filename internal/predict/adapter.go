package predict

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/couchcryptid/enviro-quality-etl/internal/dataset"
)

// ErrModelNotReady marks a prediction requested before a model and its
// feature list exist. This is caller misuse, not data sparsity, so it is
// surfaced as an explicit error rather than an empty result.
var ErrModelNotReady = errors.New("prediction model not ready")

// MissingFeaturesError names the feature columns a dataset lacks.
type MissingFeaturesError struct {
	Features []string
}

func (e *MissingFeaturesError) Error() string {
	return fmt.Sprintf("missing feature columns: %s", strings.Join(e.Features, ", "))
}

// Adapter wraps a fitted estimator plus the ordered feature columns it was
// trained on, validating dataset schema before delegating.
type Adapter struct {
	model    FittedModel
	features []string
	logger   *slog.Logger
}

// NewAdapter creates an adapter. The model may be nil when no model has been
// trained yet; Predict then fails with ErrModelNotReady.
func NewAdapter(model FittedModel, features []string, logger *slog.Logger) *Adapter {
	return &Adapter{model: model, features: features, logger: logger}
}

// NewAdapterFromStored wires a stored model into an adapter.
func NewAdapterFromStored(stored *StoredModel, logger *slog.Logger) *Adapter {
	if stored == nil {
		return NewAdapter(nil, nil, logger)
	}
	return NewAdapter(stored.Model, stored.Features, logger)
}

// Features returns the adapter's feature column order.
func (a *Adapter) Features() []string { return a.features }

// Ready reports whether a prediction can be attempted.
func (a *Adapter) Ready() bool { return a.model != nil && len(a.features) > 0 }

// Predict produces one value per dataset row, reading exactly the stored
// feature columns in training order. Extra columns are ignored. Null feature
// cells read as zero; a cleaned dataset has none.
//
// Fails with ErrModelNotReady before a model exists and with
// *MissingFeaturesError naming absent columns, so callers can tell misuse
// apart from "no predictions needed".
func (a *Adapter) Predict(ds *dataset.Dataset) ([]float64, error) {
	if !a.Ready() {
		return nil, ErrModelNotReady
	}

	var missing []string
	cols := make([]*dataset.Column, 0, len(a.features))
	for _, f := range a.features {
		col := ds.Column(f)
		if col == nil || col.Kind() != dataset.KindFloat {
			missing = append(missing, f)
			continue
		}
		cols = append(cols, col)
	}
	if len(missing) > 0 {
		a.logger.Error("prediction input missing features", "missing", missing)
		return nil, &MissingFeaturesError{Features: missing}
	}

	rows := make([][]float64, ds.NumRows())
	for i := range rows {
		row := make([]float64, len(cols))
		for j, col := range cols {
			if v, ok := col.Float(i); ok {
				row[j] = v
			}
		}
		rows[i] = row
	}

	preds, err := a.model.Predict(rows)
	if err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}
	return preds, nil
}
