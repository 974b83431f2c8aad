package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/enviro-quality-etl/internal/alerting"
	"github.com/couchcryptid/enviro-quality-etl/internal/dataset"
	"github.com/couchcryptid/enviro-quality-etl/internal/domain"
	"github.com/couchcryptid/enviro-quality-etl/internal/predict"
)

// PredictedColumn is the name of the column holding model predictions.
const PredictedColumn = "aqi_predicted"

// EnviroTransformer implements Transformer: it cleans a raw batch, computes
// the composite index for its kind, evaluates alert thresholds, optionally
// attaches model predictions, and enriches the result with station
// coordinates.
type EnviroTransformer struct {
	evaluator *alerting.Evaluator
	predictor *predict.Adapter
	locator   domain.StationLocator
	logger    *slog.Logger
}

// NewTransformer creates an EnviroTransformer. Pass a nil predictor to
// disable predictions and a nil locator to disable location enrichment.
func NewTransformer(evaluator *alerting.Evaluator, predictor *predict.Adapter, locator domain.StationLocator, logger *slog.Logger) *EnviroTransformer {
	return &EnviroTransformer{
		evaluator: evaluator,
		predictor: predictor,
		locator:   locator,
		logger:    logger,
	}
}

func (t *EnviroTransformer) Transform(ctx context.Context, raw domain.RawEvent) (Result, error) {
	batch, err := domain.ParseRawEvent(raw)
	if err != nil {
		return Result{}, err
	}

	var res Result

	ds, report, err := domain.CleanDataset(batch.Data)
	if err != nil {
		// A batch that cannot be cleaned still flows through with its
		// original values rather than being dropped.
		t.logger.Warn("cleaning failed, processing original data",
			"kind", batch.Kind,
			"location", batch.Location,
			"error", err,
		)
		ds = batch.Data
		res.CleaningSkipped = true
	}
	res.Report = report
	res.Rows = ds.NumRows()

	switch batch.Kind {
	case domain.KindAir:
		ds = t.computeIndex(ds, batch, domain.ComputeAQI)
		res.Alerts = t.evaluator.CheckAirQuality(ds)
		ds = t.attachPredictions(ds, batch, &res)
	case domain.KindWater:
		ds = t.computeIndex(ds, batch, domain.ComputeWQI)
		res.Alerts = t.evaluator.CheckWaterQuality(ds)
	case domain.KindWeather:
		// Weather batches are cleaned and forwarded without an index.
	}

	processed := domain.NewProcessedBatch(batch, ds)
	processed = domain.EnrichWithLocation(ctx, processed, t.locator, t.logger)

	value, err := json.Marshal(processed)
	if err != nil {
		return Result{}, fmt.Errorf("serialize processed batch: %w", err)
	}

	res.Output = domain.OutputEvent{
		Key:     raw.Key,
		Value:   value,
		Headers: map[string]string{"kind": string(batch.Kind)},
	}
	return res, nil
}

// computeIndex applies the given index function, keeping the input dataset
// when a batch has none of the recognized parameters.
func (t *EnviroTransformer) computeIndex(ds *dataset.Dataset, batch domain.MeasurementBatch, compute func(*dataset.Dataset) (*dataset.Dataset, error)) *dataset.Dataset {
	out, err := compute(ds)
	if err != nil {
		t.logger.Warn("index computation skipped",
			"kind", batch.Kind,
			"location", batch.Location,
			"error", err,
		)
		return ds
	}
	return out
}

// attachPredictions adds the model's index predictions as a column when the
// predictor is ready and the dataset carries all model features. A batch
// missing features is forwarded without the column.
func (t *EnviroTransformer) attachPredictions(ds *dataset.Dataset, batch domain.MeasurementBatch, res *Result) *dataset.Dataset {
	if t.predictor == nil || !t.predictor.Ready() {
		return ds
	}

	preds, err := t.predictor.Predict(ds)
	if err != nil {
		var missing *predict.MissingFeaturesError
		if errors.As(err, &missing) || errors.Is(err, predict.ErrModelNotReady) {
			t.logger.Debug("prediction skipped",
				"kind", batch.Kind,
				"location", batch.Location,
				"error", err,
			)
		} else {
			t.logger.Warn("prediction failed",
				"kind", batch.Kind,
				"location", batch.Location,
				"error", err,
			)
		}
		res.PredictionSkipped = true
		return ds
	}

	out := ds.Copy()
	if err := out.AddFloatColumn(PredictedColumn, preds, nil); err != nil {
		t.logger.Warn("prediction column rejected", "error", err)
		res.PredictionSkipped = true
		return ds
	}
	res.Predictions = len(preds)
	return out
}
