package alerting

import (
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/couchcryptid/enviro-quality-etl/internal/dataset"
)

// Evaluator scans processed datasets against the static threshold tables.
// Every alert it emits is also recorded in its store as a side effect, so the
// active set reflects all violations seen since the retention window opened.
type Evaluator struct {
	store  *Store
	logger *slog.Logger
}

// NewEvaluator creates an evaluator recording into the given store.
func NewEvaluator(store *Store, logger *slog.Logger) *Evaluator {
	return &Evaluator{store: store, logger: logger}
}

// Store exposes the active-alert store for read-side consumers.
func (e *Evaluator) Store() *Store { return e.store }

// CheckAirQuality emits one alert per row per air parameter whose value
// strictly exceeds its upper bound. Severity follows the exceedance ratio
// value/threshold.
func (e *Evaluator) CheckAirQuality(ds *dataset.Dataset) []Alert {
	if ds == nil || ds.NumRows() == 0 {
		return nil
	}

	var alerts []Alert
	for _, th := range airThresholds {
		col := ds.Column(th.parameter)
		if col == nil || col.Kind() != dataset.KindFloat {
			continue
		}
		for i := 0; i < col.Len(); i++ {
			value, ok := col.Float(i)
			if !ok || value <= th.limit {
				continue
			}
			alert := e.store.record(Alert{
				Type:      TypeAir,
				Parameter: th.parameter,
				Value:     value,
				Threshold: th.limit,
				Bound:     BoundUpper,
				Location:  rowLocation(ds, i),
				Timestamp: rowTimestamp(ds, i, e.store.clock.Now()),
				Severity:  severityFromRatio(value / th.limit),
				Message:   airMessage(th.parameter, value, th.limit),
			})
			alerts = append(alerts, alert)
		}
	}

	if len(alerts) > 0 {
		e.logger.Info("generated air quality alerts", "count", len(alerts))
	}
	return alerts
}

// CheckWaterQuality emits one alert per row per water parameter whose value
// falls outside its acceptable range, tagged with the violated bound.
// Below-minimum severity uses min/value (a zero reading is critical);
// above-maximum uses value/max.
func (e *Evaluator) CheckWaterQuality(ds *dataset.Dataset) []Alert {
	if ds == nil || ds.NumRows() == 0 {
		return nil
	}

	var alerts []Alert
	for _, r := range waterRanges {
		col := ds.Column(r.parameter)
		if col == nil || col.Kind() != dataset.KindFloat {
			continue
		}
		for i := 0; i < col.Len(); i++ {
			value, ok := col.Float(i)
			if !ok || (value >= r.min && value <= r.max) {
				continue
			}

			bound := BoundMaximum
			threshold := r.max
			ratio := value / r.max
			if value < r.min {
				bound = BoundMinimum
				threshold = r.min
				if value > 0 {
					ratio = r.min / value
				} else {
					ratio = math.Inf(1)
				}
			}

			alert := e.store.record(Alert{
				Type:      TypeWater,
				Parameter: r.parameter,
				Value:     value,
				Threshold: threshold,
				Bound:     bound,
				Location:  rowLocation(ds, i),
				Timestamp: rowTimestamp(ds, i, e.store.clock.Now()),
				Severity:  severityFromRatio(ratio),
				Message:   waterMessage(r.parameter, value, r.min, r.max),
			})
			alerts = append(alerts, alert)
		}
	}

	if len(alerts) > 0 {
		e.logger.Info("generated water quality alerts", "count", len(alerts))
	}
	return alerts
}

// rowLocation reads the row's location column, defaulting to "Unknown" the
// way the upstream feeds do for unattributed stations.
func rowLocation(ds *dataset.Dataset, i int) string {
	if col := ds.Column("location"); col != nil {
		if s, ok := col.String(i); ok && s != "" {
			return s
		}
	}
	return "Unknown"
}

// rowTimestamp prefers the row's own timestamp, then any parsed date column,
// then the evaluation time.
func rowTimestamp(ds *dataset.Dataset, i int, fallback time.Time) time.Time {
	if col := ds.Column("timestamp"); col != nil {
		if t, ok := col.Time(i); ok {
			return t
		}
	}
	for _, col := range ds.Columns() {
		if col.Kind() != dataset.KindTime || !strings.Contains(strings.ToLower(col.Name()), "date") {
			continue
		}
		if t, ok := col.Time(i); ok {
			return t
		}
	}
	return fallback
}
