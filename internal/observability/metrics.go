package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// measurement pipeline.
type Metrics struct {
	BatchesConsumed prometheus.Counter
	BatchesProduced prometheus.Counter
	TransformErrors prometheus.Counter
	PipelineRunning prometheus.Gauge

	// Batch processing metrics.
	BatchSize               prometheus.Histogram
	BatchProcessingDuration prometheus.Histogram

	// Data-quality metrics.
	RowsProcessed  prometheus.Counter
	CellsImputed   prometheus.Counter
	OutliersCapped prometheus.Counter
	CleaningSkips  prometheus.Counter

	// Alerting and prediction metrics.
	AlertsGenerated *prometheus.CounterVec // labels: type={air,water}, severity={low,medium,high,critical}
	ActiveAlerts    prometheus.Gauge
	Predictions     prometheus.Counter
	PredictionSkips prometheus.Counter

	// Station locator metrics.
	LocatorRequests *prometheus.CounterVec // labels: outcome={success,error,empty}
	LocatorCache    *prometheus.CounterVec // labels: result={hit,miss}
	LocatorEnabled  prometheus.Gauge
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		BatchesConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "enviro_etl",
			Name:      "batches_consumed_total",
			Help:      "Total measurement batches read from the source topic.",
		}),
		BatchesProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "enviro_etl",
			Name:      "batches_produced_total",
			Help:      "Total processed batches written to the sink topic.",
		}),
		TransformErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "enviro_etl",
			Name:      "transform_errors_total",
			Help:      "Total transformation failures.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "enviro_etl",
			Name:      "pipeline_running",
			Help:      "1 when the pipeline is active, 0 when shut down.",
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "enviro_etl",
			Name:      "batch_size",
			Help:      "Number of messages per batch extracted from Kafka.",
			Buckets:   []float64{1, 5, 10, 20, 30, 40, 50, 75, 100},
		}),
		BatchProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "enviro_etl",
			Name:      "batch_processing_duration_seconds",
			Help:      "Duration of a complete batch extract-transform-load cycle.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}),
		RowsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "enviro_etl",
			Name:      "rows_processed_total",
			Help:      "Total measurement rows flowing through the cleaner.",
		}),
		CellsImputed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "enviro_etl",
			Name:      "cells_imputed_total",
			Help:      "Total null numeric cells replaced by the column mean.",
		}),
		OutliersCapped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "enviro_etl",
			Name:      "outliers_capped_total",
			Help:      "Total numeric cells clipped to three standard deviations.",
		}),
		CleaningSkips: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "enviro_etl",
			Name:      "cleaning_skips_total",
			Help:      "Batches processed with their original data after a cleaning failure.",
		}),
		AlertsGenerated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "enviro_etl",
			Name:      "alerts_generated_total",
			Help:      "Threshold alerts emitted by type and severity.",
		}, []string{"type", "severity"}),
		ActiveAlerts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "enviro_etl",
			Name:      "active_alerts",
			Help:      "Alerts currently inside the 24h retention window.",
		}),
		Predictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "enviro_etl",
			Name:      "predictions_total",
			Help:      "Index predictions attached to processed batches.",
		}),
		PredictionSkips: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "enviro_etl",
			Name:      "prediction_skips_total",
			Help:      "Batches where prediction was skipped (model not ready or features missing).",
		}),
		LocatorRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "enviro_etl",
			Name:      "locator_requests_total",
			Help:      "Station location lookups by outcome.",
		}, []string{"outcome"}),
		LocatorCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "enviro_etl",
			Name:      "locator_cache_total",
			Help:      "Station locator cache lookups by result.",
		}, []string{"result"}),
		LocatorEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "enviro_etl",
			Name:      "locator_enabled",
			Help:      "1 when station location enrichment is enabled, 0 otherwise.",
		}),
	}

	prometheus.MustRegister(
		m.BatchesConsumed,
		m.BatchesProduced,
		m.TransformErrors,
		m.PipelineRunning,
		m.BatchSize,
		m.BatchProcessingDuration,
		m.RowsProcessed,
		m.CellsImputed,
		m.OutliersCapped,
		m.CleaningSkips,
		m.AlertsGenerated,
		m.ActiveAlerts,
		m.Predictions,
		m.PredictionSkips,
		m.LocatorRequests,
		m.LocatorCache,
		m.LocatorEnabled,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		BatchesConsumed:         prometheus.NewCounter(prometheus.CounterOpts{Namespace: "enviro_etl", Name: "batches_consumed_total"}),
		BatchesProduced:         prometheus.NewCounter(prometheus.CounterOpts{Namespace: "enviro_etl", Name: "batches_produced_total"}),
		TransformErrors:         prometheus.NewCounter(prometheus.CounterOpts{Namespace: "enviro_etl", Name: "transform_errors_total"}),
		PipelineRunning:         prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "enviro_etl", Name: "pipeline_running"}),
		BatchSize:               prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "enviro_etl", Name: "batch_size"}),
		BatchProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "enviro_etl", Name: "batch_processing_duration_seconds"}),
		RowsProcessed:           prometheus.NewCounter(prometheus.CounterOpts{Namespace: "enviro_etl", Name: "rows_processed_total"}),
		CellsImputed:            prometheus.NewCounter(prometheus.CounterOpts{Namespace: "enviro_etl", Name: "cells_imputed_total"}),
		OutliersCapped:          prometheus.NewCounter(prometheus.CounterOpts{Namespace: "enviro_etl", Name: "outliers_capped_total"}),
		CleaningSkips:           prometheus.NewCounter(prometheus.CounterOpts{Namespace: "enviro_etl", Name: "cleaning_skips_total"}),
		AlertsGenerated:         prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "enviro_etl", Name: "alerts_generated_total"}, []string{"type", "severity"}),
		ActiveAlerts:            prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "enviro_etl", Name: "active_alerts"}),
		Predictions:             prometheus.NewCounter(prometheus.CounterOpts{Namespace: "enviro_etl", Name: "predictions_total"}),
		PredictionSkips:         prometheus.NewCounter(prometheus.CounterOpts{Namespace: "enviro_etl", Name: "prediction_skips_total"}),
		LocatorRequests:         prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "enviro_etl", Name: "locator_requests_total"}, []string{"outcome"}),
		LocatorCache:            prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "enviro_etl", Name: "locator_cache_total"}, []string{"result"}),
		LocatorEnabled:          prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "enviro_etl", Name: "locator_enabled"}),
	}
}
