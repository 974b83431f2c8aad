package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/couchcryptid/enviro-quality-etl/internal/dataset"
)

// BatchKind identifies which monitoring network a batch came from and which
// index pipeline applies to it.
type BatchKind string

const (
	KindAir     BatchKind = "air"
	KindWater   BatchKind = "water"
	KindWeather BatchKind = "weather"
)

// Valid reports whether the kind is one the pipeline knows how to process.
func (k BatchKind) Valid() bool {
	switch k {
	case KindAir, KindWater, KindWeather:
		return true
	}
	return false
}

// RawBatchPayload is the flat JSON structure produced by the collector:
// station metadata plus one map per reading.
type RawBatchPayload struct {
	Kind     string           `json:"kind"`
	Location string           `json:"location"`
	Station  string           `json:"station"`
	Records  []map[string]any `json:"records"`
}

// RawEvent represents an unprocessed message from the source topic.
type RawEvent struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// Geo represents a WGS-84 latitude/longitude coordinate pair.
type Geo struct {
	Lat float64 `json:"lat,omitempty"`
	Lon float64 `json:"lon,omitempty"`
}

// MeasurementBatch is the domain-rich representation after parsing: station
// metadata plus the readings as a tabular dataset.
type MeasurementBatch struct {
	Kind     BatchKind
	Location string
	Station  string
	Data     *dataset.Dataset

	ReceivedAt time.Time
	RawPayload []byte
}

// ProcessedBatch is the cleaned, index-augmented result destined for the sink
// topic. Alerts travel separately.
type ProcessedBatch struct {
	Kind     BatchKind        `json:"kind"`
	Location string           `json:"location,omitempty"`
	Station  string           `json:"station,omitempty"`
	Geo      Geo              `json:"geo,omitempty"`
	GeoName  string           `json:"geo_name,omitempty"`
	Records  []map[string]any `json:"records"`
	RowCount int              `json:"row_count"`

	ProcessedAt time.Time `json:"processed_at"`
}

// OutputEvent is the serialized form destined for the sink topic.
type OutputEvent struct {
	Key     []byte
	Value   []byte
	Headers map[string]string
}

// ParseRawEvent deserializes a RawEvent's value into a MeasurementBatch.
// It expects the batch JSON produced by the collector service.
func ParseRawEvent(raw RawEvent) (MeasurementBatch, error) {
	var payload RawBatchPayload
	if err := json.Unmarshal(raw.Value, &payload); err != nil {
		return MeasurementBatch{}, fmt.Errorf("parse raw batch: %w", err)
	}

	kind := BatchKind(payload.Kind)
	if !kind.Valid() {
		return MeasurementBatch{}, fmt.Errorf("parse raw batch: unknown kind %q", payload.Kind)
	}

	return MeasurementBatch{
		Kind:       kind,
		Location:   payload.Location,
		Station:    payload.Station,
		Data:       dataset.FromRecords(payload.Records),
		ReceivedAt: raw.Timestamp,
		RawPayload: raw.Value,
	}, nil
}

// NewProcessedBatch flattens a processed dataset back into the wire shape,
// stamping ProcessedAt from the package clock.
func NewProcessedBatch(batch MeasurementBatch, ds *dataset.Dataset) ProcessedBatch {
	return ProcessedBatch{
		Kind:        batch.Kind,
		Location:    batch.Location,
		Station:     batch.Station,
		Records:     ds.Records(),
		RowCount:    ds.NumRows(),
		ProcessedAt: clock.Now(),
	}
}
