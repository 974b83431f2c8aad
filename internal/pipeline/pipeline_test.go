package pipeline_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/couchcryptid/enviro-quality-etl/internal/alerting"
	"github.com/couchcryptid/enviro-quality-etl/internal/domain"
	"github.com/couchcryptid/enviro-quality-etl/internal/observability"
	"github.com/couchcryptid/enviro-quality-etl/internal/pipeline"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockExtractor struct {
	events []domain.RawEvent
	index  atomic.Int64
}

func (m *mockExtractor) ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawEvent, error) {
	if m.index.Add(1) > 1 {
		// block until context cancelled to simulate waiting for messages
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if len(m.events) > batchSize {
		return m.events[:batchSize], nil
	}
	return m.events, nil
}

type mockTransformer struct {
	err    error
	alerts []alerting.Alert
}

func (m *mockTransformer) Transform(_ context.Context, raw domain.RawEvent) (pipeline.Result, error) {
	if m.err != nil {
		return pipeline.Result{}, m.err
	}
	return pipeline.Result{
		Output: domain.OutputEvent{Key: raw.Key, Value: raw.Value},
		Alerts: m.alerts,
		Rows:   1,
	}, nil
}

type mockLoader struct {
	loaded []domain.OutputEvent
	err    error
}

func (m *mockLoader) LoadBatch(_ context.Context, events []domain.OutputEvent) error {
	if m.err != nil {
		return m.err
	}
	m.loaded = append(m.loaded, events...)
	return nil
}

type mockAlertPublisher struct {
	published []alerting.Alert
	err       error
}

func (m *mockAlertPublisher) PublishAlerts(_ context.Context, alerts []alerting.Alert) error {
	if m.err != nil {
		return m.err
	}
	m.published = append(m.published, alerts...)
	return nil
}

func newTestMetrics() *observability.Metrics {
	// Use a fresh registry to avoid "already registered" panics in tests.
	return observability.NewMetricsForTesting()
}

// --- pipeline tests ---

func TestPipeline_Run_HappyPath(t *testing.T) {
	raw := makeAirEvent(t, "station-1", map[string]any{"pm25": 10.0})

	ext := &mockExtractor{events: []domain.RawEvent{raw}}
	tfm := &mockTransformer{}
	ldr := &mockLoader{}
	metrics := newTestMetrics()

	p := pipeline.New(ext, tfm, ldr, nil, slog.Default(), metrics, 10)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	err := p.Run(ctx)
	require.NoError(t, err)
	assert.Len(t, ldr.loaded, 1)
	assert.Equal(t, raw.Value, ldr.loaded[0].Value)
	assert.NoError(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_ContextCancellation(t *testing.T) {
	ext := &mockExtractor{} // no events, will block
	tfm := &mockTransformer{}
	ldr := &mockLoader{}
	metrics := newTestMetrics()

	p := pipeline.New(ext, tfm, ldr, nil, slog.Default(), metrics, 10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // cancel immediately

	err := p.Run(ctx)
	require.NoError(t, err)
	assert.Empty(t, ldr.loaded)
}

func TestPipeline_Run_TransformErrorSkipsAndCommits(t *testing.T) {
	commitCalled := false
	raw := makeAirEvent(t, "station-2", map[string]any{"pm25": 10.0})
	raw.Commit = func(_ context.Context) error {
		commitCalled = true
		return nil
	}

	ext := &mockExtractor{events: []domain.RawEvent{raw}}
	tfm := &mockTransformer{err: errors.New("bad data")}
	ldr := &mockLoader{}
	metrics := newTestMetrics()

	p := pipeline.New(ext, tfm, ldr, nil, slog.Default(), metrics, 10)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	err := p.Run(ctx)
	require.NoError(t, err)
	assert.Empty(t, ldr.loaded)
	assert.True(t, commitCalled, "poison messages must still be committed")
	assert.Error(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_CommitsAfterLoad(t *testing.T) {
	commitCalled := false

	raw := makeAirEvent(t, "station-3", map[string]any{"pm25": 10.0})
	raw.Topic = "raw-measurements"
	raw.Commit = func(_ context.Context) error {
		commitCalled = true
		return nil
	}

	ext := &mockExtractor{events: []domain.RawEvent{raw}}
	tfm := &mockTransformer{}
	ldr := &mockLoader{}
	metrics := newTestMetrics()

	p := pipeline.New(ext, tfm, ldr, nil, slog.Default(), metrics, 10)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	err := p.Run(ctx)
	require.NoError(t, err)
	assert.True(t, commitCalled)
}

func TestPipeline_Run_LoadErrorDoesNotCommit(t *testing.T) {
	commitCalled := false
	raw := makeAirEvent(t, "station-4", map[string]any{"pm25": 10.0})
	raw.Commit = func(_ context.Context) error {
		commitCalled = true
		return nil
	}

	ext := &mockExtractor{events: []domain.RawEvent{raw}}
	tfm := &mockTransformer{}
	ldr := &mockLoader{err: errors.New("broker down")}
	metrics := newTestMetrics()

	p := pipeline.New(ext, tfm, ldr, nil, slog.Default(), metrics, 10)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	err := p.Run(ctx)
	require.NoError(t, err)
	assert.False(t, commitCalled)
	assert.Error(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_PublishesAlerts(t *testing.T) {
	raw := makeAirEvent(t, "station-5", map[string]any{"pm25": 80.0})
	alert := alerting.Alert{Type: alerting.TypeAir, Parameter: "pm25", Severity: alerting.SeverityCritical}

	ext := &mockExtractor{events: []domain.RawEvent{raw}}
	tfm := &mockTransformer{alerts: []alerting.Alert{alert}}
	ldr := &mockLoader{}
	pub := &mockAlertPublisher{}
	metrics := newTestMetrics()

	p := pipeline.New(ext, tfm, ldr, pub, slog.Default(), metrics, 10)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	err := p.Run(ctx)
	require.NoError(t, err)
	require.Len(t, pub.published, 1)
	assert.Equal(t, "pm25", pub.published[0].Parameter)
}

func TestPipeline_Run_AlertPublishFailureDoesNotFailBatch(t *testing.T) {
	raw := makeAirEvent(t, "station-6", map[string]any{"pm25": 80.0})
	alert := alerting.Alert{Type: alerting.TypeAir, Parameter: "pm25", Severity: alerting.SeverityLow}

	ext := &mockExtractor{events: []domain.RawEvent{raw}}
	tfm := &mockTransformer{alerts: []alerting.Alert{alert}}
	ldr := &mockLoader{}
	pub := &mockAlertPublisher{err: errors.New("alert topic unavailable")}
	metrics := newTestMetrics()

	p := pipeline.New(ext, tfm, ldr, pub, slog.Default(), metrics, 10)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	err := p.Run(ctx)
	require.NoError(t, err)
	assert.Len(t, ldr.loaded, 1)
	assert.NoError(t, p.CheckReadiness(context.Background()))
}

// --- transformer tests ---

func newTestTransformer(t *testing.T, locator domain.StationLocator) (*pipeline.EnviroTransformer, *alerting.Store) {
	t.Helper()
	store := alerting.NewStore(clockwork.NewFakeClockAt(time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)))
	evaluator := alerting.NewEvaluator(store, slog.Default())
	return pipeline.NewTransformer(evaluator, nil, locator, slog.Default()), store
}

func TestEnviroTransformer_AirBatch(t *testing.T) {
	tfm, store := newTestTransformer(t, nil)

	raw := makeAirEvent(t, "Springfield", map[string]any{"pm25": 70.0, "pm10": 40.0})
	res, err := tfm.Transform(context.Background(), raw)
	require.NoError(t, err)

	var processed domain.ProcessedBatch
	require.NoError(t, json.Unmarshal(res.Output.Value, &processed))

	assert.Equal(t, domain.KindAir, processed.Kind)
	assert.Equal(t, 1, processed.RowCount)
	require.Len(t, processed.Records, 1)
	assert.Contains(t, processed.Records[0], "aqi")
	assert.Contains(t, processed.Records[0], "aqi_category")
	assert.Equal(t, "air", res.Output.Headers["kind"])

	// pm25=70 exceeds 35, ratio 2.0 -> high. The single-row aqi normalizes
	// to 500, which also exceeds its threshold.
	require.Len(t, res.Alerts, 2)
	assert.Equal(t, "pm25", res.Alerts[0].Parameter)
	assert.Equal(t, alerting.SeverityHigh, res.Alerts[0].Severity)
	assert.Equal(t, "aqi", res.Alerts[1].Parameter)
	assert.Equal(t, alerting.SeverityCritical, res.Alerts[1].Severity)
	assert.Equal(t, 2, store.Len())
}

func TestEnviroTransformer_WaterBatch(t *testing.T) {
	tfm, _ := newTestTransformer(t, nil)

	raw := makeRawEvent(t, "water", "Lakeside", map[string]any{"pH": 7.0, "DO": 10.0})
	res, err := tfm.Transform(context.Background(), raw)
	require.NoError(t, err)

	var processed domain.ProcessedBatch
	require.NoError(t, json.Unmarshal(res.Output.Value, &processed))

	assert.Equal(t, domain.KindWater, processed.Kind)
	require.Len(t, processed.Records, 1)
	assert.Contains(t, processed.Records[0], "wqi")
	assert.Contains(t, processed.Records[0], "wqi_category")
	assert.Empty(t, res.Alerts)
}

func TestEnviroTransformer_WeatherBatchForwardedWithoutIndex(t *testing.T) {
	tfm, _ := newTestTransformer(t, nil)

	raw := makeRawEvent(t, "weather", "Hilltop", map[string]any{"temperature": 21.5, "humidity": 60.0})
	res, err := tfm.Transform(context.Background(), raw)
	require.NoError(t, err)

	var processed domain.ProcessedBatch
	require.NoError(t, json.Unmarshal(res.Output.Value, &processed))

	require.Len(t, processed.Records, 1)
	assert.NotContains(t, processed.Records[0], "aqi")
	assert.NotContains(t, processed.Records[0], "wqi")
}

func TestEnviroTransformer_ImputesNulls(t *testing.T) {
	tfm, _ := newTestTransformer(t, nil)

	payload := domain.RawBatchPayload{
		Kind:     "air",
		Location: "Springfield",
		Records: []map[string]any{
			{"pm25": 10.0},
			{"pm25": nil},
			{"pm25": 20.0},
		},
	}
	data, err := json.Marshal(payload)
	require.NoError(t, err)

	res, err := tfm.Transform(context.Background(), domain.RawEvent{Value: data})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Report.CellsImputed)
	assert.Equal(t, 3, res.Rows)

	var processed domain.ProcessedBatch
	require.NoError(t, json.Unmarshal(res.Output.Value, &processed))
	assert.InEpsilon(t, 15.0, processed.Records[1]["pm25"].(float64), 1e-9)
}

func TestEnviroTransformer_InvalidJSON(t *testing.T) {
	tfm, _ := newTestTransformer(t, nil)
	_, err := tfm.Transform(context.Background(), domain.RawEvent{Value: []byte("not json")})
	assert.Error(t, err)
}

func TestEnviroTransformer_UnknownKind(t *testing.T) {
	tfm, _ := newTestTransformer(t, nil)
	_, err := tfm.Transform(context.Background(), domain.RawEvent{Value: []byte(`{"kind":"soil","records":[]}`)})
	assert.Error(t, err)
}

type stubLocator struct {
	loc domain.StationLocation
	err error
}

func (s *stubLocator) Locate(_ context.Context, _ string) (domain.StationLocation, error) {
	return s.loc, s.err
}

func TestEnviroTransformer_LocationEnrichment(t *testing.T) {
	locator := &stubLocator{loc: domain.StationLocation{Lat: 51.51, Lon: -0.13, Name: "London"}}
	tfm, _ := newTestTransformer(t, locator)

	raw := makeAirEvent(t, "London", map[string]any{"pm25": 10.0})
	res, err := tfm.Transform(context.Background(), raw)
	require.NoError(t, err)

	var processed domain.ProcessedBatch
	require.NoError(t, json.Unmarshal(res.Output.Value, &processed))
	assert.InEpsilon(t, 51.51, processed.Geo.Lat, 1e-9)
	assert.Equal(t, "London", processed.GeoName)
}

func TestEnviroTransformer_LocatorFailureDegradesGracefully(t *testing.T) {
	locator := &stubLocator{err: errors.New("api unavailable")}
	tfm, _ := newTestTransformer(t, locator)

	raw := makeAirEvent(t, "London", map[string]any{"pm25": 10.0})
	res, err := tfm.Transform(context.Background(), raw)
	require.NoError(t, err)

	var processed domain.ProcessedBatch
	require.NoError(t, json.Unmarshal(res.Output.Value, &processed))
	assert.Zero(t, processed.Geo.Lat)
	assert.Zero(t, processed.Geo.Lon)
}

// --- helpers ---

func makeRawEvent(t *testing.T, kind, location string, record map[string]any) domain.RawEvent {
	t.Helper()
	data, err := json.Marshal(domain.RawBatchPayload{
		Kind:     kind,
		Location: location,
		Station:  location + "-01",
		Records:  []map[string]any{record},
	})
	require.NoError(t, err)
	return domain.RawEvent{
		Key:   []byte(location),
		Value: data,
	}
}

func makeAirEvent(t *testing.T, location string, record map[string]any) domain.RawEvent {
	t.Helper()
	return makeRawEvent(t, "air", location, record)
}
