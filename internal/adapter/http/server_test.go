package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	httpadapter "github.com/couchcryptid/enviro-quality-etl/internal/adapter/http"
	"github.com/couchcryptid/enviro-quality-etl/internal/alerting"
	"github.com/couchcryptid/enviro-quality-etl/internal/dataset"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

func newTestServer(t *testing.T, readyErr error) (*httpadapter.Server, *alerting.Store) {
	t.Helper()
	store := alerting.NewStore(clockwork.NewFakeClockAt(time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)))
	return httpadapter.NewServer(":0", &mockReadiness{err: readyErr}, store, slog.Default()), store
}

// seedAlerts records one pm25 alert per location through the evaluator.
func seedAlerts(t *testing.T, store *alerting.Store, locations ...string) {
	t.Helper()
	evaluator := alerting.NewEvaluator(store, slog.Default())

	values := make([]float64, len(locations))
	for i := range values {
		values[i] = 70.0 // above the pm25 threshold
	}
	ds := dataset.New(len(locations))
	require.NoError(t, ds.AddFloatColumn("pm25", values, nil))
	require.NoError(t, ds.AddStringColumn("location", locations, nil))

	alerts := evaluator.CheckAirQuality(ds)
	require.Len(t, alerts, len(locations))
}

func TestHealthzReturns200(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ready", body["status"])
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	srv, _ := newTestServer(t, fmt.Errorf("not ready yet"))
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not ready", body["status"])
	assert.Equal(t, "not ready yet", body["error"])
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

type alertsBody struct {
	Alerts []alerting.Alert `json:"alerts"`
	Count  int              `json:"count"`
}

func TestAlertsEndpoint_Empty(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/alerts", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body alertsBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Zero(t, body.Count)
	assert.Empty(t, body.Alerts)
}

func TestAlertsEndpoint_ReturnsActiveAlerts(t *testing.T) {
	srv, store := newTestServer(t, nil)
	seedAlerts(t, store, "Springfield", "Shelbyville")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/alerts", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body alertsBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Count)
	require.Len(t, body.Alerts, 2)
	assert.Equal(t, "pm25", body.Alerts[0].Parameter)
	assert.Equal(t, alerting.TypeAir, body.Alerts[0].Type)
}

func TestAlertsEndpoint_FiltersByLocation(t *testing.T) {
	srv, store := newTestServer(t, nil)
	seedAlerts(t, store, "Springfield", "Shelbyville")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/alerts?location=Springfield", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body alertsBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 1, body.Count)
	assert.Equal(t, "Springfield", body.Alerts[0].Location)
}

func TestAlertsEndpoint_FiltersByType(t *testing.T) {
	srv, store := newTestServer(t, nil)
	seedAlerts(t, store, "Springfield")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/alerts?type=water", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body alertsBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Zero(t, body.Count)
}

func TestAlertsEndpoint_RejectsUnknownType(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/alerts?type=soil", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
