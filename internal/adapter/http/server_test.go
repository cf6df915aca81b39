package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/couchcryptid/weather-station/internal/adapter/http"
	"github.com/couchcryptid/weather-station/internal/domain"
	"github.com/couchcryptid/weather-station/internal/station"
)

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

type fixedStatus struct {
	status station.Status
}

func (f fixedStatus) Status() station.Status { return f.status }

func newTestServer(readyErr error, st station.Status) *httpadapter.Server {
	return httpadapter.NewServer(":0", &mockReadiness{err: readyErr}, fixedStatus{status: st},
		slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestHealthzReturns200(t *testing.T) {
	srv := newTestServer(nil, station.Status{})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	srv := newTestServer(nil, station.Status{})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	srv := newTestServer(fmt.Errorf("no weather data yet"), station.Status{})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStatusReturnsSnapshot(t *testing.T) {
	at := time.Date(2024, 7, 15, 10, 0, 0, 0, time.UTC)
	rec := domain.WeatherRecord{Temperature: domain.Float(18.5), Description: domain.String("Klarer Himmel")}
	rtc := domain.NewRTCDateTime(domain.CentralEuropeanTime(at))
	srv := newTestServer(nil, station.Status{
		Connection:  "connected",
		SSID:        "home",
		ConnectedAt: &at,
		Clock:       &rtc,
		Weather:     &rec,
		ObservedAt:  &at,
	})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/status", nil)

	srv.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "connected", body["connection"])
	assert.Equal(t, "home", body["ssid"])
	assert.Equal(t, "2024-07-15T10:00:00Z", body["observed_at"])
	assert.NotContains(t, body, "weather_error")
	require.Contains(t, body, "rtc")
	assert.Equal(t, map[string]any{
		"year": 2024.0, "month": 7.0, "day": 15.0, "weekday": 1.0,
		"hour": 12.0, "minute": 0.0, "second": 0.0, "subsecond": 0.0,
	}, body["rtc"])
}

func TestStatusRejectsPost(t *testing.T) {
	srv := newTestServer(nil, station.Status{})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/status", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(nil, station.Status{})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
