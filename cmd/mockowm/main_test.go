package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/weather-station/internal/adapter/openweathermap"
	"github.com/couchcryptid/weather-station/internal/domain"
	"github.com/couchcryptid/weather-station/internal/observability"
)

func newTestClient(t *testing.T, steps []string) *openweathermap.Client {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := httptest.NewServer(newHandler(steps, 200*time.Millisecond, logger))
	t.Cleanup(srv.Close)
	return openweathermap.NewClient(openweathermap.Options{
		APIKey:      "bench",
		BaseURL:     srv.URL,
		City:        "Berlin",
		CountryCode: "DE",
		Units:       "metric",
		Lang:        "de",
		Timeout:     50 * time.Millisecond,
	}, logger, observability.NewMetricsForTesting())
}

func TestScriptDrivesClientOutcomes(t *testing.T) {
	client := newTestClient(t, []string{stepOK, stepPartial, stepEmpty, stepUnauthorized, stepServerError, stepGarbage, stepSlow})
	ctx := context.Background()

	rec, err := client.Fetch(ctx)
	require.NoError(t, err)
	assert.True(t, rec.IsComplete())
	assert.Equal(t, "Überwiegend bewölkt", *rec.Description)

	rec, err = client.Fetch(ctx)
	require.NoError(t, err)
	assert.False(t, rec.IsComplete())
	assert.Nil(t, rec.WindSpeed)

	rec, err = client.Fetch(ctx)
	require.NoError(t, err)
	assert.True(t, rec.IsEmpty())

	_, err = client.Fetch(ctx)
	assert.Equal(t, domain.KindStatus, domain.KindOf(err))

	_, err = client.Fetch(ctx)
	assert.Equal(t, domain.KindStatus, domain.KindOf(err))

	_, err = client.Fetch(ctx)
	assert.Equal(t, domain.KindDecode, domain.KindOf(err))

	_, err = client.Fetch(ctx)
	assert.Equal(t, domain.KindNetwork, domain.KindOf(err))

	// Wraps around.
	rec, err = client.Fetch(ctx)
	require.NoError(t, err)
	assert.True(t, rec.IsComplete())
}

func TestHandlerWritesJSON(t *testing.T) {
	h := newHandler([]string{stepOK, stepUnauthorized}, 0, slog.New(slog.NewTextHandler(io.Discard, nil)))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/data/2.5/weather?q=Berlin,DE&appid=bench", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), `"name":"Berlin"`)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/data/2.5/weather?q=Berlin,DE&appid=bench", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"cod":401,"message":"Invalid API key."}`, w.Body.String())
}

func TestParseScript(t *testing.T) {
	steps, err := parseScript(" OK, partial,,slow ")
	require.NoError(t, err)
	assert.Equal(t, []string{stepOK, stepPartial, stepSlow}, steps)

	_, err = parseScript("ok,sunny")
	require.Error(t, err)

	_, err = parseScript(" , ")
	require.Error(t, err)
}
