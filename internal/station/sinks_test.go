package station

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/weather-station/internal/domain"
	"github.com/couchcryptid/weather-station/internal/observability"
)

func TestSinks_PublishesToAll(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	a, b := &recordingSink{}, &recordingSink{}
	sinks := NewSinks(slog.New(slog.NewTextHandler(io.Discard, nil)), metrics, NamedSink{Name: "a", Sink: a})
	sinks.Add("b", b)

	obs := domain.Observation{Record: completeRecord()}
	require.NoError(t, sinks.Publish(context.Background(), obs))

	assert.Len(t, a.got, 1)
	assert.Len(t, b.got, 1)
	assert.Equal(t, []string{"a", "b"}, sinks.Names())
}

func TestSinks_FailureDoesNotStopOthers(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	boom := errors.New("broker unavailable")
	bad, good := &recordingSink{err: boom}, &recordingSink{}
	sinks := NewSinks(slog.New(slog.NewTextHandler(io.Discard, nil)), metrics,
		NamedSink{Name: "kafka", Sink: bad},
		NamedSink{Name: "csv", Sink: good},
	)

	err := sinks.Publish(context.Background(), domain.Observation{})
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "kafka")
	assert.Len(t, good.got, 1)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.SinkErrors.WithLabelValues("kafka")), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(metrics.SinkErrors.WithLabelValues("csv")), 0)
}
