package display

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/weather-station/internal/domain"
)

func completeRecord() domain.WeatherRecord {
	return domain.WeatherRecord{
		Temperature: domain.Float(21.34),
		Pressure:    domain.Float(1013),
		Humidity:    domain.Float(55),
		WindSpeed:   domain.Float(3.42),
		Description: domain.String("Leichter Regen"),
		Condition:   domain.String("Rain"),
		Icon:        domain.String("10d"),
	}
}

func TestNewFrame_Complete(t *testing.T) {
	// 10:30 UTC in July is 12:30 CEST.
	now := time.Date(2024, 7, 15, 10, 30, 5, 0, time.UTC)

	got := NewFrame(now, completeRecord())
	want := Frame{
		Date:        "15.07.2024",
		Time:        "12:30:05",
		Description: "Leichter Regen",
		Temperature: "Temperature: 21.3 °C",
		Pressure:    "Pressure: 1013 hPa",
		Humidity:    "Humidity: 55.0 %",
		Wind:        "Wind: 3.4 m/s",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("frame mismatch (-want +got):\n%s", diff)
	}
}

func TestNewFrame_FallbackForPartialRecord(t *testing.T) {
	now := time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC)
	rec := completeRecord()
	rec.Icon = nil

	got := NewFrame(now, rec)
	assert.Equal(t, "09:00:00", got.Time)
	assert.Equal(t, "No weather data", got.Description)
	assert.Equal(t, "Temperature: ---", got.Temperature)
	assert.Equal(t, "Pressure: check Wi-Fi", got.Pressure)
	assert.Equal(t, "Humidity: ---", got.Humidity)
	assert.Equal(t, "Wind: ---", got.Wind)
}

func TestNewFrame_FallbackForEmptyRecord(t *testing.T) {
	got := NewFrame(time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC), domain.EmptyRecord())
	assert.Equal(t, "No weather data", got.Description)
}

func TestPanel_RendersOnlyOnChange(t *testing.T) {
	var buf bytes.Buffer
	p := NewPanel(&buf)
	now := time.Date(2024, 7, 15, 10, 30, 5, 0, time.UTC)

	require.NoError(t, p.Render(now))
	first := buf.Len()
	assert.Positive(t, first)

	require.NoError(t, p.Render(now.Add(100*time.Millisecond)))
	assert.Equal(t, first, buf.Len(), "same second must not redraw")

	require.NoError(t, p.Render(now.Add(time.Second)))
	assert.Greater(t, buf.Len(), first)
	assert.Equal(t, "12:30:06", p.Current().Time)
}

func TestPanel_PublishUpdatesWeather(t *testing.T) {
	var buf bytes.Buffer
	p := NewPanel(&buf)
	now := time.Date(2024, 7, 15, 10, 30, 5, 0, time.UTC)

	require.NoError(t, p.Publish(context.Background(), domain.Observation{Record: completeRecord(), ObservedAt: now}))
	assert.Equal(t, "Leichter Regen", p.Current().Description)
	assert.True(t, strings.Contains(buf.String(), title))

	require.NoError(t, p.Publish(context.Background(), domain.Observation{
		Record:     completeRecord(),
		ObservedAt: now.Add(time.Second),
		Err:        domain.NewFetchError(domain.KindOffline, nil),
	}))
	assert.Equal(t, "No weather data", p.Current().Description)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("device gone") }

func TestPanel_WriteError(t *testing.T) {
	p := NewPanel(failingWriter{})
	err := p.Render(time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "write frame")
}

func TestFrame_Lines(t *testing.T) {
	f := NewFrame(time.Date(2024, 7, 15, 10, 30, 5, 0, time.UTC), completeRecord())
	lines := f.Lines()
	require.Len(t, lines, 9)
	assert.Equal(t, "15.07.2024", lines[0])
	assert.Equal(t, title, lines[3])
	assert.Equal(t, "Wind: 3.4 m/s", lines[8])
}
