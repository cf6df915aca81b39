package openweathermap

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/weather-station/internal/domain"
)

// --- mock for cache tests ---

type countingFetcher struct {
	calls  int
	record domain.WeatherRecord
	err    error
}

func (m *countingFetcher) Fetch(context.Context) (domain.WeatherRecord, error) {
	m.calls++
	return m.record, m.err
}

func completeRecord() domain.WeatherRecord {
	return domain.WeatherRecord{
		Temperature: domain.Float(12.5),
		Pressure:    domain.Float(1008),
		Humidity:    domain.Float(80),
		WindSpeed:   domain.Float(5.1),
		Description: domain.String("Regen"),
		Condition:   domain.String("Rain"),
		Icon:        domain.String("10d"),
	}
}

// --- CachedFetcher tests ---

func TestCachedFetcher_HitWithinTTL(t *testing.T) {
	fc := clockwork.NewFakeClock()
	inner := &countingFetcher{record: completeRecord()}
	cached := NewCachedFetcher(inner, 5*time.Minute, fc)

	r1, err := cached.Fetch(context.Background())
	require.NoError(t, err)
	fc.Advance(4 * time.Minute)
	r2, err := cached.Fetch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, r1, r2)
	assert.Equal(t, 1, inner.calls, "should only call inner once")
}

func TestCachedFetcher_ExpiresAfterTTL(t *testing.T) {
	fc := clockwork.NewFakeClock()
	inner := &countingFetcher{record: completeRecord()}
	cached := NewCachedFetcher(inner, 5*time.Minute, fc)

	_, err := cached.Fetch(context.Background())
	require.NoError(t, err)
	fc.Advance(5 * time.Minute)
	_, err = cached.Fetch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, inner.calls)
}

func TestCachedFetcher_DoesNotCachePartial(t *testing.T) {
	inner := &countingFetcher{record: domain.WeatherRecord{Temperature: domain.Float(3)}}
	cached := NewCachedFetcher(inner, time.Hour, clockwork.NewFakeClock())

	_, _ = cached.Fetch(context.Background())
	_, _ = cached.Fetch(context.Background())

	assert.Equal(t, 2, inner.calls)
}

func TestCachedFetcher_DoesNotCacheErrors(t *testing.T) {
	inner := &countingFetcher{err: domain.NewFetchError(domain.KindNetwork, errors.New("reset"))}
	cached := NewCachedFetcher(inner, time.Hour, clockwork.NewFakeClock())

	_, err := cached.Fetch(context.Background())
	require.ErrorIs(t, err, domain.ErrNetwork)
	_, err = cached.Fetch(context.Background())
	require.Error(t, err)

	assert.Equal(t, 2, inner.calls)
}

func TestCachedFetcher_Invalidate(t *testing.T) {
	inner := &countingFetcher{record: completeRecord()}
	cached := NewCachedFetcher(inner, time.Hour, clockwork.NewFakeClock())

	_, _ = cached.Fetch(context.Background())
	cached.Invalidate()
	_, _ = cached.Fetch(context.Background())

	assert.Equal(t, 2, inner.calls)
}
