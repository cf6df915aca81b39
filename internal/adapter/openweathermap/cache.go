package openweathermap

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/weather-station/internal/domain"
)

// Fetcher is the single-location weather lookup that CachedFetcher wraps.
type Fetcher interface {
	Fetch(ctx context.Context) (domain.WeatherRecord, error)
}

// CachedFetcher serves the last complete record until it is older than ttl.
type CachedFetcher struct {
	inner Fetcher
	ttl   time.Duration
	clock clockwork.Clock

	mu       sync.Mutex
	record   domain.WeatherRecord
	storedAt time.Time
	valid    bool
}

// NewCachedFetcher creates a cache decorator around a fetcher.
func NewCachedFetcher(inner Fetcher, ttl time.Duration, clock clockwork.Clock) *CachedFetcher {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &CachedFetcher{inner: inner, ttl: ttl, clock: clock}
}

func (c *CachedFetcher) Fetch(ctx context.Context) (domain.WeatherRecord, error) {
	c.mu.Lock()
	if c.valid && c.clock.Since(c.storedAt) < c.ttl {
		rec := c.record
		c.mu.Unlock()
		return rec, nil
	}
	c.mu.Unlock()

	rec, err := c.inner.Fetch(ctx)
	if err != nil {
		return rec, err
	}
	// Only cache complete records so a sparse response is retried next time.
	if rec.IsComplete() {
		c.mu.Lock()
		c.record = rec
		c.storedAt = c.clock.Now()
		c.valid = true
		c.mu.Unlock()
	}
	return rec, nil
}

// Invalidate drops the cached record.
func (c *CachedFetcher) Invalidate() {
	c.mu.Lock()
	c.valid = false
	c.mu.Unlock()
}
