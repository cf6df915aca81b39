// Package timesync sets the station clock from a network time source,
// converted to Central European civil time.
package timesync

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/weather-station/internal/domain"
	"github.com/couchcryptid/weather-station/internal/observability"
)

// TimeSource returns the current UTC time from an authoritative source.
type TimeSource interface {
	Now(ctx context.Context) (time.Time, error)
}

// ClockStore persists the local wall time (the board's real-time clock).
type ClockStore interface {
	Set(ctx context.Context, dt domain.RTCDateTime) error
	Get(ctx context.Context) (domain.RTCDateTime, error)
}

// Syncer copies network time into the clock store and serves the corrected
// time to the rest of the station.
type Syncer struct {
	source  TimeSource
	store   ClockStore
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics

	mu       sync.RWMutex
	offset   time.Duration // added to the host clock
	lastSync time.Time
	lastRTC  domain.RTCDateTime
	hasRTC   bool
}

// Option configures a Syncer.
type Option func(*Syncer)

// WithClock sets the host clock the correction is applied to.
func WithClock(c clockwork.Clock) Option {
	return func(s *Syncer) { s.clock = c }
}

// NewSyncer creates a Syncer.
func NewSyncer(source TimeSource, store ClockStore, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Syncer {
	s := &Syncer{
		source:  source,
		store:   store,
		clock:   clockwork.NewRealClock(),
		logger:  logger,
		metrics: metrics,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Restore loads the persisted clock value. When the host clock reads earlier
// than that value it is moved forward, so station time never runs backwards
// across a restart. An error means nothing was restored.
func (s *Syncer) Restore(ctx context.Context) error {
	dt, err := s.store.Get(ctx)
	if err != nil {
		return fmt.Errorf("read clock: %w", err)
	}
	saved := dt.UTC()
	host := s.clock.Now()

	s.mu.Lock()
	s.lastRTC = dt
	s.hasRTC = true
	if host.Before(saved) {
		s.offset = saved.Sub(host)
	}
	offset := s.offset
	s.mu.Unlock()

	s.logger.Info("clock restored",
		"saved", dt.Time(time.UTC).Format(time.DateTime),
		"advanced", offset.String(),
	)
	return nil
}

// Now returns the host clock plus the correction from the last sync or
// restore.
func (s *Syncer) Now() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clock.Now().Add(s.offset)
}

// Sync queries the time source and writes local civil time to the store.
// Errors are returned unchanged in meaning; the caller decides whether to
// keep running on the previous clock value.
func (s *Syncer) Sync(ctx context.Context) error {
	utc, err := s.source.Now(ctx)
	if err != nil {
		s.metrics.TimeSyncs.WithLabelValues("error").Inc()
		return fmt.Errorf("query time source: %w", err)
	}
	utc = utc.UTC()

	offset := domain.CentralEuropeanOffset(utc)
	local := domain.CentralEuropeanTime(utc)
	dt := domain.NewRTCDateTime(local)

	if err := s.store.Set(ctx, dt); err != nil {
		s.metrics.TimeSyncs.WithLabelValues("error").Inc()
		return fmt.Errorf("set clock: %w", err)
	}

	s.mu.Lock()
	s.offset = utc.Sub(s.clock.Now())
	s.lastSync = utc
	s.lastRTC = dt
	s.hasRTC = true
	s.mu.Unlock()

	s.metrics.TimeSyncs.WithLabelValues("success").Inc()
	s.metrics.TimeSyncOffset.Set(offset.Seconds())
	s.logger.Info("time synchronized",
		"utc", utc.Format(time.RFC3339),
		"local", local.Format(time.DateTime),
		"zone", local.Format("MST"),
	)
	return nil
}

// LastSync returns the UTC instant of the last successful sync.
func (s *Syncer) LastSync() (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSync, !s.lastSync.IsZero()
}

// LastClock returns the value written at the last successful sync, or the
// restored value before the first one.
func (s *Syncer) LastClock() (domain.RTCDateTime, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastRTC, s.hasRTC
}
