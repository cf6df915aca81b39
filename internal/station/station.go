// Package station ties connectivity, time sync, weather fetching and the
// display together and drives them from the periodic scheduler.
package station

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/weather-station/internal/connectivity"
	"github.com/couchcryptid/weather-station/internal/display"
	"github.com/couchcryptid/weather-station/internal/domain"
	"github.com/couchcryptid/weather-station/internal/observability"
	"github.com/couchcryptid/weather-station/internal/scheduler"
)

// Connectivity is the Wi-Fi manager as seen by the station.
type Connectivity interface {
	Connect(ctx context.Context, p connectivity.Policy) (domain.Connection, error)
	IsConnected() bool
	State() domain.ConnectionState
	Connection() (domain.Connection, bool)
}

// TimeSyncer sets the clock from the network and is the station's time
// source.
type TimeSyncer interface {
	Sync(ctx context.Context) error
	Restore(ctx context.Context) error
	Now() time.Time
	LastSync() (time.Time, bool)
	LastClock() (domain.RTCDateTime, bool)
}

// Fetcher returns the current weather record.
type Fetcher interface {
	Fetch(ctx context.Context) (domain.WeatherRecord, error)
}

// Screen is the status display.
type Screen interface {
	domain.Sink
	Render(now time.Time) error
	Current() display.Frame
}

// Scheduler registers periodic tasks.
type Scheduler interface {
	Add(name string, interval time.Duration, action scheduler.Action)
}

// Settings are the connect policy and task cadences.
type Settings struct {
	Policy            connectivity.Policy
	DisplayInterval   time.Duration
	WeatherInterval   time.Duration
	WifiCheckInterval time.Duration
	NTPSyncInterval   time.Duration
}

// DefaultSettings returns the board firmware cadences.
func DefaultSettings() Settings {
	return Settings{
		Policy:            connectivity.DefaultPolicy(),
		DisplayInterval:   time.Second,
		WeatherInterval:   15 * time.Minute,
		WifiCheckInterval: 30 * time.Second,
		NTPSyncInterval:   6 * time.Hour,
	}
}

// Components are the collaborators a Station drives.
type Components struct {
	Conn    Connectivity
	Syncer  TimeSyncer
	Fetcher Fetcher
	Screen  Screen
	Sinks   domain.Sink // optional
}

// Station holds the runtime state shared by the periodic tasks.
type Station struct {
	conn     Connectivity
	syncer   TimeSyncer
	fetcher  Fetcher
	screen   Screen
	sinks    domain.Sink
	settings Settings
	logger   *slog.Logger
	metrics  *observability.Metrics

	mu           sync.RWMutex
	latest       domain.Observation
	hasLatest    bool
	lastComplete time.Time
}

// New creates a Station.
func New(c Components, settings Settings, logger *slog.Logger, metrics *observability.Metrics) *Station {
	return &Station{
		conn:     c.Conn,
		syncer:   c.Syncer,
		fetcher:  c.Fetcher,
		screen:   c.Screen,
		sinks:    c.Sinks,
		settings: settings,
		logger:   logger,
		metrics:  metrics,
	}
}

// Boot draws the first screen, joins Wi-Fi, syncs the clock and fetches the
// first record. Failures are logged and the station keeps going offline;
// only a cancelled context is returned.
func (s *Station) Boot(ctx context.Context) error {
	s.logger.Info("station booting")

	if err := s.syncer.Restore(ctx); err != nil {
		s.logger.Info("no saved clock", "error", err)
	}
	if err := s.screen.Render(s.syncer.Now()); err != nil {
		s.logger.Warn("initial render failed", "error", err)
	}

	if conn, err := s.conn.Connect(ctx, s.settings.Policy); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.Error("wifi unavailable, continuing offline", "error", err)
	} else {
		s.logger.Info("wifi ready", "ssid", conn.SSID, "attempt", conn.Attempt)
		if err := s.syncer.Sync(ctx); err != nil {
			s.logger.Warn("initial time sync failed", "error", err)
		}
	}

	if err := s.RefreshWeather(ctx); err != nil && !errors.Is(err, domain.ErrOffline) {
		s.logger.Warn("initial weather refresh failed", "error", err)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	s.logger.Info("station booted", "connection", s.conn.State().String())
	return nil
}

// RefreshWeather fetches a record, or produces the offline sentinel without
// touching the network, and pushes the observation to the screen and sinks.
// The returned error is the fetch error; sink failures are only logged.
func (s *Station) RefreshWeather(ctx context.Context) error {
	var (
		rec domain.WeatherRecord
		err error
	)
	if !s.conn.IsConnected() {
		s.logger.Info("skipping weather fetch, no network")
		rec, err = domain.EmptyRecord(), domain.NewFetchError(domain.KindOffline, nil)
	} else {
		rec, err = s.fetcher.Fetch(ctx)
	}

	obs := domain.NewObservation(rec, err, s.syncer.Now())
	s.record(obs)

	if perr := s.screen.Publish(ctx, obs); perr != nil {
		s.logger.Warn("display update failed", "error", perr)
	}
	if s.sinks != nil {
		// Each sink logs its own failure.
		_ = s.sinks.Publish(ctx, obs)
	}

	return err
}

func (s *Station) record(obs domain.Observation) {
	outcome := "success"
	if obs.Err != nil {
		outcome = domain.KindOf(obs.Err).String()
	}
	s.metrics.WeatherFetches.WithLabelValues(outcome).Inc()

	s.mu.Lock()
	s.latest = obs
	s.hasLatest = true
	if obs.HasData() {
		s.lastComplete = obs.ObservedAt
	}
	s.mu.Unlock()

	switch {
	case obs.HasData():
		s.metrics.LastObservation.Set(float64(obs.ObservedAt.Unix()))
		s.logger.Info("weather updated",
			"temperature", *obs.Record.Temperature,
			"condition", *obs.Record.Condition,
		)
	case obs.Err == nil && obs.Record.IsEmpty():
		s.logger.Warn("weather response carried no readings")
	}
}

// CheckConnectivity reconnects when the link is down and refreshes the
// weather once it is back. It blocks for the whole connect run.
func (s *Station) CheckConnectivity(ctx context.Context) error {
	if s.conn.IsConnected() {
		return nil
	}

	s.logger.Warn("wifi connection lost, reconnecting")
	if _, err := s.conn.Connect(ctx, s.settings.Policy); err != nil {
		return fmt.Errorf("reconnect: %w", err)
	}

	// A cached record predates the outage.
	if inv, ok := s.fetcher.(interface{ Invalidate() }); ok {
		inv.Invalidate()
	}
	if err := s.RefreshWeather(ctx); err != nil {
		s.logger.Warn("weather refresh after reconnect failed", "error", err)
	}
	return nil
}

// SyncTime syncs the clock when online and skips silently otherwise.
func (s *Station) SyncTime(ctx context.Context) error {
	if !s.conn.IsConnected() {
		s.logger.Info("skipping time sync, no network")
		s.metrics.TimeSyncs.WithLabelValues("skipped").Inc()
		return nil
	}
	return s.syncer.Sync(ctx)
}

// RefreshDisplay redraws the clock and weather labels.
func (s *Station) RefreshDisplay(_ context.Context) error {
	return s.screen.Render(s.syncer.Now())
}

// Schedule registers the station's periodic tasks.
func (s *Station) Schedule(r Scheduler) {
	r.Add("display", s.settings.DisplayInterval, s.RefreshDisplay)
	r.Add("weather", s.settings.WeatherInterval, s.RefreshWeather)
	r.Add("wifi", s.settings.WifiCheckInterval, s.CheckConnectivity)
	r.Add("ntp", s.settings.NTPSyncInterval, s.SyncTime)
}

// Latest returns the most recent observation.
func (s *Station) Latest() (domain.Observation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest, s.hasLatest
}

// CheckReadiness returns nil once a complete record has been observed.
func (s *Station) CheckReadiness(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastComplete.IsZero() {
		return errors.New("no complete weather record observed yet")
	}
	return nil
}

// Status is a point-in-time snapshot for the HTTP status endpoint.
type Status struct {
	Connection   string                `json:"connection"`
	SSID         string                `json:"ssid,omitempty"`
	ConnectedAt  *time.Time            `json:"connected_at,omitempty"`
	LastTimeSync *time.Time            `json:"last_time_sync,omitempty"`
	Clock        *domain.RTCDateTime   `json:"rtc,omitempty"`
	Weather      *domain.WeatherRecord `json:"weather,omitempty"`
	ObservedAt   *time.Time            `json:"observed_at,omitempty"`
	WeatherError string                `json:"weather_error,omitempty"`
	LastComplete *time.Time            `json:"last_complete,omitempty"`
	Display      display.Frame         `json:"display"`
}

// Status returns the current snapshot.
func (s *Station) Status() Status {
	st := Status{
		Connection: s.conn.State().String(),
		Display:    s.screen.Current(),
	}
	if conn, ok := s.conn.Connection(); ok && s.conn.IsConnected() {
		st.SSID = conn.SSID
		st.ConnectedAt = &conn.ConnectedAt
	}
	if t, ok := s.syncer.LastSync(); ok {
		st.LastTimeSync = &t
	}
	if dt, ok := s.syncer.LastClock(); ok {
		st.Clock = &dt
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.hasLatest {
		rec := s.latest.Record
		at := s.latest.ObservedAt
		st.Weather = &rec
		st.ObservedAt = &at
		if s.latest.Err != nil {
			st.WeatherError = s.latest.Err.Error()
		}
	}
	if !s.lastComplete.IsZero() {
		t := s.lastComplete
		st.LastComplete = &t
	}
	return st
}
