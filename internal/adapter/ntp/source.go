// Package ntp queries an NTP server for the current time.
package ntp

import (
	"context"
	"fmt"
	"time"

	"github.com/beevik/ntp"
	"github.com/jonboulle/clockwork"
)

type queryFunc func(host string, opts ntp.QueryOptions) (*ntp.Response, error)

// Source is a timesync.TimeSource backed by one NTP server.
type Source struct {
	server  string
	timeout time.Duration
	clock   clockwork.Clock
	query   queryFunc
}

// Option configures a Source.
type Option func(*Source)

// WithClock sets the local clock the server offset is applied to.
func WithClock(c clockwork.Clock) Option {
	return func(s *Source) { s.clock = c }
}

// NewSource creates a Source for server. A non-positive timeout uses 5s.
func NewSource(server string, timeout time.Duration, opts ...Option) *Source {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	s := &Source{
		server:  server,
		timeout: timeout,
		clock:   clockwork.NewRealClock(),
		query:   ntp.QueryWithOptions,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Now returns the server's time adjusted for round-trip delay.
func (s *Source) Now(ctx context.Context) (time.Time, error) {
	if err := ctx.Err(); err != nil {
		return time.Time{}, err
	}

	timeout := s.timeout
	if dl, ok := ctx.Deadline(); ok {
		if left := time.Until(dl); left < timeout {
			timeout = left
		}
	}

	resp, err := s.query(s.server, ntp.QueryOptions{Timeout: timeout})
	if err != nil {
		return time.Time{}, fmt.Errorf("ntp query %s: %w", s.server, err)
	}
	if err := resp.Validate(); err != nil {
		return time.Time{}, fmt.Errorf("ntp response from %s: %w", s.server, err)
	}
	return s.clock.Now().Add(resp.ClockOffset).UTC(), nil
}
