package connectivity

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/weather-station/internal/domain"
	"github.com/couchcryptid/weather-station/internal/observability"
)

// ErrNoNetwork is returned by Connect once every credential has been exhausted.
var ErrNoNetwork = errors.New("no wifi network could be joined")

// Link is the network interface driver.
type Link interface {
	// Join asks the driver to associate with a network. It returns once the
	// request has been issued; association is observed through Connected.
	Join(ctx context.Context, ssid, secret string) error
	// Connected reports whether the interface currently has a link.
	Connected() bool
	// Leave drops any association.
	Leave() error
}

// Indicator gives user-visible feedback while connecting (a status LED on the board).
type Indicator interface {
	Waiting()
	Succeeded()
	Failed()
}

// Policy bounds a connect run.
type Policy struct {
	MaxRetries   int           // attempts per credential
	RetryDelay   time.Duration // pause between attempts on one credential
	MaxWait      time.Duration // how long one attempt polls for a link
	PollInterval time.Duration
	SwitchPause  time.Duration // pause after giving up on a credential
}

// DefaultPolicy matches the board firmware.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:   3,
		RetryDelay:   5 * time.Second,
		MaxWait:      10 * time.Second,
		PollInterval: 200 * time.Millisecond,
		SwitchPause:  500 * time.Millisecond,
	}
}

func (p Policy) withDefaults() Policy {
	d := DefaultPolicy()
	if p.MaxRetries <= 0 {
		p.MaxRetries = d.MaxRetries
	}
	if p.RetryDelay < 0 {
		p.RetryDelay = 0
	}
	if p.MaxWait <= 0 {
		p.MaxWait = d.MaxWait
	}
	if p.PollInterval <= 0 {
		p.PollInterval = d.PollInterval
	}
	if p.SwitchPause < 0 {
		p.SwitchPause = 0
	}
	return p
}

// Manager owns the Wi-Fi link and the ordered credential list.
type Manager struct {
	link        Link
	credentials []domain.Credential
	indicator   Indicator
	clock       clockwork.Clock
	logger      *slog.Logger
	metrics     *observability.Metrics

	mu    sync.RWMutex
	state domain.ConnectionState
	conn  *domain.Connection
}

// Option configures a Manager.
type Option func(*Manager)

// WithIndicator sets the feedback device. Defaults to a no-op.
func WithIndicator(i Indicator) Option {
	return func(m *Manager) { m.indicator = i }
}

// WithClock swaps the time source, for tests.
func WithClock(c clockwork.Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// NewManager creates a Manager. Credentials are tried in the given order.
func NewManager(link Link, credentials []domain.Credential, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Manager {
	m := &Manager{
		link:        link,
		credentials: append([]domain.Credential(nil), credentials...),
		indicator:   nopIndicator{},
		clock:       clockwork.NewRealClock(),
		logger:      logger,
		metrics:     metrics,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Connect tries every credential in order, each up to MaxRetries times,
// and returns the first connection that comes up. Driver errors count as
// failed attempts. With no credentials it adopts whatever network the host
// brings up within MaxWait. It returns ErrNoNetwork when all credentials are
// exhausted, or the context error on shutdown.
func (m *Manager) Connect(ctx context.Context, p Policy) (domain.Connection, error) {
	p = p.withDefaults()
	m.setState(domain.Connecting, nil)

	if len(m.credentials) == 0 {
		return m.adoptHost(ctx, p)
	}

	for i, cred := range m.credentials {
		m.logger.Info("attempting wifi connection", "ssid", cred.SSID)

		for attempt := 1; attempt <= p.MaxRetries; attempt++ {
			ok, err := m.attempt(ctx, cred, attempt, p)
			if err != nil {
				m.setState(domain.Disconnected, nil)
				return domain.Connection{}, err
			}
			if ok {
				conn := domain.Connection{SSID: cred.SSID, Attempt: attempt, ConnectedAt: m.clock.Now()}
				m.setState(domain.Connected, &conn)
				m.indicator.Succeeded()
				m.logger.Info("wifi connected", "ssid", cred.SSID, "attempt", attempt)
				return conn, nil
			}
			if attempt < p.MaxRetries && !sleepWithContext(ctx, m.clock, p.RetryDelay) {
				m.setState(domain.Disconnected, nil)
				return domain.Connection{}, ctx.Err()
			}
		}

		if err := m.link.Leave(); err != nil {
			m.logger.Warn("wifi disconnect failed", "ssid", cred.SSID, "error", err)
		}
		if i < len(m.credentials)-1 && !sleepWithContext(ctx, m.clock, p.SwitchPause) {
			m.setState(domain.Disconnected, nil)
			return domain.Connection{}, ctx.Err()
		}
	}

	m.setState(domain.Disconnected, nil)
	m.indicator.Failed()
	m.logger.Error("wifi connection failed", "credentials", len(m.credentials), "max_retries", p.MaxRetries)
	return domain.Connection{}, ErrNoNetwork
}

// attempt issues one join and polls for the link until MaxWait elapses.
// A non-nil error means the context was cancelled.
func (m *Manager) attempt(ctx context.Context, cred domain.Credential, attempt int, p Policy) (bool, error) {
	m.logger.Debug("wifi attempt", "ssid", cred.SSID, "attempt", attempt, "max_retries", p.MaxRetries)

	if err := m.link.Join(ctx, cred.SSID, cred.Secret); err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		m.logger.Warn("wifi join command failed", "ssid", cred.SSID, "attempt", attempt, "error", err)
		m.metrics.ConnectAttempts.WithLabelValues("driver_error").Inc()
		return false, nil
	}

	ok, err := m.waitForLink(ctx, p)
	if err != nil || ok {
		return ok, err
	}

	m.logger.Warn("wifi attempt timed out", "ssid", cred.SSID, "attempt", attempt, "max_wait", p.MaxWait)
	return false, nil
}

// adoptHost waits for a link the host manages itself, without joining.
func (m *Manager) adoptHost(ctx context.Context, p Policy) (domain.Connection, error) {
	m.logger.Info("no wifi credentials, waiting for host network", "max_wait", p.MaxWait)

	ok, err := m.waitForLink(ctx, p)
	if err != nil {
		m.setState(domain.Disconnected, nil)
		return domain.Connection{}, err
	}
	if !ok {
		m.setState(domain.Disconnected, nil)
		m.indicator.Failed()
		m.logger.Error("host network unavailable", "max_wait", p.MaxWait)
		return domain.Connection{}, ErrNoNetwork
	}

	conn := domain.Connection{Attempt: 1, ConnectedAt: m.clock.Now()}
	m.setState(domain.Connected, &conn)
	m.indicator.Succeeded()
	m.logger.Info("host network up")
	return conn, nil
}

// waitForLink polls Connected until MaxWait elapses. A non-nil error means
// the context was cancelled.
func (m *Manager) waitForLink(ctx context.Context, p Policy) (bool, error) {
	deadline := m.clock.Now().Add(p.MaxWait)
	for {
		if m.link.Connected() {
			m.metrics.ConnectAttempts.WithLabelValues("connected").Inc()
			return true, nil
		}
		if !m.clock.Now().Before(deadline) {
			m.metrics.ConnectAttempts.WithLabelValues("timeout").Inc()
			return false, nil
		}
		m.indicator.Waiting()
		if !sleepWithContext(ctx, m.clock, p.PollInterval) {
			return false, ctx.Err()
		}
	}
}

// IsConnected reports whether a connection was established and the link is
// still up. It has no side effects.
func (m *Manager) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.conn == nil {
		return false
	}
	return m.link.Connected()
}

// State returns the tracked state, downgraded to Disconnected when the link
// has dropped since the last connect.
func (m *Manager) State() domain.ConnectionState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state == domain.Connected && !m.link.Connected() {
		return domain.Disconnected
	}
	return m.state
}

// Connection returns the current handle, if any.
func (m *Manager) Connection() (domain.Connection, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.conn == nil {
		return domain.Connection{}, false
	}
	return *m.conn, true
}

func (m *Manager) setState(s domain.ConnectionState, conn *domain.Connection) {
	m.mu.Lock()
	m.state = s
	m.conn = conn
	m.mu.Unlock()

	if s == domain.Connected {
		m.metrics.WifiConnected.Set(1)
	} else {
		m.metrics.WifiConnected.Set(0)
	}
}

func sleepWithContext(ctx context.Context, clock clockwork.Clock, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}

type nopIndicator struct{}

func (nopIndicator) Waiting()   {}
func (nopIndicator) Succeeded() {}
func (nopIndicator) Failed()    {}
