// Package scheduler runs periodic tasks from a single cooperative loop.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/weather-station/internal/observability"
)

// DefaultLoopInterval is how long Run sleeps between polls.
const DefaultLoopInterval = 50 * time.Millisecond

// Action is the work a task performs when it comes due.
type Action func(ctx context.Context) error

// Cadence tracks when a task last fired.
type Cadence struct {
	Interval  time.Duration
	LastFired time.Time
}

// Due reports whether the interval has elapsed since the last firing.
func (c Cadence) Due(now time.Time) bool {
	return now.Sub(c.LastFired) >= c.Interval
}

type task struct {
	name    string
	cadence Cadence
	action  Action
}

// TaskStatus is a read-only view of one task for status reporting.
type TaskStatus struct {
	Name      string        `json:"name"`
	Interval  time.Duration `json:"interval"`
	LastFired time.Time     `json:"last_fired"`
}

// Runner polls its tasks and fires the ones that are due. Tasks run on the
// polling goroutine, one after another, in registration order.
type Runner struct {
	clock        clockwork.Clock
	loopInterval time.Duration
	logger       *slog.Logger
	metrics      *observability.Metrics

	mu    sync.Mutex
	tasks []*task
	start time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithClock swaps the time source, for tests.
func WithClock(c clockwork.Clock) Option {
	return func(r *Runner) { r.clock = c }
}

// WithLoopInterval sets the sleep between polls.
func WithLoopInterval(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.loopInterval = d
		}
	}
}

// New creates a Runner. Every task's cadence starts at this instant.
func New(logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Runner {
	r := &Runner{
		clock:        clockwork.NewRealClock(),
		loopInterval: DefaultLoopInterval,
		logger:       logger,
		metrics:      metrics,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.start = r.clock.Now()
	return r
}

// Add registers a task. Its first firing is one interval after the
// runner was created.
func (r *Runner) Add(name string, interval time.Duration, action Action) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks = append(r.tasks, &task{
		name:    name,
		cadence: Cadence{Interval: interval, LastFired: r.start},
		action:  action,
	})
}

// Poll fires every due task once. A task's cadence restarts at the poll
// instant whether or not its action succeeded. It returns the number of
// tasks fired.
func (r *Runner) Poll(ctx context.Context) int {
	now := r.clock.Now()

	r.mu.Lock()
	var due []*task
	for _, t := range r.tasks {
		if t.cadence.Due(now) {
			t.cadence.LastFired = now
			due = append(due, t)
		}
	}
	r.mu.Unlock()

	for _, t := range due {
		if ctx.Err() != nil {
			break
		}
		r.fire(ctx, t)
	}
	return len(due)
}

func (r *Runner) fire(ctx context.Context, t *task) {
	if err := t.action(ctx); err != nil {
		r.logger.Warn("task failed", "task", t.name, "error", err)
		r.metrics.TaskRuns.WithLabelValues(t.name, "error").Inc()
		return
	}
	r.metrics.TaskRuns.WithLabelValues(t.name, "success").Inc()
}

// Run polls until the context is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Info("scheduler started", "tasks", len(r.Tasks()), "loop_interval", r.loopInterval)
	r.metrics.StationRunning.Set(1)
	defer r.metrics.StationRunning.Set(0)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("scheduler stopping", "reason", ctx.Err())
			return nil
		default:
		}

		r.Poll(ctx)

		if !sleepWithContext(ctx, r.clock, r.loopInterval) {
			r.logger.Info("scheduler stopping", "reason", ctx.Err())
			return nil
		}
	}
}

// Tasks returns the registered tasks in order.
func (r *Runner) Tasks() []TaskStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]TaskStatus, 0, len(r.tasks))
	for _, t := range r.tasks {
		out = append(out, TaskStatus{Name: t.name, Interval: t.cadence.Interval, LastFired: t.cadence.LastFired})
	}
	return out
}

func sleepWithContext(ctx context.Context, clock clockwork.Clock, d time.Duration) bool {
	timer := clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}
