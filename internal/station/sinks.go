package station

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/weather-station/internal/domain"
	"github.com/couchcryptid/weather-station/internal/observability"
)

// NamedSink labels a sink for logs and metrics.
type NamedSink struct {
	Name string
	Sink domain.Sink
}

// Sinks fans an observation out to every registered sink. A failing sink
// does not stop the others.
type Sinks struct {
	sinks   []NamedSink
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewSinks creates a fan-out over the given sinks.
func NewSinks(logger *slog.Logger, metrics *observability.Metrics, sinks ...NamedSink) *Sinks {
	return &Sinks{sinks: sinks, logger: logger, metrics: metrics}
}

// Add registers another sink.
func (s *Sinks) Add(name string, sink domain.Sink) {
	s.sinks = append(s.sinks, NamedSink{Name: name, Sink: sink})
}

// Names returns the registered sink names in order.
func (s *Sinks) Names() []string {
	names := make([]string, 0, len(s.sinks))
	for _, ns := range s.sinks {
		names = append(names, ns.Name)
	}
	return names
}

// Publish delivers obs to every sink and returns the joined failures.
func (s *Sinks) Publish(ctx context.Context, obs domain.Observation) error {
	var errs []error
	for _, ns := range s.sinks {
		if err := ns.Sink.Publish(ctx, obs); err != nil {
			s.logger.Warn("sink publish failed", "sink", ns.Name, "error", err)
			s.metrics.SinkErrors.WithLabelValues(ns.Name).Inc()
			errs = append(errs, fmt.Errorf("%s: %w", ns.Name, err))
		}
	}
	return errors.Join(errs...)
}
