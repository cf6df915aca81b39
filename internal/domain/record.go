package domain

import (
	"context"
	"time"
)

// WeatherRecord is the flat result of one weather API call. Nil slots were
// absent from the response.
//
// The seven tuple slots are everything up to Icon. WindDirection rides
// along for the data logger but takes no part in completeness checks.
type WeatherRecord struct {
	Temperature *float64 `json:"temperature,omitempty"` // °C with metric units
	Pressure    *float64 `json:"pressure,omitempty"`    // hPa
	Humidity    *float64 `json:"humidity,omitempty"`    // %
	WindSpeed   *float64 `json:"wind_speed,omitempty"`  // m/s with metric units
	Description *string  `json:"description,omitempty"`
	Condition   *string  `json:"condition,omitempty"`
	Icon        *string  `json:"icon,omitempty"`

	WindDirection *float64 `json:"wind_direction,omitempty"` // degrees
}

// RecordArity is the number of tuple slots in a WeatherRecord.
const RecordArity = 7

// EmptyRecord returns the all-empty sentinel.
func EmptyRecord() WeatherRecord {
	return WeatherRecord{}
}

// Fields returns the slots in tuple order. Empty slots are untyped nil so
// callers can test them with == nil.
func (r WeatherRecord) Fields() []any {
	out := make([]any, 0, RecordArity)
	for _, f := range []*float64{r.Temperature, r.Pressure, r.Humidity, r.WindSpeed} {
		if f == nil {
			out = append(out, nil)
			continue
		}
		out = append(out, *f)
	}
	for _, s := range []*string{r.Description, r.Condition, r.Icon} {
		if s == nil {
			out = append(out, nil)
			continue
		}
		out = append(out, *s)
	}
	return out
}

// IsEmpty reports whether the record is the "no data" sentinel.
// WindDirection is outside the tuple and does not count.
func (r WeatherRecord) IsEmpty() bool {
	for _, f := range r.Fields() {
		if f != nil {
			return false
		}
	}
	return true
}

// IsComplete reports whether every tuple slot is set.
func (r WeatherRecord) IsComplete() bool {
	for _, f := range r.Fields() {
		if f == nil {
			return false
		}
	}
	return true
}

// Observation is one weather refresh as seen by sinks: the record, when it
// was taken, and why it is empty if it is.
type Observation struct {
	Record     WeatherRecord
	ObservedAt time.Time
	Err        error
}

// HasData reports whether the observation carries a complete record.
func (o Observation) HasData() bool {
	return o.Err == nil && o.Record.IsComplete()
}

// NewObservation stamps a record with at. A failed fetch never carries a
// partial record.
func NewObservation(rec WeatherRecord, err error, at time.Time) Observation {
	if err != nil {
		rec = EmptyRecord()
	}
	return Observation{Record: rec, ObservedAt: at, Err: err}
}

// Sink consumes observations (display, file logger, publishers).
type Sink interface {
	Publish(ctx context.Context, obs Observation) error
}

// Float returns a pointer to v. Handy for building records in tests and adapters.
func Float(v float64) *float64 { return &v }

// String returns a pointer to s.
func String(s string) *string { return &s }
