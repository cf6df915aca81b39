// Package display renders the station's status screen as text.
package display

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/couchcryptid/weather-station/internal/domain"
)

const (
	title       = "Weather (OpenWeatherMap):"
	placeholder = "---"
)

// Frame is one screen worth of labels, top to bottom.
type Frame struct {
	Date        string `json:"date"`
	Time        string `json:"time"`
	Description string `json:"description"`
	Temperature string `json:"temperature"`
	Pressure    string `json:"pressure"`
	Humidity    string `json:"humidity"`
	Wind        string `json:"wind"`
}

// Lines returns the frame as screen lines, including the static title.
func (f Frame) Lines() []string {
	return []string{
		f.Date,
		f.Time,
		strings.Repeat("-", len(title)),
		title,
		f.Description,
		f.Temperature,
		f.Pressure,
		f.Humidity,
		f.Wind,
	}
}

func (f Frame) String() string {
	return strings.Join(f.Lines(), "\n") + "\n"
}

// NewFrame builds the labels for a wall-clock instant and a record. The
// weather block shows fallback labels unless every slot is present.
func NewFrame(now time.Time, rec domain.WeatherRecord) Frame {
	local := domain.CentralEuropeanTime(now)
	f := Frame{
		Date: local.Format("02.01.2006"),
		Time: local.Format("15:04:05"),
	}

	if !rec.IsComplete() {
		f.Description = "No weather data"
		f.Temperature = "Temperature: " + placeholder
		f.Pressure = "Pressure: check Wi-Fi"
		f.Humidity = "Humidity: " + placeholder
		f.Wind = "Wind: " + placeholder
		return f
	}

	f.Description = *rec.Description
	f.Temperature = fmt.Sprintf("Temperature: %.1f °C", *rec.Temperature)
	f.Pressure = "Pressure: " + strconv.FormatFloat(*rec.Pressure, 'f', -1, 64) + " hPa"
	f.Humidity = fmt.Sprintf("Humidity: %.1f %%", *rec.Humidity)
	f.Wind = fmt.Sprintf("Wind: %.1f m/s", *rec.WindSpeed)
	return f
}

// Panel holds the current weather labels and writes a frame whenever the
// screen content changes.
type Panel struct {
	w io.Writer

	mu      sync.Mutex
	record  domain.WeatherRecord
	current Frame
	drawn   bool
}

// NewPanel creates a panel that renders to w.
func NewPanel(w io.Writer) *Panel {
	if w == nil {
		w = io.Discard
	}
	return &Panel{w: w}
}

// Publish replaces the weather labels and redraws at the observation time.
func (p *Panel) Publish(_ context.Context, obs domain.Observation) error {
	p.mu.Lock()
	p.record = obs.Record
	if obs.Err != nil {
		p.record = domain.EmptyRecord()
	}
	p.mu.Unlock()
	return p.Render(obs.ObservedAt)
}

// Render redraws the clock labels for now. Nothing is written when the
// frame is identical to the last one drawn.
func (p *Panel) Render(now time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	f := NewFrame(now, p.record)
	if p.drawn && f == p.current {
		return nil
	}
	p.current = f
	p.drawn = true

	if _, err := io.WriteString(p.w, f.String()+"\n"); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// Current returns the last frame drawn.
func (p *Panel) Current() Frame {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}
