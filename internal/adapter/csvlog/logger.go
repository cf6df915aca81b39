// Package csvlog appends every weather observation to a CSV history file.
package csvlog

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/couchcryptid/weather-station/internal/domain"
)

// Header is the first line of a new log file.
var Header = []string{"timestamp", "temp_owm", "pressure_owm", "humi_owm", "windspeed_owm", "winddeg_owm", "weather_desc"}

// TimestampLayout formats the local wall time of each row.
const TimestampLayout = "2006-01-02 15:04:05"

// Logger writes one row per observation, including empty ones, so gaps in
// connectivity stay visible in the history.
type Logger struct {
	path string
	mu   sync.Mutex
}

// New creates a Logger for path. The directory is created on first write.
func New(path string) *Logger {
	return &Logger{path: path}
}

// Path returns the file being written.
func (l *Logger) Path() string { return l.path }

func (l *Logger) Publish(_ context.Context, obs domain.Observation) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}

	writeHeader := false
	if _, err := os.Stat(l.path); errors.Is(err, fs.ErrNotExist) {
		writeHeader = true
	} else if err != nil {
		return fmt.Errorf("stat log file: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}

	w := csv.NewWriter(f)
	if writeHeader {
		_ = w.Write(Header)
	}
	_ = w.Write(Row(obs))
	w.Flush()

	if err := w.Error(); err != nil {
		_ = f.Close()
		return fmt.Errorf("write log row: %w", err)
	}
	return f.Close()
}

// Row renders an observation as CSV fields. Empty slots become empty fields.
func Row(obs domain.Observation) []string {
	rec := obs.Record
	return []string{
		domain.CentralEuropeanTime(obs.ObservedAt).Format(TimestampLayout),
		formatFloat(rec.Temperature),
		formatFloat(rec.Pressure),
		formatFloat(rec.Humidity),
		formatFloat(rec.WindSpeed),
		formatFloat(rec.WindDirection),
		formatString(rec.Description),
	}
}

// ReadAll parses a log file back into rows, header excluded.
func ReadAll(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse log file: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	if strings.Join(rows[0], ",") != strings.Join(Header, ",") {
		return nil, fmt.Errorf("unexpected header %q", rows[0])
	}
	return rows[1:], nil
}

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func formatString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
