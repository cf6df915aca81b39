// Package rtc persists the station's real-time clock value to a file.
package rtc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/couchcryptid/weather-station/internal/domain"
)

// ErrNotSet is returned by Get before the first Set.
var ErrNotSet = errors.New("rtc not set")

// FileClock stores the last clock value as JSON. Writes replace the file
// atomically so a power cut leaves either the old or the new value.
type FileClock struct {
	path string
	mu   sync.Mutex
}

// NewFileClock creates a FileClock at path.
func NewFileClock(path string) *FileClock {
	return &FileClock{path: path}
}

// Set writes dt.
func (c *FileClock) Set(_ context.Context, dt domain.RTCDateTime) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := json.Marshal(dt)
	if err != nil {
		return fmt.Errorf("marshal rtc: %w", err)
	}

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create rtc directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".rtc-*")
	if err != nil {
		return fmt.Errorf("create rtc temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write rtc: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync rtc: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close rtc: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.path); err != nil {
		return fmt.Errorf("replace rtc: %w", err)
	}
	return nil
}

// Get returns the stored value.
func (c *FileClock) Get(_ context.Context) (domain.RTCDateTime, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.path)
	if errors.Is(err, fs.ErrNotExist) {
		return domain.RTCDateTime{}, ErrNotSet
	}
	if err != nil {
		return domain.RTCDateTime{}, fmt.Errorf("read rtc: %w", err)
	}

	var dt domain.RTCDateTime
	if err := json.Unmarshal(data, &dt); err != nil {
		return domain.RTCDateTime{}, fmt.Errorf("decode rtc: %w", err)
	}
	return dt, nil
}
