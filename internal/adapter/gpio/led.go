// Package gpio drives the connection status LED.
package gpio

import (
	"fmt"
	"log/slog"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// LED blinks while a network join is pending, stays on once connected and
// goes dark when every attempt failed. It implements connectivity.Indicator.
type LED struct {
	pin    gpio.PinOut
	logger *slog.Logger

	mu    sync.Mutex
	level gpio.Level
}

// Open initializes the host drivers and claims the named pin (e.g. "GPIO17").
func Open(name string, logger *slog.Logger) (*LED, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("host init: %w", err)
	}
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("gpio pin %q not found", name)
	}
	return NewLED(pin, logger), nil
}

// NewLED wraps an output pin and switches it off.
func NewLED(pin gpio.PinOut, logger *slog.Logger) *LED {
	l := &LED{pin: pin, logger: logger}
	l.set(gpio.Low)
	return l
}

// Waiting toggles the LED once.
func (l *LED) Waiting() {
	l.mu.Lock()
	next := !l.level
	l.mu.Unlock()
	l.set(next)
}

// Succeeded turns the LED on.
func (l *LED) Succeeded() { l.set(gpio.High) }

// Failed turns the LED off.
func (l *LED) Failed() { l.set(gpio.Low) }

func (l *LED) set(level gpio.Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.pin.Out(level); err != nil {
		l.logger.Warn("status led write failed", "pin", l.pin.Name(), "error", err)
		return
	}
	l.level = level
}

// LogIndicator reports connect progress in the log, for boards without an LED.
type LogIndicator struct {
	logger *slog.Logger
}

// NewLogIndicator creates a LogIndicator.
func NewLogIndicator(logger *slog.Logger) *LogIndicator {
	return &LogIndicator{logger: logger}
}

func (i *LogIndicator) Waiting()   { i.logger.Debug("waiting for wifi association") }
func (i *LogIndicator) Succeeded() { i.logger.Info("wifi indicator on") }
func (i *LogIndicator) Failed()    { i.logger.Warn("wifi indicator off") }
