// Command mockowm serves a scripted stand-in for the OpenWeatherMap current
// weather endpoint, for bench runs of the station without an API key or
// network. Each request takes the next step of the script, wrapping around.
//
// Usage:
//
//	go run ./cmd/mockowm -addr :8089 -script ok,partial,ok,unauthorized,slow
//
// then start the station with OWM_BASE_URL=http://localhost:8089.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
)

// Script steps.
const (
	stepOK           = "ok"
	stepPartial      = "partial"
	stepEmpty        = "empty"
	stepUnauthorized = "unauthorized"
	stepServerError  = "error"
	stepGarbage      = "garbage"
	stepSlow         = "slow"
)

var knownSteps = map[string]bool{
	stepOK: true, stepPartial: true, stepEmpty: true, stepUnauthorized: true,
	stepServerError: true, stepGarbage: true, stepSlow: true,
}

func main() {
	if err := run(); err != nil {
		slog.Error("mockowm failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", ":8089", "listen address")
	script := flag.String("script", stepOK, "comma-separated steps: ok, partial, empty, unauthorized, error, garbage, slow")
	delay := flag.Duration("slow-delay", 15*time.Second, "response delay for the slow step")
	flag.Parse()

	steps, err := parseScript(*script)
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	srv := &http.Server{
		Addr:              *addr,
		Handler:           newHandler(steps, *delay, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("mock openweathermap listening", "addr", *addr, "script", steps)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func parseScript(s string) ([]string, error) {
	var steps []string
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(strings.ToLower(p))
		if p == "" {
			continue
		}
		if !knownSteps[p] {
			return nil, fmt.Errorf("unknown step %q", p)
		}
		steps = append(steps, p)
	}
	if len(steps) == 0 {
		return nil, errors.New("empty script")
	}
	return steps, nil
}

type handler struct {
	steps  []string
	delay  time.Duration
	logger *slog.Logger

	mu   sync.Mutex
	next int
}

func newHandler(steps []string, delay time.Duration, logger *slog.Logger) http.Handler {
	h := &handler{steps: steps, delay: delay, logger: logger}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /data/2.5/weather", h.serveWeather)
	return mux
}

func (h *handler) step() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := h.steps[h.next%len(h.steps)]
	h.next++
	return s
}

func (h *handler) serveWeather(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("appid") == "" {
		sharedobs.WriteJSON(w, http.StatusUnauthorized, map[string]any{"cod": 401, "message": "Invalid API key."})
		return
	}

	step := h.step()
	h.logger.Info("weather request", "q", q.Get("q"), "units", q.Get("units"), "lang", q.Get("lang"), "step", step)

	switch step {
	case stepOK:
		sharedobs.WriteJSON(w, http.StatusOK, fullResponse(q.Get("q")))
	case stepPartial:
		resp := fullResponse(q.Get("q"))
		delete(resp, "wind")
		sharedobs.WriteJSON(w, http.StatusOK, resp)
	case stepEmpty:
		sharedobs.WriteJSON(w, http.StatusOK, map[string]any{})
	case stepUnauthorized:
		sharedobs.WriteJSON(w, http.StatusUnauthorized, map[string]any{"cod": 401, "message": "Invalid API key."})
	case stepServerError:
		sharedobs.WriteJSON(w, http.StatusInternalServerError, map[string]any{"cod": 500, "message": "Internal error"})
	case stepGarbage:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("{not json"))
	case stepSlow:
		select {
		case <-time.After(h.delay):
			sharedobs.WriteJSON(w, http.StatusOK, fullResponse(q.Get("q")))
		case <-r.Context().Done():
		}
	}
}

func fullResponse(location string) map[string]any {
	city, _, _ := strings.Cut(location, ",")
	return map[string]any{
		"name": city,
		"main": map[string]any{"temp": 18.4, "pressure": 1016, "humidity": 64},
		"wind": map[string]any{"speed": 3.1, "deg": 250},
		"weather": []map[string]any{
			{"main": "Clouds", "description": "Überwiegend bewölkt", "icon": "04d"},
		},
	}
}
