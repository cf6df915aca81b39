package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/weather-station/internal/adapter/csvlog"
	"github.com/couchcryptid/weather-station/internal/adapter/gpio"
	httpadapter "github.com/couchcryptid/weather-station/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/weather-station/internal/adapter/kafka"
	mqttadapter "github.com/couchcryptid/weather-station/internal/adapter/mqtt"
	"github.com/couchcryptid/weather-station/internal/adapter/nmcli"
	ntpadapter "github.com/couchcryptid/weather-station/internal/adapter/ntp"
	"github.com/couchcryptid/weather-station/internal/adapter/openweathermap"
	"github.com/couchcryptid/weather-station/internal/adapter/rtc"
	"github.com/couchcryptid/weather-station/internal/adapter/sqlite"
	"github.com/couchcryptid/weather-station/internal/config"
	"github.com/couchcryptid/weather-station/internal/connectivity"
	"github.com/couchcryptid/weather-station/internal/display"
	"github.com/couchcryptid/weather-station/internal/observability"
	"github.com/couchcryptid/weather-station/internal/scheduler"
	"github.com/couchcryptid/weather-station/internal/station"
	"github.com/couchcryptid/weather-station/internal/timesync"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	// Wi-Fi link and status indicator.
	var link connectivity.Link
	switch cfg.WifiDriver {
	case "nmcli":
		if !nmcli.Available() {
			logger.Warn("nmcli not found on PATH, joins will fail")
		}
		link = nmcli.New(cfg.WifiInterface, nmcli.WithJoinWait(cfg.WifiMaxWait))
	default:
		link = connectivity.NewHostLink()
	}

	var indicator connectivity.Indicator = gpio.NewLogIndicator(logger)
	if cfg.LEDPin != "" {
		led, err := gpio.Open(cfg.LEDPin, logger)
		if err != nil {
			logger.Warn("status led unavailable, logging instead", "pin", cfg.LEDPin, "error", err)
		} else {
			indicator = led
			logger.Info("status led enabled", "pin", cfg.LEDPin)
		}
	}
	clock := clockwork.NewRealClock()
	conn := connectivity.NewManager(link, cfg.WifiCredentials, logger, metrics,
		connectivity.WithIndicator(indicator), connectivity.WithClock(clock))

	// The syncer is the station's time source: host clock plus the last
	// NTP correction, floored at the saved RTC value after a restart.
	syncer := timesync.NewSyncer(
		ntpadapter.NewSource(cfg.NTPServer, cfg.NTPTimeout, ntpadapter.WithClock(clock)),
		rtc.NewFileClock(cfg.RTCPath),
		logger, metrics,
		timesync.WithClock(clock),
	)

	// Weather source, cached when OWM_CACHE_TTL > 0.
	client := openweathermap.NewClient(openweathermap.Options{
		APIKey:      cfg.OWMAPIKey,
		BaseURL:     cfg.OWMBaseURL,
		City:        cfg.OWMCity,
		CountryCode: cfg.OWMCountryCode,
		Units:       cfg.OWMUnits,
		Lang:        cfg.OWMLang,
		Timeout:     cfg.OWMTimeout,
		Clock:       clock,
	}, logger, metrics)
	var fetcher station.Fetcher = client
	if cfg.OWMCacheTTL > 0 {
		fetcher = openweathermap.NewCachedFetcher(client, cfg.OWMCacheTTL, clock)
		logger.Info("weather cache enabled", "ttl", cfg.OWMCacheTTL)
	}
	logger.Info("weather source", "location", client.Location(), "units", cfg.OWMUnits)

	displayOut, closeDisplay, err := openDisplayOutput(cfg.DisplayOutput)
	if err != nil {
		logger.Error("failed to open display output", "error", err)
		os.Exit(1)
	}
	defer closeDisplay()
	panel := display.NewPanel(displayOut)

	// Sinks. The CSV history is always on; the others are opt-in.
	csvLogger := csvlog.New(cfg.CSVLogPath)
	sinks := station.NewSinks(logger, metrics, station.NamedSink{Name: "csv", Sink: csvLogger})
	logger.Info("csv history enabled", "path", csvLogger.Path())

	var closers []func()
	if cfg.SQLitePath != "" {
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			logger.Error("failed to open sqlite history", "error", err)
			os.Exit(1)
		}
		closers = append(closers, func() {
			if err := db.Close(); err != nil {
				logger.Error("sqlite close error", "error", err)
			}
		})
		sinks.Add("sqlite", sqlite.NewStore(db, cfg.StationID, logger))
		logger.Info("sqlite history enabled", "path", cfg.SQLitePath)
	}
	if len(cfg.KafkaBrokers) > 0 {
		publisher := kafkaadapter.NewPublisher(cfg, client.Location(), logger)
		closers = append(closers, func() {
			if err := publisher.Close(); err != nil {
				logger.Error("kafka publisher close error", "error", err)
			}
		})
		sinks.Add("kafka", publisher)
		logger.Info("kafka publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}
	var mqttPublisher *mqttadapter.Publisher
	if cfg.MQTTBroker != "" {
		mqttPublisher, err = mqttadapter.NewPublisher(cfg, logger)
		if err != nil {
			logger.Error("failed to create mqtt publisher", "error", err)
			os.Exit(1)
		}
		closers = append(closers, mqttPublisher.Close)
		sinks.Add("mqtt", mqttPublisher)
		logger.Info("mqtt publishing enabled", "broker", cfg.MQTTBroker, "port", cfg.MQTTPort)
	}

	logger.Info("observation sinks", "sinks", sinks.Names())

	st := station.New(station.Components{
		Conn:    conn,
		Syncer:  syncer,
		Fetcher: fetcher,
		Screen:  panel,
		Sinks:   sinks,
	}, settingsFromConfig(cfg), logger, metrics)

	runner := scheduler.New(logger, metrics, scheduler.WithLoopInterval(cfg.LoopInterval), scheduler.WithClock(clock))
	st.Schedule(runner)

	srv := httpadapter.NewServer(cfg.HTTPAddr, st, st, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	if mqttPublisher != nil {
		go func() {
			if err := mqttPublisher.Connect(ctx); err != nil && ctx.Err() == nil {
				logger.Warn("mqtt initial connect failed", "error", err)
			}
		}()
	}

	// Boot, then hand over to the task loop.
	go func() {
		if err := st.Boot(ctx); err != nil {
			return
		}
		if err := runner.Run(ctx); err != nil {
			logger.Error("scheduler error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	for _, c := range closers {
		c()
	}

	logger.Info("shutdown complete")
}

func settingsFromConfig(cfg *config.Config) station.Settings {
	s := station.DefaultSettings()
	s.Policy.MaxRetries = cfg.WifiMaxRetries
	s.Policy.RetryDelay = cfg.WifiRetryDelay
	s.Policy.MaxWait = cfg.WifiMaxWait
	s.DisplayInterval = cfg.DisplayInterval
	s.WeatherInterval = cfg.WeatherInterval
	s.WifiCheckInterval = cfg.WifiCheckInterval
	s.NTPSyncInterval = cfg.NTPSyncInterval
	return s
}

func openDisplayOutput(target string) (io.Writer, func(), error) {
	switch target {
	case "", "stderr":
		return os.Stderr, func() {}, nil
	case "stdout":
		return os.Stdout, func() {}, nil
	case "none":
		return io.Discard, func() {}, nil
	}
	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", target, err)
	}
	return f, func() { _ = f.Close() }, nil
}
