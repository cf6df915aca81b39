package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/weather-station/internal/config"
	"github.com/couchcryptid/weather-station/internal/domain"
)

const publishTimeout = 5 * time.Second

var errNotConnected = errors.New("mqtt client not connected")

// WeatherMessage is the JSON payload on stations/{id}/weather.
type WeatherMessage struct {
	StationID     string    `json:"station_id"`
	Timestamp     time.Time `json:"timestamp"`
	Temperature   *float64  `json:"temperature_c,omitempty"`
	Pressure      *float64  `json:"pressure_hpa,omitempty"`
	Humidity      *float64  `json:"humidity_pct,omitempty"`
	WindSpeed     *float64  `json:"wind_speed_ms,omitempty"`
	WindDirection *float64  `json:"wind_deg,omitempty"`
	Description   *string   `json:"description,omitempty"`
	Condition     *string   `json:"condition,omitempty"`
	Icon          *string   `json:"icon,omitempty"`
}

// StationHealth is the retained payload on stations/{id}/health.
type StationHealth struct {
	StationID string    `json:"station_id"`
	LastSeen  time.Time `json:"last_seen"`
	Healthy   bool      `json:"healthy"`
}

// Publisher sends complete observations to an MQTT broker. It implements
// domain.Sink.
type Publisher struct {
	client    mqtt.Client
	stationID string
	clock     clockwork.Clock
	logger    *slog.Logger

	mu        sync.RWMutex
	connected bool

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewPublisher creates a publisher for the configured broker. The broker's
// last will marks the station unhealthy if the connection drops.
func NewPublisher(cfg *config.Config, logger *slog.Logger) (*Publisher, error) {
	p := newPublisher(nil, cfg.StationID, logger)

	will, err := json.Marshal(StationHealth{StationID: cfg.StationID, Healthy: false})
	if err != nil {
		return nil, fmt.Errorf("marshal will: %w", err)
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.MQTTBroker, cfg.MQTTPort))
	opts.SetClientID(cfg.MQTTClientID)
	opts.SetCleanSession(true)
	opts.SetBinaryWill(healthTopic(cfg.StationID), will, 1, true)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)

	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		p.setConnected(true)
		logger.Info("mqtt connected", "broker", cfg.MQTTBroker, "port", cfg.MQTTPort)
		go func() {
			if err := p.PublishHealth(true); err != nil {
				logger.Warn("mqtt health publish failed", "error", err)
			}
		}()
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		p.setConnected(false)
		logger.Warn("mqtt connection lost", "error", err)
	})

	p.client = mqtt.NewClient(opts)
	return p, nil
}

func newPublisher(client mqtt.Client, stationID string, logger *slog.Logger) *Publisher {
	return &Publisher{
		client:    client,
		stationID: stationID,
		clock:     clockwork.NewRealClock(),
		logger:    logger,
		stopCh:    make(chan struct{}),
	}
}

// Connect waits for the initial broker connection. It respects ctx and Close.
func (p *Publisher) Connect(ctx context.Context) error {
	select {
	case <-p.stopCh:
		return errors.New("mqtt publisher stopped")
	default:
	}

	if p.IsConnected() {
		return nil
	}

	token := p.client.Connect()

	const poll = 200 * time.Millisecond
	for {
		if token.WaitTimeout(poll) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("mqtt connect: %w", err)
			}
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.stopCh:
			return errors.New("mqtt publisher stopped")
		default:
		}
	}
}

// Publish sends obs when it carries a complete record; anything else is skipped.
func (p *Publisher) Publish(_ context.Context, obs domain.Observation) error {
	if !obs.HasData() {
		return nil
	}
	rec := obs.Record
	return p.publish(weatherTopic(p.stationID), false, WeatherMessage{
		StationID:     p.stationID,
		Timestamp:     obs.ObservedAt.UTC(),
		Temperature:   rec.Temperature,
		Pressure:      rec.Pressure,
		Humidity:      rec.Humidity,
		WindSpeed:     rec.WindSpeed,
		WindDirection: rec.WindDirection,
		Description:   rec.Description,
		Condition:     rec.Condition,
		Icon:          rec.Icon,
	})
}

// PublishHealth updates the retained health message.
func (p *Publisher) PublishHealth(healthy bool) error {
	return p.publish(healthTopic(p.stationID), true, StationHealth{
		StationID: p.stationID,
		LastSeen:  p.clock.Now().UTC(),
		Healthy:   healthy,
	})
}

func (p *Publisher) publish(topic string, retained bool, payload any) error {
	if !p.IsConnected() {
		return errNotConnected
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	token := p.client.Publish(topic, 1, retained, data)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish timeout for topic %s", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}

	p.logger.Debug("mqtt published", "topic", topic, "retained", retained)
	return nil
}

// IsConnected reports whether the broker connection is up.
func (p *Publisher) IsConnected() bool {
	p.mu.RLock()
	connected := p.connected
	p.mu.RUnlock()
	return connected && p.client.IsConnected()
}

// Close marks the station unhealthy and disconnects. Safe to call twice.
func (p *Publisher) Close() {
	p.stopOnce.Do(func() {
		close(p.stopCh)
		if p.IsConnected() {
			if err := p.PublishHealth(false); err != nil {
				p.logger.Warn("mqtt health publish failed", "error", err)
			}
		}
		if p.client != nil {
			p.client.Disconnect(250)
		}
		p.setConnected(false)
		p.logger.Info("mqtt disconnected")
	})
}

func (p *Publisher) setConnected(v bool) {
	p.mu.Lock()
	p.connected = v
	p.mu.Unlock()
}

func weatherTopic(stationID string) string { return fmt.Sprintf("stations/%s/weather", stationID) }

func healthTopic(stationID string) string { return fmt.Sprintf("stations/%s/health", stationID) }
