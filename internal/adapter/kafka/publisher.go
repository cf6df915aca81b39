package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/weather-station/internal/config"
	"github.com/couchcryptid/weather-station/internal/domain"
)

// ObservationMessage is the JSON value of each published message.
type ObservationMessage struct {
	StationID  string               `json:"station_id"`
	Location   string               `json:"location"`
	ObservedAt time.Time            `json:"observed_at"`
	Weather    domain.WeatherRecord `json:"weather"`
}

// Publisher produces complete weather observations to a Kafka topic.
// It implements domain.Sink.
type Publisher struct {
	writer    *kafkago.Writer
	stationID string
	location  string
	logger    *slog.Logger
}

// NewPublisher creates a Kafka producer for the configured observation topic.
// location is the weather query the observations answer, as reported by the
// fetcher.
func NewPublisher(cfg *config.Config, location string, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Publisher{
		writer:    w,
		stationID: cfg.StationID,
		location:  location,
		logger:    logger,
	}
}

// Publish writes obs when it carries a complete record. Empty and partial
// observations are skipped; consumers only ever see full readings.
func (p *Publisher) Publish(ctx context.Context, obs domain.Observation) error {
	if !obs.HasData() {
		p.logger.Debug("kafka publish skipped, no complete record")
		return nil
	}
	msg, err := serializeToMessage(p.stationID, p.location, obs)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, msg)
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// serializeToMessage marshals an observation into a Kafka message keyed by station.
func serializeToMessage(stationID, location string, obs domain.Observation) (kafkago.Message, error) {
	data, err := json.Marshal(ObservationMessage{
		StationID:  stationID,
		Location:   location,
		ObservedAt: obs.ObservedAt.UTC(),
		Weather:    obs.Record,
	})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize observation: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(stationID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "condition", Value: []byte(*obs.Record.Condition)},
			{Key: "observed_at", Value: []byte(obs.ObservedAt.UTC().Format(time.RFC3339))},
		},
	}, nil
}
