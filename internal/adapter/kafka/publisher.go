// Package kafka publishes ingested fire detections to a Kafka topic for
// downstream consumers. The publisher is optional and only wired in when
// brokers are configured.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/jillmpla/south-carolina-fires/internal/domain"
)

// Publisher produces detection messages to a Kafka topic.
// It implements pipeline.Publisher.
type Publisher struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewPublisher creates a Kafka producer for the configured detections topic.
func NewPublisher(brokers []string, topic string, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Publisher{writer: w, logger: logger}
}

// PublishDetections serializes and publishes a batch of detections in a
// single WriteMessages call for efficiency.
func (p *Publisher) PublishDetections(ctx context.Context, records []domain.Detection) error {
	if len(records) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(records))
	for i := range records {
		msg, err := serializeToMessage(records[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	return p.writer.WriteMessages(ctx, msgs...)
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// serializeToMessage marshals a Detection into a Kafka message keyed by its
// natural key, so replays of the same detection land on the same partition.
func serializeToMessage(d domain.Detection) (kafkago.Message, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize detection: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(d.NaturalKey()),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "satellite", Value: []byte(d.Satellite)},
			{Key: "acq_date", Value: []byte(d.AcqDate)},
		},
	}, nil
}
