package alerts

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/scamshield/scam-detector/internal/domain"
	"github.com/scamshield/scam-detector/internal/ports"
)

// Compile-time interface check.
var _ ports.AlertPublisher = (*KafkaPublisher)(nil)

// messageWriter is the part of *kafkago.Writer the publisher needs
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// KafkaPublisher publishes alerts as JSON to a Kafka topic, keyed by tab
type KafkaPublisher struct {
	writer messageWriter
	topic  string
}

// NewKafkaPublisher creates a publisher writing to topic on the given brokers
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafkago.RequireAll,
	}
	return &KafkaPublisher{writer: w, topic: topic}
}

// Publish writes one alert message
func (p *KafkaPublisher) Publish(ctx context.Context, alert domain.Alert) error {
	value, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	msg := kafkago.Message{
		Key:   []byte(alert.TabID),
		Value: value,
		Headers: []kafkago.Header{
			{Key: "risk_level", Value: []byte(alert.RiskLevel)},
			{Key: "session_id", Value: []byte(alert.SessionID.String())},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka publish to %s: %w", p.topic, err)
	}
	return nil
}

// Close flushes and closes the writer
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
