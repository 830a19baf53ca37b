package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaTransport publishes events keyed by recipient so one user's
// notifications stay ordered within a partition.
type KafkaTransport struct {
	writer       *kafka.Writer
	writeTimeout time.Duration
}

// NewKafkaTransport builds a writer for topic. Retries are left to the
// failed notification state machine, so the writer makes a single attempt.
func NewKafkaTransport(brokers []string, topic string, writeTimeout time.Duration) (*KafkaTransport, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka: at least one broker required")
	}
	if topic == "" {
		return nil, fmt.Errorf("kafka: topic required")
	}
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: writeTimeout,
		MaxAttempts:  1,
		RequiredAcks: kafka.RequireOne,
	}
	return &KafkaTransport{writer: w, writeTimeout: writeTimeout}, nil
}

// Send writes the event and waits for the broker acknowledgement.
func (t *KafkaTransport) Send(ctx context.Context, event Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, t.writeTimeout)
	defer cancel()
	return t.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.RecipientID),
		Value: value,
		Time:  event.Timestamp,
	})
}

// Close flushes and closes the writer.
func (t *KafkaTransport) Close() error {
	return t.writer.Close()
}
