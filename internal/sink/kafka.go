package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/JakeFAU/keyword-crawler/internal/crawler"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka publishes one message per result, keyed by link.
type Kafka struct {
	writer messageWriter
}

// NewKafka creates a Kafka sink for the given brokers and topic.
func NewKafka(brokers []string, topic string) (*Kafka, error) {
	if len(brokers) == 0 || topic == "" {
		return nil, fmt.Errorf("kafka brokers and topic are required")
	}
	return &Kafka{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: false,
		},
	}, nil
}

// NewKafkaWithWriter builds a sink using a custom writer (tests).
func NewKafkaWithWriter(writer messageWriter) *Kafka {
	return &Kafka{writer: writer}
}

// Write publishes the batch in a single WriteMessages call.
func (k *Kafka) Write(ctx context.Context, _, _ string, results []crawler.Result) error {
	if len(results) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(results))
	now := time.Now().UTC()
	for _, r := range results {
		payload, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("marshal result: %w", err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(r.Link),
			Value: payload,
			Time:  now,
		})
	}
	if err := k.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("kafka write: %w", err)
	}
	return nil
}

// Close shuts down the underlying writer.
func (k *Kafka) Close() error {
	return k.writer.Close()
}
