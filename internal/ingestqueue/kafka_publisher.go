package ingestqueue

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"
)

// KafkaPublisher publishes JobEvents to a Kafka topic for downstream
// indexing triggers. Used when KAFKA_BROKERS is configured;
// publish failures are logged by the caller and never fail the underlying
// job transition.
type KafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher constructs a publisher writing to topic across brokers.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{writer: &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	}}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event JobEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(event.JobID), Value: body})
}

// Close releases the underlying writer's connections.
func (p *KafkaPublisher) Close() error { return p.writer.Close() }
