package kafkabus

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"restaurant-pos/internal/common/config"
)

// Bus publishes to and reads from a single topic.
type Bus struct {
	brokers []string
	topic   string
	groupID string
	writer  *kafka.Writer
}

// New prepares a writer for cfg.Topic. groupID names this instance's
// consumer group; each instance uses its own so every one sees every event.
func New(cfg config.Kafka, groupID string) (*Bus, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka: no brokers configured")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka: topic is required")
	}
	return &Bus{
		brokers: cfg.Brokers,
		topic:   cfg.Topic,
		groupID: groupID,
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Brokers...),
			Topic:                  cfg.Topic,
			Balancer:               &kafka.LeastBytes{},
			BatchTimeout:           10 * time.Millisecond,
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: true,
		},
	}, nil
}

func (b *Bus) Publish(ctx context.Context, body []byte) error {
	if err := b.writer.WriteMessages(ctx, kafka.Message{Value: body, Time: time.Now().UTC()}); err != nil {
		return fmt.Errorf("kafka write: %w", err)
	}
	return nil
}

// Consume reads new messages from the topic until ctx ends.
func (b *Bus) Consume(ctx context.Context, handle func(body []byte)) error {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     b.brokers,
		Topic:       b.topic,
		GroupID:     b.groupID,
		StartOffset: kafka.LastOffset,
		MaxWait:     500 * time.Millisecond,
	})
	defer r.Close()

	for {
		m, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("kafka read: %w", err)
		}
		handle(m.Value)
	}
}

func (b *Bus) Close() error {
	return b.writer.Close()
}
