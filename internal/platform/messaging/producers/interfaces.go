package producers

import (
	"context"

	"github.com/segmentio/kafka-go"
)

// KafkaWriter is the subset of *kafka.Writer the producers depend on
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// MessagePublisher writes ledger events keyed by transaction id.
// PublishRaw sends an already encoded payload, as staged in the outbox.
type MessagePublisher interface {
	Publish(ctx context.Context, key string, value interface{}) error
	PublishRaw(ctx context.Context, key string, payload []byte, headers map[string]string) error
	Close() error
}

// DeadLetterPublisher parks a command that can never be applied, with the reason it was rejected
type DeadLetterPublisher interface {
	PublishToDLQ(ctx context.Context, key string, originalMessageValue []byte, reason string) error
	Close() error
}

var (
	_ MessagePublisher    = (*EventProducer)(nil)
	_ DeadLetterPublisher = (*DLQProducer)(nil)
)
