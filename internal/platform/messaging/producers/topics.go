package producers

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	topicProbeAttempts = 5
	topicProbeDelay    = 2 * time.Second
)

// TopicAdmin is the part of kafka.Conn used to provision topics
type TopicAdmin interface {
	ReadPartitions(topics ...string) ([]kafka.Partition, error)
	CreateTopics(topics ...kafka.TopicConfig) error
}

// ensureTopic creates topic when no partition of it can be read
func ensureTopic(admin TopicAdmin, topic string, partitions, replication int, logger *slog.Logger) error {
	return ensureTopicWithDelay(admin, topic, partitions, replication, topicProbeDelay, logger)
}

func ensureTopicWithDelay(admin TopicAdmin, topic string, partitions, replication int, delay time.Duration, logger *slog.Logger) error {
	var (
		found []kafka.Partition
		err   error
	)
	for attempt := 1; attempt <= topicProbeAttempts; attempt++ {
		found, err = admin.ReadPartitions(topic)
		if err == nil {
			break
		}
		logger.Warn("Failed to read topic partitions, retrying", "topic", topic, "attempt", attempt, "error", err)
		time.Sleep(delay)
	}

	if len(found) > 0 {
		logger.Info("Kafka topic already exists", "topic", topic, "partitions", len(found))
		return nil
	}

	cfg := kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     max(partitions, 1),
		ReplicationFactor: max(replication, 1),
	}
	logger.Info("Creating Kafka topic", "topic", topic, "partitions", cfg.NumPartitions, "replication", cfg.ReplicationFactor)
	if err := admin.CreateTopics(cfg); err != nil {
		return fmt.Errorf("failed to create kafka topic %s: %w", topic, err)
	}
	return nil
}
