// Package outbox_poller relays committed ledger events from the outbox to Kafka and the read model.
package outbox_poller

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/stl-ledger/internal/config"
	"github.com/stl-ledger/internal/domain/outbox"
)

// Poller processes pending outbox messages in id order
type Poller struct {
	outboxRepo       outbox.Repository
	publisher        EventPublisher
	logger           *slog.Logger
	pollInterval     time.Duration
	batchSize        int
	maxRetryAttempts int
}

func NewPoller(
	cfg *config.OutboxConfig,
	outboxRepo outbox.Repository,
	publisher EventPublisher,
	logger *slog.Logger,
) *Poller {
	return &Poller{
		outboxRepo:       outboxRepo,
		publisher:        publisher,
		logger:           logger,
		pollInterval:     cfg.PollingInterval,
		batchSize:        cfg.BatchSize,
		maxRetryAttempts: cfg.MaxRetryAttempts,
	}
}

// Start polls until ctx is canceled
func (p *Poller) Start(ctx context.Context) {
	p.logger.Info("Starting outbox poller",
		"poll_interval", p.pollInterval.String(),
		"batch_size", p.batchSize,
		"max_retry_attempts", p.maxRetryAttempts,
	)
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Outbox poller stopping")
			return
		case <-ticker.C:
			if _, err := p.ProcessBatch(ctx); err != nil {
				p.logger.Error("Outbox batch failed", "error", err)
			}
		}
	}
}

// ProcessBatch publishes up to one batch of pending messages and returns how many succeeded.
// Messages of one transaction are published in order: after a failure the rest of
// that transaction's messages wait for the next batch.
func (p *Poller) ProcessBatch(ctx context.Context) (int, error) {
	messages, err := p.outboxRepo.GetPending(ctx, p.batchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to get pending outbox messages: %w", err)
	}
	if len(messages) == 0 {
		return 0, nil
	}
	p.logger.Debug("Fetched pending outbox messages", "count", len(messages))

	published := 0
	blocked := make(map[string]struct{})
	for _, msg := range messages {
		if ctx.Err() != nil {
			return published, ctx.Err()
		}
		key := msg.PartitionKey()
		if _, ok := blocked[key]; ok {
			continue
		}

		if err := p.publisher.Publish(ctx, msg); err != nil {
			blocked[key] = struct{}{}
			p.recordFailure(ctx, msg, err)
			continue
		}
		published++
	}
	return published, nil
}

func (p *Poller) recordFailure(ctx context.Context, msg *outbox.Message, cause error) {
	logger := p.logger.With("outbox_id", msg.ID, "transaction_id", msg.TransactionID.String())
	logger.Warn("Failed to publish outbox message", "attempts", msg.Attempts, "error", cause)

	if err := p.outboxRepo.RecordAttempt(ctx, msg.ID); err != nil {
		logger.Error("Failed to record outbox attempt", "error", err)
		return
	}
	if !msg.ExhaustedAfterFailure(p.maxRetryAttempts) {
		return
	}

	logger.Error("Max publish attempts reached, marking outbox message FAILED_TO_PUBLISH", "attempts", msg.Attempts+1)
	if err := p.outboxRepo.MarkFailed(ctx, msg.ID); err != nil {
		logger.Error("Failed to mark outbox message FAILED_TO_PUBLISH", "error", err)
	}
}
