package outbox_poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/stl-ledger/internal/domain/ledger"
	"github.com/stl-ledger/internal/domain/outbox"
	"github.com/stl-ledger/internal/domain/shared"
	"github.com/stl-ledger/internal/platform/messaging/producers"
	"github.com/stl-ledger/internal/platform/metrics"
	"github.com/stl-ledger/internal/platform/resilience"
)

const eventTypeHeader = "event-type"

// EventPublisher delivers one outbox message
type EventPublisher interface {
	Publish(ctx context.Context, message *outbox.Message) error
}

// LedgerEventPublisher projects an outbox event into the read model and
// publishes it to Kafka, then marks the message processed. Both steps are
// idempotent so a message may be delivered more than once.
type LedgerEventPublisher struct {
	outboxRepo outbox.Repository
	views      ledger.ViewRepository
	producer   producers.MessagePublisher
	breaker    *resilience.Breaker
	metrics    metrics.LedgerMetrics
	logger     *slog.Logger
}

// NewLedgerEventPublisher creates a publisher. views may be nil when no read model is kept.
func NewLedgerEventPublisher(
	outboxRepo outbox.Repository,
	views ledger.ViewRepository,
	producer producers.MessagePublisher,
	breaker *resilience.Breaker,
	m metrics.LedgerMetrics,
	logger *slog.Logger,
) *LedgerEventPublisher {
	if m == nil {
		m = metrics.NoOpMetrics{}
	}
	return &LedgerEventPublisher{
		outboxRepo: outboxRepo,
		views:      views,
		producer:   producer,
		breaker:    breaker,
		metrics:    m,
		logger:     logger,
	}
}

func (p *LedgerEventPublisher) Publish(ctx context.Context, message *outbox.Message) error {
	event, err := message.GetEvent()
	if err != nil {
		p.logger.Error("Failed to unmarshal ledger event from outbox payload",
			"outbox_id", message.ID, "transaction_id", message.TransactionID, "error", err,
		)
		if updateErr := p.outboxRepo.MarkFailed(ctx, message.ID); updateErr != nil {
			p.logger.Error("Failed to mark undecodable outbox message", "outbox_id", message.ID, "error", updateErr)
		}
		p.metrics.RecordOutboxPublish(false)
		return fmt.Errorf("unmarshal payload for outbox %d failed: %w", message.ID, err)
	}

	logger := p.logger.With("outbox_id", message.ID, "event_type", string(event.Type), "transaction_id", event.TransactionID.String())
	if event.CorrelationID != "" {
		logger = logger.With("correlation_id", event.CorrelationID)
	}

	if err := p.project(ctx, event); err != nil {
		logger.Error("Failed to project ledger event", "error", err)
		p.metrics.RecordOutboxPublish(false)
		return fmt.Errorf("project event of outbox %d: %w", message.ID, err)
	}

	err = p.breaker.Execute(ctx, func(ctx context.Context) error {
		return p.producer.PublishRaw(ctx, message.PartitionKey(), message.Payload, map[string]string{
			eventTypeHeader: string(event.Type),
		})
	})
	if err != nil {
		logger.Error("Failed to publish ledger event", "breaker_state", p.breaker.State(), "error", err)
		p.metrics.RecordOutboxPublish(false)
		return fmt.Errorf("publish event of outbox %d: %w", message.ID, err)
	}

	if err := p.outboxRepo.MarkPublished(ctx, message.ID); err != nil {
		logger.Error("Failed to mark outbox message as PROCESSED", "error", err)
		return fmt.Errorf("event of outbox %d published, but marking it PROCESSED failed: %w", message.ID, err)
	}

	p.metrics.RecordOutboxPublish(true)
	logger.Debug("Ledger event published")
	return nil
}

// project applies event to the transaction read model
func (p *LedgerEventPublisher) project(ctx context.Context, event *ledger.Event) error {
	if p.views == nil {
		return nil
	}

	switch event.Type {
	case shared.EventTransactionCreated:
		if event.Transaction == nil {
			return errors.New("creation event without transaction")
		}
		view := ledger.NewTransactionView(event.Transaction, event.Participants, event.OccurredAt)
		if event.Status != nil {
			view.Status = event.Status.Status
			view.StatusSequence = event.Status.Sequence
		}
		return p.views.Upsert(ctx, view)
	case shared.EventStatusChanged:
		if event.Status == nil {
			return errors.New("status event without status entry")
		}
		return p.views.UpdateStatus(ctx, event.TransactionID, event.Status.Sequence, event.Status.Status)
	case shared.EventLockPlaced:
		if event.Lock == nil {
			return errors.New("lock event without lock")
		}
		return p.views.AddLock(ctx, event.TransactionID, ledger.NewLockView(event.Lock))
	default:
		// audit events only go to Kafka
		return nil
	}
}
