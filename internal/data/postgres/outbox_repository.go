package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stl-ledger/internal/domain/outbox"
	"github.com/stl-ledger/internal/domain/shared"
	"github.com/stl-ledger/internal/platform/persistence"
)

const outboxColumns = `id, event_type, transaction_id, payload, status, attempts, created_at, last_attempt_at`

const (
	insertOutboxMessage = `INSERT INTO ledger_outbox (event_type, transaction_id, payload, status, attempts, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	selectPendingOutbox = `SELECT ` + outboxColumns + ` FROM ledger_outbox
		WHERE status = 'PENDING'
		ORDER BY id ASC
		LIMIT $1`

	// only a pending message changes state, a settled one stays as it is
	settleOutboxMessage = `UPDATE ledger_outbox SET status = $1, last_attempt_at = $2
		WHERE id = $3 AND status = 'PENDING'`

	recordOutboxAttempt = `UPDATE ledger_outbox SET attempts = attempts + 1, last_attempt_at = $1
		WHERE id = $2 AND status = 'PENDING'`

	selectOutboxByTransaction = `SELECT ` + outboxColumns + ` FROM ledger_outbox
		WHERE transaction_id = $1
		ORDER BY id ASC`
)

// OutboxRepository stores ledger events next to the records they describe
type OutboxRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
	now     func() time.Time
}

func NewOutboxRepository(logger *slog.Logger, db *persistence.PostgresDB) outbox.Repository {
	return &OutboxRepository{querier: db.Pool(), logger: logger, now: nowUTC}
}

func nowUTC() time.Time {
	return time.Now().UTC()
}

func (r *OutboxRepository) WithTx(tx pgx.Tx) outbox.Repository {
	bound := *r
	bound.querier = tx
	return &bound
}

func (r *OutboxRepository) Create(ctx context.Context, message *outbox.Message) error {
	row := r.querier.QueryRow(ctx, insertOutboxMessage,
		message.EventType, message.TransactionID, []byte(message.Payload),
		message.Status, message.Attempts, message.CreatedAt,
	)
	if err := row.Scan(&message.ID); err != nil {
		r.logger.Error("Outbox insert failed",
			"transaction_id", message.TransactionID.String(),
			"event_type", string(message.EventType),
			"error", err,
		)
		return fmt.Errorf("insert outbox message: %w", err)
	}
	return nil
}

func (r *OutboxRepository) GetPending(ctx context.Context, limit int) ([]*outbox.Message, error) {
	rows, err := r.querier.Query(ctx, selectPendingOutbox, limit)
	if err != nil {
		r.logger.Error("Outbox pending query failed", "limit", limit, "error", err)
		return nil, fmt.Errorf("query pending outbox messages: %w", err)
	}
	return collectOutbox(rows)
}

func (r *OutboxRepository) MarkPublished(ctx context.Context, id int64) error {
	return r.settle(ctx, id, shared.OutboxStatusProcessed)
}

func (r *OutboxRepository) MarkFailed(ctx context.Context, id int64) error {
	return r.settle(ctx, id, shared.OutboxStatusFailedToPublish)
}

func (r *OutboxRepository) settle(ctx context.Context, id int64, status shared.OutboxStatus) error {
	tag, err := r.querier.Exec(ctx, settleOutboxMessage, status, r.now(), id)
	if err != nil {
		r.logger.Error("Outbox status update failed", "outbox_id", id, "status", string(status), "error", err)
		return fmt.Errorf("set outbox message %d to %s: %w", id, status, err)
	}
	if tag.RowsAffected() == 0 {
		return outbox.ErrMessageNotFound{ID: id}
	}
	return nil
}

// RecordAttempt counts one failed publication of a pending message
func (r *OutboxRepository) RecordAttempt(ctx context.Context, id int64) error {
	tag, err := r.querier.Exec(ctx, recordOutboxAttempt, r.now(), id)
	if err != nil {
		r.logger.Error("Outbox attempt update failed", "outbox_id", id, "error", err)
		return fmt.Errorf("record attempt of outbox message %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return outbox.ErrMessageNotFound{ID: id}
	}
	return nil
}

func (r *OutboxRepository) GetByTransactionID(ctx context.Context, transactionID uuid.UUID) ([]*outbox.Message, error) {
	rows, err := r.querier.Query(ctx, selectOutboxByTransaction, transactionID)
	if err != nil {
		r.logger.Error("Outbox transaction query failed", "transaction_id", transactionID.String(), "error", err)
		return nil, fmt.Errorf("query outbox messages of transaction %s: %w", transactionID, err)
	}
	return collectOutbox(rows)
}

func collectOutbox(rows pgx.Rows) ([]*outbox.Message, error) {
	defer rows.Close()
	var messages []*outbox.Message
	for rows.Next() {
		m := new(outbox.Message)
		var payload []byte
		if err := rows.Scan(&m.ID, &m.EventType, &m.TransactionID, &payload,
			&m.Status, &m.Attempts, &m.CreatedAt, &m.LastAttemptAt); err != nil {
			return nil, fmt.Errorf("scan outbox message: %w", err)
		}
		m.Payload = payload
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox messages: %w", err)
	}
	return messages, nil
}
