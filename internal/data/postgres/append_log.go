package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stl-ledger/internal/domain/audit"
	"github.com/stl-ledger/internal/domain/chain"
	"github.com/stl-ledger/internal/domain/ledger"
	"github.com/stl-ledger/internal/domain/lock"
	"github.com/stl-ledger/internal/domain/outbox"
	"github.com/stl-ledger/internal/domain/shared"
	"github.com/stl-ledger/internal/domain/status"
	"github.com/stl-ledger/internal/domain/transaction"
	"github.com/stl-ledger/internal/platform/persistence"
)

const (
	selectChainTail = `SELECT sequence, hash, halted_at, halt_sequence, halt_record_id, halt_detail
		FROM chain_tails WHERE chain_id = $1`

	// the row lock taken by this update serializes appenders of one chain
	advanceChainTail = `UPDATE chain_tails SET sequence = $1, hash = $2
		WHERE chain_id = $3 AND sequence = $4 AND hash IS NOT DISTINCT FROM $5 AND halted_at IS NULL`

	haltChainTail = `UPDATE chain_tails SET halted_at = $1, halt_sequence = $2, halt_record_id = $3, halt_detail = $4
		WHERE chain_id = $5 AND halted_at IS NULL`

	selectHaltedChains = `SELECT chain_id, halt_sequence, halt_record_id, halt_detail
		FROM chain_tails WHERE halted_at IS NOT NULL ORDER BY chain_id`

	insertTransaction = `INSERT INTO transactions
		(id, sequence, type_id, amount, currency_code, payload, idempotency_key, previous_hash, hash, signature, created_at)
		VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8, $9, $10, $11)`

	insertParticipant = `INSERT INTO transaction_participants
		(id, transaction_id, participant_type, participant_id, role, amount, created_at)
		VALUES ($1, $2, $3, $4, $5, $6::numeric, $7)`

	insertStatusEntry = `INSERT INTO transaction_status_history (id, transaction_id, status, reason, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING sequence`

	insertAuditEntry = `INSERT INTO audit_log
		(id, sequence, transaction_id, actor_type, actor_id, action_type, metadata, previous_hash, hash, signature, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	insertLock = `INSERT INTO transaction_locks (id, transaction_id, lock_type, locked_by, reason, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
)

// AppendLog implements ledger.AppendLog on PostgreSQL. Every batch is one
// database transaction that moves the chain tails with a compare-and-set and
// writes the batch's events to the outbox.
type AppendLog struct {
	db      persistence.TxBeginner
	querier persistence.Querier
	outbox  *OutboxRepository
	logger  *slog.Logger
}

func NewAppendLog(logger *slog.Logger, db *persistence.PostgresDB) *AppendLog {
	return newAppendLog(logger, db.Pool(), db.Pool())
}

func newAppendLog(logger *slog.Logger, db persistence.TxBeginner, querier persistence.Querier) *AppendLog {
	return &AppendLog{
		db:      db,
		querier: querier,
		outbox:  &OutboxRepository{querier: querier, logger: logger, now: nowUTC},
		logger:  logger,
	}
}

// LatestInChain reads the committed tail of a chain together with its halt marker
func (l *AppendLog) LatestInChain(ctx context.Context, id chain.ID) (chain.Tail, error) {
	tail := chain.Tail{Chain: id}
	var (
		haltedAt     *time.Time
		haltSequence *int64
		haltRecordID *uuid.UUID
		haltDetail   *string
	)
	err := l.querier.QueryRow(ctx, selectChainTail, string(id)).
		Scan(&tail.Sequence, &tail.Hash, &haltedAt, &haltSequence, &haltRecordID, &haltDetail)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return chain.Tail{}, shared.ErrReferenceNotFound{Kind: "chain", Key: string(id)}
		}
		return chain.Tail{}, fmt.Errorf("failed to read %s chain tail: %w", id, err)
	}
	if haltedAt != nil {
		tail.Halt = &chain.Halt{At: *haltedAt}
		if haltSequence != nil {
			tail.Halt.Sequence = *haltSequence
		}
		if haltRecordID != nil {
			tail.Halt.RecordID = *haltRecordID
		}
		if haltDetail != nil {
			tail.Halt.Detail = *haltDetail
		}
	}
	return tail, nil
}

// HaltChain records the violation on the chain tail. Appends to a halted chain
// fail the tail compare-and-set until an operator clears the halt columns.
func (l *AppendLog) HaltChain(ctx context.Context, violation shared.ErrChainIntegrityViolation, at time.Time) error {
	var recordID *uuid.UUID
	if violation.RecordID != uuid.Nil {
		recordID = &violation.RecordID
	}
	result, err := l.querier.Exec(ctx, haltChainTail, at, violation.Sequence, recordID, violation.Detail, violation.Chain)
	if err != nil {
		return fmt.Errorf("failed to halt %s chain: %w", violation.Chain, err)
	}
	if result.RowsAffected() > 0 {
		l.logger.Warn("Chain halt persisted", "chain", violation.Chain, "sequence", violation.Sequence)
	}
	return nil
}

func (l *AppendLog) HaltedChains(ctx context.Context) ([]shared.ErrChainIntegrityViolation, error) {
	rows, err := l.querier.Query(ctx, selectHaltedChains)
	if err != nil {
		return nil, fmt.Errorf("failed to list halted chains: %w", err)
	}
	defer rows.Close()

	var halted []shared.ErrChainIntegrityViolation
	for rows.Next() {
		var (
			violation shared.ErrChainIntegrityViolation
			sequence  *int64
			recordID  *uuid.UUID
			detail    *string
		)
		if err := rows.Scan(&violation.Chain, &sequence, &recordID, &detail); err != nil {
			return nil, fmt.Errorf("failed to scan halted chain: %w", err)
		}
		if sequence != nil {
			violation.Sequence = *sequence
		}
		if recordID != nil {
			violation.RecordID = *recordID
		}
		if detail != nil {
			violation.Detail = *detail
		}
		halted = append(halted, violation)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list halted chains: %w", err)
	}
	return halted, nil
}

// AppendAtomic commits the batch or nothing. A moved tail is reported as
// shared.ErrConcurrentAppendConflict.
func (l *AppendLog) AppendAtomic(ctx context.Context, batch *ledger.Batch) error {
	if err := batch.Validate(); err != nil {
		return err
	}

	err := persistence.RunInTx(ctx, l.db, func(tx pgx.Tx) error {
		if batch.Transaction != nil {
			next, _ := batch.NextTransactionTail()
			if err := casTail(ctx, tx, *batch.ExpectTransactionTail, next); err != nil {
				return err
			}
			if err := l.insertTransaction(ctx, tx, batch.Transaction); err != nil {
				return err
			}
		}
		for _, p := range batch.Participants {
			if err := insertParticipantRow(ctx, tx, p); err != nil {
				return err
			}
		}
		for _, entry := range batch.StatusEntries {
			if err := insertStatusRow(ctx, tx, entry); err != nil {
				return err
			}
		}
		if next, ok := batch.NextAuditTail(); ok {
			if err := casTail(ctx, tx, *batch.ExpectAuditTail, next); err != nil {
				return err
			}
			for _, entry := range batch.AuditEntries {
				if err := insertAuditRow(ctx, tx, entry); err != nil {
					return err
				}
			}
		}
		for _, placed := range batch.Locks {
			if err := insertLockRow(ctx, tx, placed); err != nil {
				return err
			}
		}

		messages := l.outbox.WithTx(tx)
		for _, event := range batch.Events {
			message, err := outbox.NewMessage(event)
			if err != nil {
				return fmt.Errorf("failed to encode %s event: %w", event.Type, err)
			}
			if err := messages.Create(ctx, message); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	l.logger.Debug("Ledger batch committed",
		"status_entries", len(batch.StatusEntries),
		"audit_entries", len(batch.AuditEntries),
		"events", len(batch.Events),
	)
	return nil
}

func casTail(ctx context.Context, tx pgx.Tx, expected, next chain.Tail) error {
	result, err := tx.Exec(ctx, advanceChainTail, next.Sequence, next.Hash, string(expected.Chain), expected.Sequence, expected.Hash)
	if err != nil {
		return fmt.Errorf("failed to advance %s chain tail: %w", expected.Chain, err)
	}
	if result.RowsAffected() == 0 {
		return shared.ErrConcurrentAppendConflict{Chain: string(expected.Chain)}
	}
	return nil
}

func (l *AppendLog) insertTransaction(ctx context.Context, tx pgx.Tx, t *transaction.Transaction) error {
	payload, err := encodeFields(t.Payload)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, insertTransaction,
		t.ID,
		t.Sequence,
		t.TypeID,
		t.Amount.String(),
		t.CurrencyCode,
		payload,
		t.IdempotencyKey,
		t.PreviousHash,
		t.Hash,
		t.Signature,
		t.CreatedAt,
	)
	if err == nil {
		return nil
	}
	if constraint, ok := uniqueViolationOn(err); ok {
		switch constraint {
		case constraintIdempotencyKey:
			return shared.ErrDuplicateIdempotencyKey{Key: *t.IdempotencyKey}
		case constraintTransactionSequence:
			return shared.ErrConcurrentAppendConflict{Chain: string(chain.Transactions)}
		}
	}
	l.logger.Error("Failed to insert transaction", "id", t.ID.String(), "error", err)
	return fmt.Errorf("failed to insert transaction: %w", err)
}

func insertParticipantRow(ctx context.Context, tx pgx.Tx, p *transaction.Participant) error {
	var amount *string
	if p.Amount != nil {
		s := p.Amount.String()
		amount = &s
	}
	_, err := tx.Exec(ctx, insertParticipant, p.ID, p.TransactionID, p.ParticipantType, p.ParticipantID, p.Role, amount, p.CreatedAt)
	if err == nil {
		return nil
	}
	if constraint, ok := uniqueViolationOn(err); ok && constraint == constraintParticipantRole {
		return shared.NewValidationError(shared.CodeDuplicateParticipantRole,
			"Participant %s appears more than once as %s", p.ParticipantID, p.Role)
	}
	return fmt.Errorf("failed to insert participant: %w", err)
}

func insertStatusRow(ctx context.Context, tx pgx.Tx, entry *status.Entry) error {
	err := tx.QueryRow(ctx, insertStatusEntry, entry.ID, entry.TransactionID, entry.Status, entry.Reason, entry.CreatedAt).
		Scan(&entry.Sequence)
	if err != nil {
		return fmt.Errorf("failed to insert status entry: %w", err)
	}
	return nil
}

func insertAuditRow(ctx context.Context, tx pgx.Tx, entry *audit.Entry) error {
	metadata, err := encodeFields(entry.Metadata)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, insertAuditEntry,
		entry.ID,
		entry.Sequence,
		entry.TransactionID,
		entry.ActorType,
		entry.ActorID,
		entry.ActionType,
		metadata,
		entry.PreviousHash,
		entry.Hash,
		entry.Signature,
		entry.CreatedAt,
	)
	if err == nil {
		return nil
	}
	if constraint, ok := uniqueViolationOn(err); ok && constraint == constraintAuditSequence {
		return shared.ErrConcurrentAppendConflict{Chain: string(chain.Audit)}
	}
	return fmt.Errorf("failed to insert audit entry: %w", err)
}

func insertLockRow(ctx context.Context, tx pgx.Tx, l *lock.Lock) error {
	_, err := tx.Exec(ctx, insertLock, l.ID, l.TransactionID, l.LockType, l.LockedBy, l.Reason, l.CreatedAt, l.ExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to insert lock: %w", err)
	}
	return nil
}
