package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stl-ledger/internal/domain/audit"
	"github.com/stl-ledger/internal/domain/shared"
	"github.com/stl-ledger/internal/platform/persistence"
)

const auditColumns = `id, sequence, transaction_id, actor_type, actor_id, action_type, metadata, previous_hash, hash, signature, created_at`

const (
	selectAuditByTransaction = `SELECT ` + auditColumns + ` FROM audit_log
		WHERE transaction_id = $1
		ORDER BY sequence ASC`

	selectAuditByActor = `SELECT ` + auditColumns + ` FROM audit_log
		WHERE actor_type = $1 AND actor_id = $2
		ORDER BY sequence DESC
		LIMIT $3 OFFSET $4`

	selectAuditBySequence = `SELECT ` + auditColumns + ` FROM audit_log WHERE sequence = $1`

	selectAuditAfterSequence = `SELECT ` + auditColumns + ` FROM audit_log
		WHERE sequence > $1 AND sequence <= $2
		ORDER BY sequence ASC
		LIMIT $3`
)

// AuditRepository implements audit.Repository for PostgreSQL
type AuditRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

func NewAuditRepository(logger *slog.Logger, db *persistence.PostgresDB) audit.Repository {
	return &AuditRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

func (r *AuditRepository) GetByTransactionID(ctx context.Context, transactionID uuid.UUID) ([]*audit.Entry, error) {
	rows, err := r.querier.Query(ctx, selectAuditByTransaction, transactionID)
	if err != nil {
		r.logger.Error("Failed to get audit trail", "transaction_id", transactionID.String(), "error", err)
		return nil, fmt.Errorf("failed to get audit trail: %w", err)
	}
	return collectAudit(rows)
}

func (r *AuditRepository) GetByActor(ctx context.Context, actorType shared.ActorType, actorID uuid.UUID, limit, offset int) ([]*audit.Entry, error) {
	rows, err := r.querier.Query(ctx, selectAuditByActor, actorType, actorID, limit, offset)
	if err != nil {
		r.logger.Error("Failed to get audit entries by actor", "actor_id", actorID.String(), "error", err)
		return nil, fmt.Errorf("failed to get audit entries by actor: %w", err)
	}
	return collectAudit(rows)
}

func (r *AuditRepository) GetBySequence(ctx context.Context, sequence int64) (*audit.Entry, error) {
	entry, err := scanAudit(r.querier.QueryRow(ctx, selectAuditBySequence, sequence))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, audit.ErrEntryNotFound{Sequence: sequence}
		}
		return nil, fmt.Errorf("failed to get audit entry at sequence %d: %w", sequence, err)
	}
	return entry, nil
}

func (r *AuditRepository) ListAfterSequence(ctx context.Context, after, to int64, limit int) ([]*audit.Entry, error) {
	rows, err := r.querier.Query(ctx, selectAuditAfterSequence, after, to, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries after sequence %d: %w", after, err)
	}
	return collectAudit(rows)
}

func collectAudit(rows pgx.Rows) ([]*audit.Entry, error) {
	defer rows.Close()
	var out []*audit.Entry
	for rows.Next() {
		entry, err := scanAudit(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over audit entries: %w", err)
	}
	return out, nil
}

func scanAudit(row scanner) (*audit.Entry, error) {
	var (
		entry    audit.Entry
		metadata []byte
	)
	err := row.Scan(
		&entry.ID,
		&entry.Sequence,
		&entry.TransactionID,
		&entry.ActorType,
		&entry.ActorID,
		&entry.ActionType,
		&metadata,
		&entry.PreviousHash,
		&entry.Hash,
		&entry.Signature,
		&entry.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if entry.Metadata, err = decodeFields(metadata); err != nil {
		return nil, err
	}
	entry.CreatedAt = entry.CreatedAt.UTC()
	return &entry, nil
}
