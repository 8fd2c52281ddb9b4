package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stl-ledger/internal/domain/lock"
	"github.com/stl-ledger/internal/platform/persistence"
)

const lockColumns = `id, transaction_id, lock_type, locked_by, COALESCE(reason, ''), created_at, expires_at`

const (
	selectLocksByTransaction = `SELECT ` + lockColumns + ` FROM transaction_locks
		WHERE transaction_id = $1
		ORDER BY created_at ASC`

	selectActiveLocks = `SELECT ` + lockColumns + ` FROM transaction_locks
		WHERE transaction_id = $1 AND (expires_at IS NULL OR expires_at > $2)
		ORDER BY created_at ASC`
)

// LockRepository implements lock.Repository for PostgreSQL
type LockRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

func NewLockRepository(logger *slog.Logger, db *persistence.PostgresDB) lock.Repository {
	return &LockRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

func (r *LockRepository) GetByTransactionID(ctx context.Context, transactionID uuid.UUID) ([]*lock.Lock, error) {
	rows, err := r.querier.Query(ctx, selectLocksByTransaction, transactionID)
	if err != nil {
		r.logger.Error("Failed to get locks", "transaction_id", transactionID.String(), "error", err)
		return nil, fmt.Errorf("failed to get locks: %w", err)
	}
	return collectLocks(rows)
}

func (r *LockRepository) GetActive(ctx context.Context, transactionID uuid.UUID, now time.Time) ([]*lock.Lock, error) {
	rows, err := r.querier.Query(ctx, selectActiveLocks, transactionID, now)
	if err != nil {
		r.logger.Error("Failed to get active locks", "transaction_id", transactionID.String(), "error", err)
		return nil, fmt.Errorf("failed to get active locks: %w", err)
	}
	return collectLocks(rows)
}

func collectLocks(rows pgx.Rows) ([]*lock.Lock, error) {
	defer rows.Close()
	var out []*lock.Lock
	for rows.Next() {
		var l lock.Lock
		if err := rows.Scan(&l.ID, &l.TransactionID, &l.LockType, &l.LockedBy, &l.Reason, &l.CreatedAt, &l.ExpiresAt); err != nil {
			return nil, fmt.Errorf("failed to scan lock: %w", err)
		}
		l.CreatedAt = l.CreatedAt.UTC()
		if l.ExpiresAt != nil {
			utc := l.ExpiresAt.UTC()
			l.ExpiresAt = &utc
		}
		out = append(out, &l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over locks: %w", err)
	}
	return out, nil
}
