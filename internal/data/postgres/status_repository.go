package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stl-ledger/internal/domain/status"
	"github.com/stl-ledger/internal/platform/persistence"
)

const statusColumns = `id, sequence, transaction_id, status, COALESCE(reason, ''), created_at`

const (
	selectLatestStatus = `SELECT ` + statusColumns + ` FROM transaction_status_history
		WHERE transaction_id = $1
		ORDER BY sequence DESC
		LIMIT 1`

	selectStatusHistory = `SELECT ` + statusColumns + ` FROM transaction_status_history
		WHERE transaction_id = $1
		ORDER BY sequence ASC`
)

// StatusRepository implements status.Repository for PostgreSQL
type StatusRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

func NewStatusRepository(logger *slog.Logger, db *persistence.PostgresDB) status.Repository {
	return &StatusRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

func (r *StatusRepository) GetLatest(ctx context.Context, transactionID uuid.UUID) (*status.Entry, error) {
	entry, err := scanStatus(r.querier.QueryRow(ctx, selectLatestStatus, transactionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("Failed to get latest status", "transaction_id", transactionID.String(), "error", err)
		return nil, fmt.Errorf("failed to get latest status: %w", err)
	}
	return entry, nil
}

func (r *StatusRepository) GetHistory(ctx context.Context, transactionID uuid.UUID) ([]*status.Entry, error) {
	rows, err := r.querier.Query(ctx, selectStatusHistory, transactionID)
	if err != nil {
		r.logger.Error("Failed to get status history", "transaction_id", transactionID.String(), "error", err)
		return nil, fmt.Errorf("failed to get status history: %w", err)
	}
	defer rows.Close()

	var history []*status.Entry
	for rows.Next() {
		entry, err := scanStatus(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan status entry: %w", err)
		}
		history = append(history, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over status history: %w", err)
	}
	return history, nil
}

func scanStatus(row scanner) (*status.Entry, error) {
	var entry status.Entry
	if err := row.Scan(&entry.ID, &entry.Sequence, &entry.TransactionID, &entry.Status, &entry.Reason, &entry.CreatedAt); err != nil {
		return nil, err
	}
	entry.CreatedAt = entry.CreatedAt.UTC()
	return &entry, nil
}
