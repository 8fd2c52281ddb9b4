package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stl-ledger/internal/domain/transaction"
	"github.com/stl-ledger/internal/platform/persistence"
)

const participantColumns = `id, transaction_id, participant_type, participant_id, role, amount::text, created_at`

const (
	selectParticipantsByTransaction = `SELECT ` + participantColumns + ` FROM transaction_participants
		WHERE transaction_id = $1
		ORDER BY created_at ASC, id ASC`

	selectParticipantsByParticipant = `SELECT ` + participantColumns + ` FROM transaction_participants
		WHERE participant_id = $1
		ORDER BY created_at DESC`
)

// ParticipantRepository implements transaction.ParticipantRepository for PostgreSQL
type ParticipantRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

func NewParticipantRepository(logger *slog.Logger, db *persistence.PostgresDB) transaction.ParticipantRepository {
	return &ParticipantRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

func (r *ParticipantRepository) GetByTransactionID(ctx context.Context, transactionID uuid.UUID) ([]*transaction.Participant, error) {
	rows, err := r.querier.Query(ctx, selectParticipantsByTransaction, transactionID)
	if err != nil {
		r.logger.Error("Failed to get participants", "transaction_id", transactionID.String(), "error", err)
		return nil, fmt.Errorf("failed to get participants: %w", err)
	}
	return collectParticipants(rows)
}

func (r *ParticipantRepository) GetByParticipantID(ctx context.Context, participantID uuid.UUID) ([]*transaction.Participant, error) {
	rows, err := r.querier.Query(ctx, selectParticipantsByParticipant, participantID)
	if err != nil {
		r.logger.Error("Failed to get participations", "participant_id", participantID.String(), "error", err)
		return nil, fmt.Errorf("failed to get participations: %w", err)
	}
	return collectParticipants(rows)
}

func collectParticipants(rows pgx.Rows) ([]*transaction.Participant, error) {
	defer rows.Close()
	var out []*transaction.Participant
	for rows.Next() {
		var (
			p      transaction.Participant
			amount *string
		)
		if err := rows.Scan(&p.ID, &p.TransactionID, &p.ParticipantType, &p.ParticipantID, &p.Role, &amount, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		if amount != nil {
			d, err := decimal.NewFromString(*amount)
			if err != nil {
				return nil, fmt.Errorf("invalid stored participant amount %q: %w", *amount, err)
			}
			p.Amount = &d
		}
		p.CreatedAt = p.CreatedAt.UTC()
		out = append(out, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over participants: %w", err)
	}
	return out, nil
}
