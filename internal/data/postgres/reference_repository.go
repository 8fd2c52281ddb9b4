package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stl-ledger/internal/domain/reference"
	"github.com/stl-ledger/internal/domain/shared"
	"github.com/stl-ledger/internal/platform/persistence"
)

const (
	selectCurrency         = `SELECT code, name, COALESCE(symbol, ''), precision FROM currencies WHERE code = $1`
	selectCurrencies       = `SELECT code, name, COALESCE(symbol, ''), precision FROM currencies ORDER BY code`
	selectTransactionType  = `SELECT id, name, COALESCE(description, '') FROM transaction_types WHERE id = $1`
	selectTransactionTypes = `SELECT id, name, COALESCE(description, '') FROM transaction_types ORDER BY name`
)

// ReferenceRepository implements reference.Store for PostgreSQL
type ReferenceRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

func NewReferenceRepository(logger *slog.Logger, db *persistence.PostgresDB) reference.Store {
	return &ReferenceRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

func (r *ReferenceRepository) GetCurrency(ctx context.Context, code string) (*reference.Currency, error) {
	var c reference.Currency
	err := r.querier.QueryRow(ctx, selectCurrency, code).Scan(&c.Code, &c.Name, &c.Symbol, &c.Precision)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrReferenceNotFound{Kind: "currency", Key: code}
		}
		r.logger.Error("Failed to get currency", "code", code, "error", err)
		return nil, fmt.Errorf("failed to get currency: %w", err)
	}
	return &c, nil
}

func (r *ReferenceRepository) GetTransactionType(ctx context.Context, id uuid.UUID) (*reference.TransactionType, error) {
	var t reference.TransactionType
	err := r.querier.QueryRow(ctx, selectTransactionType, id).Scan(&t.ID, &t.Name, &t.Description)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrReferenceNotFound{Kind: "transaction_type", Key: id.String()}
		}
		r.logger.Error("Failed to get transaction type", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get transaction type: %w", err)
	}
	return &t, nil
}

func (r *ReferenceRepository) ListCurrencies(ctx context.Context) ([]*reference.Currency, error) {
	rows, err := r.querier.Query(ctx, selectCurrencies)
	if err != nil {
		return nil, fmt.Errorf("failed to list currencies: %w", err)
	}
	defer rows.Close()

	var out []*reference.Currency
	for rows.Next() {
		var c reference.Currency
		if err := rows.Scan(&c.Code, &c.Name, &c.Symbol, &c.Precision); err != nil {
			return nil, fmt.Errorf("failed to scan currency: %w", err)
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

func (r *ReferenceRepository) ListTransactionTypes(ctx context.Context) ([]*reference.TransactionType, error) {
	rows, err := r.querier.Query(ctx, selectTransactionTypes)
	if err != nil {
		return nil, fmt.Errorf("failed to list transaction types: %w", err)
	}
	defer rows.Close()

	var out []*reference.TransactionType
	for rows.Next() {
		var t reference.TransactionType
		if err := rows.Scan(&t.ID, &t.Name, &t.Description); err != nil {
			return nil, fmt.Errorf("failed to scan transaction type: %w", err)
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}
