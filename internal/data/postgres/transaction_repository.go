// Package postgres provides the PostgreSQL append log of the ledger and the
// read repositories over its tables.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stl-ledger/internal/domain/shared"
	"github.com/stl-ledger/internal/domain/transaction"
	"github.com/stl-ledger/internal/platform/persistence"
)

const transactionColumns = `id, sequence, type_id, amount::text, currency_code, payload, idempotency_key, previous_hash, hash, signature, created_at`

const (
	selectTransactionByID = `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`

	selectTransactionByIdempotencyKey = `SELECT ` + transactionColumns + ` FROM transactions WHERE idempotency_key = $1`

	selectTransactionBySequence = `SELECT ` + transactionColumns + ` FROM transactions WHERE sequence = $1`

	selectTransactionsAfterSequence = `SELECT ` + transactionColumns + ` FROM transactions
		WHERE sequence > $1 AND sequence <= $2
		ORDER BY sequence ASC
		LIMIT $3`
)

// TransactionRepository implements transaction.Repository for PostgreSQL
type TransactionRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

func NewTransactionRepository(logger *slog.Logger, db *persistence.PostgresDB) transaction.Repository {
	return &TransactionRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

func (r *TransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error) {
	tx, err := scanTransaction(r.querier.QueryRow(ctx, selectTransactionByID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrTransactionNotFound{TransactionID: id}
		}
		r.logger.Error("Failed to get transaction", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return tx, nil
}

func (r *TransactionRepository) GetByIdempotencyKey(ctx context.Context, key string) (*transaction.Transaction, error) {
	tx, err := scanTransaction(r.querier.QueryRow(ctx, selectTransactionByIdempotencyKey, key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("Failed to get transaction by idempotency key", "idempotency_key", key, "error", err)
		return nil, fmt.Errorf("failed to get transaction by idempotency key: %w", err)
	}
	return tx, nil
}

func (r *TransactionRepository) GetBySequence(ctx context.Context, sequence int64) (*transaction.Transaction, error) {
	tx, err := scanTransaction(r.querier.QueryRow(ctx, selectTransactionBySequence, sequence))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrTransactionNotFound{}
		}
		return nil, fmt.Errorf("failed to get transaction at sequence %d: %w", sequence, err)
	}
	return tx, nil
}

// List returns matching transactions, newest first
func (r *TransactionRepository) List(ctx context.Context, filter transaction.Filter) ([]*transaction.Transaction, error) {
	where, args := filterClause(filter)
	query := `SELECT ` + transactionColumns + ` FROM transactions` + where + ` ORDER BY sequence DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += ` LIMIT $` + strconv.Itoa(len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := r.querier.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list transactions", "error", err)
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return collectTransactions(rows)
}

func (r *TransactionRepository) Count(ctx context.Context, filter transaction.Filter) (int64, error) {
	where, args := filterClause(filter)
	var count int64
	if err := r.querier.QueryRow(ctx, `SELECT COUNT(*) FROM transactions`+where, args...).Scan(&count); err != nil {
		r.logger.Error("Failed to count transactions", "error", err)
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return count, nil
}

func (r *TransactionRepository) ListAfterSequence(ctx context.Context, after, to int64, limit int) ([]*transaction.Transaction, error) {
	rows, err := r.querier.Query(ctx, selectTransactionsAfterSequence, after, to, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions after sequence %d: %w", after, err)
	}
	return collectTransactions(rows)
}

func filterClause(filter transaction.Filter) (string, []any) {
	var conditions []string
	var args []any
	add := func(condition string, arg any) {
		args = append(args, arg)
		conditions = append(conditions, condition+" $"+strconv.Itoa(len(args)))
	}

	if filter.TypeID != nil {
		add("type_id =", *filter.TypeID)
	}
	if filter.CurrencyCode != "" {
		add("currency_code =", filter.CurrencyCode)
	}
	if filter.From != nil {
		add("created_at >=", *filter.From)
	}
	if filter.To != nil {
		add("created_at <=", *filter.To)
	}
	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

func collectTransactions(rows pgx.Rows) ([]*transaction.Transaction, error) {
	defer rows.Close()
	var out []*transaction.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over transactions: %w", err)
	}
	return out, nil
}

func scanTransaction(row scanner) (*transaction.Transaction, error) {
	var (
		tx      transaction.Transaction
		amount  string
		payload []byte
	)
	err := row.Scan(
		&tx.ID,
		&tx.Sequence,
		&tx.TypeID,
		&amount,
		&tx.CurrencyCode,
		&payload,
		&tx.IdempotencyKey,
		&tx.PreviousHash,
		&tx.Hash,
		&tx.Signature,
		&tx.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if tx.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("invalid stored amount %q: %w", amount, err)
	}
	if tx.Payload, err = decodeFields(payload); err != nil {
		return nil, err
	}
	tx.CreatedAt = tx.CreatedAt.UTC()
	return &tx, nil
}

// encodeFields renders a free-form map for a JSONB column, NULL when empty
func encodeFields(fields map[string]any) ([]byte, error) {
	if len(fields) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to encode fields: %w", err)
	}
	return raw, nil
}

func decodeFields(raw []byte) (map[string]any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("failed to decode stored fields: %w", err)
	}
	return fields, nil
}
