package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/stl-ledger/internal/domain/ledger"
	"github.com/stl-ledger/internal/domain/shared"
	"github.com/stl-ledger/internal/domain/transaction"
	ledgerservice "github.com/stl-ledger/internal/ledger_core/service"
)

// ErrReadModelUnavailable is returned when the gateway runs without the Mongo read model
var ErrReadModelUnavailable = errors.New("transaction read model is not configured")

var _ LedgerReader = (*ledgerservice.QueryService)(nil)

// TransactionServiceImpl implements the TransactionService interface
type TransactionServiceImpl struct {
	writer ledgerservice.LedgerWriter
	reader LedgerReader
	views  ViewReader
	logger *slog.Logger
}

// NewTransactionService creates a new transaction service. views may be nil.
func NewTransactionService(logger *slog.Logger, writer ledgerservice.LedgerWriter, reader LedgerReader, views ViewReader) TransactionService {
	return &TransactionServiceImpl{
		writer: writer,
		reader: reader,
		views:  views,
		logger: logger,
	}
}

func (s *TransactionServiceImpl) CreateTransaction(ctx context.Context, req *shared.CreateTransactionRequest, actor shared.Actor) (*transaction.Transaction, bool, error) {
	if req.IdempotencyKey != "" {
		existing, err := s.reader.GetByIdempotencyKey(ctx, req.IdempotencyKey)
		if err != nil {
			s.logger.Error("Failed to check for existing transaction with idempotency key",
				"idempotency_key", req.IdempotencyKey,
				"error", err,
			)
			return nil, false, err
		}
		if existing != nil {
			s.logger.Info("Found existing transaction with idempotency key",
				"idempotency_key", req.IdempotencyKey,
				"transaction_id", existing.ID,
			)
			return existing, false, nil
		}
	}

	tx, err := s.writer.AppendTransaction(ctx, req, actor)
	if errors.Is(err, shared.ErrDuplicateIdempotencyKey{}) {
		// lost the race against a concurrent request with the same key
		existing, lookupErr := s.reader.GetByIdempotencyKey(ctx, req.IdempotencyKey)
		if lookupErr != nil {
			return nil, false, lookupErr
		}
		if existing == nil {
			return nil, false, fmt.Errorf("transaction with idempotency key %q vanished: %w", req.IdempotencyKey, err)
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	s.logger.Info("Transaction appended",
		"transaction_id", tx.ID,
		"sequence", tx.Sequence,
		"currency", tx.CurrencyCode,
		"amount", tx.Amount.String(),
	)
	return tx, true, nil
}

func (s *TransactionServiceImpl) GetTransaction(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error) {
	return s.reader.GetTransaction(ctx, id)
}

func (s *TransactionServiceImpl) ListTransactions(ctx context.Context, filter transaction.Filter, page, perPage int) ([]*transaction.Transaction, int64, error) {
	filter.Limit = perPage
	filter.Offset = (page - 1) * perPage
	return s.reader.ListTransactions(ctx, filter)
}

func (s *TransactionServiceImpl) GetParticipants(ctx context.Context, transactionID uuid.UUID) ([]*transaction.Participant, error) {
	return s.reader.GetParticipants(ctx, transactionID)
}

func (s *TransactionServiceImpl) GetParticipantTransactions(ctx context.Context, participantID uuid.UUID, page, perPage int) ([]*ledger.TransactionView, int64, error) {
	if s.views == nil {
		return nil, 0, ErrReadModelUnavailable
	}

	views, err := s.views.GetByParticipantID(ctx, participantID, perPage, (page-1)*perPage)
	if err != nil {
		s.logger.Error("Failed to get participant transactions",
			"participant_id", participantID,
			"error", err,
		)
		return nil, 0, err
	}
	total, err := s.views.CountByParticipantID(ctx, participantID)
	if err != nil {
		s.logger.Error("Failed to count participant transactions",
			"participant_id", participantID,
			"error", err,
		)
		return nil, 0, err
	}
	return views, total, nil
}

func (s *TransactionServiceImpl) GetParticipations(ctx context.Context, participantID uuid.UUID) ([]*transaction.Participant, error) {
	return s.reader.GetParticipations(ctx, participantID)
}
