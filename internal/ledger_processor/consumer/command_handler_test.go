package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/stl-ledger/internal/domain/audit"
	"github.com/stl-ledger/internal/domain/lock"
	"github.com/stl-ledger/internal/domain/shared"
	"github.com/stl-ledger/internal/domain/status"
	"github.com/stl-ledger/internal/domain/transaction"
	"github.com/stl-ledger/internal/ledger_core/service"
	"github.com/stl-ledger/internal/platform/messaging/consumers"
	"github.com/stl-ledger/internal/platform/messaging/producers"
)

type MockLedgerWriter struct {
	mock.Mock
}

func (m *MockLedgerWriter) AppendTransaction(ctx context.Context, req *shared.CreateTransactionRequest, actor shared.Actor) (*transaction.Transaction, error) {
	args := m.Called(ctx, req, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*transaction.Transaction), args.Error(1)
}

func (m *MockLedgerWriter) ChangeStatus(ctx context.Context, transactionID uuid.UUID, next shared.TransactionStatus, reason string, actor shared.Actor) (*status.Entry, error) {
	args := m.Called(ctx, transactionID, next, reason, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*status.Entry), args.Error(1)
}

func (m *MockLedgerWriter) PlaceLock(ctx context.Context, req service.PlaceLockRequest, actor shared.Actor) (*lock.Lock, error) {
	args := m.Called(ctx, req, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*lock.Lock), args.Error(1)
}

func (m *MockLedgerWriter) RecordAudit(ctx context.Context, transactionID uuid.UUID, actor shared.Actor, action shared.AuditActionType, metadata map[string]any) (*audit.Entry, error) {
	args := m.Called(ctx, transactionID, actor, action, metadata)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*audit.Entry), args.Error(1)
}

type MockDeadLetterPublisher struct {
	mock.Mock
}

func (m *MockDeadLetterPublisher) PublishToDLQ(ctx context.Context, key string, value []byte, reason string) error {
	args := m.Called(ctx, key, value, reason)
	return args.Error(0)
}

func (m *MockDeadLetterPublisher) Close() error {
	return m.Called().Error(0)
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func encode(t *testing.T, cmd shared.LedgerCommand) consumers.Message {
	value, err := json.Marshal(cmd)
	require.NoError(t, err)
	return consumers.Message{Key: []byte(cmd.TransactionID.String()), Value: value}
}

func TestCommandHandler_HandleMessage(t *testing.T) {
	ctx := context.Background()
	operator := uuid.New()
	actor := shared.Actor{Type: shared.ActorTypeUser, ID: &operator}
	txID := uuid.New()

	t.Run("ChangeStatus", func(t *testing.T) {
		writer, dlq := new(MockLedgerWriter), new(MockDeadLetterPublisher)
		handler := NewCommandHandler(newTestLogger(), writer, dlq)

		writer.On("ChangeStatus", ctx, txID, shared.TransactionStatusApproved, "settled", actor).
			Return(&status.Entry{TransactionID: txID, Status: shared.TransactionStatusApproved}, nil).Once()

		err := handler.HandleMessage(ctx, encode(t, shared.LedgerCommand{
			CommandID: uuid.New(), Type: shared.CommandChangeStatus, TransactionID: txID,
			Actor: actor, Status: shared.TransactionStatusApproved, Reason: "settled", CorrelationID: "corr-1",
		}))
		require.NoError(t, err)
		writer.AssertExpectations(t)
		dlq.AssertNotCalled(t, "PublishToDLQ", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("PlaceLock", func(t *testing.T) {
		writer, dlq := new(MockLedgerWriter), new(MockDeadLetterPublisher)
		handler := NewCommandHandler(newTestLogger(), writer, dlq)
		expires := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)

		writer.On("PlaceLock", ctx, mock.MatchedBy(func(req service.PlaceLockRequest) bool {
			return req.TransactionID == txID &&
				req.LockType == shared.LockTypeFraudReview &&
				req.ExpiresAt != nil && req.ExpiresAt.Equal(expires)
		}), actor).Return(&lock.Lock{ID: uuid.New()}, nil).Once()

		err := handler.HandleMessage(ctx, encode(t, shared.LedgerCommand{
			CommandID: uuid.New(), Type: shared.CommandPlaceLock, TransactionID: txID,
			Actor: actor, LockType: shared.LockTypeFraudReview, ExpiresAt: &expires,
		}))
		require.NoError(t, err)
		writer.AssertExpectations(t)
	})

	t.Run("RecordAudit", func(t *testing.T) {
		writer, dlq := new(MockLedgerWriter), new(MockDeadLetterPublisher)
		handler := NewCommandHandler(newTestLogger(), writer, dlq)

		writer.On("RecordAudit", ctx, txID, actor, shared.AuditActionVerifySignature, map[string]any{"source": "batch"}).
			Return(&audit.Entry{ID: uuid.New()}, nil).Once()

		err := handler.HandleMessage(ctx, encode(t, shared.LedgerCommand{
			CommandID: uuid.New(), Type: shared.CommandRecordAudit, TransactionID: txID,
			Actor: actor, ActionType: shared.AuditActionVerifySignature, Metadata: map[string]any{"source": "batch"},
		}))
		require.NoError(t, err)
		writer.AssertExpectations(t)
	})

	t.Run("MalformedGoesToDLQ", func(t *testing.T) {
		writer, dlq := new(MockLedgerWriter), new(MockDeadLetterPublisher)
		handler := NewCommandHandler(newTestLogger(), writer, dlq)
		value := []byte("{not json")

		dlq.On("PublishToDLQ", ctx, "k", value, mock.MatchedBy(func(reason string) bool {
			return strings.HasPrefix(reason, "malformed command")
		})).Return(nil).Once()

		err := handler.HandleMessage(ctx, consumers.Message{Key: []byte("k"), Value: value})
		require.NoError(t, err)
		dlq.AssertExpectations(t)
	})

	t.Run("MissingTransactionIDGoesToDLQ", func(t *testing.T) {
		writer, dlq := new(MockLedgerWriter), new(MockDeadLetterPublisher)
		handler := NewCommandHandler(newTestLogger(), writer, dlq)

		dlq.On("PublishToDLQ", ctx, mock.Anything, mock.Anything, "missing transaction_id").Return(nil).Once()

		err := handler.HandleMessage(ctx, encode(t, shared.LedgerCommand{Type: shared.CommandChangeStatus}))
		require.NoError(t, err)
		dlq.AssertExpectations(t)
	})

	t.Run("UnknownTypeGoesToDLQ", func(t *testing.T) {
		writer, dlq := new(MockLedgerWriter), new(MockDeadLetterPublisher)
		handler := NewCommandHandler(newTestLogger(), writer, dlq)

		dlq.On("PublishToDLQ", ctx, txID.String(), mock.Anything, "unknown command type: REVERSE").Return(nil).Once()

		err := handler.HandleMessage(ctx, encode(t, shared.LedgerCommand{Type: "REVERSE", TransactionID: txID}))
		require.NoError(t, err)
		dlq.AssertExpectations(t)
	})

	t.Run("BusinessRejectionGoesToDLQ", func(t *testing.T) {
		writer, dlq := new(MockLedgerWriter), new(MockDeadLetterPublisher)
		handler := NewCommandHandler(newTestLogger(), writer, dlq)
		refused := shared.ErrInvalidStatusTransition{TransactionID: txID, From: shared.TransactionStatusApproved, To: shared.TransactionStatusPending}

		writer.On("ChangeStatus", ctx, txID, shared.TransactionStatusPending, "", actor).Return(nil, refused).Once()
		dlq.On("PublishToDLQ", ctx, txID.String(), mock.Anything, mock.MatchedBy(func(reason string) bool {
			return strings.HasPrefix(reason, string(shared.CodeInvalidStatusTransition))
		})).Return(nil).Once()

		err := handler.HandleMessage(ctx, encode(t, shared.LedgerCommand{
			Type: shared.CommandChangeStatus, TransactionID: txID, Actor: actor, Status: shared.TransactionStatusPending,
		}))
		require.NoError(t, err)
		dlq.AssertExpectations(t)
	})

	t.Run("ConflictIsLeftForRedelivery", func(t *testing.T) {
		writer, dlq := new(MockLedgerWriter), new(MockDeadLetterPublisher)
		handler := NewCommandHandler(newTestLogger(), writer, dlq)
		conflict := shared.ErrConcurrentAppendConflict{Chain: "audit", Attempts: 5}

		writer.On("RecordAudit", ctx, txID, actor, shared.AuditActionApprove, map[string]any(nil)).Return(nil, conflict).Once()

		err := handler.HandleMessage(ctx, encode(t, shared.LedgerCommand{
			Type: shared.CommandRecordAudit, TransactionID: txID, Actor: actor, ActionType: shared.AuditActionApprove,
		}))
		assert.ErrorIs(t, err, shared.ErrConcurrentAppendConflict{})
		dlq.AssertNotCalled(t, "PublishToDLQ", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("InfrastructureErrorIsReturned", func(t *testing.T) {
		writer := new(MockLedgerWriter)
		handler := NewCommandHandler(newTestLogger(), writer, nil)
		dbDown := errors.New("connection refused")

		writer.On("ChangeStatus", ctx, txID, shared.TransactionStatusFailed, "", actor).Return(nil, dbDown).Once()

		err := handler.HandleMessage(ctx, encode(t, shared.LedgerCommand{
			Type: shared.CommandChangeStatus, TransactionID: txID, Actor: actor, Status: shared.TransactionStatusFailed,
		}))
		assert.ErrorIs(t, err, dbDown)
	})

	t.Run("DLQFailureIsReturned", func(t *testing.T) {
		writer, dlq := new(MockLedgerWriter), new(MockDeadLetterPublisher)
		handler := NewCommandHandler(newTestLogger(), writer, dlq)

		dlq.On("PublishToDLQ", ctx, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("kafka down")).Once()

		err := handler.HandleMessage(ctx, consumers.Message{Key: []byte("k"), Value: []byte("garbage")})
		assert.Error(t, err)
	})

	t.Run("DisabledDLQDropsCommand", func(t *testing.T) {
		var disabled *producers.DLQProducer
		handler := NewCommandHandler(newTestLogger(), new(MockLedgerWriter), disabled)

		err := handler.HandleMessage(ctx, consumers.Message{Key: []byte("k"), Value: []byte("garbage")})
		assert.NoError(t, err)
	})
}
