package service

import (
	"context"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/stl-ledger/internal/domain/audit"
	"github.com/stl-ledger/internal/domain/chain"
	"github.com/stl-ledger/internal/domain/ledger"
	"github.com/stl-ledger/internal/domain/lock"
	"github.com/stl-ledger/internal/domain/reference"
	"github.com/stl-ledger/internal/domain/shared"
	"github.com/stl-ledger/internal/domain/status"
	"github.com/stl-ledger/internal/domain/transaction"
	ledgerservice "github.com/stl-ledger/internal/ledger_core/service"
	"github.com/stretchr/testify/mock"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

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

func (m *MockLedgerWriter) PlaceLock(ctx context.Context, req ledgerservice.PlaceLockRequest, actor shared.Actor) (*lock.Lock, error) {
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

type MockLedgerReader struct {
	mock.Mock
}

func (m *MockLedgerReader) GetTransaction(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*transaction.Transaction), args.Error(1)
}

func (m *MockLedgerReader) GetByIdempotencyKey(ctx context.Context, key string) (*transaction.Transaction, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*transaction.Transaction), args.Error(1)
}

func (m *MockLedgerReader) ListTransactions(ctx context.Context, filter transaction.Filter) ([]*transaction.Transaction, int64, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*transaction.Transaction), args.Get(1).(int64), args.Error(2)
}

func (m *MockLedgerReader) GetParticipants(ctx context.Context, transactionID uuid.UUID) ([]*transaction.Participant, error) {
	args := m.Called(ctx, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*transaction.Participant), args.Error(1)
}

func (m *MockLedgerReader) GetParticipations(ctx context.Context, participantID uuid.UUID) ([]*transaction.Participant, error) {
	args := m.Called(ctx, participantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*transaction.Participant), args.Error(1)
}

func (m *MockLedgerReader) GetAuditByActor(ctx context.Context, actor shared.Actor, limit, offset int) ([]*audit.Entry, error) {
	args := m.Called(ctx, actor, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*audit.Entry), args.Error(1)
}

func (m *MockLedgerReader) CurrentStatus(ctx context.Context, transactionID uuid.UUID) (shared.TransactionStatus, error) {
	args := m.Called(ctx, transactionID)
	return args.Get(0).(shared.TransactionStatus), args.Error(1)
}

func (m *MockLedgerReader) GetStatusHistory(ctx context.Context, transactionID uuid.UUID) ([]*status.Entry, error) {
	args := m.Called(ctx, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*status.Entry), args.Error(1)
}

func (m *MockLedgerReader) GetAuditTrail(ctx context.Context, transactionID uuid.UUID) ([]*audit.Entry, error) {
	args := m.Called(ctx, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*audit.Entry), args.Error(1)
}

func (m *MockLedgerReader) GetLocks(ctx context.Context, transactionID uuid.UUID, activeOnly bool) ([]*lock.Lock, error) {
	args := m.Called(ctx, transactionID, activeOnly)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*lock.Lock), args.Error(1)
}

func (m *MockLedgerReader) ListCurrencies(ctx context.Context) ([]*reference.Currency, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*reference.Currency), args.Error(1)
}

func (m *MockLedgerReader) GetCurrency(ctx context.Context, code string) (*reference.Currency, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reference.Currency), args.Error(1)
}

func (m *MockLedgerReader) ListTransactionTypes(ctx context.Context) ([]*reference.TransactionType, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*reference.TransactionType), args.Error(1)
}

func (m *MockLedgerReader) VerifyChain(ctx context.Context, id chain.ID, from, to int64) (*chain.Report, error) {
	args := m.Called(ctx, id, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*chain.Report), args.Error(1)
}

type MockViewReader struct {
	mock.Mock
}

func (m *MockViewReader) GetByParticipantID(ctx context.Context, participantID uuid.UUID, limit, offset int) ([]*ledger.TransactionView, error) {
	args := m.Called(ctx, participantID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*ledger.TransactionView), args.Error(1)
}

func (m *MockViewReader) CountByParticipantID(ctx context.Context, participantID uuid.UUID) (int64, error) {
	args := m.Called(ctx, participantID)
	return args.Get(0).(int64), args.Error(1)
}
