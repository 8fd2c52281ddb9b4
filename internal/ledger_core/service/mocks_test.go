package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stl-ledger/internal/domain/audit"
	"github.com/stl-ledger/internal/domain/chain"
	"github.com/stl-ledger/internal/domain/ledger"
	"github.com/stl-ledger/internal/domain/lock"
	"github.com/stl-ledger/internal/domain/reference"
	"github.com/stl-ledger/internal/domain/shared"
	"github.com/stl-ledger/internal/domain/status"
	"github.com/stl-ledger/internal/domain/transaction"
	"github.com/stretchr/testify/mock"
)

type MockAppendLog struct {
	mock.Mock
}

func (m *MockAppendLog) AppendAtomic(ctx context.Context, batch *ledger.Batch) error {
	args := m.Called(ctx, batch)
	return args.Error(0)
}

func (m *MockAppendLog) LatestInChain(ctx context.Context, id chain.ID) (chain.Tail, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(chain.Tail), args.Error(1)
}

type MockTransactionRepository struct {
	mock.Mock
}

func (m *MockTransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*transaction.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) GetByIdempotencyKey(ctx context.Context, key string) (*transaction.Transaction, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*transaction.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) GetBySequence(ctx context.Context, sequence int64) (*transaction.Transaction, error) {
	args := m.Called(ctx, sequence)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*transaction.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) List(ctx context.Context, filter transaction.Filter) ([]*transaction.Transaction, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*transaction.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) Count(ctx context.Context, filter transaction.Filter) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockTransactionRepository) ListAfterSequence(ctx context.Context, after, to int64, limit int) ([]*transaction.Transaction, error) {
	args := m.Called(ctx, after, to, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*transaction.Transaction), args.Error(1)
}

type MockValidator struct {
	mock.Mock
}

func (m *MockValidator) ValidateCreationRequest(ctx context.Context, req *shared.CreateTransactionRequest) (*reference.Resolved, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reference.Resolved), args.Error(1)
}

func (m *MockValidator) ResolveReferences(ctx context.Context, req *shared.CreateTransactionRequest) (*reference.Resolved, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reference.Resolved), args.Error(1)
}

type MockLinker struct {
	mock.Mock
}

func (m *MockLinker) Link(tail chain.Tail, req *shared.CreateTransactionRequest) (*transaction.Transaction, error) {
	args := m.Called(tail, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*transaction.Transaction), args.Error(1)
}

func (m *MockLinker) VerifyTail(ctx context.Context, tail chain.Tail) error {
	args := m.Called(ctx, tail)
	return args.Error(0)
}

func (m *MockLinker) VerifyChain(ctx context.Context, from, to int64) (*chain.Report, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*chain.Report), args.Error(1)
}

type MockStatusMachine struct {
	mock.Mock
}

func (m *MockStatusMachine) InitialStatus(transactionID uuid.UUID, reason string) *status.Entry {
	args := m.Called(transactionID, reason)
	return args.Get(0).(*status.Entry)
}

func (m *MockStatusMachine) NewEntry(transactionID uuid.UUID, next shared.TransactionStatus, reason string) *status.Entry {
	args := m.Called(transactionID, next, reason)
	return args.Get(0).(*status.Entry)
}

func (m *MockStatusMachine) CheckTransition(transactionID uuid.UUID, current, next shared.TransactionStatus) error {
	args := m.Called(transactionID, current, next)
	return args.Error(0)
}

func (m *MockStatusMachine) AuthoritativeStatus(ctx context.Context, transactionID uuid.UUID) (shared.TransactionStatus, error) {
	args := m.Called(ctx, transactionID)
	return args.Get(0).(shared.TransactionStatus), args.Error(1)
}

func (m *MockStatusMachine) CurrentStatus(ctx context.Context, transactionID uuid.UUID) (shared.TransactionStatus, error) {
	args := m.Called(ctx, transactionID)
	return args.Get(0).(shared.TransactionStatus), args.Error(1)
}

func (m *MockStatusMachine) Indexed(ctx context.Context, entry *status.Entry) {
	m.Called(ctx, entry)
}

type MockAuditLog struct {
	mock.Mock
}

func (m *MockAuditLog) Prepare(tail chain.Tail, transactionID uuid.UUID, actor shared.Actor, action shared.AuditActionType, metadata map[string]any) (*audit.Entry, error) {
	args := m.Called(tail, transactionID, actor, action, metadata)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*audit.Entry), args.Error(1)
}

func (m *MockAuditLog) VerifyTail(ctx context.Context, tail chain.Tail) error {
	args := m.Called(ctx, tail)
	return args.Error(0)
}

func (m *MockAuditLog) VerifyChain(ctx context.Context, from, to int64) (*chain.Report, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*chain.Report), args.Error(1)
}

type MockLockGate struct {
	mock.Mock
}

func (m *MockLockGate) NewLock(transactionID uuid.UUID, lockType shared.LockType, lockedBy *uuid.UUID, reason string, expiresAt *time.Time) (*lock.Lock, error) {
	args := m.Called(transactionID, lockType, lockedBy, reason, expiresAt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*lock.Lock), args.Error(1)
}

func (m *MockLockGate) Check(ctx context.Context, transactionID uuid.UUID, next shared.TransactionStatus) error {
	args := m.Called(ctx, transactionID, next)
	return args.Error(0)
}

type MockHaltStore struct {
	mock.Mock
}

func (m *MockHaltStore) HaltChain(ctx context.Context, violation shared.ErrChainIntegrityViolation, at time.Time) error {
	args := m.Called(ctx, violation, at)
	return args.Error(0)
}

func (m *MockHaltStore) HaltedChains(ctx context.Context) ([]shared.ErrChainIntegrityViolation, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]shared.ErrChainIntegrityViolation), args.Error(1)
}
