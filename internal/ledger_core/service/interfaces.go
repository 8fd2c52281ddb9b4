package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stl-ledger/internal/domain/audit"
	"github.com/stl-ledger/internal/domain/chain"
	"github.com/stl-ledger/internal/domain/lock"
	"github.com/stl-ledger/internal/domain/reference"
	"github.com/stl-ledger/internal/domain/shared"
	"github.com/stl-ledger/internal/domain/status"
	"github.com/stl-ledger/internal/domain/transaction"
)

// LedgerWriter is the sole creator of ledger records
type LedgerWriter interface {
	AppendTransaction(ctx context.Context, req *shared.CreateTransactionRequest, actor shared.Actor) (*transaction.Transaction, error)
	ChangeStatus(ctx context.Context, transactionID uuid.UUID, next shared.TransactionStatus, reason string, actor shared.Actor) (*status.Entry, error)
	PlaceLock(ctx context.Context, req PlaceLockRequest, actor shared.Actor) (*lock.Lock, error)
	RecordAudit(ctx context.Context, transactionID uuid.UUID, actor shared.Actor, action shared.AuditActionType, metadata map[string]any) (*audit.Entry, error)
}

// PlaceLockRequest describes a lock to place on a transaction
type PlaceLockRequest struct {
	TransactionID uuid.UUID
	LockType      shared.LockType
	Reason        string
	ExpiresAt     *time.Time
}

// Validator enforces creation invariants and resolves references
type Validator interface {
	ValidateCreationRequest(ctx context.Context, req *shared.CreateTransactionRequest) (*reference.Resolved, error)
	ResolveReferences(ctx context.Context, req *shared.CreateTransactionRequest) (*reference.Resolved, error)
}

// TransactionLinker links and verifies the transaction chain
type TransactionLinker interface {
	Link(tail chain.Tail, req *shared.CreateTransactionRequest) (*transaction.Transaction, error)
	VerifyTail(ctx context.Context, tail chain.Tail) error
	VerifyChain(ctx context.Context, from, to int64) (*chain.Report, error)
}

// StatusMachine enforces the status lifecycle
type StatusMachine interface {
	InitialStatus(transactionID uuid.UUID, reason string) *status.Entry
	NewEntry(transactionID uuid.UUID, next shared.TransactionStatus, reason string) *status.Entry
	CheckTransition(transactionID uuid.UUID, current, next shared.TransactionStatus) error
	AuthoritativeStatus(ctx context.Context, transactionID uuid.UUID) (shared.TransactionStatus, error)
	CurrentStatus(ctx context.Context, transactionID uuid.UUID) (shared.TransactionStatus, error)
	Indexed(ctx context.Context, entry *status.Entry)
}

// AuditLog builds and verifies the global audit chain
type AuditLog interface {
	Prepare(tail chain.Tail, transactionID uuid.UUID, actor shared.Actor, action shared.AuditActionType, metadata map[string]any) (*audit.Entry, error)
	VerifyTail(ctx context.Context, tail chain.Tail) error
	VerifyChain(ctx context.Context, from, to int64) (*chain.Report, error)
}

// LockGate builds locks and blocks status changes on locked transactions
type LockGate interface {
	NewLock(transactionID uuid.UUID, lockType shared.LockType, lockedBy *uuid.UUID, reason string, expiresAt *time.Time) (*lock.Lock, error)
	Check(ctx context.Context, transactionID uuid.UUID, next shared.TransactionStatus) error
}

// ChainLocker optionally serializes append attempts across instances.
// The compare-and-append on the chain tail stays authoritative either way.
type ChainLocker interface {
	WithChainLock(ctx context.Context, id chain.ID, fn func(ctx context.Context) error) error
}

// NoopChainLocker runs fn without any mutual exclusion
type NoopChainLocker struct{}

func (NoopChainLocker) WithChainLock(ctx context.Context, _ chain.ID, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
