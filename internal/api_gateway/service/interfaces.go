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
)

// TransactionService defines the interface for transaction operations
type TransactionService interface {
	// CreateTransaction appends a transaction. When the idempotency key is already used
	// the existing transaction is returned and created is false.
	CreateTransaction(ctx context.Context, req *shared.CreateTransactionRequest, actor shared.Actor) (tx *transaction.Transaction, created bool, err error)

	// GetTransaction returns shared.ErrTransactionNotFound for unknown ids
	GetTransaction(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error)

	// ListTransactions returns one page of transactions and the total matching filter
	ListTransactions(ctx context.Context, filter transaction.Filter, page, perPage int) ([]*transaction.Transaction, int64, error)

	GetParticipants(ctx context.Context, transactionID uuid.UUID) ([]*transaction.Participant, error)

	// GetParticipantTransactions reads the projected views of a participant's transactions
	GetParticipantTransactions(ctx context.Context, participantID uuid.UUID, page, perPage int) ([]*ledger.TransactionView, int64, error)

	// GetParticipations reads a participant's records from the ledger itself, without the read model
	GetParticipations(ctx context.Context, participantID uuid.UUID) ([]*transaction.Participant, error)
}

// RecordService defines the status, lock and audit operations of a transaction
type RecordService interface {
	CurrentStatus(ctx context.Context, transactionID uuid.UUID) (shared.TransactionStatus, error)
	GetStatusHistory(ctx context.Context, transactionID uuid.UUID) ([]*status.Entry, error)
	ChangeStatus(ctx context.Context, transactionID uuid.UUID, next shared.TransactionStatus, reason string, actor shared.Actor) (*status.Entry, error)

	GetAuditTrail(ctx context.Context, transactionID uuid.UUID) ([]*audit.Entry, error)
	RecordAudit(ctx context.Context, transactionID uuid.UUID, action shared.AuditActionType, metadata map[string]any, actor shared.Actor) (*audit.Entry, error)
	GetActorAudit(ctx context.Context, actor shared.Actor, page, perPage int) ([]*audit.Entry, error)

	GetLocks(ctx context.Context, transactionID uuid.UUID, activeOnly bool) ([]*lock.Lock, error)
	PlaceLock(ctx context.Context, transactionID uuid.UUID, lockType shared.LockType, reason string, expiresAt *time.Time, actor shared.Actor) (*lock.Lock, error)
}

// ReferenceService defines read access to reference data and chain verification
type ReferenceService interface {
	ListCurrencies(ctx context.Context) ([]*reference.Currency, error)
	GetCurrency(ctx context.Context, code string) (*reference.Currency, error)
	ListTransactionTypes(ctx context.Context) ([]*reference.TransactionType, error)
	VerifyChain(ctx context.Context, id chain.ID, from, to int64) (*chain.Report, error)
}

// LedgerReader is the subset of the ledger query service the gateway reads through
type LedgerReader interface {
	GetTransaction(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*transaction.Transaction, error)
	ListTransactions(ctx context.Context, filter transaction.Filter) ([]*transaction.Transaction, int64, error)
	GetParticipants(ctx context.Context, transactionID uuid.UUID) ([]*transaction.Participant, error)
	GetParticipations(ctx context.Context, participantID uuid.UUID) ([]*transaction.Participant, error)
	CurrentStatus(ctx context.Context, transactionID uuid.UUID) (shared.TransactionStatus, error)
	GetStatusHistory(ctx context.Context, transactionID uuid.UUID) ([]*status.Entry, error)
	GetAuditTrail(ctx context.Context, transactionID uuid.UUID) ([]*audit.Entry, error)
	GetAuditByActor(ctx context.Context, actor shared.Actor, limit, offset int) ([]*audit.Entry, error)
	GetLocks(ctx context.Context, transactionID uuid.UUID, activeOnly bool) ([]*lock.Lock, error)
	ListCurrencies(ctx context.Context) ([]*reference.Currency, error)
	GetCurrency(ctx context.Context, code string) (*reference.Currency, error)
	ListTransactionTypes(ctx context.Context) ([]*reference.TransactionType, error)
	VerifyChain(ctx context.Context, id chain.ID, from, to int64) (*chain.Report, error)
}

// ViewReader is the read side of the transaction read model
type ViewReader interface {
	GetByParticipantID(ctx context.Context, participantID uuid.UUID, limit, offset int) ([]*ledger.TransactionView, error)
	CountByParticipantID(ctx context.Context, participantID uuid.UUID) (int64, error)
}
