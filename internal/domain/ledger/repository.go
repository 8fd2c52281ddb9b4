package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stl-ledger/internal/domain/chain"
	"github.com/stl-ledger/internal/domain/shared"
)

// AppendLog is the durable, append-only store of the ledger
type AppendLog interface {
	// AppendAtomic commits every record of the batch or none of them
	AppendAtomic(ctx context.Context, batch *Batch) error
	// LatestInChain returns the current tail of a chain, the genesis tail when it is empty
	LatestInChain(ctx context.Context, id chain.ID) (chain.Tail, error)
}

// HaltStore persists chain halts next to the chain tails so that every writer
// sharing the log refuses a violated chain, including after a restart.
type HaltStore interface {
	// HaltChain marks the chain halted. The first recorded halt is kept.
	HaltChain(ctx context.Context, violation shared.ErrChainIntegrityViolation, at time.Time) error
	// HaltedChains returns the stored violation of every halted chain
	HaltedChains(ctx context.Context) ([]shared.ErrChainIntegrityViolation, error)
}

// ViewRepository manages the transaction read model with pagination support
type ViewRepository interface {
	Upsert(ctx context.Context, view *TransactionView) error
	GetByTransactionID(ctx context.Context, transactionID uuid.UUID) (*TransactionView, error)
	GetByParticipantID(ctx context.Context, participantID uuid.UUID, limit, offset int) ([]*TransactionView, error)
	CountByParticipantID(ctx context.Context, participantID uuid.UUID) (int64, error)
	// UpdateStatus applies status unless a newer status sequence is already projected
	UpdateStatus(ctx context.Context, transactionID uuid.UUID, sequence int64, status shared.TransactionStatus) error
	AddLock(ctx context.Context, transactionID uuid.UUID, lock LockView) error
}

// ErrViewNotFound indicates a missing read model document
type ErrViewNotFound struct {
	TransactionID uuid.UUID
}

func (e ErrViewNotFound) Error() string {
	return "transaction view not found: " + e.TransactionID.String()
}

// Is implements the errors.Is interface for ErrViewNotFound
func (e ErrViewNotFound) Is(target error) bool {
	t, ok := target.(ErrViewNotFound)
	if !ok {
		return false
	}
	// If the target TransactionID is empty, consider it a match for any ErrViewNotFound
	if t.TransactionID == uuid.Nil {
		return true
	}
	return e.TransactionID == t.TransactionID
}
