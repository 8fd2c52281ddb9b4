package status

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stl-ledger/internal/domain/shared"
)

// Entry is one append-only record of a transaction's status history.
// Sequence is assigned by the append log and orders entries across all transactions.
type Entry struct {
	ID            uuid.UUID                `json:"id"`
	Sequence      int64                    `json:"sequence"`
	TransactionID uuid.UUID                `json:"transaction_id"`
	Status        shared.TransactionStatus `json:"status"`
	Reason        string                   `json:"reason,omitempty"`
	CreatedAt     time.Time                `json:"created_at"`
}

func NewEntry(transactionID uuid.UUID, status shared.TransactionStatus, reason string, createdAt time.Time) *Entry {
	return &Entry{
		ID:            uuid.New(),
		TransactionID: transactionID,
		Status:        status,
		Reason:        reason,
		CreatedAt:     createdAt.UTC().Truncate(time.Microsecond),
	}
}

// Repository is the read side of the status history
type Repository interface {
	// GetLatest returns the entry with the highest sequence, or nil, nil when there is none
	GetLatest(ctx context.Context, transactionID uuid.UUID) (*Entry, error)
	GetHistory(ctx context.Context, transactionID uuid.UUID) ([]*Entry, error)
}

// Index caches the latest status per transaction. It is never authoritative:
// history always wins.
type Index interface {
	Get(ctx context.Context, transactionID uuid.UUID) (shared.TransactionStatus, bool, error)
	// Set stores status unless a newer sequence is already indexed
	Set(ctx context.Context, transactionID uuid.UUID, sequence int64, status shared.TransactionStatus) error
	// Delete drops the indexed status so the next read goes to the history
	Delete(ctx context.Context, transactionID uuid.UUID) error
}

// NoopIndex never hits
type NoopIndex struct{}

func (NoopIndex) Get(context.Context, uuid.UUID) (shared.TransactionStatus, bool, error) {
	return "", false, nil
}

func (NoopIndex) Set(context.Context, uuid.UUID, int64, shared.TransactionStatus) error {
	return nil
}

func (NoopIndex) Delete(context.Context, uuid.UUID) error {
	return nil
}
