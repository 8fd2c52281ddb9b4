package lock

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stl-ledger/internal/domain/shared"
)

// Lock holds a transaction back from approval until it expires.
// Locks are never released or deleted; an expired lock is simply inactive.
type Lock struct {
	ID            uuid.UUID       `json:"id"`
	TransactionID uuid.UUID       `json:"transaction_id"`
	LockType      shared.LockType `json:"lock_type"`
	LockedBy      *uuid.UUID      `json:"locked_by,omitempty"`
	Reason        string          `json:"reason,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	ExpiresAt     *time.Time      `json:"expires_at,omitempty"`
}

// IsActive reports whether the lock still applies at now
func (l *Lock) IsActive(now time.Time) bool {
	return l.ExpiresAt == nil || l.ExpiresAt.After(now)
}

// Strongest returns the active lock with the highest priority, or nil
func Strongest(locks []*Lock, now time.Time) *Lock {
	var strongest *Lock
	for _, l := range locks {
		if !l.IsActive(now) {
			continue
		}
		if strongest == nil || l.LockType.Priority() > strongest.LockType.Priority() {
			strongest = l
		}
	}
	return strongest
}

// Repository is the read side of transaction locks
type Repository interface {
	GetByTransactionID(ctx context.Context, transactionID uuid.UUID) ([]*Lock, error)
	GetActive(ctx context.Context, transactionID uuid.UUID, now time.Time) ([]*Lock, error)
}
