package components

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/stl-ledger/internal/domain/lock"
	"github.com/stl-ledger/internal/domain/shared"
)

// LockGate builds locks and refuses approvals while an active lock exists
type LockGate struct {
	locks   lock.Repository
	enforce bool
	now     func() time.Time
	logger  *slog.Logger
}

func NewLockGate(locks lock.Repository, enforce bool, now func() time.Time, logger *slog.Logger) *LockGate {
	if now == nil {
		now = time.Now
	}
	return &LockGate{
		locks:   locks,
		enforce: enforce,
		now:     now,
		logger:  logger,
	}
}

// NewLock validates and builds a lock record
func (g *LockGate) NewLock(transactionID uuid.UUID, lockType shared.LockType, lockedBy *uuid.UUID, reason string, expiresAt *time.Time) (*lock.Lock, error) {
	if !lockType.IsValid() {
		return nil, shared.NewValidationError(shared.CodeInvalidLockType, "Unknown lock type: %s", lockType)
	}
	now := g.now().UTC().Truncate(time.Microsecond)
	if expiresAt != nil {
		if !expiresAt.After(now) {
			return nil, shared.NewValidationError(shared.CodeInvalidLockExpiry, "Lock expiry must be in the future.")
		}
		utc := expiresAt.UTC().Truncate(time.Microsecond)
		expiresAt = &utc
	}
	return &lock.Lock{
		ID:            uuid.New(),
		TransactionID: transactionID,
		LockType:      lockType,
		LockedBy:      lockedBy,
		Reason:        reason,
		CreatedAt:     now,
		ExpiresAt:     expiresAt,
	}, nil
}

// Check returns ErrTransactionLocked when next would release funds of a locked transaction
func (g *LockGate) Check(ctx context.Context, transactionID uuid.UUID, next shared.TransactionStatus) error {
	if !g.enforce {
		return nil
	}
	if next != shared.TransactionStatusApproved && next != shared.TransactionStatusRefund {
		return nil
	}
	active, err := g.locks.GetActive(ctx, transactionID, g.now())
	if err != nil {
		return fmt.Errorf("failed to read active locks: %w", err)
	}
	if strongest := lock.Strongest(active, g.now()); strongest != nil {
		g.logger.Info("Status change blocked by active lock",
			"transaction_id", transactionID.String(),
			"lock_type", string(strongest.LockType),
			"status", string(next),
		)
		return shared.ErrTransactionLocked{TransactionID: transactionID, LockType: strongest.LockType}
	}
	return nil
}
