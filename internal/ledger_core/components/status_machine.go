package components

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/stl-ledger/internal/domain/shared"
	"github.com/stl-ledger/internal/domain/status"
	"golang.org/x/sync/singleflight"
)

const statusReadTimeout = 5 * time.Second

// StatusMachine enforces the status lifecycle over the append-only history
type StatusMachine struct {
	history status.Repository
	index   status.Index
	policy  TransitionPolicy
	now     func() time.Time
	group   singleflight.Group
	logger  *slog.Logger
}

func NewStatusMachine(history status.Repository, index status.Index, policy TransitionPolicy, now func() time.Time, logger *slog.Logger) *StatusMachine {
	if index == nil {
		index = status.NoopIndex{}
	}
	if policy == nil {
		policy = FinalStateGuard{}
	}
	if now == nil {
		now = time.Now
	}
	return &StatusMachine{
		history: history,
		index:   index,
		policy:  policy,
		now:     now,
		logger:  logger,
	}
}

// InitialStatus builds the PENDING entry appended with a new transaction
func (m *StatusMachine) InitialStatus(transactionID uuid.UUID, reason string) *status.Entry {
	return status.NewEntry(transactionID, shared.TransactionStatusPending, reason, m.now())
}

// NewEntry builds a status entry for an accepted transition
func (m *StatusMachine) NewEntry(transactionID uuid.UUID, next shared.TransactionStatus, reason string) *status.Entry {
	return status.NewEntry(transactionID, next, reason, m.now())
}

// CheckTransition returns ErrInvalidStatusTransition when current is final or the policy refuses the move
func (m *StatusMachine) CheckTransition(transactionID uuid.UUID, current, next shared.TransactionStatus) error {
	if !next.IsValid() {
		return shared.NewValidationError(shared.CodeInvalidStatus, "Unknown transaction status: %s", next)
	}
	if current.IsFinal() {
		return shared.ErrInvalidStatusTransition{
			TransactionID: transactionID,
			From:          current,
			To:            next,
			Reason:        fmt.Sprintf("Cannot change status from %s - transaction is in a final state", current),
		}
	}
	if !m.policy.Allows(current, next) {
		return shared.ErrInvalidStatusTransition{
			TransactionID: transactionID,
			From:          current,
			To:            next,
			Reason:        fmt.Sprintf("transition not allowed by %s policy", m.policy.Name()),
		}
	}
	return nil
}

// AuthoritativeStatus reduces the history to its latest entry, ignoring the index
func (m *StatusMachine) AuthoritativeStatus(ctx context.Context, transactionID uuid.UUID) (shared.TransactionStatus, error) {
	latest, err := m.history.GetLatest(ctx, transactionID)
	if err != nil {
		return "", fmt.Errorf("failed to read status history: %w", err)
	}
	if latest == nil {
		return shared.TransactionStatusPending, nil
	}
	return latest.Status, nil
}

// CurrentStatus serves from the latest status index and falls back to the history.
// Concurrent misses for the same transaction share one history read.
func (m *StatusMachine) CurrentStatus(ctx context.Context, transactionID uuid.UUID) (shared.TransactionStatus, error) {
	cached, ok, err := m.index.Get(ctx, transactionID)
	if err != nil {
		m.logger.Warn("Latest status index unavailable, reading history", "transaction_id", transactionID.String(), "error", err)
	} else if ok {
		return cached, nil
	}

	// the shared read must not fail every waiter when the caller that started it goes away
	results := m.group.DoChan(transactionID.String(), func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), statusReadTimeout)
		defer cancel()
		latest, err := m.history.GetLatest(ctx, transactionID)
		if err != nil {
			return nil, err
		}
		if latest == nil {
			return shared.TransactionStatusPending, nil
		}
		m.Indexed(ctx, latest)
		return latest.Status, nil
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-results:
		if res.Err != nil {
			return "", fmt.Errorf("failed to read status history: %w", res.Err)
		}
		return res.Val.(shared.TransactionStatus), nil
	}
}

// Indexed refreshes the latest status index after an entry was committed.
// When the refresh fails the entry is dropped so reads fall back to the history.
func (m *StatusMachine) Indexed(ctx context.Context, entry *status.Entry) {
	err := m.index.Set(ctx, entry.TransactionID, entry.Sequence, entry.Status)
	if err == nil {
		return
	}
	m.logger.Warn("Failed to update latest status index",
		"transaction_id", entry.TransactionID.String(),
		"status", string(entry.Status),
		"error", err,
	)

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), statusReadTimeout)
	defer cancel()
	if err := m.index.Delete(ctx, entry.TransactionID); err != nil {
		m.logger.Error("Failed to drop stale status index entry",
			"transaction_id", entry.TransactionID.String(),
			"error", err,
		)
	}
}
