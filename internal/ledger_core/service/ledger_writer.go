package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/stl-ledger/internal/domain/audit"
	"github.com/stl-ledger/internal/domain/chain"
	"github.com/stl-ledger/internal/domain/ledger"
	"github.com/stl-ledger/internal/domain/lock"
	"github.com/stl-ledger/internal/domain/shared"
	"github.com/stl-ledger/internal/domain/status"
	"github.com/stl-ledger/internal/domain/transaction"
	"github.com/stl-ledger/internal/platform/metrics"
)

const initialStatusReason = "Transaction created"

// WriterConfig bounds the optimistic compare-and-append retry loop
type WriterConfig struct {
	MaxAttempts        int
	RetryBaseDelay     time.Duration
	RetryMaxDelay      time.Duration
	VerifyTailOnAppend bool
}

// DefaultWriterConfig returns the retry budget used when none is configured
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		MaxAttempts:        5,
		RetryBaseDelay:     5 * time.Millisecond,
		RetryMaxDelay:      200 * time.Millisecond,
		VerifyTailOnAppend: true,
	}
}

// LedgerWriterService appends records to the ledger chains.
// Every append reads the chain tails, links new records against them and commits
// the batch only if the tails are unchanged. Lost races are retried with backoff.
type LedgerWriterService struct {
	appendLog    ledger.AppendLog
	transactions transaction.Repository
	validator    Validator
	linker       TransactionLinker
	statuses     StatusMachine
	auditLog     AuditLog
	locks        LockGate
	chainLocker  ChainLocker
	guard        *IntegrityGuard
	metrics      metrics.LedgerMetrics
	config       WriterConfig
	now          func() time.Time
	logger       *slog.Logger
}

// WriterDeps groups the collaborators of the ledger writer
type WriterDeps struct {
	AppendLog    ledger.AppendLog
	Transactions transaction.Repository
	Validator    Validator
	Linker       TransactionLinker
	Statuses     StatusMachine
	AuditLog     AuditLog
	Locks        LockGate
	ChainLocker  ChainLocker
	Guard        *IntegrityGuard
	Metrics      metrics.LedgerMetrics
	Now          func() time.Time
}

func NewLedgerWriterService(deps WriterDeps, config WriterConfig, logger *slog.Logger) *LedgerWriterService {
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}
	if deps.ChainLocker == nil {
		deps.ChainLocker = NoopChainLocker{}
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NoOpMetrics{}
	}
	if deps.Guard == nil {
		deps.Guard = NewIntegrityGuard(nil, deps.Metrics, logger)
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &LedgerWriterService{
		appendLog:    deps.AppendLog,
		transactions: deps.Transactions,
		validator:    deps.Validator,
		linker:       deps.Linker,
		statuses:     deps.Statuses,
		auditLog:     deps.AuditLog,
		locks:        deps.Locks,
		chainLocker:  deps.ChainLocker,
		guard:        deps.Guard,
		metrics:      deps.Metrics,
		config:       config,
		now:          deps.Now,
		logger:       logger,
	}
}

// AppendTransaction validates req and appends the transaction with its participants,
// its initial PENDING status and a CREATE audit entry as one atomic unit.
func (w *LedgerWriterService) AppendTransaction(ctx context.Context, req *shared.CreateTransactionRequest, actor shared.Actor) (*transaction.Transaction, error) {
	if req == nil {
		return nil, shared.NewValidationError(shared.CodeInvalidAmount, "Transaction request is required")
	}
	if _, err := w.validator.ValidateCreationRequest(ctx, req); err != nil {
		return nil, err
	}

	batch, err := w.appendWithRetry(ctx, chain.Transactions, func(ctx context.Context) (*ledger.Batch, error) {
		if err := w.guard.Check(chain.Transactions, chain.Audit); err != nil {
			return nil, err
		}
		// a reference removed after validation must not leave a dangling record
		refs, err := w.validator.ResolveReferences(ctx, req)
		if err != nil {
			return nil, err
		}

		txTail, auditTail, err := w.readTails(ctx, true)
		if err != nil {
			return nil, err
		}

		tx, err := w.linker.Link(txTail, req)
		if err != nil {
			return nil, err
		}
		entry, err := w.auditLog.Prepare(auditTail, tx.ID, actor, shared.AuditActionCreate, map[string]any{
			"amount":           tx.Amount.String(),
			"currency_code":    tx.CurrencyCode,
			"transaction_type": refs.TransactionType.Name,
		})
		if err != nil {
			return nil, err
		}

		initial := w.statuses.InitialStatus(tx.ID, initialStatusReason)
		participants := transaction.NewParticipants(tx, req.Participants)

		return &ledger.Batch{
			ExpectTransactionTail: &txTail,
			ExpectAuditTail:       &auditTail,
			Transaction:           tx,
			Participants:          participants,
			StatusEntries:         []*status.Entry{initial},
			AuditEntries:          []*audit.Entry{entry},
			Events: []*ledger.Event{{
				Type:          shared.EventTransactionCreated,
				TransactionID: tx.ID,
				Transaction:   tx,
				Participants:  participants,
				Status:        initial,
				Audit:         entry,
				OccurredAt:    w.now().UTC(),
			}},
		}, nil
	})
	if err != nil {
		return nil, err
	}

	w.statuses.Indexed(ctx, batch.StatusEntries[0])
	w.logger.Info("Transaction appended",
		"transaction_id", batch.Transaction.ID.String(),
		"sequence", batch.Transaction.Sequence,
		"actor_type", string(actor.Type),
	)
	return batch.Transaction, nil
}

// ChangeStatus appends a status entry and its audit entry. The audit chain
// compare-and-append serializes concurrent changes of any transaction, so the
// transition is always checked against the status it is appended after.
func (w *LedgerWriterService) ChangeStatus(ctx context.Context, transactionID uuid.UUID, next shared.TransactionStatus, reason string, actor shared.Actor) (*status.Entry, error) {
	if !next.IsValid() {
		return nil, shared.NewValidationError(shared.CodeInvalidStatus, "Unknown transaction status: %s", next)
	}
	if err := w.ensureTransaction(ctx, transactionID); err != nil {
		return nil, err
	}

	batch, err := w.appendWithRetry(ctx, chain.Audit, func(ctx context.Context) (*ledger.Batch, error) {
		if err := w.guard.Check(chain.Audit); err != nil {
			return nil, err
		}
		// the tail is read before the status so that any concurrent change invalidates this attempt
		_, auditTail, err := w.readTails(ctx, false)
		if err != nil {
			return nil, err
		}

		current, err := w.statuses.AuthoritativeStatus(ctx, transactionID)
		if err != nil {
			return nil, err
		}
		if err := w.statuses.CheckTransition(transactionID, current, next); err != nil {
			return nil, err
		}
		if err := w.locks.Check(ctx, transactionID, next); err != nil {
			return nil, err
		}

		entry := w.statuses.NewEntry(transactionID, next, reason)
		metadata := map[string]any{
			"from": string(current),
			"to":   string(next),
		}
		if reason != "" {
			metadata["reason"] = reason
		}
		auditEntry, err := w.auditLog.Prepare(auditTail, transactionID, actor, shared.ActionForStatus(next), metadata)
		if err != nil {
			return nil, err
		}

		return &ledger.Batch{
			ExpectAuditTail: &auditTail,
			StatusEntries:   []*status.Entry{entry},
			AuditEntries:    []*audit.Entry{auditEntry},
			Events: []*ledger.Event{{
				Type:          shared.EventStatusChanged,
				TransactionID: transactionID,
				Status:        entry,
				Audit:         auditEntry,
				OccurredAt:    w.now().UTC(),
			}},
		}, nil
	})
	if err != nil {
		return nil, err
	}

	entry := batch.StatusEntries[0]
	w.statuses.Indexed(ctx, entry)
	w.logger.Info("Transaction status changed",
		"transaction_id", transactionID.String(),
		"status", string(entry.Status),
		"sequence", entry.Sequence,
	)
	return entry, nil
}

// PlaceLock appends a lock and its LOCK audit entry
func (w *LedgerWriterService) PlaceLock(ctx context.Context, req PlaceLockRequest, actor shared.Actor) (*lock.Lock, error) {
	if !req.LockType.IsValid() {
		return nil, shared.NewValidationError(shared.CodeInvalidLockType, "Unknown lock type: %s", req.LockType)
	}
	if err := w.ensureTransaction(ctx, req.TransactionID); err != nil {
		return nil, err
	}

	batch, err := w.appendWithRetry(ctx, chain.Audit, func(ctx context.Context) (*ledger.Batch, error) {
		if err := w.guard.Check(chain.Audit); err != nil {
			return nil, err
		}
		_, auditTail, err := w.readTails(ctx, false)
		if err != nil {
			return nil, err
		}

		l, err := w.locks.NewLock(req.TransactionID, req.LockType, actor.ID, req.Reason, req.ExpiresAt)
		if err != nil {
			return nil, err
		}
		metadata := map[string]any{
			"lock_id":   l.ID.String(),
			"lock_type": string(l.LockType),
		}
		if l.Reason != "" {
			metadata["reason"] = l.Reason
		}
		if l.ExpiresAt != nil {
			metadata["expires_at"] = l.ExpiresAt.UTC().Format(time.RFC3339Nano)
		}
		auditEntry, err := w.auditLog.Prepare(auditTail, req.TransactionID, actor, shared.AuditActionLock, metadata)
		if err != nil {
			return nil, err
		}

		return &ledger.Batch{
			ExpectAuditTail: &auditTail,
			AuditEntries:    []*audit.Entry{auditEntry},
			Locks:           []*lock.Lock{l},
			Events: []*ledger.Event{{
				Type:          shared.EventLockPlaced,
				TransactionID: req.TransactionID,
				Lock:          l,
				Audit:         auditEntry,
				OccurredAt:    w.now().UTC(),
			}},
		}, nil
	})
	if err != nil {
		return nil, err
	}

	l := batch.Locks[0]
	w.logger.Info("Transaction lock placed",
		"transaction_id", req.TransactionID.String(),
		"lock_type", string(l.LockType),
	)
	return l, nil
}

// RecordAudit appends a standalone audit entry for an existing transaction
func (w *LedgerWriterService) RecordAudit(ctx context.Context, transactionID uuid.UUID, actor shared.Actor, action shared.AuditActionType, metadata map[string]any) (*audit.Entry, error) {
	if !action.IsValid() {
		return nil, shared.NewValidationError(shared.CodeInvalidActionType, "Unknown audit action type: %s", action)
	}
	if err := w.ensureTransaction(ctx, transactionID); err != nil {
		return nil, err
	}

	batch, err := w.appendWithRetry(ctx, chain.Audit, func(ctx context.Context) (*ledger.Batch, error) {
		if err := w.guard.Check(chain.Audit); err != nil {
			return nil, err
		}
		_, auditTail, err := w.readTails(ctx, false)
		if err != nil {
			return nil, err
		}

		entry, err := w.auditLog.Prepare(auditTail, transactionID, actor, action, metadata)
		if err != nil {
			return nil, err
		}
		return &ledger.Batch{
			ExpectAuditTail: &auditTail,
			AuditEntries:    []*audit.Entry{entry},
			Events: []*ledger.Event{{
				Type:          shared.EventAuditRecorded,
				TransactionID: transactionID,
				Audit:         entry,
				OccurredAt:    w.now().UTC(),
			}},
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return batch.AuditEntries[0], nil
}

func (w *LedgerWriterService) ensureTransaction(ctx context.Context, transactionID uuid.UUID) error {
	if _, err := w.transactions.GetByID(ctx, transactionID); err != nil {
		if errors.Is(err, shared.ErrTransactionNotFound{}) {
			return shared.ErrTransactionNotFound{TransactionID: transactionID}
		}
		return fmt.Errorf("failed to load transaction: %w", err)
	}
	return nil
}

// readTails reads the audit tail and, when withTransactions is set, the transaction tail.
// A tail halted by any writer is refused. With tail verification enabled a tampered
// tail halts the chain before it is extended.
func (w *LedgerWriterService) readTails(ctx context.Context, withTransactions bool) (chain.Tail, chain.Tail, error) {
	var txTail chain.Tail
	if withTransactions {
		tail, err := w.appendLog.LatestInChain(ctx, chain.Transactions)
		if err != nil {
			return chain.Tail{}, chain.Tail{}, fmt.Errorf("failed to read transaction chain tail: %w", err)
		}
		if err := w.guard.CheckTail(tail); err != nil {
			return chain.Tail{}, chain.Tail{}, err
		}
		if w.config.VerifyTailOnAppend {
			if err := w.linker.VerifyTail(ctx, tail); err != nil {
				return chain.Tail{}, chain.Tail{}, err
			}
		}
		txTail = tail
	}

	auditTail, err := w.appendLog.LatestInChain(ctx, chain.Audit)
	if err != nil {
		return chain.Tail{}, chain.Tail{}, fmt.Errorf("failed to read audit chain tail: %w", err)
	}
	if err := w.guard.CheckTail(auditTail); err != nil {
		return chain.Tail{}, chain.Tail{}, err
	}
	if w.config.VerifyTailOnAppend {
		if err := w.auditLog.VerifyTail(ctx, auditTail); err != nil {
			return chain.Tail{}, chain.Tail{}, err
		}
	}
	return txTail, auditTail, nil
}

// appendWithRetry builds and commits a batch, rebuilding it against fresh tails
// whenever the commit loses a race, up to the configured number of attempts.
func (w *LedgerWriterService) appendWithRetry(ctx context.Context, primary chain.ID, build func(ctx context.Context) (*ledger.Batch, error)) (*ledger.Batch, error) {
	start := time.Now()

	for attempt := 1; ; attempt++ {
		var committed *ledger.Batch
		err := w.chainLocker.WithChainLock(ctx, chain.Audit, func(ctx context.Context) error {
			batch, err := build(ctx)
			if err != nil {
				return err
			}
			if err := w.appendLog.AppendAtomic(ctx, batch); err != nil {
				return err
			}
			committed = batch
			return nil
		})
		if err == nil {
			w.metrics.RecordAppend(string(primary), metrics.OutcomeCommitted, time.Since(start))
			return committed, nil
		}

		var conflict shared.ErrConcurrentAppendConflict
		if !errors.As(err, &conflict) {
			w.recordFailure(ctx, primary, err, start)
			return nil, err
		}

		w.metrics.RecordAppendConflict(conflict.Chain)
		if attempt >= w.config.MaxAttempts {
			w.metrics.RecordAppend(string(primary), metrics.OutcomeConflict, time.Since(start))
			w.logger.Warn("Append retry budget exhausted",
				"chain", conflict.Chain,
				"attempts", attempt,
			)
			return nil, shared.ErrConcurrentAppendConflict{Chain: conflict.Chain, Attempts: attempt}
		}

		delay := fullJitter(exponential(w.config.RetryBaseDelay, w.config.RetryMaxDelay, attempt-1))
		w.logger.Debug("Chain tail moved, retrying append",
			"chain", conflict.Chain,
			"attempt", attempt,
			"delay", delay,
		)
		if err := sleepWithContext(ctx, delay); err != nil {
			return nil, err
		}
	}
}

func (w *LedgerWriterService) recordFailure(ctx context.Context, primary chain.ID, err error, start time.Time) {
	var violation shared.ErrChainIntegrityViolation
	if errors.As(err, &violation) {
		w.guard.Halt(ctx, violation)
		w.metrics.RecordAppend(string(primary), metrics.OutcomeError, time.Since(start))
		return
	}

	var coded shared.CodedError
	if errors.As(err, &coded) {
		w.metrics.RecordAppend(string(primary), metrics.OutcomeRejected, time.Since(start))
		return
	}
	if errors.Is(err, shared.ErrDuplicateIdempotencyKey{}) {
		w.metrics.RecordAppend(string(primary), metrics.OutcomeRejected, time.Since(start))
		return
	}
	w.metrics.RecordAppend(string(primary), metrics.OutcomeError, time.Since(start))
}
