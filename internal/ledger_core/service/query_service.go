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
	"github.com/stl-ledger/internal/domain/lock"
	"github.com/stl-ledger/internal/domain/reference"
	"github.com/stl-ledger/internal/domain/shared"
	"github.com/stl-ledger/internal/domain/status"
	"github.com/stl-ledger/internal/domain/transaction"
	"github.com/stl-ledger/internal/platform/metrics"
)

// QueryService serves reads over the append-only records and chain verification
type QueryService struct {
	transactions transaction.Repository
	participants transaction.ParticipantRepository
	history      status.Repository
	audits       audit.Repository
	locks        lock.Repository
	references   reference.Store
	statuses     StatusMachine
	linker       TransactionLinker
	auditLog     AuditLog
	guard        *IntegrityGuard
	metrics      metrics.LedgerMetrics
	now          func() time.Time
	logger       *slog.Logger
}

// QueryDeps groups the collaborators of the query service
type QueryDeps struct {
	Transactions transaction.Repository
	Participants transaction.ParticipantRepository
	History      status.Repository
	Audits       audit.Repository
	Locks        lock.Repository
	References   reference.Store
	Statuses     StatusMachine
	Linker       TransactionLinker
	AuditLog     AuditLog
	Guard        *IntegrityGuard
	Metrics      metrics.LedgerMetrics
	Now          func() time.Time
}

func NewQueryService(deps QueryDeps, logger *slog.Logger) *QueryService {
	if deps.Metrics == nil {
		deps.Metrics = metrics.NoOpMetrics{}
	}
	if deps.Guard == nil {
		deps.Guard = NewIntegrityGuard(nil, deps.Metrics, logger)
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &QueryService{
		transactions: deps.Transactions,
		participants: deps.Participants,
		history:      deps.History,
		audits:       deps.Audits,
		locks:        deps.Locks,
		references:   deps.References,
		statuses:     deps.Statuses,
		linker:       deps.Linker,
		auditLog:     deps.AuditLog,
		guard:        deps.Guard,
		metrics:      deps.Metrics,
		now:          deps.Now,
		logger:       logger,
	}
}

func (s *QueryService) GetTransaction(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error) {
	tx, err := s.transactions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrTransactionNotFound{}) {
			return nil, shared.ErrTransactionNotFound{TransactionID: id}
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return tx, nil
}

// GetByIdempotencyKey returns nil, nil when no transaction uses key
func (s *QueryService) GetByIdempotencyKey(ctx context.Context, key string) (*transaction.Transaction, error) {
	tx, err := s.transactions.GetByIdempotencyKey(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction by idempotency key: %w", err)
	}
	return tx, nil
}

// ListTransactions returns one page of transactions and the total matching the filter
func (s *QueryService) ListTransactions(ctx context.Context, filter transaction.Filter) ([]*transaction.Transaction, int64, error) {
	txs, err := s.transactions.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list transactions: %w", err)
	}
	total, err := s.transactions.Count(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return txs, total, nil
}

func (s *QueryService) GetParticipants(ctx context.Context, transactionID uuid.UUID) ([]*transaction.Participant, error) {
	if _, err := s.GetTransaction(ctx, transactionID); err != nil {
		return nil, err
	}
	participants, err := s.participants.GetByTransactionID(ctx, transactionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get participants: %w", err)
	}
	return participants, nil
}

// GetParticipations returns every participant record of participantID, newest first
func (s *QueryService) GetParticipations(ctx context.Context, participantID uuid.UUID) ([]*transaction.Participant, error) {
	participations, err := s.participants.GetByParticipantID(ctx, participantID)
	if err != nil {
		return nil, fmt.Errorf("failed to get participations: %w", err)
	}
	return participations, nil
}

// CurrentStatus returns the latest status of an existing transaction
func (s *QueryService) CurrentStatus(ctx context.Context, transactionID uuid.UUID) (shared.TransactionStatus, error) {
	if _, err := s.GetTransaction(ctx, transactionID); err != nil {
		return "", err
	}
	return s.statuses.CurrentStatus(ctx, transactionID)
}

func (s *QueryService) GetStatusHistory(ctx context.Context, transactionID uuid.UUID) ([]*status.Entry, error) {
	if _, err := s.GetTransaction(ctx, transactionID); err != nil {
		return nil, err
	}
	entries, err := s.history.GetHistory(ctx, transactionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get status history: %w", err)
	}
	return entries, nil
}

func (s *QueryService) GetAuditTrail(ctx context.Context, transactionID uuid.UUID) ([]*audit.Entry, error) {
	if _, err := s.GetTransaction(ctx, transactionID); err != nil {
		return nil, err
	}
	entries, err := s.audits.GetByTransactionID(ctx, transactionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get audit trail: %w", err)
	}
	return entries, nil
}

// GetAuditByActor pages through the audit entries recorded by an identified actor, newest first
func (s *QueryService) GetAuditByActor(ctx context.Context, actor shared.Actor, limit, offset int) ([]*audit.Entry, error) {
	if !actor.Type.IsValid() {
		return nil, shared.NewValidationError(shared.CodeInvalidActorType, "unknown actor type %q", actor.Type)
	}
	if actor.ID == nil {
		return nil, shared.NewValidationError(shared.CodeMissingActorID, "an actor id is required to list its audit entries")
	}
	entries, err := s.audits.GetByActor(ctx, actor.Type, *actor.ID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get audit entries of actor: %w", err)
	}
	return entries, nil
}

// GetLocks returns every lock of a transaction, or only the unexpired ones
func (s *QueryService) GetLocks(ctx context.Context, transactionID uuid.UUID, activeOnly bool) ([]*lock.Lock, error) {
	if _, err := s.GetTransaction(ctx, transactionID); err != nil {
		return nil, err
	}

	var (
		locks []*lock.Lock
		err   error
	)
	if activeOnly {
		locks, err = s.locks.GetActive(ctx, transactionID, s.now())
	} else {
		locks, err = s.locks.GetByTransactionID(ctx, transactionID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get locks: %w", err)
	}
	return locks, nil
}

func (s *QueryService) ListCurrencies(ctx context.Context) ([]*reference.Currency, error) {
	return s.references.ListCurrencies(ctx)
}

// GetCurrency reports an unknown code as shared.ErrReferenceNotFound
func (s *QueryService) GetCurrency(ctx context.Context, code string) (*reference.Currency, error) {
	return s.references.GetCurrency(ctx, code)
}

func (s *QueryService) ListTransactionTypes(ctx context.Context) ([]*reference.TransactionType, error) {
	return s.references.ListTransactionTypes(ctx)
}

// VerifyChain replays a chain segment. A violation halts appends to the chain;
// the report describing it is returned together with the violation.
func (s *QueryService) VerifyChain(ctx context.Context, id chain.ID, from, to int64) (*chain.Report, error) {
	var (
		report *chain.Report
		err    error
	)
	switch id {
	case chain.Transactions:
		report, err = s.linker.VerifyChain(ctx, from, to)
	case chain.Audit:
		report, err = s.auditLog.VerifyChain(ctx, from, to)
	default:
		return nil, fmt.Errorf("unknown chain %q", id)
	}

	var violation shared.ErrChainIntegrityViolation
	if errors.As(err, &violation) {
		s.metrics.RecordChainVerification(string(id), false)
		s.guard.Halt(ctx, violation)
		return report, violation
	}
	if err != nil {
		return nil, err
	}

	s.metrics.RecordChainVerification(string(id), true)
	s.logger.Debug("Chain verified",
		"chain", string(id),
		"from", report.From,
		"to", report.To,
		"checked", report.Checked,
	)
	return report, nil
}

// HaltedChains lists the chains refusing appends after a violation
func (s *QueryService) HaltedChains(ctx context.Context) []chain.ID {
	return s.guard.Halted(ctx)
}
