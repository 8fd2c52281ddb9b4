package components

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/stl-ledger/internal/config"
	"github.com/stl-ledger/internal/domain/audit"
	"github.com/stl-ledger/internal/domain/ledger"
	"github.com/stl-ledger/internal/domain/lock"
	"github.com/stl-ledger/internal/domain/reference"
	"github.com/stl-ledger/internal/domain/status"
	"github.com/stl-ledger/internal/domain/transaction"
	"github.com/stl-ledger/internal/ledger_core/chain"
	"github.com/stl-ledger/internal/ledger_core/service"
	"github.com/stl-ledger/internal/platform/metrics"
)

// LedgerStores groups the storage the ledger core runs on
type LedgerStores struct {
	AppendLog    ledger.AppendLog
	// Halts persists chain halts. Without it a halt only lives as long as the process.
	Halts        ledger.HaltStore
	Transactions transaction.Repository
	Participants transaction.ParticipantRepository
	History      status.Repository
	Audits       audit.Repository
	Locks        lock.Repository
	References   reference.Store
	StatusIndex  status.Index
}

// LedgerCore is the wired ledger: its single writer, its reads and chain verification
type LedgerCore struct {
	Writer   service.LedgerWriter
	Query    *service.QueryService
	Verifier *service.ChainVerifier
	Guard    *service.IntegrityGuard

	pool *service.WorkerPoolLedgerWriter
}

// Shutdown releases the writer's worker pool
func (c *LedgerCore) Shutdown() {
	if c.pool != nil {
		c.pool.Shutdown()
	}
}

// CoreOptions carries the optional collaborators of the ledger core
type CoreOptions struct {
	ChainLocker service.ChainLocker
	Metrics     metrics.LedgerMetrics
	Now         func() time.Time
}

// CreateLedgerCore creates the ledger writer and query service with all their dependencies.
func CreateLedgerCore(stores LedgerStores, cfg *config.Config, opts CoreOptions, logger *slog.Logger) (*LedgerCore, error) {
	if opts.Metrics == nil {
		opts.Metrics = metrics.NoOpMetrics{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	var signer chain.Signer
	if cfg.Ledger.SigningEnabled {
		ed, err := chain.NewEd25519Signer(cfg.Ledger.SigningKeySeed)
		if err != nil {
			return nil, fmt.Errorf("failed to create record signer: %w", err)
		}
		signer = ed
		logger.Info("Record signing enabled", "public_key", ed.PublicKeyHex())
	}
	hasher := chain.NewHasher(signer)

	policy, err := NewTransitionPolicy(cfg.Ledger.TransitionPolicy)
	if err != nil {
		return nil, err
	}

	guard := service.NewIntegrityGuard(stores.Halts, opts.Metrics, logger.With("component", "integrity_guard"))
	validator := NewValidationEngine(stores.References, logger.With("component", "validation_engine"))
	statuses := NewStatusMachine(stores.History, stores.StatusIndex, policy, opts.Now, logger.With("component", "status_machine"))
	transactions := NewTransactionChain(hasher, stores.Transactions, stores.AppendLog, opts.Now, cfg.Ledger.VerifyBatchSize, logger.With("component", "transaction_chain"))
	auditLog := NewAuditLog(hasher, stores.Audits, stores.AppendLog, opts.Now, cfg.Ledger.VerifyBatchSize, logger.With("component", "audit_log"))
	locks := NewLockGate(stores.Locks, cfg.Ledger.EnforceLocks, opts.Now, logger.With("component", "lock_gate"))

	baseWriter := service.NewLedgerWriterService(service.WriterDeps{
		AppendLog:    stores.AppendLog,
		Transactions: stores.Transactions,
		Validator:    validator,
		Linker:       transactions,
		Statuses:     statuses,
		AuditLog:     auditLog,
		Locks:        locks,
		ChainLocker:  opts.ChainLocker,
		Guard:        guard,
		Metrics:      opts.Metrics,
		Now:          opts.Now,
	}, service.WriterConfig{
		MaxAttempts:        cfg.Ledger.MaxAppendAttempts,
		RetryBaseDelay:     cfg.Ledger.RetryBaseDelay,
		RetryMaxDelay:      cfg.Ledger.RetryMaxDelay,
		VerifyTailOnAppend: cfg.Ledger.VerifyTailOnAppend,
	}, logger.With("component", "ledger_writer"))

	query := service.NewQueryService(service.QueryDeps{
		Transactions: stores.Transactions,
		Participants: stores.Participants,
		History:      stores.History,
		Audits:       stores.Audits,
		Locks:        stores.Locks,
		References:   stores.References,
		Statuses:     statuses,
		Linker:       transactions,
		AuditLog:     auditLog,
		Guard:        guard,
		Metrics:      opts.Metrics,
		Now:          opts.Now,
	}, logger.With("component", "query_service"))

	core := &LedgerCore{
		Writer:   baseWriter,
		Query:    query,
		Verifier: service.NewChainVerifier(query, cfg.Ledger.VerifyInterval, logger.With("component", "chain_verifier")),
		Guard:    guard,
	}

	pool, err := service.NewWorkerPoolLedgerWriter(
		baseWriter,
		service.WorkerPoolConfig{Size: cfg.WorkerPool.Size},
		logger.With("component", "worker_pool"),
	)
	if err != nil {
		logger.Error("Failed to create worker pool writer, falling back to base writer", "error", err)
		return core, nil
	}

	logger.Info("Created worker pool ledger writer", "pool_size", cfg.WorkerPool.Size)
	core.Writer = pool
	core.pool = pool
	return core, nil
}
