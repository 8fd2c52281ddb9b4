package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/stl-ledger/internal/domain/audit"
	"github.com/stl-ledger/internal/domain/lock"
	"github.com/stl-ledger/internal/domain/shared"
	"github.com/stl-ledger/internal/domain/status"
	"github.com/stl-ledger/internal/domain/transaction"
)

// WorkerPoolLedgerWriter bounds the number of appends in flight.
// Callers block until their append has run on a pool worker.
type WorkerPoolLedgerWriter struct {
	base   LedgerWriter
	pool   *ants.Pool
	logger *slog.Logger
}

type WorkerPoolConfig struct {
	Size int
}

func NewWorkerPoolLedgerWriter(base LedgerWriter, config WorkerPoolConfig, logger *slog.Logger) (*WorkerPoolLedgerWriter, error) {
	if config.Size <= 0 {
		return nil, fmt.Errorf("worker pool size must be greater than 0, got %d", config.Size)
	}
	pool, err := ants.NewPool(config.Size)
	if err != nil {
		return nil, err
	}

	return &WorkerPoolLedgerWriter{
		base:   base,
		pool:   pool,
		logger: logger,
	}, nil
}

func (w *WorkerPoolLedgerWriter) AppendTransaction(ctx context.Context, req *shared.CreateTransactionRequest, actor shared.Actor) (*transaction.Transaction, error) {
	var tx *transaction.Transaction
	err := w.submit(ctx, "append_transaction", func() error {
		var err error
		tx, err = w.base.AppendTransaction(ctx, req, actor)
		return err
	})
	return tx, err
}

func (w *WorkerPoolLedgerWriter) ChangeStatus(ctx context.Context, transactionID uuid.UUID, next shared.TransactionStatus, reason string, actor shared.Actor) (*status.Entry, error) {
	var entry *status.Entry
	err := w.submit(ctx, "change_status", func() error {
		var err error
		entry, err = w.base.ChangeStatus(ctx, transactionID, next, reason, actor)
		return err
	})
	return entry, err
}

func (w *WorkerPoolLedgerWriter) PlaceLock(ctx context.Context, req PlaceLockRequest, actor shared.Actor) (*lock.Lock, error) {
	var l *lock.Lock
	err := w.submit(ctx, "place_lock", func() error {
		var err error
		l, err = w.base.PlaceLock(ctx, req, actor)
		return err
	})
	return l, err
}

func (w *WorkerPoolLedgerWriter) RecordAudit(ctx context.Context, transactionID uuid.UUID, actor shared.Actor, action shared.AuditActionType, metadata map[string]any) (*audit.Entry, error) {
	var entry *audit.Entry
	err := w.submit(ctx, "record_audit", func() error {
		var err error
		entry, err = w.base.RecordAudit(ctx, transactionID, actor, action, metadata)
		return err
	})
	return entry, err
}

// submit runs fn on a pool worker and waits for its result
func (w *WorkerPoolLedgerWriter) submit(ctx context.Context, op string, fn func() error) error {
	resultChan := make(chan error, 1)

	err := w.pool.Submit(func() {
		resultChan <- fn()
	})
	if err != nil {
		w.logger.Error("Failed to submit append to worker pool", "operation", op, "error", err)
		return err
	}

	select {
	case err := <-resultChan:
		return err
	case <-ctx.Done():
		// the worker still finishes; its append either commits whole or not at all
		return ctx.Err()
	}
}

// Shutdown gracefully shuts down the worker pool.
func (w *WorkerPoolLedgerWriter) Shutdown() {
	w.logger.Info("Shutting down worker pool", "running_workers", w.pool.Running())
	w.pool.Release()
}

// Running returns the number of running workers in the pool.
func (w *WorkerPoolLedgerWriter) Running() int {
	return w.pool.Running()
}

// Capacity returns the capacity of the worker pool.
func (w *WorkerPoolLedgerWriter) Capacity() int {
	return w.pool.Cap()
}
