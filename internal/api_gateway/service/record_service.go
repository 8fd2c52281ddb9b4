package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/stl-ledger/internal/domain/audit"
	"github.com/stl-ledger/internal/domain/lock"
	"github.com/stl-ledger/internal/domain/shared"
	"github.com/stl-ledger/internal/domain/status"
	ledgerservice "github.com/stl-ledger/internal/ledger_core/service"
)

// RecordServiceImpl implements the RecordService interface on top of the ledger writer
type RecordServiceImpl struct {
	writer ledgerservice.LedgerWriter
	reader LedgerReader
	logger *slog.Logger
}

func NewRecordService(logger *slog.Logger, writer ledgerservice.LedgerWriter, reader LedgerReader) RecordService {
	return &RecordServiceImpl{
		writer: writer,
		reader: reader,
		logger: logger,
	}
}

func (s *RecordServiceImpl) CurrentStatus(ctx context.Context, transactionID uuid.UUID) (shared.TransactionStatus, error) {
	return s.reader.CurrentStatus(ctx, transactionID)
}

func (s *RecordServiceImpl) GetStatusHistory(ctx context.Context, transactionID uuid.UUID) ([]*status.Entry, error) {
	return s.reader.GetStatusHistory(ctx, transactionID)
}

func (s *RecordServiceImpl) ChangeStatus(ctx context.Context, transactionID uuid.UUID, next shared.TransactionStatus, reason string, actor shared.Actor) (*status.Entry, error) {
	entry, err := s.writer.ChangeStatus(ctx, transactionID, next, reason, actor)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Transaction status changed",
		"transaction_id", transactionID,
		"status", string(entry.Status),
		"actor_type", string(actor.Type),
	)
	return entry, nil
}

func (s *RecordServiceImpl) GetAuditTrail(ctx context.Context, transactionID uuid.UUID) ([]*audit.Entry, error) {
	return s.reader.GetAuditTrail(ctx, transactionID)
}

func (s *RecordServiceImpl) RecordAudit(ctx context.Context, transactionID uuid.UUID, action shared.AuditActionType, metadata map[string]any, actor shared.Actor) (*audit.Entry, error) {
	return s.writer.RecordAudit(ctx, transactionID, actor, action, metadata)
}

// GetActorAudit pages through what one actor recorded across all transactions
func (s *RecordServiceImpl) GetActorAudit(ctx context.Context, actor shared.Actor, page, perPage int) ([]*audit.Entry, error) {
	return s.reader.GetAuditByActor(ctx, actor, perPage, (page-1)*perPage)
}

func (s *RecordServiceImpl) GetLocks(ctx context.Context, transactionID uuid.UUID, activeOnly bool) ([]*lock.Lock, error) {
	return s.reader.GetLocks(ctx, transactionID, activeOnly)
}

func (s *RecordServiceImpl) PlaceLock(ctx context.Context, transactionID uuid.UUID, lockType shared.LockType, reason string, expiresAt *time.Time, actor shared.Actor) (*lock.Lock, error) {
	placed, err := s.writer.PlaceLock(ctx, ledgerservice.PlaceLockRequest{
		TransactionID: transactionID,
		LockType:      lockType,
		Reason:        reason,
		ExpiresAt:     expiresAt,
	}, actor)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Lock placed",
		"transaction_id", transactionID,
		"lock_id", placed.ID,
		"lock_type", string(placed.LockType),
	)
	return placed, nil
}
