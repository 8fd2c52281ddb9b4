package components

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/stl-ledger/internal/domain/audit"
	domainchain "github.com/stl-ledger/internal/domain/chain"
	"github.com/stl-ledger/internal/domain/shared"
	"github.com/stl-ledger/internal/ledger_core/chain"
)

// AuditLog builds entries of the global audit chain and verifies it
type AuditLog struct {
	hasher    *chain.Hasher
	entries   audit.Repository
	tails     TailReader
	now       func() time.Time
	batchSize int
	logger    *slog.Logger
}

func NewAuditLog(hasher *chain.Hasher, entries audit.Repository, tails TailReader, now func() time.Time, batchSize int, logger *slog.Logger) *AuditLog {
	if now == nil {
		now = time.Now
	}
	return &AuditLog{
		hasher:    hasher,
		entries:   entries,
		tails:     tails,
		now:       now,
		batchSize: batchSize,
		logger:    logger,
	}
}

// Prepare builds and seals the audit entry that follows tail
func (a *AuditLog) Prepare(tail domainchain.Tail, transactionID uuid.UUID, actor shared.Actor, action shared.AuditActionType, metadata map[string]any) (*audit.Entry, error) {
	if !action.IsValid() {
		return nil, shared.NewValidationError(shared.CodeInvalidActionType, "Unknown audit action type: %s", action)
	}
	if !actor.Type.IsValid() {
		return nil, shared.NewValidationError(shared.CodeInvalidActorType, "Unknown actor type: %s", actor.Type)
	}
	if actor.Type.RequiresActorID() && (actor.ID == nil || *actor.ID == uuid.Nil) {
		return nil, shared.NewValidationError(shared.CodeMissingActorID, "Actor id is required for actor type %s", actor.Type)
	}

	normalized, err := chain.NormalizeFields(metadata)
	if err != nil {
		return nil, err
	}

	entry := &audit.Entry{
		ID:            uuid.New(),
		Sequence:      tail.Sequence + 1,
		TransactionID: transactionID,
		ActorType:     actor.Type,
		ActorID:       actor.ID,
		ActionType:    action,
		Metadata:      normalized,
		PreviousHash:  tail.Hash,
		CreatedAt:     a.now().UTC().Truncate(time.Microsecond),
	}
	entry.Hash, entry.Signature, err = a.hasher.Seal(entry)
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// VerifyTail re-checks the record the audit tail points at before the chain is extended
func (a *AuditLog) VerifyTail(ctx context.Context, tail domainchain.Tail) error {
	return verifyTail(ctx, a.hasher, tail, a.loadRecord)
}

// VerifyChain replays the audit chain from..to (inclusive, to <= 0 means the tail)
// and reports the first violation
func (a *AuditLog) VerifyChain(ctx context.Context, from, to int64) (*domainchain.Report, error) {
	report, err := verifySegment(ctx, a.hasher, a.tails, segmentSource{
		id:     domainchain.Audit,
		anchor: a.loadRecord,
		page: func(ctx context.Context, after, to int64, limit int) ([]domainchain.Record, error) {
			entries, err := a.entries.ListAfterSequence(ctx, after, to, limit)
			if err != nil {
				return nil, err
			}
			records := make([]domainchain.Record, 0, len(entries))
			for _, e := range entries {
				records = append(records, e)
			}
			return records, nil
		},
	}, from, to, a.batchSize)
	if err != nil {
		a.logger.Error("Audit chain verification failed", "from", from, "to", to, "error", err)
		return report, err
	}
	a.logger.Info("Audit chain verified", "from", report.From, "to", report.To, "checked", report.Checked)
	return report, nil
}

func (a *AuditLog) loadRecord(ctx context.Context, sequence int64) (domainchain.Record, error) {
	return a.entries.GetBySequence(ctx, sequence)
}
