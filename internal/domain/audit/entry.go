package audit

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/stl-ledger/internal/domain/chain"
	"github.com/stl-ledger/internal/domain/shared"
)

// Entry is an immutable, chained audit record. All entries form one global chain.
type Entry struct {
	ID            uuid.UUID              `json:"id"`
	Sequence      int64                  `json:"sequence"`
	TransactionID uuid.UUID              `json:"transaction_id"`
	ActorType     shared.ActorType       `json:"actor_type"`
	ActorID       *uuid.UUID             `json:"actor_id,omitempty"`
	ActionType    shared.AuditActionType `json:"action_type"`
	Metadata      map[string]any         `json:"metadata,omitempty"`
	PreviousHash  *string                `json:"previous_hash,omitempty"`
	Hash          string                 `json:"hash"`
	Signature     *string                `json:"signature,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
}

func (e *Entry) ChainID() chain.ID { return chain.Audit }

func (e *Entry) RecordID() uuid.UUID { return e.ID }

func (e *Entry) ChainSequence() int64 { return e.Sequence }

func (e *Entry) PreviousLink() *string { return e.PreviousHash }

func (e *Entry) LinkHash() string { return e.Hash }

func (e *Entry) LinkSignature() *string { return e.Signature }

func (e *Entry) LinkFields() map[string]any {
	fields := map[string]any{
		"id":             e.ID.String(),
		"sequence":       e.Sequence,
		"transaction_id": e.TransactionID.String(),
		"actor_type":     string(e.ActorType),
		"action_type":    string(e.ActionType),
		"created_at":     e.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if e.ActorID != nil {
		fields["actor_id"] = e.ActorID.String()
	}
	if len(e.Metadata) > 0 {
		fields["metadata"] = e.Metadata
	}
	return fields
}

// Repository is the read side of the audit log
type Repository interface {
	GetByTransactionID(ctx context.Context, transactionID uuid.UUID) ([]*Entry, error)
	GetByActor(ctx context.Context, actorType shared.ActorType, actorID uuid.UUID, limit, offset int) ([]*Entry, error)
	GetBySequence(ctx context.Context, sequence int64) (*Entry, error)
	// ListAfterSequence returns at most limit entries with sequence in (after, to], ordered by sequence
	ListAfterSequence(ctx context.Context, after, to int64, limit int) ([]*Entry, error)
}

// ErrEntryNotFound indicates a missing audit entry
type ErrEntryNotFound struct {
	Sequence int64
}

func (e ErrEntryNotFound) Error() string {
	return "audit entry not found at sequence " + strconv.FormatInt(e.Sequence, 10)
}
