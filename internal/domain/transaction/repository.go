package transaction

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Filter narrows transaction listings. Zero values are ignored.
type Filter struct {
	TypeID       *uuid.UUID
	CurrencyCode string
	From         *time.Time
	To           *time.Time
	Limit        int
	Offset       int
}

// Repository is the read side of transaction persistence.
// Writes only happen through ledger.AppendLog.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Transaction, error)
	// GetByIdempotencyKey returns nil, nil when no transaction uses the key
	GetByIdempotencyKey(ctx context.Context, key string) (*Transaction, error)
	GetBySequence(ctx context.Context, sequence int64) (*Transaction, error)
	List(ctx context.Context, filter Filter) ([]*Transaction, error)
	Count(ctx context.Context, filter Filter) (int64, error)
	// ListAfterSequence returns at most limit transactions with sequence in (after, to], ordered by sequence
	ListAfterSequence(ctx context.Context, after, to int64, limit int) ([]*Transaction, error)
}

// ParticipantRepository is the read side of participant persistence
type ParticipantRepository interface {
	GetByTransactionID(ctx context.Context, transactionID uuid.UUID) ([]*Participant, error)
	GetByParticipantID(ctx context.Context, participantID uuid.UUID) ([]*Participant, error)
}
