package transaction

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stl-ledger/internal/domain/chain"
	"github.com/stl-ledger/internal/domain/shared"
)

// Transaction is an immutable, chained ledger record
type Transaction struct {
	ID             uuid.UUID       `json:"id"`
	Sequence       int64           `json:"sequence"`
	TypeID         uuid.UUID       `json:"type_id"`
	Amount         decimal.Decimal `json:"amount"`
	CurrencyCode   string          `json:"currency_code"`
	Payload        map[string]any  `json:"payload,omitempty"`
	IdempotencyKey *string         `json:"idempotency_key,omitempty"`
	PreviousHash   *string         `json:"previous_hash,omitempty"`
	Hash           string          `json:"hash"`
	Signature      *string         `json:"signature,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// New builds an unsealed transaction positioned right after tail.
// createdAt is truncated to the storage precision so that the hash survives a round trip.
func New(req *shared.CreateTransactionRequest, tail chain.Tail, createdAt time.Time) *Transaction {
	tx := &Transaction{
		ID:           uuid.New(),
		Sequence:     tail.Sequence + 1,
		TypeID:       req.TypeID,
		Amount:       req.Amount,
		CurrencyCode: req.CurrencyCode,
		Payload:      req.Payload,
		PreviousHash: tail.Hash,
		CreatedAt:    createdAt.UTC().Truncate(time.Microsecond),
	}
	if req.IdempotencyKey != "" {
		key := req.IdempotencyKey
		tx.IdempotencyKey = &key
	}
	return tx
}

func (t *Transaction) ChainID() chain.ID { return chain.Transactions }

func (t *Transaction) RecordID() uuid.UUID { return t.ID }

func (t *Transaction) ChainSequence() int64 { return t.Sequence }

func (t *Transaction) PreviousLink() *string { return t.PreviousHash }

func (t *Transaction) LinkHash() string { return t.Hash }

func (t *Transaction) LinkSignature() *string { return t.Signature }

// LinkFields returns the hashed content of the transaction
func (t *Transaction) LinkFields() map[string]any {
	fields := map[string]any{
		"id":            t.ID.String(),
		"sequence":      t.Sequence,
		"type_id":       t.TypeID.String(),
		"amount":        t.Amount.String(),
		"currency_code": t.CurrencyCode,
		"created_at":    t.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if len(t.Payload) > 0 {
		fields["payload"] = t.Payload
	}
	if t.IdempotencyKey != nil {
		fields["idempotency_key"] = *t.IdempotencyKey
	}
	return fields
}

// Participant is a party to a transaction
type Participant struct {
	ID              uuid.UUID              `json:"id"`
	TransactionID   uuid.UUID              `json:"transaction_id"`
	ParticipantType shared.ParticipantType `json:"participant_type"`
	ParticipantID   uuid.UUID              `json:"participant_id"`
	Role            shared.ParticipantRole `json:"role"`
	Amount          *decimal.Decimal       `json:"amount,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
}

// NewParticipants converts participant requests into records of transaction tx
func NewParticipants(tx *Transaction, reqs []shared.ParticipantRequest) []*Participant {
	participants := make([]*Participant, 0, len(reqs))
	for _, req := range reqs {
		participants = append(participants, &Participant{
			ID:              uuid.New(),
			TransactionID:   tx.ID,
			ParticipantType: req.ParticipantType,
			ParticipantID:   req.ParticipantID,
			Role:            req.Role,
			Amount:          req.Amount,
			CreatedAt:       tx.CreatedAt,
		})
	}
	return participants
}
