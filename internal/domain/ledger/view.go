package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stl-ledger/internal/domain/lock"
	"github.com/stl-ledger/internal/domain/shared"
	"github.com/stl-ledger/internal/domain/transaction"
)

// TransactionView is the denormalised read model of a transaction.
// It is rebuilt from ledger events and never used for integrity decisions.
type TransactionView struct {
	TransactionID  uuid.UUID                `json:"transaction_id" bson:"transaction_id"`
	Sequence       int64                    `json:"sequence" bson:"sequence"`
	TypeID         uuid.UUID                `json:"type_id" bson:"type_id"`
	Amount         string                   `json:"amount" bson:"amount"`
	CurrencyCode   string                   `json:"currency_code" bson:"currency_code"`
	Hash           string                   `json:"hash" bson:"hash"`
	ParticipantIDs []uuid.UUID              `json:"participant_ids" bson:"participant_ids"`
	Participants   []ParticipantView        `json:"participants" bson:"participants"`
	Status         shared.TransactionStatus `json:"status" bson:"status"`
	StatusSequence int64                    `json:"status_sequence" bson:"status_sequence"`
	Locks          []LockView               `json:"locks,omitempty" bson:"locks,omitempty"`
	CreatedAt      time.Time                `json:"created_at" bson:"created_at"`
	UpdatedAt      time.Time                `json:"updated_at" bson:"updated_at"`
}

type ParticipantView struct {
	ParticipantID   uuid.UUID              `json:"participant_id" bson:"participant_id"`
	ParticipantType shared.ParticipantType `json:"participant_type" bson:"participant_type"`
	Role            shared.ParticipantRole `json:"role" bson:"role"`
	Amount          string                 `json:"amount,omitempty" bson:"amount,omitempty"`
}

type LockView struct {
	LockID    uuid.UUID       `json:"lock_id" bson:"lock_id"`
	LockType  shared.LockType `json:"lock_type" bson:"lock_type"`
	Reason    string          `json:"reason,omitempty" bson:"reason,omitempty"`
	ExpiresAt *time.Time      `json:"expires_at,omitempty" bson:"expires_at,omitempty"`
}

// NewTransactionView projects a freshly created transaction
func NewTransactionView(tx *transaction.Transaction, participants []*transaction.Participant, updatedAt time.Time) *TransactionView {
	view := &TransactionView{
		TransactionID: tx.ID,
		Sequence:      tx.Sequence,
		TypeID:        tx.TypeID,
		Amount:        tx.Amount.String(),
		CurrencyCode:  tx.CurrencyCode,
		Hash:          tx.Hash,
		Status:        shared.TransactionStatusPending,
		CreatedAt:     tx.CreatedAt,
		UpdatedAt:     updatedAt,
	}
	for _, p := range participants {
		view.ParticipantIDs = append(view.ParticipantIDs, p.ParticipantID)
		view.Participants = append(view.Participants, ParticipantView{
			ParticipantID:   p.ParticipantID,
			ParticipantType: p.ParticipantType,
			Role:            p.Role,
			Amount:          formatOptionalAmount(p.Amount),
		})
	}
	return view
}

// NewLockView projects a placed lock
func NewLockView(l *lock.Lock) LockView {
	return LockView{
		LockID:    l.ID,
		LockType:  l.LockType,
		Reason:    l.Reason,
		ExpiresAt: l.ExpiresAt,
	}
}

func formatOptionalAmount(amount *decimal.Decimal) string {
	if amount == nil {
		return ""
	}
	return amount.String()
}
