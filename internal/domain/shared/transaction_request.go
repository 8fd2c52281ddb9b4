package shared

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Actor is the already authenticated identity performing a ledger operation
type Actor struct {
	Type ActorType  `json:"type"`
	ID   *uuid.UUID `json:"id,omitempty"`
}

// SystemActor is used for actions the ledger performs on its own behalf
func SystemActor() Actor {
	return Actor{Type: ActorTypeSystem}
}

// CreateTransactionRequest carries everything needed to append a transaction
type CreateTransactionRequest struct {
	TypeID         uuid.UUID            `json:"type_id"`
	Amount         decimal.Decimal      `json:"amount"`
	CurrencyCode   string               `json:"currency_code"`
	Payload        map[string]any       `json:"payload,omitempty"`
	IdempotencyKey string               `json:"idempotency_key,omitempty"`
	Participants   []ParticipantRequest `json:"participants"`
}

// ParticipantRequest describes one participant of a transaction being created
type ParticipantRequest struct {
	ParticipantType ParticipantType  `json:"participant_type"`
	ParticipantID   uuid.UUID        `json:"participant_id"`
	Role            ParticipantRole  `json:"role"`
	Amount          *decimal.Decimal `json:"amount,omitempty"`
}

// CommandType identifies an asynchronous ledger command
type CommandType string

const (
	CommandChangeStatus CommandType = "CHANGE_STATUS"
	CommandPlaceLock    CommandType = "PLACE_LOCK"
	CommandRecordAudit  CommandType = "RECORD_AUDIT"
)

// LedgerCommand defines a Kafka message asking the ledger processor to append to an existing transaction
type LedgerCommand struct {
	CommandID     uuid.UUID         `json:"command_id"`
	Type          CommandType       `json:"type"`
	TransactionID uuid.UUID         `json:"transaction_id"`
	Actor         Actor             `json:"actor"`
	Status        TransactionStatus `json:"status,omitempty"`
	Reason        string            `json:"reason,omitempty"`
	LockType      LockType          `json:"lock_type,omitempty"`
	ExpiresAt     *time.Time        `json:"expires_at,omitempty"`
	ActionType    AuditActionType   `json:"action_type,omitempty"`
	Metadata      map[string]any    `json:"metadata,omitempty"`
	CorrelationID string            `json:"correlation_id"`
	Timestamp     time.Time         `json:"timestamp"`
}
