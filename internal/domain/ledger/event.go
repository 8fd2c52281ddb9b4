package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/stl-ledger/internal/domain/audit"
	"github.com/stl-ledger/internal/domain/lock"
	"github.com/stl-ledger/internal/domain/shared"
	"github.com/stl-ledger/internal/domain/status"
	"github.com/stl-ledger/internal/domain/transaction"
)

// Event describes a committed ledger change. Events are written to the outbox
// in the same atomic unit as the records they describe.
type Event struct {
	Type          shared.EventType           `json:"type"`
	TransactionID uuid.UUID                  `json:"transaction_id"`
	Transaction   *transaction.Transaction   `json:"transaction,omitempty"`
	Participants  []*transaction.Participant `json:"participants,omitempty"`
	Status        *status.Entry              `json:"status,omitempty"`
	Lock          *lock.Lock                 `json:"lock,omitempty"`
	Audit         *audit.Entry               `json:"audit,omitempty"`
	CorrelationID string                     `json:"correlation_id,omitempty"`
	OccurredAt    time.Time                  `json:"occurred_at"`
}
