package outbox

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stl-ledger/internal/domain/ledger"
	"github.com/stl-ledger/internal/domain/shared"
)

// Message is a ledger event staged for publication. It is written in the same
// database transaction as the records the event describes.
type Message struct {
	ID            int64               `json:"id"`
	EventType     shared.EventType    `json:"event_type"`
	TransactionID uuid.UUID           `json:"transaction_id"`
	Payload       json.RawMessage     `json:"payload"`
	Status        shared.OutboxStatus `json:"status"`
	Attempts      int                 `json:"attempts"`
	CreatedAt     time.Time           `json:"created_at"`
	LastAttemptAt *time.Time          `json:"last_attempt_at,omitempty"`
}

// NewMessage stages event as a pending message created when the event occurred
func NewMessage(event *ledger.Event) (*Message, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s event: %w", event.Type, err)
	}

	createdAt := event.OccurredAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	return &Message{
		EventType:     event.Type,
		TransactionID: event.TransactionID,
		Payload:       payload,
		Status:        shared.OutboxStatusPending,
		CreatedAt:     createdAt,
	}, nil
}

// PartitionKey keeps the events of one transaction on one partition
func (m *Message) PartitionKey() string {
	return m.TransactionID.String()
}

// ExhaustedAfterFailure reports whether one more failed attempt spends the retry budget
func (m *Message) ExhaustedAfterFailure(maxAttempts int) bool {
	return m.Attempts+1 >= maxAttempts
}

// GetEvent decodes the staged event
func (m *Message) GetEvent() (*ledger.Event, error) {
	var event ledger.Event
	if err := json.Unmarshal(m.Payload, &event); err != nil {
		return nil, fmt.Errorf("failed to decode outbox payload: %w", err)
	}
	return &event, nil
}
