package handler

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/stl-ledger/internal/domain/transaction"
)

// CreateTransactionRequest represents a request to append a new transaction
type CreateTransactionRequest struct {
	TypeID         string               `json:"type_id" binding:"required,uuid"`
	Amount         decimal.Decimal      `json:"amount"`
	CurrencyCode   string               `json:"currency_code" binding:"required,currency_code"`
	Payload        map[string]any       `json:"payload,omitempty"`
	IdempotencyKey string               `json:"idempotency_key,omitempty" binding:"max=255"`
	Participants   []ParticipantRequest `json:"participants" binding:"required,min=1,dive"`
}

// ParticipantRequest represents one participant of a transaction being created
type ParticipantRequest struct {
	ParticipantType string           `json:"participant_type" binding:"required,oneof=USER ENTITY"`
	ParticipantID   string           `json:"participant_id" binding:"required,uuid"`
	Role            string           `json:"role" binding:"required,oneof=SENDER RECEIVER APPROVER FEE TAX"`
	Amount          *decimal.Decimal `json:"amount,omitempty"`
}

// ChangeStatusRequest represents a request to move a transaction to a new status
type ChangeStatusRequest struct {
	Status string `json:"status" binding:"required"`
	Reason string `json:"reason,omitempty" binding:"max=1024"`
}

// PlaceLockRequest represents a request to lock a transaction
type PlaceLockRequest struct {
	LockType  string     `json:"lock_type" binding:"required"`
	Reason    string     `json:"reason,omitempty" binding:"max=1024"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// RecordAuditRequest represents an explicitly recorded audit action
type RecordAuditRequest struct {
	ActionType string         `json:"action_type" binding:"required"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// TransactionResponse represents a transaction in API responses
type TransactionResponse struct {
	ID             string         `json:"id"`
	Sequence       int64          `json:"sequence"`
	TypeID         string         `json:"type_id"`
	Amount         string         `json:"amount"`
	CurrencyCode   string         `json:"currency_code"`
	Payload        map[string]any `json:"payload,omitempty"`
	IdempotencyKey string         `json:"idempotency_key,omitempty"`
	PreviousHash   string         `json:"previous_hash,omitempty"`
	Hash           string         `json:"hash"`
	Signature      string         `json:"signature,omitempty"`
	CreatedAt      string         `json:"created_at"`
}

// StatusResponse represents the current status of a transaction
type StatusResponse struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
}

// PaginationParams represents pagination parameters for list endpoints
type PaginationParams struct {
	Page    int `form:"page,default=1" binding:"min=1"`
	PerPage int `form:"per_page,default=10" binding:"min=1,max=100"`
}

// TransactionListParams represents the filters of the transaction list endpoint
type TransactionListParams struct {
	PaginationParams
	TypeID   string `form:"type_id" binding:"omitempty,uuid"`
	Currency string `form:"currency" binding:"omitempty,currency_code"`
	From     string `form:"from"`
	To       string `form:"to"`
}

// LockListParams represents the filters of the lock list endpoint
type LockListParams struct {
	Active bool `form:"active"`
}

// VerifyChainParams bounds the verified segment. To of 0 means the chain tail.
type VerifyChainParams struct {
	From int64 `form:"from,default=1" binding:"min=1"`
	To   int64 `form:"to" binding:"min=0"`
}

func mapTransactionToResponse(tx *transaction.Transaction) TransactionResponse {
	resp := TransactionResponse{
		ID:           tx.ID.String(),
		Sequence:     tx.Sequence,
		TypeID:       tx.TypeID.String(),
		Amount:       tx.Amount.String(),
		CurrencyCode: tx.CurrencyCode,
		Payload:      tx.Payload,
		Hash:         tx.Hash,
		CreatedAt:    tx.CreatedAt.Format(time.RFC3339Nano),
	}
	if tx.IdempotencyKey != nil {
		resp.IdempotencyKey = *tx.IdempotencyKey
	}
	if tx.PreviousHash != nil {
		resp.PreviousHash = *tx.PreviousHash
	}
	if tx.Signature != nil {
		resp.Signature = *tx.Signature
	}
	return resp
}

func mapTransactionsToResponse(txs []*transaction.Transaction) []TransactionResponse {
	responses := make([]TransactionResponse, 0, len(txs))
	for _, tx := range txs {
		responses = append(responses, mapTransactionToResponse(tx))
	}
	return responses
}
