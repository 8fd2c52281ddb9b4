package reference

import (
	"context"

	"github.com/google/uuid"
)

// Currency is read-only reference data
type Currency struct {
	Code      string `json:"code"`
	Name      string `json:"name"`
	Symbol    string `json:"symbol,omitempty"`
	Precision int32  `json:"precision"`
}

// TransactionType is read-only reference data
type TransactionType struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
}

// Store resolves reference data. Missing entries are reported as shared.ErrReferenceNotFound.
type Store interface {
	GetCurrency(ctx context.Context, code string) (*Currency, error)
	GetTransactionType(ctx context.Context, id uuid.UUID) (*TransactionType, error)
	ListCurrencies(ctx context.Context) ([]*Currency, error)
	ListTransactionTypes(ctx context.Context) ([]*TransactionType, error)
}

// Resolved holds the reference data a transaction request points at
type Resolved struct {
	Currency        *Currency
	TransactionType *TransactionType
}
