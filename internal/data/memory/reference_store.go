package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/stl-ledger/internal/domain/reference"
	"github.com/stl-ledger/internal/domain/shared"
)

// Transaction type ids seeded by the reference data migration
var (
	TransactionTypePayment  = uuid.MustParse("5f0c6a9e-1d2b-4c3a-9e8f-000000000001")
	TransactionTypeTransfer = uuid.MustParse("5f0c6a9e-1d2b-4c3a-9e8f-000000000002")
	TransactionTypeRefund   = uuid.MustParse("5f0c6a9e-1d2b-4c3a-9e8f-000000000003")
	TransactionTypeFee      = uuid.MustParse("5f0c6a9e-1d2b-4c3a-9e8f-000000000004")
)

// ReferenceStore serves a fixed set of currencies and transaction types
type ReferenceStore struct {
	currencies map[string]*reference.Currency
	types      map[uuid.UUID]*reference.TransactionType
}

func NewReferenceStore(currencies []*reference.Currency, types []*reference.TransactionType) *ReferenceStore {
	s := &ReferenceStore{
		currencies: make(map[string]*reference.Currency, len(currencies)),
		types:      make(map[uuid.UUID]*reference.TransactionType, len(types)),
	}
	for _, c := range currencies {
		s.currencies[strings.ToUpper(c.Code)] = c
	}
	for _, t := range types {
		s.types[t.ID] = t
	}
	return s
}

// NewDefaultReferenceStore returns the same reference data the migrations seed
func NewDefaultReferenceStore() *ReferenceStore {
	return NewReferenceStore(
		[]*reference.Currency{
			{Code: "USD", Name: "US Dollar", Symbol: "$", Precision: 2},
			{Code: "EUR", Name: "Euro", Symbol: "€", Precision: 2},
			{Code: "JPY", Name: "Japanese Yen", Symbol: "¥", Precision: 0},
			{Code: "BTC", Name: "Bitcoin", Symbol: "₿", Precision: 8},
		},
		[]*reference.TransactionType{
			{ID: TransactionTypePayment, Name: "PAYMENT", Description: "Payment between participants"},
			{ID: TransactionTypeTransfer, Name: "TRANSFER", Description: "Transfer of funds"},
			{ID: TransactionTypeRefund, Name: "REFUND", Description: "Refund of a previous payment"},
			{ID: TransactionTypeFee, Name: "FEE", Description: "Fee charged by the platform"},
		},
	)
}

func (s *ReferenceStore) GetCurrency(ctx context.Context, code string) (*reference.Currency, error) {
	c, ok := s.currencies[strings.ToUpper(code)]
	if !ok {
		return nil, shared.ErrReferenceNotFound{Kind: "currency", Key: code}
	}
	return c, nil
}

func (s *ReferenceStore) GetTransactionType(ctx context.Context, id uuid.UUID) (*reference.TransactionType, error) {
	t, ok := s.types[id]
	if !ok {
		return nil, shared.ErrReferenceNotFound{Kind: "transaction_type", Key: id.String()}
	}
	return t, nil
}

func (s *ReferenceStore) ListCurrencies(ctx context.Context) ([]*reference.Currency, error) {
	out := make([]*reference.Currency, 0, len(s.currencies))
	for _, c := range s.currencies {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (s *ReferenceStore) ListTransactionTypes(ctx context.Context) ([]*reference.TransactionType, error) {
	out := make([]*reference.TransactionType, 0, len(s.types))
	for _, t := range s.types {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
