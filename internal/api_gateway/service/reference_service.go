package service

import (
	"context"

	"github.com/stl-ledger/internal/domain/chain"
	"github.com/stl-ledger/internal/domain/reference"
)

// ReferenceServiceImpl serves reference data and chain verification
type ReferenceServiceImpl struct {
	reader LedgerReader
}

func NewReferenceService(reader LedgerReader) ReferenceService {
	return &ReferenceServiceImpl{reader: reader}
}

func (s *ReferenceServiceImpl) ListCurrencies(ctx context.Context) ([]*reference.Currency, error) {
	return s.reader.ListCurrencies(ctx)
}

func (s *ReferenceServiceImpl) GetCurrency(ctx context.Context, code string) (*reference.Currency, error) {
	return s.reader.GetCurrency(ctx, code)
}

func (s *ReferenceServiceImpl) ListTransactionTypes(ctx context.Context) ([]*reference.TransactionType, error) {
	return s.reader.ListTransactionTypes(ctx)
}

func (s *ReferenceServiceImpl) VerifyChain(ctx context.Context, id chain.ID, from, to int64) (*chain.Report, error) {
	return s.reader.VerifyChain(ctx, id, from, to)
}
