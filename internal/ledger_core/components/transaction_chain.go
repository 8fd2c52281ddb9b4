package components

import (
	"context"
	"log/slog"
	"time"

	domainchain "github.com/stl-ledger/internal/domain/chain"
	"github.com/stl-ledger/internal/domain/shared"
	"github.com/stl-ledger/internal/domain/transaction"
	"github.com/stl-ledger/internal/ledger_core/chain"
)

// TransactionChain links new transactions to the transaction chain and verifies it
type TransactionChain struct {
	hasher       *chain.Hasher
	transactions transaction.Repository
	tails        TailReader
	now          func() time.Time
	batchSize    int
	logger       *slog.Logger
}

func NewTransactionChain(hasher *chain.Hasher, transactions transaction.Repository, tails TailReader, now func() time.Time, batchSize int, logger *slog.Logger) *TransactionChain {
	if now == nil {
		now = time.Now
	}
	return &TransactionChain{
		hasher:       hasher,
		transactions: transactions,
		tails:        tails,
		now:          now,
		batchSize:    batchSize,
		logger:       logger,
	}
}

// Link builds the transaction that follows tail, computes its hash and signs it when enabled
func (c *TransactionChain) Link(tail domainchain.Tail, req *shared.CreateTransactionRequest) (*transaction.Transaction, error) {
	payload, err := chain.NormalizeFields(req.Payload)
	if err != nil {
		return nil, err
	}
	normalized := *req
	normalized.Payload = payload

	tx := transaction.New(&normalized, tail, c.now())
	tx.Hash, tx.Signature, err = c.hasher.Seal(tx)
	if err != nil {
		return nil, err
	}
	return tx, nil
}

// VerifyTail re-checks the record the transaction tail points at before the chain is extended
func (c *TransactionChain) VerifyTail(ctx context.Context, tail domainchain.Tail) error {
	return verifyTail(ctx, c.hasher, tail, c.loadRecord)
}

// VerifyChain replays the transaction chain from..to (inclusive, to <= 0 means the tail)
func (c *TransactionChain) VerifyChain(ctx context.Context, from, to int64) (*domainchain.Report, error) {
	report, err := verifySegment(ctx, c.hasher, c.tails, segmentSource{
		id:     domainchain.Transactions,
		anchor: c.loadRecord,
		page: func(ctx context.Context, after, to int64, limit int) ([]domainchain.Record, error) {
			txs, err := c.transactions.ListAfterSequence(ctx, after, to, limit)
			if err != nil {
				return nil, err
			}
			records := make([]domainchain.Record, 0, len(txs))
			for _, tx := range txs {
				records = append(records, tx)
			}
			return records, nil
		},
	}, from, to, c.batchSize)
	if err != nil {
		c.logger.Error("Transaction chain verification failed", "from", from, "to", to, "error", err)
		return report, err
	}
	c.logger.Info("Transaction chain verified", "from", report.From, "to", report.To, "checked", report.Checked)
	return report, nil
}

func (c *TransactionChain) loadRecord(ctx context.Context, sequence int64) (domainchain.Record, error) {
	return c.transactions.GetBySequence(ctx, sequence)
}
