package ledger

import (
	"fmt"

	"github.com/stl-ledger/internal/domain/audit"
	"github.com/stl-ledger/internal/domain/chain"
	"github.com/stl-ledger/internal/domain/lock"
	"github.com/stl-ledger/internal/domain/status"
	"github.com/stl-ledger/internal/domain/transaction"
)

// Batch is the unit of an atomic append. Either every record becomes visible or none does.
//
// ExpectTransactionTail and ExpectAuditTail are the tails the records were
// linked against; the append is rejected with shared.ErrConcurrentAppendConflict
// when either chain has moved.
type Batch struct {
	ExpectTransactionTail *chain.Tail
	ExpectAuditTail       *chain.Tail

	Transaction   *transaction.Transaction
	Participants  []*transaction.Participant
	StatusEntries []*status.Entry
	AuditEntries  []*audit.Entry
	Locks         []*lock.Lock
	Events        []*Event
}

// NextTransactionTail is the transaction chain tail after the batch commits
func (b *Batch) NextTransactionTail() (chain.Tail, bool) {
	if b.Transaction == nil || b.ExpectTransactionTail == nil {
		return chain.Tail{}, false
	}
	return b.ExpectTransactionTail.Advance(b.Transaction.Hash), true
}

// NextAuditTail is the audit chain tail after the batch commits
func (b *Batch) NextAuditTail() (chain.Tail, bool) {
	if len(b.AuditEntries) == 0 || b.ExpectAuditTail == nil {
		return chain.Tail{}, false
	}
	tail := *b.ExpectAuditTail
	for _, entry := range b.AuditEntries {
		tail = tail.Advance(entry.Hash)
	}
	return tail, true
}

// Validate checks that chained records follow the expected tails
func (b *Batch) Validate() error {
	if b.Transaction != nil {
		if b.ExpectTransactionTail == nil {
			return fmt.Errorf("batch appends a transaction without an expected transaction tail")
		}
		if err := checkLink(*b.ExpectTransactionTail, b.Transaction.Sequence, b.Transaction.PreviousHash); err != nil {
			return fmt.Errorf("transaction %s: %w", b.Transaction.ID, err)
		}
	}
	if len(b.AuditEntries) > 0 {
		if b.ExpectAuditTail == nil {
			return fmt.Errorf("batch appends audit entries without an expected audit tail")
		}
		tail := *b.ExpectAuditTail
		for _, entry := range b.AuditEntries {
			if err := checkLink(tail, entry.Sequence, entry.PreviousHash); err != nil {
				return fmt.Errorf("audit entry %s: %w", entry.ID, err)
			}
			tail = tail.Advance(entry.Hash)
		}
	}
	return nil
}

func checkLink(tail chain.Tail, sequence int64, previous *string) error {
	if sequence != tail.Sequence+1 {
		return fmt.Errorf("sequence %d does not follow tail %d", sequence, tail.Sequence)
	}
	if (previous == nil) != (tail.Hash == nil) || (previous != nil && *previous != *tail.Hash) {
		return fmt.Errorf("previous hash does not match chain tail")
	}
	return nil
}
