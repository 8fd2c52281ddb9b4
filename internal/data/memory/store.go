// Package memory holds the ledger in process memory. It implements the same
// compare-and-append contract as the Postgres append log and is used for
// local runs and for exercising the writer under contention.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stl-ledger/internal/domain/audit"
	"github.com/stl-ledger/internal/domain/chain"
	"github.com/stl-ledger/internal/domain/ledger"
	"github.com/stl-ledger/internal/domain/lock"
	"github.com/stl-ledger/internal/domain/shared"
	"github.com/stl-ledger/internal/domain/status"
	"github.com/stl-ledger/internal/domain/transaction"
)

// Store is an in-memory append log. Records handed out by its readers are
// the stored records themselves and must be treated as read-only.
type Store struct {
	mu sync.RWMutex

	tails        map[chain.ID]chain.Tail
	transactions []*transaction.Transaction
	byID         map[uuid.UUID]*transaction.Transaction
	byKey        map[string]*transaction.Transaction
	participants []*transaction.Participant
	statuses     []*status.Entry
	audits       []*audit.Entry
	locks        []*lock.Lock
	events       []*ledger.Event
}

func NewStore() *Store {
	return &Store{
		tails: map[chain.ID]chain.Tail{
			chain.Transactions: chain.Genesis(chain.Transactions),
			chain.Audit:        chain.Genesis(chain.Audit),
		},
		byID:  make(map[uuid.UUID]*transaction.Transaction),
		byKey: make(map[string]*transaction.Transaction),
	}
}

// AppendAtomic applies the whole batch under one lock after checking both expected tails
func (s *Store) AppendAtomic(ctx context.Context, batch *ledger.Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := batch.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if batch.ExpectTransactionTail != nil && !s.accepts(chain.Transactions, *batch.ExpectTransactionTail) {
		return shared.ErrConcurrentAppendConflict{Chain: string(chain.Transactions)}
	}
	if batch.ExpectAuditTail != nil && !s.accepts(chain.Audit, *batch.ExpectAuditTail) {
		return shared.ErrConcurrentAppendConflict{Chain: string(chain.Audit)}
	}

	tx := batch.Transaction
	if tx != nil && tx.IdempotencyKey != nil {
		if _, exists := s.byKey[*tx.IdempotencyKey]; exists {
			return shared.ErrDuplicateIdempotencyKey{Key: *tx.IdempotencyKey}
		}
	}

	if tx != nil {
		s.transactions = append(s.transactions, tx)
		s.byID[tx.ID] = tx
		if tx.IdempotencyKey != nil {
			s.byKey[*tx.IdempotencyKey] = tx
		}
		next, _ := batch.NextTransactionTail()
		s.tails[chain.Transactions] = next
	}
	s.participants = append(s.participants, batch.Participants...)
	for _, entry := range batch.StatusEntries {
		entry.Sequence = int64(len(s.statuses) + 1)
		s.statuses = append(s.statuses, entry)
	}
	if next, ok := batch.NextAuditTail(); ok {
		s.audits = append(s.audits, batch.AuditEntries...)
		s.tails[chain.Audit] = next
	}
	s.locks = append(s.locks, batch.Locks...)
	s.events = append(s.events, batch.Events...)
	return nil
}

func (s *Store) LatestInChain(ctx context.Context, id chain.ID) (chain.Tail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tail, ok := s.tails[id]
	if !ok {
		return chain.Tail{}, shared.ErrReferenceNotFound{Kind: "chain", Key: string(id)}
	}
	return tail, nil
}

// accepts reports whether expected is still the tail of its chain and the chain is not halted
func (s *Store) accepts(id chain.ID, expected chain.Tail) bool {
	current := s.tails[id]
	return current.Halt == nil && current.Equal(expected)
}

func (s *Store) HaltChain(ctx context.Context, violation shared.ErrChainIntegrityViolation, at time.Time) error {
	id := chain.ID(violation.Chain)

	s.mu.Lock()
	defer s.mu.Unlock()
	tail, ok := s.tails[id]
	if !ok {
		return shared.ErrReferenceNotFound{Kind: "chain", Key: violation.Chain}
	}
	if tail.Halt != nil {
		return nil
	}
	tail.Halt = &chain.Halt{
		Sequence: violation.Sequence,
		RecordID: violation.RecordID,
		Detail:   violation.Detail,
		At:       at,
	}
	s.tails[id] = tail
	return nil
}

func (s *Store) HaltedChains(ctx context.Context) ([]shared.ErrChainIntegrityViolation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var halted []shared.ErrChainIntegrityViolation
	for _, id := range []chain.ID{chain.Transactions, chain.Audit} {
		if h := s.tails[id].Halt; h != nil {
			halted = append(halted, shared.ErrChainIntegrityViolation{
				Chain:    string(id),
				Sequence: h.Sequence,
				RecordID: h.RecordID,
				Detail:   h.Detail,
			})
		}
	}
	return halted, nil
}

// Events returns the events committed so far, in commit order
func (s *Store) Events() []*ledger.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*ledger.Event(nil), s.events...)
}

func (s *Store) Transactions() transaction.Repository { return transactionReader{s} }

func (s *Store) Participants() transaction.ParticipantRepository { return participantReader{s} }

func (s *Store) StatusHistory() status.Repository { return statusReader{s} }

func (s *Store) AuditEntries() audit.Repository { return auditReader{s} }

func (s *Store) Locks() lock.Repository { return lockReader{s} }

type transactionReader struct{ s *Store }

func (r transactionReader) GetByID(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	tx, ok := r.s.byID[id]
	if !ok {
		return nil, shared.ErrTransactionNotFound{TransactionID: id}
	}
	return tx, nil
}

func (r transactionReader) GetByIdempotencyKey(ctx context.Context, key string) (*transaction.Transaction, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.byKey[key], nil
}

func (r transactionReader) GetBySequence(ctx context.Context, sequence int64) (*transaction.Transaction, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if sequence < 1 || sequence > int64(len(r.s.transactions)) {
		return nil, shared.ErrTransactionNotFound{}
	}
	return r.s.transactions[sequence-1], nil
}

func (r transactionReader) List(ctx context.Context, filter transaction.Filter) ([]*transaction.Transaction, error) {
	matched := r.match(filter)
	// newest first
	sort.Slice(matched, func(i, j int) bool { return matched[i].Sequence > matched[j].Sequence })
	return paginate(matched, filter.Limit, filter.Offset), nil
}

func (r transactionReader) Count(ctx context.Context, filter transaction.Filter) (int64, error) {
	return int64(len(r.match(filter))), nil
}

func (r transactionReader) ListAfterSequence(ctx context.Context, after, to int64, limit int) ([]*transaction.Transaction, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*transaction.Transaction
	for _, tx := range r.s.transactions {
		if tx.Sequence > after && tx.Sequence <= to {
			out = append(out, tx)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (r transactionReader) match(filter transaction.Filter) []*transaction.Transaction {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*transaction.Transaction
	for _, tx := range r.s.transactions {
		if filter.TypeID != nil && tx.TypeID != *filter.TypeID {
			continue
		}
		if filter.CurrencyCode != "" && tx.CurrencyCode != filter.CurrencyCode {
			continue
		}
		if filter.From != nil && tx.CreatedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && tx.CreatedAt.After(*filter.To) {
			continue
		}
		out = append(out, tx)
	}
	return out
}

type participantReader struct{ s *Store }

func (r participantReader) GetByTransactionID(ctx context.Context, transactionID uuid.UUID) ([]*transaction.Participant, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*transaction.Participant
	for _, p := range r.s.participants {
		if p.TransactionID == transactionID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r participantReader) GetByParticipantID(ctx context.Context, participantID uuid.UUID) ([]*transaction.Participant, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*transaction.Participant
	for i := len(r.s.participants) - 1; i >= 0; i-- {
		if p := r.s.participants[i]; p.ParticipantID == participantID {
			out = append(out, p)
		}
	}
	return out, nil
}

type statusReader struct{ s *Store }

func (r statusReader) GetLatest(ctx context.Context, transactionID uuid.UUID) (*status.Entry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for i := len(r.s.statuses) - 1; i >= 0; i-- {
		if r.s.statuses[i].TransactionID == transactionID {
			return r.s.statuses[i], nil
		}
	}
	return nil, nil
}

func (r statusReader) GetHistory(ctx context.Context, transactionID uuid.UUID) ([]*status.Entry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*status.Entry
	for _, entry := range r.s.statuses {
		if entry.TransactionID == transactionID {
			out = append(out, entry)
		}
	}
	return out, nil
}

type auditReader struct{ s *Store }

func (r auditReader) GetByTransactionID(ctx context.Context, transactionID uuid.UUID) ([]*audit.Entry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*audit.Entry
	for _, entry := range r.s.audits {
		if entry.TransactionID == transactionID {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (r auditReader) GetByActor(ctx context.Context, actorType shared.ActorType, actorID uuid.UUID, limit, offset int) ([]*audit.Entry, error) {
	r.s.mu.RLock()
	var out []*audit.Entry
	for i := len(r.s.audits) - 1; i >= 0; i-- {
		entry := r.s.audits[i]
		if entry.ActorType == actorType && entry.ActorID != nil && *entry.ActorID == actorID {
			out = append(out, entry)
		}
	}
	r.s.mu.RUnlock()
	return paginate(out, limit, offset), nil
}

func (r auditReader) GetBySequence(ctx context.Context, sequence int64) (*audit.Entry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if sequence < 1 || sequence > int64(len(r.s.audits)) {
		return nil, audit.ErrEntryNotFound{Sequence: sequence}
	}
	return r.s.audits[sequence-1], nil
}

func (r auditReader) ListAfterSequence(ctx context.Context, after, to int64, limit int) ([]*audit.Entry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*audit.Entry
	for _, entry := range r.s.audits {
		if entry.Sequence > after && entry.Sequence <= to {
			out = append(out, entry)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

type lockReader struct{ s *Store }

func (r lockReader) GetByTransactionID(ctx context.Context, transactionID uuid.UUID) ([]*lock.Lock, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*lock.Lock
	for _, l := range r.s.locks {
		if l.TransactionID == transactionID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (r lockReader) GetActive(ctx context.Context, transactionID uuid.UUID, now time.Time) ([]*lock.Lock, error) {
	all, _ := r.GetByTransactionID(ctx, transactionID)
	var out []*lock.Lock
	for _, l := range all {
		if l.IsActive(now) {
			out = append(out, l)
		}
	}
	return out, nil
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
