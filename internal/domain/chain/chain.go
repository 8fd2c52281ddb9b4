// Package chain defines the hash chains of the ledger and the versioned tail
// every append is checked against.
package chain

import (
	"time"

	"github.com/google/uuid"
)

// ID names one of the ledger's hash chains
type ID string

const (
	Transactions ID = "transactions"
	Audit        ID = "audit"
)

func (id ID) IsValid() bool {
	return id == Transactions || id == Audit
}

// Tail is the last committed position of a chain. An append is only accepted
// when the tail it was built on is still the current one.
type Tail struct {
	Chain    ID      `json:"chain"`
	Sequence int64   `json:"sequence"`
	Hash     *string `json:"hash,omitempty"`
	// Halt is set once a violation has been recorded against the chain.
	// A halted chain is never advanced again.
	Halt *Halt `json:"halt,omitempty"`
}

// Halt is the persisted record of the violation that stopped a chain
type Halt struct {
	Sequence int64     `json:"sequence"`
	RecordID uuid.UUID `json:"record_id"`
	Detail   string    `json:"detail"`
	At       time.Time `json:"at"`
}

// Genesis returns the tail of an empty chain
func Genesis(id ID) Tail {
	return Tail{Chain: id}
}

// Advance returns the tail after appending a record with the given hash
func (t Tail) Advance(hash string) Tail {
	h := hash
	return Tail{Chain: t.Chain, Sequence: t.Sequence + 1, Hash: &h}
}

// Equal compares sequence and hash. The halt marker is not part of the position.
func (t Tail) Equal(other Tail) bool {
	if t.Chain != other.Chain || t.Sequence != other.Sequence {
		return false
	}
	if t.Hash == nil || other.Hash == nil {
		return t.Hash == nil && other.Hash == nil
	}
	return *t.Hash == *other.Hash
}

// Record is implemented by every chained ledger record
type Record interface {
	ChainID() ID
	RecordID() uuid.UUID
	ChainSequence() int64
	// LinkFields returns the immutable fields covered by the hash. The record's
	// own hash, signature and previous hash are never part of it.
	LinkFields() map[string]any
	PreviousLink() *string
	LinkHash() string
	LinkSignature() *string
}

// Report is the outcome of replaying a chain segment
type Report struct {
	Chain     ID     `json:"chain"`
	From      int64  `json:"from"`
	To        int64  `json:"to"`
	Checked   int    `json:"checked"`
	Valid     bool   `json:"valid"`
	Violation string `json:"violation,omitempty"`
	// FailedAt is the sequence of the first record that did not verify
	FailedAt int64 `json:"failed_at,omitempty"`
}
