// Package chain computes and verifies the hash links of ledger records.
package chain

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/stl-ledger/internal/domain/chain"
	"github.com/stl-ledger/internal/domain/shared"
)

// Hasher links records to their predecessor and optionally signs them.
// A nil signer means unsigned mode.
type Hasher struct {
	signer Signer
}

func NewHasher(signer Signer) *Hasher {
	return &Hasher{signer: signer}
}

// Canonicalize renders fields as JSON with lexicographically sorted keys at every level
func Canonicalize(fields map[string]any) ([]byte, error) {
	// encoding/json sorts map keys, nested maps included
	payload, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to canonicalize record: %w", err)
	}
	return payload, nil
}

// ComputeLink returns hex(sha256(payload || previousHash)). The genesis record has no previous hash.
func ComputeLink(previousHash *string, payload []byte) string {
	h := sha256.New()
	h.Write(payload)
	if previousHash != nil {
		h.Write([]byte(*previousHash))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Seal computes the hash of record and, when signing is enabled, its signature.
// The record's previous hash must already be set.
func (h *Hasher) Seal(record chain.Record) (string, *string, error) {
	payload, err := Canonicalize(record.LinkFields())
	if err != nil {
		return "", nil, err
	}
	hash := ComputeLink(record.PreviousLink(), payload)

	if h.signer == nil {
		return hash, nil, nil
	}
	sig, err := h.signer.Sign(payload)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign record %s: %w", record.RecordID(), err)
	}
	encoded := base64.StdEncoding.EncodeToString(sig)
	return hash, &encoded, nil
}

// Signed reports whether the hasher signs records
func (h *Hasher) Signed() bool {
	return h.signer != nil
}

// VerifyLink checks record against its predecessor. previous is nil for the genesis record.
func (h *Hasher) VerifyLink(record, previous chain.Record) error {
	violation := func(detail string) error {
		return shared.ErrChainIntegrityViolation{
			Chain:    string(record.ChainID()),
			Sequence: record.ChainSequence(),
			RecordID: record.RecordID(),
			Detail:   detail,
		}
	}

	if previous == nil {
		if record.PreviousLink() != nil {
			return violation("genesis record carries a previous hash")
		}
	} else {
		if record.ChainSequence() != previous.ChainSequence()+1 {
			return violation(fmt.Sprintf("sequence gap after %d", previous.ChainSequence()))
		}
		if record.PreviousLink() == nil || *record.PreviousLink() != previous.LinkHash() {
			return violation("previous hash does not match predecessor")
		}
	}

	payload, err := Canonicalize(record.LinkFields())
	if err != nil {
		return violation(err.Error())
	}
	if ComputeLink(record.PreviousLink(), payload) != record.LinkHash() {
		return violation("hash mismatch")
	}

	if detail := h.checkSignature(record, payload); detail != "" {
		return violation(detail)
	}
	return nil
}

// checkSignature returns the violation detail of a bad or absent signature.
// In signed mode every record must carry one.
func (h *Hasher) checkSignature(record chain.Record, payload []byte) string {
	if h.signer == nil {
		return ""
	}
	if record.LinkSignature() == nil {
		return "missing signature"
	}
	sig, err := base64.StdEncoding.DecodeString(*record.LinkSignature())
	if err != nil || !h.signer.Verify(payload, sig) {
		return "signature mismatch"
	}
	return ""
}

// VerifySelf recomputes the hash and checks the signature of a single record
// without looking at its predecessor
func (h *Hasher) VerifySelf(record chain.Record) error {
	detail := "tail record hash mismatch"
	payload, err := Canonicalize(record.LinkFields())
	if err == nil && ComputeLink(record.PreviousLink(), payload) == record.LinkHash() {
		if detail = h.checkSignature(record, payload); detail == "" {
			return nil
		}
	}
	return shared.ErrChainIntegrityViolation{
		Chain:    string(record.ChainID()),
		Sequence: record.ChainSequence(),
		RecordID: record.RecordID(),
		Detail:   detail,
	}
}

// VerifySequence replays VerifyLink over ordered records starting after anchor.
// anchor is nil when records start at the genesis record. It returns the number
// of records checked before the first violation.
func (h *Hasher) VerifySequence(anchor chain.Record, records []chain.Record) (int, error) {
	previous := anchor
	for i, record := range records {
		if err := h.VerifyLink(record, previous); err != nil {
			return i, err
		}
		previous = record
	}
	return len(records), nil
}
