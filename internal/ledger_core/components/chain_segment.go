package components

import (
	"context"
	"errors"
	"fmt"

	domainchain "github.com/stl-ledger/internal/domain/chain"
	"github.com/stl-ledger/internal/domain/shared"
	"github.com/stl-ledger/internal/ledger_core/chain"
)

// DefaultVerifyBatchSize bounds the records loaded per verification page
const DefaultVerifyBatchSize = 500

// TailReader returns the current tail of a chain
type TailReader interface {
	LatestInChain(ctx context.Context, id domainchain.ID) (domainchain.Tail, error)
}

type segmentSource struct {
	id     domainchain.ID
	anchor func(ctx context.Context, sequence int64) (domainchain.Record, error)
	page   func(ctx context.Context, after, to int64, limit int) ([]domainchain.Record, error)
}

// verifySegment replays the chain between from and to (inclusive). to <= 0 means the current tail.
// A violation is returned both in the report and as the error.
func verifySegment(ctx context.Context, hasher *chain.Hasher, tails TailReader, src segmentSource, from, to int64, batchSize int) (*domainchain.Report, error) {
	if batchSize <= 0 {
		batchSize = DefaultVerifyBatchSize
	}
	if from < 1 {
		from = 1
	}

	tail, err := tails.LatestInChain(ctx, src.id)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s chain tail: %w", src.id, err)
	}
	if to <= 0 || to > tail.Sequence {
		to = tail.Sequence
	}

	report := &domainchain.Report{Chain: src.id, From: from, To: to, Valid: true}
	if to < from {
		return report, nil
	}

	var previous domainchain.Record
	if from > 1 {
		previous, err = src.anchor(ctx, from-1)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s chain anchor %d: %w", src.id, from-1, err)
		}
	}

	after := from - 1
	for after < to {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		records, err := src.page(ctx, after, to, batchSize)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s chain segment: %w", src.id, err)
		}
		if len(records) == 0 {
			// the tail says more records exist than the store returned
			violation := shared.ErrChainIntegrityViolation{
				Chain:    string(src.id),
				Sequence: after + 1,
				Detail:   "record missing from chain",
			}
			return failReport(report, violation), violation
		}

		checked, err := hasher.VerifySequence(previous, records)
		report.Checked += checked
		if err != nil {
			var violation shared.ErrChainIntegrityViolation
			if errors.As(err, &violation) {
				return failReport(report, violation), violation
			}
			return nil, err
		}

		previous = records[len(records)-1]
		after = previous.ChainSequence()
	}

	return report, nil
}

func failReport(report *domainchain.Report, violation shared.ErrChainIntegrityViolation) *domainchain.Report {
	report.Valid = false
	report.FailedAt = violation.Sequence
	report.Violation = violation.Detail
	return report
}

// verifyTail checks that the record at the tail position still carries the tail's hash
func verifyTail(ctx context.Context, hasher *chain.Hasher, tail domainchain.Tail, load func(ctx context.Context, sequence int64) (domainchain.Record, error)) error {
	if tail.Sequence == 0 {
		return nil
	}
	record, err := load(ctx, tail.Sequence)
	if err != nil {
		return fmt.Errorf("failed to load %s chain tail record: %w", tail.Chain, err)
	}
	if tail.Hash == nil || record.LinkHash() != *tail.Hash {
		return shared.ErrChainIntegrityViolation{
			Chain:    string(tail.Chain),
			Sequence: tail.Sequence,
			RecordID: record.RecordID(),
			Detail:   "tail hash does not match tail record",
		}
	}
	return hasher.VerifySelf(record)
}
