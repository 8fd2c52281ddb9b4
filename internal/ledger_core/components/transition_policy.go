package components

import (
	"fmt"
	"strings"

	"github.com/stl-ledger/internal/config"
	"github.com/stl-ledger/internal/domain/shared"
)

const (
	PolicyPermissive = config.PolicyPermissive
	PolicyStrict     = config.PolicyStrict
)

// TransitionPolicy decides which non-final status may follow which.
// Leaving a final status is refused by the state machine before any policy is consulted.
type TransitionPolicy interface {
	Allows(from, to shared.TransactionStatus) bool
	Name() string
}

// FinalStateGuard allows every transition out of a non-final status
type FinalStateGuard struct{}

func (FinalStateGuard) Allows(shared.TransactionStatus, shared.TransactionStatus) bool { return true }

func (FinalStateGuard) Name() string { return PolicyPermissive }

// TransitionTable only allows the listed transitions
type TransitionTable map[shared.TransactionStatus][]shared.TransactionStatus

// DefaultTransitionTable is used by the strict policy
func DefaultTransitionTable() TransitionTable {
	return TransitionTable{
		shared.TransactionStatusPending: {
			shared.TransactionStatusActive, shared.TransactionStatusOnHold,
			shared.TransactionStatusCanceled, shared.TransactionStatusFailed,
		},
		shared.TransactionStatusActive: {
			shared.TransactionStatusOnHold, shared.TransactionStatusPartial, shared.TransactionStatusApproved,
			shared.TransactionStatusCanceled, shared.TransactionStatusFailed,
		},
		shared.TransactionStatusOnHold: {
			shared.TransactionStatusActive, shared.TransactionStatusCanceled, shared.TransactionStatusFailed,
		},
		shared.TransactionStatusPartial: {
			shared.TransactionStatusApproved, shared.TransactionStatusRefund,
			shared.TransactionStatusCanceled, shared.TransactionStatusFailed,
		},
	}
}

func (t TransitionTable) Allows(from, to shared.TransactionStatus) bool {
	for _, allowed := range t[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

func (t TransitionTable) Name() string { return PolicyStrict }

// NewTransitionPolicy returns the policy registered under name
func NewTransitionPolicy(name string) (TransitionPolicy, error) {
	switch strings.ToLower(name) {
	case "", PolicyPermissive:
		return FinalStateGuard{}, nil
	case PolicyStrict:
		return DefaultTransitionTable(), nil
	default:
		return nil, fmt.Errorf("unknown transition policy: %s", name)
	}
}
