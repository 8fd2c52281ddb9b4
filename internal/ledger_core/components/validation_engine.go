package components

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"
	"github.com/stl-ledger/internal/domain/reference"
	"github.com/stl-ledger/internal/domain/shared"
)

// ValidationEngine enforces the business invariants of transaction creation
type ValidationEngine struct {
	references reference.Store
	logger     *slog.Logger
}

func NewValidationEngine(references reference.Store, logger *slog.Logger) *ValidationEngine {
	return &ValidationEngine{
		references: references,
		logger:     logger,
	}
}

// ValidateCreationRequest checks references, amount and participants. Nothing is coerced.
func (v *ValidationEngine) ValidateCreationRequest(ctx context.Context, req *shared.CreateTransactionRequest) (*reference.Resolved, error) {
	currency, err := v.references.GetCurrency(ctx, req.CurrencyCode)
	if err != nil {
		if errors.Is(err, shared.ErrReferenceNotFound{}) {
			return nil, shared.NewValidationError(shared.CodeInvalidCurrency, "Currency code does not exist: %s", req.CurrencyCode)
		}
		return nil, fmt.Errorf("failed to look up currency: %w", err)
	}

	txType, err := v.references.GetTransactionType(ctx, req.TypeID)
	if err != nil {
		if errors.Is(err, shared.ErrReferenceNotFound{}) {
			return nil, shared.NewValidationError(shared.CodeInvalidTransactionType, "Transaction type does not exist: %s", req.TypeID)
		}
		return nil, fmt.Errorf("failed to look up transaction type: %w", err)
	}

	if !req.Amount.IsPositive() {
		return nil, shared.NewValidationError(shared.CodeInvalidAmount, "Transaction amount must be greater than zero.")
	}
	if !fitsPrecision(req.Amount, currency.Precision) {
		return nil, shared.NewValidationError(shared.CodeInvalidAmount,
			"Transaction amount %s exceeds the precision of %s (%d decimal places).", req.Amount, currency.Code, currency.Precision)
	}

	if err := v.validateParticipantShape(req.Participants, currency); err != nil {
		return nil, err
	}
	if err := v.ValidateParticipants(req.Participants, req.Amount); err != nil {
		return nil, err
	}

	return &reference.Resolved{Currency: currency, TransactionType: txType}, nil
}

// ValidateParticipants checks roles, amount consistency and uniqueness, in that order
func (v *ValidationEngine) ValidateParticipants(participants []shared.ParticipantRequest, amount decimal.Decimal) error {
	hasSender, hasReceiver := false, false
	for _, p := range participants {
		switch p.Role {
		case shared.ParticipantRoleSender:
			hasSender = true
		case shared.ParticipantRoleReceiver:
			hasReceiver = true
		}
	}
	if !hasSender {
		return shared.NewValidationError(shared.CodeMissingSender, "Transaction must have at least one SENDER participant.")
	}
	if !hasReceiver {
		return shared.NewValidationError(shared.CodeMissingReceiver, "Transaction must have at least one RECEIVER participant.")
	}

	sum := decimal.Zero
	allSpecified := true
	for _, p := range participants {
		if p.Amount == nil {
			allSpecified = false
			break
		}
		sum = sum.Add(*p.Amount)
	}
	if allSpecified && !sum.Equal(amount) {
		return shared.NewValidationError(shared.CodeAmountMismatch,
			"Sum of participant amounts (%s) does not equal transaction amount (%s).", sum, amount)
	}

	type participantRole struct {
		id   string
		role shared.ParticipantRole
	}
	seen := make(map[participantRole]struct{}, len(participants))
	for _, p := range participants {
		key := participantRole{id: p.ParticipantID.String(), role: p.Role}
		if _, dup := seen[key]; dup {
			return shared.NewValidationError(shared.CodeDuplicateParticipantRole,
				"A participant cannot have conflicting roles in the same transaction.")
		}
		seen[key] = struct{}{}
	}
	return nil
}

func (v *ValidationEngine) validateParticipantShape(participants []shared.ParticipantRequest, currency *reference.Currency) error {
	for i, p := range participants {
		if !p.Role.IsValid() {
			return shared.NewValidationError(shared.CodeInvalidParticipant, "Participant %d has an unknown role: %s", i, p.Role)
		}
		if !p.ParticipantType.IsValid() {
			return shared.NewValidationError(shared.CodeInvalidParticipant, "Participant %d has an unknown type: %s", i, p.ParticipantType)
		}
		if p.Amount == nil {
			continue
		}
		if p.Amount.IsNegative() {
			return shared.NewValidationError(shared.CodeInvalidAmount, "Participant %d amount must not be negative.", i)
		}
		if !fitsPrecision(*p.Amount, currency.Precision) {
			return shared.NewValidationError(shared.CodeInvalidAmount,
				"Participant %d amount %s exceeds the precision of %s.", i, p.Amount, currency.Code)
		}
	}
	return nil
}

// ResolveReferences re-reads the currency and type a validated request points at
func (v *ValidationEngine) ResolveReferences(ctx context.Context, req *shared.CreateTransactionRequest) (*reference.Resolved, error) {
	currency, err := v.references.GetCurrency(ctx, req.CurrencyCode)
	if err != nil {
		return nil, err
	}
	txType, err := v.references.GetTransactionType(ctx, req.TypeID)
	if err != nil {
		return nil, err
	}
	return &reference.Resolved{Currency: currency, TransactionType: txType}, nil
}

// fitsPrecision reports whether amount needs no more than precision decimal places
func fitsPrecision(amount decimal.Decimal, precision int32) bool {
	return amount.Equal(amount.Truncate(precision))
}
