package shared

import (
	"fmt"

	"github.com/google/uuid"
)

// ErrorCode is a stable, machine readable error identifier returned to clients
type ErrorCode string

const (
	CodeInvalidCurrency          ErrorCode = "INVALID_CURRENCY"
	CodeInvalidTransactionType   ErrorCode = "INVALID_TRANSACTION_TYPE"
	CodeInvalidAmount            ErrorCode = "INVALID_AMOUNT"
	CodeMissingSender            ErrorCode = "MISSING_SENDER"
	CodeMissingReceiver          ErrorCode = "MISSING_RECEIVER"
	CodeAmountMismatch           ErrorCode = "AMOUNT_MISMATCH"
	CodeDuplicateParticipantRole ErrorCode = "DUPLICATE_PARTICIPANT_ROLE"
	CodeMissingActorID           ErrorCode = "MISSING_ACTOR_ID"
	CodeInvalidStatus            ErrorCode = "INVALID_STATUS"
	CodeInvalidLockType          ErrorCode = "INVALID_LOCK_TYPE"
	CodeInvalidActionType        ErrorCode = "INVALID_ACTION_TYPE"
	CodeInvalidParticipant       ErrorCode = "INVALID_PARTICIPANT"
	CodeInvalidActorType         ErrorCode = "INVALID_ACTOR_TYPE"
	CodeInvalidLockExpiry        ErrorCode = "INVALID_LOCK_EXPIRY"

	CodeReferenceNotFound        ErrorCode = "REFERENCE_NOT_FOUND"
	CodeTransactionNotFound      ErrorCode = "TRANSACTION_NOT_FOUND"
	CodeInvalidStatusTransition  ErrorCode = "INVALID_STATUS_TRANSITION"
	CodeTransactionLocked        ErrorCode = "TRANSACTION_LOCKED"
	CodeConcurrentAppendConflict ErrorCode = "CONCURRENT_APPEND_CONFLICT"
	CodeChainIntegrityViolation  ErrorCode = "CHAIN_INTEGRITY_VIOLATION"
)

// CodedError is implemented by every ledger error carrying a stable code
type CodedError interface {
	error
	Code() ErrorCode
}

// ValidationError reports a client-correctable problem with a request.
// Nothing is appended when it is returned.
type ValidationError struct {
	ErrCode ErrorCode
	Message string
}

func NewValidationError(code ErrorCode, format string, args ...any) ValidationError {
	return ValidationError{ErrCode: code, Message: fmt.Sprintf(format, args...)}
}

func (e ValidationError) Error() string {
	return string(e.ErrCode) + ": " + e.Message
}

func (e ValidationError) Code() ErrorCode {
	return e.ErrCode
}

// Is matches any ValidationError when the target code is empty
func (e ValidationError) Is(target error) bool {
	t, ok := target.(ValidationError)
	if !ok {
		return false
	}
	if t.ErrCode == "" {
		return true
	}
	return e.ErrCode == t.ErrCode
}

// ErrReferenceNotFound indicates that a currency or transaction type referenced by a request is unknown
type ErrReferenceNotFound struct {
	Kind string
	Key  string
}

func (e ErrReferenceNotFound) Error() string {
	return "reference not found: " + e.Kind + " " + e.Key
}

func (e ErrReferenceNotFound) Code() ErrorCode {
	return CodeReferenceNotFound
}

func (e ErrReferenceNotFound) Is(target error) bool {
	t, ok := target.(ErrReferenceNotFound)
	if !ok {
		return false
	}
	return (t.Kind == "" || e.Kind == t.Kind) && (t.Key == "" || e.Key == t.Key)
}

// ErrTransactionNotFound indicates missing transaction
type ErrTransactionNotFound struct {
	TransactionID uuid.UUID
}

func (e ErrTransactionNotFound) Error() string {
	return "transaction not found: " + e.TransactionID.String()
}

func (e ErrTransactionNotFound) Code() ErrorCode {
	return CodeTransactionNotFound
}

// Is implements the errors.Is interface for ErrTransactionNotFound
func (e ErrTransactionNotFound) Is(target error) bool {
	t, ok := target.(ErrTransactionNotFound)
	if !ok {
		return false
	}
	if t.TransactionID == uuid.Nil {
		return true
	}
	return e.TransactionID == t.TransactionID
}

// ErrInvalidStatusTransition is returned when a status change is refused
type ErrInvalidStatusTransition struct {
	TransactionID uuid.UUID
	From          TransactionStatus
	To            TransactionStatus
	Reason        string
}

func (e ErrInvalidStatusTransition) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("cannot change status of transaction %s from %s to %s: %s", e.TransactionID, e.From, e.To, e.Reason)
	}
	return fmt.Sprintf("cannot change status of transaction %s from %s to %s", e.TransactionID, e.From, e.To)
}

func (e ErrInvalidStatusTransition) Code() ErrorCode {
	return CodeInvalidStatusTransition
}

func (e ErrInvalidStatusTransition) Is(target error) bool {
	t, ok := target.(ErrInvalidStatusTransition)
	if !ok {
		return false
	}
	if t.TransactionID == uuid.Nil {
		return true
	}
	return e.TransactionID == t.TransactionID
}

// ErrTransactionLocked is returned when an active lock blocks a status change
type ErrTransactionLocked struct {
	TransactionID uuid.UUID
	LockType      LockType
}

func (e ErrTransactionLocked) Error() string {
	return fmt.Sprintf("transaction %s is locked (%s)", e.TransactionID, e.LockType)
}

func (e ErrTransactionLocked) Code() ErrorCode {
	return CodeTransactionLocked
}

func (e ErrTransactionLocked) Is(target error) bool {
	t, ok := target.(ErrTransactionLocked)
	if !ok {
		return false
	}
	if t.TransactionID == uuid.Nil {
		return true
	}
	return e.TransactionID == t.TransactionID
}

// ErrConcurrentAppendConflict indicates the chain tail moved between read and append.
// The writer retries it internally and surfaces it once the retry budget is spent.
type ErrConcurrentAppendConflict struct {
	Chain    string
	Attempts int
}

func (e ErrConcurrentAppendConflict) Error() string {
	if e.Attempts > 0 {
		return fmt.Sprintf("concurrent append conflict on chain %s after %d attempts", e.Chain, e.Attempts)
	}
	return "concurrent append conflict on chain " + e.Chain
}

func (e ErrConcurrentAppendConflict) Code() ErrorCode {
	return CodeConcurrentAppendConflict
}

func (e ErrConcurrentAppendConflict) Is(target error) bool {
	t, ok := target.(ErrConcurrentAppendConflict)
	if !ok {
		return false
	}
	if t.Chain == "" {
		return true
	}
	return e.Chain == t.Chain
}

// ErrChainIntegrityViolation reports a broken link or a hash/signature mismatch.
// It is never retried.
type ErrChainIntegrityViolation struct {
	Chain    string
	Sequence int64
	RecordID uuid.UUID
	Detail   string
}

func (e ErrChainIntegrityViolation) Error() string {
	return fmt.Sprintf("chain integrity violation on %s at sequence %d (record %s): %s", e.Chain, e.Sequence, e.RecordID, e.Detail)
}

func (e ErrChainIntegrityViolation) Code() ErrorCode {
	return CodeChainIntegrityViolation
}

func (e ErrChainIntegrityViolation) Is(target error) bool {
	t, ok := target.(ErrChainIntegrityViolation)
	if !ok {
		return false
	}
	if t.Chain == "" {
		return true
	}
	return e.Chain == t.Chain
}

// ErrDuplicateIdempotencyKey indicates a transaction with the same idempotency key already exists
type ErrDuplicateIdempotencyKey struct {
	Key string
}

func (e ErrDuplicateIdempotencyKey) Error() string {
	return "duplicate idempotency key: " + e.Key
}

func (e ErrDuplicateIdempotencyKey) Is(target error) bool {
	t, ok := target.(ErrDuplicateIdempotencyKey)
	if !ok {
		return false
	}
	if t.Key == "" {
		return true
	}
	return e.Key == t.Key
}
