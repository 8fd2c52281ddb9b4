package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

// Constraint names from migrations/postgres
const (
	constraintTransactionSequence = "uq_transactions_sequence"
	constraintIdempotencyKey      = "uq_transactions_idempotency_key"
	constraintAuditSequence       = "uq_audit_log_sequence"
	constraintParticipantRole     = "uq_participants_role"
)

// uniqueViolationOn returns the violated constraint when err is a unique violation
func uniqueViolationOn(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return pgErr.ConstraintName, true
	}
	return "", false
}

// scanner is satisfied by pgx.Row and pgx.Rows
type scanner interface {
	Scan(dest ...any) error
}
