package database

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// Constraint names referenced by callers.
const (
	ConstraintOrderNumber  = "orders_tenant_day_number_key"
	ConstraintPaymentOrder = "payments_order_id_key"
)

// IsUniqueViolation reports whether err is a 23505 on the given constraint.
// An empty constraint matches any unique violation.
func IsUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && (constraint == "" || pgErr.ConstraintName == constraint)
	}
	return false
}

// IsTransient reports serialization failures and deadlocks, both of which
// are safe to retry in a fresh transaction.
func IsTransient(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}
