package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/mesaqr/api/internal/apperr"
	"github.com/mesaqr/api/internal/database"
	"github.com/mesaqr/api/internal/enum"
	"github.com/mesaqr/api/internal/events"
	"go.uber.org/zap"
)

// maxTxAttempts bounds how often a transaction is replayed after a
// serialization failure, deadlock or order number collision.
const maxTxAttempts = 3

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Pool runs queries directly and opens transactions. Satisfied by
// *pgxpool.Pool.
type Pool interface {
	TxBeginner
	database.DBTX
}

// Clock returns the current instant. Injected so tests control "today".
type Clock func() time.Time

// Actor is the authenticated staff member performing an operation.
type Actor struct {
	UserID   uuid.UUID
	TenantID uuid.UUID
	Role     enum.Role
}

// inTx runs fn inside a transaction and commits if fn succeeds.
func inTx(ctx context.Context, pool TxBeginner, fn func(tx pgx.Tx) error) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// retryTx replays fn in a fresh transaction while retryable reports true,
// up to maxTxAttempts times, then gives up with CONFLICT.
func retryTx(ctx context.Context, pool TxBeginner, logger *zap.Logger, op string, retryable func(error) bool, fn func(tx pgx.Tx) error) error {
	var lastErr error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err := inTx(ctx, pool, fn)
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return err
		}
		lastErr = err
		logger.Warn("transaction conflict, retrying",
			zap.String("op", op), zap.Int("attempt", attempt), zap.Error(err))
	}
	logger.Warn("transaction retries exhausted", zap.String("op", op), zap.Error(lastErr))
	return apperr.Conflict("%s conflicted with a concurrent request, please retry", op)
}

// notFound maps pgx.ErrNoRows to a NOT_FOUND error and wraps anything else.
func notFound(err error, what string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("%s not found", what)
	}
	return fmt.Errorf("get %s: %w", what, err)
}

// publish delivers an event after commit. Failures are logged, never
// returned: the write has already happened.
func publish(ctx context.Context, pub events.Publisher, logger *zap.Logger, tenantID uuid.UUID, e events.Event) {
	if err := pub.Publish(ctx, tenantID, e); err != nil {
		logger.Warn("publish event failed",
			zap.String("type", e.Type),
			zap.String("tenant_id", tenantID.String()),
			zap.Error(err))
	}
}

func ptr[T any](v T) *T { return &v }
