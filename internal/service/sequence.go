package service

import (
	"context"
	"fmt"
	"time"

	"github.com/mesaqr/api/internal/database"
)

// sequenceStore is the slice of the store used to allocate order numbers.
type sequenceStore interface {
	LockOrderNumber(ctx context.Context, businessDate time.Time) error
	NextOrderNumber(ctx context.Context, businessDate time.Time) (int32, error)
}

// allocateOrderNumber returns the next order number for the store's tenant
// on businessDate. It must run inside the transaction that inserts the
// order: the advisory lock it takes is held until that transaction ends, so
// a concurrent allocation for the same tenant and day waits and then reads
// the committed maximum.
func allocateOrderNumber(ctx context.Context, store sequenceStore, businessDate time.Time) (int32, error) {
	if err := store.LockOrderNumber(ctx, businessDate); err != nil {
		return 0, fmt.Errorf("lock order number: %w", err)
	}
	n, err := store.NextOrderNumber(ctx, businessDate)
	if err != nil {
		return 0, fmt.Errorf("next order number: %w", err)
	}
	return n, nil
}

// isOrderNumberRetryable reports errors after which the whole allocation
// and insert should be replayed with a fresh read.
func isOrderNumberRetryable(err error) bool {
	return database.IsUniqueViolation(err, database.ConstraintOrderNumber) || database.IsTransient(err)
}

// businessDate is the tenant-local calendar day containing now, expressed
// as midnight UTC so it maps one-to-one onto a DATE column.
func businessDate(now time.Time, loc *time.Location) time.Time {
	y, m, d := now.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// loadLocation resolves an IANA zone name, falling back to fallback and
// finally to UTC.
func loadLocation(name, fallback string) *time.Location {
	for _, n := range []string{name, fallback} {
		if n == "" {
			continue
		}
		if loc, err := time.LoadLocation(n); err == nil {
			return loc
		}
	}
	return time.UTC
}
