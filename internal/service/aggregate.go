package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/mesaqr/api/internal/apperr"
	"github.com/mesaqr/api/internal/database"
	"github.com/mesaqr/api/internal/enum"
)

// DeriveOrderStatus computes an order's status from the statuses of all of
// its items. The rules are checked in order; ok is false when none applies
// and the order should keep its current status.
func DeriveOrderStatus(items []enum.ItemStatus) (status enum.OrderStatus, ok bool) {
	if len(items) == 0 {
		return "", false
	}

	allServed, allReadyOrServed, allPending, anyInProgress := true, true, true, false
	for _, st := range items {
		if st != enum.ItemStatusServed {
			allServed = false
		}
		if st != enum.ItemStatusReady && st != enum.ItemStatusServed {
			allReadyOrServed = false
		}
		if st != enum.ItemStatusPending {
			allPending = false
		}
		if st == enum.ItemStatusInProgress {
			anyInProgress = true
		}
	}

	switch {
	case allServed:
		return enum.OrderStatusDelivered, true
	case allReadyOrServed:
		return enum.OrderStatusReady, true
	case anyInProgress:
		return enum.OrderStatusInProgress, true
	case allPending:
		return enum.OrderStatusConfirmed, true
	}
	return "", false
}

type aggregationStore interface {
	ListItemStatusesByOrder(ctx context.Context, orderID uuid.UUID) ([]enum.ItemStatus, error)
	UpdateOrderStatus(ctx context.Context, id uuid.UUID, from, to enum.OrderStatus) (database.Order, error)
	CreateStatusHistory(ctx context.Context, arg database.CreateStatusHistoryParams) (database.OrderStatusHistory, error)
}

// aggregateOrder re-derives the status of a row-locked order from all of its
// items and persists a change together with an order-level history row.
// Closed orders are left alone.
func aggregateOrder(ctx context.Context, store aggregationStore, order database.Order, actorID uuid.UUID) (database.Order, bool, error) {
	if order.Status.Closed() {
		return order, false, nil
	}

	statuses, err := store.ListItemStatusesByOrder(ctx, order.ID)
	if err != nil {
		return order, false, fmt.Errorf("list item statuses: %w", err)
	}
	derived, ok := DeriveOrderStatus(statuses)
	if !ok || derived == order.Status {
		return order, false, nil
	}

	updated, err := store.UpdateOrderStatus(ctx, order.ID, order.Status, derived)
	if errors.Is(err, pgx.ErrNoRows) {
		return order, false, apperr.Conflict("order changed concurrently, please retry")
	}
	if err != nil {
		return order, false, fmt.Errorf("update order status: %w", err)
	}

	if _, err := store.CreateStatusHistory(ctx, database.CreateStatusHistoryParams{
		OrderID:     order.ID,
		FromStatus:  ptr(string(order.Status)),
		ToStatus:    string(derived),
		ChangedByID: ptr(actorID),
		Note:        ptr("Derived from item statuses"),
	}); err != nil {
		return order, false, fmt.Errorf("create status history: %w", err)
	}
	return updated, true, nil
}
