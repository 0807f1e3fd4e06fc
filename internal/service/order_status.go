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
	"github.com/mesaqr/api/internal/events"
	"github.com/mesaqr/api/internal/permission"
	"go.uber.org/zap"
)

// orderTransitions is the manual override table. PAID is reachable only by
// closing the table, so it never appears as a target here.
var orderTransitions = map[enum.OrderStatus][]enum.OrderStatus{
	enum.OrderStatusPending:    {enum.OrderStatusConfirmed, enum.OrderStatusInProgress, enum.OrderStatusCancelled},
	enum.OrderStatusConfirmed:  {enum.OrderStatusInProgress, enum.OrderStatusReady, enum.OrderStatusCancelled},
	enum.OrderStatusInProgress: {enum.OrderStatusReady, enum.OrderStatusCancelled},
	enum.OrderStatusReady:      {enum.OrderStatusInProgress, enum.OrderStatusDelivered, enum.OrderStatusCancelled},
	enum.OrderStatusDelivered:  {enum.OrderStatusCancelled},
	enum.OrderStatusPaid:       {},
	enum.OrderStatusCancelled:  {},
}

// CanTransitionOrder reports whether staff may move an order from one status
// to another by hand.
func CanTransitionOrder(from, to enum.OrderStatus) bool {
	for _, s := range orderTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// UpdateOrderStatus applies a manual order status change.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, actor Actor, orderID uuid.UUID, target enum.OrderStatus) (database.Order, error) {
	if !target.Valid() {
		return database.Order{}, apperr.BadRequest("unknown order status %q", target)
	}
	if target == enum.OrderStatusPaid {
		return database.Order{}, apperr.BadRequest("orders are marked PAID by closing their table")
	}
	if target == enum.OrderStatusCancelled && !permission.CanCancel(actor.Role) {
		return database.Order{}, apperr.Forbidden("only administrators can cancel orders")
	}

	var (
		from    enum.OrderStatus
		updated database.Order
	)
	err := retryTx(ctx, s.pool, s.logger, "update order status", database.IsTransient, func(tx pgx.Tx) error {
		store := s.newStore(tx, actor.TenantID)

		order, err := store.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return notFound(err, "order")
		}
		if !CanTransitionOrder(order.Status, target) {
			return apperr.BadRequest("cannot move order from %s to %s", order.Status, target).
				With("from", order.Status).
				With("to", target).
				With("valid_targets", orderTransitions[order.Status])
		}

		updated, err = store.UpdateOrderStatus(ctx, order.ID, order.Status, target)
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.Conflict("order changed concurrently, please retry")
		}
		if err != nil {
			return fmt.Errorf("update order status: %w", err)
		}

		if _, err := store.CreateStatusHistory(ctx, database.CreateStatusHistoryParams{
			OrderID:     order.ID,
			FromStatus:  ptr(string(order.Status)),
			ToStatus:    string(target),
			ChangedByID: ptr(actor.UserID),
		}); err != nil {
			return fmt.Errorf("create status history: %w", err)
		}
		from = order.Status
		return nil
	})
	if err != nil {
		return database.Order{}, err
	}

	s.logger.Info("order status changed",
		zap.String("order_id", orderID.String()),
		zap.String("from", string(from)),
		zap.String("to", string(target)),
		zap.String("actor_id", actor.UserID.String()))

	publish(ctx, s.events, s.logger, actor.TenantID, events.Event{
		Type: events.TypeOrderStatusChanged,
		Payload: map[string]any{
			"order_id":     updated.ID,
			"order_number": updated.OrderNumber,
			"from":         from,
			"status":       updated.Status,
		},
	})
	return updated, nil
}
