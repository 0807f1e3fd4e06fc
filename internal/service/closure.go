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
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ClosureStore defines the DB methods needed to close a table.
// Satisfied by *database.Scoped.
type ClosureStore interface {
	GetTableForUpdate(ctx context.Context, id uuid.UUID) (database.DiningTable, error)
	ListOpenOrdersByTableForUpdate(ctx context.Context, tableID uuid.UUID) ([]database.Order, error)
	GetPaymentByOrder(ctx context.Context, orderID uuid.UUID) (database.Payment, error)
	CreatePayment(ctx context.Context, arg database.CreatePaymentParams) (database.Payment, error)
	CompletePayment(ctx context.Context, id uuid.UUID, method enum.PaymentMethod, amount decimal.Decimal, paidAt time.Time) (database.Payment, error)
	CloseOrder(ctx context.Context, id, closedBy uuid.UUID, closedAt time.Time) (database.Order, error)
	CreateStatusHistory(ctx context.Context, arg database.CreateStatusHistoryParams) (database.OrderStatusHistory, error)
	UpdateTableStatus(ctx context.Context, id uuid.UUID, from, to enum.TableStatus) (database.DiningTable, error)
}

type NewClosureStore func(db database.DBTX, tenantID uuid.UUID) ClosureStore

// ClosureService settles a table: pays every open order and frees the table
// for cleaning.
type ClosureService struct {
	pool     TxBeginner
	newStore NewClosureStore
	events   events.Publisher
	logger   *zap.Logger
	now      Clock
}

func NewClosureService(pool TxBeginner, newStore NewClosureStore, pub events.Publisher, logger *zap.Logger) *ClosureService {
	return &ClosureService{pool: pool, newStore: newStore, events: pub, logger: logger, now: time.Now}
}

// ClosedOrder is an order settled by a table closure and its payment.
type ClosedOrder struct {
	Order   database.Order
	Payment database.Payment
}

type CloseTableResult struct {
	Table        database.DiningTable
	ClosedOrders []ClosedOrder
}

// CloseTable pays and closes every open order of an OCCUPIED table and moves
// the table to CLEANING, all in one transaction.
func (s *ClosureService) CloseTable(ctx context.Context, actor Actor, tableID uuid.UUID, method enum.PaymentMethod) (*CloseTableResult, error) {
	if !method.Valid() {
		return nil, apperr.BadRequest("unknown payment method %q", method)
	}

	var result *CloseTableResult
	err := retryTx(ctx, s.pool, s.logger, "close table", database.IsTransient, func(tx pgx.Tx) error {
		r, err := s.closeTableTx(ctx, s.newStore(tx, actor.TenantID), actor, tableID, method)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("table closed",
		zap.String("table_id", tableID.String()),
		zap.Int32("table_number", result.Table.Number),
		zap.Int("orders", len(result.ClosedOrders)),
		zap.String("method", string(method)),
		zap.String("actor_id", actor.UserID.String()))

	numbers := make([]int32, len(result.ClosedOrders))
	for i, co := range result.ClosedOrders {
		numbers[i] = co.Order.OrderNumber
	}
	publish(ctx, s.events, s.logger, actor.TenantID, events.Event{
		Type: events.TypeTableClosed,
		Payload: map[string]any{
			"table_id":      result.Table.ID,
			"table_number":  result.Table.Number,
			"status":        result.Table.Status,
			"order_numbers": numbers,
		},
	})
	return result, nil
}

func (s *ClosureService) closeTableTx(ctx context.Context, store ClosureStore, actor Actor, tableID uuid.UUID, method enum.PaymentMethod) (*CloseTableResult, error) {
	table, err := store.GetTableForUpdate(ctx, tableID)
	if err != nil {
		return nil, notFound(err, "table")
	}
	if table.Status != enum.TableStatusOccupied {
		return nil, apperr.PreconditionFailed("table %d is %s, only occupied tables can be closed", table.Number, table.Status).
			With("status", table.Status)
	}

	orders, err := store.ListOpenOrdersByTableForUpdate(ctx, table.ID)
	if err != nil {
		return nil, fmt.Errorf("list open orders: %w", err)
	}
	if len(orders) == 0 {
		return nil, apperr.BadRequest("table %d has no open orders", table.Number)
	}

	now := s.now()
	closed := make([]ClosedOrder, 0, len(orders))
	for _, order := range orders {
		payment, err := s.settle(ctx, store, order, method, now)
		if err != nil {
			return nil, err
		}

		paid, err := store.CloseOrder(ctx, order.ID, actor.UserID, now)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.Conflict("order %d changed concurrently, please retry", order.OrderNumber)
		}
		if err != nil {
			return nil, fmt.Errorf("close order: %w", err)
		}

		if _, err := store.CreateStatusHistory(ctx, database.CreateStatusHistoryParams{
			OrderID:     order.ID,
			FromStatus:  ptr(string(order.Status)),
			ToStatus:    string(enum.OrderStatusPaid),
			ChangedByID: ptr(actor.UserID),
			Note:        ptr(fmt.Sprintf("Table closed, paid by %s", payment.Method)),
		}); err != nil {
			return nil, fmt.Errorf("create status history: %w", err)
		}
		closed = append(closed, ClosedOrder{Order: paid, Payment: payment})
	}

	table, err = store.UpdateTableStatus(ctx, table.ID, enum.TableStatusOccupied, enum.TableStatusCleaning)
	if err != nil {
		return nil, fmt.Errorf("release table: %w", err)
	}
	return &CloseTableResult{Table: table, ClosedOrders: closed}, nil
}

// settle makes sure order has a COMPLETED payment for its total. An already
// completed payment is returned untouched.
func (s *ClosureService) settle(ctx context.Context, store ClosureStore, order database.Order, method enum.PaymentMethod, now time.Time) (database.Payment, error) {
	existing, err := store.GetPaymentByOrder(ctx, order.ID)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		p, err := store.CreatePayment(ctx, database.CreatePaymentParams{
			OrderID: order.ID,
			Method:  method,
			Status:  enum.PaymentStatusCompleted,
			Amount:  order.Total,
			PaidAt:  ptr(now),
		})
		if database.IsUniqueViolation(err, database.ConstraintPaymentOrder) {
			return database.Payment{}, apperr.Conflict("order %d already has a payment", order.OrderNumber)
		}
		if err != nil {
			return database.Payment{}, fmt.Errorf("create payment: %w", err)
		}
		return p, nil
	case err != nil:
		return database.Payment{}, fmt.Errorf("get payment: %w", err)
	case existing.Status == enum.PaymentStatusCompleted:
		return existing, nil
	}

	p, err := store.CompletePayment(ctx, existing.ID, method, order.Total, now)
	if errors.Is(err, pgx.ErrNoRows) {
		return database.Payment{}, apperr.Conflict("payment for order %d changed concurrently", order.OrderNumber)
	}
	if err != nil {
		return database.Payment{}, fmt.Errorf("complete payment: %w", err)
	}
	return p, nil
}
