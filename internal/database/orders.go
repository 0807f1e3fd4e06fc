package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/mesaqr/api/internal/enum"
	"github.com/shopspring/decimal"
)

const orderColumns = `id, tenant_id, table_id, order_number, business_date, status,
       subtotal, vat_amount, tip_amount, total, customer_notes,
       closed_by_id, closed_at, created_at, updated_at`

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	err := row.Scan(
		&o.ID, &o.TenantID, &o.TableID, &o.OrderNumber, &o.BusinessDate, &o.Status,
		&o.Subtotal, &o.VATAmount, &o.TipAmount, &o.Total, &o.CustomerNotes,
		&o.ClosedByID, &o.ClosedAt, &o.CreatedAt, &o.UpdatedAt,
	)
	return o, err
}

func collectOrders(rows pgx.Rows, err error) ([]Order, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, o)
	}
	return items, rows.Err()
}

// --- Numbering ---

const lockOrderNumber = `SELECT pg_advisory_xact_lock(hashtextextended($1::text || ':' || $2::text, 0))`

// LockOrderNumber serialises number allocation for one tenant and business
// day until the surrounding transaction ends.
func (s *Scoped) LockOrderNumber(ctx context.Context, businessDate time.Time) error {
	_, err := s.db.Exec(ctx, lockOrderNumber, s.tenantID.String(), businessDate.Format(time.DateOnly))
	return err
}

const nextOrderNumber = `SELECT COALESCE(MAX(order_number), 0) + 1
FROM orders
WHERE tenant_id = $1 AND business_date = $2`

func (s *Scoped) NextOrderNumber(ctx context.Context, businessDate time.Time) (int32, error) {
	var n int32
	err := s.db.QueryRow(ctx, nextOrderNumber, s.tenantID, businessDate).Scan(&n)
	return n, err
}

// --- Orders ---

type CreateOrderParams struct {
	TableID       uuid.UUID
	OrderNumber   int32
	BusinessDate  time.Time
	Subtotal      decimal.Decimal
	VATAmount     decimal.Decimal
	TipAmount     decimal.Decimal
	Total         decimal.Decimal
	CustomerNotes *string
}

const createOrder = `INSERT INTO orders (tenant_id, table_id, order_number, business_date, status,
                    subtotal, vat_amount, tip_amount, total, customer_notes)
SELECT t.tenant_id, t.id, $3, $4, 'PENDING', $5, $6, $7, $8, $9
FROM dining_tables t
WHERE t.id = $2 AND t.tenant_id = $1
RETURNING ` + orderColumns

func (s *Scoped) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	return scanOrder(s.db.QueryRow(ctx, createOrder,
		s.tenantID, arg.TableID, arg.OrderNumber, arg.BusinessDate,
		arg.Subtotal, arg.VATAmount, arg.TipAmount, arg.Total, arg.CustomerNotes,
	))
}

const getOrder = `SELECT ` + orderColumns + `
FROM orders
WHERE id = $1 AND tenant_id = $2`

func (s *Scoped) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	return scanOrder(s.db.QueryRow(ctx, getOrder, id, s.tenantID))
}

const getOrderForUpdate = getOrder + `
FOR UPDATE`

func (s *Scoped) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (Order, error) {
	return scanOrder(s.db.QueryRow(ctx, getOrderForUpdate, id, s.tenantID))
}

const lockOrders = `SELECT ` + orderColumns + `
FROM orders
WHERE tenant_id = $1 AND id = ANY($2::uuid[])
ORDER BY id
FOR UPDATE`

// LockOrders row-locks the given orders in id order.
func (s *Scoped) LockOrders(ctx context.Context, ids []uuid.UUID) ([]Order, error) {
	return collectOrders(s.db.Query(ctx, lockOrders, s.tenantID, ids))
}

const getOrderByTableAndNumber = `SELECT ` + orderColumns + `
FROM orders
WHERE tenant_id = $1 AND table_id = $2 AND business_date = $3 AND order_number = $4
ORDER BY created_at DESC
LIMIT 1`

func (s *Scoped) GetOrderByTableAndNumber(ctx context.Context, tableID uuid.UUID, businessDate time.Time, number int32) (Order, error) {
	return scanOrder(s.db.QueryRow(ctx, getOrderByTableAndNumber, s.tenantID, tableID, businessDate, number))
}

const listOpenOrdersByTableForUpdate = `SELECT ` + orderColumns + `
FROM orders
WHERE tenant_id = $1 AND table_id = $2 AND status NOT IN ('PAID', 'CANCELLED')
ORDER BY created_at, id
FOR UPDATE`

func (s *Scoped) ListOpenOrdersByTableForUpdate(ctx context.Context, tableID uuid.UUID) ([]Order, error) {
	return collectOrders(s.db.Query(ctx, listOpenOrdersByTableForUpdate, s.tenantID, tableID))
}

const updateOrderStatus = `UPDATE orders
SET status = $3, updated_at = now()
WHERE id = $1 AND tenant_id = $2 AND status = $4
RETURNING ` + orderColumns

// UpdateOrderStatus is a compare-and-set on the order status. It returns
// pgx.ErrNoRows when the order is no longer in the expected status.
func (s *Scoped) UpdateOrderStatus(ctx context.Context, id uuid.UUID, from, to enum.OrderStatus) (Order, error) {
	return scanOrder(s.db.QueryRow(ctx, updateOrderStatus, id, s.tenantID, to, from))
}

const closeOrder = `UPDATE orders
SET status = 'PAID', closed_by_id = $3, closed_at = $4, updated_at = now()
WHERE id = $1 AND tenant_id = $2 AND status NOT IN ('PAID', 'CANCELLED')
RETURNING ` + orderColumns

func (s *Scoped) CloseOrder(ctx context.Context, id, closedBy uuid.UUID, closedAt time.Time) (Order, error) {
	return scanOrder(s.db.QueryRow(ctx, closeOrder, id, s.tenantID, closedBy, closedAt))
}

// --- History ---

type CreateStatusHistoryParams struct {
	OrderID     uuid.UUID
	OrderItemID *uuid.UUID
	FromStatus  *string
	ToStatus    string
	ChangedByID *uuid.UUID
	Note        *string
}

const createStatusHistory = `INSERT INTO order_status_history
       (order_id, order_item_id, from_status, to_status, changed_by_id, note)
SELECT o.id, $3, $4, $5, $6, $7
FROM orders o
WHERE o.id = $1 AND o.tenant_id = $2
RETURNING id, order_id, order_item_id, from_status, to_status, changed_by_id, note, created_at`

func (s *Scoped) CreateStatusHistory(ctx context.Context, arg CreateStatusHistoryParams) (OrderStatusHistory, error) {
	var h OrderStatusHistory
	err := s.db.QueryRow(ctx, createStatusHistory,
		arg.OrderID, s.tenantID, arg.OrderItemID, arg.FromStatus, arg.ToStatus, arg.ChangedByID, arg.Note,
	).Scan(&h.ID, &h.OrderID, &h.OrderItemID, &h.FromStatus, &h.ToStatus, &h.ChangedByID, &h.Note, &h.CreatedAt)
	return h, err
}

const listOrderHistory = `SELECT h.id, h.order_id, h.order_item_id, h.from_status, h.to_status,
       h.changed_by_id, h.note, h.created_at
FROM order_status_history h
JOIN orders o ON o.id = h.order_id
WHERE h.order_id = $1 AND o.tenant_id = $2
ORDER BY h.created_at, h.id`

func (s *Scoped) ListOrderHistory(ctx context.Context, orderID uuid.UUID) ([]OrderStatusHistory, error) {
	rows, err := s.db.Query(ctx, listOrderHistory, orderID, s.tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []OrderStatusHistory
	for rows.Next() {
		var h OrderStatusHistory
		if err := rows.Scan(&h.ID, &h.OrderID, &h.OrderItemID, &h.FromStatus, &h.ToStatus,
			&h.ChangedByID, &h.Note, &h.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, h)
	}
	return items, rows.Err()
}
