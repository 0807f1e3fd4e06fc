package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/mesaqr/api/internal/enum"
	"github.com/shopspring/decimal"
)

const itemColumns = `oi.id, oi.order_id, oi.dish_id, oi.prep_sector_id, oi.quantity,
       oi.unit_price, oi.notes, oi.status, oi.created_at, oi.updated_at`

func itemDest(it *OrderItem) []any {
	return []any{&it.ID, &it.OrderID, &it.DishID, &it.PrepSectorID, &it.Quantity,
		&it.UnitPrice, &it.Notes, &it.Status, &it.CreatedAt, &it.UpdatedAt}
}

func scanItem(row pgx.Row) (OrderItem, error) {
	var it OrderItem
	err := row.Scan(itemDest(&it)...)
	return it, err
}

type CreateOrderItemParams struct {
	OrderID      uuid.UUID
	DishID       uuid.UUID
	PrepSectorID uuid.UUID
	Quantity     int32
	UnitPrice    decimal.Decimal
	Notes        *string
}

const createOrderItem = `INSERT INTO order_items AS oi
       (order_id, dish_id, prep_sector_id, quantity, unit_price, notes, status)
SELECT o.id, $3, $4, $5, $6, $7, 'PENDING'
FROM orders o
WHERE o.id = $1 AND o.tenant_id = $2
RETURNING ` + itemColumns

func (s *Scoped) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error) {
	return scanItem(s.db.QueryRow(ctx, createOrderItem,
		arg.OrderID, s.tenantID, arg.DishID, arg.PrepSectorID, arg.Quantity, arg.UnitPrice, arg.Notes,
	))
}

const getOrderItem = `SELECT ` + itemColumns + `, ps.code
FROM order_items oi
JOIN orders o ON o.id = oi.order_id
JOIN prep_sectors ps ON ps.id = oi.prep_sector_id
WHERE oi.id = $1 AND o.tenant_id = $2`

func (s *Scoped) GetOrderItem(ctx context.Context, id uuid.UUID) (OrderItemRef, error) {
	var r OrderItemRef
	err := s.db.QueryRow(ctx, getOrderItem, id, s.tenantID).Scan(append(itemDest(&r.OrderItem), &r.SectorCode)...)
	return r, err
}

const listOrderItemsByIDs = `SELECT ` + itemColumns + `, ps.code
FROM order_items oi
JOIN orders o ON o.id = oi.order_id
JOIN prep_sectors ps ON ps.id = oi.prep_sector_id
WHERE oi.id = ANY($1::uuid[]) AND o.tenant_id = $2
ORDER BY oi.id`

func (s *Scoped) ListOrderItemsByIDs(ctx context.Context, ids []uuid.UUID) ([]OrderItemRef, error) {
	rows, err := s.db.Query(ctx, listOrderItemsByIDs, ids, s.tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []OrderItemRef
	for rows.Next() {
		var r OrderItemRef
		if err := rows.Scan(append(itemDest(&r.OrderItem), &r.SectorCode)...); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

const listOrderItems = `SELECT ` + itemColumns + `, d.name, d.allergens, ps.code
FROM order_items oi
JOIN orders o ON o.id = oi.order_id
JOIN dishes d ON d.id = oi.dish_id
JOIN prep_sectors ps ON ps.id = oi.prep_sector_id
WHERE oi.order_id = $1 AND o.tenant_id = $2
ORDER BY oi.created_at, oi.id`

func (s *Scoped) ListOrderItems(ctx context.Context, orderID uuid.UUID) ([]OrderItemDetail, error) {
	rows, err := s.db.Query(ctx, listOrderItems, orderID, s.tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []OrderItemDetail
	for rows.Next() {
		var d OrderItemDetail
		if err := rows.Scan(append(itemDest(&d.OrderItem), &d.DishName, &d.Allergens, &d.SectorCode)...); err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	return items, rows.Err()
}

const listItemStatusesByOrder = `SELECT oi.status
FROM order_items oi
JOIN orders o ON o.id = oi.order_id
WHERE oi.order_id = $1 AND o.tenant_id = $2`

func (s *Scoped) ListItemStatusesByOrder(ctx context.Context, orderID uuid.UUID) ([]enum.ItemStatus, error) {
	rows, err := s.db.Query(ctx, listItemStatusesByOrder, orderID, s.tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []enum.ItemStatus
	for rows.Next() {
		var st enum.ItemStatus
		if err := rows.Scan(&st); err != nil {
			return nil, err
		}
		items = append(items, st)
	}
	return items, rows.Err()
}

const updateOrderItemStatus = `UPDATE order_items oi
SET status = $3, updated_at = now()
FROM orders o
WHERE oi.id = $1 AND oi.order_id = o.id AND o.tenant_id = $2 AND oi.status = $4
RETURNING ` + itemColumns

// UpdateOrderItemStatus is a compare-and-set on the item status. It returns
// pgx.ErrNoRows when the item is missing or no longer in the expected status.
func (s *Scoped) UpdateOrderItemStatus(ctx context.Context, id uuid.UUID, from, to enum.ItemStatus) (OrderItem, error) {
	return scanItem(s.db.QueryRow(ctx, updateOrderItemStatus, id, s.tenantID, to, from))
}

const bulkUpdateOrderItemStatus = `UPDATE order_items oi
SET status = $3, updated_at = now()
FROM orders o
WHERE oi.id = ANY($1::uuid[]) AND oi.order_id = o.id AND o.tenant_id = $2 AND oi.status = $4
RETURNING ` + itemColumns

// BulkUpdateOrderItemStatus moves every listed item still in from to to and
// returns the rows it changed.
func (s *Scoped) BulkUpdateOrderItemStatus(ctx context.Context, ids []uuid.UUID, from, to enum.ItemStatus) ([]OrderItem, error) {
	rows, err := s.db.Query(ctx, bulkUpdateOrderItemStatus, ids, s.tenantID, to, from)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []OrderItem
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
