package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/mesaqr/api/internal/enum"
)

// Scoped runs queries on behalf of a single tenant. The tenant id is fixed
// at construction and bound into every statement, so a caller cannot read
// or write another tenant's rows through it. Child rows without their own
// tenant column (items, history, payments) are reached through their order.
type Scoped struct {
	db       DBTX
	tenantID uuid.UUID
}

func NewScoped(db DBTX, tenantID uuid.UUID) *Scoped {
	return &Scoped{db: db, tenantID: tenantID}
}

// --- Settings ---

const getSettings = `SELECT tenant_id, vat_rate, timezone, currency
FROM tenant_settings
WHERE tenant_id = $1`

func (s *Scoped) GetSettings(ctx context.Context) (TenantSettings, error) {
	var ts TenantSettings
	err := s.db.QueryRow(ctx, getSettings, s.tenantID).Scan(
		&ts.TenantID, &ts.VATRate, &ts.Timezone, &ts.Currency,
	)
	return ts, err
}

// --- Tables ---

const tableColumns = `id, tenant_id, number, name, qr_code, capacity, status, is_active, updated_at`

func scanTable(row pgx.Row) (DiningTable, error) {
	var t DiningTable
	err := row.Scan(&t.ID, &t.TenantID, &t.Number, &t.Name, &t.QRCode,
		&t.Capacity, &t.Status, &t.IsActive, &t.UpdatedAt)
	return t, err
}

const getTableByQR = `SELECT ` + tableColumns + `
FROM dining_tables
WHERE tenant_id = $1 AND qr_code = $2`

func (s *Scoped) GetTableByQR(ctx context.Context, qrCode string) (DiningTable, error) {
	return scanTable(s.db.QueryRow(ctx, getTableByQR, s.tenantID, qrCode))
}

const getTableForUpdate = `SELECT ` + tableColumns + `
FROM dining_tables
WHERE id = $1 AND tenant_id = $2
FOR UPDATE`

func (s *Scoped) GetTableForUpdate(ctx context.Context, id uuid.UUID) (DiningTable, error) {
	return scanTable(s.db.QueryRow(ctx, getTableForUpdate, id, s.tenantID))
}

const updateTableStatus = `UPDATE dining_tables
SET status = $3, updated_at = now()
WHERE id = $1 AND tenant_id = $2 AND status = $4
RETURNING ` + tableColumns

// UpdateTableStatus moves a table from one status to another. It returns
// pgx.ErrNoRows when the table is not in the expected status.
func (s *Scoped) UpdateTableStatus(ctx context.Context, id uuid.UUID, from, to enum.TableStatus) (DiningTable, error) {
	return scanTable(s.db.QueryRow(ctx, updateTableStatus, id, s.tenantID, to, from))
}

// --- Dishes ---

const listAvailableDishes = `SELECT d.id, d.name, d.price, d.allergens, c.prep_sector_id
FROM dishes d
JOIN categories c ON c.id = d.category_id
WHERE d.tenant_id = $1
  AND d.id = ANY($2::uuid[])
  AND d.is_available = true
  AND d.is_in_stock = true`

// ListAvailableDishes returns the subset of ids that name orderable dishes.
// Missing, unavailable and out of stock dishes are silently absent.
func (s *Scoped) ListAvailableDishes(ctx context.Context, ids []uuid.UUID) ([]DishForOrder, error) {
	rows, err := s.db.Query(ctx, listAvailableDishes, s.tenantID, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []DishForOrder
	for rows.Next() {
		var d DishForOrder
		if err := rows.Scan(&d.ID, &d.Name, &d.Price, &d.Allergens, &d.PrepSectorID); err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	return items, rows.Err()
}

// --- Sectors ---

const getSectorByCode = `SELECT id, tenant_id, code, name, is_active
FROM prep_sectors
WHERE tenant_id = $1 AND code = $2 AND is_active = true`

func (s *Scoped) GetSectorByCode(ctx context.Context, code string) (PrepSector, error) {
	var p PrepSector
	err := s.db.QueryRow(ctx, getSectorByCode, s.tenantID, code).Scan(
		&p.ID, &p.TenantID, &p.Code, &p.Name, &p.IsActive,
	)
	return p, err
}

const listSectorItems = `SELECT o.id, o.order_number, o.customer_notes, o.created_at,
       t.number, t.name,
       oi.id, oi.status, oi.quantity, oi.notes, d.name, d.allergens
FROM order_items oi
JOIN orders o ON o.id = oi.order_id
JOIN dishes d ON d.id = oi.dish_id
JOIN dining_tables t ON t.id = o.table_id
WHERE o.tenant_id = $1
  AND oi.prep_sector_id = $2
  AND oi.status = ANY($3::text[])
  AND o.status NOT IN ('PAID', 'CANCELLED')
ORDER BY o.created_at, o.id, oi.created_at, oi.id`

// ListSectorItems returns the sector's active items, oldest order first.
func (s *Scoped) ListSectorItems(ctx context.Context, sectorID uuid.UUID) ([]SectorItemRow, error) {
	rows, err := s.db.Query(ctx, listSectorItems, s.tenantID, sectorID, activeItemStatuses())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []SectorItemRow
	for rows.Next() {
		var r SectorItemRow
		if err := rows.Scan(
			&r.OrderID, &r.OrderNumber, &r.CustomerNotes, &r.OrderCreated,
			&r.TableNumber, &r.TableName,
			&r.ItemID, &r.ItemStatus, &r.Quantity, &r.Notes, &r.DishName, &r.Allergens,
		); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

const getSectorStats = `SELECT
  (SELECT COUNT(DISTINCT o.id)
     FROM order_items oi
     JOIN orders o ON o.id = oi.order_id
    WHERE o.tenant_id = $1
      AND oi.prep_sector_id = $2
      AND oi.status = ANY($3::text[])
      AND o.status NOT IN ('PAID', 'CANCELLED')) AS active_orders,
  (SELECT COUNT(*)
     FROM order_status_history h
     JOIN order_items oi ON oi.id = h.order_item_id
     JOIN orders o ON o.id = h.order_id
    WHERE o.tenant_id = $1
      AND oi.prep_sector_id = $2
      AND h.to_status = 'SERVED'
      AND h.created_at >= $4) AS served_items,
  (SELECT AVG(EXTRACT(EPOCH FROM (h.created_at - o.created_at)))::float8
     FROM order_status_history h
     JOIN order_items oi ON oi.id = h.order_item_id
     JOIN orders o ON o.id = h.order_id
    WHERE o.tenant_id = $1
      AND oi.prep_sector_id = $2
      AND h.to_status = 'SERVED'
      AND h.created_at >= $4) AS avg_served_seconds`

// GetSectorStats counts active orders for a sector and averages the time
// from order creation to SERVED for items served since the given instant.
func (s *Scoped) GetSectorStats(ctx context.Context, sectorID uuid.UUID, since time.Time) (SectorStatsRow, error) {
	var r SectorStatsRow
	err := s.db.QueryRow(ctx, getSectorStats, s.tenantID, sectorID, activeItemStatuses(), since).Scan(
		&r.ActiveOrders, &r.ServedItems, &r.AvgServedSeconds,
	)
	return r, err
}

func activeItemStatuses() []string {
	out := make([]string, len(enum.ActiveItemStatuses))
	for i, st := range enum.ActiveItemStatuses {
		out[i] = string(st)
	}
	return out
}
