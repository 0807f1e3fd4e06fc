package service

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/mesaqr/api/internal/apperr"
	"github.com/mesaqr/api/internal/database"
	"github.com/mesaqr/api/internal/enum"
	"github.com/mesaqr/api/internal/events"
	"github.com/mesaqr/api/internal/pricing"
	"github.com/mesaqr/api/internal/ratelimit"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	maxItemNotesLen     = 500
	maxCustomerNotesLen = 1000
)

// TenantStore resolves tenants before any tenant scope exists.
// Satisfied by *database.Queries.
type TenantStore interface {
	GetTenantBySlug(ctx context.Context, slug string) (database.Tenant, error)
}

// OrderStore defines the DB methods needed to create and read orders.
// Satisfied by *database.Scoped.
type OrderStore interface {
	sequenceStore
	GetSettings(ctx context.Context) (database.TenantSettings, error)
	GetTableByQR(ctx context.Context, qrCode string) (database.DiningTable, error)
	ListAvailableDishes(ctx context.Context, ids []uuid.UUID) ([]database.DishForOrder, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
	CreateStatusHistory(ctx context.Context, arg database.CreateStatusHistoryParams) (database.OrderStatusHistory, error)
	UpdateTableStatus(ctx context.Context, id uuid.UUID, from, to enum.TableStatus) (database.DiningTable, error)
	GetOrderByTableAndNumber(ctx context.Context, tableID uuid.UUID, businessDate time.Time, number int32) (database.Order, error)
	ListOrderItems(ctx context.Context, orderID uuid.UUID) ([]database.OrderItemDetail, error)
	ListOrderHistory(ctx context.Context, orderID uuid.UUID) ([]database.OrderStatusHistory, error)
	GetOrderForUpdate(ctx context.Context, id uuid.UUID) (database.Order, error)
	UpdateOrderStatus(ctx context.Context, id uuid.UUID, from, to enum.OrderStatus) (database.Order, error)
}

// NewOrderStore creates a tenant-bound OrderStore from a pool or tx.
type NewOrderStore func(db database.DBTX, tenantID uuid.UUID) OrderStore

// OrderDefaults apply when a tenant has no settings row.
type OrderDefaults struct {
	VATRate  decimal.Decimal
	Timezone string
}

// CreateOrderRequest is a customer's cart submitted from a table QR code.
type CreateOrderRequest struct {
	TenantSlug    string
	QRCode        string
	Items         []CreateOrderItemRequest
	CustomerNotes string
	TipPercentage *decimal.Decimal
}

type CreateOrderItemRequest struct {
	DishID   uuid.UUID
	Quantity int32
	Notes    string
}

// CreateOrderResult is the persisted order with its items.
type CreateOrderResult struct {
	Order database.Order
	Items []database.OrderItem
}

// TableInfo is what a customer's phone needs after scanning a QR code.
type TableInfo struct {
	Tenant   database.Tenant
	Table    database.DiningTable
	Settings database.TenantSettings
}

// OrderDetail is an order with its items and status history.
type OrderDetail struct {
	Order   database.Order
	Table   database.DiningTable
	Items   []database.OrderItemDetail
	History []database.OrderStatusHistory
}

// OrderService handles the customer-facing order flow and manual order
// status changes.
type OrderService struct {
	pool     Pool
	tenants  TenantStore
	newStore NewOrderStore
	limiter  ratelimit.Limiter
	events   events.Publisher
	defaults OrderDefaults
	logger   *zap.Logger
	now      Clock
}

func NewOrderService(pool Pool, tenants TenantStore, newStore NewOrderStore, limiter ratelimit.Limiter,
	pub events.Publisher, defaults OrderDefaults, logger *zap.Logger) *OrderService {
	return &OrderService{
		pool:     pool,
		tenants:  tenants,
		newStore: newStore,
		limiter:  limiter,
		events:   pub,
		defaults: defaults,
		logger:   logger,
		now:      time.Now,
	}
}

// resolveTable finds an active tenant by slug and an active table by QR code
// inside it. Inactive and foreign rows are reported exactly like missing ones.
func (s *OrderService) resolveTable(ctx context.Context, slug, qrCode string) (database.Tenant, database.DiningTable, OrderStore, error) {
	tenant, err := s.tenants.GetTenantBySlug(ctx, slug)
	if err != nil {
		return database.Tenant{}, database.DiningTable{}, nil, notFound(err, "restaurant")
	}
	if !tenant.IsActive {
		return database.Tenant{}, database.DiningTable{}, nil, apperr.NotFound("restaurant not found")
	}

	store := s.newStore(s.pool, tenant.ID)
	table, err := store.GetTableByQR(ctx, qrCode)
	if err != nil {
		return database.Tenant{}, database.DiningTable{}, nil, notFound(err, "table")
	}
	if !table.IsActive {
		return database.Tenant{}, database.DiningTable{}, nil, apperr.NotFound("table not found")
	}
	return tenant, table, store, nil
}

// settings returns the tenant's settings with system defaults filled in.
func (s *OrderService) settings(ctx context.Context, store OrderStore, tenantID uuid.UUID) (database.TenantSettings, error) {
	st, err := store.GetSettings(ctx)
	if errors.Is(err, pgx.ErrNoRows) {
		return database.TenantSettings{
			TenantID: tenantID,
			VATRate:  s.defaults.VATRate,
			Timezone: s.defaults.Timezone,
			Currency: "EUR",
		}, nil
	}
	if err != nil {
		return database.TenantSettings{}, fmt.Errorf("get settings: %w", err)
	}
	if st.Timezone == "" {
		st.Timezone = s.defaults.Timezone
	}
	return st, nil
}

// ValidateTable resolves a scanned QR code.
func (s *OrderService) ValidateTable(ctx context.Context, slug, qrCode string) (*TableInfo, error) {
	tenant, table, store, err := s.resolveTable(ctx, slug, qrCode)
	if err != nil {
		return nil, err
	}
	st, err := s.settings(ctx, store, tenant.ID)
	if err != nil {
		return nil, err
	}
	return &TableInfo{Tenant: tenant, Table: table, Settings: st}, nil
}

func validateCart(req CreateOrderRequest) error {
	if len(req.Items) == 0 {
		return apperr.BadRequest("at least one item required")
	}
	for i, item := range req.Items {
		if item.DishID == uuid.Nil {
			return apperr.BadRequest("item %d: dish is required", i+1)
		}
		if item.Quantity <= 0 {
			return apperr.BadRequest("item %d: quantity must be greater than zero", i+1)
		}
		if utf8.RuneCountInString(item.Notes) > maxItemNotesLen {
			return apperr.BadRequest("item %d: notes must be at most %d characters", i+1, maxItemNotesLen)
		}
	}
	if utf8.RuneCountInString(req.CustomerNotes) > maxCustomerNotesLen {
		return apperr.BadRequest("notes must be at most %d characters", maxCustomerNotesLen)
	}
	if tip := req.TipPercentage; tip != nil {
		if tip.IsNegative() || tip.GreaterThan(decimal.NewFromInt(100)) {
			return apperr.BadRequest("tip percentage must be between 0 and 100")
		}
	}
	return nil
}

// CreateOrder turns a cart into a priced PENDING order. Order, items, the
// initial history row and the table's AVAILABLE→OCCUPIED move commit
// together or not at all.
func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*CreateOrderResult, error) {
	tenant, table, _, err := s.resolveTable(ctx, req.TenantSlug, req.QRCode)
	if err != nil {
		return nil, err
	}

	if err := validateCart(req); err != nil {
		return nil, err
	}

	allowed, err := s.limiter.Allow(ctx, ratelimit.OrderKey(tenant.ID, table.ID))
	if err != nil {
		s.logger.Warn("rate limiter error", zap.Error(err))
	}
	if !allowed {
		return nil, apperr.TooManyRequests("too many orders from this table, please wait a moment")
	}

	var result *CreateOrderResult
	err = retryTx(ctx, s.pool, s.logger, "create order", isOrderNumberRetryable, func(tx pgx.Tx) error {
		r, err := s.createOrderTx(ctx, s.newStore(tx, tenant.ID), tenant.ID, table, req)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("order created",
		zap.String("tenant_id", tenant.ID.String()),
		zap.String("order_id", result.Order.ID.String()),
		zap.Int32("order_number", result.Order.OrderNumber),
		zap.Int32("table_number", table.Number))

	publish(ctx, s.events, s.logger, tenant.ID, events.Event{
		Type: events.TypeOrderCreated,
		Payload: map[string]any{
			"order_id":     result.Order.ID,
			"order_number": result.Order.OrderNumber,
			"table_number": table.Number,
			"status":       result.Order.Status,
			"item_count":   len(result.Items),
		},
	})
	return result, nil
}

// createOrderTx runs one attempt of order creation inside tx.
func (s *OrderService) createOrderTx(ctx context.Context, store OrderStore, tenantID uuid.UUID, table database.DiningTable, req CreateOrderRequest) (*CreateOrderResult, error) {
	// --- Resolve dishes in one batch ---
	ids := make([]uuid.UUID, 0, len(req.Items))
	seen := make(map[uuid.UUID]bool, len(req.Items))
	for _, item := range req.Items {
		if !seen[item.DishID] {
			seen[item.DishID] = true
			ids = append(ids, item.DishID)
		}
	}

	dishes, err := store.ListAvailableDishes(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("list dishes: %w", err)
	}
	byID := make(map[uuid.UUID]database.DishForOrder, len(dishes))
	for _, d := range dishes {
		byID[d.ID] = d
	}
	var unavailable []string
	for _, id := range ids {
		if _, ok := byID[id]; !ok {
			unavailable = append(unavailable, id.String())
		}
	}
	if len(unavailable) > 0 {
		return nil, apperr.BadRequest("some dishes are not available").With("dish_ids", unavailable)
	}

	// --- Price ---
	st, err := s.settings(ctx, store, tenantID)
	if err != nil {
		return nil, err
	}
	lines := make([]pricing.Line, len(req.Items))
	for i, item := range req.Items {
		lines[i] = pricing.Line{UnitPrice: byID[item.DishID].Price, Quantity: item.Quantity}
	}
	totals := pricing.Calculate(lines, st.VATRate, req.TipPercentage)

	// --- Number ---
	day := businessDate(s.now(), loadLocation(st.Timezone, s.defaults.Timezone))
	number, err := allocateOrderNumber(ctx, store, day)
	if err != nil {
		return nil, err
	}

	// --- Insert ---
	var customerNotes *string
	if req.CustomerNotes != "" {
		customerNotes = ptr(req.CustomerNotes)
	}
	order, err := store.CreateOrder(ctx, database.CreateOrderParams{
		TableID:       table.ID,
		OrderNumber:   number,
		BusinessDate:  day,
		Subtotal:      totals.Subtotal,
		VATAmount:     totals.VATAmount,
		TipAmount:     totals.TipAmount,
		Total:         totals.Total,
		CustomerNotes: customerNotes,
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	items := make([]database.OrderItem, 0, len(req.Items))
	for i, item := range req.Items {
		dish := byID[item.DishID]
		var notes *string
		if item.Notes != "" {
			notes = ptr(item.Notes)
		}
		created, err := store.CreateOrderItem(ctx, database.CreateOrderItemParams{
			OrderID:      order.ID,
			DishID:       dish.ID,
			PrepSectorID: dish.PrepSectorID,
			Quantity:     item.Quantity,
			UnitPrice:    dish.Price,
			Notes:        notes,
		})
		if err != nil {
			return nil, fmt.Errorf("item[%d]: create order item: %w", i, err)
		}
		items = append(items, created)
	}

	if _, err := store.CreateStatusHistory(ctx, database.CreateStatusHistoryParams{
		OrderID:  order.ID,
		ToStatus: string(enum.OrderStatusPending),
		Note:     ptr("Order placed from table QR"),
	}); err != nil {
		return nil, fmt.Errorf("create status history: %w", err)
	}

	// Only an AVAILABLE table becomes OCCUPIED; any other status is kept.
	if _, err := store.UpdateTableStatus(ctx, table.ID, enum.TableStatusAvailable, enum.TableStatusOccupied); err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("occupy table: %w", err)
	}

	return &CreateOrderResult{Order: order, Items: items}, nil
}

// GetOrderStatus returns today's order with the given number at the table.
// When several orders share the number the latest one wins.
func (s *OrderService) GetOrderStatus(ctx context.Context, slug, qrCode string, number int32) (*OrderDetail, error) {
	tenant, table, store, err := s.resolveTable(ctx, slug, qrCode)
	if err != nil {
		return nil, err
	}
	if number <= 0 {
		return nil, apperr.BadRequest("order number must be positive")
	}

	st, err := s.settings(ctx, store, tenant.ID)
	if err != nil {
		return nil, err
	}
	day := businessDate(s.now(), loadLocation(st.Timezone, s.defaults.Timezone))

	order, err := store.GetOrderByTableAndNumber(ctx, table.ID, day, number)
	if err != nil {
		return nil, notFound(err, "order")
	}
	items, err := store.ListOrderItems(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	history, err := store.ListOrderHistory(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("list order history: %w", err)
	}
	return &OrderDetail{Order: order, Table: table, Items: items, History: history}, nil
}
