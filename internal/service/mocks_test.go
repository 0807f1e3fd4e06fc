package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mesaqr/api/internal/apperr"
	"github.com/mesaqr/api/internal/database"
	"github.com/mesaqr/api/internal/enum"
	"github.com/mesaqr/api/internal/events"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// --- Mock implementations ---

// mockTx implements pgx.Tx with only the methods we need.
// The unused methods panic so we catch accidental calls.
type mockTx struct {
	commitErr error
	committed int
}

func (m *mockTx) Begin(ctx context.Context) (pgx.Tx, error) { panic("not implemented") }
func (m *mockTx) Commit(ctx context.Context) error {
	if m.commitErr != nil {
		return m.commitErr
	}
	m.committed++
	return nil
}
func (m *mockTx) Rollback(ctx context.Context) error { return nil }
func (m *mockTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}
func (m *mockTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	panic("not implemented")
}
func (m *mockTx) LargeObjects() pgx.LargeObjects { panic("not implemented") }
func (m *mockTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}
func (m *mockTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	panic("not implemented")
}
func (m *mockTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	panic("not implemented")
}
func (m *mockTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	panic("not implemented")
}
func (m *mockTx) Conn() *pgx.Conn { panic("not implemented") }

// mockPool implements Pool. Direct queries go through the store factory, so
// the DBTX methods are never reached.
type mockPool struct {
	tx    *mockTx
	err   error
	begun int
}

func (m *mockPool) Begin(ctx context.Context) (pgx.Tx, error) {
	m.begun++
	if m.err != nil {
		return nil, m.err
	}
	return m.tx, nil
}
func (m *mockPool) Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	panic("not implemented")
}
func (m *mockPool) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	panic("not implemented")
}
func (m *mockPool) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	panic("not implemented")
}

func newMockPool() *mockPool { return &mockPool{tx: &mockTx{}} }

// mockTenantStore implements TenantStore.
type mockTenantStore struct {
	tenants map[string]database.Tenant
}

func (m *mockTenantStore) GetTenantBySlug(ctx context.Context, slug string) (database.Tenant, error) {
	t, ok := m.tenants[slug]
	if !ok {
		return database.Tenant{}, pgx.ErrNoRows
	}
	return t, nil
}

// mockStore implements every store interface with configurable behavior.
// A nil function field panics when called.
type mockStore struct {
	getSettingsFn                    func(ctx context.Context) (database.TenantSettings, error)
	getTableByQRFn                   func(ctx context.Context, qrCode string) (database.DiningTable, error)
	getTableForUpdateFn              func(ctx context.Context, id uuid.UUID) (database.DiningTable, error)
	updateTableStatusFn              func(ctx context.Context, id uuid.UUID, from, to enum.TableStatus) (database.DiningTable, error)
	listAvailableDishesFn            func(ctx context.Context, ids []uuid.UUID) ([]database.DishForOrder, error)
	lockOrderNumberFn                func(ctx context.Context, day time.Time) error
	nextOrderNumberFn                func(ctx context.Context, day time.Time) (int32, error)
	createOrderFn                    func(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	createOrderItemFn                func(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
	createStatusHistoryFn            func(ctx context.Context, arg database.CreateStatusHistoryParams) (database.OrderStatusHistory, error)
	getOrderByTableAndNumberFn       func(ctx context.Context, tableID uuid.UUID, day time.Time, number int32) (database.Order, error)
	listOrderItemsFn                 func(ctx context.Context, orderID uuid.UUID) ([]database.OrderItemDetail, error)
	listOrderHistoryFn               func(ctx context.Context, orderID uuid.UUID) ([]database.OrderStatusHistory, error)
	getOrderForUpdateFn              func(ctx context.Context, id uuid.UUID) (database.Order, error)
	lockOrdersFn                     func(ctx context.Context, ids []uuid.UUID) ([]database.Order, error)
	updateOrderStatusFn              func(ctx context.Context, id uuid.UUID, from, to enum.OrderStatus) (database.Order, error)
	getOrderItemFn                   func(ctx context.Context, id uuid.UUID) (database.OrderItemRef, error)
	listOrderItemsByIDsFn            func(ctx context.Context, ids []uuid.UUID) ([]database.OrderItemRef, error)
	updateOrderItemStatusFn          func(ctx context.Context, id uuid.UUID, from, to enum.ItemStatus) (database.OrderItem, error)
	bulkUpdateOrderItemStatusFn      func(ctx context.Context, ids []uuid.UUID, from, to enum.ItemStatus) ([]database.OrderItem, error)
	listItemStatusesByOrderFn        func(ctx context.Context, orderID uuid.UUID) ([]enum.ItemStatus, error)
	getSectorByCodeFn                func(ctx context.Context, code string) (database.PrepSector, error)
	listSectorItemsFn                func(ctx context.Context, sectorID uuid.UUID) ([]database.SectorItemRow, error)
	getSectorStatsFn                 func(ctx context.Context, sectorID uuid.UUID, since time.Time) (database.SectorStatsRow, error)
	listOpenOrdersByTableForUpdateFn func(ctx context.Context, tableID uuid.UUID) ([]database.Order, error)
	getPaymentByOrderFn              func(ctx context.Context, orderID uuid.UUID) (database.Payment, error)
	createPaymentFn                  func(ctx context.Context, arg database.CreatePaymentParams) (database.Payment, error)
	completePaymentFn                func(ctx context.Context, id uuid.UUID, method enum.PaymentMethod, amount decimal.Decimal, paidAt time.Time) (database.Payment, error)
	closeOrderFn                     func(ctx context.Context, id, closedBy uuid.UUID, closedAt time.Time) (database.Order, error)

	history []database.CreateStatusHistoryParams
}

func (m *mockStore) GetSettings(ctx context.Context) (database.TenantSettings, error) {
	return m.getSettingsFn(ctx)
}
func (m *mockStore) GetTableByQR(ctx context.Context, qrCode string) (database.DiningTable, error) {
	return m.getTableByQRFn(ctx, qrCode)
}
func (m *mockStore) GetTableForUpdate(ctx context.Context, id uuid.UUID) (database.DiningTable, error) {
	return m.getTableForUpdateFn(ctx, id)
}
func (m *mockStore) UpdateTableStatus(ctx context.Context, id uuid.UUID, from, to enum.TableStatus) (database.DiningTable, error) {
	return m.updateTableStatusFn(ctx, id, from, to)
}
func (m *mockStore) ListAvailableDishes(ctx context.Context, ids []uuid.UUID) ([]database.DishForOrder, error) {
	return m.listAvailableDishesFn(ctx, ids)
}
func (m *mockStore) LockOrderNumber(ctx context.Context, day time.Time) error {
	return m.lockOrderNumberFn(ctx, day)
}
func (m *mockStore) NextOrderNumber(ctx context.Context, day time.Time) (int32, error) {
	return m.nextOrderNumberFn(ctx, day)
}
func (m *mockStore) CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
	return m.createOrderFn(ctx, arg)
}
func (m *mockStore) CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error) {
	return m.createOrderItemFn(ctx, arg)
}
func (m *mockStore) CreateStatusHistory(ctx context.Context, arg database.CreateStatusHistoryParams) (database.OrderStatusHistory, error) {
	if m.createStatusHistoryFn != nil {
		return m.createStatusHistoryFn(ctx, arg)
	}
	m.history = append(m.history, arg)
	return database.OrderStatusHistory{ID: uuid.New(), OrderID: arg.OrderID, ToStatus: arg.ToStatus}, nil
}
func (m *mockStore) GetOrderByTableAndNumber(ctx context.Context, tableID uuid.UUID, day time.Time, number int32) (database.Order, error) {
	return m.getOrderByTableAndNumberFn(ctx, tableID, day, number)
}
func (m *mockStore) ListOrderItems(ctx context.Context, orderID uuid.UUID) ([]database.OrderItemDetail, error) {
	return m.listOrderItemsFn(ctx, orderID)
}
func (m *mockStore) ListOrderHistory(ctx context.Context, orderID uuid.UUID) ([]database.OrderStatusHistory, error) {
	return m.listOrderHistoryFn(ctx, orderID)
}
func (m *mockStore) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (database.Order, error) {
	return m.getOrderForUpdateFn(ctx, id)
}
func (m *mockStore) LockOrders(ctx context.Context, ids []uuid.UUID) ([]database.Order, error) {
	return m.lockOrdersFn(ctx, ids)
}
func (m *mockStore) UpdateOrderStatus(ctx context.Context, id uuid.UUID, from, to enum.OrderStatus) (database.Order, error) {
	return m.updateOrderStatusFn(ctx, id, from, to)
}
func (m *mockStore) GetOrderItem(ctx context.Context, id uuid.UUID) (database.OrderItemRef, error) {
	return m.getOrderItemFn(ctx, id)
}
func (m *mockStore) ListOrderItemsByIDs(ctx context.Context, ids []uuid.UUID) ([]database.OrderItemRef, error) {
	return m.listOrderItemsByIDsFn(ctx, ids)
}
func (m *mockStore) UpdateOrderItemStatus(ctx context.Context, id uuid.UUID, from, to enum.ItemStatus) (database.OrderItem, error) {
	return m.updateOrderItemStatusFn(ctx, id, from, to)
}
func (m *mockStore) BulkUpdateOrderItemStatus(ctx context.Context, ids []uuid.UUID, from, to enum.ItemStatus) ([]database.OrderItem, error) {
	return m.bulkUpdateOrderItemStatusFn(ctx, ids, from, to)
}
func (m *mockStore) ListItemStatusesByOrder(ctx context.Context, orderID uuid.UUID) ([]enum.ItemStatus, error) {
	return m.listItemStatusesByOrderFn(ctx, orderID)
}
func (m *mockStore) GetSectorByCode(ctx context.Context, code string) (database.PrepSector, error) {
	return m.getSectorByCodeFn(ctx, code)
}
func (m *mockStore) ListSectorItems(ctx context.Context, sectorID uuid.UUID) ([]database.SectorItemRow, error) {
	return m.listSectorItemsFn(ctx, sectorID)
}
func (m *mockStore) GetSectorStats(ctx context.Context, sectorID uuid.UUID, since time.Time) (database.SectorStatsRow, error) {
	return m.getSectorStatsFn(ctx, sectorID, since)
}
func (m *mockStore) ListOpenOrdersByTableForUpdate(ctx context.Context, tableID uuid.UUID) ([]database.Order, error) {
	return m.listOpenOrdersByTableForUpdateFn(ctx, tableID)
}
func (m *mockStore) GetPaymentByOrder(ctx context.Context, orderID uuid.UUID) (database.Payment, error) {
	return m.getPaymentByOrderFn(ctx, orderID)
}
func (m *mockStore) CreatePayment(ctx context.Context, arg database.CreatePaymentParams) (database.Payment, error) {
	return m.createPaymentFn(ctx, arg)
}
func (m *mockStore) CompletePayment(ctx context.Context, id uuid.UUID, method enum.PaymentMethod, amount decimal.Decimal, paidAt time.Time) (database.Payment, error) {
	return m.completePaymentFn(ctx, id, method, amount, paidAt)
}
func (m *mockStore) CloseOrder(ctx context.Context, id, closedBy uuid.UUID, closedAt time.Time) (database.Order, error) {
	return m.closeOrderFn(ctx, id, closedBy, closedAt)
}

// mockPublisher records published events.
type mockPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (m *mockPublisher) Publish(ctx context.Context, tenantID uuid.UUID, e events.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return m.err
}

func (m *mockPublisher) types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.events))
	for i, e := range m.events {
		out[i] = e.Type
	}
	return out
}

// mockLimiter implements ratelimit.Limiter.
type mockLimiter struct {
	allow bool
	keys  []string
}

func (m *mockLimiter) Allow(ctx context.Context, key string) (bool, error) {
	m.keys = append(m.keys, key)
	return m.allow, nil
}

// --- Helpers ---

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func pgErr(code, constraint string) error {
	return &pgconn.PgError{Code: code, ConstraintName: constraint}
}

// requireKind asserts that err is an *apperr.Error of the given kind.
func requireKind(t *testing.T, err error, kind apperr.Kind) *apperr.Error {
	t.Helper()
	require.Error(t, err)
	var appErr *apperr.Error
	require.True(t, errors.As(err, &appErr), "expected *apperr.Error, got %T: %v", err, err)
	require.Equal(t, kind, appErr.Kind, "message: %s", appErr.Message)
	return appErr
}
