package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/mesaqr/api/internal/apperr"
	"github.com/mesaqr/api/internal/database"
	"github.com/mesaqr/api/internal/enum"
	"github.com/mesaqr/api/internal/events"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type orderFixture struct {
	svc     *OrderService
	pool    *mockPool
	store   *mockStore
	limiter *mockLimiter
	pub     *mockPublisher

	tenant   database.Tenant
	table    database.DiningTable
	paella   database.DishForOrder
	sangria  database.DishForOrder
	kitchen  uuid.UUID
	bar      uuid.UUID
	occupied bool
}

// newOrderFixture wires an OrderService to mocks describing one tenant with
// one AVAILABLE table and two dishes: paella (15.00, kitchen) and sangria
// (10.00, bar). Tests override the store functions they care about.
func newOrderFixture(t *testing.T) *orderFixture {
	t.Helper()
	f := &orderFixture{
		pool:    newMockPool(),
		limiter: &mockLimiter{allow: true},
		pub:     &mockPublisher{},
		kitchen: uuid.New(),
		bar:     uuid.New(),
	}
	f.tenant = database.Tenant{ID: uuid.New(), Slug: "casa-pepe", Name: "Casa Pepe", IsActive: true}
	f.table = database.DiningTable{ID: uuid.New(), TenantID: f.tenant.ID, Number: 4, QRCode: "qr-4", Status: enum.TableStatusAvailable, IsActive: true}
	f.paella = database.DishForOrder{ID: uuid.New(), Name: "Paella", Price: dec("15.00"), PrepSectorID: f.kitchen}
	f.sangria = database.DishForOrder{ID: uuid.New(), Name: "Sangria", Price: dec("10.00"), PrepSectorID: f.bar}

	dishes := map[uuid.UUID]database.DishForOrder{f.paella.ID: f.paella, f.sangria.ID: f.sangria}

	f.store = &mockStore{
		getSettingsFn: func(ctx context.Context) (database.TenantSettings, error) {
			return database.TenantSettings{TenantID: f.tenant.ID, VATRate: dec("10"), Timezone: "Europe/Madrid", Currency: "EUR"}, nil
		},
		getTableByQRFn: func(ctx context.Context, qr string) (database.DiningTable, error) {
			if qr == f.table.QRCode {
				return f.table, nil
			}
			return database.DiningTable{}, pgx.ErrNoRows
		},
		listAvailableDishesFn: func(ctx context.Context, ids []uuid.UUID) ([]database.DishForOrder, error) {
			var out []database.DishForOrder
			for _, id := range ids {
				if d, ok := dishes[id]; ok {
					out = append(out, d)
				}
			}
			return out, nil
		},
		lockOrderNumberFn: func(ctx context.Context, day time.Time) error { return nil },
		nextOrderNumberFn: func(ctx context.Context, day time.Time) (int32, error) { return 1, nil },
		createOrderFn: func(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
			return database.Order{
				ID:            uuid.New(),
				TenantID:      f.tenant.ID,
				TableID:       arg.TableID,
				OrderNumber:   arg.OrderNumber,
				BusinessDate:  arg.BusinessDate,
				Status:        enum.OrderStatusPending,
				Subtotal:      arg.Subtotal,
				VATAmount:     arg.VATAmount,
				TipAmount:     arg.TipAmount,
				Total:         arg.Total,
				CustomerNotes: arg.CustomerNotes,
			}, nil
		},
		createOrderItemFn: func(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error) {
			return database.OrderItem{
				ID:           uuid.New(),
				OrderID:      arg.OrderID,
				DishID:       arg.DishID,
				PrepSectorID: arg.PrepSectorID,
				Quantity:     arg.Quantity,
				UnitPrice:    arg.UnitPrice,
				Notes:        arg.Notes,
				Status:       enum.ItemStatusPending,
			}, nil
		},
		updateTableStatusFn: func(ctx context.Context, id uuid.UUID, from, to enum.TableStatus) (database.DiningTable, error) {
			if from != f.table.Status {
				return database.DiningTable{}, pgx.ErrNoRows
			}
			f.occupied = true
			t := f.table
			t.Status = to
			return t, nil
		},
	}

	tenants := &mockTenantStore{tenants: map[string]database.Tenant{f.tenant.Slug: f.tenant}}
	newStore := func(db database.DBTX, tenantID uuid.UUID) OrderStore {
		if tenantID != f.tenant.ID {
			t.Fatalf("store scoped to unexpected tenant %s", tenantID)
		}
		return f.store
	}
	f.svc = NewOrderService(f.pool, tenants, newStore, f.limiter, f.pub,
		OrderDefaults{VATRate: dec("10"), Timezone: "Europe/Madrid"}, zap.NewNop())
	f.svc.now = func() time.Time { return time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC) }
	return f
}

func (f *orderFixture) req(items ...CreateOrderItemRequest) CreateOrderRequest {
	return CreateOrderRequest{TenantSlug: f.tenant.Slug, QRCode: f.table.QRCode, Items: items}
}

// =====================
// Resolution and validation
// =====================

func TestCreateOrder_UnknownTenant(t *testing.T) {
	f := newOrderFixture(t)
	req := f.req(CreateOrderItemRequest{DishID: f.paella.ID, Quantity: 1})
	req.TenantSlug = "nope"

	_, err := f.svc.CreateOrder(context.Background(), req)
	requireKind(t, err, apperr.KindNotFound)
	assert.Zero(t, f.pool.begun)
}

func TestCreateOrder_InactiveTenant(t *testing.T) {
	f := newOrderFixture(t)
	f.tenant.IsActive = false
	f.svc.tenants = &mockTenantStore{tenants: map[string]database.Tenant{f.tenant.Slug: f.tenant}}

	_, err := f.svc.CreateOrder(context.Background(), f.req(CreateOrderItemRequest{DishID: f.paella.ID, Quantity: 1}))
	requireKind(t, err, apperr.KindNotFound)
}

func TestCreateOrder_UnknownTable(t *testing.T) {
	f := newOrderFixture(t)
	req := f.req(CreateOrderItemRequest{DishID: f.paella.ID, Quantity: 1})
	req.QRCode = "other"

	_, err := f.svc.CreateOrder(context.Background(), req)
	requireKind(t, err, apperr.KindNotFound)
}

func TestCreateOrder_InactiveTable(t *testing.T) {
	f := newOrderFixture(t)
	f.table.IsActive = false

	_, err := f.svc.CreateOrder(context.Background(), f.req(CreateOrderItemRequest{DishID: f.paella.ID, Quantity: 1}))
	requireKind(t, err, apperr.KindNotFound)
}

func TestCreateOrder_Validation(t *testing.T) {
	long := make([]byte, maxItemNotesLen+1)
	for i := range long {
		long[i] = 'x'
	}
	tooMuchTip := dec("100.01")
	negativeTip := dec("-1")

	tests := []struct {
		name   string
		mutate func(f *orderFixture, r *CreateOrderRequest)
	}{
		{"empty items", func(f *orderFixture, r *CreateOrderRequest) { r.Items = nil }},
		{"zero quantity", func(f *orderFixture, r *CreateOrderRequest) { r.Items[0].Quantity = 0 }},
		{"negative quantity", func(f *orderFixture, r *CreateOrderRequest) { r.Items[0].Quantity = -2 }},
		{"missing dish", func(f *orderFixture, r *CreateOrderRequest) { r.Items[0].DishID = uuid.Nil }},
		{"item notes too long", func(f *orderFixture, r *CreateOrderRequest) { r.Items[0].Notes = string(long) }},
		{"tip above 100", func(f *orderFixture, r *CreateOrderRequest) { r.TipPercentage = &tooMuchTip }},
		{"negative tip", func(f *orderFixture, r *CreateOrderRequest) { r.TipPercentage = &negativeTip }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newOrderFixture(t)
			req := f.req(CreateOrderItemRequest{DishID: f.paella.ID, Quantity: 1})
			tt.mutate(f, &req)

			_, err := f.svc.CreateOrder(context.Background(), req)
			requireKind(t, err, apperr.KindBadRequest)
			assert.Zero(t, f.pool.begun, "no transaction should start")
		})
	}
}

func TestCreateOrder_EmptyItemsMessage(t *testing.T) {
	f := newOrderFixture(t)
	_, err := f.svc.CreateOrder(context.Background(), f.req())
	appErr := requireKind(t, err, apperr.KindBadRequest)
	assert.Equal(t, "at least one item required", appErr.Message)
}

func TestCreateOrder_RateLimited(t *testing.T) {
	f := newOrderFixture(t)
	f.limiter.allow = false

	_, err := f.svc.CreateOrder(context.Background(), f.req(CreateOrderItemRequest{DishID: f.paella.ID, Quantity: 1}))
	requireKind(t, err, apperr.KindTooManyRequests)
	assert.Zero(t, f.pool.begun)
	require.Len(t, f.limiter.keys, 1)
	assert.Equal(t, "order:"+f.tenant.ID.String()+":"+f.table.ID.String(), f.limiter.keys[0])
}

func TestCreateOrder_UnavailableDish(t *testing.T) {
	f := newOrderFixture(t)
	soldOut := uuid.New()
	f.store.createOrderFn = func(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
		t.Fatal("order must not be inserted")
		return database.Order{}, nil
	}

	_, err := f.svc.CreateOrder(context.Background(), f.req(
		CreateOrderItemRequest{DishID: f.paella.ID, Quantity: 1},
		CreateOrderItemRequest{DishID: soldOut, Quantity: 1},
	))
	appErr := requireKind(t, err, apperr.KindBadRequest)
	assert.Equal(t, []string{soldOut.String()}, appErr.Details["dish_ids"])
	assert.Zero(t, f.pool.tx.committed)
	assert.Empty(t, f.store.history)
	assert.False(t, f.occupied)
	assert.Empty(t, f.pub.events)
}

// =====================
// Happy paths
// =====================

func TestCreateOrder_PricesAndPersists(t *testing.T) {
	f := newOrderFixture(t)
	tip := dec("10")
	req := f.req(
		CreateOrderItemRequest{DishID: f.paella.ID, Quantity: 2, Notes: "no shellfish"},
		CreateOrderItemRequest{DishID: f.sangria.ID, Quantity: 1},
	)
	req.TipPercentage = &tip
	req.CustomerNotes = "birthday"

	var created database.CreateOrderParams
	base := f.store.createOrderFn
	f.store.createOrderFn = func(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
		created = arg
		return base(ctx, arg)
	}
	var items []database.CreateOrderItemParams
	baseItem := f.store.createOrderItemFn
	f.store.createOrderItemFn = func(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error) {
		items = append(items, arg)
		return baseItem(ctx, arg)
	}

	res, err := f.svc.CreateOrder(context.Background(), req)
	require.NoError(t, err)

	assert.True(t, created.Subtotal.Equal(dec("40.00")), "subtotal %s", created.Subtotal)
	assert.True(t, created.VATAmount.Equal(dec("4.00")), "vat %s", created.VATAmount)
	assert.True(t, created.TipAmount.Equal(dec("4.00")), "tip %s", created.TipAmount)
	assert.True(t, created.Total.Equal(dec("48.00")), "total %s", created.Total)
	assert.Equal(t, int32(1), created.OrderNumber)
	assert.Equal(t, "birthday", *created.CustomerNotes)

	require.Len(t, items, 2)
	assert.Equal(t, f.kitchen, items[0].PrepSectorID)
	assert.True(t, items[0].UnitPrice.Equal(dec("15.00")))
	assert.Equal(t, "no shellfish", *items[0].Notes)
	assert.Equal(t, f.bar, items[1].PrepSectorID)
	assert.Nil(t, items[1].Notes)

	require.Len(t, f.store.history, 1)
	assert.Nil(t, f.store.history[0].FromStatus)
	assert.Equal(t, string(enum.OrderStatusPending), f.store.history[0].ToStatus)
	assert.Nil(t, f.store.history[0].ChangedByID)

	assert.True(t, f.occupied, "available table should become occupied")
	assert.Equal(t, 1, f.pool.tx.committed)
	assert.Equal(t, enum.OrderStatusPending, res.Order.Status)
	assert.Len(t, res.Items, 2)
	assert.Equal(t, []string{events.TypeOrderCreated}, f.pub.types())
}

func TestCreateOrder_DefaultsWithoutSettings(t *testing.T) {
	f := newOrderFixture(t)
	f.svc.defaults.VATRate = dec("21")
	f.store.getSettingsFn = func(ctx context.Context) (database.TenantSettings, error) {
		return database.TenantSettings{}, pgx.ErrNoRows
	}

	res, err := f.svc.CreateOrder(context.Background(), f.req(CreateOrderItemRequest{DishID: f.sangria.ID, Quantity: 1}))
	require.NoError(t, err)
	assert.True(t, res.Order.VATAmount.Equal(dec("2.10")), "vat %s", res.Order.VATAmount)
	assert.True(t, res.Order.Total.Equal(dec("12.10")), "total %s", res.Order.Total)
}

func TestCreateOrder_BusinessDateIsTenantLocal(t *testing.T) {
	f := newOrderFixture(t)
	// 23:30 UTC on March 14th is already March 15th in Madrid.
	f.svc.now = func() time.Time { return time.Date(2026, 3, 14, 23, 30, 0, 0, time.UTC) }

	var lockedDay time.Time
	f.store.lockOrderNumberFn = func(ctx context.Context, day time.Time) error {
		lockedDay = day
		return nil
	}

	res, err := f.svc.CreateOrder(context.Background(), f.req(CreateOrderItemRequest{DishID: f.paella.ID, Quantity: 1}))
	require.NoError(t, err)

	want := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, want, lockedDay)
	assert.Equal(t, want, res.Order.BusinessDate)
}

func TestCreateOrder_SubsequentOrderNumber(t *testing.T) {
	f := newOrderFixture(t)
	f.store.nextOrderNumberFn = func(ctx context.Context, day time.Time) (int32, error) { return 42, nil }

	res, err := f.svc.CreateOrder(context.Background(), f.req(CreateOrderItemRequest{DishID: f.paella.ID, Quantity: 1}))
	require.NoError(t, err)
	assert.Equal(t, int32(42), res.Order.OrderNumber)
}

func TestCreateOrder_OccupiedTableKeepsStatus(t *testing.T) {
	f := newOrderFixture(t)
	f.table.Status = enum.TableStatusOccupied

	_, err := f.svc.CreateOrder(context.Background(), f.req(CreateOrderItemRequest{DishID: f.paella.ID, Quantity: 1}))
	require.NoError(t, err)
	assert.False(t, f.occupied)
	assert.Equal(t, 1, f.pool.tx.committed)
}

func TestCreateOrder_DuplicateDishLines(t *testing.T) {
	f := newOrderFixture(t)
	var asked []uuid.UUID
	f.store.listAvailableDishesFn = func(ctx context.Context, ids []uuid.UUID) ([]database.DishForOrder, error) {
		asked = ids
		return []database.DishForOrder{f.paella}, nil
	}

	res, err := f.svc.CreateOrder(context.Background(), f.req(
		CreateOrderItemRequest{DishID: f.paella.ID, Quantity: 1},
		CreateOrderItemRequest{DishID: f.paella.ID, Quantity: 2, Notes: "extra lemon"},
	))
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{f.paella.ID}, asked)
	assert.Len(t, res.Items, 2)
	assert.True(t, res.Order.Subtotal.Equal(dec("45.00")))
}

// =====================
// Retry behavior
// =====================

func TestCreateOrder_RetryOnUniqueViolation(t *testing.T) {
	f := newOrderFixture(t)
	calls := 0
	base := f.store.createOrderFn
	f.store.createOrderFn = func(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
		calls++
		if calls == 1 {
			return database.Order{}, pgErr("23505", database.ConstraintOrderNumber)
		}
		return base(ctx, arg)
	}

	_, err := f.svc.CreateOrder(context.Background(), f.req(CreateOrderItemRequest{DishID: f.paella.ID, Quantity: 1}))
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 2, f.pool.begun)
	assert.Equal(t, 1, f.pool.tx.committed)
}

func TestCreateOrder_RetryOnSerializationFailure(t *testing.T) {
	f := newOrderFixture(t)
	calls := 0
	f.store.lockOrderNumberFn = func(ctx context.Context, day time.Time) error {
		calls++
		if calls == 1 {
			return pgErr("40001", "")
		}
		return nil
	}

	_, err := f.svc.CreateOrder(context.Background(), f.req(CreateOrderItemRequest{DishID: f.paella.ID, Quantity: 1}))
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestCreateOrder_RetryExhausted(t *testing.T) {
	f := newOrderFixture(t)
	f.store.createOrderFn = func(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
		return database.Order{}, pgErr("23505", database.ConstraintOrderNumber)
	}

	_, err := f.svc.CreateOrder(context.Background(), f.req(CreateOrderItemRequest{DishID: f.paella.ID, Quantity: 1}))
	requireKind(t, err, apperr.KindConflict)
	assert.Equal(t, maxTxAttempts, f.pool.begun)
	assert.Zero(t, f.pool.tx.committed)
	assert.Empty(t, f.pub.events)
}

func TestCreateOrder_OtherUniqueViolationNotRetried(t *testing.T) {
	f := newOrderFixture(t)
	f.store.createOrderFn = func(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
		return database.Order{}, pgErr("23505", "some_other_key")
	}

	_, err := f.svc.CreateOrder(context.Background(), f.req(CreateOrderItemRequest{DishID: f.paella.ID, Quantity: 1}))
	require.Error(t, err)
	_, isApp := apperr.KindOf(err)
	assert.False(t, isApp)
	assert.Equal(t, 1, f.pool.begun)
}

func TestCreateOrder_PublishFailureDoesNotFail(t *testing.T) {
	f := newOrderFixture(t)
	f.pub.err = errors.New("redis down")

	_, err := f.svc.CreateOrder(context.Background(), f.req(CreateOrderItemRequest{DishID: f.paella.ID, Quantity: 1}))
	require.NoError(t, err)
	assert.Equal(t, 1, f.pool.tx.committed)
}

// =====================
// Reads
// =====================

func TestValidateTable(t *testing.T) {
	f := newOrderFixture(t)

	info, err := f.svc.ValidateTable(context.Background(), f.tenant.Slug, f.table.QRCode)
	require.NoError(t, err)
	assert.Equal(t, f.tenant.ID, info.Tenant.ID)
	assert.Equal(t, f.table.ID, info.Table.ID)
	assert.True(t, info.Settings.VATRate.Equal(decimal.NewFromInt(10)))
}

func TestGetOrderStatus(t *testing.T) {
	f := newOrderFixture(t)
	orderID := uuid.New()
	f.store.getOrderByTableAndNumberFn = func(ctx context.Context, tableID uuid.UUID, day time.Time, number int32) (database.Order, error) {
		assert.Equal(t, f.table.ID, tableID)
		assert.Equal(t, time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC), day)
		if number != 7 {
			return database.Order{}, pgx.ErrNoRows
		}
		return database.Order{ID: orderID, OrderNumber: 7, Status: enum.OrderStatusInProgress}, nil
	}
	f.store.listOrderItemsFn = func(ctx context.Context, id uuid.UUID) ([]database.OrderItemDetail, error) {
		return []database.OrderItemDetail{{OrderItem: database.OrderItem{ID: uuid.New(), OrderID: id}, DishName: "Paella"}}, nil
	}
	f.store.listOrderHistoryFn = func(ctx context.Context, id uuid.UUID) ([]database.OrderStatusHistory, error) {
		return []database.OrderStatusHistory{{OrderID: id, ToStatus: "PENDING"}}, nil
	}

	detail, err := f.svc.GetOrderStatus(context.Background(), f.tenant.Slug, f.table.QRCode, 7)
	require.NoError(t, err)
	assert.Equal(t, orderID, detail.Order.ID)
	assert.Len(t, detail.Items, 1)
	assert.Len(t, detail.History, 1)

	_, err = f.svc.GetOrderStatus(context.Background(), f.tenant.Slug, f.table.QRCode, 8)
	requireKind(t, err, apperr.KindNotFound)

	_, err = f.svc.GetOrderStatus(context.Background(), f.tenant.Slug, f.table.QRCode, 0)
	requireKind(t, err, apperr.KindBadRequest)
}
