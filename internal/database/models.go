package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/mesaqr/api/internal/enum"
	"github.com/shopspring/decimal"
)

type Tenant struct {
	ID        uuid.UUID
	Slug      string
	Name      string
	IsActive  bool
	CreatedAt time.Time
}

type TenantSettings struct {
	TenantID uuid.UUID
	VATRate  decimal.Decimal
	Timezone string
	Currency string
}

type User struct {
	ID             uuid.UUID
	TenantID       uuid.UUID
	Email          string
	HashedPassword string
	FullName       string
	Role           enum.Role
	IsActive       bool
}

type PrepSector struct {
	ID       uuid.UUID
	TenantID uuid.UUID
	Code     string
	Name     string
	IsActive bool
}

// DishForOrder is an orderable dish together with the sector its category
// routes to.
type DishForOrder struct {
	ID           uuid.UUID
	Name         string
	Price        decimal.Decimal
	Allergens    []string
	PrepSectorID uuid.UUID
}

type DiningTable struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	Number    int32
	Name      *string
	QRCode    string
	Capacity  int32
	Status    enum.TableStatus
	IsActive  bool
	UpdatedAt time.Time
}

type Order struct {
	ID            uuid.UUID
	TenantID      uuid.UUID
	TableID       uuid.UUID
	OrderNumber   int32
	BusinessDate  time.Time
	Status        enum.OrderStatus
	Subtotal      decimal.Decimal
	VATAmount     decimal.Decimal
	TipAmount     decimal.Decimal
	Total         decimal.Decimal
	CustomerNotes *string
	ClosedByID    *uuid.UUID
	ClosedAt      *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type OrderItem struct {
	ID           uuid.UUID
	OrderID      uuid.UUID
	DishID       uuid.UUID
	PrepSectorID uuid.UUID
	Quantity     int32
	UnitPrice    decimal.Decimal
	Notes        *string
	Status       enum.ItemStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// OrderItemRef is an item together with the code of the sector that owns it.
type OrderItemRef struct {
	OrderItem
	SectorCode string
}

// OrderItemDetail is an item joined with its dish for display.
type OrderItemDetail struct {
	OrderItem
	DishName   string
	Allergens  []string
	SectorCode string
}

type OrderStatusHistory struct {
	ID          uuid.UUID
	OrderID     uuid.UUID
	OrderItemID *uuid.UUID
	FromStatus  *string
	ToStatus    string
	ChangedByID *uuid.UUID
	Note        *string
	CreatedAt   time.Time
}

type Payment struct {
	ID               uuid.UUID
	OrderID          uuid.UUID
	Method           enum.PaymentMethod
	Status           enum.PaymentStatus
	Amount           decimal.Decimal
	GatewayReference *string
	PaidAt           *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// SectorItemRow is one active item as shown on a preparation console.
type SectorItemRow struct {
	OrderID       uuid.UUID
	OrderNumber   int32
	CustomerNotes *string
	OrderCreated  time.Time
	TableNumber   int32
	TableName     *string
	ItemID        uuid.UUID
	ItemStatus    enum.ItemStatus
	Quantity      int32
	Notes         *string
	DishName      string
	Allergens     []string
}

type SectorStatsRow struct {
	ActiveOrders     int64
	ServedItems      int64
	AvgServedSeconds *float64
}
