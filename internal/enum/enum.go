package enum

// ── Group A: State machines (CHECK constrained in DB) ──

// OrderStatus is the aggregate status of an order.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusConfirmed  OrderStatus = "CONFIRMED"
	OrderStatusInProgress OrderStatus = "IN_PROGRESS"
	OrderStatusReady      OrderStatus = "READY"
	OrderStatusDelivered  OrderStatus = "DELIVERED"
	OrderStatusPaid       OrderStatus = "PAID"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
)

// Valid reports whether s is a known order status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusInProgress,
		OrderStatusReady, OrderStatusDelivered, OrderStatusPaid, OrderStatusCancelled:
		return true
	}
	return false
}

// Closed reports whether the order no longer takes part in preparation.
func (s OrderStatus) Closed() bool {
	return s == OrderStatusPaid || s == OrderStatusCancelled
}

// ItemStatus is the preparation status of a single order item.
type ItemStatus string

const (
	ItemStatusPending    ItemStatus = "PENDING"
	ItemStatusInProgress ItemStatus = "IN_PROGRESS"
	ItemStatusReady      ItemStatus = "READY"
	ItemStatusServed     ItemStatus = "SERVED"
	ItemStatusCancelled  ItemStatus = "CANCELLED"
)

func (s ItemStatus) Valid() bool {
	switch s {
	case ItemStatusPending, ItemStatusInProgress, ItemStatusReady,
		ItemStatusServed, ItemStatusCancelled:
		return true
	}
	return false
}

// ActiveItemStatuses are the statuses shown on preparation consoles.
var ActiveItemStatuses = []ItemStatus{ItemStatusPending, ItemStatusInProgress, ItemStatusReady}

type TableStatus string

const (
	TableStatusAvailable TableStatus = "AVAILABLE"
	TableStatusOccupied  TableStatus = "OCCUPIED"
	TableStatusReserved  TableStatus = "RESERVED"
	TableStatusCleaning  TableStatus = "CLEANING"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
	PaymentStatusFailed    PaymentStatus = "FAILED"
)

// ── Group C: Borderline (CHECK constrained in DB) ──

type Role string

const (
	RoleSuperAdmin Role = "SUPER_ADMIN"
	RoleAdmin      Role = "ADMIN"
	RoleWaiter     Role = "WAITER"
	RoleCook       Role = "COOK"
	RoleBartender  Role = "BARTENDER"
)

func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleAdmin, RoleWaiter, RoleCook, RoleBartender:
		return true
	}
	return false
}

// IsAdmin reports whether the role has tenant-wide administrative rights.
func (r Role) IsAdmin() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

type PaymentMethod string

const (
	PaymentMethodCash   PaymentMethod = "CASH"
	PaymentMethodCard   PaymentMethod = "CARD"
	PaymentMethodBizum  PaymentMethod = "BIZUM"
	PaymentMethodRedsys PaymentMethod = "REDSYS"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodCard, PaymentMethodBizum, PaymentMethodRedsys:
		return true
	}
	return false
}

// ── Group B: Configurable labels (no DB constraint) ──

const (
	SectorKitchen = "KITCHEN"
	SectorBar     = "BAR"
)
