package handler

import (
	"time"

	"github.com/google/uuid"
	"github.com/mesaqr/api/internal/database"
	"github.com/mesaqr/api/internal/service"
	"github.com/shopspring/decimal"
)

// Money is rendered as a fixed two-decimal string so clients never parse
// amounts as floats.
func money(d decimal.Decimal) string { return d.StringFixed(2) }

type orderResponse struct {
	ID            uuid.UUID  `json:"id"`
	TableID       uuid.UUID  `json:"table_id"`
	OrderNumber   int32      `json:"order_number"`
	BusinessDate  string     `json:"business_date"`
	Status        string     `json:"status"`
	Subtotal      string     `json:"subtotal"`
	VATAmount     string     `json:"vat_amount"`
	TipAmount     string     `json:"tip_amount"`
	Total         string     `json:"total"`
	CustomerNotes *string    `json:"customer_notes"`
	ClosedByID    *uuid.UUID `json:"closed_by_id"`
	ClosedAt      *time.Time `json:"closed_at"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func toOrderResponse(o database.Order) orderResponse {
	return orderResponse{
		ID:            o.ID,
		TableID:       o.TableID,
		OrderNumber:   o.OrderNumber,
		BusinessDate:  o.BusinessDate.Format(time.DateOnly),
		Status:        string(o.Status),
		Subtotal:      money(o.Subtotal),
		VATAmount:     money(o.VATAmount),
		TipAmount:     money(o.TipAmount),
		Total:         money(o.Total),
		CustomerNotes: o.CustomerNotes,
		ClosedByID:    o.ClosedByID,
		ClosedAt:      o.ClosedAt,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
}

type orderItemResponse struct {
	ID           uuid.UUID `json:"id"`
	OrderID      uuid.UUID `json:"order_id"`
	DishID       uuid.UUID `json:"dish_id"`
	DishName     string    `json:"dish_name,omitempty"`
	PrepSectorID uuid.UUID `json:"prep_sector_id"`
	Sector       string    `json:"sector,omitempty"`
	Quantity     int32     `json:"quantity"`
	UnitPrice    string    `json:"unit_price"`
	Notes        *string   `json:"notes"`
	Allergens    []string  `json:"allergens,omitempty"`
	Status       string    `json:"status"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func toOrderItemResponse(it database.OrderItem) orderItemResponse {
	return orderItemResponse{
		ID:           it.ID,
		OrderID:      it.OrderID,
		DishID:       it.DishID,
		PrepSectorID: it.PrepSectorID,
		Quantity:     it.Quantity,
		UnitPrice:    money(it.UnitPrice),
		Notes:        it.Notes,
		Status:       string(it.Status),
		UpdatedAt:    it.UpdatedAt,
	}
}

func toOrderItemDetailResponse(d database.OrderItemDetail) orderItemResponse {
	resp := toOrderItemResponse(d.OrderItem)
	resp.DishName = d.DishName
	resp.Sector = d.SectorCode
	resp.Allergens = d.Allergens
	return resp
}

type tableResponse struct {
	ID       uuid.UUID `json:"id"`
	Number   int32     `json:"number"`
	Name     *string   `json:"name"`
	Capacity int32     `json:"capacity"`
	Status   string    `json:"status"`
}

func toTableResponse(t database.DiningTable) tableResponse {
	return tableResponse{
		ID:       t.ID,
		Number:   t.Number,
		Name:     t.Name,
		Capacity: t.Capacity,
		Status:   string(t.Status),
	}
}

type paymentResponse struct {
	ID      uuid.UUID  `json:"id"`
	OrderID uuid.UUID  `json:"order_id"`
	Method  string     `json:"method"`
	Status  string     `json:"status"`
	Amount  string     `json:"amount"`
	PaidAt  *time.Time `json:"paid_at"`
}

func toPaymentResponse(p database.Payment) paymentResponse {
	return paymentResponse{
		ID:      p.ID,
		OrderID: p.OrderID,
		Method:  string(p.Method),
		Status:  string(p.Status),
		Amount:  money(p.Amount),
		PaidAt:  p.PaidAt,
	}
}

// Public routes are anonymous: their DTOs leave out which staff member
// changed or closed an order.

type publicOrderResponse struct {
	ID            uuid.UUID  `json:"id"`
	OrderNumber   int32      `json:"order_number"`
	BusinessDate  string     `json:"business_date"`
	Status        string     `json:"status"`
	Subtotal      string     `json:"subtotal"`
	VATAmount     string     `json:"vat_amount"`
	TipAmount     string     `json:"tip_amount"`
	Total         string     `json:"total"`
	CustomerNotes *string    `json:"customer_notes"`
	ClosedAt      *time.Time `json:"closed_at"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func toPublicOrderResponse(o database.Order) publicOrderResponse {
	return publicOrderResponse{
		ID:            o.ID,
		OrderNumber:   o.OrderNumber,
		BusinessDate:  o.BusinessDate.Format(time.DateOnly),
		Status:        string(o.Status),
		Subtotal:      money(o.Subtotal),
		VATAmount:     money(o.VATAmount),
		TipAmount:     money(o.TipAmount),
		Total:         money(o.Total),
		CustomerNotes: o.CustomerNotes,
		ClosedAt:      o.ClosedAt,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
}

type publicHistoryResponse struct {
	OrderItemID *uuid.UUID `json:"order_item_id"`
	FromStatus  *string    `json:"from_status"`
	ToStatus    string     `json:"to_status"`
	Note        *string    `json:"note"`
	CreatedAt   time.Time  `json:"created_at"`
}

type publicOrderDetailResponse struct {
	publicOrderResponse
	Table   tableResponse           `json:"table"`
	Items   []orderItemResponse     `json:"items"`
	History []publicHistoryResponse `json:"history"`
}

func toPublicOrderDetailResponse(d *service.OrderDetail) publicOrderDetailResponse {
	resp := publicOrderDetailResponse{
		publicOrderResponse: toPublicOrderResponse(d.Order),
		Table:               toTableResponse(d.Table),
		Items:               make([]orderItemResponse, len(d.Items)),
		History:             make([]publicHistoryResponse, len(d.History)),
	}
	for i, it := range d.Items {
		resp.Items[i] = toOrderItemDetailResponse(it)
	}
	for i, h := range d.History {
		resp.History[i] = publicHistoryResponse{
			OrderItemID: h.OrderItemID,
			FromStatus:  h.FromStatus,
			ToStatus:    h.ToStatus,
			Note:        h.Note,
			CreatedAt:   h.CreatedAt,
		}
	}
	return resp
}
