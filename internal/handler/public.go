package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/mesaqr/api/internal/service"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PublicOrderServicer defines the service methods behind the customer QR flow.
// Satisfied by *service.OrderService.
type PublicOrderServicer interface {
	ValidateTable(ctx context.Context, slug, qrCode string) (*service.TableInfo, error)
	CreateOrder(ctx context.Context, req service.CreateOrderRequest) (*service.CreateOrderResult, error)
	GetOrderStatus(ctx context.Context, slug, qrCode string, number int32) (*service.OrderDetail, error)
}

// PublicHandler serves unauthenticated endpoints reached by scanning a
// table's QR code.
type PublicHandler struct {
	svc    PublicOrderServicer
	logger *zap.Logger
}

func NewPublicHandler(svc PublicOrderServicer, logger *zap.Logger) *PublicHandler {
	return &PublicHandler{svc: svc, logger: logger}
}

// RegisterRoutes expects to be mounted at /public/{slug}/tables/{qr}.
func (h *PublicHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.ValidateTable)
	r.Post("/orders", h.CreateOrder)
	r.Get("/orders/{number}", h.GetOrderStatus)
}

// --- Request / Response types ---

type createOrderRequest struct {
	Items         []createOrderItemRequest `json:"items"`
	CustomerNotes string                   `json:"customer_notes"`
	TipPercentage *decimal.Decimal         `json:"tip_percentage"`
}

type createOrderItemRequest struct {
	DishID   string `json:"dish_id"`
	Quantity int32  `json:"quantity"`
	Notes    string `json:"notes"`
}

type createOrderResponse struct {
	OrderID     uuid.UUID           `json:"order_id"`
	OrderNumber int32               `json:"order_number"`
	Status      string              `json:"status"`
	Total       string              `json:"total"`
	Order       publicOrderResponse `json:"order"`
	Items       []orderItemResponse `json:"items"`
}

type tableInfoResponse struct {
	Tenant struct {
		ID   uuid.UUID `json:"id"`
		Slug string    `json:"slug"`
		Name string    `json:"name"`
	} `json:"tenant"`
	Table    tableResponse `json:"table"`
	VATRate  string        `json:"vat_rate"`
	Currency string        `json:"currency"`
}

// --- Handlers ---

func (h *PublicHandler) ValidateTable(w http.ResponseWriter, r *http.Request) {
	info, err := h.svc.ValidateTable(r.Context(), chi.URLParam(r, "slug"), chi.URLParam(r, "qr"))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	var resp tableInfoResponse
	resp.Tenant.ID = info.Tenant.ID
	resp.Tenant.Slug = info.Tenant.Slug
	resp.Tenant.Name = info.Tenant.Name
	resp.Table = toTableResponse(info.Table)
	resp.VATRate = info.Settings.VATRate.String()
	resp.Currency = info.Settings.Currency
	writeJSON(w, http.StatusOK, resp)
}

func (h *PublicHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	svcReq := service.CreateOrderRequest{
		TenantSlug:    chi.URLParam(r, "slug"),
		QRCode:        chi.URLParam(r, "qr"),
		CustomerNotes: req.CustomerNotes,
		TipPercentage: req.TipPercentage,
		Items:         make([]service.CreateOrderItemRequest, len(req.Items)),
	}
	for i, item := range req.Items {
		dishID, err := uuid.Parse(item.DishID)
		if err != nil {
			badRequest(w, "item "+strconv.Itoa(i+1)+": invalid dish_id")
			return
		}
		svcReq.Items[i] = service.CreateOrderItemRequest{DishID: dishID, Quantity: item.Quantity, Notes: item.Notes}
	}

	result, err := h.svc.CreateOrder(r.Context(), svcReq)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	resp := createOrderResponse{
		OrderID:     result.Order.ID,
		OrderNumber: result.Order.OrderNumber,
		Status:      string(result.Order.Status),
		Total:       money(result.Order.Total),
		Order:       toPublicOrderResponse(result.Order),
		Items:       make([]orderItemResponse, len(result.Items)),
	}
	for i, it := range result.Items {
		resp.Items[i] = toOrderItemResponse(it)
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *PublicHandler) GetOrderStatus(w http.ResponseWriter, r *http.Request) {
	number, err := strconv.ParseInt(chi.URLParam(r, "number"), 10, 32)
	if err != nil {
		badRequest(w, "invalid order number")
		return
	}

	detail, err := h.svc.GetOrderStatus(r.Context(), chi.URLParam(r, "slug"), chi.URLParam(r, "qr"), int32(number))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPublicOrderDetailResponse(detail))
}
