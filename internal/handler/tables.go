package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/mesaqr/api/internal/enum"
	"github.com/mesaqr/api/internal/service"
	"go.uber.org/zap"
)

// TableCloser settles tables. Satisfied by *service.ClosureService.
type TableCloser interface {
	CloseTable(ctx context.Context, actor service.Actor, tableID uuid.UUID, method enum.PaymentMethod) (*service.CloseTableResult, error)
}

type TableHandler struct {
	svc    TableCloser
	logger *zap.Logger
}

func NewTableHandler(svc TableCloser, logger *zap.Logger) *TableHandler {
	return &TableHandler{svc: svc, logger: logger}
}

// RegisterRoutes expects to be mounted at /tables.
func (h *TableHandler) RegisterRoutes(r chi.Router) {
	r.Post("/{id}/close", h.Close)
}

type closeTableRequest struct {
	PaymentMethod string `json:"payment_method"`
}

type closedOrderResponse struct {
	Order   orderResponse   `json:"order"`
	Payment paymentResponse `json:"payment"`
}

type closeTableResponse struct {
	Table  tableResponse         `json:"table"`
	Orders []closedOrderResponse `json:"orders"`
}

// Close pays every open order on the table and sends it to cleaning.
func (h *TableHandler) Close(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		unauthenticated(w)
		return
	}

	tableID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, "invalid table id")
		return
	}

	var req closeTableRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if req.PaymentMethod == "" {
		badRequest(w, "payment_method is required")
		return
	}

	res, err := h.svc.CloseTable(r.Context(), actor, tableID, enum.PaymentMethod(req.PaymentMethod))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	resp := closeTableResponse{
		Table:  toTableResponse(res.Table),
		Orders: make([]closedOrderResponse, len(res.ClosedOrders)),
	}
	for i, co := range res.ClosedOrders {
		resp.Orders[i] = closedOrderResponse{Order: toOrderResponse(co.Order), Payment: toPaymentResponse(co.Payment)}
	}
	writeJSON(w, http.StatusOK, resp)
}
