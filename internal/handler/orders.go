package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/mesaqr/api/internal/database"
	"github.com/mesaqr/api/internal/enum"
	"github.com/mesaqr/api/internal/service"
	"go.uber.org/zap"
)

// OrderServicer defines the staff-side order methods.
// Satisfied by *service.OrderService; narrow interface for testability.
type OrderServicer interface {
	UpdateOrderStatus(ctx context.Context, actor service.Actor, orderID uuid.UUID, target enum.OrderStatus) (database.Order, error)
}

// OrderHandler handles staff order endpoints.
type OrderHandler struct {
	svc    OrderServicer
	logger *zap.Logger
}

func NewOrderHandler(svc OrderServicer, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{svc: svc, logger: logger}
}

// RegisterRoutes expects to be mounted at /orders.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Patch("/{id}/status", h.UpdateStatus)
}

// UpdateStatus applies a manual status override.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		unauthenticated(w)
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, "invalid order id")
		return
	}

	var req updateStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if req.Status == "" {
		badRequest(w, "status is required")
		return
	}

	order, err := h.svc.UpdateOrderStatus(r.Context(), actor, orderID, enum.OrderStatus(req.Status))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}
