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

// ItemServicer defines the item transition methods.
// Satisfied by *service.ItemService.
type ItemServicer interface {
	UpdateItemStatus(ctx context.Context, actor service.Actor, itemID uuid.UUID, target enum.ItemStatus) (*service.UpdateItemResult, error)
	BulkUpdateItemStatus(ctx context.Context, actor service.Actor, itemIDs []uuid.UUID, target enum.ItemStatus) (*service.BulkUpdateResult, error)
}

type ItemHandler struct {
	svc    ItemServicer
	logger *zap.Logger
}

func NewItemHandler(svc ItemServicer, logger *zap.Logger) *ItemHandler {
	return &ItemHandler{svc: svc, logger: logger}
}

// RegisterRoutes expects to be mounted at /order-items. The static bulk
// route is registered first; chi prefers static segments anyway.
func (h *ItemHandler) RegisterRoutes(r chi.Router) {
	r.Patch("/status", h.BulkUpdateStatus)
	r.Patch("/{id}/status", h.UpdateStatus)
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

type bulkUpdateStatusRequest struct {
	ItemIDs []string `json:"item_ids"`
	Status  string   `json:"status"`
}

type updateItemResponse struct {
	Item         orderItemResponse `json:"item"`
	Order        orderResponse     `json:"order"`
	OrderChanged bool              `json:"order_changed"`
}

type bulkUpdateResponse struct {
	Count         int             `json:"count"`
	ChangedOrders []orderResponse `json:"changed_orders"`
}

func (h *ItemHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		unauthenticated(w)
		return
	}

	itemID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, "invalid item id")
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

	res, err := h.svc.UpdateItemStatus(r.Context(), actor, itemID, enum.ItemStatus(req.Status))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updateItemResponse{
		Item:         toOrderItemResponse(res.Item),
		Order:        toOrderResponse(res.Order),
		OrderChanged: res.OrderChanged,
	})
}

func (h *ItemHandler) BulkUpdateStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		unauthenticated(w)
		return
	}

	var req bulkUpdateStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if len(req.ItemIDs) == 0 {
		badRequest(w, "item_ids is required")
		return
	}
	ids := make([]uuid.UUID, len(req.ItemIDs))
	for i, s := range req.ItemIDs {
		id, err := uuid.Parse(s)
		if err != nil {
			badRequest(w, "invalid item id: "+s)
			return
		}
		ids[i] = id
	}

	res, err := h.svc.BulkUpdateItemStatus(r.Context(), actor, ids, enum.ItemStatus(req.Status))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	resp := bulkUpdateResponse{Count: res.Count, ChangedOrders: make([]orderResponse, len(res.ChangedOrders))}
	for i, o := range res.ChangedOrders {
		resp.ChangedOrders[i] = toOrderResponse(o)
	}
	writeJSON(w, http.StatusOK, resp)
}
