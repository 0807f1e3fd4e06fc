package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/mesaqr/api/internal/service"
	"go.uber.org/zap"
)

// ConsoleServicer defines the read side of the preparation consoles.
// Satisfied by *service.ConsoleService.
type ConsoleServicer interface {
	ListSectorTickets(ctx context.Context, actor service.Actor, code string) (*service.SectorTickets, error)
	SectorStats(ctx context.Context, actor service.Actor, code string) (*service.SectorStats, error)
}

// SectorHandler serves the kitchen and bar consoles.
type SectorHandler struct {
	svc    ConsoleServicer
	logger *zap.Logger
}

func NewSectorHandler(svc ConsoleServicer, logger *zap.Logger) *SectorHandler {
	return &SectorHandler{svc: svc, logger: logger}
}

// RegisterRoutes expects to be mounted at /sectors.
func (h *SectorHandler) RegisterRoutes(r chi.Router) {
	r.Get("/{code}/tickets", h.Tickets)
	r.Get("/{code}/stats", h.Stats)
}

type ticketItemResponse struct {
	ID        uuid.UUID `json:"id"`
	DishName  string    `json:"dish_name"`
	Quantity  int32     `json:"quantity"`
	Notes     *string   `json:"notes"`
	Allergens []string  `json:"allergens"`
}

type ticketResponse struct {
	OrderID        uuid.UUID            `json:"order_id"`
	OrderNumber    int32                `json:"order_number"`
	TableNumber    int32                `json:"table_number"`
	TableName      *string              `json:"table_name"`
	CustomerNotes  *string              `json:"customer_notes"`
	Status         string               `json:"status"`
	CreatedAt      time.Time            `json:"created_at"`
	ElapsedSeconds int64                `json:"elapsed_seconds"`
	Items          []ticketItemResponse `json:"items"`
}

type sectorResponse struct {
	ID   uuid.UUID `json:"id"`
	Code string    `json:"code"`
	Name string    `json:"name"`
}

type ticketsResponse struct {
	Sector     sectorResponse   `json:"sector"`
	Pending    []ticketResponse `json:"pending"`
	InProgress []ticketResponse `json:"in_progress"`
	Ready      []ticketResponse `json:"ready"`
}

type statsResponse struct {
	Sector               sectorResponse `json:"sector"`
	ActiveOrders         int64          `json:"active_orders"`
	ServedLast24h        int64          `json:"served_last_24h"`
	AvgCompletionSeconds *float64       `json:"avg_completion_seconds"`
}

func toTickets(in []service.Ticket) []ticketResponse {
	out := make([]ticketResponse, len(in))
	for i, t := range in {
		items := make([]ticketItemResponse, len(t.Items))
		for j, it := range t.Items {
			items[j] = ticketItemResponse{
				ID:        it.ItemID,
				DishName:  it.DishName,
				Quantity:  it.Quantity,
				Notes:     it.Notes,
				Allergens: it.Allergens,
			}
		}
		out[i] = ticketResponse{
			OrderID:        t.OrderID,
			OrderNumber:    t.OrderNumber,
			TableNumber:    t.TableNumber,
			TableName:      t.TableName,
			CustomerNotes:  t.CustomerNotes,
			Status:         string(t.Status),
			CreatedAt:      t.CreatedAt,
			ElapsedSeconds: t.ElapsedSeconds,
			Items:          items,
		}
	}
	return out
}

func sectorCode(r *http.Request) string {
	return strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "code")))
}

// Tickets returns a sector's pending, in-progress and ready tickets.
func (h *SectorHandler) Tickets(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		unauthenticated(w)
		return
	}

	res, err := h.svc.ListSectorTickets(r.Context(), actor, sectorCode(r))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ticketsResponse{
		Sector:     sectorResponse{ID: res.Sector.ID, Code: res.Sector.Code, Name: res.Sector.Name},
		Pending:    toTickets(res.Pending),
		InProgress: toTickets(res.InProgress),
		Ready:      toTickets(res.Ready),
	})
}

func (h *SectorHandler) Stats(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		unauthenticated(w)
		return
	}

	res, err := h.svc.SectorStats(r.Context(), actor, sectorCode(r))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{
		Sector:               sectorResponse{ID: res.Sector.ID, Code: res.Sector.Code, Name: res.Sector.Name},
		ActiveOrders:         res.ActiveOrders,
		ServedLast24h:        res.ServedLast24h,
		AvgCompletionSeconds: res.AvgCompletionSeconds,
	})
}
