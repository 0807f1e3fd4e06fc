package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mesaqr/api/internal/apperr"
	"github.com/mesaqr/api/internal/database"
	"github.com/mesaqr/api/internal/enum"
	"github.com/mesaqr/api/internal/permission"
)

const statsWindow = 24 * time.Hour

// ConsoleStore defines the read queries behind the preparation consoles.
// Satisfied by *database.Scoped.
type ConsoleStore interface {
	GetSectorByCode(ctx context.Context, code string) (database.PrepSector, error)
	ListSectorItems(ctx context.Context, sectorID uuid.UUID) ([]database.SectorItemRow, error)
	GetSectorStats(ctx context.Context, sectorID uuid.UUID, since time.Time) (database.SectorStatsRow, error)
}

type NewConsoleStore func(db database.DBTX, tenantID uuid.UUID) ConsoleStore

// TicketItem is one line on a ticket.
type TicketItem struct {
	ItemID    uuid.UUID
	DishName  string
	Quantity  int32
	Notes     *string
	Allergens []string
}

// Ticket groups the items of one order that share a status.
type Ticket struct {
	OrderID        uuid.UUID
	OrderNumber    int32
	TableNumber    int32
	TableName      *string
	CustomerNotes  *string
	Status         enum.ItemStatus
	CreatedAt      time.Time
	ElapsedSeconds int64
	Items          []TicketItem
}

// SectorTickets is a console's three columns, each oldest order first.
type SectorTickets struct {
	Sector     database.PrepSector
	Pending    []Ticket
	InProgress []Ticket
	Ready      []Ticket
}

// SectorStats summarises a sector's load and speed.
type SectorStats struct {
	Sector               database.PrepSector
	ActiveOrders         int64
	ServedLast24h        int64
	AvgCompletionSeconds *float64
}

// ConsoleService serves the kitchen and bar consoles.
type ConsoleService struct {
	db       database.DBTX
	newStore NewConsoleStore
	now      Clock
}

func NewConsoleService(db database.DBTX, newStore NewConsoleStore) *ConsoleService {
	return &ConsoleService{db: db, newStore: newStore, now: time.Now}
}

// sector codes are stored uppercase; lookups accept any case.
func (s *ConsoleService) sector(ctx context.Context, store ConsoleStore, actor Actor, code string) (database.PrepSector, error) {
	sector, err := store.GetSectorByCode(ctx, strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return database.PrepSector{}, notFound(err, "sector")
	}
	if !permission.SectorAccess(actor.Role, sector.Code) {
		return database.PrepSector{}, apperr.Forbidden("no access to sector %s", sector.Code)
	}
	return sector, nil
}

// ListSectorTickets returns the sector's active items grouped into tickets.
// Elapsed time is computed now, at response time.
func (s *ConsoleService) ListSectorTickets(ctx context.Context, actor Actor, code string) (*SectorTickets, error) {
	store := s.newStore(s.db, actor.TenantID)
	sector, err := s.sector(ctx, store, actor, code)
	if err != nil {
		return nil, err
	}

	rows, err := store.ListSectorItems(ctx, sector.ID)
	if err != nil {
		return nil, fmt.Errorf("list sector items: %w", err)
	}

	now := s.now()
	out := &SectorTickets{
		Sector:     sector,
		Pending:    []Ticket{},
		InProgress: []Ticket{},
		Ready:      []Ticket{},
	}

	type key struct {
		orderID uuid.UUID
		status  enum.ItemStatus
	}
	// index into the column slice; rows arrive oldest order first, so the
	// first appearance of a key fixes its FIFO position.
	index := make(map[key]int)
	for _, r := range rows {
		col := out.column(r.ItemStatus)
		if col == nil {
			continue
		}
		k := key{r.OrderID, r.ItemStatus}
		i, ok := index[k]
		if !ok {
			elapsed := int64(now.Sub(r.OrderCreated).Seconds())
			if elapsed < 0 {
				elapsed = 0
			}
			*col = append(*col, Ticket{
				OrderID:        r.OrderID,
				OrderNumber:    r.OrderNumber,
				TableNumber:    r.TableNumber,
				TableName:      r.TableName,
				CustomerNotes:  r.CustomerNotes,
				Status:         r.ItemStatus,
				CreatedAt:      r.OrderCreated,
				ElapsedSeconds: elapsed,
			})
			i = len(*col) - 1
			index[k] = i
		}
		allergens := r.Allergens
		if allergens == nil {
			allergens = []string{}
		}
		(*col)[i].Items = append((*col)[i].Items, TicketItem{
			ItemID:    r.ItemID,
			DishName:  r.DishName,
			Quantity:  r.Quantity,
			Notes:     r.Notes,
			Allergens: allergens,
		})
	}
	return out, nil
}

func (t *SectorTickets) column(status enum.ItemStatus) *[]Ticket {
	switch status {
	case enum.ItemStatusPending:
		return &t.Pending
	case enum.ItemStatusInProgress:
		return &t.InProgress
	case enum.ItemStatusReady:
		return &t.Ready
	}
	return nil
}

// SectorStats reports distinct active orders and the mean creation→SERVED
// time over the trailing 24 hours.
func (s *ConsoleService) SectorStats(ctx context.Context, actor Actor, code string) (*SectorStats, error) {
	store := s.newStore(s.db, actor.TenantID)
	sector, err := s.sector(ctx, store, actor, code)
	if err != nil {
		return nil, err
	}

	row, err := store.GetSectorStats(ctx, sector.ID, s.now().Add(-statsWindow))
	if err != nil {
		return nil, fmt.Errorf("sector stats: %w", err)
	}
	return &SectorStats{
		Sector:               sector,
		ActiveOrders:         row.ActiveOrders,
		ServedLast24h:        row.ServedItems,
		AvgCompletionSeconds: row.AvgServedSeconds,
	}, nil
}
