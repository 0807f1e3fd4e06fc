// Package events carries order lifecycle notifications from the services to
// the connected preparation consoles.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/mesaqr/api/internal/ws"
)

const (
	TypeOrderCreated       = "order.created"
	TypeOrderStatusChanged = "order.status_changed"
	TypeItemStatusChanged  = "item.status_changed"
	TypeItemsStatusChanged = "items.status_changed"
	TypeTableClosed        = "table.closed"
)

// Event is a notification for one tenant. Sector narrows delivery to the
// consoles of one preparation sector; empty means every console.
type Event struct {
	Type    string
	Sector  string
	Payload any
}

// Publisher delivers events. Publishing happens after commit and is best
// effort: a failure never undoes the write that produced the event.
type Publisher interface {
	Publish(ctx context.Context, tenantID uuid.UUID, e Event) error
}

func (e Event) toWS() (ws.Event, error) {
	raw, err := json.Marshal(e.Payload)
	if err != nil {
		return ws.Event{}, fmt.Errorf("marshal %s payload: %w", e.Type, err)
	}
	return ws.Event{Type: e.Type, Sector: e.Sector, Payload: raw}, nil
}

// Broadcaster is the part of ws.Hub used here.
type Broadcaster interface {
	BroadcastToTenant(tenantID uuid.UUID, event ws.Event)
}

// HubPublisher delivers straight to the in-process hub.
type HubPublisher struct {
	hub Broadcaster
}

func NewHubPublisher(hub Broadcaster) *HubPublisher {
	return &HubPublisher{hub: hub}
}

func (p *HubPublisher) Publish(_ context.Context, tenantID uuid.UUID, e Event) error {
	msg, err := e.toWS()
	if err != nil {
		return err
	}
	p.hub.BroadcastToTenant(tenantID, msg)
	return nil
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, uuid.UUID, Event) error { return nil }
