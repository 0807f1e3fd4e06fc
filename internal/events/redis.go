package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/mesaqr/api/internal/ws"
	"go.uber.org/zap"
)

// Channel is the Redis pub/sub channel shared by all API instances.
const Channel = "mesaqr:events"

type envelope struct {
	TenantID uuid.UUID `json:"tenant_id"`
	ws.Event
}

// RedisBus fans events out through Redis so that every API instance can
// push them to the consoles connected to it.
type RedisBus struct {
	client  *redis.Client
	channel string
	logger  *zap.Logger
}

func NewRedisBus(client *redis.Client, logger *zap.Logger) *RedisBus {
	return &RedisBus{client: client, channel: Channel, logger: logger}
}

func (b *RedisBus) Publish(ctx context.Context, tenantID uuid.UUID, e Event) error {
	msg, err := e.toWS()
	if err != nil {
		return err
	}
	data, err := json.Marshal(envelope{TenantID: tenantID, Event: msg})
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", e.Type, err)
	}
	return nil
}

// Relay subscribes to the bus and forwards every message to the local hub
// until ctx is cancelled.
func (b *RedisBus) Relay(ctx context.Context, hub Broadcaster) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	// Wait for the subscription to be confirmed before consuming.
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}
	b.logger.Info("event relay subscribed", zap.String("channel", b.channel))

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			var env envelope
			if err := json.Unmarshal([]byte(m.Payload), &env); err != nil {
				b.logger.Warn("dropping malformed event", zap.Error(err))
				continue
			}
			hub.BroadcastToTenant(env.TenantID, env.Event)
		}
	}
}
