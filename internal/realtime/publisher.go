package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Event is a queue-change notification fanned out to agent clients.
//
// Push delivery is an optimization only. Every client polls the active-call
// endpoint on a fixed interval as the correctness backstop, so a dropped
// event is never a data-loss bug.
type Event struct {
	Type       EventType `json:"type"`
	BusinessID string    `json:"business_id"`
	Payload    any       `json:"payload,omitempty"`
	EmittedAt  time.Time `json:"emitted_at"`
}

type EventType string

const (
	EventCallCreated    EventType = "call.created"
	EventCallUpdated    EventType = "call.updated"
	EventCallEnded      EventType = "call.ended"
	EventSessionChanged EventType = "session.changed"
)

// Publisher delivers events to connected clients, best-effort.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// ChannelFor returns the per-business redis channel name.
func ChannelFor(businessID string) string {
	return fmt.Sprintf("callcenter:queue:%s", businessID)
}

// RedisPublisher publishes events on a per-business redis channel.
// Subscribing gateway instances forward them to their websocket hubs.
type RedisPublisher struct {
	rdb *redis.Client
}

func NewRedisPublisher(rdb *redis.Client) *RedisPublisher {
	return &RedisPublisher{rdb: rdb}
}

func (p *RedisPublisher) Publish(ctx context.Context, e Event) error {
	if p.rdb == nil {
		return fmt.Errorf("realtime: redis client is nil")
	}
	if e.BusinessID == "" {
		return fmt.Errorf("realtime: business_id required")
	}
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return p.rdb.Publish(ctx, ChannelFor(e.BusinessID), b).Err()
}

// NoopPublisher drops all events. Used in tests and redis-less local runs.
type NoopPublisher struct{}

func (NoopPublisher) Publish(ctx context.Context, e Event) error { return nil }
