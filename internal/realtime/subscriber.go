package realtime

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// Subscriber bridges the redis pub/sub channels into the local hub so every
// gateway instance forwards events to its own websocket clients.
type Subscriber struct {
	rdb *redis.Client
	hub *Hub
	log *slog.Logger
}

func NewSubscriber(rdb *redis.Client, hub *Hub, log *slog.Logger) *Subscriber {
	return &Subscriber{rdb: rdb, hub: hub, log: log}
}

// Run subscribes to all business queue channels and forwards messages to the
// hub until ctx is canceled. Delivery is best-effort; on subscription failure
// clients still converge via polling.
func (s *Subscriber) Run(ctx context.Context) error {
	sub := s.rdb.PSubscribe(ctx, ChannelFor("*"))
	defer func() { _ = sub.Close() }()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				s.log.Warn("realtime subscription channel closed")
				return nil
			}
			s.hub.Broadcast([]byte(msg.Payload))
		}
	}
}
