package telephony

import (
	"context"
	"fmt"
	"time"

	"callcenter-platform/pkg/utils"

	"github.com/redis/go-redis/v9"
)

// CapGuard bounds concurrent inbound calls per business. A nil guard
// disables the cap entirely.
type CapGuard interface {
	Acquire(ctx context.Context, businessID string) (bool, error)
	Release(ctx context.Context, businessID string) error
}

// RedisCapGuard backs the cap with a shared redis counter so the bound holds
// across gateway instances.
type RedisCapGuard struct {
	Client *redis.Client
	Limit  int
	TTL    time.Duration
}

func (g *RedisCapGuard) Acquire(ctx context.Context, businessID string) (bool, error) {
	return utils.AcquireInboundCap(ctx, g.Client, inboundCapKey(businessID), g.Limit, g.TTL)
}

func (g *RedisCapGuard) Release(ctx context.Context, businessID string) error {
	return utils.ReleaseInboundCap(ctx, g.Client, inboundCapKey(businessID))
}

func inboundCapKey(businessID string) string {
	return fmt.Sprintf("callcenter:inbound_cap:%s", businessID)
}
