package sessions

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultPresenceTTL is how long a viewer counts as present after their last
// heartbeat. Three missed heartbeats at the 5s sync interval.
const DefaultPresenceTTL = 15 * time.Second

// RedisPresence tracks live viewers with per-session TTL keys. A viewer whose
// heartbeats stop simply ages out.
type RedisPresence struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisPresence creates a presence tracker. ttl <= 0 uses the default.
func NewRedisPresence(client *redis.Client, ttl time.Duration) *RedisPresence {
	if ttl <= 0 {
		ttl = DefaultPresenceTTL
	}
	return &RedisPresence{client: client, ttl: ttl}
}

func presenceKey(webinarID uuid.UUID, token string) string {
	return fmt.Sprintf("presence:%s:%s", webinarID, token)
}

// Touch refreshes the session's liveness key.
func (p *RedisPresence) Touch(ctx context.Context, webinarID uuid.UUID, token string) error {
	return p.client.Set(ctx, presenceKey(webinarID, token), 1, p.ttl).Err()
}
