package sessions

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func TestPresenceDefaultsTTL(t *testing.T) {
	var client *redis.Client
	p := NewRedisPresence(client, 0)
	assert.Equal(t, DefaultPresenceTTL, p.ttl)

	p = NewRedisPresence(client, 30*time.Second)
	assert.Equal(t, 30*time.Second, p.ttl)
}

func TestPresenceKeyIsPerSession(t *testing.T) {
	webinarID := uuid.New()
	a := presenceKey(webinarID, "token-a")
	b := presenceKey(webinarID, "token-b")
	assert.NotEqual(t, a, b)
	assert.Contains(t, a, webinarID.String())
}
