package http

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/giacomoarchidi/tutoring-platform/internal/crypto"
)

// loginLimiter counts login attempts per email+IP in redis over a fixed
// window. With no redis client configured the limiter is a no-op, and redis
// failures fail open: an unreachable cache must not lock everyone out.
type loginLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
}

func newLoginLimiter(client *redis.Client, limit int, window time.Duration) *loginLimiter {
	return &loginLimiter{client: client, limit: limit, window: window}
}

func (l *loginLimiter) Allow(ctx context.Context, email, ip string) bool {
	if l.client == nil || l.limit <= 0 {
		return true
	}

	// Hash the key so raw emails never land in redis.
	key := "login_attempts:" + crypto.HashToken(strings.ToLower(email)+"|"+ip)
	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return true
	}
	if count == 1 {
		_ = l.client.Expire(ctx, key, l.window).Err()
	}
	return count <= int64(l.limit)
}
