package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Limiter counts attempts per key in redis with a sliding expiry window. A
// nil client disables limiting entirely (every attempt is allowed), and redis
// errors fail open so an unavailable cache never locks users out.
type Limiter struct {
	client *redis.Client
	log    zerolog.Logger
}

func New(client *redis.Client, logger zerolog.Logger) *Limiter {
	return &Limiter{client: client, log: logger}
}

// Enabled reports whether a backing client is configured.
func (l *Limiter) Enabled() bool {
	return l != nil && l.client != nil
}

// Allow records one attempt under key and reports whether the attempt is
// within max for the window. The window starts at the first attempt.
func (l *Limiter) Allow(ctx context.Context, key string, max int, window time.Duration) bool {
	if !l.Enabled() || max <= 0 {
		return true
	}

	full := fmt.Sprintf("ratelimit:%s", key)

	count, err := l.client.Incr(ctx, full).Result()
	if err != nil {
		l.log.Warn().Err(err).Str("key", key).Msg("rate limit check failed, allowing")
		return true
	}
	if count == 1 {
		if err := l.client.Expire(ctx, full, window).Err(); err != nil {
			l.log.Warn().Err(err).Str("key", key).Msg("rate limit expiry set failed")
		}
	}
	return count <= int64(max)
}

// Reset clears the counter for key, used after a successful verification so
// earlier failures stop counting.
func (l *Limiter) Reset(ctx context.Context, key string) {
	if !l.Enabled() {
		return
	}
	if err := l.client.Del(ctx, fmt.Sprintf("ratelimit:%s", key)).Err(); err != nil {
		l.log.Warn().Err(err).Str("key", key).Msg("rate limit reset failed")
	}
}

// NewRedisClient dials redis, returning an error when it is unreachable.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}
