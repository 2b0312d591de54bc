package lock

import (
	"context"
	"fmt"
	"time"

	"tourbook/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "tourbook:lock:"

// releaseScript deletes the key only while it still carries our token, so a
// holder whose TTL lapsed cannot release its successor's lock.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type Redis struct {
	client  *redis.Client
	timeout time.Duration
	ttl     time.Duration
	log     *logger.Logger
}

func NewRedis(client *redis.Client, timeout, ttl time.Duration, log *logger.Logger) *Redis {
	return &Redis{
		client:  client,
		timeout: timeout,
		ttl:     ttl,
		log:     log,
	}
}

func (r *Redis) Lease() time.Duration { return r.ttl }

func (r *Redis) Acquire(ctx context.Context, key string) (Unlock, error) {
	redisKey := redisKeyPrefix + key
	token := uuid.NewString()

	err := poll(ctx, r.timeout, func(ctx context.Context) (bool, error) {
		ok, err := r.client.SetNX(ctx, redisKey, token, r.ttl).Result()
		if err != nil {
			return false, fmt.Errorf("failed to set calendar lock: %w", err)
		}
		return ok, nil
	})
	if err != nil {
		return nil, err
	}

	return once(func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, r.client, []string{redisKey}, token).Err(); err != nil {
			r.log.Warn("Failed to release calendar lock", "key", key, "error", err)
		}
	}), nil
}
