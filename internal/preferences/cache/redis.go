package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	preferenceserrors "tourbook/internal/preferences/errors"
	"tourbook/pkg/model"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "tourbook:prefs:"

// Redis shares cached preferences between instances.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{
		client: client,
		ttl:    ttl,
	}
}

func (c *Redis) Get(ctx context.Context, user model.UserRef) (*model.CalendarPreferences, error) {
	data, err := c.client.Get(ctx, redisKey(user)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, preferenceserrors.ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to read cached preferences: %w", err)
	}

	var prefs model.CalendarPreferences
	if err := json.Unmarshal(data, &prefs); err != nil {
		return nil, fmt.Errorf("failed to decode cached preferences: %w", err)
	}
	return &prefs, nil
}

func (c *Redis) Set(ctx context.Context, prefs *model.CalendarPreferences) error {
	payload, err := json.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("failed to encode preferences: %w", err)
	}
	return c.client.Set(ctx, redisKey(prefs.User()), payload, c.ttl).Err()
}

func (c *Redis) Invalidate(ctx context.Context, user model.UserRef) error {
	return c.client.Del(ctx, redisKey(user)).Err()
}

func redisKey(user model.UserRef) string {
	return keyPrefix + user.Key()
}
