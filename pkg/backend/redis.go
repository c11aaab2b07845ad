package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/stefanpenner/horizon/pkg/store"
)

// KeyPrefix namespaces the per-category keys.
const KeyPrefix = "horizon:goals:"

// Redis stores each category as a JSON string value.
type Redis struct {
	client *redis.Client
}

// OpenRedis connects to addr, which may be host:port or a redis:// URL.
func OpenRedis(ctx context.Context, addr string) (*Redis, error) {
	if addr == "" {
		addr = "localhost:6379"
	}
	var opts *redis.Options
	if strings.Contains(addr, "://") {
		o, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		opts = o
	} else {
		opts = &redis.Options{Addr: addr}
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedis(client), nil
}

// NewRedis wraps an existing client.
func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func redisKey(c store.Category) string { return KeyPrefix + string(c) }

func (r *Redis) List(ctx context.Context, c store.Category) ([]store.Goal, error) {
	data, err := r.client.Get(ctx, redisKey(c)).Bytes()
	if errors.Is(err, redis.Nil) {
		return []store.Goal{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", c, err)
	}
	goals := []store.Goal{}
	if err := json.Unmarshal(data, &goals); err != nil {
		return nil, fmt.Errorf("decode %s: %w", c, err)
	}
	return goals, nil
}

func (r *Redis) Replace(ctx context.Context, c store.Category, goals []store.Goal) error {
	if goals == nil {
		goals = []store.Goal{}
	}
	data, err := json.Marshal(goals)
	if err != nil {
		return fmt.Errorf("encode %s: %w", c, err)
	}
	if err := r.client.Set(ctx, redisKey(c), data, 0).Err(); err != nil {
		return fmt.Errorf("set %s: %w", c, err)
	}
	return nil
}

func (r *Redis) Reset(ctx context.Context) error {
	keys := make([]string, len(store.Categories))
	for i, c := range store.Categories {
		keys[i] = redisKey(c)
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	return nil
}

func (r *Redis) Close() error { return r.client.Close() }
