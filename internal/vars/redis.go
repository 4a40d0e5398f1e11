package vars

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

type (
	// Redis is a Store backed by a single Redis hash, so that every engine
	// process sharing the hash sees the same variables
	Redis struct {
		client *redis.Client
		key    string
	}

	// RedisConfig configures the Redis connection and hash key prefix
	RedisConfig struct {
		Addr     string
		Password string
		DB       int
		Prefix   string
	}
)

const redisHashSuffix = ":vars"

var ErrValueEncoding = errors.New("variable value is not JSON-compatible")

var _ Store = (*Redis)(nil)

// NewRedis connects to Redis and returns a Store using the configured hash
func NewRedis(cfg RedisConfig) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &Redis{
		client: client,
		key:    cfg.Prefix + redisHashSuffix,
	}
}

// Ping verifies that Redis is reachable
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close releases the Redis connection
func (r *Redis) Close() error {
	return r.client.Close()
}

// Get returns the decoded value stored under key
func (r *Redis) Get(ctx context.Context, key string) (any, bool, error) {
	raw, err := r.client.HGet(ctx, r.key, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var res any
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, false, err
	}
	return res, true, nil
}

// Set JSON-encodes value and stores it under key
func (r *Redis) Set(ctx context.Context, key string, value any) error {
	if key == "" {
		return ErrKeyRequired
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrValueEncoding, err)
	}
	return r.client.HSet(ctx, r.key, key, raw).Err()
}

// Delete removes key
func (r *Redis) Delete(ctx context.Context, key string) error {
	return r.client.HDel(ctx, r.key, key).Err()
}

// Has returns true if key is present
func (r *Redis) Has(ctx context.Context, key string) (bool, error) {
	return r.client.HExists(ctx, r.key, key).Result()
}

// All returns every stored variable, decoded
func (r *Redis) All(ctx context.Context) (map[string]any, error) {
	raw, err := r.client.HGetAll(ctx, r.key).Result()
	if err != nil {
		return nil, err
	}
	res := make(map[string]any, len(raw))
	for k, v := range raw {
		var val any
		if err := json.Unmarshal([]byte(v), &val); err != nil {
			return nil, fmt.Errorf("variable %s: %w", k, err)
		}
		res[k] = val
	}
	return res, nil
}

// Clear removes every variable
func (r *Redis) Clear(ctx context.Context) error {
	return r.client.Del(ctx, r.key).Err()
}
