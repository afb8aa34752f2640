// Package loader provides authoritative data sources for cache fills.
package loader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// ErrNotFound is returned when the source has no value for a key
var ErrNotFound = errors.New("loader: key not found")

// RedisConfig defines the configuration for a Redis source
type RedisConfig struct {
	// Client is used as-is when set; otherwise one is built from Addr
	Client redis.UniversalClient

	Addr     string
	Password string
	DB       int

	// KeyPrefix is prepended to every key read or written
	KeyPrefix string

	// Timeout bounds each command that arrives without a deadline
	Timeout time.Duration

	Logger logrus.FieldLogger
}

// NewDefaultRedisConfig returns a config for a local Redis with a 2s timeout
func NewDefaultRedisConfig(addr string) *RedisConfig {
	return &RedisConfig{
		Addr:      addr,
		KeyPrefix: "adaptcache:",
		Timeout:   2 * time.Second,
	}
}

// Redis reads JSON documents from Redis. Its Load method has the shape of
// a cache loader.
type Redis struct {
	client    redis.UniversalClient
	prefix    string
	timeout   time.Duration
	ownClient bool
	logger    logrus.FieldLogger
}

// NewRedis connects to Redis. A client built from Addr is pinged before
// returning and closed by Close; a supplied client is not.
func NewRedis(ctx context.Context, config *RedisConfig) (*Redis, error) {
	if config == nil {
		return nil, fmt.Errorf("redis configuration is required")
	}

	r := &Redis{
		client:  config.Client,
		prefix:  config.KeyPrefix,
		timeout: config.Timeout,
		logger:  config.Logger,
	}
	if r.logger == nil {
		r.logger = logrus.StandardLogger()
	}

	if r.client == nil {
		if config.Addr == "" {
			return nil, fmt.Errorf("redis address is required when no client is given")
		}
		client := redis.NewClient(&redis.Options{
			Addr:        config.Addr,
			Password:    config.Password,
			DB:          config.DB,
			DialTimeout: config.Timeout,
		})

		pingCtx, cancel := r.withTimeout(ctx)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}

		r.client = client
		r.ownClient = true
	}

	return r, nil
}

func (r *Redis) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok || r.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.timeout)
}

// Key returns the Redis key used for a cache key
func (r *Redis) Key(key string) string {
	return r.prefix + key
}

// Load fetches and decodes the JSON document stored under key. Values that
// are not valid JSON are returned as strings.
func (r *Redis) Load(ctx context.Context, key string) (any, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	data, err := r.client.Get(ctx, r.Key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}

	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		r.logger.WithField("key", key).Debug("redis value is not JSON, returning raw string")
		return string(data), nil
	}
	return value, nil
}

// Store writes value as JSON under key. A ttl of zero keeps it indefinitely.
func (r *Redis) Store(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	if err := r.client.Set(ctx, r.Key(key), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Close releases the client if NewRedis created it
func (r *Redis) Close() error {
	if !r.ownClient {
		return nil
	}
	return r.client.Close()
}
