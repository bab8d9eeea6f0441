package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hydroview/hydroview/internal/model"
)

// RedisConfig configures the shared Redis backend. Several dashboard
// replicas pointing at the same instance share recomputed tables.
type RedisConfig struct {
	// Address is the Redis server address (e.g., "localhost:6379").
	Address string

	// Password for Redis authentication (optional).
	Password string

	// Database number to use (default: 0).
	Database int

	// Prefix is prepended to all cache keys.
	Prefix string

	// TTL is the time-to-live for cached tables (0 = no expiration).
	TTL time.Duration

	// Timeout for Redis operations.
	Timeout time.Duration

	// PoolSize is the maximum number of connections.
	PoolSize int

	// MinIdleConns is the minimum number of idle connections.
	MinIdleConns int
}

// DefaultRedisConfig returns sensible defaults.
func DefaultRedisConfig(address string) RedisConfig {
	return RedisConfig{
		Address:      address,
		Prefix:       "hydroview:segments:",
		TTL:          time.Hour,
		Timeout:      5 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	}
}

// Redis is the shared Backend.
type Redis struct {
	cfg    RedisConfig
	client *redis.Client
}

// NewRedis connects to Redis and verifies the connection.
func NewRedis(cfg RedisConfig) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.Database,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("cache: failed to connect to Redis: %w", err)
	}

	return &Redis{cfg: cfg, client: client}, nil
}

func (r *Redis) key(hashed string) string {
	return r.cfg.Prefix + hashed
}

// Get implements Backend.
func (r *Redis) Get(ctx context.Context, key string) ([]model.SegmentedEvent, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	data, err := r.client.Get(ctx, r.key(key)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache: redis get: %w", err)
	}

	var rows []model.SegmentedEvent
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, false, fmt.Errorf("cache: corrupt entry: %w", err)
	}
	return rows, true, nil
}

// Put implements Backend.
func (r *Redis) Put(ctx context.Context, key string, rows []model.SegmentedEvent) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	data, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("cache: marshal rows: %w", err)
	}
	if err := r.client.Set(ctx, r.key(key), data, r.cfg.TTL).Err(); err != nil {
		return fmt.Errorf("cache: redis set: %w", err)
	}
	return nil
}

// InvalidateAll implements Backend by scanning the prefix and deleting
// matches.
func (r *Redis) InvalidateAll(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	iter := r.client.Scan(ctx, 0, r.cfg.Prefix+"*", 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("cache: redis scan: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("cache: redis del: %w", err)
	}
	return nil
}

// Ping checks the connection.
func (r *Redis) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()
	return r.client.Ping(ctx).Err()
}

// Close implements Backend.
func (r *Redis) Close() error {
	return r.client.Close()
}
