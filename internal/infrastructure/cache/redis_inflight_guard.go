package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/consulta/backend/internal/domain/shared"
	"github.com/redis/go-redis/v9"
)

// RedisInflightGuard implements InflightGuard using Redis. This is suitable
// for distributed deployments where multiple instances must agree on which
// one is running a renewal for a given user.
type RedisInflightGuard struct {
	client    *redis.Client
	keyPrefix string
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// NewRedisInflightGuard creates a new Redis-based in-flight guard
func NewRedisInflightGuard(cfg RedisConfig) (*RedisInflightGuard, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisInflightGuard{
		client:    client,
		keyPrefix: "billing:inflight:",
	}, nil
}

// NewRedisInflightGuardWithClient creates a guard with an existing Redis client.
// This is useful for testing or when sharing a client across components.
func NewRedisInflightGuardWithClient(client *redis.Client, keyPrefix string) *RedisInflightGuard {
	if keyPrefix == "" {
		keyPrefix = "billing:inflight:"
	}
	return &RedisInflightGuard{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// Acquire attempts to claim the key with SETNX. The TTL bounds how long a
// crashed holder can block later attempts.
func (g *RedisInflightGuard) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	claimed, err := g.client.SetNX(ctx, g.keyPrefix+key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire in-flight slot: %w", err)
	}
	return claimed, nil
}

// Release frees the key before the TTL expires
func (g *RedisInflightGuard) Release(ctx context.Context, key string) error {
	if err := g.client.Del(ctx, g.keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to release in-flight slot: %w", err)
	}
	return nil
}

// Close closes the Redis client
func (g *RedisInflightGuard) Close() error {
	return g.client.Close()
}

// GetClient returns the underlying Redis client (for testing/monitoring)
func (g *RedisInflightGuard) GetClient() *redis.Client {
	return g.client
}

// Ensure RedisInflightGuard implements InflightGuard
var _ shared.InflightGuard = (*RedisInflightGuard)(nil)
