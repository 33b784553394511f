// Package redis provides the Redis connection and the stores kept in it.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/turtacn/taskflow/internal/config"
	"github.com/turtacn/taskflow/pkg/logger"
)

// RedisConnection manages Redis client lifecycle and health monitoring.
type RedisConnection struct {
	client redis.UniversalClient
	logger logger.Logger
}

// NewRedisConnection creates a standalone client from cfg and verifies connectivity.
//
// Parameters:
//   - ctx: Context for the initial ping
//   - cfg: Redis configuration
//   - log: Logger instance
//
// Returns:
//   - *RedisConnection: Connected manager
//   - error: Connection establishment error if any
func NewRedisConnection(ctx context.Context, cfg *config.RedisConfig, log logger.Logger) (*RedisConnection, error) {
	log = log.WithComponent("redis")
	poolSize := cfg.PoolSize
	if poolSize == 0 {
		poolSize = 10
	}

	log.Info(ctx, "Connecting to Redis",
		logger.String("addr", cfg.Address),
		logger.Int("db", cfg.DB),
	)
	client := redis.NewClient(&redis.Options{
		Addr:            cfg.Address,
		Password:        cfg.Password,
		DB:              cfg.DB,
		PoolSize:        poolSize,
		MinIdleConns:    2,
		ConnMaxIdleTime: 5 * time.Minute,
		DialTimeout:     5 * time.Second,
		ReadTimeout:     3 * time.Second,
		WriteTimeout:    3 * time.Second,
		MaxRetries:      3,
	})

	rc := &RedisConnection{client: client, logger: log}
	if err := rc.Ping(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	log.Info(ctx, "Redis connection established successfully", logger.Int("pool_size", poolSize))
	return rc, nil
}

// NewRedisConnectionFromClient wraps an existing client.
func NewRedisConnectionFromClient(client redis.UniversalClient, log logger.Logger) *RedisConnection {
	return &RedisConnection{client: client, logger: log.WithComponent("redis")}
}

// GetClient returns the Redis client instance.
func (rc *RedisConnection) GetClient() redis.UniversalClient {
	return rc.client
}

// Ping checks Redis server connectivity.
func (rc *RedisConnection) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	start := time.Now()
	if err := rc.client.Ping(pingCtx).Err(); err != nil {
		rc.logger.Error(ctx, "Redis ping failed", err)
		return err
	}
	if latency := time.Since(start); latency > 50*time.Millisecond {
		rc.logger.Warn(ctx, "High Redis latency detected", logger.Int64("latency_ms", latency.Milliseconds()))
	}
	return nil
}

// Close closes the Redis connection.
func (rc *RedisConnection) Close() error {
	rc.logger.Info(context.Background(), "Closing Redis connection")
	return rc.client.Close()
}
