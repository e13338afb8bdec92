package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wonny/uvscan/internal/contracts"
	"github.com/wonny/uvscan/pkg/config"
	"github.com/wonny/uvscan/pkg/logger"
)

const redisKeyPrefix = "uvscan:snapshot:"

// RedisStore is an alternative persistent tier backed by Redis.
// Selected when REDIS_ENABLED=true; expiry is delegated to Redis TTLs.
type RedisStore struct {
	rdb    *redis.Client
	logger *logger.Logger
}

// NewRedisStore connects to Redis and verifies the connection
func NewRedisStore(cfg *config.Config, log *logger.Logger) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &RedisStore{rdb: rdb, logger: log}, nil
}

// Get reads a snapshot; corrupt payloads are purged and reported as a miss
func (s *RedisStore) Get(ctx context.Context, key string) (*contracts.FinancialSnapshot, bool, error) {
	data, err := s.rdb.Get(ctx, redisKeyPrefix+key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get: %w", err)
	}

	var snap contracts.FinancialSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		s.logger.WithError(err).WithField("key", key).Warn("Purging corrupt cache entry")
		_ = s.Delete(ctx, key)
		return nil, false, nil
	}

	return &snap, true, nil
}

// Set writes a snapshot; the absolute expiry becomes a Redis TTL
func (s *RedisStore) Set(ctx context.Context, key string, snap *contracts.FinancialSnapshot, expireAt time.Time) error {
	ttl := time.Until(expireAt)
	if ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	return s.rdb.Set(ctx, redisKeyPrefix+key, data, ttl).Err()
}

// Delete removes a key
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, redisKeyPrefix+key).Err()
}

// Stats reports the live key count. Redis evicts on TTL, so the
// expired count is always zero here.
func (s *RedisStore) Stats(ctx context.Context) (total, expired int, err error) {
	iter := s.rdb.Scan(ctx, 0, redisKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		total++
	}
	if err := iter.Err(); err != nil {
		return 0, 0, fmt.Errorf("redis scan: %w", err)
	}
	return total, 0, nil
}

// Purge removes every snapshot key and reports how many were deleted
func (s *RedisStore) Purge(ctx context.Context) (int, error) {
	iter := s.rdb.Scan(ctx, 0, redisKeyPrefix+"*", 0).Iterator()
	deleted := 0
	for iter.Next(ctx) {
		if err := s.rdb.Del(ctx, iter.Val()).Err(); err != nil {
			return deleted, fmt.Errorf("redis del: %w", err)
		}
		deleted++
	}
	if err := iter.Err(); err != nil {
		return deleted, fmt.Errorf("redis scan: %w", err)
	}
	return deleted, nil
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
