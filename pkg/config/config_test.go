package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8090", cfg.Port)
	assert.Equal(t, "development", cfg.Env)

	assert.InDelta(t, 1.0, cfg.Weights.Sum(), 0.001)

	assert.Equal(t, 512, cfg.Cache.FastCapacity)
	assert.Equal(t, 6*time.Hour, cfg.Cache.SnapshotTTL)

	assert.Equal(t, 10.0, cfg.RateLimit.Capacity)
	assert.Equal(t, 5.0, cfg.RateLimit.RefillRate)

	assert.Equal(t, 2, cfg.Pool.MinWorkers)
	assert.Equal(t, 16, cfg.Pool.MaxWorkers)

	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.Retry.BaseDelay)
	assert.Equal(t, 10*time.Second, cfg.Retry.MaxDelay)

	assert.False(t, cfg.Database.Enabled)
	assert.False(t, cfg.Redis.Enabled)
	assert.False(t, cfg.Scheduler.Enabled)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("RATE_LIMIT_CAPACITY", "25")
	t.Setenv("RETRY_MAX_ATTEMPTS", "5")
	t.Setenv("CACHE_SNAPSHOT_TTL", "30m")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9999", cfg.Port)
	assert.Equal(t, 25.0, cfg.RateLimit.Capacity)
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	assert.Equal(t, 30*time.Minute, cfg.Cache.SnapshotTTL)
}

func TestLoad_BadWeightSumRejected(t *testing.T) {
	t.Setenv("WEIGHT_VALUE", "0.50")
	// Others stay at defaults: sum = 1.20

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sum to 1.0")
}

func TestLoad_InvalidEnvRejected(t *testing.T) {
	t.Setenv("ENV", "sandbox")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_PoolBounds(t *testing.T) {
	t.Setenv("POOL_MIN_WORKERS", "10")
	t.Setenv("POOL_MAX_WORKERS", "4")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "POOL_MIN_WORKERS")
}

func TestLoad_RetryBounds(t *testing.T) {
	t.Setenv("RETRY_MAX_ATTEMPTS", "0")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_JitterRange(t *testing.T) {
	t.Setenv("RETRY_JITTER_FRAC", "1.5")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_DatabaseURLRequiredWhenEnabled(t *testing.T) {
	t.Setenv("DATABASE_ENABLED", "true")
	t.Setenv("DATABASE_URL", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestLoad_SchedulerSymbolsRequiredWhenEnabled(t *testing.T) {
	t.Setenv("SCHEDULER_ENABLED", "true")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SCHEDULER_SYMBOLS")
}

func TestLoad_ZeroRefillRateTolerated(t *testing.T) {
	// The limiter substitutes a floor rate, so config accepts it
	t.Setenv("RATE_LIMIT_REFILL_PER_SEC", "0")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 0.0, cfg.RateLimit.RefillRate)
}

func TestGetEnvHelpers_FallBackOnGarbage(t *testing.T) {
	t.Setenv("POOL_MAX_WORKERS", "many")
	t.Setenv("RATE_LIMIT_CAPACITY", "lots")
	t.Setenv("METRICS_ENABLED", "yep")
	t.Setenv("CACHE_SNAPSHOT_TTL", "soon")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 16, cfg.Pool.MaxWorkers, "unparseable int falls back to default")
	assert.Equal(t, 10.0, cfg.RateLimit.Capacity)
	assert.True(t, cfg.MetricsEnabled)
	assert.Equal(t, 6*time.Hour, cfg.Cache.SnapshotTTL)
}

func TestWeightConfig_Sum(t *testing.T) {
	w := WeightConfig{Value: 0.1, Quality: 0.2, Growth: 0.3, Safety: 0.25, Momentum: 0.15}
	assert.InDelta(t, 1.0, w.Sum(), 1e-9)
}
