package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the screening pipeline
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Scoring weights (must sum to 1.0)
	Weights WeightConfig

	// Eligibility thresholds
	Eligibility EligibilityConfig

	// Cache
	Cache CacheConfig

	// Rate limiter (shared token bucket)
	RateLimit RateLimitConfig

	// Worker pool
	Pool PoolConfig

	// Retry policy
	Retry RetryConfig

	// External data provider
	Provider ProviderConfig

	// Database (batch result persistence)
	Database DatabaseConfig

	// Redis (optional persistent cache tier)
	Redis RedisConfig

	// Scheduler
	Scheduler SchedulerConfig

	// Logging
	LogLevel  string
	LogFormat string

	// Monitoring
	MetricsEnabled bool
}

// WeightConfig defines the factor weights for total score calculation
type WeightConfig struct {
	Value    float64
	Quality  float64
	Growth   float64
	Safety   float64
	Momentum float64
}

// Sum returns the total of all weights
func (w WeightConfig) Sum() float64 {
	return w.Value + w.Quality + w.Growth + w.Safety + w.Momentum
}

// EligibilityConfig defines UVS eligibility thresholds
type EligibilityConfig struct {
	MinStyleScore          float64 // 스타일 점수 최소값
	MaxValuationPercentile float64 // 밸류에이션 백분위 최대값 (낮을수록 저평가)
	MinMarginOfSafety      float64 // 안전마진 최소값 (예: 0.20 = 20%)
	MinQualityScore        float64
	MaxRiskScore           float64
	MinConfidence          float64
}

// CacheConfig holds two-tier cache configuration
type CacheConfig struct {
	FastCapacity int           // Fast tier max entries (LRU)
	SnapshotTTL  time.Duration // Per-snapshot TTL
	DiskPath     string        // SQLite file for the persistent tier
}

// RateLimitConfig holds token bucket parameters
type RateLimitConfig struct {
	Capacity   float64 // Maximum tokens
	RefillRate float64 // Tokens per second
}

// PoolConfig bounds the batch worker pool
type PoolConfig struct {
	MinWorkers int
	MaxWorkers int
	CPUFactor  int // softCap = NumCPU * CPUFactor, capped by MaxWorkers
}

// RetryConfig defines the fetch retry policy
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	JitterFrac  float64 // 0.0 ~ 1.0
}

// ProviderConfig holds external data provider configuration
type ProviderConfig struct {
	BaseURL        string
	APIKey         string
	Timeout        time.Duration
	RequestsPerSec float64 // Transport-level courtesy limit
	Burst          int
	ScrapeBaseURL  string // Sector peers fallback (HTML)
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL     string
	Enabled bool

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// RedisConfig holds Redis configuration for the optional cache tier
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// SchedulerConfig holds the periodic scan schedule
type SchedulerConfig struct {
	Enabled  bool
	CronSpec string // e.g. "0 18 * * MON-FRI"
	Symbols  string // Comma-separated symbol list for scheduled scans
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "8090"),
		Env:  getEnv("ENV", "development"),

		Weights: WeightConfig{
			Value:    getEnvAsFloat("WEIGHT_VALUE", 0.30),
			Quality:  getEnvAsFloat("WEIGHT_QUALITY", 0.25),
			Growth:   getEnvAsFloat("WEIGHT_GROWTH", 0.15),
			Safety:   getEnvAsFloat("WEIGHT_SAFETY", 0.20),
			Momentum: getEnvAsFloat("WEIGHT_MOMENTUM", 0.10),
		},

		Eligibility: EligibilityConfig{
			MinStyleScore:          getEnvAsFloat("ELIG_MIN_STYLE_SCORE", 60),
			MaxValuationPercentile: getEnvAsFloat("ELIG_MAX_VALUATION_PCT", 0.35),
			MinMarginOfSafety:      getEnvAsFloat("ELIG_MIN_MARGIN_OF_SAFETY", 0.20),
			MinQualityScore:        getEnvAsFloat("ELIG_MIN_QUALITY_SCORE", 50),
			MaxRiskScore:           getEnvAsFloat("ELIG_MAX_RISK_SCORE", 70),
			MinConfidence:          getEnvAsFloat("ELIG_MIN_CONFIDENCE", 0.4),
		},

		Cache: CacheConfig{
			FastCapacity: getEnvAsInt("CACHE_FAST_CAPACITY", 512),
			SnapshotTTL:  getEnvAsDuration("CACHE_SNAPSHOT_TTL", "6h"),
			DiskPath:     getEnv("CACHE_DISK_PATH", "uvscan_cache.db"),
		},

		RateLimit: RateLimitConfig{
			Capacity:   getEnvAsFloat("RATE_LIMIT_CAPACITY", 10),
			RefillRate: getEnvAsFloat("RATE_LIMIT_REFILL_PER_SEC", 5),
		},

		Pool: PoolConfig{
			MinWorkers: getEnvAsInt("POOL_MIN_WORKERS", 2),
			MaxWorkers: getEnvAsInt("POOL_MAX_WORKERS", 16),
			CPUFactor:  getEnvAsInt("POOL_CPU_FACTOR", 2),
		},

		Retry: RetryConfig{
			MaxAttempts: getEnvAsInt("RETRY_MAX_ATTEMPTS", 3),
			BaseDelay:   getEnvAsDuration("RETRY_BASE_DELAY", "500ms"),
			MaxDelay:    getEnvAsDuration("RETRY_MAX_DELAY", "10s"),
			JitterFrac:  getEnvAsFloat("RETRY_JITTER_FRAC", 0.2),
		},

		Provider: ProviderConfig{
			BaseURL:        getEnv("PROVIDER_BASE_URL", "https://api.uvscan-data.io/v1"),
			APIKey:         getEnv("PROVIDER_API_KEY", ""),
			Timeout:        getEnvAsDuration("PROVIDER_TIMEOUT", "15s"),
			RequestsPerSec: getEnvAsFloat("PROVIDER_REQUESTS_PER_SEC", 8),
			Burst:          getEnvAsInt("PROVIDER_BURST", 4),
			ScrapeBaseURL:  getEnv("PROVIDER_SCRAPE_BASE_URL", ""),
		},

		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			Enabled:         getEnvAsBool("DATABASE_ENABLED", false),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		Scheduler: SchedulerConfig{
			Enabled:  getEnvAsBool("SCHEDULER_ENABLED", false),
			CronSpec: getEnv("SCHEDULER_CRON", "0 18 * * MON-FRI"),
			Symbols:  getEnv("SCHEDULER_SYMBOLS", ""),
		},

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		// Monitoring
		MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if configuration values are consistent
func (c *Config) validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	// Weights must sum to 1.0, never silently renormalized
	if sum := c.Weights.Sum(); math.Abs(sum-1.0) > 0.001 {
		return fmt.Errorf("scoring weights must sum to 1.0, got %.4f", sum)
	}

	if c.Pool.MaxWorkers < 1 {
		return fmt.Errorf("POOL_MAX_WORKERS must be >= 1")
	}
	if c.Pool.MinWorkers < 1 || c.Pool.MinWorkers > c.Pool.MaxWorkers {
		return fmt.Errorf("POOL_MIN_WORKERS must be in [1, POOL_MAX_WORKERS]")
	}

	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("RETRY_MAX_ATTEMPTS must be >= 1")
	}
	if c.Retry.JitterFrac < 0 || c.Retry.JitterFrac > 1 {
		return fmt.Errorf("RETRY_JITTER_FRAC must be in [0, 1]")
	}

	if c.Cache.FastCapacity < 1 {
		return fmt.Errorf("CACHE_FAST_CAPACITY must be >= 1")
	}

	if c.RateLimit.Capacity <= 0 {
		return fmt.Errorf("RATE_LIMIT_CAPACITY must be > 0")
	}
	// RefillRate <= 0 is tolerated: the limiter substitutes a safe floor

	if c.Database.Enabled && c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required when DATABASE_ENABLED=true")
	}

	if c.Scheduler.Enabled && c.Scheduler.Symbols == "" {
		return fmt.Errorf("SCHEDULER_SYMBOLS is required when SCHEDULER_ENABLED=true")
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{
		".env", // Current directory
	}

	// Also try relative to executable
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
