package commands

import (
	"context"
	"fmt"

	"github.com/wonny/uvscan/internal/cache"
	"github.com/wonny/uvscan/internal/eligibility"
	"github.com/wonny/uvscan/internal/fetcher"
	"github.com/wonny/uvscan/internal/pipeline"
	"github.com/wonny/uvscan/internal/provider"
	"github.com/wonny/uvscan/internal/ratelimit"
	"github.com/wonny/uvscan/internal/results"
	"github.com/wonny/uvscan/internal/scoring"
	"github.com/wonny/uvscan/internal/style"
	"github.com/wonny/uvscan/pkg/config"
	"github.com/wonny/uvscan/pkg/database"
	"github.com/wonny/uvscan/pkg/httputil"
	"github.com/wonny/uvscan/pkg/logger"
	"github.com/wonny/uvscan/pkg/metrics"
)

// stack is the fully wired pipeline plus its supporting pieces.
// Built once per command, torn down via close().
type stack struct {
	cfg     *config.Config
	logger  *logger.Logger
	metrics *metrics.Recorder
	cache   *cache.Cache
	runner  *pipeline.Runner
	repo    *results.Repository // nil when DATABASE_ENABLED=false

	db *database.DB
}

// buildStack wires the whole pipeline from config
func buildStack(ctx context.Context) (*stack, error) {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	// 2. Initialize logger and metrics
	log := logger.New(cfg)
	rec := metrics.New()

	// 3. Persistent cache tier: Redis when enabled, SQLite otherwise
	var store cache.Store
	if cfg.Redis.Enabled {
		store, err = cache.NewRedisStore(cfg, log)
		if err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
	} else {
		store, err = cache.NewSQLiteStore(cfg.Cache.DiskPath, log)
		if err != nil {
			return nil, fmt.Errorf("open snapshot cache: %w", err)
		}
	}
	snapCache := cache.New(cfg.Cache.FastCapacity, store, rec, log)

	// 4. Rate limiter and HTTP client
	limiter := ratelimit.New(cfg.RateLimit.Capacity, cfg.RateLimit.RefillRate, rec, log)
	httpClient := httputil.New(cfg.Provider.Timeout, log).WithBreaker("provider")
	if cfg.Provider.RequestsPerSec > 0 {
		httpClient = httpClient.WithRateLimit(cfg.Provider.RequestsPerSec, cfg.Provider.Burst)
	}

	// 5. Provider and fetcher
	prov := provider.NewRESTClient(cfg, httpClient, log)
	fetch, err := fetcher.New(snapCache, limiter, prov, cfg.Retry, cfg.Cache.SnapshotTTL, rec, log)
	if err != nil {
		snapCache.Close()
		return nil, fmt.Errorf("invalid retry policy: %w", err)
	}

	// 6. Analysis stages
	calc, err := scoring.NewCalculator(cfg.Weights)
	if err != nil {
		snapCache.Close()
		return nil, fmt.Errorf("invalid score weights: %w", err)
	}
	classifier := style.NewClassifier(log)
	filter, err := eligibility.NewFilter(cfg.Eligibility, log)
	if err != nil {
		snapCache.Close()
		return nil, fmt.Errorf("invalid eligibility thresholds: %w", err)
	}

	runner := pipeline.NewRunner(fetch, calc, classifier, filter, cfg.Pool, rec, log)

	s := &stack{
		cfg:     cfg,
		logger:  log,
		metrics: rec,
		cache:   snapCache,
		runner:  runner,
	}

	// 7. Optional result persistence
	if cfg.Database.Enabled {
		db, err := database.New(cfg)
		if err != nil {
			s.close()
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		s.db = db
		s.repo = results.NewRepository(db.Pool)
		if err := s.repo.Schema(ctx); err != nil {
			s.close()
			return nil, fmt.Errorf("ensure result schema: %w", err)
		}
	}

	return s, nil
}

func (s *stack) close() {
	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			s.logger.WithError(err).Warn("Failed to close snapshot cache")
		}
	}
	if s.db != nil {
		s.db.Close()
	}
}
