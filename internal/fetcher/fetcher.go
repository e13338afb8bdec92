package fetcher

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/wonny/uvscan/internal/cache"
	"github.com/wonny/uvscan/internal/contracts"
	"github.com/wonny/uvscan/internal/provider"
	"github.com/wonny/uvscan/internal/ratelimit"
	"github.com/wonny/uvscan/pkg/config"
	"github.com/wonny/uvscan/pkg/logger"
	"github.com/wonny/uvscan/pkg/metrics"
)

// Fetcher retrieves per-symbol snapshots: cache first (including the
// single-flight join), then the shared rate limiter, then the
// provider, with retry on transient failures.
// ⭐ SSOT: 심볼 데이터 조회는 여기서만
type Fetcher struct {
	cache    *cache.Cache
	limiter  *ratelimit.Limiter
	provider provider.Provider
	retry    config.RetryConfig
	ttl      time.Duration

	logger  *logger.Logger
	metrics *metrics.Recorder
}

// New creates a Fetcher. The retry policy is an explicit value, not
// decorator wrapping: callers can see exactly what will happen. An
// invalid policy is a configuration error and is rejected here.
func New(
	c *cache.Cache,
	limiter *ratelimit.Limiter,
	p provider.Provider,
	retry config.RetryConfig,
	ttl time.Duration,
	m *metrics.Recorder,
	log *logger.Logger,
) (*Fetcher, error) {
	if retry.MaxAttempts < 1 {
		return nil, &contracts.ConfigError{
			Field:  "retry.max_attempts",
			Reason: fmt.Sprintf("must be >= 1, got %d", retry.MaxAttempts),
		}
	}
	if retry.JitterFrac < 0 || retry.JitterFrac > 1 {
		return nil, &contracts.ConfigError{
			Field:  "retry.jitter_frac",
			Reason: fmt.Sprintf("must be in [0, 1], got %.2f", retry.JitterFrac),
		}
	}
	return &Fetcher{
		cache:    c,
		limiter:  limiter,
		provider: p,
		retry:    retry,
		ttl:      ttl,
		logger:   log.WithField("module", "fetcher"),
		metrics:  m,
	}, nil
}

// CacheKey returns the cache key for a symbol
func CacheKey(symbol string) string {
	return "snapshot:" + symbol
}

// Fetch returns the snapshot for symbol. Concurrent calls for the
// same symbol collapse into one provider fetch; a terminal failure
// comes back as *contracts.FetchFailure, never a process fault.
func (f *Fetcher) Fetch(ctx context.Context, symbol string) (*contracts.FinancialSnapshot, error) {
	if snap, ok := f.cache.Get(ctx, CacheKey(symbol)); ok {
		if f.metrics != nil {
			f.metrics.RecordFetch("cache_hit")
		}
		return snap, nil
	}

	snap, err := f.cache.GetOrFetch(ctx, CacheKey(symbol), f.ttl, func(ctx context.Context) (*contracts.FinancialSnapshot, error) {
		return f.fetchWithRetry(ctx, symbol)
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// fetchWithRetry runs the acquire-then-fetch loop. Transient failures
// back off exponentially with jitter; permanent failures stop
// immediately. Cancellation is checked before each attempt and during
// the backoff sleep, never mid-request.
func (f *Fetcher) fetchWithRetry(ctx context.Context, symbol string) (*contracts.FinancialSnapshot, error) {
	var lastErr *contracts.FetchError
	attempts := 0

	for attempt := 1; attempt <= f.retry.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, f.failure(symbol, contracts.FetchCancelled, attempts, err)
		}

		if err := f.limiter.Acquire(ctx, 1); err != nil {
			return nil, f.failure(symbol, contracts.FetchCancelled, attempts, err)
		}

		start := time.Now()
		snap, err := f.provider.Fetch(ctx, symbol)
		attempts++
		if f.metrics != nil {
			f.metrics.RecordFetchDuration(time.Since(start).Seconds())
		}

		if err == nil {
			if f.metrics != nil {
				f.metrics.RecordFetch("success")
			}
			return snap, nil
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, f.failure(symbol, contracts.FetchCancelled, attempts, err)
		}

		var fe *contracts.FetchError
		if !errors.As(err, &fe) {
			fe = contracts.NewFetchError(contracts.FetchServerError, err)
		}
		lastErr = fe

		if !fe.Kind.Transient() {
			// Unknown symbol, malformed payload: retrying cannot help
			break
		}
		if attempt == f.retry.MaxAttempts {
			break
		}

		delay := f.backoff(attempt)
		f.logger.WithFields(map[string]interface{}{
			"symbol":  symbol,
			"attempt": attempt,
			"kind":    fe.Kind,
			"delay":   delay,
		}).Warn("Retrying fetch")
		if f.metrics != nil {
			f.metrics.RecordRetry()
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, f.failure(symbol, contracts.FetchCancelled, attempts, ctx.Err())
		case <-timer.C:
		}
	}

	return nil, f.failure(symbol, lastErr.Kind, attempts, lastErr)
}

// backoff returns the exponential delay for attempt (1-based) with
// a symmetric jitter of up to ±JitterFrac
func (f *Fetcher) backoff(attempt int) time.Duration {
	delay := f.retry.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= f.retry.MaxDelay {
			delay = f.retry.MaxDelay
			break
		}
	}

	if f.retry.JitterFrac > 0 {
		jitter := 1 + f.retry.JitterFrac*(2*rand.Float64()-1)
		delay = time.Duration(float64(delay) * jitter)
	}
	if delay > f.retry.MaxDelay {
		delay = f.retry.MaxDelay
	}
	return delay
}

func (f *Fetcher) failure(symbol string, kind contracts.FetchErrorKind, attempts int, err error) *contracts.FetchFailure {
	if f.metrics != nil {
		f.metrics.RecordFetch("failure")
	}

	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}

	failure := &contracts.FetchFailure{
		Symbol:   symbol,
		Kind:     kind,
		Attempts: attempts,
		LastErr:  msg,
	}

	f.logger.WithFields(map[string]interface{}{
		"symbol":   symbol,
		"kind":     kind,
		"attempts": attempts,
		"last_err": msg,
	}).Error(fmt.Sprintf("Fetch failed for %s", symbol))

	return failure
}
