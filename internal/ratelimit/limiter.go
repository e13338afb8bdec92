package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wonny/uvscan/pkg/logger"
	"github.com/wonny/uvscan/pkg/metrics"
)

// minRefillRate is substituted when a non-positive rate is configured,
// so the limiter degrades to slow progress instead of stalling forever.
const minRefillRate = 0.1

// Limiter is a token bucket shared by all fetch tasks.
// Refill is computed lazily from elapsed time at call time; there is
// no background timer. Tokens stay within [0, capacity].
// ⭐ SSOT: 외부 API 호출 속도 제한은 여기서만
type Limiter struct {
	mu         sync.Mutex
	tokens     float64
	capacity   float64
	refillRate float64 // tokens per second
	last       time.Time

	logger  *logger.Logger
	metrics *metrics.Recorder
}

// New creates a token bucket limiter. A rate <= 0 is a
// misconfiguration and is replaced by the floor rate with a warning.
func New(capacity, refillPerSec float64, m *metrics.Recorder, log *logger.Logger) *Limiter {
	if capacity < 1 {
		capacity = 1
	}
	if refillPerSec <= 0 {
		log.Warnf("rate limiter configured with rate %.2f/s, using floor %.2f/s", refillPerSec, minRefillRate)
		refillPerSec = minRefillRate
	}

	return &Limiter{
		tokens:     capacity,
		capacity:   capacity,
		refillRate: refillPerSec,
		last:       time.Now(),
		logger:     log,
		metrics:    m,
	}
}

// Acquire blocks until n tokens are available or ctx is cancelled.
// Concurrent waiters may claim replenished tokens first, so a waiter
// always re-checks after waking instead of assuming its tokens exist.
func (l *Limiter) Acquire(ctx context.Context, n float64) error {
	if n > l.capacity {
		return fmt.Errorf("acquire %.1f tokens exceeds bucket capacity %.1f", n, l.capacity)
	}

	waited := false
	for {
		l.mu.Lock()
		l.refillLocked(time.Now())

		if l.tokens >= n {
			l.tokens -= n
			l.mu.Unlock()
			return nil
		}

		// Minimal wait for the missing tokens
		missing := n - l.tokens
		wait := time.Duration(missing / l.refillRate * float64(time.Second))
		l.mu.Unlock()

		if !waited {
			waited = true
			if l.metrics != nil {
				l.metrics.RecordRateLimitWait()
			}
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// refillLocked adds tokens for the elapsed time, capped at capacity.
// Caller must hold l.mu.
func (l *Limiter) refillLocked(now time.Time) {
	elapsed := now.Sub(l.last).Seconds()
	if elapsed <= 0 {
		return
	}
	l.tokens += elapsed * l.refillRate
	if l.tokens > l.capacity {
		l.tokens = l.capacity
	}
	l.last = now
}

// Tokens returns the current token count after a lazy refill
func (l *Limiter) Tokens() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refillLocked(time.Now())
	return l.tokens
}

// Capacity returns the configured bucket capacity
func (l *Limiter) Capacity() float64 {
	return l.capacity
}
