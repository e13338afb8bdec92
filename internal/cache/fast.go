package cache

import (
	"sync"
	"time"

	"github.com/wonny/uvscan/internal/contracts"
)

type fastEntry struct {
	snap     *contracts.FinancialSnapshot
	expireAt time.Time
}

// fastTier is the bounded in-memory tier with LRU eviction.
// Expiry is checked lazily at access time; expired entries are
// treated as absent and purged on the spot.
type fastTier struct {
	mu       sync.Mutex
	data     map[string]*fastEntry
	access   map[string]time.Time
	capacity int
}

func newFastTier(capacity int) *fastTier {
	if capacity < 1 {
		capacity = 1
	}
	return &fastTier{
		data:     make(map[string]*fastEntry),
		access:   make(map[string]time.Time),
		capacity: capacity,
	}
}

func (t *fastTier) get(key string) (*contracts.FinancialSnapshot, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.data[key]
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expireAt) {
		delete(t.data, key)
		delete(t.access, key)
		return nil, false
	}

	t.access[key] = time.Now()
	return entry.snap, true
}

func (t *fastTier) set(key string, snap *contracts.FinancialSnapshot, expireAt time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.data[key]; !exists && len(t.data) >= t.capacity {
		t.evictLRU()
	}

	t.data[key] = &fastEntry{snap: snap, expireAt: expireAt}
	t.access[key] = time.Now()
}

func (t *fastTier) delete(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.data, key)
	delete(t.access, key)
}

func (t *fastTier) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.data)
}

// evictLRU removes the least recently accessed entry.
// LRU eviction is independent of TTL. Caller must hold t.mu.
func (t *fastTier) evictLRU() {
	var oldestKey string
	var oldestTime time.Time

	for key, accessed := range t.access {
		if oldestKey == "" || accessed.Before(oldestTime) {
			oldestKey = key
			oldestTime = accessed
		}
	}

	if oldestKey != "" {
		delete(t.data, oldestKey)
		delete(t.access, oldestKey)
	}
}
