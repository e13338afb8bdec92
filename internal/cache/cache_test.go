package cache

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/uvscan/internal/contracts"
	"github.com/wonny/uvscan/pkg/logger"
)

// memStore is an in-memory Store for unit tests
type memStore struct {
	mu   sync.Mutex
	data map[string]memEntry
}

type memEntry struct {
	snap     *contracts.FinancialSnapshot
	expireAt time.Time
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string]memEntry)}
}

func (s *memStore) Get(ctx context.Context, key string) (*contracts.FinancialSnapshot, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.data[key]
	if !ok || time.Now().After(e.expireAt) {
		return nil, false, nil
	}
	return e.snap, true, nil
}

func (s *memStore) Set(ctx context.Context, key string, snap *contracts.FinancialSnapshot, expireAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = memEntry{snap: snap, expireAt: expireAt}
	return nil
}

func (s *memStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *memStore) Close() error { return nil }

func snapshot(symbol string) *contracts.FinancialSnapshot {
	return &contracts.FinancialSnapshot{
		Symbol:    symbol,
		FetchedAt: time.Now(),
	}
}

func TestCache_SetThenGet(t *testing.T) {
	c := New(10, newMemStore(), nil, logger.NewNop())
	ctx := context.Background()

	c.Set(ctx, "snapshot:AAPL", snapshot("AAPL"), time.Minute)

	got, ok := c.Get(ctx, "snapshot:AAPL")
	require.True(t, ok)
	assert.Equal(t, "AAPL", got.Symbol)
}

func TestCache_MissOnUnknownKey(t *testing.T) {
	c := New(10, newMemStore(), nil, logger.NewNop())

	_, ok := c.Get(context.Background(), "snapshot:NOPE")
	assert.False(t, ok)
}

func TestCache_ExpiredEntryIsMiss(t *testing.T) {
	c := New(10, newMemStore(), nil, logger.NewNop())
	ctx := context.Background()

	c.Set(ctx, "snapshot:AAPL", snapshot("AAPL"), 10*time.Millisecond)
	time.Sleep(30 * time.Millisecond)

	_, ok := c.Get(ctx, "snapshot:AAPL")
	assert.False(t, ok, "expired entries must read as absent")
}

func TestCache_PersistentHitPromotesToFastTier(t *testing.T) {
	store := newMemStore()
	c := New(10, store, nil, logger.NewNop())
	ctx := context.Background()

	// Seed only the persistent tier
	require.NoError(t, store.Set(ctx, "snapshot:AAPL", snapshot("AAPL"), time.Now().Add(time.Minute)))
	assert.Equal(t, 0, c.FastLen())

	got, ok := c.Get(ctx, "snapshot:AAPL")
	require.True(t, ok)
	assert.Equal(t, "AAPL", got.Symbol)
	assert.Equal(t, 1, c.FastLen(), "persistent hit should be promoted")
}

func TestFastTier_EvictsLeastRecentlyUsed(t *testing.T) {
	c := New(2, newMemStore(), nil, logger.NewNop())
	ctx := context.Background()

	c.Set(ctx, "a", snapshot("A"), time.Minute)
	time.Sleep(5 * time.Millisecond)
	c.Set(ctx, "b", snapshot("B"), time.Minute)
	time.Sleep(5 * time.Millisecond)

	// Touch "a" so "b" becomes least recently used
	_, ok := c.Get(ctx, "a")
	require.True(t, ok)
	time.Sleep(5 * time.Millisecond)

	c.Set(ctx, "c", snapshot("C"), time.Minute)

	assert.Equal(t, 2, c.FastLen())
	_, ok = c.fast.get("b")
	assert.False(t, ok, "LRU entry should have been evicted")
	_, ok = c.fast.get("a")
	assert.True(t, ok)
	_, ok = c.fast.get("c")
	assert.True(t, ok)
}

func TestGetOrFetch_SingleFlight(t *testing.T) {
	c := New(10, newMemStore(), nil, logger.NewNop())
	ctx := context.Background()

	var calls int32
	fn := func(ctx context.Context) (*contracts.FinancialSnapshot, error) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(50 * time.Millisecond)
		return snapshot("AAPL"), nil
	}

	const waiters = 8
	var wg sync.WaitGroup
	errs := make([]error, waiters)
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			snap, err := c.GetOrFetch(ctx, "snapshot:AAPL", time.Minute, fn)
			if err == nil && snap.Symbol != "AAPL" {
				err = errors.New("wrong snapshot")
			}
			errs[i] = err
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "waiter %d", i)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "concurrent misses must collapse to one fetch")
}

func TestGetOrFetch_ErrorNotCached(t *testing.T) {
	c := New(10, newMemStore(), nil, logger.NewNop())
	ctx := context.Background()

	var calls int32
	boom := errors.New("provider down")
	fn := func(ctx context.Context) (*contracts.FinancialSnapshot, error) {
		atomic.AddInt32(&calls, 1)
		return nil, boom
	}

	_, err := c.GetOrFetch(ctx, "snapshot:AAPL", time.Minute, fn)
	assert.ErrorIs(t, err, boom)

	// A later call must try again
	_, err = c.GetOrFetch(ctx, "snapshot:AAPL", time.Minute, fn)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestGetOrFetch_CachedValueSkipsFetch(t *testing.T) {
	c := New(10, newMemStore(), nil, logger.NewNop())
	ctx := context.Background()

	c.Set(ctx, "snapshot:AAPL", snapshot("AAPL"), time.Minute)

	snap, err := c.GetOrFetch(ctx, "snapshot:AAPL", time.Minute, func(ctx context.Context) (*contracts.FinancialSnapshot, error) {
		t.Fatal("fetch must not run on a cache hit")
		return nil, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "AAPL", snap.Symbol)
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	ctx := context.Background()

	store, err := NewSQLiteStore(path, logger.NewNop())
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, "snapshot:AAPL", snapshot("AAPL"), time.Now().Add(time.Hour)))
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteStore(path, logger.NewNop())
	require.NoError(t, err)
	defer reopened.Close()

	snap, found, err := reopened.Get(ctx, "snapshot:AAPL")
	require.NoError(t, err)
	require.True(t, found, "entry should survive a reopen")
	assert.Equal(t, "AAPL", snap.Symbol)
}

func TestSQLiteStore_ExpiredRowIsMiss(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	ctx := context.Background()

	store, err := NewSQLiteStore(path, logger.NewNop())
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Set(ctx, "snapshot:AAPL", snapshot("AAPL"), time.Now().Add(-time.Minute)))

	_, found, err := store.Get(ctx, "snapshot:AAPL")
	require.NoError(t, err)
	assert.False(t, found)

	total, _, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, total, "expired row should be deleted on read")
}

func TestSQLiteStore_CorruptPayloadIsPurgedAsMiss(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	ctx := context.Background()

	store, err := NewSQLiteStore(path, logger.NewNop())
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Set(ctx, "snapshot:AAPL", snapshot("AAPL"), time.Now().Add(time.Hour)))

	// Corrupt the payload behind the store's back
	raw, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = raw.Exec("UPDATE snapshots SET payload = ? WHERE key = ?", []byte("{not json"), "snapshot:AAPL")
	require.NoError(t, err)
	require.NoError(t, raw.Close())

	_, found, err := store.Get(ctx, "snapshot:AAPL")
	require.NoError(t, err, "corruption must surface as a miss, not an error")
	assert.False(t, found)

	total, _, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, total, "corrupt row should be purged")
}

func TestSQLiteStore_Purge(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	ctx := context.Background()

	store, err := NewSQLiteStore(path, logger.NewNop())
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Set(ctx, "a", snapshot("A"), time.Now().Add(time.Hour)))
	require.NoError(t, store.Set(ctx, "b", snapshot("B"), time.Now().Add(time.Hour)))

	deleted, err := store.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	total, _, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, total)
}
