package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type style map[string]string

func newTestCache(t *testing.T, cfg Config, opts ...Option) *Cache[style] {
	t.Helper()
	if cfg.CleanupInterval == 0 {
		cfg.CleanupInterval = -1
	}
	opts = append([]Option{WithLogger(zerolog.Nop())}, opts...)
	c := New[style](cfg, opts...)
	t.Cleanup(c.Destroy)
	return c
}

func TestSetGetRoundTrip(t *testing.T) {
	c := newTestCache(t, Config{MaxSize: 10})

	_, ok := c.Get("missing")
	require.False(t, ok)

	c.Set("button", style{"color": "red"})
	got, ok := c.Get("button")
	require.True(t, ok)
	require.Equal(t, style{"color": "red"}, got)

	c.Set("button", style{"color": "blue"})
	got, _ = c.Get("button")
	require.Equal(t, style{"color": "blue"}, got)
	require.Equal(t, 1, c.Len())
}

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	c := newTestCache(t, Config{MaxSize: 2})

	c.Set("a", style{"v": "a"})
	c.Set("b", style{"v": "b"})
	_, ok := c.Get("a")
	require.True(t, ok)
	c.Set("c", style{"v": "c"})

	require.True(t, c.Has("a"))
	require.False(t, c.Has("b"))
	require.True(t, c.Has("c"))
	require.Equal(t, int64(1), c.Stats().Evictions)
}

func TestOverwriteDoesNotEvict(t *testing.T) {
	c := newTestCache(t, Config{MaxSize: 2})
	c.Set("a", style{})
	c.Set("b", style{})
	c.Set("a", style{"v": "2"})

	require.Equal(t, []string{"a", "b"}, c.Keys())
	require.Zero(t, c.Stats().Evictions)
}

func TestHasDoesNotRefreshRecency(t *testing.T) {
	c := newTestCache(t, Config{MaxSize: 2})
	c.Set("a", style{})
	c.Set("b", style{})

	require.True(t, c.Has("a"))
	c.Set("c", style{})

	require.False(t, c.Has("a"))
	require.True(t, c.Has("b"))
}

func TestSizeNeverExceedsMax(t *testing.T) {
	const maxSize = 7
	c := newTestCache(t, Config{MaxSize: maxSize})

	for i := 0; i < 200; i++ {
		c.Set(fmt.Sprintf("k%d", i%23), style{"i": fmt.Sprint(i)})
		if i%3 == 0 {
			c.Get(fmt.Sprintf("k%d", (i*7)%23))
		}
		require.LessOrEqual(t, c.Len(), maxSize)
	}
}

func TestEmptyKeyIsEvictable(t *testing.T) {
	c := newTestCache(t, Config{MaxSize: 1})
	c.Set("", style{"v": "empty"})
	c.Set("a", style{"v": "a"})

	require.LessOrEqual(t, c.Len(), 1)
	require.False(t, c.Has(""))
	require.True(t, c.Has("a"))
	require.Equal(t, int64(1), c.Stats().Evictions)
}

func TestEmptyKeyEvictedWhenLeastRecent(t *testing.T) {
	c := newTestCache(t, Config{MaxSize: 2})
	c.Set("", style{})
	c.Set("b", style{})
	_, ok := c.Get("b")
	require.True(t, ok)
	c.Set("c", style{})

	require.Equal(t, 2, c.Len())
	require.False(t, c.Has(""))
	require.True(t, c.Has("b"))
	require.True(t, c.Has("c"))
}

func TestTTLExpiry(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(t, Config{MaxSize: 1, TTL: 1000 * time.Millisecond}, WithClock(clock.Now))

	c.Set("x", style{"color": "red"})
	got, ok := c.Get("x")
	require.True(t, ok)
	require.Equal(t, style{"color": "red"}, got)

	clock.Advance(1000 * time.Millisecond)
	_, ok = c.Get("x")
	require.True(t, ok, "entry is still fresh at exactly its ttl")

	clock.Advance(1 * time.Millisecond)
	_, ok = c.Get("x")
	require.False(t, ok)
	require.Zero(t, c.Len())

	stats := c.Stats()
	require.Equal(t, int64(2), stats.Hits)
	require.Equal(t, int64(1), stats.Misses)
	require.Equal(t, int64(1), stats.Expirations)
}

func TestSetWithTTL(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(t, Config{MaxSize: 5, TTL: time.Minute}, WithClock(clock.Now))

	c.SetWithTTL("short", style{}, time.Second)
	c.SetWithTTL("forever", style{}, 0)
	c.Set("default", style{})

	clock.Advance(2 * time.Second)
	require.False(t, c.Has("short"))
	require.True(t, c.Has("default"))

	clock.Advance(time.Hour)
	require.False(t, c.Has("default"))
	require.True(t, c.Has("forever"))
}

func TestCleanupSweepsExpired(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(t, Config{MaxSize: 10, TTL: time.Second}, WithClock(clock.Now))

	c.Set("a", style{})
	c.Set("b", style{})
	clock.Advance(500 * time.Millisecond)
	c.Set("c", style{})
	clock.Advance(600 * time.Millisecond)

	require.Equal(t, 2, c.Cleanup())
	require.Equal(t, []string{"c"}, c.Keys())
	require.Zero(t, c.Cleanup())
}

func TestCleanupTimer(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(t, Config{MaxSize: 10, TTL: time.Second, CleanupInterval: 10 * time.Millisecond}, WithClock(clock.Now))

	c.Set("a", style{})
	clock.Advance(2 * time.Second)

	require.Eventually(t, func() bool { return c.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestIterationSkipsExpired(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(t, Config{MaxSize: 10, TTL: time.Second}, WithClock(clock.Now))

	c.Set("old", style{"v": "old"})
	clock.Advance(2 * time.Second)
	c.Set("b", style{"v": "b"})
	c.Set("a", style{"v": "a"})

	require.Equal(t, []string{"b", "a"}, c.Keys())
	require.Equal(t, []style{{"v": "b"}, {"v": "a"}}, c.Values())

	entries := c.Entries()
	require.Len(t, entries, 2)
	require.Equal(t, "b", entries[0].Key)
	require.Equal(t, clock.Now(), entries[0].Entry.InsertedAt)
	require.Equal(t, 2, c.Len())
}

func TestDelete(t *testing.T) {
	c := newTestCache(t, Config{MaxSize: 10})
	c.Set("a", style{})

	require.True(t, c.Delete("a"))
	require.False(t, c.Delete("a"))
	require.Equal(t, int64(1), c.Stats().Deletes)
}

func TestStats(t *testing.T) {
	c := newTestCache(t, Config{MaxSize: 10})

	require.Zero(t, c.Stats().HitRate)

	c.Set("a", style{"color": "red"})
	c.Get("a")
	c.Get("a")
	c.Get("a")
	c.Get("missing")

	stats := c.Stats()
	require.Equal(t, int64(3), stats.Hits)
	require.Equal(t, int64(1), stats.Misses)
	require.Equal(t, int64(1), stats.Sets)
	require.Equal(t, 1, stats.Size)
	require.Equal(t, 10, stats.MaxSize)
	require.InDelta(t, 0.75, stats.HitRate, 1e-9)
	require.Greater(t, stats.MemoryUsage, int64(len(`{"color":"red"}`)))

	c.Clear()
	stats = c.Stats()
	require.Zero(t, stats.Hits)
	require.Zero(t, stats.Sets)
	require.Zero(t, stats.Size)
	require.Equal(t, int64(1), stats.Clears)
}

func TestClearResetsRecencyCounter(t *testing.T) {
	c := newTestCache(t, Config{MaxSize: 2})
	c.Set("a", style{})
	c.Get("a")
	c.Clear()

	c.Set("x", style{})
	c.Set("y", style{})
	c.Get("x")
	c.Set("z", style{})
	require.Equal(t, []string{"x", "z"}, c.Keys())
}

func TestPersistenceDebounceCoalescesWrites(t *testing.T) {
	storage := NewMemoryStorage()
	c := newTestCache(t, Config{
		MaxSize:           100,
		EnablePersistence: true,
		StorageKey:        "styles",
		PersistDebounce:   30 * time.Millisecond,
	}, WithStorage(storage))

	for i := 0; i < 50; i++ {
		c.Set(fmt.Sprintf("k%d", i), style{"i": fmt.Sprint(i)})
	}
	c.Delete("k0")

	require.Eventually(t, func() bool { return storage.Writes() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	require.Equal(t, 1, storage.Writes())

	restored := newTestCache(t, Config{MaxSize: 100, EnablePersistence: true, StorageKey: "styles"}, WithStorage(storage))
	require.Equal(t, 49, restored.Len())
	got, ok := restored.Get("k42")
	require.True(t, ok)
	require.Equal(t, style{"i": "42"}, got)
}

func TestPersistenceRestoreDropsExpired(t *testing.T) {
	clock := newFakeClock()
	storage := NewMemoryStorage()
	cfg := Config{MaxSize: 10, TTL: time.Minute, EnablePersistence: true, StorageKey: "styles"}

	first := newTestCache(t, cfg, WithStorage(storage), WithClock(clock.Now))
	first.SetWithTTL("short", style{}, time.Second)
	first.Set("long", style{"v": "kept"})
	require.NoError(t, first.Flush(context.Background()))
	first.Destroy()

	clock.Advance(5 * time.Second)
	second := newTestCache(t, cfg, WithStorage(storage), WithClock(clock.Now))
	require.Equal(t, []string{"long"}, second.Keys())

	clock.Advance(time.Minute)
	require.False(t, second.Has("long"))
}

func TestPersistenceRestoreRespectsMaxSize(t *testing.T) {
	clock := newFakeClock()
	storage := NewMemoryStorage()

	first := newTestCache(t, Config{MaxSize: 5, EnablePersistence: true}, WithStorage(storage), WithClock(clock.Now))
	for _, key := range []string{"a", "b", "c", "d"} {
		first.Set(key, style{})
		clock.Advance(time.Millisecond)
	}
	require.NoError(t, first.Flush(context.Background()))

	second := newTestCache(t, Config{MaxSize: 2, EnablePersistence: true}, WithStorage(storage), WithClock(clock.Now))
	require.Equal(t, []string{"c", "d"}, second.Keys())
}

func TestCorruptSnapshotIsDiscarded(t *testing.T) {
	storage := NewMemoryStorage()
	require.NoError(t, storage.Write(context.Background(), "styles", []byte("{not json")))

	c := newTestCache(t, Config{MaxSize: 10, EnablePersistence: true, StorageKey: "styles"}, WithStorage(storage))
	require.Zero(t, c.Len())

	_, err := storage.Read(context.Background(), "styles")
	require.ErrorIs(t, err, ErrNotFound)

	c.Set("a", style{})
	require.True(t, c.Has("a"))
}

func TestClearErasesSnapshotAndCancelsWrite(t *testing.T) {
	storage := NewMemoryStorage()
	c := newTestCache(t, Config{
		MaxSize:           10,
		EnablePersistence: true,
		StorageKey:        "styles",
		PersistDebounce:   30 * time.Millisecond,
	}, WithStorage(storage))

	c.Set("a", style{})
	require.NoError(t, c.Flush(context.Background()))
	c.Set("b", style{})
	c.Clear()

	time.Sleep(80 * time.Millisecond)
	require.Equal(t, 1, storage.Writes())
	_, err := storage.Read(context.Background(), "styles")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDestroyCancelsPendingWrite(t *testing.T) {
	storage := NewMemoryStorage()
	c := newTestCache(t, Config{
		MaxSize:           10,
		EnablePersistence: true,
		PersistDebounce:   20 * time.Millisecond,
		CleanupInterval:   5 * time.Millisecond,
	}, WithStorage(storage))

	c.Set("a", style{})
	c.Destroy()
	c.Destroy()

	time.Sleep(60 * time.Millisecond)
	require.Zero(t, storage.Writes())

	// Entries stay readable; writes after Destroy never schedule persistence.
	require.True(t, c.Has("a"))
	c.Set("b", style{})
	time.Sleep(40 * time.Millisecond)
	require.Zero(t, storage.Writes())
}

type failingStorage struct{}

func (failingStorage) Read(context.Context, string) ([]byte, error) {
	return nil, errors.New("disk on fire")
}

func (failingStorage) Write(context.Context, string, []byte) error {
	return errors.New("disk on fire")
}

func (failingStorage) Delete(context.Context, string) error {
	return errors.New("disk on fire")
}

func TestStorageFailuresStayLocal(t *testing.T) {
	c := newTestCache(t, Config{
		MaxSize:           10,
		EnablePersistence: true,
		PersistDebounce:   5 * time.Millisecond,
	}, WithStorage(failingStorage{}))

	c.Set("a", style{"v": "1"})
	time.Sleep(30 * time.Millisecond)

	got, ok := c.Get("a")
	require.True(t, ok)
	require.Equal(t, style{"v": "1"}, got)
	require.Error(t, c.Flush(context.Background()))

	c.Clear()
	require.Zero(t, c.Len())
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	require.Equal(t, 200, cfg.MaxSize)
	require.Equal(t, "themekit-style-cache", cfg.StorageKey)
	require.Equal(t, time.Second, cfg.PersistDebounce)
	require.Equal(t, time.Minute, cfg.CleanupInterval)
	require.Zero(t, cfg.TTL)

	require.Equal(t, 5*time.Minute, DefaultConfig().TTL)
}
