// Package cache provides a bounded, expiring key/value cache with LRU
// eviction and optional snapshot persistence.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/opencode-ai/themekit/internal/logging"
	"github.com/rs/zerolog"
)

const (
	snapshotVersion = 1

	// entryOverhead approximates per-entry bookkeeping in MemoryUsage.
	entryOverhead = 64
)

// Entry is a cached value with its insertion time and lifetime.
type Entry[V any] struct {
	Value      V             `json:"value"`
	InsertedAt time.Time     `json:"inserted_at"`
	TTL        time.Duration `json:"ttl,omitempty"`
}

func (e Entry[V]) expired(now time.Time) bool {
	return e.TTL > 0 && now.Sub(e.InsertedAt) > e.TTL
}

type item[V any] struct {
	entry   Entry[V]
	recency uint64
	seq     uint64
}

type snapshot[V any] struct {
	Version int                 `json:"version"`
	Entries map[string]Entry[V] `json:"entries"`
}

// Stats contains cache statistics.
type Stats struct {
	Hits        int64
	Misses      int64
	Sets        int64
	Deletes     int64
	Clears      int64
	Evictions   int64
	Expirations int64
	Size        int
	MaxSize     int
	HitRate     float64
	MemoryUsage int64
}

// Option configures a Cache.
type Option func(*options)

type options struct {
	storage Storage
	now     func() time.Time
	logger  *zerolog.Logger
}

// WithStorage sets the persistence backend.
func WithStorage(storage Storage) Option {
	return func(o *options) {
		o.storage = storage
	}
}

// WithClock overrides the time source used for expiry.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithLogger sets the cache logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = &logger
	}
}

// Cache is a bounded key/value store. Entries expire after their TTL and the
// least recently used entry is evicted when the cache is full. It is safe for
// concurrent use.
type Cache[V any] struct {
	config  Config
	storage Storage
	now     func() time.Time
	logger  zerolog.Logger

	mu        sync.Mutex
	items     map[string]*item[V]
	counter   uint64
	seq       uint64
	stats     Stats
	destroyed bool

	// persistence
	persistMu    sync.Mutex
	persistTimer *time.Timer
	persistGen   uint64

	stopCleanup chan struct{}
	cleanupDone chan struct{}
}

// New creates a cache. With persistence enabled and a storage backend set,
// a previously written snapshot is restored; unusable snapshots are discarded.
func New[V any](config Config, opts ...Option) *Cache[V] {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	c := &Cache[V]{
		config:  config.withDefaults(),
		storage: o.storage,
		now:     o.now,
		items:   make(map[string]*item[V]),
	}
	if o.logger != nil {
		c.logger = *o.logger
	} else {
		c.logger = logging.Component("style-cache")
	}

	if c.persistent() {
		c.load(context.Background())
	}

	if c.config.CleanupInterval > 0 {
		c.stopCleanup = make(chan struct{})
		c.cleanupDone = make(chan struct{})
		go c.runCleanup(c.config.CleanupInterval)
	}
	return c
}

// Config returns the effective configuration.
func (c *Cache[V]) Config() Config {
	return c.config
}

// Get returns the value for key. Expired entries are removed and reported as
// misses.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	it, ok := c.items[key]
	if !ok {
		c.stats.Misses++
		return zero, false
	}
	if it.entry.expired(c.now()) {
		c.removeLocked(key)
		c.stats.Expirations++
		c.stats.Misses++
		c.schedulePersistLocked()
		return zero, false
	}

	it.recency = c.touchLocked()
	c.stats.Hits++
	return it.entry.Value, true
}

// Set stores value under key with the configured TTL.
func (c *Cache[V]) Set(key string, value V) {
	c.SetWithTTL(key, value, c.config.TTL)
}

// SetWithTTL stores value under key with its own lifetime. A ttl of zero
// means the entry never expires.
func (c *Cache[V]) SetWithTTL(key string, value V, ttl time.Duration) {
	if ttl < 0 {
		ttl = 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	it, exists := c.items[key]
	if !exists {
		if len(c.items) >= c.config.MaxSize {
			c.evictLocked()
		}
		c.seq++
		it = &item[V]{seq: c.seq}
		c.items[key] = it
	}

	it.entry = Entry[V]{Value: value, InsertedAt: c.now(), TTL: ttl}
	it.recency = c.touchLocked()
	c.stats.Sets++
	c.schedulePersistLocked()
}

// Has reports whether key holds a fresh entry. It does not count as an
// access for LRU purposes, but it does remove an expired entry.
func (c *Cache[V]) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	it, ok := c.items[key]
	if !ok {
		return false
	}
	if it.entry.expired(c.now()) {
		c.removeLocked(key)
		c.stats.Expirations++
		c.schedulePersistLocked()
		return false
	}
	return true
}

// Delete removes key and reports whether it was present.
func (c *Cache[V]) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.items[key]; !ok {
		return false
	}
	c.removeLocked(key)
	c.stats.Deletes++
	c.schedulePersistLocked()
	return true
}

// Clear removes every entry, resets statistics and the recency counter, and
// erases the persisted snapshot. A pending snapshot write is canceled.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	clears := c.stats.Clears + 1
	c.items = make(map[string]*item[V])
	c.counter = 0
	c.seq = 0
	c.stats = Stats{Clears: clears}
	c.cancelPersistLocked()
	persistent := c.persistent() && !c.destroyed
	c.mu.Unlock()

	if !persistent {
		return
	}

	c.persistMu.Lock()
	defer c.persistMu.Unlock()
	if err := c.storage.Delete(context.Background(), c.config.StorageKey); err != nil {
		c.logger.Warn().Err(err).Str("storage_key", c.config.StorageKey).Msg("failed to erase cache snapshot")
	}
}

// Len returns the number of stored entries, including any that have expired
// but not yet been swept.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Keys returns fresh keys in insertion order.
func (c *Cache[V]) Keys() []string {
	entries := c.freshSorted()
	keys := make([]string, len(entries))
	for i, e := range entries {
		keys[i] = e.key
	}
	return keys
}

// Values returns fresh values in insertion order.
func (c *Cache[V]) Values() []V {
	entries := c.freshSorted()
	values := make([]V, len(entries))
	for i, e := range entries {
		values[i] = e.entry.Value
	}
	return values
}

// KeyValue is a key with its entry.
type KeyValue[V any] struct {
	Key   string
	Entry Entry[V]
}

// Entries returns fresh entries in insertion order.
func (c *Cache[V]) Entries() []KeyValue[V] {
	entries := c.freshSorted()
	out := make([]KeyValue[V], len(entries))
	for i, e := range entries {
		out[i] = KeyValue[V]{Key: e.key, Entry: e.entry}
	}
	return out
}

type keyedItem[V any] struct {
	key string
	*item[V]
}

func (c *Cache[V]) freshSorted() []keyedItem[V] {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sweepLocked()
	out := make([]keyedItem[V], 0, len(c.items))
	for key, it := range c.items {
		out = append(out, keyedItem[V]{key: key, item: it})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

// Cleanup removes every expired entry and returns how many were removed.
func (c *Cache[V]) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.destroyed {
		return 0
	}
	removed := c.sweepLocked()
	if removed > 0 {
		c.logger.Debug().Int("removed", removed).Msg("expired cache entries swept")
	}
	return removed
}

// Stats returns a snapshot of the cache statistics.
func (c *Cache[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := c.stats
	stats.Size = len(c.items)
	stats.MaxSize = c.config.MaxSize
	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total)
	}
	for key, it := range c.items {
		stats.MemoryUsage += int64(len(key)) + entryOverhead
		if data, err := json.Marshal(it.entry.Value); err == nil {
			stats.MemoryUsage += int64(len(data))
		}
	}
	return stats
}

// Flush writes the snapshot immediately, replacing any pending debounced
// write. It returns the storage error, unlike the background writer.
func (c *Cache[V]) Flush(ctx context.Context) error {
	if !c.persistent() {
		return nil
	}

	c.persistMu.Lock()
	defer c.persistMu.Unlock()

	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return nil
	}
	c.cancelPersistLocked()
	data, err := c.snapshotLocked()
	c.mu.Unlock()
	if err != nil {
		return fmt.Errorf("encode cache snapshot: %w", err)
	}

	if err := c.storage.Write(ctx, c.config.StorageKey, data); err != nil {
		return fmt.Errorf("write cache snapshot: %w", err)
	}
	return nil
}

// Destroy stops the cleanup sweeper and cancels any pending snapshot write.
// Entries stay readable; no background task touches the cache afterwards.
// Call Flush first to keep pending changes.
func (c *Cache[V]) Destroy() {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return
	}
	c.destroyed = true
	c.cancelPersistLocked()
	c.mu.Unlock()

	// Wait out a write that started before cancellation.
	c.persistMu.Lock()
	c.persistMu.Unlock()

	if c.stopCleanup != nil {
		close(c.stopCleanup)
		<-c.cleanupDone
	}
}

func (c *Cache[V]) persistent() bool {
	return c.config.EnablePersistence && c.storage != nil
}

func (c *Cache[V]) touchLocked() uint64 {
	c.counter++
	return c.counter
}

func (c *Cache[V]) removeLocked(key string) {
	delete(c.items, key)
}

// evictLocked drops the entry with the smallest recency.
func (c *Cache[V]) evictLocked() {
	var (
		victim    string
		oldest    uint64
		oldestSeq uint64
		found     bool
	)
	for key, it := range c.items {
		if !found || it.recency < oldest || (it.recency == oldest && it.seq < oldestSeq) {
			victim, oldest, oldestSeq, found = key, it.recency, it.seq, true
		}
	}
	if !found {
		return
	}
	c.removeLocked(victim)
	c.stats.Evictions++
	c.logger.Debug().Str("key", victim).Msg("cache entry evicted")
}

func (c *Cache[V]) sweepLocked() int {
	now := c.now()
	removed := 0
	for key, it := range c.items {
		if it.entry.expired(now) {
			c.removeLocked(key)
			removed++
		}
	}
	if removed > 0 {
		c.stats.Expirations += int64(removed)
		c.schedulePersistLocked()
	}
	return removed
}

func (c *Cache[V]) runCleanup(interval time.Duration) {
	defer close(c.cleanupDone)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.Cleanup()
		case <-c.stopCleanup:
			return
		}
	}
}

func (c *Cache[V]) schedulePersistLocked() {
	if !c.persistent() || c.destroyed {
		return
	}
	c.cancelPersistLocked()
	gen := c.persistGen
	c.persistTimer = time.AfterFunc(c.config.PersistDebounce, func() {
		c.persistScheduled(gen)
	})
}

func (c *Cache[V]) cancelPersistLocked() {
	c.persistGen++
	if c.persistTimer != nil {
		c.persistTimer.Stop()
		c.persistTimer = nil
	}
}

func (c *Cache[V]) persistScheduled(gen uint64) {
	c.persistMu.Lock()
	defer c.persistMu.Unlock()

	c.mu.Lock()
	if c.destroyed || gen != c.persistGen {
		c.mu.Unlock()
		return
	}
	c.persistTimer = nil
	data, err := c.snapshotLocked()
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn().Err(err).Msg("failed to encode cache snapshot")
		return
	}
	if err := c.storage.Write(context.Background(), c.config.StorageKey, data); err != nil {
		c.logger.Warn().Err(err).Str("storage_key", c.config.StorageKey).Msg("failed to persist cache snapshot")
		return
	}
	c.logger.Debug().Int("bytes", len(data)).Msg("cache snapshot persisted")
}

func (c *Cache[V]) snapshotLocked() ([]byte, error) {
	now := c.now()
	snap := snapshot[V]{Version: snapshotVersion, Entries: make(map[string]Entry[V], len(c.items))}
	for key, it := range c.items {
		if it.entry.expired(now) {
			continue
		}
		snap.Entries[key] = it.entry
	}
	return json.Marshal(snap)
}

func (c *Cache[V]) load(ctx context.Context) {
	data, err := c.storage.Read(ctx, c.config.StorageKey)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			c.logger.Warn().Err(err).Str("storage_key", c.config.StorageKey).Msg("failed to read cache snapshot")
		}
		return
	}

	var snap snapshot[V]
	if err := json.Unmarshal(data, &snap); err != nil || snap.Version != snapshotVersion {
		c.logger.Warn().Err(err).Str("storage_key", c.config.StorageKey).Msg("discarding unreadable cache snapshot")
		if err := c.storage.Delete(ctx, c.config.StorageKey); err != nil {
			c.logger.Warn().Err(err).Msg("failed to erase cache snapshot")
		}
		return
	}

	now := c.now()
	keys := make([]string, 0, len(snap.Entries))
	for key, entry := range snap.Entries {
		if entry.expired(now) {
			continue
		}
		keys = append(keys, key)
	}
	// Oldest first so recency follows insertion time; keep the newest MaxSize.
	sort.Slice(keys, func(i, j int) bool {
		a, b := snap.Entries[keys[i]].InsertedAt, snap.Entries[keys[j]].InsertedAt
		if a.Equal(b) {
			return keys[i] < keys[j]
		}
		return a.Before(b)
	})
	if len(keys) > c.config.MaxSize {
		keys = keys[len(keys)-c.config.MaxSize:]
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		c.seq++
		c.items[key] = &item[V]{entry: snap.Entries[key], recency: c.touchLocked(), seq: c.seq}
	}
	c.logger.Debug().Int("restored", len(keys)).Msg("cache snapshot restored")
}
