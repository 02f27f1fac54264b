package style

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/opencode-ai/themekit/internal/cache"
	"github.com/opencode-ai/themekit/internal/logging"
	"github.com/opencode-ai/themekit/internal/theme"
	"github.com/rs/zerolog"
)

// FactoryOption configures a Factory.
type FactoryOption func(*Factory)

// WithStorage sets the persistence backend handed to every generator cache.
func WithStorage(storage cache.Storage) FactoryOption {
	return func(f *Factory) {
		f.storage = storage
	}
}

// WithLogger sets the factory logger.
func WithLogger(logger zerolog.Logger) FactoryOption {
	return func(f *Factory) {
		f.logger = logger
	}
}

// WithClock overrides the time source of generator caches.
func WithClock(now func() time.Time) FactoryOption {
	return func(f *Factory) {
		f.now = now
	}
}

// Factory pools one Generator per theme id and serialized Options, so each
// theme's styles live in their own bounded cache.
type Factory struct {
	storage cache.Storage
	logger  zerolog.Logger
	now     func() time.Time

	mu         sync.Mutex
	generators map[string]*Generator
}

// NewFactory creates an empty Factory.
func NewFactory(opts ...FactoryOption) *Factory {
	f := &Factory{
		logger:     logging.Component("style-generator"),
		generators: make(map[string]*Generator),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// GetGenerator returns the pooled generator for th and opts, creating it on
// first use.
func (f *Factory) GetGenerator(th *theme.ThemeDefinition, opts Options) (*Generator, error) {
	if th == nil {
		return nil, ErrThemeRequired
	}
	serialized, err := json.Marshal(opts)
	if err != nil {
		return nil, fmt.Errorf("serialize generator options: %w", err)
	}
	key := th.ID + "|" + string(serialized)

	f.mu.Lock()
	defer f.mu.Unlock()

	if g, ok := f.generators[key]; ok {
		return g, nil
	}

	if opts.Cache.EnablePersistence {
		sum := sha256.Sum256(serialized)
		base := opts.Cache.StorageKey
		if base == "" {
			base = cache.DefaultConfig().StorageKey
		}
		opts.Cache.StorageKey = base + ":" + th.ID + ":" + hex.EncodeToString(sum[:6])
	}

	var cacheOpts []cache.Option
	if f.storage != nil {
		cacheOpts = append(cacheOpts, cache.WithStorage(f.storage))
	}
	if f.now != nil {
		cacheOpts = append(cacheOpts, cache.WithClock(f.now))
	}

	generator := NewGenerator(th.ID, opts, f.logger, cacheOpts...)
	f.generators[key] = generator
	f.logger.Debug().Str("theme_id", th.ID).Int("pool_size", len(f.generators)).Msg("style generator created")
	return generator, nil
}

// Len returns the number of pooled generators.
func (f *Factory) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.generators)
}

// Evict destroys and drops every generator for themeID.
func (f *Factory) Evict(themeID string) int {
	evicted := f.take(themeID)
	for _, g := range evicted {
		g.Destroy()
	}
	return len(evicted)
}

// Invalidate is Evict that also erases the persisted snapshots of the
// dropped generators, so a replaced theme is never served from them.
func (f *Factory) Invalidate(themeID string) int {
	evicted := f.take(themeID)
	for _, g := range evicted {
		g.cache.Clear()
		g.Destroy()
	}
	if len(evicted) > 0 {
		f.logger.Debug().Str("theme_id", themeID).Int("generators", len(evicted)).Msg("generators invalidated")
	}
	return len(evicted)
}

func (f *Factory) take(themeID string) []*Generator {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*Generator
	for key, g := range f.generators {
		if g.ThemeID() == themeID {
			out = append(out, g)
			delete(f.generators, key)
		}
	}
	return out
}

// Flush writes the pending snapshot of every pooled generator cache.
func (f *Factory) Flush(ctx context.Context) error {
	var errs []error
	for _, g := range f.Generators() {
		if err := g.cache.Flush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("flush %s: %w", g.themeID, err))
		}
	}
	return errors.Join(errs...)
}

// Generators returns the pooled generators in no particular order.
func (f *Factory) Generators() []*Generator {
	f.mu.Lock()
	defer f.mu.Unlock()
	generators := make([]*Generator, 0, len(f.generators))
	for _, g := range f.generators {
		generators = append(generators, g)
	}
	return generators
}

// Destroy destroys every pooled generator and empties the pool.
func (f *Factory) Destroy() {
	f.mu.Lock()
	generators := f.generators
	f.generators = make(map[string]*Generator)
	f.mu.Unlock()

	for _, g := range generators {
		g.Destroy()
	}
}

// GeneratorStats reports cache statistics for one pooled generator.
type GeneratorStats struct {
	ThemeID string
	Prefix  string
	Stats   cache.Stats
}

// Stats returns statistics for every pooled generator, sorted by theme id
// then prefix.
func (f *Factory) Stats() []GeneratorStats {
	generators := f.Generators()
	stats := make([]GeneratorStats, 0, len(generators))
	for _, g := range generators {
		stats = append(stats, GeneratorStats{
			ThemeID: g.themeID,
			Prefix:  g.options.Prefix,
			Stats:   g.cache.Stats(),
		})
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].ThemeID != stats[j].ThemeID {
			return stats[i].ThemeID < stats[j].ThemeID
		}
		return stats[i].Prefix < stats[j].Prefix
	})
	return stats
}

// Attach subscribes the factory to reg so generators of unregistered or
// replaced themes are dropped and a cleared registry empties the pool. It
// returns the subscription id.
func (f *Factory) Attach(reg *theme.Registry) string {
	return reg.AddEventListener(func(event theme.Event) error {
		switch e := event.(type) {
		case theme.ThemeRegistered:
			f.Invalidate(e.Theme.ID)
		case theme.ThemeUnregistered:
			f.Evict(e.ThemeID)
		case theme.RegistryCleared:
			f.Destroy()
		}
		return nil
	})
}

// ActiveGenerator returns the pooled generator for the registry's active
// theme together with that theme.
func ActiveGenerator(reg *theme.Registry, f *Factory, opts Options) (*Generator, *theme.ThemeDefinition, error) {
	active, ok := reg.ActiveTheme()
	if !ok {
		return nil, nil, ErrNoActiveTheme
	}
	g, err := f.GetGenerator(active, opts)
	if err != nil {
		return nil, nil, err
	}
	return g, active, nil
}
