// Package style computes per-component style objects from theme tokens and
// memoizes them in theme-scoped caches.
package style

import (
	"errors"
	"fmt"

	"github.com/opencode-ai/themekit/internal/cache"
	"github.com/opencode-ai/themekit/internal/theme"
	"github.com/rs/zerolog"
)

// Generator errors.
var (
	ErrNilCompute    = errors.New("compute function is required")
	ErrThemeRequired = errors.New("theme is required")
	ErrThemeMismatch = errors.New("theme does not match generator")
	ErrNoActiveTheme = errors.New("no active theme")

	ErrUnknownComponent  = errors.New("unknown component")
	ErrUnknownVariant    = errors.New("unknown variant")
	ErrUnknownBreakpoint = errors.New("unknown breakpoint")
)

// DefaultPrefix prefixes cache keys when Options.Prefix is empty.
const DefaultPrefix = "style"

// Object is a computed style: a property map such as
// {"foreground": "#fff", "bold": true, "padding": 1}.
type Object map[string]any

// Input is passed to a ComputeFunc.
type Input struct {
	Theme  *theme.ThemeDefinition
	Tokens map[string]any
	Props  map[string]any
}

// ComputeFunc builds a style object. It must depend only on its input;
// results are cached by theme, variant, breakpoint, props and state.
type ComputeFunc func(Input) (Object, error)

// TransformFunc post-processes a computed object before it is cached.
type TransformFunc func(Object, Context) Object

// Context identifies one style computation.
type Context struct {
	Theme      *theme.ThemeDefinition
	Variant    string
	Props      map[string]any
	Breakpoint string
	State      map[string]any
}

// Options configure a Generator. Options that serialize the same share a
// pooled generator in a Factory; Transform is not serialized, so generators
// using different transforms need distinct Prefix values.
type Options struct {
	Prefix      string            `json:"prefix,omitempty"`
	Variants    map[string]Object `json:"variants,omitempty"`
	Breakpoints map[string]Object `json:"breakpoints,omitempty"`
	Transform   TransformFunc     `json:"-"`
	Cache       cache.Config      `json:"cache"`
}

// Generator computes and caches styles for a single theme.
type Generator struct {
	themeID string
	options Options
	cache   *cache.Cache[Object]
	logger  zerolog.Logger
}

// NewGenerator creates a generator for themeID backed by its own cache.
func NewGenerator(themeID string, opts Options, logger zerolog.Logger, cacheOpts ...cache.Option) *Generator {
	if opts.Prefix == "" {
		opts.Prefix = DefaultPrefix
	}
	cacheOpts = append([]cache.Option{cache.WithLogger(logger)}, cacheOpts...)
	return &Generator{
		themeID: themeID,
		options: opts,
		cache:   cache.New[Object](opts.Cache, cacheOpts...),
		logger:  logger.With().Str("theme_id", themeID).Logger(),
	}
}

// ThemeID returns the theme the generator serves.
func (g *Generator) ThemeID() string {
	return g.themeID
}

// Cache exposes the backing cache.
func (g *Generator) Cache() *cache.Cache[Object] {
	return g.cache
}

// Key returns the cache key for ctx.
func (g *Generator) Key(ctx Context) (string, error) {
	if ctx.Theme == nil {
		return "", ErrThemeRequired
	}
	return StableHash(g.options.Prefix, map[string]any{
		"themeId":    ctx.Theme.ID,
		"version":    ctx.Theme.Version,
		"variant":    ctx.Variant,
		"breakpoint": ctx.Breakpoint,
		"props":      ctx.Props,
		"state":      ctx.State,
	})
}

// Generate returns the cached style for ctx, computing and storing it on a
// miss. Post-processing runs in a fixed order: variant overrides, breakpoint
// overrides, then Transform. Returned objects are shared with the cache and
// must not be modified.
func (g *Generator) Generate(compute ComputeFunc, ctx Context) (Object, error) {
	if compute == nil {
		return nil, ErrNilCompute
	}
	if ctx.Theme == nil {
		return nil, ErrThemeRequired
	}
	if ctx.Theme.ID != g.themeID {
		return nil, fmt.Errorf("%w: generator serves %q, got %q", ErrThemeMismatch, g.themeID, ctx.Theme.ID)
	}

	key, err := g.Key(ctx)
	if err != nil {
		return nil, err
	}
	if cached, ok := g.cache.Get(key); ok {
		return cached, nil
	}

	computed, err := compute(Input{Theme: ctx.Theme, Tokens: ctx.Theme.Tokens, Props: ctx.Props})
	if err != nil {
		return nil, fmt.Errorf("compute style: %w", err)
	}

	result := Merge(nil, computed)
	if overrides, ok := g.options.Variants[ctx.Variant]; ok {
		result = Merge(result, overrides)
	}
	if overrides, ok := g.options.Breakpoints[ctx.Breakpoint]; ok {
		result = Merge(result, overrides)
	}
	if g.options.Transform != nil {
		result = g.options.Transform(result, ctx)
	}

	g.cache.Set(key, result)
	g.logger.Debug().Str("key", key).Str("variant", ctx.Variant).Msg("style computed")
	return result, nil
}

// Destroy stops the generator's cache timers.
func (g *Generator) Destroy() {
	g.cache.Destroy()
}

// Merge deep-merges src into a copy of dst and returns it.
func Merge(dst, src Object) Object {
	out := theme.DeepMerge(theme.DeepMerge(nil, dst), src)
	return Object(out)
}
