package theme

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/opencode-ai/themekit/internal/logging"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// RegistryConfig contains registry configuration.
type RegistryConfig struct {
	// DefaultThemeID is activated when the active theme is unregistered,
	// provided it is still registered.
	DefaultThemeID string
}

// RegisterOptions control a single registration.
type RegisterOptions struct {
	// Overwrite replaces an existing theme with the same id.
	Overwrite bool

	// SetAsDefault activates the theme after registration.
	SetAsDefault bool

	// Dependencies are added to the theme's own Dependencies.
	Dependencies []string
}

// Registration pairs a theme with its options for RegisterBatch.
type Registration struct {
	Theme   *ThemeDefinition
	Options RegisterOptions
}

// Loader produces a theme asynchronously, e.g. from disk or network.
type Loader func(ctx context.Context) (*ThemeDefinition, error)

// RegistryOption configures the Registry.
type RegistryOption func(*Registry)

// WithLogger sets the registry logger.
func WithLogger(logger zerolog.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = logger
	}
}

type subscription struct {
	id       string
	listener Listener
}

// Registry holds registered themes, their dependency graph and the active
// theme. It is safe for concurrent use. Listeners run synchronously after the
// registry lock is released, so they may call back into the registry; there is
// no guard against a listener that re-triggers itself indefinitely.
type Registry struct {
	config RegistryConfig
	logger zerolog.Logger

	mu        sync.RWMutex
	themes    map[string]*ThemeDefinition
	order     []string
	deps      map[string][]string
	activeID  string
	listeners []subscription

	loads singleflight.Group
}

// NewRegistry creates an empty Registry.
func NewRegistry(config RegistryConfig, opts ...RegistryOption) *Registry {
	r := &Registry{
		config: config,
		logger: logging.Component("theme-registry"),
		themes: make(map[string]*ThemeDefinition),
		deps:   make(map[string][]string),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register validates and stores a theme. The first theme registered, or one
// registered with SetAsDefault, becomes active. On error the registry is left
// unchanged.
func (r *Registry) Register(theme *ThemeDefinition, opts RegisterOptions) error {
	return r.RegisterBatch([]Registration{{Theme: theme, Options: opts}})
}

// RegisterBatch registers several themes atomically. Dependencies may refer to
// other themes in the same batch. Either every theme is committed or none is.
func (r *Registry) RegisterBatch(regs []Registration) error {
	if len(regs) == 0 {
		return nil
	}

	r.mu.Lock()
	staged, activate, err := r.stageLocked(regs)
	if err != nil {
		r.mu.Unlock()
		return err
	}

	for _, reg := range staged {
		if _, exists := r.themes[reg.theme.ID]; !exists {
			r.order = append(r.order, reg.theme.ID)
		}
		r.themes[reg.theme.ID] = reg.theme
		if len(reg.deps) > 0 {
			r.deps[reg.theme.ID] = reg.deps
		} else {
			delete(r.deps, reg.theme.ID)
		}
	}

	var changed *ThemeChanged
	if activate != "" {
		changed = &ThemeChanged{
			ThemeID:         activate,
			PreviousThemeID: r.activeID,
			Theme:           r.themes[activate],
		}
		r.activeID = activate
	}
	r.mu.Unlock()

	events := make([]Event, 0, len(staged)+1)
	for _, reg := range staged {
		r.logger.Debug().
			Str("theme_id", reg.theme.ID).
			Strs("dependencies", reg.deps).
			Msg("theme registered")
		events = append(events, ThemeRegistered{Theme: reg.theme})
	}
	if changed != nil {
		r.logger.Info().
			Str("theme_id", changed.ThemeID).
			Str("previous_theme_id", changed.PreviousThemeID).
			Msg("active theme changed")
		events = append(events, *changed)
	}
	r.emit(events...)
	return nil
}

type stagedTheme struct {
	theme *ThemeDefinition
	deps  []string
}

// stageLocked validates regs against the current state plus the batch itself
// and returns the themes to commit and the id to activate, if any.
func (r *Registry) stageLocked(regs []Registration) ([]stagedTheme, string, error) {
	staged := make([]stagedTheme, 0, len(regs))
	inBatch := make(map[string]bool, len(regs))

	for _, reg := range regs {
		if err := reg.Theme.Validate(); err != nil {
			return nil, "", err
		}
		id := reg.Theme.ID
		if inBatch[id] {
			return nil, "", fmt.Errorf("%w: theme %q appears twice in batch", ErrThemeInvalid, id)
		}
		if _, exists := r.themes[id]; exists && !reg.Options.Overwrite {
			return nil, "", fmt.Errorf("%w: theme %q already registered", ErrThemeInvalid, id)
		}
		inBatch[id] = true
	}

	graph := make(map[string][]string, len(r.deps)+len(regs))
	for id, deps := range r.deps {
		graph[id] = deps
	}

	activate := ""
	for _, reg := range regs {
		theme := reg.Theme.Clone()
		deps := mergeDependencies(theme.Dependencies, reg.Options.Dependencies)
		for _, dep := range deps {
			if _, exists := r.themes[dep]; !exists && !inBatch[dep] {
				return nil, "", fmt.Errorf("%w: theme %q depends on unknown theme %q",
					ErrThemeNotFound, theme.ID, dep)
			}
		}
		theme.Dependencies = deps
		graph[theme.ID] = deps
		staged = append(staged, stagedTheme{theme: theme, deps: deps})

		if reg.Options.SetAsDefault {
			activate = theme.ID
		}
	}

	for _, s := range staged {
		if cycle := FindCycle(graph, s.theme.ID); cycle != nil {
			return nil, "", fmt.Errorf("%w: circular dependency: %s",
				ErrThemeInvalid, strings.Join(cycle, " -> "))
		}
	}

	if activate == "" && r.activeID == "" {
		activate = staged[0].theme.ID
	}
	return staged, activate, nil
}

func mergeDependencies(lists ...[]string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, list := range lists {
		for _, dep := range list {
			dep = strings.TrimSpace(dep)
			if dep == "" || seen[dep] {
				continue
			}
			seen[dep] = true
			out = append(out, dep)
		}
	}
	return out
}

// RegisterAsync loads a theme with loader and registers it under id.
// Concurrent calls for the same id share a single load and its result.
func (r *Registry) RegisterAsync(ctx context.Context, id string, loader Loader, opts RegisterOptions) (*ThemeDefinition, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: theme id is required", ErrThemeInvalid)
	}
	if loader == nil {
		return nil, fmt.Errorf("%w: %s: loader is nil", ErrThemeLoadFailed, id)
	}

	result, err, shared := r.loads.Do(id, func() (any, error) {
		theme, err := loader(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrThemeLoadFailed, id, err)
		}
		if theme == nil {
			return nil, fmt.Errorf("%w: %s: loader returned no theme", ErrThemeLoadFailed, id)
		}
		if theme.ID != id {
			return nil, fmt.Errorf("%w: loader for %q returned theme %q", ErrThemeInvalid, id, theme.ID)
		}
		if err := r.Register(theme, opts); err != nil {
			return nil, err
		}
		registered, _ := r.Get(id)
		return registered, nil
	})
	if err != nil {
		r.logger.Warn().Err(err).Str("theme_id", id).Bool("shared", shared).Msg("async theme registration failed")
		return nil, err
	}
	return result.(*ThemeDefinition), nil
}

// Unregister removes a theme. It returns false if the theme is unknown, and
// ErrThemeInvalid if another theme still depends on it. If the theme was
// active, the configured default, then the oldest remaining theme, becomes
// active.
func (r *Registry) Unregister(id string) (bool, error) {
	r.mu.Lock()
	if _, exists := r.themes[id]; !exists {
		r.mu.Unlock()
		return false, nil
	}
	if dependents := r.dependentsLocked(id); len(dependents) > 0 {
		r.mu.Unlock()
		return false, fmt.Errorf("%w: theme %q is required by %s",
			ErrThemeInvalid, id, strings.Join(dependents, ", "))
	}

	delete(r.themes, id)
	delete(r.deps, id)
	r.order = slices.DeleteFunc(r.order, func(v string) bool { return v == id })

	var changed *ThemeChanged
	if r.activeID == id {
		next := ""
		if _, ok := r.themes[r.config.DefaultThemeID]; ok {
			next = r.config.DefaultThemeID
		} else if len(r.order) > 0 {
			next = r.order[0]
		}
		r.activeID = next
		changed = &ThemeChanged{ThemeID: next, PreviousThemeID: id, Theme: r.themes[next]}
	}
	r.mu.Unlock()

	r.logger.Debug().Str("theme_id", id).Msg("theme unregistered")
	events := []Event{ThemeUnregistered{ThemeID: id}}
	if changed != nil {
		events = append(events, *changed)
	}
	r.emit(events...)
	return true, nil
}

// SetActiveTheme makes id the active theme and notifies listeners.
func (r *Registry) SetActiveTheme(id string) error {
	r.mu.Lock()
	theme, exists := r.themes[id]
	if !exists {
		r.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrThemeNotFound, id)
	}
	previous := r.activeID
	r.activeID = id
	r.mu.Unlock()

	r.logger.Info().Str("theme_id", id).Str("previous_theme_id", previous).Msg("active theme changed")
	r.emit(ThemeChanged{ThemeID: id, PreviousThemeID: previous, Theme: theme})
	return nil
}

// Get returns the registered theme. The returned definition is shared and
// must not be modified; use Clone for a private copy.
func (r *Registry) Get(id string) (*ThemeDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	theme, ok := r.themes[id]
	return theme, ok
}

// GetAll returns all themes in registration order.
func (r *Registry) GetAll() []*ThemeDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	themes := make([]*ThemeDefinition, 0, len(r.order))
	for _, id := range r.order {
		themes = append(themes, r.themes[id])
	}
	return themes
}

// Has reports whether id is registered.
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.themes[id]
	return ok
}

// Len returns the number of registered themes.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.themes)
}

// ActiveTheme returns the active theme, if any.
func (r *Registry) ActiveTheme() (*ThemeDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.activeID == "" {
		return nil, false
	}
	return r.themes[r.activeID], true
}

// ActiveThemeID returns the active theme id or "".
func (r *Registry) ActiveThemeID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.activeID
}

// Dependencies returns the ids id depends on.
func (r *Registry) Dependencies(id string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.deps[id]...)
}

// Dependents returns the ids that depend on id, in registration order.
func (r *Registry) Dependents(id string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.dependentsLocked(id)
}

func (r *Registry) dependentsLocked(id string) []string {
	var dependents []string
	for _, other := range r.order {
		if slices.Contains(r.deps[other], id) {
			dependents = append(dependents, other)
		}
	}
	return dependents
}

// AddEventListener subscribes listener and returns its subscription id.
func (r *Registry) AddEventListener(listener Listener) string {
	id := uuid.New().String()
	r.mu.Lock()
	r.listeners = append(r.listeners, subscription{id: id, listener: listener})
	r.mu.Unlock()
	return id
}

// RemoveEventListener cancels a subscription.
func (r *Registry) RemoveEventListener(subscriptionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	before := len(r.listeners)
	r.listeners = slices.DeleteFunc(r.listeners, func(s subscription) bool {
		return s.id == subscriptionID
	})
	return len(r.listeners) != before
}

// Clear removes every theme and the active selection. Listeners stay
// subscribed and receive RegistryCleared.
func (r *Registry) Clear() {
	r.mu.Lock()
	r.themes = make(map[string]*ThemeDefinition)
	r.deps = make(map[string][]string)
	r.order = nil
	r.activeID = ""
	r.mu.Unlock()

	r.logger.Debug().Msg("registry cleared")
	r.emit(RegistryCleared{})
}

func (r *Registry) emit(events ...Event) {
	if len(events) == 0 {
		return
	}
	r.mu.RLock()
	subs := append([]subscription(nil), r.listeners...)
	r.mu.RUnlock()

	for _, event := range events {
		for _, sub := range subs {
			r.deliver(sub, event)
		}
	}
}

func (r *Registry) deliver(sub subscription, event Event) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error().
				Str("subscription_id", sub.id).
				Str("event", string(event.Type())).
				Interface("panic", rec).
				Msg("theme listener panicked")
		}
	}()
	if err := sub.listener(event); err != nil {
		r.logger.Warn().
			Err(err).
			Str("subscription_id", sub.id).
			Str("event", string(event.Type())).
			Msg("theme listener failed")
	}
}
