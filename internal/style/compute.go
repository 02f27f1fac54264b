package style

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/opencode-ai/themekit/internal/theme"
)

// Request names a builtin component style to compute.
type Request struct {
	Component  string
	Variant    string
	Breakpoint string
	Props      map[string]any
	State      map[string]any
}

// Result is a computed component style and its cache key.
type Result struct {
	Theme     string `json:"theme"`
	Component string `json:"component"`
	Key       string `json:"key"`
	Style     Object `json:"style"`
}

// Compute resolves req against th through the pooled generator for opts.
// The variant's token overrides are applied before computing; the variant
// name is part of the cache key.
func (f *Factory) Compute(th *theme.ThemeDefinition, req Request, opts Options) (*Result, error) {
	if th == nil {
		return nil, ErrThemeRequired
	}
	compute, ok := Components[req.Component]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %s)", ErrUnknownComponent, req.Component, strings.Join(ComponentNames(), ", "))
	}
	if req.Variant != "" {
		if _, ok := th.Variants[req.Variant]; !ok {
			return nil, fmt.Errorf("%w: theme %q has no variant %q", ErrUnknownVariant, th.ID, req.Variant)
		}
	}
	if req.Breakpoint != "" {
		if _, ok := opts.Breakpoints[req.Breakpoint]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownBreakpoint, req.Breakpoint)
		}
	}

	g, err := f.GetGenerator(th, opts)
	if err != nil {
		return nil, err
	}

	ctx := Context{
		Theme:      ResolveVariant(th, req.Variant),
		Variant:    req.Variant,
		Props:      req.Props,
		Breakpoint: req.Breakpoint,
		State:      req.State,
	}
	obj, err := g.Generate(compute, ctx)
	if err != nil {
		return nil, err
	}
	key, err := g.Key(ctx)
	if err != nil {
		return nil, err
	}
	return &Result{Theme: th.ID, Component: req.Component, Key: key, Style: obj}, nil
}

// ResolveVariant returns th with the variant's token overrides applied. The
// id is kept, so the result is served by the same generator.
func ResolveVariant(th *theme.ThemeDefinition, variant string) *theme.ThemeDefinition {
	if variant == "" {
		return th
	}
	resolved := th.Clone()
	resolved.Tokens = th.ResolveTokens(variant)
	return resolved
}

// ParseAssignments parses key=value pairs into props. Values that parse as a
// bool or an integer are stored typed; everything else stays a string.
func ParseAssignments(values []string) (map[string]any, error) {
	if len(values) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(values))
	for _, value := range values {
		key, raw, ok := strings.Cut(value, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid assignment %q (expected key=value)", value)
		}
		out[key] = parseScalar(strings.TrimSpace(raw))
	}
	return out, nil
}

func parseScalar(raw string) any {
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return n
	}
	return raw
}
