// Package theme provides the theme registry: definitions, validation,
// dependency tracking and active-theme switching with change events.
package theme

import (
	"fmt"
	"sort"
	"strings"
)

// Required token categories every theme must define.
const (
	CategoryColors     = "colors"
	CategoryTypography = "typography"
	CategorySpacing    = "spacing"
)

// RequiredCategories lists the token categories checked by Validate.
var RequiredCategories = []string{CategoryColors, CategoryTypography, CategorySpacing}

// ThemeDefinition describes a registered theme.
type ThemeDefinition struct {
	ID           string                    `yaml:"id" json:"id"`
	Name         string                    `yaml:"name" json:"name"`
	Version      string                    `yaml:"version" json:"version"`
	Tokens       map[string]any            `yaml:"tokens" json:"tokens"`
	Variants     map[string]map[string]any `yaml:"variants,omitempty" json:"variants,omitempty"`
	Dependencies []string                  `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`
	Source       string                    `yaml:"-" json:"-"` // file path or "builtin"
}

// Validate checks required fields and token categories.
func (t *ThemeDefinition) Validate() error {
	if t == nil {
		return fmt.Errorf("%w: theme is nil", ErrThemeInvalid)
	}
	if strings.TrimSpace(t.ID) == "" {
		return fmt.Errorf("%w: theme id is required", ErrThemeInvalid)
	}
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("%w: theme %q: name is required", ErrThemeInvalid, t.ID)
	}
	if strings.TrimSpace(t.Version) == "" {
		return fmt.Errorf("%w: theme %q: version is required", ErrThemeInvalid, t.ID)
	}

	var missing []string
	for _, category := range RequiredCategories {
		if t.Tokens[category] == nil {
			missing = append(missing, category)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: theme %q: missing token categories: %s",
			ErrThemeInvalid, t.ID, strings.Join(missing, ", "))
	}

	for name := range t.Variants {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("%w: theme %q: variant name is required", ErrThemeInvalid, t.ID)
		}
	}
	for _, dep := range t.Dependencies {
		if strings.TrimSpace(dep) == "" {
			return fmt.Errorf("%w: theme %q: empty dependency id", ErrThemeInvalid, t.ID)
		}
	}
	return nil
}

// Clone returns a deep copy of the definition.
func (t *ThemeDefinition) Clone() *ThemeDefinition {
	if t == nil {
		return nil
	}
	clone := *t
	clone.Tokens = copyMap(t.Tokens)
	if t.Variants != nil {
		clone.Variants = make(map[string]map[string]any, len(t.Variants))
		for name, overrides := range t.Variants {
			clone.Variants[name] = copyMap(overrides)
		}
	}
	if t.Dependencies != nil {
		clone.Dependencies = append([]string(nil), t.Dependencies...)
	}
	return &clone
}

// ResolveTokens returns the theme tokens with the named variant's overrides
// merged on top. Unknown or empty variants yield a copy of the base tokens.
func (t *ThemeDefinition) ResolveTokens(variant string) map[string]any {
	tokens := copyMap(t.Tokens)
	if overrides, ok := t.Variants[variant]; ok {
		tokens = DeepMerge(tokens, overrides)
	}
	return tokens
}

// VariantNames returns the sorted variant names.
func (t *ThemeDefinition) VariantNames() []string {
	names := make([]string, 0, len(t.Variants))
	for name := range t.Variants {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Token looks up a dotted path such as "colors.text".
func (t *ThemeDefinition) Token(path string) (any, bool) {
	return LookupToken(t.Tokens, strings.Split(path, ".")...)
}

// LookupToken walks tokens along path through nested maps.
func LookupToken(tokens map[string]any, path ...string) (any, bool) {
	var current any = tokens
	for _, part := range path {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// DeepMerge merges src into dst recursively and returns dst. Nested maps are
// merged; any other value in src replaces the one in dst. src is not retained.
func DeepMerge(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = make(map[string]any, len(src))
	}
	for key, value := range src {
		srcMap, srcIsMap := value.(map[string]any)
		dstMap, dstIsMap := dst[key].(map[string]any)
		if srcIsMap && dstIsMap {
			dst[key] = DeepMerge(dstMap, srcMap)
			continue
		}
		dst[key] = copyValue(value)
	}
	return dst
}

func copyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch typed := v.(type) {
	case map[string]any:
		return copyMap(typed)
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = copyValue(item)
		}
		return out
	default:
		return v
	}
}
