package style

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestComputeResolvesVariantTokens(t *testing.T) {
	f := newTestFactory(t)
	th := testTheme("light")
	th.Variants = map[string]map[string]any{
		"dim": {"colors": map[string]any{"text": "#777777"}},
	}
	opts := Options{Prefix: "text", Cache: testCacheConfig()}

	plain, err := f.Compute(th, Request{Component: "text"}, opts)
	require.NoError(t, err)
	require.Equal(t, "#111111", plain.Style["foreground"])

	dim, err := f.Compute(th, Request{Component: "text", Variant: "dim"}, opts)
	require.NoError(t, err)
	require.Equal(t, "#777777", dim.Style["foreground"])
	require.NotEqual(t, plain.Key, dim.Key)
	require.Equal(t, 1, f.Len())

	// The registered definition is untouched.
	require.Equal(t, "#111111", th.Tokens["colors"].(map[string]any)["text"])
}

func TestComputeValidatesRequest(t *testing.T) {
	f := newTestFactory(t)
	th := testTheme("light")
	opts := Options{Cache: testCacheConfig(), Breakpoints: map[string]Object{"compact": {"padding": 0}}}

	_, err := f.Compute(nil, Request{Component: "text"}, opts)
	require.ErrorIs(t, err, ErrThemeRequired)

	_, err = f.Compute(th, Request{Component: "missing"}, opts)
	require.ErrorIs(t, err, ErrUnknownComponent)

	_, err = f.Compute(th, Request{Component: "text", Variant: "missing"}, opts)
	require.ErrorIs(t, err, ErrUnknownVariant)

	_, err = f.Compute(th, Request{Component: "text", Breakpoint: "wide"}, opts)
	require.ErrorIs(t, err, ErrUnknownBreakpoint)

	res, err := f.Compute(th, Request{Component: "panel", Breakpoint: "compact"}, opts)
	require.NoError(t, err)
	require.EqualValues(t, 0, res.Style["padding"])
}

func TestComputeHitsCache(t *testing.T) {
	f := newTestFactory(t)
	th := testTheme("light")
	opts := Options{Prefix: "status", Cache: testCacheConfig()}
	req := Request{Component: "status", Props: map[string]any{"status": "idle"}}

	_, err := f.Compute(testTheme("light"), Request{Component: "status", Props: map[string]any{"status": "bogus"}}, opts)
	require.Error(t, err)

	th.Tokens["colors"].(map[string]any)["text_muted"] = "#999999"
	first, err := f.Compute(th, req, opts)
	require.NoError(t, err)
	second, err := f.Compute(th, req, opts)
	require.NoError(t, err)
	require.Equal(t, first.Key, second.Key)

	g, err := f.GetGenerator(th, opts)
	require.NoError(t, err)
	stats := g.Cache().Stats()
	require.Equal(t, int64(1), stats.Hits)
	require.Equal(t, int64(1), stats.Sets)
}

func TestParseAssignments(t *testing.T) {
	props, err := ParseAssignments([]string{"role=accent", "bold=true", "width=40", " padding = md "})
	require.NoError(t, err)
	require.Equal(t, map[string]any{"role": "accent", "bold": true, "width": 40, "padding": "md"}, props)

	props, err = ParseAssignments(nil)
	require.NoError(t, err)
	require.Nil(t, props)

	_, err = ParseAssignments([]string{"novalue"})
	require.Error(t, err)
	_, err = ParseAssignments([]string{"=x"})
	require.Error(t, err)
}

func TestResolveVariantKeepsID(t *testing.T) {
	th := testTheme("light")
	require.Same(t, th, ResolveVariant(th, ""))

	th.Variants = map[string]map[string]any{"wide": {"spacing": map[string]any{"md": 4}}}
	resolved := ResolveVariant(th, "wide")
	require.Equal(t, "light", resolved.ID)
	require.Equal(t, 4, resolved.Tokens["spacing"].(map[string]any)["md"])
	require.Equal(t, 2, th.Tokens["spacing"].(map[string]any)["md"])
}
