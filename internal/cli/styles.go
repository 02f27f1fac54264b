package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/opencode-ai/themekit/internal/config"
	"github.com/opencode-ai/themekit/internal/style"
	"github.com/spf13/cobra"
)

var (
	styleTheme      string
	styleComponent  string
	styleVariant    string
	styleBreakpoint string
	styleProps      []string
	styleState      []string
	renderSample    string
)

// breakpoints are the style overrides applied per --breakpoint.
var breakpoints = map[string]style.Object{
	"compact": {"padding": 0, "margin": 0},
	"wide":    {"width": 80},
}

// componentOptions returns the generator options used for a builtin component.
func componentOptions(cfg *config.Config, component string) style.Options {
	return style.Options{
		Prefix:      component,
		Breakpoints: breakpoints,
		Cache:       cfg.CacheConfig(),
	}
}

func init() {
	rootCmd.AddCommand(stylesCmd)
	stylesCmd.AddCommand(stylesGenerateCmd)
	stylesCmd.AddCommand(stylesRenderCmd)

	for _, cmd := range []*cobra.Command{stylesGenerateCmd, stylesRenderCmd} {
		cmd.Flags().StringVar(&styleTheme, "theme", "", "theme id (default: active theme)")
		cmd.Flags().StringVar(&styleVariant, "variant", "", "theme variant")
		cmd.Flags().StringVar(&styleBreakpoint, "breakpoint", "", "breakpoint (compact, wide)")
		cmd.Flags().StringArrayVar(&styleProps, "prop", nil, "component prop as key=value (repeatable)")
	}
	stylesGenerateCmd.Flags().StringVar(&styleComponent, "component", "text", "component ("+strings.Join(style.ComponentNames(), ", ")+")")
	stylesGenerateCmd.Flags().StringArrayVar(&styleState, "state", nil, "state value as key=value (repeatable)")
	stylesRenderCmd.Flags().StringVar(&renderSample, "text", "The quick brown fox", "sample text")
}

var stylesCmd = &cobra.Command{
	Use:   "styles",
	Short: "Compute component styles from theme tokens",
}

// generate computes one component style for the requested theme, or the
// active theme when themeID is empty.
func (rt *runtime) generate(themeID string, req style.Request) (*style.Result, error) {
	th, err := rt.selectTheme(themeID)
	if err != nil {
		return nil, err
	}
	return rt.factory.Compute(th, req, rt.styleOptions(req.Component))
}

func (rt *runtime) styleOptions(component string) style.Options {
	return componentOptions(rt.cfg, component)
}

var stylesGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Compute a component style object",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		props, err := style.ParseAssignments(styleProps)
		if err != nil {
			return err
		}
		state, err := style.ParseAssignments(styleState)
		if err != nil {
			return err
		}

		rt, err := newRuntime(cmd.Context(), GetConfig())
		if err != nil {
			return err
		}
		defer rt.Close()

		result, err := rt.generate(styleTheme, style.Request{
			Component:  styleComponent,
			Variant:    styleVariant,
			Breakpoint: styleBreakpoint,
			Props:      props,
			State:      state,
		})
		if err != nil {
			return err
		}

		if jsonOutput {
			return writeJSON(cmd.OutOrStdout(), result)
		}
		return writeJSON(cmd.OutOrStdout(), result.Style)
	},
}

// renderCases lists the prop sets rendered per component.
var renderCases = map[string][]map[string]any{
	"text": {
		{"role": "text"}, {"role": "muted"}, {"role": "accent"}, {"role": "info"},
	},
	"title":  {nil},
	"panel":  {{"padding": "sm"}, {"padding": "md"}},
	"status": {{"status": "idle"}, {"status": "working"}, {"status": "paused"}, {"status": "error"}},
}

var stylesRenderCmd = &cobra.Command{
	Use:   "render [component...]",
	Short: "Render sample text with component styles",
	RunE: func(cmd *cobra.Command, args []string) error {
		props, err := style.ParseAssignments(styleProps)
		if err != nil {
			return err
		}

		rt, err := newRuntime(cmd.Context(), GetConfig())
		if err != nil {
			return err
		}
		defer rt.Close()

		components := args
		if len(components) == 0 {
			components = style.ComponentNames()
		}

		out := cmd.OutOrStdout()
		for _, component := range components {
			cases := renderCases[component]
			if len(props) > 0 || len(cases) == 0 {
				cases = []map[string]any{props}
			}
			for _, caseProps := range cases {
				result, err := rt.generate(styleTheme, style.Request{
					Component:  component,
					Variant:    styleVariant,
					Breakpoint: styleBreakpoint,
					Props:      caseProps,
				})
				if err != nil {
					return err
				}
				label := component + describeProps(caseProps)
				fmt.Fprintf(out, "%-24s %s\n", label, style.ToLipgloss(result.Style).Render(renderSample))
			}
		}
		return nil
	},
}

func describeProps(props map[string]any) string {
	if len(props) == 0 {
		return ""
	}
	keys := make([]string, 0, len(props))
	for key := range props {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", key, props[key]))
	}
	return "[" + strings.Join(parts, ",") + "]"
}
