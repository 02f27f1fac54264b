package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/opencode-ai/themekit/internal/theme"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	themeShowVariant  string
	themeShowToken    string
	themeHistoryTheme string
	themeHistoryLimit int
)

func init() {
	rootCmd.AddCommand(themesCmd)
	themesCmd.AddCommand(themesListCmd)
	themesCmd.AddCommand(themesValidateCmd)
	themesCmd.AddCommand(themesShowCmd)
	themesCmd.AddCommand(themesHistoryCmd)

	themesShowCmd.Flags().StringVar(&themeShowVariant, "variant", "", "apply the named variant's token overrides")
	themesShowCmd.Flags().StringVar(&themeShowToken, "token", "", "print only the token at this dotted path (e.g. colors.text)")
	themesHistoryCmd.Flags().StringVar(&themeHistoryTheme, "theme", "", "only show events for this theme")
	themesHistoryCmd.Flags().IntVar(&themeHistoryLimit, "limit", 50, "maximum number of events")
}

var themesCmd = &cobra.Command{
	Use:   "themes",
	Short: "Inspect and validate themes",
}

type themeSummary struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Version      string   `json:"version"`
	Source       string   `json:"source"`
	Dependencies []string `json:"dependencies,omitempty"`
	Variants     []string `json:"variants,omitempty"`
	Active       bool     `json:"active"`
}

var themesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered themes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(cmd.Context(), GetConfig())
		if err != nil {
			return err
		}
		defer rt.Close()

		activeID := rt.registry.ActiveThemeID()
		themes := rt.registry.GetAll()
		summaries := make([]themeSummary, 0, len(themes))
		for _, th := range themes {
			summaries = append(summaries, themeSummary{
				ID:           th.ID,
				Name:         th.Name,
				Version:      th.Version,
				Source:       th.Source,
				Dependencies: rt.registry.Dependencies(th.ID),
				Variants:     th.VariantNames(),
				Active:       th.ID == activeID,
			})
		}

		if jsonOutput {
			return writeJSON(cmd.OutOrStdout(), summaries)
		}

		rows := make([][]string, 0, len(summaries))
		for _, s := range summaries {
			rows = append(rows, []string{
				s.ID, s.Name, s.Version, formatList(s.Dependencies), formatList(s.Variants), formatYesNo(s.Active), s.Source,
			})
		}
		return writeTable(cmd.OutOrStdout(), []string{"ID", "NAME", "VERSION", "DEPENDS", "VARIANTS", "ACTIVE", "SOURCE"}, rows)
	},
}

type validationResult struct {
	Path  string `json:"path"`
	ID    string `json:"id,omitempty"`
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

var themesValidateCmd = &cobra.Command{
	Use:   "validate <path>...",
	Short: "Validate theme files",
	Long: `Validate theme files. Each file must parse and carry the required token
categories; the set as a whole, together with the builtin themes, must
resolve every dependency without cycles.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		results := make([]validationResult, 0, len(args))
		var loaded []*theme.ThemeDefinition
		failed := false

		for _, path := range args {
			th, err := theme.LoadTheme(path)
			if err != nil {
				failed = true
				results = append(results, validationResult{Path: path, Error: err.Error()})
				continue
			}
			loaded = append(loaded, th)
			results = append(results, validationResult{Path: path, ID: th.ID, Valid: true})
		}

		if !failed {
			if err := validateGraph(loaded); err != nil {
				failed = true
				for i := range results {
					results[i].Valid = false
					results[i].Error = err.Error()
				}
			}
		}

		if jsonOutput {
			if err := writeJSON(cmd.OutOrStdout(), results); err != nil {
				return err
			}
		} else {
			for _, r := range results {
				if r.Valid {
					fmt.Fprintf(cmd.OutOrStdout(), "OK   %s (%s)\n", r.Path, r.ID)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "FAIL %s: %s\n", r.Path, r.Error)
				}
			}
		}

		if failed {
			return fmt.Errorf("%w: validation failed", theme.ErrThemeInvalid)
		}
		return nil
	},
}

// validateGraph registers themes over the builtins in a scratch registry.
func validateGraph(themes []*theme.ThemeDefinition) error {
	builtins, err := theme.LoadBuiltinThemes()
	if err != nil {
		return err
	}
	reg := theme.NewRegistry(theme.RegistryConfig{})
	if err := theme.RegisterAll(reg, builtins, theme.RegisterOptions{}); err != nil {
		return err
	}
	return theme.RegisterAll(reg, themes, theme.RegisterOptions{Overwrite: true})
}

var themesShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a theme's resolved tokens",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(cmd.Context(), GetConfig())
		if err != nil {
			return err
		}
		defer rt.Close()

		th, err := rt.selectTheme(args[0])
		if err != nil {
			return err
		}
		if themeShowVariant != "" {
			if _, ok := th.Variants[themeShowVariant]; !ok {
				return fmt.Errorf("theme %q has no variant %q (available: %s)",
					th.ID, themeShowVariant, strings.Join(th.VariantNames(), ", "))
			}
		}

		resolved := th.Clone()
		resolved.Tokens = th.ResolveTokens(themeShowVariant)
		resolved.Variants = nil

		var value any = resolved
		if themeShowToken != "" {
			token, ok := resolved.Token(themeShowToken)
			if !ok {
				return fmt.Errorf("theme %q has no token %q", th.ID, themeShowToken)
			}
			value = token
		}

		if jsonOutput {
			return writeJSON(cmd.OutOrStdout(), value)
		}
		encoder := yaml.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent(2)
		if err := encoder.Encode(value); err != nil {
			return err
		}
		return encoder.Close()
	},
}

var themesHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the recorded theme event log",
	Long:  "Show registry events recorded by the sqlite storage backend, newest first.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(cmd.Context(), GetConfig())
		if err != nil {
			return err
		}
		defer rt.Close()

		if rt.events == nil {
			return errors.New("theme history requires storage.backend=sqlite")
		}

		events, err := rt.events.List(cmd.Context(), themeHistoryTheme, themeHistoryLimit)
		if err != nil {
			return err
		}

		if jsonOutput {
			return writeJSON(cmd.OutOrStdout(), events)
		}
		rows := make([][]string, 0, len(events))
		for _, e := range events {
			previous := e.PreviousThemeID
			if previous == "" {
				previous = "-"
			}
			rows = append(rows, []string{e.Timestamp.Format("2006-01-02 15:04:05"), string(e.Type), e.ThemeID, previous})
		}
		return writeTable(cmd.OutOrStdout(), []string{"TIME", "TYPE", "THEME", "PREVIOUS"}, rows)
	},
}
