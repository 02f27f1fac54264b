package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/opencode-ai/themekit/internal/style"
	"github.com/spf13/cobra"
)

var cacheWarm bool

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cacheSnapshotsCmd)

	cacheStatsCmd.Flags().BoolVar(&cacheWarm, "warm", false, "compute every builtin component style before reporting")
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect persisted style caches",
}

// openGenerators creates the generator of every theme and component,
// restoring persisted snapshots.
func (rt *runtime) openGenerators() error {
	for _, th := range rt.registry.GetAll() {
		for _, component := range style.ComponentNames() {
			if _, err := rt.factory.GetGenerator(th, rt.styleOptions(component)); err != nil {
				return err
			}
		}
	}
	return nil
}

// warm computes every builtin component with its render cases.
func (rt *runtime) warm() error {
	for _, th := range rt.registry.GetAll() {
		for _, component := range style.ComponentNames() {
			for _, props := range renderCases[component] {
				if _, err := rt.generate(th.ID, style.Request{Component: component, Props: props}); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show style cache statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(cmd.Context(), GetConfig())
		if err != nil {
			return err
		}
		defer rt.Close()

		if err := rt.openGenerators(); err != nil {
			return err
		}
		if cacheWarm {
			if err := rt.warm(); err != nil {
				return err
			}
		}

		stats := rt.factory.Stats()
		if jsonOutput {
			return writeJSON(cmd.OutOrStdout(), stats)
		}

		rows := make([][]string, 0, len(stats))
		for _, g := range stats {
			s := g.Stats
			rows = append(rows, []string{
				g.ThemeID,
				g.Prefix,
				fmt.Sprintf("%d/%d", s.Size, s.MaxSize),
				strconv.FormatInt(s.Hits, 10),
				strconv.FormatInt(s.Misses, 10),
				fmt.Sprintf("%.1f%%", s.HitRate*100),
				strconv.FormatInt(s.Evictions, 10),
				strconv.FormatInt(s.MemoryUsage, 10),
			})
		}
		return writeTable(cmd.OutOrStdout(), []string{"THEME", "PREFIX", "SIZE", "HITS", "MISSES", "HIT RATE", "EVICTIONS", "BYTES"}, rows)
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear every style cache and its persisted snapshot",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(cmd.Context(), GetConfig())
		if err != nil {
			return err
		}
		defer rt.Close()

		if err := rt.openGenerators(); err != nil {
			return err
		}
		cleared := 0
		for _, g := range rt.factory.Generators() {
			cleared += g.Cache().Len()
			g.Cache().Clear()
		}
		// Close must not write the emptied snapshots back.
		rt.factory.Destroy()
		fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d cached styles.\n", cleared)

		if rt.snapshots == nil {
			return nil
		}
		removed, err := rt.removeSnapshots(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %d orphaned snapshots.\n", removed)
		return nil
	},
}

// removeSnapshots deletes every snapshot still stored in the database, such
// as those of themes that no longer load or of earlier component options.
func (rt *runtime) removeSnapshots(ctx context.Context) (int, error) {
	keys, err := rt.snapshots.Keys(ctx)
	if err != nil {
		return 0, err
	}
	for _, key := range keys {
		if err := rt.snapshots.Delete(ctx, key); err != nil {
			return 0, err
		}
		rt.logger.Debug().Str("storage_key", key).Msg("orphaned snapshot removed")
	}
	return len(keys), nil
}

var cacheSnapshotsCmd = &cobra.Command{
	Use:   "snapshots",
	Short: "List persisted cache snapshots",
	Long:  "List the cache snapshot keys stored by the sqlite storage backend.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(cmd.Context(), GetConfig())
		if err != nil {
			return err
		}
		defer rt.Close()

		if rt.snapshots == nil {
			return errors.New("listing snapshots requires storage.backend=sqlite")
		}
		keys, err := rt.snapshots.Keys(cmd.Context())
		if err != nil {
			return err
		}
		if keys == nil {
			keys = []string{}
		}

		if jsonOutput {
			return writeJSON(cmd.OutOrStdout(), keys)
		}
		rows := make([][]string, 0, len(keys))
		for _, key := range keys {
			rows = append(rows, []string{key})
		}
		return writeTable(cmd.OutOrStdout(), []string{"STORAGE KEY"}, rows)
	},
}
