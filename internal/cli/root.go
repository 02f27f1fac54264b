// Package cli implements the themekit command line.
package cli

import (
	"fmt"

	"github.com/opencode-ai/themekit/internal/config"
	"github.com/opencode-ai/themekit/internal/logging"
	"github.com/spf13/cobra"
)

var (
	cfgFile    string
	logLevel   string
	logFormat  string
	jsonOutput bool

	appConfig *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "themekit",
	Short: "Theme registry and style cache toolkit",
	Long: `themekit manages theme definitions and computes cached component
styles from their design tokens.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("log-level") {
			cfg.Log.Level = logLevel
		}
		if cmd.Flags().Changed("log-format") {
			cfg.Log.Format = logFormat
		}

		logCfg := cfg.LoggingConfig()
		logCfg.Output = cmd.ErrOrStderr()
		logging.Init(logCfg)

		appConfig = cfg
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default .themekit/config.yaml or ~/.config/themekit/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "auto", "log format (auto, console, json)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "write machine-readable JSON output")
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		return fmt.Errorf("themekit: %w", err)
	}
	return nil
}

// GetConfig returns the configuration loaded for the running command.
func GetConfig() *config.Config {
	if appConfig == nil {
		return config.Default()
	}
	return appConfig
}
