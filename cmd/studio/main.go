// Command studio is the local and admin entry point: it serves the API on
// SQLite for development, compiles briefs for prompt review, and manages
// credits and API tokens against any configured store.
package main

import (
	"context"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/brand-studio/internal/config"
	"github.com/fpang/brand-studio/internal/lambdaboot"
	"github.com/fpang/brand-studio/internal/logging"
)

// Global flags
var (
	envFileFlag  string
	logLevelFlag string
)

var rootCmd = &cobra.Command{
	Use:   "studio",
	Short: "Brand studio: metered AI image and persona generation",
	Long: `Studio runs the brand studio API locally and administers teams.

Configuration is read from STUDIO_* environment variables, seeded from the
--env-file if it exists. The default store is SQLite in the working directory.

Examples:
  studio serve
  studio compile brief.json
  studio credits grant --team acme --pool image_credits --amount 20
  studio token issue --team acme --user alice
  studio ledger --team acme --limit 10`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFileFlag, "env-file", ".env", "Environment file to load before STUDIO_* variables")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Override STUDIO_LOG_LEVEL (debug, info, warn, error)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads configuration and sets up console logging.
func loadConfig() *config.Config {
	cfg, err := config.Load(envFileFlag)
	if err != nil {
		logging.Init("info", "console")
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	if logLevelFlag != "" {
		cfg.LogLevel = logLevelFlag
	}
	logging.Init(cfg.LogLevel, "console")
	return cfg
}

// buildRuntime composes the store and asset backends for admin commands.
func buildRuntime(ctx context.Context, cfg *config.Config, name string, withProvider bool) *lambdaboot.Runtime {
	rt, err := lambdaboot.Build(ctx, cfg, lambdaboot.Options{
		Name:             name,
		WithProvider:     withProvider,
		LocalKeyFallback: true,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize")
	}
	return rt
}
