// Command modbot runs the module-based Discord bot.
//
// Configuration comes from the environment (and a .env file when present):
//
//   - DISCORD_TOKEN: bot token, required by run
//   - MODULES_DIR: directory scanned for module descriptors after the built-ins
//   - SETTINGS_PATH: bot-wide module settings snapshot
//   - STORAGE_DRIVER / STORAGE_DSN: guild record storage (json, sqlite, postgres)
//   - METRICS_ADDR: serve Prometheus metrics on this address when set
//   - LOG_LEVEL: debug, info, warn or error
package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/keshon/modbot/internal/version"
)

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		log.Error("command failed", "err", err)
		os.Exit(1)
	}
}

// buildRootCmd creates the root command. Without a subcommand it runs the bot.
func buildRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          version.AppName,
		Short:        "Module-based Discord bot",
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version.Version, version.Commit, version.BuildDate),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBot(cmd.Context())
		},
	}
	root.AddCommand(
		buildRunCmd(),
		buildModulesCmd(),
		buildSettingsCmd(),
		buildVersionCmd(),
	)
	return root
}

// newLogger returns the process logger at the named level.
func newLogger(level string) (*log.Logger, error) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	logger := log.NewWithOptions(os.Stderr, log.Options{
		Level:           lvl,
		ReportTimestamp: true,
		Prefix:          version.AppName,
	})
	log.SetDefault(logger)
	return logger, nil
}
