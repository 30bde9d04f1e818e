package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/keshon/modbot/internal/bot"
	"github.com/keshon/modbot/internal/config"
	"github.com/keshon/modbot/internal/module"
	"github.com/keshon/modbot/internal/modules"
	"github.com/keshon/modbot/internal/version"
)

func buildRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Connect to Discord and serve commands",
		Long: `Connect to Discord and serve commands.

Modules are discovered and loaded, missing setting defaults are written,
then the gateway connection is opened. SIGINT and SIGTERM shut down.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBot(cmd.Context())
		},
	}
}

func buildModulesCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "modules",
		Short: "List discovered modules",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.New()
			if err != nil {
				return err
			}
			if dir == "" {
				dir = cfg.ModulesDir
			}
			logger, err := newLogger(cfg.LogLevel)
			if err != nil {
				return err
			}
			manifest, err := modules.Manifest(nil, logger)
			if err != nil {
				return err
			}
			found, err := module.NewRegistry(module.Options{
				Manifest: manifest,
				Sources:  modules.Sources(dir),
				Logger:   logger,
			}).Discover()
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "IDENTIFIER\tNAME\tVERSION\tLOCATION")
			for _, m := range found {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", m.Identifier, m.Name, m.Version, m.Location())
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&dir, "modules-dir", "", "Modules directory (default MODULES_DIR)")
	return cmd
}

func buildSettingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Manage the module settings snapshot",
	}
	cmd.AddCommand(buildSettingsInitCmd())
	return cmd
}

func buildSettingsInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write missing module setting defaults without connecting",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.New()
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg.LogLevel)
			if err != nil {
				return err
			}
			manifest, err := modules.Manifest(nil, logger)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			client, err := bot.New(ctx, bot.Options{
				Config:   cfg,
				Manifest: manifest,
				Sources:  modules.Sources(cfg.ModulesDir),
				Logger:   logger,
			})
			if err != nil {
				return err
			}
			defer client.Close()

			stats, err := client.Initialize(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d modules\n", cfg.SettingsPath, stats.Modules)
			return nil
		},
	}
}

func buildVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}
