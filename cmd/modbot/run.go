package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/keshon/modbot/internal/bot"
	"github.com/keshon/modbot/internal/config"
	"github.com/keshon/modbot/internal/core"
	"github.com/keshon/modbot/internal/discord"
	"github.com/keshon/modbot/internal/dispatch"
	"github.com/keshon/modbot/internal/metrics"
	"github.com/keshon/modbot/internal/module"
	"github.com/keshon/modbot/internal/modules"
	"github.com/keshon/modbot/internal/version"
	"github.com/keshon/modbot/pkg/jobmgr"
)

// runBot loads modules, connects and blocks until a signal arrives or ctx ends.
func runBot(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	cfg, err := config.New()
	if err != nil {
		return err
	}
	if err := cfg.RequireToken(); err != nil {
		return err
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger.Info("starting", "version", version.String())

	m := metrics.New(prometheus.NewRegistry())

	session, err := discord.New(discord.Options{
		Token:    cfg.DiscordToken,
		OwnerIDs: cfg.OwnerIDs,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	dispatcher := dispatch.New(dispatch.Options{
		BotID:      session.BotID,
		IgnoreBots: cfg.IgnoreBots,
		NoticeTTL:  cfg.NoticeTTL,
		Level:      session.Level,
		Middlewares: []core.Middleware{
			core.WithCommandLogger(logger),
			m.Middleware(),
		},
		Metrics: m,
		Logger:  logger,
	})

	manifest, err := modules.Manifest(dispatcher, logger)
	if err != nil {
		return err
	}

	client, err := bot.New(ctx, bot.Options{
		Config:   cfg,
		Manifest: manifest,
		Sources:  modules.Sources(cfg.ModulesDir),
		Metrics:  m,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := client.Close(); err != nil {
			logger.Error("close client", "err", err)
		}
	}()

	stats, err := client.Initialize(ctx)
	if err != nil {
		return err
	}
	logger.Info("modules ready", "modules", stats.Modules, "commands", stats.Commands, "events", stats.Events)

	jobs := jobmgr.NewManager(ctx, logger)
	defer jobs.Shutdown()

	if cfg.MetricsAddr != "" {
		if err := jobs.Start("metrics", func(ctx context.Context) error {
			return m.Serve(ctx, cfg.MetricsAddr, logger)
		}); err != nil {
			return err
		}
	}
	if cfg.WatchModules {
		if err := jobs.Start("watch-modules", func(ctx context.Context) error {
			return module.Watch(ctx, cfg.ModulesDir, module.DefaultDebounce, logger, func() {
				if _, err := client.Reload(ctx); err != nil {
					logger.Error("reload after change failed", "err", err)
				}
			})
		}); err != nil {
			return err
		}
	}

	client.Attach(session)
	if err := session.Open(ctx, client.Emit); err != nil {
		return err
	}
	defer func() {
		if err := session.Close(); err != nil {
			logger.Error("close session", "err", err)
		}
	}()
	logger.Info("connected")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sig)

	select {
	case s := <-sig:
		logger.Info("received signal, shutting down", "signal", s)
	case <-ctx.Done():
	}
	cancel()
	logger.Info("exited cleanly")
	return nil
}
