// Package bot assembles the client every command and listener receives:
// module registry, command index, event bus, settings and guild storage.
package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/keshon/modbot/internal/config"
	"github.com/keshon/modbot/internal/core"
	"github.com/keshon/modbot/internal/metrics"
	"github.com/keshon/modbot/internal/module"
	"github.com/keshon/modbot/internal/settings"
	"github.com/keshon/modbot/internal/storage"
)

// ErrNotConnected is returned by outbound calls before a sender is attached.
var ErrNotConnected = errors.New("client is not connected")

// Options configure a Client. Settings and Guilds are opened from Config when nil.
type Options struct {
	Config   *config.Config
	Manifest module.Manifest
	Sources  []module.Source
	Settings *settings.Store
	Guilds   storage.GuildStore
	Metrics  *metrics.Metrics
	Logger   *log.Logger
}

// Client implements core.Client and module.Host.
type Client struct {
	cfg       *config.Config
	registry  *module.Registry
	commands  *core.Index
	events    *core.Bus
	effective *settings.ModuleSettings
	store     *settings.Store
	guilds    storage.GuildStore
	variables *core.Variables
	metrics   *metrics.Metrics
	logger    *log.Logger

	mu     sync.RWMutex
	sender core.Sender
}

// New opens the settings snapshot and the guild store. Failing to open either
// is fatal.
func New(ctx context.Context, opts Options) (*Client, error) {
	if opts.Config == nil {
		return nil, errors.New("config is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	c := &Client{
		cfg:       opts.Config,
		commands:  core.NewIndex(logger),
		events:    core.NewBus(),
		effective: settings.NewModuleSettings(),
		variables: core.NewVariables(),
		metrics:   opts.Metrics,
		logger:    logger.WithPrefix("bot"),
	}
	c.registry = module.NewRegistry(module.Options{
		Manifest: opts.Manifest,
		Sources:  opts.Sources,
		Commands: c.commands,
		Events:   c.events,
		Logger:   logger,
	})

	c.store = opts.Settings
	if c.store == nil {
		store, err := settings.Open(opts.Config.SettingsPath, logger)
		if err != nil {
			return nil, err
		}
		c.store = store
	}

	c.guilds = opts.Guilds
	if c.guilds == nil {
		guilds, err := storage.Open(ctx, storage.Options{
			Driver:   opts.Config.StorageDriver,
			DSN:      opts.Config.StorageDSN,
			Template: c.template,
			Logger:   logger,
		})
		if err != nil {
			c.store.Close()
			return nil, err
		}
		if opts.Config.GuildCacheTTL > 0 {
			guilds = storage.NewCachedStore(guilds, opts.Config.GuildCacheTTL)
		}
		c.guilds = guilds
	}
	return c, nil
}

// template builds the record of a guild seen for the first time.
func (c *Client) template(guildID string) *storage.GuildSettings {
	g := storage.StaticTemplate(c.cfg.DefaultPrefix)(guildID)
	g.Settings = c.registry.GuildDefaults()
	return g
}

// Initialize loads every module, then writes missing setting defaults and
// builds the effective settings. It must finish before events are emitted.
func (c *Client) Initialize(ctx context.Context) (module.Stats, error) {
	stats, err := c.registry.Load(ctx, c, true, true)
	if err != nil {
		return stats, fmt.Errorf("load modules: %w", err)
	}
	if err := c.SyncSettings(); err != nil {
		return stats, err
	}
	c.metrics.ObserveLoad(stats.Modules, stats.Commands, stats.Events)
	return stats, nil
}

// Reload rediscovers modules from scratch. Commands and registry-owned
// listeners of the previous load are gone afterwards.
func (c *Client) Reload(ctx context.Context) (module.Stats, error) {
	c.logger.Info("reloading modules")
	return c.Initialize(ctx)
}

// SyncSettings runs EnsureDefaults then LoadEffective for the loaded modules.
func (c *Client) SyncSettings() error {
	schemas := c.registry.Schemas()
	if err := c.store.EnsureDefaults(schemas); err != nil {
		return err
	}
	return c.store.LoadEffective(schemas, c.effective)
}

// Attach sets the outbound transport.
func (c *Client) Attach(s core.Sender) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sender = s
}

func (c *Client) outbound() (core.Sender, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.sender == nil {
		return nil, ErrNotConnected
	}
	return c.sender, nil
}

// Emit delivers a transport event to the bus.
func (c *Client) Emit(ctx context.Context, event string, payload any) {
	c.events.Emit(ctx, event, payload)
}

// Close flushes settings and closes the guild store.
func (c *Client) Close() error {
	return errors.Join(c.guilds.Close(), c.store.Close())
}

func (c *Client) Send(ctx context.Context, channelID string, n core.Notice) (string, error) {
	s, err := c.outbound()
	if err != nil {
		return "", err
	}
	return s.Send(ctx, channelID, n)
}

func (c *Client) Delete(ctx context.Context, channelID, messageID string) error {
	s, err := c.outbound()
	if err != nil {
		return err
	}
	return s.Delete(ctx, channelID, messageID)
}

func (c *Client) SetStatus(ctx context.Context, status string) error {
	s, err := c.outbound()
	if err != nil {
		return err
	}
	return s.SetStatus(ctx, status)
}

func (c *Client) Commands() *core.Index { return c.commands }
func (c *Client) Events() *core.Bus { return c.events }
func (c *Client) Settings() *settings.ModuleSettings { return c.effective }
func (c *Client) Variables() *core.Variables { return c.variables }
func (c *Client) Registry() *module.Registry { return c.registry }
func (c *Client) Modules() []*module.Module { return c.registry.Modules() }
func (c *Client) Module(id string) (*module.Module, bool) { return c.registry.Module(id) }

// Guild returns the guild record, creating it on first contact. Direct
// messages (empty guildID) get the template, which is not persisted.
func (c *Client) Guild(ctx context.Context, guildID string) (*storage.GuildSettings, error) {
	if guildID == "" {
		return c.template(""), nil
	}
	return c.guilds.GetOrCreate(ctx, guildID)
}

// UpdateGuild persists a guild record.
func (c *Client) UpdateGuild(ctx context.Context, g *storage.GuildSettings) error {
	if g == nil || g.GuildID == "" {
		return errors.New("cannot update settings outside a guild")
	}
	return c.guilds.Update(ctx, g)
}

// SetGlobal persists a bot-wide setting of a loaded module.
func (c *Client) SetGlobal(_ context.Context, moduleID, key string, value any) error {
	if _, ok := c.registry.Module(moduleID); !ok {
		return fmt.Errorf("module %q is not loaded", moduleID)
	}
	return c.store.Set(moduleID, key, value, c.effective)
}

// IsOwner reports whether userID is a configured bot owner.
func (c *Client) IsOwner(userID string) bool {
	return config.IsOwner(c.cfg, userID)
}
