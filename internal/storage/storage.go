// /internal/storage/storage.go
package storage

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"github.com/charmbracelet/log"
)

// ErrUnknownDriver is returned by Open for an unsupported driver name.
var ErrUnknownDriver = errors.New("unknown storage driver")

// GuildSettings is the per-guild record. Settings keys are
// "<module identifier>_<setting key>".
type GuildSettings struct {
	GuildID   string         `json:"guild_id"`
	Prefix    string         `json:"prefix"`
	CmdLevels map[string]int `json:"cmd_levels"`
	Settings  map[string]any `json:"settings"`
}

// Clone returns a deep enough copy for callers that mutate maps.
func (g *GuildSettings) Clone() *GuildSettings {
	if g == nil {
		return nil
	}
	c := *g
	c.CmdLevels = maps.Clone(g.CmdLevels)
	c.Settings = maps.Clone(g.Settings)
	c.normalize()
	return &c
}

// Level returns the guild override for a command label.
func (g *GuildSettings) Level(label string) (int, bool) {
	lvl, ok := g.CmdLevels[label]
	return lvl, ok
}

func (g *GuildSettings) normalize() {
	if g.CmdLevels == nil {
		g.CmdLevels = map[string]int{}
	}
	if g.Settings == nil {
		g.Settings = map[string]any{}
	}
}

// Template builds the record a guild gets on first contact.
type Template func(guildID string) *GuildSettings

// StaticTemplate returns a Template with a fixed prefix and no module overrides.
func StaticTemplate(prefix string) Template {
	return func(guildID string) *GuildSettings {
		return &GuildSettings{
			GuildID:   guildID,
			Prefix:    prefix,
			CmdLevels: map[string]int{},
			Settings:  map[string]any{},
		}
	}
}

// GuildStore persists guild records. GetOrCreate and Update are single-record
// operations; there are no cross-guild guarantees.
type GuildStore interface {
	GetOrCreate(ctx context.Context, guildID string) (*GuildSettings, error)
	Update(ctx context.Context, g *GuildSettings) error
	Close() error
}

// Options configure Open.
type Options struct {
	Driver   string // json, sqlite, postgres
	DSN      string // file path for json, data source name for sql drivers
	Template Template
	Logger   *log.Logger
}

// Open returns the GuildStore for the configured driver.
func Open(ctx context.Context, opts Options) (GuildStore, error) {
	if opts.Template == nil {
		return nil, errors.New("storage template is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	logger = logger.WithPrefix("storage")

	switch opts.Driver {
	case "json", "":
		return NewJSONStore(opts.DSN, opts.Template, logger)
	case "sqlite", "postgres":
		return OpenSQL(ctx, opts.Driver, opts.DSN, opts.Template, logger)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, opts.Driver)
	}
}
