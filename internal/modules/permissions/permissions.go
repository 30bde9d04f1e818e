// Package permissions is the built-in module that overrides the level a
// command needs in one server.
package permissions

import (
	"context"
	"fmt"
	"strings"

	"github.com/keshon/modbot/internal/core"
)

// ID is the module identifier.
const ID = "permissions"

// Module provides the permissions command.
type Module struct{}

// New returns the permissions module.
func New() *Module { return &Module{} }

func (*Module) Identifier() string { return ID }
func (*Module) Events() []*core.EventHandler { return nil }

func (*Module) Commands() []*core.Command {
	return []*core.Command{{
		Label:        "permissions",
		Aliases:      []string{"perms"},
		Description:  "Show and override command levels for this server",
		Usage:        "permissions help|list|set <command> <level>|reset <command>",
		Category:     "Settings",
		DefaultLevel: core.LevelServerOwner,
		Arguments: []core.Argument{
			core.Choice("action", "action", "help", "list", "set", "reset").Optional(),
			core.Word("command", "command").Optional(),
			core.Word("level", "level").Optional(),
		},
		Run: run,
	}}
}

func run(ctx context.Context, c core.Client, info *core.CommandInfo, _ []string, parsed core.Args) error {
	action, _ := parsed.String("action")
	label, _ := parsed.String("command")
	level, _ := parsed.String("level")

	switch action {
	case "list":
		return list(ctx, c, info)
	case "set":
		if label == "" || level == "" {
			return usage(ctx, c, info, "permissions set <command> <level>")
		}
		return set(ctx, c, info, label, level)
	case "reset":
		if label == "" {
			return usage(ctx, c, info, "permissions reset <command>")
		}
		return reset(ctx, c, info, label)
	default:
		return help(ctx, c, info)
	}
}

func notice(style core.NoticeStyle, format string, args ...any) core.Notice {
	return core.Notice{Style: style, Title: "Permissions", Description: fmt.Sprintf(format, args...)}
}

func usage(ctx context.Context, c core.Client, info *core.CommandInfo, u string) error {
	return core.Reply(ctx, c, info, notice(core.StyleError, "Usage: `%s%s`", info.Guild.Prefix, u))
}

func help(ctx context.Context, c core.Client, info *core.CommandInfo) error {
	p := info.Guild.Prefix
	n := notice(core.StyleInfo, "Levels: everyone (0), moderator (10), administrator (50), owner (100), or any number.")
	n = n.AddField(p+"permissions list", "Every command with its level here")
	n = n.AddField(p+"permissions set <command> <level>", "Override the level of a command")
	n = n.AddField(p+"permissions reset <command>", "Back to the command default")
	return core.Reply(ctx, c, info, n)
}

func list(ctx context.Context, c core.Client, info *core.CommandInfo) error {
	var b strings.Builder
	for _, cmd := range c.Commands().Commands() {
		lvl := cmd.RequiredLevel(info.Guild.CmdLevels)
		fmt.Fprintf(&b, "`%s` %s", cmd.Label, core.LevelName(lvl))
		if _, overridden := info.Guild.Level(cmd.Label); overridden {
			fmt.Fprintf(&b, " (default %s)", core.LevelName(cmd.DefaultLevel))
		}
		b.WriteByte('\n')
	}
	return core.Reply(ctx, c, info, notice(core.StyleInfo, "%s", strings.TrimSpace(b.String())))
}

func set(ctx context.Context, c core.Client, info *core.CommandInfo, token, raw string) error {
	cmd, found := c.Commands().Resolve(token)
	if !found {
		return core.Reply(ctx, c, info, notice(core.StyleError, "No command named `%s`.", token))
	}
	lvl, valid := core.ParseLevel(raw)
	if !valid {
		return core.Reply(ctx, c, info, notice(core.StyleError, "`%s` is not a level.", raw))
	}
	if lvl > info.Level {
		return core.Reply(ctx, c, info, notice(core.StyleError, "You cannot require a level above your own (%s).", core.LevelName(info.Level)))
	}

	g := info.Guild.Clone()
	g.CmdLevels[cmd.Label] = lvl
	if err := c.UpdateGuild(ctx, g); err != nil {
		return err
	}
	return core.Reply(ctx, c, info, notice(core.StyleSuccess, "`%s` now needs %s.", cmd.Label, core.LevelName(lvl)))
}

func reset(ctx context.Context, c core.Client, info *core.CommandInfo, token string) error {
	cmd, found := c.Commands().Resolve(token)
	if !found {
		return core.Reply(ctx, c, info, notice(core.StyleError, "No command named `%s`.", token))
	}
	g := info.Guild.Clone()
	delete(g.CmdLevels, cmd.Label)
	if err := c.UpdateGuild(ctx, g); err != nil {
		return err
	}
	return core.Reply(ctx, c, info, notice(core.StyleSuccess, "`%s` is back to %s.", cmd.Label, core.LevelName(cmd.DefaultLevel)))
}
