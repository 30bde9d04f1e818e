// Package base is the built-in module that routes messages to commands and
// answers help.
package base

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/keshon/modbot/internal/core"
	"github.com/keshon/modbot/internal/dispatch"
	"github.com/keshon/modbot/internal/module"
)

// ID is the module identifier.
const ID = "base"

// Module provides the base commands and listeners.
type Module struct {
	dispatcher *dispatch.Dispatcher
	logger     *log.Logger
}

// New returns the base module. Without a dispatcher no messageCreate listener
// is registered.
func New(d *dispatch.Dispatcher, logger *log.Logger) *Module {
	if logger == nil {
		logger = log.Default()
	}
	return &Module{dispatcher: d, logger: logger.WithPrefix(ID)}
}

func (m *Module) Identifier() string { return ID }

func (m *Module) Commands() []*core.Command {
	return []*core.Command{
		helpCommand(),
		modulesCommand(),
		pingCommand(),
		reloadCommand(),
	}
}

func (m *Module) Events() []*core.EventHandler {
	events := []*core.EventHandler{
		{Event: core.EventReady, Type: core.Once, Listener: m.onReady},
		{Event: core.EventGuildCreate, Type: core.On, Listener: m.onGuildCreate},
	}
	if m.dispatcher != nil {
		events = append(events, &core.EventHandler{
			Event:    core.EventMessageCreate,
			Type:     core.On,
			Listener: m.dispatcher.Listener(),
		})
	}
	return events
}

// onReady sets the presence and runs pending bot setup.
func (m *Module) onReady(ctx context.Context, c core.Client, _ any) {
	if status := c.Settings().String(ID, "status", ""); status != "" {
		if err := c.SetStatus(ctx, status); err != nil {
			m.logger.Warn("failed to set status", "err", err)
		}
	}
	host, ok := c.(module.Host)
	if !ok {
		return
	}
	for _, mod := range host.Modules() {
		if mod.ExecuteBotSetup() {
			m.logger.Info("bot setup complete", "module", mod.Identifier)
		}
	}
}

// onGuildCreate makes sure the guild has a settings record.
func (m *Module) onGuildCreate(ctx context.Context, c core.Client, payload any) {
	g, ok := payload.(core.GuildInfo)
	if !ok {
		return
	}
	if _, err := c.Guild(ctx, g.ID); err != nil {
		m.logger.Error("failed to prepare guild settings", "guild", g.ID, "err", err)
		return
	}
	m.logger.Debug("guild ready", "guild", g.ID, "name", g.Name)
}

func helpCommand() *core.Command {
	return &core.Command{
		Label:       "help",
		Aliases:     []string{"h", "commands"},
		Description: "List commands or show one command",
		Usage:       "help [command]",
		Category:    "General",
		AllowInDM:   true,
		Arguments:   []core.Argument{core.Word("command", "command").Optional()},
		Run: func(ctx context.Context, c core.Client, info *core.CommandInfo, _ []string, parsed core.Args) error {
			if name, ok := parsed.String("command"); ok {
				return helpFor(ctx, c, info, name)
			}
			return helpList(ctx, c, info)
		},
	}
}

func visible(cmd *core.Command, info *core.CommandInfo) bool {
	if info.IsDM && !cmd.AllowInDM {
		return false
	}
	return cmd.RequiredLevel(info.Guild.CmdLevels) <= info.Level
}

func helpList(ctx context.Context, c core.Client, info *core.CommandInfo) error {
	groups := map[string][]*core.Command{}
	for _, cmd := range c.Commands().Commands() {
		if !visible(cmd, info) {
			continue
		}
		category := cmd.Category
		if category == "" {
			category = cmd.Module
		}
		groups[category] = append(groups[category], cmd)
	}

	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)

	n := core.Notice{
		Style:       core.StyleInfo,
		Title:       "Commands",
		Description: fmt.Sprintf("Use `%shelp <command>` for details.", info.Guild.Prefix),
	}
	for _, name := range names {
		var b strings.Builder
		for _, cmd := range groups[name] {
			fmt.Fprintf(&b, "`%s%s` %s\n", info.Guild.Prefix, cmd.Label, cmd.Description)
		}
		n = n.AddField(name, strings.TrimSpace(b.String()))
	}
	return core.Reply(ctx, c, info, n)
}

func helpFor(ctx context.Context, c core.Client, info *core.CommandInfo, name string) error {
	cmd, ok := c.Commands().Resolve(name)
	if !ok || !visible(cmd, info) {
		return core.Reply(ctx, c, info, core.Notice{
			Style:       core.StyleError,
			Title:       "Unknown command",
			Description: fmt.Sprintf("No command named `%s`.", name),
		})
	}

	n := core.Notice{Style: core.StyleInfo, Title: info.Guild.Prefix + cmd.Label, Description: cmd.Description}
	usage := cmd.Usage
	if usage == "" {
		usage = cmd.Label
	}
	n = n.AddField("Usage", "`"+info.Guild.Prefix+usage+"`")
	if len(cmd.Aliases) > 0 {
		n = n.AddField("Aliases", strings.Join(cmd.Aliases, ", "))
	}
	n = n.AddField("Level", core.LevelName(cmd.RequiredLevel(info.Guild.CmdLevels)))
	n = n.AddField("Module", cmd.Module)
	return core.Reply(ctx, c, info, n)
}

func modulesCommand() *core.Command {
	return &core.Command{
		Label:       "modules",
		Description: "List loaded modules",
		Category:    "General",
		AllowInDM:   true,
		Run: func(ctx context.Context, c core.Client, info *core.CommandInfo, _ []string, _ core.Args) error {
			host, ok := c.(module.Host)
			if !ok {
				return fmt.Errorf("client does not expose modules")
			}
			n := core.Notice{Style: core.StyleInfo, Title: "Modules"}
			for _, mod := range host.Modules() {
				cmds, evs := mod.Counts()
				value := fmt.Sprintf("%d commands, %d events", cmds, evs)
				if mod.Description != "" {
					value = mod.Description + "\n" + value
				}
				n = n.AddField(fmt.Sprintf("%s %s (%s)", mod.Name, mod.Version, mod.Identifier), value)
			}
			return core.Reply(ctx, c, info, n)
		},
	}
}

func pingCommand() *core.Command {
	return &core.Command{
		Label:       "ping",
		Description: "Check that the bot answers",
		Category:    "General",
		AllowInDM:   true,
		Run: func(ctx context.Context, c core.Client, info *core.CommandInfo, _ []string, _ core.Args) error {
			return core.Reply(ctx, c, info, core.Notice{Content: "Pong!"})
		},
	}
}

func reloadCommand() *core.Command {
	return &core.Command{
		Label:        "reload",
		Description:  "Reload every module",
		Category:     "Maintenance",
		DefaultLevel: core.LevelBotOwner,
		AllowInDM:    true,
		Run: func(ctx context.Context, c core.Client, info *core.CommandInfo, _ []string, _ core.Args) error {
			host, ok := c.(module.Host)
			if !ok {
				return fmt.Errorf("client cannot reload modules")
			}
			stats, err := host.Reload(ctx)
			if err != nil {
				_ = core.Reply(ctx, c, info, core.Notice{
					Style:       core.StyleError,
					Title:       "Reload failed",
					Description: err.Error(),
				})
				return err
			}
			return core.Reply(ctx, c, info, core.Notice{
				Style:       core.StyleSuccess,
				Title:       "Modules reloaded",
				Description: fmt.Sprintf("%d modules, %d commands, %d events", stats.Modules, stats.Commands, stats.Events),
			})
		},
	}
}
