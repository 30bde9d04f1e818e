// Package configure is the built-in module that edits guild and global
// module settings.
package configure

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/keshon/modbot/internal/core"
	"github.com/keshon/modbot/internal/module"
	"github.com/keshon/modbot/internal/settings"
	"github.com/keshon/modbot/internal/storage"
)

// ID is the module identifier.
const ID = "config"

var errNoHost = errors.New("client does not expose modules")

// Module provides the config and prefix commands.
type Module struct{}

// New returns the config module.
func New() *Module { return &Module{} }

func (*Module) Identifier() string { return ID }

func (*Module) Commands() []*core.Command {
	return []*core.Command{configCommand(), prefixCommand()}
}

func (*Module) Events() []*core.EventHandler { return nil }

var actions = []string{"help", "list", "info", "set", "reset", "setup", "global"}

func configCommand() *core.Command {
	return &core.Command{
		Label:        "config",
		Aliases:      []string{"cfg"},
		Description:  "Show and change module settings for this server",
		Usage:        "config help|list|info|set|reset|setup|global",
		Category:     "Settings",
		DefaultLevel: core.LevelServerOwner,
		Arguments: []core.Argument{
			core.Choice("action", "action", actions...).Optional(),
			core.Rest("rest", "arguments").Optional(),
		},
		Run: runConfig,
	}
}

func runConfig(ctx context.Context, c core.Client, info *core.CommandInfo, _ []string, parsed core.Args) error {
	host, ok := c.(module.Host)
	if !ok {
		return errNoHost
	}
	action, _ := parsed.String("action")
	rest, _ := parsed.String("rest")

	switch action {
	case "list":
		return list(ctx, host, info)
	case "info":
		return withArgs(ctx, c, info, rest, "config info <module>", []core.Argument{
			core.Word("module", "module"),
		}, func(a core.Args) error { return moduleInfo(ctx, host, info, str(a, "module")) })
	case "set":
		return withArgs(ctx, c, info, rest, "config set <module> <setting> <value>", []core.Argument{
			core.Word("module", "module"),
			core.Word("setting", "setting"),
			core.Rest("value", "value"),
		}, func(a core.Args) error {
			return setGuild(ctx, host, info, str(a, "module"), str(a, "setting"), str(a, "value"))
		})
	case "reset":
		return withArgs(ctx, c, info, rest, "config reset <module> [setting]", []core.Argument{
			core.Word("module", "module"),
			core.Word("setting", "setting").Optional(),
		}, func(a core.Args) error { return reset(ctx, host, info, str(a, "module"), str(a, "setting")) })
	case "setup":
		return setup(ctx, host, info)
	case "global":
		return withArgs(ctx, c, info, rest, "config global <module> <setting> <value>", []core.Argument{
			core.Word("module", "module"),
			core.Word("setting", "setting"),
			core.Rest("value", "value"),
		}, func(a core.Args) error {
			return setGlobal(ctx, host, info, str(a, "module"), str(a, "setting"), str(a, "value"))
		})
	default:
		return help(ctx, c, info)
	}
}

func str(a core.Args, id string) string {
	s, _ := a.String(id)
	return s
}

// withArgs parses a subcommand's own arguments and reports usage when one is missing.
func withArgs(ctx context.Context, c core.Client, info *core.CommandInfo, text, usage string, defs []core.Argument, run func(core.Args) error) error {
	parsed, missing := core.ParseArguments(defs, text)
	if missing != nil {
		return core.Reply(ctx, c, info, core.Notice{
			Style:       core.StyleError,
			Title:       "Missing argument",
			Description: fmt.Sprintf("`%s` is required.", missing.Name()),
		}.AddField("Usage", "`"+info.Guild.Prefix+usage+"`"))
	}
	return run(parsed)
}

func fail(ctx context.Context, c core.Client, info *core.CommandInfo, format string, args ...any) error {
	return core.Reply(ctx, c, info, core.Notice{Style: core.StyleError, Title: "Config", Description: fmt.Sprintf(format, args...)})
}

func success(ctx context.Context, c core.Client, info *core.CommandInfo, format string, args ...any) error {
	return core.Reply(ctx, c, info, core.Notice{Style: core.StyleSuccess, Title: "Config", Description: fmt.Sprintf(format, args...)})
}

func help(ctx context.Context, c core.Client, info *core.CommandInfo) error {
	p := info.Guild.Prefix
	n := core.Notice{Style: core.StyleInfo, Title: "Config", Description: "Module settings for this server."}
	n = n.AddField(p+"config list", "Modules and their current values")
	n = n.AddField(p+"config info <module>", "Settings of one module")
	n = n.AddField(p+"config set <module> <setting> <value>", "Override a setting here")
	n = n.AddField(p+"config reset <module> [setting]", "Back to the module default")
	n = n.AddField(p+"config setup", "Run pending module setup for this server")
	n = n.AddField(p+"config global <module> <setting> <value>", "Change a bot-wide setting (bot owner)")
	n = n.AddField(p+"prefix <new>", "Change the command prefix")
	return core.Reply(ctx, c, info, n)
}

func list(ctx context.Context, host module.Host, info *core.CommandInfo) error {
	n := core.Notice{Style: core.StyleInfo, Title: "Config", Description: fmt.Sprintf("Prefix: `%s`", info.Guild.Prefix)}
	for _, m := range host.Modules() {
		if len(m.Configuration.Guild) == 0 {
			continue
		}
		n = n.AddField(m.Name+" ("+m.Identifier+")", guildValues(m, info.Guild))
	}
	if len(n.Fields) == 0 {
		n.Description += "\nNo module has server settings."
	}
	return core.Reply(ctx, host, info, n)
}

func guildValues(m *module.Module, g *storage.GuildSettings) string {
	keys := slices.Sorted(maps.Keys(m.Configuration.Guild))
	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		v, ok := g.Settings[settings.GuildKey(m.Identifier, k)]
		if !ok {
			v = m.Configuration.Guild[k]
		}
		lines = append(lines, fmt.Sprintf("`%s` = %v", k, v))
	}
	return strings.Join(lines, "\n")
}

func moduleInfo(ctx context.Context, host module.Host, info *core.CommandInfo, id string) error {
	m, found := host.Module(id)
	if !found {
		return fail(ctx, host, info, "Module `%s` is not loaded.", id)
	}
	n := core.Notice{Style: core.StyleInfo, Title: m.Name + " " + m.Version, Description: m.Description}
	if len(m.Configuration.Guild) > 0 {
		n = n.AddField("Server settings", guildValues(m, info.Guild))
	}
	global := host.Settings().Module(m.Identifier)
	if len(global) > 0 {
		keys := make([]string, 0, len(global))
		for k := range global {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		lines := make([]string, 0, len(keys))
		for _, k := range keys {
			lines = append(lines, fmt.Sprintf("`%s` = %v", k, global[k]))
		}
		n = n.AddField("Global settings", strings.Join(lines, "\n"))
	}
	if len(n.Fields) == 0 {
		n = n.AddField("Settings", "none")
	}
	return core.Reply(ctx, host, info, n)
}

func setGuild(ctx context.Context, host module.Host, info *core.CommandInfo, id, key, raw string) error {
	if info.IsDM {
		return fail(ctx, host, info, "Server settings can only be changed in a server.")
	}
	m, found := host.Module(id)
	if !found {
		return fail(ctx, host, info, "Module `%s` is not loaded.", id)
	}
	def, declared := m.Configuration.Guild[key]
	if !declared {
		return fail(ctx, host, info, "Module `%s` has no server setting `%s`.", id, key)
	}
	value, err := Coerce(def, raw)
	if err != nil {
		return fail(ctx, host, info, "Invalid value for `%s`: %v", key, err)
	}

	g := info.Guild.Clone()
	g.Settings[settings.GuildKey(id, key)] = value
	if err := host.UpdateGuild(ctx, g); err != nil {
		return err
	}
	return success(ctx, host, info, "`%s.%s` is now `%v`.", id, key, value)
}

func reset(ctx context.Context, host module.Host, info *core.CommandInfo, id, key string) error {
	if info.IsDM {
		return fail(ctx, host, info, "Server settings can only be changed in a server.")
	}
	m, found := host.Module(id)
	if !found {
		return fail(ctx, host, info, "Module `%s` is not loaded.", id)
	}
	keys := slices.Sorted(maps.Keys(m.Configuration.Guild))
	if key != "" {
		if !m.HasGuildSetting(key) {
			return fail(ctx, host, info, "Module `%s` has no server setting `%s`.", id, key)
		}
		keys = []string{key}
	}

	g := info.Guild.Clone()
	for _, k := range keys {
		g.Settings[settings.GuildKey(id, k)] = m.Configuration.Guild[k]
	}
	if err := host.UpdateGuild(ctx, g); err != nil {
		return err
	}
	return success(ctx, host, info, "Reset %d setting(s) of `%s`.", len(keys), id)
}

// setup runs guild setup for every module that needs it here and fills in
// server settings the record lacks.
func setup(ctx context.Context, host module.Host, info *core.CommandInfo) error {
	if info.IsDM {
		return fail(ctx, host, info, "Setup can only run in a server.")
	}
	g := info.Guild.Clone()
	var done []string
	added := 0
	for _, m := range host.Modules() {
		for k, v := range m.GuildDefaults() {
			if _, exists := g.Settings[k]; !exists {
				g.Settings[k] = v
				added++
			}
		}
		if m.ExecuteGuildSetup(info.GuildID) {
			done = append(done, m.Identifier)
		}
	}
	if added > 0 {
		if err := host.UpdateGuild(ctx, g); err != nil {
			return err
		}
	}
	if len(done) == 0 {
		return success(ctx, host, info, "Nothing to set up. %d default(s) added.", added)
	}
	return success(ctx, host, info, "Set up %s. %d default(s) added.", strings.Join(done, ", "), added)
}

func setGlobal(ctx context.Context, host module.Host, info *core.CommandInfo, id, key, raw string) error {
	if !host.IsOwner(info.Author.ID) {
		return fail(ctx, host, info, "Only the bot owner can change global settings.")
	}
	m, found := host.Module(id)
	if !found {
		return fail(ctx, host, info, "Module `%s` is not loaded.", id)
	}
	def, declared := m.Configuration.Global[key]
	if !declared {
		return fail(ctx, host, info, "Module `%s` has no global setting `%s`.", id, key)
	}
	value, err := Coerce(def, raw)
	if err != nil {
		return fail(ctx, host, info, "Invalid value for `%s`: %v", key, err)
	}
	if err := host.SetGlobal(ctx, id, key, value); err != nil {
		return err
	}
	return success(ctx, host, info, "Global `%s.%s` is now `%v`.", id, key, value)
}

// Coerce converts raw to the type of def.
func Coerce(def any, raw string) (any, error) {
	raw = strings.TrimSpace(raw)
	switch def.(type) {
	case bool:
		switch strings.ToLower(raw) {
		case "true", "yes", "on", "1":
			return true, nil
		case "false", "no", "off", "0":
			return false, nil
		}
		return nil, fmt.Errorf("%q is not a boolean", raw)
	case int, int64:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("%q is not a whole number", raw)
		}
		return n, nil
	case float64:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not a number", raw)
		}
		return f, nil
	default:
		return raw, nil
	}
}

func prefixCommand() *core.Command {
	return &core.Command{
		Label:        "prefix",
		Description:  "Change the command prefix of this server",
		Usage:        "prefix <new>",
		Category:     "Settings",
		DefaultLevel: core.LevelAdministrator,
		Arguments:    []core.Argument{core.Word("prefix", "new prefix")},
		Run: func(ctx context.Context, c core.Client, info *core.CommandInfo, _ []string, parsed core.Args) error {
			prefix, _ := parsed.String("prefix")
			if len(prefix) > 5 {
				return fail(ctx, c, info, "A prefix can be at most 5 characters.")
			}
			g := info.Guild.Clone()
			g.Prefix = prefix
			if err := c.UpdateGuild(ctx, g); err != nil {
				return err
			}
			return success(ctx, c, info, "Prefix is now `%s`.", prefix)
		},
	}
}
