package configure

import (
	"context"
	"os"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/keshon/modbot/internal/bot"
	"github.com/keshon/modbot/internal/core"
	"github.com/keshon/modbot/internal/module"
	"github.com/keshon/modbot/internal/modules/modtest"
	"github.com/keshon/modbot/internal/settings"
)

const demoDescriptor = `
name: Demo
identifier: demo
version: 0.1.0
guild_setup: true
configuration:
  global:
    greeting: hello
    volume: 5
  guild:
    limit: 10
    enabled: true
`

func newClient(t *testing.T) (*bot.Client, *modtest.Recorder) {
	t.Helper()
	data, err := os.ReadFile("module.yaml")
	if err != nil {
		t.Fatal(err)
	}
	fsys := fstest.MapFS{
		"config/module.yaml": {Data: data},
		"demo/module.yaml":   {Data: []byte(demoDescriptor)},
	}
	return modtest.NewClient(t, fsys, New(), module.Funcs{ID: "demo"})
}

func guildValue(t *testing.T, c *bot.Client, key string) any {
	t.Helper()
	g, err := c.Guild(context.Background(), "g1")
	if err != nil {
		t.Fatal(err)
	}
	return g.Settings[key]
}

func run(t *testing.T, c *bot.Client, text string) {
	t.Helper()
	if err := modtest.Run(t, c, "g1", "admin", core.LevelServerOwner, "config", text); err != nil {
		t.Fatalf("config %s: %v", text, err)
	}
}

func TestNewGuildGetsModuleDefaults(t *testing.T) {
	c, _ := newClient(t)
	if n, ok := settings.Int(guildValue(t, c, "demo_limit")); !ok || n != 10 {
		t.Errorf("demo_limit = %v", guildValue(t, c, "demo_limit"))
	}
}

func TestSetAndReset(t *testing.T) {
	c, rec := newClient(t)

	run(t, c, "set demo limit 20")
	if rec.Last().Style != core.StyleSuccess {
		t.Fatalf("set notice = %+v", rec.Last())
	}
	if n, _ := settings.Int(guildValue(t, c, "demo_limit")); n != 20 {
		t.Errorf("demo_limit = %v", guildValue(t, c, "demo_limit"))
	}

	run(t, c, "set demo enabled off")
	if v := guildValue(t, c, "demo_enabled"); v != false {
		t.Errorf("demo_enabled = %v", v)
	}

	run(t, c, "list")
	if text := modtest.Text(rec.Last()); !strings.Contains(text, "`limit` = 20") {
		t.Errorf("list:\n%s", text)
	}

	run(t, c, "reset demo limit")
	if n, _ := settings.Int(guildValue(t, c, "demo_limit")); n != 10 {
		t.Errorf("after reset demo_limit = %v", guildValue(t, c, "demo_limit"))
	}
	if v := guildValue(t, c, "demo_enabled"); v != false {
		t.Error("reset of one key touched another")
	}

	run(t, c, "reset demo")
	if v := guildValue(t, c, "demo_enabled"); v != true {
		t.Errorf("after full reset demo_enabled = %v", v)
	}
}

func TestSetRejects(t *testing.T) {
	c, rec := newClient(t)
	for _, text := range []string{
		"set demo limit many",
		"set demo missing 1",
		"set ghost limit 1",
		"info ghost",
		"set demo",
	} {
		rec.Reset()
		run(t, c, text)
		if rec.Last().Style != core.StyleError {
			t.Errorf("%q: notice = %+v", text, rec.Last())
		}
	}
	if n, _ := settings.Int(guildValue(t, c, "demo_limit")); n != 10 {
		t.Error("rejected change was stored")
	}
}

func TestInfoAndHelp(t *testing.T) {
	c, rec := newClient(t)

	run(t, c, "info demo")
	text := modtest.Text(rec.Last())
	for _, want := range []string{"Demo 0.1.0", "`limit` = 10", "`greeting` = hello"} {
		if !strings.Contains(text, want) {
			t.Errorf("info lacks %q:\n%s", want, text)
		}
	}

	run(t, c, "")
	if !strings.Contains(modtest.Text(rec.Last()), "!config set <module> <setting> <value>") {
		t.Error("help missing usage")
	}
}

func TestGlobal(t *testing.T) {
	c, rec := newClient(t)

	run(t, c, "global demo volume 9")
	if rec.Last().Style != core.StyleError {
		t.Error("non-owner changed a global setting")
	}

	if err := modtest.Run(t, c, "g1", modtest.OwnerID, core.LevelBotOwner, "config", "global demo volume 9"); err != nil {
		t.Fatal(err)
	}
	if v, _ := c.Settings().Get("demo", "volume"); v != 9 {
		t.Errorf("volume = %v", v)
	}
}

func TestSetup(t *testing.T) {
	c, rec := newClient(t)

	run(t, c, "setup")
	if !strings.Contains(rec.Last().Description, "Set up demo") {
		t.Errorf("setup = %+v", rec.Last())
	}
	run(t, c, "setup")
	if !strings.Contains(rec.Last().Description, "Nothing to set up") {
		t.Errorf("second setup = %+v", rec.Last())
	}
	demo, _ := c.Module("demo")
	if !demo.GuildSetupDone("g1") {
		t.Error("guild setup not recorded")
	}
}

func TestPrefix(t *testing.T) {
	c, rec := newClient(t)
	if err := modtest.Run(t, c, "g1", "admin", core.LevelAdministrator, "prefix", "?"); err != nil {
		t.Fatal(err)
	}
	g, _ := c.Guild(context.Background(), "g1")
	if g.Prefix != "?" {
		t.Errorf("prefix = %q", g.Prefix)
	}

	if err := modtest.Run(t, c, "g1", "admin", core.LevelAdministrator, "prefix", "toolong"); err != nil {
		t.Fatal(err)
	}
	if rec.Last().Style != core.StyleError {
		t.Error("long prefix accepted")
	}
}

func TestCoerce(t *testing.T) {
	tests := []struct {
		def  any
		raw  string
		want any
		err  bool
	}{
		{true, "no", false, false},
		{true, "maybe", nil, true},
		{5, " 7 ", 7, false},
		{5, "7.5", nil, true},
		{1.5, "2.25", 2.25, false},
		{"x", "hello world", "hello world", false},
	}
	for _, tt := range tests {
		got, err := Coerce(tt.def, tt.raw)
		if (err != nil) != tt.err || got != tt.want {
			t.Errorf("Coerce(%v, %q) = %v, %v", tt.def, tt.raw, got, err)
		}
	}
}
