package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/keshon/modbot/internal/core"
	"github.com/keshon/modbot/internal/settings"
	"github.com/keshon/modbot/internal/storage"
)

const botID = "999"

type sentNotice struct {
	channel string
	notice  core.Notice
}

type fakeClient struct {
	mu       sync.Mutex
	index    *core.Index
	guilds   map[string]*storage.GuildSettings
	sent     []sentNotice
	deleted  []string
	lookups  int
	guildErr error
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		index:  core.NewIndex(log.New(io.Discard)),
		guilds: map[string]*storage.GuildSettings{},
	}
}

func (f *fakeClient) Send(_ context.Context, channelID string, n core.Notice) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentNotice{channel: channelID, notice: n})
	return fmt.Sprintf("m%d", len(f.sent)), nil
}

func (f *fakeClient) Delete(_ context.Context, _, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, messageID)
	return nil
}

func (f *fakeClient) SetStatus(context.Context, string) error { return nil }
func (f *fakeClient) Commands() *core.Index                  { return f.index }
func (f *fakeClient) Settings() *settings.ModuleSettings     { return settings.NewModuleSettings() }
func (f *fakeClient) Variables() *core.Variables             { return core.NewVariables() }

func (f *fakeClient) Guild(_ context.Context, guildID string) (*storage.GuildSettings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups++
	if f.guildErr != nil {
		return nil, f.guildErr
	}
	if g, ok := f.guilds[guildID]; ok {
		return g.Clone(), nil
	}
	return storage.StaticTemplate("!")(guildID), nil
}

func (f *fakeClient) UpdateGuild(_ context.Context, g *storage.GuildSettings) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.guilds[g.GuildID] = g.Clone()
	return nil
}

// scheduler records delayed calls instead of running them.
type scheduler struct {
	delays []time.Duration
	funcs  []func()
}

func (s *scheduler) after(d time.Duration, f func()) {
	s.delays = append(s.delays, d)
	s.funcs = append(s.funcs, f)
}

func (s *scheduler) runAll() {
	for _, f := range s.funcs {
		f()
	}
}

type invocation struct {
	info   *core.CommandInfo
	args   []string
	parsed core.Args
}

func recordingCommand(label string, calls *[]invocation) *core.Command {
	return &core.Command{
		Label: label,
		Run: func(_ context.Context, _ core.Client, info *core.CommandInfo, args []string, parsed core.Args) error {
			*calls = append(*calls, invocation{info: info, args: args, parsed: parsed})
			return nil
		},
	}
}

func newDispatcher(s *scheduler, level int) *Dispatcher {
	return New(Options{
		BotID:      func() string { return botID },
		IgnoreBots: true,
		NoticeTTL:  DefaultNoticeTTL,
		Level: func(context.Context, *core.Message, *storage.GuildSettings) int {
			return level
		},
		After:  s.after,
		Logger: log.New(io.Discard),
	})
}

func message(guildID, content string) *core.Message {
	return &core.Message{
		ID:        "in",
		GuildID:   guildID,
		ChannelID: "c1",
		Author:    core.User{ID: "42", Username: "user"},
		Content:   content,
	}
}

func TestDispatchPrefix(t *testing.T) {
	c := newFakeClient()
	var calls []invocation
	help := recordingCommand("help", &calls)
	help.Aliases = []string{"h"}
	c.index.Register(help)
	d := newDispatcher(&scheduler{}, core.LevelEveryone)

	tests := []struct {
		content string
		outcome Outcome
		args    []string
	}{
		{"!help", Invoked, []string{}},
		{"!h  a   b ", Invoked, []string{"a", "b"}},
		{"help", NotCommand, nil},
		{"!", NotCommand, nil},
		{"!nope", UnknownCommand, nil},
		{"?help", NotCommand, nil},
	}
	for _, tt := range tests {
		t.Run(tt.content, func(t *testing.T) {
			calls = nil
			got, err := d.Dispatch(context.Background(), c, message("g1", tt.content))
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.outcome {
				t.Fatalf("outcome = %s, want %s", got, tt.outcome)
			}
			if tt.outcome != Invoked {
				if len(calls) != 0 {
					t.Error("command invoked")
				}
				return
			}
			if len(calls) != 1 {
				t.Fatalf("calls = %d", len(calls))
			}
			if len(calls[0].args) != len(tt.args) {
				t.Fatalf("args = %q, want %q", calls[0].args, tt.args)
			}
			for i := range tt.args {
				if calls[0].args[i] != tt.args[i] {
					t.Errorf("args = %q, want %q", calls[0].args, tt.args)
				}
			}
		})
	}
	if len(c.sent) != 0 {
		t.Errorf("unexpected notices: %v", c.sent)
	}
}

func TestDispatchGuildPrefix(t *testing.T) {
	c := newFakeClient()
	c.guilds["g1"] = &storage.GuildSettings{GuildID: "g1", Prefix: "$$"}
	var calls []invocation
	c.index.Register(recordingCommand("help", &calls))
	d := newDispatcher(&scheduler{}, 0)

	if got, _ := d.Dispatch(context.Background(), c, message("g1", "!help")); got != NotCommand {
		t.Errorf("default prefix in custom guild = %s", got)
	}
	if got, _ := d.Dispatch(context.Background(), c, message("g1", "$$help")); got != Invoked {
		t.Errorf("custom prefix = %s", got)
	}
}

func TestDispatchMention(t *testing.T) {
	c := newFakeClient()
	c.guilds["g1"] = &storage.GuildSettings{GuildID: "g1", Prefix: "."}
	var calls []invocation
	c.index.Register(recordingCommand("help", &calls))
	d := newDispatcher(&scheduler{}, 0)

	for _, content := range []string{"<@999> help", "<@!999>   help me"} {
		if got, err := d.Dispatch(context.Background(), c, message("g1", content)); got != Invoked || err != nil {
			t.Errorf("%q: outcome = %s, err = %v", content, got, err)
		}
	}
	if len(calls) != 2 || len(calls[1].args) != 1 || calls[1].args[0] != "me" {
		t.Errorf("calls = %+v", calls)
	}

	for _, content := range []string{"<@123> help", "hi <@999> help", "<@999>help"} {
		if got, _ := d.Dispatch(context.Background(), c, message("g1", content)); got != NotCommand {
			t.Errorf("%q: outcome = %s, want not_command", content, got)
		}
	}
}

func TestDispatchIgnoresSelf(t *testing.T) {
	c := newFakeClient()
	var calls []invocation
	c.index.Register(recordingCommand("help", &calls))
	s := &scheduler{}
	d := newDispatcher(s, 0)

	msg := message("g1", "!help")
	msg.Author.ID = botID
	got, err := d.Dispatch(context.Background(), c, msg)
	if got != Ignored || err != nil {
		t.Fatalf("outcome = %s, err = %v", got, err)
	}
	if c.lookups != 0 || len(c.sent) != 0 || len(calls) != 0 || len(s.funcs) != 0 {
		t.Errorf("side effects: lookups=%d sent=%d calls=%d scheduled=%d", c.lookups, len(c.sent), len(calls), len(s.funcs))
	}

	other := message("g1", "!help")
	other.Author.Bot = true
	if got, _ := d.Dispatch(context.Background(), c, other); got != Ignored {
		t.Errorf("other bot: outcome = %s", got)
	}
}

func TestDispatchDMGate(t *testing.T) {
	c := newFakeClient()
	var calls []invocation
	c.index.Register(recordingCommand("config", &calls))
	ping := recordingCommand("ping", &calls)
	ping.AllowInDM = true
	c.index.Register(ping)
	d := newDispatcher(&scheduler{}, 0)

	if got, _ := d.Dispatch(context.Background(), c, message("", "!config")); got != DMBlocked {
		t.Errorf("config in DM = %s", got)
	}
	if got, _ := d.Dispatch(context.Background(), c, message("", "!ping")); got != Invoked {
		t.Errorf("ping in DM = %s", got)
	}
	if len(calls) != 1 || !calls[0].info.IsDM {
		t.Errorf("calls = %+v", calls)
	}
	if len(c.sent) != 0 {
		t.Error("DM gate must be silent")
	}
}

func TestDispatchPermissionGate(t *testing.T) {
	var calls []invocation
	help := recordingCommand("help", &calls)
	help.DefaultLevel = 100

	t.Run("override wins over default", func(t *testing.T) {
		c := newFakeClient()
		c.guilds["g1"] = &storage.GuildSettings{GuildID: "g1", Prefix: "!", CmdLevels: map[string]int{"help": 0}}
		c.index.Register(help)
		calls = nil

		got, err := newDispatcher(&scheduler{}, 10).Dispatch(context.Background(), c, message("g1", "!help"))
		if got != Invoked || err != nil {
			t.Fatalf("outcome = %s, err = %v", got, err)
		}
		if calls[0].info.Level != 10 {
			t.Errorf("info.Level = %d", calls[0].info.Level)
		}
	})

	t.Run("denied notice deletes itself", func(t *testing.T) {
		c := newFakeClient()
		c.index.Register(help)
		calls = nil
		s := &scheduler{}

		got, err := newDispatcher(s, 10).Dispatch(context.Background(), c, message("g1", "!help"))
		if got != Denied || err != nil {
			t.Fatalf("outcome = %s, err = %v", got, err)
		}
		if len(calls) != 0 {
			t.Error("command invoked despite denial")
		}
		if len(c.sent) != 1 || c.sent[0].notice.Style != core.StyleNoPermission || c.sent[0].channel != "c1" {
			t.Fatalf("sent = %+v", c.sent)
		}
		if len(s.delays) != 1 || s.delays[0] != 5*time.Second {
			t.Fatalf("scheduled = %v", s.delays)
		}
		if len(c.deleted) != 0 {
			t.Error("deleted before the delay elapsed")
		}
		s.runAll()
		if len(c.deleted) != 1 || c.deleted[0] != "m1" {
			t.Errorf("deleted = %v", c.deleted)
		}
	})
}

func TestDispatchMissingArgument(t *testing.T) {
	c := newFakeClient()
	invoked := false
	c.index.Register(&core.Command{
		Label: "config",
		Usage: "config set <module> <setting> <value>",
		Arguments: []core.Argument{
			core.Choice("action", "action", "set", "reset"),
			core.Word("value", "value"),
		},
		Run: func(context.Context, core.Client, *core.CommandInfo, []string, core.Args) error {
			invoked = true
			return nil
		},
	})
	s := &scheduler{}
	d := newDispatcher(s, core.LevelBotOwner)

	got, err := d.Dispatch(context.Background(), c, message("g1", "!config set"))
	if got != MissingArgument || err != nil {
		t.Fatalf("outcome = %s, err = %v", got, err)
	}
	if invoked {
		t.Error("command invoked with a missing argument")
	}
	if len(c.sent) != 1 {
		t.Fatalf("notices = %d, want exactly 1", len(c.sent))
	}
	if len(s.funcs) != 1 {
		t.Fatalf("scheduled deletions = %d", len(s.funcs))
	}
	s.runAll()
	if len(c.deleted) != 1 {
		t.Errorf("deleted = %v", c.deleted)
	}
}

func TestDispatchParsesArguments(t *testing.T) {
	c := newFakeClient()
	var calls []invocation
	echo := recordingCommand("echo", &calls)
	echo.Arguments = []core.Argument{core.Int("times", "times").Optional(), core.Rest("text", "text")}
	c.index.Register(echo)
	d := newDispatcher(&scheduler{}, 0)

	if got, err := d.Dispatch(context.Background(), c, message("g1", "!echo 2 hello   world ")); got != Invoked || err != nil {
		t.Fatalf("outcome = %s, err = %v", got, err)
	}
	p := calls[0].parsed
	if n, _ := p.Int("times"); n != 2 {
		t.Errorf("times = %d", n)
	}
	if s, _ := p.String("text"); s != "hello   world" {
		t.Errorf("text = %q", s)
	}
}

func TestDispatchArgumentsAfterUnicodeSpace(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"no-break space", "!\u00a0echo hi"},
		{"vertical tab", "!\vecho hi"},
		{"form feed", "!\fecho hi"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newFakeClient()
			var calls []invocation
			echo := recordingCommand("echo", &calls)
			echo.Arguments = []core.Argument{core.Rest("text", "text")}
			c.index.Register(echo)
			d := newDispatcher(&scheduler{}, 0)

			if got, err := d.Dispatch(context.Background(), c, message("g1", tt.content)); got != Invoked || err != nil {
				t.Fatalf("outcome = %s, err = %v", got, err)
			}
			if s, _ := calls[0].parsed.String("text"); s != "hi" {
				t.Errorf("text = %q, want hi (args=%q)", s, calls[0].args)
			}
		})
	}
}

func TestDispatchCommandFailure(t *testing.T) {
	c := newFakeClient()
	boom := errors.New("boom")
	c.index.Register(&core.Command{Label: "x", Run: func(context.Context, core.Client, *core.CommandInfo, []string, core.Args) error {
		return boom
	}})
	got, err := newDispatcher(&scheduler{}, 0).Dispatch(context.Background(), c, message("g1", "!x"))
	if got != Failed || !errors.Is(err, boom) {
		t.Errorf("outcome = %s, err = %v", got, err)
	}
}

func TestDispatchGuildError(t *testing.T) {
	c := newFakeClient()
	c.guildErr = errors.New("db down")
	got, err := newDispatcher(&scheduler{}, 0).Dispatch(context.Background(), c, message("g1", "!x"))
	if got != Failed || err == nil {
		t.Errorf("outcome = %s, err = %v", got, err)
	}
}

func TestListenerIgnoresForeignPayload(t *testing.T) {
	c := newFakeClient()
	newDispatcher(&scheduler{}, 0).Listener()(context.Background(), c, "not a message")
	if c.lookups != 0 {
		t.Error("listener dispatched a foreign payload")
	}
}
