// Package dispatch routes inbound messages to commands.
package dispatch

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/charmbracelet/log"

	"github.com/keshon/modbot/internal/core"
	"github.com/keshon/modbot/internal/metrics"
	"github.com/keshon/modbot/internal/storage"
)

// Outcome is where dispatch of one message stopped.
type Outcome string

const (
	Ignored         Outcome = "ignored"
	NotCommand      Outcome = "not_command"
	UnknownCommand  Outcome = "unknown_command"
	DMBlocked       Outcome = "dm_blocked"
	Denied          Outcome = "denied"
	MissingArgument Outcome = "missing_argument"
	Invoked         Outcome = "invoked"
	Failed          Outcome = "failed"
)

// DefaultNoticeTTL is how long permission and argument notices stay visible.
const DefaultNoticeTTL = 5 * time.Second

// LevelFunc computes the permission level of the message author.
type LevelFunc func(ctx context.Context, msg *core.Message, guild *storage.GuildSettings) int

// Options configure a Dispatcher.
type Options struct {
	// BotID returns the bot's own user ID. It may be empty before the
	// connection is ready, in which case mentions never match.
	BotID      func() string
	IgnoreBots bool
	NoticeTTL  time.Duration
	Level      LevelFunc
	// After schedules f once after d. Defaults to time.AfterFunc.
	After       func(d time.Duration, f func())
	Middlewares []core.Middleware
	Metrics     *metrics.Metrics
	Logger      *log.Logger
}

// Dispatcher runs the per-message state machine: ignore self, resolve guild,
// match prefix or mention, tokenize, resolve command, DM gate, permission
// gate, parse arguments, invoke.
type Dispatcher struct {
	botID      func() string
	ignoreBots bool
	ttl        time.Duration
	level      LevelFunc
	after      func(time.Duration, func())
	mws        []core.Middleware
	metrics    *metrics.Metrics
	logger     *log.Logger
}

// New returns a Dispatcher.
func New(opts Options) *Dispatcher {
	d := &Dispatcher{
		botID:      opts.BotID,
		ignoreBots: opts.IgnoreBots,
		ttl:        opts.NoticeTTL,
		level:      opts.Level,
		after:      opts.After,
		mws:        opts.Middlewares,
		metrics:    opts.Metrics,
		logger:     opts.Logger,
	}
	if d.botID == nil {
		d.botID = func() string { return "" }
	}
	if d.level == nil {
		d.level = func(context.Context, *core.Message, *storage.GuildSettings) int { return core.LevelEveryone }
	}
	if d.after == nil {
		d.after = func(dur time.Duration, f func()) { time.AfterFunc(dur, f) }
	}
	if d.logger == nil {
		d.logger = log.Default()
	}
	d.logger = d.logger.WithPrefix("dispatch")
	return d
}

// Dispatch handles one message. Silent stops return a nil error. A command
// that fails returns Failed with its error.
func (d *Dispatcher) Dispatch(ctx context.Context, c core.Client, msg *core.Message) (Outcome, error) {
	outcome, err := d.dispatch(ctx, c, msg)
	d.metrics.ObserveDispatch(string(outcome))
	return outcome, err
}

func (d *Dispatcher) dispatch(ctx context.Context, c core.Client, msg *core.Message) (Outcome, error) {
	if msg == nil {
		return Ignored, nil
	}
	botID := d.botID()
	if botID != "" && msg.Author.ID == botID {
		return Ignored, nil
	}
	if d.ignoreBots && msg.Author.Bot {
		return Ignored, nil
	}

	guild, err := c.Guild(ctx, msg.GuildID)
	if err != nil {
		return Failed, fmt.Errorf("guild settings for %q: %w", msg.GuildID, err)
	}

	body, ok := d.strip(msg.Content, guild.Prefix, botID)
	if !ok {
		return NotCommand, nil
	}
	tokens := strings.Fields(body)
	if len(tokens) == 0 {
		return NotCommand, nil
	}
	token, args := tokens[0], tokens[1:]

	cmd, ok := c.Commands().Resolve(token)
	if !ok {
		d.logger.Debug("unknown command", "token", token, "guild", msg.GuildID)
		return UnknownCommand, nil
	}

	info := core.NewCommandInfo(msg, guild)
	if info.IsDM && !cmd.AllowInDM {
		return DMBlocked, nil
	}

	info.Level = d.level(ctx, msg, guild)
	required := cmd.RequiredLevel(guild.CmdLevels)
	if info.Level < required {
		n := core.Notice{
			Style:       core.StyleNoPermission,
			Title:       "No permission",
			Description: fmt.Sprintf("You need level %d to use `%s`.", required, cmd.Label),
		}
		if err := d.ephemeral(ctx, c, msg.ChannelID, n); err != nil {
			return Denied, err
		}
		return Denied, nil
	}

	var parsed core.Args
	if len(cmd.Arguments) > 0 {
		rest := strings.TrimSpace(strings.TrimPrefix(strings.TrimLeftFunc(body, unicode.IsSpace), token))
		var missing core.Argument
		parsed, missing = core.ParseArguments(cmd.Arguments, rest)
		if missing != nil {
			n := core.Notice{
				Style:       core.StyleError,
				Title:       "Missing argument",
				Description: fmt.Sprintf("`%s` is required.", missing.Name()),
			}
			if cmd.Usage != "" {
				n = n.AddField("Usage", "`"+guild.Prefix+cmd.Usage+"`")
			}
			if err := d.ephemeral(ctx, c, msg.ChannelID, n); err != nil {
				return MissingArgument, err
			}
			return MissingArgument, nil
		}
	}

	if err := cmd.Invoke(ctx, c, info, args, parsed, d.mws...); err != nil {
		return Failed, fmt.Errorf("command %s: %w", cmd.Label, err)
	}
	return Invoked, nil
}

// strip removes the guild prefix or a leading bot mention from content.
func (d *Dispatcher) strip(content, prefix, botID string) (string, bool) {
	if prefix != "" && strings.HasPrefix(content, prefix) {
		return content[len(prefix):], true
	}
	if botID == "" {
		return "", false
	}
	for _, mention := range []string{"<@" + botID + ">", "<@!" + botID + ">"} {
		if content == mention || strings.HasPrefix(content, mention+" ") {
			return content[len(mention):], true
		}
	}
	return "", false
}

// ephemeral sends n and schedules its deletion after the notice TTL.
func (d *Dispatcher) ephemeral(ctx context.Context, c core.Client, channelID string, n core.Notice) error {
	id, err := c.Send(ctx, channelID, n)
	if err != nil {
		return fmt.Errorf("send notice: %w", err)
	}
	if d.ttl <= 0 || id == "" {
		return nil
	}
	d.metrics.ObserveNotice()
	bg := context.WithoutCancel(ctx)
	d.after(d.ttl, func() {
		if err := c.Delete(bg, channelID, id); err != nil {
			d.logger.Warn("failed to delete notice", "channel", channelID, "message", id, "err", err)
		}
	})
	return nil
}

// Listener adapts the dispatcher to a messageCreate event listener.
func (d *Dispatcher) Listener() core.Listener {
	return func(ctx context.Context, c core.Client, payload any) {
		msg, ok := payload.(*core.Message)
		if !ok {
			return
		}
		outcome, err := d.Dispatch(ctx, c, msg)
		if err != nil {
			d.logger.Error("dispatch failed", "outcome", outcome, "guild", msg.GuildID, "channel", msg.ChannelID, "err", err)
		}
	}
}
