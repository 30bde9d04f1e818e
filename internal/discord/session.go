// Package discord connects the bot to Discord: it forwards gateway events to
// an emitter and implements core.Sender over the REST API.
package discord

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/bwmarrin/discordgo"
	"github.com/charmbracelet/log"

	"github.com/keshon/modbot/internal/core"
	"github.com/keshon/modbot/pkg/retrylimit"
)

// Emitter receives gateway events translated to core payloads.
type Emitter func(ctx context.Context, event string, payload any)

// Options configure a Session.
type Options struct {
	Token    string
	OwnerIDs []string
	Logger   *log.Logger
}

// Session wraps a discordgo session.
type Session struct {
	dg     *discordgo.Session
	owners []string
	lim    *retrylimit.AdaptiveLimiter
	retry  retrylimit.Config
	logger *log.Logger

	ctx  context.Context
	emit Emitter
}

// New creates a session. It does not connect.
func New(opts Options) (*Session, error) {
	if opts.Token == "" {
		return nil, errors.New("discord token is empty")
	}
	dg, err := discordgo.New("Bot " + opts.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsMessageContent

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	logger = logger.WithPrefix("discord")

	retry := retrylimit.DefaultConfig()
	retry.Status = restStatus
	retry.Logger = logger

	return &Session{
		dg:     dg,
		owners: slices.Clone(opts.OwnerIDs),
		lim:    retrylimit.NewAdaptiveLimiter(5, 1, 20, 1, 0.5),
		retry:  retry,
		logger: logger,
	}, nil
}

// Open registers the gateway handlers and connects. Events are delivered to
// emit with ctx until Close.
func (s *Session) Open(ctx context.Context, emit Emitter) error {
	s.ctx = ctx
	s.emit = emit

	s.dg.AddHandler(s.onReady)
	s.dg.AddHandler(s.onMessageCreate)
	s.dg.AddHandler(s.onGuildCreate)
	s.dg.AddHandler(s.onGuildMemberAdd)

	if err := s.dg.Open(); err != nil {
		return fmt.Errorf("failed to open Discord session: %w", err)
	}
	return nil
}

// Close disconnects from the gateway.
func (s *Session) Close() error {
	return s.dg.Close()
}

// BotID returns the bot's user ID, or "" before the ready event.
func (s *Session) BotID() string {
	if s.dg.State == nil || s.dg.State.User == nil {
		return ""
	}
	return s.dg.State.User.ID
}

// Send posts n to channelID.
func (s *Session) Send(ctx context.Context, channelID string, n core.Notice) (string, error) {
	var msg *discordgo.Message
	err := retrylimit.Do(ctx, s.lim, s.retry, func() error {
		var err error
		msg, err = s.dg.ChannelMessageSendComplex(channelID, messageFor(n), discordgo.WithContext(ctx))
		return err
	})
	if err != nil {
		return "", err
	}
	return msg.ID, nil
}

// Delete removes a message.
func (s *Session) Delete(ctx context.Context, channelID, messageID string) error {
	return retrylimit.Do(ctx, s.lim, s.retry, func() error {
		return s.dg.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx))
	})
}

// SetStatus sets the "playing" presence text.
func (s *Session) SetStatus(_ context.Context, status string) error {
	return s.dg.UpdateGameStatus(0, status)
}

func restStatus(err error) int {
	var rest *discordgo.RESTError
	if errors.As(err, &rest) && rest.Response != nil {
		return rest.Response.StatusCode
	}
	var rl *discordgo.RateLimitError
	if errors.As(err, &rl) {
		return 429
	}
	return retrylimit.StatusOf(err)
}

func (s *Session) onReady(_ *discordgo.Session, r *discordgo.Ready) {
	ready := core.Ready{User: userOf(r.User)}
	for _, g := range r.Guilds {
		ready.Guilds = append(ready.Guilds, g.ID)
	}
	s.logger.Info("discord bot is running", "user", ready.User.Username, "guilds", len(ready.Guilds))
	s.emit(s.ctx, core.EventReady, ready)
}

func (s *Session) onMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil {
		return
	}
	s.emit(s.ctx, core.EventMessageCreate, messageOf(m))
}

func (s *Session) onGuildCreate(_ *discordgo.Session, g *discordgo.GuildCreate) {
	if g.Guild == nil || g.Unavailable {
		return
	}
	s.logger.Debug("guild available", "guild", g.ID, "name", g.Name)
	s.emit(s.ctx, core.EventGuildCreate, core.GuildInfo{ID: g.ID, Name: g.Name, OwnerID: g.OwnerID})
}

func (s *Session) onGuildMemberAdd(_ *discordgo.Session, m *discordgo.GuildMemberAdd) {
	if m.Member == nil || m.User == nil {
		return
	}
	s.emit(s.ctx, core.EventGuildMemberAdd, core.Member{GuildID: m.GuildID, User: userOf(m.User)})
}

func userOf(u *discordgo.User) core.User {
	if u == nil {
		return core.User{}
	}
	return core.User{ID: u.ID, Username: u.Username, Bot: u.Bot}
}

func messageOf(m *discordgo.MessageCreate) *core.Message {
	return &core.Message{
		ID:        m.ID,
		GuildID:   m.GuildID,
		ChannelID: m.ChannelID,
		Author:    userOf(m.Author),
		Content:   m.Content,
		Raw:       m,
	}
}
