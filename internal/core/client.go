package core

import (
	"context"

	"github.com/keshon/modbot/internal/settings"
	"github.com/keshon/modbot/internal/storage"
)

// NoticeStyle selects how a notice is rendered by the transport.
type NoticeStyle int

const (
	StyleInfo NoticeStyle = iota
	StyleError
	StyleNoPermission
	StyleSuccess
)

// Field is a titled block inside a notice.
type Field struct {
	Name   string
	Value  string
	Inline bool
}

// Notice is a formatted message. Content without a Title is sent as plain text.
type Notice struct {
	Style       NoticeStyle
	Title       string
	Description string
	Content     string
	Fields      []Field
}

// AddField appends a field and returns the notice for chaining.
func (n Notice) AddField(name, value string) Notice {
	n.Fields = append(n.Fields, Field{Name: name, Value: value})
	return n
}

// Sender is the outbound capability of the chat platform.
type Sender interface {
	// Send posts a notice to a channel and returns the new message ID.
	Send(ctx context.Context, channelID string, n Notice) (string, error)
	Delete(ctx context.Context, channelID, messageID string) error
	// SetStatus updates the bot presence text.
	SetStatus(ctx context.Context, status string) error
}

// Client is what commands and event listeners receive as their first argument.
type Client interface {
	Sender
	Commands() *Index
	Settings() *settings.ModuleSettings
	Guild(ctx context.Context, guildID string) (*storage.GuildSettings, error)
	UpdateGuild(ctx context.Context, g *storage.GuildSettings) error
	Variables() *Variables
}

// Reply sends n to the channel the command was invoked in.
func Reply(ctx context.Context, c Client, info *CommandInfo, n Notice) error {
	_, err := c.Send(ctx, info.ChannelID, n)
	return err
}
