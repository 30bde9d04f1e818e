package core

import "github.com/keshon/modbot/internal/storage"

// User is a message author.
type User struct {
	ID       string
	Username string
	Bot      bool
}

// Message is an inbound chat message as delivered by the transport.
type Message struct {
	ID        string
	GuildID   string // empty for direct messages
	ChannelID string
	Author    User
	Content   string
	// Raw is the transport's own event value, for level resolution.
	Raw any
}

// IsDM reports whether the message was sent outside a guild.
func (m *Message) IsDM() bool { return m.GuildID == "" }

// CommandInfo is the per-invocation context built from a message.
type CommandInfo struct {
	Message   *Message
	GuildID   string
	ChannelID string
	Author    User
	IsDM      bool
	Guild     *storage.GuildSettings
	Level     int
}

// NewCommandInfo derives the invocation context from msg and its guild record.
func NewCommandInfo(msg *Message, guild *storage.GuildSettings) *CommandInfo {
	return &CommandInfo{
		Message:   msg,
		GuildID:   msg.GuildID,
		ChannelID: msg.ChannelID,
		Author:    msg.Author,
		IsDM:      msg.IsDM(),
		Guild:     guild,
	}
}

// Ready is the payload of EventReady.
type Ready struct {
	User   User
	Guilds []string
}

// GuildInfo is the payload of EventGuildCreate.
type GuildInfo struct {
	ID      string
	Name    string
	OwnerID string
}

// Member is the payload of EventGuildMemberAdd.
type Member struct {
	GuildID string
	User    User
}
