package discord

import (
	"context"
	"slices"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/modbot/internal/core"
	"github.com/keshon/modbot/internal/storage"
)

const moderatorPerms = discordgo.PermissionManageMessages |
	discordgo.PermissionKickMembers |
	discordgo.PermissionBanMembers

// Level computes the author's permission level from bot ownership, guild
// ownership and channel permissions.
func (s *Session) Level(_ context.Context, msg *core.Message, _ *storage.GuildSettings) int {
	if slices.Contains(s.owners, msg.Author.ID) {
		return core.LevelBotOwner
	}
	if msg.IsDM() {
		return core.LevelEveryone
	}

	guild, err := s.dg.State.Guild(msg.GuildID)
	if err != nil || guild == nil {
		guild, err = s.dg.Guild(msg.GuildID)
		if err != nil || guild == nil {
			s.logger.Warn("failed to fetch guild", "guild", msg.GuildID, "err", err)
			return core.LevelEveryone
		}
	}

	perms, err := s.dg.State.UserChannelPermissions(msg.Author.ID, msg.ChannelID)
	if err != nil {
		perms, err = s.dg.UserChannelPermissions(msg.Author.ID, msg.ChannelID)
		if err != nil {
			s.logger.Debug("failed to resolve channel permissions", "user", msg.Author.ID, "err", err)
			perms = 0
		}
	}
	return levelFor(msg.Author.ID, nil, guild.OwnerID, perms)
}

// levelFor maps ownership and a permission bit set to a level.
func levelFor(userID string, owners []string, guildOwnerID string, perms int64) int {
	switch {
	case slices.Contains(owners, userID):
		return core.LevelBotOwner
	case userID != "" && userID == guildOwnerID:
		return core.LevelServerOwner
	case perms&discordgo.PermissionAdministrator != 0:
		return core.LevelAdministrator
	case perms&moderatorPerms != 0:
		return core.LevelModerator
	}
	return core.LevelEveryone
}
