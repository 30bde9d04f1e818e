package discord

import (
	"github.com/bwmarrin/discordgo"

	"github.com/keshon/modbot/internal/core"
)

// EmbedColor is the accent of informational embeds.
const EmbedColor = 0xb01e66

var styleColors = map[core.NoticeStyle]int{
	core.StyleInfo:         EmbedColor,
	core.StyleSuccess:      0x2ecc71,
	core.StyleError:        0xe74c3c,
	core.StyleNoPermission: 0xf1c40f,
}

// messageFor renders a notice. A notice without title, description or fields
// is sent as plain content.
func messageFor(n core.Notice) *discordgo.MessageSend {
	send := &discordgo.MessageSend{
		Content:         n.Content,
		AllowedMentions: &discordgo.MessageAllowedMentions{},
	}
	if n.Title == "" && n.Description == "" && len(n.Fields) == 0 {
		return send
	}

	embed := &discordgo.MessageEmbed{
		Title:       n.Title,
		Description: n.Description,
		Color:       styleColors[n.Style],
	}
	for _, f := range n.Fields {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   f.Name,
			Value:  f.Value,
			Inline: f.Inline,
		})
	}
	send.Embeds = []*discordgo.MessageEmbed{embed}
	return send
}
