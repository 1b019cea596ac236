package bot

import (
	"github.com/bwmarrin/discordgo"
	"github.com/zulandar/dinbot/internal/directory"
	"github.com/zulandar/dinbot/internal/pipeline"
)

// EventFromMessage converts a gateway message into the pipeline's transient
// event. The caller has already filtered out bot authors.
func EventFromMessage(m *discordgo.MessageCreate, botUserID string) *pipeline.MessageEvent {
	ev := &pipeline.MessageEvent{
		GuildID:           m.GuildID,
		ChannelID:         m.ChannelID,
		AuthorID:          m.Author.ID,
		AuthorDisplayName: authorDisplayName(m),
		RawContent:        m.Content,
		MentionedRoleIDs:  m.MentionRoles,
	}
	for _, a := range m.Attachments {
		ev.Attachments = append(ev.Attachments, pipeline.Attachment{
			Filename:    a.Filename,
			ContentType: a.ContentType,
			URL:         a.URL,
			Size:        a.Size,
		})
	}
	for _, u := range m.Mentions {
		if u.ID == botUserID {
			ev.BotMentioned = true
			continue
		}
		ev.MentionedUsers = append(ev.MentionedUsers, directory.Member{
			UserID:     u.ID,
			Username:   u.Username,
			GlobalName: u.GlobalName,
		})
	}
	if ref := m.ReferencedMessage; ref != nil && ref.Author != nil {
		ev.Referenced = &pipeline.ReferencedMessage{
			AuthorName: ref.Author.Username,
			Content:    ref.Content,
		}
	}
	return ev
}

func authorDisplayName(m *discordgo.MessageCreate) string {
	if m.Member != nil && m.Member.Nick != "" {
		return m.Member.Nick
	}
	if m.Author.GlobalName != "" {
		return m.Author.GlobalName
	}
	return m.Author.Username
}
