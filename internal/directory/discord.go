package directory

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// session abstracts the discordgo.Session methods we use, enabling test mocks.
type session interface {
	GuildRoles(guildID string, options ...discordgo.RequestOption) ([]*discordgo.Role, error)
	GuildChannels(guildID string, options ...discordgo.RequestOption) ([]*discordgo.Channel, error)
	GuildMembers(guildID string, after string, limit int, options ...discordgo.RequestOption) ([]*discordgo.Member, error)
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelTyping(channelID string, options ...discordgo.RequestOption) error
}

// DiscordDirectory implements Directory over a discordgo session.
type DiscordDirectory struct {
	sess session
}

// NewDiscord creates a DiscordDirectory backed by a live discordgo session.
func NewDiscord(sess *discordgo.Session) (*DiscordDirectory, error) {
	if sess == nil {
		return nil, fmt.Errorf("directory: discordgo session is required")
	}
	return &DiscordDirectory{sess: sess}, nil
}

// newWithSession creates a DiscordDirectory with an injected session (tests).
func newWithSession(sess session) *DiscordDirectory {
	return &DiscordDirectory{sess: sess}
}

// Roles lists the guild's roles.
func (d *DiscordDirectory) Roles(ctx context.Context, guildID string) ([]Role, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := d.sess.GuildRoles(guildID)
	if err != nil {
		return nil, fmt.Errorf("directory: guild roles %s: %w", guildID, err)
	}
	roles := make([]Role, 0, len(raw))
	for _, r := range raw {
		roles = append(roles, Role{ID: r.ID, Name: r.Name})
	}
	return roles, nil
}

// Channels lists the guild's channels. Only text-bearing channels are
// returned; categories and voice channels cannot receive sends.
func (d *DiscordDirectory) Channels(ctx context.Context, guildID string) ([]Channel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := d.sess.GuildChannels(guildID)
	if err != nil {
		return nil, fmt.Errorf("directory: guild channels %s: %w", guildID, err)
	}
	channels := make([]Channel, 0, len(raw))
	for _, ch := range raw {
		switch ch.Type {
		case discordgo.ChannelTypeGuildText, discordgo.ChannelTypeGuildNews:
			channels = append(channels, Channel{ID: ch.ID, Name: ch.Name})
		}
	}
	return channels, nil
}

// Members lists up to limit guild members.
func (d *DiscordDirectory) Members(ctx context.Context, guildID string, limit int) ([]Member, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := d.sess.GuildMembers(guildID, "", limit)
	if err != nil {
		return nil, fmt.Errorf("directory: guild members %s: %w", guildID, err)
	}
	members := make([]Member, 0, len(raw))
	for _, m := range raw {
		if m.User == nil {
			continue
		}
		members = append(members, Member{
			UserID:     m.User.ID,
			Username:   m.User.Username,
			GlobalName: m.User.GlobalName,
			Nick:       m.Nick,
		})
	}
	return members, nil
}

// SendMessage posts plain text to a channel.
func (d *DiscordDirectory) SendMessage(ctx context.Context, channelID, content string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := d.sess.ChannelMessageSend(channelID, content); err != nil {
		return fmt.Errorf("directory: send to %s: %w", channelID, err)
	}
	return nil
}

// SendEmbed posts a rich-formatted block to a channel.
func (d *DiscordDirectory) SendEmbed(ctx context.Context, channelID, description string, color int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	embed := &discordgo.MessageEmbed{
		Description: description,
		Color:       color,
	}
	if _, err := d.sess.ChannelMessageSendEmbed(channelID, embed); err != nil {
		return fmt.Errorf("directory: send embed to %s: %w", channelID, err)
	}
	return nil
}

// Typing triggers the typing indicator in a channel. Best-effort.
func (d *DiscordDirectory) Typing(ctx context.Context, channelID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := d.sess.ChannelTyping(channelID); err != nil {
		return fmt.Errorf("directory: typing in %s: %w", channelID, err)
	}
	return nil
}
