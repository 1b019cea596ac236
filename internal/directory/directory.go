// Package directory exposes guild roster, role, and channel enumeration plus
// message delivery over the Discord REST API.
package directory

import "context"

// Role is a guild role as seen by the substitution builder.
type Role struct {
	ID   string
	Name string
}

// Channel is a guild channel.
type Channel struct {
	ID   string
	Name string
}

// Member is a guild member with every display form a mention pattern can
// carry. GlobalName and Nick may be empty.
type Member struct {
	UserID     string
	Username   string
	GlobalName string
	Nick       string
}

// DisplayName returns the most specific display form: nickname, then global
// name, then username.
func (m Member) DisplayName() string {
	if m.Nick != "" {
		return m.Nick
	}
	if m.GlobalName != "" {
		return m.GlobalName
	}
	return m.Username
}

// Snapshot is a point-in-time view of a guild used for cache builds.
type Snapshot struct {
	GuildID  string
	Roles    []Role
	Channels []Channel
	Members  []Member
}

// Directory is the guild directory collaborator. Every call may fail
// independently; callers degrade the dependent feature only.
type Directory interface {
	// Roles lists the guild's roles.
	Roles(ctx context.Context, guildID string) ([]Role, error)

	// Channels lists the guild's channels.
	Channels(ctx context.Context, guildID string) ([]Channel, error)

	// Members lists up to limit guild members (one membership page).
	Members(ctx context.Context, guildID string, limit int) ([]Member, error)

	// SendMessage posts plain text to a channel.
	SendMessage(ctx context.Context, channelID, content string) error

	// SendEmbed posts a rich-formatted block to a channel.
	SendEmbed(ctx context.Context, channelID, description string, color int) error

	// Typing triggers the typing indicator in a channel.
	Typing(ctx context.Context, channelID string) error
}

// BuildSnapshot assembles a Snapshot from the three enumeration calls.
// A failure in any one call fails the snapshot; partial guild views would
// produce misleading substitution tables.
func BuildSnapshot(ctx context.Context, d Directory, guildID string, memberLimit int) (*Snapshot, error) {
	roles, err := d.Roles(ctx, guildID)
	if err != nil {
		return nil, err
	}
	channels, err := d.Channels(ctx, guildID)
	if err != nil {
		return nil, err
	}
	members, err := d.Members(ctx, guildID, memberLimit)
	if err != nil {
		return nil, err
	}
	return &Snapshot{
		GuildID:  guildID,
		Roles:    roles,
		Channels: channels,
		Members:  members,
	}, nil
}
