package store

import (
	"errors"
	"fmt"

	"github.com/zulandar/dinbot/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultSystemPrompt is the persona used when a guild has none configured.
const DefaultSystemPrompt = "You are a helpful assistant."

// PolicyStore reads and writes guild and channel policies. Reads never fail
// on a missing row; they synthesize documented defaults instead.
type PolicyStore struct {
	db                *gorm.DB
	defaultChatModel  string
	defaultImageModel string
}

// PolicyStoreOpts holds parameters for creating a PolicyStore.
type PolicyStoreOpts struct {
	DB                *gorm.DB
	DefaultChatModel  string // model used for guilds with no stored policy
	DefaultImageModel string
}

// NewPolicyStore creates a PolicyStore.
func NewPolicyStore(opts PolicyStoreOpts) (*PolicyStore, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("store: policy store: db is required")
	}
	if opts.DefaultChatModel == "" {
		return nil, fmt.Errorf("store: policy store: default chat model is required")
	}
	return &PolicyStore{
		db:                opts.DB,
		defaultChatModel:  opts.DefaultChatModel,
		defaultImageModel: opts.DefaultImageModel,
	}, nil
}

// GuildPolicy returns the stored policy for a guild, or defaults on miss.
func (ps *PolicyStore) GuildPolicy(guildID string) (models.GuildPolicy, error) {
	var p models.GuildPolicy
	err := ps.db.First(&p, "guild_id = ?", guildID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.GuildPolicy{
			GuildID:      guildID,
			ChatModel:    ps.defaultChatModel,
			ImageModel:   ps.defaultImageModel,
			SystemPrompt: DefaultSystemPrompt,
		}, nil
	}
	if err != nil {
		return models.GuildPolicy{}, fmt.Errorf("store: guild policy %s: %w", guildID, err)
	}
	if p.ChatModel == "" {
		p.ChatModel = ps.defaultChatModel
	}
	if p.ImageModel == "" {
		p.ImageModel = ps.defaultImageModel
	}
	if p.SystemPrompt == "" {
		p.SystemPrompt = DefaultSystemPrompt
	}
	return p, nil
}

// PutGuildPolicy upserts a guild policy.
func (ps *PolicyStore) PutGuildPolicy(p models.GuildPolicy) error {
	result := ps.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "guild_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"chat_model", "image_model", "system_prompt"}),
	}).Create(&p)
	if result.Error != nil {
		return fmt.Errorf("store: put guild policy %s: %w", p.GuildID, result.Error)
	}
	return nil
}

// ChannelPolicy returns the stored policy for a channel, or defaults on miss
// (not listening, per-user scope, secondary trigger off).
func (ps *PolicyStore) ChannelPolicy(channelID string) (models.ChannelPolicy, error) {
	var p models.ChannelPolicy
	err := ps.db.First(&p, "channel_id = ?", channelID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.ChannelPolicy{ChannelID: channelID}, nil
	}
	if err != nil {
		return models.ChannelPolicy{}, fmt.Errorf("store: channel policy %s: %w", channelID, err)
	}
	return p, nil
}

// ListeningGuilds returns the distinct guild IDs that have at least one
// channel in the listening state. The scheduled mention sweep refreshes
// exactly these guilds.
func (ps *PolicyStore) ListeningGuilds() ([]string, error) {
	var guilds []string
	err := ps.db.Model(&models.ChannelPolicy{}).
		Distinct("guild_id").
		Where("is_listening = ? AND guild_id != ''", true).
		Pluck("guild_id", &guilds).Error
	if err != nil {
		return nil, fmt.Errorf("store: listening guilds: %w", err)
	}
	return guilds, nil
}

// PutChannelPolicy upserts a channel policy.
func (ps *PolicyStore) PutChannelPolicy(p models.ChannelPolicy) error {
	result := ps.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "channel_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"guild_id", "is_listening", "shared_scope", "secondary_trigger"}),
	}).Create(&p)
	if result.Error != nil {
		return fmt.Errorf("store: put channel policy %s: %w", p.ChannelID, result.Error)
	}
	return nil
}
