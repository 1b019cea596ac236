// Package store persists conversation turns and guild/channel policies.
package store

import (
	"fmt"

	"github.com/zulandar/dinbot/internal/models"
	"gorm.io/gorm"
)

// DefaultHistoryLimit is the number of turns fetched for model context.
const DefaultHistoryLimit = 20

// ConversationStore is the append-only turn log. Turns are never updated;
// the only delete path is a full per-guild wipe.
type ConversationStore struct {
	db *gorm.DB
}

// ConversationStoreOpts holds parameters for creating a ConversationStore.
type ConversationStoreOpts struct {
	DB *gorm.DB
}

// NewConversationStore creates a ConversationStore.
func NewConversationStore(opts ConversationStoreOpts) (*ConversationStore, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("store: conversation store: db is required")
	}
	return &ConversationStore{db: opts.DB}, nil
}

// Append records one turn.
func (cs *ConversationStore) Append(turn *models.ConversationTurn) error {
	if err := cs.db.Create(turn).Error; err != nil {
		return fmt.Errorf("store: append turn: %w", err)
	}
	return nil
}

// FetchHistory returns the most recent limit turns for a channel in
// chronological order. When userScope is non-empty, only that user's turns
// and assistant turns are included; assistant turns are always shared.
// An empty channel yields an empty slice, never an error.
func (cs *ConversationStore) FetchHistory(channelID, userScope string, limit int) ([]models.ConversationTurn, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	q := cs.db.Where("channel_id = ?", channelID)
	if userScope != "" {
		q = q.Where("user_id = ? OR role = ?", userScope, models.RoleAssistant)
	}

	var turns []models.ConversationTurn
	result := q.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&turns)
	if result.Error != nil {
		return nil, fmt.Errorf("store: fetch history: %w", result.Error)
	}

	// Newest-first from the query; reverse into chronological order.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// Wipe deletes every turn recorded for a guild.
func (cs *ConversationStore) Wipe(guildID string) error {
	result := cs.db.Where("guild_id = ?", guildID).Delete(&models.ConversationTurn{})
	if result.Error != nil {
		return fmt.Errorf("store: wipe guild %s: %w", guildID, result.Error)
	}
	return nil
}
