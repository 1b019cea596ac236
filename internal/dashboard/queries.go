package dashboard

import (
	"fmt"

	"github.com/zulandar/dinbot/internal/models"
	"gorm.io/gorm"
)

// Summary holds the aggregate numbers shown on the status endpoint.
type Summary struct {
	TurnsTotal        int64
	GuildsWithMemory  int64
	ListeningChannels int64
}

// StatusSummary aggregates conversation and policy state for the status
// endpoint.
func StatusSummary(db *gorm.DB) (Summary, error) {
	var s Summary
	if err := db.Model(&models.ConversationTurn{}).Count(&s.TurnsTotal).Error; err != nil {
		return Summary{}, fmt.Errorf("dashboard: count turns: %w", err)
	}
	if err := db.Model(&models.ConversationTurn{}).
		Distinct("guild_id").Count(&s.GuildsWithMemory).Error; err != nil {
		return Summary{}, fmt.Errorf("dashboard: count guilds: %w", err)
	}
	if err := db.Model(&models.ChannelPolicy{}).
		Where("is_listening = ?", true).Count(&s.ListeningChannels).Error; err != nil {
		return Summary{}, fmt.Errorf("dashboard: count listening channels: %w", err)
	}
	return s, nil
}
