package db

import (
	"fmt"

	"github.com/zulandar/dinbot/internal/models"
	"gorm.io/gorm"
)

// AllModels returns the list of all GORM models for migration.
func AllModels() []interface{} {
	return []interface{}{
		&models.ConversationTurn{},
		&models.GuildPolicy{},
		&models.ChannelPolicy{},
	}
}

// AutoMigrate creates or updates all dinbot tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}
