package models

import "time"

// Turn roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ConversationTurn is one message in a channel's model-facing conversation.
// Rows are append-only; they are never updated and are removed only by a
// full per-guild wipe.
type ConversationTurn struct {
	ID         uint   `gorm:"primaryKey;autoIncrement"`
	GuildID    string `gorm:"size:32;index"`
	ChannelID  string `gorm:"size:32;index"`
	UserID     string `gorm:"size:32;index"`
	AuthorName string `gorm:"size:128"`
	Role       string `gorm:"size:16;not null"`
	Content    string `gorm:"type:text"`
	CreatedAt  time.Time
}
