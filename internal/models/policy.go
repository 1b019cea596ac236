package models

// GuildPolicy holds per-guild AI settings. Mutated only by the settings
// surface; readers synthesize defaults when no row exists.
type GuildPolicy struct {
	GuildID      string `gorm:"primaryKey;size:32"`
	ChatModel    string `gorm:"size:64"`
	ImageModel   string `gorm:"size:64"`
	SystemPrompt string `gorm:"type:text"`
}

// ChannelPolicy holds per-channel listening behavior. Same mutation and
// default-on-miss contract as GuildPolicy.
type ChannelPolicy struct {
	ChannelID        string `gorm:"primaryKey;size:32"`
	GuildID          string `gorm:"size:32;index"`
	IsListening      bool   `gorm:"default:false"`
	SharedScope      bool   `gorm:"default:false"`
	SecondaryTrigger bool   `gorm:"default:false"`
}
