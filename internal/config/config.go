// Package config provides YAML-based configuration loading for dinbot.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Default model names used when a guild has no stored policy and no
// override in the config file.
const (
	DefaultChatModel  = "gemini-2.5-flash"
	DefaultImageModel = "gemini-3-pro-image"
)

// Config is the top-level dinbot configuration, loaded from dinbot.yaml.
type Config struct {
	Discord   DiscordConfig   `yaml:"discord"`
	DB        DBConfig        `yaml:"db"`
	AI        AIConfig        `yaml:"ai"`
	Mentions  MentionsConfig  `yaml:"mentions"`
	Players   PlayersConfig   `yaml:"players"`
	Songs     SongsConfig     `yaml:"songs"`
	Dashboard DashboardConfig `yaml:"dashboard"`
}

// DiscordConfig holds gateway connection settings. The bot token itself
// lives in the environment (or .env), never in the YAML file.
type DiscordConfig struct {
	TokenEnv string `yaml:"token_env"`
}

// DBConfig selects and configures the backing store.
type DBConfig struct {
	Driver   string `yaml:"driver"` // "sqlite" (default) or "mysql"
	Path     string `yaml:"path"`   // sqlite file path
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
}

// AIConfig points at an OpenAI-compatible completion endpoint.
type AIConfig struct {
	BaseURL    string `yaml:"base_url"`
	APIKeyEnv  string `yaml:"api_key_env"`
	ChatModel  string `yaml:"chat_model"`
	ImageModel string `yaml:"image_model"`
}

// MentionsConfig tunes the per-guild mention cache.
type MentionsConfig struct {
	MemberPageLimit int    `yaml:"member_page_limit"` // max members per rebuild
	RefreshCron     string `yaml:"refresh_cron"`      // optional 5-field cron expression
}

// PlayersConfig configures the player-profile lookup collaborator.
type PlayersConfig struct {
	Endpoint string `yaml:"endpoint"`
	Origin   string `yaml:"origin"`
	Secret   string `yaml:"secret"`
}

// SongsConfig configures the song-search collaborator.
type SongsConfig struct {
	ClientID        string `yaml:"client_id"`
	ClientSecretEnv string `yaml:"client_secret_env"`
}

// DashboardConfig configures the status dashboard. Port 0 disables it.
type DashboardConfig struct {
	Port int `yaml:"port"`
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Discord.TokenEnv == "" {
		c.Discord.TokenEnv = "DISCORD_BOT_TOKEN"
	}
	if c.DB.Driver == "" {
		c.DB.Driver = "sqlite"
	}
	if c.DB.Driver == "sqlite" && c.DB.Path == "" {
		c.DB.Path = "dinbot.db"
	}
	if c.DB.Driver == "mysql" {
		if c.DB.Host == "" {
			c.DB.Host = "127.0.0.1"
		}
		if c.DB.Port == 0 {
			c.DB.Port = 3306
		}
		if c.DB.Database == "" {
			c.DB.Database = "dinbot"
		}
		if c.DB.User == "" {
			c.DB.User = "root"
		}
	}
	if c.AI.APIKeyEnv == "" {
		c.AI.APIKeyEnv = "DINBOT_AI_KEY"
	}
	if c.AI.ChatModel == "" {
		c.AI.ChatModel = DefaultChatModel
	}
	if c.AI.ImageModel == "" {
		c.AI.ImageModel = DefaultImageModel
	}
	if c.Mentions.MemberPageLimit == 0 {
		c.Mentions.MemberPageLimit = 1000
	}
	if c.Songs.ClientSecretEnv == "" {
		c.Songs.ClientSecretEnv = "SPOTIFY_CLIENT_SECRET"
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	if c.AI.BaseURL == "" {
		errs = append(errs, "ai.base_url is required")
	}
	switch c.DB.Driver {
	case "sqlite", "mysql":
	default:
		errs = append(errs, fmt.Sprintf("db.driver %q is not supported (sqlite, mysql)", c.DB.Driver))
	}
	if c.Mentions.MemberPageLimit < 0 {
		errs = append(errs, "mentions.member_page_limit must not be negative")
	}
	if c.Dashboard.Port < 0 {
		errs = append(errs, "dashboard.port must not be negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: invalid: %s", strings.Join(errs, "; "))
	}
	return nil
}
