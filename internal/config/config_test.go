package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const minimalYAML = `
ai:
  base_url: http://127.0.0.1:8317/v1
`

func TestParse_Minimal(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Discord.TokenEnv != "DISCORD_BOT_TOKEN" {
		t.Errorf("TokenEnv = %q, want DISCORD_BOT_TOKEN", cfg.Discord.TokenEnv)
	}
	if cfg.DB.Driver != "sqlite" || cfg.DB.Path != "dinbot.db" {
		t.Errorf("DB defaults = %q/%q, want sqlite/dinbot.db", cfg.DB.Driver, cfg.DB.Path)
	}
	if cfg.AI.ChatModel != DefaultChatModel {
		t.Errorf("ChatModel = %q, want %q", cfg.AI.ChatModel, DefaultChatModel)
	}
	if cfg.AI.ImageModel != DefaultImageModel {
		t.Errorf("ImageModel = %q, want %q", cfg.AI.ImageModel, DefaultImageModel)
	}
	if cfg.Mentions.MemberPageLimit != 1000 {
		t.Errorf("MemberPageLimit = %d, want 1000", cfg.Mentions.MemberPageLimit)
	}
}

func TestParse_MySQLDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
ai:
  base_url: http://localhost/v1
db:
  driver: mysql
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.DB.Host != "127.0.0.1" || cfg.DB.Port != 3306 {
		t.Errorf("mysql defaults = %s:%d, want 127.0.0.1:3306", cfg.DB.Host, cfg.DB.Port)
	}
	if cfg.DB.Database != "dinbot" || cfg.DB.User != "root" {
		t.Errorf("mysql db/user = %q/%q, want dinbot/root", cfg.DB.Database, cfg.DB.User)
	}
}

func TestParse_MissingBaseURL(t *testing.T) {
	_, err := Parse([]byte(`db: {driver: sqlite}`))
	if err == nil {
		t.Fatal("expected error for missing ai.base_url")
	}
	if !strings.Contains(err.Error(), "ai.base_url") {
		t.Errorf("error = %v, want mention of ai.base_url", err)
	}
}

func TestParse_UnknownDriver(t *testing.T) {
	_, err := Parse([]byte(`
ai:
  base_url: http://localhost/v1
db:
  driver: dolt
`))
	if err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestParse_MalformedYAML(t *testing.T) {
	_, err := Parse([]byte("ai: [unclosed"))
	if err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoad_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dinbot.yaml")
	if err := os.WriteFile(path, []byte(minimalYAML), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.AI.BaseURL != "http://127.0.0.1:8317/v1" {
		t.Errorf("BaseURL = %q", cfg.AI.BaseURL)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestParse_CronPassthrough(t *testing.T) {
	cfg, err := Parse([]byte(`
ai:
  base_url: http://localhost/v1
mentions:
  refresh_cron: "0 4 * * *"
  member_page_limit: 250
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Mentions.RefreshCron != "0 4 * * *" {
		t.Errorf("RefreshCron = %q", cfg.Mentions.RefreshCron)
	}
	if cfg.Mentions.MemberPageLimit != 250 {
		t.Errorf("MemberPageLimit = %d, want 250", cfg.Mentions.MemberPageLimit)
	}
}
