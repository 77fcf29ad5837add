package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const validJSONC = `{
  // development backend
  "backend": {
    "url": "http://helpdesk.internal:8000",
    "api_key": "backend-key",
    "timeout": 10,
    "employee": "alice@powergrid.in"
  },
  "kb": {"limit": 5, "cache_ttl": 60},
  "server": {
    "port": 9000,
    "seed_file": "seed.yaml",
    "escalation_schedule": "*/5 * * * *"
  },
  "connectors": {
    "telegram": {
      "token": "123456:ABC",
      "allow_from": [100, 200]
    }
  },
  "webhooks": {
    "endpoints": {
      "glpi": {"secret": "s3cret"},
    }
  }
}`

const validYAML = `
backend:
  url: http://localhost:8001
  employee: bob
connectors:
  slack:
    bot_token: xoxb-1
    app_token: xapp-1
    channels: [C01]
notify:
  slack_channel: "#it-ops"
log:
  level: debug
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_JSONC(t *testing.T) {
	path := writeFile(t, "helpdesk.jsonc", validJSONC)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Backend.URL != "http://helpdesk.internal:8000" {
		t.Errorf("backend.url = %q", cfg.Backend.URL)
	}
	if cfg.Backend.Timeout != 10 || cfg.Backend.Employee != "alice@powergrid.in" {
		t.Errorf("backend = %+v", cfg.Backend)
	}
	if cfg.KB.Limit != 5 || cfg.KB.CacheTTL != 60 {
		t.Errorf("kb = %+v", cfg.KB)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("server.port = %d", cfg.Server.Port)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("server.host default lost: %q", cfg.Server.Host)
	}
	if cfg.Server.SeedFile != filepath.Join(filepath.Dir(path), "seed.yaml") {
		t.Errorf("seed_file not resolved relative to config: %q", cfg.Server.SeedFile)
	}
	if cfg.Refresh.Schedule != "@every 30s" {
		t.Errorf("refresh.schedule default lost: %q", cfg.Refresh.Schedule)
	}
	if cfg.Connectors.Telegram == nil || len(cfg.Connectors.Telegram.AllowFrom) != 2 {
		t.Fatalf("telegram = %+v", cfg.Connectors.Telegram)
	}
	if cfg.Webhooks.Endpoints["glpi"].Secret != "s3cret" {
		t.Errorf("webhooks = %+v", cfg.Webhooks)
	}
}

func TestLoad_YAML(t *testing.T) {
	cfg, err := Load(writeFile(t, "helpdesk.yaml", validYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Backend.URL != "http://localhost:8001" || cfg.Backend.Employee != "bob" {
		t.Errorf("backend = %+v", cfg.Backend)
	}
	if cfg.Backend.Timeout != 30 {
		t.Errorf("timeout default lost: %d", cfg.Backend.Timeout)
	}
	if s := cfg.Connectors.Slack; s == nil || s.BotToken != "xoxb-1" || len(s.Channels) != 1 {
		t.Errorf("slack = %+v", s)
	}
	if cfg.Notify.SlackChannel != "#it-ops" {
		t.Errorf("notify = %+v", cfg.Notify)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log.level = %q", cfg.Log.Level)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	if _, err := Load("/nonexistent/helpdesk.json"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	if _, err := Load(writeFile(t, "bad.json", "not json")); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestLoad_InvalidConfig(t *testing.T) {
	_, err := Load(writeFile(t, "bad.yaml", "backend:\n  url: localhost\n"))
	if err == nil || !strings.Contains(err.Error(), "backend.url") {
		t.Errorf("expected backend.url error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		want   string
	}{
		{"missing url", func(c *Config) { c.Backend.URL = "" }, "backend.url is required"},
		{"relative url", func(c *Config) { c.Backend.URL = "/api" }, "not an absolute URL"},
		{"kb limit", func(c *Config) { c.KB.Limit = 0 }, "kb.limit"},
		{"bad schedule", func(c *Config) { c.Refresh.Schedule = "every minute" }, "refresh.schedule"},
		{"slack tokens", func(c *Config) { c.Connectors.Slack = &SlackConfig{BotToken: "x"} }, "slack.app_token"},
		{"telegram token", func(c *Config) { c.Connectors.Telegram = &TelegramConfig{} }, "telegram.token"},
		{"webhook source", func(c *Config) {
			c.Webhooks.Endpoints = map[string]WebhookEndpoint{"jira": {}}
		}, "unknown source"},
		{"log level", func(c *Config) { c.Log.Level = "verbose" }, "log.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected %q error, got %v", tt.want, err)
			}
		})
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.Backend.URL = ""
	cfg.KB.Limit = 50
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	if got := strings.Count(err.Error(), "\n  - "); got != 2 {
		t.Errorf("expected 2 listed errors, got %d: %v", got, err)
	}
}

func TestValidate_Default(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Errorf("expected valid, got %v", err)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("HELPDESK_BACKEND_URL", "http://env-host:8000")
	t.Setenv("HELPDESK_EMPLOYEE", "carol")
	t.Setenv("HELPDESK_TIMEOUT", "5")
	t.Setenv("HELPDESK_SERVER_PORT", "9090")
	t.Setenv("HELPDESK_CORS_ORIGINS", "http://a.test, http://b.test")
	t.Setenv("HELPDESK_TELEGRAM_TOKEN", "tg-token")
	t.Setenv("HELPDESK_TELEGRAM_ALLOW_FROM", "100,200,300")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}

	if cfg.Backend.URL != "http://env-host:8000" || cfg.Backend.Employee != "carol" {
		t.Errorf("backend = %+v", cfg.Backend)
	}
	if cfg.Backend.Timeout != 5 {
		t.Errorf("timeout = %d", cfg.Backend.Timeout)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("server.port = %d", cfg.Server.Port)
	}
	if len(cfg.Server.CORSOrigins) != 2 || cfg.Server.CORSOrigins[1] != "http://b.test" {
		t.Errorf("cors = %v", cfg.Server.CORSOrigins)
	}
	if cfg.Connectors.Telegram == nil {
		t.Fatal("telegram is nil")
	}
	if len(cfg.Connectors.Telegram.AllowFrom) != 3 {
		t.Errorf("allow_from = %v", cfg.Connectors.Telegram.AllowFrom)
	}
	if cfg.Connectors.Slack != nil {
		t.Errorf("slack should be unset, got %+v", cfg.Connectors.Slack)
	}
}

func TestLoadFromEnv_BadAllowFrom(t *testing.T) {
	t.Setenv("HELPDESK_TELEGRAM_TOKEN", "tg-token")
	t.Setenv("HELPDESK_TELEGRAM_ALLOW_FROM", "100,abc")
	if _, err := LoadFromEnv(); err == nil {
		t.Fatal("expected error for non-numeric id")
	}
}
