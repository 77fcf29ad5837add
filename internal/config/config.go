package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Config is the top-level helpdesk configuration shared by the CLI and the
// development backend.
type Config struct {
	Backend    BackendConfig   `json:"backend" yaml:"backend"`
	Refresh    RefreshConfig   `json:"refresh" yaml:"refresh"`
	KB         KBConfig        `json:"kb" yaml:"kb"`
	Server     ServerConfig    `json:"server" yaml:"server"`
	Connectors ConnectorConfig `json:"connectors" yaml:"connectors"`
	Webhooks   WebhookConfig   `json:"webhooks" yaml:"webhooks"`
	Notify     NotifyConfig    `json:"notify" yaml:"notify"`
	Log        LogConfig       `json:"log" yaml:"log"`
}

// BackendConfig locates the ticketing backend and the identity used against it.
type BackendConfig struct {
	URL      string `json:"url" yaml:"url"`
	APIKey   string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	Timeout  int    `json:"timeout,omitempty" yaml:"timeout,omitempty"` // seconds, default 30
	Employee string `json:"employee,omitempty" yaml:"employee,omitempty"`
}

// RefreshConfig controls periodic ticket list refreshes.
type RefreshConfig struct {
	Schedule string `json:"schedule" yaml:"schedule"` // cron spec or @every, "" disables
}

// KBConfig controls knowledge-base lookups.
type KBConfig struct {
	Limit    int `json:"limit" yaml:"limit"`         // results per search, default 3
	CacheTTL int `json:"cache_ttl" yaml:"cache_ttl"` // seconds, 0 disables caching
}

// ServerConfig holds development backend settings.
type ServerConfig struct {
	Host               string   `json:"host" yaml:"host"`
	Port               int      `json:"port" yaml:"port"`
	DBPath             string   `json:"db_path" yaml:"db_path"`
	APIKey             string   `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	CORSOrigins        []string `json:"cors_origins,omitempty" yaml:"cors_origins,omitempty"`
	SeedFile           string   `json:"seed_file,omitempty" yaml:"seed_file,omitempty"`
	EscalationSchedule string   `json:"escalation_schedule,omitempty" yaml:"escalation_schedule,omitempty"`
}

// ConnectorConfig holds settings for chat front-ends.
type ConnectorConfig struct {
	Slack    *SlackConfig    `json:"slack,omitempty" yaml:"slack,omitempty"`
	Telegram *TelegramConfig `json:"telegram,omitempty" yaml:"telegram,omitempty"`
}

// SlackConfig holds Slack bot settings.
type SlackConfig struct {
	BotToken string   `json:"bot_token" yaml:"bot_token"`
	AppToken string   `json:"app_token" yaml:"app_token"`
	Channels []string `json:"channels,omitempty" yaml:"channels,omitempty"`
}

// TelegramConfig holds Telegram bot settings.
type TelegramConfig struct {
	Token     string  `json:"token" yaml:"token"`
	AllowFrom []int64 `json:"allow_from,omitempty" yaml:"allow_from,omitempty"`
}

// WebhookConfig maps intake sources (email, glpi, solman) to their credentials.
type WebhookConfig struct {
	Endpoints map[string]WebhookEndpoint `json:"endpoints,omitempty" yaml:"endpoints,omitempty"`
}

// WebhookEndpoint authenticates one intake source. Secret enables HMAC
// signature checks; otherwise BearerToken is compared.
type WebhookEndpoint struct {
	Secret      string `json:"secret,omitempty" yaml:"secret,omitempty"`
	BearerToken string `json:"bearer_token,omitempty" yaml:"bearer_token,omitempty"`
}

// NotifyConfig configures ticket notifications from the development backend.
type NotifyConfig struct {
	SlackChannel string `json:"slack_channel,omitempty" yaml:"slack_channel,omitempty"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `json:"level" yaml:"level"` // debug, info, warn, error
}

// Default returns a configuration with every default applied.
func Default() *Config {
	return &Config{
		Backend: BackendConfig{URL: "http://localhost:8000", Timeout: 30},
		Refresh: RefreshConfig{Schedule: "@every 30s"},
		KB:      KBConfig{Limit: 3, CacheTTL: 300},
		Server: ServerConfig{
			Host:               "0.0.0.0",
			Port:               8000,
			DBPath:             "helpdesk.db",
			CORSOrigins:        []string{"http://localhost:3000", "http://localhost:5173"},
			EscalationSchedule: "@every 15m",
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads configuration from a JSON, JSONC or YAML file. Fields absent
// from the file keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(jsonc.ToJSON(data), cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if cfg.Server.SeedFile != "" && !filepath.IsAbs(cfg.Server.SeedFile) {
		cfg.Server.SeedFile = filepath.Join(filepath.Dir(path), cfg.Server.SeedFile)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromEnv builds a config from HELPDESK_ environment variables. A .env
// file in the working directory is loaded first when present; variables
// already set in the environment take precedence over it.
func LoadFromEnv() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	d := Default()
	cfg := &Config{
		Backend: BackendConfig{
			URL:      getenv("HELPDESK_BACKEND_URL", d.Backend.URL),
			APIKey:   os.Getenv("HELPDESK_API_KEY"),
			Timeout:  getenvInt("HELPDESK_TIMEOUT", d.Backend.Timeout),
			Employee: os.Getenv("HELPDESK_EMPLOYEE"),
		},
		Refresh: RefreshConfig{Schedule: getenv("HELPDESK_REFRESH_SCHEDULE", d.Refresh.Schedule)},
		KB: KBConfig{
			Limit:    getenvInt("HELPDESK_KB_LIMIT", d.KB.Limit),
			CacheTTL: getenvInt("HELPDESK_KB_CACHE_TTL", d.KB.CacheTTL),
		},
		Server: ServerConfig{
			Host:               getenv("HELPDESK_SERVER_HOST", d.Server.Host),
			Port:               getenvInt("HELPDESK_SERVER_PORT", d.Server.Port),
			DBPath:             getenv("HELPDESK_DB_PATH", d.Server.DBPath),
			APIKey:             os.Getenv("HELPDESK_SERVER_API_KEY"),
			CORSOrigins:        d.Server.CORSOrigins,
			SeedFile:           os.Getenv("HELPDESK_SEED_FILE"),
			EscalationSchedule: getenv("HELPDESK_ESCALATION_SCHEDULE", d.Server.EscalationSchedule),
		},
		Notify: NotifyConfig{SlackChannel: os.Getenv("HELPDESK_SLACK_NOTIFY_CHANNEL")},
		Log:    LogConfig{Level: getenv("HELPDESK_LOG_LEVEL", d.Log.Level)},
	}
	if origins := os.Getenv("HELPDESK_CORS_ORIGINS"); origins != "" {
		cfg.Server.CORSOrigins = splitList(origins)
	}

	if bot := os.Getenv("HELPDESK_SLACK_BOT_TOKEN"); bot != "" {
		cfg.Connectors.Slack = &SlackConfig{
			BotToken: bot,
			AppToken: os.Getenv("HELPDESK_SLACK_APP_TOKEN"),
			Channels: splitList(os.Getenv("HELPDESK_SLACK_CHANNELS")),
		}
	}

	if token := os.Getenv("HELPDESK_TELEGRAM_TOKEN"); token != "" {
		cfg.Connectors.Telegram = &TelegramConfig{Token: token}
		if ids := os.Getenv("HELPDESK_TELEGRAM_ALLOW_FROM"); ids != "" {
			parsed, err := parseInt64List(ids)
			if err != nil {
				return nil, fmt.Errorf("config: HELPDESK_TELEGRAM_ALLOW_FROM: %w", err)
			}
			cfg.Connectors.Telegram.AllowFrom = parsed
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks for required fields and well-formed values.
func (c *Config) Validate() error {
	var errs []string

	if c.Backend.URL == "" {
		errs = append(errs, "backend.url is required")
	} else if u, err := url.Parse(c.Backend.URL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Sprintf("backend.url %q is not an absolute URL", c.Backend.URL))
	}
	if c.Backend.Timeout < 0 {
		errs = append(errs, "backend.timeout must not be negative")
	}
	if c.KB.Limit < 1 || c.KB.Limit > 10 {
		errs = append(errs, "kb.limit must be between 1 and 10")
	}
	if c.KB.CacheTTL < 0 {
		errs = append(errs, "kb.cache_ttl must not be negative")
	}
	for name, spec := range map[string]string{
		"refresh.schedule":           c.Refresh.Schedule,
		"server.escalation_schedule": c.Server.EscalationSchedule,
	} {
		if spec == "" {
			continue
		}
		if _, err := cron.ParseStandard(spec); err != nil {
			errs = append(errs, fmt.Sprintf("%s %q is invalid: %v", name, spec, err))
		}
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 0 and 65535")
	}

	if s := c.Connectors.Slack; s != nil {
		if s.BotToken == "" {
			errs = append(errs, "connectors.slack.bot_token is required")
		}
		if s.AppToken == "" {
			errs = append(errs, "connectors.slack.app_token is required")
		}
	}
	if c.Connectors.Telegram != nil && c.Connectors.Telegram.Token == "" {
		errs = append(errs, "connectors.telegram.token is required")
	}
	for name := range c.Webhooks.Endpoints {
		switch name {
		case "email", "glpi", "solman":
		default:
			errs = append(errs, fmt.Sprintf("webhooks.endpoints.%s: unknown source (want email, glpi or solman)", name))
		}
	}
	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("log.level %q is invalid", c.Log.Level))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseInt64List(s string) ([]int64, error) {
	parts := splitList(s)
	result := make([]int64, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid integer %q", p)
		}
		result = append(result, n)
	}
	return result, nil
}
