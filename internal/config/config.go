// Package config provides YAML-based configuration loading for Switchboard.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level Switchboard configuration, loaded from config.yaml.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	Bus       BusConfig       `yaml:"bus"`
	Platforms PlatformsConfig `yaml:"platforms"`
	Relay     RelayConfig     `yaml:"relay"`
	Retention RetentionConfig `yaml:"retention"`
	Health    HealthConfig    `yaml:"health"`
}

// DatabaseConfig holds connection settings for the message store.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // "sqlite" or "mysql"
	Path     string `yaml:"path"`   // sqlite file path
	Host     string `yaml:"host"`   // mysql
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// GatewayConfig holds HTTP gateway settings.
type GatewayConfig struct {
	Port      int    `yaml:"port"`
	AuthToken string `yaml:"auth_token"` // optional static bearer token; empty disables auth
}

// BusConfig holds settings for the embedded push bus.
type BusConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	DataDir string `yaml:"data_dir"`
}

// PlatformsConfig groups per-platform adapter credentials. A platform with no
// credentials is left unregistered, so chains naming it get "unknown service"
// at dispatch time rather than a startup failure.
type PlatformsConfig struct {
	RequestTimeoutSecs int            `yaml:"request_timeout_secs"`
	GitHub             GitHubConfig   `yaml:"github"`
	Vercel             VercelConfig   `yaml:"vercel"`
	Railway            RailwayConfig  `yaml:"railway"`
	Supabase           SupabaseConfig `yaml:"supabase"`
}

// RequestTimeout returns the per-operation HTTP timeout for adapters.
func (p PlatformsConfig) RequestTimeout() time.Duration {
	return time.Duration(p.RequestTimeoutSecs) * time.Second
}

// GitHubConfig configures the source-control adapter.
type GitHubConfig struct {
	Token string `yaml:"token"`
}

// VercelConfig configures the Vercel deployment adapter.
type VercelConfig struct {
	Token  string `yaml:"token"`
	TeamID string `yaml:"team_id"`
}

// RailwayConfig configures the Railway deployment adapter.
type RailwayConfig struct {
	Token string `yaml:"token"`
}

// SupabaseConfig configures the database-as-a-service adapter.
type SupabaseConfig struct {
	URL        string `yaml:"url"`
	ServiceKey string `yaml:"service_key"`
}

// RelayConfig configures the chat relay for human-facing notifications.
type RelayConfig struct {
	Platform   string        `yaml:"platform"` // "slack", "discord", or "" (disabled)
	Channel    string        `yaml:"channel"`
	HumanAgent string        `yaml:"human_agent"`
	Slack      SlackConfig   `yaml:"slack"`
	Discord    DiscordConfig `yaml:"discord"`
}

// SlackConfig holds Slack relay credentials.
type SlackConfig struct {
	BotToken string `yaml:"bot_token"`
}

// DiscordConfig holds Discord relay credentials.
type DiscordConfig struct {
	BotToken string `yaml:"bot_token"`
}

// RetentionConfig controls the scheduled message cleanup sweep.
type RetentionConfig struct {
	Schedule   string `yaml:"schedule"` // 5-field cron expression
	MaxAgeDays int    `yaml:"max_age_days"`
}

// HealthConfig controls the health aggregator.
type HealthConfig struct {
	ProbeTimeoutSecs int `yaml:"probe_timeout_secs"`
}

// ProbeTimeout returns the per-probe bound for the health aggregator.
func (h HealthConfig) ProbeTimeout() time.Duration {
	return time.Duration(h.ProbeTimeoutSecs) * time.Second
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config. Environment variables
// override credentials after parsing, so config files can stay secret-free.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Path == "" {
		c.Database.Path = "data/switchboard.db"
	}
	if c.Database.Host == "" {
		c.Database.Host = "127.0.0.1"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 3306
	}
	if c.Database.Name == "" {
		c.Database.Name = "switchboard"
	}
	if c.Database.User == "" {
		c.Database.User = "root"
	}
	if c.Gateway.Port == 0 {
		c.Gateway.Port = 8360
	}
	if c.Bus.Port == 0 {
		c.Bus.Port = 4222
	}
	if c.Bus.DataDir == "" {
		c.Bus.DataDir = "data/nats"
	}
	if c.Platforms.RequestTimeoutSecs == 0 {
		c.Platforms.RequestTimeoutSecs = 15
	}
	if c.Relay.HumanAgent == "" {
		c.Relay.HumanAgent = "human"
	}
	if c.Retention.Schedule == "" {
		c.Retention.Schedule = "0 3 * * *"
	}
	if c.Retention.MaxAgeDays == 0 {
		c.Retention.MaxAgeDays = 30
	}
	if c.Health.ProbeTimeoutSecs == 0 {
		c.Health.ProbeTimeoutSecs = 5
	}
}

// applyEnv overrides credentials from the environment so deployments can
// inject secrets without writing them to disk.
func (c *Config) applyEnv() {
	if v := os.Getenv("SWITCHBOARD_DB_PASSWORD"); v != "" {
		c.Database.Password = v
	}
	if v := os.Getenv("SWITCHBOARD_AUTH_TOKEN"); v != "" {
		c.Gateway.AuthToken = v
	}
	if v := os.Getenv("SWITCHBOARD_GITHUB_TOKEN"); v != "" {
		c.Platforms.GitHub.Token = v
	}
	if v := os.Getenv("SWITCHBOARD_VERCEL_TOKEN"); v != "" {
		c.Platforms.Vercel.Token = v
	}
	if v := os.Getenv("SWITCHBOARD_RAILWAY_TOKEN"); v != "" {
		c.Platforms.Railway.Token = v
	}
	if v := os.Getenv("SWITCHBOARD_SUPABASE_KEY"); v != "" {
		c.Platforms.Supabase.ServiceKey = v
	}
	if v := os.Getenv("SWITCHBOARD_SLACK_TOKEN"); v != "" {
		c.Relay.Slack.BotToken = v
	}
	if v := os.Getenv("SWITCHBOARD_DISCORD_TOKEN"); v != "" {
		c.Relay.Discord.BotToken = v
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			errs = append(errs, "database.path is required for sqlite")
		}
	case "mysql":
		if c.Database.Host == "" {
			errs = append(errs, "database.host is required for mysql")
		}
		if c.Database.Name == "" {
			errs = append(errs, "database.name is required for mysql")
		}
	default:
		errs = append(errs, fmt.Sprintf("database.driver must be sqlite or mysql, got %q", c.Database.Driver))
	}
	if c.Gateway.Port <= 0 || c.Gateway.Port > 65535 {
		errs = append(errs, fmt.Sprintf("gateway.port %d out of range", c.Gateway.Port))
	}
	if c.Retention.MaxAgeDays < 0 {
		errs = append(errs, "retention.max_age_days must not be negative")
	}
	switch c.Relay.Platform {
	case "", "slack", "discord":
	default:
		errs = append(errs, fmt.Sprintf("relay.platform must be slack or discord, got %q", c.Relay.Platform))
	}
	if c.Relay.Platform != "" && c.Relay.Channel == "" {
		errs = append(errs, "relay.channel is required when relay.platform is set")
	}
	if c.Relay.Platform == "slack" && c.Relay.Slack.BotToken == "" {
		errs = append(errs, "relay.slack.bot_token is required for the slack relay")
	}
	if c.Relay.Platform == "discord" && c.Relay.Discord.BotToken == "" {
		errs = append(errs, "relay.discord.bot_token is required for the discord relay")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
