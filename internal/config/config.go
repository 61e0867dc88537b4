// Package config defines the top-level configuration for basketwatch and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by BASKETWATCH_* environment
// variables.
type Config struct {
	Tracker    TrackerConfig    `toml:"tracker"`
	Polymarket PolymarketConfig `toml:"polymarket"`
	Postgres   PostgresConfig   `toml:"postgres"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Archive    ArchiveConfig    `toml:"archive"`
	Server     ServerConfig     `toml:"server"`
	Notify     NotifyConfig     `toml:"notify"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// TrackerConfig describes the tracked event and the evaluation parameters.
type TrackerConfig struct {
	EventSlug     string   `toml:"event_slug"`
	Outcomes      []string `toml:"outcomes"`
	Depth         float64  `toml:"depth"`           // shares to fill when resolving a price
	ThresholdLow  float64  `toml:"threshold_low"`   // buy band edge around fair value 1.0
	ThresholdHigh float64  `toml:"threshold_high"`  // sell band edge
	PollSeconds   int      `toml:"poll_seconds"`    // REST polling interval
	EventTTLMin   int      `toml:"event_ttl_min"`   // event discovery cache TTL
	RESTRateLimit int      `toml:"rest_rate_limit"` // CLOB requests per second
}

// PollInterval returns the polling interval as a duration.
func (t TrackerConfig) PollInterval() time.Duration {
	return time.Duration(t.PollSeconds) * time.Second
}

// EventTTL returns the event discovery cache TTL as a duration.
func (t TrackerConfig) EventTTL() time.Duration {
	return time.Duration(t.EventTTLMin) * time.Minute
}

// PolymarketConfig holds Polymarket API endpoints.
type PolymarketConfig struct {
	ClobHost  string `toml:"clob_host"`
	GammaHost string `toml:"gamma_host"`
	WsHost    string `toml:"ws_host"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr            string `toml:"addr"`
	Password        string `toml:"password"`
	DB              int    `toml:"db"`
	PoolSize        int    `toml:"pool_size"`
	MaxRetries      int    `toml:"max_retries"`
	TLSEnabled      bool   `toml:"tls_enabled"`
	CacheTTLMinutes int    `toml:"cache_ttl_minutes"`
	StreamMaxLen    int    `toml:"stream_max_len"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ArchiveConfig controls cold-storage archival of history rows.
type ArchiveConfig struct {
	Enabled       bool `toml:"enabled"`
	RetentionDays int  `toml:"retention_days"`
	IntervalHours int  `toml:"interval_hours"`
}

// Interval returns the archival sweep interval as a duration.
func (a ArchiveConfig) Interval() time.Duration {
	return time.Duration(a.IntervalHours) * time.Hour
}

// Retention returns the retention window as a duration.
func (a ArchiveConfig) Retention() time.Duration {
	return time.Duration(a.RetentionDays) * 24 * time.Hour
}

// ServerConfig holds the HTTP API server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
}

// NotifyConfig holds notification channel credentials and filtering.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Defaults returns a Config pre-populated with sane defaults. Load merges
// the TOML file on top of this.
func Defaults() Config {
	return Config{
		Tracker: TrackerConfig{
			EventSlug: "portugal-presidential-election",
			Outcomes: []string{
				"Henrique Gouveia e Melo (IND)",
				"Luís Marques Mendes (PSD)",
				"António José Seguro (IND)",
				"André Ventura (CH)",
			},
			Depth:         100,
			ThresholdLow:  0.97,
			ThresholdHigh: 1.03,
			PollSeconds:   30,
			EventTTLMin:   5,
			RESTRateLimit: 10,
		},
		Polymarket: PolymarketConfig{
			ClobHost:  "https://clob.polymarket.com",
			GammaHost: "https://gamma-api.polymarket.com",
			WsHost:    "wss://ws-subscriptions-clob.polymarket.com/ws/market",
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "basketwatch",
			User:          "basketwatch",
			SSLMode:       "disable",
			PoolMaxConns:  8,
			PoolMinConns:  1,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:            "localhost:6379",
			PoolSize:        10,
			MaxRetries:      3,
			CacheTTLMinutes: 5,
			StreamMaxLen:    10000,
		},
		Archive: ArchiveConfig{
			Enabled:       false,
			RetentionDays: 30,
			IntervalHours: 24,
		},
		Server: ServerConfig{
			Enabled: true,
			Port:    8080,
		},
		Mode:     "track",
		LogLevel: "info",
	}
}

// Validate checks the configuration for structural problems. It returns an
// error describing the first problem found.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Mode) {
	case "track", "stream", "monitor", "full":
	default:
		return fmt.Errorf("config: unsupported mode %q", c.Mode)
	}

	if strings.TrimSpace(c.Tracker.EventSlug) == "" {
		return fmt.Errorf("config: tracker.event_slug is required")
	}
	if len(c.Tracker.Outcomes) < 2 {
		return fmt.Errorf("config: tracker.outcomes needs at least 2 entries, got %d", len(c.Tracker.Outcomes))
	}
	if c.Tracker.Depth <= 0 {
		return fmt.Errorf("config: tracker.depth must be positive, got %v", c.Tracker.Depth)
	}
	if c.Tracker.ThresholdLow <= 0 || c.Tracker.ThresholdLow >= 1 {
		return fmt.Errorf("config: tracker.threshold_low must be in (0,1), got %v", c.Tracker.ThresholdLow)
	}
	if c.Tracker.ThresholdHigh <= 1 {
		return fmt.Errorf("config: tracker.threshold_high must be above 1, got %v", c.Tracker.ThresholdHigh)
	}
	if c.Tracker.PollSeconds <= 0 {
		return fmt.Errorf("config: tracker.poll_seconds must be positive, got %d", c.Tracker.PollSeconds)
	}

	if c.Polymarket.ClobHost == "" || c.Polymarket.GammaHost == "" {
		return fmt.Errorf("config: polymarket.clob_host and polymarket.gamma_host are required")
	}
	if strings.ToLower(c.Mode) == "stream" && c.Polymarket.WsHost == "" {
		return fmt.Errorf("config: polymarket.ws_host is required in stream mode")
	}

	if c.Redis.Addr == "" {
		return fmt.Errorf("config: redis.addr is required")
	}

	if c.Server.Enabled && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		return fmt.Errorf("config: server.port %d out of range", c.Server.Port)
	}

	if c.Archive.Enabled {
		if c.S3.Bucket == "" || c.S3.Region == "" {
			return fmt.Errorf("config: archive requires s3.bucket and s3.region")
		}
		if c.Archive.RetentionDays <= 0 {
			return fmt.Errorf("config: archive.retention_days must be positive, got %d", c.Archive.RetentionDays)
		}
	}

	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		return fmt.Errorf("config: notify.telegram_token and notify.telegram_chat_id must be set together")
	}

	return nil
}
