package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies BASKETWATCH_* environment variable overrides,
// and returns the final Config. The returned Config has NOT been validated;
// the caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known BASKETWATCH_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Tracker ──
	setStr(&cfg.Tracker.EventSlug, "BASKETWATCH_TRACKER_EVENT_SLUG")
	setStringSlice(&cfg.Tracker.Outcomes, "BASKETWATCH_TRACKER_OUTCOMES")
	setFloat64(&cfg.Tracker.Depth, "BASKETWATCH_TRACKER_DEPTH")
	setFloat64(&cfg.Tracker.ThresholdLow, "BASKETWATCH_TRACKER_THRESHOLD_LOW")
	setFloat64(&cfg.Tracker.ThresholdHigh, "BASKETWATCH_TRACKER_THRESHOLD_HIGH")
	setInt(&cfg.Tracker.PollSeconds, "BASKETWATCH_TRACKER_POLL_SECONDS")
	setInt(&cfg.Tracker.EventTTLMin, "BASKETWATCH_TRACKER_EVENT_TTL_MIN")
	setInt(&cfg.Tracker.RESTRateLimit, "BASKETWATCH_TRACKER_REST_RATE_LIMIT")

	// ── Polymarket ──
	setStr(&cfg.Polymarket.ClobHost, "BASKETWATCH_POLYMARKET_CLOB_HOST")
	setStr(&cfg.Polymarket.GammaHost, "BASKETWATCH_POLYMARKET_GAMMA_HOST")
	setStr(&cfg.Polymarket.WsHost, "BASKETWATCH_POLYMARKET_WS_HOST")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "BASKETWATCH_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "BASKETWATCH_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "BASKETWATCH_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "BASKETWATCH_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "BASKETWATCH_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "BASKETWATCH_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "BASKETWATCH_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "BASKETWATCH_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "BASKETWATCH_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "BASKETWATCH_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "BASKETWATCH_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "BASKETWATCH_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "BASKETWATCH_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "BASKETWATCH_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "BASKETWATCH_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "BASKETWATCH_REDIS_TLS_ENABLED")
	setInt(&cfg.Redis.CacheTTLMinutes, "BASKETWATCH_REDIS_CACHE_TTL_MINUTES")
	setInt(&cfg.Redis.StreamMaxLen, "BASKETWATCH_REDIS_STREAM_MAX_LEN")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "BASKETWATCH_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "BASKETWATCH_S3_REGION")
	setStr(&cfg.S3.Bucket, "BASKETWATCH_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "BASKETWATCH_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "BASKETWATCH_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "BASKETWATCH_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "BASKETWATCH_S3_FORCE_PATH_STYLE")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "BASKETWATCH_ARCHIVE_ENABLED")
	setInt(&cfg.Archive.RetentionDays, "BASKETWATCH_ARCHIVE_RETENTION_DAYS")
	setInt(&cfg.Archive.IntervalHours, "BASKETWATCH_ARCHIVE_INTERVAL_HOURS")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "BASKETWATCH_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "BASKETWATCH_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "BASKETWATCH_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "BASKETWATCH_SERVER_API_KEY")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "BASKETWATCH_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "BASKETWATCH_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "BASKETWATCH_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "BASKETWATCH_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "BASKETWATCH_MODE")
	setStr(&cfg.LogLevel, "BASKETWATCH_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
