package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies GAMEHOUSE_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
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

// applyEnvOverrides reads well-known GAMEHOUSE_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "GAMEHOUSE_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "GAMEHOUSE_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "GAMEHOUSE_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "GAMEHOUSE_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "GAMEHOUSE_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "GAMEHOUSE_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "GAMEHOUSE_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "GAMEHOUSE_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "GAMEHOUSE_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "GAMEHOUSE_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "GAMEHOUSE_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "GAMEHOUSE_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "GAMEHOUSE_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "GAMEHOUSE_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "GAMEHOUSE_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "GAMEHOUSE_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "GAMEHOUSE_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "GAMEHOUSE_S3_REGION")
	setStr(&cfg.S3.Bucket, "GAMEHOUSE_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "GAMEHOUSE_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "GAMEHOUSE_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "GAMEHOUSE_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "GAMEHOUSE_S3_FORCE_PATH_STYLE")

	// ── Game ──
	setDuration(&cfg.Game.BettingDuration, "GAMEHOUSE_GAME_BETTING_DURATION")
	setDuration(&cfg.Game.DecisionDuration, "GAMEHOUSE_GAME_DECISION_DURATION")
	setDuration(&cfg.Game.ResultDuration, "GAMEHOUSE_GAME_RESULT_DURATION")
	setFloat64(&cfg.Game.MinStake, "GAMEHOUSE_GAME_MIN_STAKE")
	setFloat64(&cfg.Game.PayoutMultiplier, "GAMEHOUSE_GAME_PAYOUT_MULTIPLIER")
	setDuration(&cfg.Game.ClockLockTTL, "GAMEHOUSE_GAME_CLOCK_LOCK_TTL")

	// ── Queue ──
	setFloat64(&cfg.Queue.MinStake, "GAMEHOUSE_QUEUE_MIN_STAKE")
	setFloat64(&cfg.Queue.StakeTolerance, "GAMEHOUSE_QUEUE_STAKE_TOLERANCE")
	setDuration(&cfg.Queue.EntryTTL, "GAMEHOUSE_QUEUE_ENTRY_TTL")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "GAMEHOUSE_ARCHIVE_ENABLED")
	setInt(&cfg.Archive.RetentionDays, "GAMEHOUSE_ARCHIVE_RETENTION_DAYS")
	setDuration(&cfg.Archive.Interval, "GAMEHOUSE_ARCHIVE_INTERVAL")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "GAMEHOUSE_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "GAMEHOUSE_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "GAMEHOUSE_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.AdminToken, "GAMEHOUSE_SERVER_ADMIN_TOKEN")

	// ── Top-level ──
	setStr(&cfg.Mode, "GAMEHOUSE_MODE")
	setStr(&cfg.LogLevel, "GAMEHOUSE_LOG_LEVEL")
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

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
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
