package config

import (
	"time"

	"github.com/phrazzld/scry-decks/internal/domain/srs"
)

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database" validate:"required"`
	Auth      AuthConfig      `mapstructure:"auth" validate:"required"`
	Scheduler SchedulerConfig `mapstructure:"scheduler" validate:"required"`
	Import    ImportConfig    `mapstructure:"import" validate:"required"`
	Media     MediaConfig     `mapstructure:"media" validate:"required"`
	Session   SessionConfig   `mapstructure:"session" validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel        string        `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL             string        `mapstructure:"url" validate:"required,url"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"gte=1"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" validate:"gte=0"`
}

// AuthConfig holds the shared secret used to verify bearer tokens.
// Tokens are issued elsewhere.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret" validate:"required,min=32"`
	Issuer    string `mapstructure:"issuer"`
}

// SchedulerConfig carries the scheduler settings and the timezone that
// decides where a study day starts.
type SchedulerConfig struct {
	srs.Settings `mapstructure:",squash"`
	Timezone     string `mapstructure:"timezone" validate:"required,timezone"`
}

// Location resolves Timezone. Load has already validated it.
func (c SchedulerConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ImportConfig bounds collection imports.
type ImportConfig struct {
	MaxArchiveBytes int64   `mapstructure:"max_archive_bytes" validate:"gt=0"`
	MaxDecodedBytes int64   `mapstructure:"max_decoded_bytes" validate:"gt=0"`
	Workers         int     `mapstructure:"workers" validate:"gte=1"`
	QueueSize       int     `mapstructure:"queue_size" validate:"gte=1"`
	RatePerMinute   float64 `mapstructure:"rate_per_minute" validate:"gt=0"`
	Burst           int     `mapstructure:"burst" validate:"gte=1"`
	TempDir         string  `mapstructure:"temp_dir"`
}

// MediaConfig selects where imported images are uploaded.
type MediaConfig struct {
	Backend       string `mapstructure:"backend" validate:"required,oneof=local gcs"`
	LocalDir      string `mapstructure:"local_dir" validate:"required_if=Backend local"`
	PublicBaseURL string `mapstructure:"public_base_url" validate:"required,url"`
	GCSBucket     string `mapstructure:"gcs_bucket" validate:"required_if=Backend gcs"`
	GCSPrefix     string `mapstructure:"gcs_prefix"`
}

// SessionConfig bounds in-memory study sessions.
type SessionConfig struct {
	IdleTimeout time.Duration `mapstructure:"idle_timeout" validate:"gt=0"`
	MaxSessions int           `mapstructure:"max_sessions" validate:"gte=1"`
}
