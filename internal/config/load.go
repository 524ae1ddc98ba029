package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/scry-decks/internal/domain/srs"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g. SCRY_SERVER_PORT.
const EnvPrefix = "SCRY"

// Load configuration from environment variables and an optional config.yaml
// in the working directory. Environment variables take precedence over
// values from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit config file. An empty path searches the
// working directory for config.yaml and tolerates its absence.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Keys without defaults are invisible to AutomaticEnv during Unmarshal.
	for _, key := range []string{"database.url", "auth.jwt_secret", "auth.issuer", "media.gcs_bucket", "media.gcs_prefix", "import.temp_dir"} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("error binding %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.shutdown_timeout", "15s")

	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "5m")

	s := srs.DefaultSettings()
	v.SetDefault("scheduler.learning_steps", s.LearningSteps)
	v.SetDefault("scheduler.relearning_steps", s.RelearningSteps)
	v.SetDefault("scheduler.graduating_interval_days", s.GraduatingIntervalDays)
	v.SetDefault("scheduler.easy_interval_days", s.EasyIntervalDays)
	v.SetDefault("scheduler.starting_ease", s.StartingEase)
	v.SetDefault("scheduler.easy_bonus", s.EasyBonus)
	v.SetDefault("scheduler.hard_interval", s.HardInterval)
	v.SetDefault("scheduler.interval_modifier", s.IntervalModifier)
	v.SetDefault("scheduler.new_interval_multiplier", s.NewIntervalMultiplier)
	v.SetDefault("scheduler.minimum_interval_days", s.MinimumIntervalDays)
	v.SetDefault("scheduler.maximum_interval_days", s.MaximumIntervalDays)
	v.SetDefault("scheduler.again_delay_minutes", s.AgainDelayMinutes)
	v.SetDefault("scheduler.new_cards_per_day", s.NewCardsPerDay)
	v.SetDefault("scheduler.max_reviews_per_day", s.MaxReviewsPerDay)
	v.SetDefault("scheduler.review_order", string(s.ReviewOrder))
	v.SetDefault("scheduler.timezone", "UTC")

	v.SetDefault("import.max_archive_bytes", int64(256<<20))
	v.SetDefault("import.max_decoded_bytes", int64(1<<30))
	v.SetDefault("import.workers", 2)
	v.SetDefault("import.queue_size", 16)
	v.SetDefault("import.rate_per_minute", 6.0)
	v.SetDefault("import.burst", 2)

	v.SetDefault("media.backend", "local")
	v.SetDefault("media.local_dir", "./data/media")
	v.SetDefault("media.public_base_url", "http://localhost:8080/media")

	v.SetDefault("session.idle_timeout", "30m")
	v.SetDefault("session.max_sessions", 10000)
}
