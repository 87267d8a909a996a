// Package config holds the agent configuration: env-first via cleanenv
// struct tags, with an optional YAML file, plus a manager that watches
// the file and publishes validated reloads. Credentials are load-once;
// posting cadence, topics and logging are hot-reloadable.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Platform   PlatformConfig   `yaml:"platform"`
	Posting    PostingConfig    `yaml:"posting"`
	Generation GenerationConfig `yaml:"generation"`
	Logging    LoggingConfig    `yaml:"logging"`
	Alert      AlertConfig      `yaml:"alert"`
}

// PlatformConfig carries the five required delivery secrets. All five
// must be present; startup fails otherwise.
type PlatformConfig struct {
	APIKey       string `yaml:"api_key" env:"X_API_KEY"`
	APISecret    string `yaml:"api_secret" env:"X_API_SECRET"`
	AccessToken  string `yaml:"access_token" env:"X_ACCESS_TOKEN"`
	AccessSecret string `yaml:"access_token_secret" env:"X_ACCESS_TOKEN_SECRET"`
	BearerToken  string `yaml:"bearer_token" env:"X_BEARER_TOKEN"`

	// BaseURL overrides the API host (staging/tests).
	BaseURL        string `yaml:"base_url" env:"X_BASE_URL"`
	RequestsPerMin int    `yaml:"requests_per_min" env:"X_REQUESTS_PER_MIN"`
}

type PostingConfig struct {
	CorpusPath      string `yaml:"corpus_path" env:"CHIRPD_CORPUS" env-default:"./messages.txt"`
	IntervalMinutes int    `yaml:"interval_minutes" env:"CHIRPD_INTERVAL_MINUTES" env-default:"60"`
	MaxRetries      int    `yaml:"max_retries" env:"CHIRPD_MAX_RETRIES" env-default:"5"`

	// Durations are Go duration strings (e.g. "60s", "2m").
	BaseBackoff string `yaml:"base_backoff" env:"CHIRPD_BASE_BACKOFF" env-default:"60s"`
	JitterMax   string `yaml:"jitter_max" env:"CHIRPD_JITTER_MAX" env-default:"10s"`
}

// GenerationConfig controls the generative fallback. An empty APIKey
// disables generation; the agent then posts from the corpus only.
type GenerationConfig struct {
	APIKey string `yaml:"api_key" env:"OPENAI_API_KEY"`
	APIURL string `yaml:"api_url" env:"OPENAI_API_URL"`
	Model  string `yaml:"model" env:"CHIRPD_GEN_MODEL"`

	Subject string   `yaml:"subject" env:"CHIRPD_GEN_SUBJECT"`
	Context string   `yaml:"context" env:"CHIRPD_GEN_CONTEXT"`
	Topics  []string `yaml:"topics" env:"CHIRPD_GEN_TOPICS" env-separator:","`
}

type LoggingConfig struct {
	Level   string      `yaml:"level" env:"CHIRPD_LOG_LEVEL" env-default:"INFO"`
	Console bool        `yaml:"console" env:"CHIRPD_LOG_CONSOLE" env-default:"true"`
	File    LoggingFile `yaml:"file"`
}

type LoggingFile struct {
	Enabled    bool   `yaml:"enabled" env:"CHIRPD_LOG_FILE" env-default:"true"`
	Path       string `yaml:"path" env:"CHIRPD_LOG_FILE_PATH" env-default:"./chirpd.log"`
	MaxSizeMB  int    `yaml:"max_size_mb" env:"CHIRPD_LOG_FILE_MAX_SIZE_MB"`
	MaxBackups int    `yaml:"max_backups" env:"CHIRPD_LOG_FILE_MAX_BACKUPS"`
	MaxAgeDays int    `yaml:"max_age_days" env:"CHIRPD_LOG_FILE_MAX_AGE_DAYS"`
}

// AlertConfig controls optional operator alerts on terminal cycle
// failures. Both Token and ChatID must be set to enable alerts.
type AlertConfig struct {
	TelegramToken string `yaml:"telegram_token" env:"CHIRPD_ALERT_TELEGRAM_TOKEN"`
	ChatID        int64  `yaml:"chat_id" env:"CHIRPD_ALERT_CHAT_ID"`
	RatePerMin    int    `yaml:"rate_per_min" env:"CHIRPD_ALERT_RATE_PER_MIN" env-default:"2"`
}

// Load reads the config from the given YAML file overlaid with env vars,
// or from env only when path is empty.
func Load(path string) (*Config, error) {
	var cfg Config
	if strings.TrimSpace(path) != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("read config from env: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate covers everything except credential presence, which the
// transport layer reports with the full missing list.
func (c *Config) Validate() error {
	if c.Posting.IntervalMinutes <= 0 {
		return fmt.Errorf("posting.interval_minutes must be > 0, got %d", c.Posting.IntervalMinutes)
	}
	if c.Posting.MaxRetries < 0 {
		return fmt.Errorf("posting.max_retries must be >= 0, got %d", c.Posting.MaxRetries)
	}
	if _, err := ParseDuration("posting.base_backoff", c.Posting.BaseBackoff, 0); err != nil {
		return err
	}
	if _, err := ParseDuration("posting.jitter_max", c.Posting.JitterMax, 0); err != nil {
		return err
	}
	if strings.TrimSpace(c.Posting.CorpusPath) == "" {
		return fmt.Errorf("posting.corpus_path is required")
	}
	return nil
}

// ParseDuration parses a config duration string, naming the offending
// field in the error. Empty or zero values yield def; negative values
// are rejected.
func ParseDuration(field, value string, def time.Duration) (time.Duration, error) {
	s := strings.TrimSpace(value)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", field, value, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", field)
	}
	if d == 0 {
		return def, nil
	}
	return d, nil
}

// GenerationEnabled reports whether the generative fallback can be used.
func (c *Config) GenerationEnabled() bool {
	return strings.TrimSpace(c.Generation.APIKey) != ""
}

// AlertsEnabled reports whether operator alerts are configured.
func (c *Config) AlertsEnabled() bool {
	return strings.TrimSpace(c.Alert.TelegramToken) != "" && c.Alert.ChatID != 0
}
