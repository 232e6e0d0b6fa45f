// Package config loads and validates crawler configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/JakeFAU/sam-opportunity-crawler/internal/classifier"
	"github.com/JakeFAU/sam-opportunity-crawler/internal/crawler"
	"github.com/JakeFAU/sam-opportunity-crawler/internal/filter"
	"github.com/JakeFAU/sam-opportunity-crawler/internal/samgov"
	"github.com/JakeFAU/sam-opportunity-crawler/internal/storage/postgres"
	"github.com/JakeFAU/sam-opportunity-crawler/internal/telemetry"
)

// EnvPrefix namespaces environment overrides, e.g. SAMCRAWLER_DATABASE_DSN.
const EnvPrefix = "SAMCRAWLER"

// DefaultUserAgent is sent on every upstream request.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/70.0.3538.77 Safari/537.36"

// SearchPaths are tried, in order, for config.yaml when no path is given.
var SearchPaths = []string{".", "/etc/samcrawler", "$HOME/.samcrawler"}

// Storage backends for payload dumps.
const (
	StorageMemory = "memory"
	StorageLocal  = "local"
	StorageGCS    = "gcs"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Crawler    CrawlerConfig    `mapstructure:"crawler"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	SamGov     samgov.Endpoints `mapstructure:"samgov"`
	Filter     filter.Config    `mapstructure:"filter"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Storage    StorageConfig    `mapstructure:"storage"`
	PubSub     PubSubConfig     `mapstructure:"pubsub"`
	Telemetry  telemetry.Config `mapstructure:"telemetry"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication. Users maps usernames to bcrypt hashes.
type AuthConfig struct {
	Enabled         bool              `mapstructure:"enabled"`
	JWTSecret       string            `mapstructure:"jwt_secret"`
	TokenTTLMinutes int               `mapstructure:"token_ttl_minutes"`
	Users           map[string]string `mapstructure:"users"`
}

// CrawlerConfig governs dispatcher and pipeline behavior.
type CrawlerConfig struct {
	Concurrency        int    `mapstructure:"concurrency"`
	Workers            int    `mapstructure:"workers"`
	QueueDepth         int    `mapstructure:"queue_depth"`
	UserAgent          string `mapstructure:"user_agent"`
	DefaultPageSize    int    `mapstructure:"default_page_size"`
	DefaultSearchType  string `mapstructure:"default_search_type"`
	DefaultQuery       string `mapstructure:"default_query"`
	TaskTimeoutSeconds int    `mapstructure:"task_timeout_seconds"`
}

// HTTPConfig configures upstream timeouts and retry behavior.
type HTTPConfig struct {
	TimeoutSeconds        int `mapstructure:"timeout_seconds"`
	ConnectTimeoutSeconds int `mapstructure:"connect_timeout_seconds"`
	MaxRetries            int `mapstructure:"max_retries"`
	BackoffInitialMs      int `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs          int `mapstructure:"backoff_max_ms"`
}

// RateLimitConfig throttles requests per upstream host.
type RateLimitConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	DefaultRPS   float64 `mapstructure:"default_rps"`
	DefaultBurst int     `mapstructure:"default_burst"`
}

// ClassifierConfig selects keyword or remote relevance classification.
type ClassifierConfig struct {
	Mode                  string   `mapstructure:"mode"`
	Keywords              []string `mapstructure:"keywords"`
	BaseURL               string   `mapstructure:"base_url"`
	APIKey                string   `mapstructure:"api_key"`
	Model                 string   `mapstructure:"model"`
	MaxRetries            int      `mapstructure:"max_retries"`
	RetryDelayMs          int      `mapstructure:"retry_delay_ms"`
	ConnectTimeoutSeconds int      `mapstructure:"connect_timeout_seconds"`
	ReadTimeoutSeconds    int      `mapstructure:"read_timeout_seconds"`
}

// DatabaseConfig controls access to Postgres. An empty DSN selects the
// in-memory stores.
type DatabaseConfig struct {
	DSN             string `mapstructure:"dsn"`
	Table           string `mapstructure:"table"`
	TaskTable       string `mapstructure:"task_table"`
	MaxConns        int32  `mapstructure:"max_conns"`
	MinConns        int32  `mapstructure:"min_conns"`
	MaxConnLifetime string `mapstructure:"max_conn_lifetime"`
	EnsureSchema    bool   `mapstructure:"ensure_schema"`
}

// StorageConfig picks where unrecognized payloads are dumped.
type StorageConfig struct {
	Backend string             `mapstructure:"backend"`
	Bucket  string             `mapstructure:"bucket"`
	Prefix  string             `mapstructure:"prefix"`
	Local   LocalStorageConfig `mapstructure:"local"`
}

// LocalStorageConfig is used by the local backend.
type LocalStorageConfig struct {
	BaseDir string `mapstructure:"base_dir"`
}

// PubSubConfig holds metadata for completion notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from .env, the environment, and a YAML file. An
// empty path searches SearchPaths; finding nothing there is not an error.
func Load(path string) (Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		for _, dir := range SearchPaths {
			v.AddConfigPath(dir)
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// loadDotEnv exports variables from path without overriding the real
// environment. A missing file is fine.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)

	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl_minutes", 60)

	v.SetDefault("crawler.concurrency", 10)
	v.SetDefault("crawler.workers", 2)
	v.SetDefault("crawler.queue_depth", 64)
	v.SetDefault("crawler.user_agent", DefaultUserAgent)
	v.SetDefault("crawler.default_page_size", 200)
	v.SetDefault("crawler.default_search_type", string(crawler.SearchType8A))
	v.SetDefault("crawler.default_query", "")
	v.SetDefault("crawler.task_timeout_seconds", 1800)

	v.SetDefault("http.timeout_seconds", 60)
	v.SetDefault("http.connect_timeout_seconds", 5)
	v.SetDefault("http.max_retries", 2)
	v.SetDefault("http.backoff_initial_ms", 250)
	v.SetDefault("http.backoff_max_ms", 5000)

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.default_rps", 4.0)
	v.SetDefault("rate_limit.default_burst", 4)

	v.SetDefault("samgov.search_url", samgov.DefaultSearchURL)
	v.SetDefault("samgov.detail_url", samgov.DefaultDetailURL)
	v.SetDefault("samgov.organization_url", samgov.DefaultOrganizationURL)
	v.SetDefault("samgov.link_url", samgov.DefaultLinkURL)

	v.SetDefault("filter.deadline_threshold_days", filter.DefaultDeadlineThresholdDays)
	v.SetDefault("filter.defense_keywords", filter.DefaultDefenseKeywords)
	v.SetDefault("filter.reference_timezone", "America/Denver")

	v.SetDefault("classifier.mode", classifier.ModeKeyword)
	v.SetDefault("classifier.keywords", classifier.DefaultKeywords)
	v.SetDefault("classifier.base_url", classifier.DefaultBaseURL)
	v.SetDefault("classifier.api_key", "")
	v.SetDefault("classifier.model", classifier.DefaultModel)
	v.SetDefault("classifier.max_retries", classifier.DefaultMaxRetries)
	v.SetDefault("classifier.retry_delay_ms", 2000)
	v.SetDefault("classifier.connect_timeout_seconds", 5)
	v.SetDefault("classifier.read_timeout_seconds", 60)

	v.SetDefault("database.dsn", "")
	v.SetDefault("database.table", postgres.DefaultOpportunityTable)
	v.SetDefault("database.task_table", postgres.DefaultTaskTable)
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 0)
	v.SetDefault("database.max_conn_lifetime", "30m")
	v.SetDefault("database.ensure_schema", true)

	v.SetDefault("storage.backend", StorageMemory)
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.prefix", "dumps")
	v.SetDefault("storage.local.base_dir", "./data")

	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "sam-crawl-completed")

	v.SetDefault("telemetry.service_name", "sam-opportunity-crawler")
	v.SetDefault("telemetry.version", "dev")
	v.SetDefault("telemetry.tracing_enabled", false)

	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Crawler.Concurrency <= 0 {
		return fmt.Errorf("crawler.concurrency must be > 0")
	}
	if c.Crawler.Workers <= 0 {
		return fmt.Errorf("crawler.workers must be > 0")
	}
	if c.Crawler.QueueDepth <= 0 {
		return fmt.Errorf("crawler.queue_depth must be > 0")
	}
	if c.Crawler.DefaultPageSize <= 0 {
		return fmt.Errorf("crawler.default_page_size must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.MaxRetries < 0 {
		return fmt.Errorf("http.max_retries must be >= 0")
	}
	if c.RateLimit.Enabled && c.RateLimit.DefaultRPS <= 0 {
		return fmt.Errorf("rate_limit.default_rps must be > 0 when rate limiting is enabled")
	}
	if c.Filter.DeadlineThresholdDays < 0 {
		return fmt.Errorf("filter.deadline_threshold_days must be >= 0")
	}
	switch strings.ToLower(c.Classifier.Mode) {
	case "", classifier.ModeKeyword:
	case classifier.ModeRemote:
		if c.Classifier.APIKey == "" {
			return fmt.Errorf("classifier.api_key must be set when classifier.mode is remote")
		}
	default:
		return fmt.Errorf("classifier.mode must be %q or %q", classifier.ModeKeyword, classifier.ModeRemote)
	}
	switch c.Storage.Backend {
	case StorageMemory:
	case StorageLocal:
		if c.Storage.Local.BaseDir == "" {
			return fmt.Errorf("storage.local.base_dir must be set for the local backend")
		}
	case StorageGCS:
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage.bucket must be set for the gcs backend")
		}
	default:
		return fmt.Errorf("storage.backend must be one of memory, local, gcs")
	}
	if c.Database.MaxConnLifetime != "" {
		if _, err := time.ParseDuration(c.Database.MaxConnLifetime); err != nil {
			return fmt.Errorf("database.max_conn_lifetime: %w", err)
		}
	}
	if c.Auth.Enabled {
		if c.Auth.JWTSecret == "" {
			return fmt.Errorf("auth.jwt_secret must be set when auth is enabled")
		}
		if len(c.Auth.Users) == 0 {
			return fmt.Errorf("auth.users must list at least one user when auth is enabled")
		}
	}
	return nil
}

// TaskTimeout bounds a single task run.
func (c Config) TaskTimeout() time.Duration {
	return time.Duration(c.Crawler.TaskTimeoutSeconds) * time.Second
}

// TokenTTL is how long issued bearer tokens stay valid.
func (c Config) TokenTTL() time.Duration {
	return time.Duration(c.Auth.TokenTTLMinutes) * time.Minute
}

// FetchTimeout converts the HTTP timeout into a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// ConnectTimeout converts the HTTP connect timeout into a duration.
func (c Config) ConnectTimeout() time.Duration {
	return time.Duration(c.HTTP.ConnectTimeoutSeconds) * time.Second
}

// RetryPolicy builds the fetch retry policy from the http section.
func (c Config) RetryPolicy() *crawler.ExponentialRetryPolicy {
	return crawler.NewRetryPolicy(
		c.HTTP.MaxRetries,
		time.Duration(c.HTTP.BackoffInitialMs)*time.Millisecond,
		time.Duration(c.HTTP.BackoffMaxMs)*time.Millisecond,
	)
}

// ClassifierSettings converts the classifier section for classifier.New.
func (c Config) ClassifierSettings() classifier.Config {
	return classifier.Config{
		Mode:           c.Classifier.Mode,
		Keywords:       c.Classifier.Keywords,
		BaseURL:        c.Classifier.BaseURL,
		APIKey:         c.Classifier.APIKey,
		Model:          c.Classifier.Model,
		MaxRetries:     c.Classifier.MaxRetries,
		BaseDelay:      time.Duration(c.Classifier.RetryDelayMs) * time.Millisecond,
		ConnectTimeout: time.Duration(c.Classifier.ConnectTimeoutSeconds) * time.Second,
		Timeout:        time.Duration(c.Classifier.ReadTimeoutSeconds) * time.Second,
	}
}

// PostgresSettings converts the database section for postgres.NewPool.
func (c Config) PostgresSettings() postgres.Config {
	lifetime, _ := time.ParseDuration(c.Database.MaxConnLifetime)
	return postgres.Config{
		DSN:             c.Database.DSN,
		Table:           c.Database.Table,
		TaskTable:       c.Database.TaskTable,
		MaxConns:        c.Database.MaxConns,
		MinConns:        c.Database.MinConns,
		MaxConnLifetime: lifetime,
	}
}

// DefaultParameters fills the caller-omitted parts of a crawl request.
func (c Config) DefaultParameters() crawler.TaskParameters {
	return crawler.TaskParameters{
		SearchType: crawler.ParseSearchType(c.Crawler.DefaultSearchType),
		Page:       1,
		PageSize:   c.Crawler.DefaultPageSize,
		Query:      c.Crawler.DefaultQuery,
	}
}
