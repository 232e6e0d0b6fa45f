package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/sam-opportunity-crawler/internal/classifier"
	"github.com/JakeFAU/sam-opportunity-crawler/internal/crawler"
	"github.com/JakeFAU/sam-opportunity-crawler/internal/filter"
	"github.com/JakeFAU/sam-opportunity-crawler/internal/samgov"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, 10, cfg.Crawler.Concurrency)
	require.Equal(t, DefaultUserAgent, cfg.Crawler.UserAgent)
	require.Equal(t, samgov.DefaultEndpoints(), cfg.SamGov)
	require.Equal(t, filter.DefaultDeadlineThresholdDays, cfg.Filter.DeadlineThresholdDays)
	require.Equal(t, filter.DefaultDefenseKeywords, cfg.Filter.DefenseKeywords)
	require.Equal(t, classifier.ModeKeyword, cfg.Classifier.Mode)
	require.Equal(t, StorageMemory, cfg.Storage.Backend)
	require.Equal(t, 30*time.Minute, cfg.PostgresSettings().MaxConnLifetime)
	require.Equal(t, crawler.TaskParameters{SearchType: crawler.SearchType8A, Page: 1, PageSize: 200}, cfg.DefaultParameters())
}

func TestLoadWithFileOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
auth:
  enabled: true
  jwt_secret: secret
  token_ttl_minutes: 15
  users:
    analyst: "$2a$10$abcdefghijklmnopqrstuv"
crawler:
  concurrency: 6
  workers: 3
  default_page_size: 25
  default_search_type: wosb
  default_query: cloud
http:
  timeout_seconds: 45
  max_retries: 4
  backoff_initial_ms: 100
  backoff_max_ms: 500
filter:
  deadline_threshold_days: 21
  defense_keywords: ["army"]
classifier:
  mode: remote
  api_key: sk-test
  retry_delay_ms: 500
  read_timeout_seconds: 30
storage:
  backend: gcs
  bucket: dumps-bucket
logging:
  development: false
  level: warn
`
	require.NoError(t, os.WriteFile(path, []byte(configYAML), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.Server.Port)
	require.True(t, cfg.Auth.Enabled)
	require.Equal(t, 15*time.Minute, cfg.TokenTTL())
	require.Contains(t, cfg.Auth.Users, "analyst")
	require.Equal(t, 3, cfg.Crawler.Workers)
	require.Equal(t, 45*time.Second, cfg.FetchTimeout())
	require.Equal(t, 21, cfg.Filter.DeadlineThresholdDays)
	require.Equal(t, []string{"army"}, cfg.Filter.DefenseKeywords)
	require.Equal(t, "dumps-bucket", cfg.Storage.Bucket)
	require.Equal(t, "warn", cfg.Logging.Level)
	require.Equal(t, crawler.TaskParameters{SearchType: crawler.SearchTypeWOSB, Page: 1, PageSize: 25, Query: "cloud"}, cfg.DefaultParameters())

	cls := cfg.ClassifierSettings()
	require.Equal(t, classifier.ModeRemote, cls.Mode)
	require.Equal(t, 500*time.Millisecond, cls.BaseDelay)
	require.Equal(t, 30*time.Second, cls.Timeout)
	require.Equal(t, 5*time.Second, cls.ConnectTimeout)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("SAMCRAWLER_SERVER_PORT", "7070")
	t.Setenv("SAMCRAWLER_DATABASE_DSN", "postgres://localhost/sam")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 7070, cfg.Server.Port)
	require.Equal(t, "postgres://localhost/sam", cfg.PostgresSettings().DSN)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("SAMCRAWLER_DOTENV_PROBE=from-file\n"), 0o600))
	t.Setenv("SAMCRAWLER_DOTENV_PROBE", "")
	require.NoError(t, os.Unsetenv("SAMCRAWLER_DOTENV_PROBE"))

	require.NoError(t, loadDotEnv(path))
	require.Equal(t, "from-file", os.Getenv("SAMCRAWLER_DOTENV_PROBE"))
	require.NoError(t, loadDotEnv(filepath.Join(dir, "missing.env")))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.ErrorContains(t, err, "read config")
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		Server:  ServerConfig{Port: 8080},
		Crawler: CrawlerConfig{Concurrency: 1, Workers: 1, QueueDepth: 1, DefaultPageSize: 10},
		HTTP:    HTTPConfig{TimeoutSeconds: 10},
		Storage: StorageConfig{Backend: StorageMemory},
	}
	require.NoError(t, base.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{name: "invalid port", mutate: func(c *Config) { c.Server.Port = 0 }, want: "server.port"},
		{name: "invalid concurrency", mutate: func(c *Config) { c.Crawler.Concurrency = 0 }, want: "crawler.concurrency"},
		{name: "invalid workers", mutate: func(c *Config) { c.Crawler.Workers = 0 }, want: "crawler.workers"},
		{name: "invalid timeout", mutate: func(c *Config) { c.HTTP.TimeoutSeconds = 0 }, want: "http.timeout_seconds"},
		{name: "rate limit without rps", mutate: func(c *Config) { c.RateLimit.Enabled = true }, want: "rate_limit.default_rps"},
		{name: "remote without key", mutate: func(c *Config) { c.Classifier.Mode = classifier.ModeRemote }, want: "classifier.api_key"},
		{name: "unknown classifier", mutate: func(c *Config) { c.Classifier.Mode = "oracle" }, want: "classifier.mode"},
		{name: "gcs without bucket", mutate: func(c *Config) { c.Storage.Backend = StorageGCS }, want: "storage.bucket"},
		{name: "unknown backend", mutate: func(c *Config) { c.Storage.Backend = "s3" }, want: "storage.backend"},
		{name: "bad lifetime", mutate: func(c *Config) { c.Database.MaxConnLifetime = "forever" }, want: "database.max_conn_lifetime"},
		{name: "auth missing secret", mutate: func(c *Config) { c.Auth.Enabled = true }, want: "auth.jwt_secret"},
		{
			name: "auth missing users",
			mutate: func(c *Config) {
				c.Auth.Enabled = true
				c.Auth.JWTSecret = "s"
			},
			want: "auth.users",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			tt.mutate(&cfg)
			require.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}
