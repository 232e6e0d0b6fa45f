// Package classifier decides whether an opportunity title is technology work.
//
// Two implementations satisfy crawler.RelevanceClassifier: Keyword, a
// deterministic substring match, and Remote, which asks an OpenAI-compatible
// chat endpoint. Both answer false on anything they cannot decide.
package classifier

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/sam-opportunity-crawler/internal/crawler"
)

// Modes accepted by New.
const (
	ModeKeyword = "keyword"
	ModeRemote  = "remote"
)

// ErrMissingAPIKey is returned by New when remote mode has no credentials.
var ErrMissingAPIKey = errors.New("classifier: remote mode requires an api key")

// Config selects and tunes a classifier.
type Config struct {
	Mode           string        `mapstructure:"mode"`
	Keywords       []string      `mapstructure:"keywords"`
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	Model          string        `mapstructure:"model"`
	MaxRetries     int           `mapstructure:"max_retries"`
	BaseDelay      time.Duration `mapstructure:"base_delay"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

// New builds the classifier named by cfg.Mode. An empty mode means keyword.
func New(cfg Config, logger *zap.Logger) (crawler.RelevanceClassifier, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Mode)) {
	case "", ModeKeyword:
		return NewKeyword(cfg.Keywords), nil
	case ModeRemote:
		if strings.TrimSpace(cfg.APIKey) == "" {
			return nil, ErrMissingAPIKey
		}
		return NewRemote(RemoteConfig{
			BaseURL:        cfg.BaseURL,
			APIKey:         cfg.APIKey,
			Model:          cfg.Model,
			MaxRetries:     cfg.MaxRetries,
			BaseDelay:      cfg.BaseDelay,
			ConnectTimeout: cfg.ConnectTimeout,
			Timeout:        cfg.Timeout,
		}, logger), nil
	default:
		return nil, fmt.Errorf("classifier: unknown mode %q", cfg.Mode)
	}
}
