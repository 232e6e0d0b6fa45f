package classifier

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/sam-opportunity-crawler/internal/crawler"
	"github.com/JakeFAU/sam-opportunity-crawler/internal/metrics"
)

// Remote defaults.
const (
	DefaultBaseURL        = "https://api.siliconflow.cn/v1"
	DefaultModel          = "deepseek-ai/DeepSeek-V3"
	DefaultMaxRetries     = 3
	DefaultBaseDelay      = 2 * time.Second
	DefaultConnectTimeout = 5 * time.Second
	DefaultTimeout        = 60 * time.Second
)

const maxStreamLine = 1 << 20

// RemoteConfig configures Remote.
type RemoteConfig struct {
	BaseURL        string
	APIKey         string
	Model          string
	MaxRetries     int
	BaseDelay      time.Duration
	ConnectTimeout time.Duration
	Timeout        time.Duration
}

// Remote asks a streaming chat-completions endpoint whether a title is in
// scope. Failures of any kind answer false.
type Remote struct {
	cfg    RemoteConfig
	client *http.Client
	logger *zap.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewRemote fills defaults and builds the HTTP client.
func NewRemote(cfg RemoteConfig, logger *zap.Logger) *Remote {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	} else if cfg.MaxRetries == 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultBaseDelay
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Remote{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				Proxy:       http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{Timeout: cfg.ConnectTimeout}).DialContext,
			},
		},
		logger: logger,
		sleep:  sleepContext,
	}
}

// Classify implements crawler.RelevanceClassifier.
func (r *Remote) Classify(ctx context.Context, title string) bool {
	if !crawler.IsPresent(strings.TrimSpace(title)) {
		return false
	}
	text, err := r.Complete(ctx, Prompt(title))
	if err != nil {
		metrics.ObserveClassifierError(ModeRemote)
		r.logger.Warn("relevance classification failed", zap.String("title", title), zap.Error(err))
		return false
	}
	relevant := Decide(text)
	metrics.ObserveClassifier(ModeRemote, relevant)
	r.logger.Debug("relevance classified",
		zap.String("title", title),
		zap.String("answer", text),
		zap.Bool("relevant", relevant),
	)
	return relevant
}

// Complete sends prompt and returns the cleaned, accumulated answer. Transient
// failures are retried with delay BaseDelay * 2^attempt.
func (r *Remote) Complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(r.requestBody(prompt))
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= r.cfg.MaxRetries; attempt++ {
		text, err := r.do(ctx, body)
		if err == nil {
			return CleanText(text), nil
		}
		lastErr = err
		if ctx.Err() != nil || attempt == r.cfg.MaxRetries || !crawler.IsTransient(err) {
			break
		}
		delay := r.cfg.BaseDelay * time.Duration(1<<attempt)
		r.logger.Warn("retrying classifier call",
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)
		if err := r.sleep(ctx, delay); err != nil {
			return "", fmt.Errorf("classifier backoff: %w", err)
		}
	}
	return "", lastErr
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model            string            `json:"model"`
	Messages         []chatMessage     `json:"messages"`
	Stream           bool              `json:"stream"`
	MaxTokens        int               `json:"max_tokens"`
	Temperature      float64           `json:"temperature"`
	TopP             float64           `json:"top_p"`
	TopK             int               `json:"top_k"`
	FrequencyPenalty float64           `json:"frequency_penalty"`
	N                int               `json:"n"`
	ResponseFormat   map[string]string `json:"response_format"`
}

func (r *Remote) requestBody(prompt string) chatRequest {
	return chatRequest{
		Model:            r.cfg.Model,
		Messages:         []chatMessage{{Role: "user", Content: prompt}},
		Stream:           true,
		MaxTokens:        4069,
		Temperature:      0.7,
		TopP:             1.0,
		TopK:             50,
		FrequencyPenalty: 1.0,
		N:                1,
		ResponseFormat:   map[string]string{"type": "text"},
	}
}

func (r *Remote) do(ctx context.Context, body []byte) (string, error) {
	endpoint := strings.TrimRight(r.cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+r.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", &crawler.StatusError{URL: endpoint, StatusCode: resp.StatusCode}
	}
	return ReadStream(resp.Body)
}

// ErrUpstream wraps an error object reported inside the stream.
var ErrUpstream = errors.New("classifier upstream error")

// ReadStream accumulates content fragments from a server-sent-events style
// body. Lines may carry a "data: " prefix; "[DONE]" ends the stream and
// non-JSON heartbeat lines are skipped.
func ReadStream(body io.Reader) (string, error) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxStreamLine)

	var out strings.Builder
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if line == "[DONE]" {
			break
		}
		var chunk map[string]json.RawMessage
		if err := json.Unmarshal([]byte(line), &chunk); err != nil {
			continue
		}
		if raw, ok := chunk["error"]; ok {
			return "", fmt.Errorf("%w: %s", ErrUpstream, string(raw))
		}
		out.WriteString(chunkContent(chunk))
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("read chat stream: %w", err)
	}
	return out.String(), nil
}

func chunkContent(chunk map[string]json.RawMessage) string {
	if raw, ok := chunk["choices"]; ok {
		var choices []struct {
			Delta struct {
				Content string `json:"content"`
			} `json:"delta"`
		}
		if json.Unmarshal(raw, &choices) == nil && len(choices) > 0 && choices[0].Delta.Content != "" {
			return choices[0].Delta.Content
		}
	}
	if raw, ok := chunk["response"]; ok {
		var text string
		if json.Unmarshal(raw, &text) == nil {
			return text
		}
	}
	return ""
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
