package collyfetcher

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/sam-opportunity-crawler/internal/crawler"
	"github.com/JakeFAU/sam-opportunity-crawler/internal/metrics"
)

// Retrying wraps a Fetcher with rate limiting and transient-failure retries.
type Retrying struct {
	next    crawler.Fetcher
	policy  crawler.RetryPolicy
	limiter crawler.RateLimiter
	logger  *zap.Logger
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewRetrying builds the decorator. limiter may be nil.
func NewRetrying(next crawler.Fetcher, policy crawler.RetryPolicy, limiter crawler.RateLimiter, logger *zap.Logger) *Retrying {
	if policy == nil {
		policy = crawler.NewExponentialRetryPolicy()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retrying{
		next:    next,
		policy:  policy,
		limiter: limiter,
		logger:  logger,
		sleep:   sleepContext,
	}
}

// Fetch calls the wrapped fetcher until it succeeds, the policy gives up, or
// ctx ends. Every attempt waits on the rate limiter first.
func (r *Retrying) Fetch(ctx context.Context, request crawler.FetchRequest) (crawler.FetchResponse, error) {
	var lastErr error
	for retries := 0; ; retries++ {
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx, request.URL); err != nil {
				return crawler.FetchResponse{}, err
			}
		}

		resp, err := r.next.Fetch(ctx, request)
		if err == nil {
			resp.Attempts = retries + 1
			return resp, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return crawler.FetchResponse{}, err
		}
		if !r.policy.ShouldRetry(err, retries) {
			break
		}
		delay := r.policy.Backoff(retries)
		metrics.ObserveRetry(request.Kind)
		r.logger.Warn("retrying fetch",
			zap.String("task_id", request.TaskID),
			zap.String("kind", request.Kind),
			zap.String("url", request.URL),
			zap.Int("retry", retries+1),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)
		if err := r.sleep(ctx, delay); err != nil {
			return crawler.FetchResponse{}, fmt.Errorf("retry backoff: %w", err)
		}
	}
	return crawler.FetchResponse{}, lastErr
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
