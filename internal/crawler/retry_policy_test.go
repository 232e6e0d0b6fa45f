package crawler

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestExponentialRetryPolicy_ShouldRetry(t *testing.T) {
	t.Parallel()

	policy := NewExponentialRetryPolicy()
	tests := []struct {
		name    string
		err     error
		retries int
		want    bool
	}{
		{name: "nil error", err: nil, want: false},
		{name: "retryable 503", err: &StatusError{URL: "u", StatusCode: http.StatusServiceUnavailable}, want: true},
		{name: "retryable 429 wrapped", err: fmt.Errorf("fetch: %w", &StatusError{StatusCode: http.StatusTooManyRequests}), want: true},
		{name: "retryable 408", err: &StatusError{StatusCode: http.StatusRequestTimeout}, want: true},
		{name: "not found is final", err: &StatusError{StatusCode: http.StatusNotFound}, want: false},
		{name: "bad request is final", err: &StatusError{StatusCode: http.StatusBadRequest}, want: false},
		{name: "network timeout", err: timeoutErr{}, want: true},
		{name: "connection refused", err: &net.OpError{Op: "dial", Err: errors.New("connection refused")}, want: true},
		{name: "context canceled", err: context.Canceled, want: false},
		{name: "client timeout matches deadline", err: fmt.Errorf("wrap: %w", context.DeadlineExceeded), want: true},
		{name: "url error timeout", err: &url.Error{Op: "Get", URL: "u", Err: timeoutErr{}}, want: true},
		{name: "plain error", err: errors.New("boom"), want: false},
		{name: "retries exhausted", err: &StatusError{StatusCode: http.StatusBadGateway}, retries: 2, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, policy.ShouldRetry(tt.err, tt.retries))
		})
	}
}

func TestExponentialRetryPolicy_BackoffBounded(t *testing.T) {
	t.Parallel()

	policy := NewRetryPolicy(5, 100*time.Millisecond, time.Second)
	for attempt := 0; attempt < 8; attempt++ {
		d := policy.Backoff(attempt)
		require.GreaterOrEqual(t, d, time.Duration(0))
		require.LessOrEqual(t, d, time.Second)
	}
	require.GreaterOrEqual(t, policy.Backoff(0), 50*time.Millisecond)
}

func TestNewRetryPolicy_ZeroRetriesNeverRetries(t *testing.T) {
	t.Parallel()

	policy := NewRetryPolicy(0, 0, 0)
	require.False(t, policy.ShouldRetry(&StatusError{StatusCode: http.StatusBadGateway}, 0))
}
