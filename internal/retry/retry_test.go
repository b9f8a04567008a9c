package retry_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpclient "ytpipeline/http"
	"ytpipeline/internal/retry"
	"ytpipeline/youtube"
)

func fastConfig(maxRetries int) retry.Config {
	return retry.Config{
		MaxRetries:     maxRetries,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     20 * time.Millisecond,
		Multiplier:     2,
	}
}

func upstream(status int) error {
	return &youtube.UpstreamError{Op: "timedtext", VideoID: "dQw4w9WgXcQ", Err: &httpclient.HTTPError{StatusCode: status}}
}

func TestIsRetryable_ProjectErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"rate limited", &httpclient.RateLimitError{StatusCode: 429, RetryAfter: time.Second}, true},
		{"upstream 502", upstream(502), true},
		{"network failure", fmt.Errorf("%w: connection reset", httpclient.ErrRequestFailed), true},
		{"permanent upstream", retry.Permanent(upstream(404)), false},
		{"wrapped permanent", fmt.Errorf("fetch captions: %w", retry.Permanent(upstream(403))), false},
		{"upstream deadline", &youtube.UpstreamError{Op: "videos.list", Err: context.DeadlineExceeded}, false},
		{"caller cancelled", fmt.Errorf("resolve: %w", context.Canceled), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, retry.IsRetryable(tt.err))
		})
	}
}

func TestDo(t *testing.T) {
	notFound := retry.Permanent(upstream(404))

	tests := []struct {
		name         string
		failures     []error
		classifier   retry.ErrorClassifier
		wantAttempts int
		wantErr      error
	}{
		{name: "first try", wantAttempts: 1},
		{name: "recovers after 5xx", failures: []error{upstream(503), upstream(500)}, wantAttempts: 3},
		{name: "recovers after rate limit", failures: []error{&httpclient.RateLimitError{StatusCode: 429}}, wantAttempts: 2},
		{name: "stops on permanent", failures: []error{notFound, notFound}, wantAttempts: 1, wantErr: youtube.ErrUpstream},
		{
			name:     "custom classifier rejects 4xx",
			failures: []error{upstream(400)},
			classifier: func(err error) bool {
				return httpclient.StatusCode(err) >= 500
			},
			wantAttempts: 1,
			wantErr:      youtube.ErrUpstream,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attempts := 0
			err := retry.Do(context.Background(), fastConfig(5), tt.classifier, func(context.Context) error {
				attempts++
				if attempts <= len(tt.failures) {
					return tt.failures[attempts-1]
				}
				return nil
			})

			assert.Equal(t, tt.wantAttempts, attempts)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestDo_ExhaustsRetries(t *testing.T) {
	attempts := 0
	err := retry.Do(context.Background(), fastConfig(2), nil, func(context.Context) error {
		attempts++
		return upstream(502)
	})

	require.Error(t, err)
	assert.Equal(t, 3, attempts)
	assert.Contains(t, err.Error(), "max retries exceeded")
	assert.Equal(t, 502, httpclient.StatusCode(err))
}

func TestDo_StopsWhenContextDone(t *testing.T) {
	cfg := fastConfig(10)
	cfg.InitialBackoff = 50 * time.Millisecond
	cfg.MaxBackoff = time.Second

	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	err := retry.Do(ctx, cfg, nil, func(context.Context) error {
		attempts++
		if attempts == 2 {
			cancel()
		}
		return upstream(503)
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, attempts)
}

func TestDo_WaitsForRetryAfter(t *testing.T) {
	cfg := fastConfig(1)
	cfg.MaxBackoff = time.Second

	attempts := 0
	start := time.Now()
	err := retry.Do(context.Background(), cfg, nil, func(context.Context) error {
		attempts++
		if attempts == 1 {
			return &httpclient.RateLimitError{StatusCode: 429, RetryAfter: 60 * time.Millisecond}
		}
		return nil
	})

	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
}

func TestDo_RetryAfterCappedByMaxBackoff(t *testing.T) {
	attempts := 0
	start := time.Now()
	err := retry.Do(context.Background(), fastConfig(1), nil, func(context.Context) error {
		attempts++
		if attempts == 1 {
			return &httpclient.RateLimitError{StatusCode: 503, RetryAfter: time.Minute}
		}
		return nil
	})

	require.NoError(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestPermanent(t *testing.T) {
	assert.NoError(t, retry.Permanent(nil))

	err := retry.Permanent(upstream(404))
	var perm *retry.PermanentError
	require.True(t, errors.As(err, &perm))
	assert.ErrorIs(t, err, youtube.ErrUpstream)
	assert.Equal(t, upstream(404).Error(), err.Error())
}

func TestDefaultConfig(t *testing.T) {
	cfg := retry.DefaultConfig()
	assert.Equal(t, 5, cfg.MaxRetries)
	assert.Equal(t, time.Second, cfg.InitialBackoff)
	assert.Equal(t, 30*time.Second, cfg.MaxBackoff)
	assert.Equal(t, 2.0, cfg.Multiplier)
	assert.InDelta(t, 0.2, cfg.JitterFraction, 1e-9)
}
