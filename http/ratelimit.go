package http

import (
	"context"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Backoff tuning for rate-limited domains.
const (
	InitialBackoff        = 1 * time.Second
	MaxBackoff            = 60 * time.Second
	BackoffMultiplier     = 2.0
	BackoffCooldownPeriod = 5 * time.Minute
	// MinRPSMultiplier is the floor for dynamic rate reduction.
	MinRPSMultiplier = 0.25
)

// RateLimiterConfig defines per-domain token-bucket rates. A zero rate
// means unlimited.
type RateLimiterConfig struct {
	// YouTubeRPS applies to www.youtube.com (watch pages, timedtext, Innertube).
	YouTubeRPS float64
	// OpenAIRPS applies to api.openai.com.
	OpenAIRPS float64
	// DefaultRPS applies to every other host.
	DefaultRPS float64
	// CustomRates maps hosts to RPS values and wins over the fields above.
	CustomRates map[string]float64
	// EnableDynamicBackoff reduces a domain's rate after 429/503 responses.
	EnableDynamicBackoff bool
}

// DefaultRateLimiterConfig returns conservative rates for YouTube's web endpoints.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		YouTubeRPS:           2.5,
		OpenAIRPS:            1.0,
		EnableDynamicBackoff: true,
	}
}

// backoffState tracks rate limit backoff for a domain.
type backoffState struct {
	currentBackoff    time.Duration
	lastError         time.Time
	consecutiveErrors int
	originalRPS       float64
	reducedRPS        float64
}

// RateLimiter manages per-domain request rate limiting.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	backoff  map[string]*backoffState
	config   RateLimiterConfig
}

// NewRateLimiter creates a new rate limiter with the given configuration.
func NewRateLimiter(cfg RateLimiterConfig) *RateLimiter {
	if cfg.CustomRates == nil {
		cfg.CustomRates = make(map[string]float64)
	}
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		backoff:  make(map[string]*backoffState),
		config:   cfg,
	}
}

// Wait blocks until the domain's token bucket allows a request.
func (rl *RateLimiter) Wait(ctx context.Context, urlStr string) error {
	if rl == nil {
		return nil
	}
	limiter := rl.limiter(extractDomain(urlStr))
	if limiter == nil {
		return nil
	}
	return limiter.Wait(ctx)
}

func (rl *RateLimiter) limiter(domain string) *rate.Limiter {
	rps := rl.rps(domain)
	if rps == 0 {
		return nil
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if limiter, ok := rl.limiters[domain]; ok {
		return limiter
	}
	limiter := rate.NewLimiter(rate.Limit(rps), 1)
	rl.limiters[domain] = limiter
	return limiter
}

func (rl *RateLimiter) rps(domain string) float64 {
	if rps, ok := rl.config.CustomRates[domain]; ok {
		return rps
	}
	switch domain {
	case "www.youtube.com", "youtube.com", "m.youtube.com":
		return rl.config.YouTubeRPS
	case "api.openai.com":
		return rl.config.OpenAIRPS
	default:
		return rl.config.DefaultRPS
	}
}

// RecordRateLimitError updates the domain's backoff after a 429/503 and
// returns how long the caller should wait before retrying.
func (rl *RateLimiter) RecordRateLimitError(urlStr string, retryAfter time.Duration) time.Duration {
	if rl == nil || !rl.config.EnableDynamicBackoff {
		if retryAfter > 0 {
			return retryAfter
		}
		return InitialBackoff
	}

	domain := extractDomain(urlStr)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	state, ok := rl.backoff[domain]
	if !ok {
		state = &backoffState{currentBackoff: InitialBackoff, originalRPS: rl.rps(domain)}
		rl.backoff[domain] = state
	}
	state.lastError = time.Now()
	state.consecutiveErrors++

	// 1s, 2s, 4s ... capped
	if state.consecutiveErrors > 1 {
		state.currentBackoff = time.Duration(float64(state.currentBackoff) * BackoffMultiplier)
		if state.currentBackoff > MaxBackoff {
			state.currentBackoff = MaxBackoff
		}
	}
	if retryAfter > state.currentBackoff {
		state.currentBackoff = retryAfter
	}

	if state.originalRPS > 0 {
		factor := 0.75
		switch {
		case state.consecutiveErrors >= 3:
			factor = MinRPSMultiplier
		case state.consecutiveErrors == 2:
			factor = 0.5
		}
		state.reducedRPS = state.originalRPS * factor
		if limiter, ok := rl.limiters[domain]; ok {
			limiter.SetLimit(rate.Limit(state.reducedRPS))
		}
	}

	return state.currentBackoff
}

// RecordSuccess relaxes a domain's backoff after a successful request.
func (rl *RateLimiter) RecordSuccess(urlStr string) {
	if rl == nil || !rl.config.EnableDynamicBackoff {
		return
	}

	domain := extractDomain(urlStr)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	state, ok := rl.backoff[domain]
	if !ok {
		return
	}

	if time.Since(state.lastError) > BackoffCooldownPeriod || state.consecutiveErrors <= 1 {
		if limiter, ok := rl.limiters[domain]; ok && state.reducedRPS > 0 {
			limiter.SetLimit(rate.Limit(state.originalRPS))
		}
		delete(rl.backoff, domain)
		return
	}
	state.consecutiveErrors--
}

// IsBackedOff reports whether the domain is inside a backoff window.
func (rl *RateLimiter) IsBackedOff(urlStr string) bool {
	return rl.remainingBackoff(urlStr) > 0
}

func (rl *RateLimiter) remainingBackoff(urlStr string) time.Duration {
	if rl == nil {
		return 0
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()
	state, ok := rl.backoff[extractDomain(urlStr)]
	if !ok {
		return 0
	}
	return state.currentBackoff - time.Since(state.lastError)
}

// WaitForBackoff waits out the current backoff window, if any.
func (rl *RateLimiter) WaitForBackoff(ctx context.Context, urlStr string) error {
	remaining := rl.remainingBackoff(urlStr)
	if remaining <= 0 {
		return nil
	}
	t := time.NewTimer(remaining)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// extractDomain returns the host of urlStr without port, or "unknown".
func extractDomain(urlStr string) string {
	u, err := url.Parse(urlStr)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return u.Hostname()
}
