package http

import (
	"context"
	"errors"
	"sync"
	"time"
)

// CircuitState represents the state of a circuit breaker.
type CircuitState int

const (
	// CircuitClosed is the normal state where requests are allowed.
	CircuitClosed CircuitState = iota
	// CircuitOpen is the state where requests fail fast.
	CircuitOpen
	// CircuitHalfOpen allows a limited number of probe requests.
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned when the circuit breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreakerConfig configures circuit breaker behavior.
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of consecutive failures to open the circuit.
	FailureThreshold int
	// RecoveryTimeout is how long the circuit stays open before probing.
	RecoveryTimeout time.Duration
	// HalfOpenMaxRequests is the number of probes allowed while half-open.
	HalfOpenMaxRequests int
	// IsTransientError decides which failures count. Nil counts all of them.
	IsTransientError func(error) bool
}

// DefaultCircuitBreakerConfig returns sensible defaults for circuit breaker configuration.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold:    5,
		RecoveryTimeout:     30 * time.Second,
		HalfOpenMaxRequests: 1,
	}
}

type circuit struct {
	state             CircuitState
	consecutiveErrors int
	lastStateChange   time.Time
	halfOpenRequests  int
}

// CircuitBreaker tracks failures per domain and fails fast once a domain
// has failed too many times in a row.
type CircuitBreaker struct {
	mu       sync.Mutex
	circuits map[string]*circuit
	config   CircuitBreakerConfig
}

// NewCircuitBreaker creates a new circuit breaker with the given configuration.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	def := DefaultCircuitBreakerConfig()
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.RecoveryTimeout <= 0 {
		cfg.RecoveryTimeout = def.RecoveryTimeout
	}
	if cfg.HalfOpenMaxRequests <= 0 {
		cfg.HalfOpenMaxRequests = def.HalfOpenMaxRequests
	}
	return &CircuitBreaker{
		circuits: make(map[string]*circuit),
		config:   cfg,
	}
}

// Allow returns ErrCircuitOpen when requests to domain should fail fast.
func (cb *CircuitBreaker) Allow(domain string) error {
	if cb == nil {
		return nil
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	c := cb.get(domain)
	switch c.state {
	case CircuitOpen:
		if time.Since(c.lastStateChange) < cb.config.RecoveryTimeout {
			return ErrCircuitOpen
		}
		c.state = CircuitHalfOpen
		c.lastStateChange = time.Now()
		c.halfOpenRequests = 1
		return nil
	case CircuitHalfOpen:
		if c.halfOpenRequests >= cb.config.HalfOpenMaxRequests {
			return ErrCircuitOpen
		}
		c.halfOpenRequests++
		return nil
	default:
		return nil
	}
}

// RecordSuccess closes a half-open circuit and clears the failure count.
func (cb *CircuitBreaker) RecordSuccess(domain string) {
	if cb == nil {
		return
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	c := cb.get(domain)
	if c.state == CircuitHalfOpen {
		c.state = CircuitClosed
		c.lastStateChange = time.Now()
		c.halfOpenRequests = 0
	}
	c.consecutiveErrors = 0
}

// RecordFailure counts a transient failure and opens the circuit at the threshold.
func (cb *CircuitBreaker) RecordFailure(domain string, err error) {
	if cb == nil {
		return
	}
	if cb.config.IsTransientError != nil && !cb.config.IsTransientError(err) {
		return
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	c := cb.get(domain)
	c.consecutiveErrors++
	switch c.state {
	case CircuitClosed:
		if c.consecutiveErrors >= cb.config.FailureThreshold {
			c.state = CircuitOpen
			c.lastStateChange = time.Now()
		}
	case CircuitHalfOpen:
		c.state = CircuitOpen
		c.lastStateChange = time.Now()
	}
}

// State returns the current state of the circuit for a domain.
func (cb *CircuitBreaker) State(domain string) CircuitState {
	if cb == nil {
		return CircuitClosed
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	c, ok := cb.circuits[domain]
	if !ok {
		return CircuitClosed
	}
	if c.state == CircuitOpen && time.Since(c.lastStateChange) >= cb.config.RecoveryTimeout {
		return CircuitHalfOpen
	}
	return c.state
}

// Reset closes the circuit for a domain.
func (cb *CircuitBreaker) Reset(domain string) {
	if cb == nil {
		return
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()
	delete(cb.circuits, domain)
}

// get must be called with mu held.
func (cb *CircuitBreaker) get(domain string) *circuit {
	c, ok := cb.circuits[domain]
	if !ok {
		c = &circuit{state: CircuitClosed, lastStateChange: time.Now()}
		cb.circuits[domain] = c
	}
	return c
}

// IsTransientHTTPError reports whether err should count against a circuit.
// Client errors (4xx) are permanent and do not.
func IsTransientHTTPError(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var rateLimitErr *RateLimitError
	if errors.As(err, &rateLimitErr) {
		return true
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode >= 500
	}
	return true
}
