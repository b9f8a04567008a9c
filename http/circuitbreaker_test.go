package http

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 3, RecoveryTimeout: time.Hour})
	domain := "www.youtube.com"

	for i := 0; i < 2; i++ {
		cb.RecordFailure(domain, errors.New("boom"))
		if cb.State(domain) != CircuitClosed {
			t.Fatalf("circuit opened after %d failures", i+1)
		}
	}
	cb.RecordFailure(domain, errors.New("boom"))

	if cb.State(domain) != CircuitOpen {
		t.Fatalf("State() = %v, want open", cb.State(domain))
	}
	if err := cb.Allow(domain); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Allow() = %v, want ErrCircuitOpen", err)
	}
	if err := cb.Allow("api.openai.com"); err != nil {
		t.Errorf("other domain blocked: %v", err)
	}
}

func TestCircuitBreakerHalfOpenRecovery(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1, RecoveryTimeout: 10 * time.Millisecond})
	domain := "www.youtube.com"

	cb.RecordFailure(domain, errors.New("boom"))
	time.Sleep(20 * time.Millisecond)

	if err := cb.Allow(domain); err != nil {
		t.Fatalf("probe rejected: %v", err)
	}
	if err := cb.Allow(domain); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("second probe = %v, want ErrCircuitOpen", err)
	}

	cb.RecordSuccess(domain)
	if cb.State(domain) != CircuitClosed {
		t.Errorf("State() = %v, want closed", cb.State(domain))
	}
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1, RecoveryTimeout: 10 * time.Millisecond})
	domain := "www.youtube.com"

	cb.RecordFailure(domain, errors.New("boom"))
	time.Sleep(20 * time.Millisecond)
	cb.Allow(domain)
	cb.RecordFailure(domain, errors.New("boom again"))

	if err := cb.Allow(domain); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Allow() = %v, want ErrCircuitOpen", err)
	}
}

func TestCircuitBreakerIgnoresPermanentErrors(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1, IsTransientError: IsTransientHTTPError})
	domain := "www.youtube.com"

	cb.RecordFailure(domain, &HTTPError{StatusCode: 404})
	if cb.State(domain) != CircuitClosed {
		t.Errorf("404 opened the circuit")
	}
	cb.RecordFailure(domain, &HTTPError{StatusCode: 502})
	if cb.State(domain) != CircuitOpen {
		t.Errorf("502 did not open the circuit")
	}
}

func TestCircuitBreakerNilSafety(t *testing.T) {
	var cb *CircuitBreaker
	if err := cb.Allow("x"); err != nil {
		t.Errorf("nil Allow() = %v", err)
	}
	cb.RecordFailure("x", errors.New("boom"))
	cb.RecordSuccess("x")
	cb.Reset("x")
	if cb.State("x") != CircuitClosed {
		t.Error("nil State() should be closed")
	}
}

func TestIsTransientHTTPError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"canceled", context.Canceled, false},
		{"rate limited", &RateLimitError{StatusCode: 429}, true},
		{"server error", &HTTPError{StatusCode: 503}, true},
		{"forbidden", &HTTPError{StatusCode: 403}, false},
		{"network", errors.New("connection reset"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransientHTTPError(tt.err); got != tt.want {
				t.Errorf("IsTransientHTTPError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestCircuitStateString(t *testing.T) {
	if CircuitHalfOpen.String() != "half-open" || CircuitState(9).String() != "unknown" {
		t.Error("unexpected state names")
	}
}
