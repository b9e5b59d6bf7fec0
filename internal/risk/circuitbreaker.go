package risk

import (
	"sync"
	"time"

	"github.com/aristath/spotengine/internal/domain"
)

// CircuitBreaker trips closed -> open after max_failures consecutive
// failures and stays open until reset_after_s has elapsed since the last
// failure, when CanTrade moves it to half_open. While half_open, CanTrade
// returns true on every call; the number of attempts made while half_open
// is not limited. The next RecordSuccess closes the breaker and the next
// RecordFailure reopens it (spec.md §3, §4.14).
type CircuitBreaker struct {
	mu                 sync.Mutex
	maxFailures        int
	resetAfter         time.Duration
	state              domain.CircuitState
	consecutiveFailures int
	lastFailureTime    time.Time
}

// NewCircuitBreaker constructs a closed CircuitBreaker.
func NewCircuitBreaker(maxFailures int, resetAfter time.Duration) *CircuitBreaker {
	return &CircuitBreaker{maxFailures: maxFailures, resetAfter: resetAfter, state: domain.CircuitClosed}
}

// RecordFailure increments the consecutive-failure count and trips the
// breaker open once max_failures is reached.
func (cb *CircuitBreaker) RecordFailure(now time.Time) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.consecutiveFailures++
	cb.lastFailureTime = now
	if cb.consecutiveFailures >= cb.maxFailures {
		cb.state = domain.CircuitOpen
	}
}

// RecordSuccess resets the failure count and, from half_open, closes the
// breaker.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.consecutiveFailures = 0
	if cb.state == domain.CircuitHalfOpen {
		cb.state = domain.CircuitClosed
	}
}

// CanTrade reports whether a new order attempt is allowed right now,
// advancing open -> half_open once reset_after_s has elapsed (spec.md
// §4.14 "returns false while open until reset_after_s elapsed, then
// transitions to half_open").
func (cb *CircuitBreaker) CanTrade(now time.Time) bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	switch cb.state {
	case domain.CircuitClosed:
		return true
	case domain.CircuitHalfOpen:
		return true
	case domain.CircuitOpen:
		if now.Sub(cb.lastFailureTime) >= cb.resetAfter {
			cb.state = domain.CircuitHalfOpen
			return true
		}
		return false
	default:
		return false
	}
}

// State returns the current circuit state, for BotState/UI.
func (cb *CircuitBreaker) State() domain.CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// ConsecutiveFailures returns the current streak length.
func (cb *CircuitBreaker) ConsecutiveFailures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.consecutiveFailures
}
