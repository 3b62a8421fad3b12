package transport

import (
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/sunbankio/convertapi-go/logging"
)

// ErrCircuitOpen is returned without contacting the service while the breaker is open
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitState represents the state of the circuit breaker
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (cs CircuitState) String() string {
	switch cs {
	case CircuitClosed:
		return "Closed"
	case CircuitOpen:
		return "Open"
	case CircuitHalfOpen:
		return "HalfOpen"
	default:
		return "Unknown"
	}
}

// CircuitBreaker stops calling the service after consecutive failures and lets
// a single probe through once resetTimeout has passed.
type CircuitBreaker struct {
	mu              sync.Mutex
	maxFailures     int
	resetTimeout    time.Duration
	state           CircuitState
	failureCount    int
	probing         bool
	lastFailureTime time.Time
	logger          *logging.Logger
	now             func() time.Time
}

// NewCircuitBreaker creates a closed circuit breaker
func NewCircuitBreaker(maxFailures int, resetTimeout time.Duration, logger *logging.Logger) *CircuitBreaker {
	if logger == nil {
		logger = logging.NewDiscardLogger()
	}
	return &CircuitBreaker{
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
		state:        CircuitClosed,
		logger:       logger,
		now:          time.Now,
	}
}

// allow reserves a call, moving an expired open circuit to half-open
func (cb *CircuitBreaker) allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitOpen:
		if cb.now().Sub(cb.lastFailureTime) < cb.resetTimeout {
			return ErrCircuitOpen
		}
		cb.state = CircuitHalfOpen
		cb.logger.DebugLog("Circuit breaker transitioning to half-open state")
		fallthrough
	case CircuitHalfOpen:
		if cb.probing {
			return ErrCircuitOpen
		}
		cb.probing = true
	}
	return nil
}

// onSuccess closes a half-open circuit and clears the failure streak
func (cb *CircuitBreaker) onSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == CircuitHalfOpen {
		cb.logger.Info("Circuit breaker closed after successful probe")
	}
	cb.state = CircuitClosed
	cb.failureCount = 0
	cb.probing = false
}

// onFailure records a failed call
func (cb *CircuitBreaker) onFailure(reason string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failureCount++
	cb.lastFailureTime = cb.now()
	cb.probing = false

	switch cb.state {
	case CircuitClosed:
		if cb.failureCount >= cb.maxFailures {
			cb.state = CircuitOpen
			cb.logger.WarningLog("Circuit breaker opened due to %d failures. Last error: %s", cb.failureCount, reason)
		}
	case CircuitHalfOpen:
		cb.state = CircuitOpen
		cb.logger.WarningLog("Circuit breaker opened from half-open state due to failure: %s", reason)
	}
}

// release gives back a reservation whose outcome says nothing about the service
func (cb *CircuitBreaker) release() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.probing = false
}

// State returns the current state
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// RetryPolicy is exponential backoff with jitter for idempotent requests
type RetryPolicy struct {
	MaxRetries    int
	BaseDelay     time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultRetryPolicy returns a policy with the given retry count
func DefaultRetryPolicy(maxRetries int) RetryPolicy {
	return RetryPolicy{
		MaxRetries:    maxRetries,
		BaseDelay:     200 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2.0,
	}
}

// delay returns the wait before the given retry attempt (1-based), with ±10% jitter
func (p RetryPolicy) delay(attempt int) time.Duration {
	d := float64(p.BaseDelay)
	for i := 1; i < attempt; i++ {
		d *= p.BackoffFactor
	}
	if d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	d += d * 0.1 * (2*rand.Float64() - 1)
	return time.Duration(d)
}
