// Package resilience provides failure isolation for calls to the market data provider.
package resilience

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// CircuitState represents the state of a circuit breaker.
type CircuitState string

const (
	CircuitClosed   CircuitState = "CLOSED"    // Normal operation
	CircuitOpen     CircuitState = "OPEN"      // Failing, requests skipped
	CircuitHalfOpen CircuitState = "HALF_OPEN" // One trial request allowed through
)

// ErrCircuitOpen is returned when the circuit is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// BreakerConfig holds circuit breaker configuration.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures before opening the circuit
	FailureThreshold int
	// Cooldown is how long the circuit stays open before a trial request is allowed
	Cooldown time.Duration
}

// DefaultBreakerConfig returns the defaults used for provider endpoints.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 3,
		Cooldown:         30 * time.Second,
	}
}

// Breaker tracks the health of one provider endpoint. A fallback chain asks each
// endpoint's breaker before using it so that a dead proxy is skipped quickly.
type Breaker struct {
	name   string
	config BreakerConfig
	logger zerolog.Logger
	now    func() time.Time

	mu          sync.Mutex
	state       CircuitState
	failures    int
	openedAt    time.Time
	probing     bool
	totalTrips  int64
	lastFailure error
}

// NewBreaker creates a breaker for the named endpoint.
func NewBreaker(name string, config BreakerConfig, logger zerolog.Logger) *Breaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 1
	}
	return &Breaker{
		name:   name,
		config: config,
		logger: logger,
		now:    time.Now,
		state:  CircuitClosed,
	}
}

// Allow reports whether a request may be sent to the endpoint.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case CircuitOpen:
		if b.now().Sub(b.openedAt) < b.config.Cooldown {
			return ErrCircuitOpen
		}
		b.transitionTo(CircuitHalfOpen)
		b.probing = true
		return nil
	case CircuitHalfOpen:
		if b.probing {
			return ErrCircuitOpen
		}
		b.probing = true
	}
	return nil
}

// Success records a successful call.
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	b.probing = false
	if b.state != CircuitClosed {
		b.transitionTo(CircuitClosed)
	}
}

// Failure records a failed call.
func (b *Breaker) Failure(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastFailure = err
	b.probing = false
	switch b.state {
	case CircuitHalfOpen:
		b.trip()
	case CircuitClosed:
		b.failures++
		if b.failures >= b.config.FailureThreshold {
			b.trip()
		}
	}
}

func (b *Breaker) trip() {
	b.openedAt = b.now()
	b.totalTrips++
	b.transitionTo(CircuitOpen)
	b.logger.Warn().
		Str("endpoint", b.name).
		AnErr("last_error", b.lastFailure).
		Dur("cooldown", b.config.Cooldown).
		Msg("Endpoint circuit opened")
}

func (b *Breaker) transitionTo(state CircuitState) {
	if b.state != state {
		b.logger.Debug().Str("endpoint", b.name).Str("from", string(b.state)).Str("to", string(state)).Msg("Circuit state change")
	}
	b.state = state
	b.failures = 0
}

// State returns the current circuit state.
func (b *Breaker) State() CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Name returns the endpoint name.
func (b *Breaker) Name() string {
	return b.name
}

// Trips returns how many times the circuit has opened.
func (b *Breaker) Trips() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.totalTrips
}

// Reset closes the circuit.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = CircuitClosed
	b.failures = 0
	b.probing = false
}
