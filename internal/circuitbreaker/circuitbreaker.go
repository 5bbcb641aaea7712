// Package circuitbreaker wraps sony/gobreaker with defaults tuned for
// flaky external collaborators (RPC nodes, quote APIs).
package circuitbreaker

import (
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/dexarb/solarb/internal/apperror"
)

// Config mirrors the gobreaker settings this project tunes.
type Config struct {
	Name                string
	MaxHalfOpenRequests uint32
	CountingWindow      time.Duration
	OpenTimeout         time.Duration
	FailureThreshold    uint32
	OnStateChange       func(name string, from, to gobreaker.State)
}

// DefaultConfig trips after 5 consecutive failures and probes again
// after 30 seconds.
func DefaultConfig(name string) Config {
	return Config{
		Name:                name,
		MaxHalfOpenRequests: 1,
		CountingWindow:      60 * time.Second,
		OpenTimeout:         30 * time.Second,
		FailureThreshold:    5,
	}
}

// CircuitBreaker is a typed wrapper over gobreaker.
type CircuitBreaker[T any] struct {
	cb *gobreaker.CircuitBreaker[T]
}

func New[T any](cfg Config) *CircuitBreaker[T] {
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxHalfOpenRequests,
		Interval:    cfg.CountingWindow,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: cfg.OnStateChange,
	}

	return &CircuitBreaker[T]{cb: gobreaker.NewCircuitBreaker[T](settings)}
}

// Execute runs fn through the breaker. When the breaker is open the
// returned error carries CodeCircuitOpen so callers can distinguish
// shed load from real failures.
func (c *CircuitBreaker[T]) Execute(fn func() (T, error)) (T, error) {
	result, err := c.cb.Execute(fn)
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return result, apperror.New(apperror.CodeCircuitOpen,
			apperror.WithContext(c.cb.Name()),
			apperror.WithCause(err),
		)
	}
	return result, err
}

// State reports the current breaker state.
func (c *CircuitBreaker[T]) State() gobreaker.State {
	return c.cb.State()
}

// Name returns the breaker name.
func (c *CircuitBreaker[T]) Name() string {
	return c.cb.Name()
}
