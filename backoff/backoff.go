// Package backoff provides pluggable delay strategies for polling an
// environment's status, used by the Wait helpers. All strategies are
// safe for concurrent use (they are stateless).
package backoff

import (
	"math"
	"math/rand/v2"
	"time"
)

// Strategy computes the delay before poll number n (1-indexed).
type Strategy interface {
	// Delay returns how long to wait before poll n. Poll 1 is the
	// first re-check after the initial status query.
	Delay(poll int) time.Duration
}

// Constant always returns the same delay regardless of poll number.
type Constant struct {
	Interval time.Duration
}

// NewConstant creates a constant delay strategy.
func NewConstant(interval time.Duration) *Constant {
	return &Constant{Interval: interval}
}

// Delay returns the fixed interval.
func (c *Constant) Delay(_ int) time.Duration {
	return c.Interval
}

// Linear increases the delay linearly with the poll number.
// Delay = min(Initial * poll, Max).
type Linear struct {
	Initial time.Duration
	Max     time.Duration
}

// NewLinear creates a linear delay strategy.
func NewLinear(initial, maxDelay time.Duration) *Linear {
	return &Linear{Initial: initial, Max: maxDelay}
}

// Delay returns Initial * poll, capped at Max.
func (l *Linear) Delay(poll int) time.Duration {
	d := l.Initial * time.Duration(poll)
	if l.Max > 0 && d > l.Max {
		return l.Max
	}
	return d
}

// Exponential doubles the delay each poll.
// Delay = min(Initial * 2^(poll-1), Max).
type Exponential struct {
	Initial time.Duration
	Max     time.Duration
}

// NewExponential creates an exponential delay strategy.
func NewExponential(initial, maxDelay time.Duration) *Exponential {
	return &Exponential{Initial: initial, Max: maxDelay}
}

// Delay returns Initial * 2^(poll-1), capped at Max.
func (e *Exponential) Delay(poll int) time.Duration {
	d := time.Duration(float64(e.Initial) * math.Pow(2, float64(poll-1)))
	if e.Max > 0 && d > e.Max {
		return e.Max
	}
	return d
}

// ExponentialWithJitter applies full jitter to an exponential base.
// Delay = random value in [0, min(Initial * 2^(poll-1), Max)].
// Spreads load when many processes poll the same scheduler.
type ExponentialWithJitter struct {
	Initial time.Duration
	Max     time.Duration
}

// NewExponentialWithJitter creates an exponential delay with full jitter.
func NewExponentialWithJitter(initial, maxDelay time.Duration) *ExponentialWithJitter {
	return &ExponentialWithJitter{Initial: initial, Max: maxDelay}
}

// Delay returns a random duration in [0, min(Initial * 2^(poll-1), Max)].
func (e *ExponentialWithJitter) Delay(poll int) time.Duration {
	base := float64(e.Initial) * math.Pow(2, float64(poll-1))
	if e.Max > 0 && base > float64(e.Max) {
		base = float64(e.Max)
	}
	return time.Duration(rand.Float64() * base) //nolint:gosec // jitter intentionally uses non-crypto rand
}

// DefaultStrategy returns the default poll delay used by the Wait
// helpers: Exponential with 5s initial and 2m max. Queue listings are
// cheap but chatty polling of a shared scheduler is rude.
func DefaultStrategy() Strategy {
	return NewExponential(5*time.Second, 2*time.Minute)
}
