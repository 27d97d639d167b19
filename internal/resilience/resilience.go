// Package resilience keeps the decision pipeline available under failure: a
// process-wide circuit breaker gates entry, a wall-clock budget bounds each
// attempt, and a deterministic fallback policy produces a safe strategy from
// the last persisted state whenever the primary path cannot.
package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/Heartcoolman/vocabulary-learning-app-sub009/internal/strategy"
)

// #region reasons

// FailureReason classifies why the primary decision path was skipped or
// abandoned.
type FailureReason string

const (
	ReasonCircuitOpen   FailureReason = "circuit_open"
	ReasonException     FailureReason = "exception"
	ReasonDegradedState FailureReason = "degraded_state"
	ReasonTimeout       FailureReason = "timeout"
)

// #endregion

// #region circuit-breaker

// Status is the breaker state.
type Status string

const (
	StatusClosed   Status = "closed"
	StatusOpen     Status = "open"
	StatusHalfOpen Status = "half-open"
)

// BreakerConfig parameterizes the circuit breaker.
type BreakerConfig struct {
	FailureThreshold int           // consecutive failures before opening (default 5)
	ResetTimeout     time.Duration // open duration before a half-open trial (default 30s)
	HalfOpenMax      int           // concurrent trial calls allowed half-open (default 1)

	Now func() time.Time // injectable clock for tests; nil means time.Now
}

func (c BreakerConfig) withDefaults() BreakerConfig {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	if c.ResetTimeout <= 0 {
		c.ResetTimeout = 30 * time.Second
	}
	if c.HalfOpenMax <= 0 {
		c.HalfOpenMax = 1
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// CircuitBreaker is the process-wide failure gate. Construct one and inject
// it; it is safe for concurrent use.
type CircuitBreaker struct {
	cfg BreakerConfig

	mu           sync.Mutex
	status       Status
	failures     int
	lastFailure  time.Time
	halfOpenUsed int
}

// NewCircuitBreaker creates a closed breaker.
func NewCircuitBreaker(cfg BreakerConfig) *CircuitBreaker {
	return &CircuitBreaker{cfg: cfg.withDefaults(), status: StatusClosed}
}

// Status returns the current breaker state, advancing open to half-open when
// the reset timeout has elapsed.
func (b *CircuitBreaker) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.advanceLocked()
	return b.status
}

// CanExecute reports whether a caller may enter the primary path. In the
// half-open state only HalfOpenMax trial calls pass until a success or
// failure resolves the trial.
func (b *CircuitBreaker) CanExecute() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.advanceLocked()

	switch b.status {
	case StatusClosed:
		return true
	case StatusHalfOpen:
		if b.halfOpenUsed < b.cfg.HalfOpenMax {
			b.halfOpenUsed++
			return true
		}
		return false
	default:
		return false
	}
}

// RecordSuccess closes the breaker and clears the failure streak.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.status = StatusClosed
	b.failures = 0
	b.halfOpenUsed = 0
}

// RecordFailure notes one failed attempt. A half-open trial failure reopens
// immediately; a closed breaker opens once the consecutive-failure streak
// reaches the threshold.
func (b *CircuitBreaker) RecordFailure(reason FailureReason) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_ = reason // classification is the caller's concern; the gate only counts

	b.failures++
	b.lastFailure = b.cfg.Now()
	if b.status == StatusHalfOpen || b.failures >= b.cfg.FailureThreshold {
		b.status = StatusOpen
		b.halfOpenUsed = 0
	}
}

// advanceLocked moves open to half-open once the reset timeout has elapsed.
func (b *CircuitBreaker) advanceLocked() {
	if b.status == StatusOpen && b.cfg.Now().Sub(b.lastFailure) >= b.cfg.ResetTimeout {
		b.status = StatusHalfOpen
		b.halfOpenUsed = 0
	}
}

// #endregion

// #region runner

// Do runs primary under the breaker gate and a hard wall-clock budget. When
// the gate is open, the attempt errors, or the budget expires, the fallback
// result is returned instead; the caller always receives a usable T. On
// timeout the in-flight attempt is cancelled best-effort and abandoned.
func Do[T any](ctx context.Context, cb *CircuitBreaker, budget time.Duration, primary func(context.Context) (T, error), fallback func(FailureReason) T) T {
	if cb != nil && !cb.CanExecute() {
		return fallback(ReasonCircuitOpen)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	type outcome struct {
		value T
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		v, err := primary(attemptCtx)
		done <- outcome{value: v, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			if cb != nil {
				cb.RecordFailure(ReasonException)
			}
			return fallback(ReasonException)
		}
		if cb != nil {
			cb.RecordSuccess()
		}
		return out.value
	case <-attemptCtx.Done():
		if cb != nil {
			cb.RecordFailure(ReasonTimeout)
		}
		return fallback(ReasonTimeout)
	}
}

// #endregion

// #region fallback-policy

// FallbackAction computes a safe default strategy from the failure reason and
// the user's last persisted state. Deterministic and cheap: it never touches
// the learning stack.
func FallbackAction(reason FailureReason, lastState strategy.UserState) strategy.Params {
	p := strategy.DefaultParams()

	// Degraded paths always shrink exposure to new material.
	p.NewRatio = 0.1
	p.IntervalScale = 1.0

	if lastState.Fatigue > 0.6 || reason == ReasonDegradedState {
		p.Difficulty = strategy.DifficultyEasy
		p.BatchSize = 5
		p.HintLevel = 2
	} else if lastState.Attention > 0.7 && lastState.Fatigue < 0.3 {
		p.Difficulty = strategy.DifficultyMid
		p.BatchSize = 8
	} else {
		p.Difficulty = strategy.DifficultyEasy
		p.BatchSize = 8
	}

	return strategy.SnapParams(p)
}

// #endregion
