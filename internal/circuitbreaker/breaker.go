// Package circuitbreaker gates report publication when the aggregated data
// looks untrustworthy: too few providers contributing, or the total TVL
// swinging implausibly between runs. Aggregation and history recording are
// never gated; only the outbound report is held back.
package circuitbreaker

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// State represents the current state of the circuit breaker.
type State int

// Circuit breaker states.
const (
	StateClosed   State = iota // normal operation, reports flow
	StateOpen                  // tripped, publication suppressed
	StateHalfOpen              // probing whether data has recovered
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// RunSummary is the slice of one pipeline run the breaker judges.
type RunSummary struct {
	// HealthyProviders counts adapters that contributed at least one record.
	HealthyProviders int

	// TotalTVL is the run's USD TVL across category buckets.
	TotalTVL float64
}

// Thresholds defines the limits that trip the breaker.
type Thresholds struct {
	// MinProviders is the minimum number of contributing adapters for a
	// run to be publishable.
	MinProviders int

	// MaxTVLChange is the maximum relative change in total TVL between
	// consecutive runs, e.g. 0.5 for 50%.
	MaxTVLChange float64
}

// CircuitBreaker tracks data quality across runs.
type CircuitBreaker struct {
	thresholds Thresholds

	mu           sync.Mutex
	state        State
	lastTrip     time.Time
	lastTotalTVL float64
	successCount int

	resetDelay       time.Duration
	successThreshold int

	onTrip func(reason string)
}

// New creates a CircuitBreaker with the provided thresholds.
func New(t Thresholds) *CircuitBreaker {
	return &CircuitBreaker{
		thresholds:       t,
		state:            StateClosed,
		resetDelay:       30 * time.Minute,
		successThreshold: 2,
	}
}

// WithResetDelay sets how long the circuit stays open before probing.
func (cb *CircuitBreaker) WithResetDelay(delay time.Duration) *CircuitBreaker {
	cb.resetDelay = delay
	return cb
}

// WithTripCallback sets a callback invoked when the circuit trips.
func (cb *CircuitBreaker) WithTripCallback(callback func(reason string)) *CircuitBreaker {
	cb.onTrip = callback
	return cb
}

// Check evaluates a run against the thresholds. A nil return means the run
// is publishable. An error means publication should be skipped this run,
// either because the data tripped the circuit or because the circuit is
// still cooling down.
func (cb *CircuitBreaker) Check(run RunSummary) error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen {
		if time.Since(cb.lastTrip) < cb.resetDelay {
			return errors.New("circuit open: publication suppressed")
		}
		cb.state = StateHalfOpen
		cb.successCount = 0
		logrus.Info("Circuit breaker half-open, probing data quality")
	}

	if reason := cb.violation(run); reason != "" {
		cb.trip(reason)
		return fmt.Errorf("circuit tripped: %s", reason)
	}

	cb.lastTotalTVL = run.TotalTVL

	if cb.state == StateHalfOpen {
		cb.successCount++
		if cb.successCount < cb.successThreshold {
			return fmt.Errorf("circuit half-open: %d/%d healthy runs",
				cb.successCount, cb.successThreshold)
		}
		cb.state = StateClosed
		logrus.Info("Circuit breaker closed")
	}
	return nil
}

// violation returns a human-readable reason, or "" when the run is healthy.
func (cb *CircuitBreaker) violation(run RunSummary) string {
	if run.HealthyProviders < cb.thresholds.MinProviders {
		return fmt.Sprintf("only %d/%d providers contributed",
			run.HealthyProviders, cb.thresholds.MinProviders)
	}
	if cb.thresholds.MaxTVLChange > 0 && cb.lastTotalTVL > 0 && run.TotalTVL >= 0 {
		change := math.Abs(run.TotalTVL-cb.lastTotalTVL) / cb.lastTotalTVL
		if change > cb.thresholds.MaxTVLChange {
			return fmt.Sprintf("total TVL changed %.0f%% between runs", change*100)
		}
	}
	return ""
}

func (cb *CircuitBreaker) trip(reason string) {
	cb.state = StateOpen
	cb.lastTrip = time.Now()
	cb.successCount = 0
	logrus.WithField("reason", reason).Warn("Circuit breaker tripped")
	if cb.onTrip != nil {
		cb.onTrip(reason)
	}
}

// State returns the current state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}
