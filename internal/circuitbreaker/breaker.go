// Package circuitbreaker protects an outbound dependency with a
// closed, open, half-open circuit.
package circuitbreaker

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// State is the circuit position.
type State int

const (
	// StateClosed passes requests through.
	StateClosed State = iota
	// StateOpen rejects requests until the open window elapses.
	StateOpen
	// StateHalfOpen lets a single probe through.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	}
	return "unknown"
}

var stateTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "sentinelx",
	Subsystem: "circuitbreaker",
	Name:      "state_transitions_total",
	Help:      "Circuit breaker transitions by breaker name and states.",
}, []string{"name", "from_state", "to_state"})

func init() {
	prometheus.MustRegister(stateTransitions)
}

// Breaker tracks consecutive failures against one dependency. After
// threshold failures in a row it opens for openDuration, then admits a
// single probe; a successful probe closes it, a failed one re-opens it.
type Breaker struct {
	name         string
	threshold    int
	openDuration time.Duration

	mu          sync.Mutex
	state       State
	failures    int
	lastFailure time.Time
}

// New builds a breaker. name labels the transition metric. Non-positive
// knobs fall back to 5 failures and a 30 second open window.
func New(name string, threshold int, openDuration time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if openDuration <= 0 {
		openDuration = 30 * time.Second
	}
	return &Breaker{name: name, threshold: threshold, openDuration: openDuration}
}

// Allow reports whether a request may proceed. An open circuit whose
// window has elapsed moves to half-open and admits the caller as the
// probe.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if time.Since(b.lastFailure) < b.openDuration {
			return false
		}
		b.transition(StateHalfOpen)
		return true
	case StateHalfOpen:
		// A probe is already in flight.
		return false
	default:
		return true
	}
}

// RecordSuccess clears the failure streak and closes a half-open
// circuit.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	if b.state == StateHalfOpen {
		b.transition(StateClosed)
	}
}

// RecordFailure extends the failure streak, tripping the circuit at the
// threshold. A failed probe re-opens immediately.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.lastFailure = time.Now()

	if b.state == StateHalfOpen || (b.state == StateClosed && b.failures >= b.threshold) {
		b.transition(StateOpen)
	}
}

// State returns the current circuit position.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) transition(to State) {
	if b.state == to {
		return
	}
	stateTransitions.WithLabelValues(b.name, b.state.String(), to.String()).Inc()
	b.state = to
}
