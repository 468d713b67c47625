package client

import (
	"errors"
	"sync"
	"time"
)

// ErrGaveUp is returned once the reconnect budget is exhausted.
var ErrGaveUp = errors.New("reconnect attempts exhausted")

// State represents the reconnect loop state.
type State int

const (
	StateConnected State = iota
	StateBackoff
	StateGaveUp
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateBackoff:
		return "backoff"
	case StateGaveUp:
		return "gave-up"
	default:
		return "unknown"
	}
}

// Settings configures the reconnect behavior.
type Settings struct {
	// Step is added to the delay for each consecutive failure.
	Step time.Duration
	// Max caps the delay regardless of the failure count.
	Max time.Duration
	// MaxAttempts is the number of consecutive failures tolerated
	// before the backoff gives up.
	MaxAttempts int
	// OnStateChange is called whenever the state changes.
	OnStateChange func(from State, to State)
}

// Backoff is the reconnect delay state machine. The delay grows by a
// fixed step per consecutive failure and is capped at a maximum; after
// MaxAttempts consecutive failures it transitions to GaveUp and stays
// there until Reset.
type Backoff struct {
	settings Settings

	mu       sync.Mutex
	state    State
	failures int
}

// NewBackoff creates a backoff with the given settings.
func NewBackoff(settings Settings) *Backoff {
	if settings.Step == 0 {
		settings.Step = time.Second
	}
	if settings.Max == 0 {
		settings.Max = 30 * time.Second
	}
	if settings.MaxAttempts == 0 {
		settings.MaxAttempts = 10
	}

	return &Backoff{settings: settings, state: StateConnected}
}

// State returns the current state.
func (b *Backoff) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Failures returns the consecutive failure count.
func (b *Backoff) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

// Next records a failure and returns the delay to wait before the next
// attempt. ok is false once the attempt budget is exhausted; the caller
// must stop retrying.
func (b *Backoff) Next() (delay time.Duration, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateGaveUp {
		return 0, false
	}

	b.failures++
	if b.failures > b.settings.MaxAttempts {
		b.setState(StateGaveUp)
		return 0, false
	}

	b.setState(StateBackoff)
	delay = time.Duration(b.failures) * b.settings.Step
	if delay > b.settings.Max {
		delay = b.settings.Max
	}
	return delay, true
}

// Reset records a successful connection, clearing the failure count.
// It has no effect once the backoff has given up.
func (b *Backoff) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateGaveUp {
		return
	}
	b.failures = 0
	b.setState(StateConnected)
}

func (b *Backoff) setState(state State) {
	if b.state == state {
		return
	}
	prev := b.state
	b.state = state
	if b.settings.OnStateChange != nil {
		b.settings.OnStateChange(prev, state)
	}
}
