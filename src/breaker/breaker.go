package breaker

import (
	"errors"
	"sync"
	"time"
)

// -----------------------------------------------------------------------------
// States
// -----------------------------------------------------------------------------

// State is the breaker position.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

// ErrCircuitOpen is returned when the breaker fails fast without invoking
// the wrapped operation.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// -----------------------------------------------------------------------------
// Options
// -----------------------------------------------------------------------------

// Options configures the breaker thresholds and observers.
type Options struct {
	FailureThreshold int
	ResetTimeout     time.Duration
	SuccessThreshold int

	// ShouldTrip classifies errors; only errors it accepts count toward the
	// failure threshold. When nil every error counts.
	ShouldTrip func(err error) bool

	// OnStateChange is invoked on every transition, for telemetry only.
	OnStateChange func(from, to State)

	// now is swappable for tests.
	now func() time.Time
}

// DefaultOptions returns the standard breaker thresholds.
func DefaultOptions() Options {
	return Options{
		FailureThreshold: 5,
		ResetTimeout:     60 * time.Second,
		SuccessThreshold: 2,
	}
}

// -----------------------------------------------------------------------------
// Breaker
// -----------------------------------------------------------------------------

// Breaker is a failure-isolation state machine guarding one downstream call.
type Breaker struct {
	mu              sync.Mutex
	opts            Options
	state           State
	failureCount    int
	successCount    int
	lastFailureTime time.Time
}

// New creates a closed Breaker.
func New(opts Options) *Breaker {
	if opts.FailureThreshold <= 0 {
		opts.FailureThreshold = 5
	}
	if opts.SuccessThreshold <= 0 {
		opts.SuccessThreshold = 2
	}
	if opts.ResetTimeout <= 0 {
		opts.ResetTimeout = 60 * time.Second
	}
	if opts.now == nil {
		opts.now = time.Now
	}

	return &Breaker{
		opts:  opts,
		state: StateClosed,
	}
}

// -----------------------------------------------------------------------------

// Execute runs op subject to the breaker. While open and inside the reset
// window it fails immediately with ErrCircuitOpen and op is never invoked.
// Once the window elapses exactly one probe call is let through half-open.
func (b *Breaker) Execute(op func() error) error {
	b.mu.Lock()

	if b.state == StateOpen {
		if b.opts.now().Sub(b.lastFailureTime) < b.opts.ResetTimeout {
			b.mu.Unlock()
			return ErrCircuitOpen
		}
		b.transition(StateHalfOpen)
	}
	b.mu.Unlock()

	err := op()

	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil {
		if b.opts.ShouldTrip == nil || b.opts.ShouldTrip(err) {
			b.onFailure()
		}
		return err
	}

	b.onSuccess()
	return nil
}

// -----------------------------------------------------------------------------

// onSuccess assumes b.mu is held.
func (b *Breaker) onSuccess() {
	switch b.state {
	case StateHalfOpen:
		b.successCount++
		if b.successCount >= b.opts.SuccessThreshold {
			b.transition(StateClosed)
		}
	case StateClosed:
		b.failureCount = 0
	}
}

// onFailure assumes b.mu is held.
func (b *Breaker) onFailure() {
	b.lastFailureTime = b.opts.now()

	switch b.state {
	case StateHalfOpen:
		// A failing probe reopens immediately.
		b.transition(StateOpen)
	case StateClosed:
		b.failureCount++
		if b.failureCount >= b.opts.FailureThreshold {
			b.transition(StateOpen)
		}
	}
}

// transition assumes b.mu is held.
func (b *Breaker) transition(to State) {
	from := b.state
	if from == to {
		return
	}

	b.state = to
	b.failureCount = 0
	b.successCount = 0

	if b.opts.OnStateChange != nil {
		b.opts.OnStateChange(from, to)
	}
}

// -----------------------------------------------------------------------------

// State returns the current breaker position.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
