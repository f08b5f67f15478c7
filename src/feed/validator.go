package feed

import (
	"fmt"
	"sync"
	"time"

	"marketfeed/src/models"
)

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

// ValidationError reports a rejected tick together with its reason.
type ValidationError struct {
	Reason models.RejectReason
	Tick   models.MTick
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("tick rejected (%s): %s @ %.4f", e.Reason, e.Tick.Symbol, e.Tick.Last)
}

// -----------------------------------------------------------------------------
// Validator
// -----------------------------------------------------------------------------

// Validator rejects stale, future, wide-spread and duplicate ticks. It keeps
// the last accepted tick per symbol for duplicate detection.
type Validator struct {
	cfg  models.MValidationConfig
	mu   sync.Mutex
	last map[string]accepted

	// now is swappable for tests.
	now func() time.Time
}

type accepted struct {
	price      float64
	acceptedAt time.Time
}

func NewValidator(cfg models.MValidationConfig) *Validator {
	return &Validator{
		cfg:  cfg,
		last: make(map[string]accepted),
		now:  time.Now,
	}
}

// -----------------------------------------------------------------------------

// Validate checks tick against the configured windows. Reasons are evaluated
// in order: stale, future, wide_spread, duplicate; the first match wins and
// a reject leaves the per-symbol state untouched. On accept the last-accepted
// state for the symbol is updated.
func (v *Validator) Validate(tick models.MTick) error {
	now := v.now()
	ts := tick.Time()

	if now.Sub(ts) > v.cfg.MaxTickAge() {
		return &ValidationError{Reason: models.RejectStale, Tick: tick}
	}
	if ts.Sub(now) > v.cfg.MaxFutureTick() {
		return &ValidationError{Reason: models.RejectFuture, Tick: tick}
	}
	if tick.Spread() > v.cfg.MaxSpreadPercent {
		return &ValidationError{Reason: models.RejectWideSpread, Tick: tick}
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	prev, ok := v.last[tick.Symbol]
	if ok && prev.price == tick.Last && now.Sub(prev.acceptedAt) <= v.cfg.DuplicateTolerance() {
		return &ValidationError{Reason: models.RejectDuplicate, Tick: tick}
	}

	v.last[tick.Symbol] = accepted{price: tick.Last, acceptedAt: now}
	return nil
}
