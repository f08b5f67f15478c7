package server

import (
	"errors"
	"sync"
	"time"
)

// ErrRateLimited rejects a subscription-churn message; the connection stays
// open and no subscription state changes.
var ErrRateLimited = errors.New("rate limit exceeded")

// -----------------------------------------------------------------------------
// RateLimiter
// -----------------------------------------------------------------------------

// RateLimiter applies a per-client fixed window to subscribe/unsubscribe
// churn.
type RateLimiter struct {
	maxRequests int
	window      time.Duration

	mu      sync.Mutex
	clients map[string]*windowState

	// now is swappable for tests.
	now func() time.Time
}

type windowState struct {
	start time.Time
	count int
}

// -----------------------------------------------------------------------------

func NewRateLimiter(maxRequests int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		maxRequests: maxRequests,
		window:      window,
		clients:     make(map[string]*windowState),
		now:         time.Now,
	}
}

// -----------------------------------------------------------------------------

// Allow consumes one request from the client's current window. Once the
// window rolls over the count starts fresh.
func (rl *RateLimiter) Allow(clientID string) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()

	state := rl.clients[clientID]
	if state == nil || now.Sub(state.start) >= rl.window {
		state = &windowState{start: now}
		rl.clients[clientID] = state
	}

	if state.count >= rl.maxRequests {
		return ErrRateLimited
	}

	state.count++
	return nil
}

// Forget drops the client's window state on disconnect.
func (rl *RateLimiter) Forget(clientID string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.clients, clientID)
}
