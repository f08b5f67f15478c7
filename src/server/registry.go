package server

import (
	"errors"
	"sync"
	"time"
)

// GlobalFeed is the pseudo-symbol for the full-snapshot feed.
const GlobalFeed = "*"

// ErrTooManySymbols rejects a subscribe that would push a client past the
// per-client symbol cap.
var ErrTooManySymbols = errors.New("too many subscribed symbols")

// -----------------------------------------------------------------------------
// UpstreamHooks
// -----------------------------------------------------------------------------

// UpstreamHooks fire on system-wide interest transitions: Subscribe on 0->1,
// Unsubscribe on 1->0. Either may be nil.
type UpstreamHooks struct {
	Subscribe   func(symbol string)
	Unsubscribe func(symbol string)
}

// -----------------------------------------------------------------------------
// Registry
// -----------------------------------------------------------------------------

// Registry tracks which clients want which symbols, ref-counted at two
// levels: per client (local watchers) and system-wide (upstream interest).
type Registry struct {
	maxSymbols int
	hooks      UpstreamHooks

	mu      sync.Mutex
	clients map[string]*subscription
	global  map[string]int // symbol -> count of interested clients

	// now is swappable for tests.
	now func() time.Time
}

type subscription struct {
	refs         map[string]int // symbol -> local ref-count
	connectedAt  time.Time
	lastActivity time.Time
}

// -----------------------------------------------------------------------------

func NewRegistry(maxSymbols int, hooks UpstreamHooks) *Registry {
	return &Registry{
		maxSymbols: maxSymbols,
		hooks:      hooks,
		clients:    make(map[string]*subscription),
		global:     make(map[string]int),
		now:        time.Now,
	}
}

// -----------------------------------------------------------------------------

// Subscribe increments the client's ref-count for each symbol. A 0->1 local
// transition registers interest; the first interested client system-wide
// triggers the upstream subscribe hook. Exceeding the symbol cap rejects the
// whole call without mutating any state.
func (r *Registry) Subscribe(clientID string, symbols []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub := r.clients[clientID]
	if sub == nil {
		sub = &subscription{
			refs:        make(map[string]int),
			connectedAt: r.now(),
		}
		r.clients[clientID] = sub
	}

	// Cap check first so a rejected call leaves nothing behind.
	distinct := len(sub.refs)
	for _, sym := range symbols {
		if sym == GlobalFeed {
			continue
		}
		if _, ok := sub.refs[sym]; !ok {
			distinct++
		}
	}
	if distinct > r.maxSymbols {
		return ErrTooManySymbols
	}

	sub.lastActivity = r.now()

	for _, sym := range symbols {
		sub.refs[sym]++
		if sub.refs[sym] == 1 {
			r.global[sym]++
			if r.global[sym] == 1 && sym != GlobalFeed && r.hooks.Subscribe != nil {
				r.hooks.Subscribe(sym)
			}
		}
	}

	return nil
}

// -----------------------------------------------------------------------------

// Unsubscribe mirrors Subscribe: local 1->0 removes interest, system-wide
// 1->0 triggers the upstream unsubscribe hook.
func (r *Registry) Unsubscribe(clientID string, symbols []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub := r.clients[clientID]
	if sub == nil {
		return
	}
	sub.lastActivity = r.now()

	for _, sym := range symbols {
		r.releaseLocked(sub, sym)
	}
}

// releaseLocked drops one local reference; assumes r.mu is held.
func (r *Registry) releaseLocked(sub *subscription, symbol string) {
	count, ok := sub.refs[symbol]
	if !ok {
		return
	}

	if count > 1 {
		sub.refs[symbol] = count - 1
		return
	}

	delete(sub.refs, symbol)
	r.global[symbol]--
	if r.global[symbol] <= 0 {
		delete(r.global, symbol)
		if symbol != GlobalFeed && r.hooks.Unsubscribe != nil {
			r.hooks.Unsubscribe(symbol)
		}
	}
}

// -----------------------------------------------------------------------------

// Disconnect releases every symbol the client holds and drops its record.
func (r *Registry) Disconnect(clientID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub := r.clients[clientID]
	if sub == nil {
		return
	}

	for sym := range sub.refs {
		// Drop the symbol outright regardless of its local ref-count.
		sub.refs[sym] = 1
		r.releaseLocked(sub, sym)
	}

	delete(r.clients, clientID)
}

// -----------------------------------------------------------------------------

// IsSubscribed reports whether the client currently holds symbol.
func (r *Registry) IsSubscribed(clientID, symbol string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub := r.clients[clientID]
	if sub == nil {
		return false
	}
	return sub.refs[symbol] > 0
}

// SymbolCount returns how many distinct symbols the client holds.
func (r *Registry) SymbolCount(clientID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub := r.clients[clientID]
	if sub == nil {
		return 0
	}
	return len(sub.refs)
}

// InterestedCount returns the system-wide interest count for symbol.
func (r *Registry) InterestedCount(symbol string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.global[symbol]
}
