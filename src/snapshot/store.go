package snapshot

import (
	"sync"
	"time"

	"marketfeed/src/interfaces"
	"marketfeed/src/logger"
	"marketfeed/src/models"
	"marketfeed/src/utils"
)

// -----------------------------------------------------------------------------
// Store
// -----------------------------------------------------------------------------

// Store holds the latest per-symbol state plus a bounded tick history per
// symbol. It is the cache the HTTP surface serves while the upstream is
// unhealthy.
type Store struct {
	cfg models.MSnapshotConfig
	db  interfaces.IDatabase
	log *logger.Logger

	mu      sync.RWMutex
	latest  map[string]models.MSymbolState
	history map[string]*utils.RingBuffer

	// sessionOpen is the first accepted price per symbol, the reference for
	// change_percent.
	sessionOpen map[string]float64
}

// -----------------------------------------------------------------------------

func NewStore(cfg models.MSnapshotConfig, db interfaces.IDatabase, log *logger.Logger) *Store {
	return &Store{
		cfg:         cfg,
		db:          db,
		log:         log,
		latest:      make(map[string]models.MSymbolState),
		history:     make(map[string]*utils.RingBuffer),
		sessionOpen: make(map[string]float64),
	}
}

// -----------------------------------------------------------------------------

// Update folds one accepted tick into the latest state and history.
func (s *Store) Update(tick models.MTick) {
	s.mu.Lock()
	defer s.mu.Unlock()

	open, ok := s.sessionOpen[tick.Symbol]
	if !ok {
		open = tick.Last
		s.sessionOpen[tick.Symbol] = open
	}

	change := 0.0
	if open != 0 {
		change = (tick.Last - open) / open * 100
	}

	s.latest[tick.Symbol] = models.MSymbolState{
		Symbol:        tick.Symbol,
		Last:          tick.Last,
		Bid:           tick.Bid,
		Ask:           tick.Ask,
		ChangePercent: change,
		Volume:        tick.Volume,
		Timestamp:     tick.Timestamp,
	}

	ring, ok := s.history[tick.Symbol]
	if !ok {
		ring = utils.NewRingBuffer(tick.Symbol, s.cfg.HistorySize)
		s.history[tick.Symbol] = ring
	}
	ring.Append(tick)
}

// -----------------------------------------------------------------------------

// Snapshot captures the full current state.
func (s *Store) Snapshot() models.MSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	symbols := make(map[string]models.MSymbolState, len(s.latest))
	for sym, state := range s.latest {
		symbols[sym] = state
	}

	return models.MSnapshot{
		Symbols:   symbols,
		Timestamp: time.Now().UnixMilli(),
	}
}

// Empty reports whether no tick has been accepted yet.
func (s *Store) Empty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.latest) == 0
}

// Symbols returns the known symbol list.
func (s *Store) Symbols() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.latest))
	for sym := range s.latest {
		out = append(out, sym)
	}
	return out
}

// History returns up to n most recent ticks for symbol.
func (s *Store) History(symbol string, n int) []models.MTick {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ring, ok := s.history[symbol]
	if !ok {
		return []models.MTick{}
	}
	return ring.GetLatest(n)
}

// -----------------------------------------------------------------------------
// Persistence
// -----------------------------------------------------------------------------

// Save persists the current snapshot.
func (s *Store) Save() error {
	if s.db == nil {
		return nil
	}
	return s.db.SaveSnapshot(s.Snapshot())
}

// Load restores the latest persisted snapshot, seeding the cache so the API
// serves data immediately after a restart. History rings start empty.
func (s *Store) Load() error {
	if s.db == nil {
		return nil
	}

	snap, err := s.db.LoadSnapshot()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for sym, state := range snap.Symbols {
		s.latest[sym] = state
		if state.ChangePercent != 0 {
			// Recover the session open the change was computed against.
			s.sessionOpen[sym] = state.Last / (1 + state.ChangePercent/100)
		} else {
			s.sessionOpen[sym] = state.Last
		}
	}

	return nil
}
