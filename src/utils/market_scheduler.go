package utils

import (
	"sync"
	"time"

	"marketfeed/src/logger"
)

// MarketScheduler tracks which exchange calendars the watched symbols belong
// to, so ingestion can pause while every relevant market is closed.
type MarketScheduler struct {
	Logger    *logger.Logger
	mu        sync.RWMutex
	calendars map[string]*TradingCalendar
}

// -----------------------------------------------------------------------------

func NewMarketScheduler(symbols []string, log *logger.Logger) *MarketScheduler {
	ms := &MarketScheduler{
		Logger:    log,
		calendars: make(map[string]*TradingCalendar),
	}
	ms.UpdateSymbols(symbols)
	return ms
}

// -----------------------------------------------------------------------------

// UpdateSymbols replaces the tracked symbol set.
func (ms *MarketScheduler) UpdateSymbols(symbols []string) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	ms.calendars = make(map[string]*TradingCalendar, len(symbols))
	for _, symbol := range symbols {
		if cal := CalendarForSymbol(symbol); cal != nil {
			ms.calendars[symbol] = cal
		}
	}

	unique := make(map[*TradingCalendar]struct{})
	for _, cal := range ms.calendars {
		unique[cal] = struct{}{}
	}

	ms.Logger.Debug("calendar mapping updated",
		logger.NewField("symbols", len(symbols)),
		logger.NewField("calendars", len(unique)))
}

// -----------------------------------------------------------------------------

// AnyMarketOpen reports whether at least one tracked market currently trades.
func (ms *MarketScheduler) AnyMarketOpen() bool {
	now := time.Now().UTC()

	ms.mu.RLock()
	defer ms.mu.RUnlock()

	unique := make(map[*TradingCalendar]struct{})
	for _, cal := range ms.calendars {
		unique[cal] = struct{}{}
	}

	for cal := range unique {
		if cal.IsOpenAt(now) {
			return true
		}
	}

	return false
}
