package candles

import (
	"context"
	"sync"
	"time"

	"marketfeed/src/interfaces"
	"marketfeed/src/logger"
	"marketfeed/src/models"
)

// -----------------------------------------------------------------------------
// Aggregator
// -----------------------------------------------------------------------------

// Aggregator rolls validated ticks into fixed-timeframe OHLCV bars, one open
// candle per (symbol, timeframe). Closed candles are handed to OnClose and
// buffered for batch persistence.
type Aggregator struct {
	cfg        models.MCandlesConfig
	timeframes []models.Timeframe
	db         interfaces.IDatabase
	log        *logger.Logger

	// OnClose observes every closed candle (fanout hook). Optional.
	OnClose func(models.MCandle)

	mu     sync.Mutex
	open   map[candleKey]*models.MCandle
	buffer []models.MCandle

	// now is swappable for tests.
	now func() time.Time
}

type candleKey struct {
	symbol    string
	timeframe models.Timeframe
}

// -----------------------------------------------------------------------------

func NewAggregator(cfg models.MCandlesConfig, db interfaces.IDatabase, log *logger.Logger) *Aggregator {
	timeframes := make([]models.Timeframe, 0, len(cfg.Timeframes))
	for _, tf := range cfg.Timeframes {
		timeframes = append(timeframes, models.Timeframe(tf))
	}

	return &Aggregator{
		cfg:        cfg,
		timeframes: timeframes,
		db:         db,
		log:        log,
		open:       make(map[candleKey]*models.MCandle),
		now:        time.Now,
	}
}

// -----------------------------------------------------------------------------

// Ingest folds one accepted tick into every configured timeframe. Candles
// whose bucket the tick has moved past are closed and returned.
func (a *Aggregator) Ingest(tick models.MTick) []models.MCandle {
	a.mu.Lock()
	defer a.mu.Unlock()

	var closed []models.MCandle

	for _, tf := range a.timeframes {
		key := candleKey{symbol: tick.Symbol, timeframe: tf}
		bucket := tf.BucketStart(tick.Timestamp)

		current, ok := a.open[key]
		if !ok {
			a.open[key] = models.NewCandle(tick, tf)
			continue
		}

		switch {
		case bucket == current.StartTime:
			current.Apply(tick)
		case bucket > current.StartTime:
			closed = append(closed, *current)
			a.closeCandle(*current)
			a.open[key] = models.NewCandle(tick, tf)
		default:
			// Tick from an already-closed bucket; the arrival-order guarantee
			// makes this a clock artifact, fold it into the open candle.
			current.Apply(tick)
		}
	}

	return closed
}

// -----------------------------------------------------------------------------

// FlushElapsed force-closes candles whose bucket has fully elapsed even when
// no newer tick arrived, bounding staleness on sparse symbols.
func (a *Aggregator) FlushElapsed() []models.MCandle {
	a.mu.Lock()
	defer a.mu.Unlock()

	nowMs := a.now().UnixMilli()
	var closed []models.MCandle

	for key, candle := range a.open {
		end := candle.StartTime + key.timeframe.Duration().Milliseconds()
		if nowMs >= end {
			closed = append(closed, *candle)
			a.closeCandle(*candle)
			delete(a.open, key)
		}
	}

	return closed
}

// -----------------------------------------------------------------------------

// closeCandle assumes a.mu is held. The buffer is persisted as one batch
// once it reaches the configured size.
func (a *Aggregator) closeCandle(candle models.MCandle) {
	if a.OnClose != nil {
		a.OnClose(candle)
	}

	a.buffer = append(a.buffer, candle)
	if len(a.buffer) >= a.cfg.BufferSize {
		a.persistLocked()
	}
}

// persistLocked assumes a.mu is held.
func (a *Aggregator) persistLocked() {
	if len(a.buffer) == 0 {
		return
	}

	batch := a.buffer
	a.buffer = nil

	if a.db == nil {
		return
	}
	if err := a.db.SaveCandles(batch); err != nil {
		a.log.Error(err, logger.NewField("candles", len(batch)))
	}
}

// Flush persists whatever is buffered, regardless of batch size.
func (a *Aggregator) Flush() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.persistLocked()
}

// -----------------------------------------------------------------------------

// Run drives the periodic flush check until ctx is cancelled. Per-symbol
// single-writer ordering is the caller's concern; Run only closes elapsed
// buckets and persists batches.
func (a *Aggregator) Run(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.FlushCheckInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.FlushElapsed()
			a.Flush()
			return
		case <-ticker.C:
			a.FlushElapsed()
			a.Flush()
		}
	}
}

// -----------------------------------------------------------------------------

// Open returns a copy of the currently open candle for (symbol, timeframe),
// if any.
func (a *Aggregator) Open(symbol string, tf models.Timeframe) (models.MCandle, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	candle, ok := a.open[candleKey{symbol: symbol, timeframe: tf}]
	if !ok {
		return models.MCandle{}, false
	}
	return *candle, true
}

// Buffered returns the number of closed candles awaiting persistence.
func (a *Aggregator) Buffered() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.buffer)
}
