package models

import "time"

// -----------------------------------------------------------------------------
// Timeframes
// -----------------------------------------------------------------------------

// Timeframe is one of the fixed candle bucket widths.
type Timeframe string

const (
	Timeframe1m  Timeframe = "1m"
	Timeframe5m  Timeframe = "5m"
	Timeframe15m Timeframe = "15m"
	Timeframe1h  Timeframe = "1h"
	Timeframe4h  Timeframe = "4h"
	Timeframe1d  Timeframe = "1d"
)

var timeframeDurations = map[Timeframe]time.Duration{
	Timeframe1m:  time.Minute,
	Timeframe5m:  5 * time.Minute,
	Timeframe15m: 15 * time.Minute,
	Timeframe1h:  time.Hour,
	Timeframe4h:  4 * time.Hour,
	Timeframe1d:  24 * time.Hour,
}

// Duration returns the bucket width, or zero for an unknown timeframe.
func (tf Timeframe) Duration() time.Duration {
	return timeframeDurations[tf]
}

// Valid reports whether tf is one of the enumerated timeframes.
func (tf Timeframe) Valid() bool {
	_, ok := timeframeDurations[tf]
	return ok
}

// BucketStart returns the timeframe-aligned floor of ts (unix millis).
func (tf Timeframe) BucketStart(ts int64) int64 {
	width := tf.Duration().Milliseconds()
	if width <= 0 {
		return ts
	}
	return ts / width * width
}

// -----------------------------------------------------------------------------
// Candle
// -----------------------------------------------------------------------------

// MCandle is an OHLCV bar over one timeframe bucket. It is mutated in place
// while its bucket is open and becomes immutable once closed.
type MCandle struct {
	Symbol    string    `json:"symbol"`
	Timeframe Timeframe `json:"timeframe"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
	TickCount int       `json:"tick_count"`
	StartTime int64     `json:"start_time"` // bucket start, unix millis
}

// NewCandle opens a candle from the first tick of a bucket.
func NewCandle(tick MTick, tf Timeframe) *MCandle {
	return &MCandle{
		Symbol:    tick.Symbol,
		Timeframe: tf,
		Open:      tick.Last,
		High:      tick.Last,
		Low:       tick.Last,
		Close:     tick.Last,
		Volume:    tick.Volume,
		TickCount: 1,
		StartTime: tf.BucketStart(tick.Timestamp),
	}
}

// Apply folds an in-bucket tick into the open candle.
func (c *MCandle) Apply(tick MTick) {
	if tick.Last > c.High {
		c.High = tick.Last
	}
	if tick.Last < c.Low {
		c.Low = tick.Last
	}
	c.Close = tick.Last
	c.Volume += tick.Volume
	c.TickCount++
}
