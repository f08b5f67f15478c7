package models

import "time"

// MTick represents a single validated (or to-be-validated) price observation
// for one symbol, as delivered by an upstream quote source.
type MTick struct {
	Symbol    string  `json:"symbol"`
	Last      float64 `json:"last"`
	Bid       float64 `json:"bid,omitempty"`
	Ask       float64 `json:"ask,omitempty"`
	Volume    float64 `json:"volume,omitempty"`
	Source    string  `json:"source"`
	Timestamp int64   `json:"timestamp"` // unix millis
}

// -----------------------------------------------------------------------------

// Time returns the tick timestamp as time.Time.
func (t MTick) Time() time.Time {
	return time.UnixMilli(t.Timestamp)
}

// Mid returns the bid/ask midpoint, falling back to the last price when
// either side of the quote is missing.
func (t MTick) Mid() float64 {
	if t.Bid > 0 && t.Ask > 0 {
		return (t.Bid + t.Ask) / 2
	}
	return t.Last
}

// Spread returns the relative bid/ask spread as a percentage of the midpoint.
// Ticks without a two-sided quote have zero spread.
func (t MTick) Spread() float64 {
	if t.Bid <= 0 || t.Ask <= 0 {
		return 0
	}
	mid := t.Mid()
	if mid == 0 {
		return 0
	}
	return (t.Ask - t.Bid) / mid * 100
}

// -----------------------------------------------------------------------------

// RejectReason classifies why the validator refused a tick.
type RejectReason string

const (
	RejectStale      RejectReason = "stale"
	RejectFuture     RejectReason = "future"
	RejectWideSpread RejectReason = "wide_spread"
	RejectDuplicate  RejectReason = "duplicate"
)
