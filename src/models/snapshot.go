package models

// MSymbolState is the latest known state for one symbol, derived from the
// most recent accepted tick.
type MSymbolState struct {
	Symbol        string  `json:"symbol"`
	Last          float64 `json:"last"`
	Bid           float64 `json:"bid,omitempty"`
	Ask           float64 `json:"ask,omitempty"`
	ChangePercent float64 `json:"change_percent"`
	Volume        float64 `json:"volume,omitempty"`
	Timestamp     int64   `json:"timestamp"`
}

// MSnapshot is the full per-symbol state at one capture instant.
type MSnapshot struct {
	Symbols   map[string]MSymbolState `json:"symbols"`
	Timestamp int64                   `json:"timestamp"`
}

// -----------------------------------------------------------------------------
// Ring buffer layout
// -----------------------------------------------------------------------------

// History ring indices and constants.
const (
	RB_IDX_TIMESTAMP = 0
	RB_IDX_LAST      = 1
	RB_IDX_BID       = 2
	RB_IDX_ASK       = 3
	RB_IDX_VOLUME    = 4
	RB_NUM_FEATURES  = 5
)
