package models

// -----------------------------------------------------------------------------
// Orders
// -----------------------------------------------------------------------------

// Side is the order direction.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// OrderType distinguishes resting limit orders from immediate market orders.
type OrderType string

const (
	OrderTypeLimit  OrderType = "limit"
	OrderTypeMarket OrderType = "market"
)

// MOrder is a submitted order. Filled grows monotonically during matching;
// the order leaves the book once Filled == Quantity or on cancellation.
type MOrder struct {
	ID        string    `json:"id"`
	Symbol    string    `json:"symbol"`
	Side      Side      `json:"side"`
	Type      OrderType `json:"type"`
	Price     float64   `json:"price"`
	Quantity  float64   `json:"quantity"`
	Filled    float64   `json:"filled"`
	Timestamp int64     `json:"timestamp"` // unix millis, submission time
}

// Remaining returns the unfilled quantity.
func (o *MOrder) Remaining() float64 {
	return o.Quantity - o.Filled
}

// IsFilled reports whether the order is completely executed.
func (o *MOrder) IsFilled() bool {
	return o.Remaining() <= 0
}

// -----------------------------------------------------------------------------
// Trades
// -----------------------------------------------------------------------------

// MTrade is one execution produced by a matching pass.
type MTrade struct {
	ID          string  `json:"id"`
	Symbol      string  `json:"symbol"`
	Price       float64 `json:"price"`
	Quantity    float64 `json:"quantity"`
	BuyOrderID  string  `json:"buy_order_id"`
	SellOrderID string  `json:"sell_order_id"`
	Timestamp   int64   `json:"timestamp"`
}

// -----------------------------------------------------------------------------
// Depth
// -----------------------------------------------------------------------------

// MDepthLevel aggregates remaining quantity resting at one price.
type MDepthLevel struct {
	Price    float64 `json:"price"`
	Quantity float64 `json:"quantity"`
}

// MDepth is a top-N view of both sides of a book.
type MDepth struct {
	Symbol string        `json:"symbol"`
	Bids   []MDepthLevel `json:"bids"`
	Asks   []MDepthLevel `json:"asks"`
}
