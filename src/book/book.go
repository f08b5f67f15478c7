package book

import (
	"sort"
	"sync"
	"time"

	"marketfeed/src/models"
)

// -----------------------------------------------------------------------------
// Book
// -----------------------------------------------------------------------------

// Book is the price-time-priority order book for one symbol. All mutations
// are serialized behind mu; distinct symbols never share a Book.
type Book struct {
	symbol string

	mu sync.Mutex
	// bids sorted by price desc, then time asc; asks by price asc, then
	// time asc. Index 0 is always top of book.
	bids   []*models.MOrder
	asks   []*models.MOrder
	orders map[string]*models.MOrder
}

func NewBook(symbol string) *Book {
	return &Book{
		symbol: symbol,
		orders: make(map[string]*models.MOrder),
	}
}

// -----------------------------------------------------------------------------
// Submission
// -----------------------------------------------------------------------------

// Submit inserts the order at its sorted position and runs a matching pass.
// Market orders never rest: whatever cannot be filled against the opposite
// ladder is discarded. Returned trades are in execution order.
func (b *Book) Submit(order *models.MOrder, newTradeID func() string) []models.MTrade {
	b.mu.Lock()
	defer b.mu.Unlock()

	if order.Type == models.OrderTypeLimit {
		b.insert(order)
		b.orders[order.ID] = order
		return b.matchLocked(newTradeID)
	}

	return b.matchMarketLocked(order, newTradeID)
}

// insert assumes b.mu is held.
func (b *Book) insert(order *models.MOrder) {
	if order.Side == models.SideBuy {
		idx := sort.Search(len(b.bids), func(i int) bool {
			if b.bids[i].Price != order.Price {
				return b.bids[i].Price < order.Price
			}
			return b.bids[i].Timestamp > order.Timestamp
		})
		b.bids = append(b.bids, nil)
		copy(b.bids[idx+1:], b.bids[idx:])
		b.bids[idx] = order
		return
	}

	idx := sort.Search(len(b.asks), func(i int) bool {
		if b.asks[i].Price != order.Price {
			return b.asks[i].Price > order.Price
		}
		return b.asks[i].Timestamp > order.Timestamp
	})
	b.asks = append(b.asks, nil)
	copy(b.asks[idx+1:], b.asks[idx:])
	b.asks[idx] = order
}

// -----------------------------------------------------------------------------
// Matching
// -----------------------------------------------------------------------------

// matchLocked runs the crossing loop. Trade price is taken from the resting
// ask side. Assumes b.mu is held.
func (b *Book) matchLocked(newTradeID func() string) []models.MTrade {
	var trades []models.MTrade

	for len(b.bids) > 0 && len(b.asks) > 0 {
		bestBid := b.bids[0]
		bestAsk := b.asks[0]
		if bestBid.Price < bestAsk.Price {
			break
		}

		fillQty := min(bestBid.Remaining(), bestAsk.Remaining())
		bestBid.Filled += fillQty
		bestAsk.Filled += fillQty

		trades = append(trades, models.MTrade{
			ID:          newTradeID(),
			Symbol:      b.symbol,
			Price:       bestAsk.Price,
			Quantity:    fillQty,
			BuyOrderID:  bestBid.ID,
			SellOrderID: bestAsk.ID,
			Timestamp:   time.Now().UnixMilli(),
		})

		if bestBid.IsFilled() {
			b.bids = b.bids[1:]
			delete(b.orders, bestBid.ID)
		}
		if bestAsk.IsFilled() {
			b.asks = b.asks[1:]
			delete(b.orders, bestAsk.ID)
		}
	}

	return trades
}

// matchMarketLocked sweeps the opposite ladder for a market order. Assumes
// b.mu is held.
func (b *Book) matchMarketLocked(order *models.MOrder, newTradeID func() string) []models.MTrade {
	var trades []models.MTrade

	for order.Remaining() > 0 {
		var resting *models.MOrder
		if order.Side == models.SideBuy {
			if len(b.asks) == 0 {
				break
			}
			resting = b.asks[0]
		} else {
			if len(b.bids) == 0 {
				break
			}
			resting = b.bids[0]
		}

		fillQty := min(order.Remaining(), resting.Remaining())
		order.Filled += fillQty
		resting.Filled += fillQty

		trade := models.MTrade{
			ID:        newTradeID(),
			Symbol:    b.symbol,
			Price:     resting.Price,
			Quantity:  fillQty,
			Timestamp: time.Now().UnixMilli(),
		}
		if order.Side == models.SideBuy {
			trade.BuyOrderID = order.ID
			trade.SellOrderID = resting.ID
		} else {
			trade.BuyOrderID = resting.ID
			trade.SellOrderID = order.ID
		}
		trades = append(trades, trade)

		if resting.IsFilled() {
			if order.Side == models.SideBuy {
				b.asks = b.asks[1:]
			} else {
				b.bids = b.bids[1:]
			}
			delete(b.orders, resting.ID)
		}
	}

	return trades
}

// -----------------------------------------------------------------------------
// Cancel
// -----------------------------------------------------------------------------

// Cancel removes the order from its ladder if it still rests there. It is a
// no-op for filled or unknown orders.
func (b *Book) Cancel(orderID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	order, ok := b.orders[orderID]
	if !ok {
		return false
	}
	delete(b.orders, orderID)

	ladder := &b.asks
	if order.Side == models.SideBuy {
		ladder = &b.bids
	}

	for i, o := range *ladder {
		if o.ID == orderID {
			*ladder = append((*ladder)[:i], (*ladder)[i+1:]...)
			return true
		}
	}

	return false
}

// -----------------------------------------------------------------------------
// Depth
// -----------------------------------------------------------------------------

// Depth returns the top N price levels per side, summing remaining quantity
// at equal prices.
func (b *Book) Depth(levels int) models.MDepth {
	b.mu.Lock()
	defer b.mu.Unlock()

	return models.MDepth{
		Symbol: b.symbol,
		Bids:   aggregate(b.bids, levels),
		Asks:   aggregate(b.asks, levels),
	}
}

func aggregate(ladder []*models.MOrder, levels int) []models.MDepthLevel {
	out := []models.MDepthLevel{}

	for _, order := range ladder {
		if len(out) > 0 && out[len(out)-1].Price == order.Price {
			out[len(out)-1].Quantity += order.Remaining()
			continue
		}
		if len(out) == levels {
			break
		}
		out = append(out, models.MDepthLevel{Price: order.Price, Quantity: order.Remaining()})
	}

	return out
}

// -----------------------------------------------------------------------------

// BestBid returns the top bid price, or false when the side is empty.
func (b *Book) BestBid() (float64, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.bids) == 0 {
		return 0, false
	}
	return b.bids[0].Price, true
}

// BestAsk returns the top ask price, or false when the side is empty.
func (b *Book) BestAsk() (float64, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.asks) == 0 {
		return 0, false
	}
	return b.asks[0].Price, true
}
