package book

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"marketfeed/src/logger"
	"marketfeed/src/models"

	"github.com/oklog/ulid/v2"
)

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

// ErrInvalidOrder marks an order rejected before reaching the book.
var ErrInvalidOrder = errors.New("invalid order")

func invalidOrder(field string) error {
	return fmt.Errorf("%w: missing or malformed %s", ErrInvalidOrder, field)
}

// -----------------------------------------------------------------------------
// Engine
// -----------------------------------------------------------------------------

// Engine owns one Book per symbol. Mutations to a single symbol's book are
// serialized by that book; distinct symbols match fully in parallel.
type Engine struct {
	log *logger.Logger

	// OnTrade observes every execution (fanout hook). Optional.
	OnTrade func(models.MTrade)

	mu    sync.RWMutex
	books map[string]*Book

	entropyMu sync.Mutex
	entropy   *ulid.MonotonicEntropy
}

func NewEngine(log *logger.Logger) *Engine {
	return &Engine{
		log:     log,
		books:   make(map[string]*Book),
		entropy: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}
}

// -----------------------------------------------------------------------------

// newID mints a monotonic ULID so id order follows submission order.
func (e *Engine) newID() string {
	e.entropyMu.Lock()
	defer e.entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), e.entropy).String()
}

// book returns the Book for symbol, creating it on first use.
func (e *Engine) book(symbol string) *Book {
	e.mu.RLock()
	b, ok := e.books[symbol]
	e.mu.RUnlock()
	if ok {
		return b
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if b, ok := e.books[symbol]; ok {
		return b
	}
	b = NewBook(symbol)
	e.books[symbol] = b
	return b
}

// -----------------------------------------------------------------------------
// Operations
// -----------------------------------------------------------------------------

// reject logs a refused order and hands the error back.
func (e *Engine) reject(symbol string, err error) error {
	e.log.Debug("order rejected",
		logger.NewField("symbol", symbol),
		logger.NewField("error", err.Error()))
	return err
}

// Submit validates, inserts and matches one order, returning the assigned
// order id and any executions. Orders without a price are market orders.
func (e *Engine) Submit(symbol string, side models.Side, price, quantity float64) (*models.MOrder, []models.MTrade, error) {
	if symbol == "" {
		return nil, nil, e.reject(symbol, invalidOrder("symbol"))
	}
	if side != models.SideBuy && side != models.SideSell {
		return nil, nil, e.reject(symbol, invalidOrder("side"))
	}
	if quantity <= 0 {
		return nil, nil, e.reject(symbol, invalidOrder("quantity"))
	}
	if price < 0 {
		return nil, nil, e.reject(symbol, invalidOrder("price"))
	}

	orderType := models.OrderTypeLimit
	if price == 0 {
		orderType = models.OrderTypeMarket
	}

	order := &models.MOrder{
		ID:        e.newID(),
		Symbol:    symbol,
		Side:      side,
		Type:      orderType,
		Price:     price,
		Quantity:  quantity,
		Timestamp: time.Now().UnixMilli(),
	}

	trades := e.book(symbol).Submit(order, e.newID)

	for _, trade := range trades {
		if e.OnTrade != nil {
			e.OnTrade(trade)
		}
	}

	return order, trades, nil
}

// -----------------------------------------------------------------------------

// Cancel removes a resting order. It is a no-op when the order is already
// filled or unknown.
func (e *Engine) Cancel(symbol, orderID string) bool {
	e.mu.RLock()
	b, ok := e.books[symbol]
	e.mu.RUnlock()
	if !ok {
		return false
	}
	return b.Cancel(orderID)
}

// Depth returns the aggregated top-N levels for symbol. A symbol without a
// book yet yields empty ladders.
func (e *Engine) Depth(symbol string, levels int) models.MDepth {
	if levels <= 0 {
		levels = 10
	}

	e.mu.RLock()
	b, ok := e.books[symbol]
	e.mu.RUnlock()
	if !ok {
		return models.MDepth{Symbol: symbol, Bids: []models.MDepthLevel{}, Asks: []models.MDepthLevel{}}
	}
	return b.Depth(levels)
}
