package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"marketfeed/src/logger"
	"marketfeed/src/models"

	"github.com/gin-gonic/gin"
)

// -----------------------------------------------------------------------------
// Route Handlers
// -----------------------------------------------------------------------------

func (s *FeedServer) getHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"ts":     time.Now().UnixMilli(),
	})
}

// -----------------------------------------------------------------------------

// getRefresh triggers one ingestion cycle. When an API key is configured the
// caller must present it.
func (s *FeedServer) getRefresh(c *gin.Context) {
	if s.Config.APIKey != "" && c.GetHeader("X-API-Key") != s.Config.APIKey {
		c.JSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "invalid api key"})
		return
	}

	if s.Refresh == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "refresh not available"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	if err := s.Refresh(ctx); err != nil {
		s.Logger.Error(err, logger.NewField("handler", "refresh"))
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// -----------------------------------------------------------------------------

func (s *FeedServer) getPrices(c *gin.Context) {
	if s.store.Empty() {
		c.JSON(http.StatusOK, gin.H{"message": "no snapshot available"})
		return
	}
	c.JSON(http.StatusOK, s.store.Snapshot())
}

// -----------------------------------------------------------------------------

func (s *FeedServer) getSymbols(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"symbols": s.store.Symbols()})
}

// -----------------------------------------------------------------------------

// getCandles serves persisted candles for one symbol, oldest first.
func (s *FeedServer) getCandles(c *gin.Context) {
	symbol := c.Param("symbol")

	tf := models.Timeframe(c.DefaultQuery("tf", "1m"))
	if !tf.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown timeframe"})
		return
	}

	limit := 100
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit parameter"})
			return
		}
		limit = parsed
	}

	if s.db == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage not available"})
		return
	}

	candles, err := s.db.LoadCandles(symbol, tf, limit)
	if err != nil {
		s.Logger.Error(err, logger.NewField("handler", "candles"))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load candles"})
		return
	}
	if candles == nil {
		candles = []models.MCandle{}
	}

	c.JSON(http.StatusOK, gin.H{
		"symbol":    symbol,
		"timeframe": string(tf),
		"candles":   candles,
	})
}

// -----------------------------------------------------------------------------

// getHistory serves the recent in-memory tick history for one symbol.
func (s *FeedServer) getHistory(c *gin.Context) {
	symbol := c.Param("symbol")

	limit := 100
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit parameter"})
			return
		}
		limit = parsed
	}

	ticks := s.store.History(symbol, limit)
	if ticks == nil {
		ticks = []models.MTick{}
	}

	c.JSON(http.StatusOK, gin.H{
		"symbol": symbol,
		"ticks":  ticks,
	})
}

// -----------------------------------------------------------------------------

func (s *FeedServer) getOrderbook(c *gin.Context) {
	symbol := c.Param("symbol")

	levels := 10
	if raw := c.Query("levels"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid levels parameter"})
			return
		}
		levels = parsed
	}

	c.JSON(http.StatusOK, s.book.Depth(symbol, levels))
}

// -----------------------------------------------------------------------------

type orderRequest struct {
	Symbol   string  `json:"symbol"`
	Side     string  `json:"side"`
	Quantity float64 `json:"quantity"`
	Price    float64 `json:"price"`
}

func (s *FeedServer) postOrder(c *gin.Context) {
	var req orderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if req.Symbol == "" || req.Side == "" || req.Quantity == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol, side and quantity are required"})
		return
	}

	order, trades, err := s.book.Submit(req.Symbol, models.Side(req.Side), req.Price, req.Quantity)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.metrics.OrdersSubmitted.Inc()

	c.JSON(http.StatusCreated, gin.H{
		"orderId": order.ID,
		"filled":  order.Filled,
		"trades":  len(trades),
	})
}
