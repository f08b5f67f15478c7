package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"marketfeed/src/logger"
	"marketfeed/src/models"
	"marketfeed/src/network"
)

// HTTPQuoteSource polls a REST quote endpoint for the configured symbol set.
// Symbols can be added and removed at runtime as websocket interest changes.
type HTTPQuoteSource struct {
	Config  *models.MConfig
	Network *network.Client
	Logger  *logger.Logger

	symbols   atomic.Value // []string
	symbolsMu sync.Mutex   // serializes Add/Remove writers
}

// -----------------------------------------------------------------------------

func NewHTTPQuoteSource(cfg *models.MConfig, net *network.Client, log *logger.Logger) *HTTPQuoteSource {
	s := &HTTPQuoteSource{
		Config:  cfg,
		Network: net,
		Logger:  log.Named("source-" + cfg.DataSource.Name),
	}
	s.symbols.Store(append([]string(nil), cfg.DataSource.Symbols...))
	return s
}

// -----------------------------------------------------------------------------

func (s *HTTPQuoteSource) Name() string {
	return s.Config.DataSource.Name
}

func (s *HTTPQuoteSource) Symbols() []string {
	return s.symbols.Load().([]string)
}

// -----------------------------------------------------------------------------

// AddSymbol starts polling a symbol. No-op when already tracked.
func (s *HTTPQuoteSource) AddSymbol(symbol string) {
	s.symbolsMu.Lock()
	defer s.symbolsMu.Unlock()

	current := s.Symbols()
	for _, sym := range current {
		if sym == symbol {
			return
		}
	}

	next := make([]string, 0, len(current)+1)
	next = append(next, current...)
	next = append(next, symbol)
	s.symbols.Store(next)
	s.Logger.Info("symbol added", logger.NewField("symbol", symbol), logger.NewField("count", len(next)))
}

// RemoveSymbol stops polling a symbol once nobody is interested in it.
// Symbols from the static config are never removed.
func (s *HTTPQuoteSource) RemoveSymbol(symbol string) {
	for _, sym := range s.Config.DataSource.Symbols {
		if sym == symbol {
			return
		}
	}

	s.symbolsMu.Lock()
	defer s.symbolsMu.Unlock()

	current := s.Symbols()
	next := make([]string, 0, len(current))
	for _, sym := range current {
		if sym != symbol {
			next = append(next, sym)
		}
	}
	if len(next) == len(current) {
		return
	}
	s.symbols.Store(next)
	s.Logger.Info("symbol removed", logger.NewField("symbol", symbol), logger.NewField("count", len(next)))
}

// -----------------------------------------------------------------------------

// quoteResponse is the upstream wire format.
type quoteResponse struct {
	Quotes []struct {
		Symbol    string  `json:"symbol"`
		Last      float64 `json:"last"`
		Bid       float64 `json:"bid"`
		Ask       float64 `json:"ask"`
		Volume    float64 `json:"volume"`
		Timestamp int64   `json:"timestamp"`
	} `json:"quotes"`
	Error *struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

// -----------------------------------------------------------------------------

// Fetch pulls one round of quotes for the current symbol set. Symbols are
// requested in batches to stay under upstream URL and rate limits; a short
// delay between batches avoids tripping them.
func (s *HTTPQuoteSource) Fetch(ctx context.Context) ([]models.MTick, error) {
	symbols := s.Symbols()
	if len(symbols) == 0 {
		return nil, nil
	}

	batchSize := s.Config.DataSource.BatchSize
	if batchSize <= 0 {
		batchSize = len(symbols)
	}

	var out []models.MTick
	for start := 0; start < len(symbols); start += batchSize {
		end := start + batchSize
		if end > len(symbols) {
			end = len(symbols)
		}

		if start > 0 && s.Config.DataSource.BatchDelayMs > 0 {
			select {
			case <-time.After(time.Duration(s.Config.DataSource.BatchDelayMs) * time.Millisecond):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		ticks, err := s.fetchBatch(ctx, symbols[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, ticks...)
	}

	s.Logger.Debug("fetch complete",
		logger.NewField("symbols", len(symbols)),
		logger.NewField("ticks", len(out)))

	return out, nil
}

// -----------------------------------------------------------------------------

func (s *HTTPQuoteSource) fetchBatch(ctx context.Context, symbols []string) ([]models.MTick, error) {
	params := map[string]string{
		"symbols": strings.Join(symbols, ","),
	}
	if s.Config.DataSource.APIKey != "" {
		params["apikey"] = s.Config.DataSource.APIKey
	}

	url := fmt.Sprintf("%s/v1/quotes", strings.TrimRight(s.Config.DataSource.BaseURL, "/"))

	body, err := s.Network.Get(ctx, url, params)
	if err != nil {
		return nil, fmt.Errorf("quote request failed: %w", err)
	}

	return s.parseQuotes(body)
}

// -----------------------------------------------------------------------------

func (s *HTTPQuoteSource) parseQuotes(body []byte) ([]models.MTick, error) {
	var resp quoteResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("quote decode failed: %w", err)
	}

	if resp.Error != nil {
		return nil, fmt.Errorf("upstream error: %s - %s", resp.Error.Code, resp.Error.Description)
	}

	ticks := make([]models.MTick, 0, len(resp.Quotes))
	for _, q := range resp.Quotes {
		if q.Symbol == "" || q.Last <= 0 {
			s.Logger.Debug("skipping malformed quote", logger.NewField("symbol", q.Symbol))
			continue
		}

		ts := q.Timestamp
		if ts == 0 {
			ts = time.Now().UnixMilli()
		}

		ticks = append(ticks, models.MTick{
			Symbol:    q.Symbol,
			Last:      q.Last,
			Bid:       q.Bid,
			Ask:       q.Ask,
			Volume:    q.Volume,
			Source:    s.Name(),
			Timestamp: ts,
		})
	}

	return ticks, nil
}
