package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"marketfeed/src/logger"
	"marketfeed/src/models"
	"marketfeed/src/network"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sourceConfig(baseURL string, symbols ...string) *models.MConfig {
	return &models.MConfig{
		Network: models.MNetworkConfig{
			RequestTimeout: 5,
			UserAgent:      "test",
		},
		DataSource: models.MDataSourceConfig{
			Name:    "test-source",
			BaseURL: baseURL,
			Symbols: symbols,
		},
	}
}

func newTestSource(cfg *models.MConfig) *HTTPQuoteSource {
	log := logger.NewLogger("test", "error")
	return NewHTTPQuoteSource(cfg, network.NewClient(cfg), log)
}

// -----------------------------------------------------------------------------

func TestSourceFetchParsesQuotes(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/quotes", r.URL.Path)
		assert.Equal(t, "AAPL,MSFT", r.URL.Query().Get("symbols"))

		json.NewEncoder(w).Encode(map[string]any{
			"quotes": []map[string]any{
				{"symbol": "AAPL", "last": 180.5, "bid": 180.4, "ask": 180.6, "volume": 1200, "timestamp": 1700000000000},
				{"symbol": "MSFT", "last": 410.0, "timestamp": 1700000000000},
			},
		})
	}))
	defer ts.Close()

	s := newTestSource(sourceConfig(ts.URL, "AAPL", "MSFT"))

	ticks, err := s.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, ticks, 2)

	assert.Equal(t, "AAPL", ticks[0].Symbol)
	assert.Equal(t, 180.5, ticks[0].Last)
	assert.Equal(t, 180.4, ticks[0].Bid)
	assert.Equal(t, "test-source", ticks[0].Source)
	assert.Equal(t, int64(1700000000000), ticks[0].Timestamp)
}

func TestSourceFetchSkipsMalformedQuotes(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"quotes": []map[string]any{
				{"symbol": "", "last": 100.0},
				{"symbol": "BAD", "last": 0.0},
				{"symbol": "GOOD", "last": 55.5},
			},
		})
	}))
	defer ts.Close()

	s := newTestSource(sourceConfig(ts.URL, "GOOD"))

	ticks, err := s.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, ticks, 1)
	assert.Equal(t, "GOOD", ticks[0].Symbol)
}

func TestSourceFetchUpstreamError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"code": "rate_limited", "description": "slow down"},
		})
	}))
	defer ts.Close()

	s := newTestSource(sourceConfig(ts.URL, "AAPL"))

	_, err := s.Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate_limited")
}

func TestSourceFetchBadStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	s := newTestSource(sourceConfig(ts.URL, "AAPL"))

	_, err := s.Fetch(context.Background())
	require.Error(t, err)
}

// -----------------------------------------------------------------------------

func TestSourceAddRemoveSymbol(t *testing.T) {
	s := newTestSource(sourceConfig("http://example.invalid", "AAPL"))

	s.AddSymbol("TSLA")
	assert.ElementsMatch(t, []string{"AAPL", "TSLA"}, s.Symbols())

	// Adding an existing symbol is a no-op.
	s.AddSymbol("TSLA")
	assert.Len(t, s.Symbols(), 2)

	s.RemoveSymbol("TSLA")
	assert.ElementsMatch(t, []string{"AAPL"}, s.Symbols())

	// Configured symbols survive removal attempts.
	s.RemoveSymbol("AAPL")
	assert.ElementsMatch(t, []string{"AAPL"}, s.Symbols())
}

func TestSourceFetchNoSymbols(t *testing.T) {
	s := newTestSource(sourceConfig("http://example.invalid"))

	ticks, err := s.Fetch(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ticks)
}
