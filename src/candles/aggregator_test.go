package candles

import (
	"sync"
	"testing"
	"time"

	"marketfeed/src/logger"
	"marketfeed/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDB records candle batches handed to SaveCandles.
type fakeDB struct {
	mu      sync.Mutex
	batches [][]models.MCandle
}

func (f *fakeDB) Initialize() error { return nil }
func (f *fakeDB) Close() error      { return nil }

func (f *fakeDB) SaveCandles(batch []models.MCandle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, batch)
	return nil
}

func (f *fakeDB) SaveSnapshot(snap models.MSnapshot) error          { return nil }
func (f *fakeDB) LoadSnapshot() (models.MSnapshot, error)           { return models.MSnapshot{}, nil }
func (f *fakeDB) LoadCandles(symbol string, tf models.Timeframe, limit int) ([]models.MCandle, error) {
	return nil, nil
}

// -----------------------------------------------------------------------------

func testAggregator(bufferSize int) (*Aggregator, *fakeDB) {
	db := &fakeDB{}
	agg := NewAggregator(models.MCandlesConfig{
		Timeframes:           []string{"1m"},
		BufferSize:           bufferSize,
		FlushCheckIntervalMs: 1000,
	}, db, logger.NewLogger("candles-test", "error"))
	return agg, db
}

func tickAt(symbol string, price, volume float64, ts time.Time) models.MTick {
	return models.MTick{
		Symbol:    symbol,
		Last:      price,
		Volume:    volume,
		Source:    "test",
		Timestamp: ts.UnixMilli(),
	}
}

var bucketStart = time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC)

// -----------------------------------------------------------------------------

func TestAggregatorOpensCandleOnFirstTick(t *testing.T) {
	agg, _ := testAggregator(100)

	closed := agg.Ingest(tickAt("BTC-USD", 50000, 2, bucketStart.Add(10*time.Second)))
	assert.Empty(t, closed)

	candle, ok := agg.Open("BTC-USD", models.Timeframe1m)
	require.True(t, ok)
	assert.Equal(t, 50000.0, candle.Open)
	assert.Equal(t, 50000.0, candle.High)
	assert.Equal(t, 50000.0, candle.Low)
	assert.Equal(t, 50000.0, candle.Close)
	assert.Equal(t, 2.0, candle.Volume)
	assert.Equal(t, 1, candle.TickCount)
	assert.Equal(t, bucketStart.UnixMilli(), candle.StartTime)
}

func TestAggregatorUpdatesInBucket(t *testing.T) {
	agg, _ := testAggregator(100)

	agg.Ingest(tickAt("BTC-USD", 50000, 1, bucketStart))
	agg.Ingest(tickAt("BTC-USD", 50100, 2, bucketStart.Add(20*time.Second)))
	agg.Ingest(tickAt("BTC-USD", 49900, 3, bucketStart.Add(40*time.Second)))

	candle, ok := agg.Open("BTC-USD", models.Timeframe1m)
	require.True(t, ok)
	assert.Equal(t, 50000.0, candle.Open)
	assert.Equal(t, 50100.0, candle.High)
	assert.Equal(t, 49900.0, candle.Low)
	assert.Equal(t, 49900.0, candle.Close)
	assert.Equal(t, 6.0, candle.Volume)
	assert.Equal(t, 3, candle.TickCount)
}

func TestAggregatorClosesOnBucketRollover(t *testing.T) {
	agg, _ := testAggregator(100)

	agg.Ingest(tickAt("BTC-USD", 50000, 1, bucketStart))
	closed := agg.Ingest(tickAt("BTC-USD", 50500, 1, bucketStart.Add(time.Minute)))

	require.Len(t, closed, 1)
	assert.Equal(t, 50000.0, closed[0].Close)
	assert.Equal(t, bucketStart.UnixMilli(), closed[0].StartTime)

	candle, ok := agg.Open("BTC-USD", models.Timeframe1m)
	require.True(t, ok)
	assert.Equal(t, 50500.0, candle.Open)
	assert.Equal(t, bucketStart.Add(time.Minute).UnixMilli(), candle.StartTime)
}

func TestAggregatorCandleInvariant(t *testing.T) {
	agg, _ := testAggregator(100)

	prices := []float64{50000, 50250, 49800, 50100, 49950}
	volumes := []float64{1, 2, 0.5, 3, 1.5}
	totalVolume := 0.0
	for i, p := range prices {
		agg.Ingest(tickAt("BTC-USD", p, volumes[i], bucketStart.Add(time.Duration(i)*time.Second)))
		totalVolume += volumes[i]
	}

	candle, ok := agg.Open("BTC-USD", models.Timeframe1m)
	require.True(t, ok)
	assert.LessOrEqual(t, candle.Low, candle.Open)
	assert.LessOrEqual(t, candle.Low, candle.Close)
	assert.GreaterOrEqual(t, candle.High, candle.Open)
	assert.GreaterOrEqual(t, candle.High, candle.Close)
	assert.Equal(t, totalVolume, candle.Volume)
	assert.Equal(t, len(prices), candle.TickCount)
}

func TestAggregatorFlushElapsedClosesStaleBuckets(t *testing.T) {
	agg, _ := testAggregator(100)
	agg.Ingest(tickAt("BTC-USD", 50000, 1, bucketStart))

	agg.now = func() time.Time { return bucketStart.Add(90 * time.Second) }
	closed := agg.FlushElapsed()

	require.Len(t, closed, 1)
	assert.Equal(t, bucketStart.UnixMilli(), closed[0].StartTime)

	_, ok := agg.Open("BTC-USD", models.Timeframe1m)
	assert.False(t, ok, "flushed candle must no longer be open")
}

func TestAggregatorFlushElapsedKeepsLiveBuckets(t *testing.T) {
	agg, _ := testAggregator(100)
	agg.Ingest(tickAt("BTC-USD", 50000, 1, bucketStart))

	agg.now = func() time.Time { return bucketStart.Add(30 * time.Second) }
	assert.Empty(t, agg.FlushElapsed())

	_, ok := agg.Open("BTC-USD", models.Timeframe1m)
	assert.True(t, ok)
}

func TestAggregatorPersistsFullBuffer(t *testing.T) {
	agg, db := testAggregator(2)

	// Roll over two buckets to close two candles.
	agg.Ingest(tickAt("BTC-USD", 50000, 1, bucketStart))
	agg.Ingest(tickAt("BTC-USD", 50100, 1, bucketStart.Add(time.Minute)))
	assert.Equal(t, 1, agg.Buffered())

	agg.Ingest(tickAt("BTC-USD", 50200, 1, bucketStart.Add(2*time.Minute)))

	db.mu.Lock()
	defer db.mu.Unlock()
	require.Len(t, db.batches, 1)
	assert.Len(t, db.batches[0], 2)
	assert.Equal(t, 0, agg.Buffered())
}

func TestAggregatorOnCloseObserver(t *testing.T) {
	agg, _ := testAggregator(100)

	var observed []models.MCandle
	agg.OnClose = func(c models.MCandle) { observed = append(observed, c) }

	agg.Ingest(tickAt("BTC-USD", 50000, 1, bucketStart))
	agg.Ingest(tickAt("BTC-USD", 50100, 1, bucketStart.Add(time.Minute)))

	require.Len(t, observed, 1)
	assert.Equal(t, 50000.0, observed[0].Close)
}

func TestAggregatorIndependentSymbols(t *testing.T) {
	agg, _ := testAggregator(100)

	agg.Ingest(tickAt("BTC-USD", 50000, 1, bucketStart))
	closed := agg.Ingest(tickAt("ETH-USD", 3000, 1, bucketStart.Add(time.Minute)))

	// ETH's first tick opens its own candle; BTC's stays open.
	assert.Empty(t, closed)
	_, ok := agg.Open("BTC-USD", models.Timeframe1m)
	assert.True(t, ok)
}
