package feed

import (
	"context"
	"errors"
	"testing"
	"time"

	"marketfeed/src/breaker"
	"marketfeed/src/candles"
	"marketfeed/src/logger"
	"marketfeed/src/metrics"
	"marketfeed/src/models"
	"marketfeed/src/snapshot"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------------
// Fakes
// -----------------------------------------------------------------------------

type stubSource struct {
	symbols []string
	ticks   []models.MTick
	err     error
	calls   int
}

func (s *stubSource) Name() string      { return "stub" }
func (s *stubSource) Symbols() []string { return s.symbols }

func (s *stubSource) Fetch(ctx context.Context) ([]models.MTick, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.ticks, nil
}

type stubPublisher struct {
	ticks   []models.MTick
	candles []models.MCandle
}

func (p *stubPublisher) PublishTick(t models.MTick)       { p.ticks = append(p.ticks, t) }
func (p *stubPublisher) PublishCandle(c models.MCandle)   { p.candles = append(p.candles, c) }
func (p *stubPublisher) PublishTrade(models.MTrade)       {}
func (p *stubPublisher) PublishSnapshot(models.MSnapshot) {}

type nullDB struct{}

func (nullDB) Initialize() error                        { return nil }
func (nullDB) Close() error                             { return nil }
func (nullDB) SaveCandles([]models.MCandle) error       { return nil }
func (nullDB) SaveSnapshot(models.MSnapshot) error      { return nil }
func (nullDB) LoadSnapshot() (models.MSnapshot, error)  { return models.MSnapshot{}, nil }
func (nullDB) LoadCandles(string, models.Timeframe, int) ([]models.MCandle, error) {
	return nil, nil
}

// -----------------------------------------------------------------------------

func ingestorConfig() *models.MConfig {
	return &models.MConfig{
		Validation: models.MValidationConfig{
			MaxTickAgeMs:             5 * 60 * 1000,
			MaxFutureTickMs:          30 * 1000,
			MaxSpreadPercent:         10,
			TickDuplicateToleranceMs: 500,
		},
		Candles: models.MCandlesConfig{
			Timeframes: []string{"1m"},
			BufferSize: 100,
		},
		Breaker: models.MBreakerConfig{
			FailureThreshold: 1,
			ResetTimeoutMs:   60 * 1000,
			SuccessThreshold: 1,
		},
		Retry: models.MRetryConfig{
			MaxAttempts:       1,
			InitialDelayMs:    1,
			MaxDelayMs:        1,
			BackoffMultiplier: 2,
		},
		Snapshot: models.MSnapshotConfig{HistorySize: 10},
	}
}

func newTestIngestor(t *testing.T, src *stubSource) (*Ingestor, *stubPublisher, *metrics.Metrics) {
	t.Helper()

	cfg := ingestorConfig()
	log := logger.NewLogger("test", "error")
	m := metrics.New()
	pub := &stubPublisher{}

	agg := candles.NewAggregator(cfg.Candles, nullDB{}, log)
	store := snapshot.NewStore(cfg.Snapshot, nullDB{}, log)

	return NewIngestor(cfg, log, src, agg, store, pub, m), pub, m
}

// -----------------------------------------------------------------------------

func TestIngestorCyclePublishesAcceptedTicks(t *testing.T) {
	now := time.Now().UnixMilli()
	src := &stubSource{
		symbols: []string{"AAPL"},
		ticks: []models.MTick{
			{Symbol: "AAPL", Last: 180.5, Volume: 10, Source: "stub", Timestamp: now},
		},
	}

	ing, pub, m := newTestIngestor(t, src)

	require.NoError(t, ing.RunCycle(context.Background()))

	require.Len(t, pub.ticks, 1)
	assert.Equal(t, "AAPL", pub.ticks[0].Symbol)

	snap := ing.Store.Snapshot()
	require.Contains(t, snap.Symbols, "AAPL")
	assert.Equal(t, 180.5, snap.Symbols["AAPL"].Last)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.TicksReceived))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.TicksAccepted))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.FetchCycles.WithLabelValues("ok")))
}

func TestIngestorCycleRejectsInvalidTicks(t *testing.T) {
	now := time.Now()
	src := &stubSource{
		symbols: []string{"AAPL", "OLD"},
		ticks: []models.MTick{
			{Symbol: "OLD", Last: 99, Timestamp: now.Add(-time.Hour).UnixMilli()},
			{Symbol: "AAPL", Last: 180.5, Timestamp: now.UnixMilli()},
		},
	}

	ing, pub, m := newTestIngestor(t, src)

	require.NoError(t, ing.RunCycle(context.Background()))

	require.Len(t, pub.ticks, 1)
	assert.Equal(t, "AAPL", pub.ticks[0].Symbol)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.TicksRejected.WithLabelValues("stale")))
	assert.False(t, ing.Store.Empty())
	assert.NotContains(t, ing.Store.Symbols(), "OLD")
}

func TestIngestorCycleOpensBreakerOnFailure(t *testing.T) {
	src := &stubSource{
		symbols: []string{"AAPL"},
		err:     errors.New("upstream down"),
	}

	ing, _, m := newTestIngestor(t, src)

	// Threshold is 1, so the first failed cycle opens the breaker.
	err := ing.RunCycle(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, src.calls)

	err = ing.RunCycle(context.Background())
	require.ErrorIs(t, err, breaker.ErrCircuitOpen)
	assert.Equal(t, 1, src.calls, "open breaker must not reach the source")

	assert.Equal(t, float64(1), testutil.ToFloat64(m.FetchCycles.WithLabelValues("error")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.FetchCycles.WithLabelValues("breaker_open")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.BreakerState))
}

func TestIngestorLastSnapshotSurvivesFailedCycle(t *testing.T) {
	now := time.Now().UnixMilli()
	src := &stubSource{
		symbols: []string{"AAPL"},
		ticks: []models.MTick{
			{Symbol: "AAPL", Last: 180.5, Timestamp: now},
		},
	}

	ing, _, _ := newTestIngestor(t, src)
	require.NoError(t, ing.RunCycle(context.Background()))

	src.err = errors.New("upstream down")
	require.Error(t, ing.RunCycle(context.Background()))

	snap := ing.Store.Snapshot()
	require.Contains(t, snap.Symbols, "AAPL")
	assert.Equal(t, 180.5, snap.Symbols["AAPL"].Last)
}
