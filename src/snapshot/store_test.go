package snapshot

import (
	"testing"
	"time"

	"marketfeed/src/logger"
	"marketfeed/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore() *Store {
	return NewStore(models.MSnapshotConfig{HistorySize: 5}, nil, logger.NewLogger("snapshot-test", "error"))
}

func tickAt(symbol string, last float64, ts int64) models.MTick {
	return models.MTick{Symbol: symbol, Last: last, Source: "test", Timestamp: ts}
}

// -----------------------------------------------------------------------------

func TestStoreTracksLatestState(t *testing.T) {
	s := testStore()
	now := time.Now().UnixMilli()

	s.Update(tickAt("BTC-USD", 50000, now))
	s.Update(tickAt("BTC-USD", 51000, now+1000))

	snap := s.Snapshot()
	state, ok := snap.Symbols["BTC-USD"]
	require.True(t, ok)
	assert.Equal(t, 51000.0, state.Last)
	assert.InDelta(t, 2.0, state.ChangePercent, 1e-9, "change is relative to the session open")
}

func TestStoreEmptyUntilFirstTick(t *testing.T) {
	s := testStore()
	assert.True(t, s.Empty())

	s.Update(tickAt("BTC-USD", 50000, time.Now().UnixMilli()))
	assert.False(t, s.Empty())
}

func TestStoreSymbols(t *testing.T) {
	s := testStore()
	now := time.Now().UnixMilli()

	s.Update(tickAt("BTC-USD", 50000, now))
	s.Update(tickAt("ETH-USD", 3000, now))

	assert.ElementsMatch(t, []string{"BTC-USD", "ETH-USD"}, s.Symbols())
}

func TestStoreHistoryIsBounded(t *testing.T) {
	s := testStore()
	base := time.Now().UnixMilli()

	for i := 0; i < 10; i++ {
		s.Update(tickAt("BTC-USD", 50000+float64(i), base+int64(i)))
	}

	history := s.History("BTC-USD", 100)
	require.Len(t, history, 5, "ring capacity bounds the history")
	assert.Equal(t, 50005.0, history[0].Last)
	assert.Equal(t, 50009.0, history[4].Last)
}

func TestStoreHistoryUnknownSymbol(t *testing.T) {
	s := testStore()
	assert.Empty(t, s.History("NOPE", 10))
}
