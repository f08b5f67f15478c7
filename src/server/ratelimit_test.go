package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiterAllowsUpToMax(t *testing.T) {
	rl := NewRateLimiter(30, time.Minute)

	for i := 0; i < 30; i++ {
		require.NoError(t, rl.Allow("client-1"), "request %d should pass", i+1)
	}

	// The 31st request within the window is rejected.
	assert.ErrorIs(t, rl.Allow("client-1"), ErrRateLimited)
}

func TestRateLimiterWindowRollover(t *testing.T) {
	now := time.Unix(1700000000, 0)
	rl := NewRateLimiter(2, time.Minute)
	rl.now = func() time.Time { return now }

	require.NoError(t, rl.Allow("client-1"))
	require.NoError(t, rl.Allow("client-1"))
	require.ErrorIs(t, rl.Allow("client-1"), ErrRateLimited)

	now = now.Add(time.Minute)
	assert.NoError(t, rl.Allow("client-1"), "a fresh window admits requests again")
}

func TestRateLimiterClientsAreIndependent(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)

	require.NoError(t, rl.Allow("client-1"))
	require.ErrorIs(t, rl.Allow("client-1"), ErrRateLimited)

	assert.NoError(t, rl.Allow("client-2"))
}

func TestRateLimiterForget(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)

	require.NoError(t, rl.Allow("client-1"))
	require.ErrorIs(t, rl.Allow("client-1"), ErrRateLimited)

	rl.Forget("client-1")
	assert.NoError(t, rl.Allow("client-1"))
}
