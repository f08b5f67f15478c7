package server

import (
	"context"
	"testing"
	"time"

	"marketfeed/src/models"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// hubClient builds a client wired to the hub but without a websocket
// connection; tests read delivered frames straight off the send queue.
func hubClient(s *FeedServer, queueSize int) *Client {
	return &Client{
		id:   uuid.NewString(),
		hub:  s,
		send: make(chan *models.MServerMessage, queueSize),
	}
}

func recvFrame(t *testing.T, c *Client) *models.MServerMessage {
	t.Helper()
	select {
	case msg := <-c.send:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
		return nil
	}
}

func startHub(t *testing.T) (*FeedServer, context.CancelFunc) {
	t.Helper()
	s := testServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	go s.run(ctx)
	return s, cancel
}

// -----------------------------------------------------------------------------
// Fanout
// -----------------------------------------------------------------------------

func TestHubDeliversOnlyToSubscribedClients(t *testing.T) {
	s, cancel := startHub(t)
	defer cancel()

	subscribed := hubClient(s, sendQueueSize)
	bystander := hubClient(s, sendQueueSize)
	s.register <- subscribed
	s.register <- bystander

	require.NoError(t, s.registry.Subscribe(subscribed.id, []string{"BTC-USD"}))

	s.PublishTick(models.MTick{Symbol: "BTC-USD", Last: 50000, Timestamp: time.Now().UnixMilli()})

	msg := recvFrame(t, subscribed)
	assert.Equal(t, "tick", msg.Type)
	assert.Contains(t, string(msg.Data), "BTC-USD")

	// The hub loop handled the event before delivering to subscribed, so an
	// empty queue here means the bystander was skipped, not raced.
	assert.Empty(t, bystander.send)
}

func TestHubSnapshotReachesGlobalFeedOnly(t *testing.T) {
	s, cancel := startHub(t)
	defer cancel()

	global := hubClient(s, sendQueueSize)
	symbolOnly := hubClient(s, sendQueueSize)
	s.register <- global
	s.register <- symbolOnly

	require.NoError(t, s.registry.Subscribe(global.id, []string{GlobalFeed}))
	require.NoError(t, s.registry.Subscribe(symbolOnly.id, []string{"ETH-USD"}))

	s.store.Update(models.MTick{Symbol: "ETH-USD", Last: 3000, Timestamp: time.Now().UnixMilli()})
	s.PublishSnapshot(s.store.Snapshot())

	msg := recvFrame(t, global)
	assert.Equal(t, "snapshot", msg.Type)
	assert.Empty(t, symbolOnly.send)
}

// -----------------------------------------------------------------------------
// Backpressure
// -----------------------------------------------------------------------------

func TestEnqueueEvictsOldestWhenFull(t *testing.T) {
	c := hubClient(testServer(t), 2)

	first := models.NewPongMessage()
	second := models.NewAckMessage("subscribed", []string{"A"})
	third := models.NewAckMessage("subscribed", []string{"B"})

	assert.True(t, c.enqueue(first))
	assert.True(t, c.enqueue(second))
	assert.False(t, c.enqueue(third), "overflow must report a drop")

	got := []*models.MServerMessage{<-c.send, <-c.send}
	assert.Equal(t, second, got[0], "oldest frame must be the one evicted")
	assert.Equal(t, third, got[1])
	assert.Empty(t, c.send)
}

func TestHubCountsDroppedFrames(t *testing.T) {
	s, cancel := startHub(t)
	defer cancel()

	slow := hubClient(s, 1)
	s.register <- slow
	require.NoError(t, s.registry.Subscribe(slow.id, []string{"BTC-USD"}))

	s.PublishTick(models.MTick{Symbol: "BTC-USD", Last: 50000, Timestamp: time.Now().UnixMilli()})
	s.PublishTick(models.MTick{Symbol: "BTC-USD", Last: 50010, Timestamp: time.Now().UnixMilli()})

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(s.metrics.DroppedMessages) == 1
	}, 2*time.Second, 10*time.Millisecond, "the second frame must be counted as dropped")

	// Drop-oldest keeps the freshest tick queued.
	msg := recvFrame(t, slow)
	assert.Equal(t, "tick", msg.Type)
	assert.Contains(t, string(msg.Data), "50010")
}

// -----------------------------------------------------------------------------
// Shutdown
// -----------------------------------------------------------------------------

func TestHubShutdownToleratesLateFrames(t *testing.T) {
	s, cancel := startHub(t)

	client := hubClient(s, sendQueueSize)
	s.register <- client

	cancel()
	select {
	case <-s.done:
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not shut down")
	}

	// The read pump may still be parsing frames while the hub tears the
	// client down; a late message must be discarded, not crash the process.
	require.NotPanics(t, func() {
		s.handleClientMessage(client, []byte(`{"type":"ping"}`))
	})
	assert.False(t, client.enqueue(models.NewPongMessage()))
}

func TestClientCloseSendIsIdempotent(t *testing.T) {
	c := hubClient(testServer(t), 1)

	require.NotPanics(t, func() {
		c.closeSend()
		c.closeSend()
	})
	assert.False(t, c.enqueue(models.NewPongMessage()))
}
