package server

import (
	"marketfeed/src/models"
)

// -----------------------------------------------------------------------------
// Publisher implementation (interfaces.IPublisher)
// -----------------------------------------------------------------------------

// publish hands a frame to the hub loop. The events queue is bounded; a full
// queue drops the frame rather than blocking the pipeline.
func (s *FeedServer) publish(symbol string, msg *models.MServerMessage) {
	if msg == nil {
		return
	}
	select {
	case s.events <- envelope{symbol: symbol, msg: msg}:
	default:
		s.metrics.DroppedMessages.Inc()
	}
}

// PublishTick delivers an accepted tick to clients subscribed to its symbol.
func (s *FeedServer) PublishTick(tick models.MTick) {
	s.publish(tick.Symbol, models.NewTickMessage(tick))
}

// PublishCandle delivers a closed candle to clients subscribed to its symbol.
func (s *FeedServer) PublishCandle(candle models.MCandle) {
	s.publish(candle.Symbol, models.NewCandleMessage(candle))
}

// PublishTrade delivers an execution to clients subscribed to its symbol.
func (s *FeedServer) PublishTrade(trade models.MTrade) {
	s.publish(trade.Symbol, models.NewTradeMessage(trade))
}

// PublishSnapshot delivers a full snapshot to the global feed.
func (s *FeedServer) PublishSnapshot(snap models.MSnapshot) {
	s.publish(GlobalFeed, models.NewSnapshotMessage(snap))
}
