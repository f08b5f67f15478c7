package interfaces

import "marketfeed/src/models"

// IPublisher fans events out to interested subscribers. Implemented by the
// server hub; delivery to a slow client must never block the caller.
type IPublisher interface {
	PublishTick(tick models.MTick)
	PublishCandle(candle models.MCandle)
	PublishTrade(trade models.MTrade)
	PublishSnapshot(snap models.MSnapshot)
}
