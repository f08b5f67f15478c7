package interfaces

import "marketfeed/src/models"

// IDatabase is the persistence boundary: candle batches and snapshots can be
// saved and reloaded. Implementations live in src/storage.
type IDatabase interface {
	Initialize() error
	Close() error

	SaveCandles(batch []models.MCandle) error
	LoadCandles(symbol string, tf models.Timeframe, limit int) ([]models.MCandle, error)

	SaveSnapshot(snap models.MSnapshot) error
	LoadSnapshot() (models.MSnapshot, error)
}
