package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"marketfeed/src/logger"
	"marketfeed/src/models"

	_ "modernc.org/sqlite"
)

// SQLite batch constants
const (
	sqliteMaxVars   = 32000
	paramsPerCandle = 9
	sqliteBatchSize = sqliteMaxVars / paramsPerCandle
)

// -----------------------------------------------------------------------------

type SQLiteDB struct {
	Config *models.MConfig
	DB     *sql.DB
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewSQLiteDB(cfg *models.MConfig, log *logger.Logger) (*SQLiteDB, error) {
	return &SQLiteDB{
		Config: cfg,
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) Initialize() error {
	db, err := sql.Open("sqlite", d.Config.Storage.DBPath)
	if err != nil {
		return err
	}

	if err := db.Ping(); err != nil {
		return err
	}

	d.DB = db

	// PRAGMA optimizations
	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		d.Logger.Warn("failed to set WAL mode", logger.NewField("error", err.Error()))
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL;"); err != nil {
		d.Logger.Warn("failed to set synchronous mode", logger.NewField("error", err.Error()))
	}

	return d.createTables()
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) createTables() error {
	// SQLite types: INTEGER for int64, REAL for float64, TEXT for string
	candleTable := `
		CREATE TABLE IF NOT EXISTS candles (
			symbol TEXT,
			timeframe TEXT,
			start_time INTEGER,
			open REAL,
			high REAL,
			low REAL,
			close REAL,
			volume REAL,
			tick_count INTEGER,
			PRIMARY KEY (symbol, timeframe, start_time)
		);
	`
	if _, err := d.DB.Exec(candleTable); err != nil {
		return fmt.Errorf("failed to create candles table: %w", err)
	}

	snapshotTable := `
		CREATE TABLE IF NOT EXISTS snapshots (
			captured_at INTEGER PRIMARY KEY,
			payload TEXT
		);
	`
	if _, err := d.DB.Exec(snapshotTable); err != nil {
		return fmt.Errorf("failed to create snapshots table: %w", err)
	}

	return nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) Close() error {
	if d.DB == nil {
		return nil
	}
	return d.DB.Close()
}

// -----------------------------------------------------------------------------
// Candles
// -----------------------------------------------------------------------------

// SaveCandles writes one closed-candle batch in a single transaction,
// chunked below the SQLite bind-variable ceiling.
func (d *SQLiteDB) SaveCandles(batch []models.MCandle) error {
	if len(batch) == 0 {
		return nil
	}

	for start := 0; start < len(batch); start += sqliteBatchSize {
		end := start + sqliteBatchSize
		if end > len(batch) {
			end = len(batch)
		}
		if err := d.saveCandleChunk(batch[start:end]); err != nil {
			return err
		}
	}

	return nil
}

func (d *SQLiteDB) saveCandleChunk(chunk []models.MCandle) error {
	tx, err := d.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO candles
			(symbol, timeframe, start_time, open, high, low, close, volume, tick_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, c := range chunk {
		if _, err := stmt.Exec(
			c.Symbol, string(c.Timeframe), c.StartTime,
			c.Open, c.High, c.Low, c.Close, c.Volume, c.TickCount,
		); err != nil {
			return fmt.Errorf("failed to insert candle %s/%s: %w", c.Symbol, c.Timeframe, err)
		}
	}

	return tx.Commit()
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) LoadCandles(symbol string, tf models.Timeframe, limit int) ([]models.MCandle, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := d.DB.Query(`
		SELECT symbol, timeframe, start_time, open, high, low, close, volume, tick_count
		FROM candles
		WHERE symbol = ? AND timeframe = ?
		ORDER BY start_time DESC
		LIMIT ?
	`, symbol, string(tf), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.MCandle
	for rows.Next() {
		var c models.MCandle
		var tfStr string
		if err := rows.Scan(&c.Symbol, &tfStr, &c.StartTime, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume, &c.TickCount); err != nil {
			return nil, err
		}
		c.Timeframe = models.Timeframe(tfStr)
		out = append(out, c)
	}

	// Chronological order for callers.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}

	return out, rows.Err()
}

// -----------------------------------------------------------------------------
// Snapshots
// -----------------------------------------------------------------------------

func (d *SQLiteDB) SaveSnapshot(snap models.MSnapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	if _, err := d.DB.Exec(`
		INSERT OR REPLACE INTO snapshots (captured_at, payload) VALUES (?, ?)
	`, snap.Timestamp, string(payload)); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}

	// Keep only a short tail of snapshots.
	cutoff := time.Now().Add(-24 * time.Hour).UnixMilli()
	if _, err := d.DB.Exec(`DELETE FROM snapshots WHERE captured_at < ?`, cutoff); err != nil {
		d.Logger.Warn("failed to prune snapshots", logger.NewField("error", err.Error()))
	}

	return nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) LoadSnapshot() (models.MSnapshot, error) {
	var payload string
	err := d.DB.QueryRow(`
		SELECT payload FROM snapshots ORDER BY captured_at DESC LIMIT 1
	`).Scan(&payload)
	if err == sql.ErrNoRows {
		return models.MSnapshot{Symbols: map[string]models.MSymbolState{}}, nil
	}
	if err != nil {
		return models.MSnapshot{}, err
	}

	var snap models.MSnapshot
	if err := json.Unmarshal([]byte(payload), &snap); err != nil {
		return models.MSnapshot{}, fmt.Errorf("failed to decode snapshot: %w", err)
	}

	return snap, nil
}
