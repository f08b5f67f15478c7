package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"marketfeed/src/logger"
	"marketfeed/src/models"

	_ "github.com/lib/pq"
)

// -----------------------------------------------------------------------------

type PostgresDB struct {
	Config *models.MConfig
	DB     *sql.DB
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewPostgresDB(cfg *models.MConfig, log *logger.Logger) (*PostgresDB, error) {
	return &PostgresDB{
		Config: cfg,
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Initialize() error {
	db, err := sql.Open("postgres", d.Config.Storage.DBConnectionString)
	if err != nil {
		return err
	}

	if err := db.Ping(); err != nil {
		return err
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	d.DB = db
	return d.createTables()
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) createTables() error {
	candleTable := `
		CREATE TABLE IF NOT EXISTS candles (
			symbol TEXT,
			timeframe TEXT,
			start_time BIGINT,
			open DOUBLE PRECISION,
			high DOUBLE PRECISION,
			low DOUBLE PRECISION,
			close DOUBLE PRECISION,
			volume DOUBLE PRECISION,
			tick_count BIGINT,
			PRIMARY KEY (symbol, timeframe, start_time)
		);
	`
	if _, err := d.DB.Exec(candleTable); err != nil {
		return fmt.Errorf("failed to create candles table: %w", err)
	}

	snapshotTable := `
		CREATE TABLE IF NOT EXISTS snapshots (
			captured_at BIGINT PRIMARY KEY,
			payload JSONB
		);
	`
	if _, err := d.DB.Exec(snapshotTable); err != nil {
		return fmt.Errorf("failed to create snapshots table: %w", err)
	}

	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Close() error {
	if d.DB == nil {
		return nil
	}
	return d.DB.Close()
}

// -----------------------------------------------------------------------------
// Candles
// -----------------------------------------------------------------------------

func (d *PostgresDB) SaveCandles(batch []models.MCandle) error {
	if len(batch) == 0 {
		return nil
	}

	tx, err := d.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO candles
			(symbol, timeframe, start_time, open, high, low, close, volume, tick_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (symbol, timeframe, start_time) DO UPDATE SET
			open = EXCLUDED.open,
			high = EXCLUDED.high,
			low = EXCLUDED.low,
			close = EXCLUDED.close,
			volume = EXCLUDED.volume,
			tick_count = EXCLUDED.tick_count
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, c := range batch {
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

func (d *PostgresDB) LoadCandles(symbol string, tf models.Timeframe, limit int) ([]models.MCandle, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := d.DB.Query(`
		SELECT symbol, timeframe, start_time, open, high, low, close, volume, tick_count
		FROM candles
		WHERE symbol = $1 AND timeframe = $2
		ORDER BY start_time DESC
		LIMIT $3
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

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}

	return out, rows.Err()
}

// -----------------------------------------------------------------------------
// Snapshots
// -----------------------------------------------------------------------------

func (d *PostgresDB) SaveSnapshot(snap models.MSnapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	if _, err := d.DB.Exec(`
		INSERT INTO snapshots (captured_at, payload) VALUES ($1, $2)
		ON CONFLICT (captured_at) DO UPDATE SET payload = EXCLUDED.payload
	`, snap.Timestamp, string(payload)); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}

	cutoff := time.Now().Add(-24 * time.Hour).UnixMilli()
	if _, err := d.DB.Exec(`DELETE FROM snapshots WHERE captured_at < $1`, cutoff); err != nil {
		d.Logger.Warn("failed to prune snapshots", logger.NewField("error", err.Error()))
	}

	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) LoadSnapshot() (models.MSnapshot, error) {
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
