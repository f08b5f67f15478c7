package models

import "time"

// MConfig Structure. Every field can be overridden from the environment; the
// yaml file provides the base layer.
type MConfig struct {
	Name     string `yaml:"name" env:"APP_NAME"`
	Host     string `yaml:"host" env:"HOST"`
	Port     int    `yaml:"port" env:"PORT"`
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL"`
	APIKey   string `yaml:"api_key" env:"API_KEY"` // guards /refresh when set

	Storage    MStorageConfig    `yaml:"storage"`
	Network    MNetworkConfig    `yaml:"network"`
	DataSource MDataSourceConfig `yaml:"data_source"`
	Validation MValidationConfig `yaml:"validation"`
	Candles    MCandlesConfig    `yaml:"candles"`
	Breaker    MBreakerConfig    `yaml:"circuit_breaker"`
	Retry      MRetryConfig      `yaml:"retry"`
	RateLimit  MRateLimitConfig  `yaml:"rate_limit"`
	Snapshot   MSnapshotConfig   `yaml:"snapshot"`
}

type MStorageConfig struct {
	DBType             string `yaml:"db_type" env:"DB_TYPE"` // "sqlite" | "postgres"
	DBPath             string `yaml:"db_path" env:"DB_PATH"`
	DBConnectionString string `yaml:"db_connection_string" env:"DB_CONNECTION_STRING"`
}

type MNetworkConfig struct {
	RequestTimeout int    `yaml:"timeout" env:"REQUEST_TIMEOUT_SECONDS"`
	UserAgent      string `yaml:"user_agent" env:"USER_AGENT"`
}

type MDataSourceConfig struct {
	Name                  string   `yaml:"name" env:"SOURCE_NAME"`
	BaseURL               string   `yaml:"base_url" env:"SOURCE_BASE_URL"`
	APIKey                string   `yaml:"api_key" env:"SOURCE_API_KEY"`
	Symbols               []string `yaml:"symbols" env:"SYMBOLS" envSeparator:","`
	UpdateIntervalSeconds int      `yaml:"update_interval_seconds" env:"UPDATE_INTERVAL_SECONDS"`
	BatchSize             int      `yaml:"batch_size" env:"SOURCE_BATCH_SIZE"`
	BatchDelayMs          int      `yaml:"batch_delay_ms" env:"SOURCE_BATCH_DELAY_MS"`
	MarketHoursOnly       bool     `yaml:"market_hours_only" env:"MARKET_HOURS_ONLY"`
}

type MValidationConfig struct {
	MaxTickAgeMs             int64   `yaml:"max_tick_age_ms" env:"MAX_TICK_AGE_MS"`
	MaxFutureTickMs          int64   `yaml:"max_future_tick_ms" env:"MAX_FUTURE_TICK_MS"`
	MaxSpreadPercent         float64 `yaml:"max_spread_percent" env:"MAX_SPREAD_PERCENT"`
	TickDuplicateToleranceMs int64   `yaml:"tick_duplicate_tolerance_ms" env:"TICK_DUPLICATE_TOLERANCE_MS"`
}

type MCandlesConfig struct {
	Timeframes           []string `yaml:"timeframes" env:"CANDLE_TIMEFRAMES" envSeparator:","`
	BufferSize           int      `yaml:"buffer_size" env:"CANDLE_BUFFER_SIZE"`
	FlushCheckIntervalMs int      `yaml:"flush_check_interval_ms" env:"CANDLE_FLUSH_CHECK_INTERVAL_MS"`
}

type MBreakerConfig struct {
	FailureThreshold int   `yaml:"failure_threshold" env:"BREAKER_FAILURE_THRESHOLD"`
	ResetTimeoutMs   int64 `yaml:"reset_timeout_ms" env:"BREAKER_RESET_TIMEOUT_MS"`
	SuccessThreshold int   `yaml:"success_threshold" env:"BREAKER_SUCCESS_THRESHOLD"`
}

type MRetryConfig struct {
	MaxAttempts       int     `yaml:"max_attempts" env:"RETRY_MAX_ATTEMPTS"`
	InitialDelayMs    int64   `yaml:"initial_delay_ms" env:"RETRY_INITIAL_DELAY_MS"`
	MaxDelayMs        int64   `yaml:"max_delay_ms" env:"RETRY_MAX_DELAY_MS"`
	BackoffMultiplier float64 `yaml:"backoff_multiplier" env:"RETRY_BACKOFF_MULTIPLIER"`
	JitterFactor      float64 `yaml:"jitter_factor" env:"RETRY_JITTER_FACTOR"`
}

type MRateLimitConfig struct {
	MaxRequests         int   `yaml:"max_requests" env:"RATE_LIMIT_MAX_REQUESTS"`
	WindowMs            int64 `yaml:"window_ms" env:"RATE_LIMIT_WINDOW_MS"`
	MaxSymbolsPerClient int   `yaml:"max_symbols_per_client" env:"MAX_SYMBOLS_PER_CLIENT"`
}

type MSnapshotConfig struct {
	HistorySize        int `yaml:"history_size" env:"SNAPSHOT_HISTORY_SIZE"`
	BroadcastIntervalS int `yaml:"broadcast_interval_seconds" env:"SNAPSHOT_BROADCAST_INTERVAL_SECONDS"`
}

// -----------------------------------------------------------------------------
// Duration helpers (config keeps raw ints so env/yaml stay plain numbers)
// -----------------------------------------------------------------------------

func (c MValidationConfig) MaxTickAge() time.Duration {
	return time.Duration(c.MaxTickAgeMs) * time.Millisecond
}

func (c MValidationConfig) MaxFutureTick() time.Duration {
	return time.Duration(c.MaxFutureTickMs) * time.Millisecond
}

func (c MValidationConfig) DuplicateTolerance() time.Duration {
	return time.Duration(c.TickDuplicateToleranceMs) * time.Millisecond
}

func (c MBreakerConfig) ResetTimeout() time.Duration {
	return time.Duration(c.ResetTimeoutMs) * time.Millisecond
}

func (c MRetryConfig) InitialDelay() time.Duration {
	return time.Duration(c.InitialDelayMs) * time.Millisecond
}

func (c MRetryConfig) MaxDelay() time.Duration {
	return time.Duration(c.MaxDelayMs) * time.Millisecond
}

func (c MRateLimitConfig) Window() time.Duration {
	return time.Duration(c.WindowMs) * time.Millisecond
}

func (c MCandlesConfig) FlushCheckInterval() time.Duration {
	return time.Duration(c.FlushCheckIntervalMs) * time.Millisecond
}
