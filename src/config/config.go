package config

import (
	"fmt"
	"os"

	"marketfeed/src/models"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// -----------------------------------------------------------------------------

// Config wraps models.MConfig and provides business logic methods
type Config struct {
	*models.MConfig
}

// -----------------------------------------------------------------------------

// NewConfig builds the effective configuration: defaults, then the YAML file
// (optional), then environment variables. A .env file is honored when present.
func NewConfig(configPath string) (*Config, error) {
	_ = godotenv.Load()

	modelConfig := defaults()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file '%s': %w", configPath, err)
		}
		if err := yaml.Unmarshal(data, modelConfig); err != nil {
			return nil, fmt.Errorf("failed to parse config from YAML: %w", err)
		}
	}

	if err := env.Parse(modelConfig); err != nil {
		return nil, fmt.Errorf("failed to apply env overrides: %w", err)
	}

	config := &Config{MConfig: modelConfig}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// -----------------------------------------------------------------------------

// defaults returns the documented default for every tunable.
func defaults() *models.MConfig {
	return &models.MConfig{
		Name:     "marketfeed",
		Host:     "0.0.0.0",
		Port:     8080,
		LogLevel: "info",
		Storage: models.MStorageConfig{
			DBType: "sqlite",
			DBPath: "marketfeed.db",
		},
		Network: models.MNetworkConfig{
			RequestTimeout: 10,
			UserAgent:      "marketfeed/1.0",
		},
		DataSource: models.MDataSourceConfig{
			Name:                  "http",
			UpdateIntervalSeconds: 5,
			BatchSize:             50,
			BatchDelayMs:          200,
		},
		Validation: models.MValidationConfig{
			MaxTickAgeMs:             5 * 60 * 1000,
			MaxFutureTickMs:          30 * 1000,
			MaxSpreadPercent:         10,
			TickDuplicateToleranceMs: 500,
		},
		Candles: models.MCandlesConfig{
			Timeframes:           []string{"1m", "5m", "15m", "1h", "4h", "1d"},
			BufferSize:           100,
			FlushCheckIntervalMs: 10 * 1000,
		},
		Breaker: models.MBreakerConfig{
			FailureThreshold: 5,
			ResetTimeoutMs:   60 * 1000,
			SuccessThreshold: 2,
		},
		Retry: models.MRetryConfig{
			MaxAttempts:       3,
			InitialDelayMs:    1000,
			MaxDelayMs:        30 * 1000,
			BackoffMultiplier: 2,
			JitterFactor:      0.3,
		},
		RateLimit: models.MRateLimitConfig{
			MaxRequests:         30,
			WindowMs:            60 * 1000,
			MaxSymbolsPerClient: 100,
		},
		Snapshot: models.MSnapshotConfig{
			HistorySize:        1000,
			BroadcastIntervalS: 30,
		},
	}
}

// -----------------------------------------------------------------------------

// Validate performs basic configuration validation
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("application name cannot be empty")
	}
	if c.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid server port number: %d", c.Port)
	}

	if c.Storage.DBType != "sqlite" && c.Storage.DBType != "postgres" {
		return fmt.Errorf("unsupported database type: %s", c.Storage.DBType)
	}
	if c.Storage.DBType == "sqlite" && c.Storage.DBPath == "" {
		return fmt.Errorf("database path cannot be empty for sqlite")
	}
	if c.Storage.DBType == "postgres" && c.Storage.DBConnectionString == "" {
		return fmt.Errorf("connection string cannot be empty for postgres")
	}

	if c.Network.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be greater than 0")
	}

	if c.DataSource.UpdateIntervalSeconds <= 0 {
		return fmt.Errorf("update interval must be greater than 0")
	}
	if len(c.DataSource.Symbols) == 0 {
		return fmt.Errorf("at least one symbol must be configured")
	}

	if c.Validation.MaxTickAgeMs <= 0 {
		return fmt.Errorf("max tick age must be greater than 0")
	}
	if c.Validation.MaxFutureTickMs <= 0 {
		return fmt.Errorf("max future tick must be greater than 0")
	}
	if c.Validation.MaxSpreadPercent <= 0 {
		return fmt.Errorf("max spread percent must be greater than 0")
	}

	if len(c.Candles.Timeframes) == 0 {
		return fmt.Errorf("at least one candle timeframe must be configured")
	}
	for _, tf := range c.Candles.Timeframes {
		if !models.Timeframe(tf).Valid() {
			return fmt.Errorf("unknown candle timeframe: %s", tf)
		}
	}
	if c.Candles.BufferSize <= 0 {
		return fmt.Errorf("candle buffer size must be greater than 0")
	}

	if c.Breaker.FailureThreshold <= 0 {
		return fmt.Errorf("breaker failure threshold must be greater than 0")
	}
	if c.Breaker.SuccessThreshold <= 0 {
		return fmt.Errorf("breaker success threshold must be greater than 0")
	}

	if c.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("retry max attempts must be greater than 0")
	}
	if c.Retry.BackoffMultiplier < 1 {
		return fmt.Errorf("retry backoff multiplier must be at least 1")
	}

	if c.RateLimit.MaxRequests <= 0 || c.RateLimit.WindowMs <= 0 {
		return fmt.Errorf("rate limit window and max requests must be greater than 0")
	}
	if c.RateLimit.MaxSymbolsPerClient <= 0 {
		return fmt.Errorf("max symbols per client must be greater than 0")
	}

	return nil
}

// -----------------------------------------------------------------------------

// Save persists the current configuration to the specified YAML file path
func (c *Config) Save(configPath string) error {
	data, err := yaml.Marshal(c.MConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config to file '%s': %w", configPath, err)
	}

	return nil
}
