package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"zone-backtester/internal/api"
	"zone-backtester/internal/database"
	"zone-backtester/internal/exits"
	"zone-backtester/internal/health"
	"zone-backtester/internal/market"
	"zone-backtester/internal/sim"
)

type Config struct {
	ServerConfig     api.ServerConfig   `json:"server"`
	SessionConfig    api.SessionConfig  `json:"session"`
	DatabaseConfig   database.Config    `json:"database"`
	RedisConfig      market.CacheConfig `json:"redis"`
	MarketDataConfig MarketDataConfig   `json:"market_data"`
	AuthConfig       AuthConfig         `json:"auth"`
	LoggingConfig    LoggingConfig      `json:"logging"`
	SimulationConfig SimulationConfig   `json:"simulation"`
}

// MarketDataConfig holds the aggregates provider credentials.
type MarketDataConfig struct {
	APIKey  string `json:"api_key"`
	BaseURL string `json:"base_url"`
}

type AuthConfig struct {
	Enabled      bool   `json:"enabled"`
	Username     string `json:"username"`
	PasswordHash string `json:"password_hash"` // bcrypt hash of the admin password
	JWTSecret    string `json:"jwt_secret"`
	TokenHours   int    `json:"token_hours"`
}

type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Pretty bool   `json:"pretty"` // console writer instead of JSON
}

// SimulationConfig is the JSON shape of the engine configuration. Durations
// are expressed in minutes so config files stay human-editable.
type SimulationConfig struct {
	EntryTimeframe        string            `json:"entry_timeframe"`
	StructureTimeframes   [4]string         `json:"structure_timeframes"`
	FractalWindow         int               `json:"fractal_window"`
	OriginLookbackMinutes int               `json:"origin_lookback_minutes"`
	Exits                 exits.Config      `json:"exits"`
	Health                health.Thresholds `json:"health"`
	VolumeAvgPeriod       int               `json:"volume_avg_period"`
	FastSMAPeriod         int               `json:"fast_sma_period"`
	SlowSMAPeriod         int               `json:"slow_sma_period"`
	CVDSlopePeriod        int               `json:"cvd_slope_period"`
}

// ToSimConfig converts the JSON shape into the engine configuration.
func (c SimulationConfig) ToSimConfig() sim.Config {
	cfg := sim.Config{
		EntryTimeframe:  market.Timeframe(c.EntryTimeframe),
		FractalWindow:   c.FractalWindow,
		OriginLookback:  time.Duration(c.OriginLookbackMinutes) * time.Minute,
		Exits:           c.Exits,
		Health:          c.Health,
		VolumeAvgPeriod: c.VolumeAvgPeriod,
		FastSMAPeriod:   c.FastSMAPeriod,
		SlowSMAPeriod:   c.SlowSMAPeriod,
		CVDSlopePeriod:  c.CVDSlopePeriod,
	}
	for i, tf := range c.StructureTimeframes {
		cfg.StructureTimeframes[i] = market.Timeframe(tf)
	}
	return cfg
}

func Load() (*Config, error) {
	// First try to load base config from file
	cfg, err := loadFromFile("config.json")
	if err != nil {
		// If no config file, start with defaults
		cfg = &Config{}
	}

	// Apply environment variable overrides (these take precedence)
	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the config.
// Secrets (database password, market data API key, JWT secret) are expected
// to arrive this way in production.
func applyEnvOverrides(cfg *Config) {
	// Server config
	cfg.ServerConfig.Host = getEnvOrDefault("WEB_HOST", cfg.ServerConfig.Host)
	cfg.ServerConfig.Port = getEnvIntOrDefault("WEB_PORT", cfg.ServerConfig.Port)
	cfg.ServerConfig.ProductionMode = getEnvOrDefault("PRODUCTION_MODE", boolString(cfg.ServerConfig.ProductionMode)) == "true"

	// Database config
	cfg.DatabaseConfig.Host = getEnvOrDefault("DB_HOST", cfg.DatabaseConfig.Host)
	cfg.DatabaseConfig.Port = getEnvIntOrDefault("DB_PORT", cfg.DatabaseConfig.Port)
	cfg.DatabaseConfig.User = getEnvOrDefault("DB_USER", cfg.DatabaseConfig.User)
	cfg.DatabaseConfig.Password = getEnvOrDefault("DB_PASSWORD", cfg.DatabaseConfig.Password)
	cfg.DatabaseConfig.Database = getEnvOrDefault("DB_NAME", cfg.DatabaseConfig.Database)
	cfg.DatabaseConfig.SSLMode = getEnvOrDefault("DB_SSLMODE", cfg.DatabaseConfig.SSLMode)

	// Redis config
	cfg.RedisConfig.Enabled = getEnvOrDefault("REDIS_ENABLED", boolString(cfg.RedisConfig.Enabled)) == "true"
	cfg.RedisConfig.Address = getEnvOrDefault("REDIS_ADDRESS", cfg.RedisConfig.Address)
	cfg.RedisConfig.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.RedisConfig.Password)
	cfg.RedisConfig.DB = getEnvIntOrDefault("REDIS_DB", cfg.RedisConfig.DB)

	// Market data config
	cfg.MarketDataConfig.APIKey = getEnvOrDefault("MARKET_DATA_API_KEY", cfg.MarketDataConfig.APIKey)
	cfg.MarketDataConfig.BaseURL = getEnvOrDefault("MARKET_DATA_BASE_URL", cfg.MarketDataConfig.BaseURL)

	// Auth config - ALWAYS apply from environment
	cfg.AuthConfig.Enabled = getEnvOrDefault("AUTH_ENABLED", boolString(cfg.AuthConfig.Enabled)) == "true"
	cfg.AuthConfig.Username = getEnvOrDefault("AUTH_USERNAME", cfg.AuthConfig.Username)
	cfg.AuthConfig.PasswordHash = getEnvOrDefault("AUTH_PASSWORD_HASH", cfg.AuthConfig.PasswordHash)
	cfg.AuthConfig.JWTSecret = getEnvOrDefault("AUTH_JWT_SECRET", cfg.AuthConfig.JWTSecret)
	cfg.AuthConfig.TokenHours = getEnvIntOrDefault("AUTH_TOKEN_HOURS", cfg.AuthConfig.TokenHours)

	// Logging config
	cfg.LoggingConfig.Level = getEnvOrDefault("LOG_LEVEL", cfg.LoggingConfig.Level)
	cfg.LoggingConfig.Pretty = getEnvOrDefault("LOG_PRETTY", boolString(cfg.LoggingConfig.Pretty)) == "true"
}

// applyDefaults fills anything the file and environment both left empty.
func applyDefaults(cfg *Config) {
	if cfg.ServerConfig.Host == "" {
		cfg.ServerConfig.Host = "0.0.0.0"
	}
	if cfg.ServerConfig.Port == 0 {
		cfg.ServerConfig.Port = 8080
	}

	if cfg.SessionConfig.Timezone == "" {
		cfg.SessionConfig.Timezone = "America/New_York"
	}
	if cfg.SessionConfig.Open == "" {
		cfg.SessionConfig.Open = "09:30"
	}
	if cfg.SessionConfig.Close == "" {
		cfg.SessionConfig.Close = "16:00"
	}
	if cfg.SessionConfig.ForcedExit == "" {
		cfg.SessionConfig.ForcedExit = "15:55"
	}
	if cfg.SessionConfig.WarmupMinutes == 0 {
		cfg.SessionConfig.WarmupMinutes = 60
	}

	if cfg.DatabaseConfig.Host == "" {
		cfg.DatabaseConfig.Host = "localhost"
	}
	if cfg.DatabaseConfig.Port == 0 {
		cfg.DatabaseConfig.Port = 5432
	}
	if cfg.DatabaseConfig.User == "" {
		cfg.DatabaseConfig.User = "postgres"
	}
	if cfg.DatabaseConfig.Database == "" {
		cfg.DatabaseConfig.Database = "zone_backtester"
	}
	if cfg.DatabaseConfig.SSLMode == "" {
		cfg.DatabaseConfig.SSLMode = "disable"
	}

	if cfg.RedisConfig.Address == "" {
		cfg.RedisConfig.Address = "localhost:6379"
	}
	if cfg.RedisConfig.TTLHours == 0 {
		cfg.RedisConfig.TTLHours = 72
	}

	if cfg.MarketDataConfig.BaseURL == "" {
		cfg.MarketDataConfig.BaseURL = "https://api.polygon.io"
	}

	if cfg.AuthConfig.TokenHours == 0 {
		cfg.AuthConfig.TokenHours = 12
	}

	if cfg.LoggingConfig.Level == "" {
		cfg.LoggingConfig.Level = "info"
	}

	s := &cfg.SimulationConfig
	if s.EntryTimeframe == "" {
		s.EntryTimeframe = "15s"
	}
	if s.StructureTimeframes == [4]string{} {
		s.StructureTimeframes = [4]string{"1m", "5m", "15m", "1h"}
	}
	if s.FractalWindow == 0 {
		s.FractalWindow = 2
	}
	if s.OriginLookbackMinutes == 0 {
		s.OriginLookbackMinutes = 30
	}
	if s.Exits.StopBuffer == 0 {
		s.Exits.StopBuffer = 0.05
	}
	if s.Exits.RiskMultiple == 0 {
		s.Exits.RiskMultiple = 3
	}
	if s.Health.VolumeROCMin == 0 {
		s.Health.VolumeROCMin = 1.5
	}
	if s.Health.SpreadWidenRatio == 0 {
		s.Health.SpreadWidenRatio = 1.0
	}
	if s.VolumeAvgPeriod == 0 {
		s.VolumeAvgPeriod = 20
	}
	if s.FastSMAPeriod == 0 {
		s.FastSMAPeriod = 9
	}
	if s.SlowSMAPeriod == 0 {
		s.SlowSMAPeriod = 21
	}
	if s.CVDSlopePeriod == 0 {
		s.CVDSlopePeriod = 10
	}
}

func validate(cfg *Config) error {
	if cfg.MarketDataConfig.APIKey == "" {
		return fmt.Errorf("market data API key is required (MARKET_DATA_API_KEY)")
	}
	if cfg.AuthConfig.Enabled {
		if cfg.AuthConfig.JWTSecret == "" {
			return fmt.Errorf("auth is enabled but AUTH_JWT_SECRET is not set")
		}
		if cfg.AuthConfig.Username == "" || cfg.AuthConfig.PasswordHash == "" {
			return fmt.Errorf("auth is enabled but admin credentials are not set")
		}
	}
	simCfg := cfg.SimulationConfig.ToSimConfig()
	return simCfg.Validate()
}

func loadFromFile(filename string) (*Config, error) {
	file, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return &config, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
