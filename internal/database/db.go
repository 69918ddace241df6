package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// DB wraps the PostgreSQL connection pool
type DB struct {
	Pool *pgxpool.Pool
	log  zerolog.Logger
}

// Config holds database configuration
type Config struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"ssl_mode"`
}

// NewDB creates a new database connection
func NewDB(cfg Config, log zerolog.Logger) (*DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	logger := log.With().Str("component", "Database").Logger()
	logger.Info().Str("database", cfg.Database).Msg("connected to PostgreSQL")

	return &DB{Pool: pool, log: logger}, nil
}

// Close closes the database connection
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
		db.log.Info().Msg("database connection closed")
	}
}

// RunMigrations executes database migrations
func (db *DB) RunMigrations(ctx context.Context) error {
	db.log.Info().Msg("running database migrations")

	migrations := []string{
		`CREATE TABLE IF NOT EXISTS simulations (
			id SERIAL PRIMARY KEY,
			ticker VARCHAR(16) NOT NULL,
			session_start TIMESTAMPTZ NOT NULL,
			session_end TIMESTAMPTZ NOT NULL,
			forced_exit TIMESTAMPTZ NOT NULL,
			total_trades INT NOT NULL,
			winners INT NOT NULL,
			losers INT NOT NULL,
			win_rate DECIMAL(6, 2) NOT NULL,
			net_r DECIMAL(12, 4) NOT NULL,
			avg_entry_health DECIMAL(5, 2) NOT NULL,
			skipped_zones INT NOT NULL,
			skipped_evaluations INT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS sim_trades (
			id VARCHAR(36) PRIMARY KEY,
			simulation_id BIGINT NOT NULL REFERENCES simulations(id) ON DELETE CASCADE,
			ticker VARCHAR(16) NOT NULL,
			zone_id VARCHAR(64) NOT NULL,
			zone_high DECIMAL(20, 8) NOT NULL,
			zone_low DECIMAL(20, 8) NOT NULL,
			side VARCHAR(5) NOT NULL,
			model VARCHAR(32) NOT NULL,
			against_bias BOOLEAN NOT NULL DEFAULT FALSE,
			entry_price DECIMAL(20, 8) NOT NULL,
			entry_time TIMESTAMPTZ NOT NULL,
			entry_health INT NOT NULL,
			stop_price DECIMAL(20, 8) NOT NULL,
			target_price DECIMAL(20, 8) NOT NULL,
			mfe_price DECIMAL(20, 8) NOT NULL,
			mfe_time TIMESTAMPTZ NOT NULL,
			mae_price DECIMAL(20, 8) NOT NULL,
			mae_time TIMESTAMPTZ NOT NULL,
			exit_reason VARCHAR(8) NOT NULL,
			exit_price DECIMAL(20, 8) NOT NULL,
			exit_time TIMESTAMPTZ NOT NULL,
			r_multiple DECIMAL(12, 4) NOT NULL,
			health_delta INT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS sim_events (
			id SERIAL PRIMARY KEY,
			trade_id VARCHAR(36) NOT NULL REFERENCES sim_trades(id) ON DELETE CASCADE,
			seq INT NOT NULL,
			event_type VARCHAR(16) NOT NULL,
			event_time TIMESTAMPTZ NOT NULL,
			bar_offset INT NOT NULL,
			price DECIMAL(20, 8) NOT NULL,
			score INT NOT NULL,
			health_delta INT NOT NULL,
			factors JSONB NOT NULL,
			UNIQUE (trade_id, seq)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_sim_trades_simulation ON sim_trades(simulation_id)`,
		`CREATE INDEX IF NOT EXISTS idx_sim_events_trade ON sim_events(trade_id)`,
		`CREATE INDEX IF NOT EXISTS idx_simulations_ticker ON simulations(ticker, session_start)`,
	}

	for i, migration := range migrations {
		if _, err := db.Pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	db.log.Info().Msg("database migrations completed")
	return nil
}
