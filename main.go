package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"zone-backtester/config"
	"zone-backtester/internal/api"
	"zone-backtester/internal/auth"
	"zone-backtester/internal/database"
	"zone-backtester/internal/market"
	"zone-backtester/internal/sim"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Initialize structured logging
	logger := setupLogger(cfg.LoggingConfig)
	logger.Info().Msg("starting zone backtester")

	ctx := context.Background()

	// Database and schema
	db, err := database.NewDB(cfg.DatabaseConfig, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if err := db.RunMigrations(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to run migrations")
	}
	repo := database.NewRepository(db, logger)

	// Market data: HTTP client fronted by Redis bar cache
	client := market.NewClient(cfg.MarketDataConfig.APIKey, cfg.MarketDataConfig.BaseURL)
	bars := market.NewBarCache(cfg.RedisConfig, client, logger)

	// Simulation engine
	runner, err := sim.NewRunner(cfg.SimulationConfig.ToSimConfig(), logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid simulation configuration")
	}

	// Optional JWT auth
	var jwtManager *auth.JWTManager
	if cfg.AuthConfig.Enabled {
		jwtManager = auth.NewJWTManager(
			cfg.AuthConfig.JWTSecret,
			time.Duration(cfg.AuthConfig.TokenHours)*time.Hour,
		)
	}

	server := api.NewServer(
		cfg.ServerConfig,
		cfg.SessionConfig,
		repo,
		bars,
		runner,
		jwtManager,
		cfg.AuthConfig.Username,
		cfg.AuthConfig.PasswordHash,
		logger,
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("server stopped")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown error")
	}
	logger.Info().Msg("stopped")
}

func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.Pretty {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		logger = zerolog.New(os.Stderr)
	}
	return logger.Level(level).With().Timestamp().Logger()
}
