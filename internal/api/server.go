package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"zone-backtester/internal/auth"
	"zone-backtester/internal/database"
	"zone-backtester/internal/market"
	"zone-backtester/internal/sim"
)

// RateLimiter provides simple in-memory rate limiting per client key.
type RateLimiter struct {
	requests map[string][]time.Time
	mu       sync.Mutex
	limit    int           // max requests
	window   time.Duration // time window
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
	}
}

// Allow checks if a request is allowed for the given key
func (r *RateLimiter) Allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-r.window)

	var recent []time.Time
	for _, t := range r.requests[key] {
		if t.After(windowStart) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= r.limit {
		r.requests[key] = recent
		return false
	}

	r.requests[key] = append(recent, now)
	return true
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host           string `json:"host"`
	Port           int    `json:"port"`
	ProductionMode bool   `json:"production_mode"`
}

// SessionConfig describes the clock-time boundaries applied to every
// simulated day, in the exchange timezone.
type SessionConfig struct {
	Timezone      string `json:"timezone"`        // e.g. America/New_York
	Open          string `json:"open"`            // e.g. 09:30
	Close         string `json:"close"`           // e.g. 16:00
	ForcedExit    string `json:"forced_exit"`     // e.g. 15:55
	WarmupMinutes int    `json:"warmup_minutes"`  // premarket bars fetched for indicator lookback
}

// Server represents the HTTP API server
type Server struct {
	router      *gin.Engine
	httpServer  *http.Server
	repo        *database.Repository
	bars        market.BarFetcher
	runner      *sim.Runner
	hub         *WSHub
	jwtManager  *auth.JWTManager
	authEnabled bool
	adminUser   string
	adminHash   string
	rateLimiter *RateLimiter
	config      ServerConfig
	session     SessionConfig
	log         zerolog.Logger
}

// NewServer creates a new API server
func NewServer(
	config ServerConfig,
	session SessionConfig,
	repo *database.Repository,
	bars market.BarFetcher,
	runner *sim.Runner,
	jwtManager *auth.JWTManager,
	adminUser, adminHash string,
	log zerolog.Logger,
) *Server {
	if config.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		router:      gin.New(),
		repo:        repo,
		bars:        bars,
		runner:      runner,
		hub:         NewWSHub(log),
		jwtManager:  jwtManager,
		authEnabled: jwtManager != nil,
		adminUser:   adminUser,
		adminHash:   adminHash,
		rateLimiter: NewRateLimiter(30, time.Minute),
		config:      config,
		session:     session,
		log:         log.With().Str("component", "APIServer").Logger(),
	}

	// Simulation events stream out to connected websocket clients.
	runner.SetEventSink(s.hub.BroadcastEvent)

	s.router.Use(gin.Recovery())
	s.router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	api := s.router.Group("/api")

	api.GET("/health", s.handleHealth)
	api.POST("/auth/login", s.handleLogin)

	protected := api.Group("")
	if s.authEnabled {
		protected.Use(auth.Middleware(s.jwtManager))
	}
	protected.POST("/simulations", s.rateLimited, s.handleRunSimulation)
	protected.GET("/simulations", s.handleListSimulations)
	protected.GET("/simulations/:id", s.handleGetSimulation)
	protected.GET("/simulations/:id/trades", s.handleGetTrades)
	protected.GET("/trades/:id/events", s.handleGetEvents)

	s.router.GET("/ws", s.handleWebSocket)
}

// rateLimited rejects clients that exceed the per-IP request budget.
func (s *Server) rateLimited(c *gin.Context) {
	if !s.rateLimiter.Allow(c.ClientIP()) {
		errorResponse(c, http.StatusTooManyRequests, "rate limit exceeded")
		c.Abort()
		return
	}
	c.Next()
}

// Start begins serving requests and blocks until the listener fails.
func (s *Server) Start() error {
	go s.hub.Run()

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
	}

	s.log.Info().Str("addr", addr).Msg("API server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
