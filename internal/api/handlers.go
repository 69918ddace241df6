package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"zone-backtester/internal/auth"
	"zone-backtester/internal/database"
	"zone-backtester/internal/market"
	"zone-backtester/internal/sim"
	"zone-backtester/internal/zones"
)

// handleHealth reports service liveness.
// GET /api/health
func (s *Server) handleHealth(c *gin.Context) {
	successResponse(c, gin.H{"status": "ok"})
}

// handleLogin exchanges admin credentials for a JWT.
// POST /api/auth/login
func (s *Server) handleLogin(c *gin.Context) {
	if !s.authEnabled {
		errorResponse(c, http.StatusNotFound, "authentication is disabled")
		return
	}

	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	if req.Username != s.adminUser || !auth.CheckPassword(req.Password, s.adminHash) {
		errorResponse(c, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := s.jwtManager.GenerateToken(auth.UserClaims{Username: req.Username})
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, "failed to issue token")
		return
	}
	successResponse(c, gin.H{"token": token})
}

// simulationRequest is the body of a run request. Zones come straight from
// the caller's session plan; targets are optional per-zone levels.
type simulationRequest struct {
	Ticker  string             `json:"ticker" binding:"required"`
	Date    string             `json:"date" binding:"required"` // YYYY-MM-DD
	Zones   []zones.Zone       `json:"zones" binding:"required"`
	Targets map[string]float64 `json:"targets"`
}

// handleRunSimulation fetches bar data, simulates the session and persists
// the result.
// POST /api/simulations
func (s *Server) handleRunSimulation(c *gin.Context) {
	var req simulationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	session, err := s.buildSession(req.Date)
	if err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	input, err := s.buildSessionInput(c, req, session)
	if err != nil {
		errorResponse(c, http.StatusBadGateway, "failed to fetch bar data: "+err.Error())
		return
	}

	results, errs := s.runner.RunAll([]sim.SessionInput{*input})
	if len(errs) > 0 {
		if errors.Is(errs[0].Err, sim.ErrNoBars) {
			errorResponse(c, http.StatusUnprocessableEntity, "no bar data for session")
			return
		}
		errorResponse(c, http.StatusInternalServerError, errs[0].Error())
		return
	}
	result := results[0]

	simulationID, err := s.repo.SaveSessionResult(c.Request.Context(), result)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, "failed to save result: "+err.Error())
		return
	}

	successResponse(c, gin.H{
		"simulation_id": simulationID,
		"result":        result,
	})
}

// buildSession composes the session boundaries for a trading date from the
// configured clock times.
func (s *Server) buildSession(date string) (market.Session, error) {
	loc, err := time.LoadLocation(s.session.Timezone)
	if err != nil {
		return market.Session{}, fmt.Errorf("invalid session timezone: %w", err)
	}

	day, err := time.ParseInLocation("2006-01-02", date, loc)
	if err != nil {
		return market.Session{}, fmt.Errorf("invalid date format (use YYYY-MM-DD): %w", err)
	}

	parseClock := func(clock string) (time.Time, error) {
		t, err := time.ParseInLocation("15:04", clock, loc)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid session clock time %q: %w", clock, err)
		}
		return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, loc), nil
	}

	sess := market.Session{}
	if sess.Start, err = parseClock(s.session.Open); err != nil {
		return sess, err
	}
	if sess.End, err = parseClock(s.session.Close); err != nil {
		return sess, err
	}
	if sess.ForcedExit, err = parseClock(s.session.ForcedExit); err != nil {
		return sess, err
	}
	return sess, sess.Validate()
}

// buildSessionInput fetches the entry-timeframe series (with premarket
// warmup for indicator lookback) and every structure-timeframe series.
// All fetching completes before the simulation pass begins.
func (s *Server) buildSessionInput(c *gin.Context, req simulationRequest, session market.Session) (*sim.SessionInput, error) {
	cfg := s.runner.Config()
	ctx := c.Request.Context()

	warmup := time.Duration(s.session.WarmupMinutes) * time.Minute
	from := session.Start.Add(-warmup)

	bars, err := s.bars.GetBars(ctx, req.Ticker, cfg.EntryTimeframe, from, session.End)
	if err != nil {
		return nil, err
	}

	structureBars := make(map[market.Timeframe][]market.Bar, len(cfg.StructureTimeframes))
	for _, tf := range cfg.StructureTimeframes {
		if _, done := structureBars[tf]; done {
			continue
		}
		series, err := s.bars.GetBars(ctx, req.Ticker, tf, from, session.End)
		if err != nil {
			return nil, err
		}
		structureBars[tf] = series
	}

	return &sim.SessionInput{
		Ticker:        req.Ticker,
		Session:       session,
		Bars:          bars,
		Zones:         req.Zones,
		StructureBars: structureBars,
		Targets:       req.Targets,
	}, nil
}

// handleListSimulations returns recent simulation headers.
// GET /api/simulations?ticker=AAPL&limit=50
func (s *Server) handleListSimulations(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	records, err := s.repo.ListSimulations(c.Request.Context(), c.Query("ticker"), limit)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}
	successResponse(c, records)
}

// handleGetSimulation returns one stored simulation header.
// GET /api/simulations/:id
func (s *Server) handleGetSimulation(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid simulation ID")
		return
	}

	record, err := s.repo.GetSimulation(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			errorResponse(c, http.StatusNotFound, "simulation not found")
			return
		}
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}
	successResponse(c, record)
}

// handleGetTrades returns the trades of one simulation.
// GET /api/simulations/:id/trades
func (s *Server) handleGetTrades(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid simulation ID")
		return
	}

	trades, err := s.repo.GetTrades(c.Request.Context(), id)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}
	successResponse(c, trades)
}

// handleGetEvents returns the ordered event log of one trade.
// GET /api/trades/:id/events
func (s *Server) handleGetEvents(c *gin.Context) {
	events, err := s.repo.GetEvents(c.Request.Context(), c.Param("id"))
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}
	successResponse(c, events)
}
