package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"zone-backtester/internal/sim"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Repository persists simulation results, trades and event logs.
type Repository struct {
	db  *DB
	log zerolog.Logger
}

// NewRepository creates a repository over an open connection pool.
func NewRepository(db *DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("component", "Repository").Logger(),
	}
}

// SimulationRecord is the stored header row of one simulated session.
type SimulationRecord struct {
	ID                 int64     `json:"id"`
	Ticker             string    `json:"ticker"`
	SessionStart       time.Time `json:"session_start"`
	SessionEnd         time.Time `json:"session_end"`
	ForcedExit         time.Time `json:"forced_exit"`
	TotalTrades        int       `json:"total_trades"`
	Winners            int       `json:"winners"`
	Losers             int       `json:"losers"`
	WinRate            float64   `json:"win_rate"`
	NetR               float64   `json:"net_r"`
	AvgEntryHealth     float64   `json:"avg_entry_health"`
	SkippedZones       int       `json:"skipped_zones"`
	SkippedEvaluations int       `json:"skipped_evaluations"`
	CreatedAt          time.Time `json:"created_at"`
}

// SaveSessionResult stores the result, its trades and their event logs in a
// single transaction and returns the new simulation ID.
func (r *Repository) SaveSessionResult(ctx context.Context, res *sim.SessionResult) (int64, error) {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var simulationID int64
	err = tx.QueryRow(ctx, `
		INSERT INTO simulations (
			ticker, session_start, session_end, forced_exit,
			total_trades, winners, losers, win_rate, net_r, avg_entry_health,
			skipped_zones, skipped_evaluations
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`,
		res.Ticker, res.Session.Start, res.Session.End, res.Session.ForcedExit,
		res.Summary.TotalTrades, res.Summary.Winners, res.Summary.Losers,
		res.Summary.WinRate, res.Summary.NetR, res.Summary.AvgEntryHealth,
		res.SkippedZones, res.SkippedEvaluations,
	).Scan(&simulationID)
	if err != nil {
		return 0, fmt.Errorf("failed to insert simulation: %w", err)
	}

	for _, t := range res.Trades {
		_, err = tx.Exec(ctx, `
			INSERT INTO sim_trades (
				id, simulation_id, ticker, zone_id, zone_high, zone_low,
				side, model, against_bias, entry_price, entry_time, entry_health,
				stop_price, target_price,
				mfe_price, mfe_time, mae_price, mae_time,
				exit_reason, exit_price, exit_time, r_multiple, health_delta
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
				$13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)`,
			t.ID, simulationID, t.Ticker, t.Zone.ID, t.Zone.High, t.Zone.Low,
			string(t.Side), string(t.Model), t.AgainstBias, t.EntryPrice, t.EntryTime, t.EntryHealth.Value,
			t.StopPrice, t.TargetPrice,
			t.MFEPrice, t.MFETime, t.MAEPrice, t.MAETime,
			string(t.ExitReason), t.ExitPrice, t.ExitTime, t.RMultiple, t.HealthDelta,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert trade %s: %w", t.ID, err)
		}
	}

	for _, ev := range res.Events {
		factors, err := json.Marshal(ev.Factors)
		if err != nil {
			return 0, fmt.Errorf("failed to encode factors for trade %s: %w", ev.TradeID, err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO sim_events (
				trade_id, seq, event_type, event_time, bar_offset,
				price, score, health_delta, factors
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			ev.TradeID, ev.Seq, string(ev.Type), ev.Time, ev.BarOffset,
			ev.Price, ev.Score, ev.HealthDelta, factors,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert event %d for trade %s: %w", ev.Seq, ev.TradeID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	r.log.Info().
		Int64("simulation_id", simulationID).
		Str("ticker", res.Ticker).
		Int("trades", len(res.Trades)).
		Int("events", len(res.Events)).
		Msg("session result saved")

	return simulationID, nil
}

// GetSimulation returns a stored simulation header by ID.
func (r *Repository) GetSimulation(ctx context.Context, id int64) (*SimulationRecord, error) {
	var rec SimulationRecord
	err := r.db.Pool.QueryRow(ctx, `
		SELECT id, ticker, session_start, session_end, forced_exit,
			total_trades, winners, losers, win_rate, net_r, avg_entry_health,
			skipped_zones, skipped_evaluations, created_at
		FROM simulations WHERE id = $1`, id,
	).Scan(
		&rec.ID, &rec.Ticker, &rec.SessionStart, &rec.SessionEnd, &rec.ForcedExit,
		&rec.TotalTrades, &rec.Winners, &rec.Losers, &rec.WinRate, &rec.NetR,
		&rec.AvgEntryHealth, &rec.SkippedZones, &rec.SkippedEvaluations, &rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get simulation %d: %w", id, err)
	}
	return &rec, nil
}

// ListSimulations returns the most recent simulation headers for a ticker.
// An empty ticker lists across all tickers.
func (r *Repository) ListSimulations(ctx context.Context, ticker string, limit int) ([]SimulationRecord, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := `
		SELECT id, ticker, session_start, session_end, forced_exit,
			total_trades, winners, losers, win_rate, net_r, avg_entry_health,
			skipped_zones, skipped_evaluations, created_at
		FROM simulations`
	args := []interface{}{}
	if ticker != "" {
		query += ` WHERE ticker = $1`
		args = append(args, ticker)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d`, limit)

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list simulations: %w", err)
	}
	defer rows.Close()

	var records []SimulationRecord
	for rows.Next() {
		var rec SimulationRecord
		if err := rows.Scan(
			&rec.ID, &rec.Ticker, &rec.SessionStart, &rec.SessionEnd, &rec.ForcedExit,
			&rec.TotalTrades, &rec.Winners, &rec.Losers, &rec.WinRate, &rec.NetR,
			&rec.AvgEntryHealth, &rec.SkippedZones, &rec.SkippedEvaluations, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan simulation: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// TradeRecord is a stored trade row.
type TradeRecord struct {
	ID           string    `json:"id"`
	SimulationID int64     `json:"simulation_id"`
	Ticker       string    `json:"ticker"`
	ZoneID       string    `json:"zone_id"`
	ZoneHigh     float64   `json:"zone_high"`
	ZoneLow      float64   `json:"zone_low"`
	Side         string    `json:"side"`
	Model        string    `json:"model"`
	AgainstBias  bool      `json:"against_bias"`
	EntryPrice   float64   `json:"entry_price"`
	EntryTime    time.Time `json:"entry_time"`
	EntryHealth  int       `json:"entry_health"`
	StopPrice    float64   `json:"stop_price"`
	TargetPrice  float64   `json:"target_price"`
	MFEPrice     float64   `json:"mfe_price"`
	MFETime      time.Time `json:"mfe_time"`
	MAEPrice     float64   `json:"mae_price"`
	MAETime      time.Time `json:"mae_time"`
	ExitReason   string    `json:"exit_reason"`
	ExitPrice    float64   `json:"exit_price"`
	ExitTime     time.Time `json:"exit_time"`
	RMultiple    float64   `json:"r_multiple"`
	HealthDelta  int       `json:"health_delta"`
}

// GetTrades returns all trades of a simulation in entry-time order.
func (r *Repository) GetTrades(ctx context.Context, simulationID int64) ([]TradeRecord, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, simulation_id, ticker, zone_id, zone_high, zone_low,
			side, model, against_bias, entry_price, entry_time, entry_health,
			stop_price, target_price,
			mfe_price, mfe_time, mae_price, mae_time,
			exit_reason, exit_price, exit_time, r_multiple, health_delta
		FROM sim_trades WHERE simulation_id = $1
		ORDER BY entry_time, id`, simulationID)
	if err != nil {
		return nil, fmt.Errorf("failed to get trades for simulation %d: %w", simulationID, err)
	}
	defer rows.Close()

	var trades []TradeRecord
	for rows.Next() {
		var t TradeRecord
		if err := rows.Scan(
			&t.ID, &t.SimulationID, &t.Ticker, &t.ZoneID, &t.ZoneHigh, &t.ZoneLow,
			&t.Side, &t.Model, &t.AgainstBias, &t.EntryPrice, &t.EntryTime, &t.EntryHealth,
			&t.StopPrice, &t.TargetPrice,
			&t.MFEPrice, &t.MFETime, &t.MAEPrice, &t.MAETime,
			&t.ExitReason, &t.ExitPrice, &t.ExitTime, &t.RMultiple, &t.HealthDelta,
		); err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// EventRecord is a stored event row.
type EventRecord struct {
	TradeID     string          `json:"trade_id"`
	Seq         int             `json:"seq"`
	Type        string          `json:"type"`
	Time        time.Time       `json:"time"`
	BarOffset   int             `json:"bar_offset"`
	Price       float64         `json:"price"`
	Score       int             `json:"score"`
	HealthDelta int             `json:"health_delta"`
	Factors     json.RawMessage `json:"factors"`
}

// GetEvents returns the ordered event log of one trade.
func (r *Repository) GetEvents(ctx context.Context, tradeID string) ([]EventRecord, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT trade_id, seq, event_type, event_time, bar_offset,
			price, score, health_delta, factors
		FROM sim_events WHERE trade_id = $1 ORDER BY seq`, tradeID)
	if err != nil {
		return nil, fmt.Errorf("failed to get events for trade %s: %w", tradeID, err)
	}
	defer rows.Close()

	var events []EventRecord
	for rows.Next() {
		var ev EventRecord
		if err := rows.Scan(
			&ev.TradeID, &ev.Seq, &ev.Type, &ev.Time, &ev.BarOffset,
			&ev.Price, &ev.Score, &ev.HealthDelta, &ev.Factors,
		); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
