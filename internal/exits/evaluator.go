package exits

import (
	"zone-backtester/internal/market"
	"zone-backtester/internal/structure"
	"zone-backtester/internal/zones"
)

// Reason identifies why a trade closed.
type Reason string

const (
	ReasonStop   Reason = "STOP"
	ReasonTarget Reason = "TARGET"
	ReasonChoCH  Reason = "CHOCH"
	ReasonEOD    Reason = "EOD"
)

// Config holds the exit parameters fixed at construction.
type Config struct {
	StopBuffer   float64 `json:"stop_buffer"`   // distance beyond the zone boundary, e.g. 0.05
	RiskMultiple float64 `json:"risk_multiple"` // minimum reward as a multiple of risk, e.g. 3
}

// Decision is the single exit chosen for a bar.
type Decision struct {
	Reason Reason  `json:"reason"`
	Price  float64 `json:"price"`
}

// Evaluator applies the exit conditions for one open trade in strict
// descending priority: STOP, TARGET, CHOCH, EOD. The first match closes the
// trade; later conditions on the same bar are never consulted.
type Evaluator struct {
	cfg Config
}

// NewEvaluator creates an evaluator. A zero risk multiple disables the
// risk-multiple floor and uses the precomputed target level alone.
func NewEvaluator(cfg Config) *Evaluator {
	return &Evaluator{cfg: cfg}
}

// StopPrice returns the protective stop anchored to the zone: long trades
// stop below the zone low, shorts above the zone high.
func (e *Evaluator) StopPrice(side market.Side, zone zones.Zone) float64 {
	if side == market.SideLong {
		return zone.Low - e.cfg.StopBuffer
	}
	return zone.High + e.cfg.StopBuffer
}

// TargetPrice returns the greater (for longs; lesser for shorts) of the
// precomputed target level and the fixed risk-multiple from entry.
func (e *Evaluator) TargetPrice(side market.Side, entryPrice, targetLevel float64, zone zones.Zone) float64 {
	// A level on the wrong side of entry can never be a profit target.
	if targetLevel != 0 {
		if side == market.SideLong && targetLevel <= entryPrice {
			targetLevel = 0
		}
		if side == market.SideShort && targetLevel >= entryPrice {
			targetLevel = 0
		}
	}

	stop := e.StopPrice(side, zone)
	risk := entryPrice - stop
	if side == market.SideShort {
		risk = stop - entryPrice
	}
	if risk < 0 {
		risk = 0
	}

	rTarget := entryPrice + e.cfg.RiskMultiple*risk
	if side == market.SideShort {
		rTarget = entryPrice - e.cfg.RiskMultiple*risk
	}
	if e.cfg.RiskMultiple <= 0 {
		return targetLevel
	}
	if targetLevel == 0 {
		return rTarget
	}

	if side == market.SideLong {
		if targetLevel > rTarget {
			return targetLevel
		}
		return rTarget
	}
	if targetLevel < rTarget {
		return targetLevel
	}
	return rTarget
}

// Evaluate checks one bar against the exit conditions and returns the first
// matching decision, or nil while the trade stays open. Stop and target are
// checked against intrabar extremes; ChoCH closes at the bar close; EOD is
// always last and always fires once the cutoff is reached.
func (e *Evaluator) Evaluate(
	bar market.Bar,
	side market.Side,
	zone zones.Zone,
	target float64,
	st structure.State,
	session market.Session,
) *Decision {
	stop := e.StopPrice(side, zone)

	// 1. Stop: intrabar touch or cross of the buffered zone boundary.
	if side == market.SideLong {
		if bar.Low <= stop {
			return &Decision{Reason: ReasonStop, Price: stop}
		}
	} else {
		if bar.High >= stop {
			return &Decision{Reason: ReasonStop, Price: stop}
		}
	}

	// 2. Target: intrabar reach of the target level.
	if target != 0 {
		if side == market.SideLong {
			if bar.High >= target {
				return &Decision{Reason: ReasonTarget, Price: target}
			}
		} else {
			if bar.Low <= target {
				return &Decision{Reason: ReasonTarget, Price: target}
			}
		}
	}

	// 3. Structure reversal against the trade on this bar's timeframe.
	if st.BarBreak == structure.BreakChoCH {
		against := (side == market.SideLong && st.Direction == structure.DirectionBear) ||
			(side == market.SideShort && st.Direction == structure.DirectionBull)
		if against {
			return &Decision{Reason: ReasonChoCH, Price: bar.Close}
		}
	}

	// 4. End of day: a trade never survives past the session cutoff.
	if !bar.StartTime.Before(session.ForcedExit) {
		return &Decision{Reason: ReasonEOD, Price: bar.Close}
	}

	return nil
}
