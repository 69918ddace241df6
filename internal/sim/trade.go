package sim

import (
	"time"

	"github.com/google/uuid"

	"zone-backtester/internal/entry"
	"zone-backtester/internal/exits"
	"zone-backtester/internal/health"
	"zone-backtester/internal/market"
	"zone-backtester/internal/zones"
)

// Trade is the central mutable aggregate of one simulated position. It is
// created when the entry classifier fires and finalized exactly once when
// the exit state machine closes it; a closed trade is never reopened.
type Trade struct {
	ID     string      `json:"id"`
	Ticker string      `json:"ticker"`
	Zone   zones.Zone  `json:"zone"`
	Side   market.Side `json:"side"`
	Model  entry.Model `json:"model"`

	// AgainstBias marks a trade whose fired side contradicts the zone's
	// declared bias, e.g. a rejection short off a bullish zone.
	AgainstBias bool `json:"against_bias"`

	EntryPrice  float64      `json:"entry_price"`
	EntryTime   time.Time    `json:"entry_time"`
	EntryBar    int          `json:"entry_bar"`
	EntryHealth health.Score `json:"entry_health"`

	StopPrice   float64 `json:"stop_price"`
	TargetPrice float64 `json:"target_price"`

	MFEPrice     float64   `json:"mfe_price"`
	MFETime      time.Time `json:"mfe_time"`
	MFEBarOffset int       `json:"mfe_bar_offset"`
	MAEPrice     float64   `json:"mae_price"`
	MAETime      time.Time `json:"mae_time"`
	MAEBarOffset int       `json:"mae_bar_offset"`

	ExitReason  exits.Reason `json:"exit_reason,omitempty"`
	ExitPrice   float64      `json:"exit_price,omitempty"`
	ExitTime    time.Time    `json:"exit_time,omitempty"`
	ExitBar     int          `json:"exit_bar,omitempty"`
	RMultiple   float64      `json:"r_multiple"`
	HealthDelta int          `json:"health_delta"`
}

// newTradeID derives a deterministic UUID from the trade's identity so that
// replaying an identical input produces byte-identical output.
func newTradeID(ticker, zoneID string, entryTime time.Time) string {
	name := ticker + "|" + zoneID + "|" + entryTime.UTC().Format(time.RFC3339Nano)
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String()
}

// Closed reports whether the trade has been finalized.
func (t *Trade) Closed() bool {
	return t.ExitReason != ""
}

// Risk returns the entry-to-stop distance used for R-multiples.
func (t *Trade) Risk() float64 {
	r := t.EntryPrice - t.StopPrice
	if t.Side == market.SideShort {
		r = t.StopPrice - t.EntryPrice
	}
	if r < 0 {
		return 0
	}
	return r
}

// finalize records the exit and computes the realized R-multiple.
func (t *Trade) finalize(reason exits.Reason, price float64, at time.Time, bar int) {
	t.ExitReason = reason
	t.ExitPrice = price
	t.ExitTime = at
	t.ExitBar = bar

	risk := t.Risk()
	if risk > 0 {
		pnl := price - t.EntryPrice
		if t.Side == market.SideShort {
			pnl = t.EntryPrice - price
		}
		t.RMultiple = pnl / risk
	}
}
