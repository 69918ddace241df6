package sim

import (
	"time"

	"zone-backtester/internal/health"
)

// EventType identifies the emitted trade lifecycle records.
type EventType string

const (
	EventEntry        EventType = "ENTRY"
	EventHealthChange EventType = "HEALTH_CHANGE"
	EventMFE          EventType = "MFE"
	EventMAE          EventType = "MAE"
	EventExit         EventType = "EXIT"
)

// Event is an immutable emitted record. Times are always canonical: derived
// from the trade's entry/exit anchors and the bar offset, never taken from a
// raw bar timestamp that may fall outside the trading session.
type Event struct {
	Seq         int            `json:"seq"` // 1-based within the trade
	Type        EventType      `json:"type"`
	TradeID     string         `json:"trade_id"`
	Time        time.Time      `json:"time"`
	BarOffset   int            `json:"bar_offset"`
	Price       float64        `json:"price"`
	Score       int            `json:"score"`
	HealthDelta int            `json:"health_delta"`
	Factors     health.Factors `json:"factors"`
}
