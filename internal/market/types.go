package market

import (
	"fmt"
	"time"
)

// Bar represents a single OHLCV sample at a fixed timeframe.
// Bars are immutable once produced by the data provider. Sequences are
// time-ordered and gap-tolerant: missing intervals are never synthesized.
type Bar struct {
	StartTime time.Time `json:"start_time"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// Bullish returns true if the bar closed above its open.
func (b Bar) Bullish() bool {
	return b.Close > b.Open
}

// TypicalPrice returns (high + low + close) / 3, used for VWAP.
func (b Bar) TypicalPrice() float64 {
	return (b.High + b.Low + b.Close) / 3
}

// Side represents the direction of a trade.
type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// Opposite returns the other trade side.
func (s Side) Opposite() Side {
	if s == SideLong {
		return SideShort
	}
	return SideLong
}

// Timeframe represents a chart timeframe
type Timeframe string

const (
	TF15s Timeframe = "15s"
	TF1m  Timeframe = "1m"
	TF5m  Timeframe = "5m"
	TF15m Timeframe = "15m"
	TF1h  Timeframe = "1h"
	TF1d  Timeframe = "1d"
)

// Duration returns the wall-clock length of one bar at this timeframe.
func (tf Timeframe) Duration() time.Duration {
	switch tf {
	case TF15s:
		return 15 * time.Second
	case TF1m:
		return time.Minute
	case TF5m:
		return 5 * time.Minute
	case TF15m:
		return 15 * time.Minute
	case TF1h:
		return time.Hour
	case TF1d:
		return 24 * time.Hour
	default:
		return 0
	}
}

// Valid reports whether the timeframe is one of the supported intervals.
func (tf Timeframe) Valid() bool {
	return tf.Duration() > 0
}

// BarsForWindow converts a wall-clock window to a bar count at this
// timeframe, so the covered history stays constant regardless of cadence.
func (tf Timeframe) BarsForWindow(window time.Duration) int {
	d := tf.Duration()
	if d <= 0 || window <= 0 {
		return 0
	}
	n := int(window / d)
	if n < 1 {
		n = 1
	}
	return n
}

// Session describes the trading window of one (ticker, day) combination.
// ForcedExit is the cutoff at which any open trade is closed.
type Session struct {
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	ForcedExit time.Time `json:"forced_exit"`
}

// Contains reports whether t falls inside the session trading window.
func (s Session) Contains(t time.Time) bool {
	return !t.Before(s.Start) && !t.After(s.End)
}

// Clamp returns t constrained to the session trading window.
func (s Session) Clamp(t time.Time) time.Time {
	if t.Before(s.Start) {
		return s.Start
	}
	if t.After(s.End) {
		return s.End
	}
	return t
}

// Validate checks session boundaries are ordered.
func (s Session) Validate() error {
	if !s.End.After(s.Start) {
		return fmt.Errorf("session end %s is not after start %s", s.End, s.Start)
	}
	if s.ForcedExit.Before(s.Start) || s.ForcedExit.After(s.End) {
		return fmt.Errorf("forced exit %s is outside session [%s, %s]", s.ForcedExit, s.Start, s.End)
	}
	return nil
}
