package entry

import (
	"zone-backtester/internal/market"
	"zone-backtester/internal/zones"
)

// Model tags the four mutually exclusive entry variants: the cross product
// of {continuation, rejection} x {primary, secondary}.
type Model string

const (
	ModelContinuationPrimary   Model = "CONTINUATION_PRIMARY"
	ModelContinuationSecondary Model = "CONTINUATION_SECONDARY"
	ModelRejectionPrimary      Model = "REJECTION_PRIMARY"
	ModelRejectionSecondary    Model = "REJECTION_SECONDARY"
)

// originSide records which side of the zone price last closed entirely on.
type originSide int

const (
	originUnknown originSide = iota
	originBelow
	originAbove
)

// Signal is a fired entry: the model tag, trade side, and entry price
// (always the triggering bar's close, never a wick).
type Signal struct {
	Model Model       `json:"model"`
	Side  market.Side `json:"side"`
	Price float64     `json:"price"`
}

// Classifier decides, for one bar and one zone, whether a continuation or
// rejection entry fires. At most one model can fire per bar and zone; the
// firing conditions are structurally disjoint (closing beyond the far
// boundary vs. closing back beyond the origin boundary).
type Classifier struct {
	lookback int // bars scanned backward to find the origin side
}

// NewClassifier creates a classifier with the given origin lookback in bars.
// Callers derive the bar count from a wall-clock window via
// Timeframe.BarsForWindow so covered history is cadence-invariant.
func NewClassifier(lookbackBars int) *Classifier {
	if lookbackBars < 1 {
		lookbackBars = 1
	}
	return &Classifier{lookback: lookbackBars}
}

// Evaluate classifies bars[idx] against the zone. It returns the fired
// signal, or nil when no entry fires. skipped is true when the origin side
// could not be determined within the lookback window; that is not an error,
// the evaluation is simply counted and dropped.
func (c *Classifier) Evaluate(bars []market.Bar, idx int, zone zones.Zone) (sig *Signal, skipped bool) {
	if idx < 0 || idx >= len(bars) {
		return nil, false
	}
	bar := bars[idx]
	entered := zone.Intersects(bar.Low, bar.High)

	origin := c.findOrigin(bars, idx, zone)
	if origin == originUnknown {
		return nil, true
	}

	switch origin {
	case originBelow:
		// Continuation: close beyond the far boundary. Wicks never trigger.
		if bar.Close > zone.High {
			return &Signal{Model: continuationModel(zone.Rank), Side: market.SideLong, Price: bar.Close}, false
		}
		// Rejection: price entered the zone but closed back below it.
		if entered && bar.Close < zone.Low {
			return &Signal{Model: rejectionModel(zone.Rank), Side: market.SideShort, Price: bar.Close}, false
		}
	case originAbove:
		if bar.Close < zone.Low {
			return &Signal{Model: continuationModel(zone.Rank), Side: market.SideShort, Price: bar.Close}, false
		}
		if entered && bar.Close > zone.High {
			return &Signal{Model: rejectionModel(zone.Rank), Side: market.SideLong, Price: bar.Close}, false
		}
	}

	// Close landed inside the band: no entry this bar.
	return nil, false
}

// findOrigin scans backward over the lookback window for the last bar that
// closed entirely outside the zone and records which side that was.
func (c *Classifier) findOrigin(bars []market.Bar, idx int, zone zones.Zone) originSide {
	lo := idx - c.lookback
	if lo < 0 {
		lo = 0
	}
	for j := idx - 1; j >= lo; j-- {
		close := bars[j].Close
		if close < zone.Low {
			return originBelow
		}
		if close > zone.High {
			return originAbove
		}
	}
	return originUnknown
}

func continuationModel(r zones.Rank) Model {
	if r == zones.RankPrimary {
		return ModelContinuationPrimary
	}
	return ModelContinuationSecondary
}

func rejectionModel(r zones.Rank) Model {
	if r == zones.RankPrimary {
		return ModelRejectionPrimary
	}
	return ModelRejectionSecondary
}
