package zones

import (
	"encoding/json"
	"fmt"
	"os"
)

// Bias represents the directional expectation attached to a zone.
type Bias string

const (
	BiasBullish Bias = "bullish"
	BiasBearish Bias = "bearish"
)

// Rank distinguishes the primary zone of a session plan from secondary ones.
type Rank string

const (
	RankPrimary   Rank = "primary"
	RankSecondary Rank = "secondary"
)

// Zone is an externally supplied price band. It is immutable for the life of
// one trading session; entries and stops are anchored to it.
type Zone struct {
	ID   string  `json:"id"`
	High float64 `json:"high"`
	Low  float64 `json:"low"`
	Bias Bias    `json:"bias"`
	Rank Rank    `json:"rank"`
}

// Width returns the price span of the zone.
func (z Zone) Width() float64 {
	return z.High - z.Low
}

// ContainsPrice reports whether p falls inside the band (boundaries included).
func (z Zone) ContainsPrice(p float64) bool {
	return p >= z.Low && p <= z.High
}

// Intersects reports whether the price range [low, high] overlaps the band.
func (z Zone) Intersects(low, high float64) bool {
	return low <= z.High && high >= z.Low
}

// Validate checks the zone definition is usable.
func (z Zone) Validate() error {
	if z.ID == "" {
		return fmt.Errorf("zone has no id")
	}
	if z.High <= z.Low {
		return fmt.Errorf("zone %s: high %.4f must exceed low %.4f", z.ID, z.High, z.Low)
	}
	switch z.Bias {
	case BiasBullish, BiasBearish:
	default:
		return fmt.Errorf("zone %s: unknown bias %q", z.ID, z.Bias)
	}
	switch z.Rank {
	case RankPrimary, RankSecondary:
	default:
		return fmt.Errorf("zone %s: unknown rank %q", z.ID, z.Rank)
	}
	return nil
}

// Plan is the set of zones for one (ticker, session) pair.
type Plan struct {
	Ticker string `json:"ticker"`
	Date   string `json:"date"` // YYYY-MM-DD
	Zones  []Zone `json:"zones"`
}

// Validate checks every zone in the plan.
func (p Plan) Validate() error {
	if p.Ticker == "" {
		return fmt.Errorf("plan has no ticker")
	}
	seen := make(map[string]bool, len(p.Zones))
	for _, z := range p.Zones {
		if err := z.Validate(); err != nil {
			return err
		}
		if seen[z.ID] {
			return fmt.Errorf("duplicate zone id %s", z.ID)
		}
		seen[z.ID] = true
	}
	return nil
}

// LoadPlan reads a zone plan from a JSON file.
func LoadPlan(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read zone plan: %w", err)
	}
	var plan Plan
	if err := json.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("failed to parse zone plan: %w", err)
	}
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	return &plan, nil
}
