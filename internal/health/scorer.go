package health

import (
	"zone-backtester/internal/market"
	"zone-backtester/internal/structure"
)

// Tier buckets a composite score.
type Tier string

const (
	TierStrong   Tier = "STRONG"   // 8-10
	TierModerate Tier = "MODERATE" // 6-7
	TierWeak     Tier = "WEAK"     // 4-5
	TierCritical Tier = "CRITICAL" // 0-3
)

// Inputs carries the raw numeric signals a health evaluation reads. The same
// struct is built identically at entry time and on every subsequent bar;
// there is no pre-classified label path.
type Inputs struct {
	// Structural direction of each configured higher timeframe, coarsest last.
	TimeframeDirections [4]structure.Direction

	// Volume signals.
	VolumeROC      float64 // current volume / rolling average volume
	BarVolumeDelta float64 // signed volume of the current bar
	CVDSlope       float64 // per-bar slope of cumulative volume delta

	// Moving-average signals.
	FastSMA       float64
	SlowSMA       float64
	SMASpread     float64 // fast - slow, current bar
	PrevSMASpread float64 // fast - slow, previous bar

	// Price location.
	Price float64
	VWAP  float64
}

// Thresholds are the deployment-chosen cutoffs, passed in at construction.
type Thresholds struct {
	VolumeROCMin     float64 `json:"volume_roc_min"`     // e.g. 1.5 = 150% of average
	SpreadWidenRatio float64 `json:"spread_widen_ratio"` // e.g. 1.05 = 5% wider than prior
}

// Factors holds the ten boolean sub-factor states behind a score.
type Factors struct {
	AlignTF1    bool `json:"align_tf1"`
	AlignTF2    bool `json:"align_tf2"`
	AlignTF3    bool `json:"align_tf3"`
	AlignTF4    bool `json:"align_tf4"`
	VolumeROC   bool `json:"volume_roc"`
	VolumeDelta bool `json:"volume_delta"`
	CVDSlope    bool `json:"cvd_slope"`
	SMAAlign    bool `json:"sma_align"`
	SMAMomentum bool `json:"sma_momentum"`
	VWAPSide    bool `json:"vwap_side"`
}

// Count returns how many sub-factors are healthy.
func (f Factors) Count() int {
	n := 0
	for _, b := range [10]bool{
		f.AlignTF1, f.AlignTF2, f.AlignTF3, f.AlignTF4,
		f.VolumeROC, f.VolumeDelta, f.CVDSlope,
		f.SMAAlign, f.SMAMomentum, f.VWAPSide,
	} {
		if b {
			n++
		}
	}
	return n
}

// Score is a composite 0-10 health value plus its sub-factor states.
type Score struct {
	Value   int     `json:"value"`
	Factors Factors `json:"factors"`
}

// Tier returns the bucket the score falls into. Boundaries are exact:
// 8 is STRONG, 7 is MODERATE, 5 is WEAK, 3 is CRITICAL.
func (s Score) Tier() Tier {
	switch {
	case s.Value >= 8:
		return TierStrong
	case s.Value >= 6:
		return TierModerate
	case s.Value >= 4:
		return TierWeak
	default:
		return TierCritical
	}
}

// Scorer evaluates the ten sub-factors against a trade direction.
type Scorer struct {
	thresholds Thresholds
}

// NewScorer creates a scorer with the given thresholds.
func NewScorer(t Thresholds) *Scorer {
	if t.VolumeROCMin <= 0 {
		t.VolumeROCMin = 1.5
	}
	if t.SpreadWidenRatio <= 0 {
		t.SpreadWidenRatio = 1.0
	}
	return &Scorer{thresholds: t}
}

// Evaluate computes the composite score for one trade direction from raw
// inputs. Called identically at entry and at every bar while open.
func (s *Scorer) Evaluate(in Inputs, side market.Side) Score {
	f := Factors{
		AlignTF1:    directionAligned(in.TimeframeDirections[0], side),
		AlignTF2:    directionAligned(in.TimeframeDirections[1], side),
		AlignTF3:    directionAligned(in.TimeframeDirections[2], side),
		AlignTF4:    directionAligned(in.TimeframeDirections[3], side),
		VolumeROC:   s.volumeROCHealthy(in),
		VolumeDelta: volumeDeltaHealthy(in, side),
		CVDSlope:    cvdSlopeHealthy(in, side),
		SMAAlign:    smaAlignHealthy(in, side),
		SMAMomentum: s.smaMomentumHealthy(in),
		VWAPSide:    vwapSideHealthy(in, side),
	}
	return Score{Value: f.Count(), Factors: f}
}

// Each sub-factor below is a single pure function of raw inputs and
// direction; there is no alternate evaluation path.

func directionAligned(d structure.Direction, side market.Side) bool {
	if side == market.SideLong {
		return d == structure.DirectionBull
	}
	return d == structure.DirectionBear
}

func (s *Scorer) volumeROCHealthy(in Inputs) bool {
	return in.VolumeROC > s.thresholds.VolumeROCMin
}

func volumeDeltaHealthy(in Inputs, side market.Side) bool {
	if side == market.SideLong {
		return in.BarVolumeDelta > 0
	}
	return in.BarVolumeDelta < 0
}

func cvdSlopeHealthy(in Inputs, side market.Side) bool {
	if side == market.SideLong {
		return in.CVDSlope > 0
	}
	return in.CVDSlope < 0
}

func smaAlignHealthy(in Inputs, side market.Side) bool {
	if in.FastSMA == 0 || in.SlowSMA == 0 {
		return false
	}
	if side == market.SideLong {
		return in.FastSMA > in.SlowSMA
	}
	return in.FastSMA < in.SlowSMA
}

// smaMomentumHealthy checks the fast/slow spread is widening: the current
// absolute spread must exceed the previous one by the configured ratio.
func (s *Scorer) smaMomentumHealthy(in Inputs) bool {
	cur := abs(in.SMASpread)
	prev := abs(in.PrevSMASpread)
	if prev == 0 {
		return cur > 0
	}
	return cur > prev*s.thresholds.SpreadWidenRatio
}

func vwapSideHealthy(in Inputs, side market.Side) bool {
	if in.VWAP == 0 {
		return false
	}
	if side == market.SideLong {
		return in.Price > in.VWAP
	}
	return in.Price < in.VWAP
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
