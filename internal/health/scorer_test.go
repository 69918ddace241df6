package health

import (
	"testing"

	"zone-backtester/internal/market"
	"zone-backtester/internal/structure"
)

// healthyLongInputs returns inputs where all ten sub-factors pass for a long.
func healthyLongInputs() Inputs {
	return Inputs{
		TimeframeDirections: [4]structure.Direction{
			structure.DirectionBull, structure.DirectionBull,
			structure.DirectionBull, structure.DirectionBull,
		},
		VolumeROC:      2.0,
		BarVolumeDelta: 500,
		CVDSlope:       1.2,
		FastSMA:        101,
		SlowSMA:        100,
		SMASpread:      1.0,
		PrevSMASpread:  0.5,
		Price:          101.5,
		VWAP:           100.5,
	}
}

// TestAllFactorsHealthy verifies a fully aligned long scores 10 and lands in
// the STRONG tier.
func TestAllFactorsHealthy(t *testing.T) {
	s := NewScorer(Thresholds{VolumeROCMin: 1.5, SpreadWidenRatio: 1.0})

	score := s.Evaluate(healthyLongInputs(), market.SideLong)
	if score.Value != 10 {
		t.Errorf("all factors healthy should score 10, got %d", score.Value)
	}
	if score.Tier() != TierStrong {
		t.Errorf("score 10 should be STRONG, got %s", score.Tier())
	}
}

// TestTierBoundaries checks the exact bucket edges.
func TestTierBoundaries(t *testing.T) {
	cases := []struct {
		value int
		tier  Tier
	}{
		{10, TierStrong},
		{8, TierStrong},
		{7, TierModerate},
		{6, TierModerate},
		{5, TierWeak},
		{4, TierWeak},
		{3, TierCritical},
		{0, TierCritical},
	}
	for _, tc := range cases {
		got := Score{Value: tc.value}.Tier()
		if got != tc.tier {
			t.Errorf("score %d: expected %s, got %s", tc.value, tc.tier, got)
		}
	}
}

// TestFactorDegradation flips individual inputs and checks the count drops
// exactly as the sub-factors fail.
func TestFactorDegradation(t *testing.T) {
	s := NewScorer(Thresholds{VolumeROCMin: 1.5, SpreadWidenRatio: 1.0})

	in := healthyLongInputs()
	in.TimeframeDirections[0] = structure.DirectionNeutral
	in.TimeframeDirections[1] = structure.DirectionBear

	score := s.Evaluate(in, market.SideLong)
	if score.Value != 8 {
		t.Errorf("two misaligned timeframes should score 8, got %d", score.Value)
	}
	if score.Factors.AlignTF1 || score.Factors.AlignTF2 {
		t.Error("misaligned timeframes should be marked unhealthy")
	}

	in.VolumeROC = 1.0 // below threshold
	score = s.Evaluate(in, market.SideLong)
	if score.Value != 7 {
		t.Errorf("expected 7 after volume ROC failed, got %d", score.Value)
	}
	if score.Tier() != TierModerate {
		t.Errorf("score 7 should be MODERATE, got %s", score.Tier())
	}
}

// TestShortSideMirrors verifies the same raw inputs flip meaning with trade
// direction instead of using a separate evaluation path.
func TestShortSideMirrors(t *testing.T) {
	s := NewScorer(Thresholds{VolumeROCMin: 1.5, SpreadWidenRatio: 1.0})

	in := healthyLongInputs()
	score := s.Evaluate(in, market.SideShort)

	if score.Factors.AlignTF1 {
		t.Error("bull structure must not align with a short")
	}
	if score.Factors.VolumeDelta {
		t.Error("positive volume delta must not be healthy for a short")
	}
	if score.Factors.VWAPSide {
		t.Error("price above VWAP must not be healthy for a short")
	}
	// Momentum is direction-agnostic: the spread is widening either way.
	if !score.Factors.SMAMomentum {
		t.Error("widening SMA spread should stay healthy regardless of side")
	}
}

// TestEvaluationIsDeterministic verifies identical inputs always produce the
// identical factor set, whether computed at entry or bars later.
func TestEvaluationIsDeterministic(t *testing.T) {
	s := NewScorer(Thresholds{VolumeROCMin: 1.5, SpreadWidenRatio: 1.0})

	in := healthyLongInputs()
	first := s.Evaluate(in, market.SideLong)
	second := s.Evaluate(in, market.SideLong)

	if first != second {
		t.Errorf("same inputs must evaluate identically: %+v vs %+v", first, second)
	}
}

// TestIndicatorHelpers exercises the raw input builders on a small series.
func TestIndicatorHelpers(t *testing.T) {
	bars := []market.Bar{
		{Open: 100, High: 102, Low: 99, Close: 101, Volume: 1000},
		{Open: 101, High: 103, Low: 100, Close: 102, Volume: 1200},
		{Open: 102, High: 104, Low: 101, Close: 103, Volume: 3000},
	}

	sma := CalculateSMA(bars, 3)
	if sma < 101.9 || sma > 102.1 {
		t.Errorf("SMA(3) of 101,102,103 should be 102, got %.4f", sma)
	}

	roc := VolumeRateOfChange(bars, 2)
	// 3000 against the prior average (1000+1200)/2 = 1100.
	if roc < 2.7 || roc > 2.8 {
		t.Errorf("volume ROC should be ~2.73, got %.4f", roc)
	}

	delta := BarVolumeDelta(bars[2])
	if delta != 3000 {
		t.Errorf("bullish bar delta should be +3000, got %.1f", delta)
	}
	down := BarVolumeDelta(market.Bar{Open: 103, Close: 102, Volume: 500})
	if down != -500 {
		t.Errorf("bearish bar delta should be -500, got %.1f", down)
	}

	vwap := SessionVWAP(bars)
	if vwap <= 0 {
		t.Errorf("session VWAP should be positive, got %.4f", vwap)
	}
}
