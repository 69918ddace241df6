package entry

import (
	"testing"

	"zone-backtester/internal/market"
	"zone-backtester/internal/zones"
)

func testZone(rank zones.Rank) zones.Zone {
	return zones.Zone{ID: "z1", High: 102, Low: 100, Bias: zones.BiasBullish, Rank: rank}
}

func bar(open, high, low, close float64) market.Bar {
	return market.Bar{Open: open, High: high, Low: low, Close: close}
}

// TestContinuationLong approaches from below and closes beyond the far
// boundary: a long continuation at the bar close.
func TestContinuationLong(t *testing.T) {
	c := NewClassifier(30)
	z := testZone(zones.RankPrimary)

	bars := []market.Bar{
		bar(98.5, 99.5, 98, 99), // origin: closed entirely below the zone
		bar(99.5, 103.5, 99, 103),
	}

	sig, skipped := c.Evaluate(bars, 1, z)
	if skipped {
		t.Fatal("origin was determinable, evaluation must not be skipped")
	}
	if sig == nil {
		t.Fatal("continuation entry should fire on a close above the zone high")
	}
	if sig.Model != ModelContinuationPrimary {
		t.Errorf("expected CONTINUATION_PRIMARY, got %s", sig.Model)
	}
	if sig.Side != market.SideLong {
		t.Errorf("continuation from below should be LONG, got %s", sig.Side)
	}
	if sig.Price != 103 {
		t.Errorf("entry price should be the bar close 103, got %.2f", sig.Price)
	}
}

// TestRejectionShort approaches from below, trades into the zone, and closes
// back below it: a short rejection.
func TestRejectionShort(t *testing.T) {
	c := NewClassifier(30)
	z := testZone(zones.RankSecondary)

	bars := []market.Bar{
		bar(98.5, 99.5, 98, 99),
		bar(99.5, 101.5, 98.5, 99), // entered the zone, closed back under
	}

	sig, skipped := c.Evaluate(bars, 1, z)
	if skipped || sig == nil {
		t.Fatal("rejection entry should fire")
	}
	if sig.Model != ModelRejectionSecondary {
		t.Errorf("expected REJECTION_SECONDARY, got %s", sig.Model)
	}
	if sig.Side != market.SideShort {
		t.Errorf("rejection of a zone approached from below should be SHORT, got %s", sig.Side)
	}
}

// TestRejectionRequiresEntry verifies a bar that never traded into the zone
// cannot fire a rejection even if it closes outside on the origin side.
func TestRejectionRequiresEntry(t *testing.T) {
	c := NewClassifier(30)
	z := testZone(zones.RankPrimary)

	bars := []market.Bar{
		bar(98.5, 99.5, 98, 99),
		bar(99, 99.5, 98, 98.5), // stayed entirely below the zone
	}

	sig, skipped := c.Evaluate(bars, 1, z)
	if skipped {
		t.Fatal("origin was determinable")
	}
	if sig != nil {
		t.Errorf("no entry should fire without zone interaction, got %s", sig.Model)
	}
}

// TestWickDoesNotTrigger verifies a wick through the far boundary without a
// close beyond it fires nothing.
func TestWickDoesNotTrigger(t *testing.T) {
	c := NewClassifier(30)
	z := testZone(zones.RankPrimary)

	bars := []market.Bar{
		bar(98.5, 99.5, 98, 99),
		bar(99.5, 103, 99.5, 101), // wick above 102, close inside
	}

	sig, _ := c.Evaluate(bars, 1, z)
	if sig != nil {
		t.Errorf("wick beyond the boundary must not fire, got %s", sig.Model)
	}
}

// TestAmbiguousOriginSkipped verifies that when every lookback close sits
// inside the band, the evaluation is skipped rather than guessed.
func TestAmbiguousOriginSkipped(t *testing.T) {
	c := NewClassifier(30)
	z := testZone(zones.RankPrimary)

	bars := []market.Bar{
		bar(100.5, 101.5, 100.2, 101), // closed inside the zone
		bar(101, 103.5, 100.5, 103),
	}

	sig, skipped := c.Evaluate(bars, 1, z)
	if !skipped {
		t.Error("undeterminable origin should be reported as skipped")
	}
	if sig != nil {
		t.Error("skipped evaluation must not produce a signal")
	}
}

// TestContinuationShortFromAbove mirrors the long case from the other side.
func TestContinuationShortFromAbove(t *testing.T) {
	c := NewClassifier(30)
	z := testZone(zones.RankPrimary)

	bars := []market.Bar{
		bar(103.5, 104, 102.5, 103), // origin above
		bar(103, 103, 98.5, 99),
	}

	sig, skipped := c.Evaluate(bars, 1, z)
	if skipped || sig == nil {
		t.Fatal("continuation entry should fire on a close below the zone low")
	}
	if sig.Model != ModelContinuationPrimary || sig.Side != market.SideShort {
		t.Errorf("expected short CONTINUATION_PRIMARY, got %s %s", sig.Side, sig.Model)
	}
}

// TestOneModelPerBar sweeps a series against the zone and checks no bar ever
// produces more than one interpretation: Evaluate is first-match on
// structurally disjoint conditions, and the origin side pins the meaning.
func TestOneModelPerBar(t *testing.T) {
	c := NewClassifier(30)
	z := testZone(zones.RankPrimary)

	bars := []market.Bar{
		bar(98.5, 99.5, 98, 99),
		bar(99.5, 101.5, 99, 101),
		bar(101, 103.5, 100.5, 103),
		bar(103, 104, 102.5, 103.5),
		bar(103.5, 103.5, 98.5, 99),
	}

	for i := 1; i < len(bars); i++ {
		sig, _ := c.Evaluate(bars, i, z)
		if sig == nil {
			continue
		}
		// The fired model must be consistent with the bar's close location.
		switch sig.Model {
		case ModelContinuationPrimary, ModelContinuationSecondary:
			if bars[i].Close > z.Low && bars[i].Close < z.High {
				t.Errorf("bar %d: continuation fired with close inside the zone", i)
			}
		case ModelRejectionPrimary, ModelRejectionSecondary:
			if !z.Intersects(bars[i].Low, bars[i].High) {
				t.Errorf("bar %d: rejection fired without zone interaction", i)
			}
		}
	}
}
