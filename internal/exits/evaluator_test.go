package exits

import (
	"testing"
	"time"

	"zone-backtester/internal/market"
	"zone-backtester/internal/structure"
	"zone-backtester/internal/zones"
)

var testZone = zones.Zone{ID: "z1", High: 102, Low: 100, Bias: zones.BiasBullish, Rank: zones.RankPrimary}

func approx(a, b float64) bool {
	d := a - b
	return d < 1e-9 && d > -1e-9
}

func testSession() market.Session {
	start := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	return market.Session{
		Start:      start,
		End:        start.Add(6*time.Hour + 30*time.Minute),
		ForcedExit: start.Add(6*time.Hour + 25*time.Minute),
	}
}

// TestStopBeatsTargetSameBar verifies priority when a single bar's range
// touches both the stop and the target.
func TestStopBeatsTargetSameBar(t *testing.T) {
	e := NewEvaluator(Config{StopBuffer: 0.05})
	sess := testSession()

	bar := market.Bar{
		StartTime: sess.Start.Add(5 * time.Minute),
		Open:      103, High: 110, Low: 99.80, Close: 108,
	}

	dec := e.Evaluate(bar, market.SideLong, testZone, 110, structure.State{}, sess)
	if dec == nil {
		t.Fatal("stop and target both in range, a decision is required")
	}
	if dec.Reason != ReasonStop {
		t.Errorf("stop must outrank target, got %s", dec.Reason)
	}
	if !approx(dec.Price, 99.95) {
		t.Errorf("stop fill should be the buffered boundary 99.95, got %.2f", dec.Price)
	}
}

// TestTargetIntrabar verifies a target is honored on an intrabar touch.
func TestTargetIntrabar(t *testing.T) {
	e := NewEvaluator(Config{StopBuffer: 0.05})
	sess := testSession()

	bar := market.Bar{
		StartTime: sess.Start.Add(5 * time.Minute),
		Open:      105, High: 110.2, Low: 104, Close: 109,
	}

	dec := e.Evaluate(bar, market.SideLong, testZone, 110, structure.State{}, sess)
	if dec == nil || dec.Reason != ReasonTarget {
		t.Fatalf("target touch should close the trade, got %+v", dec)
	}
	if dec.Price != 110 {
		t.Errorf("target fill should be the target level 110, got %.2f", dec.Price)
	}
}

// TestChoCHExitsAtClose verifies a reversal against the trade closes at the
// bar close, not an intrabar level.
func TestChoCHExitsAtClose(t *testing.T) {
	e := NewEvaluator(Config{StopBuffer: 0.05})
	sess := testSession()

	bar := market.Bar{
		StartTime: sess.Start.Add(5 * time.Minute),
		Open:      104, High: 105, Low: 103, Close: 103.5,
	}
	st := structure.State{Direction: structure.DirectionBear, BarBreak: structure.BreakChoCH}

	dec := e.Evaluate(bar, market.SideLong, testZone, 110, st, sess)
	if dec == nil || dec.Reason != ReasonChoCH {
		t.Fatalf("reversal against a long should exit, got %+v", dec)
	}
	if dec.Price != 103.5 {
		t.Errorf("structure exit should fill at the close 103.5, got %.2f", dec.Price)
	}
}

// TestChoCHInFavorIgnored verifies a reversal in the trade's direction does
// not close it.
func TestChoCHInFavorIgnored(t *testing.T) {
	e := NewEvaluator(Config{StopBuffer: 0.05})
	sess := testSession()

	bar := market.Bar{
		StartTime: sess.Start.Add(5 * time.Minute),
		Open:      104, High: 105, Low: 103, Close: 104.5,
	}
	st := structure.State{Direction: structure.DirectionBull, BarBreak: structure.BreakChoCH}

	if dec := e.Evaluate(bar, market.SideLong, testZone, 110, st, sess); dec != nil {
		t.Errorf("reversal into the trade direction must not exit, got %s", dec.Reason)
	}
}

// TestEODAtCutoff verifies the forced exit fires once the cutoff is reached.
func TestEODAtCutoff(t *testing.T) {
	e := NewEvaluator(Config{StopBuffer: 0.05})
	sess := testSession()

	bar := market.Bar{
		StartTime: sess.ForcedExit,
		Open:      104, High: 105, Low: 103, Close: 104.5,
	}

	dec := e.Evaluate(bar, market.SideLong, testZone, 110, structure.State{}, sess)
	if dec == nil || dec.Reason != ReasonEOD {
		t.Fatalf("cutoff bar should force an end-of-day exit, got %+v", dec)
	}
	if dec.Price != 104.5 {
		t.Errorf("forced exit should fill at the close, got %.2f", dec.Price)
	}
}

// TestShortStop mirrors the stop anchoring for shorts.
func TestShortStop(t *testing.T) {
	e := NewEvaluator(Config{StopBuffer: 0.05})
	sess := testSession()

	if got := e.StopPrice(market.SideShort, testZone); !approx(got, 102.05) {
		t.Errorf("short stop should sit above the zone high, got %.2f", got)
	}

	bar := market.Bar{
		StartTime: sess.Start.Add(5 * time.Minute),
		Open:      99, High: 102.10, Low: 98.5, Close: 99.5,
	}
	dec := e.Evaluate(bar, market.SideShort, testZone, 95, structure.State{}, sess)
	if dec == nil || dec.Reason != ReasonStop {
		t.Fatalf("intrabar touch of the short stop should exit, got %+v", dec)
	}
}

// TestTargetPriceFloor verifies the risk-multiple floor lifts a too-close
// precomputed target.
func TestTargetPriceFloor(t *testing.T) {
	e := NewEvaluator(Config{StopBuffer: 0.05, RiskMultiple: 3})

	// Long from 103 with stop 99.95: risk 3.05, 3R target 112.15.
	got := e.TargetPrice(market.SideLong, 103, 110, testZone)
	if !approx(got, 112.15) {
		t.Errorf("3R floor should lift the target to 112.15, got %.2f", got)
	}

	// A precomputed level beyond the floor wins.
	got = e.TargetPrice(market.SideLong, 103, 120, testZone)
	if got != 120 {
		t.Errorf("distant precomputed target should stand, got %.2f", got)
	}

	// Zero risk multiple disables the floor entirely.
	e = NewEvaluator(Config{StopBuffer: 0.05})
	if got := e.TargetPrice(market.SideLong, 103, 110, testZone); got != 110 {
		t.Errorf("disabled floor should pass the level through, got %.2f", got)
	}

	// A level on the wrong side of entry is discarded, not traded.
	if got := e.TargetPrice(market.SideShort, 99, 110, testZone); got != 0 {
		t.Errorf("a level above a short entry must be dropped, got %.2f", got)
	}
}
