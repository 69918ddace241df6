package structure

import (
	"testing"

	"zone-backtester/internal/market"
)

func bar(high, low, close float64) market.Bar {
	return market.Bar{Open: close, High: high, Low: low, Close: close}
}

// TestNeutralBelowWindow verifies the state stays neutral until enough bars
// exist on both sides of a fractal candidate.
func TestNeutralBelowWindow(t *testing.T) {
	d := NewDetector(2)

	for _, b := range []market.Bar{
		bar(10, 1, 9),
		bar(11, 2, 10),
		bar(13, 3, 12),
		bar(11, 4, 10),
	} {
		st := d.Update(b)
		if st.Direction != DirectionNeutral {
			t.Errorf("direction should stay neutral with %d bars, got %s", 4, st.Direction)
		}
		if st.HasStrong || st.HasWeak {
			t.Error("no levels should exist before any fractal is confirmed")
		}
	}
}

// TestChoCHThenBOS walks a confirmed upper fractal into a reversal break and
// then a continuation break of the next fractal.
func TestChoCHThenBOS(t *testing.T) {
	d := NewDetector(2)

	// Bars 0-4: the bar at index 2 (high 13) is a fractal, confirmed once
	// two bars close on its right side.
	seed := []market.Bar{
		bar(10, 1, 9),
		bar(11, 2, 10),
		bar(13, 3, 12),
		bar(11, 4, 10),
		bar(10, 5, 9),
	}
	var st State
	for _, b := range seed {
		st = d.Update(b)
	}
	if st.Direction != DirectionNeutral {
		t.Fatalf("confirmed fractal alone must not change direction, got %s", st.Direction)
	}

	// Close above the 13 fractal: first break is a reversal.
	st = d.Update(bar(14, 6, 13.5))
	if st.Direction != DirectionBull {
		t.Errorf("break above fractal should turn direction bull, got %s", st.Direction)
	}
	if st.BarBreak != BreakChoCH {
		t.Errorf("first break from neutral should be CHOCH, got %q", st.BarBreak)
	}
	if !st.HasStrong || st.StrongLevel != 13 {
		t.Errorf("strong level should be the broken fractal 13, got %.2f", st.StrongLevel)
	}
	if !st.HasWeak || st.WeakLevel != 14 {
		t.Errorf("weak level should be the breaking bar high 14, got %.2f", st.WeakLevel)
	}

	// Bars 6-8 form a new upper fractal at 16.
	d.Update(bar(16, 7, 15))
	d.Update(bar(15, 8, 14))
	st = d.Update(bar(14, 9, 13))
	if st.BarBreak != BreakNone {
		t.Errorf("fractal formation alone must not break, got %q", st.BarBreak)
	}
	if st.WeakLevel != 16 {
		t.Errorf("weak level should extend to the trend high 16, got %.2f", st.WeakLevel)
	}

	// Close above the 16 fractal while already bull: continuation.
	st = d.Update(bar(17, 10, 16.5))
	if st.BarBreak != BreakBOS {
		t.Errorf("break in trend direction should be BOS, got %q", st.BarBreak)
	}
	if st.StrongLevel != 16 {
		t.Errorf("strong level should move to 16, got %.2f", st.StrongLevel)
	}
}

// TestTieDoesNotBreak verifies a close exactly at the fractal level leaves
// the structure untouched.
func TestTieDoesNotBreak(t *testing.T) {
	d := NewDetector(2)

	for _, b := range []market.Bar{
		bar(10, 1, 9),
		bar(11, 2, 10),
		bar(13, 3, 12),
		bar(11, 4, 10),
		bar(10, 5, 9),
	} {
		d.Update(b)
	}

	st := d.Update(bar(13.2, 6, 13)) // close == fractal level
	if st.BarBreak != BreakNone {
		t.Errorf("tie with fractal level must not break, got %q", st.BarBreak)
	}
	if st.Direction != DirectionNeutral {
		t.Errorf("direction should stay neutral on a tie, got %s", st.Direction)
	}
}

// TestBearChoCH reverses an established bull trend through a lower fractal.
func TestBearChoCH(t *testing.T) {
	d := NewDetector(2)

	setup := []market.Bar{
		bar(10, 1, 9),
		bar(11, 2, 10),
		bar(13, 3, 12),
		bar(11, 4, 10),
		bar(10, 5, 9),
		bar(14, 6, 13.5), // CHOCH to bull
		bar(16, 15, 15.5),
		bar(16.5, 14, 15),
		bar(16, 12, 13), // index 8: lower fractal candidate at 12
		bar(15.5, 13, 14),
		bar(15.4, 13.5, 14), // confirms the 12 fractal
	}
	var st State
	for _, b := range setup {
		st = d.Update(b)
	}
	if st.Direction != DirectionBull {
		t.Fatalf("setup should leave direction bull, got %s", st.Direction)
	}

	st = d.Update(bar(15, 11.5, 11.8))
	if st.Direction != DirectionBear {
		t.Errorf("break below lower fractal should turn direction bear, got %s", st.Direction)
	}
	if st.BarBreak != BreakChoCH {
		t.Errorf("break against the trend should be CHOCH, got %q", st.BarBreak)
	}
	if st.StrongLevel != 12 {
		t.Errorf("strong level should be the broken fractal 12, got %.2f", st.StrongLevel)
	}
	if st.WeakLevel != 11.5 {
		t.Errorf("weak level should be the breaking bar low 11.5, got %.2f", st.WeakLevel)
	}
}
