package excursion

import (
	"testing"

	"zone-backtester/internal/health"
	"zone-backtester/internal/market"
)

func bar(high, low, close float64) market.Bar {
	return market.Bar{Open: close, High: high, Low: low, Close: close}
}

// TestLongExcursion walks a long through new highs and lows and checks the
// running extremes and their bar offsets.
func TestLongExcursion(t *testing.T) {
	tr := NewTracker(market.SideLong, 103, health.Score{Value: 8})

	u := tr.Observe(bar(105, 102, 104), 1, health.Score{Value: 8})
	if !u.NewMFE || !u.NewMAE {
		t.Error("first bar beyond entry should set both MFE and MAE")
	}

	u = tr.Observe(bar(104.5, 101, 102), 2, health.Score{Value: 8})
	if u.NewMFE {
		t.Error("lower high must not extend MFE")
	}
	if !u.NewMAE {
		t.Error("lower low should extend MAE")
	}

	mfe, mfeOff := tr.MFE()
	if mfe != 105 || mfeOff != 1 {
		t.Errorf("MFE should be 105 at offset 1, got %.2f at %d", mfe, mfeOff)
	}
	mae, maeOff := tr.MAE()
	if mae != 101 || maeOff != 2 {
		t.Errorf("MAE should be 101 at offset 2, got %.2f at %d", mae, maeOff)
	}
}

// TestShortExcursionMirrors verifies favorable is down and adverse is up for
// a short.
func TestShortExcursionMirrors(t *testing.T) {
	tr := NewTracker(market.SideShort, 99, health.Score{Value: 7})

	tr.Observe(bar(100.5, 97, 98), 1, health.Score{Value: 7})

	mfe, _ := tr.MFE()
	if mfe != 97 {
		t.Errorf("short MFE should be the low 97, got %.2f", mfe)
	}
	mae, _ := tr.MAE()
	if mae != 100.5 {
		t.Errorf("short MAE should be the high 100.5, got %.2f", mae)
	}
}

// TestNoFavorableExcursion verifies MFE stays pinned at entry when price
// only goes the wrong way.
func TestNoFavorableExcursion(t *testing.T) {
	tr := NewTracker(market.SideLong, 103, health.Score{Value: 6})

	tr.Observe(bar(103, 101, 101.5), 1, health.Score{Value: 6})

	mfe, off := tr.MFE()
	if mfe != 103 || off != 0 {
		t.Errorf("MFE should remain at entry 103 offset 0, got %.2f at %d", mfe, off)
	}
}

// TestHealthDelta tracks the score drift against the entry snapshot.
func TestHealthDelta(t *testing.T) {
	tr := NewTracker(market.SideLong, 103, health.Score{Value: 8})

	u := tr.Observe(bar(104, 102.5, 103.5), 1, health.Score{Value: 8})
	if u.HealthChanged {
		t.Error("unchanged score must not report a health change")
	}
	if u.HealthDelta != 0 {
		t.Errorf("delta should be 0, got %d", u.HealthDelta)
	}

	u = tr.Observe(bar(104, 102.5, 103.2), 2, health.Score{Value: 5})
	if !u.HealthChanged {
		t.Error("score drop should report a health change")
	}
	if u.HealthDelta != -3 {
		t.Errorf("delta should be -3, got %d", u.HealthDelta)
	}
	if tr.HealthDelta() != -3 {
		t.Errorf("tracker delta should be -3, got %d", tr.HealthDelta())
	}
	if tr.EntryScore().Value != 8 {
		t.Errorf("entry score must stay fixed at 8, got %d", tr.EntryScore().Value)
	}
}
