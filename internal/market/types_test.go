package market

import (
	"testing"
	"time"
)

// TestBarsForWindow verifies the wall-clock window converts to the same
// covered history at every cadence.
func TestBarsForWindow(t *testing.T) {
	window := 30 * time.Minute

	cases := []struct {
		tf   Timeframe
		want int
	}{
		{TF15s, 120},
		{TF1m, 30},
		{TF5m, 6},
		{TF15m, 2},
		{TF1h, 1}, // floors to at least one bar
	}
	for _, tc := range cases {
		if got := tc.tf.BarsForWindow(window); got != tc.want {
			t.Errorf("%s: expected %d bars for a 30m window, got %d", tc.tf, tc.want, got)
		}
	}

	if got := Timeframe("bogus").BarsForWindow(window); got != 0 {
		t.Errorf("invalid timeframe should yield 0 bars, got %d", got)
	}
}

// TestSessionClamp verifies times outside the window snap to the boundaries.
func TestSessionClamp(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	sess := Session{Start: start, End: start.Add(6 * time.Hour), ForcedExit: start.Add(5 * time.Hour)}

	if got := sess.Clamp(start.Add(-time.Hour)); !got.Equal(start) {
		t.Errorf("premarket time should clamp to session start, got %s", got)
	}
	if got := sess.Clamp(start.Add(7 * time.Hour)); !got.Equal(sess.End) {
		t.Errorf("after-hours time should clamp to session end, got %s", got)
	}
	inside := start.Add(time.Hour)
	if got := sess.Clamp(inside); !got.Equal(inside) {
		t.Errorf("in-session time should pass through, got %s", got)
	}
}

// TestSessionValidate rejects disordered boundaries.
func TestSessionValidate(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

	good := Session{Start: start, End: start.Add(time.Hour), ForcedExit: start.Add(50 * time.Minute)}
	if err := good.Validate(); err != nil {
		t.Errorf("valid session rejected: %v", err)
	}

	bad := Session{Start: start, End: start.Add(-time.Hour), ForcedExit: start}
	if err := bad.Validate(); err == nil {
		t.Error("end before start should be rejected")
	}

	outside := Session{Start: start, End: start.Add(time.Hour), ForcedExit: start.Add(2 * time.Hour)}
	if err := outside.Validate(); err == nil {
		t.Error("forced exit outside the session should be rejected")
	}
}
