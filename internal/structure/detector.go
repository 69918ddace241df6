package structure

import (
	"zone-backtester/internal/market"
)

// Direction represents the structural trend on one timeframe.
type Direction string

const (
	DirectionBull    Direction = "bull"
	DirectionBear    Direction = "bear"
	DirectionNeutral Direction = "neutral"
)

// BreakKind classifies a close beyond a tracked fractal level.
type BreakKind string

const (
	BreakNone  BreakKind = ""
	BreakBOS   BreakKind = "BOS"   // continuation break
	BreakChoCH BreakKind = "CHOCH" // reversal break
)

// State is the structural snapshot for one timeframe after a bar.
// StrongLevel is the level that would reverse the trend if broken;
// WeakLevel is the running continuation target.
type State struct {
	Direction   Direction `json:"direction"`
	StrongLevel float64   `json:"strong_level"`
	HasStrong   bool      `json:"has_strong"`
	WeakLevel   float64   `json:"weak_level"`
	HasWeak     bool      `json:"has_weak"`
	LastBreak   BreakKind `json:"last_break"` // most recent break classification
	BarBreak    BreakKind `json:"bar_break"`  // break triggered by this bar, if any
}

// Detector performs fractal-based swing detection and BOS/ChoCH
// classification for a single timeframe. One Detector exists per timeframe
// under analysis; instances are independent and never merged.
type Detector struct {
	window int // bars required on each side of a fractal candidate

	bars []market.Bar

	// Most recent unconfirmed fractal on each side. A fractal is consumed
	// once it causes a break; older fractals are discarded when a newer one
	// of the same polarity forms.
	upperFractal float64
	hasUpper     bool
	lowerFractal float64
	hasLower     bool

	state State
}

// NewDetector creates a detector with the given symmetric fractal window.
// A window of 2 means a fractal needs 2 confirming bars on each side.
func NewDetector(window int) *Detector {
	if window < 1 {
		window = 2
	}
	return &Detector{
		window: window,
		state:  State{Direction: DirectionNeutral},
	}
}

// State returns the current structural snapshot.
func (d *Detector) State() State {
	return d.state
}

// Update processes one bar and returns the structure state after it.
// With fewer bars than the window requires the state stays neutral.
func (d *Detector) Update(bar market.Bar) State {
	d.bars = append(d.bars, bar)
	d.state.BarBreak = BreakNone

	d.confirmFractals()
	d.evaluateBreak(bar)
	d.extendWeakLevel(bar)

	return d.state
}

// confirmFractals checks whether the bar sitting `window` bars back has just
// been confirmed as a swing point by the newly appended bar.
func (d *Detector) confirmFractals() {
	idx := len(d.bars) - 1 - d.window
	if idx < d.window {
		return // not enough bars on the left side
	}

	candidate := d.bars[idx]

	// Bearish fractal: strictly higher high than every bar in the window.
	isUpper := true
	for j := idx - d.window; j <= idx+d.window; j++ {
		if j == idx {
			continue
		}
		if d.bars[j].High >= candidate.High {
			isUpper = false
			break
		}
	}
	if isUpper {
		d.upperFractal = candidate.High
		d.hasUpper = true
	}

	// Bullish fractal: strictly lower low than every bar in the window.
	isLower := true
	for j := idx - d.window; j <= idx+d.window; j++ {
		if j == idx {
			continue
		}
		if d.bars[j].Low <= candidate.Low {
			isLower = false
			break
		}
	}
	if isLower {
		d.lowerFractal = candidate.Low
		d.hasLower = true
	}
}

// evaluateBreak checks the bar close against the tracked fractals.
// Ties never trigger a break; strict inequality only.
func (d *Detector) evaluateBreak(bar market.Bar) {
	if d.hasUpper && bar.Close > d.upperFractal {
		kind := BreakChoCH
		if d.state.Direction == DirectionBull {
			kind = BreakBOS
		}
		d.state.Direction = DirectionBull
		d.state.StrongLevel = d.upperFractal
		d.state.HasStrong = true
		d.state.WeakLevel = bar.High
		d.state.HasWeak = true
		d.state.LastBreak = kind
		d.state.BarBreak = kind
		d.hasUpper = false // fractal consumed
		return
	}

	if d.hasLower && bar.Close < d.lowerFractal {
		kind := BreakChoCH
		if d.state.Direction == DirectionBear {
			kind = BreakBOS
		}
		d.state.Direction = DirectionBear
		d.state.StrongLevel = d.lowerFractal
		d.state.HasStrong = true
		d.state.WeakLevel = bar.Low
		d.state.HasWeak = true
		d.state.LastBreak = kind
		d.state.BarBreak = kind
		d.hasLower = false // fractal consumed
	}
}

// extendWeakLevel pushes the continuation target out to the post-break
// extreme as the trend develops.
func (d *Detector) extendWeakLevel(bar market.Bar) {
	if !d.state.HasWeak {
		return
	}
	switch d.state.Direction {
	case DirectionBull:
		if bar.High > d.state.WeakLevel {
			d.state.WeakLevel = bar.High
		}
	case DirectionBear:
		if bar.Low < d.state.WeakLevel {
			d.state.WeakLevel = bar.Low
		}
	}
}
