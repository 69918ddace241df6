package excursion

import (
	"zone-backtester/internal/health"
	"zone-backtester/internal/market"
)

// Tracker keeps the running maximum favorable / adverse excursion and the
// health-score delta for one open trade. One instance exists per trade and
// is discarded when the trade closes.
type Tracker struct {
	side       market.Side
	entryPrice float64
	entryScore health.Score

	mfePrice  float64
	mfeOffset int
	maePrice  float64
	maeOffset int

	currentScore health.Score
}

// Update reports what changed on one bar.
type Update struct {
	NewMFE        bool
	NewMAE        bool
	HealthChanged bool
	HealthDelta   int // current score minus entry score
}

// NewTracker starts excursion tracking at the entry price. MFE and MAE both
// begin at entry, so a trade with no favorable excursion keeps MFE == entry.
func NewTracker(side market.Side, entryPrice float64, entryScore health.Score) *Tracker {
	return &Tracker{
		side:         side,
		entryPrice:   entryPrice,
		entryScore:   entryScore,
		mfePrice:     entryPrice,
		maePrice:     entryPrice,
		currentScore: entryScore,
	}
}

// Observe folds one bar and its health snapshot into the running state.
// barOffset is the bar's distance from the entry bar (entry bar = 0).
func (t *Tracker) Observe(bar market.Bar, barOffset int, score health.Score) Update {
	var u Update

	if t.side == market.SideLong {
		if bar.High > t.mfePrice {
			t.mfePrice = bar.High
			t.mfeOffset = barOffset
			u.NewMFE = true
		}
		if bar.Low < t.maePrice {
			t.maePrice = bar.Low
			t.maeOffset = barOffset
			u.NewMAE = true
		}
	} else {
		if bar.Low < t.mfePrice {
			t.mfePrice = bar.Low
			t.mfeOffset = barOffset
			u.NewMFE = true
		}
		if bar.High > t.maePrice {
			t.maePrice = bar.High
			t.maeOffset = barOffset
			u.NewMAE = true
		}
	}

	if score.Value != t.currentScore.Value {
		u.HealthChanged = true
	}
	t.currentScore = score
	u.HealthDelta = t.currentScore.Value - t.entryScore.Value

	return u
}

// MFE returns the best unrealized price reached and its bar offset.
func (t *Tracker) MFE() (price float64, barOffset int) {
	return t.mfePrice, t.mfeOffset
}

// MAE returns the worst unrealized price reached and its bar offset.
func (t *Tracker) MAE() (price float64, barOffset int) {
	return t.maePrice, t.maeOffset
}

// EntryScore returns the health score fixed at trade open.
func (t *Tracker) EntryScore() health.Score {
	return t.entryScore
}

// CurrentScore returns the most recent health snapshot.
func (t *Tracker) CurrentScore() health.Score {
	return t.currentScore
}

// HealthDelta returns current minus entry score.
func (t *Tracker) HealthDelta() int {
	return t.currentScore.Value - t.entryScore.Value
}
