package health

import (
	"zone-backtester/internal/market"
)

// Raw indicator calculations feeding the health sub-factors. Every value
// here is a plain number; classification into healthy/unhealthy happens in
// exactly one place (scorer.go) so entry-time and in-trade evaluations can
// never diverge.

// CalculateSMA calculates a Simple Moving Average of closes over the last
// `period` bars. Returns 0 with fewer bars than the period.
func CalculateSMA(bars []market.Bar, period int) float64 {
	if period <= 0 || len(bars) < period {
		return 0
	}
	sum := 0.0
	for i := len(bars) - period; i < len(bars); i++ {
		sum += bars[i].Close
	}
	return sum / float64(period)
}

// CalculateAverageVolume calculates average volume over the last `period`
// bars, shrinking the period when history is short.
func CalculateAverageVolume(bars []market.Bar, period int) float64 {
	if len(bars) == 0 || period <= 0 {
		return 0
	}
	if len(bars) < period {
		period = len(bars)
	}
	sum := 0.0
	for i := len(bars) - period; i < len(bars); i++ {
		sum += bars[i].Volume
	}
	return sum / float64(period)
}

// VolumeRateOfChange returns the current bar's volume relative to the
// rolling average, expressed as a ratio (1.0 = average).
func VolumeRateOfChange(bars []market.Bar, avgPeriod int) float64 {
	if len(bars) == 0 {
		return 0
	}
	avg := CalculateAverageVolume(bars[:len(bars)-1], avgPeriod)
	if avg == 0 {
		return 0
	}
	return bars[len(bars)-1].Volume / avg
}

// BarVolumeDelta returns the signed volume of the last bar: positive when
// the bar closed up, negative when it closed down, zero on a doji.
func BarVolumeDelta(bar market.Bar) float64 {
	if bar.Close > bar.Open {
		return bar.Volume
	}
	if bar.Close < bar.Open {
		return -bar.Volume
	}
	return 0
}

// CVDSlope returns the slope of the cumulative volume delta over the last
// `period` bars: the cumulative delta at the end minus at the start,
// normalized per bar. Returns 0 with insufficient history.
func CVDSlope(bars []market.Bar, period int) float64 {
	if period <= 1 || len(bars) < period {
		return 0
	}
	cum := 0.0
	for i := len(bars) - period; i < len(bars); i++ {
		cum += BarVolumeDelta(bars[i])
	}
	return cum / float64(period)
}

// SessionVWAP computes the volume-weighted average price over all bars
// given, which callers anchor at the session open.
func SessionVWAP(bars []market.Bar) float64 {
	totalTPV := 0.0
	totalVol := 0.0
	for _, b := range bars {
		totalTPV += b.TypicalPrice() * b.Volume
		totalVol += b.Volume
	}
	if totalVol == 0 {
		return 0
	}
	return totalTPV / totalVol
}
