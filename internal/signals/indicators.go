// Package signals provides technical indicator calculations over daily bars.
//
// All functions take series in ascending date order (oldest first). Functions
// that can be undefined for short inputs return an explicit ok flag; helpers
// that feed display fields fall back to 0 instead.
package signals

import (
	"math"

	"github.com/bobmcallan/keel/internal/models"
)

// SMA calculates the Simple Moving Average over the last period values.
func SMA(closes []float64, period int) (float64, bool) {
	if period <= 0 || len(closes) < period {
		return 0, false
	}

	sum := 0.0
	for _, c := range closes[len(closes)-period:] {
		sum += c
	}
	return sum / float64(period), true
}

// RSI calculates the Relative Strength Index using Wilder's smoothing over
// the full series. Undefined when there are fewer than period+1 closes or
// the smoothed loss is zero (no down moves in the window).
func RSI(closes []float64, period int) (float64, bool) {
	if period <= 0 || len(closes) < period+1 {
		return 0, false
	}

	alpha := 1.0 / float64(period)
	var avgGain, avgLoss float64

	for i := 1; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if delta > 0 {
			gain = delta
		} else {
			loss = -delta
		}

		if i == 1 {
			avgGain, avgLoss = gain, loss
			continue
		}
		avgGain += alpha * (gain - avgGain)
		avgLoss += alpha * (loss - avgLoss)
	}

	if avgLoss == 0 {
		return 0, false
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs)), true
}

// Slope returns the least-squares trend of the last window values,
// normalized by the mean (fraction per bar). Returns 0 when fewer than
// max(window/2, 5) values are available or the mean is zero.
func Slope(values []float64, window int) float64 {
	if window <= 0 {
		return 0
	}
	s := values
	if len(s) > window {
		s = s[len(s)-window:]
	}

	min := window / 2
	if min < 5 {
		min = 5
	}
	n := len(s)
	if n < min {
		return 0
	}

	var sumX, sumY, sumXY, sumXX float64
	for i, y := range s {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	fn := float64(n)
	denom := fn*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	m := (fn*sumXY - sumX*sumY) / denom

	mean := sumY / fn
	if mean == 0 {
		return 0
	}
	return m / mean
}

// IsAboveMA reports whether the latest close is above its period SMA.
// False when the SMA is undefined.
func IsAboveMA(closes []float64, period int) bool {
	ma, ok := SMA(closes, period)
	if !ok {
		return false
	}
	return closes[len(closes)-1] > ma
}

// MARising reports whether the period SMA has risen over the last lookback
// SMA values. False when not enough data to compute lookback SMA points.
func MARising(closes []float64, period, lookback int) bool {
	if period <= 0 || lookback <= 0 {
		return false
	}
	// Number of defined SMA points
	if len(closes)-period+1 < lookback {
		return false
	}

	last, _ := SMA(closes, period)
	first, _ := SMA(closes[:len(closes)-lookback+1], period)
	return last > first
}

// PctFromMA returns the latest close as a percentage distance from its
// period SMA. Returns 0 when the SMA is undefined or zero.
func PctFromMA(closes []float64, period int) float64 {
	ma, ok := SMA(closes, period)
	if !ok || ma == 0 {
		return 0
	}
	latest := closes[len(closes)-1]
	return (latest - ma) / ma * 100
}

// RelativeStrength returns the difference in percentage returns between a
// stock and a benchmark over the last days bars. Returns 0 when either
// series is too short.
func RelativeStrength(stock, benchmark []float64, days int) float64 {
	if days <= 0 || len(stock) < days || len(benchmark) < days {
		return 0
	}
	s0 := stock[len(stock)-days]
	b0 := benchmark[len(benchmark)-days]
	if s0 == 0 || b0 == 0 {
		return 0
	}
	stockRet := (stock[len(stock)-1] - s0) / s0
	benchRet := (benchmark[len(benchmark)-1] - b0) / b0
	return (stockRet - benchRet) * 100
}

// ATR calculates the Average True Range over the last period true ranges.
// The first bar's true range is its high-low span. Returns 0 when fewer
// than period bars are available.
func ATR(bars []models.Bar, period int) float64 {
	if period <= 0 || len(bars) < period {
		return 0
	}

	tr := make([]float64, len(bars))
	tr[0] = bars[0].High - bars[0].Low
	for i := 1; i < len(bars); i++ {
		hl := bars[i].High - bars[i].Low
		hc := math.Abs(bars[i].High - bars[i-1].Close)
		lc := math.Abs(bars[i].Low - bars[i-1].Close)
		tr[i] = math.Max(hl, math.Max(hc, lc))
	}

	sum := 0.0
	for _, v := range tr[len(tr)-period:] {
		sum += v
	}
	return sum / float64(period)
}

// AverageVolume returns the mean volume over the last period bars, or 0
// when fewer bars are available.
func AverageVolume(bars []models.Bar, period int) float64 {
	if period <= 0 || len(bars) < period {
		return 0
	}
	var sum float64
	for _, b := range bars[len(bars)-period:] {
		sum += float64(b.Volume)
	}
	return sum / float64(period)
}

// VolumeRatio returns recent average volume (last recent bars) relative to
// the average over the last lookback bars. Returns 0 when the lookback
// average is unavailable or zero.
func VolumeRatio(bars []models.Bar, recent, lookback int) float64 {
	if recent <= 0 || len(bars) < recent {
		return 0
	}
	avg := AverageVolume(bars, lookback)
	if avg == 0 {
		return 0
	}
	var sum float64
	for _, b := range bars[len(bars)-recent:] {
		sum += float64(b.Volume)
	}
	return (sum / float64(recent)) / avg
}
