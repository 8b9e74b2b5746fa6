package signals

// swingPeaks returns local peaks in the last window*2 values. A peak must be
// strictly greater than its two neighbors on each side.
func swingPeaks(values []float64, window int) []float64 {
	s := values
	if len(s) > window*2 {
		s = s[len(s)-window*2:]
	}
	if len(s) < window {
		return nil
	}

	var peaks []float64
	for i := 2; i < len(s)-2; i++ {
		if s[i] > s[i-1] && s[i] > s[i-2] && s[i] > s[i+1] && s[i] > s[i+2] {
			peaks = append(peaks, s[i])
		}
	}
	return peaks
}

// HigherHighs detects an ascending swing-high pattern: at least minSwings
// local peaks in the recent window, every peak strictly above the one before.
func HigherHighs(values []float64, window, minSwings int) bool {
	peaks := swingPeaks(values, window)
	if len(peaks) < minSwings {
		return false
	}
	for i := 1; i < len(peaks); i++ {
		if peaks[i] <= peaks[i-1] {
			return false
		}
	}
	return true
}

// LowerHighs detects a descending swing-high pattern (bearish structure).
func LowerHighs(values []float64, window, minSwings int) bool {
	peaks := swingPeaks(values, window)
	if len(peaks) < minSwings {
		return false
	}
	for i := 1; i < len(peaks); i++ {
		if peaks[i] >= peaks[i-1] {
			return false
		}
	}
	return true
}
