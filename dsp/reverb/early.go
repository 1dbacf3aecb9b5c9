package reverb

import "math"

// DefaultEarlyWindow is the span after the direct path counted as early
// reflections, in seconds.
const DefaultEarlyWindow = 0.05

// DirectPathIndex returns the index of the largest absolute tap.
func DirectPathIndex(rir []float64) int {
	idx := 0
	peak := -1.0
	for i, v := range rir {
		if a := math.Abs(v); a > peak {
			peak = a
			idx = i
		}
	}
	return idx
}

// EarlyPart returns a copy of rir truncated to the direct path plus window
// seconds. The returned slice keeps the original length, zero after the cut.
func EarlyPart(rir []float64, sampleRate int, window float64) []float64 {
	out := make([]float64, len(rir))
	if len(rir) == 0 {
		return out
	}
	cut := DirectPathIndex(rir) + int(math.Round(window*float64(sampleRate))) + 1
	copy(out, rir[:min(cut, len(rir))])
	return out
}
