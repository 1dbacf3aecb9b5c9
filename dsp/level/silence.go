package level

// Frame parameters of DetectNonSilence.
const (
	DefaultSilenceThreshold = 0.01
	DefaultFrameLength      = 1024
	DefaultFrameShift       = 512
)

// DetectNonSilence marks the samples of x that belong to frames whose power
// exceeds threshold times the mean frame power.
//
// Frames of frameLength samples advance by frameShift; each frame decides the
// frameShift samples it starts with and the tail repeats the last decision.
// Signals shorter than one frame, and all-zero signals, are fully non-silent.
func DetectNonSilence(x []float64, threshold float64, frameLength, frameShift int) []bool {
	mask := make([]bool, len(x))
	if frameLength <= 0 || frameShift <= 0 || len(x) < frameLength {
		fill(mask, true)
		return mask
	}

	numFrames := (len(x)-frameLength)/frameShift + 1
	power := make([]float64, numFrames)
	var mean float64
	for f := range power {
		start := f * frameShift
		power[f] = Power(x[start : start+frameLength])
		mean += power[f]
	}
	mean /= float64(numFrames)

	if mean == 0 {
		fill(mask, true)
		return mask
	}

	last := false
	for f, p := range power {
		last = p/mean > threshold
		start := f * frameShift
		end := min(start+frameShift, len(x))
		fill(mask[start:end], last)
	}
	fill(mask[min(numFrames*frameShift, len(x)):], last)

	return mask
}

// NonSilentPower returns the mean square over the non-silent samples of every
// channel, using the default frame parameters.
func NonSilentPower(x [][]float64) float64 {
	var sum float64
	n := 0
	for _, ch := range x {
		mask := DetectNonSilence(ch, DefaultSilenceThreshold, DefaultFrameLength, DefaultFrameShift)
		for i, keep := range mask {
			if keep {
				sum += ch[i] * ch[i]
				n++
			}
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func fill(b []bool, v bool) {
	for i := range b {
		b[i] = v
	}
}
