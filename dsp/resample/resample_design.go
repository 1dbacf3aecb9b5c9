package resample

import (
	"math"

	"github.com/cwbudde/algo-enh/dsp/window"
)

// polyphase is a linear-phase low-pass prototype running at the up-sampled
// rate. Its length is odd, so delay is a whole number of samples.
type polyphase struct {
	taps  []float64
	delay int
}

type profile struct {
	tapsPerPhase int
	cutoff       float64 // fraction of the narrower Nyquist band
	beta         float64
}

var profiles = map[Quality]profile{
	QualityFast:     {tapsPerPhase: 16, cutoff: 0.88, beta: 5},
	QualityBalanced: {tapsPerPhase: 32, cutoff: 0.92, beta: 7.5},
	QualityBest:     {tapsPerPhase: 64, cutoff: 0.96, beta: 9},
}

func design(up, down int, q Quality) *polyphase {
	p, ok := profiles[q]
	if !ok {
		p = profiles[QualityBalanced]
	}

	n := p.tapsPerPhase*up | 1
	fc := p.cutoff / (2 * float64(max(up, down)))
	win := window.Generate(window.Kaiser, n, window.WithBeta(p.beta))

	taps := make([]float64, n)
	mid := (n - 1) / 2
	var sum float64
	for i := range taps {
		taps[i] = 2 * fc * sinc(2*fc*float64(i-mid)) * win[i]
		sum += taps[i]
	}

	// zero stuffing divides the level by up
	gain := float64(up) / sum
	for i := range taps {
		taps[i] *= gain
	}
	return &polyphase{taps: taps, delay: mid}
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func sinc(x float64) float64 {
	if x == 0 {
		return 1
	}
	return math.Sin(math.Pi*x) / (math.Pi * x)
}
