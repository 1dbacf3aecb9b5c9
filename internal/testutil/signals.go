package testutil

import (
	"math"
	"math/rand"
)

// DeterministicSine generates a deterministic sine wave.
func DeterministicSine(freqHz, sampleRate, amplitude float64, length int) []float64 {
	out := make([]float64, length)
	step := 2 * math.Pi * freqHz / sampleRate
	for i := range out {
		out[i] = amplitude * math.Sin(step*float64(i))
	}
	return out
}

// DeterministicNoise generates uniform white noise with a fixed seed.
func DeterministicNoise(seed int64, amplitude float64, length int) []float64 {
	out := make([]float64, length)
	rng := rand.New(rand.NewSource(seed))
	for i := range out {
		out[i] = (rng.Float64()*2 - 1) * amplitude
	}
	return out
}

// Impulse generates a unit impulse at pos.
func Impulse(length, pos int) []float64 {
	out := make([]float64, length)
	if pos >= 0 && pos < length {
		out[pos] = 1
	}
	return out
}

// Utterance generates a speech-like test signal: a harmonic tone burst with
// leading and trailing silence of silence samples each.
func Utterance(seed int64, sampleRate float64, voiced, silence int) []float64 {
	out := make([]float64, voiced+2*silence)
	rng := rand.New(rand.NewSource(seed))
	f0 := 100 + 100*rng.Float64()
	for i := 0; i < voiced; i++ {
		t := float64(i) / sampleRate
		env := math.Sin(math.Pi * float64(i) / float64(voiced))
		v := 0.0
		for h := 1; h <= 4; h++ {
			v += math.Sin(2*math.Pi*f0*float64(h)*t) / float64(h)
		}
		out[silence+i] = 0.3 * env * v
	}
	return out
}

// DecayingRIR generates an exponentially decaying room impulse response with a
// unit direct path at delay.
func DecayingRIR(seed int64, length, delay int, decay float64) []float64 {
	out := make([]float64, length)
	rng := rand.New(rand.NewSource(seed))
	if delay < length {
		out[delay] = 1
	}
	for i := delay + 1; i < length; i++ {
		out[i] = (rng.Float64()*2 - 1) * 0.3 * math.Exp(-decay*float64(i-delay))
	}
	return out
}

// Power returns the mean square of x.
func Power(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	var s float64
	for _, v := range x {
		s += v * v
	}
	return s / float64(len(x))
}
