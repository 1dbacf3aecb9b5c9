// Package level measures and adjusts signal levels: power, non-silent
// regions, gains for a target SNR and peak normalisation.
//
// Multi-channel signals are [channel][sample] slices; their power is the mean
// over every sample of every channel.
package level

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/cwbudde/algo-vecmath"
)

// Errors returned by level functions.
var (
	ErrInvalidRange = errors.New("level: invalid dB range")
	ErrSilent       = errors.New("level: signal is silent")
)

// PowerFloor bounds denominators of power ratios.
const PowerFloor = 1e-10

// Power returns the mean square of x.
func Power(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	sq := make([]float64, len(x))
	vecmath.MulBlock(sq, x, x)

	var sum float64
	for _, v := range sq {
		sum += v
	}
	return sum / float64(len(x))
}

// PowerMulti returns the mean square over all channels.
func PowerMulti(x [][]float64) float64 {
	var sum float64
	n := 0
	for _, ch := range x {
		sum += Power(ch) * float64(len(ch))
		n += len(ch)
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// RMS returns the root mean square of x.
func RMS(x []float64) float64 {
	return math.Sqrt(Power(x))
}

// Peak returns the largest absolute sample over all channels.
func Peak(x [][]float64) float64 {
	var p float64
	for _, ch := range x {
		for _, v := range ch {
			if a := math.Abs(v); a > p {
				p = a
			}
		}
	}
	return p
}

// DB converts a power ratio to decibels.
func DB(powerRatio float64) float64 {
	return 10 * math.Log10(powerRatio)
}

// Gain converts a level in dB to an amplitude factor.
func Gain(db float64) float64 {
	return math.Pow(10, db/20)
}

// NoiseGain returns the factor that brings noise of power noisePower to snrDB
// below a signal of power signalPower.
func NoiseGain(signalPower, noisePower, snrDB float64) float64 {
	return Gain(-snrDB) * math.Sqrt(signalPower) / math.Sqrt(math.Max(noisePower, PowerFloor))
}

// Scale multiplies every channel of x by g in place.
func Scale(x [][]float64, g float64) {
	for _, ch := range x {
		for i := range ch {
			ch[i] *= g
		}
	}
}

// NormalizePeak scales x in place so its peak equals target and returns the
// applied gain. Silent input is left untouched and reports ErrSilent.
func NormalizePeak(x [][]float64, target float64) (float64, error) {
	p := Peak(x)
	if p == 0 {
		return 1, ErrSilent
	}
	g := target / p
	Scale(x, g)
	return g, nil
}

// NormalizePower scales x in place to unit power over its non-silent part and
// returns the applied gain.
func NormalizePower(x []float64) (float64, error) {
	p := NonSilentPower([][]float64{x})
	if p == 0 {
		return 1, ErrSilent
	}
	g := 1 / math.Sqrt(p)
	for i := range x {
		x[i] *= g
	}
	return g, nil
}

// ParseDBRange parses "low_high" or a single value "v" (low = high = v).
func ParseDBRange(s string) (low, high float64, err error) {
	parts := strings.Split(strings.TrimSpace(s), "_")
	switch len(parts) {
	case 1:
		v, err := strconv.ParseFloat(parts[0], 64)
		if err != nil {
			return 0, 0, fmt.Errorf("%w: %q", ErrInvalidRange, s)
		}
		return v, v, nil
	case 2:
		lo, err1 := strconv.ParseFloat(parts[0], 64)
		hi, err2 := strconv.ParseFloat(parts[1], 64)
		if err1 != nil || err2 != nil || lo > hi {
			return 0, 0, fmt.Errorf("%w: %q", ErrInvalidRange, s)
		}
		return lo, hi, nil
	default:
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidRange, s)
	}
}
