// Package reverb simulates reverberation by convolving dry speech with room
// impulse responses (RIRs).
//
// Convolution runs block-wise in the frequency domain (overlap-add), which
// keeps long RIRs of several thousand taps cheap:
//
//	wet, err := reverb.Apply(dry, rir)          // length len(dry)
//	multi, err := reverb.ApplyMulti(dry, rirs)  // one output per RIR channel
//	early := reverb.EarlyPart(rir, 16000, 0.05) // direct path + 50 ms
package reverb

import (
	"errors"
	"fmt"

	algofft "github.com/MeKo-Christian/algo-fft"
)

// Errors returned by reverb functions.
var (
	ErrEmptyInput = errors.New("reverb: empty input")
	ErrEmptyRIR   = errors.New("reverb: empty impulse response")
)

// Convolver convolves signals with one RIR using overlap-add.
type Convolver struct {
	rirSpectrum []complex128
	rirLen      int
	blockSize   int
	fftSize     int

	plan *algofft.Plan[complex128]

	block []complex128
}

// NewConvolver prepares the spectrum of rir. A blockSize <= 0 picks a size
// from the RIR length.
func NewConvolver(rir []float64, blockSize int) (*Convolver, error) {
	if len(rir) == 0 {
		return nil, ErrEmptyRIR
	}

	if blockSize <= 0 {
		blockSize = max(nextPowerOf2(len(rir)), 256)
	}
	fftSize := nextPowerOf2(blockSize + len(rir) - 1)

	plan, err := algofft.NewPlan64(fftSize)
	if err != nil {
		return nil, fmt.Errorf("reverb: failed to create FFT plan: %w", err)
	}

	c := &Convolver{
		rirSpectrum: make([]complex128, fftSize),
		rirLen:      len(rir),
		blockSize:   blockSize,
		fftSize:     fftSize,
		plan:        plan,
		block:       make([]complex128, fftSize),
	}

	padded := make([]complex128, fftSize)
	for i, v := range rir {
		padded[i] = complex(v, 0)
	}
	if err := plan.Forward(c.rirSpectrum, padded); err != nil {
		return nil, fmt.Errorf("reverb: failed to transform rir: %w", err)
	}

	return c, nil
}

// RIRLen returns the impulse response length.
func (c *Convolver) RIRLen() int { return c.rirLen }

// Full returns the full linear convolution, len(x)+RIRLen()-1 samples.
func (c *Convolver) Full(x []float64) ([]float64, error) {
	if len(x) == 0 {
		return nil, ErrEmptyInput
	}

	outLen := len(x) + c.rirLen - 1
	out := make([]float64, outLen)

	for start := 0; start < len(x); start += c.blockSize {
		end := min(start+c.blockSize, len(x))

		for i := range c.block {
			c.block[i] = 0
		}
		for i := start; i < end; i++ {
			c.block[i-start] = complex(x[i], 0)
		}

		if err := c.plan.Forward(c.block, c.block); err != nil {
			return nil, fmt.Errorf("reverb: forward FFT failed: %w", err)
		}
		for i := range c.block {
			c.block[i] *= c.rirSpectrum[i]
		}
		if err := c.plan.Inverse(c.block, c.block); err != nil {
			return nil, fmt.Errorf("reverb: inverse FFT failed: %w", err)
		}

		n := end - start + c.rirLen - 1
		for i := 0; i < n && start+i < outLen; i++ {
			out[start+i] += real(c.block[i])
		}
	}

	return out, nil
}

// Process returns the first len(x) samples of the convolution, aligned with x.
func (c *Convolver) Process(x []float64) ([]float64, error) {
	full, err := c.Full(x)
	if err != nil {
		return nil, err
	}
	return full[:len(x)], nil
}

// Apply convolves x with rir and keeps len(x) samples.
func Apply(x, rir []float64) ([]float64, error) {
	c, err := NewConvolver(rir, 0)
	if err != nil {
		return nil, err
	}
	return c.Process(x)
}

// ApplyMulti convolves mono x with every channel of a multi-channel RIR.
func ApplyMulti(x []float64, rir [][]float64) ([][]float64, error) {
	if len(rir) == 0 {
		return nil, ErrEmptyRIR
	}
	out := make([][]float64, len(rir))
	for ch, h := range rir {
		y, err := Apply(x, h)
		if err != nil {
			return nil, fmt.Errorf("reverb: channel %d: %w", ch, err)
		}
		out[ch] = y
	}
	return out, nil
}

func nextPowerOf2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
