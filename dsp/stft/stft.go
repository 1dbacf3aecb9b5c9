// Package stft implements the short-time Fourier transform and its inverse
// with the framing conventions of common speech front ends: periodic
// windows, centered frames with reflect padding and one-sided spectra.
package stft

import (
	"errors"
	"fmt"
	"math"

	algofft "github.com/MeKo-Christian/algo-fft"
	"github.com/cwbudde/algo-vecmath"

	"github.com/cwbudde/algo-enh/dsp/window"
)

// Errors returned by the transform.
var (
	ErrInvalidConfig = errors.New("stft: invalid configuration")
	ErrShape         = errors.New("stft: spectrum shape mismatch")
)

// Config describes the framing.
type Config struct {
	// NFFT is the FFT size, a power of two.
	NFFT int
	// WinLength is the window length; 0 means NFFT. Shorter windows are
	// zero-padded on both sides to NFFT.
	WinLength int
	// Window is the analysis and synthesis window; empty means Hann.
	Window window.Type
	// HopLength is the frame advance in samples.
	HopLength int
	// Center pads NFFT/2 reflected samples on both ends so frame t is
	// centred on sample t*HopLength.
	Center bool
	// Normalized scales the spectrum by 1/sqrt(NFFT).
	Normalized bool
	// Onesided keeps the NFFT/2+1 non-negative frequency bins.
	Onesided bool
}

// DefaultConfig returns a 512-point, 128-hop centred one-sided transform.
func DefaultConfig() Config {
	return Config{NFFT: 512, HopLength: 128, Window: window.Hann, Center: true, Onesided: true}
}

func (c Config) validate() error {
	if c.NFFT <= 0 || c.NFFT&(c.NFFT-1) != 0 {
		return fmt.Errorf("%w: n_fft %d is not a power of two", ErrInvalidConfig, c.NFFT)
	}
	if c.WinLength < 0 || c.WinLength > c.NFFT {
		return fmt.Errorf("%w: win_length %d outside [1, %d]", ErrInvalidConfig, c.WinLength, c.NFFT)
	}
	if _, err := window.Parse(string(c.Window)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.HopLength <= 0 {
		return fmt.Errorf("%w: hop_length %d", ErrInvalidConfig, c.HopLength)
	}
	return nil
}

// STFT holds the window and FFT plan for one configuration.
type STFT struct {
	cfg    Config
	window []float64
	plan   *algofft.Plan[complex128]
}

// New validates cfg and prepares the transform.
func New(cfg Config) (*STFT, error) {
	if cfg.WinLength == 0 {
		cfg.WinLength = cfg.NFFT
	}
	if cfg.Window == "" {
		cfg.Window = window.Hann
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.Window, _ = window.Parse(string(cfg.Window))

	plan, err := algofft.NewPlan64(cfg.NFFT)
	if err != nil {
		return nil, fmt.Errorf("stft: failed to create FFT plan: %w", err)
	}

	return &STFT{cfg: cfg, window: window.Generate(cfg.Window, cfg.WinLength, window.WithPeriodic(), window.WithPadding(cfg.NFFT)), plan: plan}, nil
}

// Config returns the effective configuration.
func (s *STFT) Config() Config { return s.cfg }

// Bins returns the number of frequency bins per frame.
func (s *STFT) Bins() int {
	if s.cfg.Onesided {
		return s.cfg.NFFT/2 + 1
	}
	return s.cfg.NFFT
}

// NumFrames returns the frame count for n input samples.
func (s *STFT) NumFrames(n int) int {
	if s.cfg.Center {
		return n/s.cfg.HopLength + 1
	}
	if n < s.cfg.NFFT {
		return 0
	}
	return (n-s.cfg.NFFT)/s.cfg.HopLength + 1
}

// Forward returns the spectrogram of x as [frame][bin].
func (s *STFT) Forward(x []float64) ([][]complex128, error) {
	nfft := s.cfg.NFFT
	frames := s.NumFrames(len(x))
	out := make([][]complex128, frames)

	offset := 0
	if s.cfg.Center {
		offset = nfft / 2
	}

	norm := 1.0
	if s.cfg.Normalized {
		norm = 1 / math.Sqrt(float64(nfft))
	}

	seg := make([]float64, nfft)
	buf := make([]complex128, nfft)
	for f := range out {
		start := f*s.cfg.HopLength - offset
		for i := range seg {
			seg[i] = reflectAt(x, start+i)
		}
		vecmath.MulBlockInPlace(seg, s.window)
		for i, v := range seg {
			buf[i] = complex(v, 0)
		}

		if err := s.plan.Forward(buf, buf); err != nil {
			return nil, fmt.Errorf("stft: forward FFT failed: %w", err)
		}

		row := make([]complex128, s.Bins())
		for k := range row {
			row[k] = buf[k] * complex(norm, 0)
		}
		out[f] = row
	}

	return out, nil
}

// Inverse reconstructs length samples from a spectrogram by weighted
// overlap-add.
func (s *STFT) Inverse(spec [][]complex128, length int) ([]float64, error) {
	nfft := s.cfg.NFFT
	hop := s.cfg.HopLength
	bins := s.Bins()

	offset := 0
	if s.cfg.Center {
		offset = nfft / 2
	}

	total := max(offset+length, (len(spec)-1)*hop+nfft)
	acc := make([]float64, total)
	wsum := make([]float64, total)

	scale := 1.0
	if s.cfg.Normalized {
		scale = math.Sqrt(float64(nfft))
	}

	buf := make([]complex128, nfft)
	frame := make([]float64, nfft)
	for f, row := range spec {
		if len(row) != bins {
			return nil, fmt.Errorf("%w: frame %d has %d bins, want %d", ErrShape, f, len(row), bins)
		}

		for k := range buf {
			buf[k] = 0
		}
		copy(buf, row)
		if s.cfg.Onesided {
			for k := 1; k < nfft-bins+1; k++ {
				buf[nfft-k] = complex(real(row[k]), -imag(row[k]))
			}
		}

		if err := s.plan.Inverse(buf, buf); err != nil {
			return nil, fmt.Errorf("stft: inverse FFT failed: %w", err)
		}

		for i, c := range buf {
			frame[i] = real(c) * scale
		}
		vecmath.MulBlockInPlace(frame, s.window)

		start := f * hop
		for i, v := range frame {
			if start+i >= total {
				break
			}
			acc[start+i] += v
			wsum[start+i] += s.window[i] * s.window[i]
		}
	}

	out := make([]float64, length)
	for i := range out {
		j := i + offset
		if j >= total {
			break
		}
		if wsum[j] > 1e-11 {
			out[i] = acc[j] / wsum[j]
		}
	}
	return out, nil
}

// reflectAt reads x at index i, mirroring out-of-range indices about the
// first and last sample.
func reflectAt(x []float64, i int) float64 {
	n := len(x)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return x[0]
	}
	period := 2 * (n - 1)
	i %= period
	if i < 0 {
		i += period
	}
	if i >= n {
		i = period - i
	}
	return x[i]
}
