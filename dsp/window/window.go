// Package window generates the analysis windows used to frame speech for
// short-time transforms.
package window

import (
	"errors"
	"fmt"
	"math"
	"slices"
)

// ErrUnknownType is returned by Parse for an unsupported window name.
var ErrUnknownType = errors.New("window: unknown type")

// Type names a window function. The names match the window option of
// enhancement model configs.
type Type string

const (
	Rectangular Type = "rectangular"
	Hann        Type = "hann"
	Hamming     Type = "hamming"
	Blackman    Type = "blackman"
	Bartlett    Type = "bartlett"
	Kaiser      Type = "kaiser"
)

// DefaultKaiserBeta is the Kaiser shape used when WithBeta is not given.
const DefaultKaiserBeta = 12.0

// generalized cosine coefficients: w(x) = sum_k a_k cos(2*pi*k*x)
var cosineTerms = map[Type][]float64{
	Hann:     {0.5, -0.5},
	Hamming:  {0.54, -0.46},
	Blackman: {0.42, -0.5, 0.08},
}

// Types returns the supported window names in sorted order.
func Types() []Type {
	return []Type{Bartlett, Blackman, Hamming, Hann, Kaiser, Rectangular}
}

// Parse resolves a window name. "boxcar" and "" are accepted for the
// rectangular window.
func Parse(name string) (Type, error) {
	switch name {
	case "", "boxcar":
		return Rectangular, nil
	}
	t := Type(name)
	if !slices.Contains(Types(), t) {
		return "", fmt.Errorf("%w: %q", ErrUnknownType, name)
	}
	return t, nil
}

// Option configures window generation.
type Option func(*config)

type config struct {
	periodic bool
	padTo    int
	beta     float64
}

func defaultConfig() config {
	return config{beta: DefaultKaiserBeta}
}

// WithPeriodic generates the periodic form used for FFT framing: the
// window of length n+1 with its last sample dropped.
func WithPeriodic() Option {
	return func(c *config) {
		c.periodic = true
	}
}

// WithBeta sets the Kaiser shape parameter. Negative values are ignored.
func WithBeta(beta float64) Option {
	return func(c *config) {
		if beta >= 0 {
			c.beta = beta
		}
	}
}

// WithPadding centres the window in n samples of zeros. Values smaller
// than the window length are ignored.
func WithPadding(n int) Option {
	return func(c *config) {
		c.padTo = n
	}
}

// Generate returns length coefficients of window t. It returns nil for a
// non-positive length.
func Generate(t Type, length int, opts ...Option) []float64 {
	if length <= 0 {
		return nil
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	total := max(length, cfg.padTo)
	out := make([]float64, total)
	left := (total - length) / 2
	if length == 1 {
		out[left] = 1
		return out
	}
	for i := range length {
		out[left+i] = at(t, position(i, length, cfg.periodic), cfg)
	}
	return out
}

// Apply multiplies buf in place by window t of the same length.
func Apply(t Type, buf []float64, opts ...Option) {
	w := Generate(t, len(buf), opts...)
	for i := range buf {
		buf[i] *= w[i]
	}
}

// position maps sample n to [0, 1].
func position(n, size int, periodic bool) float64 {
	den := float64(size - 1)
	if periodic {
		den = float64(size)
	}
	return float64(n) / den
}

func at(t Type, x float64, cfg config) float64 {
	switch t {
	case Bartlett:
		return 1 - math.Abs(2*x-1)
	case Kaiser:
		r := 2*x - 1
		return besselI0(cfg.beta*math.Sqrt(math.Max(0, 1-r*r))) / besselI0(cfg.beta)
	case Hann, Hamming, Blackman:
		if x == 0 && t != Hamming {
			// exact zero at the edge instead of a rounding residue
			return 0
		}
		sum := 0.0
		for k, a := range cosineTerms[t] {
			sum += a * math.Cos(2*math.Pi*float64(k)*x)
		}
		return sum
	default:
		return 1
	}
}

// besselI0 sums the power series of the modified Bessel function of the
// first kind, order zero.
func besselI0(x float64) float64 {
	sum, term := 1.0, 1.0
	q := x * x / 4
	for k := 1; k < 64; k++ {
		term *= q / float64(k*k)
		sum += term
		if term < 1e-16*sum {
			break
		}
	}
	return sum
}
