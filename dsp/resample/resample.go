package resample

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRate indicates a non-positive input or output sample rate.
	ErrInvalidRate = errors.New("resample: invalid sample rate")
)

// Quality selects the anti-aliasing filter length and shape.
type Quality int

const (
	QualityFast Quality = iota
	QualityBalanced
	QualityBest
)

// String returns the quality name.
func (q Quality) String() string {
	switch q {
	case QualityFast:
		return "fast"
	case QualityBest:
		return "best"
	default:
		return "balanced"
	}
}

type config struct {
	quality Quality
}

func defaultConfig() config {
	return config{quality: QualityBalanced}
}

// Option configures a Converter.
type Option func(*config)

// WithQuality selects a quality mode.
func WithQuality(q Quality) Option {
	return func(cfg *config) {
		cfg.quality = q
	}
}

// Converter changes the sample rate of whole utterances. It holds only the
// designed filter, so one Converter may be shared between goroutines.
type Converter struct {
	inRate, outRate int
	up, down        int
	fir             *polyphase
}

// NewConverter designs the filter for inRate -> outRate.
func NewConverter(inRate, outRate int, opts ...Option) (*Converter, error) {
	if inRate <= 0 || outRate <= 0 {
		return nil, fmt.Errorf("%w: %d -> %d", ErrInvalidRate, inRate, outRate)
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	g := gcd(inRate, outRate)
	c := &Converter{inRate: inRate, outRate: outRate, up: outRate / g, down: inRate / g}
	if c.up != c.down {
		c.fir = design(c.up, c.down, cfg.quality)
	}
	return c, nil
}

// Ratio returns the reduced up/down factors.
func (c *Converter) Ratio() (up, down int) {
	return c.up, c.down
}

// Convert resamples x. Output sample m is the band-limited value of x at
// time m/outRate, so the result is aligned with x and holds OutputLen
// samples. Equal rates return a copy.
func (c *Converter) Convert(x []float64) []float64 {
	if c.fir == nil {
		return append([]float64(nil), x...)
	}

	out := make([]float64, OutputLen(len(x), c.inRate, c.outRate))
	h := c.fir.taps
	for m := range out {
		// position in the up-sampled stream, shifted by the group delay
		n := m*c.down + c.fir.delay
		first := max(0, ceilDiv(n-len(h)+1, c.up))
		last := min(len(x)-1, n/c.up)

		var y float64
		for i := first; i <= last; i++ {
			y += h[n-i*c.up] * x[i]
		}
		out[m] = y
	}
	return out
}

// Convert resamples x from inRate to outRate in one shot.
func Convert(x []float64, inRate, outRate int, opts ...Option) ([]float64, error) {
	c, err := NewConverter(inRate, outRate, opts...)
	if err != nil {
		return nil, err
	}
	return c.Convert(x), nil
}

// OutputLen returns ceil(n*outRate/inRate).
func OutputLen(n, inRate, outRate int) int {
	return int(ceilDiv64(int64(n)*int64(outRate), int64(inRate)))
}

func ceilDiv(a, b int) int {
	return int(ceilDiv64(int64(a), int64(b)))
}

// ceilDiv64 rounds a/b up for b > 0 and any sign of a.
func ceilDiv64(a, b int64) int64 {
	q := a / b
	if a%b != 0 && a > 0 {
		q++
	}
	return q
}
