// Package wavio reads and writes PCM WAV files as float64 channel slices in
// the range [-1, 1).
package wavio

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Errors returned by Read and Write.
var (
	ErrInvalidFile     = errors.New("wavio: not a valid wav file")
	ErrInvalidBitDepth = errors.New("wavio: unsupported bit depth")
	ErrChannelLength   = errors.New("wavio: channels differ in length")
	ErrEmpty           = errors.New("wavio: no channels")
)

// Audio is a multi-channel signal. Channels[c][n] is sample n of channel c.
type Audio struct {
	SampleRate int
	Channels   [][]float64
}

// NewMono wraps one channel.
func NewMono(sampleRate int, samples []float64) *Audio {
	return &Audio{SampleRate: sampleRate, Channels: [][]float64{samples}}
}

// NumChannels returns the channel count.
func (a *Audio) NumChannels() int { return len(a.Channels) }

// Len returns the number of samples per channel.
func (a *Audio) Len() int {
	if len(a.Channels) == 0 {
		return 0
	}
	return len(a.Channels[0])
}

// Mono returns the first channel.
func (a *Audio) Mono() []float64 {
	if len(a.Channels) == 0 {
		return nil
	}
	return a.Channels[0]
}

// Duration returns the length in seconds.
func (a *Audio) Duration() float64 {
	if a.SampleRate <= 0 {
		return 0
	}
	return float64(a.Len()) / float64(a.SampleRate)
}

// Read decodes the WAV file at path.
func Read(path string) (*Audio, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("wavio: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidFile, path)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("wavio: read %s: %w", path, err)
	}

	nch := buf.Format.NumChannels
	if nch <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmpty, path)
	}

	depth := buf.SourceBitDepth
	if depth == 0 {
		depth = int(dec.BitDepth)
	}
	scale, err := fullScale(depth)
	if err != nil {
		return nil, err
	}

	n := len(buf.Data) / nch
	out := &Audio{SampleRate: buf.Format.SampleRate, Channels: make([][]float64, nch)}
	for c := range out.Channels {
		ch := make([]float64, n)
		for i := range ch {
			ch[i] = float64(buf.Data[i*nch+c]) / scale
		}
		out.Channels[c] = ch
	}

	return out, nil
}

// Option configures Write.
type Option func(*config)

type config struct {
	bitDepth int
}

// WithBitDepth selects the PCM sample size (16, 24 or 32 bits).
func WithBitDepth(bits int) Option {
	return func(c *config) {
		c.bitDepth = bits
	}
}

// Write encodes a as PCM at path, creating parent directories. Samples are
// clipped to the representable range.
func Write(path string, a *Audio, opts ...Option) error {
	cfg := config{bitDepth: 16}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	if len(a.Channels) == 0 {
		return ErrEmpty
	}
	n := a.Len()
	for _, ch := range a.Channels {
		if len(ch) != n {
			return ErrChannelLength
		}
	}

	scale, err := fullScale(cfg.bitDepth)
	if err != nil {
		return err
	}

	nch := len(a.Channels)
	data := make([]int, n*nch)
	maxInt := scale - 1
	for c, ch := range a.Channels {
		for i, v := range ch {
			s := v * scale
			if s > maxInt {
				s = maxInt
			} else if s < -scale {
				s = -scale
			}
			data[i*nch+c] = int(math.Round(s))
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("wavio: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("wavio: %w", err)
	}

	enc := wav.NewEncoder(f, a.SampleRate, cfg.bitDepth, nch, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: nch, SampleRate: a.SampleRate},
		Data:           data,
		SourceBitDepth: cfg.bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		f.Close()
		return fmt.Errorf("wavio: write %s: %w", path, err)
	}
	if err := enc.Close(); err != nil {
		f.Close()
		return fmt.Errorf("wavio: close encoder %s: %w", path, err)
	}
	return f.Close()
}

func fullScale(bits int) (float64, error) {
	switch bits {
	case 16, 24, 32:
		return float64(int64(1) << (bits - 1)), nil
	default:
		return 0, fmt.Errorf("%w: %d", ErrInvalidBitDepth, bits)
	}
}
