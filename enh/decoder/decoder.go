// Package decoder maps separated features back to waveforms.
//
// Registered decoders are stft (default), the inverse of the stft encoder,
// and conv, a learned transposed convolution.
package decoder

import (
	"errors"
	"fmt"

	"github.com/cwbudde/algo-enh/dsp/stft"
	"github.com/cwbudde/algo-enh/enh/choices"
	"github.com/cwbudde/algo-enh/enh/encoder"
	"github.com/cwbudde/algo-enh/enh/nn"
)

// Errors returned by decoders.
var (
	ErrFeature       = errors.New("decoder: invalid feature")
	ErrInvalidOption = errors.New("decoder: invalid option")
)

// Decoder turns features into a batch of waveforms padded to max(ilens).
type Decoder interface {
	nn.Module
	Forward(f encoder.Feature, ilens []int) ([][]float64, []int, error)
}

// Constructor builds a decoder from its configuration.
type Constructor func(conf choices.Conf) (Decoder, error)

// Choices is the decoder registry.
var Choices = choices.New[Constructor]("decoder", "stft")

func init() {
	Choices.MustRegister("stft", newSTFT, func() any { o := encoder.DefaultSTFTOptions(); return &o })
	Choices.MustRegister("conv", newConv, func() any { o := encoder.DefaultConvOptions(); return &o })
}

// New builds the decoder registered as name.
func New(name string, conf choices.Conf) (Decoder, error) {
	ctor, err := Choices.Get(name)
	if err != nil {
		return nil, err
	}
	return ctor(conf)
}

func maxLen(ilens []int) int {
	n := 0
	for _, l := range ilens {
		n = max(n, l)
	}
	return n
}

// fitLength truncates or zero-pads x to n samples.
func fitLength(x []float64, n int) []float64 {
	if len(x) >= n {
		return x[:n]
	}
	out := make([]float64, n)
	copy(out, x)
	return out
}

// STFT is the inverse spectrogram decoder.
type STFT struct {
	opts encoder.STFTOptions
	tf   *stft.STFT
}

// NewSTFT builds an stft decoder.
func NewSTFT(opts encoder.STFTOptions) (*STFT, error) {
	tf, err := opts.NewTransform()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOption, err)
	}
	return &STFT{opts: opts, tf: tf}, nil
}

func newSTFT(conf choices.Conf) (Decoder, error) {
	opts := encoder.DefaultSTFTOptions()
	if err := choices.Decode(conf, &opts); err != nil {
		return nil, err
	}
	return NewSTFT(opts)
}

// Params implements nn.Module.
func (d *STFT) Params() []*nn.Param { return nil }

// Forward inverts every spectrogram to max(ilens) samples.
func (d *STFT) Forward(f encoder.Feature, ilens []int) ([][]float64, []int, error) {
	if !f.IsComplex() {
		return nil, nil, fmt.Errorf("%w: stft decoder needs complex frames", ErrFeature)
	}
	if len(ilens) != f.Batch() {
		return nil, nil, fmt.Errorf("%w: %d items but %d lengths", ErrFeature, f.Batch(), len(ilens))
	}

	n := maxLen(ilens)
	out := make([][]float64, f.Batch())
	for b, spec := range f.Complex {
		wav, err := d.tf.Inverse(spec, n)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrFeature, err)
		}
		out[b] = wav
	}
	return out, ilens, nil
}

// Conv is a transposed convolution from Channel features to one waveform.
type Conv struct {
	opts encoder.ConvOptions
	conv *nn.ConvTranspose1D
}

// NewConv builds a conv decoder.
func NewConv(opts encoder.ConvOptions) (*Conv, error) {
	c, err := nn.NewConvTranspose1D(opts.Channel, 1, opts.KernelSize, opts.Stride, false)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOption, err)
	}
	nn.Prefix("convtrans1d", c.Params())
	return &Conv{opts: opts, conv: c}, nil
}

func newConv(conf choices.Conf) (Decoder, error) {
	opts := encoder.DefaultConvOptions()
	if err := choices.Decode(conf, &opts); err != nil {
		return nil, err
	}
	return NewConv(opts)
}

// Layer exposes the transposed convolution.
func (d *Conv) Layer() *nn.ConvTranspose1D { return d.conv }

// Params implements nn.Module.
func (d *Conv) Params() []*nn.Param { return d.conv.Params() }

// Forward overlap-adds the frames of every item and pads or truncates the
// result to max(ilens).
func (d *Conv) Forward(f encoder.Feature, ilens []int) ([][]float64, []int, error) {
	if f.IsComplex() {
		return nil, nil, fmt.Errorf("%w: conv decoder needs real frames", ErrFeature)
	}
	if len(ilens) != f.Batch() {
		return nil, nil, fmt.Errorf("%w: %d items but %d lengths", ErrFeature, f.Batch(), len(ilens))
	}

	n := maxLen(ilens)
	out := make([][]float64, f.Batch())
	for b, frames := range f.Real {
		x := make([][]float64, d.opts.Channel)
		for c := range x {
			x[c] = make([]float64, len(frames))
		}
		for t, row := range frames {
			if len(row) != d.opts.Channel {
				return nil, nil, fmt.Errorf("%w: frame %d has %d channels, want %d", ErrFeature, t, len(row), d.opts.Channel)
			}
			for c, v := range row {
				x[c][t] = v
			}
		}

		y, err := d.conv.Forward(x)
		if err != nil {
			return nil, nil, err
		}
		out[b] = fitLength(y[0], n)
	}
	return out, ilens, nil
}
