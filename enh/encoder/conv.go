package encoder

import (
	"fmt"

	"github.com/cwbudde/algo-enh/dsp/resample"
	"github.com/cwbudde/algo-enh/enh/choices"
	"github.com/cwbudde/algo-enh/enh/nn"
)

// InputRate is the sample rate the conv16k and wav2vec encoders receive.
const InputRate = 8000

// ConvOptions configures the conv encoder and decoder.
type ConvOptions struct {
	Channel    int `yaml:"channel"`
	KernelSize int `yaml:"kernel_size"`
	Stride     int `yaml:"stride"`
}

// DefaultConvOptions returns a 256-channel, 16-sample, half-overlapping
// basis.
func DefaultConvOptions() ConvOptions {
	return ConvOptions{Channel: 256, KernelSize: 16, Stride: 8}
}

// Conv is a learned 1-D convolution followed by ReLU.
type Conv struct {
	opts ConvOptions
	conv *nn.Conv1D
}

// NewConv builds a conv encoder.
func NewConv(opts ConvOptions) (*Conv, error) {
	c, err := nn.NewConv1D(1, opts.Channel, opts.KernelSize, opts.Stride, false)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOption, err)
	}
	nn.Prefix("conv1d", c.Params())
	return &Conv{opts: opts, conv: c}, nil
}

func newConv(conf choices.Conf) (Encoder, error) {
	opts := DefaultConvOptions()
	if err := choices.Decode(conf, &opts); err != nil {
		return nil, err
	}
	return NewConv(opts)
}

// Layer exposes the convolution.
func (e *Conv) Layer() *nn.Conv1D { return e.conv }

// OutputDim returns the channel count.
func (e *Conv) OutputDim() int { return e.opts.Channel }

// Params implements nn.Module.
func (e *Conv) Params() []*nn.Param { return e.conv.Params() }

// Forward returns [batch][frame][channel] features with
// flens = (ilens - kernel)/stride + 1.
func (e *Conv) Forward(batch [][]float64, ilens []int) (Feature, []int, error) {
	if _, err := checkBatch(batch, ilens); err != nil {
		return Feature{}, nil, err
	}

	out := Feature{Real: make([][][]float64, len(batch))}
	flens := make([]int, len(batch))
	for b, row := range batch {
		y, err := e.conv.Forward([][]float64{row})
		if err != nil {
			return Feature{}, nil, err
		}
		out.Real[b] = transposeFrames(y, true)
		flens[b] = e.conv.OutputLen(ilens[b])
	}
	return out, flens, nil
}

// Conv16kOptions configures the conv16k encoder.
type Conv16kOptions struct {
	Channel    int `yaml:"channel"`
	KernelSize int `yaml:"kernel_size"`
	Stride     int `yaml:"stride"`
	PreRate    int `yaml:"pre_rate"`
}

// DefaultConv16kOptions returns the 16 kHz, 40 ms / 20 ms configuration.
func DefaultConv16kOptions() Conv16kOptions {
	return Conv16kOptions{Channel: 1024, KernelSize: 640, Stride: 320, PreRate: 16000}
}

// Conv16k resamples its 8 kHz input to PreRate and applies a linear
// convolution.
type Conv16k struct {
	opts Conv16kOptions
	conv *nn.Conv1D
}

// NewConv16k builds a conv16k encoder.
func NewConv16k(opts Conv16kOptions) (*Conv16k, error) {
	if opts.PreRate <= 0 {
		return nil, fmt.Errorf("%w: pre_rate %d", ErrInvalidOption, opts.PreRate)
	}
	c, err := nn.NewConv1D(1, opts.Channel, opts.KernelSize, opts.Stride, false)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOption, err)
	}
	nn.Prefix("conv1d", c.Params())
	return &Conv16k{opts: opts, conv: c}, nil
}

func newConv16k(conf choices.Conf) (Encoder, error) {
	opts := DefaultConv16kOptions()
	if err := choices.Decode(conf, &opts); err != nil {
		return nil, err
	}
	return NewConv16k(opts)
}

// Layer exposes the convolution.
func (e *Conv16k) Layer() *nn.Conv1D { return e.conv }

// OutputDim returns the channel count.
func (e *Conv16k) OutputDim() int { return e.opts.Channel }

// Params implements nn.Module.
func (e *Conv16k) Params() []*nn.Param { return e.conv.Params() }

// Forward resamples and convolves every row.
func (e *Conv16k) Forward(batch [][]float64, ilens []int) (Feature, []int, error) {
	if _, err := checkBatch(batch, ilens); err != nil {
		return Feature{}, nil, err
	}

	out := Feature{Real: make([][][]float64, len(batch))}
	flens := make([]int, len(batch))
	for b, row := range batch {
		wav, err := toRate(row, e.opts.PreRate)
		if err != nil {
			return Feature{}, nil, err
		}
		y, err := e.conv.Forward([][]float64{wav})
		if err != nil {
			return Feature{}, nil, err
		}
		out.Real[b] = transposeFrames(y, false)
		flens[b] = e.conv.OutputLen(resample.OutputLen(ilens[b], InputRate, e.opts.PreRate))
	}
	return out, flens, nil
}

// toRate converts an InputRate waveform to rate.
func toRate(x []float64, rate int) ([]float64, error) {
	y, err := resample.Convert(x, InputRate, rate, resample.WithQuality(resample.QualityBest))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOption, err)
	}
	return y, nil
}
