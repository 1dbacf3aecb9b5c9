// Package encoder maps waveforms to the feature domain a separator works in.
//
// Registered encoders:
//
//   - stft (default): complex one-sided spectrogram.
//   - conv: learned 1-D convolution with ReLU.
//   - conv16k: resampling to a higher rate followed by a learned convolution.
//   - wav2vec: learned convolution fused with a frozen pretrained feature
//     extractor loaded from a checkpoint.
//
// # Usage
//
//	enc, err := encoder.New("stft", choices.Conf{"n_fft": 256, "hop_length": 64})
//	feats, flens, err := enc.Forward(batch, ilens)
package encoder

import (
	"errors"
	"fmt"

	"github.com/cwbudde/algo-enh/enh/choices"
	"github.com/cwbudde/algo-enh/enh/nn"
)

// Errors returned by encoders.
var (
	ErrBatch         = errors.New("encoder: invalid batch")
	ErrInvalidOption = errors.New("encoder: invalid option")
	ErrShapeMismatch = errors.New("encoder: feature shape mismatch")
)

// Feature is a batch of frame sequences shaped [batch][frame][dim]. Exactly
// one of Real and Complex is set.
type Feature struct {
	Real    [][][]float64
	Complex [][][]complex128
}

// IsComplex reports whether f holds complex frames.
func (f Feature) IsComplex() bool { return f.Complex != nil }

// Batch returns the batch size.
func (f Feature) Batch() int {
	if f.IsComplex() {
		return len(f.Complex)
	}
	return len(f.Real)
}

// Frames returns the number of frames of batch item b.
func (f Feature) Frames(b int) int {
	if f.IsComplex() {
		return len(f.Complex[b])
	}
	return len(f.Real[b])
}

// Encoder turns a padded batch of single-channel waveforms into features.
type Encoder interface {
	nn.Module
	// OutputDim is the feature dimension a separator receives.
	OutputDim() int
	// Forward returns the features and the valid frame count per item.
	Forward(batch [][]float64, ilens []int) (Feature, []int, error)
}

// Constructor builds an encoder from its configuration.
type Constructor func(conf choices.Conf) (Encoder, error)

// Choices is the encoder registry.
var Choices = choices.New[Constructor]("encoder", "stft")

func init() {
	Choices.MustRegister("stft", newSTFT, func() any { o := DefaultSTFTOptions(); return &o })
	Choices.MustRegister("conv", newConv, func() any { o := DefaultConvOptions(); return &o })
	Choices.MustRegister("conv16k", newConv16k, func() any { o := DefaultConv16kOptions(); return &o })
	Choices.MustRegister("wav2vec", newWav2vec, func() any { o := DefaultWav2vecOptions(); return &o })
}

// New builds the encoder registered as name.
func New(name string, conf choices.Conf) (Encoder, error) {
	ctor, err := Choices.Get(name)
	if err != nil {
		return nil, err
	}
	return ctor(conf)
}

// checkBatch validates a padded batch and returns its row length.
func checkBatch(batch [][]float64, ilens []int) (int, error) {
	if len(batch) == 0 {
		return 0, fmt.Errorf("%w: empty batch", ErrBatch)
	}
	if len(ilens) != len(batch) {
		return 0, fmt.Errorf("%w: %d rows but %d lengths", ErrBatch, len(batch), len(ilens))
	}
	n := len(batch[0])
	for b, row := range batch {
		if len(row) != n {
			return 0, fmt.Errorf("%w: row %d has %d samples, want %d", ErrBatch, b, len(row), n)
		}
		if ilens[b] < 0 || ilens[b] > n {
			return 0, fmt.Errorf("%w: length %d of row %d outside [0, %d]", ErrBatch, ilens[b], b, n)
		}
	}
	return n, nil
}

// transposeFrames turns [channel][frame] into [frame][channel], applying
// relu when requested.
func transposeFrames(y [][]float64, relu bool) [][]float64 {
	if len(y) == 0 {
		return nil
	}
	frames := len(y[0])
	out := make([][]float64, frames)
	for f := range out {
		row := make([]float64, len(y))
		for c := range y {
			v := y[c][f]
			if relu && v < 0 {
				v = 0
			}
			row[c] = v
		}
		out[f] = row
	}
	return out
}
