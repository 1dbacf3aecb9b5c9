package encoder

import (
	"fmt"

	"github.com/cwbudde/algo-enh/dsp/stft"
	"github.com/cwbudde/algo-enh/dsp/window"
	"github.com/cwbudde/algo-enh/enh/choices"
	"github.com/cwbudde/algo-enh/enh/nn"
)

// STFTOptions configures the stft encoder and decoder.
type STFTOptions struct {
	NFFT int `yaml:"n_fft"`
	// WinLength 0 means NFFT.
	WinLength int `yaml:"win_length"`
	HopLength int `yaml:"hop_length"`
	// Window is hann, hamming, blackman, bartlett, kaiser or rectangular; empty
	// means no window.
	Window     string `yaml:"window"`
	Center     bool   `yaml:"center"`
	Normalized bool   `yaml:"normalized"`
	Onesided   bool   `yaml:"onesided"`
}

// DefaultSTFTOptions returns a 512-point, 128-hop Hann transform.
func DefaultSTFTOptions() STFTOptions {
	return STFTOptions{
		NFFT:      512,
		HopLength: 128,
		Window:    "hann",
		Center:    true,
		Onesided:  true,
	}
}

// NewTransform validates o and builds the transform it describes.
func (o STFTOptions) NewTransform() (*stft.STFT, error) {
	win, err := window.Parse(o.Window)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOption, err)
	}
	s, err := stft.New(stft.Config{
		NFFT:       o.NFFT,
		WinLength:  o.WinLength,
		Window:     win,
		HopLength:  o.HopLength,
		Center:     o.Center,
		Normalized: o.Normalized,
		Onesided:   o.Onesided,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOption, err)
	}
	return s, nil
}

// STFT is the spectrogram encoder. It has no parameters.
type STFT struct {
	opts STFTOptions
	tf   *stft.STFT
}

// NewSTFT builds an stft encoder.
func NewSTFT(opts STFTOptions) (*STFT, error) {
	tf, err := opts.NewTransform()
	if err != nil {
		return nil, err
	}
	return &STFT{opts: opts, tf: tf}, nil
}

func newSTFT(conf choices.Conf) (Encoder, error) {
	opts := DefaultSTFTOptions()
	if err := choices.Decode(conf, &opts); err != nil {
		return nil, err
	}
	return NewSTFT(opts)
}

// Options returns the configuration.
func (e *STFT) Options() STFTOptions { return e.opts }

// OutputDim returns the number of frequency bins.
func (e *STFT) OutputDim() int { return e.tf.Bins() }

// Params implements nn.Module.
func (e *STFT) Params() []*nn.Param { return nil }

// Forward computes the spectrogram of every row. Frame counts follow the
// valid lengths, ilens/hop+1 for centred frames.
func (e *STFT) Forward(batch [][]float64, ilens []int) (Feature, []int, error) {
	if _, err := checkBatch(batch, ilens); err != nil {
		return Feature{}, nil, err
	}

	out := Feature{Complex: make([][][]complex128, len(batch))}
	flens := make([]int, len(batch))
	for b, row := range batch {
		spec, err := e.tf.Forward(row)
		if err != nil {
			return Feature{}, nil, err
		}
		out.Complex[b] = spec
		flens[b] = e.tf.NumFrames(ilens[b])
	}
	return out, flens, nil
}
