package separator

import (
	"fmt"

	"github.com/cwbudde/algo-enh/enh/choices"
	"github.com/cwbudde/algo-enh/enh/nn"
)

// Position-wise feed-forward layer types.
const (
	FFLinear       = "linear"
	FFConv1D       = "conv1d"
	FFConv1DLinear = "conv1d-linear"
)

// TransformerOptions configures the transformer separator.
type TransformerOptions struct {
	NumSpk                     int     `yaml:"num_spk"`
	Adim                       int     `yaml:"adim"`
	Aheads                     int     `yaml:"aheads"`
	Layers                     int     `yaml:"layers"`
	LinearUnits                int     `yaml:"linear_units"`
	PositionwiseLayerType      string  `yaml:"positionwise_layer_type"`
	PositionwiseConvKernelSize int     `yaml:"positionwise_conv_kernel_size"`
	NormalizeBefore            bool    `yaml:"normalize_before"`
	ConcatAfter                bool    `yaml:"concat_after"`
	DropoutRate                float64 `yaml:"dropout_rate"`
	PositionalDropoutRate      float64 `yaml:"positional_dropout_rate"`
	AttentionDropoutRate       float64 `yaml:"attention_dropout_rate"`
	UseScaledPosEnc            bool    `yaml:"use_scaled_pos_enc"`
	Nonlinear                  string  `yaml:"nonlinear"`
}

// DefaultTransformerOptions returns a 6-layer encoder with 384 attention
// dimensions and 4 heads.
func DefaultTransformerOptions() TransformerOptions {
	return TransformerOptions{
		NumSpk:                     2,
		Adim:                       384,
		Aheads:                     4,
		Layers:                     6,
		LinearUnits:                1536,
		PositionwiseLayerType:      FFLinear,
		PositionwiseConvKernelSize: 1,
		DropoutRate:                0.1,
		PositionalDropoutRate:      0.1,
		AttentionDropoutRate:       0.1,
		UseScaledPosEnc:            true,
		Nonlinear:                  "relu",
	}
}

// Transformer is a self-attention encoder with one linear mask head per
// speaker.
type Transformer struct {
	inputDim int
	opts     TransformerOptions
}

// NewTransformer validates opts. Adim must be divisible by Aheads.
func NewTransformer(inputDim int, opts TransformerOptions) (*Transformer, error) {
	if err := checkPositive(
		intField{"num_spk", opts.NumSpk},
		intField{"adim", opts.Adim},
		intField{"aheads", opts.Aheads},
		intField{"layers", opts.Layers},
		intField{"linear_units", opts.LinearUnits},
		intField{"positionwise_conv_kernel_size", opts.PositionwiseConvKernelSize},
	); err != nil {
		return nil, err
	}
	if opts.Adim%opts.Aheads != 0 {
		return nil, fmt.Errorf("%w: adim %d not divisible by aheads %d", ErrInvalidOption, opts.Adim, opts.Aheads)
	}
	if err := checkOneOf("positionwise_layer_type", opts.PositionwiseLayerType,
		FFLinear, FFConv1D, FFConv1DLinear); err != nil {
		return nil, err
	}
	if err := checkOneOf("nonlinear", opts.Nonlinear, nonlinears...); err != nil {
		return nil, err
	}
	for _, d := range []struct {
		name string
		v    float64
	}{
		{"dropout_rate", opts.DropoutRate},
		{"positional_dropout_rate", opts.PositionalDropoutRate},
		{"attention_dropout_rate", opts.AttentionDropoutRate},
	} {
		if err := checkDropout(d.name, d.v); err != nil {
			return nil, err
		}
	}
	return &Transformer{inputDim: inputDim, opts: opts}, nil
}

func newTransformer(inputDim int, conf choices.Conf) (Separator, error) {
	opts := DefaultTransformerOptions()
	if err := choices.Decode(conf, &opts); err != nil {
		return nil, err
	}
	return NewTransformer(inputDim, opts)
}

func (s *Transformer) Name() string                { return "transformer" }
func (s *Transformer) InputDim() int               { return s.inputDim }
func (s *Transformer) NumSpk() int                 { return s.opts.NumSpk }
func (s *Transformer) Options() TransformerOptions { return s.opts }

// HeadDim is the per-head attention width.
func (s *Transformer) HeadDim() int { return s.opts.Adim / s.opts.Aheads }

func (s *Transformer) feedForwardParams() int {
	a, u, k := s.opts.Adim, s.opts.LinearUnits, s.opts.PositionwiseConvKernelSize
	switch s.opts.PositionwiseLayerType {
	case FFConv1D:
		return nn.Conv1DParams(a, u, k, true) + nn.Conv1DParams(u, a, k, true)
	case FFConv1DLinear:
		return nn.Conv1DParams(a, u, k, true) + nn.LinearParams(u, a, true)
	default:
		return nn.LinearParams(a, u, true) + nn.LinearParams(u, a, true)
	}
}

// Breakdown counts the input embedding, the encoder layers and the mask
// heads.
func (s *Transformer) Breakdown() nn.Breakdown {
	a := s.opts.Adim

	embed := nn.LinearParams(s.inputDim, a, true) + nn.LayerNormParams(a)
	if s.opts.UseScaledPosEnc {
		embed++ // alpha
	}

	layer := 4*nn.LinearParams(a, a, true) + // q, k, v, out
		s.feedForwardParams() +
		2*nn.LayerNormParams(a)
	if s.opts.ConcatAfter {
		layer += nn.LinearParams(2*a, a, true)
	}

	var b nn.Breakdown
	b.Add("embed", embed)
	b.Add("encoders", s.opts.Layers*layer)
	if s.opts.NormalizeBefore {
		b.Add("after_norm", nn.LayerNormParams(a))
	}
	b.Add("linear", s.opts.NumSpk*nn.LinearParams(a, s.inputDim, true))
	return b
}
