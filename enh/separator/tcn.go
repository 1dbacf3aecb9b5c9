package separator

import (
	"github.com/cwbudde/algo-enh/enh/choices"
	"github.com/cwbudde/algo-enh/enh/nn"
)

// TCNOptions configures the tcn separator (Conv-TasNet's temporal
// convolutional network).
type TCNOptions struct {
	NumSpk        int    `yaml:"num_spk"`
	Layer         int    `yaml:"layer"`
	Stack         int    `yaml:"stack"`
	BottleneckDim int    `yaml:"bottleneck_dim"`
	HiddenDim     int    `yaml:"hidden_dim"`
	Kernel        int    `yaml:"kernel"`
	Causal        bool   `yaml:"causal"`
	NormType      string `yaml:"norm_type"`
	Nonlinear     string `yaml:"nonlinear"`
}

// DefaultTCNOptions returns X=8 blocks repeated R=3 times with B=128, H=512
// and P=3.
func DefaultTCNOptions() TCNOptions {
	return TCNOptions{
		NumSpk:        2,
		Layer:         8,
		Stack:         3,
		BottleneckDim: 128,
		HiddenDim:     512,
		Kernel:        3,
		NormType:      "gLN",
		Nonlinear:     "relu",
	}
}

// TCN is a stack of dilated depthwise-separable convolution blocks.
type TCN struct {
	inputDim int
	opts     TCNOptions
}

// NewTCN validates opts.
func NewTCN(inputDim int, opts TCNOptions) (*TCN, error) {
	if err := checkPositive(
		intField{"num_spk", opts.NumSpk},
		intField{"layer", opts.Layer},
		intField{"stack", opts.Stack},
		intField{"bottleneck_dim", opts.BottleneckDim},
		intField{"hidden_dim", opts.HiddenDim},
		intField{"kernel", opts.Kernel},
	); err != nil {
		return nil, err
	}
	if err := checkOneOf("norm_type", opts.NormType, "gLN", "cLN", "BN"); err != nil {
		return nil, err
	}
	if err := checkOneOf("nonlinear", opts.Nonlinear, nonlinears...); err != nil {
		return nil, err
	}
	return &TCN{inputDim: inputDim, opts: opts}, nil
}

func newTCN(inputDim int, conf choices.Conf) (Separator, error) {
	opts := DefaultTCNOptions()
	if err := choices.Decode(conf, &opts); err != nil {
		return nil, err
	}
	return NewTCN(inputDim, opts)
}

func (s *TCN) Name() string        { return "tcn" }
func (s *TCN) InputDim() int       { return s.inputDim }
func (s *TCN) NumSpk() int         { return s.opts.NumSpk }
func (s *TCN) Options() TCNOptions { return s.opts }

// Dilations returns the dilation of every block in order: 1, 2, 4, ...
// restarting for each stack.
func (s *TCN) Dilations() []int {
	out := make([]int, 0, s.opts.Layer*s.opts.Stack)
	for r := 0; r < s.opts.Stack; r++ {
		for x := 0; x < s.opts.Layer; x++ {
			out = append(out, 1<<x)
		}
	}
	return out
}

// ReceptiveField returns the receptive field in frames.
func (s *TCN) ReceptiveField() int {
	rf := 1
	for _, d := range s.Dilations() {
		rf += (s.opts.Kernel - 1) * d
	}
	return rf
}

// Breakdown counts 2N + N*B + X*R*(2BH + HP + 4H + 2) + B*C*N.
func (s *TCN) Breakdown() nn.Breakdown {
	n := s.inputDim
	bd := s.opts.BottleneckDim
	h := s.opts.HiddenDim
	p := s.opts.Kernel

	block := nn.Conv1DParams(bd, h, 1, false) + // 1x1 conv
		1 + nn.LayerNormParams(h) + // PReLU, norm
		h*p + // depthwise conv
		1 + nn.LayerNormParams(h) + // PReLU, norm
		nn.Conv1DParams(h, bd, 1, false) // pointwise conv

	var b nn.Breakdown
	b.Add("layer_norm", nn.LayerNormParams(n))
	b.Add("bottleneck_conv1x1", nn.Conv1DParams(n, bd, 1, false))
	b.Add("temporal_blocks", s.opts.Layer*s.opts.Stack*block)
	b.Add("mask_conv1x1", nn.Conv1DParams(bd, s.opts.NumSpk*n, 1, false))
	return b
}
