package separator

import (
	"fmt"

	"github.com/cwbudde/algo-enh/enh/choices"
	"github.com/cwbudde/algo-enh/enh/nn"
)

// RNNOptions configures the rnn separator.
type RNNOptions struct {
	RNNType   string  `yaml:"rnn_type"`
	NumSpk    int     `yaml:"num_spk"`
	Nonlinear string  `yaml:"nonlinear"`
	Layer     int     `yaml:"layer"`
	Unit      int     `yaml:"unit"`
	Dropout   float64 `yaml:"dropout"`
}

// DefaultRNNOptions returns a 3-layer, 512-unit BLSTM for two speakers.
func DefaultRNNOptions() RNNOptions {
	return RNNOptions{
		RNNType:   "blstm",
		NumSpk:    2,
		Nonlinear: "sigmoid",
		Layer:     3,
		Unit:      512,
	}
}

// RNN is a recurrent mask estimator with one linear mask head per speaker.
type RNN struct {
	inputDim int
	opts     RNNOptions
	typ      rnnType
}

// NewRNN validates opts.
func NewRNN(inputDim int, opts RNNOptions) (*RNN, error) {
	typ, err := parseRNNType(opts.RNNType)
	if err != nil {
		return nil, err
	}
	if typ.projected {
		return nil, fmt.Errorf("%w: rnn_type %q (projected types are not supported here)", ErrInvalidOption, opts.RNNType)
	}
	if err := checkPositive(
		intField{"num_spk", opts.NumSpk},
		intField{"layer", opts.Layer},
		intField{"unit", opts.Unit},
	); err != nil {
		return nil, err
	}
	if err := checkOneOf("nonlinear", opts.Nonlinear, nonlinears...); err != nil {
		return nil, err
	}
	if err := checkDropout("dropout", opts.Dropout); err != nil {
		return nil, err
	}
	return &RNN{inputDim: inputDim, opts: opts, typ: typ}, nil
}

func newRNN(inputDim int, conf choices.Conf) (Separator, error) {
	opts := DefaultRNNOptions()
	if err := choices.Decode(conf, &opts); err != nil {
		return nil, err
	}
	return NewRNN(inputDim, opts)
}

func (s *RNN) Name() string        { return "rnn" }
func (s *RNN) InputDim() int       { return s.inputDim }
func (s *RNN) NumSpk() int         { return s.opts.NumSpk }
func (s *RNN) Options() RNNOptions { return s.opts }

// Breakdown counts the recurrent stack, its output projection and the mask
// heads.
func (s *RNN) Breakdown() nn.Breakdown {
	var b nn.Breakdown
	u := s.opts.Unit
	rnn, _ := nn.RNNParams(s.typ.cell, s.inputDim, u, s.opts.Layer, s.typ.bidirectional)
	b.Add("rnn", rnn)
	b.Add("rnn.l_last", nn.LinearParams(u*directions(s.typ.bidirectional), u, true))
	b.Add("linear", s.opts.NumSpk*nn.LinearParams(u, s.inputDim, true))
	return b
}
