package separator

import (
	"github.com/cwbudde/algo-enh/enh/choices"
	"github.com/cwbudde/algo-enh/enh/nn"
)

// DPRNNOptions configures the dual-path RNN separator.
type DPRNNOptions struct {
	RNNType       string  `yaml:"rnn_type"`
	Bidirectional bool    `yaml:"bidirectional"`
	NumSpk        int     `yaml:"num_spk"`
	Nonlinear     string  `yaml:"nonlinear"`
	Layer         int     `yaml:"layer"`
	Unit          int     `yaml:"unit"`
	SegmentSize   int     `yaml:"segment_size"`
	Dropout       float64 `yaml:"dropout"`
}

// DefaultDPRNNOptions returns three bidirectional LSTM dual-path blocks.
func DefaultDPRNNOptions() DPRNNOptions {
	return DPRNNOptions{
		RNNType:       "lstm",
		Bidirectional: true,
		NumSpk:        2,
		Nonlinear:     "relu",
		Layer:         3,
		Unit:          512,
		SegmentSize:   20,
	}
}

// DPRNN alternates intra-chunk (row) and inter-chunk (column) recurrences
// over segments of SegmentSize frames.
type DPRNN struct {
	inputDim int
	opts     DPRNNOptions
}

// NewDPRNN validates opts.
func NewDPRNN(inputDim int, opts DPRNNOptions) (*DPRNN, error) {
	if err := checkOneOf("rnn_type", opts.RNNType, nn.CellLSTM, nn.CellGRU, nn.CellRNN); err != nil {
		return nil, err
	}
	if err := checkPositive(
		intField{"num_spk", opts.NumSpk},
		intField{"layer", opts.Layer},
		intField{"unit", opts.Unit},
		intField{"segment_size", opts.SegmentSize},
	); err != nil {
		return nil, err
	}
	if err := checkOneOf("nonlinear", opts.Nonlinear, nonlinears...); err != nil {
		return nil, err
	}
	if err := checkDropout("dropout", opts.Dropout); err != nil {
		return nil, err
	}
	return &DPRNN{inputDim: inputDim, opts: opts}, nil
}

func newDPRNN(inputDim int, conf choices.Conf) (Separator, error) {
	opts := DefaultDPRNNOptions()
	if err := choices.Decode(conf, &opts); err != nil {
		return nil, err
	}
	return NewDPRNN(inputDim, opts)
}

func (s *DPRNN) Name() string          { return "dprnn" }
func (s *DPRNN) InputDim() int         { return s.inputDim }
func (s *DPRNN) NumSpk() int           { return s.opts.NumSpk }
func (s *DPRNN) Options() DPRNNOptions { return s.opts }

// Segments returns the number of 50%-overlapping segments covering frames
// frames after padding.
func (s *DPRNN) Segments(frames int) int {
	k := s.opts.SegmentSize
	hop := k / 2
	if hop == 0 {
		hop = 1
	}
	// pad so that (frames + 2*hop + rest) is a whole number of hops
	rest := k - (hop+frames%k)%k
	padded := frames + rest + 2*hop
	return (padded-k)/hop + 1
}

// Breakdown counts every dual-path block and the output layer. Row RNNs are
// always bidirectional, column RNNs follow Bidirectional.
func (s *DPRNN) Breakdown() nn.Breakdown {
	in := s.inputDim
	u := s.opts.Unit
	out := in * s.opts.NumSpk

	row, _ := nn.RNNParams(s.opts.RNNType, in, u, 1, true)
	row += nn.LinearParams(2*u, in, true)
	col, _ := nn.RNNParams(s.opts.RNNType, in, u, 1, s.opts.Bidirectional)
	col += nn.LinearParams(u*directions(s.opts.Bidirectional), in, true)
	norms := 2 * nn.GroupNormParams(in)

	var b nn.Breakdown
	b.Add("row_rnn", s.opts.Layer*row)
	b.Add("col_rnn", s.opts.Layer*col)
	b.Add("norms", s.opts.Layer*norms)
	b.Add("output", 1+nn.Conv1DParams(in, out, 1, true))
	return b
}
