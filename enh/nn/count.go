package nn

import (
	"fmt"
	"strings"
)

// RNN cell types.
const (
	CellLSTM = "lstm"
	CellGRU  = "gru"
	CellRNN  = "rnn"
)

// gates returns the number of gate blocks of a recurrent cell.
func gates(cell string) (int, error) {
	switch strings.ToLower(cell) {
	case CellLSTM:
		return 4, nil
	case CellGRU:
		return 3, nil
	case CellRNN:
		return 1, nil
	default:
		return 0, fmt.Errorf("%w: rnn type %q", ErrShape, cell)
	}
}

// ValidCell reports whether cell names a supported recurrent cell.
func ValidCell(cell string) bool {
	_, err := gates(cell)
	return err == nil
}

// LinearParams counts a fully connected layer.
func LinearParams(in, out int, bias bool) int {
	n := in * out
	if bias {
		n += out
	}
	return n
}

// Conv1DParams counts a 1-D convolution.
func Conv1DParams(in, out, kernel int, bias bool) int {
	n := in * out * kernel
	if bias {
		n += out
	}
	return n
}

// RNNParams counts a stacked recurrent layer with two bias vectors per gate
// block. Layers after the first see hidden*directions inputs.
func RNNParams(cell string, in, hidden, layers int, bidirectional bool) (int, error) {
	g, err := gates(cell)
	if err != nil {
		return 0, err
	}
	dirs := 1
	if bidirectional {
		dirs = 2
	}

	n := 0
	for l := 0; l < layers; l++ {
		inL := in
		if l > 0 {
			inL = hidden * dirs
		}
		n += dirs * g * (inL*hidden + hidden*hidden + 2*hidden)
	}
	return n, nil
}

// LayerNormParams counts an affine layer normalisation.
func LayerNormParams(dim int) int { return 2 * dim }

// GroupNormParams counts an affine group normalisation over channels.
func GroupNormParams(channels int) int { return 2 * channels }

// Breakdown is an ordered list of named parameter counts.
type Breakdown []Count

// Count is one entry of a Breakdown.
type Count struct {
	Name   string
	Params int
}

// Add appends an entry.
func (b *Breakdown) Add(name string, n int) {
	*b = append(*b, Count{Name: name, Params: n})
}

// Total sums every entry.
func (b Breakdown) Total() int {
	n := 0
	for _, c := range b {
		n += c.Params
	}
	return n
}
