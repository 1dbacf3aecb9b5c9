// Package separator describes the mask-estimation networks of the
// enhancement model.
//
// Separators are configured, validated and accounted for here: each one knows
// its input dimension, speaker count and the exact parameter count of the
// layers it is made of. Running them is left to a numerical backend.
package separator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cwbudde/algo-enh/enh/choices"
	"github.com/cwbudde/algo-enh/enh/nn"
)

// ErrInvalidOption is returned for an invalid separator configuration.
var ErrInvalidOption = errors.New("separator: invalid option")

// Separator is one configured separation network.
type Separator interface {
	// Name is the registry key.
	Name() string
	InputDim() int
	NumSpk() int
	// Breakdown lists the parameter count of every layer group.
	Breakdown() nn.Breakdown
}

// NumParams returns the total parameter count of s.
func NumParams(s Separator) int { return s.Breakdown().Total() }

// Constructor builds a separator for features of inputDim.
type Constructor func(inputDim int, conf choices.Conf) (Separator, error)

// Choices is the separator registry.
var Choices = choices.New[Constructor]("separator", "rnn")

func init() {
	Choices.MustRegister("rnn", newRNN, func() any { o := DefaultRNNOptions(); return &o })
	Choices.MustRegister("tcn", newTCN, func() any { o := DefaultTCNOptions(); return &o })
	Choices.MustRegister("dprnn", newDPRNN, func() any { o := DefaultDPRNNOptions(); return &o })
	Choices.MustRegister("transformer", newTransformer, func() any { o := DefaultTransformerOptions(); return &o })
	Choices.MustRegister("wpe_beamformer", newBeamformer, func() any { o := DefaultBeamformerOptions(); return &o })
}

// New builds the separator registered as name.
func New(name string, inputDim int, conf choices.Conf) (Separator, error) {
	ctor, err := Choices.Get(name)
	if err != nil {
		return nil, err
	}
	if inputDim <= 0 {
		return nil, fmt.Errorf("%w: input dim %d", ErrInvalidOption, inputDim)
	}
	return ctor(inputDim, conf)
}

// Mask nonlinearities.
var nonlinears = []string{"sigmoid", "relu", "tanh"}

func checkOneOf(field, v string, allowed ...string) error {
	for _, a := range allowed {
		if v == a {
			return nil
		}
	}
	return fmt.Errorf("%w: %s %q (choose from %s)", ErrInvalidOption, field, v, strings.Join(allowed, ", "))
}

// intField is a named integer option.
type intField struct {
	name string
	v    int
}

func checkPositive(fields ...intField) error {
	for _, f := range fields {
		if f.v <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %d", ErrInvalidOption, f.name, f.v)
		}
	}
	return nil
}

func checkDropout(name string, v float64) error {
	if v < 0 || v >= 1 {
		return fmt.Errorf("%w: %s %v outside [0, 1)", ErrInvalidOption, name, v)
	}
	return nil
}

// rnnType is a parsed recurrent layer spec such as "blstmp".
type rnnType struct {
	cell          string
	bidirectional bool
	projected     bool
}

// parseRNNType splits "[b]{lstm,gru}[p]".
func parseRNNType(s string) (rnnType, error) {
	t := rnnType{}
	rest := strings.ToLower(s)
	if strings.HasPrefix(rest, "b") {
		t.bidirectional = true
		rest = rest[1:]
	}
	if strings.HasSuffix(rest, "p") {
		t.projected = true
		rest = strings.TrimSuffix(rest, "p")
	}
	if rest != nn.CellLSTM && rest != nn.CellGRU {
		return rnnType{}, fmt.Errorf("%w: rnn type %q", ErrInvalidOption, s)
	}
	t.cell = rest
	return t, nil
}

func directions(bidirectional bool) int {
	if bidirectional {
		return 2
	}
	return 1
}

// stackedRNNParams counts a multi-layer recurrent encoder followed by a
// projection to hdim.
func stackedRNNParams(t rnnType, in, layers, units, hdim int) (int, error) {
	n, err := nn.RNNParams(t.cell, in, units, layers, t.bidirectional)
	if err != nil {
		return 0, err
	}
	return n + nn.LinearParams(units*directions(t.bidirectional), hdim, true), nil
}

// projectedRNNParams counts an RNN with a projection after every layer.
func projectedRNNParams(t rnnType, in, layers, units, projs int) (int, error) {
	n := 0
	for l := 0; l < layers; l++ {
		inL := in
		if l > 0 {
			inL = projs
		}
		r, err := nn.RNNParams(t.cell, inL, units, 1, t.bidirectional)
		if err != nil {
			return 0, err
		}
		n += r + nn.LinearParams(units*directions(t.bidirectional), projs, true)
	}
	return n, nil
}
