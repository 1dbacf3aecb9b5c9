// Package nn holds the few layer primitives the enhancement model executes
// directly (1-D convolutions and their transposes), parameter bookkeeping,
// weight initialisation and closed-form parameter counts of the layers that
// separator networks are built from.
package nn

// Param is one named parameter tensor stored flat in row-major order.
type Param struct {
	Name  string
	Shape []int
	Data  []float64

	// FanIn and FanOut follow the PyTorch convention for the tensor's layer.
	FanIn  int
	FanOut int

	// Bias marks one-dimensional bias vectors.
	Bias bool
	// Frozen parameters are neither initialised nor counted as trainable.
	Frozen bool
}

// NewParam allocates a zeroed parameter.
func NewParam(name string, fanIn, fanOut int, shape ...int) *Param {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return &Param{
		Name:   name,
		Shape:  append([]int(nil), shape...),
		Data:   make([]float64, n),
		FanIn:  fanIn,
		FanOut: fanOut,
		Bias:   len(shape) == 1,
	}
}

// Len returns the number of elements.
func (p *Param) Len() int { return len(p.Data) }

// Module is anything that owns parameters.
type Module interface {
	Params() []*Param
}

// CountParams sums the elements of params. With trainableOnly, frozen
// parameters are skipped.
func CountParams(params []*Param, trainableOnly bool) int {
	n := 0
	for _, p := range params {
		if trainableOnly && p.Frozen {
			continue
		}
		n += p.Len()
	}
	return n
}

// Freeze marks every parameter as frozen.
func Freeze(params []*Param) {
	for _, p := range params {
		p.Frozen = true
	}
}

// Prefix renames params in place to prefix.name and returns them. Owners call
// it once when they are built.
func Prefix(prefix string, params []*Param) []*Param {
	for _, p := range params {
		p.Name = prefix + "." + p.Name
	}
	return params
}
