package nn

import (
	"errors"
	"fmt"

	"github.com/cwbudde/algo-vecmath"
)

// ErrShape is returned when an input does not match a layer.
var ErrShape = errors.New("nn: shape mismatch")

// Conv1D is a strided 1-D convolution without padding or dilation.
type Conv1D struct {
	In, Out, Kernel, Stride int

	// Weight has shape [Out, In, Kernel].
	Weight *Param
	// Bias has shape [Out]; nil when the layer has none.
	Bias *Param
}

// NewConv1D allocates a zero-initialised convolution.
func NewConv1D(in, out, kernel, stride int, bias bool) (*Conv1D, error) {
	if in <= 0 || out <= 0 || kernel <= 0 || stride <= 0 {
		return nil, fmt.Errorf("%w: conv1d(%d, %d, kernel=%d, stride=%d)", ErrShape, in, out, kernel, stride)
	}
	c := &Conv1D{
		In:     in,
		Out:    out,
		Kernel: kernel,
		Stride: stride,
		Weight: NewParam("weight", in*kernel, out*kernel, out, in, kernel),
	}
	if bias {
		c.Bias = NewParam("bias", in*kernel, out*kernel, out)
	}
	return c, nil
}

// Params implements Module.
func (c *Conv1D) Params() []*Param {
	if c.Bias == nil {
		return []*Param{c.Weight}
	}
	return []*Param{c.Weight, c.Bias}
}

// OutputLen returns the number of output frames for n input samples.
func (c *Conv1D) OutputLen(n int) int {
	if n < c.Kernel {
		return 0
	}
	return (n-c.Kernel)/c.Stride + 1
}

// Forward convolves x, shaped [In][T], into [Out][OutputLen(T)].
func (c *Conv1D) Forward(x [][]float64) ([][]float64, error) {
	if len(x) != c.In {
		return nil, fmt.Errorf("%w: conv1d expects %d channels, got %d", ErrShape, c.In, len(x))
	}
	t := len(x[0])
	for _, ch := range x {
		if len(ch) != t {
			return nil, fmt.Errorf("%w: conv1d channels differ in length", ErrShape)
		}
	}
	frames := c.OutputLen(t)

	y := make([][]float64, c.Out)
	for o := range y {
		y[o] = make([]float64, frames)
		var b float64
		if c.Bias != nil {
			b = c.Bias.Data[o]
		}
		for f := range y[o] {
			start := f * c.Stride
			acc := b
			for i, ch := range x {
				w := c.Weight.Data[(o*c.In+i)*c.Kernel : (o*c.In+i+1)*c.Kernel]
				seg := ch[start : start+c.Kernel]
				for k, wk := range w {
					acc += wk * seg[k]
				}
			}
			y[o][f] = acc
		}
	}
	return y, nil
}

// ConvTranspose1D is the transpose of Conv1D.
type ConvTranspose1D struct {
	In, Out, Kernel, Stride int

	// Weight has shape [In, Out, Kernel].
	Weight *Param
	Bias   *Param
}

// NewConvTranspose1D allocates a zero-initialised transposed convolution.
func NewConvTranspose1D(in, out, kernel, stride int, bias bool) (*ConvTranspose1D, error) {
	if in <= 0 || out <= 0 || kernel <= 0 || stride <= 0 {
		return nil, fmt.Errorf("%w: conv_transpose1d(%d, %d, kernel=%d, stride=%d)", ErrShape, in, out, kernel, stride)
	}
	c := &ConvTranspose1D{
		In:     in,
		Out:    out,
		Kernel: kernel,
		Stride: stride,
		Weight: NewParam("weight", out*kernel, in*kernel, in, out, kernel),
	}
	if bias {
		c.Bias = NewParam("bias", out*kernel, in*kernel, out)
	}
	return c, nil
}

// Params implements Module.
func (c *ConvTranspose1D) Params() []*Param {
	if c.Bias == nil {
		return []*Param{c.Weight}
	}
	return []*Param{c.Weight, c.Bias}
}

// OutputLen returns the output length for t input frames.
func (c *ConvTranspose1D) OutputLen(t int) int {
	if t == 0 {
		return 0
	}
	return (t-1)*c.Stride + c.Kernel
}

// Forward maps x, shaped [In][T], to [Out][OutputLen(T)] by overlap-adding
// scaled kernels.
func (c *ConvTranspose1D) Forward(x [][]float64) ([][]float64, error) {
	if len(x) != c.In {
		return nil, fmt.Errorf("%w: conv_transpose1d expects %d channels, got %d", ErrShape, c.In, len(x))
	}
	t := len(x[0])
	for _, ch := range x {
		if len(ch) != t {
			return nil, fmt.Errorf("%w: conv_transpose1d channels differ in length", ErrShape)
		}
	}
	n := c.OutputLen(t)

	y := make([][]float64, c.Out)
	tmp := make([]float64, c.Kernel)
	for o := range y {
		y[o] = make([]float64, n)
		for i, ch := range x {
			w := c.Weight.Data[(i*c.Out+o)*c.Kernel : (i*c.Out+o+1)*c.Kernel]
			for f, v := range ch {
				if v == 0 {
					continue
				}
				start := f * c.Stride
				vecmath.ScaleBlock(tmp, w, v)
				vecmath.AddBlockInPlace(y[o][start:start+c.Kernel], tmp)
			}
		}
		if c.Bias != nil {
			for j := range y[o] {
				y[o][j] += c.Bias.Data[o]
			}
		}
	}
	return y, nil
}
