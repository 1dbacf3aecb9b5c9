package encoder

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cwbudde/algo-enh/dsp/resample"
	"github.com/cwbudde/algo-enh/enh/choices"
	"github.com/cwbudde/algo-enh/enh/nn"
)

// ErrCheckpoint is returned when a pretrained checkpoint cannot be loaded.
var ErrCheckpoint = errors.New("encoder: invalid checkpoint")

// FeatureExtractor is a pretrained model mapping a waveform to frames.
type FeatureExtractor interface {
	nn.Module
	OutputDim() int
	// OutputLen returns the frame count for n samples.
	OutputLen(n int) int
	// Extract returns [frame][OutputDim()] features.
	Extract(wav []float64) ([][]float64, error)
}

// CheckpointLoader restores a FeatureExtractor from a checkpoint file.
type CheckpointLoader func(path string) (FeatureExtractor, error)

// CheckpointLoaders is the registry of checkpoint formats.
var CheckpointLoaders = choices.New[CheckpointLoader]("checkpoint_loader", "yaml_conv")

func init() {
	CheckpointLoaders.MustRegister("yaml_conv", LoadConvCheckpoint, nil)
}

// Wav2vecOptions configures the wav2vec encoder.
type Wav2vecOptions struct {
	Checkpoint string `yaml:"checkpoint"`
	// Loader names the CheckpointLoaders entry reading Checkpoint.
	Loader     string `yaml:"loader"`
	Channel    int    `yaml:"channel"`
	KernelSize int    `yaml:"kernel_size"`
	Stride     int    `yaml:"stride"`
	PreRate    int    `yaml:"pre_rate"`
	Fusing     bool   `yaml:"fusing"`
}

// DefaultWav2vecOptions returns the defaults. Checkpoint, kernel size and
// stride have no default and must be configured.
func DefaultWav2vecOptions() Wav2vecOptions {
	return Wav2vecOptions{
		Loader:  "yaml_conv",
		Channel: 1024,
		PreRate: 8000,
		Fusing:  true,
	}
}

// Wav2vec fuses a learned convolution with a frozen pretrained extractor.
type Wav2vec struct {
	opts      Wav2vecOptions
	conv      *nn.Conv1D
	extractor FeatureExtractor
}

// NewWav2vec builds the encoder around an already loaded extractor. Its
// parameters are frozen.
func NewWav2vec(opts Wav2vecOptions, extractor FeatureExtractor) (*Wav2vec, error) {
	if extractor == nil {
		return nil, fmt.Errorf("%w: no feature extractor", ErrInvalidOption)
	}
	if opts.PreRate <= 0 {
		return nil, fmt.Errorf("%w: pre_rate %d", ErrInvalidOption, opts.PreRate)
	}
	c, err := nn.NewConv1D(1, opts.Channel, opts.KernelSize, opts.Stride, false)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOption, err)
	}
	if opts.Fusing && extractor.OutputDim() != opts.Channel {
		return nil, fmt.Errorf("%w: extractor dim %d, channel %d", ErrShapeMismatch, extractor.OutputDim(), opts.Channel)
	}
	nn.Prefix("conv1d", c.Params())
	nn.Freeze(nn.Prefix("wav2vec", extractor.Params()))
	return &Wav2vec{opts: opts, conv: c, extractor: extractor}, nil
}

func newWav2vec(conf choices.Conf) (Encoder, error) {
	opts := DefaultWav2vecOptions()
	if err := choices.Decode(conf, &opts); err != nil {
		return nil, err
	}
	if opts.Checkpoint == "" {
		return nil, fmt.Errorf("%w: checkpoint is required", ErrInvalidOption)
	}

	load, err := CheckpointLoaders.Get(opts.Loader)
	if err != nil {
		return nil, err
	}
	extractor, err := load(opts.Checkpoint)
	if err != nil {
		return nil, err
	}
	return NewWav2vec(opts, extractor)
}

// Extractor returns the pretrained part.
func (e *Wav2vec) Extractor() FeatureExtractor { return e.extractor }

// Layer exposes the learned convolution.
func (e *Wav2vec) Layer() *nn.Conv1D { return e.conv }

// OutputDim returns the feature dimension.
func (e *Wav2vec) OutputDim() int {
	if e.opts.Fusing {
		return e.opts.Channel
	}
	return e.extractor.OutputDim()
}

// Params implements nn.Module. Extractor parameters are included and frozen.
func (e *Wav2vec) Params() []*nn.Param {
	return append(e.conv.Params(), e.extractor.Params()...)
}

// Forward returns (conv + pretrained)/2 when fusing, else the pretrained
// features.
func (e *Wav2vec) Forward(batch [][]float64, ilens []int) (Feature, []int, error) {
	if _, err := checkBatch(batch, ilens); err != nil {
		return Feature{}, nil, err
	}

	out := Feature{Real: make([][][]float64, len(batch))}
	flens := make([]int, len(batch))
	for b, row := range batch {
		wav, err := toRate(row, e.opts.PreRate)
		if err != nil {
			return Feature{}, nil, err
		}
		pre, err := e.extractor.Extract(wav)
		if err != nil {
			return Feature{}, nil, fmt.Errorf("encoder: wav2vec extract: %w", err)
		}
		valid := resample.OutputLen(ilens[b], InputRate, e.opts.PreRate)

		if !e.opts.Fusing {
			out.Real[b] = pre
			flens[b] = e.extractor.OutputLen(valid)
			continue
		}

		y, err := e.conv.Forward([][]float64{wav})
		if err != nil {
			return Feature{}, nil, err
		}
		feat := transposeFrames(y, false)
		if len(feat) != len(pre) {
			return Feature{}, nil, fmt.Errorf("%w: conv %d frames, pretrained %d frames", ErrShapeMismatch, len(feat), len(pre))
		}
		for f := range feat {
			if len(pre[f]) != len(feat[f]) {
				return Feature{}, nil, fmt.Errorf("%w: conv dim %d, pretrained dim %d", ErrShapeMismatch, len(feat[f]), len(pre[f]))
			}
			for c := range feat[f] {
				feat[f][c] = (feat[f][c] + pre[f][c]) / 2
			}
		}
		out.Real[b] = feat
		flens[b] = e.conv.OutputLen(valid)
	}
	return out, flens, nil
}

// ConvCheckpoint is the YAML checkpoint format of a convolutional feature
// extractor: a bias-free conv1d(1 -> dim) with optional ReLU.
type ConvCheckpoint struct {
	KernelSize int         `yaml:"kernel_size"`
	Stride     int         `yaml:"stride"`
	Activation string      `yaml:"activation"`
	Weights    [][]float64 `yaml:"weights"`
}

type convExtractor struct {
	conv *nn.Conv1D
	relu bool
}

// LoadConvCheckpoint reads a ConvCheckpoint file.
func LoadConvCheckpoint(path string) (FeatureExtractor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCheckpoint, err)
	}

	var ckpt ConvCheckpoint
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&ckpt); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCheckpoint, path, err)
	}
	return NewConvExtractor(ckpt)
}

// NewConvExtractor builds the extractor a ConvCheckpoint describes.
func NewConvExtractor(ckpt ConvCheckpoint) (FeatureExtractor, error) {
	if len(ckpt.Weights) == 0 {
		return nil, fmt.Errorf("%w: no weights", ErrCheckpoint)
	}
	var relu bool
	switch ckpt.Activation {
	case "", "none":
	case "relu":
		relu = true
	default:
		return nil, fmt.Errorf("%w: activation %q", ErrCheckpoint, ckpt.Activation)
	}

	c, err := nn.NewConv1D(1, len(ckpt.Weights), ckpt.KernelSize, ckpt.Stride, false)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCheckpoint, err)
	}
	for o, w := range ckpt.Weights {
		if len(w) != ckpt.KernelSize {
			return nil, fmt.Errorf("%w: filter %d has %d taps, want %d", ErrCheckpoint, o, len(w), ckpt.KernelSize)
		}
		copy(c.Weight.Data[o*ckpt.KernelSize:], w)
	}
	return &convExtractor{conv: c, relu: relu}, nil
}

func (x *convExtractor) Params() []*nn.Param { return x.conv.Params() }
func (x *convExtractor) OutputDim() int      { return x.conv.Out }
func (x *convExtractor) OutputLen(n int) int { return x.conv.OutputLen(n) }

func (x *convExtractor) Extract(wav []float64) ([][]float64, error) {
	y, err := x.conv.Forward([][]float64{wav})
	if err != nil {
		return nil, err
	}
	return transposeFrames(y, x.relu), nil
}
