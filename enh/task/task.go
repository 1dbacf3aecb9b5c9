package task

import (
	"fmt"
	"math/rand"
	"strings"

	"go.uber.org/zap"

	"github.com/cwbudde/algo-enh/enh/decoder"
	"github.com/cwbudde/algo-enh/enh/encoder"
	"github.com/cwbudde/algo-enh/enh/nn"
	"github.com/cwbudde/algo-enh/enh/preprocess"
	"github.com/cwbudde/algo-enh/enh/separator"
)

// MaxReferenceNum bounds the numbered reference entries of a data directory.
const MaxReferenceNum = 100

// Option configures task builders.
type Option func(*config)

type config struct {
	logger *zap.Logger
}

func defaultConfig() config {
	return config{logger: zap.NewNop()}
}

// WithLogger logs model and preprocessor construction.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// Model is an assembled encoder, separator and decoder.
type Model struct {
	Encoder   encoder.Encoder
	Separator separator.Separator
	Decoder   decoder.Decoder
	Conf      ModelConf
}

// Params returns the materialised parameters of the encoder and decoder.
func (m *Model) Params() []*nn.Param {
	out := append([]*nn.Param(nil), m.Encoder.Params()...)
	return append(out, m.Decoder.Params()...)
}

// SummaryRow is one component of a model summary.
type SummaryRow struct {
	Component string
	Name      string
	Params    int
	Trainable int
}

// Summary lists the parameter counts of every component.
func (m *Model) Summary() []SummaryRow {
	encP := m.Encoder.Params()
	decP := m.Decoder.Params()
	sep := separator.NumParams(m.Separator)
	return []SummaryRow{
		{"encoder", fmt.Sprintf("%T", m.Encoder), nn.CountParams(encP, false), nn.CountParams(encP, true)},
		{"separator", m.Separator.Name(), sep, sep},
		{"decoder", fmt.Sprintf("%T", m.Decoder), nn.CountParams(decP, false), nn.CountParams(decP, true)},
	}
}

// NumParams returns the total and trainable parameter counts.
func (m *Model) NumParams() (total, trainable int) {
	for _, r := range m.Summary() {
		total += r.Params
		trainable += r.Trainable
	}
	return total, trainable
}

// String renders the summary as an aligned table.
func (m *Model) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-10s %-24s %12s %12s\n", "component", "type", "params", "trainable")
	for _, r := range m.Summary() {
		fmt.Fprintf(&b, "%-10s %-24s %12d %12d\n", r.Component, strings.TrimPrefix(r.Name, "*"), r.Params, r.Trainable)
	}
	total, trainable := m.NumParams()
	fmt.Fprintf(&b, "%-10s %-24s %12d %12d\n", "total", "", total, trainable)
	return b.String()
}

// Reconstruct runs the encoder and decoder without separation.
func (m *Model) Reconstruct(batch [][]float64, ilens []int) ([][]float64, []int, error) {
	feats, _, err := m.Encoder.Forward(batch, ilens)
	if err != nil {
		return nil, nil, err
	}
	return m.Decoder.Forward(feats, ilens)
}

// BuildModel assembles the model described by cfg and initialises its
// parameters from cfg.Init with a generator seeded by cfg.Seed.
func BuildModel(cfg *Config, opts ...Option) (*Model, error) {
	o := defaultConfig()
	for _, opt := range opts {
		opt(&o)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	enc, err := encoder.New(cfg.Encoder, cfg.EncoderConf)
	if err != nil {
		return nil, fmt.Errorf("task: encoder: %w", err)
	}
	sep, err := separator.New(cfg.Separator, enc.OutputDim(), cfg.SeparatorConf)
	if err != nil {
		return nil, fmt.Errorf("task: separator: %w", err)
	}
	dec, err := decoder.New(cfg.Decoder, cfg.DecoderConf)
	if err != nil {
		return nil, fmt.Errorf("task: decoder: %w", err)
	}

	m := &Model{Encoder: enc, Separator: sep, Decoder: dec, Conf: cfg.ModelConf}
	method, _ := nn.ParseInit(cfg.Init)
	if err := nn.Initialize(m.Params(), method, rand.New(rand.NewSource(cfg.Seed))); err != nil {
		return nil, fmt.Errorf("task: init: %w", err)
	}

	total, trainable := m.NumParams()
	o.logger.Info("built enhancement model",
		zap.String("encoder", cfg.Encoder),
		zap.String("separator", sep.Name()),
		zap.String("decoder", cfg.Decoder),
		zap.Int("feature_dim", enc.OutputDim()),
		zap.Int("params", total),
		zap.Int("trainable", trainable),
	)
	return m, nil
}

// BuildPreprocessFn returns the preprocessor selected by cfg, or nil when
// use_preprocessor is off. Augmentations run only when train is set.
func BuildPreprocessFn(cfg *Config, train bool, opts ...Option) (preprocess.Func, error) {
	o := defaultConfig()
	for _, opt := range opts {
		opt(&o)
	}
	if !cfg.UsePreprocessor {
		return nil, nil
	}

	popts := []preprocess.Option{
		preprocess.WithTrain(train),
		preprocess.WithRIR(cfg.RIRScp, deref(cfg.RIRMaxChannel), cfg.RIRApplyProb),
		preprocess.WithNoise(cfg.NoiseScp, deref(cfg.NoiseMaxChannel), cfg.NoiseApplyProb, cfg.NoiseDBRange),
		preprocess.WithSpeechName(preprocess.SpeechMix),
		preprocess.WithSeed(cfg.Seed),
		preprocess.WithLogger(o.logger),
	}
	if cfg.SpeechVolumeNormalize != nil {
		popts = append(popts, preprocess.WithVolumeNormalize(*cfg.SpeechVolumeNormalize))
	}

	switch cfg.PreprocessorType {
	case PreprocessorDefault:
		p, err := preprocess.NewCommon(popts...)
		if err != nil {
			return nil, err
		}
		return p.Func(), nil
	case PreprocessorConferencing:
		p, err := preprocess.NewConferencingSpeech(popts...)
		if err != nil {
			return nil, err
		}
		return p.Func(), nil
	default:
		return nil, fmt.Errorf("%w: unknown preprocessor type %q", ErrInvalidConfig, cfg.PreprocessorType)
	}
}

func deref(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

// RequiredDataNames lists the data entries every example must carry.
func RequiredDataNames(train, inference bool) []string {
	if inference {
		return []string{"speech_mix"}
	}
	return []string{"speech_mix", "speech_ref1"}
}

// OptionalDataNames lists the data entries an example may carry:
// dereverb_ref1..N, speech_ref2..N and noise_ref1..N.
func OptionalDataNames(train, inference bool) []string {
	out := make([]string, 0, 3*MaxReferenceNum-1)
	for n := 1; n <= MaxReferenceNum; n++ {
		out = append(out, fmt.Sprintf("dereverb_ref%d", n))
	}
	for n := 2; n <= MaxReferenceNum; n++ {
		out = append(out, fmt.Sprintf("speech_ref%d", n))
	}
	for n := 1; n <= MaxReferenceNum; n++ {
		out = append(out, fmt.Sprintf("noise_ref%d", n))
	}
	return out
}
