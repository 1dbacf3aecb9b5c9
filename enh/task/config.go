package task

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cwbudde/algo-enh/dsp/level"
	"github.com/cwbudde/algo-enh/enh/choices"
	"github.com/cwbudde/algo-enh/enh/decoder"
	"github.com/cwbudde/algo-enh/enh/encoder"
	"github.com/cwbudde/algo-enh/enh/nn"
	"github.com/cwbudde/algo-enh/enh/separator"
)

// ErrInvalidConfig is returned for an invalid task configuration.
var ErrInvalidConfig = errors.New("task: invalid config")

// Preprocessor types.
const (
	PreprocessorDefault      = "default"
	PreprocessorConferencing = "conferencingspeech"
)

// Config is the enhancement task configuration.
//
// Nullable options are pointers; nil stands for an unset value.
type Config struct {
	Encoder       string       `yaml:"encoder"`
	EncoderConf   choices.Conf `yaml:"encoder_conf"`
	Separator     string       `yaml:"separator"`
	SeparatorConf choices.Conf `yaml:"separator_conf"`
	Decoder       string       `yaml:"decoder"`
	DecoderConf   choices.Conf `yaml:"decoder_conf"`
	ModelConf     ModelConf    `yaml:"model_conf"`

	// Init is one of nn.InitMethods, empty for the framework default.
	Init string `yaml:"init"`
	Seed int64  `yaml:"seed"`

	UsePreprocessor       bool     `yaml:"use_preprocessor"`
	PreprocessorType      string   `yaml:"preprocessor_type"`
	SpeechVolumeNormalize *float64 `yaml:"speech_volume_normalize"`
	RIRScp                string   `yaml:"rir_scp"`
	RIRMaxChannel         *int     `yaml:"rir_max_channel"`
	RIRApplyProb          float64  `yaml:"rir_apply_prob"`
	NoiseScp              string   `yaml:"noise_scp"`
	NoiseMaxChannel       *int     `yaml:"noise_max_channel"`
	NoiseApplyProb        float64  `yaml:"noise_apply_prob"`
	NoiseDBRange          string   `yaml:"noise_db_range"`
}

// ModelConf holds the options of the enhancement model wrapper.
type ModelConf struct {
	StftConsistency bool   `yaml:"stft_consistency"`
	LossType        string `yaml:"loss_type"`
	MaskType        string `yaml:"mask_type"`
}

// Model losses.
var lossTypes = []string{"mask_mse", "magnitude", "spectrum", "spectrum_log", "si_snr"}

// Training-target masks.
var maskTypes = []string{"IBM", "IRM", "IAM", "PSM", "NPSM", "PSM^2"}

// DefaultModelConf returns the mask_mse objective without a fixed mask type.
func DefaultModelConf() ModelConf {
	return ModelConf{LossType: "mask_mse"}
}

// DefaultConfig returns the registry defaults with the preprocessor off.
func DefaultConfig() *Config {
	return &Config{
		Encoder:          encoder.Choices.Default(),
		Separator:        separator.Choices.Default(),
		Decoder:          decoder.Choices.Default(),
		ModelConf:        DefaultModelConf(),
		PreprocessorType: PreprocessorDefault,
		RIRApplyProb:     1,
		NoiseApplyProb:   1,
		NoiseDBRange:     "13_15",
	}
}

// ParseConfig overlays the YAML document in r on DefaultConfig. Unknown keys
// are an error.
func ParseConfig(r io.Reader) (*Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfig reads the config file at path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("task: %w", err)
	}
	cfg, err := ParseConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the options that do not need a built model.
func (c *Config) Validate() error {
	var errs []string
	if _, err := nn.ParseInit(c.Init); err != nil {
		errs = append(errs, err.Error())
	}
	if c.PreprocessorType != PreprocessorDefault && c.PreprocessorType != PreprocessorConferencing {
		errs = append(errs, fmt.Sprintf("unknown preprocessor type %q", c.PreprocessorType))
	}
	if c.RIRApplyProb < 0 || c.RIRApplyProb > 1 {
		errs = append(errs, fmt.Sprintf("rir_apply_prob %v outside [0, 1]", c.RIRApplyProb))
	}
	if c.NoiseApplyProb < 0 || c.NoiseApplyProb > 1 {
		errs = append(errs, fmt.Sprintf("noise_apply_prob %v outside [0, 1]", c.NoiseApplyProb))
	}
	if _, _, err := level.ParseDBRange(c.NoiseDBRange); err != nil {
		errs = append(errs, err.Error())
	}
	if err := c.ModelConf.validate(); err != nil {
		errs = append(errs, err.Error())
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(errs, "; "))
	}
	return nil
}

func (m ModelConf) validate() error {
	if !contains(lossTypes, m.LossType) {
		return fmt.Errorf("unsupported loss type %q", m.LossType)
	}
	if m.MaskType != "" && !contains(maskTypes, strings.ToUpper(m.MaskType)) {
		return fmt.Errorf("unsupported mask type %q", m.MaskType)
	}
	if m.StftConsistency && (m.LossType == "mask_mse" || m.LossType == "si_snr") {
		return fmt.Errorf("stft_consistency is not applicable to loss type %q", m.LossType)
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// WithDefaults returns a copy of c whose component confs list every option,
// defaults filled in.
func (c *Config) WithDefaults() (*Config, error) {
	out := *c
	var err error
	if out.EncoderConf, err = encoder.Choices.Merge(c.Encoder, c.EncoderConf); err != nil {
		return nil, err
	}
	if out.SeparatorConf, err = separator.Choices.Merge(c.Separator, c.SeparatorConf); err != nil {
		return nil, err
	}
	if out.DecoderConf, err = decoder.Choices.Merge(c.Decoder, c.DecoderConf); err != nil {
		return nil, err
	}
	if out.Encoder == "" {
		out.Encoder = encoder.Choices.Default()
	}
	if out.Separator == "" {
		out.Separator = separator.Choices.Default()
	}
	if out.Decoder == "" {
		out.Decoder = decoder.Choices.Default()
	}
	return &out, nil
}

// PrintConfig writes c as YAML with every component conf filled with its
// defaults.
func PrintConfig(w io.Writer, c *Config) error {
	full, err := c.WithDefaults()
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(full); err != nil {
		return fmt.Errorf("task: encode config: %w", err)
	}
	return enc.Close()
}
