package separator

import (
	"fmt"
	"strings"

	"github.com/cwbudde/algo-enh/enh/choices"
	"github.com/cwbudde/algo-enh/enh/nn"
)

// Beamformer types.
var beamformerTypes = []string{"mvdr", "mpdr", "wpd", "mvdr_souden", "mpdr_souden", "wpd_souden"}

// Training objectives of the frontend.
var beamformerLosses = []string{"mask_mse", "spectrum", "spectrum_log", "magnitude"}

// Mask nonlinearities of the frontend's estimators.
var maskNonlinears = []string{"sigmoid", "relu", "tanh", "crelu"}

// BeamformerOptions configures the wpe_beamformer frontend: an optional
// DNN-WPE dereverberation stage followed by an optional mask-based
// beamformer.
type BeamformerOptions struct {
	NumSpk   int    `yaml:"num_spk"`
	LossType string `yaml:"loss_type"`

	UseWPE           bool    `yaml:"use_wpe"`
	WType            string  `yaml:"wtype"`
	WLayers          int     `yaml:"wlayers"`
	WUnits           int     `yaml:"wunits"`
	WProjs           int     `yaml:"wprojs"`
	WDropoutRate     float64 `yaml:"wdropout_rate"`
	Taps             int     `yaml:"taps"`
	Delay            int     `yaml:"delay"`
	UseDNNMaskForWPE bool    `yaml:"use_dnn_mask_for_wpe"`
	WNonlinear       string  `yaml:"wnonlinear"`
	MultiSourceWPE   bool    `yaml:"multi_source_wpe"`
	WNormalization   bool    `yaml:"wnormalization"`

	UseBeamformer  bool    `yaml:"use_beamformer"`
	BType          string  `yaml:"btype"`
	BLayers        int     `yaml:"blayers"`
	BUnits         int     `yaml:"bunits"`
	BProjs         int     `yaml:"bprojs"`
	BAdim          int     `yaml:"badim"`
	RefChannel     int     `yaml:"ref_channel"`
	UseNoiseMask   bool    `yaml:"use_noise_mask"`
	BNonlinear     string  `yaml:"bnonlinear"`
	BeamformerType string  `yaml:"beamformer_type"`
	RTFIterations  int     `yaml:"rtf_iterations"`
	BDropoutRate   float64 `yaml:"bdropout_rate"`

	SharedPower     bool    `yaml:"shared_power"`
	DiagonalLoading bool    `yaml:"diagonal_loading"`
	DiagEps         float64 `yaml:"diag_eps"`
	MaskFlooring    bool    `yaml:"mask_flooring"`
	FlooringThres   float64 `yaml:"flooring_thres"`
}

// DefaultBeamformerOptions returns a single-speaker Souden MVDR beamformer
// with attention-based reference selection and WPE disabled.
func DefaultBeamformerOptions() BeamformerOptions {
	return BeamformerOptions{
		NumSpk:   1,
		LossType: "mask_mse",

		WType:            "blstmp",
		WLayers:          3,
		WUnits:           300,
		WProjs:           320,
		Taps:             5,
		Delay:            3,
		UseDNNMaskForWPE: true,
		WNonlinear:       "crelu",
		MultiSourceWPE:   true,

		UseBeamformer:  true,
		BType:          "blstmp",
		BLayers:        3,
		BUnits:         300,
		BProjs:         320,
		BAdim:          320,
		RefChannel:     -1,
		UseNoiseMask:   true,
		BNonlinear:     "sigmoid",
		BeamformerType: "mvdr_souden",
		RTFIterations:  2,

		SharedPower:     true,
		DiagonalLoading: true,
		DiagEps:         1e-7,
		FlooringThres:   1e-6,
	}
}

// Beamformer is the wpe_beamformer separator.
type Beamformer struct {
	inputDim int
	opts     BeamformerOptions
	wtype    rnnType
	btype    rnnType
}

// NewBeamformer validates opts. Estimator options are only checked for the
// stages that are enabled.
func NewBeamformer(inputDim int, opts BeamformerOptions) (*Beamformer, error) {
	s := &Beamformer{inputDim: inputDim, opts: opts}
	if err := checkPositive(intField{"num_spk", opts.NumSpk}); err != nil {
		return nil, err
	}
	if err := checkOneOf("loss_type", opts.LossType, beamformerLosses...); err != nil {
		return nil, err
	}
	if opts.UseWPE {
		t, err := parseRNNType(opts.WType)
		if err != nil {
			return nil, err
		}
		s.wtype = t
		if err := checkPositive(
			intField{"wlayers", opts.WLayers},
			intField{"wunits", opts.WUnits},
			intField{"wprojs", opts.WProjs},
			intField{"taps", opts.Taps},
			intField{"delay", opts.Delay},
		); err != nil {
			return nil, err
		}
		if err := checkOneOf("wnonlinear", opts.WNonlinear, maskNonlinears...); err != nil {
			return nil, err
		}
		if err := checkDropout("wdropout_rate", opts.WDropoutRate); err != nil {
			return nil, err
		}
	}
	if opts.UseBeamformer {
		t, err := parseRNNType(opts.BType)
		if err != nil {
			return nil, err
		}
		s.btype = t
		if err := checkPositive(
			intField{"blayers", opts.BLayers},
			intField{"bunits", opts.BUnits},
			intField{"bprojs", opts.BProjs},
			intField{"badim", opts.BAdim},
		); err != nil {
			return nil, err
		}
		if err := checkOneOf("bnonlinear", opts.BNonlinear, maskNonlinears...); err != nil {
			return nil, err
		}
		if err := checkOneOf("beamformer_type", opts.BeamformerType, beamformerTypes...); err != nil {
			return nil, err
		}
		if err := checkDropout("bdropout_rate", opts.BDropoutRate); err != nil {
			return nil, err
		}
		if opts.RTFIterations < 0 {
			return nil, fmt.Errorf("%w: rtf_iterations %d", ErrInvalidOption, opts.RTFIterations)
		}
		if strings.HasPrefix(opts.BeamformerType, "wpd") {
			if err := checkPositive(intField{"taps", opts.Taps}, intField{"delay", opts.Delay}); err != nil {
				return nil, err
			}
		}
	}
	if opts.DiagonalLoading && opts.DiagEps <= 0 {
		return nil, fmt.Errorf("%w: diag_eps must be positive, got %v", ErrInvalidOption, opts.DiagEps)
	}
	if opts.MaskFlooring && opts.FlooringThres <= 0 {
		return nil, fmt.Errorf("%w: flooring_thres must be positive, got %v", ErrInvalidOption, opts.FlooringThres)
	}
	return s, nil
}

func newBeamformer(inputDim int, conf choices.Conf) (Separator, error) {
	opts := DefaultBeamformerOptions()
	if err := choices.Decode(conf, &opts); err != nil {
		return nil, err
	}
	return NewBeamformer(inputDim, opts)
}

func (s *Beamformer) Name() string               { return "wpe_beamformer" }
func (s *Beamformer) InputDim() int              { return s.inputDim }
func (s *Beamformer) NumSpk() int                { return s.opts.NumSpk }
func (s *Beamformer) Options() BeamformerOptions { return s.opts }

// WPEMasks is the number of masks the WPE estimator emits, 0 when WPE runs
// without a DNN mask.
func (s *Beamformer) WPEMasks() int {
	if !s.opts.UseWPE || !s.opts.UseDNNMaskForWPE {
		return 0
	}
	if s.opts.MultiSourceWPE {
		return s.opts.NumSpk
	}
	return 1
}

// BeamformerMasks is the number of masks the beamformer estimator emits:
// one per speaker plus one for noise.
func (s *Beamformer) BeamformerMasks() int {
	if !s.opts.UseBeamformer {
		return 0
	}
	if s.opts.UseNoiseMask {
		return s.opts.NumSpk + 1
	}
	return s.opts.NumSpk
}

func (s *Beamformer) maskEstimatorParams(t rnnType, layers, units, projs, nmask int) int {
	var n int
	if t.projected {
		n, _ = projectedRNNParams(t, s.inputDim, layers, units, projs)
	} else {
		n, _ = stackedRNNParams(t, s.inputDim, layers, units, projs)
	}
	return n + nmask*nn.LinearParams(projs, s.inputDim, true)
}

// Breakdown counts the mask estimators and the reference selector.
func (s *Beamformer) Breakdown() nn.Breakdown {
	var b nn.Breakdown
	if m := s.WPEMasks(); m > 0 {
		b.Add("wpe.mask_est", s.maskEstimatorParams(s.wtype, s.opts.WLayers, s.opts.WUnits, s.opts.WProjs, m))
	}
	if m := s.BeamformerMasks(); m > 0 {
		b.Add("beamformer.mask_est", s.maskEstimatorParams(s.btype, s.opts.BLayers, s.opts.BUnits, s.opts.BProjs, m))
		if s.opts.RefChannel < 0 {
			b.Add("beamformer.ref", nn.LinearParams(s.inputDim, s.opts.BAdim, true)+nn.LinearParams(s.opts.BAdim, 1, true))
		}
	}
	return b
}
