package preprocess

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-enh/dsp/level"
	"github.com/cwbudde/algo-enh/dsp/reverb"
)

// ConferencingSpeech extends Common with an early-reverberation target: when
// a RIR is applied, the clean speech convolved with the direct path and the
// following 50 ms of that RIR is stored as dereverb_ref1.
type ConferencingSpeech struct {
	*Common
	earlyWindow float64
}

// NewConferencingSpeech builds the conferencingspeech preprocessor.
func NewConferencingSpeech(opts ...Option) (*ConferencingSpeech, error) {
	c, err := NewCommon(opts...)
	if err != nil {
		return nil, err
	}
	return &ConferencingSpeech{Common: c, earlyWindow: reverb.DefaultEarlyWindow}, nil
}

// Func returns p.Process.
func (p *ConferencingSpeech) Func() Func { return p.Process }

// Process behaves like Common.Process and adds dereverb_ref1 when a RIR was
// applied. The target keeps the non-silent power of the clean speech.
func (p *ConferencingSpeech) Process(uid string, data Data) (Data, error) {
	clean := cloneChannels(data[p.cfg.speechName])

	rir, err := p.process(uid, data)
	if err != nil {
		return nil, err
	}
	if rir == nil {
		return data, nil
	}

	early := make([][]float64, len(rir.Channels))
	for ch, h := range rir.Channels {
		early[ch] = reverb.EarlyPart(h, rir.SampleRate, p.earlyWindow)
	}
	ref, err := convolve(clean, early)
	if err != nil {
		return nil, fmt.Errorf("preprocess: %s: dereverb target: %w", uid, err)
	}
	power := level.NonSilentPower(clean)
	level.Scale(ref, math.Sqrt(power/math.Max(level.NonSilentPower(ref), level.PowerFloor)))
	data[DereverbRef1] = ref
	return data, nil
}

func cloneChannels(x [][]float64) [][]float64 {
	out := make([][]float64, len(x))
	for i, ch := range x {
		out[i] = append([]float64(nil), ch...)
	}
	return out
}
