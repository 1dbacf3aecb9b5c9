package simulate

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"

	"github.com/cwbudde/algo-enh/audio/wavio"
	"github.com/cwbudde/algo-enh/corpus/confspeech"
	"github.com/cwbudde/algo-enh/dsp/level"
	"github.com/cwbudde/algo-enh/dsp/reverb"
)

// ConferencingOptions configures RenderConferencing.
type ConferencingOptions struct {
	// ConfigFile lists "clean start noise rir snr scale" lines.
	ConfigFile string
	// OutDir receives one <uttid>.wav per line.
	OutDir     string
	SampleRate int
	BitDepth   int
	Workers    int
	Logger     *zap.Logger
}

// DefaultConferencingOptions returns 16 kHz, 16-bit rendering.
func DefaultConferencingOptions() ConferencingOptions {
	return ConferencingOptions{SampleRate: 16000, BitDepth: 16}
}

// RenderConferencing simulates every line of opts.ConfigFile.
func RenderConferencing(ctx context.Context, opts ConferencingOptions) (Stats, error) {
	if opts.BitDepth == 0 {
		opts.BitDepth = 16
	}
	if opts.ConfigFile == "" || opts.OutDir == "" {
		return Stats{}, fmt.Errorf("%w: config file and output directory are required", ErrInvalidOption)
	}
	if opts.SampleRate <= 0 {
		return Stats{}, fmt.Errorf("%w: sample rate %d", ErrInvalidOption, opts.SampleRate)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	lines, err := confspeech.ReadConfig(opts.ConfigFile)
	if err != nil {
		return Stats{}, err
	}
	logger.Info("simulating conferencing utterances",
		zap.String("config", opts.ConfigFile),
		zap.Int("utterances", len(lines)))

	samples := make([]int, len(lines))
	err = forEach(ctx, len(lines), opts.Workers, func(_ context.Context, i int) error {
		n, err := renderConferencing(opts, lines[i])
		if err != nil {
			return fmt.Errorf("line %d (%s): %w", i+1, lines[i].UttID(), err)
		}
		samples[i] = n
		return nil
	})
	if err != nil {
		return Stats{}, err
	}

	st := Stats{Utterances: len(lines)}
	for _, n := range samples {
		st.Samples += int64(n)
	}
	return st, nil
}

// conferencingParams are the numeric fields of a config line.
type conferencingParams struct {
	start float64
	snr   float64
	scale float64
}

func parseConferencingParams(l confspeech.Line) (conferencingParams, error) {
	var p conferencingParams
	fields := []struct {
		name string
		text string
		dst  *float64
	}{
		{"start time", l.StartTime, &p.start},
		{"snr", l.SNR, &p.snr},
		{"scale", l.Scale, &p.scale},
	}
	for _, f := range fields {
		v, err := strconv.ParseFloat(f.text, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return p, fmt.Errorf("%w: %s %q", ErrInvalidLine, f.name, f.text)
		}
		*f.dst = v
	}
	if p.scale <= 0 {
		return p, fmt.Errorf("%w: scale %q", ErrInvalidLine, l.Scale)
	}
	return p, nil
}

func renderConferencing(opts ConferencingOptions, l confspeech.Line) (int, error) {
	p, err := parseConferencingParams(l)
	if err != nil {
		return 0, err
	}

	clean, err := loadAt(l.CleanPath, opts.SampleRate)
	if err != nil {
		return 0, err
	}
	rir, err := loadAt(l.RIRPath, opts.SampleRate)
	if err != nil {
		return 0, err
	}
	noise, err := loadAt(l.NoisePath, opts.SampleRate)
	if err != nil {
		return 0, err
	}

	speech, err := reverb.ApplyMulti(clean.Mono(), rir.Channels)
	if err != nil {
		return 0, err
	}

	n := len(speech[0])
	offset := int(math.Round(p.start * float64(opts.SampleRate)))
	noisy := make([][]float64, len(speech))
	for c := range noisy {
		noisy[c] = placeNoise(noise.Channels[c%len(noise.Channels)], offset, n)
	}

	g := level.NoiseGain(level.PowerMulti(speech), level.PowerMulti(noisy), p.snr)
	mix := make([][]float64, len(speech))
	for c := range mix {
		mix[c] = make([]float64, n)
		for i := range mix[c] {
			mix[c][i] = speech[c][i] + g*noisy[c][i]
		}
	}
	if _, err := level.NormalizePeak(mix, p.scale); err != nil {
		return 0, fmt.Errorf("%w: %s", ErrSilentSource, l.CleanPath)
	}

	out := filepath.Join(opts.OutDir, l.UttID()+".wav")
	a := &wavio.Audio{SampleRate: opts.SampleRate, Channels: mix}
	if err := wavio.Write(out, a, wavio.WithBitDepth(opts.BitDepth)); err != nil {
		return 0, err
	}
	return n, nil
}

// placeNoise lays noise on a timeline of n samples. A positive offset delays
// its onset, a negative one skips into it. The noise loops to cover the span.
func placeNoise(noise []float64, offset, n int) []float64 {
	out := make([]float64, n)
	if len(noise) == 0 {
		return out
	}
	for i := range out {
		k := i - offset
		if k < 0 {
			continue
		}
		out[i] = noise[k%len(noise)]
	}
	return out
}
