package simulate

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/cwbudde/algo-enh/audio/wavio"
	"github.com/cwbudde/algo-enh/corpus"
	"github.com/cwbudde/algo-enh/corpus/vctkmix"
	"github.com/cwbudde/algo-enh/dsp/level"
)

// Mode selects how sources of different lengths are combined.
type Mode string

const (
	// ModeMin truncates every source to the shortest one.
	ModeMin Mode = "min"
	// ModeMax zero-pads every source to the longest one.
	ModeMax Mode = "max"
)

// MaxPeak is the peak level above which a mixture and its sources are
// attenuated together.
const MaxPeak = 0.9

// VCTKOptions configures RenderVCTK.
type VCTKOptions struct {
	// Root is the corpus root the list paths are relative to.
	Root string
	// ListFile is a mixture list written by vctkmix.Generate.
	ListFile string
	// OutDir receives mix/, s1/ ... sN/ and the scp files.
	OutDir     string
	SampleRate int
	Mode       Mode
	BitDepth   int
	// Workers bounds concurrent renders; 0 uses GOMAXPROCS.
	Workers int
	Logger  *zap.Logger
}

// DefaultVCTKOptions returns 8 kHz, min-mode, 16-bit rendering.
func DefaultVCTKOptions() VCTKOptions {
	return VCTKOptions{
		SampleRate: 8000,
		Mode:       ModeMin,
		BitDepth:   16,
	}
}

func (o VCTKOptions) validate() error {
	switch {
	case o.Root == "" || o.ListFile == "" || o.OutDir == "":
		return fmt.Errorf("%w: root, list file and output directory are required", ErrInvalidOption)
	case o.SampleRate <= 0:
		return fmt.Errorf("%w: sample rate %d", ErrInvalidOption, o.SampleRate)
	case o.Mode != ModeMin && o.Mode != ModeMax:
		return fmt.Errorf("%w: mode %q", ErrInvalidOption, o.Mode)
	}
	return nil
}

type mixtureJob struct {
	line    int
	id      string
	mixture vctkmix.Mixture
}

// mixtureID is the utterance id of m, built from the source stems and the
// level strings as they appear in the list.
func mixtureID(m vctkmix.Mixture) (string, error) {
	stems := make([]string, len(m.Sources))
	snrs := make([]string, len(m.Sources))
	for j, src := range m.Sources {
		stems[j] = corpus.Stem(src.Path)
		snrs[j] = src.SNRText
	}
	return corpus.MixtureUttID(stems, snrs)
}

type renderedMixture struct {
	id      string
	mixPath string
	srcPath []string
	samples int
}

// RenderVCTK renders every mixture of opts.ListFile.
func RenderVCTK(ctx context.Context, opts VCTKOptions) (Stats, error) {
	if opts.BitDepth == 0 {
		opts.BitDepth = 16
	}
	if err := opts.validate(); err != nil {
		return Stats{}, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	mixtures, err := vctkmix.ReadList(opts.ListFile)
	if err != nil {
		return Stats{}, err
	}
	if len(mixtures) == 0 {
		return Stats{}, nil
	}

	numSpk := len(mixtures[0].Sources)
	for i, m := range mixtures {
		if len(m.Sources) != numSpk {
			return Stats{}, fmt.Errorf("%w: mixture %d has %d sources, want %d", ErrInvalidLine, i+1, len(m.Sources), numSpk)
		}
	}

	// Repeated lines map to the same output files, so each id is rendered once.
	var jobs []mixtureJob
	firstLine := make(map[string]int, len(mixtures))
	for i, m := range mixtures {
		id, err := mixtureID(m)
		if err != nil {
			return Stats{}, fmt.Errorf("%w: mixture %d: %v", ErrInvalidLine, i+1, err)
		}
		if first, ok := firstLine[id]; ok {
			logger.Warn("skipping repeated mixture",
				zap.String("id", id),
				zap.Int("line", i+1),
				zap.Int("first_line", first))
			continue
		}
		firstLine[id] = i + 1
		jobs = append(jobs, mixtureJob{line: i + 1, id: id, mixture: m})
	}

	logger.Info("rendering mixtures",
		zap.String("list", opts.ListFile),
		zap.Int("mixtures", len(jobs)),
		zap.Int("skipped", len(mixtures)-len(jobs)),
		zap.Int("num_spk", numSpk),
		zap.String("mode", string(opts.Mode)))

	results := make([]renderedMixture, len(jobs))
	var done atomic.Int64
	err = forEach(ctx, len(jobs), opts.Workers, func(_ context.Context, i int) error {
		r, err := renderMixture(opts, jobs[i].id, jobs[i].mixture)
		if err != nil {
			return fmt.Errorf("mixture %d: %w", jobs[i].line, err)
		}
		results[i] = r
		if n := done.Add(1); n%1000 == 0 {
			logger.Debug("progress", zap.Int64("rendered", n))
		}
		return nil
	})
	if err != nil {
		return Stats{}, err
	}

	if err := writeMixtureIndex(opts.OutDir, numSpk, results, logger); err != nil {
		return Stats{}, err
	}

	st := Stats{Utterances: len(results), Skipped: len(mixtures) - len(jobs)}
	for _, r := range results {
		st.Samples += int64(r.samples)
	}
	return st, nil
}

func renderMixture(opts VCTKOptions, id string, m vctkmix.Mixture) (renderedMixture, error) {
	sources := make([][]float64, len(m.Sources))

	for j, src := range m.Sources {
		a, err := loadAt(filepath.Join(opts.Root, filepath.FromSlash(src.Path)), opts.SampleRate)
		if err != nil {
			return renderedMixture{}, err
		}
		x := a.Mono()
		if _, err := level.NormalizePower(x); err != nil {
			if errors.Is(err, level.ErrSilent) {
				return renderedMixture{}, fmt.Errorf("%w: %s", ErrSilentSource, src.Path)
			}
			return renderedMixture{}, err
		}
		g := level.Gain(src.SNR)
		for i := range x {
			x[i] *= g
		}

		sources[j] = x
	}

	n := len(sources[0])
	for _, s := range sources[1:] {
		if opts.Mode == ModeMin {
			n = min(n, len(s))
		} else {
			n = max(n, len(s))
		}
	}

	mix := make([]float64, n)
	for j := range sources {
		sources[j] = fitLength(sources[j], n)
		for i, v := range sources[j] {
			mix[i] += v
		}
	}

	all := append([][]float64{mix}, sources...)
	if p := level.Peak(all); p > MaxPeak {
		level.Scale(all, MaxPeak/p)
	}

	r := renderedMixture{
		id:      id,
		mixPath: filepath.Join(opts.OutDir, "mix", id+".wav"),
		srcPath: make([]string, len(sources)),
		samples: n,
	}
	bits := wavio.WithBitDepth(opts.BitDepth)
	if err := wavio.Write(r.mixPath, wavio.NewMono(opts.SampleRate, mix), bits); err != nil {
		return renderedMixture{}, err
	}
	for j, s := range sources {
		r.srcPath[j] = filepath.Join(opts.OutDir, "s"+strconv.Itoa(j+1), id+".wav")
		if err := wavio.Write(r.srcPath[j], wavio.NewMono(opts.SampleRate, s), bits); err != nil {
			return renderedMixture{}, err
		}
	}
	return r, nil
}

func writeMixtureIndex(dir string, numSpk int, results []renderedMixture, logger *zap.Logger) error {
	w := corpus.NewDatadirWriter(dir, corpus.WithLogger(logger))

	set := func(name, key, value string) error {
		c, err := w.Child(name)
		if err != nil {
			return err
		}
		return c.Set(key, value)
	}

	for _, r := range results {
		if err := set("wav.scp", r.id, r.mixPath); err != nil {
			w.Close()
			return err
		}
		for j := 0; j < numSpk; j++ {
			if err := set(fmt.Sprintf("spk%d.scp", j+1), r.id, r.srcPath[j]); err != nil {
				w.Close()
				return err
			}
		}
		if err := set("utt2spk", r.id, r.id); err != nil {
			w.Close()
			return err
		}
	}

	if err := w.Close(); err != nil {
		return err
	}
	return corpus.WriteSpk2Utt(filepath.Join(dir, "utt2spk"), filepath.Join(dir, "spk2utt"))
}
