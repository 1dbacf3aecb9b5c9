package vctkmix

import (
	"bufio"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// Errors returned by Generate.
var (
	ErrSpeakerCount  = errors.New("vctkmix: unexpected number of speakers")
	ErrInvalidSplit  = errors.New("vctkmix: invalid speaker split")
	ErrInvalidOption = errors.New("vctkmix: invalid option")
)

// Split names one of the generated lists.
type Split string

const (
	SplitTrain Split = "tr"
	SplitValid Split = "cv"
	SplitTest  Split = "tt"
)

// Splits lists the splits in generation order.
var Splits = []Split{SplitTrain, SplitValid, SplitTest}

// Options configures Generate.
type Options struct {
	// Root is the VCTK corpus root (the directory holding wav48).
	Root string
	// OutDir receives the speaker and mixture lists.
	OutDir string
	// NumSpks lists the speaker counts per mixture, one set of lists each.
	NumSpks []int
	// NumSpksTest is the number of speakers held out for the open condition.
	NumSpksTest int
	// AudioFormat is the audio file extension.
	AudioFormat string
	// NumMixtures is the number of lines per split.
	NumMixtures map[Split]int
	// SNRRange is the full width of the level range in dB.
	SNRRange float64
	// ExpectedSpeakers guards against partial corpora. Zero disables the check.
	ExpectedSpeakers int
	// Seed drives speaker shuffling and mixture sampling.
	Seed int64

	Logger *zap.Logger
}

// DefaultOptions returns the settings of the VCTK-mix recipe.
func DefaultOptions() Options {
	return Options{
		OutDir:      ".",
		NumSpksTest: 19,
		AudioFormat: "wav",
		NumMixtures: map[Split]int{
			SplitTrain: 20000,
			SplitValid: 5000,
			SplitTest:  3000,
		},
		SNRRange:         5.0,
		ExpectedSpeakers: 109,
	}
}

// Result describes what Generate wrote.
type Result struct {
	TrainSpeakers []string
	TestSpeakers  []string
	// Lists maps "<numSpk>/<split>" to the written list path.
	Lists map[string]string
}

// ListName returns the file name of the list for numSpk speakers and split.
func ListName(numSpk int, split Split) string {
	return fmt.Sprintf("vctk_mix_%d_spk_%s.txt", numSpk, split)
}

func (o Options) validate() error {
	if o.Root == "" {
		return fmt.Errorf("%w: empty corpus root", ErrInvalidOption)
	}
	if len(o.NumSpks) == 0 {
		return fmt.Errorf("%w: no speaker counts", ErrInvalidOption)
	}
	for _, n := range o.NumSpks {
		if n <= 0 {
			return fmt.Errorf("%w: speaker count %d", ErrInvalidOption, n)
		}
	}
	for _, s := range Splits {
		if o.NumMixtures[s] < 0 {
			return fmt.Errorf("%w: negative mixture count for %s", ErrInvalidOption, s)
		}
	}
	if o.SNRRange < 0 {
		return fmt.Errorf("%w: negative snr range %v", ErrInvalidOption, o.SNRRange)
	}
	return nil
}

// SplitSpeakers shuffles speakers with rng and holds out the last numTest of
// them. The input slice is not modified.
func SplitSpeakers(rng *rand.Rand, speakers []string, numTest int) (train, test []string, err error) {
	if numTest <= 0 || numTest >= len(speakers) {
		return nil, nil, fmt.Errorf("%w: %d test speakers out of %d", ErrInvalidSplit, numTest, len(speakers))
	}

	shuffled := append([]string(nil), speakers...)
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	cut := len(shuffled) - numTest
	return shuffled[:cut], shuffled[cut:], nil
}

// Generate discovers the corpus, splits its speakers and writes every list.
func Generate(opts Options) (*Result, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	speakers, err := DiscoverSpeakers(opts.Root)
	if err != nil {
		return nil, err
	}
	if opts.ExpectedSpeakers > 0 && len(speakers) != opts.ExpectedSpeakers {
		return nil, fmt.Errorf("%w: VCTK should have %d speakers in total, got %d",
			ErrSpeakerCount, opts.ExpectedSpeakers, len(speakers))
	}

	audios, err := CollectAudio(opts.Root, speakers, opts.AudioFormat)
	if err != nil {
		return nil, err
	}
	logger.Info("corpus scanned", zap.String("root", opts.Root), zap.Int("speakers", len(speakers)))

	rng := rand.New(rand.NewSource(opts.Seed))
	train, test, err := SplitSpeakers(rng, speakers, opts.NumSpksTest)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
		return nil, fmt.Errorf("vctkmix: %w", err)
	}
	if err := writeLines(filepath.Join(opts.OutDir, "spk_list_tr"), train); err != nil {
		return nil, err
	}
	if err := writeLines(filepath.Join(opts.OutDir, "spk_list_tt"), test); err != nil {
		return nil, err
	}

	res := &Result{
		TrainSpeakers: train,
		TestSpeakers:  test,
		Lists:         make(map[string]string),
	}

	for _, numSpk := range opts.NumSpks {
		for _, split := range Splits {
			pool := train
			if split == SplitTest {
				pool = test
			}

			lines := make([]string, opts.NumMixtures[split])
			for i := range lines {
				m, err := SampleMixture(rng, pool, audios, numSpk, opts.SNRRange)
				if err != nil {
					return nil, fmt.Errorf("vctkmix: %s, %d speakers: %w", split, numSpk, err)
				}
				lines[i] = m.String()
			}

			path := filepath.Join(opts.OutDir, ListName(numSpk, split))
			if err := writeLines(path, lines); err != nil {
				return nil, err
			}
			res.Lists[fmt.Sprintf("%d/%s", numSpk, split)] = path

			logger.Debug("mixture list written", zap.String("path", path), zap.Int("lines", len(lines)))
		}
	}

	logger.Info("generation of mixture list finished",
		zap.Int("train_speakers", len(train)),
		zap.Int("test_speakers", len(test)),
		zap.Int("lists", len(res.Lists)),
	)
	return res, nil
}

func writeLines(path string, lines []string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("vctkmix: %w", err)
	}

	w := bufio.NewWriter(f)
	if len(lines) > 0 {
		if _, err := w.WriteString(strings.Join(lines, "\n") + "\n"); err != nil {
			f.Close()
			return fmt.Errorf("vctkmix: write %s: %w", path, err)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("vctkmix: write %s: %w", path, err)
	}
	return f.Close()
}

// ReadList parses every non-empty line of a mixture list.
func ReadList(path string) ([]Mixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("vctkmix: %w", err)
	}

	var out []Mixture
	for i, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		m, err := ParseMixture(line)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, i+1, err)
		}
		out = append(out, m)
	}
	return out, nil
}
