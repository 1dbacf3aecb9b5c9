// Package confspeech prepares the ConferencingSpeech 2021 development data
// directory from the simulation config list.
package confspeech

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/cwbudde/algo-enh/corpus"
)

// Errors returned by Prepare.
var (
	ErrMalformedLine = errors.New("confspeech: malformed config line")
	ErrMissingAudio  = errors.New("confspeech: simulated audio not found")
)

// Line is one entry of the simulation config list:
//
//	/path/SSB18100388.wav -2 /path/noise-0328.wav /path/circle/3.43_5.92.wav 19.2494 0.4497
type Line struct {
	CleanPath string
	StartTime string
	NoisePath string
	RIRPath   string
	SNR       string
	Scale     string
}

// UttID returns the utterance id the simulator used as file stem.
func (l Line) UttID() string {
	return corpus.ConferencingUttID(l.CleanPath, l.NoisePath, l.RIRPath, l.StartTime, l.SNR, l.Scale)
}

// ParseLine splits a config line into its six fields.
func ParseLine(s string) (Line, error) {
	f := strings.Fields(s)
	if len(f) != 6 {
		return Line{}, fmt.Errorf("%w: want 6 fields, got %d", ErrMalformedLine, len(f))
	}
	return Line{
		CleanPath: f[0],
		StartTime: f[1],
		NoisePath: f[2],
		RIRPath:   f[3],
		SNR:       f[4],
		Scale:     f[5],
	}, nil
}

// ParseConfig reads every non-empty line of a config list.
func ParseConfig(r io.Reader) ([]Line, error) {
	var out []Line
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		l, err := ParseLine(text)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		out = append(out, l)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("confspeech: %w", err)
	}
	return out, nil
}

// ReadConfig reads the config list at path.
func ReadConfig(path string) ([]Line, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("confspeech: %w", err)
	}
	defer f.Close()

	lines, err := ParseConfig(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return lines, nil
}

// IndexAudio maps the stem of every *.wav file below dirs to its absolute
// path. Later directories win on stem collisions.
func IndexAudio(dirs []string) (map[string]string, error) {
	audios := make(map[string]string)
	for _, dir := range dirs {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return nil, fmt.Errorf("confspeech: %w", err)
		}
		err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || filepath.Ext(path) != ".wav" {
				return nil
			}
			audios[corpus.Stem(path)] = path
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("confspeech: scan %s: %w", dir, err)
		}
	}
	return audios, nil
}

// Options configures Prepare.
type Options struct {
	// ConfigFile is the simulation config list.
	ConfigFile string
	// AudioDirs hold the simulated mixtures named <uttid>.wav.
	AudioDirs []string
	// OutDir receives the scp files.
	OutDir string

	Logger *zap.Logger
}

// Stats summarises a Prepare run.
type Stats struct {
	Utterances int
	Speakers   int
}

// Prepare writes wav.scp, spk1.scp, utt2spk, noise1.scp and spk2utt for every
// line of the config list.
func Prepare(opts Options) (Stats, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	lines, err := ReadConfig(opts.ConfigFile)
	if err != nil {
		return Stats{}, err
	}

	audios, err := IndexAudio(opts.AudioDirs)
	if err != nil {
		return Stats{}, err
	}
	logger.Info("simulated audio indexed", zap.Int("files", len(audios)), zap.Strings("dirs", opts.AudioDirs))

	w := corpus.NewDatadirWriter(opts.OutDir, corpus.WithLogger(logger))
	speakers := make(map[string]struct{})
	if err := writeEntries(w, lines, audios, speakers); err != nil {
		w.Close()
		return Stats{}, err
	}
	if err := w.Close(); err != nil {
		return Stats{}, err
	}

	err = corpus.WriteSpk2Utt(filepath.Join(opts.OutDir, "utt2spk"), filepath.Join(opts.OutDir, "spk2utt"))
	if err != nil {
		return Stats{}, err
	}

	st := Stats{Utterances: len(lines), Speakers: len(speakers)}
	logger.Info("data directory prepared",
		zap.String("outdir", opts.OutDir),
		zap.Int("utterances", st.Utterances),
		zap.Int("speakers", st.Speakers),
	)
	return st, nil
}

func writeEntries(w *corpus.DatadirWriter, lines []Line, audios map[string]string, speakers map[string]struct{}) error {
	names := []string{"wav.scp", "spk1.scp", "utt2spk", "noise1.scp"}
	children := make([]*corpus.ChildWriter, len(names))
	for i, name := range names {
		c, err := w.Child(name)
		if err != nil {
			return err
		}
		children[i] = c
	}

	for _, l := range lines {
		uttID := l.UttID()
		wav, ok := audios[uttID]
		if !ok {
			return fmt.Errorf("%w: %s", ErrMissingAudio, uttID)
		}
		spk := corpus.SpeakerID(l.CleanPath)
		speakers[spk] = struct{}{}

		values := []string{wav, l.CleanPath, spk, l.NoisePath}
		for i, c := range children {
			if err := c.Set(uttID, values[i]); err != nil {
				return err
			}
		}
	}
	return nil
}
