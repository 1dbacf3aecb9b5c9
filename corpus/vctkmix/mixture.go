package vctkmix

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"strings"
)

// Errors returned while sampling or parsing mixtures.
var (
	ErrTooFewSpeakers = errors.New("vctkmix: not enough speakers")
	ErrNoAudio        = errors.New("vctkmix: speaker has no audio")
	ErrMalformedLine  = errors.New("vctkmix: malformed mixture line")
)

// Source is one utterance of a mixture and its relative level in dB.
type Source struct {
	Path string
	SNR  float64
	// SNRText is the level as written in the list. Utterance ids reuse it
	// verbatim.
	SNRText string
}

// Mixture is one line of a mixture list.
type Mixture struct {
	Sources []Source
}

// String formats m as a list line.
func (m Mixture) String() string {
	var b strings.Builder
	for i, s := range m.Sources {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(s.Path)
		b.WriteByte(' ')
		b.WriteString(s.SNRText)
	}
	return b.String()
}

// ParseMixture parses one list line of path/level pairs.
func ParseMixture(line string) (Mixture, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 || len(fields)%2 != 0 {
		return Mixture{}, fmt.Errorf("%w: %q", ErrMalformedLine, line)
	}

	m := Mixture{Sources: make([]Source, 0, len(fields)/2)}
	for i := 0; i < len(fields); i += 2 {
		snr, err := strconv.ParseFloat(fields[i+1], 64)
		if err != nil {
			return Mixture{}, fmt.Errorf("%w: level %q: %v", ErrMalformedLine, fields[i+1], err)
		}
		m.Sources = append(m.Sources, Source{Path: fields[i], SNR: snr, SNRText: fields[i+1]})
	}

	return m, nil
}

// SampleMixture draws numSpk distinct speakers from speakers and one utterance
// for each of them.
func SampleMixture(rng *rand.Rand, speakers []string, audios map[string][]string, numSpk int, snrRange float64) (Mixture, error) {
	if numSpk <= 0 || numSpk > len(speakers) {
		return Mixture{}, fmt.Errorf("%w: want %d from %d", ErrTooFewSpeakers, numSpk, len(speakers))
	}

	picked := sampleIndices(rng, len(speakers), numSpk)
	level := roundTo(rng.Float64()*snrRange/2, 5)

	m := Mixture{Sources: make([]Source, numSpk)}
	for j, idx := range picked {
		spk := speakers[idx]
		files := audios[spk]
		if len(files) == 0 {
			return Mixture{}, fmt.Errorf("%w: %s", ErrNoAudio, spk)
		}

		var snr float64
		switch j {
		case 0:
			snr = level
		case 1:
			snr = -level
		}

		m.Sources[j] = Source{
			Path:    files[rng.Intn(len(files))],
			SNR:     snr,
			SNRText: FormatLevel(snr, j),
		}
	}

	return m, nil
}

// FormatLevel renders the level of the j-th source. The first two sources
// carry a float, the rest a plain "0".
func FormatLevel(v float64, j int) string {
	if j >= 2 {
		return "0"
	}

	if v != 0 && math.Abs(v) < 1e-4 {
		return strconv.FormatFloat(v, 'e', -1, 64)
	}

	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}

// sampleIndices returns k distinct indices of [0, n) in draw order.
func sampleIndices(rng *rand.Rand, n, k int) []int {
	pool := make([]int, n)
	for i := range pool {
		pool[i] = i
	}
	for i := 0; i < k; i++ {
		j := i + rng.Intn(n-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:k]
}

func roundTo(v float64, digits int) float64 {
	p := math.Pow(10, float64(digits))
	return math.Round(v*p) / p
}
