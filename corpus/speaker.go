package corpus

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// SpeakerID derives a speaker id from a clean-speech path.
//
// LibriSpeech paths (.../<speaker>/<chapter>/<file>) yield "<speaker>-<chapter>";
// every other corpus uses the name of the parent directory.
func SpeakerID(cleanPath string) string {
	parts := strings.Split(cleanPath, "/")
	if len(parts) < 2 {
		return ""
	}

	if strings.Contains(cleanPath, "librispeech") {
		lo := max(0, len(parts)-3)
		return strings.Join(parts[lo:len(parts)-1], "-")
	}

	return parts[len(parts)-2]
}

// Spk2Utt inverts utt2spk entries. Speakers are sorted and each speaker's
// utterances keep their utt2spk order.
func Spk2Utt(utt2spk []Entry) []Entry {
	byspk := make(map[string][]string)
	for _, e := range utt2spk {
		byspk[e.Value] = append(byspk[e.Value], e.Key)
	}

	spks := make([]string, 0, len(byspk))
	for spk := range byspk {
		spks = append(spks, spk)
	}
	sort.Strings(spks)

	out := make([]Entry, len(spks))
	for i, spk := range spks {
		out[i] = Entry{Key: spk, Value: strings.Join(byspk[spk], " ")}
	}
	return out
}

// WriteSpk2Utt reads an utt2spk file and writes the matching spk2utt file.
func WriteSpk2Utt(utt2spkPath, spk2uttPath string) error {
	entries, err := ReadScp(utt2spkPath)
	if err != nil {
		return err
	}

	if err := WriteScp(spk2uttPath, Spk2Utt(entries)); err != nil {
		return fmt.Errorf("corpus: spk2utt: %w", err)
	}
	return nil
}

// Stem returns the final path element without its last extension.
func Stem(path string) string {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	if ext == base {
		return base
	}
	return strings.TrimSuffix(base, ext)
}
