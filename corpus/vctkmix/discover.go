package vctkmix

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// SpeakerDir is the directory below the corpus root that lists one entry per
// speaker.
const SpeakerDir = "wav48"

// DiscoverSpeakers returns the sorted entry names of <root>/wav48.
func DiscoverSpeakers(root string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(root, SpeakerDir))
	if err != nil {
		return nil, fmt.Errorf("vctkmix: %w", err)
	}

	spks := make([]string, 0, len(entries))
	for _, e := range entries {
		spks = append(spks, e.Name())
	}
	sort.Strings(spks)
	return spks, nil
}

// CollectAudio maps each speaker to the sorted root-relative paths of the
// "*.<format>" files that live in a directory named after the speaker,
// anywhere below root.
func CollectAudio(root string, speakers []string, format string) (map[string][]string, error) {
	want := make(map[string]struct{}, len(speakers))
	audios := make(map[string][]string, len(speakers))
	for _, spk := range speakers {
		want[spk] = struct{}{}
		audios[spk] = nil
	}

	suffix := "." + strings.TrimPrefix(format, ".")
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), suffix) {
			return nil
		}

		spk := filepath.Base(filepath.Dir(path))
		if _, ok := want[spk]; !ok {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		audios[spk] = append(audios[spk], filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("vctkmix: scan %s: %w", root, err)
	}

	for _, files := range audios {
		sort.Strings(files)
	}
	return audios, nil
}
