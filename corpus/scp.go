package corpus

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Errors returned by scp readers and writers.
var (
	ErrMalformedLine = errors.New("corpus: malformed scp line")
	ErrDuplicateKey  = errors.New("corpus: duplicate key")
	ErrInvalidKey    = errors.New("corpus: invalid key")
	ErrInvalidValue  = errors.New("corpus: invalid value")
)

// Entry is one "key value" line of an scp file.
type Entry struct {
	Key   string
	Value string
}

// ParseScp reads scp entries from r in file order.
//
// The key is the first whitespace separated token and the value is the rest of
// the line with surrounding whitespace removed. Blank lines are skipped.
func ParseScp(r io.Reader) ([]Entry, error) {
	var entries []Entry
	seen := make(map[string]struct{})

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}

		sep := strings.IndexAny(line, " \t")
		if sep < 0 {
			return nil, fmt.Errorf("%w: line %d: %q", ErrMalformedLine, lineNo, line)
		}
		key, value := line[:sep], strings.TrimSpace(line[sep+1:])
		if value == "" {
			return nil, fmt.Errorf("%w: line %d: %q", ErrMalformedLine, lineNo, line)
		}

		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("%w: line %d: %q", ErrDuplicateKey, lineNo, key)
		}
		seen[key] = struct{}{}

		entries = append(entries, Entry{Key: key, Value: value})
	}

	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("corpus: read scp: %w", err)
	}

	return entries, nil
}

// ReadScp reads the scp file at path.
func ReadScp(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("corpus: %w", err)
	}
	defer f.Close()

	entries, err := ParseScp(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return entries, nil
}

// ScpMap indexes entries by key.
func ScpMap(entries []Entry) map[string]string {
	m := make(map[string]string, len(entries))
	for _, e := range entries {
		m[e.Key] = e.Value
	}
	return m
}

// WriteScp writes entries to path in the given order, replacing any existing file.
func WriteScp(path string, entries []Entry) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("corpus: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("corpus: %w", err)
	}

	w := bufio.NewWriter(f)
	for _, e := range entries {
		if err := validateEntry(e.Key, e.Value); err != nil {
			f.Close()
			return err
		}
		if _, err := fmt.Fprintf(w, "%s %s\n", e.Key, e.Value); err != nil {
			f.Close()
			return fmt.Errorf("corpus: write %s: %w", path, err)
		}
	}

	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("corpus: write %s: %w", path, err)
	}

	return f.Close()
}

func validateEntry(key, value string) error {
	if key == "" || strings.ContainsAny(key, " \t\r\n") {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	if strings.ContainsAny(value, "\r\n") {
		return fmt.Errorf("%w: %q", ErrInvalidValue, value)
	}
	return nil
}

// ParseAudioList reads a list of audio paths. Each line is either a bare path
// or a "key path" pair; keys are ignored and duplicates are kept.
func ParseAudioList(r io.Reader) ([]string, error) {
	var paths []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if sep := strings.IndexAny(line, " \t"); sep >= 0 {
			line = strings.TrimSpace(line[sep+1:])
		}
		paths = append(paths, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("corpus: read audio list: %w", err)
	}
	return paths, nil
}

// ReadAudioList reads the audio list at path.
func ReadAudioList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("corpus: %w", err)
	}
	defer f.Close()

	paths, err := ParseAudioList(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return paths, nil
}
