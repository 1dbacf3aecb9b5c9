package corpus

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"
)

// ErrWriterClosed is returned when writing through a closed DatadirWriter.
var ErrWriterClosed = errors.New("corpus: datadir writer closed")

// Option configures a DatadirWriter.
type Option func(*config)

type config struct {
	logger *zap.Logger
}

func defaultConfig() config {
	return config{logger: zap.NewNop()}
}

// WithLogger routes duplicate and mismatch warnings to l.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// DatadirWriter writes a set of scp files below one directory.
//
// Files are opened lazily on first use of Child and lines are written in
// insertion order.
type DatadirWriter struct {
	dir      string
	logger   *zap.Logger
	children map[string]*ChildWriter
	order    []string
	closed   bool
}

// ChildWriter appends "key value" lines to one file of a data directory.
type ChildWriter struct {
	name   string
	path   string
	file   *os.File
	buf    *bufio.Writer
	keys   map[string]struct{}
	logger *zap.Logger
	parent *DatadirWriter
}

// NewDatadirWriter returns a writer rooted at dir.
func NewDatadirWriter(dir string, opts ...Option) *DatadirWriter {
	cfg := defaultConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	return &DatadirWriter{
		dir:      dir,
		logger:   cfg.logger,
		children: make(map[string]*ChildWriter),
	}
}

// Dir returns the output directory.
func (d *DatadirWriter) Dir() string { return d.dir }

// Child returns the writer for file name, creating it on first use.
func (d *DatadirWriter) Child(name string) (*ChildWriter, error) {
	if d.closed {
		return nil, ErrWriterClosed
	}
	if c, ok := d.children[name]; ok {
		return c, nil
	}

	path := filepath.Join(d.dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("corpus: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("corpus: %w", err)
	}

	c := &ChildWriter{
		name:   name,
		path:   path,
		file:   f,
		buf:    bufio.NewWriter(f),
		keys:   make(map[string]struct{}),
		logger: d.logger,
		parent: d,
	}
	d.children[name] = c
	d.order = append(d.order, name)

	return c, nil
}

// Set writes one line. A key written twice is kept twice and reported as a
// warning.
func (c *ChildWriter) Set(key, value string) error {
	if c.parent.closed {
		return ErrWriterClosed
	}
	if err := validateEntry(key, value); err != nil {
		return err
	}

	if _, dup := c.keys[key]; dup {
		c.logger.Warn("duplicated key", zap.String("file", c.path), zap.String("key", key))
	}
	c.keys[key] = struct{}{}

	if _, err := fmt.Fprintf(c.buf, "%s %s\n", key, value); err != nil {
		return fmt.Errorf("corpus: write %s: %w", c.path, err)
	}

	return nil
}

// Len returns the number of distinct keys written so far.
func (c *ChildWriter) Len() int { return len(c.keys) }

// Path returns the file path of the child.
func (c *ChildWriter) Path() string { return c.path }

// Close flushes and closes every child file. Children that hold different key
// sets are reported as a warning.
func (d *DatadirWriter) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true

	d.checkKeys()

	var errs []error
	for _, name := range d.order {
		c := d.children[name]
		if err := c.buf.Flush(); err != nil {
			errs = append(errs, fmt.Errorf("corpus: flush %s: %w", c.path, err))
		}
		if err := c.file.Close(); err != nil {
			errs = append(errs, fmt.Errorf("corpus: close %s: %w", c.path, err))
		}
	}

	return errors.Join(errs...)
}

// MismatchedChildren returns the names of children whose key set differs from
// the first child's, sorted.
func (d *DatadirWriter) MismatchedChildren() []string {
	if len(d.order) < 2 {
		return nil
	}

	ref := d.children[d.order[0]].keys
	var out []string
	for _, name := range d.order[1:] {
		if !sameKeys(ref, d.children[name].keys) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func (d *DatadirWriter) checkKeys() {
	bad := d.MismatchedChildren()
	if len(bad) == 0 {
		return
	}
	d.logger.Warn("ids are mismatched between scp files",
		zap.String("dir", d.dir),
		zap.String("reference", d.order[0]),
		zap.Strings("mismatched", bad),
	)
}

func sameKeys(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}
