// Package choices is a registry of interchangeable model components.
//
// A Choices group maps lower-case names to constructors together with the
// default configuration of each entry. Configurations travel as Conf maps,
// the form they take in YAML task files, and are decoded into typed option
// structs that reject unknown keys.
package choices

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Errors returned by the registry.
var (
	ErrUnknown   = errors.New("choices: unknown choice")
	ErrDuplicate = errors.New("choices: duplicate registration")
	ErrConf      = errors.New("choices: invalid conf")
)

// Conf is the untyped configuration of one component.
type Conf map[string]any

type entry[T any] struct {
	ctor     T
	defaults func() any
}

// Choices is one named group of components, e.g. "encoder".
type Choices[T any] struct {
	name    string
	def     string
	entries map[string]entry[T]
}

// New returns an empty group. def names the entry used when none is given.
func New[T any](name, def string) *Choices[T] {
	return &Choices[T]{
		name:    name,
		def:     strings.ToLower(def),
		entries: make(map[string]entry[T]),
	}
}

// Name returns the group name.
func (c *Choices[T]) Name() string { return c.name }

// Default returns the default entry name.
func (c *Choices[T]) Default() string { return c.def }

// Register adds ctor under key. defaults returns a pointer to a fresh option
// struct holding the entry's default configuration; it may be nil.
func (c *Choices[T]) Register(key string, ctor T, defaults func() any) error {
	k := strings.ToLower(key)
	if _, ok := c.entries[k]; ok {
		return fmt.Errorf("%w: %s %q", ErrDuplicate, c.name, key)
	}
	c.entries[k] = entry[T]{ctor: ctor, defaults: defaults}
	return nil
}

// MustRegister is Register for package initialisation.
func (c *Choices[T]) MustRegister(key string, ctor T, defaults func() any) {
	if err := c.Register(key, ctor, defaults); err != nil {
		panic(err)
	}
}

// Get looks key up case-insensitively. An empty key selects the default.
func (c *Choices[T]) Get(key string) (T, error) {
	e, err := c.lookup(key)
	return e.ctor, err
}

// Names returns the registered names in sorted order.
func (c *Choices[T]) Names() []string {
	names := make([]string, 0, len(c.entries))
	for k := range c.entries {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Defaults returns the default configuration of key as a Conf.
func (c *Choices[T]) Defaults(key string) (Conf, error) {
	e, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	if e.defaults == nil {
		return Conf{}, nil
	}
	return ToConf(e.defaults())
}

func (c *Choices[T]) lookup(key string) (entry[T], error) {
	if key == "" {
		key = c.def
	}
	e, ok := c.entries[strings.ToLower(key)]
	if !ok {
		return entry[T]{}, fmt.Errorf("%w: %s %q (choose from %s)",
			ErrUnknown, c.name, key, strings.Join(c.Names(), ", "))
	}
	return e, nil
}

// Decode fills dst from conf. Keys absent from conf keep the values already in
// dst, keys unknown to dst are an error.
func Decode(conf Conf, dst any) error {
	if len(conf) == 0 {
		return nil
	}
	data, err := yaml.Marshal(map[string]any(conf))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConf, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", ErrConf, err)
	}
	return nil
}

// ToConf converts an option struct to its Conf form.
func ToConf(v any) (Conf, error) {
	data, err := yaml.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConf, err)
	}
	out := Conf{}
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConf, err)
	}
	return out, nil
}

// Merge returns the defaults of key overlaid with conf, validated against the
// entry's option struct.
func (c *Choices[T]) Merge(key string, conf Conf) (Conf, error) {
	e, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	if e.defaults == nil {
		if len(conf) > 0 {
			return nil, fmt.Errorf("%w: %s %q takes no options", ErrConf, c.name, key)
		}
		return Conf{}, nil
	}

	opts := e.defaults()
	if err := Decode(conf, opts); err != nil {
		return nil, fmt.Errorf("%s %q: %w", c.name, key, err)
	}
	return ToConf(opts)
}
