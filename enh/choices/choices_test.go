package choices

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type widgetOpts struct {
	Size  int     `yaml:"size"`
	Gain  float64 `yaml:"gain"`
	Label string  `yaml:"label"`
}

func newGroup(t *testing.T) *Choices[func() string] {
	t.Helper()
	g := New[func() string]("widget", "Small")
	require.NoError(t, g.Register("small", func() string { return "small" },
		func() any { return &widgetOpts{Size: 1, Gain: 0.5, Label: "s"} }))
	require.NoError(t, g.Register("Large", func() string { return "large" }, nil))
	return g
}

func TestGetCaseInsensitive(t *testing.T) {
	g := newGroup(t)

	for _, key := range []string{"large", "LARGE", "Large"} {
		ctor, err := g.Get(key)
		require.NoError(t, err)
		assert.Equal(t, "large", ctor())
	}

	ctor, err := g.Get("")
	require.NoError(t, err)
	assert.Equal(t, "small", ctor(), "empty key selects the default")
	assert.Equal(t, "small", g.Default())
	assert.Equal(t, "widget", g.Name())
}

func TestUnknownAndDuplicate(t *testing.T) {
	g := newGroup(t)

	_, err := g.Get("medium")
	require.ErrorIs(t, err, ErrUnknown)
	assert.Contains(t, err.Error(), "large, small")

	assert.ErrorIs(t, g.Register("SMALL", nil, nil), ErrDuplicate)
	assert.Panics(t, func() { g.MustRegister("small", nil, nil) })
}

func TestNamesSorted(t *testing.T) {
	g := newGroup(t)
	assert.Equal(t, []string{"large", "small"}, g.Names())
}

func TestDefaults(t *testing.T) {
	g := newGroup(t)

	conf, err := g.Defaults("small")
	require.NoError(t, err)
	assert.Equal(t, Conf{"size": 1, "gain": 0.5, "label": "s"}, conf)

	conf, err = g.Defaults("large")
	require.NoError(t, err)
	assert.Empty(t, conf)
}

func TestDecodeKeepsDefaultsAndRejectsUnknown(t *testing.T) {
	opts := widgetOpts{Size: 1, Gain: 0.5, Label: "s"}
	require.NoError(t, Decode(Conf{"size": 8}, &opts))
	assert.Equal(t, widgetOpts{Size: 8, Gain: 0.5, Label: "s"}, opts)

	err := Decode(Conf{"sise": 8}, &opts)
	assert.ErrorIs(t, err, ErrConf)

	err = Decode(Conf{"size": "big"}, &opts)
	assert.ErrorIs(t, err, ErrConf)
}

func TestMerge(t *testing.T) {
	g := newGroup(t)

	conf, err := g.Merge("small", Conf{"gain": 2.5})
	require.NoError(t, err)
	assert.Equal(t, Conf{"size": 1, "gain": 2.5, "label": "s"}, conf)

	_, err = g.Merge("small", Conf{"bogus": 1})
	assert.ErrorIs(t, err, ErrConf)

	_, err = g.Merge("large", Conf{"size": 1})
	assert.ErrorIs(t, err, ErrConf)
}
