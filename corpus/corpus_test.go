package corpus

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseScp(t *testing.T) {
	in := "utt1 /a/b.wav\n\nutt2\t/c d/e.wav  \n  utt3   x\n"
	entries, err := ParseScp(strings.NewReader(in))
	require.NoError(t, err)

	assert.Equal(t, []Entry{
		{Key: "utt1", Value: "/a/b.wav"},
		{Key: "utt2", Value: "/c d/e.wav"},
		{Key: "utt3", Value: "x"},
	}, entries)
}

func TestParseAudioList(t *testing.T) {
	in := "rir1 /r/a.wav\n/r/b.wav\n\nrir1 /r/a.wav\n"
	paths, err := ParseAudioList(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []string{"/r/a.wav", "/r/b.wav", "/r/a.wav"}, paths)
}

func TestParseScpErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want error
	}{
		{name: "key only", in: "utt1\n", want: ErrMalformedLine},
		{name: "duplicate", in: "a 1\nb 2\na 3\n", want: ErrDuplicateKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScp(strings.NewReader(tt.in))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestWriteScpRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "wav.scp")
	want := []Entry{{Key: "b", Value: "2"}, {Key: "a", Value: "1 with space"}}

	require.NoError(t, WriteScp(path, want))

	got, err := ReadScp(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestWriteScpRejectsBadKey(t *testing.T) {
	err := WriteScp(filepath.Join(t.TempDir(), "x"), []Entry{{Key: "a b", Value: "1"}})
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestDatadirWriter(t *testing.T) {
	dir := t.TempDir()
	core, logs := observer.New(zapcore.WarnLevel)

	w := NewDatadirWriter(dir, WithLogger(zap.New(core)))
	wav, err := w.Child("wav.scp")
	require.NoError(t, err)
	spk, err := w.Child("utt2spk")
	require.NoError(t, err)

	same, err := w.Child("wav.scp")
	require.NoError(t, err)
	assert.Same(t, wav, same)

	require.NoError(t, wav.Set("u2", "/x/u2.wav"))
	require.NoError(t, wav.Set("u1", "/x/u1.wav"))
	require.NoError(t, spk.Set("u2", "s1"))
	require.NoError(t, spk.Set("u1", "s2"))

	require.NoError(t, w.Close())
	assert.Equal(t, 0, logs.Len())

	data, err := os.ReadFile(filepath.Join(dir, "wav.scp"))
	require.NoError(t, err)
	assert.Equal(t, "u2 /x/u2.wav\nu1 /x/u1.wav\n", string(data))

	_, err = w.Child("noise1.scp")
	assert.ErrorIs(t, err, ErrWriterClosed)
	assert.ErrorIs(t, wav.Set("u3", "x"), ErrWriterClosed)
}

func TestDatadirWriterWarnings(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	w := NewDatadirWriter(t.TempDir(), WithLogger(zap.New(core)))

	a, err := w.Child("a")
	require.NoError(t, err)
	b, err := w.Child("b")
	require.NoError(t, err)

	require.NoError(t, a.Set("k1", "v"))
	require.NoError(t, a.Set("k1", "v"))
	require.NoError(t, b.Set("k2", "v"))

	assert.Equal(t, []string{"b"}, w.MismatchedChildren())
	require.NoError(t, w.Close())

	assert.Equal(t, 1, logs.FilterMessage("duplicated key").Len())
	assert.Equal(t, 1, logs.FilterMessage("ids are mismatched between scp files").Len())
}

func TestSpeakerID(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/data/librispeech/train/103/1240/103-1240-0001.wav", "103-1240"},
		{"/data/aishell/S0002/BAC009S0002W0122.wav", "S0002"},
		{"clean.wav", ""},
		{"librispeech/a.wav", "librispeech"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, SpeakerID(tt.path), tt.path)
	}
}

func TestSpk2Utt(t *testing.T) {
	got := Spk2Utt([]Entry{
		{Key: "u3", Value: "b"},
		{Key: "u1", Value: "a"},
		{Key: "u2", Value: "b"},
	})
	assert.Equal(t, []Entry{
		{Key: "a", Value: "u1"},
		{Key: "b", Value: "u3 u2"},
	}, got)
}

func TestWriteSpk2Utt(t *testing.T) {
	dir := t.TempDir()
	utt2spk := filepath.Join(dir, "utt2spk")
	require.NoError(t, os.WriteFile(utt2spk, []byte("u1 s1\nu2 s1\n"), 0o644))

	require.NoError(t, WriteSpk2Utt(utt2spk, filepath.Join(dir, "spk2utt")))

	data, err := os.ReadFile(filepath.Join(dir, "spk2utt"))
	require.NoError(t, err)
	assert.Equal(t, "s1 u1 u2\n", string(data))
}

func TestStem(t *testing.T) {
	assert.Equal(t, "SSB18100388", Stem("/path/SSB18100388.wav"))
	assert.Equal(t, "3.43_5.92_3.00_1.75_2.50_184.5997_262.1617_0.6728",
		Stem("/path/circle/3.43_5.92_3.00_1.75_2.50_184.5997_262.1617_0.6728.wav"))
	assert.Equal(t, ".hidden", Stem("/x/.hidden"))
	assert.Equal(t, "noext", Stem("noext"))
}

func TestConferencingUttID(t *testing.T) {
	id := ConferencingUttID(
		"/path/SSB18100388.wav",
		"/path/noise-free-sound-0328.wav",
		"/path/circle/3.43_5.92.wav",
		"-2", "19.2494", "0.4497",
	)
	assert.Equal(t, "SSB18100388#noise-free-sound-0328#3.43_5.92#-2#19.2494#0.4497", id)
}

func TestMixtureUttID(t *testing.T) {
	id, err := MixtureUttID([]string{"p225_001", "p226_002"}, []string{"1.2", "-1.2"})
	require.NoError(t, err)
	assert.Equal(t, "p225_001_1.2_p226_002_-1.2", id)

	_, err = MixtureUttID([]string{"a"}, nil)
	assert.Error(t, err)
}
