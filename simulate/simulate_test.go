package simulate

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cwbudde/algo-enh/audio/wavio"
	"github.com/cwbudde/algo-enh/corpus"
	"github.com/cwbudde/algo-enh/corpus/confspeech"
	"github.com/cwbudde/algo-enh/internal/testutil"
)

const quantum = 2.0 / 32768

func writeWav(t *testing.T, path string, sr int, channels ...[]float64) {
	t.Helper()
	require.NoError(t, wavio.Write(path, &wavio.Audio{SampleRate: sr, Channels: channels}))
}

func vctkFixture(t *testing.T) (root, list string) {
	t.Helper()
	root = t.TempDir()
	writeWav(t, filepath.Join(root, "wav48", "p225", "p225_001.wav"), 16000, testutil.Utterance(1, 16000, 4000, 500))
	writeWav(t, filepath.Join(root, "wav48", "p226", "p226_001.wav"), 16000, testutil.Utterance(2, 16000, 6000, 500))

	list = filepath.Join(t.TempDir(), "vctk_mix_2_spk_tr.txt")
	lines := "wav48/p225/p225_001.wav 2.5 wav48/p226/p226_001.wav -2.5\n" +
		"wav48/p226/p226_001.wav 1.0 wav48/p225/p225_001.wav -1.0\n"
	require.NoError(t, os.WriteFile(list, []byte(lines), 0o644))
	return root, list
}

func scpKeys(t *testing.T, path string) []string {
	t.Helper()
	entries, err := corpus.ReadScp(path)
	require.NoError(t, err)
	keys := make([]string, len(entries))
	for i, e := range entries {
		keys[i] = e.Key
	}
	sort.Strings(keys)
	return keys
}

func TestRenderVCTK(t *testing.T) {
	root, list := vctkFixture(t)
	out := t.TempDir()

	opts := DefaultVCTKOptions()
	opts.Root = root
	opts.ListFile = list
	opts.OutDir = out
	opts.Workers = 2

	st, err := RenderVCTK(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Utterances)
	assert.Equal(t, int64(2*2500), st.Samples)

	want := []string{"p225_001_2.5_p226_001_-2.5", "p226_001_1.0_p225_001_-1.0"}
	for _, name := range []string{"wav.scp", "spk1.scp", "spk2.scp", "utt2spk"} {
		assert.Equal(t, want, scpKeys(t, filepath.Join(out, name)), name)
	}
	spk2utt, err := corpus.ReadScp(filepath.Join(out, "spk2utt"))
	require.NoError(t, err)
	assert.Len(t, spk2utt, 2)

	id := want[0]
	mix, err := wavio.Read(filepath.Join(out, "mix", id+".wav"))
	require.NoError(t, err)
	s1, err := wavio.Read(filepath.Join(out, "s1", id+".wav"))
	require.NoError(t, err)
	s2, err := wavio.Read(filepath.Join(out, "s2", id+".wav"))
	require.NoError(t, err)

	require.Equal(t, 8000, mix.SampleRate)
	require.Equal(t, 2500, mix.Len())
	require.Equal(t, mix.Len(), s1.Len())
	require.Equal(t, mix.Len(), s2.Len())

	for i, v := range mix.Mono() {
		assert.InDelta(t, s1.Mono()[i]+s2.Mono()[i], v, 2*quantum)
		assert.LessOrEqual(t, v, MaxPeak+quantum)
		assert.GreaterOrEqual(t, v, -MaxPeak-quantum)
	}

	// +2.5 dB against -2.5 dB.
	ratio := testutil.Power(s1.Mono()) / testutil.Power(s2.Mono())
	assert.Greater(t, ratio, 1.0)
}

func TestRenderVCTKMaxMode(t *testing.T) {
	root, list := vctkFixture(t)
	out := t.TempDir()

	opts := DefaultVCTKOptions()
	opts.Root = root
	opts.ListFile = list
	opts.OutDir = out
	opts.Mode = ModeMax

	_, err := RenderVCTK(context.Background(), opts)
	require.NoError(t, err)

	mix, err := wavio.Read(filepath.Join(out, "mix", "p225_001_2.5_p226_001_-2.5.wav"))
	require.NoError(t, err)
	assert.Equal(t, 3500, mix.Len())
}

func TestRenderVCTKDeterministicAcrossWorkers(t *testing.T) {
	root, list := vctkFixture(t)

	render := func(workers int) []byte {
		out := t.TempDir()
		opts := DefaultVCTKOptions()
		opts.Root = root
		opts.ListFile = list
		opts.OutDir = out
		opts.Workers = workers
		_, err := RenderVCTK(context.Background(), opts)
		require.NoError(t, err)
		data, err := os.ReadFile(filepath.Join(out, "s2", "p225_001_2.5_p226_001_-2.5.wav"))
		require.NoError(t, err)
		return data
	}

	assert.Equal(t, render(1), render(4))
}

func TestRenderVCTKSkipsRepeatedLines(t *testing.T) {
	root, list := vctkFixture(t)
	repeated := "wav48/p225/p225_001.wav 2.5 wav48/p226/p226_001.wav -2.5\n"
	data, err := os.ReadFile(list)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(list, append([]byte(repeated), data...), 0o644))

	core, logs := observer.New(zapcore.WarnLevel)
	out := t.TempDir()
	opts := DefaultVCTKOptions()
	opts.Root = root
	opts.ListFile = list
	opts.OutDir = out
	opts.Workers = 4
	opts.Logger = zap.New(core)

	st, err := RenderVCTK(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Utterances)
	assert.Equal(t, 1, st.Skipped)

	want := []string{"p225_001_2.5_p226_001_-2.5", "p226_001_1.0_p225_001_-1.0"}
	assert.Equal(t, want, scpKeys(t, filepath.Join(out, "wav.scp")))
	assert.Equal(t, want, scpKeys(t, filepath.Join(out, "utt2spk")))

	warnings := logs.FilterMessage("skipping repeated mixture").All()
	require.Len(t, warnings, 1)
	assert.Equal(t, int64(2), warnings[0].ContextMap()["line"])
	assert.Equal(t, int64(1), warnings[0].ContextMap()["first_line"])
}

func TestRenderVCTKErrors(t *testing.T) {
	root, list := vctkFixture(t)

	opts := DefaultVCTKOptions()
	opts.Root = root
	opts.ListFile = list
	opts.OutDir = t.TempDir()

	bad := opts
	bad.Mode = "avg"
	_, err := RenderVCTK(context.Background(), bad)
	assert.ErrorIs(t, err, ErrInvalidOption)

	bad = opts
	bad.SampleRate = 0
	_, err = RenderVCTK(context.Background(), bad)
	assert.ErrorIs(t, err, ErrInvalidOption)

	mixed := filepath.Join(t.TempDir(), "mixed.txt")
	require.NoError(t, os.WriteFile(mixed, []byte(
		"wav48/p225/p225_001.wav 1 wav48/p226/p226_001.wav -1\n"+
			"wav48/p225/p225_001.wav 1 wav48/p226/p226_001.wav -1 wav48/p225/p225_001.wav 0\n"), 0o644))
	bad = opts
	bad.ListFile = mixed
	_, err = RenderVCTK(context.Background(), bad)
	assert.ErrorIs(t, err, ErrInvalidLine)

	silent := filepath.Join(root, "wav48", "p227", "p227_001.wav")
	writeWav(t, silent, 16000, make([]float64, 1600))
	silentList := filepath.Join(t.TempDir(), "silent.txt")
	require.NoError(t, os.WriteFile(silentList, []byte("wav48/p227/p227_001.wav 1 wav48/p226/p226_001.wav -1\n"), 0o644))
	bad = opts
	bad.ListFile = silentList
	_, err = RenderVCTK(context.Background(), bad)
	assert.ErrorIs(t, err, ErrSilentSource)
}

func TestRenderVCTKCancelled(t *testing.T) {
	root, list := vctkFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	opts := DefaultVCTKOptions()
	opts.Root = root
	opts.ListFile = list
	opts.OutDir = t.TempDir()

	_, err := RenderVCTK(ctx, opts)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRenderConferencing(t *testing.T) {
	dir := t.TempDir()
	clean := filepath.Join(dir, "speech", "spk01", "SSB0001.wav")
	noise := filepath.Join(dir, "noise", "noise-0001.wav")
	rir := filepath.Join(dir, "rir", "3.43_5.92.wav")

	speech := testutil.Utterance(3, 16000, 6000, 1000)
	writeWav(t, clean, 16000, speech)
	writeWav(t, noise, 16000, testutil.DeterministicNoise(5, 0.3, 3000))
	second := testutil.Impulse(64, 10)
	second[10] = 0.5
	writeWav(t, rir, 16000, testutil.Impulse(64, 0), second)

	cfg := filepath.Join(dir, "dev.cfg")
	line := clean + " -0.5 " + noise + " " + rir + " 10 0.5\n"
	require.NoError(t, os.WriteFile(cfg, []byte(line), 0o644))

	out := filepath.Join(dir, "simu")
	opts := DefaultConferencingOptions()
	opts.ConfigFile = cfg
	opts.OutDir = out

	st, err := RenderConferencing(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Utterances)

	id := corpus.ConferencingUttID(clean, noise, rir, "-0.5", "10", "0.5")
	a, err := wavio.Read(filepath.Join(out, id+".wav"))
	require.NoError(t, err)
	assert.Equal(t, 2, a.NumChannels())
	assert.Equal(t, len(speech), a.Len())

	peak := 0.0
	for _, ch := range a.Channels {
		for _, v := range ch {
			peak = max(peak, v, -v)
		}
	}
	assert.InDelta(t, 0.5, peak, quantum)

	// The rendered directory feeds dev-data preparation.
	stats, err := confspeech.Prepare(confspeech.Options{
		ConfigFile: cfg,
		AudioDirs:  []string{out},
		OutDir:     filepath.Join(dir, "data"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Utterances)
	assert.Equal(t, []string{id}, scpKeys(t, filepath.Join(dir, "data", "wav.scp")))
}

func TestRenderConferencingInvalidLine(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "dev.cfg")
	require.NoError(t, os.WriteFile(cfg, []byte("a.wav 0 b.wav c.wav 10 abc\n"), 0o644))

	opts := DefaultConferencingOptions()
	opts.ConfigFile = cfg
	opts.OutDir = dir

	_, err := RenderConferencing(context.Background(), opts)
	assert.ErrorIs(t, err, ErrInvalidLine)
}

func TestPlaceNoise(t *testing.T) {
	noise := []float64{1, 2, 3}
	assert.Equal(t, []float64{0, 0, 1, 2, 3, 1}, placeNoise(noise, 2, 6))
	assert.Equal(t, []float64{2, 3, 1, 2}, placeNoise(noise, -1, 4))
	assert.Equal(t, []float64{0, 0}, placeNoise(nil, 0, 2))
}
