package preprocess

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/algo-enh/audio/wavio"
	"github.com/cwbudde/algo-enh/dsp/level"
	"github.com/cwbudde/algo-enh/dsp/reverb"
	"github.com/cwbudde/algo-enh/internal/testutil"
)

const sr = 16000

func writeWav(t *testing.T, dir, name string, channels ...[]float64) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, wavio.Write(path, &wavio.Audio{SampleRate: sr, Channels: channels}, wavio.WithBitDepth(32)))
	return path
}

func writeList(t *testing.T, dir, name string, paths ...string) string {
	t.Helper()
	var b strings.Builder
	for i, p := range paths {
		b.WriteString("k")
		b.WriteString(string(rune('a' + i)))
		b.WriteString(" ")
		b.WriteString(p)
		b.WriteString("\n")
	}
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func speech() [][]float64 {
	return [][]float64{testutil.Utterance(1, sr, 6000, 1000)}
}

func TestVolumeNormalizeOnly(t *testing.T) {
	p, err := NewCommon(WithVolumeNormalize(0.5))
	require.NoError(t, err)

	data := Data{SpeechMix: speech(), "speech_ref1": speech()}
	out, err := p.Process("utt1", data)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, level.Peak(out[SpeechMix]), 1e-12)
	assert.Equal(t, speech(), out["speech_ref1"])
}

func TestTrainOffSkipsAugmentation(t *testing.T) {
	dir := t.TempDir()
	rirs := writeList(t, dir, "rirs.scp", writeWav(t, dir, "rir.wav", testutil.DecayingRIR(1, 800, 5, 0.01)))

	p, err := NewCommon(WithRIR(rirs, 0, 1))
	require.NoError(t, err)
	out, err := p.Process("utt1", Data{SpeechMix: speech()})
	require.NoError(t, err)
	assert.Equal(t, speech(), out[SpeechMix])
}

func TestMissingSpeechEntry(t *testing.T) {
	p, err := NewCommon(WithTrain(true), WithVolumeNormalize(1))
	require.NoError(t, err)
	data := Data{"speech_ref1": {{0.25, -0.25}}}
	out, err := p.Process("utt1", data)
	require.NoError(t, err)
	assert.Equal(t, Data{"speech_ref1": {{0.25, -0.25}}}, out)
}

func TestImpulseRIRKeepsSpeech(t *testing.T) {
	dir := t.TempDir()
	imp := testutil.Impulse(64, 0)
	rirs := writeList(t, dir, "rirs.scp",
		writeWav(t, dir, "mono.wav", imp),
	)

	p, err := NewCommon(WithTrain(true), WithRIR(rirs, 0, 1))
	require.NoError(t, err)
	out, err := p.Process("utt1", Data{SpeechMix: speech()})
	require.NoError(t, err)
	require.Len(t, out[SpeechMix], 1)
	testutil.RequireSliceNearlyEqual(t, out[SpeechMix][0], speech()[0], 1e-9)
}

func TestMultiChannelRIR(t *testing.T) {
	dir := t.TempDir()
	rir := writeWav(t, dir, "rir3.wav",
		testutil.DecayingRIR(1, 400, 0, 0.01),
		testutil.DecayingRIR(2, 400, 3, 0.01),
		testutil.DecayingRIR(3, 400, 6, 0.01),
	)
	rirs := writeList(t, dir, "rirs.scp", rir)

	p, err := NewCommon(WithTrain(true), WithRIR(rirs, 0, 1))
	require.NoError(t, err)
	out, err := p.Process("utt1", Data{SpeechMix: speech()})
	require.NoError(t, err)
	require.Len(t, out[SpeechMix], 3)
	assert.InDelta(t, level.NonSilentPower(speech()), level.NonSilentPower(out[SpeechMix]), 1e-9)

	p, err = NewCommon(WithTrain(true), WithRIR(rirs, 2, 1))
	require.NoError(t, err)
	out, err = p.Process("utt1", Data{SpeechMix: speech()})
	require.NoError(t, err)
	assert.Len(t, out[SpeechMix], 2)

	p, err = NewCommon(WithTrain(true), WithRIR(rirs, 0, 1))
	require.NoError(t, err)
	two := [][]float64{speech()[0], speech()[0]}
	_, err = p.Process("utt1", Data{SpeechMix: two})
	assert.ErrorIs(t, err, ErrChannelMismatch)
}

func TestNoiseSNR(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name  string
		noise []float64
	}{
		{"longer", testutil.DeterministicNoise(5, 0.3, 20000)},
		{"equal", testutil.DeterministicNoise(6, 0.3, 8000)},
		{"shorter", testutil.DeterministicNoise(7, 0.3, 3000)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			noises := writeList(t, dir, tt.name+".scp", writeWav(t, dir, tt.name+".wav", tt.noise))
			p, err := NewCommon(WithTrain(true), WithNoise(noises, 0, 1, "10"), WithSeed(3))
			require.NoError(t, err)

			clean := speech()
			out, err := p.Process("utt1", Data{SpeechMix: speech()})
			require.NoError(t, err)
			mix := out[SpeechMix][0]
			require.Len(t, mix, len(clean[0]))

			added := make([]float64, len(mix))
			for i := range mix {
				added[i] = mix[i] - clean[0][i]
			}
			snr := level.DB(level.NonSilentPower(clean) / level.Power(added))
			assert.InDelta(t, 10, snr, 1e-6)
		})
	}
}

func TestApplyProbabilityZero(t *testing.T) {
	dir := t.TempDir()
	noises := writeList(t, dir, "noises.scp", writeWav(t, dir, "n.wav", testutil.DeterministicNoise(1, 0.3, 9000)))
	p, err := NewCommon(WithTrain(true), WithNoise(noises, 0, 0, "13_15"))
	require.NoError(t, err)
	out, err := p.Process("utt1", Data{SpeechMix: speech()})
	require.NoError(t, err)
	assert.Equal(t, speech(), out[SpeechMix])
}

func TestSeedReproducible(t *testing.T) {
	dir := t.TempDir()
	noises := writeList(t, dir, "noises.scp",
		writeWav(t, dir, "a.wav", testutil.DeterministicNoise(1, 0.3, 20000)),
		writeWav(t, dir, "b.wav", testutil.DeterministicNoise(2, 0.3, 20000)),
	)
	run := func(seed int64) [][]float64 {
		p, err := NewCommon(WithTrain(true), WithNoise(noises, 0, 1, "0_20"), WithSeed(seed))
		require.NoError(t, err)
		var last [][]float64
		for i := 0; i < 3; i++ {
			out, err := p.Process("utt", Data{SpeechMix: speech()})
			require.NoError(t, err)
			last = out[SpeechMix]
		}
		return last
	}
	assert.Equal(t, run(7), run(7))
}

func TestInvalidOptions(t *testing.T) {
	dir := t.TempDir()
	noises := writeList(t, dir, "noises.scp", "n.wav")

	_, err := NewCommon(WithRIR("", 0, 1.5))
	assert.ErrorIs(t, err, ErrInvalidOption)
	_, err = NewCommon(WithVolumeNormalize(-1))
	assert.ErrorIs(t, err, ErrInvalidOption)
	_, err = NewCommon(WithSpeechName(""))
	assert.ErrorIs(t, err, ErrInvalidOption)
	_, err = NewCommon(WithNoise(noises, 0, 1, "15_13"))
	assert.ErrorIs(t, err, level.ErrInvalidRange)
	_, err = NewCommon(WithRIR(filepath.Join(dir, "missing.scp"), 0, 1))
	assert.Error(t, err)
}

func TestFitNoise(t *testing.T) {
	x := [][]float64{{1, 2, 3}}
	assert.Equal(t, [][]float64{{1, 2, 3}}, fitNoise(x, 3, 0.9))
	assert.Equal(t, [][]float64{{2, 3}}, fitNoise([][]float64{{1, 2, 3, 4, 5}}, 2, 0.5))
	assert.Equal(t, [][]float64{{1, 2, 3, 1, 2, 3, 1}}, fitNoise(x, 7, 0))
	// offset 2: the noise starts at index 2 and wraps backwards before it
	assert.Equal(t, [][]float64{{2, 3, 1, 2, 3, 1, 2}}, fitNoise(x, 7, 0.5))
}

func TestConferencingDereverbTarget(t *testing.T) {
	dir := t.TempDir()
	long := testutil.DecayingRIR(4, 8000, 20, 0.0005)
	rirs := writeList(t, dir, "rirs.scp", writeWav(t, dir, "rir.wav", long))

	p, err := NewConferencingSpeech(WithTrain(true), WithRIR(rirs, 0, 1))
	require.NoError(t, err)
	out, err := p.Process("utt1", Data{SpeechMix: speech()})
	require.NoError(t, err)

	ref, ok := out[DereverbRef1]
	require.True(t, ok)
	require.Len(t, ref, 1)
	require.Len(t, ref[0], len(speech()[0]))
	testutil.RequireFinite(t, ref[0])
	assert.InDelta(t, level.NonSilentPower(speech()), level.NonSilentPower(ref), 1e-9)

	loaded, err := wavio.Read(filepath.Join(dir, "rir.wav"))
	require.NoError(t, err)
	want, err := reverb.Apply(speech()[0], reverb.EarlyPart(loaded.Mono(), sr, reverb.DefaultEarlyWindow))
	require.NoError(t, err)
	level.Scale([][]float64{want}, math.Sqrt(level.NonSilentPower(speech())/level.NonSilentPower([][]float64{want})))
	testutil.RequireSliceNearlyEqual(t, ref[0], want, 1e-9)

	diff, err := testutil.MaxAbsDiff(ref[0], out[SpeechMix][0])
	require.NoError(t, err)
	assert.Greater(t, diff, 1e-3)
}

func TestConferencingWithoutRIR(t *testing.T) {
	p, err := NewConferencingSpeech(WithTrain(true))
	require.NoError(t, err)
	out, err := p.Process("utt1", Data{SpeechMix: speech()})
	require.NoError(t, err)
	_, ok := out[DereverbRef1]
	assert.False(t, ok)
	assert.Equal(t, speech(), out[SpeechMix])
}
