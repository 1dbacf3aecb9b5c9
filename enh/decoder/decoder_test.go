package decoder

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/algo-enh/enh/choices"
	"github.com/cwbudde/algo-enh/enh/encoder"
	"github.com/cwbudde/algo-enh/enh/nn"
	"github.com/cwbudde/algo-enh/internal/testutil"
)

func TestSTFTRoundTrip(t *testing.T) {
	conf := choices.Conf{"n_fft": 256, "hop_length": 64}
	enc, err := encoder.New("stft", conf)
	require.NoError(t, err)
	dec, err := New("stft", conf)
	require.NoError(t, err)

	x0 := testutil.DeterministicNoise(1, 0.5, 3000)
	x1 := make([]float64, 3000)
	copy(x1, testutil.DeterministicNoise(2, 0.5, 2000))
	batch := [][]float64{x0, x1}
	ilens := []int{3000, 2000}

	feats, _, err := enc.Forward(batch, ilens)
	require.NoError(t, err)
	wavs, olens, err := dec.Forward(feats, ilens)
	require.NoError(t, err)
	assert.Equal(t, ilens, olens)

	for b := range batch {
		require.Len(t, wavs[b], 3000)
		testutil.RequireSliceNearlyEqual(t, wavs[b], batch[b], 1e-9)
	}
}

func TestConvDecoderLength(t *testing.T) {
	conf := choices.Conf{"channel": 4, "kernel_size": 16, "stride": 8}
	enc, err := encoder.New("conv", conf)
	require.NoError(t, err)
	dec, err := New("conv", conf)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(3))
	require.NoError(t, nn.Initialize(enc.Params(), nn.InitDefault, rng))
	require.NoError(t, nn.Initialize(dec.Params(), nn.InitDefault, rng))
	assert.Equal(t, "convtrans1d.weight", dec.Params()[0].Name)
	assert.Equal(t, 4*16, nn.CountParams(dec.Params(), true))

	tests := []struct {
		name   string
		rowLen int
		ilens  []int
	}{
		{"truncated", 800, []int{790, 700}},
		{"padded", 800, []int{800, 810}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batch := [][]float64{
				testutil.DeterministicNoise(1, 0.5, tt.rowLen),
				testutil.DeterministicNoise(2, 0.5, tt.rowLen),
			}
			encLens := []int{min(tt.ilens[0], tt.rowLen), min(tt.ilens[1], tt.rowLen)}
			feats, _, err := enc.Forward(batch, encLens)
			require.NoError(t, err)

			wavs, _, err := dec.Forward(feats, tt.ilens)
			require.NoError(t, err)
			want := max(tt.ilens[0], tt.ilens[1])
			for _, w := range wavs {
				assert.Len(t, w, want)
			}
		})
	}
}

func TestFeatureKindMismatch(t *testing.T) {
	stftDec, err := New("", nil)
	require.NoError(t, err)
	_, _, err = stftDec.Forward(encoder.Feature{Real: [][][]float64{{{1}}}}, []int{1})
	assert.ErrorIs(t, err, ErrFeature)

	convDec, err := New("conv", choices.Conf{"channel": 2, "kernel_size": 4, "stride": 2})
	require.NoError(t, err)
	_, _, err = convDec.Forward(encoder.Feature{Complex: [][][]complex128{{{1}}}}, []int{1})
	assert.ErrorIs(t, err, ErrFeature)

	_, _, err = convDec.Forward(encoder.Feature{Real: [][][]float64{{{1, 2, 3}}}}, []int{4})
	assert.ErrorIs(t, err, ErrFeature)

	_, _, err = convDec.Forward(encoder.Feature{Real: [][][]float64{{{1, 2}}}}, []int{4, 4})
	assert.ErrorIs(t, err, ErrFeature)
}

func TestRegistry(t *testing.T) {
	assert.Equal(t, []string{"conv", "stft"}, Choices.Names())
	_, err := New("griffin_lim", nil)
	assert.ErrorIs(t, err, choices.ErrUnknown)
}
