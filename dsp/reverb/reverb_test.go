package reverb

import (
	"errors"
	"testing"

	"github.com/cwbudde/algo-enh/internal/testutil"
)

func directConvolve(x, h []float64) []float64 {
	out := make([]float64, len(x)+len(h)-1)
	for i, a := range x {
		for j, b := range h {
			out[i+j] += a * b
		}
	}
	return out
}

func TestApplyImpulseIsIdentity(t *testing.T) {
	x := testutil.DeterministicNoise(1, 1, 1000)
	got, err := Apply(x, []float64{1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.RequireSliceNearlyEqual(t, got, x, 1e-12)
}

func TestApplyDelay(t *testing.T) {
	x := testutil.DeterministicNoise(2, 1, 500)
	got, err := Apply(x, testutil.Impulse(8, 3))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := append(make([]float64, 3), x[:497]...)
	testutil.RequireSliceNearlyEqual(t, got, want, 1e-12)
}

func TestFullMatchesDirect(t *testing.T) {
	x := testutil.DeterministicNoise(3, 1, 3000)
	h := testutil.DecayingRIR(4, 700, 5, 0.01)

	for _, block := range []int{0, 64, 1000} {
		c, err := NewConvolver(h, block)
		if err != nil {
			t.Fatalf("block %d: %v", block, err)
		}
		got, err := c.Full(x)
		if err != nil {
			t.Fatalf("block %d: %v", block, err)
		}
		testutil.RequireSliceNearlyEqual(t, got, directConvolve(x, h), 1e-9)
	}
}

func TestApplyMulti(t *testing.T) {
	x := testutil.DeterministicNoise(5, 1, 256)
	rir := [][]float64{{1}, {0, 0.5}}

	got, err := ApplyMulti(x, rir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || len(got[1]) != len(x) {
		t.Fatalf("unexpected shape %d x %d", len(got), len(got[1]))
	}
	if d := got[1][10] - 0.5*x[9]; d > 1e-12 || d < -1e-12 {
		t.Fatalf("channel 1 sample 10 = %v, want %v", got[1][10], 0.5*x[9])
	}
}

func TestErrors(t *testing.T) {
	if _, err := Apply(nil, []float64{1}); !errors.Is(err, ErrEmptyInput) {
		t.Errorf("expected ErrEmptyInput, got %v", err)
	}
	if _, err := Apply([]float64{1}, nil); !errors.Is(err, ErrEmptyRIR) {
		t.Errorf("expected ErrEmptyRIR, got %v", err)
	}
	if _, err := ApplyMulti([]float64{1}, nil); !errors.Is(err, ErrEmptyRIR) {
		t.Errorf("expected ErrEmptyRIR, got %v", err)
	}
}

func TestEarlyPart(t *testing.T) {
	h := testutil.DecayingRIR(6, 2000, 100, 0.001)
	early := EarlyPart(h, 16000, 0.05)

	if DirectPathIndex(h) != 100 {
		t.Fatalf("direct path at %d, want 100", DirectPathIndex(h))
	}
	if len(early) != len(h) {
		t.Fatalf("length %d, want %d", len(early), len(h))
	}
	cut := 100 + 800 + 1
	for i := 0; i < cut; i++ {
		if early[i] != h[i] {
			t.Fatalf("early[%d] = %v, want %v", i, early[i], h[i])
		}
	}
	for i := cut; i < len(h); i++ {
		if early[i] != 0 {
			t.Fatalf("early[%d] = %v, want 0", i, early[i])
		}
	}
}
