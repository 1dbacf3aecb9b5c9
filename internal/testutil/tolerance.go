package testutil

import (
	"fmt"
	"math"
	"testing"
)

// RequireSliceNearlyEqual fails t unless got and want have the same length
// and every pair is within eps.
func RequireSliceNearlyEqual(t *testing.T, got, want []float64, eps float64) {
	t.Helper()
	if i, err := firstMismatch(got, want, eps); err != nil {
		t.Fatalf("%v", err)
	} else if i >= 0 {
		t.Fatalf("index %d: got %v, want %v (eps %v)", i, got[i], want[i], eps)
	}
}

// RequireChannelsNearlyEqual is RequireSliceNearlyEqual for multi-channel
// audio.
func RequireChannelsNearlyEqual(t *testing.T, got, want [][]float64, eps float64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("channel count: got %d, want %d", len(got), len(want))
	}
	for c := range got {
		i, err := firstMismatch(got[c], want[c], eps)
		if err != nil {
			t.Fatalf("channel %d: %v", c, err)
		}
		if i >= 0 {
			t.Fatalf("channel %d index %d: got %v, want %v (eps %v)", c, i, got[c][i], want[c][i], eps)
		}
	}
}

// firstMismatch returns the first index differing by more than eps, or -1.
func firstMismatch(got, want []float64, eps float64) (int, error) {
	if len(got) != len(want) {
		return 0, fmt.Errorf("length mismatch: got %d, want %d", len(got), len(want))
	}
	for i := range got {
		if math.Abs(got[i]-want[i]) > eps {
			return i, nil
		}
	}
	return -1, nil
}

// RequireFinite fails t on the first NaN or Inf.
func RequireFinite(t *testing.T, data []float64) {
	t.Helper()
	for i, v := range data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("index %d: non-finite value %v", i, v)
		}
	}
}

// MaxAbsDiff returns the largest absolute difference between a and b.
func MaxAbsDiff(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("length mismatch: %d vs %d", len(a), len(b))
	}
	var d float64
	for i := range a {
		d = max(d, math.Abs(a[i]-b[i]))
	}
	return d, nil
}
