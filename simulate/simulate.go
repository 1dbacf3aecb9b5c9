package simulate

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/cwbudde/algo-enh/audio/wavio"
	"github.com/cwbudde/algo-enh/dsp/resample"
)

// Errors returned by the renderers.
var (
	ErrInvalidOption = errors.New("simulate: invalid option")
	ErrInvalidLine   = errors.New("simulate: invalid list line")
	ErrSilentSource  = errors.New("simulate: silent source")
)

// Stats summarises one rendering run.
type Stats struct {
	Utterances int
	Samples    int64
	// Skipped counts repeated list lines that were not rendered again.
	Skipped int
}

// forEach runs fn for indices [0, n) on at most workers goroutines and stops
// at the first error or when ctx is cancelled.
func forEach(ctx context.Context, n, workers int, fn func(ctx context.Context, i int) error) error {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i := 0; i < n; i++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(gctx, i)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// loadAt reads a wav file and converts every channel to sampleRate.
func loadAt(path string, sampleRate int) (*wavio.Audio, error) {
	a, err := wavio.Read(path)
	if err != nil {
		return nil, err
	}
	if a.SampleRate == sampleRate {
		return a, nil
	}

	out := &wavio.Audio{SampleRate: sampleRate, Channels: make([][]float64, len(a.Channels))}
	for c, ch := range a.Channels {
		y, err := resample.Convert(ch, a.SampleRate, sampleRate)
		if err != nil {
			return nil, fmt.Errorf("simulate: resample %s: %w", path, err)
		}
		out.Channels[c] = y
	}
	return out, nil
}

// fitLength truncates or zero-pads x to n samples.
func fitLength(x []float64, n int) []float64 {
	if len(x) >= n {
		return x[:n]
	}
	out := make([]float64, n)
	copy(out, x)
	return out
}
