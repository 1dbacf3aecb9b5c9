package resample_test

import (
	"fmt"

	"github.com/cwbudde/algo-enh/dsp/resample"
)

func ExampleConvert() {
	in := make([]float64, 8000)
	out, _ := resample.Convert(in, 8000, 16000)
	fmt.Printf("in=%d out=%d\n", len(in), len(out))
	// Output:
	// in=8000 out=16000
}

func ExampleNewConverter() {
	r, _ := resample.NewConverter(48000, 16000)
	up, down := r.Ratio()
	fmt.Printf("ratio=%d/%d\n", up, down)
	// Output:
	// ratio=1/3
}
