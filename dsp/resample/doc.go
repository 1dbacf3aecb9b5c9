// Package resample converts speech between sample rates with a polyphase
// windowed-sinc FIR.
//
// Conversion works on whole utterances. The filter's group delay is
// compensated, so the output is time-aligned with the input and holds
// exactly ceil(len(x)*out/in) samples. That is what corpus preparation needs
// when 48 kHz recordings are brought to 8 or 16 kHz, or when an 8 kHz
// mixture is lifted to a front end's native rate.
//
// # Usage
//
//	y, err := resample.Convert(x, 8000, 16000)
//
// A Converter designs the filter once for repeated use:
//
//	c, err := resample.NewConverter(48000, 16000, resample.WithQuality(resample.QualityBest))
//	y := c.Convert(x)
//
// Quality modes:
//   - QualityFast: 16 taps per phase
//   - QualityBalanced: 32 taps per phase (default)
//   - QualityBest: 64 taps per phase
package resample
