package corpus

import (
	"fmt"
	"strings"
)

// ConferencingUttID joins the stems of the clean, noise and RIR files with the
// start time, SNR and scale of one simulated ConferencingSpeech utterance.
//
// The numeric fields are used verbatim so the id matches the file name the
// simulator produced from the same config line.
func ConferencingUttID(cleanPath, noisePath, rirPath, start, snr, scale string) string {
	return strings.Join([]string{
		Stem(cleanPath),
		Stem(noisePath),
		Stem(rirPath),
		start,
		snr,
		scale,
	}, "#")
}

// MixtureUttID builds a mixture id from source stems and their SNR fields,
// "stem1_snr1_stem2_snr2...".
func MixtureUttID(stems, snrs []string) (string, error) {
	if len(stems) != len(snrs) {
		return "", fmt.Errorf("corpus: %d stems but %d snrs", len(stems), len(snrs))
	}

	parts := make([]string, 0, 2*len(stems))
	for i := range stems {
		parts = append(parts, stems[i], snrs[i])
	}
	return strings.Join(parts, "_"), nil
}
