// Package simulate renders the audio of synthetic enhancement corpora.
//
// Two renderers are provided:
//
//   - RenderVCTK mixes the utterances of a VCTK mixture list at their relative
//     levels and writes the mixture, the scaled sources and their scp index.
//   - RenderConferencing reverberates clean speech with a multi-channel RIR,
//     adds noise at a given SNR and writes one file per config line, named
//     after the ConferencingSpeech utterance id.
//
// Utterances are rendered by a bounded worker pool. Index files are written
// afterwards in list order, so output is identical for any worker count.
//
// # Usage
//
//	opts := simulate.DefaultVCTKOptions()
//	opts.Root = "/data/VCTK-Corpus"
//	opts.ListFile = "vctk_mix_2_spk_tr.txt"
//	opts.OutDir = "data/tr"
//	stats, err := simulate.RenderVCTK(ctx, opts)
package simulate
