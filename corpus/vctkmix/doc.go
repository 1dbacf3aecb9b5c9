// Package vctkmix generates the mixture lists of the VCTK-mix corpus.
//
// Speakers found under <root>/wav48 are shuffled and split into a training
// set and an unseen test set. For every requested speaker count, the
// generator writes one list per split:
//
//	vctk_mix_<n>_spk_tr.txt  closed condition, training speakers
//	vctk_mix_<n>_spk_cv.txt  closed condition, training speakers
//	vctk_mix_<n>_spk_tt.txt  open condition, test speakers
//
// Each line names one utterance per speaker followed by its relative level in
// dB: the first source gets +x, the second -x and any further source 0, with
// x drawn uniformly from [0, snrRange/2):
//
//	wav48/p225/p225_001.wav 1.23457 wav48/p226/p226_002.wav -1.23457
//
// Output is a pure function of the corpus listing and the seed.
package vctkmix
