// Package corpus reads and writes the flat-text index files of a speech corpus
// data directory.
//
// A data directory holds Kaldi-style "scp" mappings, one "key value" pair per
// line, keyed by utterance id:
//
//	wav.scp     utterance id -> mixture audio path
//	spk1.scp    utterance id -> clean reference path
//	noise1.scp  utterance id -> noise path
//	utt2spk     utterance id -> speaker id
//	spk2utt     speaker id   -> space separated utterance ids
//
// # Usage
//
// Writing a data directory:
//
//	w := corpus.NewDatadirWriter("data/dev")
//	wav, _ := w.Child("wav.scp")
//	_ = wav.Set(uttID, "/sim/dev/" + uttID + ".wav")
//	err := w.Close()
//
// Reading one back:
//
//	entries, err := corpus.ReadScp("data/dev/wav.scp")
//	paths := corpus.ScpMap(entries)
package corpus
