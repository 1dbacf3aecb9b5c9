// Package preprocess implements the on-the-fly data augmentation applied to
// enhancement training examples.
//
// A preprocessor receives the audio arrays of one utterance and, in training
// mode, may reverberate the speech entry with a random room impulse response
// and add a random noise at an SNR drawn from a dB range. Outside training only
// the optional peak normalisation runs.
//
// # Usage
//
//	p, err := preprocess.NewCommon(
//		preprocess.WithTrain(true),
//		preprocess.WithRIR("data/rirs.scp", 0, 0.5),
//		preprocess.WithNoise("data/noises.scp", 0, 1, "5_20"),
//		preprocess.WithSeed(1),
//	)
//	if err != nil {
//		return err
//	}
//	data, err = p.Process("utt1", data)
package preprocess
