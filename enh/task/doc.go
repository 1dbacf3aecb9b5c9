// Package task ties the enhancement components together.
//
// A Config names one registered encoder, separator and decoder with their
// option maps, the model options, the weight initialisation and the data
// preprocessing. BuildModel turns it into a Model whose encoder output
// dimension feeds the separator, and BuildPreprocessFn into the training-time
// augmentation function.
//
// # Usage
//
//	cfg, err := task.LoadConfig("conf/tuning/train_enh_rnn_tf.yaml")
//	if err != nil {
//		return err
//	}
//	model, err := task.BuildModel(cfg, task.WithLogger(logger))
//	if err != nil {
//		return err
//	}
//	fmt.Print(model)
package task
