package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cwbudde/algo-enh/corpus/confspeech"
	"github.com/cwbudde/algo-enh/corpus/vctkmix"
)

func newMixlistCmd(a *app) *cobra.Command {
	def := vctkmix.DefaultOptions()
	cmd := &cobra.Command{
		Use:   "mixlist",
		Short: "Generate VCTK mixture lists for every speaker count and split",
		Args:  cobra.NoArgs,
		RunE: a.runE(func(cmd *cobra.Command, _ []string, get getter) error {
			if err := get.required("vctk-root"); err != nil {
				return err
			}
			numSpks, err := get.Ints("num-spks")
			if err != nil {
				return err
			}
			if len(numSpks) == 0 {
				return fmt.Errorf("required flag --num-spks not set")
			}

			opts := vctkmix.Options{
				Root:        get.String("vctk-root"),
				OutDir:      get.String("outdir"),
				NumSpks:     numSpks,
				NumSpksTest: get.Int("num-spks-test"),
				AudioFormat: get.String("audio-format"),
				NumMixtures: map[vctkmix.Split]int{
					vctkmix.SplitTrain: get.Int("num-mixtures-tr"),
					vctkmix.SplitValid: get.Int("num-mixtures-cv"),
					vctkmix.SplitTest:  get.Int("num-mixtures-tt"),
				},
				SNRRange:         get.Float64("snr-range"),
				ExpectedSpeakers: get.Int("expected-speakers"),
				Seed:             get.Int64("seed"),
				Logger:           a.logger,
			}
			res, err := vctkmix.Generate(opts)
			if err != nil {
				return err
			}

			keys := make([]string, 0, len(res.Lists))
			for k := range res.Lists {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintln(cmd.OutOrStdout(), res.Lists[k])
			}
			return nil
		}),
	}

	f := cmd.Flags()
	f.String("vctk-root", "", "path to the VCTK root (the directory holding wav48)")
	f.String("outdir", def.OutDir, "directory receiving the speaker and mixture lists")
	f.IntSlice("num-spks", nil, "speakers per mixture, one set of lists each")
	f.Int("num-spks-test", def.NumSpksTest, "speakers held out for the test lists")
	f.String("audio-format", def.AudioFormat, "audio file extension")
	f.Int("num-mixtures-tr", def.NumMixtures[vctkmix.SplitTrain], "training mixtures")
	f.Int("num-mixtures-cv", def.NumMixtures[vctkmix.SplitValid], "validation mixtures")
	f.Int("num-mixtures-tt", def.NumMixtures[vctkmix.SplitTest], "test mixtures")
	f.Float64("snr-range", def.SNRRange, "full width of the relative level range in dB")
	f.Int("expected-speakers", def.ExpectedSpeakers, "required speaker count of the corpus, 0 to skip the check")
	f.Int64("seed", def.Seed, "random seed")
	return cmd
}

func newPrepareDevCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prepare-dev CONFIG_FILE",
		Short: "Write wav.scp, spk1.scp, noise1.scp, utt2spk and spk2utt for ConferencingSpeech dev data",
		Args:  cobra.ExactArgs(1),
		RunE: a.runE(func(cmd *cobra.Command, args []string, get getter) error {
			if err := get.required("outdir"); err != nil {
				return err
			}
			dirs := get.Strings("audiodirs")
			if len(dirs) == 0 {
				return fmt.Errorf("required flag --audiodirs not set")
			}
			st, err := confspeech.Prepare(confspeech.Options{
				ConfigFile: args[0],
				AudioDirs:  dirs,
				OutDir:     get.String("outdir"),
				Logger:     a.logger,
			})
			if err != nil {
				return err
			}
			a.logger.Debug("prepare-dev done", zap.Int("utterances", st.Utterances))
			fmt.Fprintf(cmd.OutOrStdout(), "%d utterances, %d speakers\n", st.Utterances, st.Speakers)
			return nil
		}),
	}
	f := cmd.Flags()
	f.StringSlice("audiodirs", nil, "directories containing the simulated audio files")
	f.String("outdir", "", "directory for the scp files, utt2spk and spk2utt")
	return cmd
}
