package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cwbudde/algo-enh/simulate"
)

func newSimulateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Render simulated mixtures",
	}
	cmd.AddCommand(newSimulateVCTKCmd(a), newSimulateConferencingCmd(a))
	return cmd
}

func newSimulateVCTKCmd(a *app) *cobra.Command {
	def := simulate.DefaultVCTKOptions()
	cmd := &cobra.Command{
		Use:   "vctk",
		Short: "Render the mixtures of a VCTK mixture list",
		Args:  cobra.NoArgs,
		RunE: a.runE(func(cmd *cobra.Command, _ []string, get getter) error {
			if err := get.required("vctk-root", "list", "outdir"); err != nil {
				return err
			}
			st, err := simulate.RenderVCTK(cmd.Context(), simulate.VCTKOptions{
				Root:       get.String("vctk-root"),
				ListFile:   get.String("list"),
				OutDir:     get.String("outdir"),
				SampleRate: get.Int("sample-rate"),
				Mode:       simulate.Mode(get.String("mode")),
				BitDepth:   get.Int("bit-depth"),
				Workers:    get.Int("workers"),
				Logger:     a.logger,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d mixtures, %d samples", st.Utterances, st.Samples)
			if st.Skipped > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), ", %d repeated lines skipped", st.Skipped)
			}
			fmt.Fprintln(cmd.OutOrStdout())
			return nil
		}),
	}
	f := cmd.Flags()
	f.String("vctk-root", "", "VCTK root the list paths are relative to")
	f.String("list", "", "mixture list written by mixlist")
	f.String("outdir", "", "output directory (mix/, s1/, ... and scp files)")
	f.Int("sample-rate", def.SampleRate, "output sample rate in Hz")
	f.String("mode", string(def.Mode), "mixture length: min or max")
	f.Int("bit-depth", def.BitDepth, "output PCM bit depth: 16, 24 or 32")
	f.Int("workers", 0, "parallel renderers, 0 for GOMAXPROCS")
	return cmd
}

func newSimulateConferencingCmd(a *app) *cobra.Command {
	def := simulate.DefaultConferencingOptions()
	cmd := &cobra.Command{
		Use:   "conferencing CONFIG_FILE",
		Short: "Render ConferencingSpeech simulation lines",
		Args:  cobra.ExactArgs(1),
		RunE: a.runE(func(cmd *cobra.Command, args []string, get getter) error {
			if err := get.required("outdir"); err != nil {
				return err
			}
			st, err := simulate.RenderConferencing(cmd.Context(), simulate.ConferencingOptions{
				ConfigFile: args[0],
				OutDir:     get.String("outdir"),
				SampleRate: get.Int("sample-rate"),
				BitDepth:   get.Int("bit-depth"),
				Workers:    get.Int("workers"),
				Logger:     a.logger,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d mixtures, %d samples\n", st.Utterances, st.Samples)
			return nil
		}),
	}
	f := cmd.Flags()
	f.String("outdir", "", "directory receiving <uttid>.wav")
	f.Int("sample-rate", def.SampleRate, "output sample rate in Hz")
	f.Int("bit-depth", def.BitDepth, "output PCM bit depth: 16, 24 or 32")
	f.Int("workers", 0, "parallel renderers, 0 for GOMAXPROCS")
	return cmd
}
