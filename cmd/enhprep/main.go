// Command enhprep prepares speech enhancement corpora and inspects model
// configurations.
//
// Usage:
//
//	enhprep [--config enhprep.yaml] [--log-level info] [--log-format console] <command>
//
// Commands:
//
//	mixlist               generate VCTK mixture lists
//	prepare-dev           write the ConferencingSpeech dev data directory
//	simulate vctk         render the mixtures of a VCTK mixture list
//	simulate conferencing render ConferencingSpeech simulation lines
//	model                 build a model config and print its summary
//
// Every flag can also be set in the config file under the command path
// (for example "simulate.vctk.workers") or through ENHPREP_<PATH>_<FLAG>
// environment variables (ENHPREP_SIMULATE_VCTK_WORKERS).
//
// Examples:
//
//	enhprep mixlist --vctk-root /data/VCTK-Corpus --num-spks 2 --outdir data/lists
//	enhprep prepare-dev dev/simu_config.txt --audiodirs dev/simu --outdir data/dev
//	enhprep simulate vctk --vctk-root /data/VCTK-Corpus --list data/lists/vctk_mix_2_spk_tr.txt --outdir data/tr
//	enhprep model --task-config conf/train.yaml --print-config
//	enhprep model --list
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout).ExecuteContext(ctx); err != nil {
		if !isLogged(err) {
			fmt.Fprintln(os.Stderr, "enhprep:", err)
		}
		stop()
		os.Exit(1)
	}
}
