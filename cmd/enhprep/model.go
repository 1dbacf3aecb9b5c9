package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cwbudde/algo-enh/enh/decoder"
	"github.com/cwbudde/algo-enh/enh/encoder"
	"github.com/cwbudde/algo-enh/enh/nn"
	"github.com/cwbudde/algo-enh/enh/separator"
	"github.com/cwbudde/algo-enh/enh/task"
)

func newModelCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "model",
		Short: "Build an enhancement model config and print its summary",
		Long: "Without flags, builds the model of --task-config (or the defaults) and prints the\n" +
			"parameter count of each component. --print-config prints the config with every\n" +
			"component option filled in; --list prints the registered components.",
		Args: cobra.NoArgs,
		RunE: a.runE(func(cmd *cobra.Command, _ []string, get getter) error {
			out := cmd.OutOrStdout()
			if get.Bool("list") {
				return printComponents(out, get.Int("input-dim"))
			}

			cfg := task.DefaultConfig()
			if path := get.String("task-config"); path != "" {
				var err error
				if cfg, err = task.LoadConfig(path); err != nil {
					return err
				}
			}
			if get.Bool("print-config") {
				return task.PrintConfig(out, cfg)
			}

			m, err := task.BuildModel(cfg, task.WithLogger(a.logger))
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(out, m)
			return err
		}),
	}
	f := cmd.Flags()
	f.String("task-config", "", "enhancement task config (yaml)")
	f.Bool("print-config", false, "print the config with defaults filled in and exit")
	f.Bool("list", false, "list the registered encoders, separators and decoders")
	f.Int("input-dim", 257, "separator input dimension used by --list")
	return cmd
}

// printComponents writes one row per registered component with the
// parameter count of its default configuration.
func printComponents(w io.Writer, inputDim int) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Kind\tName\tDefault\tParams\n")
	fmt.Fprintf(tw, "----\t----\t-------\t------\n")

	mark := func(name, def string) string {
		if name == def {
			return "*"
		}
		return ""
	}

	for _, name := range encoder.Choices.Names() {
		params := "-"
		if e, err := encoder.New(name, nil); err == nil {
			params = fmt.Sprint(nn.CountParams(e.Params(), false))
		}
		fmt.Fprintf(tw, "encoder\t%s\t%s\t%s\n", name, mark(name, encoder.Choices.Default()), params)
	}
	for _, name := range separator.Choices.Names() {
		params := "-"
		if s, err := separator.New(name, inputDim, nil); err == nil {
			params = fmt.Sprint(separator.NumParams(s))
		}
		fmt.Fprintf(tw, "separator\t%s\t%s\t%s\n", name, mark(name, separator.Choices.Default()), params)
	}
	for _, name := range decoder.Choices.Names() {
		params := "-"
		if d, err := decoder.New(name, nil); err == nil {
			params = fmt.Sprint(nn.CountParams(d.Params(), false))
		}
		fmt.Fprintf(tw, "decoder\t%s\t%s\t%s\n", name, mark(name, decoder.Choices.Default()), params)
	}
	return tw.Flush()
}
