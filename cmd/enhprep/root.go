package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const envPrefix = "ENHPREP"

// app carries the state shared by every command.
type app struct {
	v      *viper.Viper
	out    io.Writer
	logger *zap.Logger
}

// loggedError marks an error that has already been written to the log.
type loggedError struct{ err error }

func (e loggedError) Error() string { return e.err.Error() }
func (e loggedError) Unwrap() error { return e.err }

func newRootCmd(out io.Writer) *cobra.Command {
	a := &app{v: viper.New(), out: out, logger: zap.NewNop()}

	root := &cobra.Command{
		Use:           "enhprep",
		Short:         "Speech enhancement corpus preparation and model inspection",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}
	root.SetOut(out)

	pf := root.PersistentFlags()
	pf.String("config", "", "config file (yaml, json or toml) with per-command settings")
	pf.String("log-level", "info", "log level: debug, info, warn or error")
	pf.String("log-format", "console", "log format: console or json")

	root.AddCommand(
		newMixlistCmd(a),
		newPrepareDevCmd(a),
		newSimulateCmd(a),
		newModelCmd(a),
	)
	return root
}

// init reads the config file, wires the environment and builds the logger.
func (a *app) init(cmd *cobra.Command) error {
	a.v.SetEnvPrefix(envPrefix)
	a.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	a.v.AutomaticEnv()

	for _, name := range []string{"config", "log-level", "log-format"} {
		if err := a.v.BindPFlag(name, cmd.Root().PersistentFlags().Lookup(name)); err != nil {
			return err
		}
	}
	if path := a.v.GetString("config"); path != "" {
		a.v.SetConfigFile(path)
		if err := a.v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", path, err)
		}
	}

	logger, err := initLogger(a.v.GetString("log-level"), a.v.GetString("log-format"))
	if err != nil {
		return err
	}
	a.logger = logger
	return nil
}

// bind registers the local flags of cmd under its command path, so
// "simulate vctk --workers" is also "simulate.vctk.workers" in the config file
// and ENHPREP_SIMULATE_VCTK_WORKERS in the environment. It returns the key
// prefix.
func (a *app) bind(cmd *cobra.Command) (string, error) {
	path := strings.Fields(cmd.CommandPath())
	prefix := strings.Join(path[1:], ".")

	var err error
	cmd.LocalNonPersistentFlags().VisitAll(func(f *pflag.Flag) {
		if err == nil {
			err = a.v.BindPFlag(prefix+"."+f.Name, f)
		}
	})
	return prefix, err
}

// runE adapts fn to cobra: flags are bound first and a failure is logged once.
func (a *app) runE(fn func(cmd *cobra.Command, args []string, get getter) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		prefix, err := a.bind(cmd)
		if err == nil {
			err = fn(cmd, args, getter{v: a.v, prefix: prefix})
		}
		if err != nil {
			a.logger.Error("command failed", zap.String("command", cmd.CommandPath()), zap.Error(err))
			_ = a.logger.Sync()
			return loggedError{err}
		}
		_ = a.logger.Sync()
		return nil
	}
}

// getter reads the bound settings of one command.
type getter struct {
	v      *viper.Viper
	prefix string
}

func (g getter) key(name string) string      { return g.prefix + "." + name }
func (g getter) String(name string) string   { return g.v.GetString(g.key(name)) }
func (g getter) Int(name string) int         { return g.v.GetInt(g.key(name)) }
func (g getter) Int64(name string) int64     { return g.v.GetInt64(g.key(name)) }
func (g getter) Float64(name string) float64 { return g.v.GetFloat64(g.key(name)) }
func (g getter) Bool(name string) bool       { return g.v.GetBool(g.key(name)) }

// Ints reads an int list. Values from the environment or a config string
// arrive as one string and are split on commas and whitespace.
func (g getter) Ints(name string) ([]int, error) {
	raw, ok := g.v.Get(g.key(name)).(string)
	if !ok {
		return g.v.GetIntSlice(g.key(name)), nil
	}
	var out []int
	for _, f := range splitList(raw) {
		n, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("--%s: invalid integer %q", name, f)
		}
		out = append(out, n)
	}
	return out, nil
}

// Strings reads a string list, splitting string values like Ints.
func (g getter) Strings(name string) []string {
	if raw, ok := g.v.Get(g.key(name)).(string); ok {
		return splitList(raw)
	}
	return g.v.GetStringSlice(g.key(name))
}

func splitList(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool { return r == ',' || unicode.IsSpace(r) })
}

// required returns an error naming the first empty string setting.
func (g getter) required(names ...string) error {
	for _, n := range names {
		if g.String(n) == "" {
			return fmt.Errorf("required flag --%s not set", n)
		}
	}
	return nil
}

func initLogger(level, format string) (*zap.Logger, error) {
	var lvl zapcore.Level
	switch level {
	case "debug":
		lvl = zapcore.DebugLevel
	case "info", "":
		lvl = zapcore.InfoLevel
	case "warn":
		lvl = zapcore.WarnLevel
	case "error":
		lvl = zapcore.ErrorLevel
	default:
		return nil, fmt.Errorf("unknown log level %q", level)
	}

	var encoderConfig zapcore.EncoderConfig
	switch format {
	case "console", "":
		format = "console"
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	case "json":
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}

	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(lvl),
		Development:      format == "console",
		Encoding:         format,
		EncoderConfig:    encoderConfig,
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}
	return cfg.Build(zap.AddStacktrace(stacktraceLevel(lvl)))
}

// stacktraceLevel keeps stack traces out of ordinary command failures unless
// debug logging is on.
func stacktraceLevel(lvl zapcore.Level) zapcore.Level {
	if lvl == zapcore.DebugLevel {
		return zapcore.ErrorLevel
	}
	return zapcore.DPanicLevel
}

// isLogged reports whether err was already logged by runE.
func isLogged(err error) bool {
	var le loggedError
	return errors.As(err, &le)
}
