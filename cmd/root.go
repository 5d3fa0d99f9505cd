package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tclemos/vault-bench/benchmark"
	"github.com/tclemos/vault-bench/integration"
)

const (
	envPrefix         = "VAULT_BENCH"
	defaultConfigName = "vault-bench"
)

// app carries state shared by every subcommand
type app struct {
	v      *viper.Viper
	out    io.Writer
	errOut io.Writer
	log    zerolog.Logger
	format OutputFormat
}

// NewRootCmd builds the command tree writing results to out and logs to errOut
func NewRootCmd(out, errOut io.Writer) *cobra.Command {
	a := &app{v: viper.New(), out: out, errOut: errOut, log: zerolog.Nop()}

	root := &cobra.Command{
		Use:           "vault-bench",
		Short:         "Run and inspect the vault benchmark suite",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return validationErr("%v", err)
	})

	pf := root.PersistentFlags()
	pf.String("config", "", "config file (default is ./vault-bench.yaml if present)")
	pf.String("format", string(FormatTable), "Output format: json, table or plain")
	pf.String("log-format", "auto", "Log format: auto, json or console")
	pf.String("log-level", integration.DefaultLoggingConfig().Level, "Log level: trace, debug, info, warn or error")

	root.AddCommand(
		newRunCmd(a),
		newListCmd(a),
		newResultsCmd(a),
		newInfraCmd(a),
	)
	return root
}

// init loads the config file and environment, then sets up logging
func (a *app) init(cmd *cobra.Command) error {
	if err := a.v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	a.v.SetEnvPrefix(envPrefix)
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()

	if cfgFile := a.v.GetString("config"); cfgFile != "" {
		a.v.SetConfigFile(cfgFile)
		if err := a.v.ReadInConfig(); err != nil {
			return ioErr(fmt.Errorf("read config %s: %w", cfgFile, err))
		}
	} else {
		a.v.AddConfigPath(".")
		a.v.SetConfigName(defaultConfigName)
		a.v.SetConfigType("yaml")
		if err := a.v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return ioErr(fmt.Errorf("read config: %w", err))
			}
		}
	}

	format, err := parseFormat(a.v.GetString("format"))
	if err != nil {
		return err
	}
	a.format = format

	logger, err := benchmark.SetupLog(a.errOut, a.v.GetString("log-format"), a.v.GetString("log-level"))
	if err != nil {
		return validationErr("%v", err)
	}
	a.log = logger
	if used := a.v.ConfigFileUsed(); used != "" {
		a.log.Debug().Str("path", used).Msg("Using config file")
	}
	return nil
}

// status prints progress lines. They go to stderr in json mode so stdout
// stays machine readable.
func (a *app) status(format string, args ...any) {
	w := a.out
	if a.format == FormatJSON {
		w = a.errOut
	}
	fmt.Fprintf(w, format+"\n", args...)
}

// Execute runs the CLI and returns the process exit code
func Execute(ctx context.Context) int {
	root := NewRootCmd(os.Stdout, os.Stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		cliErr := classify(err)
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", cliErr.Kind, cliErr)
		return cliErr.Kind.ExitCode()
	}
	return 0
}
