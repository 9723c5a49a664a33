package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/greatbody/bomswap/internal/config"
	"github.com/greatbody/bomswap/internal/errors"
	"github.com/greatbody/bomswap/internal/logging"
	"github.com/greatbody/bomswap/internal/roundtrip"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// execute runs the command line and returns the process exit code.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}

	status := errors.Status(err)
	fmt.Fprintf(stderr, "%s - failed: %d ( %08x )\n", step(err), status, status)
	logging.Logger().Debug("run failed",
		zap.String("kind", string(errors.KindOf(err))),
		zap.Error(err))
	return exitCode(status)
}

func newRootCmd() *cobra.Command {
	v := config.New()
	var configPath string

	cmd := &cobra.Command{
		Use:   "bomswap [flags] <file>",
		Short: "Convert a UTF-16LE file to UTF-8 or a UTF-8 file to UTF-16LE",
		Long: `bomswap reads a file, detects its byte order mark and writes the text in the
other encoding next to it. The conversion is checked by converting the result
back and comparing it with the original before anything is written.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				_ = cmd.Usage()
				return errors.New(errors.KindInvalidCommandLine).
					Op("CommandLine").
					Detail("expected one file argument, got %d", len(args)).
					Build()
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := bindInverted(v, cmd.Flags(), "no-hexdump", "hex_dump"); err != nil {
				return err
			}

			cfg, err := config.LoadConfig(v, configPath)
			if err != nil {
				return errors.New(errors.KindIO).Op("LoadConfig").Path(configPath).Cause(err).Build()
			}

			log, err := logging.Init(cfg.Debug)
			if err != nil {
				return errors.New(errors.KindIO).Op("InitLogging").Cause(err).Build()
			}
			defer func() { _ = log.Sync() }()

			runner := roundtrip.NewRunner(cfg,
				roundtrip.WithDiagnostics(cmd.OutOrStdout()),
				roundtrip.WithLogger(log))
			report, err := runner.Run(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			for _, out := range report.Outputs {
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", out)
			}
			return nil
		},
	}

	cmd.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		_ = c.Usage()
		return errors.New(errors.KindInvalidCommandLine).Op("CommandLine").Cause(err).Build()
	})

	flags := cmd.Flags()
	flags.StringVar(&configPath, "config", "config.json", "path to the JSON config file")
	flags.Bool("debug", false, "enable debug logging")
	flags.String("output-dir", "", "directory for output files (default: next to the input)")
	flags.Bool("no-hexdump", false, "do not print hex dumps of the buffers")
	flags.Bool("write-roundtrip", false, "also write the text recovered by the reverse conversion")
	flags.Bool("fail-on-unknown", false, "fail when the file has no recognized byte order mark")
	flags.String("expect", "", "fail unless the file is in this encoding (utf-16le or utf-8)")

	for key, name := range map[string]string{
		"debug":            "debug",
		"output_dir":       "output-dir",
		"write_round_trip": "write-roundtrip",
		"fail_on_unknown":  "fail-on-unknown",
		"expect_encoding":  "expect",
	} {
		_ = v.BindPFlag(key, flags.Lookup(name))
	}

	return cmd
}

// bindInverted sets key to the negation of a boolean flag, if the flag was given.
func bindInverted(v *viper.Viper, flags *pflag.FlagSet, name, key string) error {
	if !flags.Changed(name) {
		return nil
	}
	set, err := flags.GetBool(name)
	if err != nil {
		return errors.New(errors.KindInvalidCommandLine).Op("CommandLine").Cause(err).Build()
	}
	v.Set(key, !set)
	return nil
}

// step names the operation that failed, for the failure line.
func step(err error) string {
	if op := errors.OpOf(err); op != "" {
		return op
	}
	if errors.Is(err, context.Canceled) {
		return "Cancelled"
	}
	return "Run"
}

// exitCode turns a status into a process exit code. A status whose low
// byte is zero exits 1.
func exitCode(status uint32) int {
	if status&0xff == 0 {
		return 1
	}
	return int(status)
}
