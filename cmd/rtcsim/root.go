package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"sparkrtc/internal/buildinfo"
)

type rootOptions struct {
	Verbose bool
	Format  string
	DB      string
}

var validFormats = []string{"text", "json"}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "rtcsim",
		Short:         "Run and inspect kernel scenarios",
		Long:          "rtcsim drives the preemptive kernel core on a simulated Cortex-M CPU and inspects its traces.",
		Version:       buildinfo.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return commandError(fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, validFormats), nil)
			}
			level := slog.LevelInfo
			if opts.Verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.DB, "db", "", "trace database path")

	cmd.AddCommand(newRunCommand(opts))
	cmd.AddCommand(newValidateCommand(opts))
	cmd.AddCommand(newRunsCommand(opts))
	cmd.AddCommand(newTraceCommand(opts))
	cmd.AddCommand(newDecodeCommand(opts))
	cmd.AddCommand(newViewCommand(opts))
	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range validFormats {
		if f == format {
			return true
		}
	}
	return false
}
