package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"sparkrtc/internal/tracedb"
	"sparkrtc/sparkos/sim"
	"sparkrtc/sparkos/trace"
)

type runOptions struct {
	Frames string
	Trace  bool
	Report bool
}

type runOutput struct {
	Scenario string   `json:"scenario"`
	Passed   bool     `json:"passed"`
	Fault    string   `json:"fault,omitempty"`
	Failures []string `json:"failures,omitempty"`
	RunID    string   `json:"run_id,omitempty"`
	Events   []string `json:"events,omitempty"`
}

func newRunCommand(root *rootOptions) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>...",
		Short: "Run scenarios and check their expectations",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(cmd.Context(), root, opts, args, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&opts.Frames, "frames", "", "write the kernel records of every run as trace frames to this file")
	cmd.Flags().BoolVar(&opts.Trace, "trace", false, "print each run's trace")
	cmd.Flags().BoolVar(&opts.Report, "report", false, "print activation and lock statistics")
	return cmd
}

func runScenarios(ctx context.Context, root *rootOptions, opts *runOptions, paths []string, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var store *tracedb.Store
	if root.DB != "" {
		st, err := tracedb.Open(root.DB)
		if err != nil {
			return commandError("open trace database", err)
		}
		defer func() {
			if err := st.Close(); err != nil {
				slog.Error("closing trace database", "error", err)
			}
		}()
		store = st
	}

	var enc *trace.Encoder
	if opts.Frames != "" {
		f, err := os.Create(opts.Frames)
		if err != nil {
			return commandError("create frames file", err)
		}
		defer f.Close()
		enc = trace.NewEncoder(f)
	}

	var outputs []runOutput
	failed := 0
	for _, path := range paths {
		s, err := sim.Load(path)
		if err != nil {
			return commandError("load scenario", err)
		}

		started := time.Now()
		res, err := sim.Run(s, sim.WithLogger(slog.Default()))
		if err != nil {
			return commandError("run "+s.Name, err)
		}
		slog.Debug("scenario finished", "scenario", s.Name, "events", len(res.Events), "elapsed", time.Since(started))

		o := runOutput{
			Scenario: res.Scenario,
			Passed:   res.Passed(),
			Fault:    sim.FaultName(res.Fault),
			Failures: res.Failures,
		}
		if !o.Passed {
			failed++
		}
		if opts.Trace {
			for _, e := range res.Events {
				o.Events = append(o.Events, e.String())
			}
		}
		if store != nil {
			run, err := store.SaveRun(ctx, res, started)
			if err != nil {
				return commandError("save run", err)
			}
			o.RunID = run.ID
		}
		if enc != nil {
			for _, r := range res.Records() {
				if err := enc.Encode(r); err != nil {
					return commandError("write frames", err)
				}
			}
		}

		if root.Format == "text" {
			if err := writeRunText(out, o); err != nil {
				return err
			}
			if opts.Report {
				if err := sim.NewReport(res).WriteText(out); err != nil {
					return err
				}
			}
		}
		outputs = append(outputs, o)
	}

	if root.Format == "json" {
		e := json.NewEncoder(out)
		e.SetIndent("", "  ")
		if err := e.Encode(outputs); err != nil {
			return err
		}
	}
	if failed > 0 {
		return failure("%d of %d scenarios failed", failed, len(paths))
	}
	return nil
}

func writeRunText(w io.Writer, o runOutput) error {
	status := "PASS"
	if !o.Passed {
		status = "FAIL"
	}
	line := fmt.Sprintf("%s %s", status, o.Scenario)
	if o.Fault != "" {
		line += " fault=" + o.Fault
	}
	if o.RunID != "" {
		line += " run=" + o.RunID
	}
	if _, err := fmt.Fprintln(w, line); err != nil {
		return err
	}
	for _, f := range o.Failures {
		if _, err := fmt.Fprintf(w, "  %s\n", f); err != nil {
			return err
		}
	}
	for _, e := range o.Events {
		if _, err := fmt.Fprintf(w, "  | %s\n", e); err != nil {
			return err
		}
	}
	return nil
}
