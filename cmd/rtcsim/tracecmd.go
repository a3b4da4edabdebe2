package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"sparkrtc/internal/tracedb"
)

func newTraceCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "trace <run-id>",
		Short: "Print the trace of a stored run; a unique id prefix is enough",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(root)
			if err != nil {
				return err
			}
			defer st.Close()

			run, events, err := st.LoadRun(cmd.Context(), args[0])
			if errors.Is(err, tracedb.ErrNotFound) || errors.Is(err, tracedb.ErrAmbiguous) {
				return failure("%v", err)
			}
			if err != nil {
				return commandError("load run", err)
			}

			out := cmd.OutOrStdout()
			lines := make([]string, 0, len(events))
			for _, e := range events {
				lines = append(lines, e.String())
			}
			if root.Format == "json" {
				e := json.NewEncoder(out)
				e.SetIndent("", "  ")
				return e.Encode(struct {
					Run    tracedb.Run `json:"run"`
					Events []string    `json:"events"`
				}{run, lines})
			}

			fmt.Fprintf(out, "run %s scenario %s outcome %s\n", run.ID, run.Scenario, run.Outcome)
			for _, l := range lines {
				fmt.Fprintln(out, l)
			}
			return nil
		},
	}
}
