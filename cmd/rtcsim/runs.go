package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"sparkrtc/internal/tracedb"
)

func openStore(root *rootOptions) (*tracedb.Store, error) {
	if root.DB == "" {
		return nil, commandError("--db is required", nil)
	}
	st, err := tracedb.Open(root.DB)
	if err != nil {
		return nil, commandError("open trace database", err)
	}
	return st, nil
}

func newRunsCommand(root *rootOptions) *cobra.Command {
	var scenario string
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List stored runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(root)
			if err != nil {
				return err
			}
			defer st.Close()
			return listRuns(cmd.Context(), st, root.Format, scenario, limit, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&scenario, "scenario", "", "only list runs of this scenario")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs (0 for all)")
	return cmd
}

func listRuns(ctx context.Context, st *tracedb.Store, format, scenario string, limit int, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	runs, err := st.ListRuns(ctx, scenario, limit)
	if err != nil {
		return commandError("list runs", err)
	}
	if format == "json" {
		e := json.NewEncoder(out)
		e.SetIndent("", "  ")
		return e.Encode(runs)
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSCENARIO\tOUTCOME\tFAULT\tEVENTS\tSTARTED")
	for _, r := range runs {
		fault := r.Fault
		if fault == "" {
			fault = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
			r.ID, r.Scenario, r.Outcome, fault, r.Events, r.StartedAt.UTC().Format(time.RFC3339))
	}
	return tw.Flush()
}
