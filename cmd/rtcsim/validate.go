package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"sparkrtc/sparkos/sim"
)

func newValidateCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <scenario.yaml>...",
		Short: "Check scenario files against the schema without running them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			bad := 0
			for _, path := range args {
				if _, err := sim.Load(path); err != nil {
					bad++
					fmt.Fprintf(out, "INVALID %s\n  %v\n", path, err)
					continue
				}
				fmt.Fprintf(out, "ok %s\n", path)
			}
			if bad > 0 {
				return failure("%d of %d scenario files are invalid", bad, len(args))
			}
			return nil
		},
	}
}
