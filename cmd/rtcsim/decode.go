package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"sparkrtc/sparkos/trace"
)

func newDecodeCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "decode <frames-file>",
		Short: "Decode trace frames captured from a UART or written by run --frames",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return commandError("open frames file", err)
			}
			defer f.Close()
			return decodeFrames(f, cmd.OutOrStdout())
		},
	}
}

func decodeFrames(r io.Reader, out io.Writer) error {
	dec := trace.NewDecoder(r)
	var records, damaged int
	for {
		rec, err := dec.Decode()
		switch {
		case errors.Is(err, io.EOF):
			fmt.Fprintf(out, "-- %d records, %d damaged, %d lost\n", records, damaged, dec.Lost())
			if damaged > 0 || dec.Lost() > 0 {
				return failure("trace stream is incomplete")
			}
			return nil
		case errors.Is(err, trace.ErrChecksum), errors.Is(err, trace.ErrFrameLength), errors.Is(err, io.ErrUnexpectedEOF):
			damaged++
			fmt.Fprintf(out, "!! %v\n", err)
			continue
		case err != nil:
			return commandError("read frames", err)
		}
		records++
		fmt.Fprintln(out, trace.Format(rec))
	}
}
