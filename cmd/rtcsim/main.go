// Command rtcsim runs kernel scenarios on the simulated CPU, stores their
// traces, and decodes trace frames captured from a target.
package main

import (
	"fmt"
	"os"
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "rtcsim:", err)
		os.Exit(exitCode(err))
	}
}
