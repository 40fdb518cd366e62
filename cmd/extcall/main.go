// Command extcall checks external call semantics against their contract
// and runs call scenarios.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/extcall/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		if _, ok := err.(*cli.ExitError); !ok {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
