// Command rcx compiles, runs and replays RCX containers.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/rcx/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
