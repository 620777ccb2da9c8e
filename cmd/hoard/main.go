// Command hoard is the entry point for the hoard CLI and server.
package main

import (
	"fmt"
	"os"

	"github.com/thrr87/hoard/internal/cli"
)

func main() {
	root := cli.NewRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
