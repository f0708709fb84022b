// Command subwayd runs a subway bus node.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "subwayd",
		Usage: "run and query source-routed bus nodes",
		Commands: []*cli.Command{
			runCommand(),
			callCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "subwayd: %v\n", err)
		os.Exit(1)
	}
}
