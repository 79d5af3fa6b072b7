// dcstore inspects and loads store files.
//
// Every command that takes a file falls back to the current version of the
// configured repository when the file is omitted. The repository backend
// comes from the YAML file named by --config or DCSTORE_CONFIG.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root().Execute(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func root() *Command {
	return &Command{
		Name:    "dcstore",
		Summary: "inspect, select and load hierarchical store files",
		Subcommands: []*Command{
			scanCommand(),
			selectCommand(),
			loadCommand(),
			infoCommand(),
			commitCommand(),
			versionsCommand(),
			runCommand(),
		},
	}
}
