package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/hupe1980/dcstore/persistence"
	"github.com/hupe1980/dcstore/proxy"
)

func scanCommand() *Command {
	var require string
	return &Command{
		Name:    "scan",
		Summary: "print the node tree of a file with selection marks",
		Usage:   "[file]",
		Flags: func(fs *pflag.FlagSet) {
			fs.StringVar(&require, "require", "", "expression deciding the initial selection")
		},
		Run: func(ctx context.Context, e *env, args []string) error {
			extra, err := requireOption(require)
			if err != nil {
				return err
			}
			src, err := e.source(ctx, args, extra...)
			if err != nil {
				return err
			}
			tree, err := src.scan(ctx)
			if err != nil {
				return err
			}
			return proxy.Fprint(e.stdout, tree)
		},
	}
}

func selectCommand() *Command {
	var require, out string
	return &Command{
		Name:    "select",
		Summary: "save the nodes an expression selects as a selection document",
		Usage:   "[file]",
		Flags: func(fs *pflag.FlagSet) {
			fs.StringVar(&require, "require", "", "expression deciding the selection")
			fs.StringVarP(&out, "out", "o", "", "output file (default: stdout)")
		},
		Run: func(ctx context.Context, e *env, args []string) error {
			extra, err := requireOption(require)
			if err != nil {
				return err
			}
			src, err := e.source(ctx, args, extra...)
			if err != nil {
				return err
			}
			tree, err := src.scan(ctx)
			if err != nil {
				return err
			}
			if out == "" {
				return proxy.SaveSelection(e.stdout, tree, src.String())
			}
			f, err := os.Create(out)
			if err != nil {
				return err
			}
			if err := proxy.SaveSelection(f, tree, src.String()); err != nil {
				_ = f.Close()
				return err
			}
			return f.Close()
		},
	}
}

func infoCommand() *Command {
	return &Command{
		Name:    "info",
		Summary: "print header and directory statistics of a file",
		Usage:   "[file]",
		Run: func(ctx context.Context, e *env, args []string) error {
			src, err := e.source(ctx, args)
			if err != nil {
				return err
			}
			info, err := src.stat(ctx)
			if err != nil {
				return err
			}
			printInfo(e, src.String(), info)
			return nil
		},
	}
}

func printInfo(e *env, name string, info persistence.Info) {
	w := e.stdout
	fmt.Fprintf(w, "source:             %s\n", name)
	fmt.Fprintf(w, "structural version: %d\n", info.StructuralVersion)
	fmt.Fprintf(w, "created:            %s\n", time.Unix(0, info.CreatedUnixNano).UTC().Format(time.RFC3339))
	fmt.Fprintf(w, "containers:         %d\n", info.Containers)
	fmt.Fprintf(w, "matrices:           %d\n", info.Matrices)
	fmt.Fprintf(w, "datasets:           %d\n", info.Datasets)
	fmt.Fprintf(w, "payload bytes:      %d\n", info.PayloadBytes)
	fmt.Fprintf(w, "stored bytes:       %d\n", info.StoredBytes)
	fmt.Fprintf(w, "directory:          %s, %s\n", info.DirCodec, info.DirCompression)
	fmt.Fprintf(w, "digests:            %t\n", info.Digests)
}
