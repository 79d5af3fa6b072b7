package main

import (
	"context"
	"fmt"
	"os"
	"slices"

	"github.com/spf13/pflag"

	"github.com/hupe1980/dcstore"
	"github.com/hupe1980/dcstore/array"
	"github.com/hupe1980/dcstore/errs"
	"github.com/hupe1980/dcstore/proxy"
	"github.com/hupe1980/dcstore/store"
)

func loadCommand() *Command {
	var (
		require, selection string
		preflight          bool
		workers            int
	)
	return &Command{
		Name:    "load",
		Summary: "materialize a file and print a summary",
		Usage:   "[file]",
		Flags: func(fs *pflag.FlagSet) {
			fs.StringVar(&require, "require", "", "expression deciding the selection")
			fs.StringVar(&selection, "selection", "", "selection document written by 'dcstore select'")
			fs.BoolVar(&preflight, "preflight", false, "create the structure only, read no data")
			fs.IntVar(&workers, "workers", 0, "concurrent dataset reads (default: resources.max_workers)")
		},
		Run: func(ctx context.Context, e *env, args []string) error {
			extra, err := requireOption(require)
			if err != nil {
				return err
			}
			if workers > 0 {
				extra = append(extra, dcstore.WithWorkers(workers))
			}
			src, err := e.source(ctx, args, extra...)
			if err != nil {
				return err
			}
			tree, err := src.scan(ctx)
			if err != nil {
				return err
			}
			if selection != "" {
				if err := applySelectionFile(tree, selection); err != nil {
					return err
				}
			}

			s := store.New()
			if src.repo != nil {
				err = src.repo.LoadInto(ctx, s, tree, preflight)
			} else {
				err = dcstore.LoadInto(ctx, s, src.file, tree, preflight, src.opts...)
			}
			if err != nil {
				return err
			}
			printSummary(e, s.Summary())
			return nil
		},
	}
}

func applySelectionFile(tree *proxy.Tree, filename string) error {
	f, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	sel, err := proxy.LoadSelection(f)
	if err != nil {
		return err
	}
	if missing := tree.ApplySelection(sel); len(missing) > 0 {
		return errs.NotFound("load", missing[0].String())
	}
	return nil
}

func printSummary(e *env, sum store.Summary) {
	w := e.stdout
	fmt.Fprintf(w, "containers: %d\n", sum.Containers)
	fmt.Fprintf(w, "matrices:   %d\n", sum.Matrices)
	fmt.Fprintf(w, "arrays:     %d (%d allocated)\n", sum.Arrays, sum.Allocated)
	fmt.Fprintf(w, "bytes:      %d\n", sum.Bytes)

	kinds := make([]array.Kind, 0, len(sum.ByKind))
	for k := range sum.ByKind {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	for _, k := range kinds {
		fmt.Fprintf(w, "  %-8s %d\n", k, sum.ByKind[k])
	}
}
