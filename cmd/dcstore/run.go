package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/hupe1980/dcstore"
	"github.com/hupe1980/dcstore/pipeline"
	"github.com/hupe1980/dcstore/store"
)

func runCommand() *Command {
	var (
		in, out   string
		preflight bool
	)
	return &Command{
		Name:    "run",
		Summary: "run a pipeline definition",
		Usage:   "<pipeline.yaml>",
		Flags: func(fs *pflag.FlagSet) {
			fs.StringVar(&in, "in", "", "store file to start from (default: empty store)")
			fs.StringVar(&out, "out", "", "write the resulting store to this file")
			fs.BoolVar(&preflight, "preflight", false, "dry-run only and print the report")
		},
		Run: func(ctx context.Context, e *env, args []string) error {
			if len(args) != 1 {
				return errors.New("run needs exactly one pipeline definition")
			}
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			p, err := pipeline.LoadDefinition(f, pipeline.DefaultRegistry(),
				pipeline.WithLogger(e.logger.Logger),
				pipeline.WithController(e.cfg.Controller()),
			)
			if err != nil {
				return err
			}

			opts, err := e.options()
			if err != nil {
				return err
			}
			s := store.New()
			if in != "" {
				if s, err = dcstore.Load(ctx, in, nil, opts...); err != nil {
					return err
				}
			}

			var report *pipeline.Report
			if preflight {
				report, err = p.Preflight(ctx, s)
			} else {
				report, err = p.Execute(ctx, s)
			}
			printReport(e, report)
			if err != nil {
				return err
			}

			if out != "" && !preflight {
				return dcstore.Save(ctx, out, s, opts...)
			}
			return nil
		},
	}
}

func printReport(e *env, r *pipeline.Report) {
	if r == nil {
		return
	}
	for i, st := range r.Steps {
		fmt.Fprintf(e.stdout, "%d %s\n", i, st.Name)
		for _, p := range st.Created {
			fmt.Fprintf(e.stdout, "    + %s\n", p)
		}
		for _, pair := range st.Renames {
			fmt.Fprintf(e.stdout, "    ~ %s\n", pair)
		}
	}
}
