package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/hupe1980/dcstore"
	"github.com/hupe1980/dcstore/errs"
)

func commitCommand() *Command {
	return &Command{
		Name:    "commit",
		Summary: "load a file completely and commit it as the repository's new version",
		Usage:   "<file>",
		Run: func(ctx context.Context, e *env, args []string) error {
			if len(args) != 1 {
				return errors.New("commit needs exactly one file")
			}
			opts, err := e.options()
			if err != nil {
				return err
			}
			s, err := dcstore.Load(ctx, args[0], nil, opts...)
			if err != nil {
				return err
			}
			repo, err := e.repository(ctx)
			if err != nil {
				return err
			}
			v, err := repo.Commit(ctx, s)
			if err != nil {
				return err
			}
			fmt.Fprintf(e.stdout, "committed %s\n", v.Name)
			return nil
		},
	}
}

func versionsCommand() *Command {
	var prune int
	return &Command{
		Name:    "versions",
		Summary: "list the repository's versions, marking the current one",
		Flags: func(fs *pflag.FlagSet) {
			fs.IntVar(&prune, "prune", 0, "delete all but the newest N versions first")
		},
		Run: func(ctx context.Context, e *env, args []string) error {
			repo, err := e.repository(ctx)
			if err != nil {
				return err
			}
			if prune > 0 {
				deleted, err := repo.Prune(ctx, prune)
				if err != nil {
					return err
				}
				for _, name := range deleted {
					fmt.Fprintf(e.stdout, "deleted %s\n", name)
				}
			}

			cur, err := repo.Current(ctx)
			if err != nil && !errors.Is(err, errs.ErrNotFound) {
				return err
			}
			versions, err := repo.Versions(ctx)
			if err != nil {
				return err
			}
			for _, v := range versions {
				mark := " "
				if v == cur {
					mark = "*"
				}
				fmt.Fprintf(e.stdout, "%s %s\n", mark, v.Name)
			}
			return nil
		},
	}
}
