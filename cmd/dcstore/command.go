package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/hupe1980/dcstore"
	"github.com/hupe1980/dcstore/codec"
	"github.com/hupe1980/dcstore/config"
	"github.com/hupe1980/dcstore/persistence"
	"github.com/hupe1980/dcstore/proxy"
)

// Command is a CLI command or subcommand.
type Command struct {
	Name    string
	Summary string
	// Usage is the argument synopsis shown in help, e.g. "[file]".
	Usage string
	// Flags registers command flags. Global flags are added by Execute.
	Flags func(fs *pflag.FlagSet)
	// Run executes the command with the positional args.
	Run func(ctx context.Context, e *env, args []string) error

	Subcommands []*Command

	stdout io.Writer
}

// Execute dispatches args to a subcommand or runs the command.
func (c *Command) Execute(ctx context.Context, args []string) error {
	if c.stdout == nil {
		c.stdout = os.Stdout
	}

	if len(c.Subcommands) > 0 {
		if len(args) == 0 || isHelpFlag(args[0]) {
			c.PrintHelp(c.stdout)
			if len(args) == 0 {
				return errors.New("command required")
			}
			return nil
		}
		for _, sub := range c.Subcommands {
			if sub.Name == args[0] {
				sub.stdout = c.stdout
				return sub.Execute(ctx, args[1:])
			}
		}
		return fmt.Errorf("unknown command %q\n\nRun '%s --help' for usage.", args[0], c.Name)
	}

	var g globals
	fs := pflag.NewFlagSet(c.Name, pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	g.addFlags(fs)
	if c.Flags != nil {
		c.Flags(fs)
	}
	help := fs.BoolP("help", "h", false, "show help")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%s: %w\n\nRun 'dcstore %s --help' for usage.", c.Name, err, c.Name)
	}
	if *help {
		fmt.Fprintf(c.stdout, "Usage: dcstore %s [flags] %s\n\n%s\n\nFlags:\n%s", c.Name, c.Usage, c.Summary, fs.FlagUsages())
		return nil
	}

	e, err := g.env(c.stdout)
	if err != nil {
		return err
	}
	return c.Run(ctx, e, fs.Args())
}

// PrintHelp lists the subcommands.
func (c *Command) PrintHelp(w io.Writer) {
	fmt.Fprintf(w, "%s: %s\n\nCommands:\n", c.Name, c.Summary)
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	for _, sub := range c.Subcommands {
		fmt.Fprintf(tw, "  %s\t%s\n", sub.Name, sub.Summary)
	}
	_ = tw.Flush()
}

func isHelpFlag(s string) bool {
	return s == "-h" || s == "--help" || s == "help"
}

type globals struct {
	configPath string
	logLevel   string
	logFormat  string
}

func (g *globals) addFlags(fs *pflag.FlagSet) {
	fs.StringVar(&g.configPath, "config", "", "configuration file (default: $"+config.EnvVar+")")
	fs.StringVar(&g.logLevel, "log-level", "", "debug, info, warn or error (overrides the config)")
	fs.StringVar(&g.logFormat, "log-format", "", "text or json (overrides the config)")
}

// env is what a command runs with.
type env struct {
	cfg    *config.Config
	logger *dcstore.Logger
	stdout io.Writer
}

func (g *globals) env(stdout io.Writer) (*env, error) {
	var (
		cfg *config.Config
		err error
	)
	if g.configPath != "" {
		cfg, err = config.LoadFile(g.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if g.logLevel != "" {
		cfg.Log.Level = g.logLevel
	}
	if g.logFormat != "" {
		cfg.Log.Format = g.logFormat
	}

	level, err := config.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	var logger *dcstore.Logger
	switch strings.ToLower(cfg.Log.Format) {
	case "json":
		logger = dcstore.NewJSONLogger(level)
	case "text":
		logger = dcstore.NewTextLogger(level)
	default:
		return nil, fmt.Errorf("log format must be text or json, got %q", cfg.Log.Format)
	}

	return &env{cfg: cfg, logger: logger, stdout: stdout}, nil
}

// options translates the configuration into facade options.
func (e *env) options(extra ...dcstore.Option) ([]dcstore.Option, error) {
	comp, err := persistence.ParseCompression(e.cfg.Write.Compression)
	if err != nil {
		return nil, err
	}
	opts := []dcstore.Option{
		dcstore.WithLogger(e.logger),
		dcstore.WithController(e.cfg.Controller()),
		dcstore.WithCompression(comp),
		dcstore.WithStructuralVersion(e.cfg.Write.StructuralVersion),
	}
	if cd, ok := codec.ByName(e.cfg.Write.Codec); ok {
		opts = append(opts, dcstore.WithCodec(cd))
	}
	return append(opts, extra...), nil
}

// repository opens the configured repository.
func (e *env) repository(ctx context.Context, extra ...dcstore.Option) (*dcstore.Repository, error) {
	bs, err := e.cfg.OpenBlobStore(ctx)
	if err != nil {
		return nil, err
	}
	opts, err := e.options(extra...)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("repository opened", slog.String("backend", string(e.cfg.Backend)))
	return dcstore.Remote(bs, opts...), nil
}

// source is a store file given on the command line, or the current
// version of the repository.
type source struct {
	file string
	repo *dcstore.Repository
	opts []dcstore.Option
}

func (e *env) source(ctx context.Context, args []string, extra ...dcstore.Option) (*source, error) {
	switch len(args) {
	case 0:
		repo, err := e.repository(ctx, extra...)
		if err != nil {
			return nil, err
		}
		return &source{repo: repo}, nil
	case 1:
		opts, err := e.options(extra...)
		if err != nil {
			return nil, err
		}
		return &source{file: args[0], opts: opts}, nil
	default:
		return nil, fmt.Errorf("expected at most one file, got %d arguments", len(args))
	}
}

func (s *source) String() string {
	if s.repo != nil {
		return "repository"
	}
	return s.file
}

func (s *source) scan(ctx context.Context) (*proxy.Tree, error) {
	if s.repo != nil {
		return s.repo.Scan(ctx)
	}
	return dcstore.Scan(ctx, s.file, s.opts...)
}

func (s *source) stat(ctx context.Context) (persistence.Info, error) {
	if s.repo != nil {
		info, _, err := s.repo.Stat(ctx)
		return info, err
	}
	return dcstore.Stat(ctx, s.file)
}

// requireOption compiles a --require expression.
func requireOption(expr string) ([]dcstore.Option, error) {
	if expr == "" {
		return nil, nil
	}
	pred, err := proxy.CompileExpr(expr)
	if err != nil {
		return nil, err
	}
	return []dcstore.Option{dcstore.WithPredicate(pred)}, nil
}
