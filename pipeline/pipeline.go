package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/hupe1980/dcstore/datapath"
	"github.com/hupe1980/dcstore/errs"
	"github.com/hupe1980/dcstore/rename"
	"github.com/hupe1980/dcstore/resource"
	"github.com/hupe1980/dcstore/store"
)

// StepError is the failure of one step.
type StepError struct {
	Index int
	Step  string
	// Code is the stable code of Err, errs.CodeInvalidArgument when Err carries
	// none.
	Code errs.Code
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s): [%d] %v", e.Index, e.Step, int(e.Code), e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

func stepError(i int, step Step, err error) *StepError {
	return &StepError{Index: i, Step: step.Name(), Code: errs.CodeOf(err), Err: err}
}

// StepReport describes a step's dry run.
type StepReport struct {
	Name     string
	Required []datapath.Path
	Created  []datapath.Path
	// Renames are the renames detected across the step.
	Renames []datapath.RenamePair
	// Updated lists, per later step index, the parameters rewritten by
	// Renames.
	Updated map[int][]string
}

// Report is the outcome of a preflight.
type Report struct {
	Steps []StepReport
	// Paths holds every path of the preflight store after the last step.
	Paths []datapath.Path
}

type options struct {
	logger     *slog.Logger
	controller *resource.Controller
	progress   *Progress
}

// Option configures a Pipeline.
type Option func(*options)

// WithLogger sets the logger handed to steps.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithController bounds the resources of import and export steps.
func WithController(rc *resource.Controller) Option {
	return func(o *options) { o.controller = rc }
}

// WithProgress reports progress while executing.
func WithProgress(p *Progress) Option {
	return func(o *options) { o.progress = p }
}

// Pipeline is an ordered list of steps.
type Pipeline struct {
	steps []Step
	opts  options
}

// New returns a pipeline running steps in order.
func New(steps []Step, opts ...Option) *Pipeline {
	o := options{}
	for _, fn := range opts {
		fn(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Pipeline{steps: steps, opts: o}
}

// Steps returns the steps.
func (p *Pipeline) Steps() []Step { return p.steps }

// Append adds a step at the end.
func (p *Pipeline) Append(step Step) { p.steps = append(p.steps, step) }

func (p *Pipeline) context(s *store.Store, preflight bool) *Context {
	return &Context{
		Store:      s,
		Recorder:   NewRecorder(),
		Logger:     p.opts.logger,
		Controller: p.opts.controller,
		Progress:   p.opts.progress,
		Preflight:  preflight,
	}
}

// Preflight dry-runs every step on a copy of s without buffers. s is not
// modified. Renames detected across a step are written into the path
// parameters of every later step. The first failing step stops the run;
// the report then covers the steps before it.
func (p *Pipeline) Preflight(ctx context.Context, s *store.Store) (*Report, error) {
	work := s.DeepCopy(false)
	report := &Report{}

	for i, step := range p.steps {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		before := work.DeepCopy(false)
		sc := p.context(work, true)
		if err := step.Preflight(ctx, sc); err != nil {
			p.opts.logger.Warn("preflight failed",
				slog.Int("step", i),
				slog.String("name", step.Name()),
				slog.String("error", err.Error()),
			)
			return report, stepError(i, step, err)
		}

		pairs := rename.Detect(rename.Input{
			Old:        before.Paths(),
			New:        work.Paths(),
			Created:    sc.Recorder.Created(),
			Compatible: rename.StoreOracle(before, work),
		})

		sr := StepReport{
			Name:     step.Name(),
			Required: sc.Recorder.Required(),
			Created:  sc.Recorder.CreatedPaths(),
			Renames:  pairs,
		}
		if len(pairs) > 0 {
			sr.Updated = p.propagate(i, pairs)
		}
		report.Steps = append(report.Steps, sr)
	}

	report.Paths = work.Paths()
	return report, nil
}

// propagate rewrites the parameters of the steps after index.
func (p *Pipeline) propagate(index int, pairs []datapath.RenamePair) map[int][]string {
	updated := make(map[int][]string)
	for j := index + 1; j < len(p.steps); j++ {
		table := p.steps[j].ParameterPaths()
		if changed := table.Apply(pairs, p.steps[j].CreatedParameters()...); len(changed) > 0 {
			p.steps[j].SetParameterPaths(table)
			updated[j] = changed
			p.opts.logger.Debug("parameters renamed",
				slog.Int("step", j),
				slog.String("name", p.steps[j].Name()),
				slog.Any("params", changed),
			)
		}
	}
	return updated
}

// Execute preflights the pipeline and then runs every step on s. A
// preflight failure leaves s untouched; an execute failure leaves s as
// the failing step left it.
func (p *Pipeline) Execute(ctx context.Context, s *store.Store) (*Report, error) {
	report, err := p.Preflight(ctx, s)
	if err != nil {
		return report, err
	}

	for i, step := range p.steps {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if p.opts.progress != nil {
			p.opts.progress.beginStep(i, len(p.steps), step.Name())
		}
		if err := step.Execute(ctx, p.context(s, false)); err != nil {
			p.opts.logger.Error("step failed",
				slog.Int("step", i),
				slog.String("name", step.Name()),
				slog.String("error", err.Error()),
			)
			return report, stepError(i, step, err)
		}
		p.opts.logger.Debug("step executed", slog.Int("step", i), slog.String("name", step.Name()))
	}
	return report, nil
}
