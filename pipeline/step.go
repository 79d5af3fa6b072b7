package pipeline

import (
	"context"
	"log/slog"
	"maps"

	"github.com/google/uuid"

	"github.com/hupe1980/dcstore/array"
	"github.com/hupe1980/dcstore/datapath"
	"github.com/hupe1980/dcstore/errs"
	"github.com/hupe1980/dcstore/rename"
	"github.com/hupe1980/dcstore/resource"
	"github.com/hupe1980/dcstore/store"
)

// Step is one unit of work in a pipeline.
//
// Preflight performs the structural part of the work: it creates, renames
// and removes nodes and checks shapes, but allocates no buffers. Execute
// does the same on the real store and fills buffers. Neither may keep node
// references beyond the call.
type Step interface {
	// Name is the registered type name of the step.
	Name() string
	Preflight(ctx context.Context, sc *Context) error
	Execute(ctx context.Context, sc *Context) error
	// ParameterPaths returns the step's path-valued parameters keyed by
	// parameter name.
	ParameterPaths() rename.PathTable
	// SetParameterPaths writes back a table returned by ParameterPaths.
	SetParameterPaths(rename.PathTable)
	// CreatedParameters names the ParameterPaths entries that hold nodes
	// the step creates.
	CreatedParameters() []string
}

// Context is what a step sees while it runs.
type Context struct {
	Store      *store.Store
	Recorder   *Recorder
	Logger     *slog.Logger
	Controller *resource.Controller
	Progress   *Progress
	// Preflight is true during the dry run.
	Preflight bool
}

// Require records p as read by the step and fails when it does not
// resolve.
func (sc *Context) Require(op string, p datapath.Path) error {
	sc.Recorder.Require(p)
	if !sc.Store.Exists(p) {
		return errs.NotFound(op, p.String())
	}
	return nil
}

// Allocate reports whether new arrays get buffers: false during preflight.
func (sc *Context) Allocate() bool { return !sc.Preflight }

// Recorder collects the paths a step reads and creates.
type Recorder struct {
	required []datapath.Path
	created  map[uuid.UUID]datapath.Path
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{created: make(map[uuid.UUID]datapath.Path)}
}

// Require records a read.
func (r *Recorder) Require(p datapath.Path) {
	r.required = append(r.required, p)
}

// Create records a creation and returns its id.
func (r *Recorder) Create(p datapath.Path) uuid.UUID {
	id := uuid.New()
	r.created[id] = p
	return id
}

// Required returns the recorded reads, sorted and deduplicated.
func (r *Recorder) Required() []datapath.Path {
	return datapath.Sorted(r.required)
}

// Created returns a copy of the recorded creations.
func (r *Recorder) Created() map[uuid.UUID]datapath.Path {
	return maps.Clone(r.created)
}

// CreatedPaths returns the created paths, sorted.
func (r *Recorder) CreatedPaths() []datapath.Path {
	var out []datapath.Path
	for _, p := range r.created {
		out = append(out, p)
	}
	return datapath.Sorted(out)
}

// Factory creates a step with default parameters.
type Factory func() Step

// fill sets every element of a data array to v converted to its kind.
// Other classes are left zeroed.
func fill(a array.Array, v float64) {
	switch a.Kind() {
	case array.KindInt8:
		fillAs[int8](a, int8(v))
	case array.KindUint8:
		fillAs[uint8](a, uint8(v))
	case array.KindInt16:
		fillAs[int16](a, int16(v))
	case array.KindUint16:
		fillAs[uint16](a, uint16(v))
	case array.KindInt32:
		fillAs[int32](a, int32(v))
	case array.KindUint32:
		fillAs[uint32](a, uint32(v))
	case array.KindInt64:
		fillAs[int64](a, int64(v))
	case array.KindUint64:
		fillAs[uint64](a, uint64(v))
	case array.KindFloat32:
		fillAs[float32](a, float32(v))
	case array.KindFloat64:
		fillAs[float64](a, v)
	case array.KindBool:
		fillAs[bool](a, v != 0)
	}
}

func fillAs[T array.Scalar](a array.Array, v T) {
	if da, ok := array.As[T](a); ok {
		da.Fill(v)
	}
}
