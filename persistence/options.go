package persistence

import (
	"io"
	"log/slog"

	"github.com/hupe1980/dcstore/codec"
	"github.com/hupe1980/dcstore/resource"
)

type writeOptions struct {
	compression Compression
	codec       codec.Codec
	version     uint32
	controller  *resource.Controller
	logger      *slog.Logger
}

// WriteOption configures WriteStore.
type WriteOption func(*writeOptions)

// WithCompression sets the dataset and directory block compression.
func WithCompression(c Compression) WriteOption {
	return func(o *writeOptions) { o.compression = c }
}

// WithCodec sets the directory codec.
func WithCodec(c codec.Codec) WriteOption {
	return func(o *writeOptions) {
		if c != nil {
			o.codec = c
		}
	}
}

// WithStructuralVersion writes an older supported layout. Version 7 omits
// dataset digests.
func WithStructuralVersion(v uint32) WriteOption {
	return func(o *writeOptions) { o.version = v }
}

// WithWriteController throttles output through the controller's IO limit.
func WithWriteController(rc *resource.Controller) WriteOption {
	return func(o *writeOptions) { o.controller = rc }
}

// WithWriteLogger sets the logger used while writing.
func WithWriteLogger(l *slog.Logger) WriteOption {
	return func(o *writeOptions) { o.logger = l }
}

func applyWriteOptions(opts []WriteOption) writeOptions {
	o := writeOptions{
		compression: CompressionZSTD,
		codec:       codec.Default,
		version:     StructuralVersion,
	}
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = orDiscard(o.logger)
	return o
}

// ProgressFunc observes materialize progress: done of total datasets.
type ProgressFunc func(done, total int)

type materializeOptions struct {
	workers    int
	controller *resource.Controller
	progress   ProgressFunc
	logger     *slog.Logger
	verify     bool
}

// MaterializeOption configures Materialize.
type MaterializeOption func(*materializeOptions)

// WithWorkers bounds how many datasets of one matrix are read concurrently.
func WithWorkers(n int) MaterializeOption {
	return func(o *materializeOptions) { o.workers = n }
}

// WithController applies the controller's memory budget and IO rate to
// dataset reads. Unless WithWorkers is given, its worker count is used too.
func WithController(rc *resource.Controller) MaterializeOption {
	return func(o *materializeOptions) { o.controller = rc }
}

// WithProgress registers a progress observer. It is called from worker
// goroutines, one call at a time.
func WithProgress(fn ProgressFunc) MaterializeOption {
	return func(o *materializeOptions) { o.progress = fn }
}

// WithLogger sets the logger used while materializing.
func WithLogger(l *slog.Logger) MaterializeOption {
	return func(o *materializeOptions) { o.logger = l }
}

// WithVerify toggles digest verification (default on).
func WithVerify(verify bool) MaterializeOption {
	return func(o *materializeOptions) { o.verify = verify }
}

func applyMaterializeOptions(opts []MaterializeOption) materializeOptions {
	o := materializeOptions{verify: true}
	for _, opt := range opts {
		opt(&o)
	}
	if o.workers <= 0 {
		o.workers = max(o.controller.Workers(), 1)
	}
	o.logger = orDiscard(o.logger)
	return o
}

func orDiscard(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return l
}
