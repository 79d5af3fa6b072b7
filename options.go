package dcstore

import (
	"log/slog"

	"github.com/hupe1980/dcstore/codec"
	"github.com/hupe1980/dcstore/persistence"
	"github.com/hupe1980/dcstore/proxy"
	"github.com/hupe1980/dcstore/resource"
)

type options struct {
	codec             codec.Codec
	compression       persistence.Compression
	structuralVersion uint32
	predicate         proxy.Predicate
	workers           int
	verify            bool
	controller        *resource.Controller
	progress          persistence.ProgressFunc
	metricsCollector  MetricsCollector
	logger            *Logger
}

// Option configures Save, Scan, Load and Repository behavior.
type Option func(*options)

// WithCodec configures the codec used for the file directory.
//
// If nil is passed, codec.Default is used.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithCompression configures dataset block compression for saves.
func WithCompression(c persistence.Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithStructuralVersion writes files of an older supported layout.
func WithStructuralVersion(v uint32) Option {
	return func(o *options) {
		o.structuralVersion = v
	}
}

// WithPredicate sets the requirement predicate deciding the initial
// selection of scanned nodes. nil selects everything.
func WithPredicate(p proxy.Predicate) Option {
	return func(o *options) {
		o.predicate = p
	}
}

// WithWorkers bounds concurrent dataset reads while loading.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// WithVerify toggles digest verification while loading. On by default.
func WithVerify(verify bool) Option {
	return func(o *options) {
		o.verify = verify
	}
}

// WithController bounds memory, workers and IO of loads and saves.
func WithController(rc *resource.Controller) Option {
	return func(o *options) {
		o.controller = rc
	}
}

// WithProgress observes load progress.
func WithProgress(fn persistence.ProgressFunc) Option {
	return func(o *options) {
		o.progress = fn
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &dcstore.BasicMetricsCollector{}
//	tree, _ := dcstore.Scan(ctx, "scan.dcs", dcstore.WithMetricsCollector(metrics))
//	stats := metrics.GetStats()
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		codec:             codec.Default,
		compression:       persistence.CompressionZSTD,
		structuralVersion: persistence.StructuralVersion,
		verify:            true,
		metricsCollector:  NoopMetricsCollector{},
		logger:            NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}

func (o *options) writeOptions() []persistence.WriteOption {
	return []persistence.WriteOption{
		persistence.WithCodec(o.codec),
		persistence.WithCompression(o.compression),
		persistence.WithStructuralVersion(o.structuralVersion),
		persistence.WithWriteController(o.controller),
		persistence.WithWriteLogger(o.logger.Logger),
	}
}

func (o *options) materializeOptions() []persistence.MaterializeOption {
	opts := []persistence.MaterializeOption{
		persistence.WithVerify(o.verify),
		persistence.WithController(o.controller),
		persistence.WithLogger(o.logger.Logger),
	}
	if o.workers > 0 {
		opts = append(opts, persistence.WithWorkers(o.workers))
	}
	if o.progress != nil {
		opts = append(opts, persistence.WithProgress(o.progress))
	}
	return opts
}
