package pipeline

import (
	"fmt"
	"maps"
	"slices"

	"github.com/hupe1980/dcstore/errs"
)

// Registry maps step names to factories.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// DefaultRegistry returns a new registry holding the built-in steps.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("CreateContainer", func() Step { return &CreateContainer{} })
	r.Register("CreateMatrix", func() Step { return &CreateMatrix{} })
	r.Register("CreateArray", func() Step { return &CreateArray{} })
	r.Register("RenameNode", func() Step { return &RenameNode{} })
	r.Register("DeleteNode", func() Step { return &DeleteNode{} })
	r.Register("ImportFile", func() Step { return &ImportFile{} })
	r.Register("ExportFile", func() Step { return &ExportFile{} })
	return r
}

// Register adds or replaces a factory.
func (r *Registry) Register(name string, f Factory) {
	r.factories[name] = f
}

// New creates a step by name.
func (r *Registry) New(name string) (Step, error) {
	f, ok := r.factories[name]
	if !ok {
		return nil, errs.NotFound("Registry.New", fmt.Sprintf("step %q", name))
	}
	return f(), nil
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	return slices.Sorted(maps.Keys(r.factories))
}
