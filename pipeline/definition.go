package pipeline

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/dcstore/errs"
)

// DefinitionVersion is the current pipeline definition version.
const DefinitionVersion = 1

type definition struct {
	Version int              `yaml:"version"`
	Steps   []stepDefinition `yaml:"steps"`
}

type stepDefinition struct {
	Type   string    `yaml:"type"`
	Params yaml.Node `yaml:"params"`
}

// LoadDefinition decodes a YAML pipeline definition:
//
//	version: 1
//	steps:
//	  - type: CreateContainer
//	    params:
//	      container: Image
//	  - type: RenameNode
//	    params:
//	      source: Image
//	      new_name: Volume
func LoadDefinition(r io.Reader, reg *Registry, opts ...Option) (*Pipeline, error) {
	const op = "LoadDefinition"

	var def definition
	if err := yaml.NewDecoder(r).Decode(&def); err != nil {
		return nil, errs.InvalidArgument(op, err)
	}
	if def.Version > DefinitionVersion {
		return nil, errs.InvalidArgument(op, fmt.Errorf("definition version %d is newer than %d", def.Version, DefinitionVersion))
	}

	steps := make([]Step, 0, len(def.Steps))
	for i, sd := range def.Steps {
		step, err := reg.New(sd.Type)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		if !sd.Params.IsZero() {
			if err := sd.Params.Decode(step); err != nil {
				return nil, errs.InvalidArgument(op, fmt.Errorf("step %d (%s): %w", i, sd.Type, err))
			}
		}
		steps = append(steps, step)
	}
	return New(steps, opts...), nil
}

// SaveDefinition writes p as YAML in the form LoadDefinition reads.
func SaveDefinition(w io.Writer, p *Pipeline) error {
	def := definition{Version: DefinitionVersion}
	for _, step := range p.Steps() {
		var node yaml.Node
		if err := node.Encode(step); err != nil {
			return err
		}
		def.Steps = append(def.Steps, stepDefinition{Type: step.Name(), Params: node})
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(def); err != nil {
		return err
	}
	return enc.Close()
}
