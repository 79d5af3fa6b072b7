package proxy

import (
	"io"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/dcstore/datapath"
	"github.com/hupe1980/dcstore/errs"
)

// SelectionVersion is the current selection document version.
const SelectionVersion = 1

// Selection is the saved form of a tree's flags: the list of selected paths.
type Selection struct {
	Version  int             `yaml:"version"`
	Source   string          `yaml:"source,omitempty"`
	Selected []datapath.Path `yaml:"selected"`
}

// Selection returns the selection document of t.
func (t *Tree) Selection(source string) *Selection {
	return &Selection{
		Version:  SelectionVersion,
		Source:   source,
		Selected: t.SelectedPaths(),
	}
}

// SaveSelection writes the flags of t as YAML.
func SaveSelection(w io.Writer, t *Tree, source string) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(t.Selection(source)); err != nil {
		return err
	}
	return enc.Close()
}

// LoadSelection reads a document written by SaveSelection.
func LoadSelection(r io.Reader) (*Selection, error) {
	var sel Selection
	if err := yaml.NewDecoder(r).Decode(&sel); err != nil {
		return nil, errs.InvalidArgument("LoadSelection", err)
	}
	if sel.Version == 0 {
		sel.Version = SelectionVersion
	}
	return &sel, nil
}

// ApplySelection selects exactly the nodes listed in sel and returns the
// listed paths that do not exist in t.
func (t *Tree) ApplySelection(sel *Selection) []datapath.Path {
	t.SelectAll(false)
	var missing []datapath.Path
	for _, p := range sel.Selected {
		if err := t.SetSelected(p, true); err != nil {
			missing = append(missing, p)
		}
	}
	return missing
}
