package rename

import (
	"errors"
	"io"
	"log/slog"
	"maps"
	"slices"

	"github.com/hupe1980/dcstore/datapath"
	"github.com/hupe1980/dcstore/proxy"
	"github.com/hupe1980/dcstore/store"
)

// ApplyToStore renames nodes of s in place, one pair at a time. Each pair's
// old path is first moved through the renames already applied, so a pair
// below a renamed container or matrix addresses the renamed node. A pair
// whose target already exists, or whose source is gone, is logged and
// skipped; the remaining pairs still apply. applied counts the pairs that
// took effect and err joins the skipped ones.
func ApplyToStore(s *store.Store, pairs []datapath.RenamePair, logger *slog.Logger) (applied int, err error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	var (
		done   []datapath.RenamePair
		failed []error
	)
	for _, pair := range pairs {
		pair = rebase(pair, done)
		if pair.Old == pair.New {
			applied++
			continue
		}
		steps := Split(pair)
		if len(steps) == 0 {
			logger.Warn("rename skipped", slog.String("pair", pair.String()), slog.String("reason", "levels differ"))
			continue
		}
		ok := true
		for _, step := range steps {
			if rerr := s.Rename(step, false); rerr != nil {
				logger.Warn("rename skipped",
					slog.String("pair", pair.String()),
					slog.String("error", rerr.Error()),
				)
				failed = append(failed, rerr)
				ok = false
				break
			}
			done = append(done, step)
		}
		if ok {
			applied++
			logger.Debug("renamed", slog.String("old", pair.Old.String()), slog.String("new", pair.New.String()))
		}
	}
	return applied, errors.Join(failed...)
}

// ApplyToTree renames nodes of a proxy tree and returns how many single-slot
// renames took effect.
func ApplyToTree(t *proxy.Tree, pairs []datapath.RenamePair) int {
	return t.ApplyRenames(steps(pairs))
}

// ApplyToPaths returns paths with every pair applied in order. A container
// or matrix rename moves every path below it.
func ApplyToPaths(paths []datapath.Path, pairs []datapath.RenamePair) []datapath.Path {
	st := steps(pairs)
	out := make([]datapath.Path, len(paths))
	for i, p := range paths {
		out[i] = datapath.RenameAll(p, st)
	}
	return out
}

// steps splits pairs into single-slot renames, rebasing each pair on the
// renames before it.
func steps(pairs []datapath.RenamePair) []datapath.RenamePair {
	var out []datapath.RenamePair
	for _, pair := range pairs {
		out = append(out, Split(rebase(pair, out))...)
	}
	return out
}

func rebase(pair datapath.RenamePair, done []datapath.RenamePair) datapath.RenamePair {
	pair.Old = datapath.RenameAll(pair.Old, done)
	return pair
}

// PathTable holds the path-valued parameters of a step, keyed by
// parameter name.
type PathTable map[string]datapath.Path

// Apply rewrites every entry through pairs and returns the names of the
// entries that changed, sorted. Entries named in created hold nodes the
// step creates; they follow renames of their ancestors only.
func (t PathTable) Apply(pairs []datapath.RenamePair, created ...string) []string {
	st := steps(pairs)
	var changed []string
	for name, p := range t {
		applicable := st
		if slices.Contains(created, name) {
			applicable = ancestorSteps(st, p.Level())
		}
		if np := datapath.RenameAll(p, applicable); np != p {
			t[name] = np
			changed = append(changed, name)
		}
	}
	slices.Sort(changed)
	return changed
}

// ancestorSteps keeps the single-slot renames above level l.
func ancestorSteps(st []datapath.RenamePair, l datapath.Level) []datapath.RenamePair {
	var out []datapath.RenamePair
	for _, s := range st {
		if s.Changed() < l {
			out = append(out, s)
		}
	}
	return out
}

// Paths returns the table's values, sorted and deduplicated.
func (t PathTable) Paths() []datapath.Path {
	return datapath.Sorted(slices.Collect(maps.Values(t)))
}

// Clone returns an independent copy.
func (t PathTable) Clone() PathTable { return maps.Clone(t) }
