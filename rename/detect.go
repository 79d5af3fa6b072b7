// Package rename infers node renames from before/after path sets and
// propagates them to a store, proxy trees and path tables.
//
// Detection is conservative: an old path with more than one compatible
// candidate, or a candidate claimed by more than one old path, yields no
// pair. Fewer renames are reported rather than a wrong one, and detection
// never fails.
package rename

import (
	"slices"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/google/uuid"

	"github.com/hupe1980/dcstore/array"
	"github.com/hupe1980/dcstore/datapath"
	"github.com/hupe1980/dcstore/store"
)

// Oracle reports whether the node at newPath could be the node that was
// at oldPath.
type Oracle func(oldPath, newPath datapath.Path) bool

// Input is the evidence for one step's dry run.
type Input struct {
	// Old holds every path known before the step ran.
	Old []datapath.Path
	// New holds every path known after the step ran.
	New []datapath.Path
	// Created maps the step's creation ids to the paths it created. These
	// paths are never rename sources or targets.
	Created map[uuid.UUID]datapath.Path
	// Compatible is required.
	Compatible Oracle
}

// StoreOracle compares nodes of before and after. Both paths must resolve
// at the same level: containers need the same geometry topology (or both
// none), matrices the same kind and tuple count, arrays the same scalar
// kind and component dims (any dims for neighbor lists).
func StoreOracle(before, after *store.Store) Oracle {
	return func(oldPath, newPath datapath.Path) bool {
		if oldPath.Level() != newPath.Level() {
			return false
		}
		switch oldPath.Level() {
		case datapath.LevelContainer:
			a, err := before.ContainerAt(oldPath)
			if err != nil {
				return false
			}
			b, err := after.ContainerAt(newPath)
			if err != nil {
				return false
			}
			return store.SameTopology(a.Geometry(), b.Geometry())
		case datapath.LevelMatrix:
			a, err := before.MatrixAt(oldPath)
			if err != nil {
				return false
			}
			b, err := after.MatrixAt(newPath)
			if err != nil {
				return false
			}
			return a.Kind() == b.Kind() && a.NumTuples() == b.NumTuples()
		case datapath.LevelArray:
			a, err := before.ArrayAt(oldPath)
			if err != nil {
				return false
			}
			b, err := after.ArrayAt(newPath)
			if err != nil {
				return false
			}
			return array.Compatible(a, b)
		default:
			return false
		}
	}
}

// Detect returns the rename pairs supported by in, sorted by old path.
// Pairs implied by an ancestor rename (C1/M -> C2/M after C1 -> C2) are
// folded into the ancestor.
func Detect(in Input) []datapath.RenamePair {
	if in.Compatible == nil {
		return nil
	}

	created := make(map[datapath.Path]struct{}, len(in.Created))
	for _, p := range in.Created {
		created[p] = struct{}{}
	}
	oldSet := make(map[datapath.Path]struct{}, len(in.Old))
	for _, p := range in.Old {
		oldSet[p] = struct{}{}
	}
	newSet := make(map[datapath.Path]struct{}, len(in.New))
	for _, p := range in.New {
		newSet[p] = struct{}{}
	}

	var olds, news []datapath.Path
	for p := range oldSet {
		if _, same := newSet[p]; !same && !isCreated(created, p) {
			olds = append(olds, p)
		}
	}
	for p := range newSet {
		if _, same := oldSet[p]; !same && !isCreated(created, p) {
			news = append(news, p)
		}
	}
	olds = datapath.Sorted(olds)
	news = datapath.Sorted(news)

	type tentative struct {
		old    datapath.Path
		target uint32
	}

	var pairs []tentative
	claimed := roaring.New()
	ambiguous := roaring.New()

	for _, o := range olds {
		matches := roaring.New()
		for i, n := range news {
			if in.Compatible(o, n) {
				matches.Add(uint32(i))
			}
		}
		if matches.GetCardinality() != 1 {
			continue
		}
		target := matches.Minimum()
		if claimed.Contains(target) {
			ambiguous.Add(target)
		}
		claimed.Add(target)
		pairs = append(pairs, tentative{old: o, target: target})
	}

	out := make([]datapath.RenamePair, 0, len(pairs))
	for _, p := range pairs {
		if ambiguous.Contains(p.target) {
			continue
		}
		out = append(out, datapath.RenamePair{Old: p.old, New: news[p.target]})
	}
	return fold(out)
}

// isCreated reports whether p or one of its ancestors was created.
func isCreated(created map[datapath.Path]struct{}, p datapath.Path) bool {
	for l := datapath.LevelContainer; l <= p.Level(); l++ {
		if _, ok := created[p.Truncate(l)]; ok {
			return true
		}
	}
	return false
}

// fold drops pairs that earlier, shallower pairs already account for.
func fold(pairs []datapath.RenamePair) []datapath.RenamePair {
	byLevel := slices.Clone(pairs)
	slices.SortStableFunc(byLevel, func(a, b datapath.RenamePair) int {
		return int(a.Old.Level()) - int(b.Old.Level())
	})

	var kept, steps []datapath.RenamePair
	for _, pair := range byLevel {
		if datapath.RenameAll(pair.Old, steps) == pair.New {
			continue
		}
		kept = append(kept, pair)
		steps = append(steps, Split(pair)...)
	}
	slices.SortFunc(kept, func(a, b datapath.RenamePair) int {
		return datapath.Compare(a.Old, b.Old)
	})
	return kept
}

// Split decomposes pair into single-slot renames applied top-down: the
// container first, then the matrix inside the renamed container, then the
// array. Pairs between different levels yield nothing.
func Split(pair datapath.RenamePair) []datapath.RenamePair {
	if pair.Old.Level() != pair.New.Level() || pair.Old.Level() == datapath.LevelNone {
		return nil
	}
	if pair.Changed() != datapath.LevelNone {
		return []datapath.RenamePair{pair}
	}

	var steps []datapath.RenamePair
	cur := pair.Old
	if cur.Container != pair.New.Container {
		steps = append(steps, datapath.RenamePair{
			Old: datapath.ContainerPath(cur.Container),
			New: datapath.ContainerPath(pair.New.Container),
		})
		cur.Container = pair.New.Container
	}
	if cur.Matrix != pair.New.Matrix {
		steps = append(steps, datapath.RenamePair{
			Old: datapath.MatrixPath(cur.Container, cur.Matrix),
			New: datapath.MatrixPath(cur.Container, pair.New.Matrix),
		})
		cur.Matrix = pair.New.Matrix
	}
	if cur.Array != pair.New.Array {
		steps = append(steps, datapath.RenamePair{Old: cur, New: pair.New})
	}
	return steps
}
