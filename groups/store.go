// Copyright (C) 2024 rotasched authors
// Licensed under the GNU Affero General Public License v3.0 or later.
// See the LICENSE file for details.

package groups

import (
	"fmt"

	"github.com/rotasched/rotasched/registry"
)

// Store holds, for every declared group or single-entity name, the
// canonical 3-D mask it broadcasts to. Broadcasting is uniform across
// axes so that the DSL's and/or/not combinators are pure elementwise
// operations regardless of which axis an operand's name lives on
// (spec.md §4.1).
type Store struct {
	reg  *registry.Registry
	dims Dims

	// bitmap per axis per group/entity name: a 1-D membership set
	// over that axis, broadcast lazily into a 3-D mask on request.
	residentSets map[string]map[int]bool
	blockSets    map[string]map[int]bool
	rotationSets map[string]map[int]bool
}

// NewStore creates a Store over the given Registry, sized to the
// Registry's current axis counts. Call this after all entities and
// groups have been declared.
func NewStore(reg *registry.Registry) *Store {
	return &Store{
		reg: reg,
		dims: Dims{
			Residents: reg.NumResidents(),
			Blocks:    reg.NumBlocks(),
			Rotations: reg.NumRotations(),
		},
		residentSets: make(map[string]map[int]bool),
		blockSets:    make(map[string]map[int]bool),
		rotationSets: make(map[string]map[int]bool),
	}
}

// AddResidentMember records residentIdx as a member of the
// resident-axis group named name (or of that resident's own singleton
// set, when name equals the resident's own declared name).
func (s *Store) AddResidentMember(name string, residentIdx int) {
	set, ok := s.residentSets[name]
	if !ok {
		set = make(map[int]bool)
		s.residentSets[name] = set
	}
	set[residentIdx] = true
}

// AddBlockMember records block membership in a block-axis group.
func (s *Store) AddBlockMember(name string, blockIdx int) {
	set, ok := s.blockSets[name]
	if !ok {
		set = make(map[int]bool)
		s.blockSets[name] = set
	}
	set[blockIdx] = true
}

// AddRotationMember records rotation membership in a rotation-axis group.
func (s *Store) AddRotationMember(name string, rotationIdx int) {
	set, ok := s.rotationSets[name]
	if !ok {
		set = make(map[int]bool)
		s.rotationSets[name] = set
	}
	set[rotationIdx] = true
}

// BlockMaskByOrdinal selects the slab [:, b, :] for the n'th declared
// block (1-based), implementing the selector DSL's `Block NUM` atom
// (spec.md §4.2).
func (s *Store) BlockMaskByOrdinal(n int) (Mask, error) {
	idx := n - 1
	if idx < 0 || idx >= s.dims.Blocks {
		return nil, fmt.Errorf("Block %d: only %d blocks declared", n, s.dims.Blocks)
	}
	return s.broadcastBlock(map[int]bool{idx: true}), nil
}

// Mask resolves name (a group or single-entity name) to its canonical
// broadcast 3-D mask: a resident group selects the slab [res∈G, :, :],
// a block name selects [:, b, :], a rotation name [:, :, t], and a
// single-entity name is its singleton slab.
func (s *Store) Mask(name string) (Mask, error) {
	kind, axis, idx, err := s.reg.Resolve(name)
	if err != nil {
		return nil, err
	}
	if kind == registry.ResolveEntity {
		switch axis {
		case registry.AxisResident:
			return s.broadcastResident(map[int]bool{idx: true}), nil
		case registry.AxisBlock:
			return s.broadcastBlock(map[int]bool{idx: true}), nil
		default:
			return s.broadcastRotation(map[int]bool{idx: true}), nil
		}
	}
	switch axis {
	case registry.AxisResident:
		return s.broadcastResident(s.residentSets[name]), nil
	case registry.AxisBlock:
		return s.broadcastBlock(s.blockSets[name]), nil
	default:
		return s.broadcastRotation(s.rotationSets[name]), nil
	}
}

// broadcastResident builds a mask selecting all (r, *, *) with r in set.
// When set covers at least 1/denseThreshold of the resident axis the
// result is pre-materialized into a dense bitset (cheap to scan
// repeatedly); otherwise it stays a lazy per-axis membership test.
func (s *Store) broadcastResident(set map[int]bool) Mask {
	m := &axisBroadcastMask{dims: s.dims, axis: registry.AxisResident, set: set}
	if len(set)*denseThreshold >= s.dims.Residents {
		return materialize(m)
	}
	return m
}

func (s *Store) broadcastBlock(set map[int]bool) Mask {
	m := &axisBroadcastMask{dims: s.dims, axis: registry.AxisBlock, set: set}
	if len(set)*denseThreshold >= s.dims.Blocks {
		return materialize(m)
	}
	return m
}

func (s *Store) broadcastRotation(set map[int]bool) Mask {
	m := &axisBroadcastMask{dims: s.dims, axis: registry.AxisRotation, set: set}
	if len(set)*denseThreshold >= s.dims.Rotations {
		return materialize(m)
	}
	return m
}

// axisBroadcastMask is the leaf of a lazy mask expression: a 1-D
// membership set on one axis, broadcast across the other two.
type axisBroadcastMask struct {
	dims Dims
	axis registry.Axis
	set  map[int]bool
}

func (m *axisBroadcastMask) Dims() Dims { return m.dims }

func (m *axisBroadcastMask) Get(r, b, t int) bool {
	switch m.axis {
	case registry.AxisResident:
		return m.set[r]
	case registry.AxisBlock:
		return m.set[b]
	default:
		return m.set[t]
	}
}

func (m *axisBroadcastMask) Iterate(fn func(r, b, t int)) {
	d := m.dims
	for r := 0; r < d.Residents; r++ {
		for b := 0; b < d.Blocks; b++ {
			for t := 0; t < d.Rotations; t++ {
				if m.Get(r, b, t) {
					fn(r, b, t)
				}
			}
		}
	}
}
