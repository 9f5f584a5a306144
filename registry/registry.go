// Copyright (C) 2024 rotasched authors
// Licensed under the GNU Affero General Public License v3.0 or later.
// See the LICENSE file for details.

// Package registry interns resident, block, rotation and group names
// into small stable indices, the way ion.Symtab interns ion field
// names into Symbols. Every other package in this module addresses
// entities by index; Registry is the only place names are looked up.
package registry

import (
	"fmt"

	"github.com/dchest/siphash"
	"golang.org/x/exp/slices"
)

// Axis identifies which of the three grid dimensions a name belongs to.
type Axis int

const (
	AxisResident Axis = iota
	AxisBlock
	AxisRotation
)

func (a Axis) String() string {
	switch a {
	case AxisResident:
		return "resident"
	case AxisBlock:
		return "block"
	case AxisRotation:
		return "rotation"
	default:
		return "unknown"
	}
}

// NameNotFoundError is returned when a selector or config entry
// references a name that was never declared.
type NameNotFoundError struct {
	Token      string
	Namespace  string // e.g. "resident", "block", "rotation", "group"
	Candidates []string
}

func (e *NameNotFoundError) Error() string {
	return fmt.Sprintf("name not found: %q is not a declared %s", e.Token, e.Namespace)
}

// axisTable interns the names of one axis (residents, blocks, or
// rotations) into contiguous indices in declaration order.
type axisTable struct {
	names   []string
	toindex map[string]int
}

func newAxisTable() *axisTable {
	return &axisTable{toindex: make(map[string]int)}
}

func (t *axisTable) intern(name string) int {
	if idx, ok := t.toindex[name]; ok {
		return idx
	}
	idx := len(t.names)
	t.names = append(t.names, name)
	t.toindex[name] = idx
	return idx
}

func (t *axisTable) lookup(name string) (int, bool) {
	idx, ok := t.toindex[name]
	return idx, ok
}

// Registry resolves resident/block/rotation/group names to stable
// indices. It is built once at config load time and is immutable for
// the remainder of the process, matching the data model's lifecycle
// rule that entities are created at config load and never mutated
// during solve.
type Registry struct {
	residents  *axisTable
	blocks     *axisTable
	rotations  *axisTable
	groupAxis  map[string]Axis // group name -> axis it selects on
	groupOrder []string
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		residents: newAxisTable(),
		blocks:    newAxisTable(),
		rotations: newAxisTable(),
		groupAxis: make(map[string]Axis),
	}
}

// DeclareResident interns a resident name, returning its stable index.
func (r *Registry) DeclareResident(name string) int { return r.residents.intern(name) }

// DeclareBlock interns a block name, returning its stable index.
func (r *Registry) DeclareBlock(name string) int { return r.blocks.intern(name) }

// DeclareRotation interns a rotation name, returning its stable index.
func (r *Registry) DeclareRotation(name string) int { return r.rotations.intern(name) }

// DeclareGroup records that name is a group selecting entities on the
// given axis. Declaring the same name twice on different axes is a
// configuration error the caller must reject before calling this.
func (r *Registry) DeclareGroup(name string, axis Axis) {
	if _, ok := r.groupAxis[name]; !ok {
		r.groupOrder = append(r.groupOrder, name)
	}
	r.groupAxis[name] = axis
}

// NumResidents, NumBlocks and NumRotations report the size of each axis.
func (r *Registry) NumResidents() int { return len(r.residents.names) }
func (r *Registry) NumBlocks() int    { return len(r.blocks.names) }
func (r *Registry) NumRotations() int { return len(r.rotations.names) }

// ResidentName, BlockName and RotationName return the declared display
// name for an interned index.
func (r *Registry) ResidentName(i int) string { return r.residents.names[i] }
func (r *Registry) BlockName(i int) string    { return r.blocks.names[i] }
func (r *Registry) RotationName(i int) string { return r.rotations.names[i] }

// Residents, Blocks and Rotations return the declared names in
// declaration order.
func (r *Registry) Residents() []string { return slices.Clone(r.residents.names) }
func (r *Registry) Blocks() []string    { return slices.Clone(r.blocks.names) }
func (r *Registry) Rotations() []string { return slices.Clone(r.rotations.names) }

// Resident resolves a resident name to its index.
func (r *Registry) Resident(name string) (int, error) {
	return r.resolveAxis(r.residents, name, "resident")
}

// Block resolves a block name to its index.
func (r *Registry) Block(name string) (int, error) {
	return r.resolveAxis(r.blocks, name, "block")
}

// Rotation resolves a rotation name to its index.
func (r *Registry) Rotation(name string) (int, error) {
	return r.resolveAxis(r.rotations, name, "rotation")
}

func (r *Registry) resolveAxis(t *axisTable, name, namespace string) (int, error) {
	idx, ok := t.lookup(name)
	if !ok {
		return 0, &NameNotFoundError{Token: name, Namespace: namespace, Candidates: slices.Clone(t.names)}
	}
	return idx, nil
}

// GroupAxis reports the axis a declared group name selects on.
func (r *Registry) GroupAxis(name string) (Axis, bool) {
	a, ok := r.groupAxis[name]
	return a, ok
}

// IsGroup reports whether name was declared via DeclareGroup (as
// opposed to being a single-entity name).
func (r *Registry) IsGroup(name string) bool {
	_, ok := r.groupAxis[name]
	return ok
}

// Groups returns declared group names in declaration order.
func (r *Registry) Groups() []string { return slices.Clone(r.groupOrder) }

// Resolve looks up name as either a single entity on axis or, failing
// that, as a group, returning NameNotFoundError with every plausible
// candidate namespace listed (residents/blocks/rotations/groups all
// share one flat selector namespace per spec.md §4.2).
func (r *Registry) Resolve(name string) (kind ResolveKind, axis Axis, index int, err error) {
	if idx, ok := r.residents.lookup(name); ok {
		return ResolveEntity, AxisResident, idx, nil
	}
	if idx, ok := r.blocks.lookup(name); ok {
		return ResolveEntity, AxisBlock, idx, nil
	}
	if idx, ok := r.rotations.lookup(name); ok {
		return ResolveEntity, AxisRotation, idx, nil
	}
	if a, ok := r.groupAxis[name]; ok {
		return ResolveGroup, a, 0, nil
	}
	return 0, 0, 0, &NameNotFoundError{
		Token:      name,
		Namespace:  "resident, block, rotation, or group",
		Candidates: r.allNames(),
	}
}

func (r *Registry) allNames() []string {
	all := make([]string, 0, len(r.residents.names)+len(r.blocks.names)+len(r.rotations.names)+len(r.groupOrder))
	all = append(all, r.residents.names...)
	all = append(all, r.blocks.names...)
	all = append(all, r.rotations.names...)
	all = append(all, r.groupOrder...)
	return all
}

// ResolveKind distinguishes a single-entity resolution from a group
// resolution in Registry.Resolve.
type ResolveKind int

const (
	ResolveEntity ResolveKind = iota
	ResolveGroup
)

// Fingerprint hashes the declared name set (in declaration order) with
// SipHash-2-4 (the 128-bit variant, keeping its low 64 bits), the same
// hash family vm/interphash.go uses for ion field names, giving a stable short identifier for a scenario's entity set
// suitable for labeling a --dump-model output or a solver cache entry.
func (r *Registry) Fingerprint() uint64 {
	var buf []byte
	for _, names := range [][]string{r.residents.names, r.blocks.names, r.rotations.names, r.groupOrder} {
		for _, n := range names {
			buf = append(buf, n...)
			buf = append(buf, 0)
		}
		buf = append(buf, 0xff)
	}
	lo, _ := siphash.Hash128(0, 0, buf)
	return lo
}
