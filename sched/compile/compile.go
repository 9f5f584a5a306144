// Copyright (C) 2024 rotasched authors
// Licensed under the GNU Affero General Public License v3.0 or later.
// See the LICENSE file for details.

// Package compile is the Constraint Compiler of spec.md §4.4: it
// lowers each declarative constraint kind into solver-level
// constraints referencing one or more grids' variables.
//
// Constraint kinds are a tagged union (spec.md §9 "Polymorphism over
// constraints"), not an inheritance hierarchy: every kind is a small
// data struct, and the compiler dispatches on its dynamic type into a
// pure function of (params, grids, model). Shared helpers
// (priorToBlock, rotationsFor, maskTerms, andVar, ...) are free
// functions reused across several kinds, the way plan/pir's rewrite
// passes in the teacher repo share small composable helpers rather
// than relying on a method-dispatch hierarchy.
package compile

import (
	"fmt"

	"github.com/rotasched/rotasched/groups"
	"github.com/rotasched/rotasched/registry"
	"github.com/rotasched/rotasched/sched"
	"github.com/rotasched/rotasched/solver"
)

// History is the per-resident, per-rotation count of prior
// occurrences supplied by config (spec.md §4.4: "the operand 'prior
// count' of a rotation t for resident r is the integer count of t in
// r's history").
type History map[int]map[int]int

// Count returns the prior count of rotation t for resident r, or 0
// if none was recorded.
func (h History) Count(r, t int) int {
	if h == nil {
		return 0
	}
	return h[r][t]
}

// GroupCount returns the sum of prior counts over every rotation in
// group for resident r.
func (h History) GroupCount(r int, group groups.Mask) int {
	if h == nil {
		return 0
	}
	total := 0
	d := group.Dims()
	for t := 0; t < d.Rotations; t++ {
		if groupSelectsRotation(group, r, t) {
			total += h[r][t]
		}
	}
	return total
}

// groupSelectsRotation reports whether t is selected for resident r
// at any block, which is how a rotation-axis (or mixed) group mask
// expresses "rotation t is in this group" independent of which block
// is being evaluated — prior-history accounting has no block axis.
func groupSelectsRotation(m groups.Mask, r, t int) bool {
	d := m.Dims()
	for b := 0; b < d.Blocks; b++ {
		if m.Get(r, b, t) {
			return true
		}
	}
	return false
}

// Compiler holds everything a Constraint's Apply method needs: the
// solver model being built, the materialized grids, the entity
// registry, the group/selector store, and the prior-history table.
type Compiler struct {
	Model   solver.Model
	Grids   *sched.Grids
	Reg     *registry.Registry
	Store   *groups.Store
	History History

	objective solver.LinearExpr
}

// New creates a Compiler over an already-built Grids bundle.
func New(m solver.Model, grids *sched.Grids, reg *registry.Registry, store *groups.Store, hist History) *Compiler {
	return &Compiler{Model: m, Grids: grids, Reg: reg, Store: store, History: hist}
}

// Constraint is one declarative constraint kind. Apply lowers it onto
// c's model; it returns an *Error (see errors.go) on any condition
// spec.md §7 classifies as a compile-time failure.
type Constraint interface {
	Apply(c *Compiler) error
}

// Compile applies every constraint in order, halting immediately (no
// partial model) on the first error, per spec.md §7's policy.
func (c *Compiler) Compile(constraints []Constraint) error {
	if err := checkIncompatiblePairs(constraints); err != nil {
		return err
	}
	for _, k := range constraints {
		if err := k.Apply(c); err != nil {
			return err
		}
	}
	return nil
}

// Objective returns the linear expression accumulated so far by any
// scoring constraints/score-table contributions added via
// AddScoreTerms (package score.go), for use by the Score Aggregator.
func (c *Compiler) Objective() solver.LinearExpr { return c.objective }

// AddScoreTerms folds additional weighted terms into the running
// objective (spec.md §4.5).
func (c *Compiler) AddScoreTerms(terms []solver.Term) {
	c.objective.Terms = append(c.objective.Terms, terms...)
}

func varsOf(bs []solver.BoolVar) []solver.Var {
	vs := make([]solver.Var, len(bs))
	for i, b := range bs {
		vs[i] = solver.Var(b)
	}
	return vs
}

func sumOf(bs []solver.BoolVar) solver.LinearExpr { return solver.Sum(varsOf(bs)...) }

func fmtTok(format string, args ...any) string { return fmt.Sprintf(format, args...) }
