// Copyright (C) 2024 rotasched authors
// Licensed under the GNU Affero General Public License v3.0 or later.
// See the LICENSE file for details.

// Package backtrack is the reference solver.Model/solver.Solver
// backend shipped with this module: chronological backtracking with
// forward-checked constraint pruning and branch-and-bound objective
// minimization. It is adequate for the regression scenarios spec.md
// §8 specifies and for modestly sized schedules; it is not a
// replacement for a real CP-SAT engine, which spec.md §1 explicitly
// scopes out as an external collaborator. Swap in a production binding
// behind the same solver.Model/solver.Solver interfaces for anything
// beyond test and small-instance use.
package backtrack

import (
	"fmt"

	"github.com/rotasched/rotasched/solver"
)

type varInfo struct {
	name string
	lo   int
	hi   int
}

// Model is a solver.Model implementation that records variables and
// constraints in memory for later search by Solve.
type Model struct {
	vars []varInfo
	cons []*constraint
	hint map[solver.Var]int

	objective    solver.LinearExpr
	hasObjective bool

	// byVar maps a variable id to the indices of constraints that
	// reference it, used to forward-check a constraint as soon as
	// its last referenced variable is assigned during search.
	byVar [][]int
}

// New creates an empty Model.
func New() *Model {
	return &Model{hint: make(map[solver.Var]int)}
}

func (m *Model) NewBoolVar(name string) solver.BoolVar {
	id := len(m.vars)
	m.vars = append(m.vars, varInfo{name: name, lo: 0, hi: 1})
	m.byVar = append(m.byVar, nil)
	return solver.BoolVar(id)
}

func (m *Model) NewIntVar(lo, hi int, name string) solver.IntVar {
	id := len(m.vars)
	m.vars = append(m.vars, varInfo{name: name, lo: lo, hi: hi})
	m.byVar = append(m.byVar, nil)
	return solver.IntVar(id)
}

func (m *Model) addConstraint(c *constraint) solver.Constraint {
	idx := len(m.cons)
	m.cons = append(m.cons, c)
	for _, v := range c.refs() {
		m.byVar[v] = append(m.byVar[v], idx)
	}
	return &constraintHandle{m: m, idx: idx}
}

func (m *Model) AddLinear(expr solver.LinearExpr, op solver.Op, rhs int) solver.Constraint {
	return m.addConstraint(linearConstraint(expr, op, rhs))
}

func (m *Model) AddBoolAnd(lits ...solver.Literal) solver.Constraint {
	return m.addConstraint(boolAndConstraint(lits))
}

func (m *Model) AddBoolOr(lits ...solver.Literal) solver.Constraint {
	return m.addConstraint(boolOrConstraint(lits))
}

func (m *Model) AddImplication(a, b solver.Literal) {
	m.addConstraint(boolOrConstraint([]solver.Literal{negate(a), b}))
}

func (m *Model) AddAllowedAssignments(vars []solver.IntVar, tuples [][]int) solver.Constraint {
	return m.addConstraint(allowedConstraint(vars, tuples))
}

func (m *Model) AddHint(v solver.Var, value int) { m.hint[v] = value }

func (m *Model) Minimize(expr solver.LinearExpr) {
	m.objective = expr
	m.hasObjective = true
}

func negate(l solver.Literal) solver.Literal { return solver.Literal{V: l.V, Negated: !l.Negated} }

// constraintHandle implements solver.Constraint's reification: it
// attaches enforcement literals to the constraint it was returned for.
type constraintHandle struct {
	m   *Model
	idx int
}

func (h *constraintHandle) OnlyEnforceIf(lits ...solver.Literal) solver.Constraint {
	h.m.cons[h.idx].setEnforce(lits)
	for _, l := range lits {
		h.m.byVar[l.V] = append(h.m.byVar[l.V], h.idx)
	}
	return h
}

func (m *Model) String() string {
	return fmt.Sprintf("backtrack.Model{%d vars, %d constraints}", len(m.vars), len(m.cons))
}
