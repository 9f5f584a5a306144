// Copyright (C) 2024 rotasched authors
// Licensed under the GNU Affero General Public License v3.0 or later.
// See the LICENSE file for details.

package backtrack

import "github.com/rotasched/rotasched/solver"

// constraint is the internal representation every Model constraint
// kind satisfies: enough to forward-check it once all of its
// referenced variables (including any OnlyEnforceIf literals) have
// been assigned during search.
type constraint struct {
	kind     constraintKind
	lits     []solver.Literal // operand literals for boolAnd/boolOr
	expr     solver.LinearExpr
	op       solver.Op
	rhs      int
	ivars    []solver.IntVar
	tuples   [][]int
	enforce  []solver.Literal
}

type constraintKind int

const (
	kindLinear constraintKind = iota
	kindBoolAnd
	kindBoolOr
	kindAllowed
)

func (c *constraint) setEnforce(lits []solver.Literal) { c.enforce = lits }

func (c *constraint) refs() []solver.Var {
	var refs []solver.Var
	switch c.kind {
	case kindLinear:
		for _, t := range c.expr.Terms {
			refs = append(refs, t.Var)
		}
	case kindBoolAnd, kindBoolOr:
		for _, l := range c.lits {
			refs = append(refs, solver.Var(l.V))
		}
	case kindAllowed:
		for _, v := range c.ivars {
			refs = append(refs, solver.Var(v))
		}
	}
	for _, l := range c.enforce {
		refs = append(refs, solver.Var(l.V))
	}
	return refs
}

func linearConstraint(expr solver.LinearExpr, op solver.Op, rhs int) *constraint {
	return &constraint{kind: kindLinear, expr: expr, op: op, rhs: rhs}
}

func boolAndConstraint(lits []solver.Literal) *constraint {
	return &constraint{kind: kindBoolAnd, lits: lits}
}

func boolOrConstraint(lits []solver.Literal) *constraint {
	return &constraint{kind: kindBoolOr, lits: lits}
}

func allowedConstraint(vars []solver.IntVar, tuples [][]int) *constraint {
	return &constraint{kind: kindAllowed, ivars: vars, tuples: tuples}
}

// litTrue evaluates a literal given a fully-assigned value array.
func litTrue(l solver.Literal, assign []int) bool {
	v := assign[l.V]
	if l.Negated {
		return v == 0
	}
	return v == 1
}

// enforced reports whether c's guard (if any) holds given assign;
// an unguarded constraint is always enforced.
func (c *constraint) enforced(assign []int) bool {
	for _, l := range c.enforce {
		if !litTrue(l, assign) {
			return false
		}
	}
	return true
}

// satisfied evaluates c assuming every variable it references is
// already present in assign.
func (c *constraint) satisfied(assign []int) bool {
	if !c.enforced(assign) {
		return true
	}
	switch c.kind {
	case kindLinear:
		sum := c.expr.Offset
		for _, t := range c.expr.Terms {
			sum += t.Coeff * assign[t.Var]
		}
		return compare(sum, c.op, c.rhs)
	case kindBoolAnd:
		for _, l := range c.lits {
			if !litTrue(l, assign) {
				return false
			}
		}
		return true
	case kindBoolOr:
		for _, l := range c.lits {
			if litTrue(l, assign) {
				return true
			}
		}
		return false
	case kindAllowed:
		vals := make([]int, len(c.ivars))
		for i, v := range c.ivars {
			vals[i] = assign[v]
		}
		for _, tup := range c.tuples {
			if tupleEqual(tup, vals) {
				return true
			}
		}
		return false
	}
	return true
}

func tupleEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func compare(lhs int, op solver.Op, rhs int) bool {
	switch op {
	case solver.OpEq:
		return lhs == rhs
	case solver.OpNe:
		return lhs != rhs
	case solver.OpLt:
		return lhs < rhs
	case solver.OpLe:
		return lhs <= rhs
	case solver.OpGt:
		return lhs > rhs
	case solver.OpGe:
		return lhs >= rhs
	}
	return false
}
