// Copyright (C) 2024 rotasched authors
// Licensed under the GNU Affero General Public License v3.0 or later.
// See the LICENSE file for details.

package backtrack

import (
	"time"

	"github.com/rotasched/rotasched/solver"
)

// Solve runs a depth-first, forward-checked backtracking search over
// m's variables in id order, invoking callback on every feasible
// solution found. Variables are conventionally allocated in an order
// that groups tightly-coupled variables together (e.g. all rotations
// for one resident/block pair consecutively), which is what lets
// forward checking prune effectively; Solve itself does not reorder
// variables.
//
// When m.Minimize was called and params.EnumerateAllSolutions is
// false, Solve performs branch-and-bound: solutions are reported in
// non-worsening objective order, and the search prunes any branch
// whose best-possible completion cannot beat the incumbent.
func (m *Model) Solve(params solver.Params, callback func(solver.SolutionContext)) (solver.Status, error) {
	s := &search{
		m:        m,
		assign:   makeUnassigned(len(m.vars)),
		params:   params,
		deadline: deadlineFrom(params),
		callback: callback,
	}
	if m.hasObjective {
		s.objTerms = m.objective.Terms
		s.minRemaining = make([]int, len(m.objective.Terms))
		s.maxRemaining = make([]int, len(m.objective.Terms))
		total := 0
		for i, t := range m.objective.Terms {
			lo, hi := m.vars[t.Var].lo, m.vars[t.Var].hi
			a, b := t.Coeff*lo, t.Coeff*hi
			if a > b {
				a, b = b, a
			}
			s.minRemaining[i] = a
			s.maxRemaining[i] = b
			total += a
		}
		s.bestObjectiveValid = false
	}

	order := make([]solver.Var, len(m.vars))
	for i := range order {
		order[i] = solver.Var(i)
	}
	s.order = order

	s.run(0)

	switch {
	case s.stopped && s.found > 0:
		return solver.StatusFeasible, nil
	case s.stopped:
		return solver.StatusUnknown, nil
	case s.found == 0:
		return solver.StatusInfeasible, nil
	case m.hasObjective && !params.EnumerateAllSolutions:
		return solver.StatusOptimal, nil
	default:
		return solver.StatusFeasible, nil
	}
}

func makeUnassigned(n int) []int {
	a := make([]int, n)
	for i := range a {
		a[i] = -1
	}
	return a
}

func deadlineFrom(p solver.Params) time.Time {
	if p.MaxTimeInSeconds <= 0 {
		return time.Time{}
	}
	return time.Now().Add(time.Duration(p.MaxTimeInSeconds * float64(time.Second)))
}

type search struct {
	m        *Model
	assign   []int
	order    []solver.Var
	params   solver.Params
	deadline time.Time
	callback func(solver.SolutionContext)

	found   int
	stopped bool

	objTerms           []solver.Term
	minRemaining       []int
	maxRemaining       []int
	bestObjective      int
	bestObjectiveValid bool

	nodes int
}

// run explores all completions of the partial assignment fixing
// order[:pos], returning early if the search was stopped by the
// callback or by the wall-time budget.
func (s *search) run(pos int) {
	if s.stopped {
		return
	}
	s.nodes++
	if s.nodes%1024 == 0 && !s.deadline.IsZero() && time.Now().After(s.deadline) {
		s.stopped = true
		return
	}
	if pos == len(s.order) {
		s.leaf()
		return
	}
	v := s.order[pos]
	info := s.m.vars[v]
	for val := info.lo; val <= info.hi; val++ {
		s.assign[v] = val
		if s.checkForwardConstraints(v) && s.checkBound(v, val) {
			s.run(pos + 1)
		}
		s.assign[v] = -1
		if s.stopped {
			return
		}
	}
}

// checkForwardConstraints evaluates every constraint referencing v
// whose other referenced variables are now all assigned.
func (s *search) checkForwardConstraints(v solver.Var) bool {
	for _, ci := range s.m.byVar[v] {
		c := s.m.cons[ci]
		if !allAssigned(c, s.assign) {
			continue
		}
		if !c.satisfied(s.assign) {
			return false
		}
	}
	return true
}

func allAssigned(c *constraint, assign []int) bool {
	for _, v := range c.refs() {
		if assign[v] == -1 {
			return false
		}
	}
	return true
}

// checkBound applies branch-and-bound pruning: if the best possible
// completion of the objective from this partial assignment cannot
// beat the incumbent, the branch is hopeless.
func (s *search) checkBound(v solver.Var, val int) bool {
	if !s.m.hasObjective || s.params.EnumerateAllSolutions || !s.bestObjectiveValid {
		return true
	}
	lower := s.m.objective.Offset
	for i, t := range s.objTerms {
		if s.assign[t.Var] != -1 {
			lower += t.Coeff * s.assign[t.Var]
		} else {
			lower += s.minRemaining[i]
		}
	}
	return lower < s.bestObjective
}

func (s *search) leaf() {
	s.found++
	obj := 0.0
	if s.m.hasObjective {
		sum := s.m.objective.Offset
		for _, t := range s.objTerms {
			sum += t.Coeff * s.assign[t.Var]
		}
		obj = float64(sum)
		if s.params.EnumerateAllSolutions || !s.bestObjectiveValid || sum < s.bestObjective {
			s.bestObjective = sum
			s.bestObjectiveValid = true
		}
	}
	snapshot := make([]int, len(s.assign))
	copy(snapshot, s.assign)
	ctx := &solutionContext{assign: snapshot, objective: obj, search: s}
	s.callback(ctx)
	if !s.params.EnumerateAllSolutions && s.m.hasObjective {
		return // keep searching for a strictly better solution
	}
	if !s.params.EnumerateAllSolutions && !s.m.hasObjective {
		s.stopped = true // "any feasible solution" per spec.md §4.6
	}
}

type solutionContext struct {
	assign    []int
	objective float64
	search    *search
}

func (c *solutionContext) Value(v solver.Var) int     { return c.assign[v] }
func (c *solutionContext) ObjectiveValue() float64    { return c.objective }
func (c *solutionContext) StopSearch()                { c.search.stopped = true }
