// Copyright (C) 2024 rotasched authors
// Licensed under the GNU Affero General Public License v3.0 or later.
// See the LICENSE file for details.

package compile

import (
	"github.com/rotasched/rotasched/groups"
	"github.com/rotasched/rotasched/solver"
)

// ResidentBound is one resident's [nmin, nmax] window bound.
type ResidentBound struct {
	Resident int
	Min, Max int
}

// GroupCountPerResidentPerWindow lowers spec.md §4.4's
// GroupCountPerResidentPerWindow(group, bounds, window): in every
// sliding window of Window consecutive blocks, the number of group
// occurrences for a resident must lie within that resident's bound.
// Prior history in the group is subtracted once, up front, from both
// ends of the bound and applied identically to every window (the
// reading SPEC_FULL.md §8.1 settles for this package, as opposed to
// only discounting the first window).
type GroupCountPerResidentPerWindow struct {
	Group  groups.Mask
	Bounds []ResidentBound
	Window int
}

func (k *GroupCountPerResidentPerWindow) Apply(c *Compiler) error {
	if k.Window <= 0 {
		return errf(ErrInfeasibleAtCompile, "GroupCountPerResidentPerWindow", fmtErr("window %d <= 0", k.Window))
	}
	nb := c.Grids.Main.NumBlocks()
	for _, rb := range k.Bounds {
		r := rb.Resident
		prior := c.History.GroupCount(r, k.Group)
		lo, hi := rb.Min-prior, rb.Max-prior
		if lo < 0 {
			lo = 0
		}
		rotSet := rotationsFor(k.Group, r)
		for s := 0; s+k.Window <= nb; s++ {
			var terms []solver.Var
			for b := s; b < s+k.Window; b++ {
				for _, t := range rotSet {
					terms = append(terms, solver.Var(c.Grids.Main.At(r, b, t)))
				}
			}
			expr := solver.Sum(terms...)
			c.Model.AddLinear(expr, solver.OpLe, hi)
			c.Model.AddLinear(expr, solver.OpGe, lo)
		}
	}
	return nil
}

// TimeToFirst lowers spec.md §4.4's TimeToFirst(group, window): every
// resident must hold some rotation from Group at least once within
// the first Window blocks.
type TimeToFirst struct {
	Group  groups.Mask
	Window int
}

func (k *TimeToFirst) Apply(c *Compiler) error {
	nr, nb := c.Grids.Main.NumResidents(), c.Grids.Main.NumBlocks()
	window := k.Window
	if window > nb {
		window = nb
	}
	for r := 0; r < nr; r++ {
		rotSet := rotationsFor(k.Group, r)
		var terms []solver.Var
		for b := 0; b < window; b++ {
			for _, t := range rotSet {
				terms = append(terms, solver.Var(c.Grids.Main.At(r, b, t)))
			}
		}
		c.Model.AddLinear(solver.Sum(terms...), solver.OpGe, 1)
	}
	return nil
}

// RotationWindow lowers spec.md §4.4's RotationWindow(resident, rot,
// candidate_blocks): the resident must hold rot at at least one of
// the listed candidate blocks.
type RotationWindow struct {
	Resident        int
	Rotation        int
	CandidateBlocks []int
}

func (k *RotationWindow) Apply(c *Compiler) error {
	var terms []solver.Var
	for _, b := range k.CandidateBlocks {
		terms = append(terms, solver.Var(c.Grids.Main.At(k.Resident, b, k.Rotation)))
	}
	c.Model.AddLinear(solver.Sum(terms...), solver.OpGe, 1)
	return nil
}
