// Copyright (C) 2024 rotasched authors
// Licensed under the GNU Affero General Public License v3.0 or later.
// See the LICENSE file for details.

package compile

import (
	"github.com/rotasched/rotasched/groups"
	"github.com/rotasched/rotasched/solver"
)

// rotationsFor returns the rotation indices mask selects for resident
// r, over any block. Selector groups broadcast uniformly across axes
// (spec.md §4.1), so "rotation t belongs to this group" is
// well-defined independent of which block is being considered; a
// mask that happens to vary by block for a fixed (r, t) is read as
// "selected if selected at any block".
func rotationsFor(mask groups.Mask, r int) []int {
	d := mask.Dims()
	var out []int
	for t := 0; t < d.Rotations; t++ {
		for b := 0; b < d.Blocks; b++ {
			if mask.Get(r, b, t) {
				out = append(out, t)
				break
			}
		}
	}
	return out
}

// RangeBound is an optional inclusive integer bound: (*RangeBound)(nil)
// means "unbounded on this side".
type RangeBound = *int

// Bound returns a RangeBound wrapping v, for callers constructing
// constraints with a literal bound.
func Bound(v int) RangeBound { return &v }

// Coverage lowers spec.md §4.4's Coverage(rotations, blocks?, rmin?,
// rmax?, allowed?): bounds (and/or restricts to an allowed set) the
// number of residents assigned to any rotation in Rotations, block by
// block.
type Coverage struct {
	Rotations []int
	Blocks    []int // nil means every block
	RMin      RangeBound
	RMax      RangeBound
	Allowed   []int // nil means no table restriction
}

func (k *Coverage) Apply(c *Compiler) error {
	if k.RMin != nil && k.RMax != nil && *k.RMin > *k.RMax {
		return errf(ErrInfeasibleAtCompile, "Coverage", fmtErr("rmin %d > rmax %d", *k.RMin, *k.RMax))
	}
	blocks := k.Blocks
	if blocks == nil {
		blocks = allIndices(c.Grids.Main.NumBlocks())
	}
	nr := c.Grids.Main.NumResidents()
	for _, b := range blocks {
		var terms []solver.Var
		for _, t := range k.Rotations {
			for r := 0; r < nr; r++ {
				terms = append(terms, solver.Var(c.Grids.Main.At(r, b, t)))
			}
		}
		sb := c.Model.NewIntVar(0, nr, fmtTok("coverage_S[b%d]", b))
		expr := solver.Sum(terms...)
		expr.Terms = append(expr.Terms, solver.Term{Var: solver.Var(sb), Coeff: -1})
		c.Model.AddLinear(expr, solver.OpEq, 0)
		if k.RMin != nil {
			c.Model.AddLinear(solver.Sum(solver.Var(sb)), solver.OpGe, *k.RMin)
		}
		if k.RMax != nil {
			c.Model.AddLinear(solver.Sum(solver.Var(sb)), solver.OpLe, *k.RMax)
		}
		if k.Allowed != nil {
			tuples := make([][]int, len(k.Allowed))
			for i, v := range k.Allowed {
				tuples[i] = []int{v}
			}
			c.Model.AddAllowedAssignments([]solver.IntVar{sb}, tuples)
		}
	}
	return nil
}

// RotationCount lowers RotationCount(rot, map: resident -> (nmin,
// nmax), prior_counts?): (Σ_b x[r,b,rot]) + prior[r] ∈ [nmin, nmax]
// for each resident named in Bounds.
type RotationCount struct {
	Rotation int
	Bounds   map[int][2]int // resident -> [nmin, nmax]
	UseHistory bool
}

func (k *RotationCount) Apply(c *Compiler) error {
	nb := c.Grids.Main.NumBlocks()
	for r, nn := range k.Bounds {
		nmin, nmax := nn[0], nn[1]
		prior := 0
		if k.UseHistory {
			prior = c.History.Count(r, k.Rotation)
		}
		if prior > nmax {
			return errf(ErrInfeasibleAtCompile, "RotationCount", fmtErr("resident %s: prior count %d exceeds nmax %d", c.Reg.ResidentName(r), prior, nmax))
		}
		var terms []solver.Var
		for b := 0; b < nb; b++ {
			terms = append(terms, solver.Var(c.Grids.Main.At(r, b, k.Rotation)))
		}
		expr := solver.Sum(terms...).Plus(prior)
		c.Model.AddLinear(expr, solver.OpGe, nmin)
		c.Model.AddLinear(expr, solver.OpLe, nmax)
	}
	return nil
}

// RotationCountNot lowers RotationCountNot(rot, k): Σ_b x[r,b,rot] ≠ k
// for every resident.
type RotationCountNot struct {
	Rotation int
	K        int
}

func (k *RotationCountNot) Apply(c *Compiler) error {
	nr, nb := c.Grids.Main.NumResidents(), c.Grids.Main.NumBlocks()
	for r := 0; r < nr; r++ {
		var terms []solver.Var
		for b := 0; b < nb; b++ {
			terms = append(terms, solver.Var(c.Grids.Main.At(r, b, k.Rotation)))
		}
		c.Model.AddLinear(solver.Sum(terms...), solver.OpNe, k.K)
	}
	return nil
}

// PrereqGroup is one (group mask, required count) entry of a
// Prerequisite or IneligibleAfter constraint.
type PrereqGroup struct {
	Group    groups.Mask
	Required int
}

// priorToBlock returns the running count, for resident r and group g,
// of rotations in g assigned over blocks [0, upto), plus r's prior
// history in g.
func priorToBlock(c *Compiler, r, upto int, g groups.Mask) solver.LinearExpr {
	rotSet := rotationsFor(g, r)
	var terms []solver.Var
	for b := 0; b < upto; b++ {
		for _, t := range rotSet {
			terms = append(terms, solver.Var(c.Grids.Main.At(r, b, t)))
		}
	}
	return solver.Sum(terms...).Plus(c.History.GroupCount(r, g))
}

// Prerequisite lowers spec.md §4.4's Prerequisite(rot, {group:
// required_count}, prior_counts): whenever x[r,b_i,rot]=1, every
// listed group's running count (prior-to-block-i plus history) must
// meet its required count — conjunctively across groups.
type Prerequisite struct {
	Rotation int
	Groups   []PrereqGroup
}

func (k *Prerequisite) Apply(c *Compiler) error {
	nr, nb := c.Grids.Main.NumResidents(), c.Grids.Main.NumBlocks()
	for r := 0; r < nr; r++ {
		for i := 0; i < nb; i++ {
			trigger := c.Grids.Main.At(r, i, k.Rotation)
			for _, pg := range k.Groups {
				p := priorToBlock(c, r, i, pg.Group)
				c.Model.AddLinear(p, solver.OpGe, pg.Required).OnlyEnforceIf(trigger.Lit())
			}
		}
	}
	return nil
}

// IneligibleAfter lowers spec.md §4.4's IneligibleAfter(rot, {group:
// k}): the dual of Prerequisite — whenever x[r,b_i,rot]=1, at least
// one group's running count must be unsatisfied (below k).
type IneligibleAfter struct {
	Rotation int
	Groups   []PrereqGroup
}

func (k *IneligibleAfter) Apply(c *Compiler) error {
	nr, nb := c.Grids.Main.NumResidents(), c.Grids.Main.NumBlocks()
	for r := 0; r < nr; r++ {
		for i := 0; i < nb; i++ {
			trigger := c.Grids.Main.At(r, i, k.Rotation)
			var unsats []solver.Literal
			for gi, pg := range k.Groups {
				p := priorToBlock(c, r, i, pg.Group)
				unsat := c.Model.NewBoolVar(fmtTok("unsat[r%d,b%d,g%d]", r, i, gi))
				c.Model.AddLinear(p, solver.OpLe, pg.Required-1).OnlyEnforceIf(unsat.Lit())
				c.Model.AddLinear(p, solver.OpGe, pg.Required).OnlyEnforceIf(unsat.Not())
				unsats = append(unsats, unsat.Lit())
			}
			if len(unsats) > 0 {
				c.Model.AddBoolOr(unsats...).OnlyEnforceIf(trigger.Lit())
			}
		}
	}
	return nil
}

// MustBeFollowedBy lowers spec.md §4.4's MustBeFollowedBy(rot,
// allowed_next): x[r,b_i,rot]=1 ⇒ at least one allowed-next rotation
// holds at b_{i+1}.
type MustBeFollowedBy struct {
	Rotation    int
	AllowedNext []int
}

func (k *MustBeFollowedBy) Apply(c *Compiler) error {
	nr, nb := c.Grids.Main.NumResidents(), c.Grids.Main.NumBlocks()
	for r := 0; r < nr; r++ {
		for b := 0; b < nb-1; b++ {
			trigger := c.Grids.Main.At(r, b, k.Rotation)
			var terms []solver.Var
			for _, t := range k.AllowedNext {
				terms = append(terms, solver.Var(c.Grids.Main.At(r, b+1, t)))
			}
			c.Model.AddLinear(solver.Sum(terms...), solver.OpGe, 1).OnlyEnforceIf(trigger.Lit())
		}
	}
	return nil
}

// BanRotationBlock lowers BanRotationBlock(block, rotation):
// x[r,block,rotation] = 0 for every resident.
type BanRotationBlock struct {
	Block    int
	Rotation int
}

func (k *BanRotationBlock) Apply(c *Compiler) error {
	nr := c.Grids.Main.NumResidents()
	for r := 0; r < nr; r++ {
		v := c.Grids.Main.At(r, k.Block, k.Rotation)
		c.Model.AddLinear(solver.Sum(solver.Var(v)), solver.OpEq, 0)
	}
	return nil
}

// PinnedRotation lowers PinnedRotation(resident, blocks?, rot): pins
// rot at every listed block, or (if Blocks is empty) merely requires
// at least one assignment of rot somewhere in the schedule.
type PinnedRotation struct {
	Resident int
	Blocks   []int // empty means "at least one, anywhere"
	Rotation int
}

func (k *PinnedRotation) Apply(c *Compiler) error {
	if len(k.Blocks) > 0 {
		for _, b := range k.Blocks {
			v := c.Grids.Main.At(k.Resident, b, k.Rotation)
			c.Model.AddLinear(solver.Sum(solver.Var(v)), solver.OpEq, 1)
		}
		return nil
	}
	nb := c.Grids.Main.NumBlocks()
	var terms []solver.Var
	for b := 0; b < nb; b++ {
		terms = append(terms, solver.Var(c.Grids.Main.At(k.Resident, b, k.Rotation)))
	}
	c.Model.AddLinear(solver.Sum(terms...), solver.OpGe, 1)
	return nil
}

func allIndices(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func fmtErr(format string, args ...any) error { return fmtError{msg: fmtTok(format, args...)} }

type fmtError struct{ msg string }

func (e fmtError) Error() string { return e.msg }
