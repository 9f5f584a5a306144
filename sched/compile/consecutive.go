// Copyright (C) 2024 rotasched authors
// Licensed under the GNU Affero General Public License v3.0 or later.
// See the LICENSE file for details.

package compile

import "github.com/rotasched/rotasched/solver"

// ConsecutiveCount lowers spec.md §4.4's ConsecutiveCount(rot, n,
// forbidden_roots?, allowed_roots?): every run of Rotation a resident
// holds must be exactly Count blocks long, rooted where
// ForbiddenRoots/AllowedRoots permit.
//
// For each resident and block index i, is_root[r,i] is reified, both
// directions, to the run-start predicate:
//
//	is_root ⇔ (i=0 ∧ x[r,b0,rot]) ∨ (i>0 ∧ ¬x[r,i-1,rot] ∧ x[r,i,rot])
//
// ForbiddenRoots forces is_root=0 there. A non-empty AllowedRoots
// additionally forces is_root=1 at listed (non-forbidden) blocks and
// is_root=0 everywhere else — runs may only root at allowed blocks.
// A root then forces the next Count-1 blocks onto Rotation and (when
// in range) the block past the run off it; roots past the point where
// a full run no longer fits (i > |blocks|-Count) are forced to 0. The
// last legal root's run reaches the final block by construction
// (root index |blocks|-Count spans exactly Count blocks to the end),
// so the schedule's tail never needs a separate assertion.
type ConsecutiveCount struct {
	Rotation       int
	Count          int
	ForbiddenRoots []int
	AllowedRoots   []int
}

func (k *ConsecutiveCount) Apply(c *Compiler) error {
	if k.Count <= 0 {
		return errf(ErrInfeasibleAtCompile, "ConsecutiveCount", fmtErr("count %d <= 0", k.Count))
	}
	forbidden := make(map[int]bool, len(k.ForbiddenRoots))
	for _, b := range k.ForbiddenRoots {
		forbidden[b] = true
	}
	var allowed map[int]bool
	if len(k.AllowedRoots) > 0 {
		allowed = make(map[int]bool, len(k.AllowedRoots))
		for _, b := range k.AllowedRoots {
			allowed[b] = true
		}
	}

	nr, nb := c.Grids.Main.NumResidents(), c.Grids.Main.NumBlocks()
	for r := 0; r < nr; r++ {
		for i := 0; i < nb; i++ {
			isRoot := c.Model.NewBoolVar(fmtTok("isRoot[r%d,b%d,rot%d]", r, i, k.Rotation))
			cur := c.Grids.Main.At(r, i, k.Rotation).Lit()
			if i == 0 {
				c.Model.AddImplication(isRoot.Lit(), cur)
				c.Model.AddImplication(cur, isRoot.Lit())
			} else {
				prev := c.Grids.Main.At(r, i-1, k.Rotation).Lit()
				c.Model.AddBoolAnd(negate(prev), cur).OnlyEnforceIf(isRoot.Lit())
				c.Model.AddBoolOr(prev, negate(cur)).OnlyEnforceIf(isRoot.Not())
			}

			if forbidden[i] {
				c.Model.AddLinear(solver.Sum(solver.Var(isRoot)), solver.OpEq, 0)
			}
			if allowed != nil {
				switch {
				case allowed[i] && !forbidden[i]:
					c.Model.AddLinear(solver.Sum(solver.Var(isRoot)), solver.OpEq, 1)
				case !allowed[i]:
					c.Model.AddLinear(solver.Sum(solver.Var(isRoot)), solver.OpEq, 0)
				}
			}

			if i > nb-k.Count {
				c.Model.AddLinear(solver.Sum(solver.Var(isRoot)), solver.OpEq, 0)
				continue
			}
			var lits []solver.Literal
			for j := 1; j < k.Count; j++ {
				lits = append(lits, c.Grids.Main.At(r, i+j, k.Rotation).Lit())
			}
			if i+k.Count < nb {
				lits = append(lits, negate(c.Grids.Main.At(r, i+k.Count, k.Rotation).Lit()))
			}
			if len(lits) > 0 {
				c.Model.AddBoolAnd(lits...).OnlyEnforceIf(isRoot.Lit())
			}
		}
	}
	return nil
}

// AllowedRoots lowers spec.md §4.4's AllowedRoots(rot, blocks): a
// weaker form of ConsecutiveCount used when the run length is already
// constrained elsewhere. Pins is_root to 1 for listed blocks and to 0
// for every other block, using the same run-start reification.
type AllowedRoots struct {
	Rotation int
	Starts   []int
}

func (k *AllowedRoots) Apply(c *Compiler) error {
	allowed := make(map[int]bool, len(k.Starts))
	for _, b := range k.Starts {
		allowed[b] = true
	}
	nr, nb := c.Grids.Main.NumResidents(), c.Grids.Main.NumBlocks()
	for r := 0; r < nr; r++ {
		for i := 0; i < nb; i++ {
			isRoot := c.Model.NewBoolVar(fmtTok("isRoot[r%d,b%d,rot%d]", r, i, k.Rotation))
			cur := c.Grids.Main.At(r, i, k.Rotation).Lit()
			if i == 0 {
				c.Model.AddImplication(isRoot.Lit(), cur)
				c.Model.AddImplication(cur, isRoot.Lit())
			} else {
				prev := c.Grids.Main.At(r, i-1, k.Rotation).Lit()
				c.Model.AddBoolAnd(negate(prev), cur).OnlyEnforceIf(isRoot.Lit())
				c.Model.AddBoolOr(prev, negate(cur)).OnlyEnforceIf(isRoot.Not())
			}
			if allowed[i] {
				c.Model.AddLinear(solver.Sum(solver.Var(isRoot)), solver.OpEq, 1)
			} else {
				c.Model.AddLinear(solver.Sum(solver.Var(isRoot)), solver.OpEq, 0)
			}
		}
	}
	return nil
}

// CoolDown lowers spec.md §4.4's CoolDown(rot, window, count,
// suppress_for?): bounds the number of rot occurrences to Count in
// every sliding window of Window consecutive blocks, for every
// resident not named in SuppressFor.
type CoolDown struct {
	Rotation    int
	Window      int
	Count       int
	SuppressFor []int // residents exempt from this cooldown
}

func (k *CoolDown) Apply(c *Compiler) error {
	if k.Window <= 0 {
		return errf(ErrInfeasibleAtCompile, "CoolDown", fmtErr("window %d <= 0", k.Window))
	}
	suppressed := make(map[int]bool, len(k.SuppressFor))
	for _, r := range k.SuppressFor {
		suppressed[r] = true
	}
	nr, nb := c.Grids.Main.NumResidents(), c.Grids.Main.NumBlocks()
	for r := 0; r < nr; r++ {
		if suppressed[r] {
			continue
		}
		for s := 0; s+k.Window <= nb; s++ {
			var terms []solver.Var
			for b := s; b < s+k.Window; b++ {
				terms = append(terms, solver.Var(c.Grids.Main.At(r, b, k.Rotation)))
			}
			c.Model.AddLinear(solver.Sum(terms...), solver.OpLe, k.Count)
		}
	}
	return nil
}

// checkIncompatiblePairs rejects combinations of constraints that
// spec.md §7's IncompatibleConstraints classifies as jointly
// meaningless or contradictory: CoolDown and ConsecutiveCount on the
// same rotation both bound the density of that rotation over a
// sliding window, and authoring both is almost always a copy-paste
// mistake rather than an intentional tighter-of-two-bounds request —
// reject rather than silently take the min.
func checkIncompatiblePairs(constraints []Constraint) error {
	coolDownRotations := map[int]bool{}
	for _, k := range constraints {
		if cd, ok := k.(*CoolDown); ok {
			coolDownRotations[cd.Rotation] = true
		}
	}
	for _, k := range constraints {
		if cc, ok := k.(*ConsecutiveCount); ok && coolDownRotations[cc.Rotation] {
			return errf(ErrIncompatibleConstraints, "CoolDown+ConsecutiveCount",
				fmtErr("rotation index %d has both a CoolDown and a ConsecutiveCount constraint", cc.Rotation))
		}
	}
	return nil
}
