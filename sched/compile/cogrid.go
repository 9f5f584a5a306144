// Copyright (C) 2024 rotasched authors
// Licensed under the GNU Affero General Public License v3.0 or later.
// See the LICENSE file for details.

package compile

import "github.com/rotasched/rotasched/solver"

// VacationMapping lowers spec.md §4.4's VacationMapping: a resident
// marked on vacation during week w while nominally on rotation t
// (v[r,w,t]=1) must actually hold rotation t in every block the
// vacation week overlaps — vacation is an overlay on the main grid,
// not an independent rotation choice.
type VacationMapping struct{}

func (k *VacationMapping) Apply(c *Compiler) error {
	vac := c.Grids.Vacation
	if vac == nil {
		return nil
	}
	nr := c.Grids.Main.NumResidents()
	for r := 0; r < nr; r++ {
		for w := 0; w < vac.NumWeeks(); w++ {
			blocks := c.Grids.WeekToBlocks[w]
			for t := 0; t < c.Grids.Main.NumRotations(); t++ {
				v := vac.At(r, w, t)
				var lits []solver.Literal
				for _, b := range blocks {
					lits = append(lits, c.Grids.Main.At(r, b, t).Lit())
				}
				if len(lits) == 0 {
					continue
				}
				c.Model.AddBoolAnd(lits...).OnlyEnforceIf(v.Lit())
			}
		}
	}
	return nil
}

// ChosenVacation lowers spec.md §4.4's ChosenVacation(resident,
// count): the resident must take exactly Count vacation weeks.
type ChosenVacation struct {
	Resident int
	Count    int
}

func (k *ChosenVacation) Apply(c *Compiler) error {
	vac := c.Grids.Vacation
	if vac == nil {
		return errf(ErrConfigMalformed, "ChosenVacation", fmtErr("no vacation grid configured"))
	}
	var terms []solver.Var
	for w := 0; w < vac.NumWeeks(); w++ {
		for t := 0; t < c.Grids.Main.NumRotations(); t++ {
			terms = append(terms, solver.Var(vac.At(k.Resident, w, t)))
		}
	}
	c.Model.AddLinear(solver.Sum(terms...), solver.OpEq, k.Count)
	return nil
}

// VacationCooldown lowers spec.md §4.4's VacationCooldown(window,
// count): no resident may take more than Count vacation weeks within
// any sliding window of Window consecutive vacation weeks.
type VacationCooldown struct {
	Window int
	Count  int
}

func (k *VacationCooldown) Apply(c *Compiler) error {
	vac := c.Grids.Vacation
	if vac == nil {
		return nil
	}
	if k.Window <= 0 {
		return errf(ErrInfeasibleAtCompile, "VacationCooldown", fmtErr("window %d <= 0", k.Window))
	}
	nr, nw, nt := c.Grids.Main.NumResidents(), vac.NumWeeks(), c.Grids.Main.NumRotations()
	for r := 0; r < nr; r++ {
		for s := 0; s+k.Window <= nw; s++ {
			var terms []solver.Var
			for w := s; w < s+k.Window; w++ {
				for t := 0; t < nt; t++ {
					terms = append(terms, solver.Var(vac.At(r, w, t)))
				}
			}
			c.Model.AddLinear(solver.Sum(terms...), solver.OpLe, k.Count)
		}
	}
	return nil
}

// BackupRequiredOnBlock lowers spec.md §4.4's BackupRequiredOnBlock
// (block, rmin, rmax): Σ_r y[r,block] ∈ [Min, Max].
type BackupRequiredOnBlock struct {
	Block    int
	Min, Max int
}

func (k *BackupRequiredOnBlock) Apply(c *Compiler) error {
	bg := c.Grids.Backup
	if bg == nil {
		return errf(ErrConfigMalformed, "BackupRequiredOnBlock", fmtErr("no backup grid configured"))
	}
	if k.Min > k.Max {
		return errf(ErrInfeasibleAtCompile, "BackupRequiredOnBlock", fmtErr("rmin %d > rmax %d", k.Min, k.Max))
	}
	nr := c.Grids.Main.NumResidents()
	var terms []solver.Var
	for r := 0; r < nr; r++ {
		terms = append(terms, solver.Var(bg.At(r, k.Block)))
	}
	expr := solver.Sum(terms...)
	c.Model.AddLinear(expr, solver.OpGe, k.Min)
	c.Model.AddLinear(expr, solver.OpLe, k.Max)
	return nil
}

// andVar returns a boolean variable fully reified (both directions)
// to a AND b.
func andVar(c *Compiler, a, b solver.Literal, name string) solver.BoolVar {
	z := c.Model.NewBoolVar(name)
	c.Model.AddImplication(z.Lit(), a)
	c.Model.AddImplication(z.Lit(), b)
	c.Model.AddBoolOr(negate(a), negate(b)).OnlyEnforceIf(z.Not())
	return z
}

func negate(l solver.Literal) solver.Literal { return solver.Literal{V: l.V, Negated: !l.Negated} }

// RotationBackupCount lowers spec.md §4.4's RotationBackupCount(rot,
// cap): an upper bound, across every resident and block, on the
// number of (r,b) pairs simultaneously on Rotation and designated
// backup. For each (r,b), an auxiliary z[r,b] is reified to
// x[r,b,rot] ∧ y[r,b]; Σ z ≤ Cap.
type RotationBackupCount struct {
	Rotation int
	Cap      int
}

func (k *RotationBackupCount) Apply(c *Compiler) error {
	bg := c.Grids.Backup
	if bg == nil {
		return errf(ErrConfigMalformed, "RotationBackupCount", fmtErr("no backup grid configured"))
	}
	nr, nb := c.Grids.Main.NumResidents(), c.Grids.Main.NumBlocks()
	var terms []solver.Var
	for r := 0; r < nr; r++ {
		for b := 0; b < nb; b++ {
			x := c.Grids.Main.At(r, b, k.Rotation)
			y := bg.At(r, b)
			z := andVar(c, x.Lit(), y.Lit(), fmtTok("backupAndRot[r%d,b%d,rot%d]", r, b, k.Rotation))
			terms = append(terms, solver.Var(z))
		}
	}
	c.Model.AddLinear(solver.Sum(terms...), solver.OpLe, k.Cap)
	return nil
}

// BackupEligibleBlocks lowers spec.md §4.4's BackupEligibleBlocks
// (resident, blocks): Resident may only be on backup duty at one of
// the listed blocks; backup at every other block is banned.
type BackupEligibleBlocks struct {
	Resident int
	Blocks   []int
}

func (k *BackupEligibleBlocks) Apply(c *Compiler) error {
	bg := c.Grids.Backup
	if bg == nil {
		return errf(ErrConfigMalformed, "BackupEligibleBlocks", fmtErr("no backup grid configured"))
	}
	eligible := make(map[int]bool, len(k.Blocks))
	for _, b := range k.Blocks {
		eligible[b] = true
	}
	nb := c.Grids.Main.NumBlocks()
	for b := 0; b < nb; b++ {
		if eligible[b] {
			continue
		}
		v := bg.At(k.Resident, b)
		c.Model.AddLinear(solver.Sum(solver.Var(v)), solver.OpEq, 0)
	}
	return nil
}

// BanBackupBlock lowers spec.md §4.4's BanBackupBlock(resident,
// block): y[resident, block] = 0 — the no_backup option for one
// resident at one block, not a block-wide ban.
type BanBackupBlock struct {
	Resident int
	Block    int
}

func (k *BanBackupBlock) Apply(c *Compiler) error {
	bg := c.Grids.Backup
	if bg == nil {
		return errf(ErrConfigMalformed, "BanBackupBlock", fmtErr("no backup grid configured"))
	}
	v := bg.At(k.Resident, k.Block)
	c.Model.AddLinear(solver.Sum(solver.Var(v)), solver.OpEq, 0)
	return nil
}
