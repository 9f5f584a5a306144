// Copyright (C) 2024 rotasched authors
// Licensed under the GNU Affero General Public License v3.0 or later.
// See the LICENSE file for details.

package compile

import (
	"github.com/rotasched/rotasched/groups"
	"github.com/rotasched/rotasched/solver"
)

// maskTerms collects the main-grid variables mask selects, across all
// three axes at once (mask is expected to be the result of evaluating
// a selector expression over the full resident/block/rotation space).
func maskTerms(c *Compiler, mask groups.Mask) []solver.Var {
	var terms []solver.Var
	mask.Iterate(func(r, b, t int) {
		terms = append(terms, solver.Var(c.Grids.Main.At(r, b, t)))
	})
	return terms
}

// FieldSum lowers spec.md §4.4's FieldSum(mask, op, rhs): the generic
// "sum of x over an arbitrary selector-masked subset of the grid,
// compared against a bound" constraint every other rotation-count-ish
// constraint kind can be expressed as a special case of.
type FieldSum struct {
	Mask groups.Mask
	Op   solver.Op
	RHS  int
}

func (k *FieldSum) Apply(c *Compiler) error {
	c.Model.AddLinear(solver.Sum(maskTerms(c, k.Mask)...), k.Op, k.RHS)
	return nil
}

// TrueSomewhere is a legacy compatibility shim lowered to FieldSum:
// the selected subset of the grid must contain at least one true
// assignment. Equivalent to FieldSum{Mask, OpGe, 1}.
type TrueSomewhere struct {
	Mask groups.Mask
}

func (k *TrueSomewhere) Apply(c *Compiler) error {
	return (&FieldSum{Mask: k.Mask, Op: solver.OpGe, RHS: 1}).Apply(c)
}

// ProhibitedCombination is a legacy compatibility shim: none of the
// selected subset may ever be true. Equivalent to FieldSum{Mask,
// OpEq, 0}.
type ProhibitedCombination struct {
	Mask groups.Mask
}

func (k *ProhibitedCombination) Apply(c *Compiler) error {
	return (&FieldSum{Mask: k.Mask, Op: solver.OpEq, RHS: 0}).Apply(c)
}

// MarkIneligible is a legacy compatibility shim: the named resident
// may never be assigned the named rotation, at any block:
// x[Resident,b,Rotation] = 0 for every b. Other residents are not
// affected, unlike BanRotationBlock.
type MarkIneligible struct {
	Resident int
	Rotation int
}

func (k *MarkIneligible) Apply(c *Compiler) error {
	nb := c.Grids.Main.NumBlocks()
	for b := 0; b < nb; b++ {
		v := c.Grids.Main.At(k.Resident, b, k.Rotation)
		c.Model.AddLinear(solver.Sum(solver.Var(v)), solver.OpEq, 0)
	}
	return nil
}
