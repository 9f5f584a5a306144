// Copyright (C) 2024 rotasched authors
// Licensed under the GNU Affero General Public License v3.0 or later.
// See the LICENSE file for details.

package compile

import (
	"github.com/rotasched/rotasched/groups"
	"github.com/rotasched/rotasched/solver"
)

// The Score Aggregator (spec.md §4.5) folds every scored constraint's
// contribution into one running objective. Because every weight here
// is a Go int, "every score value is an integer" (spec.md §4.5) holds
// by construction — there is no floating-point score representation
// to validate against.

// RotationScore lowers a (rotation -> weight) score_dict entry: every
// assignment of Rotation contributes Weight to the objective,
// wherever and to whomever it occurs.
type RotationScore struct {
	Rotation int
	Weight   int
}

func (k *RotationScore) Apply(c *Compiler) error {
	nr, nb := c.Grids.Main.NumResidents(), c.Grids.Main.NumBlocks()
	var terms []solver.Term
	for r := 0; r < nr; r++ {
		for b := 0; b < nb; b++ {
			terms = append(terms, solver.Term{Var: solver.Var(c.Grids.Main.At(r, b, k.Rotation)), Coeff: k.Weight})
		}
	}
	c.AddScoreTerms(terms)
	return nil
}

// GroupScore lowers a named-group score contribution: every selected
// (resident, block, rotation) triple contributes Weight to the
// objective.
type GroupScore struct {
	Mask   groups.Mask
	Weight int
}

func (k *GroupScore) Apply(c *Compiler) error {
	var terms []solver.Term
	for _, v := range maskTerms(c, k.Mask) {
		terms = append(terms, solver.Term{Var: v, Coeff: k.Weight})
	}
	c.AddScoreTerms(terms)
	return nil
}

// RankingEntry is one row of a block/resident ranking table (spec.md
// §6's --block-resident-ranking / --rankings CSV inputs): resident r's
// preference weight for rotation t at block b.
type RankingEntry struct {
	Resident, Block, Rotation, Weight int
}

// RankingScore lowers a ranking table into the objective: one
// weighted term per entry, directly against the matching main-grid
// variable.
type RankingScore struct {
	Entries []RankingEntry
}

func (k *RankingScore) Apply(c *Compiler) error {
	var terms []solver.Term
	for _, e := range k.Entries {
		v := c.Grids.Main.At(e.Resident, e.Block, e.Rotation)
		terms = append(terms, solver.Term{Var: solver.Var(v), Coeff: e.Weight})
	}
	c.AddScoreTerms(terms)
	return nil
}

// MinIndividualScore lowers spec.md §4.4's MinIndividualScore(scores,
// threshold): despite the "Min…" name, spec.md §9 documents this as an
// inverted name for a strict upper bound — U_r = the weighted sum of x
// over Mask restricted to Resident's own assignments must be *below*
// Min. Do not flip this to a lower bound; the naming is misleading but
// the enforced behavior (`<`) is the one implementers must preserve.
// It is self-contained (it does not depend on the order of any other
// score constraint) so it can be listed anywhere among a resident's
// constraints.
type MinIndividualScore struct {
	Resident int
	Mask     groups.Mask
	Weight   int
	Min      int
}

func (k *MinIndividualScore) Apply(c *Compiler) error {
	var terms []solver.Var
	k.Mask.Iterate(func(r, b, t int) {
		if r == k.Resident {
			terms = append(terms, solver.Var(c.Grids.Main.At(r, b, t)))
		}
	})
	if k.Weight == 1 {
		c.Model.AddLinear(solver.Sum(terms...), solver.OpLt, k.Min)
		return nil
	}
	wt := make([]solver.Term, len(terms))
	for i, v := range terms {
		wt[i] = solver.Term{Var: v, Coeff: k.Weight}
	}
	c.Model.AddLinear(solver.WeightedSum(wt...), solver.OpLt, k.Min)
	return nil
}

// MinIndividualRankingScore lowers spec.md §6's --min-individual-rank
// flag directly against a ranking table: the same inverted-name upper
// bound as MinIndividualScore (spec.md §9), applied per resident named
// in Entries — each resident's weighted score from their own rows must
// stay strictly below Min.
type MinIndividualRankingScore struct {
	Entries []RankingEntry
	Min     int
}

func (k *MinIndividualRankingScore) Apply(c *Compiler) error {
	byResident := map[int][]solver.Term{}
	for _, e := range k.Entries {
		v := c.Grids.Main.At(e.Resident, e.Block, e.Rotation)
		byResident[e.Resident] = append(byResident[e.Resident], solver.Term{Var: solver.Var(v), Coeff: e.Weight})
	}
	for _, terms := range byResident {
		c.Model.AddLinear(solver.WeightedSum(terms...), solver.OpLt, k.Min)
	}
	return nil
}

// MinTotalScore lowers spec.md §4.4's MinTotalScore(scores, threshold):
// the same inverted naming as MinIndividualScore (spec.md §9) — the
// aggregate objective accumulated by every RotationScore/GroupScore/
// RankingScore constraint applied before it in the constraint list
// must be at most Min, not at least. List it after the score
// constraints it is meant to bound.
type MinTotalScore struct {
	Min int
}

func (k *MinTotalScore) Apply(c *Compiler) error {
	c.Model.AddLinear(c.Objective(), solver.OpLe, k.Min)
	return nil
}
