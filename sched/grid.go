// Copyright (C) 2024 rotasched authors
// Licensed under the GNU Affero General Public License v3.0 or later.
// See the LICENSE file for details.

// Package sched implements the Grid & Variable Factory of spec.md
// §4.3: it instantiates the main grid's decision variables plus the
// optional backup and vacation co-grids, and emits the structural
// invariants I1–I3 that hold unconditionally regardless of any
// declarative constraint (spec.md §3).
package sched

import (
	"fmt"

	"github.com/rotasched/rotasched/registry"
	"github.com/rotasched/rotasched/solver"
)

// MainGrid holds x[r,b,t] ∈ {0,1}: resident r is on rotation t during
// block b (spec.md §3).
type MainGrid struct {
	reg *registry.Registry
	x   []solver.BoolVar // flat, row-major over (resident, block, rotation)
}

func (g *MainGrid) idx(r, b, t int) int {
	return (r*g.reg.NumBlocks()+b)*g.reg.NumRotations() + t
}

// At returns the decision variable for (resident r, block b, rotation t).
func (g *MainGrid) At(r, b, t int) solver.BoolVar { return g.x[g.idx(r, b, t)] }

// Vars exposes every variable in the grid in row-major order, used by
// the CLI to snapshot a solution without re-deriving indices.
func (g *MainGrid) Vars() []solver.BoolVar { return g.x }

// NumResidents, NumBlocks, NumRotations report the grid's axis sizes.
func (g *MainGrid) NumResidents() int { return g.reg.NumResidents() }
func (g *MainGrid) NumBlocks() int    { return g.reg.NumBlocks() }
func (g *MainGrid) NumRotations() int { return g.reg.NumRotations() }

// BackupGrid holds y[r,b] ∈ {0,1}: resident r is a backup during
// block b (spec.md §3).
type BackupGrid struct {
	reg *registry.Registry
	y   []solver.BoolVar // flat, row-major over (resident, block)
}

func (g *BackupGrid) At(r, b int) solver.BoolVar { return g.y[r*g.reg.NumBlocks()+b] }
func (g *BackupGrid) Vars() []solver.BoolVar     { return g.y }

// VacationGrid holds v[r,w,t] ∈ {0,1}: resident r is on vacation
// during vacation-week w while assigned to rotation t (spec.md §3).
type VacationGrid struct {
	reg      *registry.Registry
	numWeeks int
	v        []solver.BoolVar // flat, row-major over (resident, week, rotation)
}

func (g *VacationGrid) At(r, w, t int) solver.BoolVar {
	return g.v[(r*g.numWeeks+w)*g.reg.NumRotations()+t]
}
func (g *VacationGrid) Vars() []solver.BoolVar { return g.v }
func (g *VacationGrid) NumWeeks() int          { return g.numWeeks }

// WeekBlocks maps a vacation week to the one or more blocks it
// overlaps (spec.md §9: "week_to_block scalar vs. list"). Each week's
// entry is always a list: config decodes week_to_blocks as a list of
// lists, so a week that overlaps one block is a one-element list and a
// bare scalar block index is rejected when the config is decoded.
type WeekBlocks [][]int

// Options configures which co-grids Grids materializes alongside the
// always-present main grid.
type Options struct {
	// BackupK, if non-nil, enables the backup grid with the given
	// per-resident cardinality (I2: Σ_b y[r,b] = BackupK[r]).
	BackupK []int

	// VacationWeeks, if > 0, enables the vacation grid with this
	// many weeks (I3: Σ_t v[r,w,t] ≤ 1).
	VacationWeeks int
	WeekToBlocks  WeekBlocks
}

// Grids is the bundle of materialized grids the constraint compiler
// operates on, keyed by name (spec.md §4.3).
type Grids struct {
	Registry *registry.Registry
	Main     *MainGrid
	Backup   *BackupGrid   // nil if backup grid is not enabled
	Vacation *VacationGrid // nil if vacation grid is not enabled
	WeekToBlocks WeekBlocks
}

// Build materializes the main grid and any requested co-grids,
// creating their boolean variables on m and emitting the structural
// invariants I1 (always), I2 (if backup enabled) and I3 (if vacation
// enabled) per spec.md §3.
func Build(m solver.Model, reg *registry.Registry, opts Options) (*Grids, error) {
	g := &Grids{Registry: reg}

	nr, nb, nt := reg.NumResidents(), reg.NumBlocks(), reg.NumRotations()
	main := &MainGrid{reg: reg, x: make([]solver.BoolVar, nr*nb*nt)}
	for r := 0; r < nr; r++ {
		for b := 0; b < nb; b++ {
			for t := 0; t < nt; t++ {
				name := fmt.Sprintf("x[%s,%s,%s]", reg.ResidentName(r), reg.BlockName(b), reg.RotationName(t))
				main.x[main.idx(r, b, t)] = m.NewBoolVar(name)
			}
			// I1: exactly one rotation per block per resident.
			row := main.x[main.idx(r, b, 0) : main.idx(r, b, 0)+nt]
			m.AddLinear(solver.Sum(boolVarsToVars(row)...), solver.OpEq, 1)
		}
	}
	g.Main = main

	if opts.BackupK != nil {
		if len(opts.BackupK) != nr {
			return nil, fmt.Errorf("sched: BackupK has %d entries, want %d (one per resident)", len(opts.BackupK), nr)
		}
		backup := &BackupGrid{reg: reg, y: make([]solver.BoolVar, nr*nb)}
		for r := 0; r < nr; r++ {
			for b := 0; b < nb; b++ {
				name := fmt.Sprintf("y[%s,%s]", reg.ResidentName(r), reg.BlockName(b))
				backup.y[r*nb+b] = m.NewBoolVar(name)
			}
			row := backup.y[r*nb : r*nb+nb]
			// I2: Σ_b y[r,b] = K
			m.AddLinear(solver.Sum(boolVarsToVars(row)...), solver.OpEq, opts.BackupK[r])
		}
		g.Backup = backup
	}

	if opts.VacationWeeks > 0 {
		weeks := opts.VacationWeeks
		vac := &VacationGrid{reg: reg, numWeeks: weeks, v: make([]solver.BoolVar, nr*weeks*nt)}
		for r := 0; r < nr; r++ {
			for w := 0; w < weeks; w++ {
				for t := 0; t < nt; t++ {
					name := fmt.Sprintf("v[%s,w%d,%s]", reg.ResidentName(r), w, reg.RotationName(t))
					vac.v[(r*weeks+w)*nt+t] = m.NewBoolVar(name)
				}
				// I3: at most one vacation assignment per week per resident.
				row := vac.v[(r*weeks+w)*nt : (r*weeks+w)*nt+nt]
				m.AddLinear(solver.Sum(boolVarsToVars(row)...), solver.OpLe, 1)
			}
		}
		g.Vacation = vac
		g.WeekToBlocks = normalizeWeekToBlocks(opts.WeekToBlocks, weeks)
	}

	return g, nil
}

// normalizeWeekToBlocks fills in any missing weeks with an empty
// block list and defensively copies opts' slices so later mutation by
// the caller can't alias into the built Grids.
func normalizeWeekToBlocks(in WeekBlocks, weeks int) WeekBlocks {
	out := make(WeekBlocks, weeks)
	for w := 0; w < weeks && w < len(in); w++ {
		out[w] = append([]int(nil), in[w]...)
	}
	return out
}

func boolVarsToVars(bs []solver.BoolVar) []solver.Var {
	vs := make([]solver.Var, len(bs))
	for i, b := range bs {
		vs[i] = solver.Var(b)
	}
	return vs
}
