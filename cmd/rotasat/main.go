// Copyright (C) 2024 rotasched authors
// Licensed under the GNU Affero General Public License v3.0 or later.
// See the LICENSE file for details.

// Command rotasat reads a scenario definition plus its CSV side
// inputs, compiles them into a constraint model, solves it, and
// writes the resulting schedule as CSV (spec.md §6).
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"

	"github.com/rotasched/rotasched/config"
	"github.com/rotasched/rotasched/csvio"
	"github.com/rotasched/rotasched/internal/rlog"
	"github.com/rotasched/rotasched/registry"
	"github.com/rotasched/rotasched/scenario"
	"github.com/rotasched/rotasched/sched"
	"github.com/rotasched/rotasched/sched/compile"
	"github.com/rotasched/rotasched/search"
	"github.com/rotasched/rotasched/solver"
	"github.com/rotasched/rotasched/solver/backtrack"
)

var (
	dashConfig               string
	dashResults              string
	dashCovMin               string
	dashCovMax               string
	dashPins                 string
	dashRankings             string
	dashScoreList            string
	dashBlockResidentRanking string
	dashVacation             string
	dashHint                 string
	dashDumpModel            string
	dashP                    int
	dashN                    int
	dashMinIndividualRank    int
	dashVerbose              bool
)

func init() {
	flag.StringVar(&dashConfig, "config", "", "scenario definition YAML (required)")
	flag.StringVar(&dashResults, "results", "", "output CSV for the final schedule (default stdout)")
	flag.StringVar(&dashCovMin, "coverage-min", "", "CSV of per-rotation minimum per-block coverage")
	flag.StringVar(&dashCovMax, "coverage-max", "", "CSV of per-rotation maximum per-block coverage")
	flag.StringVar(&dashPins, "rotation-pins", "", "CSV of (resident, block, rotation) pins; accepted but not read by this command")
	flag.StringVar(&dashRankings, "rankings", "", "CSV of (resident, block, rotation, weight) score entries")
	flag.StringVar(&dashScoreList, "score-list", "", "CSV of (rotation, weight) score entries")
	flag.StringVar(&dashBlockResidentRanking, "block-resident-ranking", "", "CSV of (resident, block, rotation, weight) ranking entries")
	flag.StringVar(&dashVacation, "vacation", "", "CSV of (resident, count) required vacation weeks")
	flag.StringVar(&dashHint, "hint", "", "CSV of (resident, block, rotation) hinted assignments")
	flag.StringVar(&dashDumpModel, "dump-model", "", "write a zstd-compressed JSON dump of the resolved scenario to this path")
	flag.IntVar(&dashP, "p", 0, "search worker count (default: N_THREADS env, else NumCPU)")
	flag.IntVar(&dashN, "n", 0, "maximum number of solutions to report (default: unbounded/best)")
	flag.IntVar(&dashMinIndividualRank, "min-individual-rank", 0, "strict upper bound on each resident's ranking score (the score must stay below it); 0 disables it")
	flag.BoolVar(&dashVerbose, "v", false, "verbose diagnostics on stderr")
}

func main() {
	flag.Parse()
	if dashConfig == "" {
		exitf("missing required -config flag")
	}

	level := rlog.LevelInfo
	if dashVerbose {
		level = rlog.LevelDebug
	}
	log := rlog.New(os.Stderr, level)

	f, err := os.Open(dashConfig)
	if err != nil {
		exit(err)
	}
	sc, err := config.Decode(f)
	f.Close()
	if err != nil {
		exit(err)
	}

	reg, store, err := scenario.Intern(sc)
	if err != nil {
		exit(err)
	}
	hist, err := scenario.HistoryFrom(sc, reg)
	if err != nil {
		exit(err)
	}
	gridOpts, err := scenario.GridOptions(sc, reg)
	if err != nil {
		exit(err)
	}

	if dashDumpModel != "" {
		if err := dumpModel(dashDumpModel, sc); err != nil {
			exit(err)
		}
	}

	model := backtrack.New()
	grids, err := sched.Build(model, reg, gridOpts)
	if err != nil {
		exit(err)
	}
	comp := compile.New(model, grids, reg, store, hist)

	cb := &scenario.ConstraintBuilder{Reg: reg, Store: store}
	var constraints []compile.Constraint
	for _, gc := range sc.Constraints {
		k, err := cb.Build(gc)
		if err != nil {
			exit(err)
		}
		constraints = append(constraints, k)
	}
	extra, err := csvConstraints(reg)
	if err != nil {
		exit(err)
	}
	constraints = append(constraints, extra...)

	log.Infof("rotasat: compiling %d constraints over %d residents, %d blocks, %d rotations",
		len(constraints), reg.NumResidents(), reg.NumBlocks(), reg.NumRotations())
	if err := comp.Compile(constraints); err != nil {
		exit(err)
	}
	if obj := comp.Objective(); len(obj.Terms) > 0 {
		model.Minimize(obj)
	}

	hints, err := hintAssignments(reg, grids)
	if err != nil {
		exit(err)
	}

	result, err := search.Run(model, model, mainGridVars(grids), search.Options{
		NumWorkers:   dashP,
		MaxSolutions: dashN,
		Hints:        hints,
		Log:          log,
	})
	if err != nil {
		exit(err)
	}
	log.Infof("rotasat: run=%s status=%s solutions=%d runtime=%s", result.RunID, result.Status, result.Stats.SolutionsFound, result.Stats.Runtime)

	if result.Status == solver.StatusInfeasible || result.LastSolution == nil {
		exitf("no feasible solution found (status=%s)", result.Status)
	}

	out := os.Stdout
	if dashResults != "" {
		rf, err := os.Create(dashResults)
		if err != nil {
			exit(err)
		}
		defer rf.Close()
		out = rf
	}
	rows := assignmentsFromSolution(grids, result.LastSolution)
	if err := csvio.WriteSolution(out, rows); err != nil {
		exit(err)
	}
}

// mainGridVars flattens the main (and backup, when present) grid's
// variables for the search callback to snapshot per solution.
func mainGridVars(grids *sched.Grids) []solver.Var {
	vars := make([]solver.Var, 0, len(grids.Main.Vars()))
	for _, b := range grids.Main.Vars() {
		vars = append(vars, solver.Var(b))
	}
	if grids.Backup != nil {
		for _, b := range grids.Backup.Vars() {
			vars = append(vars, solver.Var(b))
		}
	}
	return vars
}

// assignmentsFromSolution reads back the main (and, if present,
// backup) grid's assigned values into one CSV row per (resident,
// block).
func assignmentsFromSolution(grids *sched.Grids, sol map[solver.Var]int) []csvio.Assignment {
	var rows []csvio.Assignment
	for r := 0; r < grids.Main.NumResidents(); r++ {
		for b := 0; b < grids.Main.NumBlocks(); b++ {
			for t := 0; t < grids.Main.NumRotations(); t++ {
				if sol[solver.Var(grids.Main.At(r, b, t))] == 1 {
					row := csvio.Assignment{
						Resident: grids.Registry.ResidentName(r),
						Block:    grids.Registry.BlockName(b),
						Rotation: grids.Registry.RotationName(t),
					}
					if grids.Backup != nil && sol[solver.Var(grids.Backup.At(r, b))] == 1 {
						row.Backup = true
					}
					rows = append(rows, row)
					break
				}
			}
		}
	}
	return rows
}

// csvConstraints lowers every CSV side-input flag into its
// corresponding compile.Constraint: coverage bounds, the plain
// score-list, rankings (both --rankings and --block-resident-ranking
// share the same four-column shape), required vacation counts, and
// --min-individual-rank.
func csvConstraints(reg *registry.Registry) ([]compile.Constraint, error) {
	var out []compile.Constraint

	covBounds := map[int][2]*int{} // rotation -> [min, max]
	if err := readCoverage(dashCovMin, reg, covBounds, 0); err != nil {
		return nil, err
	}
	if err := readCoverage(dashCovMax, reg, covBounds, 1); err != nil {
		return nil, err
	}
	for t, bound := range covBounds {
		out = append(out, &compile.Coverage{Rotations: []int{t}, RMin: bound[0], RMax: bound[1]})
	}

	if dashScoreList != "" {
		bounds, err := readCSVFile(dashScoreList, csvio.ReadCoverageBounds)
		if err != nil {
			return nil, err
		}
		for _, b := range bounds {
			t, err := reg.Rotation(b.Rotation)
			if err != nil {
				return nil, err
			}
			out = append(out, &compile.RotationScore{Rotation: t, Weight: b.Value})
		}
	}

	var rankingEntries []compile.RankingEntry
	for _, path := range []string{dashRankings, dashBlockResidentRanking} {
		if path == "" {
			continue
		}
		rows, err := readCSVFile(path, csvio.ReadRankings)
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			r, err := reg.Resident(row.Resident)
			if err != nil {
				return nil, err
			}
			b, err := reg.Block(row.Block)
			if err != nil {
				return nil, err
			}
			t, err := reg.Rotation(row.Rotation)
			if err != nil {
				return nil, err
			}
			rankingEntries = append(rankingEntries, compile.RankingEntry{Resident: r, Block: b, Rotation: t, Weight: row.Weight})
		}
	}
	if len(rankingEntries) > 0 {
		out = append(out, &compile.RankingScore{Entries: rankingEntries})
		if dashMinIndividualRank != 0 {
			out = append(out, &compile.MinIndividualRankingScore{Entries: rankingEntries, Min: dashMinIndividualRank})
		}
	}

	if dashVacation != "" {
		bounds, err := readCSVFile(dashVacation, csvio.ReadCoverageBounds)
		if err != nil {
			return nil, err
		}
		for _, b := range bounds {
			r, err := reg.Resident(b.Rotation) // reused column: resident name
			if err != nil {
				return nil, err
			}
			out = append(out, &compile.ChosenVacation{Resident: r, Count: b.Value})
		}
	}

	return out, nil
}

func readCoverage(path string, reg *registry.Registry, bounds map[int][2]*int, slot int) error {
	if path == "" {
		return nil
	}
	rows, err := readCSVFile(path, csvio.ReadCoverageBounds)
	if err != nil {
		return err
	}
	for _, row := range rows {
		t, err := reg.Rotation(row.Rotation)
		if err != nil {
			return err
		}
		b := bounds[t]
		v := row.Value
		b[slot] = &v
		bounds[t] = b
	}
	return nil
}

func readCSVFile[T any](path string, read func(r io.Reader) (T, error)) (T, error) {
	var zero T
	f, err := os.Open(path)
	if err != nil {
		return zero, err
	}
	defer f.Close()
	return read(f)
}

func hintAssignments(reg *registry.Registry, grids *sched.Grids) (map[solver.Var]int, error) {
	if dashHint == "" {
		return nil, nil
	}
	pins, err := readCSVFile(dashHint, csvio.ReadRotationPins)
	if err != nil {
		return nil, err
	}
	hints := make(map[solver.Var]int)
	for _, p := range pins {
		r, err := reg.Resident(p.Resident)
		if err != nil {
			return nil, err
		}
		b, err := reg.Block(p.Block)
		if err != nil {
			return nil, err
		}
		t, err := reg.Rotation(p.Rotation)
		if err != nil {
			return nil, err
		}
		hints[solver.Var(grids.Main.At(r, b, t))] = 1
	}
	return hints, nil
}

func dumpModel(path string, sc *config.Scenario) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	zw, err := zstd.NewWriter(f)
	if err != nil {
		return err
	}
	defer zw.Close()
	return json.NewEncoder(zw).Encode(sc)
}

func exitf(f string, args ...any) {
	exit(fmt.Errorf(f, args...))
}

func exit(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
