// Copyright (C) 2024 rotasched authors
// Licensed under the GNU Affero General Public License v3.0 or later.
// See the LICENSE file for details.

package sched

import (
	"testing"

	"github.com/rotasched/rotasched/registry"
	"github.com/rotasched/rotasched/solver"
	"github.com/rotasched/rotasched/solver/backtrack"
)

func newFixtureRegistry() *registry.Registry {
	reg := registry.New()
	reg.DeclareResident("alice")
	reg.DeclareResident("bob")
	reg.DeclareBlock("b1")
	reg.DeclareBlock("b2")
	reg.DeclareRotation("icu")
	reg.DeclareRotation("er")
	return reg
}

func TestBuildMainGridOnly(t *testing.T) {
	reg := newFixtureRegistry()
	m := backtrack.New()
	g, err := Build(m, reg, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if g.Backup != nil || g.Vacation != nil {
		t.Fatal("no co-grid was requested; both should be nil")
	}
	if got := len(g.Main.Vars()); got != 2*2*2 {
		t.Errorf("main grid has %d vars, want %d", got, 2*2*2)
	}

	status, err := m.Solve(solver.Params{}, func(solver.SolutionContext) {})
	if err != nil {
		t.Fatal(err)
	}
	if status == solver.StatusInfeasible {
		t.Fatal("I1 (exactly one rotation per resident per block) should be satisfiable alone")
	}
}

func TestBuildWithBackupGrid(t *testing.T) {
	reg := newFixtureRegistry()
	m := backtrack.New()
	g, err := Build(m, reg, Options{BackupK: []int{1, 0}})
	if err != nil {
		t.Fatal(err)
	}
	if g.Backup == nil {
		t.Fatal("backup grid should be enabled")
	}

	var sawSum int
	status, err := m.Solve(solver.Params{}, func(sc solver.SolutionContext) {
		sawSum = sc.Value(solver.Var(g.Backup.At(0, 0))) + sc.Value(solver.Var(g.Backup.At(0, 1)))
	})
	if err != nil {
		t.Fatal(err)
	}
	if status == solver.StatusInfeasible {
		t.Fatal("I2 should be satisfiable with BackupK=[1,0]")
	}
	if sawSum != 1 {
		t.Errorf("alice's backup sum = %d, want 1 (I2: Σ_b y[r,b] = K[r])", sawSum)
	}
}

func TestBuildRejectsMismatchedBackupK(t *testing.T) {
	reg := newFixtureRegistry()
	m := backtrack.New()
	if _, err := Build(m, reg, Options{BackupK: []int{1}}); err == nil {
		t.Fatal("expected an error when BackupK has the wrong length")
	}
}

func TestBuildWithVacationGrid(t *testing.T) {
	reg := newFixtureRegistry()
	m := backtrack.New()
	g, err := Build(m, reg, Options{VacationWeeks: 2, WeekToBlocks: WeekBlocks{{0}, {1}}})
	if err != nil {
		t.Fatal(err)
	}
	if g.Vacation == nil || g.Vacation.NumWeeks() != 2 {
		t.Fatal("vacation grid should be enabled with 2 weeks")
	}
	if len(g.WeekToBlocks) != 2 || g.WeekToBlocks[0][0] != 0 {
		t.Errorf("WeekToBlocks = %v, want [[0],[1]]", g.WeekToBlocks)
	}
}
