// Copyright (C) 2024 rotasched authors
// Licensed under the GNU Affero General Public License v3.0 or later.
// See the LICENSE file for details.

package compile

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/rotasched/rotasched/groups"
	"github.com/rotasched/rotasched/registry"
	"github.com/rotasched/rotasched/sched"
	"github.com/rotasched/rotasched/solver"
	"github.com/rotasched/rotasched/solver/backtrack"
)

// fixture builds a tiny 2-resident/3-block/2-rotation grid (icu=0, er=1)
// with a fresh backtrack.Model, ready for constraint compilation.
func fixture(t *testing.T) (*backtrack.Model, *sched.Grids, *registry.Registry) {
	t.Helper()
	reg := registry.New()
	reg.DeclareResident("alice")
	reg.DeclareResident("bob")
	reg.DeclareBlock("b1")
	reg.DeclareBlock("b2")
	reg.DeclareBlock("b3")
	reg.DeclareRotation("icu")
	reg.DeclareRotation("er")

	m := backtrack.New()
	g, err := sched.Build(m, reg, sched.Options{})
	if err != nil {
		t.Fatal(err)
	}
	return m, g, reg
}

func allAssignments(t *testing.T, m *backtrack.Model, g *sched.Grids) []map[string]string {
	t.Helper()
	var sols []map[string]string
	_, err := m.Solve(solver.Params{EnumerateAllSolutions: true}, func(sc solver.SolutionContext) {
		sol := map[string]string{}
		for r := 0; r < g.Main.NumResidents(); r++ {
			for b := 0; b < g.Main.NumBlocks(); b++ {
				for tt := 0; tt < g.Main.NumRotations(); tt++ {
					if sc.Value(solver.Var(g.Main.At(r, b, tt))) == 1 {
						sol[g.Registry.ResidentName(r)+"@"+g.Registry.BlockName(b)] = g.Registry.RotationName(tt)
					}
				}
			}
		}
		sols = append(sols, sol)
	})
	if err != nil {
		t.Fatal(err)
	}
	return sols
}

func TestBanRotationBlockExcludesAssignment(t *testing.T) {
	m, g, reg := fixture(t)
	b1, _ := reg.Block("b1")
	icu, _ := reg.Rotation("icu")
	comp := New(m, g, reg, groups.NewStore(reg), nil)
	if err := comp.Compile([]Constraint{&BanRotationBlock{Block: b1, Rotation: icu}}); err != nil {
		t.Fatal(err)
	}

	for _, sol := range allAssignments(t, m, g) {
		if sol["alice@b1"] == "icu" || sol["bob@b1"] == "icu" {
			t.Fatalf("BanRotationBlock(b1, icu) violated in solution %v", sol)
		}
	}
}

func TestRotationCountNotExcludesExactCount(t *testing.T) {
	m, g, reg := fixture(t)
	icu, _ := reg.Rotation("icu")
	comp := New(m, g, reg, groups.NewStore(reg), nil)
	if err := comp.Compile([]Constraint{&RotationCountNot{Rotation: icu, K: 0}}); err != nil {
		t.Fatal(err)
	}

	_, err := m.Solve(solver.Params{EnumerateAllSolutions: true}, func(sc solver.SolutionContext) {
		for r := 0; r < g.Main.NumResidents(); r++ {
			count := 0
			for b := 0; b < g.Main.NumBlocks(); b++ {
				count += sc.Value(solver.Var(g.Main.At(r, b, icu)))
			}
			if count == 0 {
				t.Errorf("resident %d has icu count 0, which RotationCountNot{K:0} should forbid", r)
			}
		}
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestCoverageBounds(t *testing.T) {
	m, g, reg := fixture(t)
	icu, _ := reg.Rotation("icu")
	comp := New(m, g, reg, groups.NewStore(reg), nil)
	one := Bound(1)
	if err := comp.Compile([]Constraint{&Coverage{Rotations: []int{icu}, RMin: one, RMax: one}}); err != nil {
		t.Fatal(err)
	}

	for _, sol := range allAssignments(t, m, g) {
		for b := 0; b < g.Main.NumBlocks(); b++ {
			count := 0
			for _, name := range []string{"alice", "bob"} {
				if sol[name+"@"+g.Registry.BlockName(b)] == "icu" {
					count++
				}
			}
			if count != 1 {
				t.Errorf("block %d has %d residents on icu, want exactly 1: %v", b, count, sol)
			}
		}
	}
}

func TestCoverageRejectsInvertedBounds(t *testing.T) {
	m, g, reg := fixture(t)
	icu, _ := reg.Rotation("icu")
	comp := New(m, g, reg, groups.NewStore(reg), nil)
	err := comp.Compile([]Constraint{&Coverage{Rotations: []int{icu}, RMin: Bound(2), RMax: Bound(1)}})
	if err == nil {
		t.Fatal("expected a compile-time error for rmin > rmax")
	}
}

// TestConsecutiveCountRootsOnlyAtAllowedBlock reproduces spec.md §8
// scenario 3: a resident required to hold Ro1 for exactly four
// consecutive blocks, with Bl1 and Bl3 forbidden as run roots, can
// only root the run at Bl2, yielding Ro2,Ro1,Ro1,Ro1,Ro1,Ro2.
func TestConsecutiveCountRootsOnlyAtAllowedBlock(t *testing.T) {
	reg := registry.New()
	reg.DeclareResident("alice")
	for _, b := range []string{"Bl1", "Bl2", "Bl3", "Bl4", "Bl5", "Bl6"} {
		reg.DeclareBlock(b)
	}
	reg.DeclareRotation("Ro1")
	reg.DeclareRotation("Ro2")

	m := backtrack.New()
	g, err := sched.Build(m, reg, sched.Options{})
	if err != nil {
		t.Fatal(err)
	}

	alice, _ := reg.Resident("alice")
	ro1, _ := reg.Rotation("Ro1")
	bl1, _ := reg.Block("Bl1")
	bl3, _ := reg.Block("Bl3")

	comp := New(m, g, reg, groups.NewStore(reg), nil)
	constraints := []Constraint{
		&RotationCount{Rotation: ro1, Bounds: map[int][2]int{alice: {4, 4}}},
		&ConsecutiveCount{Rotation: ro1, Count: 4, ForbiddenRoots: []int{bl1, bl3}},
	}
	if err := comp.Compile(constraints); err != nil {
		t.Fatal(err)
	}

	var sols []map[string]string
	_, err = m.Solve(solver.Params{EnumerateAllSolutions: true}, func(sc solver.SolutionContext) {
		sol := map[string]string{}
		for b := 0; b < g.Main.NumBlocks(); b++ {
			for tt := 0; tt < g.Main.NumRotations(); tt++ {
				if sc.Value(solver.Var(g.Main.At(alice, b, tt))) == 1 {
					sol[g.Registry.BlockName(b)] = g.Registry.RotationName(tt)
				}
			}
		}
		sols = append(sols, sol)
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(sols) != 1 {
		t.Fatalf("got %d solutions, want exactly 1 (only Bl2 is a legal root): %v", len(sols), sols)
	}
	want := map[string]string{"Bl1": "Ro2", "Bl2": "Ro1", "Bl3": "Ro1", "Bl4": "Ro1", "Bl5": "Ro1", "Bl6": "Ro2"}
	if diff := cmp.Diff(want, sols[0]); diff != "" {
		t.Errorf("scenario 3 solution mismatch (-want +got):\n%s", diff)
	}
}

func TestMarkIneligible(t *testing.T) {
	m, g, reg := fixture(t)
	alice, _ := reg.Resident("alice")
	icu, _ := reg.Rotation("icu")
	comp := New(m, g, reg, groups.NewStore(reg), nil)
	if err := comp.Compile([]Constraint{&MarkIneligible{Resident: alice, Rotation: icu}}); err != nil {
		t.Fatal(err)
	}

	for _, sol := range allAssignments(t, m, g) {
		if sol["alice@b1"] == "icu" || sol["alice@b2"] == "icu" || sol["alice@b3"] == "icu" {
			t.Fatalf("MarkIneligible(alice, icu) violated: %v", sol)
		}
	}
}
