// Copyright (C) 2024 rotasched authors
// Licensed under the GNU Affero General Public License v3.0 or later.
// See the LICENSE file for details.

package scenario

import (
	"strings"
	"testing"

	"github.com/rotasched/rotasched/config"
	"github.com/rotasched/rotasched/sched/compile"
)

const testScenario = `
name: unit-test
residents: [alice, bob]
blocks: [b1, b2]
rotations: [icu, er]
groups:
  - name: seniors
    axis: resident
    selector: bob
  - name: daytime
    axis: block
    selector: b1 or b2
backup:
  k:
    alice: 1
    bob: 0
constraints:
  - kind: BanRotationBlock
    params:
      Block: b1
      Rotation: icu
history:
  alice:
    icu: 2
`

func mustDecode(t *testing.T) *config.Scenario {
	t.Helper()
	sc, err := config.Decode(strings.NewReader(testScenario))
	if err != nil {
		t.Fatal(err)
	}
	return sc
}

func TestInternDeclaresEverything(t *testing.T) {
	sc := mustDecode(t)
	reg, store, err := Intern(sc)
	if err != nil {
		t.Fatal(err)
	}
	if reg.NumResidents() != 2 || reg.NumBlocks() != 2 || reg.NumRotations() != 2 {
		t.Fatalf("unexpected axis sizes from Intern: %d/%d/%d", reg.NumResidents(), reg.NumBlocks(), reg.NumRotations())
	}

	m, err := store.Mask("seniors")
	if err != nil {
		t.Fatal(err)
	}
	if !m.Get(1, 0, 0) {
		t.Error("seniors (bob) should select resident index 1")
	}
	if m.Get(0, 0, 0) {
		t.Error("seniors should not select alice")
	}

	dayMask, err := store.Mask("daytime")
	if err != nil {
		t.Fatal(err)
	}
	if !dayMask.Get(0, 0, 0) || !dayMask.Get(0, 1, 0) {
		t.Error("daytime (b1 or b2) should select every block")
	}
}

func TestHistoryFrom(t *testing.T) {
	sc := mustDecode(t)
	reg, _, err := Intern(sc)
	if err != nil {
		t.Fatal(err)
	}
	hist, err := HistoryFrom(sc, reg)
	if err != nil {
		t.Fatal(err)
	}
	alice, _ := reg.Resident("alice")
	icu, _ := reg.Rotation("icu")
	if hist.Count(alice, icu) != 2 {
		t.Errorf("hist.Count(alice, icu) = %d, want 2", hist.Count(alice, icu))
	}
}

func TestGridOptionsFromBackup(t *testing.T) {
	sc := mustDecode(t)
	reg, _, err := Intern(sc)
	if err != nil {
		t.Fatal(err)
	}
	opts, err := GridOptions(sc, reg)
	if err != nil {
		t.Fatal(err)
	}
	alice, _ := reg.Resident("alice")
	if opts.BackupK[alice] != 1 {
		t.Errorf("BackupK[alice] = %d, want 1", opts.BackupK[alice])
	}
}

func TestConstraintBuilderBuild(t *testing.T) {
	sc := mustDecode(t)
	reg, store, err := Intern(sc)
	if err != nil {
		t.Fatal(err)
	}
	cb := &ConstraintBuilder{Reg: reg, Store: store}
	k, err := cb.Build(sc.Constraints[0])
	if err != nil {
		t.Fatal(err)
	}
	if k == nil {
		t.Fatal("Build returned a nil constraint")
	}
}

func TestConstraintBuilderUnknownKind(t *testing.T) {
	reg, store, err := Intern(mustDecode(t))
	if err != nil {
		t.Fatal(err)
	}
	cb := &ConstraintBuilder{Reg: reg, Store: store}
	_, err = cb.Build(config.GroupConstraint{Kind: "NotARealKind"})
	if err == nil {
		t.Fatal("expected an error for an unrecognized constraint kind")
	}
}

func TestConstraintBuilderConsecutiveCountResolvesRoots(t *testing.T) {
	reg, store, err := Intern(mustDecode(t))
	if err != nil {
		t.Fatal(err)
	}
	cb := &ConstraintBuilder{Reg: reg, Store: store}
	gc := config.GroupConstraint{
		Kind: "ConsecutiveCount",
		Params: config.ConstraintParams{Raw: []byte(
			`{"Rotation":"icu","Count":3,"ForbiddenRoots":["b1"],"AllowedRoots":["b2"]}`,
		)},
	}
	k, err := cb.Build(gc)
	if err != nil {
		t.Fatal(err)
	}
	cc, ok := k.(*compile.ConsecutiveCount)
	if !ok {
		t.Fatalf("Build returned %T, want *compile.ConsecutiveCount", k)
	}
	b1, _ := reg.Block("b1")
	b2, _ := reg.Block("b2")
	if cc.Count != 3 || len(cc.ForbiddenRoots) != 1 || cc.ForbiddenRoots[0] != b1 {
		t.Errorf("ForbiddenRoots not resolved: %+v", cc)
	}
	if len(cc.AllowedRoots) != 1 || cc.AllowedRoots[0] != b2 {
		t.Errorf("AllowedRoots not resolved: %+v", cc)
	}
}

func TestConstraintBuilderAlwaysPaired(t *testing.T) {
	reg, store, err := Intern(mustDecode(t))
	if err != nil {
		t.Fatal(err)
	}
	cb := &ConstraintBuilder{Reg: reg, Store: store}
	gc := config.GroupConstraint{
		Kind:   "AlwaysPaired",
		Params: config.ConstraintParams{Raw: []byte(`{"Rotation":"icu"}`)},
	}
	k, err := cb.Build(gc)
	if err != nil {
		t.Fatal(err)
	}
	cc, ok := k.(*compile.ConsecutiveCount)
	if !ok {
		t.Fatalf("Build returned %T, want *compile.ConsecutiveCount", k)
	}
	if cc.Count != 2 {
		t.Errorf("AlwaysPaired should lower to ConsecutiveCount{Count: 2}, got %+v", cc)
	}
}
