// Copyright (C) 2024 rotasched authors
// Licensed under the GNU Affero General Public License v3.0 or later.
// See the LICENSE file for details.

package groups

import "testing"

func collect(m Mask) [][3]int {
	var out [][3]int
	m.Iterate(func(r, b, t int) { out = append(out, [3]int{r, b, t}) })
	return out
}

func TestDenseMaskGetSet(t *testing.T) {
	d := NewDense(Dims{Residents: 2, Blocks: 2, Rotations: 2})
	d.Set(0, 1, 0)
	d.Set(1, 0, 1)

	if !d.Get(0, 1, 0) || !d.Get(1, 0, 1) {
		t.Fatal("Get did not see the cells that were Set")
	}
	if d.Get(0, 0, 0) || d.Get(1, 1, 1) {
		t.Fatal("Get saw a cell that was never Set")
	}
	if got := len(collect(d)); got != 2 {
		t.Fatalf("Iterate visited %d cells, want 2", got)
	}
}

func TestAndOrNot(t *testing.T) {
	dims := Dims{Residents: 1, Blocks: 1, Rotations: 4}
	a := NewDense(dims)
	a.Set(0, 0, 0)
	a.Set(0, 0, 1)
	b := NewDense(dims)
	b.Set(0, 0, 1)
	b.Set(0, 0, 2)

	and := And(a, b)
	if got := len(collect(and)); got != 1 || !and.Get(0, 0, 1) {
		t.Errorf("And result = %v, want only (0,0,1) selected", collect(and))
	}

	or := Or(a, b)
	if got := len(collect(or)); got != 3 {
		t.Errorf("Or result has %d cells, want 3", got)
	}

	not := Not(a)
	if not.Get(0, 0, 0) || not.Get(0, 0, 1) {
		t.Error("Not(a) should exclude a's own cells")
	}
	if !not.Get(0, 0, 2) || !not.Get(0, 0, 3) {
		t.Error("Not(a) should include cells a did not select")
	}
}

func TestMaterializeRoundTrips(t *testing.T) {
	dims := Dims{Residents: 2, Blocks: 1, Rotations: 1}
	a := NewDense(dims)
	a.Set(0, 0, 0)
	lazy := Not(Not(a)) // forces a lazy tree, not a DenseMask
	d := materialize(lazy)
	if !d.Get(0, 0, 0) || d.Get(1, 0, 0) {
		t.Errorf("materialize(lazy) mismatched the source mask")
	}
}
