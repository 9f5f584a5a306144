// Copyright (C) 2024 rotasched authors
// Licensed under the GNU Affero General Public License v3.0 or later.
// See the LICENSE file for details.

package groups

import (
	"testing"

	"github.com/rotasched/rotasched/registry"
)

func newFixture() (*registry.Registry, *Store) {
	reg := registry.New()
	reg.DeclareResident("alice")
	reg.DeclareResident("bob")
	reg.DeclareBlock("b1")
	reg.DeclareBlock("b2")
	reg.DeclareRotation("icu")
	reg.DeclareRotation("er")
	reg.DeclareGroup("seniors", registry.AxisResident)

	store := NewStore(reg)
	store.AddResidentMember("alice", 0)
	store.AddResidentMember("bob", 1)
	store.AddBlockMember("b1", 0)
	store.AddBlockMember("b2", 1)
	store.AddRotationMember("icu", 0)
	store.AddRotationMember("er", 1)
	store.AddResidentMember("seniors", 1) // bob is a senior
	return reg, store
}

func TestMaskSingleEntityBroadcasts(t *testing.T) {
	_, store := newFixture()

	m, err := store.Mask("alice")
	if err != nil {
		t.Fatal(err)
	}
	if !m.Get(0, 0, 0) || !m.Get(0, 1, 1) {
		t.Error("alice's mask should select every (block, rotation) for resident 0")
	}
	if m.Get(1, 0, 0) {
		t.Error("alice's mask should not select resident 1")
	}
}

func TestMaskGroupBroadcasts(t *testing.T) {
	_, store := newFixture()

	m, err := store.Mask("seniors")
	if err != nil {
		t.Fatal(err)
	}
	if !m.Get(1, 0, 0) || !m.Get(1, 1, 1) {
		t.Error("seniors should select every cell for resident 1 (bob)")
	}
	if m.Get(0, 0, 0) {
		t.Error("seniors should not select resident 0 (alice)")
	}
}

func TestMaskUnknownName(t *testing.T) {
	_, store := newFixture()
	if _, err := store.Mask("nobody"); err == nil {
		t.Fatal("expected an error resolving an undeclared name")
	}
}

func TestBlockMaskByOrdinal(t *testing.T) {
	_, store := newFixture()

	m, err := store.BlockMaskByOrdinal(2)
	if err != nil {
		t.Fatal(err)
	}
	if !m.Get(0, 1, 0) || !m.Get(1, 1, 1) {
		t.Error("Block 2 should select every (resident, rotation) at block index 1")
	}
	if m.Get(0, 0, 0) {
		t.Error("Block 2 should not select block index 0")
	}

	if _, err := store.BlockMaskByOrdinal(99); err == nil {
		t.Fatal("expected an out-of-range error for Block 99")
	}
}
