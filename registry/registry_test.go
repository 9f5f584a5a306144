// Copyright (C) 2024 rotasched authors
// Licensed under the GNU Affero General Public License v3.0 or later.
// See the LICENSE file for details.

package registry

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDeclareAndResolve(t *testing.T) {
	r := New()
	r.DeclareResident("alice")
	r.DeclareResident("bob")
	r.DeclareBlock("block1")
	r.DeclareRotation("icu")
	r.DeclareGroup("seniors", AxisResident)

	if idx, err := r.Resident("bob"); err != nil || idx != 1 {
		t.Fatalf("Resident(bob) = %d, %v, want 1, nil", idx, err)
	}

	kind, axis, idx, err := r.Resolve("seniors")
	if err != nil {
		t.Fatal(err)
	}
	if kind != ResolveGroup || axis != AxisResident {
		t.Errorf("Resolve(seniors) = %v,%v,%d, want ResolveGroup,AxisResident,_", kind, axis, idx)
	}

	kind, axis, idx, err = r.Resolve("alice")
	if err != nil {
		t.Fatal(err)
	}
	if kind != ResolveEntity || axis != AxisResident || idx != 0 {
		t.Errorf("Resolve(alice) = %v,%v,%d, want ResolveEntity,AxisResident,0", kind, axis, idx)
	}
}

func TestDeclareIsIdempotent(t *testing.T) {
	r := New()
	first := r.DeclareResident("alice")
	second := r.DeclareResident("alice")
	if first != second {
		t.Errorf("re-declaring the same name returned different indices: %d vs %d", first, second)
	}
	if r.NumResidents() != 1 {
		t.Errorf("NumResidents() = %d, want 1", r.NumResidents())
	}
}

func TestResolveUnknownName(t *testing.T) {
	r := New()
	r.DeclareResident("alice")
	_, _, _, err := r.Resolve("nobody")
	if err == nil {
		t.Fatal("expected an error resolving an undeclared name")
	}
	nfe, ok := err.(*NameNotFoundError)
	if !ok {
		t.Fatalf("error %v is not a *NameNotFoundError", err)
	}
	if nfe.Token != "nobody" {
		t.Errorf("Token = %q, want %q", nfe.Token, "nobody")
	}
}

func TestNamesPreserveDeclarationOrder(t *testing.T) {
	r := New()
	r.DeclareResident("zeta")
	r.DeclareResident("alpha")
	r.DeclareResident("mu")

	want := []string{"zeta", "alpha", "mu"}
	if diff := cmp.Diff(want, r.Residents()); diff != "" {
		t.Errorf("Residents() mismatch (-want +got):\n%s", diff)
	}
}

func TestFingerprintStableAndSensitive(t *testing.T) {
	a := New()
	a.DeclareResident("alice")
	a.DeclareBlock("b1")

	b := New()
	b.DeclareResident("alice")
	b.DeclareBlock("b1")

	if a.Fingerprint() != b.Fingerprint() {
		t.Error("two registries with identical declarations should fingerprint identically")
	}

	c := New()
	c.DeclareResident("alice")
	c.DeclareBlock("b2")
	if a.Fingerprint() == c.Fingerprint() {
		t.Error("registries with different declared names should not collide")
	}
}
