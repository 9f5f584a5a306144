// Copyright (C) 2024 rotasched authors
// Licensed under the GNU Affero General Public License v3.0 or later.
// See the LICENSE file for details.

package csvio

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestReadCoverageBounds(t *testing.T) {
	src := "rotation,value\nicu,2\ner,5\n"
	got, err := ReadCoverageBounds(strings.NewReader(src))
	if err != nil {
		t.Fatal(err)
	}
	want := []CoverageBound{{Rotation: "icu", Value: 2}, {Rotation: "er", Value: 5}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestReadRotationPins(t *testing.T) {
	src := "resident,block,rotation\nalice,b1,icu\nbob,,er\n"
	got, err := ReadRotationPins(strings.NewReader(src))
	if err != nil {
		t.Fatal(err)
	}
	want := []RotationPin{
		{Resident: "alice", Block: "b1", Rotation: "icu"},
		{Resident: "bob", Block: "", Rotation: "er"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestReadRankings(t *testing.T) {
	src := "resident,block,rotation,weight\nalice,b1,icu,3\n"
	got, err := ReadRankings(strings.NewReader(src))
	if err != nil {
		t.Fatal(err)
	}
	want := []RankingRow{{Resident: "alice", Block: "b1", Rotation: "icu", Weight: 3}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestReadRejectsShortRows(t *testing.T) {
	if _, err := ReadCoverageBounds(strings.NewReader("rotation,value\nicu\n")); err == nil {
		t.Fatal("expected an error for a short coverage row")
	}
	if _, err := ReadRankings(strings.NewReader("resident,block,rotation,weight\nalice,b1,icu\n")); err == nil {
		t.Fatal("expected an error for a short ranking row")
	}
}

func TestWriteSolution(t *testing.T) {
	var buf bytes.Buffer
	rows := []Assignment{
		{Resident: "alice", Block: "b1", Rotation: "icu"},
		{Resident: "bob", Block: "b1", Rotation: "er", Backup: true},
	}
	if err := WriteSolution(&buf, rows); err != nil {
		t.Fatal(err)
	}
	want := "resident,block,rotation\nalice,b1,icu\nbob,b1,er+\n"
	if buf.String() != want {
		t.Errorf("WriteSolution output =\n%s\nwant:\n%s", buf.String(), want)
	}
}
