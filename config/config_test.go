// Copyright (C) 2024 rotasched authors
// Licensed under the GNU Affero General Public License v3.0 or later.
// See the LICENSE file for details.

package config

import (
	"encoding/json"
	"strings"
	"testing"
)

const sampleYAML = `
name: test-scenario
residents: [alice, bob]
blocks: [b1, b2]
rotations: [icu, er]
groups:
  - name: seniors
    axis: resident
    selector: bob
vacation:
  weeks: 2
  week_to_blocks: [[0], [1]]
backup:
  k:
    alice: 1
    bob: 0
constraints:
  - kind: ConsecutiveCount
    params:
      Rotation: icu
      Count: 2
history:
  alice:
    icu: 3
`

func TestDecode(t *testing.T) {
	sc, err := Decode(strings.NewReader(sampleYAML))
	if err != nil {
		t.Fatal(err)
	}
	if sc.Name != "test-scenario" {
		t.Errorf("Name = %q, want test-scenario", sc.Name)
	}
	if len(sc.Residents) != 2 || len(sc.Blocks) != 2 || len(sc.Rotations) != 2 {
		t.Errorf("unexpected axis sizes: %+v", sc)
	}
	if len(sc.Groups) != 1 || sc.Groups[0].Name != "seniors" {
		t.Errorf("Groups = %+v", sc.Groups)
	}
	if sc.Vacation == nil || sc.Vacation.Weeks != 2 {
		t.Errorf("Vacation = %+v", sc.Vacation)
	}
	if sc.Backup == nil || sc.Backup.K["alice"] != 1 {
		t.Errorf("Backup = %+v", sc.Backup)
	}
	if len(sc.Constraints) != 1 || sc.Constraints[0].Kind != "ConsecutiveCount" {
		t.Fatalf("Constraints = %+v", sc.Constraints)
	}
	var params struct {
		Rotation string
		Count    int
	}
	if err := json.Unmarshal(sc.Constraints[0].Params.Raw, &params); err != nil {
		t.Fatal(err)
	}
	if params.Rotation != "icu" || params.Count != 2 {
		t.Errorf("decoded params = %+v", params)
	}
	if sc.History["alice"]["icu"] != 3 {
		t.Errorf("History[alice][icu] = %d, want 3", sc.History["alice"]["icu"])
	}
}

func TestDecodeRequiresName(t *testing.T) {
	_, err := Decode(strings.NewReader(`residents: [alice]`))
	if err == nil {
		t.Fatal("expected an error decoding a scenario with no name")
	}
}

func TestDecodeOversized(t *testing.T) {
	huge := strings.Repeat("a", maxConfigSize+1)
	_, err := Decode(strings.NewReader("name: x\nresidents: [" + huge + "]"))
	if err == nil {
		t.Fatal("expected an error decoding an oversized scenario")
	}
}
