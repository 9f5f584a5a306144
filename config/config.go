// Copyright (C) 2024 rotasched authors
// Licensed under the GNU Affero General Public License v3.0 or later.
// See the LICENSE file for details.

// Package config decodes the YAML scenario definition spec.md §6
// describes: residents, blocks, rotations, named groups, the vacation
// and backup co-grid settings, and the declarative constraint list.
// Decoding follows db.DecodeDefinition's shape (a single typed decode
// call over an io.Reader), generalized from JSON to YAML via
// sigs.k8s.io/yaml, which re-marshals YAML to JSON before applying the
// standard encoding/json struct tags.
package config

import (
	"fmt"
	"io"
	"io/fs"

	"sigs.k8s.io/yaml"
)

// maxConfigSize mirrors db.maxDefSize: an upper bound on a scenario
// file's size to keep a malformed or hostile file from being decoded
// without bound.
const maxConfigSize = 8 * 1024 * 1024

// Group is a named selector-DSL group declaration.
type Group struct {
	Name     string `json:"name"`
	Axis     string `json:"axis"` // "resident", "block", or "rotation"
	Selector string `json:"selector"`
}

// VacationConfig configures the optional vacation co-grid.
type VacationConfig struct {
	Weeks        int     `json:"weeks"`
	WeekToBlocks [][]int `json:"week_to_blocks,omitempty"`
}

// BackupConfig configures the optional backup co-grid.
type BackupConfig struct {
	// K is the per-resident backup-block cardinality, keyed by
	// resident name; residents absent from the map get 0.
	K map[string]int `json:"k"`
}

// GroupConstraint is one entry of the declarative constraint list.
// Kind selects which sched/compile.Constraint it lowers to; Params
// holds the kind-specific arguments as raw YAML/JSON, deferred to the
// builder (scenario.ConstraintBuilder) that knows how to interpret each kind.
type GroupConstraint struct {
	Kind   string          `json:"kind"`
	Params ConstraintParams `json:"params"`
}

// ConstraintParams is intentionally untyped at the config layer: the
// ~25 constraint kinds of spec.md §4.4 each have a different
// parameter shape, and re-declaring all of them as config-layer
// structs as well as sched/compile structs would just be duplication
// for duplication's sake. The builder decodes Raw into the concrete
// kind once it knows, from Kind, which shape to expect.
type ConstraintParams struct {
	Raw []byte
}

func (p *ConstraintParams) UnmarshalJSON(b []byte) error {
	p.Raw = append([]byte(nil), b...)
	return nil
}

func (p ConstraintParams) MarshalJSON() ([]byte, error) {
	if p.Raw == nil {
		return []byte("null"), nil
	}
	return p.Raw, nil
}

// Scenario is the root of a scenario definition file.
type Scenario struct {
	Name      string            `json:"name"`
	Residents []string          `json:"residents"`
	Blocks    []string          `json:"blocks"`
	Rotations []string          `json:"rotations"`
	Groups    []Group           `json:"groups,omitempty"`
	Vacation  *VacationConfig   `json:"vacation,omitempty"`
	Backup    *BackupConfig     `json:"backup,omitempty"`
	Constraints []GroupConstraint `json:"constraints,omitempty"`
	// History maps a resident name to a rotation-name -> prior-count
	// table (spec.md §4.4's "prior counts").
	History map[string]map[string]int `json:"history,omitempty"`
}

// Decode decodes a scenario definition from YAML (or plain JSON, which
// is valid YAML) read from src.
func Decode(src io.Reader) (*Scenario, error) {
	buf, err := io.ReadAll(io.LimitReader(src, maxConfigSize+1))
	if err != nil {
		return nil, err
	}
	if len(buf) > maxConfigSize {
		return nil, fmt.Errorf("config: definition exceeds %d byte limit", maxConfigSize)
	}
	s := new(Scenario)
	if err := yaml.Unmarshal(buf, s); err != nil {
		return nil, fmt.Errorf("config: parsing scenario: %w", err)
	}
	if s.Name == "" {
		return nil, fmt.Errorf("config: scenario has no name")
	}
	return s, nil
}

// Load opens and decodes a scenario definition at path within fsys.
func Load(fsys fs.FS, path string) (*Scenario, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}
