// Copyright (C) 2024 rotasched authors
// Licensed under the GNU Affero General Public License v3.0 or later.
// See the LICENSE file for details.

// Package scenario bridges the YAML config layer (package config) to
// the runtime packages the solve pipeline is built from: it interns
// every declared name into the registry, evaluates every declared
// selector into the groups.Store, translates the vacation/backup
// settings into sched.Options, and lowers the declarative constraint
// list into sched/compile.Constraint values.
package scenario

import (
	"encoding/json"
	"fmt"

	"github.com/rotasched/rotasched/config"
	"github.com/rotasched/rotasched/groups"
	"github.com/rotasched/rotasched/registry"
	"github.com/rotasched/rotasched/sched"
	"github.com/rotasched/rotasched/sched/compile"
	"github.com/rotasched/rotasched/selector"
	"github.com/rotasched/rotasched/solver"
)

// Built bundles the registry, group store, grids and history of one
// interned scenario.
type Built struct {
	Registry *registry.Registry
	Store    *groups.Store
	Grids    *sched.Grids
	History  compile.History
}

func axisOf(s string) (registry.Axis, error) {
	switch s {
	case "resident":
		return registry.AxisResident, nil
	case "block":
		return registry.AxisBlock, nil
	case "rotation":
		return registry.AxisRotation, nil
	default:
		return 0, fmt.Errorf("scenario: unknown group axis %q", s)
	}
}

// Intern declares every resident/block/rotation/group name from sc
// into a fresh Registry and Store, and evaluates every group's
// selector expression to populate the Store's membership sets.
func Intern(sc *config.Scenario) (*registry.Registry, *groups.Store, error) {
	reg := registry.New()
	for _, r := range sc.Residents {
		reg.DeclareResident(r)
	}
	for _, b := range sc.Blocks {
		reg.DeclareBlock(b)
	}
	for _, t := range sc.Rotations {
		reg.DeclareRotation(t)
	}
	for _, g := range sc.Groups {
		axis, err := axisOf(g.Axis)
		if err != nil {
			return nil, nil, err
		}
		reg.DeclareGroup(g.Name, axis)
	}

	store := groups.NewStore(reg)
	for i, name := range reg.Residents() {
		store.AddResidentMember(name, i)
	}
	for i, name := range reg.Blocks() {
		store.AddBlockMember(name, i)
	}
	for i, name := range reg.Rotations() {
		store.AddRotationMember(name, i)
	}

	res := &selectorResolver{reg: reg, store: store}
	for _, g := range sc.Groups {
		expr, err := selector.Parse(g.Selector)
		if err != nil {
			return nil, nil, err
		}
		mask, err := expr.Eval(res)
		if err != nil {
			return nil, nil, err
		}
		axis, _ := reg.GroupAxis(g.Name)
		addMembers(store, g.Name, axis, mask)
	}
	return reg, store, nil
}

// addMembers records every entity mask selects, on axis, as a member
// of the named group. A group selector may combine operands from any
// axis via and/or/not, but the declared group itself always lives on
// one axis (spec.md §4.1): we project mask down onto that axis by
// asking, for every index on the group's own axis, whether the
// selector holds for at least one assignment of the other two axes.
func addMembers(store *groups.Store, name string, axis registry.Axis, mask groups.Mask) {
	d := mask.Dims()
	switch axis {
	case registry.AxisResident:
		for r := 0; r < d.Residents; r++ {
			if selectedOnAxis(mask, d, r, -1, -1) {
				store.AddResidentMember(name, r)
			}
		}
	case registry.AxisBlock:
		for b := 0; b < d.Blocks; b++ {
			if selectedOnAxis(mask, d, -1, b, -1) {
				store.AddBlockMember(name, b)
			}
		}
	case registry.AxisRotation:
		for t := 0; t < d.Rotations; t++ {
			if selectedOnAxis(mask, d, -1, -1, t) {
				store.AddRotationMember(name, t)
			}
		}
	}
}

func selectedOnAxis(mask groups.Mask, d groups.Dims, r, b, t int) bool {
	rs, re := 0, d.Residents
	bs, be := 0, d.Blocks
	ts, te := 0, d.Rotations
	if r >= 0 {
		rs, re = r, r+1
	}
	if b >= 0 {
		bs, be = b, b+1
	}
	if t >= 0 {
		ts, te = t, t+1
	}
	for rr := rs; rr < re; rr++ {
		for bb := bs; bb < be; bb++ {
			for tt := ts; tt < te; tt++ {
				if mask.Get(rr, bb, tt) {
					return true
				}
			}
		}
	}
	return false
}

type selectorResolver struct {
	reg   *registry.Registry
	store *groups.Store
}

func (r *selectorResolver) Mask(name string) (groups.Mask, error) { return r.store.Mask(name) }
func (r *selectorResolver) BlockMaskByOrdinal(n int) (groups.Mask, error) {
	return r.store.BlockMaskByOrdinal(n)
}

// HistoryFrom converts sc's resident-name-keyed history table into
// compile.History, keyed by interned indices.
func HistoryFrom(sc *config.Scenario, reg *registry.Registry) (compile.History, error) {
	if sc.History == nil {
		return nil, nil
	}
	h := make(compile.History)
	for rname, byRot := range sc.History {
		r, err := reg.Resident(rname)
		if err != nil {
			return nil, err
		}
		m := make(map[int]int, len(byRot))
		for tname, count := range byRot {
			t, err := reg.Rotation(tname)
			if err != nil {
				return nil, err
			}
			m[t] = count
		}
		h[r] = m
	}
	return h, nil
}

// GridOptions translates sc's vacation/backup sections into
// sched.Options, resolving resident names to indices.
func GridOptions(sc *config.Scenario, reg *registry.Registry) (sched.Options, error) {
	var opts sched.Options
	if sc.Backup != nil {
		k := make([]int, reg.NumResidents())
		for name, v := range sc.Backup.K {
			r, err := reg.Resident(name)
			if err != nil {
				return opts, err
			}
			k[r] = v
		}
		opts.BackupK = k
	}
	if sc.Vacation != nil {
		opts.VacationWeeks = sc.Vacation.Weeks
		opts.WeekToBlocks = sched.WeekBlocks(sc.Vacation.WeekToBlocks)
	}
	return opts, nil
}

// ConstraintBuilder lowers one config.GroupConstraint into a
// sched/compile.Constraint, given the already-built Registry/Store.
type ConstraintBuilder struct {
	Reg   *registry.Registry
	Store *groups.Store
}

// Build decodes gc.Params.Raw according to gc.Kind and returns the
// matching sched/compile.Constraint. Unrecognized kinds are reported
// as *compile.Error so the CLI's error path stays uniform.
func (cb *ConstraintBuilder) Build(gc config.GroupConstraint) (compile.Constraint, error) {
	switch gc.Kind {
	case "Coverage":
		var p struct {
			Rotations []string
			Blocks    []string
			RMin      *int
			RMax      *int
		}
		if err := json.Unmarshal(gc.Params.Raw, &p); err != nil {
			return nil, err
		}
		rots, err := cb.rotationIndices(p.Rotations)
		if err != nil {
			return nil, err
		}
		blocks, err := cb.blockIndices(p.Blocks)
		if err != nil {
			return nil, err
		}
		return &compile.Coverage{Rotations: rots, Blocks: blocks, RMin: p.RMin, RMax: p.RMax}, nil

	case "RotationCountNot":
		var p struct {
			Rotation string
			K        int
		}
		if err := json.Unmarshal(gc.Params.Raw, &p); err != nil {
			return nil, err
		}
		t, err := cb.Reg.Rotation(p.Rotation)
		if err != nil {
			return nil, err
		}
		return &compile.RotationCountNot{Rotation: t, K: p.K}, nil

	case "MustBeFollowedBy":
		var p struct {
			Rotation    string
			AllowedNext []string
		}
		if err := json.Unmarshal(gc.Params.Raw, &p); err != nil {
			return nil, err
		}
		t, err := cb.Reg.Rotation(p.Rotation)
		if err != nil {
			return nil, err
		}
		next, err := cb.rotationIndices(p.AllowedNext)
		if err != nil {
			return nil, err
		}
		return &compile.MustBeFollowedBy{Rotation: t, AllowedNext: next}, nil

	case "BanRotationBlock":
		var p struct {
			Block    string
			Rotation string
		}
		if err := json.Unmarshal(gc.Params.Raw, &p); err != nil {
			return nil, err
		}
		b, err := cb.Reg.Block(p.Block)
		if err != nil {
			return nil, err
		}
		t, err := cb.Reg.Rotation(p.Rotation)
		if err != nil {
			return nil, err
		}
		return &compile.BanRotationBlock{Block: b, Rotation: t}, nil

	case "ConsecutiveCount":
		var p struct {
			Rotation       string
			Count          int
			ForbiddenRoots []string
			AllowedRoots   []string
		}
		if err := json.Unmarshal(gc.Params.Raw, &p); err != nil {
			return nil, err
		}
		t, err := cb.Reg.Rotation(p.Rotation)
		if err != nil {
			return nil, err
		}
		forbidden, err := cb.blockIndices(p.ForbiddenRoots)
		if err != nil {
			return nil, err
		}
		allowed, err := cb.blockIndices(p.AllowedRoots)
		if err != nil {
			return nil, err
		}
		return &compile.ConsecutiveCount{Rotation: t, Count: p.Count, ForbiddenRoots: forbidden, AllowedRoots: allowed}, nil

	case "AlwaysPaired":
		// spec.md §6's always_paired shorthand: a resident on this
		// rotation must hold it for exactly two consecutive blocks.
		var p struct{ Rotation string }
		if err := json.Unmarshal(gc.Params.Raw, &p); err != nil {
			return nil, err
		}
		t, err := cb.Reg.Rotation(p.Rotation)
		if err != nil {
			return nil, err
		}
		return &compile.ConsecutiveCount{Rotation: t, Count: 2}, nil

	case "CoolDown":
		var p struct {
			Rotation    string
			Window      int
			Count       int
			SuppressFor []string
		}
		if err := json.Unmarshal(gc.Params.Raw, &p); err != nil {
			return nil, err
		}
		t, err := cb.Reg.Rotation(p.Rotation)
		if err != nil {
			return nil, err
		}
		suppress, err := cb.residentIndices(p.SuppressFor)
		if err != nil {
			return nil, err
		}
		return &compile.CoolDown{Rotation: t, Window: p.Window, Count: p.Count, SuppressFor: suppress}, nil

	case "MarkIneligible":
		var p struct {
			Resident string
			Rotation string
		}
		if err := json.Unmarshal(gc.Params.Raw, &p); err != nil {
			return nil, err
		}
		r, err := cb.Reg.Resident(p.Resident)
		if err != nil {
			return nil, err
		}
		t, err := cb.Reg.Rotation(p.Rotation)
		if err != nil {
			return nil, err
		}
		return &compile.MarkIneligible{Resident: r, Rotation: t}, nil

	case "RotationCount":
		var p struct {
			Rotation   string
			UseHistory bool
			Bounds     map[string][2]int // resident name -> [nmin, nmax]
		}
		if err := json.Unmarshal(gc.Params.Raw, &p); err != nil {
			return nil, err
		}
		t, err := cb.Reg.Rotation(p.Rotation)
		if err != nil {
			return nil, err
		}
		bounds := make(map[int][2]int, len(p.Bounds))
		for name, nn := range p.Bounds {
			r, err := cb.Reg.Resident(name)
			if err != nil {
				return nil, err
			}
			bounds[r] = nn
		}
		return &compile.RotationCount{Rotation: t, Bounds: bounds, UseHistory: p.UseHistory}, nil

	case "Prerequisite", "IneligibleAfter":
		var p struct {
			Rotation string
			Groups   map[string]int // group name -> required count
		}
		if err := json.Unmarshal(gc.Params.Raw, &p); err != nil {
			return nil, err
		}
		t, err := cb.Reg.Rotation(p.Rotation)
		if err != nil {
			return nil, err
		}
		groups, err := cb.prereqGroups(p.Groups)
		if err != nil {
			return nil, err
		}
		if gc.Kind == "Prerequisite" {
			return &compile.Prerequisite{Rotation: t, Groups: groups}, nil
		}
		return &compile.IneligibleAfter{Rotation: t, Groups: groups}, nil

	case "PinnedRotation":
		var p struct {
			Resident string
			Blocks   []string
			Rotation string
		}
		if err := json.Unmarshal(gc.Params.Raw, &p); err != nil {
			return nil, err
		}
		r, err := cb.Reg.Resident(p.Resident)
		if err != nil {
			return nil, err
		}
		blocks, err := cb.blockIndices(p.Blocks)
		if err != nil {
			return nil, err
		}
		t, err := cb.Reg.Rotation(p.Rotation)
		if err != nil {
			return nil, err
		}
		return &compile.PinnedRotation{Resident: r, Blocks: blocks, Rotation: t}, nil

	case "FieldSum", "TrueSomewhere", "ProhibitedCombination":
		var p struct {
			Selector string
			Op       string
			RHS      int
		}
		if err := json.Unmarshal(gc.Params.Raw, &p); err != nil {
			return nil, err
		}
		mask, err := cb.Store.Mask(p.Selector)
		if err != nil {
			return nil, err
		}
		switch gc.Kind {
		case "TrueSomewhere":
			return &compile.TrueSomewhere{Mask: mask}, nil
		case "ProhibitedCombination":
			return &compile.ProhibitedCombination{Mask: mask}, nil
		default:
			op, err := parseOp(p.Op)
			if err != nil {
				return nil, err
			}
			return &compile.FieldSum{Mask: mask, Op: op, RHS: p.RHS}, nil
		}

	case "GroupCountPerResidentPerWindow":
		var p struct {
			Group  string
			Window int
			Bounds map[string][2]int // resident name -> [nmin, nmax]
		}
		if err := json.Unmarshal(gc.Params.Raw, &p); err != nil {
			return nil, err
		}
		mask, err := cb.Store.Mask(p.Group)
		if err != nil {
			return nil, err
		}
		var bounds []compile.ResidentBound
		for name, nn := range p.Bounds {
			r, err := cb.Reg.Resident(name)
			if err != nil {
				return nil, err
			}
			bounds = append(bounds, compile.ResidentBound{Resident: r, Min: nn[0], Max: nn[1]})
		}
		return &compile.GroupCountPerResidentPerWindow{Group: mask, Bounds: bounds, Window: p.Window}, nil

	case "TimeToFirst":
		var p struct {
			Group  string
			Window int
		}
		if err := json.Unmarshal(gc.Params.Raw, &p); err != nil {
			return nil, err
		}
		mask, err := cb.Store.Mask(p.Group)
		if err != nil {
			return nil, err
		}
		return &compile.TimeToFirst{Group: mask, Window: p.Window}, nil

	case "RotationWindow":
		var p struct {
			Resident        string
			Rotation        string
			CandidateBlocks []string
		}
		if err := json.Unmarshal(gc.Params.Raw, &p); err != nil {
			return nil, err
		}
		r, err := cb.Reg.Resident(p.Resident)
		if err != nil {
			return nil, err
		}
		t, err := cb.Reg.Rotation(p.Rotation)
		if err != nil {
			return nil, err
		}
		blocks, err := cb.blockIndices(p.CandidateBlocks)
		if err != nil {
			return nil, err
		}
		return &compile.RotationWindow{Resident: r, Rotation: t, CandidateBlocks: blocks}, nil

	case "GroupScore":
		var p struct {
			Group  string
			Weight int
		}
		if err := json.Unmarshal(gc.Params.Raw, &p); err != nil {
			return nil, err
		}
		mask, err := cb.Store.Mask(p.Group)
		if err != nil {
			return nil, err
		}
		return &compile.GroupScore{Mask: mask, Weight: p.Weight}, nil

	case "MinTotalScore":
		var p struct{ Min int }
		if err := json.Unmarshal(gc.Params.Raw, &p); err != nil {
			return nil, err
		}
		return &compile.MinTotalScore{Min: p.Min}, nil

	case "VacationMapping":
		return &compile.VacationMapping{}, nil

	case "VacationCooldown":
		var p struct {
			Window int
			Count  int
		}
		if err := json.Unmarshal(gc.Params.Raw, &p); err != nil {
			return nil, err
		}
		return &compile.VacationCooldown{Window: p.Window, Count: p.Count}, nil

	case "BackupRequiredOnBlock":
		var p struct {
			Block    string
			Min, Max int
		}
		if err := json.Unmarshal(gc.Params.Raw, &p); err != nil {
			return nil, err
		}
		b, err := cb.Reg.Block(p.Block)
		if err != nil {
			return nil, err
		}
		return &compile.BackupRequiredOnBlock{Block: b, Min: p.Min, Max: p.Max}, nil

	case "RotationBackupCount":
		var p struct {
			Rotation string
			Cap      int
		}
		if err := json.Unmarshal(gc.Params.Raw, &p); err != nil {
			return nil, err
		}
		t, err := cb.Reg.Rotation(p.Rotation)
		if err != nil {
			return nil, err
		}
		return &compile.RotationBackupCount{Rotation: t, Cap: p.Cap}, nil

	case "BackupEligibleBlocks":
		var p struct {
			Resident string
			Blocks   []string
		}
		if err := json.Unmarshal(gc.Params.Raw, &p); err != nil {
			return nil, err
		}
		r, err := cb.Reg.Resident(p.Resident)
		if err != nil {
			return nil, err
		}
		blocks, err := cb.blockIndices(p.Blocks)
		if err != nil {
			return nil, err
		}
		return &compile.BackupEligibleBlocks{Resident: r, Blocks: blocks}, nil

	case "BanBackupBlock":
		var p struct {
			Resident string
			Block    string
		}
		if err := json.Unmarshal(gc.Params.Raw, &p); err != nil {
			return nil, err
		}
		r, err := cb.Reg.Resident(p.Resident)
		if err != nil {
			return nil, err
		}
		b, err := cb.Reg.Block(p.Block)
		if err != nil {
			return nil, err
		}
		return &compile.BanBackupBlock{Resident: r, Block: b}, nil

	case "ChosenVacation":
		var p struct {
			Resident string
			Count    int
		}
		if err := json.Unmarshal(gc.Params.Raw, &p); err != nil {
			return nil, err
		}
		r, err := cb.Reg.Resident(p.Resident)
		if err != nil {
			return nil, err
		}
		return &compile.ChosenVacation{Resident: r, Count: p.Count}, nil

	case "AllowedRoots":
		var p struct {
			Rotation string
			Starts   []string
		}
		if err := json.Unmarshal(gc.Params.Raw, &p); err != nil {
			return nil, err
		}
		t, err := cb.Reg.Rotation(p.Rotation)
		if err != nil {
			return nil, err
		}
		starts, err := cb.blockIndices(p.Starts)
		if err != nil {
			return nil, err
		}
		return &compile.AllowedRoots{Rotation: t, Starts: starts}, nil

	default:
		return nil, &compile.Error{Kind: compile.ErrYAMLParse, Token: gc.Kind, Cause: fmt.Errorf("unrecognized constraint kind")}
	}
}

func (cb *ConstraintBuilder) rotationIndices(names []string) ([]int, error) {
	out := make([]int, len(names))
	for i, n := range names {
		t, err := cb.Reg.Rotation(n)
		if err != nil {
			return nil, err
		}
		out[i] = t
	}
	return out, nil
}

func (cb *ConstraintBuilder) blockIndices(names []string) ([]int, error) {
	if names == nil {
		return nil, nil
	}
	out := make([]int, len(names))
	for i, n := range names {
		b, err := cb.Reg.Block(n)
		if err != nil {
			return nil, err
		}
		out[i] = b
	}
	return out, nil
}

func (cb *ConstraintBuilder) residentIndices(names []string) ([]int, error) {
	out := make([]int, len(names))
	for i, n := range names {
		r, err := cb.Reg.Resident(n)
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	return out, nil
}

// prereqGroups resolves a (group name -> required count) map from
// config into []compile.PrereqGroup, evaluating each group name
// against the store's selector namespace.
func (cb *ConstraintBuilder) prereqGroups(m map[string]int) ([]compile.PrereqGroup, error) {
	out := make([]compile.PrereqGroup, 0, len(m))
	for name, required := range m {
		mask, err := cb.Store.Mask(name)
		if err != nil {
			return nil, err
		}
		out = append(out, compile.PrereqGroup{Group: mask, Required: required})
	}
	return out, nil
}

// parseOp resolves a FieldSum op name as it appears in scenario YAML
// ("eq", "le", "ge") into a solver.Op.
func parseOp(s string) (solver.Op, error) {
	switch s {
	case "eq", "==":
		return solver.OpEq, nil
	case "le", "<=":
		return solver.OpLe, nil
	case "ge", ">=":
		return solver.OpGe, nil
	default:
		return 0, fmt.Errorf("scenario: unrecognized comparison op %q", s)
	}
}
