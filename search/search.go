// Copyright (C) 2024 rotasched authors
// Licensed under the GNU Affero General Public License v3.0 or later.
// See the LICENSE file for details.

// Package search is the Search Orchestrator of spec.md §4.6: it wraps
// a solver.Solver/solver.Model pair with worker sizing, hint
// application, a solution-count cap, and the streaming solution
// callback of spec.md §4.7, returning the final (status, stats, last
// solution, runtime) tuple the CLI reports.
package search

import (
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/rotasched/rotasched/internal/rlog"
	"github.com/rotasched/rotasched/solver"
)

// Options configures a Run call (spec.md §6's -p, -n, --hint flags).
type Options struct {
	// NumWorkers is the requested search parallelism. 0 defers to
	// the N_THREADS environment variable, then runtime.NumCPU, the
	// way plan.ExecParams.Parallel defers to runtime.NumCPU.
	NumWorkers int

	MaxTimeInSeconds     float64
	EnumerateAllSolutions bool

	// MaxSolutions caps how many feasible solutions Run reports
	// before stopping the search early, 0 meaning unbounded (spec.md
	// §6's -n flag).
	MaxSolutions int

	// Hints pins initial values the solver should try first (spec.md
	// §6's --hint), applied to m before Solve runs.
	Hints map[solver.Var]int

	Log *rlog.Logger
}

// numWorkers resolves worker count the way the teacher's plan package
// resolves ExecParams.Parallel: an explicit request wins, then the
// N_THREADS environment variable, then the number of CPUs.
func numWorkers(opts Options) int {
	if opts.NumWorkers > 0 {
		return opts.NumWorkers
	}
	if s := os.Getenv("N_THREADS"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return runtime.NumCPU()
}

// Stats summarizes one Run call for diagnostics/reporting.
type Stats struct {
	SolutionsFound int
	Runtime        time.Duration
}

// Result is the outcome of a Run call.
type Result struct {
	// RunID identifies this search attempt in logs, the way
	// cmd/snellerd's query handlers tag each request with a
	// uuid.New() queryID for tracing.
	RunID        uuid.UUID
	Status       solver.Status
	Stats        Stats
	LastSolution map[solver.Var]int
}

// Run applies opts.Hints to m and drives slv.Solve to completion (or
// to opts.MaxSolutions, or to the deadline), returning the final
// status and the last feasible solution streamed by the callback. Run
// does not set an objective; callers call m.Minimize before Run.
func Run(slv solver.Solver, m solver.Model, vars []solver.Var, opts Options) (*Result, error) {
	log := opts.Log
	if log == nil {
		log = rlog.Default()
	}
	runID := uuid.New()
	log.Debugf("search: run %s starting", runID)
	for v, val := range opts.Hints {
		m.AddHint(v, val)
	}

	params := solver.Params{
		NumSearchWorkers:      numWorkers(opts),
		MaxTimeInSeconds:      opts.MaxTimeInSeconds,
		EnumerateAllSolutions: opts.EnumerateAllSolutions,
	}
	log.Debugf("search: starting with %d workers, max_time=%.1fs, enumerate_all=%v",
		params.NumSearchWorkers, params.MaxTimeInSeconds, params.EnumerateAllSolutions)

	start := time.Now()
	var found int
	var last map[solver.Var]int
	status, err := slv.Solve(params, func(sc solver.SolutionContext) {
		found++
		snap := make(map[solver.Var]int, len(vars))
		for _, v := range vars {
			snap[v] = sc.Value(v)
		}
		last = snap
		log.Infof("search: solution %d found, objective=%v", found, sc.ObjectiveValue())
		if opts.MaxSolutions > 0 && found >= opts.MaxSolutions {
			sc.StopSearch()
		}
	})
	if err != nil {
		return nil, err
	}
	return &Result{
		RunID:  runID,
		Status: status,
		Stats: Stats{
			SolutionsFound: found,
			Runtime:        time.Since(start),
		},
		LastSolution: last,
	}, nil
}
