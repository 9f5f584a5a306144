// Copyright (C) 2024 rotasched authors
// Licensed under the GNU Affero General Public License v3.0 or later.
// See the LICENSE file for details.

// Package csvio reads the plain-CSV side-input files spec.md §6 lists
// (--coverage-min, --coverage-max, --rotation-pins, --rankings,
// --block-resident-ranking) and writes the final solution CSV,
// grounded on xsv.CsvChopper's encoding/csv configuration (lazy
// quotes, variable field counts, an optional header skip) but without
// the ION-chunking destination xsv targets — these files are small,
// structured side-inputs, not bulk data to ingest.
package csvio

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// reader wraps encoding/csv the way xsv.CsvChopper does: lazy quotes,
// a variable number of fields per record, and an optional leading
// header row to skip.
func reader(r io.Reader, skipHeader bool) (*csv.Reader, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true
	cr.LazyQuotes = true
	if skipHeader {
		if _, err := cr.Read(); err != nil && err != io.EOF {
			return nil, err
		}
	}
	return cr, nil
}

// CoverageBound is one rotation's [min, max] per-block coverage
// bound, as read from a --coverage-min/--coverage-max CSV (columns:
// rotation, value).
type CoverageBound struct {
	Rotation string
	Value    int
}

// ReadCoverageBounds reads a two-column (rotation, value) CSV.
func ReadCoverageBounds(r io.Reader) ([]CoverageBound, error) {
	cr, err := reader(r, true)
	if err != nil {
		return nil, err
	}
	var out []CoverageBound
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(rec) < 2 {
			return nil, fmt.Errorf("csvio: coverage row %v: want 2 columns", rec)
		}
		v, err := strconv.Atoi(rec[1])
		if err != nil {
			return nil, fmt.Errorf("csvio: coverage row %v: %w", rec, err)
		}
		out = append(out, CoverageBound{Rotation: rec[0], Value: v})
	}
	return out, nil
}

// RotationPin is one row of a --rotation-pins CSV (columns: resident,
// block, rotation). An empty Block means "anywhere" (spec.md §4.4's
// PinnedRotation with no listed blocks).
type RotationPin struct {
	Resident string
	Block    string
	Rotation string
}

// ReadRotationPins reads a three-column (resident, block, rotation)
// CSV.
func ReadRotationPins(r io.Reader) ([]RotationPin, error) {
	cr, err := reader(r, true)
	if err != nil {
		return nil, err
	}
	var out []RotationPin
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(rec) < 3 {
			return nil, fmt.Errorf("csvio: rotation-pins row %v: want 3 columns", rec)
		}
		out = append(out, RotationPin{Resident: rec[0], Block: rec[1], Rotation: rec[2]})
	}
	return out, nil
}

// RankingRow is one row of a --rankings or --block-resident-ranking
// CSV (columns: resident, block, rotation, weight).
type RankingRow struct {
	Resident string
	Block    string
	Rotation string
	Weight   int
}

// ReadRankings reads a four-column (resident, block, rotation,
// weight) CSV. --block-resident-ranking uses the same shape.
func ReadRankings(r io.Reader) ([]RankingRow, error) {
	cr, err := reader(r, true)
	if err != nil {
		return nil, err
	}
	var out []RankingRow
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(rec) < 4 {
			return nil, fmt.Errorf("csvio: ranking row %v: want 4 columns", rec)
		}
		w, err := strconv.Atoi(rec[3])
		if err != nil {
			return nil, fmt.Errorf("csvio: ranking row %v: %w", rec, err)
		}
		out = append(out, RankingRow{Resident: rec[0], Block: rec[1], Rotation: rec[2], Weight: w})
	}
	return out, nil
}

// Assignment is one resident's rotation during one block, with an
// optional concurrent backup marker, for WriteSolution.
type Assignment struct {
	Resident string
	Block    string
	Rotation string
	Backup   bool
}

// WriteSolution writes the final schedule as long-form CSV: a
// resident,block,rotation header, then one row per (resident, block)
// with the assigned rotation in the third column, suffixed with "+"
// when the resident is also on backup duty that block. It does not
// write a blocks-by-residents grid.
func WriteSolution(w io.Writer, rows []Assignment) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"resident", "block", "rotation"}); err != nil {
		return err
	}
	for _, row := range rows {
		rot := row.Rotation
		if row.Backup {
			rot += "+"
		}
		if err := cw.Write([]string{row.Resident, row.Block, rot}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
