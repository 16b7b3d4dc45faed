// COMOR: Disease Co-occurrence Analysis Library
// Copyright (c) 2022 imec vzw.

// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version, and Additional Terms
// (see below).

// This program is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.

// You should have received a copy of the GNU Affero General Public
// License and Additional Terms along with this program. If not, see
// <https://www.gnu.org/licenses/>.

package comat

// Ratios is a square matrix of observed/bound ratios produced by the threshold
// analyzer. A zero cell means "not significant by this test", not "no
// co-occurrence".
type Ratios struct {
	Codes []string
	Cells [][]float64
}

func newRatios(codes []string) *Ratios {
	cells := make([][]float64, len(codes))
	for i := range cells {
		cells[i] = make([]float64, len(codes))
	}
	return &Ratios{Codes: codes, Cells: cells}
}

// WriteCSV writes the ratio matrix in the square-table layout shared by all
// persisted matrices.
func (r *Ratios) WriteCSV(path string) error {
	return writeFloatCSV(path, r.Codes, r.Cells)
}

// NonZeroCells counts the cells flagged as significant.
func (r *Ratios) NonZeroCells() int {
	ctr := 0
	for _, row := range r.Cells {
		for _, v := range row {
			if v != 0 {
				ctr++
			}
		}
	}
	return ctr
}

// Analyze compares a cohort's observed co-occurrence matrix against its
// bootstrap confidence interval and emits two ratio matrices over the
// intersection of the two disease universes (both inputs reindexed, missing
// cells filled with 0 counts and (0,0) bounds). Per aligned cell:
//
//	upper ratio = observed/upper iff upper > 0 and observed > upperThreshold*upper, else 0
//	lower ratio = observed/lower iff lower > 0 and observed < lowerThreshold*lower, else 0
//
// A negative lower bound fails the lower > 0 guard, so lower-significance can
// never be flagged for such cells; this follows directly from the CI stage not
// clamping bounds and must not be "fixed" by clamping here. When the two
// inputs share no disease codes the analyzer returns empty matrices together
// with ErrNoCommonCodes, a recoverable condition rather than a failure.
func Analyze(original *Matrix, ci *CIMatrix, upperThreshold, lowerThreshold float64) (*Ratios, *Ratios, error) {
	common := IntersectCodes(original.Codes, ci.Codes)
	upperRatios := newRatios(common)
	lowerRatios := newRatios(common)
	if len(common) == 0 {
		return upperRatios, lowerRatios, ErrNoCommonCodes
	}
	aligned := original.Reindex(common)
	for i, rowCode := range common {
		for j, colCode := range common {
			observed := float64(aligned.Cells[i][j])
			lower, upper := ci.Bounds(rowCode, colCode)
			if upper > 0 && observed > upperThreshold*upper {
				upperRatios.Cells[i][j] = observed / upper
			}
			if lower > 0 && observed < lowerThreshold*lower {
				lowerRatios.Cells[i][j] = observed / lower
			}
		}
	}
	return upperRatios, lowerRatios, nil
}
