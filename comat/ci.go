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

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/exascience/pargo/parallel"
	"gonum.org/v1/gonum/stat"
)

// DefaultZAlpha is the z-value for a 95% two-sided normal confidence interval.
const DefaultZAlpha = 1.96

// CIMatrix holds the per-cell bootstrap statistics for one cohort: the mean
// and sample standard deviation across bootstrap draws, and the derived
// confidence interval bounds. All four matrices share the same disease code
// universe. Bounds are not clamped to non-negative values: a lower bound may
// go below zero even though counts cannot, which is a property of the normal
// approximation and deliberately kept.
type CIMatrix struct {
	Codes []string
	Index map[string]int
	Mean  [][]float64
	Std   [][]float64
	Lower [][]float64
	Upper [][]float64
	N     int // number of bootstrap draws aggregated
}

func newCIMatrix(codes []string, n int) *CIMatrix {
	index := map[string]int{}
	for i, c := range codes {
		index[c] = i
	}
	alloc := func() [][]float64 {
		cells := make([][]float64, len(codes))
		for i := range cells {
			cells[i] = make([]float64, len(codes))
		}
		return cells
	}
	return &CIMatrix{
		Codes: codes,
		Index: index,
		Mean:  alloc(),
		Std:   alloc(),
		Lower: alloc(),
		Upper: alloc(),
		N:     n,
	}
}

// Bounds returns the confidence interval (lower, upper) for a pair of disease
// codes, or (0, 0) when either code is outside the matrix universe.
func (ci *CIMatrix) Bounds(code1, code2 string) (float64, float64) {
	i, ok1 := ci.Index[code1]
	j, ok2 := ci.Index[code2]
	if !ok1 || !ok2 {
		return 0, 0
	}
	return ci.Lower[i][j], ci.Upper[i][j]
}

// CalculateCI aggregates a cohort's bootstrap co-occurrence matrices into a
// per-cell confidence interval. The members' disease universes are unioned
// into one ordered index and every member is reindexed onto it, filling
// missing cells with 0: a disease absent from one draw but present in another
// is zero co-occurrence there, not missing data. Per cell, the mean and sample
// standard deviation (divisor N-1) are computed across draws, the standard
// error is std/sqrt(N), and the bounds are mean +/- zAlpha*SE. Fewer than two
// draws is a StatisticalPreconditionError since the sample standard deviation
// is undefined. Zero-variance cells yield a zero-width interval, which is a
// legitimate data state, not an error.
func CalculateCI(ensemble []*Matrix, zAlpha float64) (*CIMatrix, error) {
	n := len(ensemble)
	if n < 2 {
		return nil, &StatisticalPreconditionError{
			Msg: fmt.Sprintf("need at least 2 bootstrap matrices for a sample standard deviation, got %d", n),
		}
	}
	codes := UnionCodes(ensemble)
	aligned := make([]*Matrix, n)
	for k, m := range ensemble {
		aligned[k] = m.Reindex(codes)
	}
	ci := newCIMatrix(codes, n)
	sqrtN := math.Sqrt(float64(n))
	parallel.Range(0, len(codes), 0, func(low, high int) {
		samples := make([]float64, n)
		for i := low; i < high; i++ {
			for j := range codes {
				for k := range aligned {
					samples[k] = float64(aligned[k].Cells[i][j])
				}
				mean, std := stat.MeanStdDev(samples, nil)
				margin := zAlpha * std / sqrtN
				ci.Mean[i][j] = mean
				ci.Std[i][j] = std
				ci.Lower[i][j] = mean - margin
				ci.Upper[i][j] = mean + margin
			}
		}
	})
	return ci, nil
}

// writeFloatCSV writes a labeled square float matrix in the same layout as
// Matrix.WriteCSV.
func writeFloatCSV(path string, codes []string, cells [][]float64) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	writer := csv.NewWriter(file)
	defer writer.Flush()
	header := append([]string{""}, codes...)
	if err := writer.Write(header); err != nil {
		return err
	}
	row := make([]string, len(codes)+1)
	for i, code := range codes {
		row[0] = code
		for j, v := range cells[i] {
			row[j+1] = strconv.FormatFloat(v, 'f', 6, 64)
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	return nil
}

// WriteCSV writes the confidence interval matrix as a square table whose cells
// hold the textual pair "(lower, upper)" with fixed-point formatting.
func (ci *CIMatrix) WriteCSV(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	writer := csv.NewWriter(file)
	defer writer.Flush()
	header := append([]string{""}, ci.Codes...)
	if err := writer.Write(header); err != nil {
		return err
	}
	row := make([]string, len(ci.Codes)+1)
	for i, code := range ci.Codes {
		row[0] = code
		for j := range ci.Codes {
			row[j+1] = fmt.Sprintf("(%.6f, %.6f)", ci.Lower[i][j], ci.Upper[i][j])
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	return nil
}

// WriteMeanCSV writes the per-cell bootstrap means for reference.
func (ci *CIMatrix) WriteMeanCSV(path string) error {
	return writeFloatCSV(path, ci.Codes, ci.Mean)
}

// WriteStdCSV writes the per-cell sample standard deviations for reference.
func (ci *CIMatrix) WriteStdCSV(path string) error {
	return writeFloatCSV(path, ci.Codes, ci.Std)
}

// parseBoundsPair parses a "(lower, upper)" cell written by WriteCSV.
func parseBoundsPair(cell string) (float64, float64, error) {
	trimmed := strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(cell), "("), ")")
	parts := strings.Split(trimmed, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("malformed bounds pair %q", cell)
	}
	lower, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, err
	}
	upper, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, err
	}
	return lower, upper, nil
}

// ReadCIMatrixCSV reads a confidence interval matrix written by WriteCSV. The
// mean and standard deviation matrices are not part of the pair format and are
// left zero.
func ReadCIMatrixCSV(path string) (*CIMatrix, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err == io.EOF {
		return newCIMatrix(nil, 0), nil
	}
	if err != nil {
		return nil, err
	}
	codes := header[1:]
	ci := newCIMatrix(codes, 0)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		i, ok := ci.Index[record[0]]
		if !ok {
			return nil, fmt.Errorf("ci matrix %s: row code %q not in column index", path, record[0])
		}
		for j, cell := range record[1:] {
			lower, upper, err := parseBoundsPair(cell)
			if err != nil {
				return nil, fmt.Errorf("ci matrix %s: cell (%s,%s): %w", path, record[0], codes[j], err)
			}
			ci.Lower[i][j] = lower
			ci.Upper[i][j] = upper
		}
	}
	return ci, nil
}
