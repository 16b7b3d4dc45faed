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
	"os"
	"sort"
	"strconv"
	"strings"
)

// Matrix is a symmetric disease-by-disease co-occurrence matrix. Codes holds
// the simplified disease codes in lexicographic order, Index maps a code onto
// its row/column position, and Cells[i][j] counts the distinct participants
// diagnosed with both disease i and disease j. The diagonal is always 0
// because a code is never paired with itself.
type Matrix struct {
	Codes []string
	Index map[string]int
	Cells [][]int
}

// NewMatrix creates an all-zero matrix over the given disease codes. The codes
// are copied and sorted lexicographically to give a stable indexing.
func NewMatrix(codes []string) *Matrix {
	sorted := make([]string, len(codes))
	copy(sorted, codes)
	sort.Strings(sorted)
	index := map[string]int{}
	for i, c := range sorted {
		index[c] = i
	}
	cells := make([][]int, len(sorted))
	for i := range cells {
		cells[i] = make([]int, len(sorted))
	}
	return &Matrix{Codes: sorted, Index: index, Cells: cells}
}

// Size returns the number of disease codes indexing the matrix.
func (m *Matrix) Size() int {
	return len(m.Codes)
}

// At returns the co-occurrence count for a pair of disease codes, or 0 when
// either code is not part of the matrix universe.
func (m *Matrix) At(code1, code2 string) int {
	i, ok1 := m.Index[code1]
	j, ok2 := m.Index[code2]
	if !ok1 || !ok2 {
		return 0
	}
	return m.Cells[i][j]
}

// BuildOptions configures the co-occurrence matrix builder. ExcludePrefixes
// drops records whose simplified code starts with any of the listed prefixes,
// e.g. the external-cause and injury chapters S, T, V-Y.
type BuildOptions struct {
	ExcludePrefixes []string
}

func (o BuildOptions) excluded(code string) bool {
	for _, prefix := range o.ExcludePrefixes {
		if strings.HasPrefix(code, prefix) {
			return true
		}
	}
	return false
}

// BuildMatrix converts diagnosis records into a co-occurrence matrix. Records
// are deduplicated by (EID, raw code), codes are simplified to their category
// prefix, and records with an empty simplified code or an excluded prefix are
// dropped. Each participant contributes one increment per unordered pair of
// distinct simplified codes in their disease set; both (i,j) and (j,i) are
// incremented so the matrix stays symmetric. Returns the matrix and the number
// of distinct participants that survived cleaning. Empty input yields a 0x0
// matrix, not an error.
func BuildMatrix(records []DiagnosisRecord, opts BuildOptions) (*Matrix, int) {
	deduped := DedupRecords(records)
	// group distinct simplified codes per participant
	participantCodes := map[string]map[string]bool{}
	codeSet := map[string]bool{}
	for _, r := range deduped {
		code := SimplifyCode(r.Code)
		if code == "" || opts.excluded(code) {
			continue
		}
		codes, ok := participantCodes[r.EID]
		if !ok {
			codes = map[string]bool{}
			participantCodes[r.EID] = codes
		}
		codes[code] = true
		codeSet[code] = true
	}
	universe := make([]string, 0, len(codeSet))
	for code := range codeSet {
		universe = append(universe, code)
	}
	m := NewMatrix(universe)
	for _, codes := range participantCodes {
		indices := make([]int, 0, len(codes))
		for code := range codes {
			indices = append(indices, m.Index[code])
		}
		sort.Ints(indices)
		for a := 0; a < len(indices); a++ {
			for b := a + 1; b < len(indices); b++ {
				i, j := indices[a], indices[b]
				m.Cells[i][j]++
				m.Cells[j][i]++
			}
		}
	}
	return m, len(participantCodes)
}

// Reindex returns a new matrix over the given code universe. Cells for codes
// present in both universes are copied; all others are filled with 0. The
// receiver is left untouched, so alignment never silently drops data from the
// source matrix.
func (m *Matrix) Reindex(codes []string) *Matrix {
	result := NewMatrix(codes)
	for i, rowCode := range result.Codes {
		mi, ok := m.Index[rowCode]
		if !ok {
			continue
		}
		for j, colCode := range result.Codes {
			if mj, ok := m.Index[colCode]; ok {
				result.Cells[i][j] = m.Cells[mi][mj]
			}
		}
	}
	return result
}

// UnionCodes returns the sorted union of the code universes of the given
// matrices.
func UnionCodes(ms []*Matrix) []string {
	set := map[string]bool{}
	for _, m := range ms {
		for _, code := range m.Codes {
			set[code] = true
		}
	}
	codes := make([]string, 0, len(set))
	for code := range set {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// IntersectCodes returns the sorted intersection of two code universes.
func IntersectCodes(a, b []string) []string {
	set := map[string]bool{}
	for _, code := range a {
		set[code] = true
	}
	codes := []string{}
	for _, code := range b {
		if set[code] {
			codes = append(codes, code)
		}
	}
	sort.Strings(codes)
	return codes
}

// WriteCSV writes the matrix as a square table: the header row holds the
// column disease codes, the first column the row disease codes, and cells the
// co-occurrence counts.
func (m *Matrix) WriteCSV(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	writer := csv.NewWriter(file)
	defer writer.Flush()
	header := append([]string{""}, m.Codes...)
	if err := writer.Write(header); err != nil {
		return err
	}
	row := make([]string, len(m.Codes)+1)
	for i, code := range m.Codes {
		row[0] = code
		for j, v := range m.Cells[i] {
			row[j+1] = strconv.Itoa(v)
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	return nil
}

// ReadMatrixCSV reads a matrix written by WriteCSV. It checks that the row
// index equals the column index, which the square-table contract requires.
func ReadMatrixCSV(path string) (*Matrix, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err == io.EOF {
		return NewMatrix(nil), nil
	}
	if err != nil {
		return nil, err
	}
	codes := header[1:]
	m := NewMatrix(codes)
	rowIdx := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if record[0] != codes[rowIdx] {
			return nil, fmt.Errorf("matrix %s: row index %q does not match column index %q", path, record[0], codes[rowIdx])
		}
		i := m.Index[record[0]]
		for j, field := range record[1:] {
			v, err := strconv.Atoi(field)
			if err != nil {
				return nil, fmt.Errorf("matrix %s: cell (%s,%s): %w", path, record[0], codes[j], err)
			}
			m.Cells[i][m.Index[codes[j]]] = v
		}
		rowIdx++
	}
	return m, nil
}
