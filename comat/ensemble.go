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
	"sort"
)

// MatrixKind tags the provenance of a co-occurrence matrix.
type MatrixKind int

const (
	// KindOriginal marks the matrix built from a cohort's unshuffled records.
	KindOriginal MatrixKind = iota
	// KindBootstrap marks a matrix built from one shuffled bootstrap draw.
	KindBootstrap
)

// MatrixEntry is a co-occurrence matrix tagged with the cohort it belongs to
// and, for bootstrap draws, the 1-based iteration number. It replaces keying
// matrices by synthetic strings such as "bootstrap_old_male_7".
type MatrixEntry struct {
	Kind      MatrixKind
	Cohort    string
	Iteration int
	M         *Matrix
}

// Ensemble collects the original and bootstrap matrices of all cohorts in an
// experiment.
type Ensemble struct {
	Entries []MatrixEntry
}

// AddOriginal records the observed matrix for a cohort.
func (e *Ensemble) AddOriginal(cohort string, m *Matrix) {
	e.Entries = append(e.Entries, MatrixEntry{Kind: KindOriginal, Cohort: cohort, M: m})
}

// AddBootstrap records one bootstrap draw for a cohort.
func (e *Ensemble) AddBootstrap(cohort string, iteration int, m *Matrix) {
	e.Entries = append(e.Entries, MatrixEntry{Kind: KindBootstrap, Cohort: cohort, Iteration: iteration, M: m})
}

// Original returns the observed matrix for a cohort, if present.
func (e *Ensemble) Original(cohort string) (*Matrix, bool) {
	for _, entry := range e.Entries {
		if entry.Kind == KindOriginal && entry.Cohort == cohort {
			return entry.M, true
		}
	}
	return nil, false
}

// Bootstrap returns a cohort's bootstrap matrices ordered by iteration.
func (e *Ensemble) Bootstrap(cohort string) []*Matrix {
	entries := []MatrixEntry{}
	for _, entry := range e.Entries {
		if entry.Kind == KindBootstrap && entry.Cohort == cohort {
			entries = append(entries, entry)
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Iteration < entries[j].Iteration
	})
	ms := make([]*Matrix, len(entries))
	for i, entry := range entries {
		ms[i] = entry.M
	}
	return ms
}

// Cohorts returns the sorted distinct cohort labels present in the ensemble.
func (e *Ensemble) Cohorts() []string {
	set := map[string]bool{}
	for _, entry := range e.Entries {
		set[entry.Cohort] = true
	}
	labels := make([]string, 0, len(set))
	for label := range set {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}
