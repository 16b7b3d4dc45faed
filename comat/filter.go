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
	"fmt"
	"strconv"
	"strings"
)

// FilterMode selects whether the code filter keeps or drops matching records.
type FilterMode string

const (
	FilterKeep FilterMode = "keep"
	FilterDrop FilterMode = "drop"
)

// Range is an inclusive numeric interval for a group condition.
type Range struct {
	Min, Max float64
}

// Group is one named sub-group of a metadata field: either a categorical
// equality condition (Equals) or an inclusive numeric range (Range). Exactly
// one of the two is set.
type Group struct {
	Name   string
	Equals string
	Range  *Range
}

// GroupDef binds a participant metadata field to its named sub-groups. The
// order of Groups is preserved; together with the order of the GroupDefs it
// determines the cartesian-product order of the output cohorts and their
// labels.
type GroupDef struct {
	Field  string
	Groups []Group
}

// Metadata is a participant metadata table keyed by EID. Fields lists the
// metadata column names in input order, excluding the EID column itself.
type Metadata struct {
	Fields []string
	Rows   map[string]map[string]string
}

// CohortRecords is a labeled cohort subset produced by the filter stage.
type CohortRecords struct {
	Label   string
	Records RecordSet
}

// matchesCode reports whether a simplified diagnosis code matches a configured
// code list entry: equal to it, or a refinement of it (startswith,
// case-sensitive, per ICD-10 convention).
func matchesCode(simplified string, codes []string) bool {
	for _, c := range codes {
		if strings.HasPrefix(simplified, c) {
			return true
		}
	}
	return false
}

// matchesGroup evaluates a single group condition against a participant's
// metadata value. Range conditions require the value to parse as a number; a
// non-numeric value never matches a range.
func matchesGroup(value string, g Group) bool {
	if g.Range != nil {
		v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return false
		}
		return v >= g.Range.Min && v <= g.Range.Max
	}
	return value == g.Equals
}

// groupCombinations expands group definitions into their cartesian product.
// Each combination holds one group per field, in definition order.
func groupCombinations(defs []GroupDef) [][]Group {
	combos := [][]Group{{}}
	for _, def := range defs {
		next := [][]Group{}
		for _, combo := range combos {
			for _, g := range def.Groups {
				extended := make([]Group, len(combo), len(combo)+1)
				copy(extended, combo)
				next = append(next, append(extended, g))
			}
		}
		combos = next
	}
	return combos
}

// FilterRecords selects and partitions diagnosis records into labeled cohort
// subsets. Records are first filtered on their simplified code against the
// configured code list (keep retains matches, drop retains non-matches), then
// inner-joined with participant metadata on EID; participants without metadata
// are excluded. When group definitions are given, the cartesian product of all
// fields' sub-groups defines the output cohorts, each applying its component
// conditions as a logical AND; the cohort label joins the group names with
// '_'. Groups are not checked for exclusivity or exhaustiveness, so
// overlapping cohorts are possible and permitted. Without group definitions a
// single cohort labeled "all" holds the full merged set. An unknown filter
// mode is a ConfigurationError.
func FilterRecords(hesin RecordSet, codes []string, mode FilterMode, metadata *Metadata, defs []GroupDef) ([]CohortRecords, error) {
	if mode != FilterKeep && mode != FilterDrop {
		return nil, &ConfigurationError{Msg: fmt.Sprintf("unknown filter mode %q, want %q or %q", mode, FilterKeep, FilterDrop)}
	}
	// code filter followed by inner join with metadata
	merged := []DiagnosisRecord{}
	for _, r := range hesin.Records {
		match := matchesCode(SimplifyCode(r.Code), codes)
		if (mode == FilterKeep) != match {
			continue
		}
		row, ok := metadata.Rows[r.EID]
		if !ok {
			continue
		}
		meta := map[string]string{}
		for k, v := range r.Meta {
			meta[k] = v
		}
		for _, field := range metadata.Fields {
			meta[field] = row[field]
		}
		merged = append(merged, DiagnosisRecord{EID: r.EID, Code: r.Code, Meta: meta})
	}
	metaFields := append([]string{}, hesin.MetaFields...)
	for _, field := range metadata.Fields {
		metaFields = append(metaFields, field)
	}
	if len(defs) == 0 {
		return []CohortRecords{{Label: "all", Records: RecordSet{Records: merged, MetaFields: metaFields}}}, nil
	}
	cohorts := []CohortRecords{}
	for _, combo := range groupCombinations(defs) {
		names := make([]string, len(combo))
		subset := []DiagnosisRecord{}
		for _, r := range merged {
			keep := true
			for k, g := range combo {
				if !matchesGroup(r.Meta[defs[k].Field], g) {
					keep = false
					break
				}
			}
			if keep {
				subset = append(subset, r)
			}
		}
		for k, g := range combo {
			names[k] = g.Name
		}
		cohorts = append(cohorts, CohortRecords{
			Label:   strings.Join(names, "_"),
			Records: RecordSet{Records: subset, MetaFields: metaFields},
		})
	}
	return cohorts, nil
}
