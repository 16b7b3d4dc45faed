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
	"github.com/exascience/pargo/parallel"
	"github.com/valyala/fastrand"
)

// retainMeta returns the metadata fields to keep: the configured retain fields
// that actually exist as metadata columns, in configured order. The eid and
// diag_icd10 columns are handled separately since they are not metadata.
func retainMeta(retainFields, metaFields []string) []string {
	available := map[string]bool{}
	for _, f := range metaFields {
		available[f] = true
	}
	kept := []string{}
	for _, f := range retainFields {
		if available[f] {
			kept = append(kept, f)
		}
	}
	return kept
}

// containsField reports whether a field name occurs in a retain list.
func containsField(fields []string, name string) bool {
	for _, f := range fields {
		if f == name {
			return true
		}
	}
	return false
}

// shuffledCodes returns an independent uniform permutation of the diagnosis
// code column. Fixed points are allowed; only the pairing of codes with
// participants changes, never the multiset of codes itself.
func shuffledCodes(base []string) []string {
	codes := make([]string, len(base))
	copy(codes, base)
	for i := len(codes) - 1; i > 0; i-- {
		j := int(fastrand.Uint32n(uint32(i + 1)))
		codes[i], codes[j] = codes[j], codes[i]
	}
	return codes
}

// Resample produces the null-reference ensemble for a cohort: iterations
// independently shuffled copies of the records, each with the diagnosis code
// column permuted across the entire cohort while row order and participant
// identity stay fixed. Only the configured retain fields are carried into the
// copies (the EID is always kept, since a record without participant identity
// cannot enter a co-occurrence matrix). If the retain fields do not include
// diag_icd10, resampling degenerates to a no-shuffle pass-through. Every
// iteration shuffles the original column fresh, so no iteration depends on
// another's state and iterations may be built in parallel.
func Resample(records RecordSet, retainFields []string, iterations int) []RecordSet {
	metaFields := retainMeta(retainFields, records.MetaFields)
	base := make([]DiagnosisRecord, len(records.Records))
	baseCodes := make([]string, len(records.Records))
	for i, r := range records.Records {
		meta := map[string]string{}
		for _, f := range metaFields {
			meta[f] = r.Meta[f]
		}
		base[i] = DiagnosisRecord{EID: r.EID, Code: r.Code, Meta: meta}
		baseCodes[i] = r.Code
	}
	shuffle := containsField(retainFields, CodeColumn)
	draws := make([]RecordSet, iterations)
	parallel.Range(0, iterations, 0, func(low, high int) {
		for i := low; i < high; i++ {
			rs := make([]DiagnosisRecord, len(base))
			copy(rs, base)
			if shuffle {
				codes := shuffledCodes(baseCodes)
				for k := range rs {
					rs[k].Code = codes[k]
				}
			}
			draws[i] = RecordSet{Records: rs, MetaFields: metaFields}
		}
	})
	return draws
}
