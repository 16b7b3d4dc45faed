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
	"unicode"
)

// EIDColumn and CodeColumn are the column names under which participant IDs
// and raw diagnosis codes appear in hospital episode record files.
const (
	EIDColumn  = "eid"
	CodeColumn = "diag_icd10"
)

// DiagnosisRecord is a single hospital episode diagnosis: a participant (EID)
// together with the raw ICD-10 code as it appears in the input. Meta holds any
// retained metadata columns (age, sex, ...) keyed by column name.
type DiagnosisRecord struct {
	EID  string
	Code string
	Meta map[string]string
}

// RecordSet is an ordered collection of diagnosis records plus the order of
// the metadata columns retained from the input file. Record order is the input
// row order; the bootstrap stage relies on it staying fixed while the code
// column is permuted.
type RecordSet struct {
	Records    []DiagnosisRecord
	MetaFields []string
}

// SimplifyCode returns the ICD-10 category prefix of a raw diagnosis code: the
// substring before the first '.' or whitespace. "I21.0" and "I21 Acute
// myocardial infarction" both simplify to "I21". A code without a sub-code
// suffix is returned unchanged.
func SimplifyCode(code string) string {
	for i, r := range code {
		if r == '.' || unicode.IsSpace(r) {
			return code[:i]
		}
	}
	return code
}

// DedupRecords removes duplicate (EID, raw code) pairs from a list of
// diagnosis records, keeping the first occurrence. A participant's repeated
// diagnosis of the same disease must count only once.
func DedupRecords(records []DiagnosisRecord) []DiagnosisRecord {
	seen := map[string]map[string]bool{}
	result := []DiagnosisRecord{}
	for _, r := range records {
		codes, ok := seen[r.EID]
		if !ok {
			codes = map[string]bool{}
			seen[r.EID] = codes
		}
		if codes[r.Code] {
			continue
		}
		codes[r.Code] = true
		result = append(result, r)
	}
	return result
}
