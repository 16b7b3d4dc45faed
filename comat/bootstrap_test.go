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
	"reflect"
	"sort"
	"testing"
)

func bootstrapInput(n int) RecordSet {
	records := make([]DiagnosisRecord, n)
	for i := range records {
		records[i] = DiagnosisRecord{
			EID:  string(rune('a' + i%7)),
			Code: []string{"I21", "E11", "J44", "C50", "F32"}[i%5],
			Meta: map[string]string{"age": "40", "sex": "1"},
		}
	}
	return RecordSet{Records: records, MetaFields: []string{"age", "sex"}}
}

func TestResamplePreservesMarginals(t *testing.T) {
	input := bootstrapInput(100)
	draws := Resample(input, []string{CodeColumn, "age"}, 10)
	if len(draws) != 10 {
		t.Fatalf("expected 10 draws, got %d", len(draws))
	}
	wantCodes := make([]string, len(input.Records))
	for i, r := range input.Records {
		wantCodes[i] = r.Code
	}
	sort.Strings(wantCodes)
	for k, draw := range draws {
		if len(draw.Records) != len(input.Records) {
			t.Fatalf("draw %d: expected %d records, got %d", k, len(input.Records), len(draw.Records))
		}
		gotCodes := make([]string, len(draw.Records))
		for i, r := range draw.Records {
			gotCodes[i] = r.Code
			// participant identity and row order stay fixed
			if r.EID != input.Records[i].EID {
				t.Fatalf("draw %d row %d: EID changed from %q to %q", k, i, input.Records[i].EID, r.EID)
			}
		}
		sort.Strings(gotCodes)
		if !reflect.DeepEqual(gotCodes, wantCodes) {
			t.Errorf("draw %d: code multiset changed by the shuffle", k)
		}
	}
}

func TestResampleDrawsDiffer(t *testing.T) {
	// with 100 records, two independent permutations agreeing everywhere is
	// astronomically unlikely
	input := bootstrapInput(100)
	draws := Resample(input, []string{CodeColumn}, 2)
	same := true
	for i := range draws[0].Records {
		if draws[0].Records[i].Code != draws[1].Records[i].Code {
			same = false
			break
		}
	}
	if same {
		t.Errorf("two independent draws produced identical permutations")
	}
}

func TestResampleRetainFields(t *testing.T) {
	input := bootstrapInput(10)
	draws := Resample(input, []string{CodeColumn, "age"}, 2)
	for _, draw := range draws {
		if !reflect.DeepEqual(draw.MetaFields, []string{"age"}) {
			t.Fatalf("expected only age to be retained, got %v", draw.MetaFields)
		}
		for _, r := range draw.Records {
			if _, ok := r.Meta["sex"]; ok {
				t.Fatalf("sex was not configured for retention but survived")
			}
			if r.Meta["age"] != "40" {
				t.Fatalf("retained metadata lost: %v", r.Meta)
			}
		}
	}
}

func TestResampleWithoutCodeColumn(t *testing.T) {
	// when diag_icd10 is not retained there is nothing to shuffle and the
	// draws are plain copies
	input := bootstrapInput(20)
	draws := Resample(input, []string{"age"}, 3)
	for k, draw := range draws {
		for i, r := range draw.Records {
			if r.Code != input.Records[i].Code {
				t.Fatalf("draw %d row %d: code changed without diag_icd10 retained", k, i)
			}
		}
	}
}

func TestResampleUnknownRetainFieldIgnored(t *testing.T) {
	input := bootstrapInput(10)
	draws := Resample(input, []string{CodeColumn, "bmi"}, 2)
	for _, draw := range draws {
		if len(draw.MetaFields) != 0 {
			t.Fatalf("unknown retain field produced metadata columns: %v", draw.MetaFields)
		}
	}
}
