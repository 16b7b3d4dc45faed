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
	"errors"
	"testing"
)

func testMetadata() *Metadata {
	return &Metadata{
		Fields: []string{"age", "sex"},
		Rows: map[string]map[string]string{
			"1": {"age": "40", "sex": "1"},
			"2": {"age": "65", "sex": "0"},
			"3": {"age": "70", "sex": "1"},
		},
	}
}

func testHesin() RecordSet {
	return RecordSet{
		Records: []DiagnosisRecord{
			{EID: "1", Code: "I21.0"},
			{EID: "1", Code: "E11.9"},
			{EID: "2", Code: "I21.4"},
			{EID: "3", Code: "J44.1"},
			{EID: "4", Code: "I21.0"}, // no metadata row
		},
	}
}

func TestFilterKeep(t *testing.T) {
	cohorts, err := FilterRecords(testHesin(), []string{"I21"}, FilterKeep, testMetadata(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(cohorts) != 1 || cohorts[0].Label != "all" {
		t.Fatalf("expected a single cohort labeled all, got %v", cohorts)
	}
	records := cohorts[0].Records.Records
	if len(records) != 2 {
		t.Fatalf("expected 2 records (I21 carriers with metadata), got %d", len(records))
	}
	for _, r := range records {
		if SimplifyCode(r.Code) != "I21" {
			t.Errorf("keep mode let a non-matching record through: %v", r)
		}
		if r.EID == "4" {
			t.Errorf("participant without metadata must be excluded")
		}
	}
	// metadata is merged into the records
	if records[0].Meta["age"] != "40" {
		t.Errorf("metadata not joined: %v", records[0].Meta)
	}
}

func TestFilterDrop(t *testing.T) {
	cohorts, err := FilterRecords(testHesin(), []string{"I21"}, FilterDrop, testMetadata(), nil)
	if err != nil {
		t.Fatal(err)
	}
	records := cohorts[0].Records.Records
	if len(records) != 2 {
		t.Fatalf("expected 2 non-I21 records, got %d", len(records))
	}
	for _, r := range records {
		if SimplifyCode(r.Code) == "I21" {
			t.Errorf("drop mode kept a matching record: %v", r)
		}
	}
}

func TestFilterCodeRefinement(t *testing.T) {
	// a configured category matches its refinements: I2 matches I21 and I25
	hesin := RecordSet{Records: []DiagnosisRecord{
		{EID: "1", Code: "I21.0"},
		{EID: "1", Code: "I25.1"},
		{EID: "1", Code: "E11.9"},
	}}
	cohorts, err := FilterRecords(hesin, []string{"I2"}, FilterKeep, testMetadata(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := len(cohorts[0].Records.Records); got != 2 {
		t.Errorf("expected both I2x records, got %d", got)
	}
}

func TestFilterGroups(t *testing.T) {
	defs := []GroupDef{
		{Field: "age", Groups: []Group{
			{Name: "young", Range: &Range{Min: 0, Max: 50}},
			{Name: "old", Range: &Range{Min: 51, Max: 120}},
		}},
		{Field: "sex", Groups: []Group{
			{Name: "male", Equals: "1"},
			{Name: "female", Equals: "0"},
		}},
	}
	cohorts, err := FilterRecords(testHesin(), []string{"I21", "E11", "J44"}, FilterKeep, testMetadata(), defs)
	if err != nil {
		t.Fatal(err)
	}
	wantLabels := []string{"young_male", "young_female", "old_male", "old_female"}
	if len(cohorts) != len(wantLabels) {
		t.Fatalf("expected %d cohorts, got %d", len(wantLabels), len(cohorts))
	}
	for i, want := range wantLabels {
		if cohorts[i].Label != want {
			t.Errorf("cohort %d labeled %q, want %q", i, cohorts[i].Label, want)
		}
	}
	// participant 1 (age 40, sex 1) is young_male with 2 records
	if got := len(cohorts[0].Records.Records); got != 2 {
		t.Errorf("young_male: expected 2 records, got %d", got)
	}
	// participant 2 (age 65, sex 0) is old_female
	if got := len(cohorts[3].Records.Records); got != 1 {
		t.Errorf("old_female: expected 1 record, got %d", got)
	}
	// participant 3 (age 70, sex 1) is old_male
	if got := len(cohorts[2].Records.Records); got != 1 {
		t.Errorf("old_male: expected 1 record, got %d", got)
	}
	if got := len(cohorts[1].Records.Records); got != 0 {
		t.Errorf("young_female: expected an empty cohort, got %d records", got)
	}
}

func TestFilterNonNumericNeverMatchesRange(t *testing.T) {
	metadata := &Metadata{
		Fields: []string{"age"},
		Rows:   map[string]map[string]string{"1": {"age": "unknown"}},
	}
	defs := []GroupDef{
		{Field: "age", Groups: []Group{{Name: "young", Range: &Range{Min: 0, Max: 50}}}},
	}
	hesin := RecordSet{Records: []DiagnosisRecord{{EID: "1", Code: "I21.0"}}}
	cohorts, err := FilterRecords(hesin, []string{"I21"}, FilterKeep, metadata, defs)
	if err != nil {
		t.Fatal(err)
	}
	if got := len(cohorts[0].Records.Records); got != 0 {
		t.Errorf("non-numeric value matched a range condition, got %d records", got)
	}
}

func TestFilterUnknownMode(t *testing.T) {
	_, err := FilterRecords(testHesin(), []string{"I21"}, FilterMode("retain"), testMetadata(), nil)
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected a ConfigurationError for an unknown mode, got %v", err)
	}
}
