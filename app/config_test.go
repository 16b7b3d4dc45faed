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

package app

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"comor/comat"
)

const testConfigYAML = `experiment_name: exp1
hesin_data_path: data/hesin.csv
filter_path: data/participants.csv
codes_path: configs/codes.yaml
method: keep
filteration:
  age:
    young: {min: 0, max: 50}
    old: {min: 51, max: 120}
  sex:
    male: "1"
    female: "0"
exclude_prefixes: [S, T]
output_path: out
bootstrap:
  fields_to_keep: [diag_icd10, age]
  iterations: 100
  save_bootstrap_data: true
ci:
  z_alpha: 2.58
analysis:
  upper_threshold: 3.0
  lower_threshold: 1.0
`

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(writeTempFile(t, "config.yaml", testConfigYAML))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Experiment != "exp1" || cfg.Method != "keep" {
		t.Errorf("unexpected scalar fields: %v %v", cfg.Experiment, cfg.Method)
	}
	if cfg.Bootstrap.Iterations != 100 || !cfg.Bootstrap.SaveData {
		t.Errorf("unexpected bootstrap config: %+v", cfg.Bootstrap)
	}
	if cfg.CI.ZAlpha != 2.58 {
		t.Errorf("z_alpha = %v, want 2.58", cfg.CI.ZAlpha)
	}
	if cfg.Analysis.UpperThreshold != 3.0 || cfg.Analysis.LowerThreshold != 1.0 {
		t.Errorf("unexpected analysis config: %+v", cfg.Analysis)
	}
	if !reflect.DeepEqual(cfg.ExcludePrefixes, []string{"S", "T"}) {
		t.Errorf("unexpected exclude prefixes: %v", cfg.ExcludePrefixes)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}
}

func TestGroupDefsOrderPreserved(t *testing.T) {
	cfg, err := LoadConfig(writeTempFile(t, "config.yaml", testConfigYAML))
	if err != nil {
		t.Fatal(err)
	}
	// field and group order come straight from the YAML document, since they
	// fix the cartesian product order and the cohort labels
	if !reflect.DeepEqual(cfg.Filteration.Fields(), []string{"age", "sex"}) {
		t.Fatalf("field order lost: %v", cfg.Filteration.Fields())
	}
	age := cfg.Filteration[0]
	if len(age.Groups) != 2 || age.Groups[0].Name != "young" || age.Groups[1].Name != "old" {
		t.Fatalf("group order lost: %+v", age.Groups)
	}
	if age.Groups[0].Range == nil || age.Groups[0].Range.Min != 0 || age.Groups[0].Range.Max != 50 {
		t.Errorf("range condition not decoded: %+v", age.Groups[0])
	}
	sex := cfg.Filteration[1]
	if sex.Groups[0].Equals != "1" || sex.Groups[1].Equals != "0" {
		t.Errorf("equality conditions not decoded: %+v", sex.Groups)
	}
}

func TestLoadConfigNullFilteration(t *testing.T) {
	yaml := `experiment_name: exp1
hesin_data_path: a
filter_path: b
codes_path: c
method: keep
filteration:
output_path: out
bootstrap:
  iterations: 10
`
	cfg, err := LoadConfig(writeTempFile(t, "config.yaml", yaml))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Filteration != nil {
		t.Errorf("null filteration must decode to no group definitions, got %v", cfg.Filteration)
	}
	if cfg.CI.ZAlpha != comat.DefaultZAlpha {
		t.Errorf("absent z_alpha must default to %v, got %v", comat.DefaultZAlpha, cfg.CI.ZAlpha)
	}
}

func TestLoadConfigRangeMissingBound(t *testing.T) {
	yaml := `filteration:
  age:
    young: {min: 0}
`
	if _, err := LoadConfig(writeTempFile(t, "config.yaml", yaml)); err == nil {
		t.Fatal("expected an error for a range condition without max")
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Experiment:    "exp1",
			HesinDataPath: "a",
			FilterPath:    "b",
			CodesPath:     "c",
			Method:        "keep",
			OutputPath:    "out",
			Bootstrap:     BootstrapConfig{Iterations: 10},
		}
	}
	if err := base().Validate(); err != nil {
		t.Fatalf("base config must validate: %v", err)
	}
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty experiment", func(c *Config) { c.Experiment = "" }},
		{"missing input path", func(c *Config) { c.HesinDataPath = "" }},
		{"empty output path", func(c *Config) { c.OutputPath = "" }},
		{"unknown method", func(c *Config) { c.Method = "retain" }},
		{"single iteration", func(c *Config) { c.Bootstrap.Iterations = 1 }},
	}
	for _, c := range cases {
		cfg := base()
		c.mutate(cfg)
		err := cfg.Validate()
		var cfgErr *comat.ConfigurationError
		if !errors.As(err, &cfgErr) {
			t.Errorf("%s: expected a ConfigurationError, got %v", c.name, err)
		}
	}
}

func TestLoadCodes(t *testing.T) {
	codes, err := LoadCodes(writeTempFile(t, "codes.yaml", "codes: [I21, I22, E11]\n"))
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(codes, []string{"I21", "I22", "E11"}) {
		t.Errorf("unexpected codes: %v", codes)
	}
}

func TestLoadCodesEmpty(t *testing.T) {
	_, err := LoadCodes(writeTempFile(t, "codes.yaml", "codes: []\n"))
	var cfgErr *comat.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected a ConfigurationError for an empty codes file, got %v", err)
	}
}
