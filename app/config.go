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
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"comor/comat"
)

// Config is the full pipeline configuration, loaded from a single YAML file
// and passed explicitly into each stage. No stage reads configuration from the
// process environment or the working directory.
type Config struct {
	Experiment      string          `yaml:"experiment_name"`
	HesinDataPath   string          `yaml:"hesin_data_path"`
	FilterPath      string          `yaml:"filter_path"`
	CodesPath       string          `yaml:"codes_path"`
	Method          string          `yaml:"method"`
	Filteration     GroupDefs       `yaml:"filteration"`
	ExcludePrefixes []string        `yaml:"exclude_prefixes"`
	OutputPath      string          `yaml:"output_path"`
	Bootstrap       BootstrapConfig `yaml:"bootstrap"`
	CI              CIConfig        `yaml:"ci"`
	Analysis        AnalysisConfig  `yaml:"analysis"`
	Heatmaps        bool            `yaml:"heatmaps"`
}

// BootstrapConfig configures the resampling stage.
type BootstrapConfig struct {
	FieldsToKeep []string `yaml:"fields_to_keep"`
	Iterations   int      `yaml:"iterations"`
	SaveData     bool     `yaml:"save_bootstrap_data"`
}

// CIConfig configures the confidence interval stage.
type CIConfig struct {
	ZAlpha float64 `yaml:"z_alpha"`
}

// AnalysisConfig configures the threshold analysis stage.
type AnalysisConfig struct {
	UpperThreshold float64 `yaml:"upper_threshold"`
	LowerThreshold float64 `yaml:"lower_threshold"`
}

// GroupDefs is an ordered list of cohort group definitions. It unmarshals from
// the YAML mapping form used by the pipeline configs, e.g.
//
//	filteration:
//	  age:
//	    young: {min: 0, max: 50}
//	    old: {min: 51, max: 120}
//	  sex:
//	    male: "1"
//	    female: "0"
//
// preserving field and group order, since that order fixes the cartesian
// product order and the cohort labels. A null or absent filteration means no
// grouping.
type GroupDefs []comat.GroupDef

// UnmarshalYAML decodes the ordered mapping form. yaml.Node is walked directly
// because decoding into a Go map would lose the key order.
func (g *GroupDefs) UnmarshalYAML(value *yaml.Node) error {
	if value.Tag == "!!null" {
		*g = nil
		return nil
	}
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("filteration: expected a mapping of fields to groups, got %s", value.Tag)
	}
	defs := GroupDefs{}
	for i := 0; i < len(value.Content); i += 2 {
		field := value.Content[i].Value
		groupsNode := value.Content[i+1]
		if groupsNode.Kind != yaml.MappingNode {
			return fmt.Errorf("filteration: field %q: expected a mapping of group names to conditions", field)
		}
		def := comat.GroupDef{Field: field}
		for j := 0; j < len(groupsNode.Content); j += 2 {
			name := groupsNode.Content[j].Value
			condNode := groupsNode.Content[j+1]
			group, err := decodeGroup(field, name, condNode)
			if err != nil {
				return err
			}
			def.Groups = append(def.Groups, group)
		}
		defs = append(defs, def)
	}
	*g = defs
	return nil
}

// decodeGroup decodes one group condition: a {min, max} mapping becomes an
// inclusive range, any scalar becomes a categorical equality.
func decodeGroup(field, name string, node *yaml.Node) (comat.Group, error) {
	switch node.Kind {
	case yaml.MappingNode:
		var r struct {
			Min *float64 `yaml:"min"`
			Max *float64 `yaml:"max"`
		}
		if err := node.Decode(&r); err != nil {
			return comat.Group{}, fmt.Errorf("filteration: %s.%s: %w", field, name, err)
		}
		if r.Min == nil || r.Max == nil {
			return comat.Group{}, fmt.Errorf("filteration: %s.%s: range condition needs both min and max", field, name)
		}
		return comat.Group{Name: name, Range: &comat.Range{Min: *r.Min, Max: *r.Max}}, nil
	case yaml.ScalarNode:
		return comat.Group{Name: name, Equals: node.Value}, nil
	default:
		return comat.Group{}, fmt.Errorf("filteration: %s.%s: expected a scalar or a {min, max} mapping", field, name)
	}
}

// Fields returns the metadata field names referenced by the group definitions,
// in definition order. The filter stage requires these columns to be present
// in the participant metadata.
func (g GroupDefs) Fields() []string {
	fields := make([]string, len(g))
	for i, def := range g {
		fields[i] = def.Field
	}
	return fields
}

// LoadConfig reads and validates a pipeline configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	if cfg.CI.ZAlpha == 0 {
		cfg.CI.ZAlpha = comat.DefaultZAlpha
	}
	return cfg, nil
}

// Validate checks the configuration before any stage runs, failing fast on
// invalid modes and statistically unusable iteration counts.
func (c *Config) Validate() error {
	if c.Experiment == "" {
		return &comat.ConfigurationError{Msg: "experiment_name must not be empty"}
	}
	if c.HesinDataPath == "" || c.FilterPath == "" || c.CodesPath == "" {
		return &comat.ConfigurationError{Msg: "hesin_data_path, filter_path, and codes_path are all required"}
	}
	if c.OutputPath == "" {
		return &comat.ConfigurationError{Msg: "output_path must not be empty"}
	}
	mode := comat.FilterMode(c.Method)
	if mode != comat.FilterKeep && mode != comat.FilterDrop {
		return &comat.ConfigurationError{Msg: fmt.Sprintf("unknown filter method %q, want %q or %q", c.Method, comat.FilterKeep, comat.FilterDrop)}
	}
	if c.Bootstrap.Iterations < 2 {
		return &comat.ConfigurationError{Msg: fmt.Sprintf("bootstrap iterations must be at least 2 to compute a sample standard deviation, got %d", c.Bootstrap.Iterations)}
	}
	return nil
}

// LoadCodes reads a codes file of the form {codes: [I21, I22, ...]}.
func LoadCodes(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var parsed struct {
		Codes []string `yaml:"codes"`
	}
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("codes file %s: %w", path, err)
	}
	if len(parsed.Codes) == 0 {
		return nil, &comat.ConfigurationError{Msg: fmt.Sprintf("codes file %s contains no codes", path)}
	}
	return parsed.Codes, nil
}
