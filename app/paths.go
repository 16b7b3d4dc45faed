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
	"path/filepath"
)

// Layout resolves the on-disk locations of all persisted pipeline artifacts
// for one experiment. Every stage receives the layout explicitly; no stage
// depends on the process working directory.
type Layout struct {
	Root       string
	Experiment string
}

func (l Layout) experimentDir() string {
	return filepath.Join(l.Root, l.Experiment)
}

// FilteredDataDir holds the per-cohort filtered record files.
func (l Layout) FilteredDataDir() string {
	return filepath.Join(l.experimentDir(), "filtered_data")
}

// FilteredFile is the filtered record file for one cohort.
func (l Layout) FilteredFile(label string) string {
	return filepath.Join(l.FilteredDataDir(), label+"_filtered.csv")
}

// BootstrapDataDir holds a cohort's persisted bootstrap record files.
func (l Layout) BootstrapDataDir(label string) string {
	return filepath.Join(l.experimentDir(), "bootstraped_hesin_data", label)
}

// BootstrapFile is one persisted bootstrap draw, 1-based.
func (l Layout) BootstrapFile(label string, iteration int) string {
	return filepath.Join(l.BootstrapDataDir(label), fmt.Sprintf("%s_%d.csv", label, iteration))
}

// OriginalMatrixDir holds the observed co-occurrence matrices.
func (l Layout) OriginalMatrixDir() string {
	return filepath.Join(l.experimentDir(), "connection_matrices", "original")
}

// OriginalMatrixFile is the observed matrix for one cohort.
func (l Layout) OriginalMatrixFile(label string) string {
	return filepath.Join(l.OriginalMatrixDir(), label+"_disease_connection_matrix.csv")
}

// BootstrapMatrixDir holds a cohort's bootstrap co-occurrence matrices.
func (l Layout) BootstrapMatrixDir(label string) string {
	return filepath.Join(l.experimentDir(), "connection_matrices", "bootstrap", label)
}

// BootstrapMatrixFile is the matrix of one bootstrap draw, 1-based.
func (l Layout) BootstrapMatrixFile(label string, iteration int) string {
	return filepath.Join(l.BootstrapMatrixDir(label), fmt.Sprintf("%s_bootstrap_%d_disease_connection_matrix.csv", label, iteration))
}

// CIDir holds the confidence interval, mean, and std matrices.
func (l Layout) CIDir() string {
	return filepath.Join(l.experimentDir(), "ci_matrices")
}

// CIFile is the confidence interval matrix for one cohort.
func (l Layout) CIFile(label string) string {
	return filepath.Join(l.CIDir(), label+"_ci_matrix.csv")
}

// MeanFile is the bootstrap mean matrix for one cohort.
func (l Layout) MeanFile(label string) string {
	return filepath.Join(l.CIDir(), label+"_mean_matrix.csv")
}

// StdFile is the bootstrap standard deviation matrix for one cohort.
func (l Layout) StdFile(label string) string {
	return filepath.Join(l.CIDir(), label+"_std_matrix.csv")
}

// AnalysisDir holds the threshold analysis outputs.
func (l Layout) AnalysisDir() string {
	return filepath.Join(l.experimentDir(), "ci_analysis")
}

// UpperAnalysisFile is the upper-ratio matrix for one cohort.
func (l Layout) UpperAnalysisFile(label string) string {
	return filepath.Join(l.AnalysisDir(), label+"_upper_ci_analysis.csv")
}

// LowerAnalysisFile is the lower-ratio matrix for one cohort.
func (l Layout) LowerAnalysisFile(label string) string {
	return filepath.Join(l.AnalysisDir(), label+"_lower_ci_analysis.csv")
}

// HeatmapDir holds rendered heatmap images.
func (l Layout) HeatmapDir() string {
	return filepath.Join(l.experimentDir(), "heatmaps")
}

// HeatmapFile is one rendered heatmap, named by cohort and matrix kind.
func (l Layout) HeatmapFile(label, kind string) string {
	return filepath.Join(l.HeatmapDir(), fmt.Sprintf("%s_%s.png", label, kind))
}

// EnsureDir creates a directory and its parents.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0700)
}
