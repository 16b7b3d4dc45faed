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

package main

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/exascience/pargo/parallel"
	log "github.com/sirupsen/logrus"

	"comor/app"
	"comor/comat"
	"comor/heatmap"
	"comor/utils"
)

/*
Comor is a tool for bootstrap analysis of disease co-occurrence in hospital
episode records.

Usage:
	comor configFile [flags]

Example:
	comor configs/z_score_pipeline.yaml --iter 100 --zAlpha 1.96 --upperThreshold 1.0
	--lowerThreshold 1.0 --name exp1

The configuration file describes the five pipeline stages: filtering the raw
diagnosis records into cohorts, creating bootstrap-shuffled copies of each
cohort, building disease co-occurrence matrices from the original and shuffled
records, aggregating the bootstrap matrices into per-cell confidence
intervals, and flagging cells of the observed matrix that fall outside those
intervals by a configurable margin.

The flags are:

--name string
	Overrides the experiment name from the configuration file. The name is used
	to generate the output directory for all artifacts.
--iter nr
	Overrides the number of bootstrap iterations. Each iteration independently
	permutes the diagnosis code column over the entire cohort, which destroys
	the true co-occurrence structure while preserving the marginal frequency of
	every code. At least 2 iterations are required for the sample standard
	deviation in the confidence interval stage.
--zAlpha nr
	Overrides the z-value used for the confidence intervals. The default 1.96
	corresponds to a 95% two-sided normal approximation.
--upperThreshold nr
	Overrides the upper threshold multiplier. A cell is flagged as
	significantly high when its observed count exceeds upperThreshold times the
	upper confidence bound.
--lowerThreshold nr
	Overrides the lower threshold multiplier. A cell is flagged as
	significantly low when its observed count falls below lowerThreshold times
	the lower confidence bound, provided that bound is positive.
--heatmaps
	Renders PNG heatmaps of the observed matrices and the analysis ratios.
--nrOfThreads nr
	The number of threads comor uses.
*/

const (
	programVersion = 0.1
	programName    = "comor"
)

func programMessage() string {
	return fmt.Sprint(programName, " version ", programVersion, " compiled with ", runtime.Version())
}

const comorHelp = "\ncomor parameters:\n" +
	"comor configFile\n" +
	"[--name string]\n" +
	"[--iter nr]\n" +
	"[--zAlpha nr]\n" +
	"[--upperThreshold nr]\n" +
	"[--lowerThreshold nr]\n" +
	"[--heatmaps]\n" +
	"[--nrOfThreads nr]\n"

func parseFlags(flags flag.FlagSet, requiredArgs int, help string) {
	if len(os.Args) < requiredArgs {
		fmt.Fprintln(os.Stderr, "Incorrect number of parameters.")
		fmt.Fprint(os.Stderr, help)
		os.Exit(1)
	}
	flags.SetOutput(io.Discard)
	if err := flags.Parse(os.Args[requiredArgs:]); err != nil {
		x := 0
		if err != flag.ErrHelp {
			fmt.Fprint(os.Stderr, err)
		}
		fmt.Fprint(os.Stderr, help)
		os.Exit(x)
	}
	if flags.NArg() > 0 {
		fmt.Fprint(os.Stderr, "Cannot parse remaining parameters:", flags.Args())
		fmt.Fprint(os.Stderr, help)
		os.Exit(1)
	}
}

func getFileName(s, help string) string {
	switch s {
	case "-h", "--h", "-help", "--help":
		fmt.Fprint(os.Stderr, help)
		os.Exit(1)
	}
	return s
}

func main() {
	var (
		name           string
		iter           int
		zAlpha         float64
		upperThreshold float64
		lowerThreshold float64
		heatmaps       bool
		nrOfThreads    int
	)
	var flags flag.FlagSet
	flags.StringVar(&name, "name", "", "Overrides the experiment name from the configuration file.")
	flags.IntVar(&iter, "iter", 0, "Overrides the number of bootstrap iterations.")
	flags.Float64Var(&zAlpha, "zAlpha", 0, "Overrides the z-value for the confidence intervals.")
	flags.Float64Var(&upperThreshold, "upperThreshold", 0, "Overrides the upper threshold multiplier.")
	flags.Float64Var(&lowerThreshold, "lowerThreshold", 0, "Overrides the lower threshold multiplier.")
	flags.BoolVar(&heatmaps, "heatmaps", false, "Render PNG heatmaps of the observed and ratio matrices.")
	flags.IntVar(&nrOfThreads, "nrOfThreads", 0, "The number of threads comor uses.")
	parseFlags(flags, 2, comorHelp)
	configFile := getFileName(os.Args[1], comorHelp)
	cfg, err := app.LoadConfig(configFile)
	if err != nil {
		log.Fatal(err)
	}
	if name != "" {
		cfg.Experiment = name
	}
	if iter > 0 {
		cfg.Bootstrap.Iterations = iter
	}
	if zAlpha > 0 {
		cfg.CI.ZAlpha = zAlpha
	}
	if upperThreshold > 0 {
		cfg.Analysis.UpperThreshold = upperThreshold
	}
	if lowerThreshold > 0 {
		cfg.Analysis.LowerThreshold = lowerThreshold
	}
	if heatmaps {
		cfg.Heatmaps = true
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}
	// build an output command line
	var command bytes.Buffer
	fmt.Fprint(&command, os.Args[0], " ", configFile)
	fmt.Fprint(&command, " --name ", cfg.Experiment)
	fmt.Fprint(&command, " --iter ", cfg.Bootstrap.Iterations)
	fmt.Fprint(&command, " --zAlpha ", cfg.CI.ZAlpha)
	fmt.Fprint(&command, " --upperThreshold ", cfg.Analysis.UpperThreshold)
	fmt.Fprint(&command, " --lowerThreshold ", cfg.Analysis.LowerThreshold)
	if cfg.Heatmaps {
		fmt.Fprint(&command, " --heatmaps")
	}
	if nrOfThreads > 0 {
		runtime.GOMAXPROCS(nrOfThreads)
		fmt.Fprint(&command, " --nrOfThreads ", nrOfThreads)
	}
	log.Info(programMessage())
	log.Info("Executing command: ", command.String())
	if err := runPipeline(cfg); err != nil {
		log.Fatal(err)
	}
	log.Info("Pipeline completed.")
}

// runPipeline executes the five stages in strict sequence. Each stage fully
// materializes its artifacts before the next begins, and the first failing
// stage stops the run so no downstream stage can consume partial data.
func runPipeline(cfg *app.Config) error {
	layout := app.Layout{Root: cfg.OutputPath, Experiment: cfg.Experiment}
	cohorts, err := runFilter(cfg, layout)
	if err != nil {
		return err
	}
	ensemble, err := runBootstrapAndMatrices(cfg, layout, cohorts)
	if err != nil {
		return err
	}
	ciMatrices, err := runCI(cfg, layout, ensemble)
	if err != nil {
		return err
	}
	return runAnalysis(cfg, layout, ensemble, ciMatrices)
}

// runFilter loads the raw inputs and partitions them into labeled cohorts.
func runFilter(cfg *app.Config, layout app.Layout) ([]comat.CohortRecords, error) {
	flog := log.WithField("stage", "filter")
	flog.Info("Loading disease codes from ", cfg.CodesPath)
	codes, err := app.LoadCodes(cfg.CodesPath)
	if err != nil {
		return nil, err
	}
	flog.Info("Loading diagnosis records from ", cfg.HesinDataPath)
	hesin, err := app.ReadRecords(cfg.HesinDataPath)
	if err != nil {
		return nil, err
	}
	flog.Info("Loaded ", len(hesin.Records), " diagnosis records")
	flog.Info("Loading participant metadata from ", cfg.FilterPath)
	metadata, err := app.ReadMetadata(cfg.FilterPath, cfg.Filteration.Fields())
	if err != nil {
		return nil, err
	}
	cohorts, err := comat.FilterRecords(hesin, codes, comat.FilterMode(cfg.Method), metadata, cfg.Filteration)
	if err != nil {
		return nil, err
	}
	if len(cohorts) == 0 {
		return nil, &comat.ConfigurationError{Msg: "filter configuration produced zero cohorts"}
	}
	if err := app.EnsureDir(layout.FilteredDataDir()); err != nil {
		return nil, err
	}
	labels := make([]string, len(cohorts))
	for i, cohort := range cohorts {
		labels[i] = cohort.Label
		if err := app.WriteRecords(layout.FilteredFile(cohort.Label), cohort.Records); err != nil {
			return nil, err
		}
		flog.Info("Cohort ", cohort.Label, ": ", len(cohort.Records.Records), " records")
	}
	flog.Info("Cohorts: ", strings.Join(labels[:utils.MinInt(len(labels), 10)], ", "))
	return cohorts, nil
}

// runBootstrapAndMatrices resamples each cohort and builds the observed and
// bootstrap co-occurrence matrices. Matrix builds across iterations are
// independent and run in parallel.
func runBootstrapAndMatrices(cfg *app.Config, layout app.Layout, cohorts []comat.CohortRecords) (*comat.Ensemble, error) {
	blog := log.WithField("stage", "bootstrap")
	mlog := log.WithField("stage", "matrices")
	opts := comat.BuildOptions{ExcludePrefixes: cfg.ExcludePrefixes}
	ensemble := &comat.Ensemble{}
	if err := app.EnsureDir(layout.OriginalMatrixDir()); err != nil {
		return nil, err
	}
	for _, cohort := range cohorts {
		original, participants := comat.BuildMatrix(cohort.Records.Records, opts)
		mlog.Info("Cohort ", cohort.Label, ": ", original.Size(), " diseases, ", participants, " participants")
		if err := original.WriteCSV(layout.OriginalMatrixFile(cohort.Label)); err != nil {
			return nil, err
		}
		ensemble.AddOriginal(cohort.Label, original)
		blog.Info("Cohort ", cohort.Label, ": creating ", cfg.Bootstrap.Iterations, " bootstrap draws")
		draws := comat.Resample(cohort.Records, cfg.Bootstrap.FieldsToKeep, cfg.Bootstrap.Iterations)
		if cfg.Bootstrap.SaveData {
			if err := app.EnsureDir(layout.BootstrapDataDir(cohort.Label)); err != nil {
				return nil, err
			}
			for i, draw := range draws {
				if err := app.WriteRecords(layout.BootstrapFile(cohort.Label, i+1), draw); err != nil {
					return nil, err
				}
			}
		}
		matrices := make([]*comat.Matrix, len(draws))
		parallel.Range(0, len(draws), 0, func(low, high int) {
			for i := low; i < high; i++ {
				matrices[i], _ = comat.BuildMatrix(draws[i].Records, opts)
			}
		})
		if err := app.EnsureDir(layout.BootstrapMatrixDir(cohort.Label)); err != nil {
			return nil, err
		}
		for i, m := range matrices {
			if err := m.WriteCSV(layout.BootstrapMatrixFile(cohort.Label, i+1)); err != nil {
				return nil, err
			}
			ensemble.AddBootstrap(cohort.Label, i+1, m)
		}
	}
	return ensemble, nil
}

// runCI aggregates each cohort's bootstrap matrices into confidence intervals.
func runCI(cfg *app.Config, layout app.Layout, ensemble *comat.Ensemble) (map[string]*comat.CIMatrix, error) {
	clog := log.WithField("stage", "ci")
	if err := app.EnsureDir(layout.CIDir()); err != nil {
		return nil, err
	}
	ciMatrices := map[string]*comat.CIMatrix{}
	for _, label := range ensemble.Cohorts() {
		ci, err := comat.CalculateCI(ensemble.Bootstrap(label), cfg.CI.ZAlpha)
		if err != nil {
			return nil, err
		}
		clog.Info("Cohort ", label, ": CI over ", ci.N, " draws, ", len(ci.Codes), " diseases")
		if err := ci.WriteCSV(layout.CIFile(label)); err != nil {
			return nil, err
		}
		if err := ci.WriteMeanCSV(layout.MeanFile(label)); err != nil {
			return nil, err
		}
		if err := ci.WriteStdCSV(layout.StdFile(label)); err != nil {
			return nil, err
		}
		ciMatrices[label] = ci
	}
	return ciMatrices, nil
}

// runAnalysis compares each cohort's observed matrix against its confidence
// intervals and writes the ratio matrices, optionally rendering heatmaps.
func runAnalysis(cfg *app.Config, layout app.Layout, ensemble *comat.Ensemble, ciMatrices map[string]*comat.CIMatrix) error {
	alog := log.WithField("stage", "analysis")
	if err := app.EnsureDir(layout.AnalysisDir()); err != nil {
		return err
	}
	for _, label := range ensemble.Cohorts() {
		original, ok := ensemble.Original(label)
		if !ok {
			continue
		}
		ci := ciMatrices[label]
		upper, lower, err := comat.Analyze(original, ci, cfg.Analysis.UpperThreshold, cfg.Analysis.LowerThreshold)
		if errors.Is(err, comat.ErrNoCommonCodes) {
			alog.Warn("Cohort ", label, ": no common disease codes, writing empty results")
		} else if err != nil {
			return err
		}
		if err := upper.WriteCSV(layout.UpperAnalysisFile(label)); err != nil {
			return err
		}
		if err := lower.WriteCSV(layout.LowerAnalysisFile(label)); err != nil {
			return err
		}
		alog.Info("Cohort ", label, ": ", upper.NonZeroCells(), " cells above the upper bound, ",
			lower.NonZeroCells(), " below the lower bound")
		if cfg.Heatmaps {
			renderHeatmaps(layout, label, original, upper, lower)
		}
	}
	return nil
}

// renderHeatmaps draws the observed and ratio matrices for one cohort.
// Rendering is presentation only; failures are logged and do not stop the
// pipeline.
func renderHeatmaps(layout app.Layout, label string, original *comat.Matrix, upper, lower *comat.Ratios) {
	hlog := log.WithField("stage", "heatmaps")
	if err := app.EnsureDir(layout.HeatmapDir()); err != nil {
		hlog.Error(err)
		return
	}
	if err := heatmap.RenderCounts(original.Codes, original.Cells,
		label+" co-occurrence", layout.HeatmapFile(label, "observed")); err != nil {
		hlog.Warn("Cohort ", label, ": ", err)
	}
	ratios := []struct {
		kind  string
		codes []string
		cells [][]float64
	}{
		{"upper_ratio", upper.Codes, upper.Cells},
		{"lower_ratio", lower.Codes, lower.Cells},
	}
	for _, r := range ratios {
		if err := heatmap.Render(r.codes, r.cells, label+" "+r.kind,
			layout.HeatmapFile(label, r.kind)); err != nil {
			hlog.Warn("Cohort ", label, ": ", err)
		}
	}
}
