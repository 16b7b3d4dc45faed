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

// Package heatmap renders the pipeline's square matrices as PNG heatmaps.
package heatmap

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// grid adapts a dense matrix to the plotter.GridXYZ interface. Row r of the
// matrix is drawn at Y=r, column c at X=c.
type grid struct {
	m *mat.Dense
}

func (g grid) Dims() (c, r int) {
	rows, cols := g.m.Dims()
	return cols, rows
}

func (g grid) Z(c, r int) float64 { return g.m.At(r, c) }
func (g grid) X(c int) float64    { return float64(c) }
func (g grid) Y(r int) float64    { return float64(r) }

// codeTicks places one tick per disease code, thinned so that large universes
// stay readable.
type codeTicks struct {
	codes []string
}

func (t codeTicks) Ticks(min, max float64) []plot.Tick {
	step := 1
	if len(t.codes) > 40 {
		step = len(t.codes) / 40
	}
	ticks := []plot.Tick{}
	for i := 0; i < len(t.codes); i += step {
		v := float64(i)
		if v < min || v > max {
			continue
		}
		ticks = append(ticks, plot.Tick{Value: v, Label: t.codes[i]})
	}
	return ticks
}

// Render draws a labeled square float matrix as a heatmap and saves it as a
// PNG image. The cells slice must be square and match the codes in length.
func Render(codes []string, cells [][]float64, title, path string) error {
	n := len(codes)
	if n == 0 {
		return fmt.Errorf("heatmap %s: empty matrix", title)
	}
	dense := mat.NewDense(n, n, nil)
	for i, row := range cells {
		if len(row) != n {
			return fmt.Errorf("heatmap %s: row %d has %d cells, want %d", title, i, len(row), n)
		}
		for j, v := range row {
			dense.Set(i, j, v)
		}
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Tick.Marker = codeTicks{codes: codes}
	p.Y.Tick.Marker = codeTicks{codes: codes}
	p.X.Tick.Label.Rotation = 1.5708
	p.X.Tick.Label.XAlign = -0.5
	h := plotter.NewHeatMap(grid{m: dense}, palette.Heat(12, 1))
	p.Add(h)
	return p.Save(25*vg.Centimeter, 25*vg.Centimeter, path)
}

// RenderCounts draws an integer count matrix.
func RenderCounts(codes []string, cells [][]int, title, path string) error {
	floats := make([][]float64, len(cells))
	for i, row := range cells {
		floats[i] = make([]float64, len(row))
		for j, v := range row {
			floats[i][j] = float64(v)
		}
	}
	return Render(codes, floats, title, path)
}
