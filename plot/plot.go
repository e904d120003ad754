// Package plot renders one line chart per cluster.
//
// Each chart shows every member row as a line over the column index, with
// the y axis fixed to the normalized range [0,1]. Charts are written as SVG
// to a blob store under "<prefix>_cluster_<c+1>.svg".
package plot

import (
	"context"
	"fmt"
	"image/color"
	"io"
	"math"

	"github.com/hupe1980/anneal/blobstore"
	"github.com/hupe1980/anneal/distance"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// Chart size, matching an 800x600 pixel canvas at 96 dpi.
const (
	width  = 800 * vg.Inch / 96
	height = 600 * vg.Inch / 96
)

var lineColor = color.RGBA{B: 255, A: 255}

// FileName returns the blob name of cluster c's chart.
func FileName(prefix string, c int) string {
	return fmt.Sprintf("%s_cluster_%d.svg", prefix, c+1)
}

// Render writes one chart per cluster 0..k-1 and returns the blob names.
// Rows with non-finite values are left out of their chart.
func Render(ctx context.Context, store blobstore.Store, prefix string, data [][]float64, clusters []int, k int) ([]string, error) {
	if len(data) != len(clusters) {
		return nil, fmt.Errorf("plot: %d rows for %d cluster ids", len(data), len(clusters))
	}

	members := make([][][]float64, k)
	for i, c := range clusters {
		if c < 0 || c >= k {
			return nil, fmt.Errorf("plot: row %d has cluster %d outside [0,%d)", i, c, k)
		}
		members[c] = append(members[c], data[i])
	}

	names := make([]string, 0, k)
	for c := range k {
		if err := ctx.Err(); err != nil {
			return names, err
		}
		name := FileName(prefix, c)
		if err := renderTo(ctx, store, name, fmt.Sprintf("Cluster %d (%d rows)", c+1, len(members[c])), members[c]); err != nil {
			return names, err
		}
		names = append(names, name)
	}
	return names, nil
}

func renderTo(ctx context.Context, store blobstore.Store, name, title string, rows [][]float64) error {
	w, err := store.Create(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to create %q: %w", name, err)
	}
	if err := WriteSVG(w, title, rows); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to render %q: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to commit %q: %w", name, err)
	}
	return nil
}

// WriteSVG draws rows as lines on one chart.
func WriteSVG(w io.Writer, title string, rows [][]float64) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "column"
	p.Y.Label.Text = "normalized value"
	p.Y.Min, p.Y.Max = 0, 1
	p.X.Min = 0
	p.X.Max = 1
	p.Add(plotter.NewGrid())

	for _, row := range rows {
		if len(row) == 0 || distance.FirstNonFinite(row) >= 0 {
			continue
		}
		xys := make(plotter.XYs, len(row))
		for x, y := range row {
			xys[x] = plotter.XY{X: float64(x), Y: y}
		}
		l, err := plotter.NewLine(xys)
		if err != nil {
			return err
		}
		l.LineStyle.Color = lineColor
		l.LineStyle.Width = vg.Points(0.5)
		p.Add(l)
		p.X.Max = math.Max(p.X.Max, float64(len(row)-1))
	}

	wt, err := p.WriterTo(width, height, "svg")
	if err != nil {
		return err
	}
	_, err = wt.WriteTo(w)
	return err
}
