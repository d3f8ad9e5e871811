package export

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// PlotOptions controls the figure written by PlotTrajectory and PlotPhase.
type PlotOptions struct {
	Title  string
	Width  vg.Length
	Height vg.Length
}

func DefaultPlotOptions() PlotOptions {
	return PlotOptions{Width: 8 * vg.Inch, Height: 5 * vg.Inch}
}

// PlotTrajectory draws the selected rows of an N×T trajectory against time
// and saves the figure to path. The format follows the file extension
// (png, svg, pdf, eps, jpg, tif).
func PlotTrajectory(path string, states mat.Matrix, dt float64, rows []int, opts PlotOptions) error {
	n, t := states.Dims()
	if t < 2 {
		return fmt.Errorf("trajectory has %d samples, need at least 2", t)
	}
	if len(rows) == 0 {
		rows = firstRows(n, 5)
	}

	p := plot.New()
	p.Title.Text = opts.Title
	p.X.Label.Text = "time"
	p.Y.Label.Text = "state"
	stylePlot(p)

	for k, row := range rows {
		if row < 0 || row >= n {
			return fmt.Errorf("row %d out of range [0, %d)", row, n)
		}
		pts := make(plotter.XYs, t)
		for j := 0; j < t; j++ {
			pts[j].X = float64(j) * dt
			pts[j].Y = states.At(row, j)
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return err
		}
		line.LineStyle.Width = vg.Points(1.2)
		line.LineStyle.Color = plotutil.Color(k)
		p.Add(line)
		p.Legend.Add(fmt.Sprintf("r%d", row), line)
	}

	return save(p, opts, path)
}

// PlotPhase draws row j against row i of a trajectory, e.g. the x-z
// butterfly of a Lorenz drive.
func PlotPhase(path string, states mat.Matrix, i, j int, opts PlotOptions) error {
	n, t := states.Dims()
	if i < 0 || i >= n || j < 0 || j >= n {
		return fmt.Errorf("rows %d, %d out of range [0, %d)", i, j, n)
	}

	p := plot.New()
	p.Title.Text = opts.Title
	p.X.Label.Text = fmt.Sprintf("x%d", i)
	p.Y.Label.Text = fmt.Sprintf("x%d", j)
	stylePlot(p)

	pts := make(plotter.XYs, t)
	for k := 0; k < t; k++ {
		pts[k].X = states.At(i, k)
		pts[k].Y = states.At(j, k)
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	line.LineStyle.Width = vg.Points(0.6)
	line.LineStyle.Color = color.RGBA{R: 30, G: 90, B: 200, A: 255}
	p.Add(line)

	return save(p, opts, path)
}

func stylePlot(p *plot.Plot) {
	p.Title.TextStyle.Font.Size = vg.Points(14)
	p.Title.Padding = vg.Points(8)
	p.X.Label.TextStyle.Font.Size = vg.Points(11)
	p.Y.Label.TextStyle.Font.Size = vg.Points(11)
	p.Legend.Top = true
	p.Add(plotter.NewGrid())
}

func save(p *plot.Plot, opts PlotOptions, path string) error {
	if opts.Width == 0 || opts.Height == 0 {
		d := DefaultPlotOptions()
		opts.Width, opts.Height = d.Width, d.Height
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("cannot create directory: %w", err)
		}
	}
	if err := p.Save(opts.Width, opts.Height, path); err != nil {
		return fmt.Errorf("save plot %s: %w", path, err)
	}
	return nil
}

func firstRows(n, limit int) []int {
	if n < limit {
		limit = n
	}
	rows := make([]int, limit)
	for i := range rows {
		rows[i] = i
	}
	return rows
}
