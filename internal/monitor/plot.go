package monitor

import (
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/dovechaser/internal/anglemap"
)

// PlotAngleMap writes the forward curve and the interpolated inverse entries
// of m to path. The image format follows the file extension (png, svg, pdf).
func PlotAngleMap(m *anglemap.Map, path string) error {
	p := plot.New()
	p.Title.Text = "Pitch linkage angle map"
	p.X.Label.Text = "alpha (deg)"
	p.Y.Label.Text = "beta (deg)"
	p.Add(plotter.NewGrid())

	table := m.Table()
	fwd := make(plotter.XYs, 0, len(table))
	for _, e := range table {
		fwd = append(fwd, plotter.XY{X: float64(e.Alpha), Y: float64(e.Beta)})
	}

	var interp plotter.XYs
	for _, e := range m.InverseTable() {
		if !e.Interpolated {
			continue
		}
		for _, a := range e.Alphas {
			interp = append(interp, plotter.XY{X: a, Y: float64(e.Beta)})
		}
	}

	line, err := plotter.NewLine(fwd)
	if err != nil {
		return fmt.Errorf("forward line: %w", err)
	}
	line.Color = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	line.Width = vg.Points(1.5)
	p.Add(line)
	p.Legend.Add("solved", line)

	if len(interp) > 0 {
		sc, err := plotter.NewScatter(interp)
		if err != nil {
			return fmt.Errorf("interpolated points: %w", err)
		}
		sc.Color = color.RGBA{R: 255, G: 127, B: 14, A: 255}
		sc.Radius = vg.Points(1.5)
		p.Add(sc)
		p.Legend.Add("interpolated", sc)
	}

	p.Legend.Top = true
	p.Legend.Left = true

	if err := p.Save(8*vg.Inch, 5*vg.Inch, path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}
