package training

import (
	"image/color"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// PlotHistory writes a PNG of the per-epoch training loss to path, creating
// parent directories as needed.
func PlotHistory(path string, history []EpochStats) error {
	if len(history) == 0 {
		return errors.New("no epochs to plot")
	}

	p := plot.New()
	p.Title.Text = "Training loss"
	p.X.Label.Text = "epoch"
	p.Y.Label.Text = "loss"

	xys := make(plotter.XYs, len(history))
	for i, s := range history {
		xys[i].X = float64(s.Epoch)
		xys[i].Y = s.Loss
	}
	line, err := plotter.NewLine(xys)
	if err != nil {
		return errors.Wrap(err, "building loss line")
	}
	line.Color = color.RGBA{R: 20, G: 80, B: 200, A: 255}
	line.Width = vg.Points(1.5)
	p.Add(line, plotter.NewGrid())
	p.Legend.Add("train loss", line)

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "creating plot directory %s", dir)
		}
	}
	if err := p.Save(8*vg.Inch, 6*vg.Inch, path); err != nil {
		return errors.Wrapf(err, "saving plot to %s", path)
	}
	return nil
}
