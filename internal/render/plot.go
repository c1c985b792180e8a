// Package render draws structure positions as PNG frames and plan timings as
// an HTML chart. It only reads geometry snapshots.
package render

import (
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/stairclimb/internal/sim"
	"github.com/banshee-data/stairclimb/internal/stair"
	"github.com/banshee-data/stairclimb/internal/structure"
	"github.com/banshee-data/stairclimb/internal/wheel"
)

// circleSegments is the polygon resolution of a drawn wheel.
const circleSegments = 32

var (
	stairColor     = color.RGBA{R: 90, G: 90, B: 90, A: 255}
	bodyColor      = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	actuatorColor  = color.RGBA{R: 255, G: 127, B: 14, A: 255}
	supportedColor = color.RGBA{R: 44, G: 160, B: 44, A: 255}
	airColor       = color.RGBA{R: 150, G: 150, B: 150, A: 255}
	faultColor     = color.RGBA{R: 214, G: 39, B: 40, A: 255}
)

func wheelColor(k wheel.Kind) color.Color {
	switch {
	case k.Supported():
		return supportedColor
	case k == wheel.Air:
		return airColor
	}
	return faultColor
}

// profile returns the stair outline from x0 to the end of the stair.
func profile(s *stair.Stair, x0 float64) plotter.XYs {
	var pts plotter.XYs
	for _, t := range s.All() {
		if t.X1 < x0 {
			continue
		}
		pts = append(pts, plotter.XY{X: math.Max(t.X0, x0), Y: t.Y}, plotter.XY{X: t.X1, Y: t.Y})
	}
	return pts
}

func circle(c structure.Snapshot, i int) plotter.XYs {
	pts := make(plotter.XYs, circleSegments+1)
	for k := range pts {
		a := 2 * math.Pi * float64(k) / circleSegments
		pts[k] = plotter.XY{
			X: c.Wheels[i].X + c.Radii[i]*math.Cos(a),
			Y: c.Wheels[i].Y + c.Radii[i]*math.Sin(a),
		}
	}
	return pts
}

func addLine(p *plot.Plot, pts plotter.XYs, c color.Color, width vg.Length) error {
	l, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	l.Color = c
	l.Width = width
	p.Add(l)
	return nil
}

// Frame draws one structure position over the stair.
func Frame(g structure.Snapshot, s *stair.Stair, title string) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "x"
	p.Y.Label.Text = "y"

	minX := g.Wheels[0].X - g.Radii[0]
	for i := range g.Wheels {
		minX = math.Min(minX, g.Wheels[i].X-g.Radii[i])
	}
	if err := addLine(p, profile(s, minX-g.Radii[0]), stairColor, vg.Points(2)); err != nil {
		return nil, err
	}

	body := plotter.XYs{{X: g.Rear().X, Y: g.Rear().Y}, {X: g.Front().X, Y: g.Front().Y}}
	if err := addLine(p, body, bodyColor, vg.Points(3)); err != nil {
		return nil, err
	}
	for i := range g.Wheels {
		act := plotter.XYs{{X: g.Tops[i].X, Y: g.Tops[i].Y}, {X: g.Wheels[i].X, Y: g.Wheels[i].Y}}
		if err := addLine(p, act, actuatorColor, vg.Points(1.5)); err != nil {
			return nil, err
		}
		if err := addLine(p, circle(g, i), wheelColor(g.Kinds[i]), vg.Points(1)); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// SavePNG renders one frame to path.
func SavePNG(path string, g structure.Snapshot, s *stair.Stair, title string) error {
	p, err := Frame(g, s, title)
	if err != nil {
		return err
	}
	if err := p.Save(10*vg.Inch, 5*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	return nil
}

// FrameWriter is a sim.Observer that saves every nth replay frame as a PNG
// in dir.
type FrameWriter struct {
	Dir   string
	Stair *stair.Stair
	Every int

	seen  int
	Files []string
}

// Observe implements sim.Observer.
func (w *FrameWriter) Observe(f sim.Frame) error {
	every := w.Every
	if every < 1 {
		every = 1
	}
	n := w.seen
	w.seen++
	if n%every != 0 {
		return nil
	}
	path := filepath.Join(w.Dir, fmt.Sprintf("frame_%05d.png", len(w.Files)))
	title := fmt.Sprintf("instruction %d: %s %d", f.Instruction, f.Op, f.Sub)
	if f.Instruction < 0 {
		title = "initial position"
	}
	if err := SavePNG(path, f.Geometry, w.Stair, title); err != nil {
		return err
	}
	w.Files = append(w.Files, path)
	return nil
}

// EnsureDir creates dir if it does not exist.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	return nil
}
