// Package stair models a staircase as a piecewise-constant floor profile.
//
// The profile is a flat ordered sequence of treads. The first tread is the
// floor in front of the stairs; it starts at x = -Inf because the structure
// approaches from behind the origin. Every riser sits at the boundary between
// two consecutive treads. The last tread is the exit landing, which ends at
// End(); queries beyond it fail with ErrOutOfBounds.
package stair

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

var (
	// ErrOutOfBounds is returned for horizontal queries past the end of the
	// profile. It always indicates a planning bug upstream; positions are
	// never clamped.
	ErrOutOfBounds = errors.New("stair: position out of bounds")
	// ErrInvalidStep is returned by New for malformed step groups.
	ErrInvalidStep = errors.New("stair: invalid step")
	// ErrNoEdge is returned by NextEdge when no riser remains ahead.
	ErrNoEdge = errors.New("stair: no edge ahead")
)

// Step describes a group of identical steps: Count risers of Height, each
// followed by a tread of Width. A negative Height describes a descending step.
type Step struct {
	Count  int     `json:"count"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Tread is a horizontal run of the profile at a constant level.
// The solid under a tread is the column [X0, X1] x (-Inf, Y].
type Tread struct {
	X0 float64
	X1 float64
	Y  float64
}

// Contains reports whether x lies within the tread's horizontal extent.
func (t Tread) Contains(x float64) bool {
	return x >= t.X0 && x <= t.X1
}

// Distance returns the horizontal distance from x to the tread (0 inside).
func (t Tread) Distance(x float64) float64 {
	switch {
	case x < t.X0:
		return t.X0 - x
	case x > t.X1:
		return x - t.X1
	default:
		return 0
	}
}

// Edge is a riser between two treads.
type Edge struct {
	LeftX  float64 // start of the tread before the riser
	X      float64 // riser position
	Before float64 // level left of the riser
	After  float64 // level right of the riser
}

// Rise returns the signed height of the riser (negative when descending).
func (e Edge) Rise() float64 { return e.After - e.Before }

// Ascending reports whether the riser goes up.
func (e Edge) Ascending() bool { return e.After > e.Before }

// Stair is an immutable step profile.
type Stair struct {
	steps   []Step
	treads  []Tread
	landing float64
	exit    float64
}

// New expands the step groups into a tread sequence. landing is the length of
// flat floor between the origin and the first riser; exit is the length of
// the landing after the last riser. A non-positive exit defaults to the
// landing plus the total horizontal run of the steps.
func New(steps []Step, landing, exit float64) (*Stair, error) {
	if !(landing > 0) || math.IsInf(landing, 0) {
		return nil, fmt.Errorf("%w: landing must be positive and finite, got %v", ErrInvalidStep, landing)
	}
	if math.IsNaN(exit) || math.IsInf(exit, 0) {
		return nil, fmt.Errorf("%w: exit must be finite, got %v", ErrInvalidStep, exit)
	}

	var run float64
	for i, st := range steps {
		if st.Count < 1 {
			return nil, fmt.Errorf("%w: group %d: count must be at least 1, got %d", ErrInvalidStep, i, st.Count)
		}
		if !(st.Width > 0) || math.IsInf(st.Width, 0) {
			return nil, fmt.Errorf("%w: group %d: width must be positive and finite, got %v", ErrInvalidStep, i, st.Width)
		}
		if math.IsNaN(st.Height) || math.IsInf(st.Height, 0) {
			return nil, fmt.Errorf("%w: group %d: height must be finite, got %v", ErrInvalidStep, i, st.Height)
		}
		run += float64(st.Count) * st.Width
	}
	if exit <= 0 {
		exit = landing + run
	}

	treads := []Tread{{X0: math.Inf(-1), X1: landing, Y: 0}}
	x, y := landing, 0.0
	for _, st := range steps {
		for n := 0; n < st.Count; n++ {
			y += st.Height
			treads = append(treads, Tread{X0: x, X1: x + st.Width, Y: y})
			x += st.Width
		}
	}
	treads[len(treads)-1].X1 += exit

	s := &Stair{
		steps:   append([]Step(nil), steps...),
		treads:  treads,
		landing: landing,
		exit:    exit,
	}
	return s, nil
}

// Steps returns a copy of the step groups the stair was built from.
func (s *Stair) Steps() []Step { return append([]Step(nil), s.steps...) }

// Landing returns the floor length before the first riser.
func (s *Stair) Landing() float64 { return s.landing }

// Exit returns the landing length after the last riser.
func (s *Stair) Exit() float64 { return s.exit }

// End returns the largest valid horizontal coordinate.
func (s *Stair) End() float64 { return s.treads[len(s.treads)-1].X1 }

// Length returns the horizontal extent of the profile measured from the origin.
func (s *Stair) Length() float64 { return s.End() }

// Height returns the net rise from the floor to the exit landing.
func (s *Stair) Height() float64 { return s.treads[len(s.treads)-1].Y }

// All returns the whole tread sequence. The slice is shared and must not be
// modified.
func (s *Stair) All() []Tread { return s.treads }

// index returns the tread containing x. A point exactly on a riser belongs to
// the tread on its right.
func (s *Stair) index(x float64) (int, error) {
	if math.IsNaN(x) || x > s.End() {
		return 0, fmt.Errorf("%w: x=%v end=%v", ErrOutOfBounds, x, s.End())
	}
	i := sort.Search(len(s.treads), func(i int) bool { return s.treads[i].X1 > x })
	if i == len(s.treads) {
		i = len(s.treads) - 1
	}
	return i, nil
}

// LevelAt returns the floor level under x.
func (s *Stair) LevelAt(x float64) (float64, error) {
	i, err := s.index(x)
	if err != nil {
		return 0, err
	}
	return s.treads[i].Y, nil
}

// TreadAt returns the tread under x.
func (s *Stair) TreadAt(x float64) (Tread, error) {
	i, err := s.index(x)
	if err != nil {
		return Tread{}, err
	}
	return s.treads[i], nil
}

// Treads returns the treads overlapping [x0, x1].
func (s *Stair) Treads(x0, x1 float64) ([]Tread, error) {
	if x1 < x0 {
		x0, x1 = x1, x0
	}
	lo, err := s.index(x0)
	if err != nil {
		return nil, err
	}
	hi, err := s.index(x1)
	if err != nil {
		return nil, err
	}
	// A tread ending exactly at x0 still touches the span.
	if lo > 0 && s.treads[lo-1].X1 >= x0 {
		lo--
	}
	return s.treads[lo : hi+1], nil
}

// NextEdge returns the first riser strictly ahead of x. Risers with zero
// height are skipped. ErrNoEdge is returned once the last riser is behind x.
func (s *Stair) NextEdge(x float64) (Edge, error) {
	i, err := s.index(x)
	if err != nil {
		return Edge{}, err
	}
	for ; i+1 < len(s.treads); i++ {
		cur, next := s.treads[i], s.treads[i+1]
		if cur.X1 <= x || next.Y == cur.Y {
			continue
		}
		return Edge{LeftX: cur.X0, X: cur.X1, Before: cur.Y, After: next.Y}, nil
	}
	return Edge{}, ErrNoEdge
}

// Edges returns every non-zero riser in order.
func (s *Stair) Edges() []Edge {
	var out []Edge
	for i := 0; i+1 < len(s.treads); i++ {
		cur, next := s.treads[i], s.treads[i+1]
		if next.Y == cur.Y {
			continue
		}
		out = append(out, Edge{LeftX: cur.X0, X: cur.X1, Before: cur.Y, After: next.Y})
	}
	return out
}

// LastEdge returns the final riser, or ErrNoEdge for a flat profile.
func (s *Stair) LastEdge() (Edge, error) {
	edges := s.Edges()
	if len(edges) == 0 {
		return Edge{}, ErrNoEdge
	}
	return edges[len(edges)-1], nil
}
