// Package wheel classifies a wheel against the stair profile.
//
// A wheel is a circle of fixed radius whose centre is owned by an actuator.
// Classification is evaluated on demand from the centre position; nothing is
// cached between calls.
package wheel

import (
	"fmt"
	"math"

	"github.com/golang/geo/r2"

	"github.com/banshee-data/stairclimb/internal/stair"
)

// Penetration below this depth is treated as touching.
const epsilon = 1e-9

// Kind is the contact region a wheel occupies.
type Kind int

const (
	Unchecked Kind = iota
	Air            // no contact within the gap
	Ground         // resting on a tread
	Contact        // touching a riser face only
	Corner         // resting on a tread and touching a riser or tip
	Unstable       // balanced on the convex tip of an edge only
	Over           // resting on a tread while overhanging a lower tread
	Inside         // penetrating the stair; never a valid committed state
)

var kindNames = [...]string{
	Unchecked: "unchecked",
	Air:       "air",
	Ground:    "ground",
	Contact:   "contact",
	Corner:    "corner",
	Unstable:  "unstable",
	Over:      "over",
	Inside:    "inside",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// Supported reports whether the wheel carries load in this region.
func (k Kind) Supported() bool {
	switch k {
	case Ground, Contact, Corner, Over:
		return true
	}
	return false
}

// Valid reports whether the region is an admissible committed state.
func (k Kind) Valid() bool { return k != Inside && k != Unchecked }

// Correction is the smallest translation that brings a penetrating wheel back
// onto the boundary of the valid region.
type Correction struct {
	Backward float64 // horizontal, <= 0; -Inf when no exit exists behind
	Forward  float64 // horizontal, >= 0; +Inf when no exit exists ahead
	Vertical float64 // upward, >= 0
}

// Horizontal returns the exit that undoes a horizontal motion in direction
// dir (the sign of the motion).
func (c Correction) Horizontal(dir float64) float64 {
	if dir >= 0 {
		return c.Backward
	}
	return c.Forward
}

// State is the classification of a wheel at one position.
type State struct {
	Kind Kind
	// Gap is the vertical clearance to the highest support under the centre:
	// positive when airborne, negative when penetrating.
	Gap        float64
	Correction Correction
}

// Wheel is a radius bound to the actuator that carries it.
type Wheel struct {
	Radius   float64 `json:"radius"`
	Actuator int     `json:"actuator"`
}

// Classify evaluates the wheel with its centre at p.
func (w Wheel) Classify(p r2.Point, s *stair.Stair, gap float64) (State, error) {
	return Classify(w.Radius, p, s, gap)
}

// SupportDistance returns the signed horizontal distance, in direction dir,
// to the nearest centre position at the current height where the wheel is
// supported. It returns +/-Inf when no such position exists.
func (w Wheel) SupportDistance(p r2.Point, s *stair.Stair, gap, dir float64) (float64, error) {
	return SupportDistance(w.Radius, p, s, gap, dir)
}

// rest returns the lowest admissible centre height at x: the highest support
// offered by any tread reaching under the wheel.
func rest(r, x float64, treads []stair.Tread) float64 {
	best := math.Inf(-1)
	for _, t := range treads {
		dx := t.Distance(x)
		if dx >= r-epsilon {
			continue
		}
		if h := t.Y + math.Sqrt(r*r-dx*dx); h > best {
			best = h
		}
	}
	return best
}

// Classify evaluates a wheel of radius r centred at p against s. gap is the
// tolerance within which a wheel counts as touching.
func Classify(r float64, p r2.Point, s *stair.Stair, gap float64) (State, error) {
	treads, err := s.Treads(p.X-r-gap, p.X+r+gap)
	if err != nil {
		return State{}, fmt.Errorf("classify wheel at %v: %w", p, err)
	}

	clearance := p.Y - rest(r, p.X, treads)
	if clearance < -epsilon {
		c, err := correction(r, p, s)
		if err != nil {
			return State{}, err
		}
		return State{Kind: Inside, Gap: clearance, Correction: c}, nil
	}

	var ground, face, tip, overhang bool
	own := math.Inf(-1)
	for _, t := range treads {
		dx := t.Distance(p.X)
		if dx == 0 {
			own = math.Max(own, t.Y)
		}
	}
	for _, t := range treads {
		dx := t.Distance(p.X)
		switch {
		case dx == 0:
			if p.Y-(t.Y+r) <= gap {
				ground = true
			}
		case p.Y <= t.Y:
			if dx-r <= gap {
				face = true
			}
		default:
			if math.Hypot(dx, p.Y-t.Y)-r <= gap {
				tip = true
			}
		}
		if dx < r-epsilon && t.Y < own-gap {
			overhang = true
		}
	}

	st := State{Gap: clearance}
	switch {
	case ground && (face || tip):
		st.Kind = Corner
	case ground && overhang:
		st.Kind = Over
	case ground:
		st.Kind = Ground
	case face:
		st.Kind = Contact
	case tip:
		st.Kind = Unstable
	default:
		st.Kind = Air
	}
	return st, nil
}

// interval is an open horizontal range of forbidden centre positions.
type interval struct{ lo, hi float64 }

// forbidden lists the centre ranges where a wheel at height y penetrates a
// tread of the whole profile.
func forbidden(r, y float64, s *stair.Stair) []interval {
	var out []interval
	for _, t := range s.All() {
		if t.Y <= y-r+epsilon {
			continue
		}
		w := r
		if t.Y < y {
			w = math.Sqrt(r*r - (y-t.Y)*(y-t.Y))
		}
		out = append(out, interval{lo: t.X0 - w, hi: t.X1 + w})
	}
	return out
}

// exit walks from x in direction dir until it leaves every interval.
func exit(x, dir float64, ivs []interval) float64 {
	for moved := true; moved; {
		moved = false
		for _, iv := range ivs {
			if x > iv.lo+epsilon && x < iv.hi-epsilon {
				if dir < 0 {
					x = iv.lo
				} else {
					x = iv.hi
				}
				moved = true
			}
			if math.IsInf(x, 0) {
				return x
			}
		}
	}
	return x
}

func correction(r float64, p r2.Point, s *stair.Stair) (Correction, error) {
	treads, err := s.Treads(p.X-r, p.X+r)
	if err != nil {
		return Correction{}, fmt.Errorf("wheel correction at %v: %w", p, err)
	}
	ivs := forbidden(r, p.Y, s)
	return Correction{
		Backward: exit(p.X, -1, ivs) - p.X,
		Forward:  exit(p.X, 1, ivs) - p.X,
		Vertical: math.Max(0, rest(r, p.X, treads)-p.Y),
	}, nil
}

// SupportDistance is the free-function form of Wheel.SupportDistance.
func SupportDistance(r float64, p r2.Point, s *stair.Stair, gap, dir float64) (float64, error) {
	st, err := Classify(r, p, s, gap)
	if err != nil {
		return 0, err
	}
	if st.Kind.Supported() {
		return 0, nil
	}

	// Candidate centre positions: resting over a tread at this height, or
	// touching a riser face that rises above the centre.
	var candidates []float64
	for _, t := range s.All() {
		if math.Abs(p.Y-(t.Y+r)) <= gap {
			candidates = append(candidates, t.X0, t.X1, p.X)
		}
		if t.Y >= p.Y {
			candidates = append(candidates, t.X0-r, t.X1+r)
		}
	}

	best := math.Inf(1)
	for _, x := range candidates {
		d := x - p.X
		if math.IsInf(x, 0) || d*dir < 0 || math.Abs(d) >= math.Abs(best) {
			continue
		}
		if x+r+gap > s.End() {
			continue
		}
		cs, err := Classify(r, r2.Point{X: x, Y: p.Y}, s, gap)
		if err != nil {
			return 0, err
		}
		if cs.Kind.Supported() {
			best = d
		}
	}
	if math.IsInf(best, 1) && dir < 0 {
		return math.Inf(-1), nil
	}
	return best, nil
}
