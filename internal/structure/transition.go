package structure

import (
	"errors"
	"math"

	"github.com/banshee-data/stairclimb/internal/stair"
)

// Transition is the next point where a wheel must change level: after
// Horizontal more forward travel the wheel needs a vertical move of Vertical
// (positive up). Horizontal is +Inf when the wheel has no edge left.
type Transition struct {
	Wheel      int
	Horizontal float64
	Vertical   float64
}

// Done reports whether the wheel has cleared every edge.
func (t Transition) Done() bool { return math.IsInf(t.Horizontal, 1) }

// wheelTransition finds the first edge wheel i still has to negotiate. A
// rising edge is due once the wheel touches its riser; a falling edge once the
// wheel has rolled a full radius past it.
func (s *Structure) wheelTransition(i int) (Transition, error) {
	p := s.WheelPosition(i)
	r := s.Actuators[i].Wheel.Radius
	x := p.X - r - s.gap
	for {
		e, err := s.stair.NextEdge(x)
		if errors.Is(err, stair.ErrNoEdge) {
			return Transition{Wheel: i, Horizontal: math.Inf(1)}, nil
		}
		if err != nil {
			return Transition{}, err
		}
		target := e.After + r
		switch {
		case e.Ascending() && p.Y < target-s.gap:
			return Transition{Wheel: i, Horizontal: math.Max(0, e.X-r-p.X), Vertical: target - p.Y}, nil
		case !e.Ascending() && p.Y > target+s.gap:
			return Transition{Wheel: i, Horizontal: math.Max(0, e.X+r-p.X), Vertical: target - p.Y}, nil
		}
		x = e.X
	}
}

// Transitions returns the pending transition of every wheel.
func (s *Structure) Transitions() ([NumActuators]Transition, error) {
	var out [NumActuators]Transition
	for i := range s.Actuators {
		t, err := s.wheelTransition(i)
		if err != nil {
			return out, err
		}
		out[i] = t
	}
	return out, nil
}

// Leading picks the transition with the least horizontal distance. Ties go
// to the frontmost wheel.
func Leading(ts []Transition) Transition {
	best := Transition{Wheel: -1, Horizontal: math.Inf(1)}
	for _, t := range ts {
		if best.Wheel < 0 || t.Horizontal < best.Horizontal || (t.Horizontal == best.Horizontal && t.Wheel > best.Wheel) {
			best = t
		}
	}
	return best
}

// NextTransition returns the leading transition over all wheels.
func (s *Structure) NextTransition() (Transition, error) {
	ts, err := s.Transitions()
	if err != nil {
		return Transition{}, err
	}
	return Leading(ts[:]), nil
}
