package structure

import (
	"github.com/golang/geo/r2"

	"github.com/banshee-data/stairclimb/internal/wheel"
)

// Snapshot is a read-only view of the structure for renderers.
type Snapshot struct {
	Wheels [NumActuators]r2.Point
	Radii  [NumActuators]float64
	Tops   [NumActuators]r2.Point
	Kinds  [NumActuators]wheel.Kind
	Angle  float64 // radians
}

// Rear returns the rear end of the body.
func (g Snapshot) Rear() r2.Point { return g.Tops[0] }

// Front returns the front end of the body.
func (g Snapshot) Front() r2.Point { return g.Tops[NumActuators-1] }

// Geometry returns the current snapshot. Wheels whose classification fails
// are reported as Unchecked.
func (s *Structure) Geometry() Snapshot {
	var g Snapshot
	for i, a := range s.Actuators {
		g.Wheels[i] = s.WheelPosition(i)
		g.Radii[i] = a.Wheel.Radius
		g.Tops[i] = s.Top(i)
		if st, err := s.classify(i); err == nil {
			g.Kinds[i] = st.Kind
		}
	}
	g.Angle = s.Angle()
	return g
}
