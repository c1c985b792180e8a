package structure

import (
	"fmt"
	"math"
)

// Op names a motion primitive.
type Op int

const (
	OpAdvance Op = iota
	OpElevate
	OpIncline
	OpShift
)

func (o Op) String() string {
	switch o {
	case OpAdvance:
		return "advance"
	case OpElevate:
		return "elevate"
	case OpIncline:
		return "incline"
	case OpShift:
		return "shift"
	}
	return fmt.Sprintf("op(%d)", int(o))
}

// Motion is a primitive reduced to its rates per unit of delta. Every
// primitive is linear in its delta, so a motion of delta d moves each state
// variable by rate*d.
type Motion struct {
	Op          Op
	Actuator    int // OpShift only
	FixFront    bool
	ElevateRear bool

	shift       float64
	elevation   float64
	inclination float64
	extension   [NumActuators]float64
}

// AdvanceMotion translates the structure forward; wheels roll with it.
func AdvanceMotion() Motion { return Motion{Op: OpAdvance, Actuator: -1, shift: 1} }

// ElevateMotion raises the body while every actuator extends by the same
// amount, so the wheels stay where they are.
func ElevateMotion() Motion {
	return Motion{
		Op:        OpElevate,
		Actuator:  -1,
		elevation: 1,
		extension: [NumActuators]float64{1, 1, 1, 1},
	}
}

// InclineMotion tilts the body about its rear end, or about its front end
// when fixFront is set. Actuators compensate so wheels stay put; with
// elevateRear the rear actuator does not compensate and its wheel rides with
// the body.
func (s *Structure) InclineMotion(fixFront, elevateRear bool) Motion {
	m := Motion{Op: OpIncline, Actuator: -1, FixFront: fixFront, ElevateRear: elevateRear, inclination: 1}
	if fixFront {
		m.elevation = -1
	}
	span := s.Span()
	for i, a := range s.Actuators {
		m.extension[i] = a.ProportionalShift(1, span, fixFront)
	}
	if fixFront && elevateRear {
		m.extension[0] = 0
	}
	return m
}

// ShiftMotion extends actuator i; a positive delta pushes its wheel down.
func ShiftMotion(i int) Motion {
	m := Motion{Op: OpShift, Actuator: i}
	m.extension[i] = 1
	return m
}

// TopRate returns the vertical rate of the top of actuator i.
func (m Motion) TopRate(s *Structure, i int) float64 {
	return m.elevation + m.inclination*s.Actuators[i].Offset/s.Span()
}

// WheelRate returns the horizontal and vertical rates of wheel i. A
// compensating actuator cancels its top's rate only up to rounding, so
// residues below epsilon are reported as zero.
func (m Motion) WheelRate(s *Structure, i int) (dx, dy float64) {
	dy = m.TopRate(s, i) - m.extension[i]
	if math.Abs(dy) < epsilon {
		dy = 0
	}
	return m.shift, dy
}

// ExtensionRate returns the extension rate of actuator i.
func (m Motion) ExtensionRate(i int) float64 { return m.extension[i] }

func (s *Structure) step(m Motion, d float64) {
	s.Shift += m.shift * d
	s.Elevation += m.elevation * d
	s.Inclination += m.inclination * d
	for i := range s.Actuators {
		s.Actuators[i].Extension += m.extension[i] * d
	}
}
