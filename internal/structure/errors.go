package structure

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidGeometry is returned by New for dimensions that cannot build
	// a valid initial structure.
	ErrInvalidGeometry = errors.New("structure: invalid geometry")
	// ErrInvalidMotion is returned for non-finite deltas or unknown actuators.
	ErrInvalidMotion = errors.New("structure: invalid motion")
	// ErrInternal reports a check whose corrections disagree in sign or that
	// found a violation the motion cannot have caused. It is fatal.
	ErrInternal = errors.New("structure: internal inconsistency")
)

// Violation classifies the constraint a rejected motion broke.
type Violation int

const (
	Collision   Violation = iota // a wheel penetrates the stair
	Instability                  // both wheels of a pair lost support
	Bound                        // an actuator left its extension range
	Inclination                  // the body exceeded its inclination limit
)

func (v Violation) String() string {
	switch v {
	case Collision:
		return "collision"
	case Instability:
		return "instability"
	case Bound:
		return "bound"
	case Inclination:
		return "inclination"
	}
	return fmt.Sprintf("violation(%d)", int(v))
}

// MotionError is returned by a rejected primitive. The structure is left
// exactly as it was before the call.
//
// Correction is signed and expressed in the primitive's own units: retrying
// with Delta+Correction yields a position on the boundary of the valid
// region. The inclination limit is reported separately from the correction
// because planners fall back differently when the body, not a wheel, is the
// limiting factor.
type MotionError struct {
	Op         Op
	Kind       Violation
	Wheel      int // offending wheel or actuator, -1 for body limits
	Delta      float64
	Correction float64

	InclinationLimited bool
	MaxInclination     float64
}

func (e *MotionError) Error() string {
	msg := fmt.Sprintf("%s %.4g rejected: %s", e.Op, e.Delta, e.Kind)
	if e.Wheel >= 0 {
		msg += fmt.Sprintf(" at wheel %d", e.Wheel)
	}
	msg += fmt.Sprintf(", correction %.4g", e.Correction)
	if e.InclinationLimited {
		msg += fmt.Sprintf(", max inclination %.4g", e.MaxInclination)
	}
	return msg
}

// Feasible returns the largest portion of the requested delta that passes.
func (e *MotionError) Feasible() float64 { return e.Delta + e.Correction }
