package control

import (
	"errors"
	"fmt"

	"github.com/banshee-data/stairclimb/internal/structure"
)

var (
	// ErrInfeasible is matched by every *PlanError: the make-room fallbacks
	// for an actuator were exhausted.
	ErrInfeasible = errors.New("control: no feasible motion")
	// ErrNoProgress is returned when a planning cycle would emit an
	// instruction whose every field is below the contact tolerance.
	ErrNoProgress = errors.New("control: planner made no progress")
	// ErrNoTermination is returned by Traverse when the iteration limit is
	// reached before the last instruction.
	ErrNoTermination = errors.New("control: iteration limit reached")
)

// Stage is a step of the make-room state machine.
type Stage int

const (
	StageDirect Stage = iota
	StagePrimary
	StageSecondary
	StageFatal
)

func (s Stage) String() string {
	switch s {
	case StageDirect:
		return "direct"
	case StagePrimary:
		return "primary"
	case StageSecondary:
		return "secondary"
	case StageFatal:
		return "fatal"
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// PlanError reports an actuator move that no fallback could realise.
type PlanError struct {
	Actuator int
	Delta    float64
	Stage    Stage // last stage reached

	// InclinationLimited is set when any attempt hit the body inclination
	// limit; MaxInclination is that limit, signed.
	InclinationLimited bool
	MaxInclination     float64

	// Short is the part of Delta left undone when the push was committed up
	// to the inclination limit. Zero when nothing was committed.
	Short float64

	Err error // last rejection
}

func (e *PlanError) Error() string {
	msg := fmt.Sprintf("actuator %d by %.4g infeasible at %s stage", e.Actuator, e.Delta, e.Stage)
	if e.InclinationLimited {
		msg += fmt.Sprintf(" (inclination limited to %.4g)", e.MaxInclination)
	}
	if e.Short != 0 {
		msg += fmt.Sprintf(", %.4g short", e.Short)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *PlanError) Unwrap() error { return e.Err }

// Is makes every PlanError match ErrInfeasible.
func (e *PlanError) Is(target error) bool { return target == ErrInfeasible }

// record keeps the latest rejection and any inclination limit it reports.
func (e *PlanError) record(err error) {
	e.Err = err
	if merr, ok := structure.IsMotionError(err); ok && merr.InclinationLimited {
		e.InclinationLimited = true
		e.MaxInclination = merr.MaxInclination
	}
}
