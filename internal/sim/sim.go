// Package sim replays planned instructions in small increments for
// animation, and accounts for the time a plan takes at given actuator speeds.
package sim

import (
	"errors"
	"fmt"

	"github.com/banshee-data/stairclimb/internal/monitoring"
	"github.com/banshee-data/stairclimb/internal/structure"
)

// ErrInconsistent means an instruction the planner accepted failed when
// replayed. It is never a correctable condition.
var ErrInconsistent = errors.New("sim: replay diverged from plan")

// Frame is one intermediate position of a replay.
type Frame struct {
	Instruction int // index in the replayed plan
	Op          structure.Op
	Sub         int // 1..steps within the field
	Geometry    structure.Snapshot
}

// Observer receives every frame. Returning an error stops the replay.
type Observer func(Frame) error

// Replay executes in on s, splitting each field into steps equal moves and
// checking the position after every one. On failure s is unchanged.
func Replay(s *structure.Structure, in structure.Instruction, steps int, obs Observer) error {
	return replay(s, 0, in, steps, obs)
}

func replay(s *structure.Structure, idx int, in structure.Instruction, steps int, obs Observer) error {
	if steps < 1 {
		steps = 1
	}
	fields, err := s.Fields(in)
	if err != nil {
		return err
	}
	trial := *s
	for _, f := range fields {
		done := 0.0
		for k := 1; k <= steps; k++ {
			// The last increment lands exactly on the planned delta.
			d := f.Delta/float64(steps)
			if k == steps {
				d = f.Delta - done
			}
			if err := trial.Move(f.Motion, d, true); err != nil {
				monitoring.Debugf("[sim] instruction %d %s diverged at %d/%d: %v", idx, f.Motion.Op, k, steps, err)
				return fmt.Errorf("%w: instruction %d (%s), %s %d/%d: %v", ErrInconsistent, idx, in, f.Motion.Op, k, steps, err)
			}
			done += d
			if obs != nil {
				if err := obs(Frame{Instruction: idx, Op: f.Motion.Op, Sub: k, Geometry: trial.Geometry()}); err != nil {
					return err
				}
			}
		}
	}
	*s = trial
	return nil
}

// Run replays a whole plan from s and returns the final position. s is not
// modified.
func Run(s structure.Structure, plan []structure.Instruction, steps int, obs Observer) (structure.Structure, error) {
	if obs != nil {
		if err := obs(Frame{Instruction: -1, Sub: 0, Geometry: s.Geometry()}); err != nil {
			return s, err
		}
	}
	for i, in := range plan {
		if err := replay(&s, i, in, steps, obs); err != nil {
			return s, err
		}
	}
	return s, nil
}
