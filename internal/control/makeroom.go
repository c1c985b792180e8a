package control

import (
	"fmt"
	"math"

	"github.com/banshee-data/stairclimb/internal/structure"
)

// bodyMotion is a compensated body motion expressed by the instruction field
// it produces. Elevate is used when incline is nil.
type bodyMotion struct {
	incline *structure.InclineStep
}

// rate returns how far the top of actuator i moves per unit of the motion.
func (b bodyMotion) rate(s *structure.Structure, i int) float64 {
	if b.incline == nil {
		return structure.ElevateMotion().TopRate(s, i)
	}
	return s.InclineMotion(b.incline.FixFront, b.incline.ElevateRear).TopRate(s, i)
}

// instruction returns the field that moves the top of actuator i by room.
func (b bodyMotion) instruction(s *structure.Structure, i int, room float64) (structure.Instruction, error) {
	r := b.rate(s, i)
	if r == 0 {
		return structure.Instruction{}, fmt.Errorf("%w: body motion cannot move actuator %d", ErrInfeasible, i)
	}
	if b.incline == nil {
		return structure.Instruction{Elevate: structure.Float(room / r)}, nil
	}
	step := *b.incline
	step.Height = room / r
	return structure.Instruction{Incline: &step}, nil
}

var (
	elevate        = bodyMotion{}
	inclineRear    = bodyMotion{incline: &structure.InclineStep{}}
	inclineFront   = bodyMotion{incline: &structure.InclineStep{FixFront: true}}
	inclineCarried = bodyMotion{incline: &structure.InclineStep{FixFront: true, ElevateRear: true}}
)

// primaryMotion is the first body motion tried to make room for actuator i.
// It is also the motion anticipated for the other pair.
func primaryMotion(i int) bodyMotion {
	switch i {
	case 0:
		return inclineFront
	case 3:
		return inclineRear
	}
	return elevate
}

// room returns how far the top of actuator i must move so that a shift by
// delta stays within the actuator's range. It is zero when the shift fits.
func room(a structure.Actuator, delta float64) float64 {
	ext := a.Extension + delta
	switch {
	case ext < a.Lower:
		return a.Lower - ext
	case ext > a.Upper:
		return a.Upper - ext
	}
	return 0
}

func withShift(in structure.Instruction, i int, delta float64) structure.Instruction {
	in.Shift = &structure.ShiftStep{Actuator: i, Height: delta}
	return in
}

// roomPlan is a make-room instruction. short is the part of the shift it
// leaves unrealised because limit bounded the body motion.
type roomPlan struct {
	in    structure.Instruction
	short float64
	limit error
}

// makeRoom builds the instruction for the given stage. need is the top
// displacement the direct shift was short of.
func (p *Planner) makeRoom(s *structure.Structure, i int, delta, need float64, stage Stage) (roomPlan, error) {
	switch {
	case stage == StagePrimary:
		in, err := primaryMotion(i).instruction(s, i, need)
		if err != nil {
			return roomPlan{}, err
		}
		return roomPlan{in: withShift(in, i, delta)}, nil

	case i == 3:
		// Incline as far as the structure allows, then elevate the rest.
		full, err := inclineRear.instruction(s, i, need)
		if err != nil {
			return roomPlan{}, err
		}
		trial := *s
		h := full.Incline.Height
		if err := trial.Apply(full); err != nil {
			merr, ok := structure.IsMotionError(err)
			if !ok {
				return roomPlan{}, err
			}
			if merr.Kind == structure.Bound && merr.Wheel == 1 {
				return roomPlan{in: withShift(pivotInner(s, need), i, delta)}, nil
			}
			h = merr.Feasible()
		}
		in := structure.Instruction{}
		if math.Abs(h) > 0 {
			in.Incline = &structure.InclineStep{Height: h}
		}
		if rest := need - h*inclineRear.rate(s, i); rest != 0 {
			in.Elevate = structure.Float(rest)
		}
		return roomPlan{in: withShift(in, i, delta)}, nil

	case i == 0:
		return p.carryRear(s, delta, need)

	case i == 1:
		in, err := inclineFront.instruction(s, i, need)
		if err != nil {
			return roomPlan{}, err
		}
		return roomPlan{in: withShift(in, i, delta)}, nil

	default:
		in, err := inclineRear.instruction(s, i, need)
		if err != nil {
			return roomPlan{}, err
		}
		return roomPlan{in: withShift(in, i, delta)}, nil
	}
}

// pivotInner moves the top of actuator 3 by need while the top of actuator 1
// stays put: the body tilts about its front end and the whole body then
// follows need. Used when a tilt about the rear end would push actuator 1
// out of its stroke.
func pivotInner(s *structure.Structure, need float64) structure.Instruction {
	span := s.Span()
	h := need * span / (span - s.Actuators[1].Offset)
	return structure.Instruction{
		Incline: &structure.InclineStep{Height: h, FixFront: true},
		Elevate: structure.Float(need),
	}
}

// carryRear lifts the rear wheel with the body for the part actuator 0
// cannot stroke. The carried incline stops at the inclination limit; the
// actuator then takes what it can of the rest, and whatever remains is short.
func (p *Planner) carryRear(s *structure.Structure, delta, need float64) (roomPlan, error) {
	full, err := inclineCarried.instruction(s, 0, need)
	if err != nil {
		return roomPlan{}, err
	}
	trial := *s
	err = trial.Apply(full)
	if err == nil {
		if rest := delta + need; math.Abs(rest) > 0 {
			full = withShift(full, 0, rest)
		}
		return roomPlan{in: full}, nil
	}
	merr, ok := structure.IsMotionError(err)
	if !ok {
		return roomPlan{}, err
	}
	if !merr.InclinationLimited {
		return roomPlan{in: full}, nil
	}
	h := merr.Feasible()
	if math.Abs(h) < s.Gap() {
		return roomPlan{}, err
	}

	in := structure.Instruction{Incline: &structure.InclineStep{Height: h, FixFront: true, ElevateRear: true}}
	rest := delta + h*inclineCarried.rate(s, 0)
	if rest == 0 {
		return roomPlan{in: in}, nil
	}
	shifted := withShift(in, 0, rest)
	trial = *s
	if trial.Apply(shifted) == nil {
		return roomPlan{in: shifted}, nil
	}
	return roomPlan{in: in, short: rest, limit: err}, nil
}

// PushActuator moves actuator i by delta (negative lifts its wheel). When the
// actuator runs out of stroke the body makes room: first with the actuator's
// primary body motion, then with its secondary fallback. On success s holds
// the new position and the realised instruction is returned.
//
// On failure the error is a *PlanError. s is unchanged unless the secondary
// fallback reached the inclination limit part way: then s holds the position
// at the limit, the realised instruction is returned alongside the error and
// PlanError.Short is the part of delta left undone.
func (p *Planner) PushActuator(s *structure.Structure, i int, delta float64) (structure.Instruction, error) {
	if i < 0 || i >= structure.NumActuators {
		return structure.Instruction{}, fmt.Errorf("%w: actuator %d", structure.ErrInvalidMotion, i)
	}

	perr := &PlanError{Actuator: i, Delta: delta, Stage: StageDirect}
	direct := withShift(structure.Instruction{}, i, delta)
	trial := *s
	err := trial.Apply(direct)
	if err == nil {
		*s = trial
		return direct, nil
	}
	merr, ok := structure.IsMotionError(err)
	if !ok {
		return structure.Instruction{}, err
	}
	perr.record(err)
	if merr.Kind != structure.Bound {
		perr.Stage = StageFatal
		return structure.Instruction{}, perr
	}
	need := merr.Correction

	for _, stage := range []Stage{StagePrimary, StageSecondary} {
		perr.Stage = stage
		plan, err := p.makeRoom(s, i, delta, need, stage)
		if err != nil {
			perr.record(err)
			continue
		}
		trial := *s
		if err := trial.Apply(plan.in); err != nil {
			if _, ok := structure.IsMotionError(err); !ok {
				return structure.Instruction{}, err
			}
			p.debugf("actuator %d %s stage rejected: %v", i, stage, err)
			perr.record(err)
			continue
		}
		*s = trial
		if plan.short != 0 {
			p.debugf("actuator %d stopped at the inclination limit, %.4g short: %s", i, plan.short, plan.in)
			perr.record(plan.limit)
			perr.Stage = StageFatal
			perr.Short = plan.short
			return plan.in, perr
		}
		p.debugf("actuator %d made room at %s stage: %s", i, stage, plan.in)
		return plan.in, nil
	}
	perr.Stage = StageFatal
	return structure.Instruction{}, perr
}
