// Package control plans instruction sequences that carry a structure over a
// staircase.
//
// The planner is greedy: every cycle looks at the wheel closest to its next
// level change, resolves that change if the wheel has arrived, and advances
// to the next one. Actuators that run out of stroke get room from body
// motions through a bounded fallback chain (see PushActuator).
package control

import (
	"fmt"
	"math"

	"github.com/banshee-data/stairclimb/internal/monitoring"
	"github.com/banshee-data/stairclimb/internal/structure"
)

// Config holds planner options.
type Config struct {
	// Anticipate lets the pair that is not changing level pre-position the
	// body for its own next transition while the structure advances.
	Anticipate bool
}

// DefaultConfig returns the options used by the command-line tools.
func DefaultConfig() Config { return Config{Anticipate: true} }

// Planner produces one instruction per call to Next.
type Planner struct {
	cfg    Config
	logf   func(format string, v ...interface{})
	debugf func(format string, v ...interface{})
}

// NewPlanner returns a planner logging through the monitoring package.
func NewPlanner(cfg Config) *Planner {
	return &Planner{
		cfg:  cfg,
		logf: monitoring.Prefixed("planner"),
		debugf: func(format string, v ...interface{}) {
			monitoring.Debugf("[planner] "+format, v...)
		},
	}
}

// Step is the outcome of one planning cycle.
type Step struct {
	Instruction structure.Instruction
	Structure   structure.Structure // position after the instruction
	Transition  structure.Transition
	Done        bool
}

// CheckEnvelope rejects stairs whose risers exceed the actuator stroke. Such
// steps cannot be climbed without carrying a wheel through its full travel.
func CheckEnvelope(s *structure.Structure) error {
	d := s.Dimensions().D
	for _, e := range s.Stair().Edges() {
		if math.Abs(e.Rise()) > d {
			return fmt.Errorf("%w: riser at x=%.4g of %.4g exceeds stroke %.4g", ErrInfeasible, e.X, e.Rise(), d)
		}
	}
	return nil
}

// pairOf returns the index of the pair actuator i belongs to.
func pairOf(s *structure.Structure, i int) int {
	for j, p := range s.Pairs {
		if p.Has(i) {
			return j
		}
	}
	return -1
}

// Next plans one cycle from s. s is not modified.
func (p *Planner) Next(s structure.Structure) (Step, error) {
	ts, err := s.Transitions()
	if err != nil {
		return Step{}, err
	}
	lead := structure.Leading(ts[:])
	if lead.Done() {
		return p.last(s)
	}

	gap := s.Gap()
	trial := s
	var in structure.Instruction
	advance := lead.Horizontal
	if lead.Horizontal <= gap {
		vin, err := p.PushActuator(&trial, lead.Wheel, -lead.Vertical)
		if err != nil {
			return Step{}, fmt.Errorf("wheel %d transition by %.4g: %w", lead.Wheel, lead.Vertical, err)
		}
		in = vin
		if ts, err = trial.Transitions(); err != nil {
			return Step{}, err
		}
		advance = 0
		if next := structure.Leading(ts[:]); !next.Done() {
			advance = next.Horizontal
		}
	}

	base := in.Clone()
	if advance > 0 {
		base.Advance = structure.Float(advance)
	}

	candidates := []structure.Instruction{base}
	if p.cfg.Anticipate && advance > 0 {
		if ant, ok := p.anticipate(&trial, ts, lead.Wheel, in, advance); ok {
			candidates = append([]structure.Instruction{ant}, candidates...)
		}
	}

	var lastErr error
	for _, cand := range candidates {
		if !cand.Significant(gap) {
			return Step{}, fmt.Errorf("%w: %s", ErrNoProgress, cand)
		}
		next := s
		err := next.Apply(cand)
		if err == nil {
			p.debugf("wheel %d: %s", lead.Wheel, cand)
			return Step{Instruction: cand, Structure: next, Transition: lead}, nil
		}
		lastErr = err

		// The advance stops exactly at the next contact; tolerate rounding.
		if merr, ok := structure.IsMotionError(err); ok && merr.Op == structure.OpAdvance && cand.Advance != nil {
			fixed := cand.Clone()
			fixed.Advance = structure.Float(merr.Feasible())
			next = s
			if err := next.Apply(fixed); err == nil && fixed.Significant(gap) {
				p.logf("wheel %d: advance trimmed from %.4g to %.4g", lead.Wheel, advance, *fixed.Advance)
				return Step{Instruction: fixed, Structure: next, Transition: lead}, nil
			}
		}
	}
	return Step{}, fmt.Errorf("wheel %d: %w", lead.Wheel, lastErr)
}

// anticipate merges a share of the other pair's make-room motion into in.
// trial is the position after in's vertical motion, ts its transitions.
func (p *Planner) anticipate(trial *structure.Structure, ts [structure.NumActuators]structure.Transition, leadWheel int, in structure.Instruction, advance float64) (structure.Instruction, bool) {
	pj := pairOf(trial, leadWheel)
	if pj < 0 {
		return structure.Instruction{}, false
	}
	other := trial.Pairs[1-pj].Members()
	o := structure.Leading([]structure.Transition{ts[other[0]], ts[other[1]]})
	if o.Done() || o.Horizontal <= trial.Gap() {
		return structure.Instruction{}, false
	}

	need := room(trial.Actuators[o.Wheel], -o.Vertical)
	if need == 0 {
		return structure.Instruction{}, false
	}
	share := math.Min(1, advance/o.Horizontal) * need
	extra, err := primaryMotion(o.Wheel).instruction(trial, o.Wheel, share)
	if err != nil {
		return structure.Instruction{}, false
	}

	out := in.Clone()
	switch {
	case extra.Elevate != nil && out.Elevate != nil:
		out.Elevate = structure.Float(*out.Elevate + *extra.Elevate)
	case extra.Elevate != nil:
		out.Elevate = extra.Elevate
	case out.Incline == nil:
		out.Incline = extra.Incline
	case out.Incline.FixFront == extra.Incline.FixFront && out.Incline.ElevateRear == extra.Incline.ElevateRear:
		out.Incline.Height += extra.Incline.Height
	default:
		return structure.Instruction{}, false
	}
	out.Advance = structure.Float(advance)
	return out, true
}

// last rolls every wheel onto the exit landing and levels the body.
func (p *Planner) last(s structure.Structure) (Step, error) {
	gap := s.Gap()
	var roll float64
	for i := range s.Actuators {
		st, err := s.Classify(i)
		if err != nil {
			return Step{}, err
		}
		if st.Kind.Supported() {
			continue
		}
		d, err := s.Actuators[i].Wheel.SupportDistance(s.WheelPosition(i), s.Stair(), gap, 1)
		if err != nil {
			return Step{}, err
		}
		if math.IsInf(d, 0) {
			return Step{}, fmt.Errorf("%w: wheel %d cannot land", ErrInfeasible, i)
		}
		roll = math.Max(roll, d)
	}

	var base structure.Instruction
	if roll > 0 {
		base.Advance = structure.Float(roll)
	}

	var lastErr error
	if math.Abs(s.Inclination) > gap {
		for _, fixFront := range []bool{false, true} {
			cand := base.Clone()
			cand.Incline = &structure.InclineStep{Height: -s.Inclination, FixFront: fixFront}
			next := s
			if err := next.Apply(cand); err != nil {
				lastErr = err
				continue
			}
			return Step{Instruction: cand, Structure: next, Transition: structure.Transition{Wheel: -1, Horizontal: math.Inf(1)}, Done: true}, nil
		}
		p.logf("body left at inclination %.4g: %v", s.Inclination, lastErr)
	}

	next := s
	if err := next.Apply(base); err != nil {
		return Step{}, fmt.Errorf("final roll: %w", err)
	}
	return Step{Instruction: base, Structure: next, Transition: structure.Transition{Wheel: -1, Horizontal: math.Inf(1)}, Done: true}, nil
}

// Result is a completed traversal.
type Result struct {
	Steps []Step
	Final structure.Structure
}

// Instructions returns the planned instructions in order.
func (r Result) Instructions() []structure.Instruction {
	out := make([]structure.Instruction, len(r.Steps))
	for i, st := range r.Steps {
		out[i] = st.Instruction
	}
	return out
}

// Traverse runs Next until the last instruction, at most limit cycles.
func (p *Planner) Traverse(s structure.Structure, limit int) (Result, error) {
	if err := CheckEnvelope(&s); err != nil {
		return Result{}, err
	}
	res := Result{Final: s}
	for n := 0; n < limit; n++ {
		step, err := p.Next(res.Final)
		if err != nil {
			return res, fmt.Errorf("cycle %d: %w", n, err)
		}
		res.Steps = append(res.Steps, step)
		res.Final = step.Structure
		if step.Done {
			p.logf("traversal complete in %d instructions", len(res.Steps))
			return res, nil
		}
	}
	return res, fmt.Errorf("%w: %d cycles", ErrNoTermination, limit)
}
