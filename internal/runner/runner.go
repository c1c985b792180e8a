// Package runner plans a configured traversal, times it and turns it into a
// storable run record.
package runner

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/stairclimb/internal/config"
	"github.com/banshee-data/stairclimb/internal/control"
	"github.com/banshee-data/stairclimb/internal/db"
	"github.com/banshee-data/stairclimb/internal/monitoring"
	"github.com/banshee-data/stairclimb/internal/sim"
	"github.com/banshee-data/stairclimb/internal/structure"
)

var logf = monitoring.Prefixed("runner")

// Outcome is a planned traversal, complete or not.
type Outcome struct {
	Initial structure.Structure
	Plan    control.Result
	Counter *sim.Counter
	Err     error // planning failure; Plan holds the steps before it
}

// Instructions returns the planned instructions.
func (o *Outcome) Instructions() []structure.Instruction {
	return o.Plan.Instructions()
}

// Plan builds the configured structure and plans its traversal. Configuration
// problems are returned as errors; planning failures are reported in the
// outcome so partial plans can still be stored and drawn.
func Plan(cfg *config.Config) (*Outcome, error) {
	st, err := cfg.NewStructure()
	if err != nil {
		return nil, fmt.Errorf("build structure: %w", err)
	}
	counter, err := sim.NewCounter(cfg.GetSpeeds())
	if err != nil {
		return nil, err
	}

	out := &Outcome{Initial: *st, Counter: counter}
	planner := control.NewPlanner(cfg.GetPlannerConfig())
	out.Plan, out.Err = planner.Traverse(*st, cfg.GetMaxIterations())
	if out.Plan.Steps == nil {
		out.Plan.Final = *st
	}
	counter.AddAll(out.Instructions())

	if out.Err != nil {
		logf("planning stopped after %d instructions: %v", len(out.Plan.Steps), out.Err)
	}
	return out, nil
}

// Verify replays the plan in the configured number of sub-steps and checks it
// ends where the planner said it would.
func (o *Outcome) Verify(steps int, obs sim.Observer) error {
	final, err := sim.Run(o.Initial, o.Instructions(), steps, obs)
	if err != nil {
		return err
	}
	want := o.Plan.Final
	got := []float64{final.Shift, final.Elevation, final.Inclination}
	exp := []float64{want.Shift, want.Elevation, want.Inclination}
	for i := range final.Actuators {
		got = append(got, final.Actuators[i].Extension)
		exp = append(exp, want.Actuators[i].Extension)
	}
	if !floats.EqualApprox(got, exp, 1e-6) {
		return fmt.Errorf("%w: replay ends at %v, plan at %v", sim.ErrInconsistent, got, exp)
	}
	return nil
}

// Record converts the outcome into a run record.
func (o *Outcome) Record(label string) *db.Run {
	r := &db.Run{
		Label:      label,
		Dimensions: o.Initial.Dimensions(),
		Stair:      db.SpecOf(o.Initial.Stair()),
		Status:     db.RunComplete,
		Elapsed:    o.Counter.Elapsed(),
	}
	if o.Err != nil {
		r.Status = db.RunFailed
		r.Error = o.Err.Error()
	}
	per := o.Counter.Durations(false)
	for i, s := range o.Plan.Steps {
		r.Steps = append(r.Steps, db.RunStep{
			Instruction: s.Instruction,
			LeadWheel:   s.Transition.Wheel,
			Duration:    per[i],
		})
	}
	return r
}

// Failure classifies a planning error for reports.
func Failure(err error) string {
	var perr *control.PlanError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &perr) && perr.InclinationLimited:
		return "inclination"
	case errors.Is(err, control.ErrInfeasible):
		return "infeasible"
	case errors.Is(err, control.ErrNoTermination):
		return "no-termination"
	case errors.Is(err, control.ErrNoProgress):
		return "no-progress"
	case errors.Is(err, structure.ErrInternal), errors.Is(err, sim.ErrInconsistent):
		return "internal"
	}
	return "error"
}
