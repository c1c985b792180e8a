package sim

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/stairclimb/internal/structure"
)

// Speeds are the motion rates in length units per second. Incline is the
// rate of the front-to-rear height difference.
type Speeds struct {
	Advance  float64 `json:"advance"`
	Elevate  float64 `json:"elevate"`
	Incline  float64 `json:"incline"`
	Actuator float64 `json:"actuator"`
}

// Validate rejects non-positive speeds.
func (sp Speeds) Validate() error {
	named := []struct {
		name string
		v    float64
	}{{"advance", sp.Advance}, {"elevate", sp.Elevate}, {"incline", sp.Incline}, {"actuator", sp.Actuator}}
	for _, n := range named {
		if !(n.v > 0) {
			return fmt.Errorf("speed %s must be positive, got %v", n.name, n.v)
		}
	}
	return nil
}

// Duration returns the seconds it takes at these speeds. Fields run one
// after another.
func (sp Speeds) Duration(in structure.Instruction) float64 {
	incline, elevate, shift, advance := in.Magnitudes()
	var t float64
	if incline > 0 {
		t += incline / sp.Incline
	}
	if elevate > 0 {
		t += elevate / sp.Elevate
	}
	if shift > 0 {
		t += shift / sp.Actuator
	}
	if advance > 0 {
		t += advance / sp.Advance
	}
	return t
}

// Counter accumulates the time and instruction count of a plan without
// replaying it.
type Counter struct {
	speeds    Speeds
	durations []float64
}

// NewCounter returns a counter for the given speeds.
func NewCounter(sp Speeds) (*Counter, error) {
	if err := sp.Validate(); err != nil {
		return nil, err
	}
	return &Counter{speeds: sp}, nil
}

// Add counts one instruction and returns its duration.
func (c *Counter) Add(in structure.Instruction) float64 {
	d := c.speeds.Duration(in)
	c.durations = append(c.durations, d)
	return d
}

// AddAll counts every instruction of a plan.
func (c *Counter) AddAll(plan []structure.Instruction) {
	for _, in := range plan {
		c.Add(in)
	}
}

// Iterations is the number of instructions counted.
func (c *Counter) Iterations() int { return len(c.durations) }

// Elapsed is the total time in seconds.
func (c *Counter) Elapsed() float64 { return floats.Sum(c.durations) }

// Longest is the duration of the slowest instruction, zero when empty.
func (c *Counter) Longest() float64 {
	if len(c.durations) == 0 {
		return 0
	}
	return floats.Max(c.durations)
}

// Durations returns the per-instruction times; cumulative when cumulative is
// set.
func (c *Counter) Durations(cumulative bool) []float64 {
	out := make([]float64, len(c.durations))
	if cumulative {
		floats.CumSum(out, c.durations)
		return out
	}
	copy(out, c.durations)
	return out
}
