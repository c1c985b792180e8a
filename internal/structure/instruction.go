package structure

import (
	"fmt"
	"math"
	"strings"
)

// InclineStep is the incline field of an instruction.
type InclineStep struct {
	Height      float64 `json:"height"`
	FixFront    bool    `json:"fix_front,omitempty"`
	ElevateRear bool    `json:"elevate_rear,omitempty"`
}

// ShiftStep is the actuator field of an instruction.
type ShiftStep struct {
	Actuator int     `json:"actuator"`
	Height   float64 `json:"height"`
}

// Instruction is a composite motion: at most one of each primitive. Absent
// fields are nil. Apply replays the fields in the canonical order incline,
// elevate, shift, advance.
type Instruction struct {
	Incline *InclineStep `json:"incline,omitempty"`
	Elevate *float64     `json:"elevate,omitempty"`
	Shift   *ShiftStep   `json:"shift,omitempty"`
	Advance *float64     `json:"advance,omitempty"`
}

// Float returns a pointer to v, for building instructions.
func Float(v float64) *float64 { return &v }

// IsZero reports whether no field is set.
func (in Instruction) IsZero() bool {
	return in.Incline == nil && in.Elevate == nil && in.Shift == nil && in.Advance == nil
}

// Magnitudes returns the absolute size of each present field in canonical
// order; absent fields are zero.
func (in Instruction) Magnitudes() (incline, elevate, shift, advance float64) {
	if in.Incline != nil {
		incline = math.Abs(in.Incline.Height)
	}
	if in.Elevate != nil {
		elevate = math.Abs(*in.Elevate)
	}
	if in.Shift != nil {
		shift = math.Abs(in.Shift.Height)
	}
	if in.Advance != nil {
		advance = math.Abs(*in.Advance)
	}
	return incline, elevate, shift, advance
}

// Significant reports whether any field moves by at least tol.
func (in Instruction) Significant(tol float64) bool {
	a, b, c, d := in.Magnitudes()
	return a >= tol || b >= tol || c >= tol || d >= tol
}

// Clone returns a copy that shares no pointers with in.
func (in Instruction) Clone() Instruction {
	var out Instruction
	if in.Incline != nil {
		v := *in.Incline
		out.Incline = &v
	}
	if in.Elevate != nil {
		out.Elevate = Float(*in.Elevate)
	}
	if in.Shift != nil {
		v := *in.Shift
		out.Shift = &v
	}
	if in.Advance != nil {
		out.Advance = Float(*in.Advance)
	}
	return out
}

func (in Instruction) String() string {
	var parts []string
	if in.Incline != nil {
		pivot := "rear"
		if in.Incline.FixFront {
			pivot = "front"
		}
		p := fmt.Sprintf("incline %.3f about %s", in.Incline.Height, pivot)
		if in.Incline.ElevateRear {
			p += " carrying rear"
		}
		parts = append(parts, p)
	}
	if in.Elevate != nil {
		parts = append(parts, fmt.Sprintf("elevate %.3f", *in.Elevate))
	}
	if in.Shift != nil {
		parts = append(parts, fmt.Sprintf("shift %d by %.3f", in.Shift.Actuator, in.Shift.Height))
	}
	if in.Advance != nil {
		parts = append(parts, fmt.Sprintf("advance %.3f", *in.Advance))
	}
	if len(parts) == 0 {
		return "noop"
	}
	return strings.Join(parts, ", ")
}

// Field is one primitive of an instruction bound to its delta.
type Field struct {
	Motion Motion
	Delta  float64
}

// Fields resolves in against s into motions in canonical order. The incline
// motion depends on the structure's geometry, not on its position.
func (s *Structure) Fields(in Instruction) ([]Field, error) {
	var out []Field
	if in.Incline != nil {
		out = append(out, Field{s.InclineMotion(in.Incline.FixFront, in.Incline.ElevateRear), in.Incline.Height})
	}
	if in.Elevate != nil {
		out = append(out, Field{ElevateMotion(), *in.Elevate})
	}
	if in.Shift != nil {
		if in.Shift.Actuator < 0 || in.Shift.Actuator >= NumActuators {
			return nil, fmt.Errorf("%w: actuator %d", ErrInvalidMotion, in.Shift.Actuator)
		}
		out = append(out, Field{ShiftMotion(in.Shift.Actuator), in.Shift.Height})
	}
	if in.Advance != nil {
		out = append(out, Field{AdvanceMotion(), *in.Advance})
	}
	return out, nil
}

// Apply executes every field of in, each checked, as one transaction: on
// error the structure is unchanged and the error names the failing field.
func (s *Structure) Apply(in Instruction) error {
	fields, err := s.Fields(in)
	if err != nil {
		return err
	}
	trial := *s
	for _, f := range fields {
		if err := trial.Move(f.Motion, f.Delta, true); err != nil {
			return fmt.Errorf("apply %s: %w", f.Motion.Op, err)
		}
	}
	*s = trial
	return nil
}
