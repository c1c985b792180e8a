// Package structure models the four-wheel, four-actuator climbing structure
// and its motion primitives.
//
// Actuators hang vertically from a rigid body. Actuator 0 is at the rear,
// actuator 3 at the front; the rear pair is {0, 1} and the front pair is
// {2, 3}. The body state is the world x of actuator 0 (Shift), the world y
// of the top of actuator 0 (Elevation) and the height of the top of
// actuator 3 above the top of actuator 0 (Inclination). Horizontal actuator
// positions do not depend on inclination.
//
// Every primitive follows the same transaction: the motion is applied to a
// copy, the copy is validated, and only a valid copy replaces the receiver.
// A rejected primitive returns a *MotionError and leaves the structure
// untouched. Structure is a value type; assigning it is a deep copy.
package structure

import (
	"errors"
	"fmt"
	"math"

	"github.com/golang/geo/r2"
	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/stairclimb/internal/stair"
	"github.com/banshee-data/stairclimb/internal/wheel"
)

// NumActuators is fixed by the mechanism.
const NumActuators = 4

// Values closer than this are treated as equal in bound checks.
const epsilon = 1e-9

// Dimensions are the mechanical constants of a structure.
type Dimensions struct {
	A     float64               `json:"a"` // actuator 0 to 1
	B     float64               `json:"b"` // actuator 1 to 2
	C     float64               `json:"c"` // actuator 2 to 3
	D     float64               `json:"d"` // actuator stroke
	G     float64               `json:"g"` // initial x of the front wheel
	N     float64               `json:"n"` // inclination limit, 0 means the body span
	Radii [NumActuators]float64 `json:"radii"`
}

// Span returns the distance between the outer actuators.
func (d Dimensions) Span() float64 { return d.A + d.B + d.C }

// Offsets returns the body coordinate of each actuator.
func (d Dimensions) Offsets() [NumActuators]float64 {
	return [NumActuators]float64{0, d.A, d.A + d.B, d.A + d.B + d.C}
}

// InclinationLimit returns N, defaulting to the body span.
func (d Dimensions) InclinationLimit() float64 {
	if d.N > 0 {
		return d.N
	}
	return d.Span()
}

// Validate checks the dimensions are positive and finite.
func (d Dimensions) Validate() error {
	vals := []float64{d.A, d.B, d.C, d.D}
	vals = append(vals, d.Radii[:]...)
	for _, v := range vals {
		if !(v > 0) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: lengths must be positive and finite: %+v", ErrInvalidGeometry, d)
		}
	}
	if math.IsNaN(d.G) || math.IsInf(d.G, 0) || d.N < 0 || math.IsNaN(d.N) || math.IsInf(d.N, 0) {
		return fmt.Errorf("%w: g and n must be finite, n non-negative: %+v", ErrInvalidGeometry, d)
	}
	if floats.Max(d.Radii[:])-floats.Min(d.Radii[:]) > d.D {
		return fmt.Errorf("%w: radius spread exceeds stroke %v", ErrInvalidGeometry, d.D)
	}
	return nil
}

// Structure is the full kinematic state.
type Structure struct {
	Shift       float64
	Elevation   float64
	Inclination float64
	Actuators   [NumActuators]Actuator
	Pairs       [2]Pair

	dims  Dimensions
	stair *stair.Stair
	gap   float64
}

// New places a structure on the floor before the stair with its front wheel
// centred at x = dims.G, the body level and every wheel resting on the floor.
func New(dims Dimensions, s *stair.Stair, gap float64) (*Structure, error) {
	if err := dims.Validate(); err != nil {
		return nil, err
	}
	if s == nil {
		return nil, fmt.Errorf("%w: nil stair", ErrInvalidGeometry)
	}
	if !(gap > 0) {
		return nil, fmt.Errorf("%w: gap must be positive, got %v", ErrInvalidGeometry, gap)
	}

	elevation := floats.Max(dims.Radii[:])
	st := &Structure{
		Shift:     dims.G - dims.Span(),
		Elevation: elevation,
		Pairs: [2]Pair{
			{Rear: 0, Front: 1, IsRear: true},
			{Rear: 2, Front: 3},
		},
		dims:  dims,
		stair: s,
		gap:   gap,
	}
	offsets := dims.Offsets()
	for i := range st.Actuators {
		st.Actuators[i] = Actuator{
			Lower:     0,
			Upper:     dims.D,
			Extension: elevation - dims.Radii[i],
			Offset:    offsets[i],
			Wheel:     wheel.Wheel{Radius: dims.Radii[i], Actuator: i},
		}
	}

	rep, err := st.CheckPosition()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidGeometry, err)
	}
	if err := rep.Err(); err != nil {
		return nil, fmt.Errorf("%w: initial position: %v", ErrInvalidGeometry, err)
	}
	return st, nil
}

// Dimensions returns the mechanical constants.
func (s *Structure) Dimensions() Dimensions { return s.dims }

// Stair returns the profile the structure moves over.
func (s *Structure) Stair() *stair.Stair { return s.stair }

// Gap returns the contact tolerance.
func (s *Structure) Gap() float64 { return s.gap }

// Span returns the distance between the outer actuators.
func (s *Structure) Span() float64 { return s.dims.Span() }

// Top returns the world position of the top of actuator i.
func (s *Structure) Top(i int) r2.Point {
	a := s.Actuators[i]
	return r2.Point{
		X: s.Shift + a.Offset,
		Y: s.Elevation + s.Inclination*a.Offset/s.Span(),
	}
}

// WheelPosition returns the world position of wheel i's centre.
func (s *Structure) WheelPosition(i int) r2.Point {
	top := s.Top(i)
	return r2.Point{X: top.X, Y: top.Y - s.Actuators[i].Extension}
}

// Angle returns the body angle in radians.
func (s *Structure) Angle() float64 {
	return math.Asin(math.Max(-1, math.Min(1, s.Inclination/s.Span())))
}

func (s *Structure) classify(i int) (wheel.State, error) {
	return s.Actuators[i].Wheel.Classify(s.WheelPosition(i), s.stair, s.gap)
}

// Classify returns the contact state of wheel i.
func (s *Structure) Classify(i int) (wheel.State, error) {
	if i < 0 || i >= NumActuators {
		return wheel.State{}, fmt.Errorf("%w: actuator %d", ErrInvalidMotion, i)
	}
	return s.classify(i)
}

// Advance moves the structure forward by d (backward when negative).
func (s *Structure) Advance(d float64) error {
	return s.Move(AdvanceMotion(), d, true)
}

// Elevate raises the body by d while the wheels stay in place.
func (s *Structure) Elevate(d float64) error {
	return s.Move(ElevateMotion(), d, true)
}

// Incline changes the inclination by d. See InclineMotion.
func (s *Structure) Incline(d float64, fixFront, elevateRear bool) error {
	return s.Move(s.InclineMotion(fixFront, elevateRear), d, true)
}

// ShiftActuator extends actuator i by d. A negative d raises its wheel.
func (s *Structure) ShiftActuator(i int, d float64) error {
	if i < 0 || i >= NumActuators {
		return fmt.Errorf("%w: actuator %d", ErrInvalidMotion, i)
	}
	return s.Move(ShiftMotion(i), d, true)
}

// Move applies m scaled by d. With check unset the result is committed
// without validation, which replay uses to reproduce recorded positions.
func (s *Structure) Move(m Motion, d float64, check bool) error {
	if math.IsNaN(d) || math.IsInf(d, 0) {
		return fmt.Errorf("%w: %s by %v", ErrInvalidMotion, m.Op, d)
	}
	trial := *s
	trial.step(m, d)
	if check {
		rep, err := trial.CheckPosition()
		if err != nil {
			return fmt.Errorf("%s %.4g: %w", m.Op, d, err)
		}
		if !rep.Valid() {
			return trial.correction(rep, m, d)
		}
	}
	*s = trial
	return nil
}

// Report is the outcome of a full position check.
type Report struct {
	Wheels [NumActuators]wheel.State
	Stable [2]bool
	// Bounds holds each actuator's overflow (see Actuator.Overflow).
	Bounds [NumActuators]float64
	// Inclination is the signed amount by which the body exceeds its limit.
	Inclination float64
}

// Valid reports whether the position satisfies every invariant.
func (r Report) Valid() bool { return r.Err() == nil }

// Err summarises the first violated invariant, or nil.
func (r Report) Err() error {
	for i, w := range r.Wheels {
		if w.Kind == wheel.Inside {
			return fmt.Errorf("%s: wheel %d inside the stair by %.4g", Collision, i, -w.Gap)
		}
	}
	for j, ok := range r.Stable {
		if !ok {
			return fmt.Errorf("%s: pair %d has no supported wheel", Instability, j)
		}
	}
	for i, o := range r.Bounds {
		if o != 0 {
			return fmt.Errorf("%s: actuator %d out of range by %.4g", Bound, i, o)
		}
	}
	if r.Inclination != 0 {
		return fmt.Errorf("%s: body beyond limit by %.4g", Inclination, r.Inclination)
	}
	return nil
}

// CheckPosition classifies every wheel and evaluates pair stability,
// actuator bounds and the inclination limit. The error is reserved for
// queries outside the stair profile.
func (s *Structure) CheckPosition() (Report, error) {
	var rep Report
	for i := range s.Actuators {
		st, err := s.classify(i)
		if err != nil {
			return Report{}, err
		}
		rep.Wheels[i] = st
		rep.Bounds[i] = s.Actuators[i].Overflow()
	}
	for j, p := range s.Pairs {
		rep.Stable[j] = p.stable(rep.Wheels)
	}
	if limit := s.dims.InclinationLimit(); math.Abs(s.Inclination) > limit+epsilon {
		rep.Inclination = s.Inclination - math.Copysign(limit, s.Inclination)
	}
	return rep, nil
}

type candidate struct {
	kind  Violation
	wheel int
	value float64
}

// correction turns a failed check of the trial position s, reached by motion
// m of delta d, into a *MotionError.
func (s *Structure) correction(rep Report, m Motion, d float64) error {
	dir := math.Copysign(1, d)
	var cands []candidate

	for i, w := range rep.Wheels {
		if w.Kind != wheel.Inside {
			continue
		}
		dx, dy := m.WheelRate(s, i)
		switch {
		case dy != 0:
			cands = append(cands, candidate{Collision, i, w.Correction.Vertical / dy})
		case dx != 0:
			cands = append(cands, candidate{Collision, i, w.Correction.Horizontal(dir*dx) / dx})
		default:
			return fmt.Errorf("%w: %s left wheel %d inside the stair without moving it", ErrInternal, m.Op, i)
		}
	}

	for j, ok := range rep.Stable {
		if ok {
			continue
		}
		c, err := s.pairCorrection(s.Pairs[j], rep, m, d)
		if err != nil {
			return err
		}
		cands = append(cands, c)
	}

	for i, o := range rep.Bounds {
		if o == 0 {
			continue
		}
		rate := m.ExtensionRate(i)
		if rate == 0 {
			return fmt.Errorf("%w: %s left actuator %d out of range without moving it", ErrInternal, m.Op, i)
		}
		cands = append(cands, candidate{Bound, i, -o / rate})
	}

	merr := &MotionError{Op: m.Op, Wheel: -1, Delta: d}
	if rep.Inclination != 0 {
		if m.inclination == 0 {
			return fmt.Errorf("%w: %s exceeded the inclination limit without inclining", ErrInternal, m.Op)
		}
		cands = append(cands, candidate{Inclination, -1, -rep.Inclination / m.inclination})
		merr.InclinationLimited = true
		merr.MaxInclination = math.Copysign(s.dims.InclinationLimit(), s.Inclination)
	}

	// Corrections normally point back against the motion; the largest one
	// satisfies every constraint at once. A mix of signs means the previous
	// position was already invalid.
	var against, along bool
	best := -1
	for k, c := range cands {
		switch {
		case c.value*dir < -epsilon:
			against = true
		case c.value*dir > epsilon:
			along = true
		}
		if best < 0 || math.Abs(c.value) > math.Abs(cands[best].value) {
			best = k
		}
	}
	if against && along {
		return fmt.Errorf("%w: %s %.4g produced corrections of both signs: %+v", ErrInternal, m.Op, d, cands)
	}
	if best < 0 {
		return fmt.Errorf("%w: %s %.4g failed without a violation", ErrInternal, m.Op, d)
	}
	merr.Kind = cands[best].kind
	merr.Wheel = cands[best].wheel
	merr.Correction = cands[best].value
	return merr
}

// pairCorrection returns the smallest correction that restores support to
// either wheel of an unstable pair. When neither wheel can regain support by
// reversing the motion, the whole motion is undone.
func (s *Structure) pairCorrection(p Pair, rep Report, m Motion, d float64) (candidate, error) {
	dir := math.Copysign(1, d)
	best := candidate{kind: Instability, wheel: -1, value: -d}
	for _, i := range p.Members() {
		w := rep.Wheels[i]
		dx, dy := m.WheelRate(s, i)
		var c float64
		switch {
		case dy != 0 && w.Kind == wheel.Air:
			c = -w.Gap / dy
		case dy == 0 && dx != 0:
			dist, err := s.Actuators[i].Wheel.SupportDistance(s.WheelPosition(i), s.stair, s.gap, -dir*dx)
			if err != nil {
				return candidate{}, err
			}
			c = dist / dx
		default:
			continue
		}
		if math.IsInf(c, 0) || math.IsNaN(c) {
			continue
		}
		if best.wheel < 0 || math.Abs(c) < math.Abs(best.value) {
			best = candidate{kind: Instability, wheel: i, value: c}
		}
	}
	return best, nil
}

// IsMotionError reports whether err carries a *MotionError and returns it.
func IsMotionError(err error) (*MotionError, bool) {
	var merr *MotionError
	if errors.As(err, &merr) {
		return merr, true
	}
	return nil, false
}
