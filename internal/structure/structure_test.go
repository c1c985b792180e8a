package structure

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/stairclimb/internal/stair"
	"github.com/banshee-data/stairclimb/internal/wheel"
)

const testGap = 0.05

var testDims = Dimensions{
	A: 40, B: 80, C: 30, D: 50, G: 50,
	Radii: [NumActuators]float64{15, 15, 15, 15},
}

func ascending(t *testing.T) *stair.Stair {
	t.Helper()
	s, err := stair.New([]stair.Step{{Count: 2, Width: 50, Height: 25}}, 100, 0)
	require.NoError(t, err)
	return s
}

func newStructure(t *testing.T, dims Dimensions, s *stair.Stair) *Structure {
	t.Helper()
	st, err := New(dims, s, testGap)
	require.NoError(t, err)
	return st
}

// ignoreGeometry compares the kinematic state only.
var ignoreGeometry = cmpopts.IgnoreUnexported(Structure{})

func requireUnchanged(t *testing.T, want, got *Structure) {
	t.Helper()
	if diff := cmp.Diff(*want, *got, ignoreGeometry); diff != "" {
		t.Fatalf("structure changed after rejected motion (-want +got):\n%s", diff)
	}
}

func TestNew_InitialPosition(t *testing.T) {
	t.Parallel()
	st := newStructure(t, testDims, ascending(t))

	assert.Equal(t, -100.0, st.Shift)
	assert.Equal(t, 15.0, st.Elevation)
	assert.Equal(t, 0.0, st.Inclination)
	assert.Equal(t, 150.0, st.Span())

	wantX := []float64{-100, -60, 20, 50}
	for i := range st.Actuators {
		p := st.WheelPosition(i)
		assert.Equal(t, wantX[i], p.X, "wheel %d", i)
		assert.Equal(t, 15.0, p.Y, "wheel %d", i)
		assert.Equal(t, 0.0, st.Actuators[i].Extension)
		ws, err := st.Classify(i)
		require.NoError(t, err)
		assert.Equal(t, wheel.Ground, ws.Kind)
	}
	assert.Equal(t, Pair{Rear: 0, Front: 1, IsRear: true}, st.Pairs[0])
	assert.Equal(t, Pair{Rear: 2, Front: 3}, st.Pairs[1])
}

func TestNew_InvalidGeometry(t *testing.T) {
	t.Parallel()
	s := ascending(t)

	cases := map[string]func(d *Dimensions){
		"negative radius":     func(d *Dimensions) { d.Radii[2] = -1 },
		"zero stroke":         func(d *Dimensions) { d.D = 0 },
		"front wheel in rise": func(d *Dimensions) { d.G = 90 },
		"radius spread":       func(d *Dimensions) { d.Radii[0] = 80 },
		"negative limit":      func(d *Dimensions) { d.N = -1 },
	}
	for name, mutate := range cases {
		name, mutate := name, mutate
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			d := testDims
			mutate(&d)
			_, err := New(d, s, testGap)
			assert.ErrorIs(t, err, ErrInvalidGeometry)
		})
	}

	_, err := New(testDims, nil, testGap)
	assert.ErrorIs(t, err, ErrInvalidGeometry)
	_, err = New(testDims, s, 0)
	assert.ErrorIs(t, err, ErrInvalidGeometry)
}

func TestScenario_PairInstability(t *testing.T) {
	t.Parallel()
	st := newStructure(t, testDims, ascending(t))

	require.NoError(t, st.Elevate(10))
	for i := range st.Actuators {
		assert.InDelta(t, 10.0, st.Actuators[i].Extension, 1e-12)
	}
	require.NoError(t, st.ShiftActuator(3, -5))

	before := *st
	err := st.ShiftActuator(2, -5)
	require.Error(t, err)

	merr, ok := IsMotionError(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, Instability, merr.Kind)
	assert.Equal(t, OpShift, merr.Op)
	assert.Equal(t, 2, merr.Wheel)
	assert.InDelta(t, 5.0, merr.Correction, 1e-9)
	assert.InDelta(t, 0.0, merr.Feasible(), 1e-9)
	assert.False(t, merr.InclinationLimited)
	requireUnchanged(t, &before, st)
}

func TestScenario_AdvanceIntoRiser(t *testing.T) {
	t.Parallel()
	st := newStructure(t, testDims, ascending(t))

	before := *st
	err := st.Advance(36)
	merr, ok := IsMotionError(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, Collision, merr.Kind)
	assert.Equal(t, 3, merr.Wheel)
	assert.InDelta(t, -1.0, merr.Correction, 1e-9)
	requireUnchanged(t, &before, st)

	require.NoError(t, st.Advance(merr.Feasible()))
	ws, err := st.Classify(3)
	require.NoError(t, err)
	assert.Equal(t, wheel.Corner, ws.Kind)
	assert.InDelta(t, 85.0, st.WheelPosition(3).X, 1e-9)
}

func TestShiftActuator_Bounds(t *testing.T) {
	t.Parallel()
	st := newStructure(t, testDims, ascending(t))

	err := st.ShiftActuator(0, -1)
	merr, ok := IsMotionError(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, Bound, merr.Kind)
	assert.Equal(t, 0, merr.Wheel)
	assert.InDelta(t, 1.0, merr.Correction, 1e-9)

	// Pushing into the floor beyond the stroke: the collision dominates.
	err = st.ShiftActuator(1, 60)
	merr, ok = IsMotionError(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, Collision, merr.Kind)
	assert.Equal(t, 1, merr.Wheel)
	assert.InDelta(t, -60.0, merr.Correction, 1e-9)

	assert.ErrorIs(t, st.ShiftActuator(4, 1), ErrInvalidMotion)
	assert.ErrorIs(t, st.Advance(math.NaN()), ErrInvalidMotion)
}

func TestIncline_Compensated(t *testing.T) {
	t.Parallel()
	st := newStructure(t, testDims, ascending(t))
	wheelsBefore := st.Geometry().Wheels

	require.NoError(t, st.Incline(15, false, false))
	assert.InDelta(t, 15.0, st.Inclination, 1e-12)
	assert.InDelta(t, 15.0, st.Elevation, 1e-12)
	want := []float64{0, 4, 12, 15}
	for i, w := range want {
		assert.InDelta(t, w, st.Actuators[i].Extension, 1e-9, "actuator %d", i)
	}

	g := st.Geometry()
	for i := range g.Wheels {
		assert.InDelta(t, wheelsBefore[i].X, g.Wheels[i].X, 1e-9)
		assert.InDelta(t, wheelsBefore[i].Y, g.Wheels[i].Y, 1e-9)
		assert.Equal(t, wheel.Ground, g.Kinds[i])
	}
	assert.InDelta(t, math.Asin(0.1), g.Angle, 1e-12)
	assert.InDelta(t, 30.0, g.Front().Y, 1e-9)
	assert.InDelta(t, 15.0, g.Rear().Y, 1e-9)
}

func TestIncline_FixFrontCarryRear(t *testing.T) {
	t.Parallel()
	st := newStructure(t, testDims, ascending(t))
	require.NoError(t, st.Elevate(20))

	// Tilt about the front, lifting the rear wheel with the body.
	require.NoError(t, st.Incline(-10, true, true))
	assert.InDelta(t, -10.0, st.Inclination, 1e-12)
	assert.InDelta(t, 45.0, st.Elevation, 1e-12)
	assert.InDelta(t, 20.0, st.Actuators[0].Extension, 1e-12)
	assert.InDelta(t, 25.0, st.WheelPosition(0).Y, 1e-9)
	assert.InDelta(t, 15.0, st.WheelPosition(1).Y, 1e-9)
	assert.InDelta(t, 15.0, st.WheelPosition(3).Y, 1e-9)
}

func TestIncline_LimitReported(t *testing.T) {
	t.Parallel()
	s, err := stair.New([]stair.Step{{Count: 5, Width: 250, Height: -80}}, 100, 0)
	require.NoError(t, err)
	dims := testDims
	dims.N = 60
	st := newStructure(t, dims, s)

	before := *st
	err = st.Incline(-70, true, false)
	merr, ok := IsMotionError(err)
	require.True(t, ok, "got %v", err)
	assert.True(t, merr.InclinationLimited)
	assert.InDelta(t, -60.0, merr.MaxInclination, 1e-9)
	// The rear actuator runs out of stroke before the body limit.
	assert.Equal(t, Bound, merr.Kind)
	assert.InDelta(t, 20.0, merr.Correction, 1e-9)
	requireUnchanged(t, &before, st)

	require.NoError(t, st.Incline(merr.Feasible(), true, false))
	assert.InDelta(t, -50.0, st.Inclination, 1e-9)
}

func TestApply_CanonicalOrder(t *testing.T) {
	t.Parallel()
	st := newStructure(t, testDims, ascending(t))

	in := Instruction{
		Advance: Float(20),
		Shift:   &ShiftStep{Actuator: 3, Height: -5},
		Elevate: Float(10),
	}
	require.NoError(t, st.Apply(in))
	assert.InDelta(t, -80.0, st.Shift, 1e-12)
	assert.InDelta(t, 25.0, st.Elevation, 1e-12)
	want := []float64{10, 10, 10, 5}
	for i, w := range want {
		assert.InDelta(t, w, st.Actuators[i].Extension, 1e-12)
	}

	before := *st
	err := st.Apply(Instruction{Advance: Float(16)})
	require.Error(t, err)
	merr, ok := IsMotionError(err)
	require.True(t, ok)
	assert.Equal(t, OpAdvance, merr.Op)
	assert.InDelta(t, -1.0, merr.Correction, 1e-9)
	requireUnchanged(t, &before, st)

	assert.NoError(t, st.Apply(Instruction{}))
	requireUnchanged(t, &before, st)
}

func TestInstruction(t *testing.T) {
	t.Parallel()
	in := Instruction{
		Incline: &InclineStep{Height: 2, FixFront: true, ElevateRear: true},
		Shift:   &ShiftStep{Actuator: 1, Height: -0.01},
	}
	assert.Equal(t, "incline 2.000 about front carrying rear, shift 1 by -0.010", in.String())
	assert.True(t, in.Significant(0.05))
	assert.False(t, Instruction{Shift: &ShiftStep{Height: 0.01}}.Significant(0.05))
	assert.True(t, Instruction{}.IsZero())
	assert.Equal(t, "noop", Instruction{}.String())

	c := in.Clone()
	c.Incline.Height = 5
	assert.Equal(t, 2.0, in.Incline.Height)

	a, b, s, d := Instruction{Elevate: Float(-3), Advance: Float(4)}.Magnitudes()
	assert.Equal(t, []float64{0, 3, 0, 4}, []float64{a, b, s, d})
}

func TestTransitions(t *testing.T) {
	t.Parallel()
	st := newStructure(t, testDims, ascending(t))

	ts, err := st.Transitions()
	require.NoError(t, err)
	wantH := []float64{185, 145, 65, 35}
	for i, h := range wantH {
		assert.InDelta(t, h, ts[i].Horizontal, 1e-9, "wheel %d", i)
		assert.InDelta(t, 25.0, ts[i].Vertical, 1e-9, "wheel %d", i)
	}

	lead, err := st.NextTransition()
	require.NoError(t, err)
	assert.Equal(t, 3, lead.Wheel)

	// Lifted onto the first step, the front wheel looks at the second riser.
	require.NoError(t, st.Elevate(25))
	require.NoError(t, st.Advance(35))
	require.NoError(t, st.ShiftActuator(3, -25))
	ts, err = st.Transitions()
	require.NoError(t, err)
	assert.InDelta(t, 50.0, ts[3].Horizontal, 1e-9)
	assert.InDelta(t, 25.0, ts[3].Vertical, 1e-9)
	assert.InDelta(t, 30.0, ts[2].Horizontal, 1e-9)
}

func TestTransitions_Descending(t *testing.T) {
	t.Parallel()
	s, err := stair.New([]stair.Step{{Count: 5, Width: 250, Height: -80}}, 100, 0)
	require.NoError(t, err)
	st := newStructure(t, testDims, s)

	lead, err := st.NextTransition()
	require.NoError(t, err)
	assert.Equal(t, 3, lead.Wheel)
	assert.InDelta(t, 65.0, lead.Horizontal, 1e-9)
	assert.InDelta(t, -80.0, lead.Vertical, 1e-9)
}

func TestTransitions_FlatIsDone(t *testing.T) {
	t.Parallel()
	s, err := stair.New(nil, 100, 0)
	require.NoError(t, err)
	st := newStructure(t, testDims, s)

	lead, err := st.NextTransition()
	require.NoError(t, err)
	assert.True(t, lead.Done())
	assert.Equal(t, 3, lead.Wheel, "ties go to the front wheel")
}

func TestPair_CheckStable(t *testing.T) {
	t.Parallel()
	st := newStructure(t, testDims, ascending(t))
	require.NoError(t, st.Elevate(10))

	ps, err := st.Pairs[1].CheckStable(st)
	require.NoError(t, err)
	assert.True(t, ps.Stable)
	assert.Equal(t, -1, ps.Wheel)

	// Force both front wheels up without validation.
	require.NoError(t, st.Move(ShiftMotion(2), -5, false))
	require.NoError(t, st.Move(ShiftMotion(3), -5, false))
	ps, err = st.Pairs[1].CheckStable(st)
	require.NoError(t, err)
	assert.False(t, ps.Stable)

	rep, err := st.CheckPosition()
	require.NoError(t, err)
	assert.False(t, rep.Valid())
	assert.True(t, rep.Stable[0])
	assert.False(t, rep.Stable[1])
	assert.Contains(t, rep.Err().Error(), "instability")

	assert.True(t, st.Pairs[1].Has(3))
	assert.Equal(t, 2, st.Pairs[1].Other(3))
}

func TestActuator(t *testing.T) {
	t.Parallel()
	a := Actuator{Lower: 0, Upper: 50, Extension: 45, Offset: 120}
	assert.Equal(t, 0.0, a.Overflow())
	assert.Equal(t, 5.0, a.Room(1))
	assert.Equal(t, 45.0, a.Room(-1))
	assert.InDelta(t, 8.0, a.ProportionalShift(10, 150, false), 1e-12)
	assert.InDelta(t, -2.0, a.ProportionalShift(10, 150, true), 1e-12)

	a.Extension = 52
	assert.InDelta(t, 2.0, a.Overflow(), 1e-12)
	a.Extension = -3
	assert.InDelta(t, -3.0, a.Overflow(), 1e-12)
}

// Random primitives never leave the structure in an invalid state, a
// rejected primitive never changes it, and retrying it with the reported
// correction succeeds.
func TestRandomMotions_PreserveInvariants(t *testing.T) {
	t.Parallel()
	for seed := uint64(1); seed <= 6; seed++ {
		rng := rand.New(rand.NewPCG(seed, 2))
		st := newStructure(t, testDims, ascending(t))

		var rejected int
		for n := 0; n < 1000; n++ {
			before := *st
			d := rng.Float64()*40 - 20
			var m Motion
			switch rng.IntN(4) {
			case 0:
				if st.Shift > 150 {
					d = -math.Abs(d)
				}
				m = AdvanceMotion()
			case 1:
				m = ElevateMotion()
			case 2:
				m = st.InclineMotion(rng.IntN(2) == 0, rng.IntN(2) == 0)
			case 3:
				m = ShiftMotion(rng.IntN(NumActuators))
			}

			err := st.Move(m, d, true)
			if err != nil {
				rejected++
				require.False(t, errors.Is(err, ErrInternal), "seed %d step %d: %v", seed, n, err)
				merr, ok := IsMotionError(err)
				require.True(t, ok, "seed %d step %d: unexpected error %v", seed, n, err)
				requireUnchanged(t, &before, st)

				retry := before
				require.NoError(t, retry.Move(m, merr.Feasible(), true),
					"seed %d step %d: %s %.6g corrected by %.6g", seed, n, m.Op, d, merr.Correction)
				continue
			}
			rep, err := st.CheckPosition()
			require.NoError(t, err)
			require.NoError(t, rep.Err(), "seed %d step %d", seed, n)
		}
		assert.Positive(t, rejected, "seed %d", seed)
	}
}

// A tilt about the front end keeps a compensated wheel in place only up to
// rounding; an airborne compensated wheel must not turn a collision into an
// internal error.
func TestIncline_CompensatedAirborneWheel(t *testing.T) {
	t.Parallel()
	st := newStructure(t, testDims, ascending(t))
	require.NoError(t, st.Elevate(20))
	require.NoError(t, st.ShiftActuator(1, -10))

	m := st.InclineMotion(true, true)
	_, dy := m.WheelRate(st, 1)
	assert.Zero(t, dy)

	before := *st
	err := st.Incline(5, true, true)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrInternal), "%v", err)
	merr, ok := IsMotionError(err)
	require.True(t, ok, "%v", err)
	assert.Equal(t, Collision, merr.Kind)
	assert.Equal(t, 0, merr.Wheel)
	assert.InDelta(t, -5.0, merr.Correction, 1e-9)
	requireUnchanged(t, &before, st)

	require.NoError(t, st.Incline(merr.Feasible(), true, true))
}
