package control

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/stairclimb/internal/stair"
	"github.com/banshee-data/stairclimb/internal/structure"
	"github.com/banshee-data/stairclimb/internal/testutil"
	"github.com/banshee-data/stairclimb/internal/wheel"
)

func requireSupported(t *testing.T, s structure.Structure) {
	t.Helper()
	for i := range s.Actuators {
		ws, err := s.Classify(i)
		require.NoError(t, err)
		assert.True(t, ws.Kind.Supported(), "wheel %d is %s", i, ws.Kind)
	}
}

// steep descent with a tight inclination limit
func pushFixture(t *testing.T) structure.Structure {
	t.Helper()
	dims := testutil.Dimensions()
	dims.N = 60
	st, err := structure.New(dims, testutil.Stair(t, stair.Step{Count: 5, Width: 250, Height: -80}), testutil.Gap)
	require.NoError(t, err)
	return *st
}

func TestPushActuator_Direct(t *testing.T) {
	t.Parallel()
	s := testutil.Structure(t, testutil.Ascending...)
	p := NewPlanner(DefaultConfig())

	require.NoError(t, s.Advance(35))
	require.NoError(t, s.Elevate(25))

	in, err := p.PushActuator(&s, 3, -25)
	require.NoError(t, err)
	require.NotNil(t, in.Shift)
	assert.Nil(t, in.Incline)
	assert.Nil(t, in.Elevate)
	assert.InDelta(t, 0.0, s.Actuators[3].Extension, 1e-9)
	assert.InDelta(t, 40.0, s.WheelPosition(3).Y, 1e-9)
}

func TestPushActuator_Primary(t *testing.T) {
	t.Parallel()
	s := pushFixture(t)
	p := NewPlanner(DefaultConfig())

	in, err := p.PushActuator(&s, 0, -40)
	require.NoError(t, err)
	require.NotNil(t, in.Incline)
	assert.InDelta(t, -40.0, in.Incline.Height, 1e-9)
	assert.True(t, in.Incline.FixFront)
	assert.False(t, in.Incline.ElevateRear)
	require.NotNil(t, in.Shift)
	assert.Equal(t, 0, in.Shift.Actuator)
	assert.InDelta(t, -40.0, in.Shift.Height, 1e-9)

	assert.InDelta(t, -40.0, s.Inclination, 1e-9)
	want := []float64{0, 88.0 / 3, 8, 0}
	for i, e := range want {
		assert.InDelta(t, e, s.Actuators[i].Extension, 1e-9, "actuator %d", i)
	}
	w := s.WheelPosition(0)
	assert.InDelta(t, -100.0, w.X, 1e-9)
	assert.InDelta(t, 55.0, w.Y, 1e-9)

	// A further lift needs more tilt than the limit allows. The rear wheel
	// is carried up to the limit and the rest is reported short.
	in, err = p.PushActuator(&s, 0, -30)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInfeasible)
	var perr *PlanError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, StageFatal, perr.Stage)
	assert.True(t, perr.InclinationLimited)
	assert.InDelta(t, -60.0, perr.MaxInclination, 1e-9)
	assert.InDelta(t, -10.0, perr.Short, 1e-9)

	require.NotNil(t, in.Incline)
	assert.InDelta(t, -20.0, in.Incline.Height, 1e-9)
	assert.True(t, in.Incline.FixFront)
	assert.True(t, in.Incline.ElevateRear)
	assert.Nil(t, in.Shift)

	assert.InDelta(t, -60.0, s.Inclination, 1e-9)
	want = []float64{0, 44, 12, 0}
	for i, e := range want {
		assert.InDelta(t, e, s.Actuators[i].Extension, 1e-9, "actuator %d", i)
	}
	assert.InDelta(t, 75.0, s.WheelPosition(0).Y, 1e-9)
}

func TestPushActuator_InclinationLimit(t *testing.T) {
	t.Parallel()
	s := pushFixture(t)
	p := NewPlanner(DefaultConfig())

	// 60 of the 90 come from carrying the rear wheel up to the limit.
	in, err := p.PushActuator(&s, 0, -90)
	var perr *PlanError
	require.True(t, errors.As(err, &perr), "got %v", err)
	assert.InDelta(t, -30.0, perr.Short, 1e-9)
	require.NotNil(t, in.Incline)
	assert.InDelta(t, -60.0, in.Incline.Height, 1e-9)
	assert.InDelta(t, -60.0, s.Inclination, 1e-4)
	assert.InDelta(t, 75.0, s.WheelPosition(0).Y, 1e-9)

	before := s
	in, err = p.PushActuator(&s, 0, -30)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInfeasible)
	perr = nil
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, StageFatal, perr.Stage)
	assert.True(t, perr.InclinationLimited)
	assert.InDelta(t, -60.0, perr.MaxInclination, 1e-9)
	assert.Zero(t, perr.Short)
	assert.True(t, in.IsZero())
	assert.InDelta(t, -60.0, s.Inclination, 1e-4)
	assert.Equal(t, before.Actuators, s.Actuators)
}

func TestPushActuator_SecondaryCarriesRear(t *testing.T) {
	t.Parallel()
	s := pushFixture(t)
	p := NewPlanner(DefaultConfig())

	in, err := p.PushActuator(&s, 0, -60)
	require.NoError(t, err)
	require.NotNil(t, in.Incline)
	assert.True(t, in.Incline.FixFront)
	assert.True(t, in.Incline.ElevateRear)
	assert.InDelta(t, -60.0, in.Incline.Height, 1e-9)
	assert.Nil(t, in.Shift)

	assert.InDelta(t, -60.0, s.Inclination, 1e-9)
	want := []float64{0, 44, 12, 0}
	for i, e := range want {
		assert.InDelta(t, e, s.Actuators[i].Extension, 1e-9, "actuator %d", i)
	}
	assert.InDelta(t, 75.0, s.WheelPosition(0).Y, 1e-9)

	_, err = p.PushActuator(&s, 0, -30)
	var perr *PlanError
	require.True(t, errors.As(err, &perr))
	assert.True(t, perr.InclinationLimited)
	assert.InDelta(t, -60.0, perr.MaxInclination, 1e-9)
	assert.Zero(t, perr.Short)
	assert.InDelta(t, -60.0, s.Inclination, 1e-9)
}

func TestPushActuator_InvalidActuator(t *testing.T) {
	t.Parallel()
	s := pushFixture(t)
	_, err := NewPlanner(DefaultConfig()).PushActuator(&s, 4, 1)
	assert.ErrorIs(t, err, structure.ErrInvalidMotion)
}

func TestCheckEnvelope(t *testing.T) {
	t.Parallel()
	ok := testutil.Structure(t, stair.Step{Count: 2, Width: 100, Height: 50})
	assert.NoError(t, CheckEnvelope(&ok))

	tall := testutil.Structure(t, stair.Step{Count: 1, Width: 100, Height: 20}, stair.Step{Count: 1, Width: 100, Height: -55})
	assert.ErrorIs(t, CheckEnvelope(&tall), ErrInfeasible)

	_, err := NewPlanner(DefaultConfig()).Traverse(tall, 100)
	assert.ErrorIs(t, err, ErrInfeasible)
}

func TestTraverse_Flat(t *testing.T) {
	t.Parallel()
	s := testutil.Structure(t)
	res, err := NewPlanner(DefaultConfig()).Traverse(s, 10)
	require.NoError(t, err)
	require.Len(t, res.Steps, 1)
	assert.True(t, res.Steps[0].Done)
	assert.True(t, res.Steps[0].Instruction.IsZero())
}

func TestTraverse_Ascending(t *testing.T) {
	t.Parallel()
	for _, anticipate := range []bool{false, true} {
		s := testutil.Structure(t, testutil.Ascending...)
		res, err := NewPlanner(Config{Anticipate: anticipate}).Traverse(s, 100)
		require.NoError(t, err, "anticipate=%v", anticipate)
		require.Len(t, res.Steps, 14)
		assert.True(t, res.Steps[len(res.Steps)-1].Done)

		f := res.Final
		assert.InDelta(t, 0.0, f.Inclination, 1e-6)
		assert.InDelta(t, 450.0, f.WheelPosition(3).X, 1e-6)
		for i := range f.Actuators {
			assert.InDelta(t, 90.0, f.WheelPosition(i).Y, 1e-6, "wheel %d", i)
		}
		requireSupported(t, f)
	}
}

func TestTraverse_AscendingInstructions(t *testing.T) {
	t.Parallel()
	s := testutil.Structure(t, testutil.Ascending...)
	res, err := NewPlanner(Config{}).Traverse(s, 100)
	require.NoError(t, err)
	ins := res.Instructions()

	// Roll up to the first riser.
	require.NotNil(t, ins[0].Advance)
	assert.InDelta(t, 35.0, *ins[0].Advance, 1e-9)
	assert.Nil(t, ins[0].Shift)
	assert.Equal(t, 3, res.Steps[0].Transition.Wheel)

	// Lift the front wheel by tilting about the rear, then roll on.
	require.NotNil(t, ins[1].Incline)
	assert.InDelta(t, 25.0, ins[1].Incline.Height, 1e-9)
	assert.False(t, ins[1].Incline.FixFront)
	require.NotNil(t, ins[1].Shift)
	assert.Equal(t, 3, ins[1].Shift.Actuator)
	assert.InDelta(t, -25.0, ins[1].Shift.Height, 1e-9)
	require.NotNil(t, ins[1].Advance)
	assert.InDelta(t, 30.0, *ins[1].Advance, 1e-9)

	// The second front wheel needs a little elevation.
	require.NotNil(t, ins[2].Elevate)
	assert.InDelta(t, 5.0, *ins[2].Elevate, 1e-9)
	require.NotNil(t, ins[2].Shift)
	assert.Equal(t, 2, ins[2].Shift.Actuator)
	require.NotNil(t, ins[2].Advance)
	assert.InDelta(t, 70.0, *ins[2].Advance, 1e-9)

	// The last step levels the body on the top landing.
	last := ins[len(ins)-1]
	require.NotNil(t, last.Incline)
	assert.InDelta(t, -242.0/9, last.Incline.Height, 1e-6)
	require.NotNil(t, last.Advance)
	assert.InDelta(t, 15.0, *last.Advance, 1e-9)
}

func TestTraverse_Descending(t *testing.T) {
	t.Parallel()
	for _, anticipate := range []bool{false, true} {
		s := testutil.Structure(t, testutil.Descending...)
		res, err := NewPlanner(Config{Anticipate: anticipate}).Traverse(s, 100)
		require.NoError(t, err, "anticipate=%v", anticipate)
		require.Len(t, res.Steps, 14)

		ins := res.Instructions()
		require.NotNil(t, ins[0].Advance)
		assert.InDelta(t, 65.0, *ins[0].Advance, 1e-9)
		require.NotNil(t, ins[1].Shift)
		assert.Equal(t, 3, ins[1].Shift.Actuator)
		assert.InDelta(t, 25.0, ins[1].Shift.Height, 1e-9)

		f := res.Final
		assert.InDelta(t, 0.0, f.Inclination, 1e-6)
		assert.InDelta(t, 465.0, f.WheelPosition(3).X, 1e-6)
		for i := range f.Actuators {
			assert.InDelta(t, -60.0, f.WheelPosition(i).Y, 1e-6, "wheel %d", i)
			assert.InDelta(t, 50.0, f.Actuators[i].Extension, 1e-6, "actuator %d", i)
		}
		requireSupported(t, f)
	}
}

// Two 30 deep steps put wheel 3 two levels below actuator 1 while actuator 1
// is still fully retracted, so the front end has to drop by pivoting about it.
func TestTraverse_DescendingPivot(t *testing.T) {
	t.Parallel()
	for _, anticipate := range []bool{false, true} {
		s := testutil.Structure(t, stair.Step{Count: 2, Width: 100, Height: -30})
		res, err := NewPlanner(Config{Anticipate: anticipate}).Traverse(s, 100)
		require.NoError(t, err, "anticipate=%v", anticipate)
		require.Len(t, res.Steps, 10)

		pivot := res.Steps[3].Instruction
		require.NotNil(t, pivot.Incline)
		assert.True(t, pivot.Incline.FixFront)
		assert.False(t, pivot.Incline.ElevateRear)
		assert.InDelta(t, -150.0/11, pivot.Incline.Height, 1e-9)
		require.NotNil(t, pivot.Elevate)
		assert.InDelta(t, -10.0, *pivot.Elevate, 1e-9)
		require.NotNil(t, pivot.Shift)
		assert.Equal(t, 3, pivot.Shift.Actuator)
		assert.InDelta(t, 30.0, pivot.Shift.Height, 1e-9)

		f := res.Final
		assert.InDelta(t, 0.0, f.Inclination, 1e-6)
		assert.InDelta(t, 365.0, f.WheelPosition(3).X, 1e-6)
		for i := range f.Actuators {
			assert.InDelta(t, -45.0, f.WheelPosition(i).Y, 1e-6, "wheel %d", i)
		}
		requireSupported(t, f)
	}
}

func TestTraverse_Mixed(t *testing.T) {
	t.Parallel()
	s := testutil.Structure(t,
		stair.Step{Count: 2, Width: 100, Height: 20},
		stair.Step{Count: 2, Width: 120, Height: -30},
	)
	res, err := NewPlanner(DefaultConfig()).Traverse(s, 100)
	require.NoError(t, err)
	assert.Len(t, res.Steps, 18)
	assert.InDelta(t, 585.0, res.Final.WheelPosition(3).X, 1e-6)
	assert.InDelta(t, -5.0, res.Final.WheelPosition(0).Y, 1e-6)
	requireSupported(t, res.Final)

	// Every intermediate position is valid.
	for n, st := range res.Steps {
		rep, err := st.Structure.CheckPosition()
		require.NoError(t, err)
		assert.True(t, rep.Valid(), "step %d: %s", n, st.Instruction)
	}
}

func TestTraverse_Limit(t *testing.T) {
	t.Parallel()
	s := testutil.Structure(t, testutil.Ascending...)
	res, err := NewPlanner(DefaultConfig()).Traverse(s, 3)
	assert.ErrorIs(t, err, ErrNoTermination)
	assert.Len(t, res.Steps, 3)
}

func TestNext_DoesNotModify(t *testing.T) {
	t.Parallel()
	s := testutil.Structure(t, testutil.Ascending...)
	before := s
	step, err := NewPlanner(DefaultConfig()).Next(s)
	require.NoError(t, err)
	assert.Equal(t, before.Shift, s.Shift)
	assert.Equal(t, before.Actuators, s.Actuators)
	assert.NotEqual(t, s.Shift, step.Structure.Shift)
	ws, err := step.Structure.Classify(3)
	require.NoError(t, err)
	assert.Equal(t, wheel.Corner, ws.Kind)
}
