// Package testutil provides shared test fixtures.
//
// The default structure is a span 150 body (A=40, B=80, C=30) with 50 of
// stroke and four 15 radius wheels, starting with its front wheel at x=50 on
// a 100 long floor.
package testutil

import (
	"testing"

	"gonum.org/v1/gonum/floats/scalar"

	"github.com/banshee-data/stairclimb/internal/stair"
	"github.com/banshee-data/stairclimb/internal/structure"
)

// Gap is the contact tolerance of the fixtures.
const Gap = 0.05

// Dimensions returns the default structure constants.
func Dimensions() structure.Dimensions {
	return structure.Dimensions{
		A: 40, B: 80, C: 30, D: 50, G: 50,
		Radii: [structure.NumActuators]float64{15, 15, 15, 15},
	}
}

// Ascending is three 25 high, 100 wide steps.
var Ascending = []stair.Step{{Count: 3, Width: 100, Height: 25}}

// Descending is three 25 deep, 100 wide steps.
var Descending = []stair.Step{{Count: 3, Width: 100, Height: -25}}

// Stair builds a stair behind a 100 long floor.
func Stair(t testing.TB, steps ...stair.Step) *stair.Stair {
	t.Helper()
	s, err := stair.New(steps, 100, 0)
	if err != nil {
		t.Fatalf("stair: %v", err)
	}
	return s
}

// Structure places the default structure in front of the given steps.
func Structure(t testing.TB, steps ...stair.Step) structure.Structure {
	t.Helper()
	st, err := structure.New(Dimensions(), Stair(t, steps...), Gap)
	if err != nil {
		t.Fatalf("structure: %v", err)
	}
	return *st
}

// AssertNear fails the test when got and want differ by more than tol.
func AssertNear(t testing.TB, got, want, tol float64, msg string) {
	t.Helper()
	if !scalar.EqualWithinAbs(got, want, tol) {
		t.Errorf("%s = %v, want %v (tol %v)", msg, got, want, tol)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
