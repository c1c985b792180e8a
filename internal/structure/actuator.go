package structure

import (
	"github.com/banshee-data/stairclimb/internal/wheel"
)

// Actuator is a vertical linear actuator hanging from the body at Offset,
// carrying one wheel at its lower end.
type Actuator struct {
	Lower     float64     `json:"lower"`
	Upper     float64     `json:"upper"`
	Extension float64     `json:"extension"`
	Offset    float64     `json:"offset"` // distance from actuator 0 along the body
	Wheel     wheel.Wheel `json:"wheel"`
}

// Overflow returns how far the extension lies outside [Lower, Upper]: positive
// above Upper, negative below Lower, zero within range.
func (a Actuator) Overflow() float64 {
	switch {
	case a.Extension > a.Upper+epsilon:
		return a.Extension - a.Upper
	case a.Extension < a.Lower-epsilon:
		return a.Extension - a.Lower
	}
	return 0
}

// Room returns the extension still available in the direction of delta.
func (a Actuator) Room(delta float64) float64 {
	if delta < 0 {
		return a.Extension - a.Lower
	}
	return a.Upper - a.Extension
}

// ProportionalShift returns the displacement of the actuator's attachment
// point when the body inclines by height over span. The rear end is the pivot
// unless fixFront is set, in which case the front end stays put.
func (a Actuator) ProportionalShift(height, span float64, fixFront bool) float64 {
	if fixFront {
		return -height * (span - a.Offset) / span
	}
	return height * a.Offset / span
}

// Pair groups two actuators whose wheels must never both lose support.
type Pair struct {
	Rear   int  `json:"rear"`
	Front  int  `json:"front"`
	IsRear bool `json:"is_rear"`
}

// Members returns the actuator indices of the pair, rear first.
func (p Pair) Members() [2]int { return [2]int{p.Rear, p.Front} }

// Has reports whether actuator i belongs to the pair.
func (p Pair) Has(i int) bool { return p.Rear == i || p.Front == i }

// Other returns the partner of actuator i.
func (p Pair) Other(i int) int {
	if p.Rear == i {
		return p.Front
	}
	return p.Rear
}

// PairStability is the result of a pair support check.
type PairStability struct {
	Stable bool
	// Correction is the shortest horizontal travel, against the direction of
	// travel, after which one of the wheels is supported again. Zero when
	// Stable.
	Correction float64
	// Wheel is the wheel the correction refers to, -1 when Stable.
	Wheel int
}

// stable reports whether at least one wheel of the pair is supported.
func (p Pair) stable(states [NumActuators]wheel.State) bool {
	return states[p.Rear].Kind.Supported() || states[p.Front].Kind.Supported()
}

// CheckStable evaluates the pair on s, assuming forward travel when computing
// the correction.
func (p Pair) CheckStable(s *Structure) (PairStability, error) {
	var states [NumActuators]wheel.State
	for _, i := range p.Members() {
		st, err := s.classify(i)
		if err != nil {
			return PairStability{}, err
		}
		states[i] = st
	}
	if p.stable(states) {
		return PairStability{Stable: true, Wheel: -1}, nil
	}

	res := PairStability{Wheel: -1}
	for _, i := range p.Members() {
		w := s.Actuators[i].Wheel
		d, err := w.SupportDistance(s.WheelPosition(i), s.stair, s.gap, -1)
		if err != nil {
			return PairStability{}, err
		}
		if res.Wheel < 0 || d > res.Correction {
			res.Correction = d
			res.Wheel = i
		}
	}
	return res, nil
}
