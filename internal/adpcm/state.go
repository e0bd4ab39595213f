package adpcm

import "math"

// State is the per-channel predictor. The zero value is the initial state
// every encode or decode call starts from.
type State struct {
	Predicted int16
	StepIndex uint8
}

// apply moves the predictor by diff and adapts the step index for code.
// Both fields are clamped to their legal ranges.
func (s *State) apply(code uint8, diff int) {
	s.Predicted = clampSample(int(s.Predicted) + diff)
	s.StepIndex = clampIndex(int(s.StepIndex) + int(IndexDelta(code)))
}

func clampSample(v int) int16 {
	if v < math.MinInt16 {
		return math.MinInt16
	}
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	return int16(v)
}

func clampIndex(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > MaxStepIndex {
		return MaxStepIndex
	}
	return uint8(v)
}
