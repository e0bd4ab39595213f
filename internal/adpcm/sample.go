package adpcm

// Code bit layout
const (
	codeSign      = 0x8
	codeMagnitude = 0x7
	codeMask      = 0xF
)

// DecodeSample reconstructs one sample from a 4-bit code and advances s.
// Bits above the low nibble are ignored.
func DecodeSample(code uint8, s *State) int16 {
	code &= codeMask
	step := int(StepSize(s.StepIndex))

	diff := step >> 3
	if code&1 != 0 {
		diff += step >> 2
	}
	if code&2 != 0 {
		diff += step >> 1
	}
	if code&4 != 0 {
		diff += step
	}
	if code&codeSign != 0 {
		diff = -diff
	}

	s.apply(code, diff)
	return s.Predicted
}

// EncodeSample quantizes sample against s and returns its 4-bit code. The
// predictor is advanced exactly as DecodeSample would advance it for the
// returned code.
func EncodeSample(sample int16, s *State) uint8 {
	step := int(StepSize(s.StepIndex))
	diff := step >> 3
	delta := int(sample) - int(s.Predicted)

	var code uint8
	if delta < 0 {
		code = codeSign
		delta = -delta
	}

	if delta >= step {
		code |= 4
		delta -= step
		diff += step
	}

	step >>= 1
	if delta >= step {
		code |= 2
		delta -= step
		diff += step
	}

	step >>= 1
	if delta >= step {
		code |= 1
		diff += step
	}

	if code&codeSign != 0 {
		diff = -diff
	}

	s.apply(code, diff)
	return code
}
