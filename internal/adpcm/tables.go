// Package adpcm implements the IMA ADPCM (DVI4) codec for headerless 4-bit
// code streams laid out as mono, stereo or quad (L, R, C, LFE) data.
package adpcm

// MaxStepIndex is the highest legal position in the step table.
const MaxStepIndex = 88

// IMA ADPCM quantizer step sizes (IMA Digital Audio Focus and Technical Working Group)
var steps = [MaxStepIndex + 1]uint16{
	7, 8, 9, 10, 11, 12, 13, 14,
	16, 17, 19, 21, 23, 25, 28, 31,
	34, 37, 41, 45, 50, 55, 60, 66,
	73, 80, 88, 97, 107, 118, 130, 143,
	157, 173, 190, 209, 230, 253, 279, 307,
	337, 371, 408, 449, 494, 544, 598, 658,
	724, 796, 876, 963, 1060, 1166, 1282, 1411,
	1552, 1707, 1878, 2066, 2272, 2499, 2749, 3024,
	3327, 3660, 4026, 4428, 4871, 5358, 5894, 6484,
	7132, 7845, 8630, 9493, 10442, 11487, 12635, 13899,
	15289, 16818, 18500, 20350, 22385, 24623, 27086, 29794,
	32767,
}

// Step index adjustment, selected by the magnitude bits of a code
var indexDeltas = [8]int8{-1, -1, -1, -1, 2, 4, 6, 8}

// StepSize returns the quantizer step for a step index. Indices past the end
// of the table resolve to the last step.
func StepSize(index uint8) uint16 {
	if index > MaxStepIndex {
		index = MaxStepIndex
	}
	return steps[index]
}

// IndexDelta returns the step index adjustment for a code. Only the three
// magnitude bits take part in the lookup.
func IndexDelta(code uint8) int8 {
	return indexDeltas[code&7]
}
