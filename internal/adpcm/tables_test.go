package adpcm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStepTableMonotonic(t *testing.T) {
	assert.Equal(t, uint16(7), StepSize(0))
	assert.Equal(t, uint16(32767), StepSize(MaxStepIndex))

	for i := 1; i <= MaxStepIndex; i++ {
		assert.Greater(t, StepSize(uint8(i)), StepSize(uint8(i-1)), "step %d", i)
	}
}

func TestStepSizeOutOfRange(t *testing.T) {
	assert.Equal(t, StepSize(MaxStepIndex), StepSize(MaxStepIndex+1))
	assert.Equal(t, StepSize(MaxStepIndex), StepSize(255))
}

func TestIndexDelta(t *testing.T) {
	tests := []struct {
		code     uint8
		expected int8
	}{
		{0x0, -1},
		{0x3, -1},
		{0x4, 2},
		{0x5, 4},
		{0x6, 6},
		{0x7, 8},
		{0x8, -1}, // sign bit does not take part
		{0xF, 8},  // sign bit does not take part
		{0xF7, 8}, // high bits ignored
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, IndexDelta(tt.code), "IndexDelta(0x%X)", tt.code)
	}
}
