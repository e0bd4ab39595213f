package adpcm

import "fmt"

// Layout identifies how channel code streams share the byte stream.
type Layout int

const (
	Mono   Layout = 1
	Stereo Layout = 2
	Quad   Layout = 4
)

// Quad framing. Each block carries (L, R) pairs in its first half and
// (C, LFE) pairs at the same offset in its second half.
const (
	QuadBlockSize    = 16384
	QuadHalfBlock    = QuadBlockSize / 2
	quadBlockSamples = QuadHalfBlock * 4
)

// Channel slots within a quad group
const (
	chLeft = iota
	chRight
	chCenter
	chLFE
)

// LayoutFor maps a channel count to its layout.
func LayoutFor(channels int) (Layout, error) {
	switch Layout(channels) {
	case Mono, Stereo, Quad:
		return Layout(channels), nil
	}
	return 0, fmt.Errorf("%w: %d channels", ErrUnsupportedChannelLayout, channels)
}

// Channels returns the number of interleaved channels.
func (l Layout) Channels() int {
	return int(l)
}

func (l Layout) String() string {
	switch l {
	case Mono:
		return "mono"
	case Stereo:
		return "stereo"
	case Quad:
		return "quad"
	default:
		return fmt.Sprintf("layout(%d)", int(l))
	}
}

// DecodedLen returns the number of samples produced by decoding codeBytes bytes.
func (l Layout) DecodedLen(codeBytes int) int {
	if codeBytes <= 0 {
		return 0
	}
	if l != Quad {
		return codeBytes * 2
	}

	blocks, last := codeBytes/QuadBlockSize, codeBytes%QuadBlockSize
	n := blocks * quadBlockSamples
	if last > QuadHalfBlock {
		n += (last - QuadHalfBlock) * 4
	}
	return n
}

// DecodeResidue returns how many trailing bytes of a codeBytes long stream
// are ignored by Decode. Only a quad stream whose last block ends before its
// C/LFE half can have a residue.
func (l Layout) DecodeResidue(codeBytes int) int {
	if l != Quad || codeBytes <= 0 {
		return 0
	}
	if last := codeBytes % QuadBlockSize; last <= QuadHalfBlock {
		return last
	}
	return 0
}

// EncodedLen returns the size of the code stream produced by encoding
// samples interleaved samples.
func (l Layout) EncodedLen(samples int) int {
	if samples <= 0 {
		return 0
	}
	if l != Quad {
		return samples / 2
	}

	groups := samples / 4
	blocks, last := groups/QuadHalfBlock, groups%QuadHalfBlock
	n := blocks * QuadBlockSize
	if last > 0 {
		n += QuadHalfBlock + last
	}
	return n
}

// EncodeResidue returns how many trailing samples are dropped by Encode
// because they do not fill a whole byte (mono, stereo) or group (quad).
func (l Layout) EncodeResidue(samples int) int {
	if samples <= 0 {
		return 0
	}
	if l != Quad {
		return samples % 2
	}
	return samples % 4
}

// CodeByteRate is the average code stream byte rate at sampleRate frames
// per second.
func (l Layout) CodeByteRate(sampleRate int) int {
	return sampleRate * l.Channels() / 2
}

// CodeBlockAlign is the smallest unit a code stream can be cut at.
func (l Layout) CodeBlockAlign() int {
	if l == Quad {
		return QuadBlockSize
	}
	return 1
}
