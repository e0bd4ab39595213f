// Package wav reads and writes the RIFF/WAVE containers around the codec:
// 16-bit PCM input for encoding and PCM output for decoded code streams.
package wav

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Audio format tags (WAVE format identifiers)
const (
	WAVE_FORMAT_PCM        = 0x0001
	WAVE_FORMAT_ADPCM      = 0x0002
	WAVE_FORMAT_ALAW       = 0x0006
	WAVE_FORMAT_MULAW      = 0x0007
	WAVE_FORMAT_DVI_ADPCM  = 0x0011
	WAVE_FORMAT_EXTENSIBLE = 0xFFFE
)

// formatChunkSize is the size of the fields every fmt chunk carries.
const formatChunkSize = 16

// Format represents the fmt chunk body.
type Format struct {
	FormatTag      uint16
	Channels       uint16
	SamplesPerSec  uint32
	AvgBytesPerSec uint32
	BlockAlign     uint16
	BitsPerSample  uint16
}

// PCMFormat returns a PCM format with derived byte rate and block alignment.
func PCMFormat(channels, sampleRate, bitsPerSample int) Format {
	blockAlign := channels * (bitsPerSample / 8)
	return Format{
		FormatTag:      WAVE_FORMAT_PCM,
		Channels:       uint16(channels),
		SamplesPerSec:  uint32(sampleRate),
		AvgBytesPerSec: uint32(sampleRate * blockAlign),
		BlockAlign:     uint16(blockAlign),
		BitsPerSample:  uint16(bitsPerSample),
	}
}

func (f *Format) Serialize() []byte {
	buf := make([]byte, formatChunkSize)
	binary.LittleEndian.PutUint16(buf[0:2], f.FormatTag)
	binary.LittleEndian.PutUint16(buf[2:4], f.Channels)
	binary.LittleEndian.PutUint32(buf[4:8], f.SamplesPerSec)
	binary.LittleEndian.PutUint32(buf[8:12], f.AvgBytesPerSec)
	binary.LittleEndian.PutUint16(buf[12:14], f.BlockAlign)
	binary.LittleEndian.PutUint16(buf[14:16], f.BitsPerSample)
	return buf
}

func (f *Format) Deserialize(r io.Reader) error {
	return binary.Read(r, binary.LittleEndian, f)
}

// String returns a human-readable format description
func (f *Format) String() string {
	var formatName string
	switch f.FormatTag {
	case WAVE_FORMAT_PCM:
		formatName = "PCM"
	case WAVE_FORMAT_ADPCM:
		formatName = "ADPCM"
	case WAVE_FORMAT_DVI_ADPCM:
		formatName = "IMA ADPCM"
	case WAVE_FORMAT_ALAW:
		formatName = "A-Law"
	case WAVE_FORMAT_MULAW:
		formatName = "µ-Law"
	case WAVE_FORMAT_EXTENSIBLE:
		formatName = "Extensible"
	default:
		formatName = fmt.Sprintf("0x%04X", f.FormatTag)
	}
	return fmt.Sprintf("%s %dHz %dch %dbit", formatName, f.SamplesPerSec, f.Channels, f.BitsPerSample)
}
