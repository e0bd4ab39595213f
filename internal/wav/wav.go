package wav

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

var (
	ErrNotRIFF              = errors.New("wav: missing RIFF header")
	ErrNotWave              = errors.New("wav: RIFF form is not WAVE")
	ErrFormatChunkTooSmall  = errors.New("wav: fmt chunk too small")
	ErrUnsupportedFormatTag = errors.New("wav: unsupported format tag")
	ErrUnsupportedChannels  = errors.New("wav: unsupported channel count")
	ErrUnsupportedBitDepth  = errors.New("wav: unsupported bits per sample")
	ErrMissingFormat        = errors.New("wav: data chunk before fmt chunk")
	ErrNoSamples            = errors.New("wav: no sample data")
	ErrSampleRateRange      = errors.New("wav: sample rate out of range")
	ErrDataTooLarge         = errors.New("wav: data exceeds RIFF size limit")
)

// Chunk identifiers
const (
	riffID = "RIFF"
	waveID = "WAVE"
	fmtID  = "fmt "
	dataID = "data"
)

const (
	riffHeaderSize  = 12
	chunkHeaderSize = 8
	pcmHeaderSize   = riffHeaderSize + chunkHeaderSize + formatChunkSize + chunkHeaderSize
)

// BitsPerSample is the only PCM sample width the codec accepts.
const BitsPerSample = 16

// Largest data chunk whose size still fits the 32-bit RIFF length field.
var maxDataSize uint64 = math.MaxUint32 - pcmHeaderSize

// CheckSampleRate reports whether a 16-bit PCM stream of channels channels at
// sampleRate frames per second has a byte rate the fmt chunk can carry.
func CheckSampleRate(sampleRate, channels int) error {
	if sampleRate <= 0 {
		return fmt.Errorf("%w: %d", ErrSampleRateRange, sampleRate)
	}
	if channels > 0 && uint64(sampleRate)*uint64(channels)*(BitsPerSample/8) > math.MaxUint32 {
		return fmt.Errorf("%w: %d Hz with %d channels", ErrSampleRateRange, sampleRate, channels)
	}
	return nil
}

// File is a parsed WAVE file: its format and the raw data chunk.
type File struct {
	Format Format
	Data   []byte
}

// Read parses a WAVE stream up to and including its data chunk. Chunks other
// than fmt and data are skipped. A data chunk cut short by the end of the
// stream is kept as far as it goes.
func Read(r io.Reader) (*File, error) {
	var hdr [riffHeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrNotRIFF
		}
		return nil, fmt.Errorf("read RIFF header: %w", err)
	}

	if string(hdr[0:4]) != riffID {
		return nil, ErrNotRIFF
	}
	if string(hdr[8:12]) != waveID {
		return nil, ErrNotWave
	}

	var (
		file       File
		haveFormat bool
	)

	for {
		var chunk [chunkHeaderSize]byte
		if _, err := io.ReadFull(r, chunk[:]); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil, ErrNoSamples
			}
			return nil, fmt.Errorf("read chunk header: %w", err)
		}

		id := string(chunk[0:4])
		size := binary.LittleEndian.Uint32(chunk[4:8])
		if size == 0 {
			continue
		}

		switch id {
		case fmtID:
			if size < formatChunkSize {
				return nil, fmt.Errorf("%w: %d bytes", ErrFormatChunkTooSmall, size)
			}
			if err := file.Format.Deserialize(r); err != nil {
				return nil, fmt.Errorf("read fmt chunk: %w", err)
			}
			if err := skip(r, int64(size)-formatChunkSize+int64(size&1)); err != nil {
				return nil, fmt.Errorf("skip fmt extension: %w", err)
			}
			if err := file.Format.validate(); err != nil {
				return nil, err
			}
			haveFormat = true

		case dataID:
			if !haveFormat {
				return nil, ErrMissingFormat
			}
			data, err := io.ReadAll(io.LimitReader(r, int64(size)))
			if err != nil {
				return nil, fmt.Errorf("read data chunk: %w", err)
			}
			if len(data) < 2 {
				return nil, ErrNoSamples
			}
			file.Data = data
			return &file, nil

		default:
			if err := skip(r, int64(size)+int64(size&1)); err != nil {
				return nil, fmt.Errorf("skip %q chunk: %w", id, err)
			}
		}
	}
}

func (f *Format) validate() error {
	if f.FormatTag != WAVE_FORMAT_PCM {
		return fmt.Errorf("%w: %s", ErrUnsupportedFormatTag, f.String())
	}
	switch f.Channels {
	case 1, 2, 4:
	default:
		return fmt.Errorf("%w: %d", ErrUnsupportedChannels, f.Channels)
	}
	if f.BitsPerSample != BitsPerSample {
		return fmt.Errorf("%w: %d", ErrUnsupportedBitDepth, f.BitsPerSample)
	}
	return nil
}

func skip(r io.Reader, n int64) error {
	if n <= 0 {
		return nil
	}
	if s, ok := r.(io.Seeker); ok {
		_, err := s.Seek(n, io.SeekCurrent)
		return err
	}
	_, err := io.CopyN(io.Discard, r, n)
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}

// Samples returns the data chunk as little-endian 16-bit samples. A trailing
// odd byte is ignored.
func (f *File) Samples() []int16 {
	out := make([]int16, len(f.Data)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(f.Data[i*2:]))
	}
	return out
}

// NewPCM wraps interleaved 16-bit samples in a PCM file.
func NewPCM(samples []int16, channels, sampleRate int) *File {
	data := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(data[i*2:], uint16(s))
	}
	return &File{
		Format: PCMFormat(channels, sampleRate, BitsPerSample),
		Data:   data,
	}
}

// Write emits the canonical 44-byte header followed by the data chunk.
func (f *File) Write(w io.Writer) error {
	if uint64(len(f.Data)) > maxDataSize {
		return fmt.Errorf("%w: %d bytes", ErrDataTooLarge, len(f.Data))
	}

	var buf bytes.Buffer
	buf.Grow(pcmHeaderSize)

	dataSize := uint32(len(f.Data))
	riffSize := uint32(pcmHeaderSize-chunkHeaderSize) + dataSize + dataSize&1

	buf.WriteString(riffID)
	_ = binary.Write(&buf, binary.LittleEndian, riffSize)
	buf.WriteString(waveID)

	buf.WriteString(fmtID)
	_ = binary.Write(&buf, binary.LittleEndian, uint32(formatChunkSize))
	buf.Write(f.Format.Serialize())

	buf.WriteString(dataID)
	_ = binary.Write(&buf, binary.LittleEndian, dataSize)

	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if _, err := w.Write(f.Data); err != nil {
		return fmt.Errorf("write data: %w", err)
	}
	if dataSize&1 != 0 {
		if _, err := w.Write([]byte{0}); err != nil {
			return fmt.Errorf("write pad byte: %w", err)
		}
	}
	return nil
}
