// Package transcode moves whole files and buffers through the codec: WAVE
// PCM in, headerless code streams out, and back.
package transcode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/kulaginds/imaadpcm/internal/adpcm"
	"github.com/kulaginds/imaadpcm/internal/logging"
	"github.com/kulaginds/imaadpcm/internal/wav"
)

var ErrEmptyInput = errors.New("transcode: empty input")

// Mode selects the direction of a job.
type Mode int

const (
	ModeEncode Mode = iota
	ModeDecode
)

func (m Mode) String() string {
	if m == ModeDecode {
		return "decode"
	}
	return "encode"
}

// Encoded is a code stream together with the metadata a container writer
// needs to describe it.
type Encoded struct {
	Codes      []byte
	Layout     adpcm.Layout
	SampleRate int
	Samples    int
	Dropped    int // trailing samples that did not fill a unit
}

// ByteRate is the average code stream byte rate.
func (e *Encoded) ByteRate() int {
	return e.Layout.CodeByteRate(e.SampleRate)
}

// EncodeWave parses a WAVE file and compresses its samples.
func EncodeWave(data []byte) (*Encoded, error) {
	file, err := wav.Read(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	samples := file.Samples()
	channels := int(file.Format.Channels)

	codes, err := adpcm.Encode(samples, channels)
	if err != nil {
		return nil, err
	}

	layout, _ := adpcm.LayoutFor(channels)
	return &Encoded{
		Codes:      codes,
		Layout:     layout,
		SampleRate: int(file.Format.SamplesPerSec),
		Samples:    len(samples),
		Dropped:    layout.EncodeResidue(len(samples)),
	}, nil
}

// DecodeWave expands a code stream into a PCM WAVE file. It also returns how
// many trailing code bytes were ignored.
func DecodeWave(codes []byte, channels, sampleRate int) (*wav.File, int, error) {
	layout, err := adpcm.LayoutFor(channels)
	if err != nil {
		return nil, 0, err
	}
	if err := wav.CheckSampleRate(sampleRate, channels); err != nil {
		return nil, 0, err
	}
	if len(codes) == 0 {
		return nil, 0, ErrEmptyInput
	}

	samples, err := adpcm.Decode(codes, channels)
	if err != nil {
		return nil, 0, err
	}

	return wav.NewPCM(samples, channels, sampleRate), layout.DecodeResidue(len(codes)), nil
}

// Job describes one file conversion. Channels and SampleRate apply to decode
// jobs only; encode jobs take them from the WAVE header.
type Job struct {
	Mode       Mode
	Input      string
	Output     string
	Channels   int
	SampleRate int
}

// Result reports a finished job.
type Result struct {
	Job       Job
	Samples   int
	CodeBytes int
	Dropped   int
	Elapsed   time.Duration
}

// Run executes a single job.
func Run(ctx context.Context, job Job) (*Result, error) {
	if job.Mode == ModeDecode {
		return DecodeFile(ctx, job.Input, job.Output, job.Channels, job.SampleRate)
	}
	return EncodeFile(ctx, job.Input, job.Output)
}

// EncodeFile compresses the WAVE file src into the raw code file dst.
func EncodeFile(ctx context.Context, src, dst string) (*Result, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(src)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}

	enc, err := EncodeWave(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", src, err)
	}
	if enc.Dropped > 0 {
		logging.Warn("%s: dropped %d trailing samples that do not fill a %s unit", src, enc.Dropped, enc.Layout)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := os.WriteFile(dst, enc.Codes, 0o644); err != nil {
		return nil, fmt.Errorf("write output: %w", err)
	}

	logging.Debug("%s: %d samples %s %dHz -> %d code bytes (%d B/s)",
		src, enc.Samples, enc.Layout, enc.SampleRate, len(enc.Codes), enc.ByteRate())
	logging.Elapsed("encode "+src, start)

	return &Result{
		Job:       Job{Mode: ModeEncode, Input: src, Output: dst, Channels: enc.Layout.Channels(), SampleRate: enc.SampleRate},
		Samples:   enc.Samples,
		CodeBytes: len(enc.Codes),
		Dropped:   enc.Dropped,
		Elapsed:   time.Since(start),
	}, nil
}

// DecodeFile expands the raw code file src into the PCM WAVE file dst.
func DecodeFile(ctx context.Context, src, dst string, channels, sampleRate int) (*Result, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	codes, err := os.ReadFile(src)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}

	file, dropped, err := DecodeWave(codes, channels, sampleRate)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", src, err)
	}
	if dropped > 0 {
		logging.Warn("%s: ignored %d trailing bytes of an incomplete block", src, dropped)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out, err := os.Create(dst)
	if err != nil {
		return nil, fmt.Errorf("create output: %w", err)
	}
	if err := file.Write(out); err != nil {
		out.Close()
		return nil, fmt.Errorf("write output: %w", err)
	}
	if err := out.Close(); err != nil {
		return nil, fmt.Errorf("close output: %w", err)
	}

	logging.Debug("%s: %d code bytes -> %s", src, len(codes), file.Format.String())
	logging.Elapsed("decode "+src, start)

	return &Result{
		Job:       Job{Mode: ModeDecode, Input: src, Output: dst, Channels: channels, SampleRate: sampleRate},
		Samples:   len(file.Data) / 2,
		CodeBytes: len(codes),
		Dropped:   dropped,
		Elapsed:   time.Since(start),
	}, nil
}
