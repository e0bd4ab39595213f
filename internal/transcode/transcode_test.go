package transcode

import (
	"bytes"
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kulaginds/imaadpcm/internal/adpcm"
	"github.com/kulaginds/imaadpcm/internal/wav"
)

func tone(frames, channels int) []int16 {
	out := make([]int16, frames*channels)
	for i := range out {
		f := i / channels
		out[i] = int16(9000 * math.Sin(2*math.Pi*float64(f)/float64(50+10*(i%channels))))
	}
	return out
}

func writeWave(t *testing.T, dir, name string, samples []int16, channels, rate int) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, wav.NewPCM(samples, channels, rate).Write(&buf))

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
	return path
}

func TestEncodeWave(t *testing.T) {
	samples := tone(1001, 2)
	var buf bytes.Buffer
	require.NoError(t, wav.NewPCM(samples, 2, 32000).Write(&buf))

	enc, err := EncodeWave(buf.Bytes())
	require.NoError(t, err)

	want, err := adpcm.Encode(samples, 2)
	require.NoError(t, err)

	assert.Equal(t, want, enc.Codes)
	assert.Equal(t, adpcm.Stereo, enc.Layout)
	assert.Equal(t, 32000, enc.SampleRate)
	assert.Equal(t, 32000, enc.ByteRate())
	assert.Equal(t, 0, enc.Dropped)
}

func TestEncodeWave_Errors(t *testing.T) {
	_, err := EncodeWave([]byte("not a wave file"))
	assert.ErrorIs(t, err, wav.ErrNotRIFF)
}

func TestDecodeWave(t *testing.T) {
	_, _, err := DecodeWave([]byte{1, 2, 3}, 3, 22050)
	assert.ErrorIs(t, err, adpcm.ErrUnsupportedChannelLayout)

	_, _, err = DecodeWave(nil, 2, 22050)
	assert.ErrorIs(t, err, ErrEmptyInput)

	_, _, err = DecodeWave([]byte{1, 2, 3}, 4, 1<<30)
	assert.ErrorIs(t, err, wav.ErrSampleRateRange)

	file, dropped, err := DecodeWave(make([]byte, adpcm.QuadBlockSize+10), 4, 44100)
	require.NoError(t, err)
	assert.Equal(t, 10, dropped)
	assert.Len(t, file.Samples(), adpcm.QuadBlockSize*2)
	assert.Equal(t, uint16(4), file.Format.Channels)
	assert.Equal(t, uint32(44100), file.Format.SamplesPerSec)
}

func TestEncodeDecodeFiles(t *testing.T) {
	for _, channels := range []int{1, 2, 4} {
		t.Run(adpcm.Layout(channels).String(), func(t *testing.T) {
			dir := t.TempDir()
			samples := tone(3000, channels)
			src := writeWave(t, dir, "in.wav", samples, channels, 22050)
			codesPath := filepath.Join(dir, "out.adpcm")
			decodedPath := filepath.Join(dir, "decoded.wav")

			res, err := EncodeFile(context.Background(), src, codesPath)
			require.NoError(t, err)
			assert.Equal(t, len(samples), res.Samples)
			assert.Equal(t, channels, res.Job.Channels)

			codes, err := os.ReadFile(codesPath)
			require.NoError(t, err)
			assert.Len(t, codes, res.CodeBytes)

			res, err = DecodeFile(context.Background(), codesPath, decodedPath, channels, 22050)
			require.NoError(t, err)
			assert.Equal(t, len(samples), res.Samples)

			f, err := os.Open(decodedPath)
			require.NoError(t, err)
			defer f.Close()

			decoded, err := wav.Read(f)
			require.NoError(t, err)
			assert.Equal(t, uint16(channels), decoded.Format.Channels)

			want, err := adpcm.Decode(codes, channels)
			require.NoError(t, err)
			assert.Equal(t, want, decoded.Samples())
		})
	}
}

func TestEncodeFile_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := EncodeFile(context.Background(), filepath.Join(dir, "missing.wav"), filepath.Join(dir, "out"))
	assert.ErrorContains(t, err, "read input")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	src := writeWave(t, dir, "in.wav", tone(10, 1), 1, 8000)
	_, err = EncodeFile(ctx, src, filepath.Join(dir, "out"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBatch(t *testing.T) {
	dir := t.TempDir()

	var jobs []Job
	for i, channels := range []int{1, 2, 4, 2, 1} {
		name := filepath.Join(dir, string(rune('a'+i)))
		src := writeWave(t, dir, filepath.Base(name)+".wav", tone(500+i, channels), channels, 16000)
		jobs = append(jobs, Job{Mode: ModeEncode, Input: src, Output: name + ".adpcm"})
	}

	results, err := Batch(context.Background(), jobs, 3)
	require.NoError(t, err)
	require.Len(t, results, len(jobs))

	for i, res := range results {
		require.NotNil(t, res)
		assert.Equal(t, jobs[i].Input, res.Job.Input)
		_, err := os.Stat(jobs[i].Output)
		assert.NoError(t, err)
	}
}

func TestBatch_DecodeJobs(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in.adpcm")
	require.NoError(t, os.WriteFile(src, []byte{0x07, 0x70, 0x77}, 0o600))

	jobs := []Job{
		{Mode: ModeDecode, Input: src, Output: filepath.Join(dir, "mono.wav"), Channels: 1, SampleRate: 8000},
		{Mode: ModeDecode, Input: src, Output: filepath.Join(dir, "stereo.wav"), Channels: 2, SampleRate: 8000},
	}

	results, err := Batch(context.Background(), jobs, 0)
	require.NoError(t, err)
	assert.Equal(t, 6, results[0].Samples)
	assert.Equal(t, 6, results[1].Samples)
}

func TestBatch_StopsOnFailure(t *testing.T) {
	dir := t.TempDir()
	jobs := []Job{
		{Mode: ModeEncode, Input: filepath.Join(dir, "missing.wav"), Output: filepath.Join(dir, "x")},
	}

	_, err := Batch(context.Background(), jobs, 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "encode")
	assert.Contains(t, err.Error(), "missing.wav")
}
