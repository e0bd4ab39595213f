// Package handler exposes the codec over HTTP and websocket. Every request or
// message is transformed as a whole buffer with fresh codec state.
package handler

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/kulaginds/imaadpcm/internal/adpcm"
	"github.com/kulaginds/imaadpcm/internal/config"
	"github.com/kulaginds/imaadpcm/internal/logging"
	"github.com/kulaginds/imaadpcm/internal/transcode"
	"github.com/kulaginds/imaadpcm/internal/wav"
)

const (
	opEncode = "encode"
	opDecode = "decode"

	encodingZstd = "zstd"

	contentTypeCodes = "application/octet-stream"
	contentTypeWave  = "audio/wav"
)

// Response headers describing a code stream
const (
	HeaderChannels   = "X-Adpcm-Channels"
	HeaderSampleRate = "X-Adpcm-Sample-Rate"
	HeaderByteRate   = "X-Adpcm-Byte-Rate"
	HeaderBlockAlign = "X-Adpcm-Block-Align"
	HeaderDropped    = "X-Adpcm-Dropped"
)

var errBadParameter = errors.New("bad parameter")

// Handler serves the transcoding endpoints.
type Handler struct {
	codec          config.CodecConfig
	allowedOrigins []string
	metrics        *Metrics
	zenc           *zstd.Encoder
	zdec           *zstd.Decoder
}

// New builds a Handler from the loaded configuration. metrics may be nil.
func New(cfg *config.Config, metrics *Metrics) (*Handler, error) {
	zenc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	zdec, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(uint64(cfg.Codec.MaxBodyBytes)))
	if err != nil {
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}

	return &Handler{
		codec:          cfg.Codec,
		allowedOrigins: cfg.Server.AllowedOrigins,
		metrics:        metrics,
		zenc:           zenc,
		zdec:           zdec,
	}, nil
}

// Close releases the compression workers.
func (h *Handler) Close() {
	h.zenc.Close()
	h.zdec.Close()
}

// Register mounts the endpoints on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/encode", h.Encode)
	mux.HandleFunc("/decode", h.Decode)
	mux.HandleFunc("/ws", h.WebSocket)
}

// Encode accepts a WAVE body and replies with the raw code stream.
func (h *Handler) Encode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, ok := h.readBody(w, r)
	if !ok {
		return
	}

	enc, err := h.encode(body)
	if err != nil {
		writeCodecError(w, err)
		return
	}

	w.Header().Set(HeaderChannels, strconv.Itoa(enc.Layout.Channels()))
	w.Header().Set(HeaderSampleRate, strconv.Itoa(enc.SampleRate))
	w.Header().Set(HeaderByteRate, strconv.Itoa(enc.ByteRate()))
	w.Header().Set(HeaderBlockAlign, strconv.Itoa(enc.Layout.CodeBlockAlign()))
	w.Header().Set(HeaderDropped, strconv.Itoa(enc.Dropped))
	h.writePayload(w, r, contentTypeCodes, enc.Codes)
}

// Decode accepts a raw code stream body and replies with a PCM WAVE file.
// The stream carries no header, so channels and rate come from the query
// string or the configured defaults.
func (h *Handler) Decode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	channels, rate, err := h.streamParams(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	body, ok := h.readBody(w, r)
	if !ok {
		return
	}

	out, dropped, err := h.decode(body, channels, rate)
	if err != nil {
		writeCodecError(w, err)
		return
	}

	w.Header().Set(HeaderDropped, strconv.Itoa(dropped))
	h.writePayload(w, r, contentTypeWave, out)
}

func (h *Handler) encode(body []byte) (*transcode.Encoded, error) {
	start := time.Now()
	enc, err := transcode.EncodeWave(body)

	var layout string
	out := 0
	if enc != nil {
		layout = enc.Layout.String()
		out = len(enc.Codes)
		if enc.Dropped > 0 {
			logging.Warn("encode: dropped %d trailing samples", enc.Dropped)
		}
	}
	h.metrics.observe(opEncode, layout, len(body), out, start, err)
	return enc, err
}

func (h *Handler) decode(body []byte, channels, rate int) ([]byte, int, error) {
	start := time.Now()
	file, dropped, err := transcode.DecodeWave(body, channels, rate)

	var buf bytes.Buffer
	if err == nil {
		if dropped > 0 {
			logging.Warn("decode: ignored %d trailing bytes", dropped)
		}
		buf.Grow(len(file.Data) + 64)
		err = file.Write(&buf)
	}

	h.metrics.observe(opDecode, layoutLabel(channels), len(body), buf.Len(), start, err)
	if err != nil {
		return nil, 0, err
	}
	return buf.Bytes(), dropped, nil
}

func (h *Handler) streamParams(r *http.Request) (int, int, error) {
	q := r.URL.Query()

	channels := h.codec.Channels
	if v := q.Get("channels"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, 0, fmt.Errorf("%w: channels %q", errBadParameter, v)
		}
		channels = n
	}

	rate := h.codec.SampleRate
	if v := q.Get("rate"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, 0, fmt.Errorf("%w: rate %q", errBadParameter, v)
		}
		rate = n
	}
	if err := wav.CheckSampleRate(rate, channels); err != nil {
		return 0, 0, fmt.Errorf("%w: %v", errBadParameter, err)
	}

	return channels, rate, nil
}

// readBody reads the whole request body, undoing zstd content encoding. It
// writes the error response itself and reports whether the caller may go on.
func (h *Handler) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.codec.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
			return nil, false
		}
		http.Error(w, "read body: "+err.Error(), http.StatusBadRequest)
		return nil, false
	}

	if strings.EqualFold(r.Header.Get("Content-Encoding"), encodingZstd) {
		body, err = h.zdec.DecodeAll(body, nil)
		if err != nil {
			http.Error(w, "zstd body: "+err.Error(), http.StatusBadRequest)
			return nil, false
		}
	}

	return body, true
}

func (h *Handler) writePayload(w http.ResponseWriter, r *http.Request, contentType string, payload []byte) {
	if acceptsZstd(r.Header.Get("Accept-Encoding")) {
		payload = h.zenc.EncodeAll(payload, nil)
		w.Header().Set("Content-Encoding", encodingZstd)
		w.Header().Add("Vary", "Accept-Encoding")
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(payload); err != nil {
		logging.Debug("write response: %v", err)
	}
}

func acceptsZstd(header string) bool {
	for _, part := range strings.Split(header, ",") {
		name, _, _ := strings.Cut(strings.TrimSpace(part), ";")
		if strings.EqualFold(name, encodingZstd) {
			return true
		}
	}
	return false
}

// layoutLabel keeps metric labels to the supported layouts.
func layoutLabel(channels int) string {
	l, err := adpcm.LayoutFor(channels)
	if err != nil {
		return ""
	}
	return l.String()
}

// All codec failures are caused by the request payload.
func writeCodecError(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), http.StatusBadRequest)
}
