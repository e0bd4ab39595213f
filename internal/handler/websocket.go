package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/kulaginds/imaadpcm/internal/logging"
)

const (
	webSocketReadBufferSize  = 8192
	webSocketWriteBufferSize = 8192 * 2
)

// wsError is sent as a text message when one buffer cannot be transformed.
// The session stays open.
type wsError struct {
	Error string `json:"error"`
}

// WebSocket upgrades the connection and transforms every binary message as
// an independent buffer. mode=encode expects WAVE files and answers with code
// streams; mode=decode expects code streams and answers with WAVE files.
// compress=zstd applies to messages in both directions.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	mode := q.Get("mode")
	if mode == "" {
		mode = opEncode
	}
	if mode != opEncode && mode != opDecode {
		http.Error(w, fmt.Sprintf("%v: mode %q", errBadParameter, mode), http.StatusBadRequest)
		return
	}

	channels, rate, err := h.streamParams(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	compressed := strings.EqualFold(q.Get("compress"), encodingZstd)

	upgrader := websocket.Upgrader{
		ReadBufferSize:  webSocketReadBufferSize,
		WriteBufferSize: webSocketWriteBufferSize,
		CheckOrigin: func(r *http.Request) bool {
			return isAllowedOrigin(r.Header.Get("Origin"), h.allowedOrigins)
		},
	}

	wsConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn("upgrade websocket: %v", err)
		return
	}

	defer func() {
		if err := wsConn.Close(); err != nil {
			logging.Debug("error closing websocket: %v", err)
		}
	}()

	wsConn.SetReadLimit(h.codec.MaxBodyBytes)

	if h.metrics != nil {
		h.metrics.wsSessions.Inc()
		defer h.metrics.wsSessions.Dec()
	}

	logging.Info("websocket session: mode=%s channels=%d rate=%d zstd=%t", mode, channels, rate, compressed)

	for {
		msgType, data, err := wsConn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logging.Debug("error reading message from ws: %v", err)
			}
			return
		}

		if msgType != websocket.BinaryMessage {
			if err := wsConn.WriteJSON(wsError{Error: "binary messages only"}); err != nil {
				return
			}
			continue
		}

		reply, err := h.transformMessage(mode, data, channels, rate, compressed)
		if err != nil {
			if err := wsConn.WriteJSON(wsError{Error: err.Error()}); err != nil {
				return
			}
			continue
		}

		if err := wsConn.WriteMessage(websocket.BinaryMessage, reply); err != nil {
			if !errors.Is(err, websocket.ErrCloseSent) {
				logging.Debug("failed sending message to ws: %v", err)
			}
			return
		}
	}
}

func (h *Handler) transformMessage(mode string, data []byte, channels, rate int, compressed bool) ([]byte, error) {
	if compressed {
		var err error
		if data, err = h.zdec.DecodeAll(data, nil); err != nil {
			return nil, fmt.Errorf("zstd message: %w", err)
		}
	}

	var out []byte
	if mode == opDecode {
		wave, _, err := h.decode(data, channels, rate)
		if err != nil {
			return nil, err
		}
		out = wave
	} else {
		enc, err := h.encode(data)
		if err != nil {
			return nil, err
		}
		out = enc.Codes
	}

	if compressed {
		out = h.zenc.EncodeAll(out, nil)
	}
	return out, nil
}

func isAllowedOrigin(origin string, allowedOrigins []string) bool {
	if origin == "" {
		// non-browser clients send no Origin
		return true
	}

	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}

	// Always allow localhost-style origins for development
	switch u.Hostname() {
	case "localhost", "127.0.0.1", "::1":
		return true
	}

	for _, entry := range allowedOrigins {
		candidate := strings.TrimSuffix(strings.TrimSpace(entry), "/")
		if candidate == "" {
			continue
		}

		// Support allow-list entries with or without scheme
		if strings.Contains(candidate, "://") {
			if c, err := url.Parse(candidate); err == nil && c.Scheme == u.Scheme && c.Host == u.Host {
				return true
			}
			continue
		}
		if candidate == u.Host {
			return true
		}
	}

	return false
}
