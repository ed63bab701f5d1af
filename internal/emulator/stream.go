package emulator

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/MKhiriev/go-firesync/internal/logger"
)

// Control events ending a stream.
const (
	EventCancel      = "cancel"
	EventAuthRevoked = "auth_revoked"
	eventKeepAlive   = "keep-alive"
)

type streamConn struct {
	control chan string
}

type streamPayload struct {
	Path string `json:"path"`
	Data any    `json:"data"`
}

// stream serves path as server-sent events: a put of the current value
// followed by every change until the client goes away or the stream is
// ended by CancelStreams or RevokeAuth.
func (h *Handler) stream(w http.ResponseWriter, r *http.Request, path string, f *filter) {
	log := logger.FromRequest(r)

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.writeError(w, r, errors.New("streaming is not supported by the response writer"))
		return
	}

	// watch before the snapshot so that no change falls in between
	changes, stopWatch := h.tree.Watch(path)
	defer stopWatch()

	conn := &streamConn{control: make(chan string, 1)}
	h.register(conn)
	defer h.unregister(conn)

	w.Header().Set("Content-Type", eventStreamType)
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	if err := writeEvent(w, "put", streamPayload{Path: "/", Data: f.apply(h.tree.Get(path))}); err != nil {
		log.Err(err).Str("func", "Handler.stream").Send()
		return
	}
	flusher.Flush()

	var keepAlive <-chan time.Time
	if h.keepAlive > 0 {
		t := time.NewTicker(h.keepAlive)
		defer t.Stop()
		keepAlive = t.C
	}

	snapshot := func(key string) any {
		return h.tree.Get(path + "/" + key)
	}

	for {
		var err error
		select {
		case <-r.Context().Done():
			return
		case event := <-conn.control:
			if err = writeEvent(w, event, nil); err == nil {
				flusher.Flush()
			}
			log.Info().Str("event", event).Str("path", path).Msg("stream ended by the emulator")
			return
		case c, ok := <-changes:
			if !ok {
				log.Warn().Str("path", path).Msg("stream client fell behind")
				return
			}
			var keep bool
			if c, keep = f.filterChange(c, snapshot); !keep {
				continue
			}
			err = writeEvent(w, c.Event, streamPayload{Path: c.Path, Data: c.Data})
		case <-keepAlive:
			err = writeEvent(w, eventKeepAlive, nil)
		}

		if err != nil {
			log.Err(err).Str("func", "Handler.stream").Send()
			return
		}
		flusher.Flush()
	}
}

func writeEvent(w io.Writer, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}

// CancelStreams ends every open stream with a cancel event.
func (h *Handler) CancelStreams() {
	h.broadcast(EventCancel)
}

// RevokeAuth ends every open stream with an auth_revoked event.
func (h *Handler) RevokeAuth() {
	h.broadcast(EventAuthRevoked)
}

// OpenStreams returns the number of connected stream clients.
func (h *Handler) OpenStreams() int {
	h.streamsMu.Lock()
	defer h.streamsMu.Unlock()
	return len(h.streams)
}

func (h *Handler) broadcast(event string) {
	h.streamsMu.Lock()
	defer h.streamsMu.Unlock()

	for conn := range h.streams {
		select {
		case conn.control <- event:
		default:
		}
	}
}

func (h *Handler) register(conn *streamConn) {
	h.streamsMu.Lock()
	h.streams[conn] = struct{}{}
	h.streamsMu.Unlock()
}

func (h *Handler) unregister(conn *streamConn) {
	h.streamsMu.Lock()
	delete(h.streams, conn)
	h.streamsMu.Unlock()
}
