// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package emulator

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MKhiriev/go-firesync/internal/auth"
	"github.com/MKhiriev/go-firesync/internal/logger"
	"github.com/MKhiriev/go-firesync/internal/utils"
)

const (
	pathSuffix      = ".json"
	maxBodySize     = 16 << 20
	eventStreamType = "text/event-stream"

	etagRequestHeader = "X-Firebase-ETag"
	ifMatchHeader     = "if-match"
)

// Handler serves the REST and streaming API over a Tree.
type Handler struct {
	tree      *Tree
	secret    string
	keepAlive time.Duration

	streamsMu sync.Mutex
	streams   map[*streamConn]struct{}

	logger *logger.Logger
}

func NewHandler(tree *Tree, secret string, keepAlive time.Duration, log *logger.Logger) *Handler {
	log.Info().Msg("emulator handler created")
	return &Handler{
		tree:      tree,
		secret:    secret,
		keepAlive: keepAlive,
		streams:   make(map[*streamConn]struct{}),
		logger:    log,
	}
}

func (h *Handler) Init() *chi.Mux {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(h.withTraceID, h.withLogging, h.withGZip, h.auth)

	router.Get("/*", h.get)
	router.Put("/*", h.put)
	router.Post("/*", h.post)
	router.Patch("/*", h.patch)
	router.Delete("/*", h.delete)

	return router
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	path, f, ok := h.target(w, r)
	if !ok {
		return
	}

	if strings.Contains(r.Header.Get("Accept"), eventStreamType) {
		h.stream(w, r, path, f)
		return
	}
	value := h.tree.Get(path)
	if r.Header.Get(etagRequestHeader) == "true" {
		w.Header().Set("ETag", etagOf(value))
	}
	h.writeJSON(w, r, f.apply(value), http.StatusOK)
}

func (h *Handler) put(w http.ResponseWriter, r *http.Request) {
	path, _, ok := h.target(w, r)
	if !ok {
		return
	}
	value, ok := h.readBody(w, r)
	if !ok {
		return
	}
	h.conditionalSet(w, r, path, value)
}

func (h *Handler) post(w http.ResponseWriter, r *http.Request) {
	path, _, ok := h.target(w, r)
	if !ok {
		return
	}
	value, ok := h.readBody(w, r)
	if !ok {
		return
	}
	key := h.tree.Push(path, value)
	h.respondWrite(w, r, map[string]string{"name": key})
}

func (h *Handler) patch(w http.ResponseWriter, r *http.Request) {
	path, _, ok := h.target(w, r)
	if !ok {
		return
	}
	value, ok := h.readBody(w, r)
	if !ok {
		return
	}
	children, isObject := value.(map[string]any)
	if !isObject {
		h.writeError(w, r, ErrInvalidData)
		return
	}
	h.respondWrite(w, r, h.tree.Update(path, children))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	path, _, ok := h.target(w, r)
	if !ok {
		return
	}
	h.conditionalSet(w, r, path, nil)
}

// conditionalSet stores value at path. A write carrying if-match is applied
// only when the tag matches the current value; otherwise the current value
// and its tag are returned with 412.
func (h *Handler) conditionalSet(w http.ResponseWriter, r *http.Request, path string, value any) {
	expected := r.Header.Get(ifMatchHeader)
	if expected == "" {
		h.respondWrite(w, r, h.tree.Set(path, value))
		return
	}

	stored, ok := h.tree.SetIf(path, value, func(current any) bool {
		return etagOf(current) == expected
	})
	if !ok {
		logger.FromRequest(r).Warn().Str("path", path).Err(ErrPreconditionFailed).Send()
		w.Header().Set("ETag", etagOf(stored))
		h.writeJSON(w, r, stored, statusFromError(ErrPreconditionFailed))
		return
	}
	w.Header().Set("ETag", etagOf(stored))
	h.respondWrite(w, r, stored)
}

func etagOf(value any) string {
	data, err := json.Marshal(value)
	if err != nil {
		data = []byte("null")
	}
	return utils.ETag(data)
}

// target extracts the tree path and the query filter of r.
func (h *Handler) target(w http.ResponseWriter, r *http.Request) (string, *filter, bool) {
	if !strings.HasSuffix(r.URL.Path, pathSuffix) {
		h.writeError(w, r, ErrInvalidPath)
		return "", nil, false
	}

	f, err := parseFilter(r.URL.Query())
	if err != nil {
		h.writeError(w, r, err)
		return "", nil, false
	}
	return strings.TrimSuffix(r.URL.Path, pathSuffix), f, true
}

func (h *Handler) readBody(w http.ResponseWriter, r *http.Request) (any, bool) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		h.writeError(w, r, err)
		return nil, false
	}

	var value any
	if err = json.Unmarshal(body, &value); err != nil {
		h.writeError(w, r, ErrInvalidData)
		return nil, false
	}
	return value, true
}

func (h *Handler) respondWrite(w http.ResponseWriter, r *http.Request, data any) {
	if r.URL.Query().Get("print") == "silent" {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	h.writeJSON(w, r, data, http.StatusOK)
}

func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, data any, status int) {
	if _, err := utils.WriteJSON(w, data, status); err != nil {
		logger.FromRequest(r).Err(err).Str("func", "Handler.writeJSON").Send()
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	logger.FromRequest(r).Err(err).Str("path", r.URL.Path).Msg("request rejected")
	h.writeJSON(w, r, map[string]string{"error": err.Error()}, statusFromError(err))
}

// auth rejects requests without a valid token when the emulator has a
// secret. The token is read from the auth or access_token parameter and is
// either the secret itself or a token signed with it.
func (h *Handler) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.secret == "" {
			next.ServeHTTP(w, r)
			return
		}

		token := r.URL.Query().Get("auth")
		if token == "" {
			token = r.URL.Query().Get("access_token")
		}
		if _, err := auth.VerifyToken(token, h.secret); err != nil {
			h.writeError(w, r, errors.Join(ErrPermissionDenied, err))
			return
		}
		next.ServeHTTP(w, r)
	})
}
