// Copyright (c) 2025 Abdallah Elabd
// SPDX-License-Identifier: MIT

// Package server implements biosyncd, the chat sync service behind the
// terminal client.
//
// Endpoints:
//   - POST   /v1/messages           - append a message
//   - PATCH  /v1/messages/{id}      - partial update (seen flags, reaction)
//   - DELETE /v1/messages/{id}      - delete one message (moderation)
//   - DELETE /v1/threads/{handle}   - clear a conversation (moderation)
//   - GET    /v1/messages/stream    - server-sent events, full snapshots
//   - POST   /v1/images             - store an inline image record
//   - GET    /v1/images/{id}        - fetch an inline image record
//   - POST   /v1/blobs              - upload blob bytes, returns URL
//   - GET    /v1/blobs/{id}         - download blob bytes
//   - GET    /health                - health check
//   - GET    /metrics               - Prometheus metrics (optional)
//
// Every mutation triggers a fresh snapshot broadcast to all connected
// streams; clients replace their state wholesale.
package server

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/microcosm-cc/bluemonday"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/crypto/bcrypt"

	"github.com/abdallahelabd/bioterm/internal/config"
	"github.com/abdallahelabd/bioterm/internal/model"
	"github.com/abdallahelabd/bioterm/internal/store"
)

// passcodeHeader authenticates moderation calls. Must match the client.
const passcodeHeader = "X-Bioterm-Passcode"

// maxBodyBytes bounds request bodies; it comfortably fits the attachment
// ceiling plus base64 overhead.
const maxBodyBytes = 8 << 20

// =============================================================================
// SERVER
// =============================================================================

// Server is the biosyncd HTTP server.
type Server struct {
	cfg      config.ServerConfig
	sec      config.SecurityConfig
	storage  *Storage
	router   *mux.Router
	hub      *hub
	limiter  *rateLimiter
	sanitize *bluemonday.Policy
}

// New assembles the server around an open storage.
func New(cfg config.ServerConfig, sec config.SecurityConfig, storage *Storage) *Server {
	s := &Server{
		cfg:     cfg,
		sec:     sec,
		storage: storage,
		hub:     newHub(),
		limiter: newRateLimiter(cfg.RatePerMinute),
		// UGC policy: benign inline markup survives for the client's
		// static-render path, scripts and handlers do not.
		sanitize: bluemonday.UGCPolicy(),
	}
	s.routes()
	return s
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return withRecovery(withLogging(s.limiter.middleware(s.router)))
}

// ListenAndServe runs the server until ctx is canceled, then drains
// connections.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("biosyncd listening", "addr", s.cfg.ListenAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) routes() {
	r := mux.NewRouter()
	r.HandleFunc("/v1/messages", s.handleAppend).Methods(http.MethodPost)
	r.HandleFunc("/v1/messages/stream", s.handleStream).Methods(http.MethodGet)
	r.HandleFunc("/v1/messages/{id}", s.handlePatch).Methods(http.MethodPatch)
	r.HandleFunc("/v1/messages/{id}", s.handleDeleteMessage).Methods(http.MethodDelete)
	r.HandleFunc("/v1/threads/{handle}", s.handleDeleteThread).Methods(http.MethodDelete)
	r.HandleFunc("/v1/images", s.handlePutImage).Methods(http.MethodPost)
	r.HandleFunc("/v1/images/{id}", s.handleGetImage).Methods(http.MethodGet)
	r.HandleFunc("/v1/blobs", s.handlePutBlob).Methods(http.MethodPost)
	r.HandleFunc("/v1/blobs/{id}", s.handleGetBlob).Methods(http.MethodGet)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	if s.cfg.MetricsEnabled {
		r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	}
	s.router = r
}

// =============================================================================
// MESSAGE HANDLERS
// =============================================================================

func (s *Server) handleAppend(w http.ResponseWriter, r *http.Request) {
	var msg model.Message
	if err := decodeJSON(w, r, &msg); err != nil {
		return
	}
	if msg.Author == "" {
		http.Error(w, "author is required", http.StatusBadRequest)
		return
	}

	msg.Body = s.sanitize.Sanitize(msg.Body)
	// Seen state and reactions are never client-supplied at creation.
	msg.SeenByRecipient = false
	msg.SeenByAdmin = false
	msg.Reaction = ""

	stored, err := s.storage.Append(r.Context(), msg)
	if err != nil {
		s.internalError(w, "append", err)
		return
	}
	messageOps.WithLabelValues("append").Inc()
	s.broadcast()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(stored)
}

func (s *Server) handlePatch(w http.ResponseWriter, r *http.Request) {
	var patch model.Patch
	if err := decodeJSON(w, r, &patch); err != nil {
		return
	}

	err := s.storage.ApplyPatch(r.Context(), mux.Vars(r)["id"], patch)
	if errors.Is(err, store.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		s.internalError(w, "patch", err)
		return
	}
	messageOps.WithLabelValues("patch").Inc()
	s.broadcast()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteMessage(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		http.Error(w, "moderation requires the admin passcode", http.StatusForbidden)
		return
	}

	err := s.storage.Delete(r.Context(), mux.Vars(r)["id"])
	if errors.Is(err, store.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		s.internalError(w, "delete", err)
		return
	}
	messageOps.WithLabelValues("delete").Inc()
	s.broadcast()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteThread(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		http.Error(w, "moderation requires the admin passcode", http.StatusForbidden)
		return
	}

	if err := s.storage.DeleteThread(r.Context(), mux.Vars(r)["handle"]); err != nil {
		s.internalError(w, "clear thread", err)
		return
	}
	messageOps.WithLabelValues("clear_thread").Inc()
	s.broadcast()
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// SNAPSHOT STREAM
// =============================================================================

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	id, ch := s.hub.subscribe()
	defer s.hub.unsubscribe(id)
	streamClients.Inc()
	defer streamClients.Dec()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// Seed the new client with the current state.
	snap, err := s.storage.Snapshot(r.Context())
	if err != nil {
		s.internalError(w, "snapshot", err)
		return
	}
	if !writeEvent(w, flusher, snap) {
		return
	}

	keepalive := time.NewTicker(25 * time.Second)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case snap := <-ch:
			if !writeEvent(w, flusher, snap) {
				return
			}
		case <-keepalive.C:
			// SSE comment line keeps proxies from closing the stream.
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, flusher http.Flusher, snap []model.Message) bool {
	buf, err := json.Marshal(snap)
	if err != nil {
		slog.Error("failed to encode snapshot", "error", err)
		return false
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", buf); err != nil {
		return false
	}
	flusher.Flush()
	return true
}

// broadcast pushes the current snapshot to every connected stream.
func (s *Server) broadcast() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	snap, err := s.storage.Snapshot(ctx)
	if err != nil {
		slog.Error("failed to build broadcast snapshot", "error", err)
		return
	}
	s.hub.broadcast(snap)
}

// =============================================================================
// IMAGE HANDLERS
// =============================================================================

type imagePayload struct {
	MIME string `json:"mime"`
	Data string `json:"data"`
}

func (s *Server) handlePutImage(w http.ResponseWriter, r *http.Request) {
	var in imagePayload
	if err := decodeJSON(w, r, &in); err != nil {
		return
	}
	data, err := base64.StdEncoding.DecodeString(in.Data)
	if err != nil {
		http.Error(w, "data is not valid base64", http.StatusBadRequest)
		return
	}

	id, err := s.storage.PutImage(r.Context(), in.MIME, data)
	if err != nil {
		s.internalError(w, "store image", err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]string{"id": id})
}

func (s *Server) handleGetImage(w http.ResponseWriter, r *http.Request) {
	mime, data, err := s.storage.GetImage(r.Context(), mux.Vars(r)["id"])
	if errors.Is(err, store.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		s.internalError(w, "fetch image", err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(imagePayload{
		MIME: mime,
		Data: base64.StdEncoding.EncodeToString(data),
	})
}

func (s *Server) handlePutBlob(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	id, err := s.storage.PutBlob(r.Context(), r.Header.Get("Content-Type"), data)
	if err != nil {
		s.internalError(w, "store blob", err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]string{"url": "/v1/blobs/" + id})
}

func (s *Server) handleGetBlob(w http.ResponseWriter, r *http.Request) {
	mime, data, err := s.storage.GetBlob(r.Context(), mux.Vars(r)["id"])
	if errors.Is(err, store.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		s.internalError(w, "fetch blob", err)
		return
	}
	w.Header().Set("Content-Type", mime)
	w.Write(data)
}

// =============================================================================
// MISC
// =============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// authorized checks the moderation passcode. A bcrypt hash in config takes
// precedence over the plaintext passcode.
func (s *Server) authorized(r *http.Request) bool {
	supplied := r.Header.Get(passcodeHeader)
	if supplied == "" {
		return false
	}
	if s.sec.PasscodeHash != "" {
		return bcrypt.CompareHashAndPassword([]byte(s.sec.PasscodeHash), []byte(supplied)) == nil
	}
	if s.sec.Passcode == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(supplied), []byte(s.sec.Passcode)) == 1
}

func (s *Server) internalError(w http.ResponseWriter, op string, err error) {
	slog.Error("request failed", "op", op, "error", err)
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, out any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(out); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return err
	}
	return nil
}

// =============================================================================
// STREAM HUB
// =============================================================================

// hub fans snapshots out to connected streams. Each client has a one-slot
// channel: a newer snapshot replaces an undelivered one so slow clients
// never build a backlog.
type hub struct {
	mu      sync.Mutex
	clients map[int]chan []model.Message
	next    int
}

func newHub() *hub {
	return &hub{clients: make(map[int]chan []model.Message)}
}

func (h *hub) subscribe() (int, chan []model.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.next
	h.next++
	ch := make(chan []model.Message, 1)
	h.clients[id] = ch
	return id, ch
}

func (h *hub) unsubscribe(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, id)
}

func (h *hub) broadcast(snap []model.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.clients {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}
