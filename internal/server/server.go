// Package server exposes a store over HTTP: point reads and writes, range
// scans and client-held snapshots.
package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/eigerco/kvrange/pkg/config"
	"github.com/eigerco/kvrange/pkg/db"
	"github.com/eigerco/kvrange/pkg/log"
	"github.com/eigerco/kvrange/pkg/metrics"
	"github.com/eigerco/kvrange/pkg/scan"
)

const (
	contentTypeJSON        = "application/json"
	defaultShutdownTimeout = 5 * time.Second

	// MaxValueSize bounds the body of a PUT.
	MaxValueSize = 16 << 20
)

var ErrBadRequest = errors.New("server: bad request")

// Server is the HTTP API of a store. Scans without a snapshot read the live
// store.
type Server struct {
	store     db.KVStore
	limits    config.ScanConfig
	snapshots *snapshots

	addr       string
	listener   net.Listener
	httpServer *http.Server
}

func New(store db.KVStore, addr string, limits config.ScanConfig) *Server {
	return &Server{
		store:     store,
		limits:    limits,
		snapshots: newSnapshots(),
		addr:      addr,
	}
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: time.Second,
	}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Server.Error().Err(err).Msg("HTTP server error")
		}
	}()

	log.Server.Info().Str("addr", ln.Addr().String()).Msg("HTTP server started")
	return nil
}

// Addr returns the bound address once started, the configured one before.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Stop shuts the HTTP server down and releases every client snapshot.
func (s *Server) Stop() error {
	var errs []error
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown HTTP server: %w", err))
		}
	}
	if err := s.snapshots.closeAll(); err != nil {
		errs = append(errs, fmt.Errorf("failed to release snapshots: %w", err))
	}
	return errors.Join(errs...)
}

// Handler returns the router of the API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Put("/kv/{key}", s.handlePut)
		r.Get("/kv/{key}", s.handleGet)
		r.Delete("/kv/{key}", s.handleDelete)
		r.Get("/scan", s.handleScan)
		r.Post("/snapshots", s.handleCreateSnapshot)
		r.Delete("/snapshots/{id}", s.handleDeleteSnapshot)
	})
	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		log.Server.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("took", time.Since(start)).
			Msg("request")
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Server.Warn().Err(err).Msg("error encoding response")
	}
}

// writeError maps err to a status code.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrBadRequest), errors.Is(err, db.ErrInvalidKey):
		status = http.StatusBadRequest
	case errors.Is(err, db.ErrNotFound), errors.Is(err, ErrUnknownSnapshot):
		status = http.StatusNotFound
	case errors.Is(err, db.ErrClosed):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		log.Server.Error().Err(err).Msg("request failed")
	}
	writeJSON(w, status, NewErrorResponse(err.Error()))
}

// keyParam returns the decoded {key} of the route. chi matches on the escaped
// path when the request carries one, so the parameter may still be escaped.
func keyParam(r *http.Request) ([]byte, error) {
	key := chi.URLParam(r, "key")
	if r.URL.RawPath != "" {
		var err error
		if key, err = url.PathUnescape(key); err != nil {
			return nil, fmt.Errorf("%w: key: %v", ErrBadRequest, err)
		}
	}
	if key == "" {
		return nil, fmt.Errorf("%w: missing key", ErrBadRequest)
	}
	return []byte(key), nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, NewOKResponse())
}

func (s *Server) handlePut(w http.ResponseWriter, r *http.Request) {
	key, err := keyParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	value, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxValueSize))
	if err != nil {
		writeError(w, fmt.Errorf("%w: body: %v", ErrBadRequest, err))
		return
	}
	if err := s.store.Put(key, value); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, NewSuccessResponse())
}

// handleGet reads the live store, or the snapshot named by ?snapshot=.
func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	key, err := keyParam(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var reader db.Reader = s.store
	if id := r.URL.Query().Get("snapshot"); id != "" {
		if reader, err = s.snapshots.get(id); err != nil {
			writeError(w, err)
			return
		}
	}

	value, err := reader.Get(key)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, NewValueResponse(value))
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	key, err := keyParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.store.Delete(key); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, NewSuccessResponse())
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	opts, err := s.scanOptions(r.URL.Query())
	if err != nil {
		writeError(w, err)
		return
	}

	var view db.View = s.store
	if id := r.URL.Query().Get("snapshot"); id != "" {
		if view, err = s.snapshots.get(id); err != nil {
			writeError(w, err)
			return
		}
	}

	seq, err := scan.NewWithOptions(view, opts)
	if err != nil {
		writeError(w, err)
		return
	}
	entries, err := seq.Collect()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, NewScanResponse(entries))
}

// scanOptions reads from, to, prefix, limit and reverse. A missing limit
// takes the configured default; every limit is capped by the configured max.
//
// Bounds are taken as raw query strings unless encoding=base64, in which case
// they are standard base64 like the keys of a scan response, so any key read
// back can be used as the next bound.
func (s *Server) scanOptions(q url.Values) (scan.Options, error) {
	o := scan.NewOptions(scan.Limit(s.limits.DefaultLimit))

	decode := func(v string) ([]byte, error) { return []byte(v), nil }
	switch enc := q.Get("encoding"); enc {
	case "", "raw":
	case "base64":
		decode = base64.StdEncoding.DecodeString
	default:
		return scan.Options{}, fmt.Errorf("%w: unknown encoding %q", ErrBadRequest, enc)
	}
	for name, bound := range map[string]*[]byte{"from": &o.From, "to": &o.To, "prefix": &o.Prefix} {
		if !q.Has(name) {
			continue
		}
		b, err := decode(q.Get(name))
		if err != nil {
			return scan.Options{}, fmt.Errorf("%w: %s: %v", ErrBadRequest, name, err)
		}
		*bound = b
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			return scan.Options{}, fmt.Errorf("%w: limit: %v", ErrBadRequest, err)
		}
		o.Limit = limit
	}
	if v := q.Get("reverse"); v != "" {
		reverse, err := strconv.ParseBool(v)
		if err != nil {
			return scan.Options{}, fmt.Errorf("%w: reverse: %v", ErrBadRequest, err)
		}
		o.Reverse = reverse
	}
	return o.Clamp(s.limits.MaxLimit), nil
}

func (s *Server) handleCreateSnapshot(w http.ResponseWriter, _ *http.Request) {
	id, err := s.snapshots.create(s.store)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, NewIDResponse(id.String()))
}

func (s *Server) handleDeleteSnapshot(w http.ResponseWriter, r *http.Request) {
	if err := s.snapshots.release(chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, NewSuccessResponse())
}
