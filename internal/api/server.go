// Package api serves the optical bench over HTTP. Read endpoints are
// public; mutating endpoints require a bearer token. Bench events
// stream out over SSE at /api/v1/events.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"

	"github.com/lensworks/raybench/internal/archive"
	"github.com/lensworks/raybench/internal/logging"
	"github.com/lensworks/raybench/internal/observability"
	"github.com/lensworks/raybench/internal/state"
)

const (
	requestIDHeader = "X-Request-Id"
	maxEventStreams = 8
)

// Config wires the server's collaborators. Bench is required; Store
// and Metrics are optional.
type Config struct {
	Bench   *state.BenchState
	Store   *archive.Store
	Metrics *observability.BenchCollector
	Log     logging.Logger

	// AuthToken guards mutating routes. Empty disables them outright.
	AuthToken string
}

// Server exposes one bench state over HTTP.
type Server struct {
	bench   *state.BenchState
	store   *archive.Store
	metrics *observability.BenchCollector
	log     logging.Logger
	token   string

	sseConns int32
}

// NewServer validates the configuration and builds a server.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Bench == nil {
		return nil, errors.New("api: nil bench state")
	}
	log := cfg.Log
	if log == nil {
		log = logging.Noop()
	}
	return &Server{
		bench:   cfg.Bench,
		store:   cfg.Store,
		metrics: cfg.Metrics,
		log:     log,
		token:   cfg.AuthToken,
	}, nil
}

// Handler builds the route table. The caller owns the http.Server that
// serves it.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Bench state.
	mux.Handle("/api/v1/system", s.route("system", s.handleSystem))
	mux.Handle("/api/v1/operators", s.route("operators", s.handleOperators))
	mux.Handle("/api/v1/operators/", s.route("operator", s.handleOperatorByLabel))
	mux.Handle("/api/v1/source", s.route("source", s.handleSource))
	mux.Handle("/api/v1/screen", s.route("screen", s.handleScreen))
	mux.Handle("/api/v1/fill", s.route("fill", s.handleFill))
	mux.Handle("/api/v1/trace", s.route("trace", s.handleTrace))

	// Archived sessions.
	mux.Handle("/api/v1/sessions", s.route("sessions", s.handleSessions))
	mux.Handle("/api/v1/sessions/", s.route("session", s.handleSessionByID))

	// Event stream.
	mux.Handle("/api/v1/events", s.route("events", s.handleEvents))

	// Operational endpoints.
	mux.Handle("/healthz", s.route("healthz", s.handleHealthz))
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics.Handler())
	} else {
		mux.Handle("/metrics", promhttp.Handler())
	}

	return mux
}

// route wraps a handler with per-route metrics, request-scoped logging
// and a server span.
func (s *Server) route(name string, h http.HandlerFunc) http.Handler {
	wrapped := s.withRequestContext(name, s.spanned(name, h))
	if s.metrics != nil {
		return s.metrics.InstrumentHandler(name, wrapped)
	}
	return wrapped
}

// withRequestContext sources a request id from the X-Request-Id header
// or mints one, attaches a per-request logger to the context, and
// echoes the id back to the client.
func (s *Server) withRequestContext(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if incoming := r.Header.Get(requestIDHeader); incoming != "" {
			ctx = logging.ContextWithRequestID(ctx, incoming)
		}
		ctx, reqLog := logging.WithRequestLogger(ctx, s.log.With(
			logging.String("route", route),
			logging.String("method", r.Method),
		))
		ctx = logging.ContextWithLogger(ctx, reqLog)
		w.Header().Set(requestIDHeader, logging.RequestIDFromContext(ctx))
		next(w, r.WithContext(ctx))
	}
}

// authorized gates mutating requests behind the bearer token. An empty
// configured token disables mutation.
func (s *Server) authorized(w http.ResponseWriter, r *http.Request) bool {
	if s.token == "" {
		http.Error(w, "mutating endpoints disabled (no auth token configured)", http.StatusForbidden)
		return false
	}
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") || strings.TrimPrefix(auth, "Bearer ") != s.token {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return false
	}
	return true
}

func (s *Server) handleSystem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, systemView(s.bench.Snapshot()))
}

func (s *Server) handleOperators(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.authorized(w, r) {
		return
	}

	var payload OperatorPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	spec, err := payload.spec()
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	snap, err := s.bench.AddOperator(spec)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, operatorView(snap))
}

func (s *Server) handleOperatorByLabel(w http.ResponseWriter, r *http.Request) {
	label := strings.TrimPrefix(r.URL.Path, "/api/v1/operators/")
	if label == "" {
		http.Error(w, "missing operator label", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodDelete:
		if !s.authorized(w, r) {
			return
		}
		if err := s.bench.RemoveOperator(label); err != nil {
			s.writeError(r.Context(), w, err)
			return
		}
		writeJSON(w, map[string]string{"removed": label})

	case http.MethodPatch:
		if !s.authorized(w, r) {
			return
		}
		var patch OperatorPatch
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		snap, err := s.bench.UpdateOperator(label, patch.update())
		if err != nil {
			s.writeError(r.Context(), w, err)
			return
		}
		writeJSON(w, operatorView(snap))

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleSource(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.authorized(w, r) {
		return
	}

	var payload SourcePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	snap, err := s.bench.SetSource(payload.spec())
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, sourceView(snap))
}

func (s *Server) handleScreen(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.authorized(w, r) {
		return
	}

	var payload ScreenPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	snap, err := s.bench.SetScreen(payload.spec())
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, screenView(snap))
}

func (s *Server) handleFill(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.authorized(w, r) {
		return
	}

	ctx, span := startChildSpan(r.Context(), "bench.fill")
	err := s.bench.Fill()
	if err != nil {
		span.RecordError(err)
	}
	span.End()
	if err != nil {
		s.writeError(ctx, w, err)
		return
	}
	writeJSON(w, systemView(s.bench.Snapshot()))
}

func (s *Server) handleTrace(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.authorized(w, r) {
		return
	}

	var payload TracePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	ctx, span := startChildSpan(r.Context(), "bench.trace",
		attribute.Int("workers", payload.Workers),
		attribute.Bool("archive", payload.Archive),
	)
	res, err := s.bench.RunTrace(ctx, state.TraceRequest{
		Workers: payload.Workers,
		Archive: payload.Archive,
	})
	if err != nil {
		span.RecordError(err)
		span.End()
		s.writeError(ctx, w, err)
		return
	}
	span.SetAttributes(
		attribute.String("session_id", res.SessionID),
		attribute.Int("rays", len(res.Traces)),
	)
	span.End()

	writeJSON(w, traceResponse(res))
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.store == nil {
		http.Error(w, "archive not configured", http.StatusServiceUnavailable)
		return
	}

	sums, err := s.store.ListSessions(r.Context())
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	views := make([]SessionView, 0, len(sums))
	for _, sum := range sums {
		views = append(views, sessionView(sum))
	}
	writeJSON(w, views)
}

func (s *Server) handleSessionByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.store == nil {
		http.Error(w, "archive not configured", http.StatusServiceUnavailable)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/sessions/")
	if id == "" {
		http.Error(w, "missing session id", http.StatusBadRequest)
		return
	}

	session, err := s.store.Session(r.Context(), id)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, SessionDetail{
		SessionView: sessionView(session.SessionSummary),
		Traces:      traceViews(session.Traces),
	})
}

// handleEvents streams bench events over SSE. Events the client cannot
// keep up with are dropped rather than blocking bench mutators.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	current := atomic.AddInt32(&s.sseConns, 1)
	if current > maxEventStreams {
		atomic.AddInt32(&s.sseConns, -1)
		http.Error(w, "too many event streams", http.StatusServiceUnavailable)
		return
	}
	defer atomic.AddInt32(&s.sseConns, -1)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	ch := make(chan state.Event, 16)
	unsubscribe := s.bench.Subscribe(func(ev state.Event) {
		select {
		case ch <- ev:
		default:
		}
	})
	defer unsubscribe()

	ctx := r.Context()
	reqLog := logging.LoggerFromContext(ctx)
	if reqLog == nil {
		reqLog = s.log
	}
	reqLog.Debug(ctx, "event stream opened", logging.Int("streams", int(current)))

	fmt.Fprintf(w, ": connected\n\n")
	flusher.Flush()

	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case ev := <-ch:
			writeSSEEvent(w, ev)
			flusher.Flush()
		case <-heartbeat.C:
			fmt.Fprintf(w, ": heartbeat\n\n")
			flusher.Flush()
		case <-ctx.Done():
			reqLog.Debug(ctx, "event stream closed")
			return
		}
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.store.Ping(ctx); err != nil {
			http.Error(w, "archive unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

// writeError logs the failure on the request logger and writes the
// mapped status with the error text as body.
func (s *Server) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	code := httpStatus(err)
	log := logging.LoggerFromContext(ctx)
	if log == nil {
		log = s.log
	}
	if code >= http.StatusInternalServerError {
		log.Error(ctx, "request failed", logging.Err(err), logging.Int("status", code))
	} else {
		log.Debug(ctx, "request rejected", logging.Err(err), logging.Int("status", code))
	}
	http.Error(w, err.Error(), code)
}

// httpStatus maps service errors onto HTTP status codes.
func httpStatus(err error) int {
	switch {
	case errors.Is(err, state.ErrOperatorNotFound),
		errors.Is(err, archive.ErrSessionNotFound):
		return http.StatusNotFound

	case errors.Is(err, state.ErrOperatorExists),
		errors.Is(err, state.ErrLabelCollision),
		errors.Is(err, state.ErrAmbiguousLabel):
		return http.StatusConflict

	case errors.Is(err, state.ErrOperatorInvalid),
		errors.Is(err, state.ErrInvalidValue),
		errors.Is(err, state.ErrUnknownKind):
		return http.StatusBadRequest

	default:
		return http.StatusInternalServerError
	}
}

// writeSSEEvent writes a single event in SSE wire format.
func writeSSEEvent(w http.ResponseWriter, ev state.Event) {
	data, err := json.Marshal(eventView(ev))
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
