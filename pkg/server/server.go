// Package server exposes a tagger over HTTP.
//
// Routes:
//
//	GET /tag/{identifier}/{context}              tag without caching
//	GET /tag/{identifier}/{context}/{namespace}  tag through a cache namespace
//	GET /probe/{namespace}                       report whether a namespace exists
//	GET /healthz                                 liveness
//	GET /metrics                                 Prometheus metrics
//
// Failures are answered with an ErrorBody and a status derived from the
// error: 400 for bad input, 503 when the cache is unavailable and 500
// otherwise. A panic in one request is recovered and never stops the server.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/haivivi/identag/pkg/tagcache"
	"github.com/haivivi/identag/pkg/tagger"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 10 * time.Second
)

// Tagger is the service behind the routes. *tagger.Service implements it.
type Tagger interface {
	Tag(ctx context.Context, req tagger.Request) (*tagger.Result, error)
	Probe(ctx context.Context, namespace string) (bool, error)
}

// Options configures a Server.
type Options struct {
	// Gatherer backs /metrics. Defaults to prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Version is reported by /healthz.
	Version string
}

// Server serves a Tagger over HTTP.
type Server struct {
	addr    string
	svc     Tagger
	logger  *slog.Logger
	version string
	router  chi.Router
}

// ErrorBody is the response to a failed request.
type ErrorBody struct {
	Identifier string   `json:"identifier,omitempty"`
	Tags       []string `json:"tags"`
	Error      string   `json:"error"`
}

// ProbeBody is the response of /probe.
type ProbeBody struct {
	Namespace string `json:"namespace"`
	Exists    bool   `json:"exists"`
}

// New creates a Server listening on addr once Run is called.
func New(addr string, svc Tagger, opts Options) *Server {
	s := &Server{addr: addr, svc: svc, logger: opts.Logger, version: opts.Version}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, s.logRequests, middleware.Recoverer)
	r.Get("/tag/{identifier}/{context}", s.handleTag)
	r.Get("/tag/{identifier}/{context}/{namespace}", s.handleTag)
	r.Get("/probe/{namespace}", s.handleProbe)
	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	s.router = r
	return s
}

// Handler returns the HTTP handler with every route mounted.
func (s *Server) Handler() http.Handler { return s.router }

// Run listens and serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is like Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	errc := make(chan error, 1)
	go func() {
		errc <- srv.Serve(ln)
	}()
	s.logger.Info("server: listening", "addr", ln.Addr().String())

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.logger.Info("server: stopped")
	return nil
}

func (s *Server) handleTag(w http.ResponseWriter, r *http.Request) {
	req := tagger.Request{
		Identifier: pathParam(r, "identifier"),
		Context:    pathParam(r, "context"),
		Namespace:  pathParam(r, "namespace"),
	}
	res, err := s.svc.Tag(r.Context(), req)
	if err != nil {
		s.writeError(w, r, req.Identifier, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleProbe(w http.ResponseWriter, r *http.Request) {
	ns := pathParam(r, "namespace")
	ok, err := s.svc.Probe(r.Context(), ns)
	if err != nil {
		s.writeError(w, r, "", err)
		return
	}
	writeJSON(w, http.StatusOK, ProbeBody{Namespace: ns, Exists: ok})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": s.version})
}

// StatusOf maps an error to its HTTP status.
func StatusOf(err error) int {
	switch {
	case errors.Is(err, tagger.ErrInvalidContext), errors.Is(err, tagcache.ErrInvalidName):
		return http.StatusBadRequest
	case errors.Is(err, tagcache.ErrUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, ident string, err error) {
	status := StatusOf(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("server: request failed", "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, status, ErrorBody{Identifier: ident, Tags: []string{}, Error: err.Error()})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("server: request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// pathParam returns the unescaped URL parameter.
func pathParam(r *http.Request, name string) string {
	v := chi.URLParam(r, name)
	if u, err := url.PathUnescape(v); err == nil {
		return u
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
