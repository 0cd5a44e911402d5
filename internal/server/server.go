package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/klauspost/compress/gzhttp"

	"github.com/etlive/etlive/internal/cache"
	"github.com/etlive/etlive/internal/readapi"
)

const (
	// sseWriteTimeout is the maximum time allowed for a single SSE write operation.
	// Must be <= shutdown timeout to ensure clean shutdown.
	sseWriteTimeout = 5 * time.Second

	// apiTimeout bounds the data API handlers.
	apiTimeout = 10 * time.Second

	// defaultTitle is used when no custom title is configured.
	defaultTitle = "ET Live"

	// titlePlaceholder is the marker in HTML that gets replaced with the actual title.
	titlePlaceholder = "{{.Title}}"
)

// Config holds the HTTP layer settings.
type Config struct {
	// Port is the TCP port to listen on. Zero picks a free port.
	Port int

	// StaticDir, if set, is served at / instead of the embedded dashboard.
	StaticDir string

	// Assets is the embedded dashboard filesystem (may be nil).
	Assets fs.FS

	// Title is shown by the embedded dashboard. Defaults to "ET Live".
	Title string

	// Metrics serves /metrics when non-nil.
	Metrics http.Handler

	Logger *slog.Logger
}

// Server handles HTTP requests for the read API and the front end.
//
// Routes:
//   - GET /api/data/all: all nodes as JSON
//   - GET /api/data/{node}: one node as JSON
//   - GET /api/sse: Server-Sent Events stream of node updates
//   - GET /metrics: Prometheus exposition
//   - GET /healthz: liveness probe
//   - GET /*: static front end or embedded dashboard
//
// Shutdown is driven by the caller through [Server.Shutdown].
type Server struct {
	api       *readapi.API
	store     cache.Store
	port      int
	staticDir string
	assets    fs.FS
	title     string
	metrics   http.Handler
	logger    *slog.Logger
	router    chi.Router

	mu         sync.Mutex
	httpServer *http.Server
	addr       net.Addr
}

// NewServer creates a new HTTP [Server] reading from api and streaming
// updates from st.
//
// The server is not started until [Server.Start] is called.
func NewServer(api *readapi.API, st cache.Store, cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		api:       api,
		store:     st,
		port:      cfg.Port,
		staticDir: cfg.StaticDir,
		assets:    cfg.Assets,
		title:     cfg.Title,
		metrics:   cfg.Metrics,
		logger:    logger,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}

	// long-lived stream: no timeout, no compression
	r.Get("/api/sse", s.handleSSE)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(apiTimeout))
		r.Use(func(next http.Handler) http.Handler { return gzhttp.GzipHandler(next) })

		r.Get("/api/data/all", s.handleAll)
		r.Get("/api/data/{node}", s.handleOne)
	})

	switch {
	case s.staticDir != "":
		r.Handle("/*", http.FileServer(http.Dir(s.staticDir)))
	case s.assets != nil:
		r.Get("/", s.handleDashboard)
	}

	return r
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins serving HTTP requests in a background goroutine.
//
// Start is non-blocking and returns immediately after confirming the server
// is listening. Request contexts derive from ctx, so cancelling it ends
// long-running handlers like SSE. Call [Server.Shutdown] to stop serving.
//
// Returns an error if the server fails to bind to the configured port.
func (s *Server) Start(ctx context.Context) error {
	// create listener first to verify port availability synchronously
	addr := fmt.Sprintf(":%d", s.port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind to port %d: %w", s.port, err)
	}

	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		// BaseContext derives all request contexts from the server context.
		// When ctx is cancelled, all request contexts are also cancelled,
		// enabling graceful shutdown of long-running handlers like SSE.
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	s.mu.Lock()
	s.httpServer = srv
	s.addr = ln.Addr()
	s.mu.Unlock()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound listener address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Shutdown gracefully stops the server, waiting for active requests until
// ctx is done. Calling Shutdown before Start is a no-op.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// accessLog logs one line per request.
func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"latency_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// handleDashboard serves the embedded dashboard page.
func (s *Server) handleDashboard(w http.ResponseWriter, _ *http.Request) {
	if s.assets == nil {
		http.Error(w, "Dashboard not found", http.StatusInternalServerError)
		return
	}

	content, err := fs.ReadFile(s.assets, "assets/index.html")
	if err != nil {
		http.Error(w, "Dashboard not found", http.StatusInternalServerError)
		return
	}

	// apply title substitution with HTML escaping to prevent XSS
	title := s.title
	if title == "" {
		title = defaultTitle
	}
	safeTitle := html.EscapeString(title)
	rendered := strings.ReplaceAll(string(content), titlePlaceholder, safeTitle)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err = w.Write([]byte(rendered)); err != nil {
		s.logger.Error("failed to write dashboard response", "error", err)
	}
}

// handleAll returns every node's entry.
func (s *Server) handleAll(w http.ResponseWriter, _ *http.Request) {
	entries, err := s.api.GetAll()
	if err != nil {
		s.writeTeapot(w, "no nodes to show")
		return
	}
	s.writeJSON(w, http.StatusOK, readapi.AllResponse{Data: entries})
}

// handleOne returns a single node's entry.
func (s *Server) handleOne(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "node")

	entry, err := s.api.GetOne(id)
	switch {
	case err == nil:
		s.writeJSON(w, http.StatusOK, entry)
	case errors.Is(err, readapi.ErrUnknownNode):
		s.writeTeapot(w, "unknown node")
	case errors.Is(err, readapi.ErrNoData):
		s.writeTeapot(w, "no data for node yet")
	default:
		s.logger.Error("read failed", "node", id, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// writeTeapot answers 418: the API's "nothing to show" status.
func (s *Server) writeTeapot(w http.ResponseWriter, msg string) {
	w.Header().Set("Cache-Control", "no-cache")
	http.Error(w, msg, http.StatusTeapot)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

// handleSSE streams node updates via Server-Sent Events.
//
// The handler uses write deadlines to prevent goroutine leaks when clients are
// slow or disconnected. Without deadlines, a blocked Fprintf call would prevent
// the handler from detecting context cancellation or channel closure.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	if _, ok := w.(http.Flusher); !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	rc := http.NewResponseController(w)

	// track if write deadlines are supported (may not be for some ResponseWriter impls)
	deadlinesSupported := true

	writeAndFlush := func(data []byte) error {
		if deadlinesSupported {
			if err := rc.SetWriteDeadline(time.Now().Add(sseWriteTimeout)); err != nil {
				s.logger.Debug("sse write deadlines not supported", "error", err)
				deadlinesSupported = false
			}
		}

		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return err
		}

		// ResponseController.Flush respects the write deadline
		return rc.Flush()
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// subscribe before the snapshot so no update falls in between
	ch := s.store.Subscribe()
	defer s.store.Unsubscribe(ch)

	for _, e := range s.store.GetAll() {
		data, err := json.Marshal(s.api.Entry(e))
		if err != nil {
			continue
		}
		if err := writeAndFlush(data); err != nil {
			return
		}
	}

	for {
		select {
		case e, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(s.api.Entry(e))
			if err != nil {
				continue
			}
			if err := writeAndFlush(data); err != nil {
				return
			}

		case <-r.Context().Done():
			// request context is derived from server context via BaseContext,
			// so this fires on both client disconnect AND server shutdown
			return
		}
	}
}
