package proxy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"syscall"
	"time"

	"mercator-hq/callisto/pkg/provider"
	"mercator-hq/callisto/pkg/proxy/handlers"
	"mercator-hq/callisto/pkg/proxy/middleware"
	"mercator-hq/callisto/pkg/telemetry/metrics"
)

// DefaultPort is the bridge's fixed loopback port. The remote caller
// provisions its tunnel against this port, so it is not configurable in
// production; tests override it to avoid collisions.
const DefaultPort = 8082

// readHeaderTimeout bounds header parsing for new connections. The
// server carries no general read/write timeouts because streamed
// completions legitimately run for minutes.
const readHeaderTimeout = 10 * time.Second

// AuditRecorder receives one entry per completed request when request
// logging is enabled.
type AuditRecorder interface {
	Record(entry AuditEntry)
}

// AuditEntry is the per-request audit record the server emits.
type AuditEntry struct {
	RequestID string
	Time      time.Time
	Method    string
	Path      string
	Status    int
	Duration  time.Duration
	Model     string
	Streamed  bool
	Origin    string
}

// Config configures a Server. Provider and Logger are required.
type Config struct {
	// Port overrides DefaultPort. Zero means DefaultPort.
	Port int

	// Provider is the local inference provider client.
	Provider *provider.Client

	// Logger receives server diagnostics.
	Logger *slog.Logger

	// Metrics, when set, records request counts and latencies.
	Metrics *metrics.Collector

	// Audit, when set, receives one entry per completed request.
	Audit AuditRecorder
}

// Server is the local HTTP bridge in front of the inference provider.
// It binds loopback only; the public surface is the tunnel, never the
// listener itself.
type Server struct {
	port     int
	logger   *slog.Logger
	handler  http.Handler
	provider *provider.Client

	mu         sync.Mutex
	listener   net.Listener
	httpServer *http.Server
	running    bool
}

// NewServer builds a Server. It does not bind; call Start.
func NewServer(cfg Config) *Server {
	port := cfg.Port
	if port == 0 {
		port = DefaultPort
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		port:     port,
		logger:   logger,
		provider: cfg.Provider,
	}
	s.handler = s.buildHandler(cfg)
	return s
}

// Port returns the port the server binds.
func (s *Server) Port() int {
	return s.port
}

// Addr returns the loopback address the server binds.
func (s *Server) Addr() string {
	return fmt.Sprintf("127.0.0.1:%d", s.port)
}

// IsRunning reports whether the listener is currently bound.
func (s *Server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Start binds the loopback port and begins serving. It returns once
// the listener is bound; serving continues in the background until
// Stop. A *AlreadyRunningError is returned when the server is already
// bound, a *PortInUseError when another process holds the port.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return &AlreadyRunningError{Port: s.port}
	}

	// Probe with a throwaway bind first so an occupied port surfaces as
	// its own error kind rather than a generic bind failure.
	probe, err := net.Listen("tcp", s.Addr())
	if err != nil {
		if isAddrInUse(err) {
			return &PortInUseError{Port: s.port, Cause: err}
		}
		return &BindError{Port: s.port, Cause: err}
	}
	_ = probe.Close()

	listener, err := net.Listen("tcp", s.Addr())
	if err != nil {
		if isAddrInUse(err) {
			return &PortInUseError{Port: s.port, Cause: err}
		}
		return &BindError{Port: s.port, Cause: err}
	}

	s.listener = listener
	s.httpServer = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	s.running = true

	httpServer := s.httpServer
	go func() {
		err := httpServer.Serve(listener)
		if err != nil && err != http.ErrServerClosed {
			s.logger.Error("proxy server stopped unexpectedly", "error", err)
		}
	}()

	s.logger.Info("proxy server started", "addr", s.Addr())
	return nil
}

// Stop closes the listener and drains in-flight requests. Calling Stop
// on a stopped server is a no-op.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	httpServer := s.httpServer
	s.running = false
	s.httpServer = nil
	s.listener = nil
	s.mu.Unlock()

	if err := httpServer.Shutdown(ctx); err != nil {
		// The listener is closed either way; report the drain failure.
		return fmt.Errorf("proxy server shutdown: %w", err)
	}
	s.logger.Info("proxy server stopped")
	return nil
}

// buildHandler assembles the middleware chain and routing. Chat
// completion POSTs get the validated handler; everything else goes to
// the generic forwarder.
func (s *Server) buildHandler(cfg Config) http.Handler {
	forwarder := handlers.NewForwarder(s.provider.BaseURL(), s.logger)
	chat := handlers.NewChatHandler(
		handlers.ProviderModelSource{Client: s.provider},
		forwarder,
		s.logger,
	)

	router := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && isChatPath(r.URL.Path) {
			chat.ServeHTTP(w, r)
			return
		}
		forwarder.ServeHTTP(w, r)
	})

	var handler http.Handler = router
	if cfg.Audit != nil {
		handler = s.auditMiddleware(cfg.Audit, handler)
	}
	handler = middleware.CORSMiddleware(handler)
	handler = middleware.RecoveryMiddleware(s.logger)(handler)
	handler = middleware.LoggingMiddleware(s.logger, cfg.Metrics)(handler)
	handler = middleware.RequestIDMiddleware(handler)
	return handler
}

// isChatPath matches the two accepted chat completion path aliases.
func isChatPath(path string) bool {
	return path == "/chat/completions" || path == "/v1/chat/completions"
}

// auditMiddleware emits one AuditEntry per completed request.
func (s *Server) auditMiddleware(recorder AuditRecorder, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx, note := middleware.WithAuditNote(r.Context())

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r.WithContext(ctx))

		recorder.Record(AuditEntry{
			RequestID: middleware.GetRequestID(ctx),
			Time:      start,
			Method:    r.Method,
			Path:      r.URL.Path,
			Status:    sw.status,
			Duration:  time.Since(start),
			Model:     note.Model,
			Streamed:  note.Streamed,
			Origin:    middleware.GetOrigin(ctx),
		})
	})
}

// statusWriter captures the response status for the audit record while
// forwarding Flush for streamed bodies.
type statusWriter struct {
	http.ResponseWriter
	status  int
	written bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.written {
		w.status = code
		w.written = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if !w.written {
		w.written = true
	}
	return w.ResponseWriter.Write(b)
}

func (w *statusWriter) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// isAddrInUse reports whether a bind failure means the address is
// occupied.
func isAddrInUse(err error) bool {
	return errors.Is(err, syscall.EADDRINUSE)
}
