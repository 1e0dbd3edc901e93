package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"grovepi-bridge/internal/application"
)

const DefaultAddr = "127.0.0.1:8080"

// SessionProbe reports the transport session state.
type SessionProbe interface {
	State() application.SessionState
}

// LivenessProbe reports whether START has been received.
type LivenessProbe interface {
	Running() bool
}

// Server exposes /health and /metrics.
type Server struct {
	addr     string
	session  SessionProbe
	live     LivenessProbe
	started  time.Time
	logger   *slog.Logger
	router   chi.Router
	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

func NewServer(addr string, session SessionProbe, live LivenessProbe, gatherer prometheus.Gatherer, logger *slog.Logger) *Server {
	if addr == "" {
		addr = DefaultAddr
	}
	s := &Server{
		addr:    addr,
		session: session,
		live:    live,
		started: time.Now(),
		logger:  logger.With("component", "status"),
		router:  chi.NewRouter(),
	}

	s.router.Use(middleware.Recoverer)
	s.router.Get("/health", s.handleHealth)
	s.router.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr is the bound address once Start has returned.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return nil
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.addr, err)
	}

	s.listener = ln
	s.server = &http.Server{
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func(srv *http.Server) {
		s.logger.Info("status server starting", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("status server error", "error", err)
		}
	}(s.server)

	return nil
}

func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Warn("graceful shutdown failed, forcing close", "error", err)
		if err := s.server.Close(); err != nil {
			return fmt.Errorf("closing server: %w", err)
		}
	}

	s.server = nil
	s.listener = nil
	return nil
}

type health struct {
	Status  string `json:"status"`
	Session string `json:"session"`
	Running bool   `json:"running"`
	Uptime  int64  `json:"uptime_seconds"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	state := s.session.State()

	resp := health{
		Status:  "ok",
		Session: string(state),
		Running: s.live.Running(),
		Uptime:  int64(time.Since(s.started).Seconds()),
	}

	statusCode := http.StatusOK
	if state != application.StateConnected {
		resp.Status = "not_ready"
		statusCode = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Debug("writing health response", "error", err)
	}
}
