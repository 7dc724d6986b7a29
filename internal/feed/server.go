package feed

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Liveness reports whether the simulation can still serve. *sim.Engine
// satisfies it.
type Liveness interface {
	Disposed() bool
}

// Pinger checks a backing store. *postgres.Pool satisfies it.
type Pinger interface {
	Health(ctx context.Context, timeout time.Duration) error
}

// healthTimeout bounds the database ping behind /healthz.
const healthTimeout = 2 * time.Second

// RouterConfig holds the handlers mounted by NewRouter.
type RouterConfig struct {
	Hub *Hub
	// Metrics serves /metrics when non-nil.
	Metrics  http.Handler
	Liveness Liveness
	// Database is pinged by /healthz when non-nil.
	Database Pinger
}

// NewRouter mounts /healthz, /metrics and /ws.
//
// Precondition: cfg.Hub must be non-nil.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		body := map[string]any{"status": "ok", "spectators": cfg.Hub.Clients()}
		code := http.StatusOK
		if cfg.Database != nil {
			body["database"] = "ok"
			if err := cfg.Database.Health(req.Context(), healthTimeout); err != nil {
				body["status"], body["database"] = "degraded", "unreachable"
				code = http.StatusServiceUnavailable
			}
		}
		if cfg.Liveness != nil && cfg.Liveness.Disposed() {
			body["status"] = "disposed"
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(body)
	})
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}
	r.Get("/ws", cfg.Hub.ServeHTTP)
	return r
}

// Server serves the feed router as a lifecycle service.
type Server struct {
	logger *zap.Logger
	hub    *Hub
	srv    *http.Server
}

// NewServer creates a Server listening on addr.
//
// Precondition: addr must be a valid "host:port"; hub must be the router's hub.
func NewServer(addr string, handler http.Handler, hub *Hub, logger *zap.Logger) *Server {
	return &Server{
		logger: logger.Named("feed"),
		hub:    hub,
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Start listens and serves until Stop.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on an existing listener until Stop.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.srv.BaseContext = func(net.Listener) context.Context { return ctx }
	s.logger.Info("feed listening", zap.String("addr", ln.Addr().String()))
	if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop disconnects spectators and shuts the listener down.
func (s *Server) Stop(ctx context.Context) {
	s.hub.Close()
	if err := s.srv.Shutdown(ctx); err != nil {
		s.logger.Warn("feed shutdown", zap.Error(err))
	}
}
