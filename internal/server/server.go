package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Iron-Ham/prism/internal/logging"
	"github.com/Iron-Ham/prism/internal/runtime"
	"github.com/Iron-Ham/prism/internal/sink"
)

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Server) { s.logger = l.WithComponent("server") }
}

// WithFrameStream enables GET /frames. Each frame write is bounded by
// writeTimeout (0 leaves writes unbounded).
func WithFrameStream(writeTimeout time.Duration) Option {
	return func(s *Server) {
		s.streamFrames = true
		s.writeTimeout = writeTimeout
	}
}

// Server is the HTTP control plane of a runtime.
type Server struct {
	rt           *runtime.Runtime
	logger       *logging.Logger
	streamFrames bool
	writeTimeout time.Duration
	upgrader     websocket.Upgrader
	router       chi.Router

	mu      sync.Mutex
	http    *http.Server
	clients map[string]*sink.WebSocket
}

// New creates a server for rt.
func New(rt *runtime.Runtime, opts ...Option) *Server {
	s := &Server{
		rt:      rt,
		logger:  logging.NopLogger(),
		clients: make(map[string]*sink.WebSocket),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 16 * 1024,
		},
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	s.Routes(r)
	s.router = r
	return s
}

// Routes registers the control plane endpoints on r.
func (s *Server) Routes(r chi.Router) {
	r.Get("/healthz", s.handleHealth)
	r.Get("/state", s.handleState)
	r.Get("/timing", s.handleTiming)
	r.Get("/plan", s.handlePlan)
	r.Put("/plan/override", s.handleSetOverride)
	r.Get("/stats", s.handleStats)
	if s.streamFrames {
		r.Get("/frames", s.handleFrames)
	}
}

// Handler returns the router with middleware applied.
func (s *Server) Handler() http.Handler { return s.router }

// Start listens on addr and serves in the background. Bind errors are
// returned directly.
func (s *Server) Start(addr string) (net.Addr, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	s.mu.Lock()
	s.http = srv
	s.mu.Unlock()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("control plane stopped", "error", err.Error())
		}
	}()
	s.logger.Info("control plane listening", "addr", ln.Addr().String(), "frames", s.streamFrames)
	return ln.Addr(), nil
}

// Shutdown stops accepting requests and disconnects frame clients.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.http
	clients := make([]*sink.WebSocket, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	for _, c := range clients {
		s.rt.Queue().RemoveConsumer(c.ID())
		_ = c.Close()
	}
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// Clients returns the number of connected frame clients.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *Server) handleFrames(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		s.logger.Warn("websocket upgrade failed", "error", err.Error())
		return
	}

	id := uuid.NewString()
	client := sink.NewWebSocket(id, conn, s.writeTimeout, s.logger)
	if err := s.rt.Queue().AddConsumer(client); err != nil {
		s.logger.Warn("frame client rejected", "consumer", id, "error", err.Error())
		_ = client.Close()
		return
	}

	s.mu.Lock()
	s.clients[id] = client
	s.mu.Unlock()
	s.logger.Info("frame client connected", "consumer", id, "remote", r.RemoteAddr)

	go func() {
		<-client.Done()
		s.rt.Queue().RemoveConsumer(id)
		_ = client.Close()
		s.mu.Lock()
		delete(s.clients, id)
		s.mu.Unlock()
		s.logger.Info("frame client disconnected", "consumer", id)
	}()
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
