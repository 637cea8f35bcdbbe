package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"quill/internal/asr"
	"quill/internal/config"
	"quill/internal/logging"
	"quill/internal/scheduler"
	"quill/internal/tasks"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// Server is the HTTP and WebSocket surface of the daemon.
type Server struct {
	cfg      *config.Config
	registry *tasks.Registry
	sched    *scheduler.Scheduler
	resolver *asr.Resolver
	hub      *Hub
	logger   *slog.Logger

	listener net.Listener
	server   *http.Server
}

// New wires the API server. The hub is installed as the registry observer
// so WebSocket subscribers see every mutation.
func New(cfg *config.Config, registry *tasks.Registry, sched *scheduler.Scheduler, resolver *asr.Resolver, logger *slog.Logger) *Server {
	hub := NewHub(time.Duration(cfg.Workflow.WSKeepaliveSeconds)*time.Second, logger)
	registry.SetObserver(hub)

	srv := &Server{
		cfg:      cfg,
		registry: registry,
		sched:    sched,
		resolver: resolver,
		hub:      hub,
		logger:   logging.NewComponentLogger(logger, "api"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/transcribe", srv.handleTranscribe)
	mux.HandleFunc("/status/", srv.handleStatus)
	mux.HandleFunc("/result/", srv.handleResult)
	mux.HandleFunc("/task/", srv.handleDelete)
	mux.HandleFunc("/tasks", srv.handleTasks)
	mux.HandleFunc("/ws/", srv.handleWS)
	mux.HandleFunc("/models", srv.handleModels)
	mux.HandleFunc("/formats", srv.handleFormats)
	mux.HandleFunc("/languages", srv.handleLanguages)
	mux.HandleFunc("/health", srv.handleHealth)
	mux.HandleFunc("/backend", srv.handleBackend)

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

// Handler exposes the route table for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start begins serving on the configured bind address.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.cfg.Paths.APIBind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the server and all WebSocket subscribers down.
func (s *Server) Stop() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
	s.hub.Close()
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}
