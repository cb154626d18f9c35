// Package server exposes the file service over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"filehost/internal/config"
	"filehost/internal/filehost"
	"filehost/internal/metrics"
)

// Server maps HTTP routes to FileService operations.
type Server struct {
	service *filehost.FileService
	cfg     config.ServerConfig
	limits  filehost.Limits
	logger  filehost.Logger
	metrics *metrics.Metrics
	uploads *ipRateLimiter
	handler http.Handler
}

// New creates a Server. m may be nil, which disables /metrics.
func New(service *filehost.FileService, cfg config.ServerConfig, limits filehost.Limits, logger filehost.Logger, m *metrics.Metrics) *Server {
	s := &Server{
		service: service,
		cfg:     cfg,
		limits:  limits,
		logger:  logger,
		metrics: m,
		uploads: newIPRateLimiter(cfg.UploadRatePerWindow, cfg.UploadRateWindow),
	}
	s.handler = s.securityHeaders(s.logRequests(s.routes()))
	return s
}

// Handler returns the root handler with every middleware applied.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.instrument)

	r.Handle("/upload", s.rateLimited(http.HandlerFunc(s.handleUpload))).Methods(http.MethodPost)
	r.HandleFunc("/files", s.handleListFiles).Methods(http.MethodGet)
	r.HandleFunc("/rename/{id}", s.handleRename).Methods(http.MethodPatch)
	r.HandleFunc("/move/{id}", s.handleMove).Methods(http.MethodPatch)
	r.HandleFunc("/download/{id}", s.handleDownload).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/delete/{id}", s.handleDelete).Methods(http.MethodDelete)
	r.HandleFunc("/directories", s.handleCreateDirectory).Methods(http.MethodPost)
	r.HandleFunc("/directories", s.handleListDirectories).Methods(http.MethodGet)
	r.HandleFunc("/directories/{name:.+}", s.handleDeleteDirectory).Methods(http.MethodDelete)
	r.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)

	if s.cfg.StaticDir != "" {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(s.cfg.StaticDir))).Methods(http.MethodGet, http.MethodHead)
	}

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "route not found"})
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "method not allowed"})
	})
	return r
}

// Run listens on cfg.Addr until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is canceled. In-flight requests
// get cfg.ShutdownTimeout to finish.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.logger.Info("listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving http: %w", err)
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = config.DefaultShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.logger.Info("shutting down http server", "timeout", timeout)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	return nil
}
