// Package server provides the HTTP server for fingercount.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/ayusman/fingercount/internal/app"
	"github.com/ayusman/fingercount/internal/config"
	"github.com/ayusman/fingercount/internal/logging"
	"github.com/ayusman/fingercount/internal/server/api"
	"github.com/ayusman/fingercount/internal/store"
)

// Source is the running pipeline as seen by HTTP clients.
type Source interface {
	Snapshot() app.Snapshot
	LatestJPEG() []byte
	RequestReset()
}

// Config holds the server configuration.
type Config struct {
	StaticDir string
	Source    Source
	Store     *store.Store
	// Base is the file configuration that stored overrides are applied to.
	Base   config.Config
	Logger zerolog.Logger
}

// Server represents the HTTP server for the fingercount application.
type Server struct {
	config Config
	logger zerolog.Logger
	mux    *http.ServeMux
	start  time.Time
	count  *CountHandler
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		logger: logging.Component(config.Logger, "server"),
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	// Count, reset and preview endpoints need a running pipeline
	if s.config.Source != nil {
		s.mux.HandleFunc("/api/count", s.handleCount)
		s.mux.HandleFunc("/api/reset", s.handleReset)
		s.mux.Handle("/api/stream", NewStreamHandler(s.config.Source))

		s.count = NewCountHandler(s.config.Source, s.logger)
		s.mux.Handle("/api/count/ws", s.count)
	}

	// Register settings API handler if Store is configured
	if s.config.Store != nil {
		settings := api.NewSettingsHandler(s.config.Store, s.config.Base)
		s.mux.Handle("/api/settings", settings)
		s.mux.Handle("/api/settings/", settings)
	}

	// Serve static files if StaticDir is configured
	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	uptime := time.Since(s.start)

	response := map[string]interface{}{
		"status": "ok",
		"uptime": uptime.String(),
	}

	writeJSON(w, http.StatusOK, response)
}

// handleCount handles GET requests to /api/count.
func (s *Server) handleCount(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, s.config.Source.Snapshot())
}

// handleReset handles POST requests to /api/reset. The pipeline picks the
// request up on its next frame.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.config.Source.RequestReset()
	s.logger.Info().Str("remote", r.RemoteAddr).Msg("recalibration requested")

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "recalibrating"})
}

// ListenAndServe serves HTTP on addr until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
		// Streaming handlers watch the request context, so tie it to ctx.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// Close stops background broadcasting and disconnects WebSocket clients.
func (s *Server) Close() {
	if s.count != nil {
		s.count.Close()
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}
