// Package webhook exposes the conversation core over HTTP: a chat
// endpoint that drives turns, session inspection and teardown, plus
// health and metrics.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/sharpshop/sharpshop/internal/metrics"
	"github.com/sharpshop/sharpshop/pkg/orchestrator"
	"github.com/sharpshop/sharpshop/pkg/session"
)

// Server is the HTTP front for the orchestrator.
type Server struct {
	options        ServerOptions
	server         *http.Server
	orch           *orchestrator.Orchestrator
	logger         zerolog.Logger
	startTime      time.Time
	isShuttingDown bool
	shutdownMu     sync.RWMutex
	inFlightReqs   sync.WaitGroup
}

// NewServer creates a new HTTP server around an orchestrator.
func NewServer(options ServerOptions, orch *orchestrator.Orchestrator, logger zerolog.Logger) (*Server, error) {
	if options.Port == 0 {
		options.Port = 8000
	}
	if options.Host == "" {
		options.Host = "0.0.0.0"
	}
	if options.RequestTimeout == 0 {
		options.RequestTimeout = 120 * time.Second
	}
	if options.MaxBodyBytes == 0 {
		options.MaxBodyBytes = 64 << 10
	}

	if orch == nil {
		return nil, fmt.Errorf("orchestrator is required")
	}

	return &Server{
		options:   options,
		orch:      orch,
		logger:    logger,
		startTime: time.Now(),
	}, nil
}

// routes builds the chi router.
func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.trackInFlight)

	r.Post("/chat", s.handleChat)
	r.Get("/sessions/{sessionID}/history", s.handleHistory)
	r.Delete("/sessions/{sessionID}", s.handleCloseSession)
	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	return r
}

// Start runs the server until Stop is called. Blocking.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.options.Host, s.options.Port),
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info().
		Str("host", s.options.Host).
		Int("port", s.options.Port).
		Msg("Starting HTTP server")

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	return nil
}

// Stop gracefully stops the server, waiting out in-flight requests.
func (s *Server) Stop() error {
	s.shutdownMu.Lock()
	s.isShuttingDown = true
	s.shutdownMu.Unlock()

	s.logger.Info().Msg("Shutting down HTTP server")

	done := make(chan struct{})
	go func() {
		s.inFlightReqs.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info().Msg("All in-flight requests completed")
	case <-time.After(30 * time.Second):
		s.logger.Warn().Msg("Shutdown timeout reached, forcing close")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}

	s.logger.Info().Msg("HTTP server stopped")
	return nil
}

func (s *Server) trackInFlight(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.shutdownMu.RLock()
		if s.isShuttingDown {
			s.shutdownMu.RUnlock()
			s.writeError(w, http.StatusServiceUnavailable, "Server is shutting down")
			return
		}
		s.shutdownMu.RUnlock()

		s.inFlightReqs.Add(1)
		defer s.inFlightReqs.Done()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	r.Body = http.MaxBytesReader(w, r.Body, s.options.MaxBodyBytes)

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if req.TraderID == "" {
		s.writeError(w, http.StatusBadRequest, "trader_id is required")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		s.writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.options.RequestTimeout)
	defer cancel()

	result, err := s.orch.HandleTurn(ctx, req.SessionID, req.TraderID, req.Message)
	if err != nil {
		switch {
		case errors.Is(err, orchestrator.ErrTraderNotFound):
			s.writeError(w, http.StatusNotFound, "Trader not found")
		case errors.Is(err, session.ErrNotFound):
			s.writeError(w, http.StatusNotFound, "Session not found or expired")
		default:
			s.logger.Error().
				Err(err).
				Str("trader_id", req.TraderID).
				Msg("Chat turn failed")
			s.writeError(w, http.StatusInternalServerError, "Internal Server Error")
		}
		return
	}

	s.logger.Info().
		Str("session_id", result.SessionID).
		Str("trader_id", req.TraderID).
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Msg("Chat turn completed")

	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	history, err := s.orch.History(sessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "Session not found or expired")
			return
		}
		s.writeError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"session_id": sessionID,
		"history":    history,
	})
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	if !s.orch.CloseSession(sessionID) {
		s.writeError(w, http.StatusNotFound, "Session not found or expired")
		return
	}

	s.logger.Info().Str("session_id", sessionID).Msg("Session closed by request")
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "closed"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"uptime":    time.Since(s.startTime).Seconds(),
		"timestamp": time.Now().UnixMilli(),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, ErrorResponse{Error: msg})
}
