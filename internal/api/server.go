// Package api exposes the run lifecycle over HTTP: submit a brief,
// resume a failed run, and inspect run status.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"log/slog"

	"reelforge/internal/config"
	"reelforge/internal/logging"
	"reelforge/internal/pipeline"
	"reelforge/internal/services"
)

// Server serves the run API on the configured bind address. It owns
// its listener; runs started through it outlive the request.
type Server struct {
	bind   string
	logger *slog.Logger
	orch   *pipeline.Orchestrator

	listener net.Listener
	server   *http.Server
}

// RunRequest is the POST /api/runs body.
type RunRequest struct {
	Topic          string `json:"topic"`
	Style          string `json:"style,omitempty"`
	TargetSegments int    `json:"target_segments,omitempty"`
}

// RunAccepted acknowledges an accepted run or resume.
type RunAccepted struct {
	RunID string `json:"run_id"`
}

// RunListResponse wraps GET /api/runs.
type RunListResponse struct {
	Runs []*pipeline.RunStatus `json:"runs"`
}

// NewServer builds the API server. A nil orchestrator or empty bind
// address is a configuration error surfaced at Start.
func NewServer(cfg *config.Config, orch *pipeline.Orchestrator, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	srv := &Server{
		bind:   strings.TrimSpace(cfg.Paths.APIBind),
		logger: logger.With(logging.String(logging.FieldComponent, "api-server")),
		orch:   orch,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", srv.handleHealth)
	mux.HandleFunc("/api/runs", srv.handleRuns)
	mux.HandleFunc("/api/runs/", srv.handleRun)

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

// Start binds the listener and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	if s.orch == nil {
		return fmt.Errorf("api server has no orchestrator")
	}
	if s.bind == "" {
		return fmt.Errorf("api bind address is empty")
	}
	listener, err := net.Listen("tcp", s.bind)
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

// Stop shuts the server down, draining in-flight requests briefly.
func (s *Server) Stop() {
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

// Addr reports the bound address, empty before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Handler exposes the route mux for in-process tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		statuses, err := s.orch.List(r.Context())
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.writeJSON(w, http.StatusOK, RunListResponse{Runs: statuses})
	case http.MethodPost:
		var req RunRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		runID, err := s.orch.Start(r.Context(), pipeline.Input{
			Topic:          req.Topic,
			Style:          req.Style,
			TargetSegments: req.TargetSegments,
		})
		if err != nil {
			s.writeOrchestratorError(w, err)
			return
		}
		s.writeJSON(w, http.StatusAccepted, RunAccepted{RunID: runID})
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/runs/")
	runID, action, _ := strings.Cut(rest, "/")
	if runID == "" {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}
	switch {
	case action == "" && r.Method == http.MethodGet:
		status, err := s.orch.Status(r.Context(), runID)
		if err != nil {
			s.writeOrchestratorError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, status)
	case action == "resume" && r.Method == http.MethodPost:
		if err := s.orch.StartResume(r.Context(), runID); err != nil {
			s.writeOrchestratorError(w, err)
			return
		}
		s.writeJSON(w, http.StatusAccepted, RunAccepted{RunID: runID})
	case action == "" || action == "resume":
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	default:
		s.writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *Server) writeOrchestratorError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pipeline.ErrRunNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrValidation):
		s.writeError(w, http.StatusBadRequest, services.Message(err))
	default:
		s.writeError(w, http.StatusInternalServerError, services.Message(err))
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
