package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/DealAppSeo/hyperdag-router/internal/core/domain"
	"github.com/DealAppSeo/hyperdag-router/internal/execution"
	"github.com/DealAppSeo/hyperdag-router/internal/routing"
)

// Server provides the HTTP surface: task submission, health monitoring and
// candidate administration.
type Server struct {
	monitor  *Monitor
	executor *execution.Executor
	registry *routing.Registry
	usage    *execution.UsageTracker
	server   *http.Server
}

// NewServer creates a new HTTP server.
func NewServer(monitor *Monitor, executor *execution.Executor, registry *routing.Registry, usage *execution.UsageTracker, port int) *Server {
	mux := http.NewServeMux()
	s := &Server{
		monitor:  monitor,
		executor: executor,
		registry: registry,
		usage:    usage,
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		},
	}

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/health/detailed", s.handleDetailed)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/tasks", s.handleTasks)
	mux.HandleFunc("/admin/candidates", s.handleCandidates)
	mux.HandleFunc("/admin/candidates/", s.handleCandidateAction)
	mux.HandleFunc("/admin/usage", s.handleUsage)

	return s
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Handler exposes the mux for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.monitor.CheckHealth(r.Context())

	response := map[string]string{"status": string(report.SystemStatus)}
	w.Header().Set("Content-Type", "application/json")

	if report.SystemStatus == StatusCritical {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	json.NewEncoder(w).Encode(response)
}

func (s *Server) handleDetailed(w http.ResponseWriter, r *http.Request) {
	report := s.monitor.CheckHealth(r.Context())
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(report)
}

type taskRequest struct {
	ID              string                  `json:"id,omitempty"`
	Type            string                  `json:"type"`
	Payload         string                  `json:"payload"`
	Characteristics *domain.Characteristics `json:"characteristics,omitempty"`
}

type taskError struct {
	Error    string           `json:"error"`
	Code     string           `json:"code"`
	Attempts []attemptSummary `json:"attempts,omitempty"`
	RetryAt  string           `json:"retry_at,omitempty"`
}

type attemptSummary struct {
	CandidateID string `json:"candidate_id"`
	Kind        string `json:"kind"`
	Message     string `json:"message"`
}

func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req taskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, taskError{Error: "invalid request body", Code: "bad_request"})
		return
	}
	if strings.TrimSpace(req.Payload) == "" {
		writeJSON(w, http.StatusBadRequest, taskError{Error: "payload is required", Code: "bad_request"})
		return
	}
	if req.ID == "" {
		req.ID = uuid.New().String()
	}

	task := domain.Task{
		ID:              req.ID,
		Type:            req.Type,
		Payload:         req.Payload,
		Characteristics: req.Characteristics,
	}

	result, err := s.executor.Execute(r.Context(), task)
	if err != nil {
		s.writeExecutionError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) writeExecutionError(w http.ResponseWriter, err error) {
	var backoffErr *domain.BackoffError
	var exhaustedErr *domain.ExhaustedError

	switch {
	case errors.Is(err, domain.ErrNoCandidates):
		writeJSON(w, http.StatusUnprocessableEntity, taskError{
			Error: err.Error(),
			Code:  "no_capable_candidates",
		})
	case errors.As(err, &backoffErr):
		resp := taskError{Error: err.Error(), Code: "all_in_backoff"}
		if !backoffErr.ReleaseAt.IsZero() {
			resp.RetryAt = backoffErr.ReleaseAt.UTC().Format(time.RFC3339)
		}
		writeJSON(w, http.StatusServiceUnavailable, resp)
	case errors.As(err, &exhaustedErr):
		resp := taskError{Error: "all candidates exhausted", Code: "all_candidates_exhausted"}
		for _, a := range exhaustedErr.Attempts {
			resp.Attempts = append(resp.Attempts, attemptSummary{
				CandidateID: a.CandidateID,
				Kind:        a.Kind.String(),
				Message:     a.Message(),
			})
		}
		writeJSON(w, http.StatusBadGateway, resp)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeJSON(w, http.StatusRequestTimeout, taskError{Error: err.Error(), Code: "canceled"})
	default:
		writeJSON(w, http.StatusInternalServerError, taskError{Error: err.Error(), Code: "internal"})
	}
}

func (s *Server) handleCandidates(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.registry.Statuses())
}

func (s *Server) handleCandidateAction(w http.ResponseWriter, r *http.Request) {
	// Path shape: /admin/candidates/{id}/reset
	rest := strings.TrimPrefix(r.URL.Path, "/admin/candidates/")
	id, action, ok := strings.Cut(rest, "/")
	if !ok || id == "" || action != "reset" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !s.registry.Reset(id) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown candidate: " + id})
		return
	}

	candidate, _ := s.registry.Get(id)
	writeJSON(w, http.StatusOK, candidate.Status())
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.usage.Snapshot())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
