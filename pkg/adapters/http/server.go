// Package http exposes the session pipeline and the override admin surface
// as a JSON API.
package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/resolvd/resolvd/internal/logging"
	"github.com/resolvd/resolvd/pkg/domain"
	"github.com/resolvd/resolvd/pkg/observability"
	"github.com/resolvd/resolvd/pkg/orchestrator"
	"github.com/resolvd/resolvd/pkg/override"
)

// Server wires the orchestrator and override store into chi routes.
type Server struct {
	orch      *orchestrator.Orchestrator
	overrides *override.Store
	logger    *slog.Logger
	gatherer  prometheus.Gatherer
	metrics   *observability.Metrics
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithGatherer mounts /metrics over the given Prometheus gatherer.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// WithMetrics keeps the active-override gauge current as admins mutate the
// override set.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// NewHandler builds the HTTP handler.
func NewHandler(orch *orchestrator.Orchestrator, overrides *override.Store, opts ...Option) http.Handler {
	s := &Server{
		orch:      orch,
		overrides: overrides,
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()

	r.Get("/health", s.health)
	if s.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/session", func(r chi.Router) {
		r.Post("/start", s.startSession)
		r.Get("/{sessionID}", s.getSession)
		r.Post("/{sessionID}/message", s.postMessage)
		r.Get("/{sessionID}/trace", s.getTrace)
		r.Post("/{sessionID}/escalate", s.requestEscalation)
	})

	r.Route("/admin/overrides", func(r chi.Router) {
		r.Post("/", s.addOverride)
		r.Get("/", s.listOverrides)
		r.Post("/{overrideID}/toggle", s.toggleOverride)
		r.Delete("/{overrideID}", s.removeOverride)
		r.Delete("/", s.clearOverrides)
	})

	return r
}

// --- session surface ---

type startSessionRequest struct {
	Email      string `json:"email"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	CustomerID string `json:"customer_id"`
}

type startSessionResponse struct {
	SessionID string               `json:"session_id"`
	Status    domain.SessionStatus `json:"status"`
	Message   string               `json:"message"`
}

func (s *Server) startSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	sess, err := s.orch.Start(r.Context(), domain.CustomerInfo{
		Email:      req.Email,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		CustomerID: req.CustomerID,
	})
	if err != nil {
		s.internalError(w, "start session", err)
		return
	}

	greeting := ""
	if len(sess.Messages) > 0 {
		greeting = sess.Messages[len(sess.Messages)-1].Content
	}
	s.writeJSON(w, http.StatusCreated, startSessionResponse{
		SessionID: sess.ID,
		Status:    sess.Status,
		Message:   greeting,
	})
}

type messageRequest struct {
	Message string `json:"message"`
}

func (s *Server) postMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result, err := s.orch.ProcessMessage(r.Context(), chi.URLParam(r, "sessionID"), req.Message)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			http.Error(w, "Session not found", http.StatusNotFound)
			return
		}
		s.internalError(w, "process message", err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

type traceResponse struct {
	SessionID   string               `json:"session_id"`
	Status      domain.SessionStatus `json:"status"`
	Events      []domain.TraceEvent  `json:"events"`
	TotalEvents int                  `json:"total_events"`
}

func (s *Server) getTrace(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	sess, err := s.orch.GetSession(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			http.Error(w, "Session not found", http.StatusNotFound)
			return
		}
		s.internalError(w, "get trace", err)
		return
	}
	s.writeJSON(w, http.StatusOK, traceResponse{
		SessionID:   sess.ID,
		Status:      sess.Status,
		Events:      sess.Trace,
		TotalEvents: len(sess.Trace),
	})
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.orch.GetSession(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			http.Error(w, "Session not found", http.StatusNotFound)
			return
		}
		s.internalError(w, "get session", err)
		return
	}
	s.writeJSON(w, http.StatusOK, sess)
}

type escalateRequest struct {
	Reason   string `json:"reason,omitempty"`
	Priority string `json:"priority,omitempty"`
}

func (s *Server) requestEscalation(w http.ResponseWriter, r *http.Request) {
	var req escalateRequest
	// The body is optional; anything present must be valid JSON.
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result, err := s.orch.RequestEscalation(r.Context(), chi.URLParam(r, "sessionID"), req.Reason, req.Priority)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			http.Error(w, "Session not found", http.StatusNotFound)
			return
		}
		s.internalError(w, "request escalation", err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- admin surface ---

type addOverrideRequest struct {
	OverrideID               string         `json:"override_id,omitempty"`
	Workflow                 string         `json:"workflow"`
	RuleID                   string         `json:"rule_id"`
	OverrideAction           string         `json:"override_action"`
	Note                     string         `json:"note,omitempty"`
	ContextUpdates           map[string]any `json:"context_updates,omitempty"`
	ToolParamOverrides       map[string]any `json:"tool_param_overrides,omitempty"`
	EscalationReason         string         `json:"escalation_reason,omitempty"`
	ResponseTemplateOverride string         `json:"response_template_override,omitempty"`
	Active                   *bool          `json:"active,omitempty"`
}

func (s *Server) addOverride(w http.ResponseWriter, r *http.Request) {
	var req addOverrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	o, err := s.overrides.Add(r.Context(), domain.PolicyOverride{
		OverrideID:               req.OverrideID,
		Workflow:                 req.Workflow,
		RuleID:                   req.RuleID,
		OverrideAction:           domain.Action(req.OverrideAction),
		Note:                     req.Note,
		ContextUpdates:           req.ContextUpdates,
		ToolParamOverrides:       req.ToolParamOverrides,
		EscalationReason:         req.EscalationReason,
		ResponseTemplateOverride: req.ResponseTemplateOverride,
		Active:                   active,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.metrics.SetActiveOverrides(s.overrides.ActiveCount())
	s.writeJSON(w, http.StatusCreated, o)
}

func (s *Server) listOverrides(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"
	s.writeJSON(w, http.StatusOK, s.overrides.List(activeOnly))
}

func (s *Server) toggleOverride(w http.ResponseWriter, r *http.Request) {
	active, err := s.overrides.Toggle(r.Context(), chi.URLParam(r, "overrideID"))
	if err != nil {
		if errors.Is(err, domain.ErrOverrideNotFound) {
			http.Error(w, "Override not found", http.StatusNotFound)
			return
		}
		s.internalError(w, "toggle override", err)
		return
	}
	s.metrics.SetActiveOverrides(s.overrides.ActiveCount())
	s.writeJSON(w, http.StatusOK, map[string]any{"active": active})
}

func (s *Server) removeOverride(w http.ResponseWriter, r *http.Request) {
	if err := s.overrides.Remove(r.Context(), chi.URLParam(r, "overrideID")); err != nil {
		if errors.Is(err, domain.ErrOverrideNotFound) {
			http.Error(w, "Override not found", http.StatusNotFound)
			return
		}
		s.internalError(w, "remove override", err)
		return
	}
	s.metrics.SetActiveOverrides(s.overrides.ActiveCount())
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) clearOverrides(w http.ResponseWriter, r *http.Request) {
	if err := s.overrides.Clear(r.Context()); err != nil {
		s.internalError(w, "clear overrides", err)
		return
	}
	s.metrics.SetActiveOverrides(s.overrides.ActiveCount())
	w.WriteHeader(http.StatusNoContent)
}

// --- helpers ---

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "err", err)
	}
}

func (s *Server) internalError(w http.ResponseWriter, op string, err error) {
	s.logger.Error(op+" failed", "err", err)
	http.Error(w, "Internal error", http.StatusInternalServerError)
}
