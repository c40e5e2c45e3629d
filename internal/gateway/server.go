// Package gateway exposes the task engine over HTTP: a JSON API for the
// task lifecycle and a WebSocket event stream.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/helmsman-ai/helmsman/internal/config"
	"github.com/helmsman-ai/helmsman/internal/events"
	"github.com/helmsman-ai/helmsman/internal/gateway/ws"
	"github.com/helmsman-ai/helmsman/internal/orchestrator"
	"github.com/helmsman-ai/helmsman/internal/repo"
	"github.com/helmsman-ai/helmsman/internal/types"
)

// Server is the gateway HTTP server.
type Server struct {
	httpServer *http.Server
	hub        *ws.Hub
	bus        *events.Bus
	orch       *orchestrator.Orchestrator
	results    repo.ResultRepo
	tasks      *TaskHandler
}

// NewServer creates a gateway over an orchestrator.
func NewServer(cfg config.GatewayConfig, orch *orchestrator.Orchestrator, results repo.ResultRepo, bus *events.Bus) *Server {
	th := NewTaskHandler(orch)
	hub := ws.NewHub(bus, th)

	s := &Server{
		hub:     hub,
		bus:     bus,
		orch:    orch,
		results: results,
		tasks:   th,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Get("/api/health", s.handleHealth)
	r.Get("/api/ws", hub.ServeWS)
	r.Get("/api/events", s.handleEvents)

	r.Route("/api/tasks", func(r chi.Router) {
		r.Post("/", s.handleSubmitTask)
		r.Get("/", s.handleListTasks)
		r.Get("/{taskID}", s.handleGetTask)
		r.Post("/{taskID}/cancel", s.handleCancelTask)
		r.Post("/{taskID}/decompose", s.handleDecomposeTask)
		r.Get("/{taskID}/messages", s.handleTaskMessages)
		r.Get("/{taskID}/results", s.handleTaskResults)
	})
	r.Post("/api/chats/{chatID}/messages", s.handlePostMessage)
	r.Get("/api/agents", s.handleListAgents)

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: r,
	}
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Start begins listening. It blocks until the server is stopped.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	slog.Info("gateway listening", "addr", ln.Addr().String())
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	return s.httpServer.Shutdown(ctx)
}

// companyID reads the tenant from the request. Every data route is
// company-scoped.
func companyID(r *http.Request) string {
	if v := r.Header.Get("X-Company-ID"); v != "" {
		return v
	}
	return r.URL.Query().Get("company_id")
}

func userID(r *http.Request) string {
	if v := r.Header.Get("X-User-ID"); v != "" {
		return v
	}
	return r.URL.Query().Get("user_id")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	var verr *types.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, types.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	history := s.bus.History(limit)

	type eventJSON struct {
		ID        string             `json:"id"`
		TaskID    string             `json:"task_id,omitempty"`
		Type      string             `json:"type"`
		Timestamp string             `json:"timestamp"`
		Source    events.EventSource `json:"source"`
		Payload   map[string]any     `json:"payload"`
	}
	result := make([]eventJSON, len(history))
	for i, e := range history {
		result[i] = eventJSON{
			ID:        e.ID,
			TaskID:    e.TaskID,
			Type:      string(e.Type),
			Timestamp: e.Timestamp.Format(time.RFC3339Nano),
			Source:    e.Source,
			Payload:   e.Payload,
		}
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleSubmitTask(w http.ResponseWriter, r *http.Request) {
	var req orchestrator.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, &types.ValidationError{Reason: "invalid json body"})
		return
	}
	if req.CompanyID == "" {
		req.CompanyID = companyID(r)
	}
	if req.UserID == "" {
		req.UserID = userID(r)
	}
	task, err := s.orch.Submit(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	list, err := s.tasks.List(r.Context(), companyID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.orch.Tasks.Get(r.Context(), companyID(r), chi.URLParam(r, "taskID"))
	if err != nil {
		writeError(w, err)
		return
	}
	children, err := s.orch.Tasks.Children(r.Context(), task)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"task":     task,
		"children": children,
	})
}

func (s *Server) handleCancelTask(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Reason string `json:"reason"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	if err := s.orch.Cancel(r.Context(), companyID(r), chi.URLParam(r, "taskID"), body.Reason); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

func (s *Server) handleDecomposeTask(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Children []orchestrator.ChildSpec `json:"children"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, &types.ValidationError{Reason: "invalid json body"})
		return
	}
	children, err := s.orch.Decompose(r.Context(), companyID(r), chi.URLParam(r, "taskID"), body.Children)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, children)
}

func (s *Server) handleTaskMessages(w http.ResponseWriter, r *http.Request) {
	co := companyID(r)
	task, err := s.orch.Tasks.Get(r.Context(), co, chi.URLParam(r, "taskID"))
	if err != nil {
		writeError(w, err)
		return
	}
	if task.ExecutionChatID == "" {
		writeJSON(w, http.StatusOK, []*types.Message{})
		return
	}
	opts := repo.ListOptions{
		IncludeReflection: r.URL.Query().Get("include_reflection") == "1",
	}
	msgs, err := s.orch.Messages.List(r.Context(), co, task.ExecutionChatID, opts)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (s *Server) handleTaskResults(w http.ResponseWriter, r *http.Request) {
	results, err := s.results.ListByTask(r.Context(), companyID(r), chi.URLParam(r, "taskID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Content == "" {
		writeError(w, &types.ValidationError{Field: "content", Reason: "required"})
		return
	}
	err := s.tasks.SendMessage(r.Context(), companyID(r), chi.URLParam(r, "chatID"), userID(r), body.Content)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "sent"})
}

func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := s.orch.Agents.List(r.Context(), companyID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, agents)
}
