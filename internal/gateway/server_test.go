package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"runtime"
	"testing"
	"time"

	"github.com/helmsman-ai/helmsman/internal/config"
	"github.com/helmsman-ai/helmsman/internal/events"
	"github.com/helmsman-ai/helmsman/internal/executor"
	"github.com/helmsman-ai/helmsman/internal/orchestrator"
	"github.com/helmsman-ai/helmsman/internal/repo"
	"github.com/helmsman-ai/helmsman/internal/tools"
	"github.com/helmsman-ai/helmsman/internal/types"
)

// waitForEvents polls the bus history until at least n events are present.
func waitForEvents(bus *events.Bus, n int) {
	for i := 0; i < 200; i++ {
		if len(bus.History(100)) >= n {
			return
		}
		runtime.Gosched()
		time.Sleep(time.Millisecond)
	}
}

type testEnv struct {
	srv   *Server
	orch  *orchestrator.Orchestrator
	bus   *events.Bus
	agent *types.Agent
}

func newTestServer(t *testing.T) *testEnv {
	t.Helper()
	db, err := repo.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	bus := events.NewBus(64)
	t.Cleanup(bus.Close)

	exec := &executor.Executor{
		Tasks:    repo.TaskRepo{DB: db},
		Chats:    repo.ChatRepo{DB: db},
		Messages: repo.MessageRepo{DB: db},
		Results:  repo.ResultRepo{DB: db},
		Tools:    &tools.Deps{},
		Dispatch: &tools.Dispatcher{},
	}
	orch := orchestrator.New(orchestrator.Orchestrator{
		Tasks:    repo.TaskRepo{DB: db},
		Chats:    repo.ChatRepo{DB: db},
		Messages: repo.MessageRepo{DB: db},
		Agents:   repo.AgentRepo{DB: db},
		Exec:     exec,
		Bus:      bus,
	})

	agent := &types.Agent{CompanyID: "co1", Name: "helper"}
	if err := orch.Agents.Create(context.Background(), agent); err != nil {
		t.Fatal(err)
	}

	srv := NewServer(config.GatewayConfig{Host: "localhost", Port: 0}, orch, repo.ResultRepo{DB: db}, bus)
	t.Cleanup(srv.hub.Close)
	return &testEnv{srv: srv, orch: orch, bus: bus, agent: agent}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("X-Company-ID", "co1")
	req.Header.Set("X-User-ID", "u1")
	w := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(w, req)
	return w
}

func TestHandleHealth(t *testing.T) {
	env := newTestServer(t)

	w := env.do(t, http.MethodGet, "/api/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "ok" {
		t.Fatalf("body = %v", body)
	}
}

func TestSubmitAndGetTask(t *testing.T) {
	env := newTestServer(t)

	w := env.do(t, http.MethodPost, "/api/tasks", map[string]any{
		"agent_id": env.agent.ID,
		"title":    "summarize the report",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var task types.Task
	if err := json.NewDecoder(w.Body).Decode(&task); err != nil {
		t.Fatal(err)
	}
	if task.ID == "" || task.Status != types.TaskToDo {
		t.Fatalf("task = %+v", task)
	}

	w = env.do(t, http.MethodGet, "/api/tasks/"+task.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var got struct {
		Task     types.Task   `json:"task"`
		Children []types.Task `json:"children"`
	}
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.Task.ID != task.ID || len(got.Children) != 0 {
		t.Fatalf("got = %+v", got)
	}
}

func TestSubmitValidationIs400(t *testing.T) {
	env := newTestServer(t)

	w := env.do(t, http.MethodPost, "/api/tasks", map[string]any{
		"agent_id": env.agent.ID,
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestGetTaskWrongTenantIs404(t *testing.T) {
	env := newTestServer(t)

	w := env.do(t, http.MethodPost, "/api/tasks", map[string]any{
		"agent_id": env.agent.ID,
		"title":    "private",
	})
	var task types.Task
	if err := json.NewDecoder(w.Body).Decode(&task); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/tasks/"+task.ID, nil)
	req.Header.Set("X-Company-ID", "co2")
	rec := httptest.NewRecorder()
	env.srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestCancelTask(t *testing.T) {
	env := newTestServer(t)

	w := env.do(t, http.MethodPost, "/api/tasks", map[string]any{
		"agent_id": env.agent.ID,
		"title":    "to be cancelled",
	})
	var task types.Task
	if err := json.NewDecoder(w.Body).Decode(&task); err != nil {
		t.Fatal(err)
	}

	w = env.do(t, http.MethodPost, fmt.Sprintf("/api/tasks/%s/cancel", task.ID), map[string]string{
		"reason": "changed my mind",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	got, err := env.orch.Tasks.Get(context.Background(), "co1", task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != types.TaskCancelled {
		t.Fatalf("status = %s, want cancelled", got.Status)
	}
}

func TestDecomposeTask(t *testing.T) {
	env := newTestServer(t)

	w := env.do(t, http.MethodPost, "/api/tasks", map[string]any{
		"agent_id": env.agent.ID,
		"title":    "plan the launch",
	})
	var parent types.Task
	if err := json.NewDecoder(w.Body).Decode(&parent); err != nil {
		t.Fatal(err)
	}

	w = env.do(t, http.MethodPost, "/api/tasks/"+parent.ID+"/decompose", map[string]any{
		"children": []map[string]string{
			{"title": "draft the announcement"},
			{"title": "book the venue"},
		},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var children []types.Task
	if err := json.NewDecoder(w.Body).Decode(&children); err != nil {
		t.Fatal(err)
	}
	if len(children) != 2 {
		t.Fatalf("children = %+v", children)
	}
	for _, c := range children {
		if c.ParentID() != parent.ID {
			t.Errorf("child %s ancestry = %q", c.ID, c.Ancestry)
		}
	}

	w = env.do(t, http.MethodPost, "/api/tasks/"+parent.ID+"/decompose", map[string]any{
		"children": []map[string]string{},
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("empty decompose status = %d, want 400", w.Code)
	}
}

func TestPostMessageResumesWaitingTask(t *testing.T) {
	env := newTestServer(t)
	ctx := context.Background()

	origin := &types.Chat{CompanyID: "co1", UserID: "u1", Kind: types.ChatDirect}
	if err := env.orch.Chats.Create(ctx, origin); err != nil {
		t.Fatal(err)
	}
	task := &types.Task{
		CompanyID: "co1", UserID: "u1", AgentID: env.agent.ID,
		Title: "ask", Status: types.TaskWaitingForUser, OriginChatID: origin.ID,
	}
	if err := env.orch.Tasks.Create(ctx, task); err != nil {
		t.Fatal(err)
	}

	w := env.do(t, http.MethodPost, "/api/chats/"+origin.ID+"/messages", map[string]string{
		"content": "the password is hunter2",
	})
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	got, err := env.orch.Tasks.Get(ctx, "co1", task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != types.TaskInProgress {
		t.Fatalf("status = %s, want in_progress", got.Status)
	}
}

func TestHandleEventsHistory(t *testing.T) {
	env := newTestServer(t)

	env.do(t, http.MethodPost, "/api/tasks", map[string]any{
		"agent_id": env.agent.ID,
		"title":    "emit an event",
	})
	waitForEvents(env.bus, 1)

	w := env.do(t, http.MethodGet, "/api/events?limit=10", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var evs []map[string]any
	if err := json.NewDecoder(w.Body).Decode(&evs); err != nil {
		t.Fatal(err)
	}
	if len(evs) == 0 {
		t.Fatal("no events in history")
	}
	if evs[0]["type"] != string(events.EventTaskCreated) {
		t.Errorf("first event type = %v", evs[0]["type"])
	}
}

func TestListAgents(t *testing.T) {
	env := newTestServer(t)

	w := env.do(t, http.MethodGet, "/api/agents", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var agents []types.Agent
	if err := json.NewDecoder(w.Body).Decode(&agents); err != nil {
		t.Fatal(err)
	}
	if len(agents) != 1 || agents[0].Name != "helper" {
		t.Fatalf("agents = %+v", agents)
	}
}
