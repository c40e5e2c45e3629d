package planner

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/helmsman-ai/helmsman/internal/config"
	"github.com/helmsman-ai/helmsman/internal/repo"
	"github.com/helmsman-ai/helmsman/internal/types"
)

type scriptModel struct {
	mu        sync.Mutex
	responses []*schema.Message
}

func (m *scriptModel) Generate(ctx context.Context, _ []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.responses) == 0 {
		return nil, fmt.Errorf("script exhausted")
	}
	resp := m.responses[0]
	m.responses = m.responses[1:]
	return resp, nil
}

func (m *scriptModel) Stream(ctx context.Context, _ []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, fmt.Errorf("not implemented")
}

func (m *scriptModel) WithTools(_ []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return m, nil
}

type fakeResolver struct {
	m model.ToolCallingChatModel
}

func (r fakeResolver) Resolve(_ context.Context, _ string) (model.ToolCallingChatModel, config.ProviderConfig, error) {
	return r.m, config.ProviderConfig{Retries: 1, RetryBackoff: config.Duration(time.Millisecond)}, nil
}

func (r fakeResolver) DefaultName() string { return "test" }

func planCall(name, args string) *schema.Message {
	return schema.AssistantMessage("", []schema.ToolCall{{
		ID:       "call_plan",
		Function: schema.FunctionCall{Name: name, Arguments: args},
	}})
}

func newPlanner(t *testing.T, m *scriptModel, depth int) (*Planner, context.Context) {
	t.Helper()
	db, err := repo.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return &Planner{
		Tasks:      repo.TaskRepo{DB: db},
		Agents:     repo.AgentRepo{DB: db},
		Models:     fakeResolver{m: m},
		DepthLimit: depth,
	}, context.Background()
}

func seedAgents(t *testing.T, p *Planner, ctx context.Context, names ...string) []*types.Agent {
	t.Helper()
	var out []*types.Agent
	for _, n := range names {
		a := &types.Agent{CompanyID: "co1", Name: n, Description: n + " agent"}
		if err := p.Agents.Create(ctx, a); err != nil {
			t.Fatal(err)
		}
		out = append(out, a)
	}
	return out
}

func draftTask(t *testing.T, p *Planner, ctx context.Context, agentID string) *types.Task {
	t.Helper()
	task := &types.Task{
		CompanyID: "co1", UserID: "u1", AgentID: agentID,
		Title: "build a report", Status: types.TaskDraft,
	}
	if err := p.Tasks.Create(ctx, task); err != nil {
		t.Fatal(err)
	}
	return task
}

func TestPlanSplitsIntoSubTasks(t *testing.T) {
	m := &scriptModel{}
	p, ctx := newPlanner(t, m, 1)
	agents := seedAgents(t, p, ctx, "researcher", "coder")
	task := draftTask(t, p, ctx, agents[0].ID)

	m.responses = []*schema.Message{
		planCall("plan_task_execution", fmt.Sprintf(
			`{"tasks":[{"title":"gather data","summary":"find the numbers","agent_id":%q},{"title":"write script","summary":"plot the numbers","agent_id":%q}]}`,
			agents[0].ID, agents[1].ID)),
		// Children sit at the depth limit, so they are planned but the
		// planner refuses to split them further.
		planCall("plan_task_execution", `{"tasks":[{"title":"a","summary":"s","agent_id":"x"},{"title":"b","summary":"s","agent_id":"x"}]}`),
		planCall("assign_to_agent", fmt.Sprintf(`{"agent_id":%q}`, agents[1].ID)),
	}

	if err := p.Plan(ctx, task); err != nil {
		t.Fatal(err)
	}
	children, err := p.Tasks.Children(ctx, task)
	if err != nil {
		t.Fatal(err)
	}
	if len(children) != 2 {
		t.Fatalf("children = %d, want 2", len(children))
	}
	if children[0].Title != "gather data" || children[1].Title != "write script" {
		t.Errorf("titles = %q, %q", children[0].Title, children[1].Title)
	}
	if children[1].AgentID != agents[1].ID {
		t.Errorf("second child agent = %s", children[1].AgentID)
	}
	if children[0].AncestryLevel != 1 || children[0].Ancestry != task.ID {
		t.Errorf("ancestry = %q level %d", children[0].Ancestry, children[0].AncestryLevel)
	}
}

func TestPlanAssignsSingleAgent(t *testing.T) {
	m := &scriptModel{}
	p, ctx := newPlanner(t, m, 2)
	agents := seedAgents(t, p, ctx, "researcher", "coder")
	task := draftTask(t, p, ctx, agents[0].ID)

	m.responses = []*schema.Message{
		planCall("assign_to_agent", fmt.Sprintf(`{"agent_id":%q}`, agents[1].ID)),
	}
	if err := p.Plan(ctx, task); err != nil {
		t.Fatal(err)
	}
	got, err := p.Tasks.Get(ctx, "co1", task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.AgentID != agents[1].ID {
		t.Errorf("agent = %s, want %s", got.AgentID, agents[1].ID)
	}
	if children, _ := p.Tasks.Children(ctx, task); len(children) != 0 {
		t.Errorf("children = %d, want 0", len(children))
	}
}

func TestPlanUnknownAgentFallsBack(t *testing.T) {
	m := &scriptModel{}
	p, ctx := newPlanner(t, m, 2)
	agents := seedAgents(t, p, ctx, "researcher")
	task := draftTask(t, p, ctx, agents[0].ID)

	m.responses = []*schema.Message{
		planCall("assign_to_agent", `{"agent_id":"agent_nope"}`),
	}
	if err := p.Plan(ctx, task); err != nil {
		t.Fatal(err)
	}
	got, err := p.Tasks.Get(ctx, "co1", task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.AgentID != agents[0].ID {
		t.Errorf("agent = %s, want original %s", got.AgentID, agents[0].ID)
	}
}

func TestPlanRejectsNonDraft(t *testing.T) {
	m := &scriptModel{}
	p, ctx := newPlanner(t, m, 2)
	agents := seedAgents(t, p, ctx, "researcher")
	task := &types.Task{
		CompanyID: "co1", UserID: "u1", AgentID: agents[0].ID,
		Title: "t", Status: types.TaskInProgress,
	}
	if err := p.Tasks.Create(ctx, task); err != nil {
		t.Fatal(err)
	}
	if err := p.Plan(ctx, task); err == nil {
		t.Fatal("expected error for non-draft task")
	}
}

func TestPlanNoToolCallIsError(t *testing.T) {
	m := &scriptModel{}
	p, ctx := newPlanner(t, m, 2)
	agents := seedAgents(t, p, ctx, "researcher")
	task := draftTask(t, p, ctx, agents[0].ID)

	m.responses = []*schema.Message{schema.AssistantMessage("I think we should plan", nil)}
	if err := p.Plan(ctx, task); err == nil {
		t.Fatal("expected error when no tool call received")
	}
}
